package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/morihiro1978/9cc/pkg/asm"
)

const (
	// StackBase is the lowest address of the stack segment.
	StackBase int64 = 0x7ff0_0000

	DefaultStackSize = 1 << 20
	DefaultMaxSteps  = 50_000_000

	// haltAddr is the return address main returns to.
	haltAddr int64 = -1
)

var (
	ErrStepLimit      = errors.New("step limit exceeded")
	ErrSegfault       = errors.New("memory access outside the stack segment")
	ErrDivideByZero   = errors.New("integer division by zero")
	ErrDivideOverflow = errors.New("integer division overflow")
	ErrMisaligned     = errors.New("stack not 16-byte aligned at call")
	ErrUndefined      = errors.New("call to undefined function")
	ErrNoMain         = errors.New("program defines no main")
)

// Extern is a host routine reachable through call, standing in for code
// linked from outside the program. It receives the six argument registers
// and returns the value for rax.
type Extern func(m *Machine, args [6]int64) int64

// Config controls a Machine. The zero value is usable.
type Config struct {
	StackSize int   // bytes, rounded down to 16
	MaxSteps  int64 // instructions executed before ErrStepLimit
	Output    io.Writer
	Externs   map[string]Extern
}

var regIndex = map[string]int{
	"rax": 0, "rcx": 1, "rdx": 2, "rbx": 3,
	"rsp": 4, "rbp": 5, "rsi": 6, "rdi": 7,
	"r8": 8, "r9": 9, "r10": 10, "r11": 11,
	"r12": 12, "r13": 13, "r14": 14, "r15": 15,
}

var argRegs = [6]int{7, 6, 2, 1, 8, 9} // rdi rsi rdx rcx r8 r9

const (
	rax = 0
	rdx = 2
	rsp = 4
)

// Machine executes an asm.Program on a flat little-endian stack.
type Machine struct {
	Regs [16]int64

	// flags from the last cmp
	ZF bool
	LT bool

	IP     int // index into prog.Instrs
	Steps  int64
	Halted bool

	Memory []byte // stack segment, Memory[0] is at StackBase

	// Output is where host routines print. If nil, os.Stdout is used.
	Output io.Writer

	prog     *asm.Program
	externs  map[string]Extern
	maxSteps int64
}

func New(cfg Config) *Machine {
	size := cfg.StackSize
	if size <= 0 {
		size = DefaultStackSize
	}
	size &^= 15
	steps := cfg.MaxSteps
	if steps <= 0 {
		steps = DefaultMaxSteps
	}
	return &Machine{
		Memory:   make([]byte, size),
		Output:   cfg.Output,
		externs:  cfg.Externs,
		maxSteps: steps,
	}
}

func (m *Machine) outputSink() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}

// StackTop is one past the highest stack address; rsp starts here.
func (m *Machine) StackTop() int64 {
	return StackBase + int64(len(m.Memory))
}

// Reg returns the named register; "al" is the low byte of rax.
func (m *Machine) Reg(name string) int64 {
	if name == "al" {
		return m.Regs[rax] & 0xff
	}
	return m.Regs[regIndex[name]]
}

func (m *Machine) SetReg(name string, v int64) {
	if name == "al" {
		m.Regs[rax] = m.Regs[rax]&^0xff | v&0xff
		return
	}
	m.Regs[regIndex[name]] = v
}

func (m *Machine) addr(a int64) (int, error) {
	if a < StackBase || a+8 > m.StackTop() {
		return 0, fmt.Errorf("%w: 0x%x", ErrSegfault, a)
	}
	return int(a - StackBase), nil
}

// Read64 loads the word at address a.
func (m *Machine) Read64(a int64) (int64, error) {
	off, err := m.addr(a)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(m.Memory[off:])), nil
}

// Write64 stores v at address a.
func (m *Machine) Write64(a int64, v int64) error {
	off, err := m.addr(a)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.Memory[off:], uint64(v))
	return nil
}

func (m *Machine) push(v int64) error {
	m.Regs[rsp] -= 8
	return m.Write64(m.Regs[rsp], v)
}

func (m *Machine) pop() (int64, error) {
	v, err := m.Read64(m.Regs[rsp])
	if err != nil {
		return 0, err
	}
	m.Regs[rsp] += 8
	return v, nil
}

// Load resets the machine to run prog from main. The stack is laid out as
// if main had just been called: the halt address sits on a 16-byte
// boundary.
func (m *Machine) Load(prog *asm.Program) error {
	entry, ok := prog.Labels["main"]
	if !ok {
		return ErrNoMain
	}
	m.prog = prog
	m.Regs = [16]int64{}
	m.ZF, m.LT = false, false
	m.Steps = 0
	m.Halted = false
	m.IP = entry
	m.Regs[rsp] = m.StackTop()
	return m.push(haltAddr)
}

// value reads a source operand.
func (m *Machine) value(op asm.Operand) (int64, error) {
	switch op.Kind {
	case asm.Reg:
		return m.Reg(op.Reg), nil
	case asm.Imm:
		return op.Imm, nil
	case asm.Mem:
		return m.Read64(m.Reg(op.Reg) + op.Imm)
	}
	return 0, fmt.Errorf("label %s used as a value", op.Label)
}

// store writes a destination operand.
func (m *Machine) store(op asm.Operand, v int64) error {
	switch op.Kind {
	case asm.Reg:
		m.SetReg(op.Reg, v)
		return nil
	case asm.Mem:
		return m.Write64(m.Reg(op.Reg)+op.Imm, v)
	}
	return fmt.Errorf("cannot store to %s", op)
}

func (m *Machine) call(target string) error {
	if m.Regs[rsp]%16 != 0 {
		return fmt.Errorf("%w: calling %s with rsp=0x%x", ErrMisaligned, target, m.Regs[rsp])
	}
	if idx, ok := m.prog.Labels[target]; ok {
		if err := m.push(int64(m.IP)); err != nil {
			return err
		}
		m.IP = idx
		return nil
	}
	fn, ok := m.externs[target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefined, target)
	}
	var args [6]int64
	for i, r := range argRegs {
		args[i] = m.Regs[r]
	}
	m.Regs[rax] = fn(m, args)
	return nil
}

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	if m.IP < 0 || m.IP >= len(m.prog.Instrs) {
		return fmt.Errorf("instruction pointer %d outside program", m.IP)
	}
	if m.Steps >= m.maxSteps {
		return ErrStepLimit
	}
	m.Steps++

	in := m.prog.Instrs[m.IP]
	m.IP++
	if err := m.exec(in); err != nil {
		return fmt.Errorf("line %d: %s: %w", in.Line, in, err)
	}
	return nil
}

func (m *Machine) exec(in asm.Instr) error {
	args := in.Args

	switch in.Op {
	case "push":
		v, err := m.value(args[0])
		if err != nil {
			return err
		}
		return m.push(v)

	case "pop":
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.store(args[0], v)

	case "mov":
		v, err := m.value(args[1])
		if err != nil {
			return err
		}
		return m.store(args[0], v)

	case "movzb":
		v, err := m.value(args[1])
		if err != nil {
			return err
		}
		return m.store(args[0], v&0xff)

	case "add", "sub", "imul", "and":
		a, err := m.value(args[0])
		if err != nil {
			return err
		}
		b, err := m.value(args[1])
		if err != nil {
			return err
		}
		switch in.Op {
		case "add":
			a += b
		case "sub":
			a -= b
		case "imul":
			a *= b
		case "and":
			a &= b
		}
		return m.store(args[0], a)

	case "neg":
		a, err := m.value(args[0])
		if err != nil {
			return err
		}
		return m.store(args[0], -a)

	case "cqo":
		if m.Regs[rax] < 0 {
			m.Regs[rdx] = -1
		} else {
			m.Regs[rdx] = 0
		}

	case "idiv":
		d, err := m.value(args[0])
		if err != nil {
			return err
		}
		n := m.Regs[rax]
		if d == 0 {
			return ErrDivideByZero
		}
		if d == -1 && n == -1<<63 {
			return ErrDivideOverflow
		}
		m.Regs[rax], m.Regs[rdx] = n/d, n%d

	case "cmp":
		a, err := m.value(args[0])
		if err != nil {
			return err
		}
		b, err := m.value(args[1])
		if err != nil {
			return err
		}
		m.ZF, m.LT = a == b, a < b

	case "sete", "setne", "setl", "setle":
		var set bool
		switch in.Op {
		case "sete":
			set = m.ZF
		case "setne":
			set = !m.ZF
		case "setl":
			set = m.LT
		case "setle":
			set = m.LT || m.ZF
		}
		var v int64
		if set {
			v = 1
		}
		return m.store(args[0], v)

	case "jmp":
		m.IP = m.prog.Labels[args[0].Label]

	case "je":
		if m.ZF {
			m.IP = m.prog.Labels[args[0].Label]
		}

	case "jne":
		if !m.ZF {
			m.IP = m.prog.Labels[args[0].Label]
		}

	case "call":
		return m.call(args[0].Label)

	case "ret":
		ret, err := m.pop()
		if err != nil {
			return err
		}
		if ret == haltAddr {
			m.Halted = true
			return nil
		}
		m.IP = int(ret)

	default:
		return fmt.Errorf("unsupported instruction %s", in.Op)
	}
	return nil
}

// Run loads prog and executes it until main returns, yielding rax.
func (m *Machine) Run(prog *asm.Program) (int64, error) {
	if err := m.Load(prog); err != nil {
		return 0, err
	}
	for !m.Halted {
		if err := m.Step(); err != nil {
			return 0, err
		}
	}
	return m.Regs[rax], nil
}

// ExitStatus is the process exit status a return value from main produces.
func ExitStatus(v int64) int {
	return int(uint8(v))
}
