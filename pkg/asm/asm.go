// Package asm reads the Intel-syntax x86-64 assembly emitted by the
// compiler into labelled instructions that pkg/cpu can execute.
package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// OperandKind classifies an instruction operand.
type OperandKind int

const (
	Reg   OperandKind = iota // rax, al, ...
	Imm                      // 42, -16
	Mem                      // [rax], [rbp-8]
	Label                    // main, .Lend0
)

// Operand is one parsed instruction argument.
type Operand struct {
	Kind  OperandKind
	Reg   string // register name, also the base register of a Mem operand
	Imm   int64  // immediate value, or displacement of a Mem operand
	Label string
}

func (o Operand) String() string {
	switch o.Kind {
	case Reg:
		return o.Reg
	case Imm:
		return strconv.FormatInt(o.Imm, 10)
	case Mem:
		switch {
		case o.Imm > 0:
			return fmt.Sprintf("[%s+%d]", o.Reg, o.Imm)
		case o.Imm < 0:
			return fmt.Sprintf("[%s%d]", o.Reg, o.Imm)
		}
		return "[" + o.Reg + "]"
	}
	return o.Label
}

// Instr is one instruction together with its 1-based source line.
type Instr struct {
	Op   string
	Args []Operand
	Line int
}

func (in Instr) String() string {
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = a.String()
	}
	if len(args) == 0 {
		return in.Op
	}
	return in.Op + " " + strings.Join(args, ", ")
}

// Program is an assembled listing. Labels map to the index of the
// instruction that follows them (len(Instrs) for a trailing label).
type Program struct {
	Instrs  []Instr
	Labels  map[string]int
	Globals []string
	Syntax  string // operand of .intel_syntax
}

// operandCounts lists every supported mnemonic with its operand count.
var operandCounts = map[string]int{
	"push":  1,
	"pop":   1,
	"mov":   2,
	"add":   2,
	"sub":   2,
	"imul":  2,
	"and":   2,
	"cmp":   2,
	"cqo":   0,
	"idiv":  1,
	"neg":   1,
	"sete":  1,
	"setne": 1,
	"setl":  1,
	"setle": 1,
	"movzb": 2,
	"jmp":   1,
	"je":    1,
	"jne":   1,
	"call":  1,
	"ret":   0,
}

// IsJump reports whether op transfers control to a label in the program.
func IsJump(op string) bool {
	return op == "jmp" || op == "je" || op == "jne"
}

var registers = map[string]bool{
	"rax": true, "rbx": true, "rcx": true, "rdx": true,
	"rsi": true, "rdi": true, "rbp": true, "rsp": true,
	"r8": true, "r9": true, "r10": true, "r11": true,
	"r12": true, "r13": true, "r14": true, "r15": true,
	"al": true,
}

// IsRegister reports whether name is a register the reader accepts.
func IsRegister(name string) bool {
	return registers[name]
}

type parsedLine struct {
	lineNo    int
	labels    []string
	mnemonic  string
	operands  []string
	directive bool
}

// Assembler resolves labels in a first pass and parses operands in a second.
type Assembler struct {
	labels map[string]int
}

func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[string]int)}
}

// Parse reads an assembly listing.
func Parse(code string) (*Program, error) {
	return NewAssembler().Parse(code)
}

func (a *Assembler) Parse(code string) (*Program, error) {
	lines := strings.Split(code, "\n")
	parsed := make([]parsedLine, 0, len(lines))
	for i, raw := range lines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	if err := a.pass1(parsed); err != nil {
		return nil, err
	}
	return a.pass2(parsed)
}

func (a *Assembler) pass1(lines []parsedLine) error {
	count := 0
	for _, p := range lines {
		for _, lbl := range p.labels {
			if _, exists := a.labels[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, p.lineNo)
			}
			a.labels[lbl] = count
		}
		if p.mnemonic != "" && !p.directive {
			count++
		}
	}
	return nil
}

func (a *Assembler) pass2(lines []parsedLine) (*Program, error) {
	prog := &Program{Labels: a.labels}

	for _, p := range lines {
		if p.mnemonic == "" {
			continue
		}
		if p.directive {
			if err := prog.directive(p); err != nil {
				return nil, err
			}
			continue
		}

		want, ok := operandCounts[p.mnemonic]
		if !ok {
			return nil, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
		}
		if len(p.operands) != want {
			return nil, fmt.Errorf("%s expects %d operands on line %d", p.mnemonic, want, p.lineNo)
		}

		in := Instr{Op: p.mnemonic, Line: p.lineNo}
		for _, tok := range p.operands {
			op, err := parseOperand(tok, p.lineNo)
			if err != nil {
				return nil, err
			}
			in.Args = append(in.Args, op)
		}
		if in.Op == "call" && in.Args[0].Kind != Label {
			return nil, fmt.Errorf("call expects a label on line %d", p.lineNo)
		}
		if IsJump(in.Op) {
			if in.Args[0].Kind != Label {
				return nil, fmt.Errorf("%s expects a label on line %d", in.Op, p.lineNo)
			}
			if _, ok := a.labels[in.Args[0].Label]; !ok {
				return nil, fmt.Errorf("undefined label '%s' on line %d", in.Args[0].Label, p.lineNo)
			}
		}
		prog.Instrs = append(prog.Instrs, in)
	}

	for _, g := range prog.Globals {
		if _, ok := a.labels[g]; !ok {
			return nil, fmt.Errorf("global symbol '%s' is never defined", g)
		}
	}
	return prog, nil
}

func (prog *Program) directive(p parsedLine) error {
	switch p.mnemonic {
	case ".intel_syntax":
		if len(p.operands) != 1 || p.operands[0] != "noprefix" {
			return fmt.Errorf(".intel_syntax expects noprefix on line %d", p.lineNo)
		}
		prog.Syntax = p.operands[0]
	case ".global", ".globl":
		if len(p.operands) == 0 {
			return fmt.Errorf("%s expects a symbol on line %d", p.mnemonic, p.lineNo)
		}
		prog.Globals = append(prog.Globals, p.operands...)
	default:
		return fmt.Errorf("unknown directive on line %d: %s", p.lineNo, p.mnemonic)
	}
	return nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t[") {
			break
		}
		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		mnemonic, rest = line[:i], line[i+1:]
	}
	p.mnemonic = strings.ToLower(mnemonic)
	p.directive = strings.HasPrefix(p.mnemonic, ".")

	rest = strings.TrimSpace(rest)
	if rest != "" {
		for _, op := range strings.Split(rest, ",") {
			op = strings.TrimSpace(op)
			if op == "" {
				return p, fmt.Errorf("empty operand on line %d", lineNo)
			}
			p.operands = append(p.operands, op)
		}
	}
	return p, nil
}

func stripComments(line string) string {
	if cut := strings.IndexByte(line, '#'); cut >= 0 {
		return line[:cut]
	}
	return line
}

func parseOperand(token string, lineNo int) (Operand, error) {
	if strings.HasPrefix(token, "[") {
		return parseMemory(token, lineNo)
	}
	if IsRegister(token) {
		return Operand{Kind: Reg, Reg: token}, nil
	}
	if v, err := strconv.ParseInt(token, 0, 64); err == nil {
		return Operand{Kind: Imm, Imm: v}, nil
	}
	if isIdentifier(token) {
		return Operand{Kind: Label, Label: token}, nil
	}
	return Operand{}, fmt.Errorf("invalid operand '%s' on line %d", token, lineNo)
}

// parseMemory accepts [reg], [reg+disp] and [reg-disp].
func parseMemory(token string, lineNo int) (Operand, error) {
	if !strings.HasSuffix(token, "]") {
		return Operand{}, fmt.Errorf("unterminated memory operand '%s' on line %d", token, lineNo)
	}
	inner := strings.ReplaceAll(token[1:len(token)-1], " ", "")

	base, disp := inner, ""
	if i := strings.IndexAny(inner, "+-"); i >= 0 {
		base, disp = inner[:i], inner[i:]
	}
	if !IsRegister(base) || base == "al" {
		return Operand{}, fmt.Errorf("invalid base register in '%s' on line %d", token, lineNo)
	}

	op := Operand{Kind: Mem, Reg: base}
	if disp != "" {
		v, err := strconv.ParseInt(disp, 0, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("invalid displacement in '%s' on line %d", token, lineNo)
		}
		op.Imm = v
	}
	return op, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '.' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
