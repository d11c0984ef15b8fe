package compiler

import (
	"fmt"
	"math"
	"strings"
)

// argRegs are the System V integer argument registers in position order.
var argRegs = [MaxParams]string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// setcc maps a comparison to the instruction that materialises its flag.
var setcc = map[TokenType]string{
	EQUALS:  "sete",
	NOT_EQ:  "setne",
	LESS:    "setl",
	LESS_EQ: "setle",
}

// CodeGen walks a resolved AST and emits x86-64 assembly in Intel syntax.
//
// Every expression leaves exactly one value on the machine stack; every
// statement does too, pushing a 0 sentinel when it has no natural value.
type CodeGen struct {
	out       strings.Builder
	nextLabel int
	fn        string // function being emitted, for the shared return label
}

func newCodeGen() *CodeGen {
	return &CodeGen{}
}

// newLabel draws the next numeric suffix; one construct uses one suffix for
// all of its labels.
func (cg *CodeGen) newLabel() int {
	n := cg.nextLabel
	cg.nextLabel++
	return n
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.line("  # "+format, args...)
}

func (cg *CodeGen) returnLabel() string {
	return ".Lreturn." + cg.fn
}

// genAddr pushes the address of an lvalue.
func (cg *CodeGen) genAddr(e Expr) error {
	switch n := e.(type) {
	case *VarRef:
		if n.Sym == nil {
			return fmt.Errorf("codegen: unresolved variable %q", n.Name)
		}
		cg.line("  mov rax, rbp")
		cg.line("  sub rax, %d", n.Sym.Offset)
		cg.line("  push rax")
		return nil

	case *UnaryExpr:
		if n.Op == STAR {
			// the address of *p is the value of p
			return cg.genExpr(n.Right)
		}
	}
	return fmt.Errorf("codegen: %s is not addressable", e)
}

// genLoad replaces the address on top of the stack with the word it points at.
func (cg *CodeGen) genLoad() {
	cg.line("  pop rax")
	cg.line("  mov rax, [rax]")
	cg.line("  push rax")
}

func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {

	case *Literal:
		if n.Value < math.MinInt32 || n.Value > math.MaxInt32 {
			cg.line("  mov rax, %d", n.Value)
			cg.line("  push rax")
			return nil
		}
		cg.line("  push %d", n.Value)

	case *VarRef:
		if err := cg.genAddr(n); err != nil {
			return err
		}
		cg.genLoad()

	case *Assignment:
		if err := cg.genAddr(n.Left); err != nil {
			return err
		}
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		cg.line("  pop rdi")
		cg.line("  pop rax")
		cg.line("  mov [rax], rdi")
		cg.line("  push rdi")

	case *UnaryExpr:
		switch n.Op {
		case MINUS:
			if err := cg.genExpr(n.Right); err != nil {
				return err
			}
			cg.line("  pop rax")
			cg.line("  neg rax")
			cg.line("  push rax")
		case AND:
			return cg.genAddr(n.Right)
		case STAR:
			if err := cg.genExpr(n.Right); err != nil {
				return err
			}
			cg.genLoad()
		default:
			return fmt.Errorf("codegen: unknown unary operator %s", n.Op)
		}

	case *BinaryExpr:
		return cg.genBinary(n)

	case *FunctionCall:
		return cg.genCall(n)

	default:
		return fmt.Errorf("codegen: unknown expression type %T", e)
	}
	return nil
}

func (cg *CodeGen) genBinary(n *BinaryExpr) error {
	if err := cg.genExpr(n.Left); err != nil {
		return err
	}
	if err := cg.genExpr(n.Right); err != nil {
		return err
	}
	cg.line("  pop rdi")
	cg.line("  pop rax")

	switch n.Op {
	case PLUS:
		cg.line("  add rax, rdi")
	case MINUS:
		cg.line("  sub rax, rdi")
	case STAR:
		cg.line("  imul rax, rdi")
	case SLASH:
		cg.line("  cqo")
		cg.line("  idiv rdi")
	case EQUALS, NOT_EQ, LESS, LESS_EQ:
		cg.line("  cmp rax, rdi")
		cg.line("  %s al", setcc[n.Op])
		cg.line("  movzb rax, al")
	default:
		return fmt.Errorf("codegen: unknown binary operator %s", n.Op)
	}

	cg.line("  push rax")
	return nil
}

// genCall evaluates the arguments left to right onto the stack, pops them
// into the argument registers last first, and realigns rsp to 16 bytes
// around the call. The saved rsp sits just above the aligned boundary so a
// single pop restores it.
func (cg *CodeGen) genCall(n *FunctionCall) error {
	if len(n.Args) > MaxParams {
		return fmt.Errorf("codegen: call to %s has %d arguments", n.Name, len(n.Args))
	}
	cg.comment("call %s/%d", n.Name, len(n.Args))
	for _, arg := range n.Args {
		if err := cg.genExpr(arg); err != nil {
			return err
		}
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		cg.line("  pop %s", argRegs[i])
	}

	cg.line("  mov rax, rsp")
	cg.line("  and rsp, -16")
	cg.line("  sub rsp, 8")
	cg.line("  push rax")
	cg.line("  mov rax, 0")
	cg.line("  call %s", n.Name)
	cg.line("  pop rsp")
	cg.line("  push rax")
	return nil
}

// genCond evaluates e and jumps to target when it is zero.
func (cg *CodeGen) genCond(e Expr, target string) error {
	if err := cg.genExpr(e); err != nil {
		return err
	}
	cg.line("  pop rax")
	cg.line("  cmp rax, 0")
	cg.line("  je %s", target)
	return nil
}

// genDiscard evaluates a statement and drops its value.
func (cg *CodeGen) genDiscard(s Stmt) error {
	if err := cg.genStmt(s); err != nil {
		return err
	}
	cg.line("  pop rax")
	return nil
}

func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {

	case *ExprStmt:
		return cg.genExpr(n.Expr)

	case *NullStmt:
		cg.line("  push 0")

	case *ReturnStmt:
		if err := cg.genExpr(n.Expr); err != nil {
			return err
		}
		cg.line("  pop rax")
		cg.line("  jmp %s", cg.returnLabel())
		// unreachable; keeps the statement's count at one
		cg.line("  push 0")

	case *BlockStmt:
		if len(n.Stmts) == 0 {
			cg.line("  push 0")
			return nil
		}
		for i, st := range n.Stmts {
			if err := cg.genStmt(st); err != nil {
				return err
			}
			if i < len(n.Stmts)-1 {
				cg.line("  pop rax")
			}
		}

	case *IfStmt:
		seq := cg.newLabel()
		cg.comment("if %s", n.Condition)
		if err := cg.genCond(n.Condition, fmt.Sprintf(".Lelse%d", seq)); err != nil {
			return err
		}
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		cg.line("  jmp .Lend%d", seq)
		cg.line(".Lelse%d:", seq)
		if n.ElseBody != nil {
			if err := cg.genStmt(n.ElseBody); err != nil {
				return err
			}
		} else {
			cg.line("  push 0")
		}
		cg.line(".Lend%d:", seq)

	case *WhileStmt:
		return cg.genLoop(nil, n.Condition, nil, n.Body)

	case *ForStmt:
		return cg.genLoop(n.Init, n.Cond, n.Post, n.Body)

	default:
		return fmt.Errorf("codegen: unknown statement type %T", s)
	}
	return nil
}

// genLoop emits while and for loops. A nil cond loops until a return.
func (cg *CodeGen) genLoop(init, cond, post Expr, body Stmt) error {
	seq := cg.newLabel()
	begin := fmt.Sprintf(".Lbegin%d", seq)
	brk := fmt.Sprintf(".Lbreak%d", seq)

	if init != nil {
		if err := cg.genExpr(init); err != nil {
			return err
		}
		cg.line("  pop rax")
	}

	cg.line("%s:", begin)
	if cond != nil {
		cg.comment("loop while %s", cond)
		if err := cg.genCond(cond, brk); err != nil {
			return err
		}
	}
	if err := cg.genDiscard(body); err != nil {
		return err
	}
	if post != nil {
		if err := cg.genExpr(post); err != nil {
			return err
		}
	} else {
		cg.line("  push 0")
	}
	cg.line("  pop rax")
	cg.line("  jmp %s", begin)
	cg.line("%s:", brk)
	cg.line("  push 0")
	cg.line(".Lend%d:", seq)
	return nil
}

func (cg *CodeGen) genFunction(f *FunctionDecl) error {
	if len(f.Params) > MaxParams {
		return fmt.Errorf("codegen: %s has %d parameters", f.Name, len(f.Params))
	}
	cg.fn = f.Name

	cg.line("%s:", f.Name)
	cg.line("  push rbp")
	cg.line("  mov rbp, rsp")

	// Parameters take the first slots in order, so pushing them lands each
	// one at its own offset. The remaining locals get a 0 placeholder.
	for i := range f.Params {
		cg.line("  push %s", argRegs[i])
	}
	for i := len(f.Params); i < f.NumLocals; i++ {
		cg.line("  push 0")
	}

	if err := cg.genStmt(f.Body); err != nil {
		return err
	}
	cg.line("  pop rax")

	cg.line("%s:", cg.returnLabel())
	cg.line("  mov rsp, rbp")
	cg.line("  pop rbp")
	cg.line("  ret")
	return nil
}

// Generate emits the assembly for a resolved program.
func Generate(prog *Program) (string, error) {
	cg := newCodeGen()

	cg.line(".intel_syntax noprefix")
	cg.line(".global main")

	for _, f := range prog.Funcs {
		cg.out.WriteByte('\n')
		if err := cg.genFunction(f); err != nil {
			return "", err
		}
	}

	return cg.out.String(), nil
}
