package compiler

import (
	"testing"

	"github.com/morihiro1978/9cc/pkg/asm"
)

// statementEffect compiles stmt as the only statement of main and returns
// the static stack effect of its code.
func statementEffect(t *testing.T, stmt string) int {
	t.Helper()
	src := "int main(int a, int b, int p) { " + stmt + " }"
	tokens, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex(%q): %v", src, err)
	}
	prog, err := Parse(tokens, src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	if n := len(prog.Funcs[0].Body.Stmts); n != 1 {
		t.Fatalf("%q parsed into %d statements", stmt, n)
	}
	text, err := Generate(prog)
	if err != nil {
		t.Fatalf("Generate(%q): %v", src, err)
	}
	listing, err := asm.Parse(text)
	if err != nil {
		t.Fatalf("asm.Parse: %v\n%s", err, text)
	}

	// the body sits between the prologue (push rbp, mov rbp, one push per
	// local) and the pop rax that precedes the return label
	from := listing.Labels["main"] + 2 + prog.Funcs[0].NumLocals
	to := listing.Labels[".Lreturn.main"] - 1
	effect, err := listing.StackEffect(from, to)
	if err != nil {
		t.Fatalf("%q: %v\n%s", stmt, err, text)
	}
	return effect
}

func TestStatementStackBalance(t *testing.T) {
	stmts := []string{
		"a + 1;",
		"a = b = 3;",
		"*p = a;",
		"p = &a;",
		"return a;",
		"if (a) b = 1;",
		"if (a) b = 1; else b = 2;",
		"if (a) return 1; else return 2;",
		"if (a) {}",
		"while (a) a = a - 1;",
		"while (a) {}",
		"while (a) return b;",
		"for (;;) return 0;",
		"for (;;) {}",
		"for (a = 0; a < 10; a = a + 1) {}",
		"for (; a;) b = b + a;",
		"{}",
		"{ a; b; a + b; }",
		"{ int c; c = 1; c; }",
		"{ int c; }",
		"{ return a; a = 2; }",
		"foo();",
		"foo(1, 2, 3, 4, 5, 6);",
		"a = foo(bar(a), b);",
		"{ if (a) { while (b) { b = b - 1; } } return a; }",
		"int c = a * b;",
		"int c;",
	}

	for _, stmt := range stmts {
		t.Run(stmt, func(t *testing.T) {
			if got := statementEffect(t, stmt); got != 1 {
				t.Errorf("stack effect = %d, want 1", got)
			}
		})
	}
}

func TestFunctionStackBalance(t *testing.T) {
	src := "int f(int n) { if (n < 2) return 1; return n * f(n - 1); } int main() { int x; x = f(5); while (x) x = x - 1; }"
	text := compileOK(t, src)
	listing, err := asm.Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	// from after "mov rbp, rsp" to just before "mov rsp, rbp": the body and
	// its pop, plus one push per local
	for _, fn := range []struct {
		name   string
		locals int
	}{{"f", 1}, {"main", 1}} {
		from := listing.Labels[fn.name] + 2
		to := listing.Labels[".Lreturn."+fn.name]
		got, err := listing.StackEffect(from, to)
		if err != nil {
			t.Fatalf("%s: %v", fn.name, err)
		}
		if got != fn.locals {
			t.Errorf("%s: stack effect = %d, want %d", fn.name, got, fn.locals)
		}
	}
}
