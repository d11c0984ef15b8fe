package main

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/morihiro1978/9cc/pkg/asm"
	"github.com/morihiro1978/9cc/pkg/check"
	"github.com/morihiro1978/9cc/pkg/compiler"
	"github.com/morihiro1978/9cc/pkg/cpu"
)

func TestCompilerAndCPU(t *testing.T) {
	// 1. Define C source
	source := `
int fib(int n) {
    if (n == 0) { return 0; }
    if (n == 1) { return 1; }
    return fib(n - 1) + fib(n - 2);
}

int main() {
    int limit = 6;
    int result = fib(limit);
    int *out = &limit;
    *out = result;
    func2(limit, result);
    return limit;
}
`

	// 2. Lex and Parse
	tokens, err := compiler.Lex(source)
	if err != nil {
		t.Fatalf("Lexing failed: %v", err)
	}

	prog, err := compiler.Parse(tokens, source)
	if err != nil {
		t.Fatalf("Parsing failed: %v", err)
	}

	// 3. Generate Assembly
	assembly, err := compiler.Generate(prog)
	if err != nil {
		t.Fatalf("Code generation failed: %v", err)
	}

	t.Logf("Generated Assembly:\n%s", assembly)

	// 4. Read the assembly back
	listing, err := asm.Parse(assembly)
	if err != nil {
		t.Fatalf("Assembly failed: %v", err)
	}
	if len(listing.Globals) != 1 || listing.Globals[0] != "main" {
		t.Errorf("Expected .global main, got %v", listing.Globals)
	}

	// 5. Instantiate CPU
	var out bytes.Buffer
	vm := cpu.New(cpu.Config{Output: &out, Externs: check.SumExterns()})

	// 6. Run
	got, err := vm.Run(listing)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 7. Assertions

	// fib(6) is 8 (0, 1, 1, 2, 3, 5, 8), stored back through the pointer
	if got != 8 {
		t.Errorf("Expected rax to be 8, got %d", got)
	}
	if out.String() != "func2(8, 8)\n" {
		t.Errorf("Expected host output %q, got %q", "func2(8, 8)\n", out.String())
	}

	// stack fully unwound
	if sp := vm.Reg("rsp"); sp != vm.StackTop() {
		t.Errorf("Expected rsp to be 0x%x, got 0x%x", vm.StackTop(), sp)
	}
}

func TestCasesFile(t *testing.T) {
	f, err := os.Open("../testdata/cases.txt")
	if err != nil {
		t.Fatalf("Failed to read cases: %v", err)
	}
	defer f.Close()

	cases, err := check.ParseCases(f)
	if err != nil {
		t.Fatalf("ParseCases failed: %v", err)
	}
	if len(cases) == 0 {
		t.Fatal("no cases in testdata/cases.txt")
	}

	results, err := check.Run(context.Background(), cases, check.Options{Externs: check.SumExterns()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, r := range check.Failed(results) {
		t.Errorf("%v\n%s", r, r.Case.Source)
	}
}
