package compiler

import (
	"strings"
	"testing"
)

func TestDumpAST(t *testing.T) {
	prog := parseSource(t, "int main(int n) { int total = n + 1; return total; }")
	out := DumpAST(prog)

	for _, want := range []string{"FunctionDecl", `"main"`, `"total"`, "ReturnStmt", "Assignment", "BinaryExpr"} {
		if !strings.Contains(out, want) {
			t.Errorf("DumpAST() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "compiler.") {
		t.Errorf("DumpAST() should strip package names:\n%s", out)
	}
	if again := DumpAST(parseSource(t, "int main(int n) { int total = n + 1; return total; }")); again != out {
		t.Errorf("DumpAST() is not deterministic:\n%s\n---\n%s", out, again)
	}
}
