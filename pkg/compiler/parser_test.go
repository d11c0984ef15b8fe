package compiler

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func parseSource(t *testing.T, src string) *Program {
	t.Helper()
	tokens, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	prog, err := Parse(tokens, src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return prog
}

func sym(name string, offset int, scope ScopeID) *Symbol {
	return &Symbol{Name: name, Offset: offset, Scope: scope}
}

func ref(s *Symbol) *VarRef {
	return &VarRef{Name: s.Name, Sym: s}
}

// TestParse verifies that Parse produces the correct AST for valid inputs.
func TestParse(t *testing.T) {
	x := sym("x", 8, 0)
	inner := sym("x", 16, 1)
	p := sym("p", 16, 0)
	a, b := sym("a", 8, 0), sym("b", 16, 0)

	tests := []struct {
		name     string
		input    string
		expected []*FunctionDecl
	}{
		{
			name:  "Empty Function",
			input: "int main() {}",
			expected: []*FunctionDecl{
				{Name: "main", Body: &BlockStmt{Scope: 0}},
			},
		},
		{
			name:  "Declaration Without Initializer",
			input: "int main() { int x; x = 20; return x; }",
			expected: []*FunctionDecl{
				{Name: "main", NumLocals: 1, Body: &BlockStmt{Scope: 0, Stmts: []Stmt{
					&NullStmt{},
					&ExprStmt{Expr: &Assignment{Left: ref(x), Value: &Literal{Value: 20}}},
					&ReturnStmt{Expr: ref(x)},
				}}},
			},
		},
		{
			name:  "Pointer Declaration",
			input: "int main() { int x = 5; int *p = &x; *p = 9; }",
			expected: []*FunctionDecl{
				{Name: "main", NumLocals: 2, Body: &BlockStmt{Scope: 0, Stmts: []Stmt{
					&ExprStmt{Expr: &Assignment{Left: ref(x), Value: &Literal{Value: 5}}},
					&ExprStmt{Expr: &Assignment{Left: ref(p), Value: &UnaryExpr{Op: AND, Right: ref(x)}}},
					&ExprStmt{Expr: &Assignment{
						Left:  &UnaryExpr{Op: STAR, Right: ref(p)},
						Value: &Literal{Value: 9},
					}},
				}}},
			},
		},
		{
			name:  "Shadowing In Nested Block",
			input: "int main() { int x = 1; { int x = 2; } return x; }",
			expected: []*FunctionDecl{
				{Name: "main", NumLocals: 2, Body: &BlockStmt{Scope: 0, Stmts: []Stmt{
					&ExprStmt{Expr: &Assignment{Left: ref(x), Value: &Literal{Value: 1}}},
					&BlockStmt{Scope: 1, Stmts: []Stmt{
						&ExprStmt{Expr: &Assignment{Left: ref(inner), Value: &Literal{Value: 2}}},
					}},
					&ReturnStmt{Expr: ref(x)},
				}}},
			},
		},
		{
			name:  "Parameters",
			input: "int add(int a, int b) { return a + b; }",
			expected: []*FunctionDecl{
				{Name: "add", Params: []*Symbol{a, b}, NumLocals: 2, Body: &BlockStmt{Scope: 0, Stmts: []Stmt{
					&ReturnStmt{Expr: &BinaryExpr{Op: PLUS, Left: ref(a), Right: ref(b)}},
				}}},
			},
		},
		{
			name:  "Function Call",
			input: "int main() { foo(1, bar()); }",
			expected: []*FunctionDecl{
				{Name: "main", Body: &BlockStmt{Scope: 0, Stmts: []Stmt{
					&ExprStmt{Expr: &FunctionCall{
						Name: "foo",
						Args: []Expr{
							&Literal{Value: 1},
							&FunctionCall{Name: "bar"},
						},
					}},
				}}},
			},
		},
		{
			name:  "If Else",
			input: "int main() { if (1 == 2) return 3; else return 4; }",
			expected: []*FunctionDecl{
				{Name: "main", Body: &BlockStmt{Scope: 0, Stmts: []Stmt{
					&IfStmt{
						Condition: &BinaryExpr{Op: EQUALS, Left: &Literal{Value: 1}, Right: &Literal{Value: 2}},
						Body:      &ReturnStmt{Expr: &Literal{Value: 3}},
						ElseBody:  &ReturnStmt{Expr: &Literal{Value: 4}},
					},
				}}},
			},
		},
		{
			name:  "While",
			input: "int main() { while (1) {} }",
			expected: []*FunctionDecl{
				{Name: "main", Body: &BlockStmt{Scope: 0, Stmts: []Stmt{
					&WhileStmt{Condition: &Literal{Value: 1}, Body: &BlockStmt{Scope: 1}},
				}}},
			},
		},
		{
			name:  "For With Empty Clauses",
			input: "int main() { for (;;) return 1; }",
			expected: []*FunctionDecl{
				{Name: "main", Body: &BlockStmt{Scope: 0, Stmts: []Stmt{
					&ForStmt{Body: &ReturnStmt{Expr: &Literal{Value: 1}}},
				}}},
			},
		},
		{
			name:  "Two Functions",
			input: "int one() { return 1; } int two() { return 2; }",
			expected: []*FunctionDecl{
				{Name: "one", Body: &BlockStmt{Scope: 0, Stmts: []Stmt{&ReturnStmt{Expr: &Literal{Value: 1}}}}},
				{Name: "two", Body: &BlockStmt{Scope: 1, Stmts: []Stmt{&ReturnStmt{Expr: &Literal{Value: 2}}}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := parseSource(t, tt.input)
			if !reflect.DeepEqual(prog.Funcs, tt.expected) {
				t.Errorf("Parse() got:\n%v\nwant:\n%v", DumpAST(prog), DumpAST(&Program{Funcs: tt.expected}))
			}
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "(1 PLUS (2 STAR 3))"},
		{"2 - 3 - 4", "((2 MINUS 3) MINUS 4)"},
		{"8 / 4 / 2", "((8 SLASH 4) SLASH 2)"},
		{"(1 + 2) * 3", "((1 PLUS 2) STAR 3)"},
		{"1 < 2 == 3 < 4", "((1 LESS 2) EQUALS (3 LESS 4))"},
		{"1 + 2 < 3", "((1 PLUS 2) LESS 3)"},
		{"-1 * 2", "((MINUS 1) STAR 2)"},
		{"+5", "5"},
		{"1 != 2", "(1 NOT_EQ 2)"},
	}

	for _, tt := range tests {
		prog := parseSource(t, "int main() { return "+tt.expr+"; }")
		ret := prog.Funcs[0].Body.Stmts[0].(*ReturnStmt)
		if got := ret.Expr.String(); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.expr, got, tt.want)
		}
	}
}

func TestParseComparisonNormalization(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 > 2", "(2 LESS 1)"},
		{"1 >= 2", "(2 LESS_EQ 1)"},
		{"1 < 2", "(1 LESS 2)"},
		{"1 <= 2", "(1 LESS_EQ 2)"},
	}
	for _, tt := range tests {
		prog := parseSource(t, "int main() { return "+tt.expr+"; }")
		ret := prog.Funcs[0].Body.Stmts[0].(*ReturnStmt)
		if got := ret.Expr.String(); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.expr, got, tt.want)
		}
	}
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	prog := parseSource(t, "int main() { int a; int b; a = b = 3; }")
	stmt := prog.Funcs[0].Body.Stmts[2].(*ExprStmt)
	outer, ok := stmt.Expr.(*Assignment)
	if !ok {
		t.Fatalf("got %T, want *Assignment", stmt.Expr)
	}
	if _, ok := outer.Value.(*Assignment); !ok {
		t.Errorf("value of a = ... is %T, want *Assignment", outer.Value)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		kind   ErrorKind
		offset int
		msg    string
	}{
		{"Undeclared variable", "int main() { return x; }", SemanticError, 20, `undeclared variable "x"`},
		{"Duplicate declaration", "int main() { int x; int x; }", SemanticError, 24, `"x" is already declared`},
		{"Parameter redeclared in body", "int main(int a) { int a; }", SemanticError, 22, `"a" is already declared`},
		{"Out of scope after block", "int main() { { int y; } return y; }", SemanticError, 31, `undeclared variable "y"`},
		{"Seven parameters", "int f(int a, int b, int c, int d, int e, int g, int h) { return 0; }", SemanticError, 48, "more than 6 parameters"},
		{"Seven arguments", "int main() { return f(1,2,3,4,5,6,7); }", SemanticError, 34, "more than 6 arguments"},
		{"Assign to literal", "int main() { 1 = 2; }", SemanticError, 13, "assignment target is not a variable"},
		{"Assign to sum", "int main() { int a; a + 1 = 2; }", SemanticError, 20, "assignment target is not a variable"},
		{"Address of literal", "int main() { return &1; }", SemanticError, 21, "cannot take the address"},
		{"Duplicate function", "int f() { return 1; } int f() { return 2; }", SemanticError, 26, `function "f" is already defined`},
		{"Function named like a register", "int rdi() { return 3; }", SemanticError, 4, `function name "rdi" is a register name`},
		{"Call to a register name", "int main() { return al(); }", SemanticError, 20, `function name "al" is a register name`},
		{"Missing semicolon", "int main() { return 1 }", SyntaxError, 22, `expected ";", found "}"`},
		{"Top-level statement", "return 1;", SyntaxError, 0, `expected "int", found "return"`},
		{"Unclosed body", "int main() { return 1;", SyntaxError, 22, `expected "}", found end of input`},
		{"Missing expression", "int main() { return ; }", SyntaxError, 20, `expected expression, found ";"`},
		{"Missing parameter name", "int f(int) { return 1; }", SyntaxError, 9, `expected identifier, found ")"`},
		{"Missing condition paren", "int main() { if 1 return 2; }", SyntaxError, 16, `expected "(", found "1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.input)
			if err != nil {
				t.Fatalf("Lex() error = %v", err)
			}
			_, err = Parse(tokens, tt.input)
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("Parse() error = %v, want *Error", err)
			}
			if cerr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", cerr.Kind, tt.kind)
			}
			if cerr.Offset != tt.offset {
				t.Errorf("Offset = %d, want %d (%s)", cerr.Offset, tt.offset, cerr)
			}
			if !strings.Contains(cerr.Msg, tt.msg) {
				t.Errorf("Msg = %q, want it to contain %q", cerr.Msg, tt.msg)
			}
		})
	}
}

func TestParseSixParameters(t *testing.T) {
	prog := parseSource(t, "int f(int a, int b, int c, int d, int e, int g) { return a; }")
	f := prog.Funcs[0]
	if len(f.Params) != MaxParams {
		t.Fatalf("got %d params, want %d", len(f.Params), MaxParams)
	}
	for i, p := range f.Params {
		if want := (i + 1) * WordSize; p.Offset != want {
			t.Errorf("param %s offset = %d, want %d", p.Name, p.Offset, want)
		}
	}
}

func TestParseTypeStars(t *testing.T) {
	prog := parseSource(t, "int **f(int *p) { int ***q; return p; }")
	if got := prog.Funcs[0].NumLocals; got != 2 {
		t.Errorf("NumLocals = %d, want 2", got)
	}
}
