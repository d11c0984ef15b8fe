package compiler

import "fmt"

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr always leaves exactly one value on the data stack.
type Expr interface {
	exprNode()
	String() string
}

// Literal is a compile-time integer constant.
//
//	x = 10;
//	    ^^  Literal{Value: 10}
type Literal struct {
	Value int64
}

func (*Literal) exprNode()        {}
func (l *Literal) String() string { return fmt.Sprintf("%d", l.Value) }

// VarRef is a use of a resolved local variable.
//
//	return x;
//	       ^  VarRef{Name: "x", Sym: <slot of x>}
type VarRef struct {
	Name string
	Sym  *Symbol
}

func (*VarRef) exprNode()        {}
func (v *VarRef) String() string { return v.Name }

// BinaryExpr represents a binary operation: Left Op Right.
//
// Op is one of PLUS, MINUS, STAR, SLASH, EQUALS, NOT_EQ, LESS, LESS_EQ.
// The parser rewrites a > b as b < a and a >= b as b <= a.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// UnaryExpr represents Op Right: MINUS (negation), AND (&x) or STAR (*p).
type UnaryExpr struct {
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s %s)", u.Op, u.Right) }

// Assignment represents Left = Value. It is an expression: its value is
// the stored value. Left is a *VarRef or a dereferencing *UnaryExpr.
type Assignment struct {
	Left  Expr
	Value Expr
}

func (*Assignment) exprNode() {}
func (a *Assignment) String() string {
	return fmt.Sprintf("(%s = %s)", a.Left, a.Value)
}

// FunctionCall represents name(args) with at most MaxParams arguments.
type FunctionCall struct {
	Name string
	Args []Expr
}

func (*FunctionCall) exprNode() {}
func (c *FunctionCall) String() string {
	return fmt.Sprintf("FunctionCall(%s, args=%v)", c.Name, c.Args)
}

//  Statement nodes

// Stmt is implemented by every statement node. Executing a statement leaves
// exactly one value on the data stack.
type Stmt interface {
	stmtNode()
	String() string
}

// ExprStmt represents an expression evaluated as a statement.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}
func (e *ExprStmt) String() string {
	return fmt.Sprintf("ExprStmt(%s)", e.Expr)
}

// NullStmt is the "no value" placeholder left by a declaration without an
// initializer.
type NullStmt struct{}

func (*NullStmt) stmtNode()      {}
func (*NullStmt) String() string { return "NullStmt" }

// ReturnStmt represents  return expr;
type ReturnStmt struct {
	Expr Expr
}

func (*ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	return fmt.Sprintf("ReturnStmt(%s)", r.Expr)
}

// BlockStmt represents { statement; ... } together with the scope holding
// the locals it declares.
type BlockStmt struct {
	Stmts []Stmt
	Scope ScopeID
}

func (*BlockStmt) stmtNode() {}
func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d, scope=%d)", len(b.Stmts), b.Scope)
}

// IfStmt represents if (cond) body [else elseBody]
type IfStmt struct {
	Condition Expr
	Body      Stmt
	ElseBody  Stmt // may be nil
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.ElseBody != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Condition, i.Body, i.ElseBody)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Condition, i.Body)
}

// WhileStmt represents while (cond) body
type WhileStmt struct {
	Condition Expr
	Body      Stmt
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Condition, w.Body)
}

// ForStmt represents for (init; cond; post) body. Any clause may be nil;
// a nil Cond loops forever.
type ForStmt struct {
	Init Expr
	Cond Expr
	Post Expr
	Body Stmt
}

func (*ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%v, cond=%v, post=%v, body=%s)", f.Init, f.Cond, f.Post, f.Body)
}

//  Top level

// FunctionDecl represents int name(params) { body }. Params share the body's
// root scope and occupy its first slots in order.
type FunctionDecl struct {
	Name      string
	Params    []*Symbol
	Body      *BlockStmt
	NumLocals int // parameters plus every local of every nested block
}

func (f *FunctionDecl) String() string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("FunctionDecl(%s, params=%v, locals=%d, body=%s)", f.Name, names, f.NumLocals, f.Body)
}

// Program is one parsed and resolved translation unit.
type Program struct {
	Funcs   []*FunctionDecl
	Symbols *SymbolTable
}
