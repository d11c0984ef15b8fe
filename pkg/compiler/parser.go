package compiler

import "github.com/morihiro1978/9cc/pkg/asm"

// MaxParams is the number of integer argument registers; functions and
// calls may not use more.
const MaxParams = 6

// Parser consumes the flat token slice produced by the Lexer and builds an
// AST, resolving every variable use against the enclosing block scopes.
//
// Grammar:
//
//	program        = funcdef* EOF
//	funcdef        = type IDENTIFIER "(" (param ("," param)*)? ")" "{" stmt* "}"
//	param          = type IDENTIFIER
//	type           = "int" "*"*
//	stmt           = expr ";"
//	               | "{" stmt* "}"
//	               | "if" "(" expr ")" stmt ("else" stmt)?
//	               | "while" "(" expr ")" stmt
//	               | "for" "(" expr? ";" expr? ";" expr? ")" stmt
//	               | "return" expr ";"
//	               | type IDENTIFIER ("=" assign)? ";"
//	expr           = assign
//	assign         = equality ("=" assign)?
//	equality       = relational (("==" | "!=") relational)*
//	relational     = additive (("<" | "<=" | ">" | ">=") additive)*
//	additive       = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/") unary)*
//	unary          = ("+" | "-")? primary | ("&" | "*") unary
//	primary        = INTEGER | IDENTIFIER ("(" (expr ("," expr)*)? ")")? | "(" expr ")"
type Parser struct {
	tokens []Token
	pos    int
	src    string

	syms  *SymbolTable
	scope ScopeID // innermost open block
	funcs map[string]bool
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{
		tokens: tokens,
		src:    rawSource,
		syms:   NewSymbolTable(),
		scope:  NoScope,
		funcs:  make(map[string]bool),
	}
}

func (p *Parser) syntaxError(tok Token, format string, args ...any) error {
	return newError(SyntaxError, p.src, tok.Pos, format, args...)
}

func (p *Parser) semanticError(tok Token, format string, args ...any) error {
	return newError(SemanticError, p.src, tok.Pos, format, args...)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF, Pos: len(p.src)}
	}
	return p.tokens[p.pos]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// accept consumes the current token if it matches tt.
func (p *Parser) accept(tt TokenType) bool {
	if p.peek().Type != tt {
		return false
	}
	p.advance()
	return true
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.syntaxError(tok, "expected %s, found %s", tt.Display(), tok.describe())
	}
	return p.advance(), nil
}

// parseType consumes "int" and any pointer stars; there is one word type.
func (p *Parser) parseType() error {
	if _, err := p.expect(INT); err != nil {
		return err
	}
	for p.accept(STAR) {
	}
	return nil
}

// declare binds the identifier token in the current block.
func (p *Parser) declare(nameTok Token) (*Symbol, error) {
	sym, ok := p.syms.Declare(p.scope, nameTok.Lexeme)
	if !ok {
		return nil, p.semanticError(nameTok, "variable %q is already declared in this block", nameTok.Lexeme)
	}
	return sym, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAssign()
}

// parseAssign handles right-associative =
func (p *Parser) parseAssign() (Expr, error) {
	start := p.peek()
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	if !p.accept(ASSIGN) {
		return left, nil
	}
	if !isAddressable(left) {
		return nil, p.semanticError(start, "assignment target is not a variable")
	}
	value, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &Assignment{Left: left, Value: value}, nil
}

// isAddressable reports whether e names a storage location.
func isAddressable(e Expr) bool {
	switch n := e.(type) {
	case *VarRef:
		return true
	case *UnaryExpr:
		return n.Op == STAR
	}
	return false
}

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	expr, err := p.parseRelational()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == EQUALS || p.peek().Type == NOT_EQ {
		op := p.advance().Type
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}

	return expr, nil
}

// parseRelational handles <, <=, > and >=. The greater-than forms swap
// their operands onto LESS / LESS_EQ.
func (p *Parser) parseRelational() (Expr, error) {
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for {
		tt := p.peek().Type
		if tt != LESS && tt != LESS_EQ && tt != GREATER && tt != GREATER_EQ {
			break
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		switch tt {
		case LESS, LESS_EQ:
			expr = &BinaryExpr{Op: tt, Left: expr, Right: right}
		case GREATER:
			expr = &BinaryExpr{Op: LESS, Left: right, Right: expr}
		case GREATER_EQ:
			expr = &BinaryExpr{Op: LESS_EQ, Left: right, Right: expr}
		}
	}

	return expr, nil
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		tt := p.peek().Type
		if tt != PLUS && tt != MINUS {
			break
		}
		op := p.advance().Type
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}

	return expr, nil
}

// parseMultiplicative handles * and /
func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tt := p.peek().Type
		if tt != STAR && tt != SLASH {
			break
		}
		op := p.advance().Type
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}

	return expr, nil
}

// parseUnary handles unary + and - (applied to a primary) and the
// address-of / dereference prefixes (applied to another unary).
func (p *Parser) parseUnary() (Expr, error) {
	switch p.peek().Type {
	case PLUS:
		p.advance()
		return p.parsePrimary()

	case MINUS:
		p.advance()
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: MINUS, Right: operand}, nil

	case AND:
		p.advance()
		start := p.peek()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if !isAddressable(operand) {
			return nil, p.semanticError(start, "cannot take the address of %s", operand)
		}
		return &UnaryExpr{Op: AND, Right: operand}, nil

	case STAR:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: STAR, Right: operand}, nil
	}
	return p.parsePrimary()
}

// parseCallArgs parses the argument list after "(" up to and including ")".
func (p *Parser) parseCallArgs(name Token) ([]Expr, error) {
	var args []Expr
	if p.accept(RPAREN) {
		return args, nil
	}
	for {
		if len(args) == MaxParams {
			return nil, p.semanticError(p.peek(), "call to %s passes more than %d arguments", name.Lexeme, MaxParams)
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if !p.accept(COMMA) {
			break
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parsePrimary handles literals, variables, calls, and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER:
		p.advance()
		return &Literal{Value: tok.Val}, nil

	case IDENTIFIER:
		p.advance()
		if p.accept(LPAREN) {
			if err := p.checkFunctionName(tok); err != nil {
				return nil, err
			}
			args, err := p.parseCallArgs(tok)
			if err != nil {
				return nil, err
			}
			return &FunctionCall{Name: tok.Lexeme, Args: args}, nil
		}
		sym, ok := p.syms.Lookup(p.scope, tok.Lexeme)
		if !ok {
			return nil, p.semanticError(tok, "undeclared variable %q", tok.Lexeme)
		}
		return &VarRef{Name: tok.Lexeme, Sym: sym}, nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.syntaxError(tok, "expected expression, found %s", tok.describe())
	}
}

// parseVarDecl parses  type name [= value] ;
// Without an initializer the declaration yields a NullStmt.
func (p *Parser) parseVarDecl() (Stmt, error) {
	if err := p.parseType(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	sym, err := p.declare(nameTok)
	if err != nil {
		return nil, err
	}

	var stmt Stmt = &NullStmt{}
	if p.accept(ASSIGN) {
		value, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		stmt = &ExprStmt{Expr: &Assignment{Left: &VarRef{Name: sym.Name, Sym: sym}, Value: value}}
	}

	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseReturn parses  return expr ;
// The leading RETURN token has already been consumed by parseStatement.
func (p *Parser) parseReturn() (Stmt, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{Expr: expr}, nil
}

// parseStmtList parses statements into the current scope up to and
// including the closing brace.
func (p *Parser) parseStmtList() ([]Stmt, error) {
	var stmts []Stmt
	for !p.accept(RBRACE) {
		if p.peek().Type == EOF {
			_, err := p.expect(RBRACE)
			return nil, err
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// parseBlock parses { stmt1; stmt2; ... } in a new child scope.
// The leading LBRACE token has already been consumed by parseStatement.
func (p *Parser) parseBlock() (Stmt, error) {
	outer := p.scope
	p.scope = p.syms.NewScope(outer)
	defer func() { p.scope = outer }()

	block := &BlockStmt{Scope: p.scope}
	stmts, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	block.Stmts = stmts
	return block, nil
}

// parseCondition parses ( expr ).
func (p *Parser) parseCondition() (Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return cond, nil
}

// parseIf parses if ( cond ) body [ else elseBody ]
// The leading IF token has already been consumed by parseStatement.
func (p *Parser) parseIf() (Stmt, error) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	var elseBody Stmt
	if p.accept(ELSE) {
		elseBody, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}

	return &IfStmt{Condition: cond, Body: body, ElseBody: elseBody}, nil
}

// parseWhile parses while ( cond ) body
// The leading WHILE token has already been consumed by parseStatement.
func (p *Parser) parseWhile() (Stmt, error) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Condition: cond, Body: body}, nil
}

// parseOptionalExpr parses expr? followed by the terminator token.
func (p *Parser) parseOptionalExpr(terminator TokenType) (Expr, error) {
	if p.accept(terminator) {
		return nil, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(terminator); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseFor parses for ( init; cond; post ) body
// The leading FOR token has already been consumed by parseStatement.
func (p *Parser) parseFor() (Stmt, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	init, err := p.parseOptionalExpr(SEMICOLON)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseOptionalExpr(SEMICOLON)
	if err != nil {
		return nil, err
	}
	post, err := p.parseOptionalExpr(RPAREN)
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ForStmt{Init: init, Cond: cond, Post: post, Body: body}, nil
}

// parseStatement dispatches to the correct sub-parser based on the leading token.
func (p *Parser) parseStatement() (Stmt, error) {
	switch p.peek().Type {
	case LBRACE:
		p.advance()
		return p.parseBlock()

	case IF:
		p.advance()
		return p.parseIf()

	case WHILE:
		p.advance()
		return p.parseWhile()

	case FOR:
		p.advance()
		return p.parseFor()

	case RETURN:
		p.advance()
		return p.parseReturn()

	case INT:
		return p.parseVarDecl()
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr}, nil
}

// parseFunctionDecl parses int name(params) { ... }
// Parameters and the top-level body statements share one root scope.
// checkFunctionName rejects names that the assembler would read as a
// register operand instead of a label.
func (p *Parser) checkFunctionName(tok Token) error {
	if asm.IsRegister(tok.Lexeme) {
		return p.semanticError(tok, "function name %q is a register name", tok.Lexeme)
	}
	return nil
}

func (p *Parser) parseFunctionDecl() (*FunctionDecl, error) {
	if err := p.parseType(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if err := p.checkFunctionName(nameTok); err != nil {
		return nil, err
	}
	if p.funcs[nameTok.Lexeme] {
		return nil, p.semanticError(nameTok, "function %q is already defined", nameTok.Lexeme)
	}
	p.funcs[nameTok.Lexeme] = true

	root := p.syms.NewScope(NoScope)
	p.scope = root
	defer func() { p.scope = NoScope }()

	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var params []*Symbol
	if !p.accept(RPAREN) {
		for {
			if len(params) == MaxParams {
				return nil, p.semanticError(p.peek(), "function %s declares more than %d parameters", nameTok.Lexeme, MaxParams)
			}
			if err := p.parseType(); err != nil {
				return nil, err
			}
			paramTok, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			sym, err := p.declare(paramTok)
			if err != nil {
				return nil, err
			}
			params = append(params, sym)

			if !p.accept(COMMA) {
				break
			}
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	stmts, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}

	return &FunctionDecl{
		Name:      nameTok.Lexeme,
		Params:    params,
		Body:      &BlockStmt{Stmts: stmts, Scope: root},
		NumLocals: p.syms.Scope(root).TotalLocals,
	}, nil
}

// Parse builds the program: function definitions only at the top level.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	p := NewParser(tokens, rawSource)
	prog := &Program{Symbols: p.syms}
	for p.peek().Type != EOF {
		f, err := p.parseFunctionDecl()
		if err != nil {
			return nil, err
		}
		prog.Funcs = append(prog.Funcs, f)
	}
	return prog, nil
}
