package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	INTEGER    // decimal integer literal

	// Keywords
	INT    // "int"
	IF     // "if"
	ELSE   // "else"
	WHILE  // "while"
	FOR    // "for"
	RETURN // "return"

	// Paired delimiters
	LBRACE // {
	RBRACE // }
	LPAREN // (
	RPAREN // )

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // * (multiplication, or unary dereference)
	SLASH // /
	AND   // & (unary address-of)

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN     // =
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	LESS_EQ    // <=
	GREATER    // >
	GREATER_EQ // >=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:        "EOF",
	IDENTIFIER: "IDENTIFIER",
	INTEGER:    "INTEGER",
	INT:        "INT",
	IF:         "IF",
	ELSE:       "ELSE",
	WHILE:      "WHILE",
	FOR:        "FOR",
	RETURN:     "RETURN",
	LBRACE:     "LBRACE",
	RBRACE:     "RBRACE",
	LPAREN:     "LPAREN",
	RPAREN:     "RPAREN",
	SEMICOLON:  "SEMICOLON",
	COMMA:      "COMMA",
	PLUS:       "PLUS",
	MINUS:      "MINUS",
	STAR:       "STAR",
	SLASH:      "SLASH",
	AND:        "AND",
	ASSIGN:     "ASSIGN",
	EQUALS:     "EQUALS",
	NOT_EQ:     "NOT_EQ",
	LESS:       "LESS",
	LESS_EQ:    "LESS_EQ",
	GREATER:    "GREATER",
	GREATER_EQ: "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
//
// Lexeme is a substring of the source buffer; it shares the source's storage.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Pos    int    // byte offset of the first character in the source
	Val    int64  // parsed value, INTEGER only
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  offset %d", t.Type, t.Lexeme, t.Pos)
}

// Display renders a token type the way it is written in source, for
// "expected X" messages.
func (tt TokenType) Display() string {
	switch tt {
	case EOF:
		return "end of input"
	case IDENTIFIER:
		return "identifier"
	case INTEGER:
		return "integer"
	}
	for text, kw := range keywords {
		if kw == tt {
			return fmt.Sprintf("%q", text)
		}
	}
	for text, op := range twoCharOps {
		if op == tt {
			return fmt.Sprintf("%q", text)
		}
	}
	for c, op := range oneCharOps {
		if op == tt {
			return fmt.Sprintf("%q", string(c))
		}
	}
	return tt.String()
}

// describe renders the token for "expected X, found Y" messages.
func (t Token) describe() string {
	if t.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Lexeme)
}
