package compiler

import (
	"strconv"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"int":    INT,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
	"return": RETURN,
}

// twoCharOps are matched before their one-character prefixes.
var twoCharOps = map[string]TokenType{
	"<=": LESS_EQ,
	">=": GREATER_EQ,
	"==": EQUALS,
	"!=": NOT_EQ,
}

var oneCharOps = map[byte]TokenType{
	'+': PLUS,
	'-': MINUS,
	'*': STAR,
	'/': SLASH,
	'(': LPAREN,
	')': RPAREN,
	'>': GREATER,
	'<': LESS,
	'=': ASSIGN,
	';': SEMICOLON,
	'{': LBRACE,
	'}': RBRACE,
	',': COMMA,
	'&': AND,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src string
	pos int // index of the next byte to consume
}

func newLexer(src string) *Lexer {
	return &Lexer{src: src}
}

// peek returns the byte at the current position without advancing.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the byte one position ahead of the current position.
func (l *Lexer) peek2() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentCont(c byte) bool { return isIdentStart(c) || isDigit(c) }

// skipTrivia discards whitespace and both comment styles.
func (l *Lexer) skipTrivia() error {
	for l.pos < len(l.src) {
		switch {
		case isSpace(l.peek()):
			l.pos++
		case l.peek() == '/' && l.peek2() == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.pos++
			}
		case l.peek() == '/' && l.peek2() == '*':
			start := l.pos
			l.pos += 2
			for {
				if l.pos >= len(l.src) {
					return newError(LexicalError, l.src, start, "unterminated block comment")
				}
				if l.peek() == '*' && l.peek2() == '/' {
					l.pos += 2
					break
				}
				l.pos++
			}
		default:
			return nil
		}
	}
	return nil
}

// scanIdent collects the longest identifier run, then classifies it. A
// keyword only matches when the whole run spells it, so "forever" stays an
// identifier.
func (l *Lexer) scanIdent() Token {
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		l.pos++
	}
	lexeme := l.src[start:l.pos]
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Pos: start}
}

// scanInt collects a maximal run of decimal digits.
func (l *Lexer) scanInt() (Token, error) {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.pos++
	}
	lexeme := l.src[start:l.pos]
	val, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return Token{}, newError(LexicalError, l.src, start, "integer literal %s out of range", lexeme)
	}
	return Token{Type: INTEGER, Lexeme: lexeme, Pos: start, Val: val}, nil
}

// nextToken skips trivia and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Pos: l.pos}, nil
	}

	start := l.pos
	if l.pos+2 <= len(l.src) {
		if tt, ok := twoCharOps[l.src[start:start+2]]; ok {
			l.pos += 2
			return Token{Type: tt, Lexeme: l.src[start:l.pos], Pos: start}, nil
		}
	}
	if tt, ok := oneCharOps[l.peek()]; ok {
		l.pos++
		return Token{Type: tt, Lexeme: l.src[start:l.pos], Pos: start}, nil
	}

	ch := l.peek()
	if isIdentStart(ch) {
		return l.scanIdent(), nil
	}
	if isDigit(ch) {
		return l.scanInt()
	}
	return Token{}, newError(LexicalError, l.src, start, "unexpected character %q", ch)
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil *Error on the first illegal character.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
