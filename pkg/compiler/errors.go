package compiler

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a user-facing compile error.
type ErrorKind int

const (
	LexicalError  ErrorKind = iota // unrecognized character, bad literal
	SyntaxError                    // expected token not found
	SemanticError                  // scoping, arity and lvalue violations
)

func (k ErrorKind) String() string {
	switch k {
	case LexicalError:
		return "lexical error"
	case SyntaxError:
		return "syntax error"
	case SemanticError:
		return "semantic error"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a compile error pinned to a byte offset in the source.
type Error struct {
	Kind   ErrorKind
	Offset int
	Msg    string

	src string
}

func newError(kind ErrorKind, src string, offset int, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...), src: src}
}

// Position returns the 1-based line and column of the error offset.
func (e *Error) Position() (line, col int) {
	start, _ := e.lineBounds()
	line = strings.Count(e.src[:start], "\n") + 1
	return line, e.clampedOffset() - start + 1
}

func (e *Error) Error() string {
	line, col := e.Position()
	return fmt.Sprintf("line %d, col %d: %s: %s", line, col, e.Kind, e.Msg)
}

// Caret renders the offending source line, a caret under the offending
// character and the message.
//
//	int main() { return x; }
//	                    ^ undeclared variable "x"
func (e *Error) Caret() string {
	start, end := e.lineBounds()
	var sb strings.Builder
	sb.WriteString(e.src[start:end])
	sb.WriteByte('\n')
	for _, c := range e.src[start:e.clampedOffset()] {
		// keep tabs so the caret lines up in a terminal
		if c == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
	}
	sb.WriteString("^ ")
	sb.WriteString(e.Msg)
	return sb.String()
}

func (e *Error) clampedOffset() int {
	if e.Offset < 0 {
		return 0
	}
	if e.Offset > len(e.src) {
		return len(e.src)
	}
	return e.Offset
}

// lineBounds returns the [start, end) byte range of the line holding the offset.
func (e *Error) lineBounds() (int, int) {
	off := e.clampedOffset()
	start := strings.LastIndexByte(e.src[:off], '\n') + 1
	end := strings.IndexByte(e.src[off:], '\n')
	if end < 0 {
		return start, len(e.src)
	}
	return start, off + end
}
