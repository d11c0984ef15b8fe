package compiler

import "fmt"

// Compile runs the whole pipeline over src and returns the assembly text.
// User-facing failures are *Error values; nothing is printed.
func Compile(src string) (string, error) {
	tokens, err := Lex(src)
	if err != nil {
		return "", err
	}

	prog, err := Parse(tokens, src)
	if err != nil {
		return "", err
	}

	assembly, err := Generate(prog)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return assembly, nil
}
