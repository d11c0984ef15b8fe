// Command ccompiler prints every stage of a compilation: the source, its
// tokens, the resolved AST, the generated assembly and the scope table.
package main

import (
	"fmt"
	"os"

	"github.com/morihiro1978/9cc/pkg/compiler"
)

const testSource = `int fib(int n) {
    if (n < 2) return n;
    return fib(n - 1) + fib(n - 2);
}

int main() {
    int limit = 6;
    int *p = &limit;
    return fib(*p);
}
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	// Parse
	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}

	fmt.Println("AST")
	for _, fn := range prog.Funcs {
		fmt.Println(" ", fn)
	}
	fmt.Println()
	fmt.Println(compiler.DumpAST(prog))
	fmt.Println()

	// code generation
	asm, err := compiler.Generate(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(1)
	}

	fmt.Println("Generated Assembly")
	fmt.Print(asm)
	fmt.Println()
	fmt.Print(prog.Symbols)
}
