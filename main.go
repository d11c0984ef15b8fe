package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/morihiro1978/9cc/pkg/asm"
	"github.com/morihiro1978/9cc/pkg/check"
	"github.com/morihiro1978/9cc/pkg/compiler"
	"github.com/morihiro1978/9cc/pkg/cpu"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] '<program source>'\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	dumpTokens := flag.Bool("tokens", false, "print the token stream to stderr")
	dumpAST := flag.Bool("ast", false, "print the resolved AST to stderr")
	runProgram := flag.Bool("run", false, "run the generated program on the emulator; its exit status becomes ours")
	maxSteps := flag.Int64("max-steps", cpu.DefaultMaxSteps, "instruction budget for -run")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "expected exactly one argument")
		flag.Usage()
		os.Exit(1)
	}
	src := flag.Arg(0)

	text, err := compile(src, *dumpTokens, *dumpAST)
	if err != nil {
		report(err)
		os.Exit(1)
	}

	if !*runProgram {
		fmt.Print(text)
		return
	}

	status, err := run(text, *maxSteps)
	if err != nil {
		fmt.Fprintln(os.Stderr, "run failed:", err)
		os.Exit(1)
	}
	os.Exit(status)
}

// compile runs the pipeline stage by stage so intermediate results can be
// dumped on request.
func compile(src string, dumpTokens, dumpAST bool) (string, error) {
	tokens, err := compiler.Lex(src)
	if err != nil {
		return "", err
	}
	if dumpTokens {
		for _, tok := range tokens {
			fmt.Fprintln(os.Stderr, " ", tok)
		}
	}

	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		return "", err
	}
	if dumpAST {
		fmt.Fprintln(os.Stderr, compiler.DumpAST(prog))
	}

	return compiler.Generate(prog)
}

func run(text string, maxSteps int64) (int, error) {
	prog, err := asm.Parse(text)
	if err != nil {
		return 0, fmt.Errorf("assemble: %w", err)
	}
	m := cpu.New(cpu.Config{MaxSteps: maxSteps, Output: os.Stdout, Externs: check.SumExterns()})
	v, err := m.Run(prog)
	if err != nil {
		return 0, err
	}
	return cpu.ExitStatus(v), nil
}

func report(err error) {
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		fmt.Fprintln(os.Stderr, cerr.Caret())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}
