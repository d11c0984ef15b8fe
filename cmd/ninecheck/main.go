package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/morihiro1978/9cc/pkg/check"
	"github.com/morihiro1978/9cc/pkg/cpu"
)

func main() {
	workers := flag.Int("j", runtime.GOMAXPROCS(0), "number of cases to run at once")
	maxSteps := flag.Int64("max-steps", cpu.DefaultMaxSteps, "instruction budget per case")
	verbose := flag.Bool("v", false, "print a line for every case, not only failures")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <cases file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read error:", err)
		os.Exit(1)
	}
	cases, err := check.ParseCases(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := check.Run(ctx, cases, check.Options{
		Workers:  *workers,
		MaxSteps: *maxSteps,
		Externs:  check.SumExterns(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "interrupted:", err)
		os.Exit(1)
	}

	for _, r := range results {
		if *verbose || !r.Passed() {
			fmt.Println(r)
		}
	}

	failed := len(check.Failed(results))
	fmt.Printf("%d passed, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
