// Package check compiles and runs batches of small programs and compares
// each program's exit status with the expected one.
package check

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/morihiro1978/9cc/pkg/asm"
	"github.com/morihiro1978/9cc/pkg/compiler"
	"github.com/morihiro1978/9cc/pkg/cpu"
)

// Case is one program and the exit status it must produce.
type Case struct {
	Name   string
	Source string
	Want   int
}

// Result is the outcome of running one Case.
type Result struct {
	Case   Case
	Got    int    // exit status, valid when Err is nil
	Output string // text printed by host routines
	Err    error  // compile error or runtime fault
}

// Passed reports whether the case ran and produced the expected status.
func (r Result) Passed() bool {
	return r.Err == nil && r.Got == r.Case.Want
}

func (r Result) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("FAIL %s: %v", r.Case.Name, r.Err)
	case !r.Passed():
		return fmt.Sprintf("FAIL %s: expected %d, got %d", r.Case.Name, r.Case.Want, r.Got)
	}
	return fmt.Sprintf("ok   %s => %d", r.Case.Name, r.Got)
}

// Options controls Run. The zero value is usable.
type Options struct {
	Workers  int   // concurrent cases, GOMAXPROCS when zero
	MaxSteps int64 // per-case instruction budget, cpu.DefaultMaxSteps when zero
	Externs  map[string]cpu.Extern
}

// ParseCases reads one case per line in the form
//
//	<want> <source>
//
// where a space or a tab separates the two fields. Blank lines and lines
// starting with # are skipped. A case is named after its line number.
func ParseCases(r io.Reader) ([]Case, error) {
	var cases []Case
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := strings.IndexAny(line, " \t")
		if sep < 0 {
			return nil, fmt.Errorf("line %d: expected \"<want> <source>\"", lineNo)
		}
		wantText, src := line[:sep], line[sep+1:]
		want, err := strconv.Atoi(wantText)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid exit status %q", lineNo, wantText)
		}
		if want < 0 || want > 255 {
			return nil, fmt.Errorf("line %d: exit status %d out of range 0-255", lineNo, want)
		}
		cases = append(cases, Case{
			Name:   fmt.Sprintf("line %d", lineNo),
			Source: strings.TrimSpace(src),
			Want:   want,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return cases, nil
}

// Run executes every case and returns the results in input order. A
// failing case is recorded in its Result; the returned error is non-nil
// only when ctx ends before all cases ran.
func Run(ctx context.Context, cases []Case, opts Options) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, c := range cases {
		i, c := i, c // per-iteration copies (Go 1.22 loopvar semantics)
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runCase(c, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func runCase(c Case, opts Options) Result {
	res := Result{Case: c}

	text, err := compiler.Compile(c.Source)
	if err != nil {
		res.Err = err
		return res
	}
	prog, err := asm.Parse(text)
	if err != nil {
		res.Err = fmt.Errorf("assemble: %w", err)
		return res
	}

	var out strings.Builder
	m := cpu.New(cpu.Config{MaxSteps: opts.MaxSteps, Output: &out, Externs: opts.Externs})
	v, err := m.Run(prog)
	res.Output = out.String()
	if err != nil {
		res.Err = fmt.Errorf("run: %w", err)
		return res
	}
	res.Got = cpu.ExitStatus(v)
	return res
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// IsCompileError reports whether a result failed before execution.
func IsCompileError(r Result) bool {
	var cerr *compiler.Error
	return errors.As(r.Err, &cerr)
}

// SumExterns returns host routines func0 through func6. funcN prints its
// N arguments on one line and returns their sum.
func SumExterns() map[string]cpu.Extern {
	externs := make(map[string]cpu.Extern, 7)
	for n := 0; n <= 6; n++ {
		n := n // per-iteration copy (Go 1.22 loopvar semantics)
		externs[fmt.Sprintf("func%d", n)] = func(m *cpu.Machine, args [6]int64) int64 {
			var sum int64
			parts := make([]string, n)
			for i := 0; i < n; i++ {
				sum += args[i]
				parts[i] = strconv.FormatInt(args[i], 10)
			}
			w := m.Output
			if w == nil {
				w = os.Stdout
			}
			fmt.Fprintf(w, "func%d(%s)\n", n, strings.Join(parts, ", "))
			return sum
		}
	}
	return externs
}
