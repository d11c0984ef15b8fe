package asm

import "fmt"

// StackEffect statically counts pushes minus pops over Instrs[from:to].
//
// The count runs linearly through the region. A label reached for the first
// time records the current depth; every later jump to it, and every
// fall-through into it, must arrive at that same depth. Code after an
// unconditional jmp resumes from the recorded depth of the next label, or
// keeps the linear count when that label has not been seen. Jumps that
// leave the region are not checked.
//
// rsp adjustments other than push and pop (sub, and) are ignored and
// "pop rsp" counts as a pop, which matches the call-site realignment
// sequence the compiler emits.
func (prog *Program) StackEffect(from, to int) (int, error) {
	if from < 0 || to > len(prog.Instrs) || from > to {
		return 0, fmt.Errorf("stack effect: range [%d, %d) outside program of %d instructions", from, to, len(prog.Instrs))
	}

	labelsAt := make(map[int][]string)
	for name, idx := range prog.Labels {
		labelsAt[idx] = append(labelsAt[idx], name)
	}

	depthAt := make(map[string]int)
	depth := 0
	reachable := true

	arrive := func(name string, d int, line int) error {
		if want, ok := depthAt[name]; ok {
			if want != d {
				return fmt.Errorf("stack effect: line %d reaches %s at depth %d, recorded %d", line, name, d, want)
			}
			return nil
		}
		depthAt[name] = d
		return nil
	}

	enter := func(i int, line int) error {
		names := labelsAt[i]
		if !reachable && len(names) > 0 {
			for _, name := range names {
				if want, ok := depthAt[name]; ok {
					depth = want
					break
				}
			}
			reachable = true
		}
		for _, name := range names {
			if err := arrive(name, depth, line); err != nil {
				return err
			}
		}
		return nil
	}

	for i := from; i < to; i++ {
		in := prog.Instrs[i]
		if err := enter(i, in.Line); err != nil {
			return 0, err
		}

		switch in.Op {
		case "push":
			depth++
		case "pop":
			depth--
		case "jmp", "je", "jne":
			target := in.Args[0].Label
			if idx := prog.Labels[target]; idx >= from && idx <= to {
				if err := arrive(target, depth, in.Line); err != nil {
					return 0, err
				}
			}
			if in.Op == "jmp" {
				reachable = false
			}
		}
	}
	if err := enter(to, 0); err != nil {
		return 0, err
	}
	return depth, nil
}

// StackEffect counts the stack effect of a straight instruction list with
// no label bookkeeping.
func StackEffect(instrs []Instr) int {
	depth := 0
	for _, in := range instrs {
		switch in.Op {
		case "push":
			depth++
		case "pop":
			depth--
		}
	}
	return depth
}
