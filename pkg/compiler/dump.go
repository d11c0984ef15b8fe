package compiler

import (
	"regexp"

	"github.com/sanity-io/litter"
)

var dumper = litter.Options{
	StripPackageNames: true,
	HidePrivateFields: true,
	Separator:         " ",
	// the symbol table is rendered separately by SymbolTable.String
	FieldExclusions: regexp.MustCompile(`^Symbols$`),
}

// DumpAST renders the resolved AST. Symbols shared between a declaration
// and its uses print once and are referenced afterwards.
func DumpAST(prog *Program) string {
	return dumper.Sdump(prog.Funcs)
}
