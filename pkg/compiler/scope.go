package compiler

import (
	"fmt"
	"strings"
)

// WordSize is the size in bytes of every variable and stack slot.
const WordSize = 8

// ScopeID indexes a Scope inside a SymbolTable.
type ScopeID int

// NoScope marks a root scope's missing parent.
const NoScope ScopeID = -1

// Symbol is a resolved local variable.
type Symbol struct {
	Name   string
	Offset int // positive distance below the frame pointer, a multiple of WordSize
	Scope  ScopeID
}

// Scope holds the locals one block declares. Parent is a lookup link only;
// blocks own their statements, never their parent.
type Scope struct {
	Parent ScopeID
	Locals []*Symbol // declaration order

	// TotalLocals counts the locals of this scope and every scope nested
	// inside it, updated on each declaration.
	TotalLocals int
}

// SymbolTable is the arena of block scopes for one program.
type SymbolTable struct {
	scopes []Scope
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// NewScope allocates a scope nested in parent (NoScope for a function root).
func (s *SymbolTable) NewScope(parent ScopeID) ScopeID {
	s.scopes = append(s.scopes, Scope{Parent: parent})
	return ScopeID(len(s.scopes) - 1)
}

// Scope returns the scope record for id.
func (s *SymbolTable) Scope(id ScopeID) *Scope {
	return &s.scopes[id]
}

// Len returns the number of scopes allocated so far.
func (s *SymbolTable) Len() int {
	return len(s.scopes)
}

// Root walks the parent chain up to the function root.
func (s *SymbolTable) Root(id ScopeID) ScopeID {
	for s.scopes[id].Parent != NoScope {
		id = s.scopes[id].Parent
	}
	return id
}

// Declare adds name to scope id. It returns the existing symbol and false if
// the same scope already declares name; shadowing an outer scope is allowed.
// Offsets are dense per function: the new symbol takes the slot after every
// local the function has declared so far.
func (s *SymbolTable) Declare(id ScopeID, name string) (*Symbol, bool) {
	if sym := s.lookupIn(id, name); sym != nil {
		return sym, false
	}
	root := s.Root(id)
	sym := &Symbol{
		Name:   name,
		Offset: (s.scopes[root].TotalLocals + 1) * WordSize,
		Scope:  id,
	}
	s.scopes[id].Locals = append(s.scopes[id].Locals, sym)
	for cur := id; cur != NoScope; cur = s.scopes[cur].Parent {
		s.scopes[cur].TotalLocals++
	}
	return sym, true
}

// Lookup resolves name from scope id outwards; the innermost match wins.
func (s *SymbolTable) Lookup(id ScopeID, name string) (*Symbol, bool) {
	for cur := id; cur != NoScope; cur = s.scopes[cur].Parent {
		if sym := s.lookupIn(cur, name); sym != nil {
			return sym, true
		}
	}
	return nil, false
}

func (s *SymbolTable) lookupIn(id ScopeID, name string) *Symbol {
	for _, sym := range s.scopes[id].Locals {
		if sym.Name == name {
			return sym
		}
	}
	return nil
}

// String returns a dump of every scope in allocation order.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.scopes) == 0 {
		return "Scopes: (empty)\n"
	}
	sb.WriteString("Scopes:\n")
	for i, sc := range s.scopes {
		fmt.Fprintf(&sb, "  Scope %d (parent %d, total %d):\n", i, sc.Parent, sc.TotalLocals)
		for _, sym := range sc.Locals {
			fmt.Fprintf(&sb, "    %-20s  Offset: %d\n", sym.Name, sym.Offset)
		}
	}
	return sb.String()
}
