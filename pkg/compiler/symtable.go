package compiler

import (
	"fmt"
	"sort"
	"strings"

	"gojack/pkg/vm"
)

// Kind is the storage class of a declared name.
type Kind int

const (
	KIND_STATIC Kind = iota
	KIND_FIELD
	KIND_ARG
	KIND_VAR

	numKinds
)

var kindNames = [...]string{
	KIND_STATIC: "static",
	KIND_FIELD:  "field",
	KIND_ARG:    "argument",
	KIND_VAR:    "local",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Segment returns the machine segment that holds variables of kind k.
func (k Kind) Segment() vm.Segment {
	switch k {
	case KIND_STATIC:
		return vm.STATIC
	case KIND_FIELD:
		return vm.THIS
	case KIND_ARG:
		return vm.ARGUMENT
	case KIND_VAR:
		return vm.LOCAL
	}
	panic(fmt.Sprintf("compiler: no segment for %s", k))
}

// classLevel reports whether k lives in the class scope.
func (k Kind) classLevel() bool {
	return k == KIND_STATIC || k == KIND_FIELD
}

type Symbol struct {
	Name  string
	Type  string // int, char, boolean or a class name
	Kind  Kind
	Index int // dense per kind, in declaration order
}

type scope struct {
	symbols map[string]Symbol
	counts  [numKinds]int
}

func newScope() scope {
	return scope{symbols: make(map[string]Symbol)}
}

func (sc *scope) lookup(name string) (Symbol, bool) {
	sym, ok := sc.symbols[name]
	return sym, ok
}

// SymbolTable holds the two live scopes of a class compilation.
// Statics and fields go to the class scope, arguments and locals to the
// subroutine scope, which shadows it.
type SymbolTable struct {
	class      scope
	subroutine scope
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{class: newScope(), subroutine: newScope()}
}

// Reset clears both scopes and all counters. Called once per class.
func (s *SymbolTable) Reset() {
	s.class = newScope()
	s.subroutine = newScope()
}

// StartSubroutine clears the subroutine scope and its counters; class-scope
// entries survive.
func (s *SymbolTable) StartSubroutine() {
	s.subroutine = newScope()
}

func (s *SymbolTable) scopeFor(kind Kind) *scope {
	if kind.classLevel() {
		return &s.class
	}
	return &s.subroutine
}

// Define adds name to the scope of kind and gives it the next index of
// that kind. Redefining a name in the same scope replaces the entry but
// still consumes an index.
func (s *SymbolTable) Define(name, typ string, kind Kind) Symbol {
	sc := s.scopeFor(kind)
	sym := Symbol{Name: name, Type: typ, Kind: kind, Index: sc.counts[kind]}
	sc.symbols[name] = sym
	sc.counts[kind]++
	return sym
}

// VarCount returns how many names of kind the owning scope holds.
func (s *SymbolTable) VarCount(kind Kind) int {
	return s.scopeFor(kind).counts[kind]
}

// Lookup resolves name in the subroutine scope, then the class scope.
func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	if sym, ok := s.subroutine.lookup(name); ok {
		return sym, true
	}
	return s.class.lookup(name)
}

func (s *SymbolTable) KindOf(name string) (Kind, bool) {
	sym, ok := s.Lookup(name)
	return sym.Kind, ok
}

func (s *SymbolTable) TypeOf(name string) (string, bool) {
	sym, ok := s.Lookup(name)
	return sym.Type, ok
}

func (s *SymbolTable) IndexOf(name string) (int, bool) {
	sym, ok := s.Lookup(name)
	return sym.Index, ok
}

// String returns a deterministically ordered dump of both scopes.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	writeScope(&sb, "Class", s.class)
	writeScope(&sb, "Subroutine", s.subroutine)
	return sb.String()
}

func writeScope(sb *strings.Builder, title string, sc scope) {
	if len(sc.symbols) == 0 {
		fmt.Fprintf(sb, "%s: (empty)\n", title)
		return
	}
	fmt.Fprintf(sb, "%s:\n", title)
	syms := make([]Symbol, 0, len(sc.symbols))
	for _, sym := range sc.symbols {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].Kind != syms[j].Kind {
			return syms[i].Kind < syms[j].Kind
		}
		return syms[i].Index < syms[j].Index
	})
	for _, sym := range syms {
		fmt.Fprintf(sb, "  %-20s  %-8s %2d  (Type: %s)\n", sym.Name, sym.Kind, sym.Index, sym.Type)
	}
}
