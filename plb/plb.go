// Package plb contains the symbol table for the PL/0 compiler.
//
// Definition of the data type Symbol, which records one declaration, and of
// the append-only Table. Scope is represented by a back-reference from each
// symbol to its enclosing procedure's symbol; lookup walks this chain so
// that the nearest enclosing declaration wins.
package plb

type Class int

// class values
const (
	ClassConst Class = iota
	ClassVar
	ClassProc
)

var classNames = [...]string{
	ClassConst: "const",
	ClassVar:   "var",
	ClassProc:  "procedure",
}

func (c Class) String() string {
	if c >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// Symbol is one declaration record. Lev is the nesting depth at the point
// of declaration, 0 for the outermost block. Scope points to the symbol of
// the enclosing procedure; nil means the global scope.
//
// The meaning of Val and Adr per class:
//
//	Class        Val     Adr
//	---------------------------------------
//	ClassConst   value   -
//	ClassVar     -       frame slot
//	ClassProc    -       entry code index
type Symbol struct {
	Name  string
	Class Class
	Lev   int32
	Scope *Symbol
	Val   int32
	Adr   int32
}

// Table is an ordered, append-only collection of symbols. Symbols are never
// removed on scope exit; Lookup disambiguates by scope chain instead.
type Table struct {
	syms []*Symbol
}

func NewTable() *Table {
	return &Table{}
}

// Insert appends sym unconditionally. Redeclaration is not detected; a later
// declaration shadows an earlier one with the same name in the same chain.
func (t *Table) Insert(sym *Symbol) {
	t.syms = append(t.syms, sym)
}

// Lookup finds the most recently inserted symbol with the given name that
// was declared in scope or in one of its enclosing scopes. It returns nil
// if no such symbol exists.
func (t *Table) Lookup(name string, scope *Symbol) *Symbol {
	for i := len(t.syms) - 1; i >= 0; i-- {
		x := t.syms[i]
		if x.Name != name {
			continue
		}
		for s := scope; ; s = s.Scope {
			if x.Scope == s {
				return x
			}
			if s == nil {
				break
			}
		}
	}
	return nil
}

// Len returns the number of declared symbols.
func (t *Table) Len() int {
	return len(t.syms)
}
