package ast

// SlotKind says where a variable lives at run time
type SlotKind uint8

const (
	SlotNone SlotKind = iota
	SlotParameter
	SlotLocal
	SlotContext // heap context slot, reached through the context chain
	SlotLookup  // resolved by name at run time (inside 'with')
	SlotGlobal  // property of the global object
)

func (k SlotKind) String() string {
	switch k {
	case SlotParameter:
		return "parameter"
	case SlotLocal:
		return "local"
	case SlotContext:
		return "context"
	case SlotLookup:
		return "lookup"
	case SlotGlobal:
		return "global"
	}
	return "none"
}

// Slot is a resolved variable location
type Slot struct {
	Kind  SlotKind
	Index int
}

// Variable is a declared or referenced name. Many VariableProxy nodes may
// point at the same Variable.
type Variable struct {
	Name  string
	Scope *Scope
	Slot  Slot

	IsParameter    bool
	ParameterIndex int
	// Captured is set when an inner function references the variable.
	Captured bool
}

// IsStackAllocated reports whether the variable lives in the frame
func (v *Variable) IsStackAllocated() bool {
	return v.Slot.Kind == SlotParameter || v.Slot.Kind == SlotLocal
}

// ScopeKind distinguishes the global script scope from function scopes
type ScopeKind uint8

const (
	GlobalScope ScopeKind = iota
	FunctionScope
)

// Scope holds the declarations of one function
type Scope struct {
	Kind  ScopeKind
	Outer *Scope

	Params []*Variable
	Locals []*Variable // declared with var, function or catch, in order

	// ContainsWith is set when a with statement appears directly in
	// this function. Every variable of such a function is heap allocated.
	ContainsWith bool

	NumStackLocals  int
	NumContextSlots int
	ContextNames    []string

	// Globals declared by the script scope
	GlobalNames []string
}

// NeedsContext reports whether the function allocates a heap context on entry
func (s *Scope) NeedsContext() bool { return s.NumContextSlots > 0 }

// IsGlobal reports whether s is the script scope
func (s *Scope) IsGlobal() bool { return s.Kind == GlobalScope }

// ContextChainLength returns the number of context hops from the context
// current in s to the context of target. Scopes without a heap context do
// not count.
func (s *Scope) ContextChainLength(target *Scope) int {
	n := 0
	for cur := s; cur != target; cur = cur.Outer {
		if cur == nil {
			panic("ast: target scope is not an outer scope")
		}
		if cur.NeedsContext() {
			n++
		}
	}
	return n
}
