package asm

import "kestrel/value"

// Code is the output of compiling one function
type Code struct {
	Name       string
	ParamCount int
	LocalCount int

	// ContextSlots is the number of heap context slots the function
	// allocates on entry; ContextNames names them for dynamic lookup.
	ContextSlots int
	ContextNames []string

	Instrs    []Instr
	Constants []any

	// DeferredStart is the index of the first out-of-line instruction
	DeferredStart int
}

// ObjectBoilerplate describes an object literal. Values that are not
// compile-time constants hold the hole and are stored by generated code.
type ObjectBoilerplate struct {
	Keys   []value.Constant
	Values []value.Constant
}

// ArrayBoilerplate describes an array literal, with holes for computed
// elements.
type ArrayBoilerplate struct {
	Values []value.Constant
}

// NameList is a list of names, used to declare globals
type NameList []string

// Size returns the number of real instructions, comments excluded
func (c *Code) Size() int {
	n := 0
	for i := range c.Instrs {
		if c.Instrs[i].Op != OP_COMMENT {
			n++
		}
	}
	return n
}

// Functions returns the nested function codes referenced from the pool
func (c *Code) Functions() []*Code {
	var out []*Code
	for _, k := range c.Constants {
		if fn, ok := k.(*Code); ok {
			out = append(out, fn)
		}
	}
	return out
}
