package codegen

import (
	"fmt"

	"kestrel/asm"
	"kestrel/value"
)

// ElementKind says where a frame element's value lives
type ElementKind uint8

const (
	ElementInvalid ElementKind = iota
	ElementMemory
	ElementRegister
	ElementConstant
	ElementCopy
)

var elementKindNames = [...]string{"invalid", "memory", "register", "constant", "copy"}

func (k ElementKind) String() string {
	if int(k) < len(elementKindNames) {
		return elementKindNames[k]
	}
	return "element?"
}

// FrameElement describes one slot of the virtual frame. A synced element
// also has its current value in its stack slot. A copy refers to the
// element at Index below it; the backing element is marked Copied.
type FrameElement struct {
	Kind   ElementKind
	Synced bool
	Copied bool
	Reg    asm.Register
	Const  value.Constant
	Index  int
}

func memoryElement() FrameElement { return FrameElement{Kind: ElementMemory, Synced: true, Reg: asm.NoReg} }

func registerElement(r asm.Register, synced bool) FrameElement {
	return FrameElement{Kind: ElementRegister, Synced: synced, Reg: r}
}

func constantElement(c value.Constant, synced bool) FrameElement {
	return FrameElement{Kind: ElementConstant, Synced: synced, Const: c, Reg: asm.NoReg}
}

func copyElement(index int) FrameElement {
	return FrameElement{Kind: ElementCopy, Index: index, Reg: asm.NoReg}
}

func (e FrameElement) IsMemory() bool   { return e.Kind == ElementMemory }
func (e FrameElement) IsRegister() bool { return e.Kind == ElementRegister }
func (e FrameElement) IsConstant() bool { return e.Kind == ElementConstant }
func (e FrameElement) IsCopy() bool     { return e.Kind == ElementCopy }

func (e FrameElement) Equals(o FrameElement) bool {
	if e.Kind != o.Kind || e.Synced != o.Synced {
		return false
	}
	switch e.Kind {
	case ElementRegister:
		return e.Reg == o.Reg
	case ElementConstant:
		return e.Const.Equal(o.Const)
	case ElementCopy:
		return e.Index == o.Index
	}
	return true
}

func (e FrameElement) String() string {
	var s string
	switch e.Kind {
	case ElementRegister:
		s = e.Reg.String()
	case ElementConstant:
		s = e.Const.String()
	case ElementCopy:
		s = fmt.Sprintf("copy(%d)", e.Index)
	default:
		s = e.Kind.String()
	}
	if e.Synced && e.Kind != ElementMemory {
		s += "*"
	}
	return s
}
