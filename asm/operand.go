package asm

import (
	"fmt"
	"strings"

	"kestrel/value"
)

// OperandKind says how an instruction operand is addressed
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandConstant // constant pool entry, linked at load time
	OperandMemory
	OperandExternal
)

// External names a machine-global word
type External uint8

const (
	ExtStackLimit External = iota
	ExtHandler
)

func (e External) String() string {
	switch e {
	case ExtStackLimit:
		return "stack_limit"
	case ExtHandler:
		return "handler"
	}
	return "external?"
}

// Operand is a register, immediate, constant pool reference or memory
// reference [base + index + disp] in word units. With a stack base (EBP or
// ESP) memory addresses the machine stack; with any other base the
// register holds a tagged heap pointer and disp selects a field.
type Operand struct {
	Kind     OperandKind
	Reg      Register // register operand, or memory base
	Index    Register // memory index, NoReg when absent
	SmiIndex bool     // index holds a smi and is untagged before use
	Disp     int32
	Imm      value.Word
	Pool     int
	Ext      External
}

// Reg makes a register operand.
func Reg(r Register) Operand { return Operand{Kind: OperandRegister, Reg: r, Index: NoReg} }

// Imm makes an immediate operand holding a raw word.
func Imm(w value.Word) Operand { return Operand{Kind: OperandImmediate, Imm: w, Index: NoReg} }

// Int makes an immediate from a signed integer.
func Int(v int32) Operand { return Imm(value.Word(uint32(v))) }

// Smi makes an immediate holding a tagged small integer.
func Smi(v int32) Operand { return Imm(value.SmiFromInt(v)) }

// Pool makes a constant pool operand.
func Pool(i int) Operand { return Operand{Kind: OperandConstant, Pool: i, Index: NoReg} }

// Mem makes a [base + disp] memory operand.
func Mem(base Register, disp int32) Operand {
	return Operand{Kind: OperandMemory, Reg: base, Index: NoReg, Disp: disp}
}

// MemIndex makes a [base + index + disp] memory operand.
func MemIndex(base, index Register, smiIndex bool, disp int32) Operand {
	return Operand{Kind: OperandMemory, Reg: base, Index: index, SmiIndex: smiIndex, Disp: disp}
}

// Ext makes an external word operand.
func Ext(e External) Operand { return Operand{Kind: OperandExternal, Ext: e, Index: NoReg} }

func (o Operand) IsRegister() bool   { return o.Kind == OperandRegister }
func (o Operand) IsImmediate() bool  { return o.Kind == OperandImmediate }
func (o Operand) IsMemory() bool     { return o.Kind == OperandMemory }
func (o Operand) IsStackMemory() bool {
	return o.Kind == OperandMemory && (o.Reg == EBP || o.Reg == ESP)
}

// IsReg reports whether o is exactly register r.
func (o Operand) IsReg(r Register) bool { return o.Kind == OperandRegister && o.Reg == r }

// Uses reports whether evaluating o reads register r.
func (o Operand) Uses(r Register) bool {
	switch o.Kind {
	case OperandRegister:
		return o.Reg == r
	case OperandMemory:
		return o.Reg == r || o.Index == r
	}
	return false
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandNone:
		return ""
	case OperandRegister:
		return o.Reg.String()
	case OperandImmediate:
		if r, ok := value.RootOf(o.Imm); ok {
			return "#" + r.String()
		}
		return fmt.Sprintf("%d", o.Imm.Int32())
	case OperandConstant:
		return fmt.Sprintf("const[%d]", o.Pool)
	case OperandExternal:
		return "[" + o.Ext.String() + "]"
	}
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(o.Reg.String())
	if o.Index != NoReg {
		b.WriteString("+")
		b.WriteString(o.Index.String())
		if o.SmiIndex {
			b.WriteString("/2")
		}
	}
	if o.Disp > 0 {
		fmt.Fprintf(&b, "+%d", o.Disp)
	} else if o.Disp < 0 {
		fmt.Fprintf(&b, "%d", o.Disp)
	}
	b.WriteByte(']')
	return b.String()
}
