package vm

import (
	"kestrel/asm"
	"kestrel/value"
)

// address resolves a memory operand. Stack operands yield a stack
// address; heap operands yield the object and a field index.
func (m *Machine) address(o asm.Operand) (obj *Object, index int) {
	index = int(o.Disp)
	if o.Index != asm.NoReg {
		iv := m.Regs[o.Index]
		if o.SmiIndex {
			if !iv.IsSmi() {
				panic(faultf("index register does not hold a smi"))
			}
			index += int(iv.SmiValue())
		} else {
			index += int(iv.Int32())
		}
	}
	if o.IsStackMemory() {
		addr := int(m.Regs[o.Reg]) + index
		if addr < 0 || addr >= len(m.Stack) {
			panic(faultf("stack access out of range"))
		}
		return nil, addr
	}
	base := m.Regs[o.Reg]
	if !base.IsHeapObject() {
		panic(faultf("field access through a smi in " + o.Reg.String()))
	}
	obj = m.Heap.Get(base)
	if index < 0 || index >= len(obj.Fields) {
		panic(faultf("field index out of range"))
	}
	return obj, index
}

func (m *Machine) read(o asm.Operand, consts []value.Word) value.Word {
	switch o.Kind {
	case asm.OperandRegister:
		return m.Regs[o.Reg]
	case asm.OperandImmediate:
		return o.Imm
	case asm.OperandConstant:
		return consts[o.Pool]
	case asm.OperandExternal:
		switch o.Ext {
		case asm.ExtStackLimit:
			return value.Word(uint32(m.StackLimit))
		case asm.ExtHandler:
			return value.Word(uint32(m.Handler))
		}
	case asm.OperandMemory:
		obj, i := m.address(o)
		if obj == nil {
			return m.Stack[i]
		}
		return obj.Fields[i]
	}
	panic(faultf("unreadable operand " + o.String()))
}

func (m *Machine) write(o asm.Operand, w value.Word) {
	switch o.Kind {
	case asm.OperandRegister:
		m.Regs[o.Reg] = w
		return
	case asm.OperandExternal:
		if o.Ext == asm.ExtHandler {
			m.Handler = int(w)
			return
		}
	case asm.OperandMemory:
		obj, i := m.address(o)
		if obj == nil {
			m.Stack[i] = w
		} else {
			obj.Fields[i] = w
		}
		return
	}
	panic(faultf("unwritable operand " + o.String()))
}

func (m *Machine) setResultFlags(r value.Word) {
	m.Flags.ZF = r == 0
	m.Flags.SF = r.Int32() < 0
}

// alu computes dst op src and sets the flags the way the ia32 instruction
// does
func (m *Machine) alu(op asm.OpCode, dst, src value.Word) value.Word {
	a, b := dst.Int32(), src.Int32()
	var r value.Word
	switch op {
	case asm.OP_ADD:
		r = dst + src
		m.Flags.CF = r < dst
		m.Flags.OF = (a >= 0) == (b >= 0) && (r.Int32() >= 0) != (a >= 0)
	case asm.OP_SUB:
		r = dst - src
		m.Flags.CF = dst < src
		m.Flags.OF = (a >= 0) != (b >= 0) && (r.Int32() >= 0) != (a >= 0)
	case asm.OP_IMUL:
		p := int64(a) * int64(b)
		r = value.Word(uint32(int32(p)))
		m.Flags.OF = p != int64(int32(p))
		m.Flags.CF = m.Flags.OF
	case asm.OP_AND, asm.OP_OR, asm.OP_XOR:
		switch op {
		case asm.OP_AND:
			r = dst & src
		case asm.OP_OR:
			r = dst | src
		default:
			r = dst ^ src
		}
		m.Flags.CF, m.Flags.OF = false, false
	case asm.OP_SHL, asm.OP_SAR, asm.OP_SHR:
		n := uint32(src) & 31
		if n == 0 {
			return dst
		}
		switch op {
		case asm.OP_SHL:
			r = dst << n
			m.Flags.CF = dst>>(32-n)&1 == 1
		case asm.OP_SAR:
			r = value.Word(uint32(a >> n))
			m.Flags.CF = a>>(n-1)&1 == 1
		default:
			r = dst >> n
			m.Flags.CF = dst>>(n-1)&1 == 1
		}
		m.Flags.OF = false
	default:
		panic(faultf("not an alu operation: " + op.String()))
	}
	m.setResultFlags(r)
	return r
}

func (m *Machine) idiv(divisor value.Word) {
	d := int64(divisor.Int32())
	n := int64(m.Regs[asm.EDX].Int32())<<32 | int64(uint32(m.Regs[asm.EAX]))
	if d == 0 {
		panic(faultf("division by zero"))
	}
	q := n / d
	if q != int64(int32(q)) {
		panic(faultf("division overflow"))
	}
	m.Regs[asm.EAX] = value.Word(uint32(int32(q)))
	m.Regs[asm.EDX] = value.Word(uint32(int32(n % d)))
}
