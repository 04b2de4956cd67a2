package codegen

import (
	"math/bits"

	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// constantSmiOperation computes op between a dynamic operand and a smi
// literal. reversed means the literal is the left operand.
func (g *Generator) constantSmiOperation(op ast.Op, info *ast.Bits, operand *Result, smi int32, reversed bool) Result {
	m := g.masm
	imm := value.SmiFromInt(smi)
	name := "inline " + op.String() + " smi"

	switch {
	case op == ast.OpAdd, op == ast.OpSub && !reversed:
		// optimistic: undone by the slow path on overflow or a non-smi
		operand.ToRegister()
		g.makeWritable(operand)
		r := operand.Reg()
		d := &deferredInlineSmiAddSub{deferredBase: g.newDeferred(name),
			op: arithOp(op), dst: r, value: imm, reversed: reversed}
		g.addDeferred(d)
		if op == ast.OpAdd {
			m.Add(asm.Reg(r), asm.Imm(imm))
		} else {
			m.Sub(asm.Reg(r), asm.Imm(imm))
		}
		d.Branch(m, asm.Overflow)
		if !operand.KnownSmi() {
			m.Test(asm.Reg(r), asm.Imm(value.SmiTagMask))
			d.Branch(m, asm.NotZero)
		}
		d.BindExit(m)
		res := *operand
		res.Hint, res.Smi = info.Type, false
		return res

	case op == ast.OpSub:
		operand.ToRegister()
		answer := g.allocate()
		a := answer.Reg()
		d := g.smiOperationDeferred(op, a, operand.Reg(), imm, true, name)
		m.Mov(asm.Reg(a), asm.Imm(imm))
		m.Sub(asm.Reg(a), operand.Operand())
		d.Branch(m, asm.Overflow)
		if !operand.KnownSmi() {
			m.Test(asm.Reg(a), asm.Imm(value.SmiTagMask))
			d.Branch(m, asm.NotZero)
		}
		d.BindExit(m)
		operand.Unuse()
		answer.Hint = info.Type
		return answer

	case op == ast.OpBitOr, op == ast.OpBitAnd, op == ast.OpBitXor:
		operand.ToRegister()
		g.makeWritable(operand)
		r := operand.Reg()
		d := g.smiOperationDeferred(op, r, r, imm, reversed, name)
		g.tagCheck(d, operand)
		switch op {
		case ast.OpBitOr:
			m.Or(asm.Reg(r), asm.Imm(imm))
		case ast.OpBitAnd:
			m.And(asm.Reg(r), asm.Imm(imm))
		default:
			m.Xor(asm.Reg(r), asm.Imm(imm))
		}
		d.BindExit(m)
		res := *operand
		res.Hint, res.Smi = ast.TypeLikelySmi, false
		return res

	case op == ast.OpSar && !reversed:
		operand.ToRegister()
		g.makeWritable(operand)
		r := operand.Reg()
		d := g.smiOperationDeferred(op, r, r, imm, false, name)
		g.tagCheck(d, operand)
		if shift := int(uint32(smi) & 31); shift > 0 {
			m.Sar(r, shift)
			m.And(asm.Reg(r), asm.Imm(^value.SmiTagMask))
		}
		d.BindExit(m)
		res := *operand
		res.Hint, res.Smi = ast.TypeLikelySmi, false
		return res

	case op == ast.OpShr && !reversed, op == ast.OpShl && !reversed:
		operand.ToRegister()
		answer := g.allocate()
		a := answer.Reg()
		d := g.smiOperationDeferred(op, a, operand.Reg(), imm, false, name)
		g.tagCheck(d, operand)
		shift := int(uint32(smi) & 31)
		m.Mov(asm.Reg(a), operand.Operand())
		m.Sar(a, value.SmiTagSize)
		if op == ast.OpShr {
			m.Shr(a, shift)
			// a shift by two or more always leaves a smi
			if shift < 2 {
				m.Test(asm.Reg(a), asm.Imm(smiPayloadOverflow))
				d.Branch(m, asm.NotZero)
			}
		} else {
			m.Shl(a, shift)
			m.Cmp(asm.Reg(a), asm.Imm(smiPayloadOverflow))
			d.Branch(m, asm.Negative)
		}
		m.Shl(a, value.SmiTagSize)
		d.BindExit(m)
		operand.Unuse()
		answer.Hint = ast.TypeLikelySmi
		return answer

	case op == ast.OpMul:
		operand.ToRegister()
		answer := g.allocate()
		a := answer.Reg()
		d := g.smiOperationDeferred(op, a, operand.Reg(), imm, reversed, name)
		g.tagCheck(d, operand)
		m.Mov(asm.Reg(a), operand.Operand())
		m.Imul(a, asm.Int(smi))
		d.Branch(m, asm.Overflow)
		if !info.NoNegativeZero {
			switch {
			case smi == 0:
				m.Test(operand.Operand(), operand.Operand())
				d.Branch(m, asm.Negative)
			case smi < 0:
				m.Test(operand.Operand(), operand.Operand())
				d.Branch(m, asm.Zero)
			}
		}
		d.BindExit(m)
		operand.Unuse()
		answer.Hint = info.Type
		return answer

	case op == ast.OpMod && !reversed && smi > 0 && bits.OnesCount32(uint32(smi)) == 1:
		// a non-negative smi modulo a power of two keeps its low bits
		operand.ToRegister()
		g.makeWritable(operand)
		r := operand.Reg()
		d := g.smiOperationDeferred(op, r, r, imm, false, name)
		m.Test(asm.Reg(r), asm.Imm(value.SmiTagMask|0x80000000))
		d.Branch(m, asm.NotZero)
		m.And(asm.Reg(r), asm.Imm(value.SmiFromInt(smi)-1))
		d.BindExit(m)
		res := *operand
		res.Hint, res.Smi = ast.TypeLikelySmi, false
		return res
	}

	// the literal goes into a register for the general fast path
	c := g.constantResult(value.SmiConstant(smi))
	if reversed {
		return g.likelySmiOperation(op, info, &c, operand)
	}
	return g.likelySmiOperation(op, info, operand, &c)
}

// smiOperationDeferred registers the slow path of an operation against
// an immediate. src keeps the dynamic operand until the exit.
func (g *Generator) smiOperationDeferred(op ast.Op, dst, src asm.Register, imm value.Word, reversed bool, comment string) *deferredInlineSmiOperation {
	d := &deferredInlineSmiOperation{deferredBase: g.newDeferred(comment),
		op: arithOp(op), dst: dst, src: src, value: imm, reversed: reversed}
	g.addDeferred(d)
	return d
}

// tagCheck enters d when operand is not a smi
func (g *Generator) tagCheck(d *deferredInlineSmiOperation, operand *Result) {
	if operand.KnownSmi() {
		return
	}
	g.masm.Test(operand.Operand(), asm.Imm(value.SmiTagMask))
	d.Branch(g.masm, asm.NotZero)
}
