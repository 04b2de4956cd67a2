package codegen

import (
	"golang.org/x/exp/slices"

	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// smiPayloadOverflow has the two top bits of an untagged result set when
// the result does not fit a smi
const smiPayloadOverflow value.Word = 0xc0000000

func (g *Generator) visitBinary(e *ast.Binary, dest *ControlDestination) {
	switch e.Op {
	case ast.OpComma:
		g.visitComma(e, dest)
	case ast.OpAnd, ast.OpOr:
		g.visitLogical(e, dest)
	default:
		g.load(e.Left)
		g.load(e.Right)
		g.binaryOperation(e.Op, e.Info())
	}
}

// binaryOperation replaces the two operands on top of the frame with the
// result of op
func (g *Generator) binaryOperation(op ast.Op, info *ast.Bits) {
	right := g.frame.Pop()
	left := g.frame.Pop()
	res := g.specialize(op, info, &left, &right)
	g.frame.Push(&res)
}

// specialize picks the code for op by what is known of its operands:
// two smi literals fold, a literal that is not a smi goes to the stub, a
// smi literal selects an operation against an immediate and two dynamic
// operands get the general smi fast path.
func (g *Generator) specialize(op ast.Op, info *ast.Bits, left, right *Result) Result {
	leftSmi, rightSmi := left.IsSmiConstant(), right.IsSmiConstant()
	if leftSmi && rightSmi {
		if r, ok := Fold(op, left.Constant().SmiValue(), right.Constant().SmiValue()); ok {
			left.Unuse()
			right.Unuse()
			return g.constantResult(value.SmiConstant(r))
		}
	}
	switch {
	case !g.opts.InlineSmiArithmetic,
		left.IsConstant() && !leftSmi,
		right.IsConstant() && !rightSmi:
		return g.genericBinary(op, left, right)
	case rightSmi:
		smi := right.Constant().SmiValue()
		right.Unuse()
		return g.constantSmiOperation(op, info, left, smi, false)
	case leftSmi:
		smi := left.Constant().SmiValue()
		left.Unuse()
		return g.constantSmiOperation(op, info, right, smi, true)
	case g.loopNesting > 0, info.IsLikelySmi(), left.KnownSmi(), right.KnownSmi():
		return g.likelySmiOperation(op, info, left, right)
	}
	return g.genericBinary(op, left, right)
}

// genericBinary calls the binary operation stub
func (g *Generator) genericBinary(op ast.Op, left, right *Result) Result {
	g.frame.Push(left)
	g.frame.Push(right)
	return g.frame.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: arithOp(op)})
}

// smiTagCheck enters d unless both operands are smis. With two distinct
// registers the tags are tested together through tmp.
func (g *Generator) smiTagCheck(d *deferredBase, tmp asm.Register, left, right *Result) {
	m := g.masm
	switch {
	case left.KnownSmi() && right.KnownSmi():
		return
	case left.KnownSmi():
		m.Test(right.Operand(), asm.Imm(value.SmiTagMask))
	case right.KnownSmi(), left.Reg() == right.Reg():
		m.Test(left.Operand(), asm.Imm(value.SmiTagMask))
	default:
		m.Mov(asm.Reg(tmp), left.Operand())
		m.Or(asm.Reg(tmp), right.Operand())
		m.Test(asm.Reg(tmp), asm.Imm(value.SmiTagMask))
	}
	d.Branch(m, asm.NotZero)
}

// likelySmiOperation computes op inline for two smis and calls the stub
// out of line with the untouched operands for everything else
func (g *Generator) likelySmiOperation(op ast.Op, info *ast.Bits, left, right *Result) Result {
	left.ToRegister()
	right.ToRegister()
	switch {
	case op == ast.OpDiv || op == ast.OpMod:
		return g.smiDivMod(op, info, left, right)
	case op.IsShift():
		return g.smiShift(op, left, right)
	}

	m := g.masm
	answer := g.allocate()
	a := asm.Reg(answer.Reg())
	d := &deferredInlineBinaryOp{deferredBase: g.newDeferred("inline " + op.String()),
		op: arithOp(op), dst: answer.Reg(), left: left.Operand(), right: right.Operand()}
	g.addDeferred(d)
	g.smiTagCheck(&d.deferredBase, answer.Reg(), left, right)

	m.Mov(a, left.Operand())
	switch op {
	case ast.OpAdd:
		m.Add(a, right.Operand())
		d.Branch(m, asm.Overflow)
	case ast.OpSub:
		m.Sub(a, right.Operand())
		d.Branch(m, asm.Overflow)
	case ast.OpBitOr:
		m.Or(a, right.Operand())
	case ast.OpBitAnd:
		m.And(a, right.Operand())
	case ast.OpBitXor:
		m.Xor(a, right.Operand())
	case ast.OpMul:
		m.Sar(answer.Reg(), value.SmiTagSize)
		m.Imul(answer.Reg(), right.Operand())
		d.Branch(m, asm.Overflow)
		if !info.NoNegativeZero {
			// a zero product is negative zero when either operand is negative
			nonZero := new(asm.Label)
			m.Test(a, a)
			m.J(asm.NotZero, nonZero)
			m.Mov(a, left.Operand())
			m.Or(a, right.Operand())
			d.Branch(m, asm.Negative)
			m.Xor(a, a)
			m.Bind(nonZero)
		}
	default:
		panic("codegen: no inline smi code for " + op.String())
	}
	d.BindExit(m)
	left.Unuse()
	right.Unuse()
	answer.Hint = info.Type
	return answer
}

// smiShift shifts with the count in ECX. The untagged count is tagged
// again before a result that does not fit a smi enters the slow path.
func (g *Generator) smiShift(op ast.Op, left, right *Result) Result {
	m := g.masm
	g.frame.Spill(asm.ECX)
	if left.Reg() == asm.ECX {
		g.relocate(left, asm.ECX)
	}
	if right.Reg() != asm.ECX {
		ecx := g.allocateSpecific(asm.ECX)
		m.Mov(asm.Reg(asm.ECX), right.Operand())
		ecx.Hint, ecx.Smi = right.Hint, right.Smi
		right.Unuse()
		*right = ecx
	}

	answer := g.allocate()
	a := answer.Reg()
	d := &deferredInlineBinaryOp{deferredBase: g.newDeferred("inline " + op.String()),
		op: arithOp(op), dst: a, left: left.Operand(), right: right.Operand()}
	g.addDeferred(d)
	g.smiTagCheck(&d.deferredBase, a, left, right)

	m.Mov(asm.Reg(a), left.Operand())
	m.Sar(a, value.SmiTagSize)
	m.Sar(asm.ECX, value.SmiTagSize)
	ok := new(asm.Label)
	switch op {
	case ast.OpSar:
		m.SarCL(a)
	case ast.OpShr:
		// the unsigned result must leave the two top bits clear
		m.ShrCL(a)
		m.Test(asm.Reg(a), asm.Imm(smiPayloadOverflow))
		m.J(asm.Zero, ok)
		m.Shl(asm.ECX, value.SmiTagSize)
		d.Jump(m)
	case ast.OpShl:
		m.ShlCL(a)
		m.Cmp(asm.Reg(a), asm.Imm(smiPayloadOverflow))
		m.J(asm.Positive, ok)
		m.Shl(asm.ECX, value.SmiTagSize)
		d.Jump(m)
	}
	m.Bind(ok)
	m.Shl(a, value.SmiTagSize)
	d.BindExit(m)
	left.Unuse()
	right.Unuse()
	answer.Hint = ast.TypeLikelySmi
	return answer
}

// smiDivMod divides in EDX:EAX. Both operands are moved out of EAX and
// EDX first because the slow path needs them intact.
func (g *Generator) smiDivMod(op ast.Op, info *ast.Bits, left, right *Result) Result {
	m := g.masm
	for _, r := range [...]asm.Register{asm.EAX, asm.EDX} {
		g.frame.Spill(r)
		if left.Reg() == r {
			g.relocate(left, asm.EAX, asm.EDX)
		}
		if right.Reg() == r {
			g.relocate(right, asm.EAX, asm.EDX)
		}
	}
	quotient := g.allocateSpecific(asm.EAX)
	remainder := g.allocateSpecific(asm.EDX)
	answer, scratch := quotient, remainder
	if op == ast.OpMod {
		answer, scratch = remainder, quotient
	}

	d := &deferredInlineBinaryOp{deferredBase: g.newDeferred("inline " + op.String()),
		op: arithOp(op), dst: answer.Reg(), left: left.Operand(), right: right.Operand()}
	g.addDeferred(d)
	g.smiTagCheck(&d.deferredBase, asm.EAX, left, right)
	m.Test(right.Operand(), right.Operand())
	d.Branch(m, asm.Zero)

	// both operands are tagged: the quotient comes out untagged and the
	// remainder tagged
	m.Mov(asm.Reg(asm.EAX), left.Operand())
	m.Cdq()
	m.Idiv(right.Reg())
	nonZero := new(asm.Label)
	if op == ast.OpDiv {
		// the most negative smi divided by -1
		m.Cmp(asm.Reg(asm.EAX), asm.Imm(value.Word(-value.SmiMin)))
		d.Branch(m, asm.Equal)
		m.Test(asm.Reg(asm.EDX), asm.Reg(asm.EDX))
		d.Branch(m, asm.NotZero)
		if !info.NoNegativeZero {
			m.Test(left.Operand(), left.Operand())
			m.J(asm.NotZero, nonZero)
			m.Test(right.Operand(), right.Operand())
			d.Branch(m, asm.Negative)
			m.Bind(nonZero)
		}
		m.Shl(asm.EAX, value.SmiTagSize)
	} else if !info.NoNegativeZero {
		m.Test(asm.Reg(asm.EDX), asm.Reg(asm.EDX))
		m.J(asm.NotZero, nonZero)
		m.Test(left.Operand(), left.Operand())
		d.Branch(m, asm.Negative)
		m.Bind(nonZero)
	}
	d.BindExit(m)

	scratch.Unuse()
	left.Unuse()
	right.Unuse()
	answer.Hint = info.Type
	return answer
}

// relocate moves r into a fresh register outside avoid
func (g *Generator) relocate(r *Result, avoid ...asm.Register) {
	fresh := g.allocateAvoiding(avoid...)
	g.masm.Mov(asm.Reg(fresh.Reg()), r.Operand())
	fresh.Hint, fresh.Smi = r.Hint, r.Smi
	r.Unuse()
	*r = fresh
}

// allocateAvoiding returns a fresh register that is not in avoid
func (g *Generator) allocateAvoiding(avoid ...asm.Register) Result {
	var held []Result
	defer func() {
		for i := range held {
			held[i].Unuse()
		}
	}()
	for {
		r := g.allocate()
		if !slices.Contains(avoid, r.Reg()) {
			return r
		}
		held = append(held, r)
	}
}
