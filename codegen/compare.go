package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// compareOp is a comparison operator: the condition that holds between
// the operands, and for equality whether it is strict
type compareOp struct {
	cc     asm.Condition
	strict bool
}

var compareStrictEquals = compareOp{cc: asm.Equal, strict: true}

var compareOps = map[ast.Op]compareOp{
	ast.OpEq:       {cc: asm.Equal},
	ast.OpNe:       {cc: asm.NotEqual},
	ast.OpStrictEq: {cc: asm.Equal, strict: true},
	ast.OpStrictNe: {cc: asm.NotEqual, strict: true},
	ast.OpLt:       {cc: asm.Less},
	ast.OpGt:       {cc: asm.Greater},
	ast.OpLe:       {cc: asm.LessEqual},
	ast.OpGe:       {cc: asm.GreaterEqual},
}

func (g *Generator) visitCompare(e *ast.Compare, dest *ControlDestination) {
	switch e.Op {
	case ast.OpIn, ast.OpInstanceOf:
		id := asm.RT_IN
		if e.Op == ast.OpInstanceOf {
			id = asm.RT_INSTANCE_OF
		}
		g.load(e.Left)
		g.load(e.Right)
		res := g.frame.CallRuntime(id)
		g.frame.Push(&res)
		return
	}
	if e.Op.IsEquality() {
		if isNullLiteral(e.Right) {
			g.nullComparison(e.Op, e.Left, dest)
			return
		}
		if isNullLiteral(e.Left) {
			g.nullComparison(e.Op, e.Right, dest)
			return
		}
	}
	g.load(e.Left)
	g.load(e.Right)
	g.comparison(compareOps[e.Op], dest)
}

func isNullLiteral(e ast.Expression) bool {
	lit, ok := e.(*ast.Literal)
	return ok && lit.Value.Is(value.RootNull)
}

// nullComparison compares x with null inline: strictly only null itself
// matches, loosely undefined matches too
func (g *Generator) nullComparison(op ast.Op, x ast.Expression, dest *ControlDestination) {
	m := g.masm
	negated := op == ast.OpNe || op == ast.OpStrictNe
	strict := op == ast.OpStrictEq || op == ast.OpStrictNe
	g.load(x)
	val := g.frame.Pop()
	val.ToRegister()
	if negated {
		dest.Invert()
	}
	m.Cmp(val.Operand(), asm.Imm(value.Null))
	if !strict {
		dest.True.Branch(asm.Equal)
		m.Cmp(val.Operand(), asm.Imm(value.Undefined))
	}
	val.Unuse()
	dest.Split(asm.Equal)
	if negated {
		dest.Invert()
	}
}

// comparison compares the two values on top of the frame and sends the
// outcome to dest. Smis are compared inline; the compare stub handles
// every other value out of line and leaves the flags the way the inline
// compare would.
func (g *Generator) comparison(c compareOp, dest *ControlDestination) {
	m := g.masm
	right := g.frame.Pop()
	left := g.frame.Pop()
	if left.IsSmiConstant() && right.IsSmiConstant() {
		truth := holds(c.cc, left.Constant().SmiValue(), right.Constant().SmiValue())
		left.Unuse()
		right.Unuse()
		dest.Goto(truth)
		return
	}

	stub := asm.Stub{Kind: asm.STUB_COMPARE, Cond: c.cc, Strict: c.strict}
	nonSmi := left.IsConstant() && !left.IsSmiConstant() || right.IsConstant() && !right.IsSmiConstant()
	if !g.opts.InlineSmiArithmetic || nonSmi {
		g.frame.Push(&left)
		g.frame.Push(&right)
		res := g.frame.CallStub(stub)
		m.Cmp(res.Operand(), asm.Smi(0))
		res.Unuse()
		dest.Split(c.cc)
		return
	}

	// a smi literal is compared as an immediate, on the right
	reversed := left.IsConstant()
	if reversed {
		right.ToRegister()
	} else {
		left.ToRegister()
		if !right.IsConstant() {
			right.ToRegister()
		}
	}
	var tmp Result
	tmpReg := asm.NoReg
	if !left.KnownSmi() && !right.KnownSmi() && left.Reg() != right.Reg() {
		tmp = g.allocate()
		tmpReg = tmp.Reg()
	}
	d := &deferredInlineCompare{deferredBase: g.newDeferred("inline compare"),
		stub: stub, left: left.Operand(), right: right.Operand(), reversed: reversed}
	g.addDeferred(d)
	g.smiTagCheck(&d.deferredBase, tmpReg, &left, &right)
	tmp.Unuse()

	cc := c.cc
	if reversed {
		m.Cmp(right.Operand(), left.Operand())
		cc = cc.Reverse()
	} else {
		m.Cmp(left.Operand(), right.Operand())
	}
	d.BindExit(m)
	left.Unuse()
	right.Unuse()
	dest.Split(cc)
}

// deferredInlineCompare calls the compare stub and sets the flags from
// its result, compared against zero
type deferredInlineCompare struct {
	deferredBase
	stub        asm.Stub
	left, right asm.Operand
	reversed    bool // the flags are expected for right against left
}

func (d *deferredInlineCompare) Generate(g *Generator) {
	m := g.masm
	m.Push(d.left)
	m.Push(d.right)
	m.CallStub(d.stub)
	if d.reversed {
		m.Neg(asm.EAX)
	}
	m.Cmp(asm.Reg(asm.EAX), asm.Smi(0))
}

// holds evaluates cc between two smis
func holds(cc asm.Condition, a, b int32) bool {
	switch cc {
	case asm.Equal:
		return a == b
	case asm.NotEqual:
		return a != b
	case asm.Less:
		return a < b
	case asm.LessEqual:
		return a <= b
	case asm.Greater:
		return a > b
	case asm.GreaterEqual:
		return a >= b
	}
	panic("codegen: not a comparison condition: " + cc.String())
}
