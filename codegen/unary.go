package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

func (g *Generator) visitUnary(e *ast.Unary, dest *ControlDestination) {
	switch e.Op {
	case ast.OpNot:
		dest.Invert()
		g.loadCondition(e.X, dest, true)
		dest.Invert()
	case ast.OpTypeOf:
		if proxy, ok := e.X.(*ast.VariableProxy); ok {
			g.loadVariable(proxy.Var, true)
		} else {
			g.load(e.X)
		}
		res := g.frame.CallRuntime(asm.RT_TYPEOF)
		g.frame.Push(&res)
	case ast.OpVoid:
		if _, ok := e.X.(*ast.Literal); !ok {
			g.load(e.X)
			g.frame.Drop(1)
		}
		g.frame.PushConstant(value.UndefinedConstant)
	case ast.OpDelete:
		g.visitDelete(e.X)
	case ast.OpNeg:
		g.load(e.X)
		g.negate(e.Info())
	case ast.OpBitNot:
		g.load(e.X)
		g.bitNot()
	case ast.OpPlus:
		g.load(e.X)
		g.toNumber()
	default:
		panic("codegen: unexpected unary operator " + e.Op.String())
	}
}

// visitDelete removes a property or an unresolved variable. Variables
// that are allocated to slots cannot be deleted.
func (g *Generator) visitDelete(x ast.Expression) {
	switch x := x.(type) {
	case *ast.Property:
		g.load(x.Object)
		g.load(x.Key)
		res := g.frame.CallRuntime(asm.RT_DELETE_PROPERTY)
		g.frame.Push(&res)
	case *ast.VariableProxy:
		switch v := x.Var; v.Slot.Kind {
		case ast.SlotGlobal:
			g.loadGlobalObject()
			g.frame.PushConstant(value.StringConstant(v.Name))
			res := g.frame.CallRuntime(asm.RT_DELETE_PROPERTY)
			g.frame.Push(&res)
		case ast.SlotLookup:
			g.frame.EmitPush(asm.Reg(asm.ContextRegister))
			g.frame.PushConstant(value.StringConstant(v.Name))
			res := g.frame.CallRuntime(asm.RT_DELETE_CONTEXT_SLOT)
			g.frame.Push(&res)
		default:
			g.frame.PushConstant(value.OddballConstant(value.RootFalse))
		}
	default:
		g.load(x)
		g.frame.Drop(1)
		g.frame.PushConstant(value.OddballConstant(value.RootTrue))
	}
}

// negate replaces the top of the frame with its negation. Zero and the
// most negative smi leave the smi range and take the slow path.
func (g *Generator) negate(info *ast.Bits) {
	m := g.masm
	val := g.frame.Pop()
	if val.IsSmiConstant() {
		if v := val.Constant().SmiValue(); v != 0 && v != value.SmiMin {
			g.frame.PushConstant(value.SmiConstant(-v))
			return
		}
	}
	if !g.opts.InlineSmiArithmetic || val.IsConstant() && !val.IsSmiConstant() {
		g.frame.Push(&val)
		g.frame.PushConstant(value.SmiConstant(-1))
		res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: asm.ArithMul})
		g.frame.Push(&res)
		return
	}
	val.ToRegister()
	g.makeWritable(&val)
	r := val.Reg()
	d := &deferredInlineNegate{deferredBase: g.newDeferred("inline negate"), dst: r}
	g.addDeferred(d)
	if !val.KnownSmi() {
		m.Test(asm.Reg(r), asm.Imm(value.SmiTagMask))
		d.Branch(m, asm.NotZero)
	}
	m.Test(asm.Reg(r), asm.Reg(r))
	d.Branch(m, asm.Zero)
	m.Neg(r)
	d.Branch(m, asm.Overflow)
	d.BindExit(m)
	val.Hint, val.Smi = info.Type, false
	g.frame.Push(&val)
}

// bitNot replaces the top of the frame with its bitwise complement
func (g *Generator) bitNot() {
	m := g.masm
	val := g.frame.Pop()
	if val.IsSmiConstant() {
		g.frame.PushConstant(value.SmiConstant(^val.Constant().SmiValue()))
		return
	}
	if !g.opts.InlineSmiArithmetic || val.IsConstant() {
		g.frame.Push(&val)
		g.frame.PushConstant(value.SmiConstant(-1))
		res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: asm.ArithBitXor})
		g.frame.Push(&res)
		return
	}
	val.ToRegister()
	g.makeWritable(&val)
	r := val.Reg()
	d := g.smiOperationDeferred(ast.OpBitXor, r, r, value.SmiFromInt(-1), false, "inline bit not")
	g.tagCheck(d, &val)
	// the complement of a tagged smi has the tag bit set
	m.Not(r)
	m.And(asm.Reg(r), asm.Imm(^value.SmiTagMask))
	d.BindExit(m)
	val.Hint, val.Smi = ast.TypeLikelySmi, false
	g.frame.Push(&val)
}

// toNumber converts the top of the frame to a number. Smis are numbers
// already.
func (g *Generator) toNumber() {
	m := g.masm
	val := g.frame.Pop()
	if val.KnownSmi() || val.IsConstant() && val.Constant().IsNumber() {
		g.frame.Push(&val)
		return
	}
	if !g.opts.InlineSmiArithmetic || val.IsConstant() {
		g.frame.Push(&val)
		res := g.frame.CallRuntime(asm.RT_TO_NUMBER)
		g.frame.Push(&res)
		return
	}
	val.ToRegister()
	g.makeWritable(&val)
	r := val.Reg()
	d := &deferredToNumber{deferredBase: g.newDeferred("inline to number"), dst: r}
	g.addDeferred(d)
	m.Test(asm.Reg(r), asm.Imm(value.SmiTagMask))
	d.Branch(m, asm.NotZero)
	d.BindExit(m)
	val.Hint = ast.TypeNumber
	g.frame.Push(&val)
}

// deferredToNumber converts a value that is not a smi
type deferredToNumber struct {
	deferredBase
	dst asm.Register
}

func (d *deferredToNumber) Generate(g *Generator) {
	m := g.masm
	m.Push(asm.Reg(d.dst))
	m.CallRuntime(asm.RT_TO_NUMBER)
	if d.dst != asm.EAX {
		m.Mov(asm.Reg(d.dst), asm.Reg(asm.EAX))
	}
}
