package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// visitAssignment stores into a variable or a property. The first and
// the last assignment of an initialisation block switch the receiver to
// dictionary properties and back, so a run of new properties does not
// build a chain of maps.
func (g *Generator) visitAssignment(e *ast.Assignment) {
	_, property := e.Target.(*ast.Property)
	blockStart := e.BlockStart && property
	blockEnd := e.BlockEnd && property

	ref := g.loadReference(e.Target, blockEnd)
	if blockStart {
		g.frame.PushElementAt(ref.size() - 1)
		res := g.frame.CallRuntime(asm.RT_TO_SLOW_PROPERTIES)
		res.Unuse()
	}

	if e.IsCompound() {
		ref.getValue()
		g.load(e.Value)
		g.binaryOperation(e.Op, e.Info())
	} else {
		g.load(e.Value)
	}
	g.masm.SetPosition(e.Position().Offset())
	ref.setValue()

	if blockEnd {
		// the receiver copy is below the value
		g.frame.PushElementAt(1)
		res := g.frame.CallRuntime(asm.RT_TO_FAST_PROPERTIES)
		res.Unuse()
		g.frame.Nip(1)
	}
}

// visitCount compiles ++ and --. A postfix operation reserves a slot
// below the reference for the old value, converted to a number.
func (g *Generator) visitCount(e *ast.Count) {
	postfix := !e.Prefix
	if postfix {
		g.frame.PushConstant(value.SmiConstant(0))
	}
	ref := g.loadReference(e.Target, false)
	ref.getValue()
	if g.opts.InlineSmiArithmetic {
		g.inlineCount(e.Op == ast.OpInc, postfix, ref.size())
	} else {
		g.genericCount(e.Op == ast.OpInc, postfix, ref.size())
	}
	g.masm.SetPosition(e.Position().Offset())
	ref.setValue()
	if postfix {
		g.frame.Drop(1)
	}
}

// inlineCount adds or subtracts one optimistically; the slow path undoes
// it when the value was not a smi or the result overflowed
func (g *Generator) inlineCount(increment, postfix bool, size int) {
	m := g.masm
	val := g.frame.Pop()
	val.ToRegister()
	var old Result
	oldReg := asm.NoReg
	if postfix {
		old = g.allocate()
		oldReg = old.Reg()
		m.Mov(asm.Reg(oldReg), val.Operand())
	}
	g.makeWritable(&val)
	r := val.Reg()

	d := &deferredInlineCount{deferredBase: g.newDeferred("inline count"),
		increment: increment, dst: r, old: oldReg}
	g.addDeferred(d)
	if increment {
		m.Add(asm.Reg(r), asm.Smi(1))
	} else {
		m.Sub(asm.Reg(r), asm.Smi(1))
	}
	d.Branch(m, asm.Overflow)
	m.Test(asm.Reg(r), asm.Imm(value.SmiTagMask))
	d.Branch(m, asm.NotZero)
	d.BindExit(m)

	if postfix {
		g.frame.SetElementAt(size, &old)
	}
	val.Hint, val.Smi = ast.TypeNumber, false
	g.frame.Push(&val)
}

// genericCount converts the value to a number and calls the binary
// operation stub
func (g *Generator) genericCount(increment, postfix bool, size int) {
	num := g.frame.CallRuntime(asm.RT_TO_NUMBER)
	g.frame.Push(&num)
	if postfix {
		g.frame.Dup()
		old := g.frame.Pop()
		g.frame.SetElementAt(size+1, &old)
	}
	g.frame.PushConstant(value.SmiConstant(1))
	op := asm.ArithAdd
	if !increment {
		op = asm.ArithSub
	}
	res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: op})
	g.frame.Push(&res)
}
