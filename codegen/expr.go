package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// load compiles e and leaves its value on top of the frame. A condition
// that compiled to control flow is turned back into true or false.
func (g *Generator) load(e ast.Expression) {
	dest := newDestination(g.newJumpTarget(), g.newJumpTarget(), true)
	g.loadCondition(e, dest, false)
	g.materialize(dest)
}

// materialize pushes true or false at the targets of dest that control
// reached and joins them with the value left on the frame, if any
func (g *Generator) materialize(dest *ControlDestination) {
	loaded := g.newJumpTarget()
	if !dest.IsUsed() {
		if !dest.True.IsLinked() && !dest.False.IsLinked() {
			return
		}
		// subexpressions jumped out before the value was computed
		loaded.Jump()
		if dest.True.IsLinked() {
			dest.True.Bind()
			g.frame.PushConstant(value.OddballConstant(value.RootTrue))
			if dest.False.IsLinked() {
				loaded.Jump()
			}
		}
		if dest.False.IsLinked() {
			dest.False.Bind()
			g.frame.PushConstant(value.OddballConstant(value.RootFalse))
		}
		loaded.Bind()
		return
	}

	first, second := dest.True, dest.False
	firstValue, secondValue := value.RootTrue, value.RootFalse
	if !dest.TrueWasFallThrough() {
		first, second = second, first
		firstValue, secondValue = secondValue, firstValue
	}
	if g.frame != nil || first.IsLinked() {
		first.Bind()
		g.frame.PushConstant(value.OddballConstant(firstValue))
	}
	if second.IsLinked() {
		if g.frame != nil {
			loaded.Jump()
		}
		second.Bind()
		g.frame.PushConstant(value.OddballConstant(secondValue))
	}
	loaded.Bind()
}

// toBoolean pops the top of the frame and sends its truth value to dest.
// The common values are recognised inline; the stub converts the rest.
func (g *Generator) toBoolean(dest *ControlDestination) {
	m := g.masm
	val := g.frame.Pop()
	if val.IsConstant() {
		if known, truth := val.Constant().ToBoolean(); known {
			val.Unuse()
			dest.Goto(truth)
			return
		}
	}
	m.RecordComment("[ ToBoolean")
	val.ToRegister()
	m.Cmp(val.Operand(), asm.Imm(value.False))
	dest.False.Branch(asm.Equal)
	m.Cmp(val.Operand(), asm.Imm(value.True))
	dest.True.Branch(asm.Equal)
	m.Cmp(val.Operand(), asm.Imm(value.Undefined))
	dest.False.Branch(asm.Equal)
	m.Cmp(val.Operand(), asm.Smi(0))
	dest.False.Branch(asm.Equal)
	m.Test(val.Operand(), asm.Imm(value.SmiTagMask))
	dest.True.Branch(asm.Zero)

	g.frame.Push(&val)
	res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_TO_BOOLEAN})
	m.Test(res.Operand(), res.Operand())
	res.Unuse()
	dest.Split(asm.NotZero)
}

func (g *Generator) visitFunctionLiteral(e *ast.FunctionLiteral) {
	code := g.compileNested(e)
	if code == nil {
		g.frame.PushConstant(value.UndefinedConstant)
		return
	}
	idx := g.masm.AddConstant(code)
	g.frame.EmitPush(asm.Pool(idx))
	res := g.frame.CallRuntime(asm.RT_NEW_CLOSURE)
	g.frame.Push(&res)
}

func (g *Generator) visitConditional(e *ast.Conditional) {
	then := g.newJumpTarget()
	els := g.newJumpTarget()
	exit := g.newJumpTarget()
	g.loadCondition(e.Cond, newDestination(then, els, true), true)
	if g.frame != nil || then.IsLinked() {
		then.Bind()
		g.load(e.Then)
	}
	if els.IsLinked() {
		if g.frame != nil {
			exit.Jump()
		}
		els.Bind()
		g.load(e.Else)
	}
	exit.Bind()
}

// visitComma evaluates the left operand for its effects
func (g *Generator) visitComma(e *ast.Binary, dest *ControlDestination) {
	g.load(e.Left)
	g.frame.Drop(1)
	g.loadCondition(e.Right, dest, false)
}

// visitLogical compiles && and ||. When the left operand compiled to
// control flow the right operand goes to the same destination; when it
// left a value, that value is the result unless it decides to go on.
func (g *Generator) visitLogical(e *ast.Binary, dest *ControlDestination) {
	and := e.Op == ast.OpAnd
	next := g.newJumpTarget()
	var inner *ControlDestination
	if and {
		inner = newDestination(next, dest.False, true)
	} else {
		inner = newDestination(dest.True, next, false)
	}
	g.loadCondition(e.Left, inner, false)

	if inner.IsUsed() {
		if g.frame == nil && !next.IsLinked() {
			// the left operand alone decides
			dest.use()
			return
		}
		next.Bind()
		g.loadCondition(e.Right, dest, false)
		return
	}

	// the left value is the result when it is falsy for && or truthy
	// for ||; otherwise it is dropped and the right operand is loaded
	popAndContinue := g.newJumpTarget()
	exit := g.newJumpTarget()
	g.frame.Dup()
	if and {
		g.toBoolean(newDestination(popAndContinue, exit, true))
	} else {
		g.toBoolean(newDestination(exit, popAndContinue, false))
	}
	if g.frame != nil || popAndContinue.IsLinked() {
		popAndContinue.Bind()
		g.frame.Drop(1)
	}
	if g.frame != nil || next.IsLinked() {
		next.Bind()
		g.load(e.Right)
	}
	exit.Bind()
}
