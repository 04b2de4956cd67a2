package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// returnShadow is the index of the shadowed function return among the
// shadows of a protected block
const returnShadow = 0

// States of the finally block: the try block fell off its end, threw, or
// left through the shadow target finallyJumping+i.
const (
	finallyFalling = iota
	finallyThrowing
	finallyJumping
)

// protect shadows the function return and every enclosing break and
// continue target while a protected block is compiled. The frame height
// is the height of the handler.
func (g *Generator) protect() []*ShadowTarget {
	shadows := make([]*ShadowTarget, 0, 1+len(g.active))
	shadows = append(shadows, g.shadow(g.functionReturn))
	for _, t := range g.active {
		shadows = append(shadows, g.shadow(t))
	}
	return shadows
}

func unprotect(shadows []*ShadowTarget) (used int) {
	for _, s := range shadows {
		if s.StopShadowing() {
			used++
		}
	}
	return used
}

// unlinkShadow binds a used shadow and removes the handler the jump
// escapes from. A returned value is held in a register outside the frame.
func (g *Generator) unlinkShadow(s *ShadowTarget, withValue bool) Result {
	var res Result
	if withValue {
		res = s.BindWithValue()
		res.ToRegister()
	} else {
		s.Bind()
	}
	g.masm.UnlinkHandler()
	g.frame.Forget(asm.HandlerSize)
	return res
}

func (g *Generator) visitTryCatch(s *ast.TryCatch) {
	m := g.masm
	tryBlock := g.newJumpTarget()
	exit := g.newJumpTarget()

	tryBlock.Call()

	// the handler continues here with the exception in EAX
	m.RecordComment("[ catch")
	g.frame.RestoreContextRegister()
	exception := g.registerResult(asm.EAX)
	g.frame.Push(&exception)
	g.storeTop(s.CatchVar)
	g.frame.Drop(1)
	g.visitStatements(s.Catch.Statements)
	if g.frame != nil {
		exit.Jump()
	}

	m.RecordComment("[ try")
	tryBlock.Bind()
	g.frame.PushTryHandler(asm.TryCatchHandler)
	shadows := g.protect()
	g.visitStatements(s.Try.Statements)
	used := unprotect(shadows)

	if g.frame != nil {
		m.PopHandler()
		g.frame.Forget(asm.HandlerSize)
		if used > 0 {
			exit.Jump()
		}
	}
	for i, sh := range shadows {
		if !sh.IsLinked() {
			continue
		}
		res := g.unlinkShadow(sh, i == returnShadow)
		if i == returnShadow {
			sh.Original().JumpWithValue(&res)
		} else {
			sh.Original().Jump()
		}
	}
	exit.Bind()
}

func (g *Generator) visitTryFinally(s *ast.TryFinally) {
	g.tryFinally(
		func() { g.visitStatements(s.Try.Statements) },
		func() { g.visitStatements(s.Finally.Statements) },
	)
}

// tryFinally compiles body protected by a handler and runs finally on
// every way out of it. The finally code runs with a value and a state
// on the frame; the state decides where control goes afterwards.
func (g *Generator) tryFinally(body, finally func()) {
	m := g.masm
	tryBlock := g.newJumpTarget()
	finallyBlock := g.newJumpTarget()

	tryBlock.Call()

	// thrown exceptions enter the finally block from here
	m.RecordComment("[ finally after throw")
	g.frame.RestoreContextRegister()
	exception := g.registerResult(asm.EAX)
	g.frame.Push(&exception)
	g.frame.PushConstant(value.SmiConstant(finallyThrowing))
	finallyBlock.Jump()

	m.RecordComment("[ try")
	tryBlock.Bind()
	g.frame.PushTryHandler(asm.TryFinallyHandler)
	shadows := g.protect()
	body()
	unprotect(shadows)

	if g.frame != nil {
		m.PopHandler()
		g.frame.Forget(asm.HandlerSize)
		g.frame.PushConstant(value.UndefinedConstant)
		g.frame.PushConstant(value.SmiConstant(finallyFalling))
		finallyBlock.Jump()
	}
	for i, sh := range shadows {
		if !sh.IsLinked() {
			continue
		}
		res := g.unlinkShadow(sh, i == returnShadow)
		if i == returnShadow {
			g.frame.Push(&res)
		} else {
			g.frame.PushConstant(value.UndefinedConstant)
		}
		g.frame.PushConstant(value.SmiConstant(int32(finallyJumping + i)))
		finallyBlock.Jump()
	}

	m.RecordComment("[ finally")
	finallyBlock.Bind()
	finally()
	if g.frame == nil {
		return
	}

	// the state stays on the frame, in a register, while it is dispatched
	state := g.frame.Pop()
	state.ToRegister()
	reg := state.Reg()
	g.frame.Push(&state)
	for i, sh := range shadows {
		if !sh.IsBound() {
			continue
		}
		m.Cmp(asm.Reg(reg), asm.Smi(int32(finallyJumping+i)))
		if i != returnShadow {
			sh.Original().Branch(asm.Equal)
			continue
		}
		skip := g.newJumpTarget()
		skip.Branch(asm.NotEqual)
		g.frame.Drop(1)
		res := g.frame.Pop()
		sh.Original().JumpWithValue(&res)
		skip.Bind()
	}

	exit := g.newJumpTarget()
	m.Cmp(asm.Reg(reg), asm.Smi(finallyThrowing))
	exit.Branch(asm.NotEqual)
	g.frame.Drop(1)
	res := g.frame.CallRuntime(asm.RT_RETHROW)
	res.Unuse()
	m.Int3()
	g.setFrame(nil)

	exit.Bind()
	g.frame.Drop(2)
}

// visitWith runs the body with the object's scope on the context chain.
// The context is popped again on every way out of the body.
func (g *Generator) visitWith(s *ast.With) {
	m := g.masm
	g.load(s.Object)
	ctx := g.frame.CallRuntime(asm.RT_PUSH_WITH_CONTEXT)
	m.Mov(asm.Reg(asm.ContextRegister), ctx.Operand())
	ctx.Unuse()
	g.frame.SaveContextRegister()

	g.tryFinally(
		func() { g.visitStatement(s.Body) },
		func() {
			prev := g.frame.CallRuntime(asm.RT_POP_CONTEXT)
			m.Mov(asm.Reg(asm.ContextRegister), prev.Operand())
			prev.Unuse()
			g.frame.SaveContextRegister()
		},
	)
}
