package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// enterBreakable registers the targets of a breakable statement. cont is
// nil for statements that are not iterations.
func (g *Generator) enterBreakable(s ast.Statement, brk, cont *BreakTarget) {
	g.breaks[s] = brk
	g.active = append(g.active, brk)
	if cont != nil {
		g.continues[s] = cont
		g.active = append(g.active, cont)
	}
}

func (g *Generator) leaveBreakable(s ast.Statement) {
	n := 1
	if _, ok := g.continues[s]; ok {
		n = 2
		delete(g.continues, s)
	}
	delete(g.breaks, s)
	g.active = g.active[:len(g.active)-n]
}

func (g *Generator) visitVarDecl(s *ast.VarDecl) {
	for _, b := range s.Bindings {
		if b.Init == nil {
			continue
		}
		g.load(b.Init)
		g.storeTop(b.Name)
		g.frame.Drop(1)
		if g.frame == nil {
			return
		}
	}
}

func (g *Generator) visitExprStmt(s *ast.ExprStmt) {
	g.load(s.X)
	g.frame.Drop(1)
}

func (g *Generator) visitIf(s *ast.If) {
	exit := g.newJumpTarget()
	then := g.newJumpTarget()
	els := exit
	if s.Else != nil {
		els = g.newJumpTarget()
	}
	dest := newDestination(then, els, true)
	g.loadCondition(s.Cond, dest, true)

	if g.frame != nil || then.IsLinked() {
		then.Bind()
		g.visitStatement(s.Then)
	}
	if s.Else != nil && els.IsLinked() {
		if g.frame != nil {
			exit.Jump()
		}
		els.Bind()
		g.visitStatement(s.Else)
	}
	exit.Bind()
}

func (g *Generator) visitLabeled(s *ast.Labeled) {
	brk := g.newBreakTarget()
	g.enterBreakable(s, brk, nil)
	g.visitStatement(s.Body)
	g.leaveBreakable(s)
	brk.Bind()
}

func (g *Generator) visitReturn(s *ast.Return) {
	if s.Value == nil {
		g.frame.PushConstant(value.UndefinedConstant)
	} else {
		g.load(s.Value)
	}
	res := g.frame.Pop()
	g.functionReturn.JumpWithValue(&res)
}

func (g *Generator) visitThrow(s *ast.Throw) {
	g.load(s.Exception)
	res := g.frame.CallRuntime(asm.RT_THROW)
	res.Unuse()
	g.masm.Int3()
	g.setFrame(nil)
}
