package codegen

import (
	"kestrel/ast"
)

// conditionInfo is what is known about a loop condition before it is
// compiled
type conditionInfo uint8

const (
	conditionUnknown conditionInfo = iota
	conditionAlwaysTrue
	conditionAlwaysFalse
)

// analyzeCondition recognises missing conditions and literal conditions
func analyzeCondition(cond ast.Expression) conditionInfo {
	if cond == nil {
		return conditionAlwaysTrue
	}
	if lit, ok := cond.(*ast.Literal); ok {
		if known, truth := lit.Value.ToBoolean(); known {
			if truth {
				return conditionAlwaysTrue
			}
			return conditionAlwaysFalse
		}
	}
	return conditionUnknown
}

// testAtBottom decides whether a loop condition is compiled a second time
// below the body. A condition holding a function literal is compiled
// once, at the top, so the literal is not compiled twice.
func testAtBottom(cond ast.Expression) bool {
	return cond != nil && !cond.Info().HasFunctionLiteral
}

func (g *Generator) visitDoWhile(s *ast.DoWhile) {
	info := analyzeCondition(s.Cond)
	brk := g.newBreakTarget()
	var cont *BreakTarget
	body := g.newBidirectionalTarget()

	switch info {
	case conditionAlwaysTrue:
		cont = g.newBidirectionalBreakTarget()
		cont.Bind()
	case conditionAlwaysFalse:
		cont = g.newBreakTarget()
	default:
		cont = g.newBreakTarget()
		body.Bind()
	}

	g.loopNesting++
	g.enterBreakable(s, brk, cont)
	g.checkStack()
	g.visitStatement(s.Body)
	g.leaveBreakable(s)

	switch info {
	case conditionAlwaysTrue:
		if g.frame != nil {
			cont.Jump()
		}
	case conditionAlwaysFalse:
		cont.Bind()
	default:
		cont.Bind()
		if g.frame != nil {
			dest := newDestination(body, &brk.JumpTarget, false)
			g.loadCondition(s.Cond, dest, true)
		}
	}
	brk.Bind()
	g.loopNesting--
}

func (g *Generator) visitWhile(s *ast.While) {
	info := analyzeCondition(s.Cond)
	if info == conditionAlwaysFalse {
		return
	}
	g.loop(s, s.Cond, nil, s.Body, info)
}

func (g *Generator) visitFor(s *ast.For) {
	if s.Init != nil {
		g.visitStatement(s.Init)
		if g.frame == nil {
			return
		}
	}
	info := analyzeCondition(s.Cond)
	if info == conditionAlwaysFalse {
		return
	}
	g.loop(s, s.Cond, s.Next, s.Body, info)
}

// loop compiles a while or for loop. The condition is tested at the top
// and, unless it holds a function literal, again at the bottom so that
// every iteration takes one conditional backward branch.
func (g *Generator) loop(s ast.Statement, cond ast.Expression, next, bodyStmt ast.Statement, info conditionInfo) {
	bottom := info == conditionUnknown && testAtBottom(cond)
	brk := g.newBreakTarget()
	var cont *BreakTarget
	top := g.newBidirectionalTarget() // backward edge without a test at the bottom
	body := g.newJumpTarget()
	if bottom {
		body = g.newBidirectionalTarget()
	}

	switch {
	case bottom:
		cont = g.newBreakTarget()
	case next == nil:
		cont = g.newBidirectionalBreakTarget()
		cont.Bind()
	default:
		cont = g.newBreakTarget()
		top.Bind()
	}

	if info == conditionUnknown {
		dest := newDestination(body, &brk.JumpTarget, true)
		g.loadCondition(cond, dest, true)
		if g.frame == nil && !body.IsLinked() {
			// the condition is false on entry
			brk.Bind()
			return
		}
	}
	if g.frame != nil || body.IsLinked() {
		body.Bind()
	}

	g.loopNesting++
	g.enterBreakable(s, brk, cont)
	g.checkStack()
	g.visitStatement(bodyStmt)
	g.leaveBreakable(s)

	if next != nil {
		cont.Bind()
		if g.frame != nil {
			g.masm.SetPosition(s.Position().Offset())
			g.visitStatement(next)
		}
	}

	switch {
	case bottom:
		if !cont.IsBound() {
			cont.Bind()
		}
		if g.frame != nil {
			dest := newDestination(body, &brk.JumpTarget, false)
			g.loadCondition(cond, dest, true)
		}
	case g.frame == nil:
	case next == nil:
		cont.Jump()
	default:
		top.Jump()
	}
	brk.Bind()
	g.loopNesting--
}

func (g *Generator) visitSwitch(s *ast.Switch) {
	brk := g.newBreakTarget()
	g.enterBreakable(s, brk, nil)
	defer g.leaveBreakable(s)

	g.load(s.Tag)
	bodies := make([]*JumpTarget, len(s.Cases))
	for i := range bodies {
		bodies[i] = g.newJumpTarget()
	}
	defaultIndex := -1
	next := g.newJumpTarget()
	for i, c := range s.Cases {
		if c.Label == nil {
			defaultIndex = i
			continue
		}
		if g.frame == nil && !next.IsLinked() {
			// an earlier label matched unconditionally
			break
		}
		next.Bind()
		next = g.newJumpTarget()
		g.masm.SetPosition(c.Position().Offset())
		g.masm.RecordComment("[ case comparison")
		g.frame.Dup()
		g.load(c.Label)
		dest := newDestination(bodies[i], next, false)
		g.comparison(compareStrictEquals, dest)
	}
	if g.frame != nil || next.IsLinked() {
		next.Bind()
		g.frame.Drop(1)
		if defaultIndex >= 0 {
			bodies[defaultIndex].Jump()
		} else {
			brk.Jump()
		}
	}

	for i, c := range s.Cases {
		target := bodies[i]
		if !target.IsLinked() && g.frame == nil {
			continue
		}
		if target.IsLinked() {
			switch {
			case g.frame == nil:
				target.Bind()
				if i != defaultIndex {
					g.frame.Drop(1)
				}
			case i == defaultIndex:
				target.Bind()
			default:
				// the previous body falls through without the switch value
				fall := g.newJumpTarget()
				fall.Jump()
				target.Bind()
				g.frame.Drop(1)
				fall.Bind()
			}
		}
		g.visitStatements(c.Body)
	}
	brk.Bind()
}
