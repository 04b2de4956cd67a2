package codegen

import (
	"fmt"

	"kestrel/asm"
)

// JumpTarget is a label that carries frame state. Forward edges record
// the frame they leave with; Bind computes the entry frame and emits a
// merge block for every edge that does not already match it. A
// bidirectional target is bound before its backward edges, which merge
// into its all-memory entry frame as they jump.
type JumpTarget struct {
	g             *Generator
	bidirectional bool
	entryLabel    *asm.Label
	edges         []*asm.Label
	reaching      []*VirtualFrame
	entry         *VirtualFrame
	bound         bool
}

func (g *Generator) newJumpTarget() *JumpTarget {
	return &JumpTarget{g: g, entryLabel: new(asm.Label)}
}

func (g *Generator) newBidirectionalTarget() *JumpTarget {
	t := g.newJumpTarget()
	t.bidirectional = true
	return t
}

// Unuse forgets every edge and binding
func (t *JumpTarget) Unuse() {
	*t = JumpTarget{g: t.g, bidirectional: t.bidirectional, entryLabel: new(asm.Label)}
}

// IsLinked reports whether forward edges wait for the target
func (t *JumpTarget) IsLinked() bool { return !t.bound && len(t.reaching) > 0 }

func (t *JumpTarget) IsBound() bool { return t.bound }

func (t *JumpTarget) IsBidirectional() bool { return t.bidirectional }

// EntryFrame returns the frame at a bound target
func (t *JumpTarget) EntryFrame() *VirtualFrame { return t.entry }

func (t *JumpTarget) addEdge() *asm.Label {
	l := new(asm.Label)
	t.edges = append(t.edges, l)
	t.reaching = append(t.reaching, t.g.frame.Clone())
	return l
}

// Jump transfers control to the target. The current frame becomes
// invalid.
func (t *JumpTarget) Jump() {
	g := t.g
	if g.frame == nil {
		panic("codegen: jump from unreachable code")
	}
	if t.bound {
		if !t.bidirectional {
			panic("codegen: backward jump to a forward-only target")
		}
		g.frame.MergeTo(t.entry)
		g.masm.Jmp(t.entryLabel)
	} else {
		g.masm.Jmp(t.addEdge())
	}
	g.setFrame(nil)
}

// Branch transfers control to the target when cc holds
func (t *JumpTarget) Branch(cc asm.Condition) {
	g := t.g
	if g.frame == nil {
		panic("codegen: branch from unreachable code")
	}
	if !t.bound {
		g.masm.J(cc, t.addEdge())
		return
	}
	if !t.bidirectional {
		panic("codegen: backward branch to a forward-only target")
	}
	fallThrough := g.frame
	edge := fallThrough.Clone()
	if ops, _ := PlanMerge(edge, t.entry); len(ops) == 0 {
		g.masm.J(cc, t.entryLabel)
		return
	}
	skip := new(asm.Label)
	g.masm.J(cc.Negate(), skip)
	g.setFrame(edge)
	edge.MergeTo(t.entry)
	g.masm.Jmp(t.entryLabel)
	g.setFrame(fallThrough)
	g.masm.Bind(skip)
}

// Call pushes a return token and enters the target. The frame is spilled
// first; the target sees it with the token on top and code after the
// call continues with the spilled frame.
func (t *JumpTarget) Call() {
	g := t.g
	if t.bound {
		panic("codegen: call to a bound target")
	}
	g.frame.SpillAll()
	l := t.addEdge()
	t.reaching[len(t.reaching)-1].adjust(1)
	g.masm.CallLocal(l)
}

// Bind places the target at the current position. Control falling
// through from a valid frame joins the recorded edges.
func (t *JumpTarget) Bind() {
	g := t.g
	if t.bound {
		panic("codegen: target bound twice")
	}
	fallThrough := g.frame
	frames := t.reaching
	if fallThrough != nil {
		g.checkRegisters()
		frames = append([]*VirtualFrame{fallThrough}, frames...)
	}
	t.bound = true
	if len(frames) == 0 {
		g.masm.Bind(t.entryLabel)
		return
	}

	if len(frames) == 1 && !t.bidirectional {
		// a single frame reaches the label: it is the entry frame
		if fallThrough == nil {
			g.masm.Bind(t.edges[0])
			g.setFrame(t.reaching[0])
		}
		g.masm.Bind(t.entryLabel)
		t.reaching, t.edges = nil, nil
		t.entry = g.frame.Clone()
		return
	}

	entry := entryFrame(frames, t.bidirectional)
	if fallThrough != nil {
		fallThrough.MergeTo(entry)
	}

	var blocks []int
	for i, f := range t.reaching {
		if !f.Equals(entry) {
			blocks = append(blocks, i)
		}
	}
	if fallThrough != nil && len(blocks) > 0 {
		g.masm.Jmp(t.entryLabel)
	}
	for k, i := range blocks {
		g.masm.Bind(t.edges[i])
		g.setFrame(t.reaching[i])
		g.frame.MergeTo(entry)
		if k < len(blocks)-1 {
			g.masm.Jmp(t.entryLabel)
		}
	}
	g.masm.Bind(t.entryLabel)
	for i, l := range t.edges {
		if !l.IsBound() {
			g.masm.Bind(l)
		}
		t.reaching[i] = nil
	}
	t.reaching, t.edges = nil, nil
	t.entry = entry
	g.setFrame(entry.Clone())
}

// BreakTarget is a jump target for break, continue and return. Frames
// reaching it are cut down to the expression stack height it was created
// at.
type BreakTarget struct {
	JumpTarget
	expectedHeight int
}

// newBreakTarget expects the current frame height
func (g *Generator) newBreakTarget() *BreakTarget {
	return &BreakTarget{JumpTarget: *g.newJumpTarget(), expectedHeight: g.frame.Height()}
}

func (g *Generator) newBidirectionalBreakTarget() *BreakTarget {
	t := g.newBreakTarget()
	t.bidirectional = true
	return t
}

func (t *BreakTarget) ExpectedHeight() int { return t.expectedHeight }

// SetExpectedHeight changes the height frames are cut down to
func (t *BreakTarget) SetExpectedHeight(h int) { t.expectedHeight = h }

func (t *BreakTarget) dropExcess() {
	f := t.g.frame
	if excess := f.Height() - t.expectedHeight; excess > 0 {
		f.Drop(excess)
	} else if excess < 0 {
		panic(fmt.Sprintf("codegen: frame height %d below break target height %d", f.Height(), t.expectedHeight))
	}
}

func (t *BreakTarget) Jump() {
	t.dropExcess()
	t.JumpTarget.Jump()
}

// JumpWithValue jumps carrying r on top of the expected height
func (t *BreakTarget) JumpWithValue(r *Result) {
	t.dropExcess()
	t.g.frame.Push(r)
	t.JumpTarget.Jump()
}

func (t *BreakTarget) Branch(cc asm.Condition) {
	if t.g.frame.Height() == t.expectedHeight {
		t.JumpTarget.Branch(cc)
		return
	}
	fall := t.g.newJumpTarget()
	fall.Branch(cc.Negate())
	t.Jump()
	fall.Bind()
}

func (t *BreakTarget) Bind() {
	if t.g.frame != nil {
		t.dropExcess()
	}
	t.JumpTarget.Bind()
}

// BindWithValue binds a target reached with one value on top and pops it
func (t *BreakTarget) BindWithValue() Result {
	if f := t.g.frame; f != nil && f.Height() != t.expectedHeight+1 {
		panic(fmt.Sprintf("codegen: value target bound at height %d, want %d", f.Height(), t.expectedHeight+1))
	}
	t.JumpTarget.Bind()
	if t.g.frame == nil {
		return Result{}
	}
	return t.g.frame.Pop()
}

// ShadowTarget stands in for a break target while a protected block is
// compiled. Edges recorded in that time belong to the shadow; the
// original target is restored by StopShadowing.
type ShadowTarget struct {
	BreakTarget
	original  *BreakTarget
	saved     BreakTarget
	shadowing bool
}

// shadow starts shadowing t. Jumps to the shadow keep the frame down to
// the current height, which is the height of the protecting handler.
func (g *Generator) shadow(t *BreakTarget) *ShadowTarget {
	s := &ShadowTarget{original: t, saved: *t, shadowing: true}
	*t = BreakTarget{JumpTarget: *g.newJumpTarget(), expectedHeight: g.frame.Height()}
	return s
}

// StopShadowing restores the original target and keeps the edges taken
// in the meantime. It reports whether the shadow was used.
func (s *ShadowTarget) StopShadowing() bool {
	if !s.shadowing {
		panic("codegen: shadow stopped twice")
	}
	s.shadowing = false
	s.BreakTarget = *s.original
	*s.original = s.saved
	return s.IsLinked()
}

// Original returns the target the shadow stood in for
func (s *ShadowTarget) Original() *BreakTarget { return s.original }
