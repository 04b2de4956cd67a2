package codegen

import "kestrel/asm"

// ControlDestination says where the truth value of a condition goes:
// to the true or false target, one of which is expected to be bound
// right after the condition and is the preferred fall-through.
type ControlDestination struct {
	True, False       *JumpTarget
	trueIsFallThrough bool
	used              bool
}

func newDestination(t, f *JumpTarget, trueIsFallThrough bool) *ControlDestination {
	return &ControlDestination{True: t, False: f, trueIsFallThrough: trueIsFallThrough}
}

// Split branches on cc to the target that is not the fall-through and
// falls through to the other
func (d *ControlDestination) Split(cc asm.Condition) {
	d.used = true
	if d.trueIsFallThrough {
		d.False.Branch(cc.Negate())
	} else {
		d.True.Branch(cc)
	}
}

// Goto jumps to the true or the false target
func (d *ControlDestination) Goto(where bool) {
	d.used = true
	if where {
		d.True.Jump()
	} else {
		d.False.Jump()
	}
}

// use marks the destination used when control already reached one of
// its targets
func (d *ControlDestination) use() { d.used = true }

// Invert swaps the targets, for compiling a negated condition
func (d *ControlDestination) Invert() {
	d.True, d.False = d.False, d.True
	d.trueIsFallThrough = !d.trueIsFallThrough
}

// IsUsed reports whether control has been sent to the targets. When it
// has not, the condition left its value on the frame.
func (d *ControlDestination) IsUsed() bool { return d.used }

// TrueWasFallThrough and FalseWasFallThrough report which target code
// after the condition falls into while the frame stays valid
func (d *ControlDestination) TrueWasFallThrough() bool  { return d.trueIsFallThrough }
func (d *ControlDestination) FalseWasFallThrough() bool { return !d.trueIsFallThrough }
