package asm

// Label marks an instruction index. It is bound once; jumps emitted before
// binding are recorded and patched when it is bound.
type Label struct {
	pos   int
	bound bool
	uses  []int
}

// IsBound reports whether the label has a position
func (l *Label) IsBound() bool { return l.bound }

// IsLinked reports whether jumps wait for the label to be bound
func (l *Label) IsLinked() bool { return !l.bound && len(l.uses) > 0 }

// Pos returns the bound position
func (l *Label) Pos() int {
	if !l.bound {
		panic("asm: position of unbound label")
	}
	return l.pos
}
