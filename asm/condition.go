package asm

// Condition is a condition code tested by conditional jumps
type Condition int8

const (
	Overflow Condition = iota
	NoOverflow
	Below
	AboveEqual
	Equal
	NotEqual
	BelowEqual
	Above
	Sign
	NotSign
	Less
	GreaterEqual
	LessEqual
	Greater

	Always Condition = -1
)

// Aliases used by the code generator where the intent reads better.
const (
	Zero     = Equal
	NotZero  = NotEqual
	Negative = Sign
	Positive = NotSign
	Carry    = Below
	NotCarry = AboveEqual
)

var conditionNames = [...]string{
	Overflow:     "o",
	NoOverflow:   "no",
	Below:        "b",
	AboveEqual:   "ae",
	Equal:        "e",
	NotEqual:     "ne",
	BelowEqual:   "be",
	Above:        "a",
	Sign:         "s",
	NotSign:      "ns",
	Less:         "l",
	GreaterEqual: "ge",
	LessEqual:    "le",
	Greater:      "g",
}

func (cc Condition) String() string {
	if cc == Always {
		return "mp"
	}
	if cc >= 0 && int(cc) < len(conditionNames) {
		return conditionNames[cc]
	}
	return "??"
}

// Negate returns the condition that holds exactly when cc does not.
// Conditions are laid out in complementary pairs.
func (cc Condition) Negate() Condition {
	if cc == Always {
		panic("asm: cannot negate the always condition")
	}
	return cc ^ 1
}

// Reverse returns the condition to test after swapping the operands of a
// comparison.
func (cc Condition) Reverse() Condition {
	switch cc {
	case Below:
		return Above
	case Above:
		return Below
	case AboveEqual:
		return BelowEqual
	case BelowEqual:
		return AboveEqual
	case Less:
		return Greater
	case Greater:
		return Less
	case GreaterEqual:
		return LessEqual
	case LessEqual:
		return GreaterEqual
	}
	return cc
}

// Holds evaluates cc against a flags word.
func (cc Condition) Holds(f Flags) bool {
	switch cc {
	case Always:
		return true
	case Overflow:
		return f.OF
	case NoOverflow:
		return !f.OF
	case Below:
		return f.CF
	case AboveEqual:
		return !f.CF
	case Equal:
		return f.ZF
	case NotEqual:
		return !f.ZF
	case BelowEqual:
		return f.CF || f.ZF
	case Above:
		return !f.CF && !f.ZF
	case Sign:
		return f.SF
	case NotSign:
		return !f.SF
	case Less:
		return f.SF != f.OF
	case GreaterEqual:
		return f.SF == f.OF
	case LessEqual:
		return f.ZF || f.SF != f.OF
	case Greater:
		return !f.ZF && f.SF == f.OF
	}
	return false
}

// Flags is the arithmetic status register
type Flags struct {
	ZF, SF, OF, CF bool
}
