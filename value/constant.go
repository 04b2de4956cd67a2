package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConstantKind classifies a compile-time literal.
type ConstantKind uint8

const (
	KindSmi ConstantKind = iota
	KindNumber
	KindString
	KindOddball
)

// Constant is a literal known at compile time. Smis and oddballs can be
// used as immediates; numbers and strings live in a constant pool.
type Constant struct {
	Kind ConstantKind
	smi  int32
	num  float64
	str  string
	root Root
}

// SmiConstant makes a smi literal.
func SmiConstant(v int32) Constant { return Constant{Kind: KindSmi, smi: v} }

// NumberConstant makes a numeric literal, canonicalized to a smi when the
// value is integral, in range and not negative zero.
func NumberConstant(f float64) Constant {
	if i, ok := SmiFromFloat(f); ok {
		return SmiConstant(i)
	}
	return Constant{Kind: KindNumber, num: f}
}

// StringConstant makes a string literal.
func StringConstant(s string) Constant { return Constant{Kind: KindString, str: s} }

// OddballConstant makes a literal for one of the oddball roots.
func OddballConstant(r Root) Constant { return Constant{Kind: KindOddball, root: r} }

var (
	UndefinedConstant = OddballConstant(RootUndefined)
	NullConstant      = OddballConstant(RootNull)
	TrueConstant      = OddballConstant(RootTrue)
	FalseConstant     = OddballConstant(RootFalse)
	TheHoleConstant   = OddballConstant(RootTheHole)
)

// SmiFromFloat returns f as a smi payload when it is representable.
func SmiFromFloat(f float64) (int32, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f == 0 && math.Signbit(f) {
		return 0, false
	}
	if f < float64(SmiMin) || f > float64(SmiMax) {
		return 0, false
	}
	return int32(f), true
}

func (c Constant) IsSmi() bool     { return c.Kind == KindSmi }
func (c Constant) IsNumber() bool  { return c.Kind == KindSmi || c.Kind == KindNumber }
func (c Constant) IsString() bool  { return c.Kind == KindString }
func (c Constant) IsOddball() bool { return c.Kind == KindOddball }

func (c Constant) SmiValue() int32 { return c.smi }
func (c Constant) Str() string     { return c.str }
func (c Constant) Root() Root      { return c.root }

// Number returns the numeric value of a smi or number constant.
func (c Constant) Number() float64 {
	if c.Kind == KindSmi {
		return float64(c.smi)
	}
	return c.num
}

// Is reports whether c is the given oddball.
func (c Constant) Is(r Root) bool { return c.Kind == KindOddball && c.root == r }

// Immediate returns the word for constants that need no heap allocation.
func (c Constant) Immediate() (Word, bool) {
	switch c.Kind {
	case KindSmi:
		return SmiFromInt(c.smi), true
	case KindOddball:
		return c.root.Word(), true
	}
	return 0, false
}

// ToBoolean returns the truth value of c when it is statically known.
func (c Constant) ToBoolean() (known, truth bool) {
	switch c.Kind {
	case KindSmi:
		return true, c.smi != 0
	case KindNumber:
		return true, c.num != 0 && !math.IsNaN(c.num)
	case KindString:
		return true, c.str != ""
	case KindOddball:
		switch c.root {
		case RootTrue:
			return true, true
		case RootFalse, RootUndefined, RootNull:
			return true, false
		}
	}
	return false, false
}

// Equal compares two constants by value. NaN numbers are equal to each
// other so that frame states holding the same literal compare equal.
func (c Constant) Equal(o Constant) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case KindSmi:
		return c.smi == o.smi
	case KindNumber:
		return c.num == o.num && math.Signbit(c.num) == math.Signbit(o.num) ||
			math.IsNaN(c.num) && math.IsNaN(o.num)
	case KindString:
		return c.str == o.str
	default:
		return c.root == o.root
	}
}

func (c Constant) String() string {
	switch c.Kind {
	case KindSmi:
		return strconv.Itoa(int(c.smi))
	case KindNumber:
		return FormatNumber(c.num)
	case KindString:
		return strconv.Quote(c.str)
	default:
		return c.root.String()
	}
}

// FormatNumber renders a number the way the script language prints it.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	sign := ""
	if f < 0 {
		sign, f = "-", -f
	}
	// Shortest round-trip digits d1.d2...dk and the decimal exponent.
	e := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(e, "e")
	digits := strings.Replace(mant, ".", "", 1)
	x, _ := strconv.Atoi(exp)
	k, n := len(digits), x+1
	switch {
	case k <= n && n <= 21:
		return sign + digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return sign + digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return sign + "0." + strings.Repeat("0", -n) + digits
	}
	out := digits[:1]
	if k > 1 {
		out += "." + digits[1:]
	}
	if n-1 >= 0 {
		return sign + out + "e+" + strconv.Itoa(n-1)
	}
	return sign + out + "e-" + strconv.Itoa(1-n)
}

// GoString is used by %#v in test diffs.
func (c Constant) GoString() string { return fmt.Sprintf("value.Constant(%s)", c) }
