package vm

import (
	"math"
	"strconv"
	"strings"

	"kestrel/asm"
	"kestrel/value"
)

// IsNumber reports whether w is a smi or a heap number
func (h *Heap) IsNumber(w value.Word) bool {
	return w.IsSmi() || h.is(w, value.TypeHeapNumber)
}

// IsString reports whether w is a string
func (h *Heap) IsString(w value.Word) bool {
	return h.is(w, value.TypeString)
}

// IsCallable reports whether w is a function
func (h *Heap) IsCallable(w value.Word) bool {
	return h.is(w, value.TypeFunction)
}

// Number returns the value of a number word
func (h *Heap) Number(w value.Word) float64 {
	if w.IsSmi() {
		return float64(w.SmiValue())
	}
	return h.Get(w).Num
}

// ToBoolean converts w to a truth value
func (h *Heap) ToBoolean(w value.Word) bool {
	switch {
	case w.IsSmi():
		return w.SmiValue() != 0
	case w == value.True:
		return true
	case w == value.False, w == value.Undefined, w == value.Null:
		return false
	}
	switch h.TypeOf(w) {
	case value.TypeHeapNumber:
		f := h.Get(w).Num
		return f != 0 && !math.IsNaN(f)
	case value.TypeString:
		return h.Get(w).Str != ""
	}
	return true
}

// ToNumber converts w to a number
func (h *Heap) ToNumber(w value.Word) float64 {
	switch {
	case h.IsNumber(w):
		return h.Number(w)
	case w == value.True:
		return 1
	case w == value.False, w == value.Null:
		return 0
	case w == value.Undefined:
		return math.NaN()
	case h.IsString(w):
		return stringToNumber(h.Get(w).Str)
	}
	return h.ToNumber(h.ToPrimitive(w))
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	if strings.ContainsAny(s, "xXpP_") || strings.EqualFold(strings.TrimLeft(s, "+-"), "inf") ||
		strings.EqualFold(strings.TrimLeft(s, "+-"), "infinity") || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ToString converts w to a string
func (h *Heap) ToString(w value.Word) string {
	if w.IsSmi() {
		return strconv.Itoa(int(w.SmiValue()))
	}
	o := h.Get(w)
	switch h.TypeOf(w) {
	case value.TypeHeapNumber:
		return value.FormatNumber(o.Num)
	case value.TypeString, value.TypeOddball:
		return o.Str
	}
	return h.ToString(h.ToPrimitive(w))
}

// ToPrimitive converts an object to a string primitive. User-defined
// valueOf and toString methods are not consulted.
func (h *Heap) ToPrimitive(w value.Word) value.Word {
	if !h.IsJSObject(w) {
		return w
	}
	switch h.TypeOf(w) {
	case value.TypeArray:
		elems := h.ArrayElements(w)
		parts := make([]string, len(elems))
		for i, e := range elems {
			if e != value.TheHole && e != value.Undefined && e != value.Null {
				parts[i] = h.ToString(e)
			}
		}
		return h.NewString(strings.Join(parts, ","))
	case value.TypeFunction:
		name := "anonymous"
		if o := h.Get(w); o.Code != nil && o.Code.Name != "" {
			name = o.Code.Name
		} else if o.Native != nil {
			name = o.Native.Name
		}
		return h.NewString("function " + name + "() { [code] }")
	}
	if h.instanceOf(w, h.ErrorPrototype) {
		name, _ := h.GetProperty(w, "name")
		msg, _ := h.GetProperty(w, "message")
		s := h.ToString(name)
		if m := h.ToString(msg); m != "" {
			s += ": " + m
		}
		return h.NewString(s)
	}
	return h.Intern("[object Object]")
}

func (h *Heap) instanceOf(obj, proto value.Word) bool {
	for p := h.Prototype(obj); p != value.Null; p = h.Prototype(p) {
		if p == proto {
			return true
		}
	}
	return false
}

// TypeOfString returns the result of the typeof operator
func (h *Heap) TypeOfString(w value.Word) string {
	switch {
	case h.IsNumber(w):
		return "number"
	case w == value.True, w == value.False:
		return "boolean"
	case w == value.Undefined:
		return "undefined"
	case h.IsString(w):
		return "string"
	case h.IsCallable(w):
		return "function"
	}
	return "object"
}

// ToInt32 converts w to a signed 32-bit integer
func (h *Heap) ToInt32(w value.Word) int32 {
	if w.IsSmi() {
		return w.SmiValue()
	}
	return int32(toUint32(h.ToNumber(w)))
}

func toUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	f = math.Mod(f, 1<<32)
	if f < 0 {
		f += 1 << 32
	}
	return uint32(f)
}

// BinaryOp applies an arithmetic or bitwise operator with full language
// semantics. Results are smis whenever representable.
func (h *Heap) BinaryOp(op asm.ArithOp, a, b value.Word) value.Word {
	switch op {
	case asm.ArithAdd:
		pa, pb := h.ToPrimitive(a), h.ToPrimitive(b)
		if h.IsString(pa) || h.IsString(pb) {
			return h.NewString(h.ToString(pa) + h.ToString(pb))
		}
		return h.NewNumber(h.ToNumber(pa) + h.ToNumber(pb))
	case asm.ArithSub:
		return h.NewNumber(h.ToNumber(a) - h.ToNumber(b))
	case asm.ArithMul:
		return h.NewNumber(h.ToNumber(a) * h.ToNumber(b))
	case asm.ArithDiv:
		return h.NewNumber(h.ToNumber(a) / h.ToNumber(b))
	case asm.ArithMod:
		return h.NewNumber(math.Mod(h.ToNumber(a), h.ToNumber(b)))
	case asm.ArithBitOr:
		return h.NewNumber(float64(h.ToInt32(a) | h.ToInt32(b)))
	case asm.ArithBitAnd:
		return h.NewNumber(float64(h.ToInt32(a) & h.ToInt32(b)))
	case asm.ArithBitXor:
		return h.NewNumber(float64(h.ToInt32(a) ^ h.ToInt32(b)))
	case asm.ArithShl:
		return h.NewNumber(float64(h.ToInt32(a) << (uint32(h.ToInt32(b)) & 31)))
	case asm.ArithSar:
		return h.NewNumber(float64(h.ToInt32(a) >> (uint32(h.ToInt32(b)) & 31)))
	case asm.ArithShr:
		return h.NewNumber(float64(uint32(h.ToInt32(a)) >> (uint32(h.ToInt32(b)) & 31)))
	}
	panic("vm: unknown arithmetic operator " + op.String())
}

// StrictEquals implements ===
func (h *Heap) StrictEquals(a, b value.Word) bool {
	if h.IsNumber(a) && h.IsNumber(b) {
		return h.Number(a) == h.Number(b)
	}
	if h.IsString(a) && h.IsString(b) {
		return h.Get(a).Str == h.Get(b).Str
	}
	return a == b
}

// LooseEquals implements ==
func (h *Heap) LooseEquals(a, b value.Word) bool {
	for {
		switch {
		case h.IsNumber(a) && h.IsNumber(b), h.IsString(a) && h.IsString(b):
			return h.StrictEquals(a, b)
		case a == b:
			return true
		case isNullish(a) || isNullish(b):
			return isNullish(a) && isNullish(b)
		case h.IsNumber(a) && h.IsString(b), h.IsString(a) && h.IsNumber(b):
			return h.ToNumber(a) == h.ToNumber(b)
		case a == value.True || a == value.False:
			a = h.NewNumber(h.ToNumber(a))
		case b == value.True || b == value.False:
			b = h.NewNumber(h.ToNumber(b))
		case h.IsJSObject(a) && !h.IsJSObject(b):
			a = h.ToPrimitive(a)
		case h.IsJSObject(b) && !h.IsJSObject(a):
			b = h.ToPrimitive(b)
		default:
			return false
		}
	}
}

func isNullish(w value.Word) bool {
	return w == value.Undefined || w == value.Null
}

// Compare implements the compare stub. The answer is a smi that is
// tested against zero with cond: 0 for equal, negative when a < b,
// positive when a > b. When the operands are unordered the answer makes
// cond fail.
func (h *Heap) Compare(cond asm.Condition, strict bool, a, b value.Word) value.Word {
	if cond == asm.Equal || cond == asm.NotEqual {
		eq := h.LooseEquals(a, b)
		if strict {
			eq = h.StrictEquals(a, b)
		}
		if eq {
			return value.SmiFromInt(0)
		}
		return value.SmiFromInt(1)
	}
	pa, pb := h.ToPrimitive(a), h.ToPrimitive(b)
	if h.IsString(pa) && h.IsString(pb) {
		return value.SmiFromInt(int32(strings.Compare(h.Get(pa).Str, h.Get(pb).Str)))
	}
	x, y := h.ToNumber(pa), h.ToNumber(pb)
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		if cond == asm.Less || cond == asm.LessEqual {
			return value.SmiFromInt(1)
		}
		return value.SmiFromInt(-1)
	case x < y:
		return value.SmiFromInt(-1)
	case x > y:
		return value.SmiFromInt(1)
	}
	return value.SmiFromInt(0)
}
