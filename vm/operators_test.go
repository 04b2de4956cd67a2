package vm

import (
	"math"
	"testing"

	"kestrel/asm"
	"kestrel/value"
)

func TestToNumber(t *testing.T) {
	h := NewHeap()
	tests := []struct {
		in   value.Word
		want float64
	}{
		{h.NewString(" 42 "), 42},
		{h.NewString("0x10"), 16},
		{h.NewString(""), 0},
		{h.NewString("1e3"), 1000},
		{h.NewString("abc"), math.NaN()},
		{h.NewString("inf"), math.NaN()},
		{value.True, 1},
		{value.Null, 0},
		{value.Undefined, math.NaN()},
		{h.NewArray(nil), 0},
		{h.NewArray([]value.Word{value.SmiFromInt(7)}), 7},
	}
	for _, tt := range tests {
		got := h.ToNumber(tt.in)
		if got != tt.want && !(math.IsNaN(got) && math.IsNaN(tt.want)) {
			t.Errorf("ToNumber(%s) = %v, want %v", h.ToString(tt.in), got, tt.want)
		}
	}
}

func TestBinaryOp(t *testing.T) {
	h := NewHeap()
	smi := value.SmiFromInt
	tests := []struct {
		name string
		op   asm.ArithOp
		a, b value.Word
		want string
	}{
		{"add", asm.ArithAdd, smi(2), smi(3), "5"},
		{"concat", asm.ArithAdd, h.NewString("a"), smi(1), "a1"},
		{"concat array", asm.ArithAdd, h.NewArray([]value.Word{smi(1), smi(2)}), h.NewString("!"), "1,2!"},
		{"add overflow", asm.ArithAdd, smi(value.SmiMax), smi(1), "1073741824"},
		{"div", asm.ArithDiv, smi(7), smi(2), "3.5"},
		{"div zero", asm.ArithDiv, smi(1), smi(0), "Infinity"},
		{"mod negative", asm.ArithMod, smi(-7), smi(2), "-1"},
		{"shr", asm.ArithShr, smi(-1), smi(0), "4294967295"},
		{"sar", asm.ArithSar, smi(-8), smi(1), "-4"},
		{"shl masks", asm.ArithShl, smi(1), smi(33), "2"},
		{"xor", asm.ArithBitXor, smi(6), smi(3), "5"},
		{"undefined", asm.ArithSub, value.Undefined, smi(1), "NaN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.ToString(h.BinaryOp(tt.op, tt.a, tt.b)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
	negZero := h.BinaryOp(asm.ArithMul, smi(0), smi(-1))
	if negZero.IsSmi() {
		t.Error("0 * -1 produced a smi")
	}
}

func TestCompareStub(t *testing.T) {
	h := NewHeap()
	nan := h.NewNumber(math.NaN())
	smi := value.SmiFromInt
	tests := []struct {
		name   string
		cond   asm.Condition
		strict bool
		a, b   value.Word
		want   bool
	}{
		{"less", asm.Less, false, smi(1), smi(2), true},
		{"greater equal", asm.GreaterEqual, false, smi(1), smi(2), false},
		{"strings", asm.Less, false, h.NewString("a"), h.NewString("b"), true},
		{"nan less", asm.Less, false, nan, smi(1), false},
		{"nan less equal", asm.LessEqual, false, nan, smi(1), false},
		{"nan greater", asm.Greater, false, nan, smi(1), false},
		{"nan greater equal", asm.GreaterEqual, false, smi(1), nan, false},
		{"nan equal", asm.Equal, false, nan, nan, false},
		{"null undefined", asm.Equal, false, value.Null, value.Undefined, true},
		{"strict null undefined", asm.Equal, true, value.Null, value.Undefined, false},
		{"number string", asm.Equal, false, smi(1), h.NewString("1"), true},
		{"bool number", asm.Equal, false, value.True, smi(1), true},
		{"strict string", asm.Equal, true, h.NewString("x"), h.NewString("x"), true},
		{"heap number smi", asm.Equal, true, h.NewNumber(0.5 + 0.5), smi(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := h.Compare(tt.cond, tt.strict, tt.a, tt.b).SmiValue()
			var m Machine
			m.alu(asm.OP_SUB, value.SmiFromInt(answer), 0)
			if got := tt.cond.Holds(m.Flags); got != tt.want {
				t.Errorf("answer %d tested with %s = %v, want %v", answer, tt.cond, got, tt.want)
			}
		})
	}
}

func TestToBooleanAndTypeOf(t *testing.T) {
	h := NewHeap()
	tests := []struct {
		in     value.Word
		truthy bool
		typeOf string
	}{
		{value.SmiFromInt(0), false, "number"},
		{h.NewNumber(math.NaN()), false, "number"},
		{h.NewString(""), false, "string"},
		{h.NewString("0"), true, "string"},
		{value.Null, false, "object"},
		{value.Undefined, false, "undefined"},
		{value.True, true, "boolean"},
		{h.NewObject(h.ObjectPrototype), true, "object"},
		{h.NewFunction(&asm.Code{}, h.GlobalContext), true, "function"},
	}
	for _, tt := range tests {
		if got := h.ToBoolean(tt.in); got != tt.truthy {
			t.Errorf("ToBoolean(%s) = %v", h.ToString(tt.in), got)
		}
		if got := h.TypeOfString(tt.in); got != tt.typeOf {
			t.Errorf("typeof %s = %s, want %s", h.ToString(tt.in), got, tt.typeOf)
		}
	}
}
