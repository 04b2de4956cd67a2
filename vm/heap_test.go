package vm

import (
	"math"
	"testing"

	"golang.org/x/exp/slices"

	"kestrel/asm"
	"kestrel/value"
)

func TestRootsHaveFixedWords(t *testing.T) {
	h := NewHeap()
	tests := []struct {
		w    value.Word
		want value.InstanceType
	}{
		{value.Undefined, value.TypeOddball},
		{value.TheHole, value.TypeOddball},
		{value.EmptyFixedArray, value.TypeFixedArray},
		{value.HeapNumberMap, value.TypeMap},
		{value.MetaMap, value.TypeMap},
	}
	for _, tt := range tests {
		if got := h.TypeOf(tt.w); got != tt.want {
			t.Errorf("type of %s = %s, want %s", tt.w, got, tt.want)
		}
	}
	if h.Get(value.Null).Str != "null" {
		t.Error("null root is not the null oddball")
	}
}

func TestNewNumberNormalises(t *testing.T) {
	h := NewHeap()
	if w := h.NewNumber(12); w != value.SmiFromInt(12) {
		t.Errorf("12 = %s, want a smi", w)
	}
	negZero := h.NewNumber(math.Copysign(0, -1))
	if negZero.IsSmi() || !math.Signbit(h.Number(negZero)) {
		t.Error("-0 must stay a heap number")
	}
	if w := h.NewNumber(1 << 30); w.IsSmi() {
		t.Error("2^30 is outside the smi range")
	}
}

func TestMapTransitionsAreShared(t *testing.T) {
	h := NewHeap()
	a := h.NewObject(h.ObjectPrototype)
	b := h.NewObject(h.ObjectPrototype)
	for _, o := range []value.Word{a, b} {
		h.SetProperty(o, "x", value.SmiFromInt(1))
		h.SetProperty(o, "y", value.SmiFromInt(2))
	}
	ma, mb := h.Get(a).Fields[value.MapOffset], h.Get(b).Fields[value.MapOffset]
	if ma != mb {
		t.Fatal("objects built the same way have different maps")
	}
	if got := h.MapOf(a).Keys; !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("map keys = %v", got)
	}

	h.SetProperty(a, "x", value.SmiFromInt(5))
	if h.Get(a).Fields[value.MapOffset] != ma {
		t.Error("overwriting a property changed the map")
	}

	h.DeleteProperty(a, "x")
	if !h.MapOf(a).Dictionary {
		t.Error("delete did not switch to dictionary mode")
	}
	h.SetProperty(a, "x", value.SmiFromInt(1))
	h.ToFastProperties(a)
	if h.MapOf(a).Dictionary {
		t.Fatal("ToFastProperties left the object in dictionary mode")
	}
	if got := h.MapOf(a).Keys; !slices.Equal(got, []string{"y", "x"}) {
		t.Errorf("rebuilt map keys = %v", got)
	}
}

func TestSlowPropertiesRoundTrip(t *testing.T) {
	h := NewHeap()
	o := h.NewObject(h.ObjectPrototype)
	h.ToSlowProperties(o)
	h.SetProperty(o, "a", value.SmiFromInt(1))
	h.SetProperty(o, "b", value.SmiFromInt(2))
	h.ToFastProperties(o)

	p := h.NewObject(h.ObjectPrototype)
	h.SetProperty(p, "a", value.SmiFromInt(3))
	h.SetProperty(p, "b", value.SmiFromInt(4))
	if h.Get(o).Fields[value.MapOffset] != h.Get(p).Fields[value.MapOffset] {
		t.Error("initialisation block did not end on the shared map")
	}
}

func TestArrayElements(t *testing.T) {
	h := NewHeap()
	arr := h.NewArray([]value.Word{value.SmiFromInt(1)})
	h.SetElement(arr, 4, value.SmiFromInt(5))
	if n := h.ArrayLength(arr); n != 5 {
		t.Fatalf("length = %d, want 5", n)
	}
	if _, ok := h.GetElement(arr, 2); ok {
		t.Error("gap is not a hole")
	}
	if v, _ := h.GetOwn(arr, "length"); v != value.SmiFromInt(5) {
		t.Errorf("length property = %s", v)
	}
	h.SetProperty(arr, "length", value.SmiFromInt(1))
	if _, ok := h.GetElement(arr, 4); ok {
		t.Error("truncation kept element 4")
	}
	if got := h.OwnKeys(arr); !slices.Equal(got, []string{"0"}) {
		t.Errorf("keys = %v", got)
	}
}

func TestEnumerableKeys(t *testing.T) {
	h := NewHeap()
	proto := h.NewObject(h.ObjectPrototype)
	h.SetProperty(proto, "inherited", value.True)
	h.SetProperty(proto, "shadowed", value.True)
	o := h.NewObject(proto)
	h.SetProperty(o, "own", value.True)
	h.SetProperty(o, "shadowed", value.False)
	h.DefineHidden(o, "hidden", value.True)

	want := []string{"own", "shadowed", "inherited"}
	if got := h.EnumerableKeys(o); !slices.Equal(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	if h.hasEnumCache(o) {
		t.Error("enum cache used with an enumerable prototype")
	}

	plain := h.NewObject(h.ObjectPrototype)
	h.SetProperty(plain, "a", value.True)
	if !h.hasEnumCache(plain) {
		t.Fatal("plain object cannot use the enum cache")
	}
	m := h.Get(plain).Fields[value.MapOffset]
	cache := h.EnumCache(m)
	if h.EnumCache(m) != cache {
		t.Error("enum cache rebuilt")
	}
	if keys := h.FixedArrayElements(cache); len(keys) != 1 || h.Get(keys[0]).Str != "a" {
		t.Errorf("cache = %v", keys)
	}
}

func TestConstantPool(t *testing.T) {
	h := NewHeap()
	s1 := h.constant(value.StringConstant("k"))
	s2 := h.constant(value.StringConstant("k"))
	if s1 != s2 {
		t.Error("string constants are not interned")
	}
	if w := h.constant(value.SmiConstant(3)); w != value.SmiFromInt(3) {
		t.Errorf("smi constant = %s", w)
	}
	code := &asm.Code{Name: "f"}
	if shared := h.constant(code); h.Get(shared).Code != code || h.TypeOf(shared) != value.TypeSharedInfo {
		t.Error("function constant is not a shared function info")
	}
}
