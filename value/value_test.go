package value

import (
	"math"
	"testing"
)

func TestSmiRoundTrip(t *testing.T) {
	tests := []int32{0, 1, -1, 42, SmiMax, SmiMin, -12345}
	for _, v := range tests {
		w := SmiFromInt(v)
		if !w.IsSmi() {
			t.Errorf("SmiFromInt(%d) not tagged as smi: %#x", v, uint32(w))
		}
		if got := w.SmiValue(); got != v {
			t.Errorf("SmiFromInt(%d).SmiValue() = %d", v, got)
		}
	}
}

func TestIsValidSmi(t *testing.T) {
	tests := []struct {
		v    int64
		want bool
	}{
		{0, true},
		{int64(SmiMax), true},
		{int64(SmiMax) + 1, false},
		{int64(SmiMin), true},
		{int64(SmiMin) - 1, false},
	}
	for _, tt := range tests {
		if got := IsValidSmi(tt.v); got != tt.want {
			t.Errorf("IsValidSmi(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestRootWords(t *testing.T) {
	for r := Root(0); r < RootCount; r++ {
		w := r.Word()
		if !w.IsHeapObject() {
			t.Fatalf("root %s is not a heap pointer", r)
		}
		got, ok := RootOf(w)
		if !ok || got != r {
			t.Errorf("RootOf(%s.Word()) = %v, %v", r, got, ok)
		}
	}
	if _, ok := RootOf(SmiFromInt(3)); ok {
		t.Error("RootOf(smi) reported a root")
	}
}

func TestNumberConstantCanonicalizes(t *testing.T) {
	tests := []struct {
		name    string
		f       float64
		wantSmi bool
	}{
		{"integral", 7, true},
		{"fraction", 0.5, false},
		{"negative zero", math.Copysign(0, -1), false},
		{"too large", float64(SmiMax) + 1, false},
		{"nan", math.NaN(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NumberConstant(tt.f)
			if c.IsSmi() != tt.wantSmi {
				t.Errorf("NumberConstant(%v).IsSmi() = %v, want %v", tt.f, c.IsSmi(), tt.wantSmi)
			}
		})
	}
}

func TestConstantToBoolean(t *testing.T) {
	tests := []struct {
		c           Constant
		known, want bool
	}{
		{SmiConstant(0), true, false},
		{SmiConstant(3), true, true},
		{NumberConstant(math.NaN()), true, false},
		{StringConstant(""), true, false},
		{StringConstant("x"), true, true},
		{TrueConstant, true, true},
		{NullConstant, true, false},
		{UndefinedConstant, true, false},
		{TheHoleConstant, false, false},
	}
	for _, tt := range tests {
		known, got := tt.c.ToBoolean()
		if known != tt.known || got != tt.want {
			t.Errorf("%s.ToBoolean() = (%v, %v), want (%v, %v)", tt.c, known, got, tt.known, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		f    float64
		want string
	}{
		{1.5, "1.5"},
		{-3, "-3"},
		{1e21, "1e+21"},
		{1e20, "100000000000000000000"},
		{1073741824.5, "1073741824.5"},
		{123456789012345680000, "123456789012345680000"},
		{1e-6, "0.000001"},
		{1e-7, "1e-7"},
		{-1.25e-7, "-1.25e-7"},
		{1.23e-18, "1.23e-18"},
		{1.5e300, "1.5e+300"},
		{0.1, "0.1"},
		{math.Inf(-1), "-Infinity"},
		{math.Copysign(0, -1), "0"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.f); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.f, got, tt.want)
		}
	}
}
