package codegen

import (
	"testing"

	"kestrel/ast"
	"kestrel/value"
	"kestrel/vm"
)

var foldOperands = []int32{0, 1, -1, 2, 3, -7, 31, 32, 100, -100, 1 << 15, value.SmiMax, value.SmiMin, value.SmiMax / 2, value.SmiMin / 2}

var foldOps = []ast.Op{
	ast.OpAdd, ast.OpSub, ast.OpMul,
	ast.OpBitOr, ast.OpBitAnd, ast.OpBitXor,
	ast.OpShl, ast.OpSar, ast.OpShr,
}

// A folded result must be what the run time computes; a refused fold
// must be a result the run time cannot represent as a smi.
func TestFoldMatchesRuntime(t *testing.T) {
	h := vm.NewHeap()
	for _, op := range foldOps {
		for _, a := range foldOperands {
			for _, b := range foldOperands {
				got, ok := Fold(op, a, b)
				want := h.BinaryOp(arithOp(op), value.SmiFromInt(a), value.SmiFromInt(b))
				if ok {
					if !want.IsSmi() || want.SmiValue() != got {
						t.Errorf("Fold(%d %s %d) = %d, run time gives %s", a, op, b, got, want)
					}
					continue
				}
				if want.IsSmi() {
					t.Errorf("Fold(%d %s %d) refused, run time gives smi %d", a, op, b, want.SmiValue())
				}
			}
		}
	}
}

func TestFoldRefuses(t *testing.T) {
	tests := []struct {
		name string
		op   ast.Op
		a, b int32
	}{
		{"division", ast.OpDiv, 6, 3},
		{"modulo", ast.OpMod, 7, 2},
		{"negative zero", ast.OpMul, -4, 0},
		{"zero times negative", ast.OpMul, 0, -1},
		{"add overflow", ast.OpAdd, value.SmiMax, 1},
		{"sub overflow", ast.OpSub, value.SmiMin, 1},
		{"mul overflow", ast.OpMul, 1 << 16, 1 << 16},
		{"shl overflow", ast.OpShl, 1, 30},
		{"unsigned shift of negative", ast.OpShr, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r, ok := Fold(tt.op, tt.a, tt.b); ok {
				t.Errorf("Fold(%d %s %d) = %d, want refused", tt.a, tt.op, tt.b, r)
			}
		})
	}
}

func TestFoldShiftCountMasked(t *testing.T) {
	r, ok := Fold(ast.OpShl, 1, 33)
	if !ok || r != 2 {
		t.Errorf("Fold(1 << 33) = %d, %v; want 2, true", r, ok)
	}
	r, ok = Fold(ast.OpSar, -8, 32)
	if !ok || r != -8 {
		t.Errorf("Fold(-8 >> 32) = %d, %v; want -8, true", r, ok)
	}
}
