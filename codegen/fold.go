package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// Fold computes a op b for two smi operands at compile time. ok is false
// when the result is not a smi or is negative zero, and always for
// division and modulo, which are left to run time.
func Fold(op ast.Op, a, b int32) (result int32, ok bool) {
	x, y := int64(a), int64(b)
	var r int64
	switch op {
	case ast.OpAdd:
		r = x + y
	case ast.OpSub:
		r = x - y
	case ast.OpMul:
		r = x * y
		if r == 0 && (x < 0 || y < 0) {
			return 0, false
		}
	case ast.OpBitOr:
		r = int64(a | b)
	case ast.OpBitAnd:
		r = int64(a & b)
	case ast.OpBitXor:
		r = int64(a ^ b)
	case ast.OpShl:
		r = int64(a << (uint32(b) & 31))
	case ast.OpSar:
		r = int64(a >> (uint32(b) & 31))
	case ast.OpShr:
		r = int64(uint32(a) >> (uint32(b) & 31))
	default:
		return 0, false
	}
	if !value.IsValidSmi(r) {
		return 0, false
	}
	return int32(r), true
}

// arithOp maps an operator to the generic binary operation it runs
func arithOp(op ast.Op) asm.ArithOp {
	switch op {
	case ast.OpAdd:
		return asm.ArithAdd
	case ast.OpSub:
		return asm.ArithSub
	case ast.OpMul:
		return asm.ArithMul
	case ast.OpDiv:
		return asm.ArithDiv
	case ast.OpMod:
		return asm.ArithMod
	case ast.OpBitOr:
		return asm.ArithBitOr
	case ast.OpBitAnd:
		return asm.ArithBitAnd
	case ast.OpBitXor:
		return asm.ArithBitXor
	case ast.OpShl:
		return asm.ArithShl
	case ast.OpSar:
		return asm.ArithSar
	case ast.OpShr:
		return asm.ArithShr
	}
	panic("codegen: not an arithmetic operator: " + op.String())
}
