package asm

import (
	"strings"
	"testing"

	"kestrel/value"
)

func TestConditionNegate(t *testing.T) {
	flagSets := []Flags{
		{}, {ZF: true}, {SF: true}, {OF: true}, {CF: true},
		{SF: true, OF: true}, {ZF: true, CF: true}, {SF: true, ZF: true},
	}
	for cc := Overflow; cc <= Greater; cc++ {
		neg := cc.Negate()
		if neg.Negate() != cc {
			t.Errorf("%s.Negate().Negate() = %s", cc, neg.Negate())
		}
		for _, f := range flagSets {
			if cc.Holds(f) == neg.Holds(f) {
				t.Errorf("%s and %s agree on %+v", cc, neg, f)
			}
		}
	}
}

func TestConditionReverse(t *testing.T) {
	tests := []struct{ cc, want Condition }{
		{Less, Greater},
		{GreaterEqual, LessEqual},
		{Below, Above},
		{Equal, Equal},
		{NotEqual, NotEqual},
	}
	for _, tt := range tests {
		if got := tt.cc.Reverse(); got != tt.want {
			t.Errorf("%s.Reverse() = %s, want %s", tt.cc, got, tt.want)
		}
	}
}

func TestLabelForwardAndBackward(t *testing.T) {
	a := NewAssembler("f")
	var fwd, back Label
	a.Bind(&back)
	a.Mov(Reg(EAX), Smi(1))
	a.J(Equal, &fwd)
	a.Jmp(&back)
	a.Bind(&fwd)
	a.Ret(0)

	code, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got := code.Instrs[1].Target; got != 3 {
		t.Errorf("forward jump target = %d, want 3", got)
	}
	if got := code.Instrs[2].Target; got != 0 {
		t.Errorf("backward jump target = %d, want 0", got)
	}
}

func TestFinalizeRejectsUnboundLabel(t *testing.T) {
	a := NewAssembler("f")
	var l Label
	a.Jmp(&l)
	if _, err := a.Finalize(); err == nil {
		t.Fatal("expected an error for an unbound label")
	}
}

func TestConstantPoolSharing(t *testing.T) {
	a := NewAssembler("f")
	i := a.AddConstant(value.StringConstant("x"))
	j := a.AddConstant(value.StringConstant("x"))
	k := a.AddConstant(value.NumberConstant(1.5))
	if i != j {
		t.Errorf("equal strings got slots %d and %d", i, j)
	}
	if k == i {
		t.Errorf("distinct constants share slot %d", k)
	}
	if op := a.ConstantOperand(value.SmiConstant(4)); !op.IsImmediate() {
		t.Errorf("smi constant operand = %s, want an immediate", op)
	}
	if op := a.ConstantOperand(value.TrueConstant); !op.IsImmediate() || op.Imm != value.True {
		t.Errorf("true constant operand = %s", op)
	}
}

func TestTwoMemoryOperandsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	a := NewAssembler("f")
	a.Mov(Mem(EBP, 1), Mem(EBP, 2))
}

func TestDisassemble(t *testing.T) {
	a := NewAssembler("sum")
	var l Label
	a.Mov(Reg(EAX), Mem(EBP, 3))
	a.Add(Reg(EAX), Smi(2))
	a.J(Overflow, &l)
	a.CallStub(Stub{Kind: STUB_GENERIC_BINARY_OP, Op: ArithAdd})
	a.Bind(&l)
	a.Ret(1)
	code, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	out := Disassemble(code)
	for _, want := range []string{"function sum", "mov eax, [ebp+3]", "add eax, 4", "jo 4", "GenericBinaryOp(ADD)", "ret 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}
