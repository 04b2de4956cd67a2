package ast

import (
	"testing"

	"kestrel/value"
)

func smi(n int32) *Literal { return &Literal{Value: value.SmiConstant(n)} }

func proxy(v *Variable) *VariableProxy { return &VariableProxy{Name: v.Name, Var: v} }

func TestIsArrayIndex(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"7", true},
		{"4294967294", true},
		{"4294967295", false},
		{"01", false},
		{"", false},
		{"-1", false},
		{"1.5", false},
		{"length", false},
	}
	for _, tt := range tests {
		if got := IsArrayIndex(tt.in); got != tt.want {
			t.Errorf("IsArrayIndex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPropertyIsNamed(t *testing.T) {
	obj := &This{}
	named := &Property{Object: obj, Key: &Literal{Value: value.StringConstant("x")}}
	index := &Property{Object: obj, Key: &Literal{Value: value.StringConstant("3")}}
	keyed := &Property{Object: obj, Key: smi(3)}
	if !named.IsNamed() {
		t.Error("o.x should be named")
	}
	if index.IsNamed() || keyed.IsNamed() {
		t.Error("index keys should be keyed")
	}
}

func TestContextChainLength(t *testing.T) {
	global := &Scope{Kind: GlobalScope}
	outer := &Scope{Kind: FunctionScope, Outer: global, NumContextSlots: 2}
	middle := &Scope{Kind: FunctionScope, Outer: outer}
	inner := &Scope{Kind: FunctionScope, Outer: middle, NumContextSlots: 1}

	tests := []struct {
		name     string
		from, to *Scope
		want     int
	}{
		{"self", outer, outer, 0},
		{"skips scope without context", middle, outer, 0},
		{"one hop", inner, outer, 1},
		{"to global", inner, global, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.ContextChainLength(tt.to); got != tt.want {
				t.Errorf("ContextChainLength = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestContainsFunctionLiteral(t *testing.T) {
	fn := &FunctionLiteral{Scope: &Scope{Kind: FunctionScope}}
	with := &Binary{Op: OpAdd, Left: smi(1), Right: &Call{Callee: fn}}
	without := &Compare{Op: OpLt, Left: smi(1), Right: smi(2)}
	if !ContainsFunctionLiteral(with) {
		t.Error("expected a function literal")
	}
	if ContainsFunctionLiteral(without) {
		t.Error("unexpected function literal")
	}
}

func TestAnalyzeTypes(t *testing.T) {
	x := &Variable{Name: "x", Slot: Slot{Kind: SlotLocal}}
	add := &Binary{Op: OpAdd, Left: smi(1), Right: smi(2)}
	sub := &Binary{Op: OpSub, Left: proxy(x), Right: smi(1)}
	or := &Binary{Op: OpBitOr, Left: proxy(x), Right: &Binary{Op: OpShl, Left: proxy(x), Right: smi(2)}}
	neg := &Unary{Op: OpNeg, X: proxy(x)}
	num := &Literal{Value: value.NumberConstant(1.5)}

	fn := &FunctionLiteral{Body: []Statement{
		&ExprStmt{X: add}, &ExprStmt{X: sub}, &ExprStmt{X: or}, &ExprStmt{X: neg}, &ExprStmt{X: num},
	}}
	Analyze(fn)

	tests := []struct {
		name string
		e    Expression
		want StaticType
	}{
		{"smi add", add, TypeLikelySmi},
		{"sub", sub, TypeNumber},
		{"bit or", or, TypeLikelySmi},
		{"negate", neg, TypeNumber},
		{"heap number literal", num, TypeNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.Info().Type; got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}
	if or.BitOps != 2 {
		t.Errorf("BitOps = %d, want 2", or.BitOps)
	}
	if !or.Left.Info().NoNegativeZero {
		t.Error("bitwise operand should not observe -0")
	}
}

func TestAnalyzeNegativeZero(t *testing.T) {
	x := &Variable{Name: "x", Slot: Slot{Kind: SlotLocal}}
	mulInCond := &Binary{Op: OpMul, Left: proxy(x), Right: smi(2)}
	divisor := &Binary{Op: OpMul, Left: proxy(x), Right: smi(0)}
	div := &Binary{Op: OpDiv, Left: smi(1), Right: divisor}
	ret := &Binary{Op: OpMul, Left: proxy(x), Right: smi(0)}

	fn := &FunctionLiteral{Body: []Statement{
		&If{Cond: mulInCond, Then: &Empty{}},
		&ExprStmt{X: div},
		&Return{Value: ret},
	}}
	Analyze(fn)

	if !mulInCond.NoNegativeZero {
		t.Error("condition should not observe -0")
	}
	if divisor.NoNegativeZero {
		t.Error("divisor observes -0")
	}
	if ret.NoNegativeZero {
		t.Error("returned value observes -0")
	}
}

func TestAnalyzeLoop(t *testing.T) {
	i := &Variable{Name: "i", Slot: Slot{Kind: SlotLocal}}
	n := &Variable{Name: "n", Slot: Slot{Kind: SlotLocal}}
	condLeft := proxy(i)
	cond := &Compare{Op: OpLt, Left: condLeft, Right: proxy(n)}
	bodyUse := proxy(i)
	loop := &For{
		Init: &ExprStmt{X: &Assignment{Op: OpAssign, Target: proxy(i), Value: smi(0)}},
		Cond: cond,
		Next: &ExprStmt{X: &Count{Op: OpInc, Target: proxy(i)}},
		Body: &ExprStmt{X: bodyUse},
	}
	fnCond := &Compare{Op: OpLt, Left: proxy(n), Right: &Call{Callee: &FunctionLiteral{}}}
	while := &While{Cond: fnCond, Body: &Empty{}}
	Analyze(&FunctionLiteral{Body: []Statement{loop, while}})

	if !cond.IsLoopCondition || !fnCond.IsLoopCondition {
		t.Error("loop conditions not marked")
	}
	if condLeft.Type != TypeLikelySmi {
		t.Errorf("loop variable in condition has type %s", condLeft.Type)
	}
	if bodyUse.Type != TypeUnknown {
		t.Errorf("loop variable in body has type %s", bodyUse.Type)
	}
	if cond.HasFunctionLiteral {
		t.Error("plain condition flagged as containing a function literal")
	}
	if !fnCond.HasFunctionLiteral {
		t.Error("condition with a function literal not flagged")
	}
}
