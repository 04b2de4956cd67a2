package parser

import (
	"strings"
	"testing"

	"kestrel/ast"
)

func mustParse(t *testing.T, src string) *ast.FunctionLiteral {
	t.Helper()
	fn, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", src, err)
	}
	return fn
}

// findProxies returns every reference to name in source order
func findProxies(n ast.Node, name string) []*ast.VariableProxy {
	var out []*ast.VariableProxy
	ast.Walk(n, func(m ast.Node) bool {
		if p, ok := m.(*ast.VariableProxy); ok && p.Name == name {
			out = append(out, p)
		}
		return true
	})
	return out
}

func firstFunction(fn *ast.FunctionLiteral) *ast.FunctionLiteral {
	var found *ast.FunctionLiteral
	ast.Walk(fn, func(m ast.Node) bool {
		if f, ok := m.(*ast.FunctionLiteral); ok && f != fn && found == nil {
			found = f
		}
		return found == nil
	})
	return found
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"a >>>= 1", []TokenType{TOKEN_IDENTIFIER, TOKEN_ASSIGN_SHR, TOKEN_NUMBER}},
		{"x === y !== z", []TokenType{TOKEN_IDENTIFIER, TOKEN_EQ_STRICT, TOKEN_IDENTIFIER, TOKEN_NE_STRICT, TOKEN_IDENTIFIER}},
		{"a / b", []TokenType{TOKEN_IDENTIFIER, TOKEN_SLASH, TOKEN_IDENTIFIER}},
		{"x = /ab+c/g", []TokenType{TOKEN_IDENTIFIER, TOKEN_ASSIGN, TOKEN_REGEXP}},
		{"i++ /* c */ // d", []TokenType{TOKEN_IDENTIFIER, TOKEN_INC}},
		{"typeof instanceof", []TokenType{TOKEN_TYPEOF, TOKEN_INSTANCEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := NewLexer(tt.input)
			for i, want := range tt.want {
				tok := l.NextToken()
				if tok.Type != want {
					t.Fatalf("token %d = %s, want %s", i, tok.Type, want)
				}
			}
			if tok := l.NextToken(); tok.Type != TOKEN_EOF {
				t.Errorf("trailing token %s", tok.Type)
			}
		})
	}
}

func TestLexerLiterals(t *testing.T) {
	l := NewLexer(`0x1F 2.5e3 .5 "a\tb\x41B" 'q"'`)
	nums := []float64{31, 2500, 0.5}
	for _, want := range nums {
		tok := l.NextToken()
		if tok.Type != TOKEN_NUMBER || tok.Number != want {
			t.Errorf("got %s %v, want number %v", tok.Type, tok.Number, want)
		}
	}
	for _, want := range []string{"a\tbAB", `q"`} {
		tok := l.NextToken()
		if tok.Type != TOKEN_STRING || tok.Literal != want {
			t.Errorf("got %s %q, want string %q", tok.Type, tok.Literal, want)
		}
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		root  ast.Kind
		op    ast.Op
	}{
		{"1 + 2 * 3", ast.KindBinary, ast.OpAdd},
		{"a = b || c", ast.KindAssignment, ast.OpAssign},
		{"a < b == c", ast.KindCompare, ast.OpEq},
		{"a | b & c", ast.KindBinary, ast.OpBitOr},
		{"a << 1 + 2", ast.KindBinary, ast.OpShl},
		{"x += y ? 1 : 2", ast.KindAssignment, ast.OpAdd},
		{"a, b", ast.KindBinary, ast.OpComma},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			fn := mustParse(t, tt.input)
			x := fn.Body[0].(*ast.ExprStmt).X
			if x.Kind() != tt.root {
				t.Fatalf("root = %s, want %s", x.Kind(), tt.root)
			}
			var op ast.Op
			switch e := x.(type) {
			case *ast.Binary:
				op = e.Op
			case *ast.Compare:
				op = e.Op
			case *ast.Assignment:
				op = e.Op
			}
			if op != tt.op {
				t.Errorf("op = %s, want %s", op, tt.op)
			}
		})
	}
}

func TestNegativeLiteralFolds(t *testing.T) {
	fn := mustParse(t, "-5; -0;")
	lit, ok := fn.Body[0].(*ast.ExprStmt).X.(*ast.Literal)
	if !ok || !lit.Value.IsSmi() || lit.Value.SmiValue() != -5 {
		t.Errorf("-5 parsed as %#v", fn.Body[0].(*ast.ExprStmt).X)
	}
	zero := fn.Body[1].(*ast.ExprStmt).X.(*ast.Literal)
	if zero.Value.IsSmi() {
		t.Error("-0 must not be a smi")
	}
}

func TestSlotAllocation(t *testing.T) {
	src := `
var g = 1;
function outer(a, b) {
  var x = a, y = 2;
  function inner() { return b + y; }
  return x + inner();
}`
	prog := mustParse(t, src)
	outer := firstFunction(prog)
	if outer == nil || outer.Name != "outer" {
		t.Fatal("outer function not found")
	}
	slots := map[string]ast.SlotKind{}
	for _, v := range outer.Scope.Params {
		slots[v.Name] = v.Slot.Kind
	}
	for _, v := range outer.Scope.Locals {
		slots[v.Name] = v.Slot.Kind
	}
	want := map[string]ast.SlotKind{
		"a":     ast.SlotParameter,
		"b":     ast.SlotContext,
		"x":     ast.SlotLocal,
		"y":     ast.SlotContext,
		"inner": ast.SlotLocal,
	}
	for name, kind := range want {
		if slots[name] != kind {
			t.Errorf("%s slot = %s, want %s", name, slots[name], kind)
		}
	}
	if outer.Scope.NumContextSlots != 2 {
		t.Errorf("context slots = %d, want 2", outer.Scope.NumContextSlots)
	}
	if len(prog.Declarations) != 1 || len(outer.Declarations) != 1 {
		t.Errorf("declarations = %d/%d, want 1/1", len(prog.Declarations), len(outer.Declarations))
	}
	for _, p := range findProxies(prog, "g") {
		if p.Var.Slot.Kind != ast.SlotGlobal {
			t.Errorf("g resolved to %s", p.Var.Slot.Kind)
		}
	}
}

func TestWithMakesLookups(t *testing.T) {
	src := `
function f(o) {
  var a = 1;
  with (o) { a = b; }
  return a;
}`
	prog := mustParse(t, src)
	f := firstFunction(prog)
	refs := findProxies(f, "a")
	// the declaration, the store inside with, the return
	if len(refs) != 3 {
		t.Fatalf("found %d references to a", len(refs))
	}
	if refs[1].Var.Slot.Kind != ast.SlotLookup {
		t.Errorf("a inside with = %s, want lookup", refs[1].Var.Slot.Kind)
	}
	if refs[2].Var.Slot.Kind != ast.SlotContext {
		t.Errorf("a outside with = %s, want context", refs[2].Var.Slot.Kind)
	}
	if b := findProxies(f, "b"); b[0].Var.Slot.Kind != ast.SlotLookup {
		t.Errorf("b = %s, want lookup", b[0].Var.Slot.Kind)
	}
}

func TestCatchVariableScope(t *testing.T) {
	src := `
function f() {
  var e = 1;
  try { throw 2; } catch (e) { e = 3; }
  return e;
}`
	f := firstFunction(mustParse(t, src))
	refs := findProxies(f, "e")
	var catchVar, outer *ast.Variable
	for _, r := range refs {
		if r.Var.Name != "e" {
			t.Fatalf("unexpected variable %q", r.Var.Name)
		}
	}
	outer = refs[0].Var
	catchVar = refs[1].Var // the TryCatch node's own proxy
	if outer == catchVar {
		t.Fatal("catch variable shares the outer binding")
	}
	if refs[2].Var != catchVar {
		t.Error("assignment in catch block does not bind the catch variable")
	}
	if refs[3].Var != outer {
		t.Error("return does not bind the outer variable")
	}
}

func TestBreakTargets(t *testing.T) {
	src := `
outer: for (;;) {
  switch (1) { case 1: break; default: continue outer; }
  while (1) { break outer; }
}`
	prog := mustParse(t, src)
	loop := prog.Body[0].(*ast.For)
	if len(loop.Names) != 1 || loop.Names[0] != "outer" {
		t.Fatalf("labels = %v", loop.Names)
	}
	var breaks []*ast.Break
	var conts []*ast.Continue
	ast.Walk(prog, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.Break:
			breaks = append(breaks, s)
		case *ast.Continue:
			conts = append(conts, s)
		}
		return true
	})
	if breaks[0].Target.Kind() != ast.KindSwitch {
		t.Errorf("plain break targets %s", breaks[0].Target.Kind())
	}
	if breaks[1].Target != loop || conts[0].Target != loop {
		t.Error("labelled jumps do not target the outer loop")
	}
}

func TestInitializationBlock(t *testing.T) {
	prog := mustParse(t, "var o = {}; o.a = 1; o.b = 2; o.c = 3; p.x = 1;")
	first := prog.Body[1].(*ast.ExprStmt).X.(*ast.Assignment)
	last := prog.Body[3].(*ast.ExprStmt).X.(*ast.Assignment)
	other := prog.Body[4].(*ast.ExprStmt).X.(*ast.Assignment)
	if !first.BlockStart || !last.BlockEnd {
		t.Error("run of stores not bracketed")
	}
	if other.BlockStart || other.BlockEnd {
		t.Error("single store marked")
	}
}

func TestTryCatchFinallyNesting(t *testing.T) {
	prog := mustParse(t, "try { a(); } catch (e) { b(); } finally { c(); }")
	tf, ok := prog.Body[0].(*ast.TryFinally)
	if !ok {
		t.Fatalf("root = %s, want TryFinally", prog.Body[0].Kind())
	}
	if tf.Try.Statements[0].Kind() != ast.KindTryCatch {
		t.Errorf("inner = %s, want TryCatch", tf.Try.Statements[0].Kind())
	}
}

func TestAutomaticSemicolons(t *testing.T) {
	prog := mustParse(t, "var a = 1\nvar b = a\na\n++b\n")
	if len(prog.Body) != 4 {
		t.Fatalf("got %d statements, want 4", len(prog.Body))
	}
	count, ok := prog.Body[3].(*ast.ExprStmt).X.(*ast.Count)
	if !ok || !count.Prefix {
		t.Error("++ after a newline must be a prefix increment")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"var 1;", "expected identifier"},
		{"a + ;", "unexpected"},
		{"break;", "break outside"},
		{"while (1) { continue foo; }", "undefined label"},
		{"1 = 2;", "invalid assignment target"},
		{"return 1;", "return outside"},
		{"x: y: x: ;", "already been declared"},
		{"'abc", "unterminated string"},
		{"try {}", "missing catch or finally"},
		{"a b", "expected ';'"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
			if !strings.Contains(err.Error(), ":") {
				t.Errorf("error %q carries no position", err)
			}
		})
	}
}
