package codegen

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"kestrel/asm"
	"kestrel/ast"
	"kestrel/parser"
	"kestrel/vm"
)

// genericOptions turns every inline fast path off
func genericOptions() Options {
	opts := DefaultOptions()
	opts.InlineSmiArithmetic = false
	opts.InlineKeyedLoads = false
	return opts
}

func compile(t *testing.T, src string, opts Options) *asm.Code {
	t.Helper()
	fn, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ast.Analyze(fn)
	code, err := Generate(fn, opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return code
}

// run compiles src and returns what it prints, one line per call
func run(t *testing.T, src string, opts Options) []string {
	t.Helper()
	code := compile(t, src, opts)
	m := vm.NewMachine()
	var out bytes.Buffer
	m.Out = &out
	if _, err := m.Run(code); err != nil {
		t.Fatalf("Run: %v\n%s", err, asm.Disassemble(code))
	}
	return strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
}

var programTests = []struct {
	name string
	src  string
	want []string
}{
	{"arithmetic", `var a = 9, b = 3, c = 7, d = 2;
		print(a + b, a - b, a * b, a / b, c / d, c % d, -c % d);`,
		[]string{"12 6 27 3 3.5 1 -1"}},
	{"globals across runtime calls", `var a = 9, b = 3;
		print(a + b);
		var o = {}; o.x = 1; o.y = 2;
		print(o.x, o.y);
		function f() { var p = {}; p.x = 3; p.y = 4; return p.x + p.y; }
		print(f());`,
		[]string{"12", "1 2", "7"}},
	{"smi overflow", `var x = 1073741823, y = -1073741824;
		print(x + 1, y - 1, x * 2, -y, y / -1);`,
		[]string{"1073741824 -1073741825 2147483646 1073741824 1073741824"}},
	{"negative zero", `var z = 0, m = -4;
		print(1 / -z, 1 / (z * -1), 1 / (m % 2), 1 / (0 / -3));`,
		[]string{"-Infinity -Infinity -Infinity -Infinity"}},
	{"shifts", `var n = -16, k = 2;
		print(n >> 2, n >>> 28, 1 << 30, n << 1, n >> k, n >>> k, 1 << k);`,
		[]string{"-4 15 1073741824 -32 -4 1073741820 4"}},
	{"bit operations", `var x = 15;
		print(x & 3, x | 16, x ^ 5, ~x, x % 4, -x, 3 - x);`,
		[]string{"3 31 10 -16 3 -15 -12"}},
	{"mixed operands", `var s = "4", f = 0.5;
		print(s + 1, s - 1, f + 1, s * f, "a" + null);`,
		[]string{"41 3 1.5 2 anull"}},
	{"short circuit", `var calls = 0;
		function f(v) { calls++; return v; }
		if (f(0) && f(1)) print("no");
		print(calls);
		print(f(0) || f(2), calls);
		print(f(3) && f(4), calls);`,
		[]string{"1", "2 3", "4 5"}},
	{"comparisons", `var one = 1, nan = NaN;
		print(one < 2, "a" < "b", nan < one, nan >= one, 3 >= 3, null == undefined, null === undefined);
		print(2 > one, one != "1", one !== "1", one == "1", 0 == null);`,
		[]string{"true true false false true true false", "true false true true false"}},
	{"not and conditional", `var a = (1, 2), t = !a;
		print(a > 1 ? "big" : "small", t, !!a, !(a < 1));`,
		[]string{"big false true true"}},
	{"loops", `var s = 0;
		for (var i = 0; i < 10; i++) { if (i == 5) continue; s += i; }
		var j = 0; while (j < 3) j++;
		var k = 10; do { k--; } while (k > 7);
		print(s, j, k);`,
		[]string{"40 3 7"}},
	{"count", `var i = 5; var a = i++; var b = ++i; var c = i--;
		var s = "3"; s++;
		var o = {n: 1}; var old = o.n++;
		print(a, b, c, i, s, old, o.n);`,
		[]string{"5 7 7 6 4 1 2"}},
	{"literals", `var x = 2;
		var o = {a: 1, b: x, c: [1, x, 3], "7": x};
		print(o.a + o.b, o.c[1], o.c.length, o[7]);`,
		[]string{"3 2 3 2"}},
	{"compound assignment", `var o = {v: 10}, a = [4];
		o.v -= 3; o.v *= 2; a[0] <<= 2; a[0] |= 1;
		print(o.v, a[0]);`,
		[]string{"14 17"}},
	{"closures", `function mk() { var n = 0; return function () { return ++n; }; }
		var c = mk(); c();
		print(c());`,
		[]string{"2"}},
	{"typeof and delete", `var o = {p: 1};
		print(typeof undeclared, typeof 1, typeof "s", typeof o, typeof print);
		print(delete o.p, o.p, delete notThere);`,
		[]string{"undefined number string object function", "true undefined true"}},
	{"switch", `function s(x) {
			switch (x) { case 1: return "one"; case "2": return "two"; default: return "other"; }
		}
		print(s(1), s("2"), s(2));`,
		[]string{"one two other"}},
	{"for in skips deleted keys", `var o = {a: 1, b: 2, c: 3}, keys = [];
		for (var k in o) { delete o.b; keys.push(k); }
		print(keys.join(","));`,
		[]string{"a,c"}},
	{"try catch", `try { throw "boom"; } catch (e) { print("caught", e); }
		try { undeclared; } catch (e) { print(e.name); }`,
		[]string{"caught boom", "ReferenceError"}},
	{"finally on return", `function f(x) {
			try { if (x) return "try"; } finally { print("finally"); }
			return "after";
		}
		print(f(true)); print(f(false));`,
		[]string{"finally", "try", "finally", "after"}},
	{"finally on break", `outer: for (var i = 0; i < 3; i++) {
			try { if (i == 1) break outer; } finally { print("f" + i); }
		}
		print(i);`,
		[]string{"f0", "f1", "1"}},
	{"finally on throw", `function g() {
			try { throw "x"; } finally { print("cleanup"); }
		}
		try { g(); } catch (e) { print("rethrown", e); }`,
		[]string{"cleanup", "rethrown x"}},
	{"finally overrides return", `function h() { try { return 1; } finally { return 2; } }
		print(h());`,
		[]string{"2"}},
	{"calls and construction", `var o = {v: 3, get: function () { return this.v; }};
		function P(x) { this.x = x; }
		var p = new P(4);
		print(o.get(), o["get"](), p.x);`,
		[]string{"3 3 4"}},
	{"with", `var o = {w: 5};
		with (o) { w = w + 1; }
		print(o.w);`,
		[]string{"6"}},
}

// Every program prints the same with and without the inline fast paths
func TestPrograms(t *testing.T) {
	for _, tt := range programTests {
		t.Run(tt.name, func(t *testing.T) {
			for _, mode := range []struct {
				name string
				opts Options
			}{{"inline", DefaultOptions()}, {"generic", genericOptions()}} {
				got := run(t, tt.src, mode.opts)
				if diff := pretty.Diff(got, tt.want); len(diff) > 0 {
					t.Errorf("%s: got %q\n%v", mode.name, got, diff)
				}
			}
		})
	}
}

func TestNestingLimit(t *testing.T) {
	src := "var x = 1" + strings.Repeat(" + 1", 300) + ";"
	fn, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ast.Analyze(fn)
	opts := DefaultOptions()
	opts.MaxRecursionDepth = 50
	if _, err := Generate(fn, opts); !errors.Is(err, ErrStackOverflow) {
		t.Errorf("Generate = %v, want ErrStackOverflow", err)
	}
	opts.MaxRecursionDepth = 1000
	if _, err := Generate(fn, opts); err != nil {
		t.Errorf("Generate with a higher limit: %v", err)
	}
}

// countStubs counts calls to stubs of kind in code and its nested
// functions
func countStubs(code *asm.Code, kind asm.StubKind) int {
	n := 0
	for _, in := range code.Instrs {
		if in.Op == asm.OP_CALL_STUB && in.Stub.Kind == kind {
			n++
		}
	}
	for _, fn := range code.Functions() {
		n += countStubs(fn, kind)
	}
	return n
}

func TestInlinePathsMoveStubsOutOfLine(t *testing.T) {
	src := `function f(a, b) { return a < b ? a - 1 : b + 2; }`
	inline := compile(t, src, DefaultOptions())
	generic := compile(t, src, genericOptions())

	fn := func(c *asm.Code) *asm.Code { return c.Functions()[0] }
	for _, kind := range []asm.StubKind{asm.STUB_COMPARE, asm.STUB_GENERIC_BINARY_OP} {
		// inline code still calls the stubs, but only from deferred code
		f := fn(inline)
		for i, in := range f.Instrs[:f.DeferredStart] {
			if in.Op == asm.OP_CALL_STUB && in.Stub.Kind == kind {
				t.Errorf("inline: %s called in line at %d", kind, i)
			}
		}
		if countStubs(fn(generic), kind) == 0 {
			t.Errorf("generic: no call to %s", kind)
		}
	}
}

func TestConstantsFoldAtCompileTime(t *testing.T) {
	code := compile(t, `var x = (3 + 4) * 2 - (1 << 3);`, DefaultOptions())
	if n := countStubs(code, asm.STUB_GENERIC_BINARY_OP); n != 0 {
		t.Errorf("folded expression calls the binary stub %d times", n)
	}
	got := run(t, `print((3 + 4) * 2 - (1 << 3), 5 < 3, 1 / 2);`, DefaultOptions())
	if diff := pretty.Diff(got, []string{"6 false 0.5"}); len(diff) > 0 {
		t.Errorf("got %q: %v", got, diff)
	}
}
