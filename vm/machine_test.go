package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"kestrel/asm"
	"kestrel/value"
)

// assemble builds a function from hand-written instructions
func assemble(t *testing.T, params int, build func(a *asm.Assembler)) *asm.Code {
	t.Helper()
	a := asm.NewAssembler("test")
	build(a)
	code, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	code.ParamCount = params
	return code
}

func TestFirstParameter(t *testing.T) {
	// at entry esp points at the return address; parameter 1 of 1 is
	// just above it
	code := assemble(t, 1, func(a *asm.Assembler) {
		a.Mov(asm.Reg(asm.EAX), asm.Mem(asm.ESP, 1))
		a.Ret(2)
	})
	tests := []struct {
		name string
		args []value.Word
		want value.Word
	}{
		{"exact", []value.Word{value.SmiFromInt(41)}, value.SmiFromInt(41)},
		{"missing", nil, value.Undefined},
		{"extra", []value.Word{value.SmiFromInt(1), value.SmiFromInt(2), value.SmiFromInt(3)}, value.SmiFromInt(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			fn := m.Heap.NewFunction(code, m.Heap.GlobalContext)
			top := m.esp()
			got, err := m.Call(fn, m.Heap.Global, tt.args...)
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if m.esp() != top {
				t.Errorf("esp = %d after call, want %d", m.esp(), top)
			}
		})
	}
}

func TestArithmeticFlags(t *testing.T) {
	tests := []struct {
		name   string
		op     asm.OpCode
		a, b   int32
		want   int32
		of, cf bool
	}{
		{"add", asm.OP_ADD, 2, 3, 5, false, false},
		{"add overflow", asm.OP_ADD, 1<<31 - 1, 1, -1 << 31, true, false},
		{"sub borrow", asm.OP_SUB, 1, 2, -1, false, true},
		{"sub overflow", asm.OP_SUB, -1 << 31, 1, 1<<31 - 1, true, false},
		{"imul overflow", asm.OP_IMUL, 1 << 20, 1 << 12, 0, true, true},
		{"or", asm.OP_OR, 4, 1, 5, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			got := m.alu(tt.op, value.Word(uint32(tt.a)), value.Word(uint32(tt.b)))
			if got.Int32() != tt.want {
				t.Errorf("result = %d, want %d", got.Int32(), tt.want)
			}
			if m.Flags.OF != tt.of || m.Flags.CF != tt.cf {
				t.Errorf("flags = %+v, want OF=%v CF=%v", m.Flags, tt.of, tt.cf)
			}
		})
	}
}

func TestIdiv(t *testing.T) {
	m := NewMachine()
	dividend := int32(-7)
	m.Regs[asm.EAX] = value.Word(uint32(dividend))
	m.Regs[asm.EDX] = value.Word(0xffffffff)
	m.idiv(value.Word(2))
	if q, r := m.Regs[asm.EAX].Int32(), m.Regs[asm.EDX].Int32(); q != -3 || r != -1 {
		t.Errorf("-7/2 = %d rem %d, want -3 rem -1", q, r)
	}
}

func TestTryCatchUnwinds(t *testing.T) {
	code := assemble(t, 0, func(a *asm.Assembler) {
		var try asm.Label
		a.CallLocal(&try)
		// handler: the exception is in eax
		a.Ret(1)
		a.Bind(&try)
		a.PushHandler(asm.TryCatchHandler)
		a.Push(asm.Smi(7))
		a.CallRuntime(asm.RT_THROW)
		a.Int3()
	})
	m := NewMachine()
	got, err := m.Run(code)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != value.SmiFromInt(7) {
		t.Errorf("caught %s, want smi(7)", got)
	}
	if m.Handler != 0 {
		t.Errorf("handler chain not restored: %d", m.Handler)
	}
}

func TestUncaughtThrow(t *testing.T) {
	code := assemble(t, 0, func(a *asm.Assembler) {
		a.Push(asm.Smi(3))
		a.CallRuntime(asm.RT_THROW)
		a.Int3()
	})
	_, err := NewMachine().Run(code)
	var te *ThrowError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want a ThrowError", err)
	}
	if te.Value != value.SmiFromInt(3) || te.Message != "3" {
		t.Errorf("thrown %s %q", te.Value, te.Message)
	}
}

func TestTickLimit(t *testing.T) {
	code := assemble(t, 0, func(a *asm.Assembler) {
		var loop asm.Label
		a.Bind(&loop)
		a.Jmp(&loop)
	})
	m := NewMachine()
	m.TickLimit = 1000
	if _, err := m.Run(code); !errors.Is(err, ErrTickLimit) {
		t.Errorf("err = %v, want ErrTickLimit", err)
	}
}

func TestFieldAccessThroughSmiFaults(t *testing.T) {
	code := assemble(t, 0, func(a *asm.Assembler) {
		a.Mov(asm.Reg(asm.ECX), asm.Smi(4))
		a.Mov(asm.Reg(asm.EAX), asm.Mem(asm.ECX, 0))
		a.Ret(1)
	})
	_, err := NewMachine().Run(code)
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("err = %v, want a Fault", err)
	}
	if f.PC != 1 {
		t.Errorf("fault at %d, want 1", f.PC)
	}
}

func TestCallNative(t *testing.T) {
	m := NewMachine()
	var out bytes.Buffer
	m.Out = &out
	printFn, ok := m.Heap.GetProperty(m.Heap.Global, "print")
	if !ok {
		t.Fatal("print is not installed")
	}
	if _, err := m.Call(printFn, m.Heap.Global, value.SmiFromInt(1), m.Heap.NewString("two")); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got := out.String(); got != "1 two\n" {
		t.Errorf("printed %q", got)
	}
}

func TestCallNonFunction(t *testing.T) {
	m := NewMachine()
	_, err := m.Call(value.SmiFromInt(1), m.Heap.Global)
	var te *ThrowError
	if !errors.As(err, &te) || !strings.Contains(te.Message, "TypeError") {
		t.Errorf("err = %v, want a TypeError", err)
	}
}

func TestContextLookup(t *testing.T) {
	m := NewMachine()
	h := m.Heap
	fctx := h.NewContext(h.GlobalContext, value.Undefined, 2, []string{"a", "b"})
	h.Get(fctx).Fields[value.ContextHeaderSize+1] = value.SmiFromInt(9)
	obj := h.NewObject(h.ObjectPrototype)
	h.SetProperty(obj, "a", value.SmiFromInt(5))
	with := h.NewContext(fctx, obj, 0, nil)
	h.SetProperty(h.Global, "g", value.True)

	tests := []struct {
		name     string
		want     value.Word
		receiver value.Word
	}{
		{"a", value.SmiFromInt(5), obj},
		{"b", value.SmiFromInt(9), h.Global},
		{"g", value.True, h.Global},
	}
	for _, tt := range tests {
		v, recv, err := m.loadContextSlot(with, tt.name, true)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if v != tt.want || recv != tt.receiver {
			t.Errorf("%s = %s (receiver %s), want %s (receiver %s)", tt.name, v, recv, tt.want, tt.receiver)
		}
	}
	if _, _, err := m.loadContextSlot(with, "missing", true); err == nil {
		t.Error("missing name did not throw")
	}
	if v, _, err := m.loadContextSlot(with, "missing", false); err != nil || v != value.Undefined {
		t.Errorf("typeof-style lookup = %s, %v", v, err)
	}

	m.storeContextSlot(with, "b", value.SmiFromInt(10))
	if got := h.Get(fctx).Fields[value.ContextHeaderSize+1]; got != value.SmiFromInt(10) {
		t.Errorf("store through with context wrote %s", got)
	}
	if h.Get(with).Fields[value.ContextFcontextOffset] != fctx {
		t.Error("with context does not share the function context")
	}
}
