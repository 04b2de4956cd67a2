package codegen

import (
	"fmt"
	"strings"

	"kestrel/asm"
	"kestrel/value"
)

// VirtualFrame is the code generator's model of the current activation:
// receiver, parameters, return address, saved frame pointer, context,
// function, locals and the expression stack, lowest first. Elements above
// the stack pointer exist only in the model; they are pushed when synced.
//
// Element i lives at [ebp + (fp - i)] once it is in memory.
type VirtualFrame struct {
	g        *Generator
	elements []FrameElement
	sp       int // index of the topmost element on the machine stack
	params   int
	locals   int
	regs     [asm.NumRegisters]int // element holding each register, or -1
	attached bool
}

// NewFrame creates the frame seen on function entry: the receiver,
// parameters and return address are already on the stack
func NewFrame(g *Generator, params, locals int) *VirtualFrame {
	f := &VirtualFrame{g: g, params: params, locals: locals, sp: -1}
	for i := range f.regs {
		f.regs[i] = -1
	}
	for i := 0; i <= params+1; i++ {
		f.elements = append(f.elements, memoryElement())
		f.sp++
	}
	return f
}

func (f *VirtualFrame) receiverIndex() int      { return 0 }
func (f *VirtualFrame) parameterIndex(i int) int { return 1 + i }
func (f *VirtualFrame) fpIndex() int            { return f.params + 2 }
func (f *VirtualFrame) contextIndex() int       { return f.params + 3 }
func (f *VirtualFrame) functionIndex() int      { return f.params + 4 }
func (f *VirtualFrame) localIndex(i int) int    { return f.params + 5 + i }
func (f *VirtualFrame) expressionBase() int     { return f.params + 5 + f.locals }

// ElementCount returns the number of elements, fixed part included
func (f *VirtualFrame) ElementCount() int { return len(f.elements) }

// Height returns the number of expression stack elements
func (f *VirtualFrame) Height() int { return len(f.elements) - f.expressionBase() }

// ElementAt returns the element depth slots below the top
func (f *VirtualFrame) ElementAt(depth int) FrameElement {
	return f.elements[len(f.elements)-1-depth]
}

// IsUsed reports whether a frame element holds r
func (f *VirtualFrame) IsUsed(r asm.Register) bool { return f.regs[r] >= 0 }

// RegisterLocation returns the element holding r, or -1
func (f *VirtualFrame) RegisterLocation(r asm.Register) int { return f.regs[r] }

func (f *VirtualFrame) slot(i int) asm.Operand {
	return asm.Mem(asm.EBP, int32(f.fpIndex()-i))
}

// ParameterAt, LocalAt, Context and Function address fixed slots
func (f *VirtualFrame) ParameterAt(i int) asm.Operand { return f.slot(f.parameterIndex(i)) }
func (f *VirtualFrame) LocalAt(i int) asm.Operand     { return f.slot(f.localIndex(i)) }
func (f *VirtualFrame) Context() asm.Operand          { return f.slot(f.contextIndex()) }
func (f *VirtualFrame) Function() asm.Operand         { return f.slot(f.functionIndex()) }
func (f *VirtualFrame) Receiver() asm.Operand         { return f.slot(f.receiverIndex()) }

func (f *VirtualFrame) use(r asm.Register, index int) {
	if f.regs[r] >= 0 {
		panic(fmt.Sprintf("codegen: %s claimed by elements %d and %d", r, f.regs[r], index))
	}
	f.regs[r] = index
	if f.attached {
		f.g.pool.Use(r)
	}
}

func (f *VirtualFrame) unuse(r asm.Register) {
	f.regs[r] = -1
	if f.attached {
		f.g.pool.Unuse(r)
	}
}

// attach makes the frame's registers count in the pool
func (f *VirtualFrame) attach() {
	if f.attached {
		return
	}
	f.attached = true
	for r, i := range f.regs {
		if i >= 0 {
			f.g.pool.Use(asm.Register(r))
		}
	}
}

func (f *VirtualFrame) detach() {
	if !f.attached {
		return
	}
	f.attached = false
	for r, i := range f.regs {
		if i >= 0 {
			f.g.pool.Unuse(asm.Register(r))
		}
	}
}

// Clone returns a detached copy
func (f *VirtualFrame) Clone() *VirtualFrame {
	c := *f
	c.elements = append([]FrameElement(nil), f.elements...)
	c.attached = false
	return &c
}

// Equals compares element locations and the stack pointer
func (f *VirtualFrame) Equals(o *VirtualFrame) bool {
	if f.sp != o.sp || len(f.elements) != len(o.elements) {
		return false
	}
	for i := range f.elements {
		if !f.elements[i].Equals(o.elements[i]) {
			return false
		}
	}
	return true
}

func (f *VirtualFrame) String() string {
	parts := make([]string, len(f.elements))
	for i, e := range f.elements {
		parts[i] = e.String()
		if i == f.sp {
			parts[i] += "<sp"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Enter emits the prologue. The callee arrives in EDI and its context
// in ESI.
func (f *VirtualFrame) Enter() {
	m := f.g.masm
	m.Push(asm.Reg(asm.EBP))
	m.Mov(asm.Reg(asm.EBP), asm.Reg(asm.ESP))
	m.Push(asm.Reg(asm.ESI))
	m.Push(asm.Reg(asm.EDI))
	f.adjust(3)
}

// AllocateLocals pushes undefined for every stack local
func (f *VirtualFrame) AllocateLocals() {
	for i := 0; i < f.locals; i++ {
		f.g.masm.Push(asm.Imm(value.Undefined))
	}
	f.adjust(f.locals)
}

// Exit emits the return sequence. The return value is in EAX.
func (f *VirtualFrame) Exit() {
	m := f.g.masm
	m.Mov(asm.Reg(asm.ESP), asm.Reg(asm.EBP))
	m.Pop(asm.Reg(asm.EBP))
	m.Ret(f.params + 1)
}

// PrepareForReturn discards everything above the saved frame pointer;
// the return sequence resets the stack pointer itself
func (f *VirtualFrame) PrepareForReturn() {
	f.Forget(len(f.elements) - f.fpIndex() - 1)
}

func (f *VirtualFrame) SaveContextRegister() {
	f.g.masm.Mov(f.Context(), asm.Reg(asm.ContextRegister))
}

func (f *VirtualFrame) RestoreContextRegister() {
	f.g.masm.Mov(asm.Reg(asm.ContextRegister), f.Context())
}

// adjust records n words pushed by emitted code
func (f *VirtualFrame) adjust(n int) {
	if f.sp != len(f.elements)-1 {
		panic("codegen: adjust with unsynced elements")
	}
	for i := 0; i < n; i++ {
		f.elements = append(f.elements, memoryElement())
	}
	f.sp += n
}

// EmitPush syncs the frame and pushes op as a memory element
func (f *VirtualFrame) EmitPush(op asm.Operand) {
	f.SyncRange(f.sp+1, len(f.elements)-1)
	f.g.masm.Push(op)
	f.adjust(1)
}
