package codegen

import (
	"fmt"

	"kestrel/asm"
)

// SyncElementAt writes the value of element i to its stack slot,
// pushing every virtual element below it first
func (f *VirtualFrame) SyncElementAt(i int) {
	if i <= f.sp {
		f.syncBelowStackPointer(i)
		return
	}
	f.SyncRange(f.sp+1, i)
}

// SyncRange syncs the elements lo..hi inclusive
func (f *VirtualFrame) SyncRange(lo, hi int) {
	for i := lo; i <= hi; i++ {
		switch {
		case i == f.sp+1:
			f.syncByPushing(i)
		case i > f.sp+1:
			panic(fmt.Sprintf("codegen: sync of %d above stack pointer %d", i, f.sp))
		case !f.elements[i].Synced:
			f.syncBelowStackPointer(i)
		}
	}
}

// SyncAll syncs every element
func (f *VirtualFrame) SyncAll() { f.SyncRange(0, len(f.elements)-1) }

func (f *VirtualFrame) syncBelowStackPointer(i int) {
	e := f.elements[i]
	m := f.g.masm
	switch e.Kind {
	case ElementMemory:
		return
	case ElementRegister:
		m.Mov(f.slot(i), asm.Reg(e.Reg))
	case ElementConstant:
		m.Mov(f.slot(i), m.ConstantOperand(e.Const))
	case ElementCopy:
		backing := f.elements[e.Index]
		if backing.IsRegister() {
			m.Mov(f.slot(i), asm.Reg(backing.Reg))
		} else {
			m.Push(f.slot(e.Index))
			m.Pop(f.slot(i))
		}
	default:
		panic(fmt.Sprintf("codegen: sync of %s", e))
	}
	f.elements[i].Synced = true
}

func (f *VirtualFrame) syncByPushing(i int) {
	e := f.elements[i]
	m := f.g.masm
	switch e.Kind {
	case ElementRegister:
		m.Push(asm.Reg(e.Reg))
	case ElementConstant:
		m.Push(m.ConstantOperand(e.Const))
	case ElementCopy:
		backing := f.elements[e.Index]
		if backing.IsRegister() {
			m.Push(asm.Reg(backing.Reg))
		} else {
			m.Push(f.slot(e.Index))
		}
	default:
		panic(fmt.Sprintf("codegen: push of %s", e))
	}
	f.elements[i].Synced = true
	f.sp++
}

// SpillElementAt syncs element i and turns it into a memory element
func (f *VirtualFrame) SpillElementAt(i int) {
	e := f.elements[i]
	if e.Kind == ElementInvalid || e.IsMemory() {
		return
	}
	f.SyncElementAt(i)
	if e.IsRegister() {
		f.unuse(e.Reg)
	}
	spilled := memoryElement()
	spilled.Copied = e.Copied
	f.elements[i] = spilled
}

// Spill moves the element holding r to memory
func (f *VirtualFrame) Spill(r asm.Register) {
	if i := f.regs[r]; i >= 0 {
		f.SpillElementAt(i)
	}
}

// SpillAll turns every element into memory
func (f *VirtualFrame) SpillAll() {
	for i := range f.elements {
		f.SpillElementAt(i)
	}
}

// SpillAnyRegister frees a register referenced only by the frame,
// preferring the deepest element
func (f *VirtualFrame) SpillAnyRegister() (asm.Register, bool) {
	best := asm.NoReg
	for _, r := range asm.AllocatableRegisters {
		i := f.regs[r]
		if i < 0 || f.g.pool.Count(r) != 1 {
			continue
		}
		if best == asm.NoReg || i < f.regs[best] {
			best = r
		}
	}
	if best == asm.NoReg {
		return asm.NoReg, false
	}
	f.Spill(best)
	return best, true
}

// PrepareForCall syncs the frame, frees every register, spills the top
// spilled elements and forgets the dropped elements the call consumes
func (f *VirtualFrame) PrepareForCall(spilled, dropped int) {
	f.SyncAll()
	for _, r := range asm.AllocatableRegisters {
		f.Spill(r)
	}
	for i := len(f.elements) - spilled; i < len(f.elements); i++ {
		f.SpillElementAt(i)
	}
	f.Forget(dropped)
}

// CallRuntime calls a runtime routine whose arguments are on top of
// the frame
func (f *VirtualFrame) CallRuntime(id asm.RuntimeID) Result {
	argc := id.Argc()
	f.PrepareForCall(argc, argc)
	f.g.masm.CallRuntime(id)
	return f.g.registerResult(asm.EAX)
}

// CallStub calls a stub whose arguments are on top of the frame
func (f *VirtualFrame) CallStub(s asm.Stub) Result {
	argc := s.Argc()
	f.PrepareForCall(argc, argc)
	f.g.masm.CallStub(s)
	return f.g.registerResult(asm.EAX)
}

// CallFunction calls the function below the receiver and argc arguments.
// The function slot stays on the frame.
func (f *VirtualFrame) CallFunction(argc int) Result {
	f.PrepareForCall(argc+2, argc+1)
	f.g.masm.Mov(asm.Reg(asm.FunctionRegister), asm.Mem(asm.ESP, int32(argc+1)))
	f.g.masm.CallFunction(argc)
	return f.g.registerResult(asm.EAX)
}

// CallConstruct calls the constructor below argc arguments. The
// constructor slot is consumed.
func (f *VirtualFrame) CallConstruct(argc int) Result {
	f.PrepareForCall(argc+1, argc+1)
	f.g.masm.Mov(asm.Reg(asm.FunctionRegister), asm.Mem(asm.ESP, int32(argc)))
	f.g.masm.CallConstruct(argc)
	return f.g.registerResult(asm.EAX)
}

// PushTryHandler records the handler words pushed above the return
// token of a local call
func (f *VirtualFrame) PushTryHandler(kind asm.HandlerKind) {
	f.g.masm.PushHandler(kind)
	f.adjust(asm.HandlerSize - 1)
}
