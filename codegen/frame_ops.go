package codegen

import (
	"fmt"

	"kestrel/asm"
	"kestrel/value"
)

// Push moves a result onto the frame. A register already owned by an
// element is pushed as a copy of that element.
func (f *VirtualFrame) Push(r *Result) {
	switch {
	case r.IsConstant():
		f.PushConstant(r.Constant())
	case r.IsRegister():
		f.PushRegister(r.Reg())
	default:
		panic("codegen: push of an invalid result")
	}
	r.Unuse()
}

func (f *VirtualFrame) PushRegister(r asm.Register) {
	if i := f.regs[r]; i >= 0 {
		f.elements[i].Copied = true
		f.elements = append(f.elements, copyElement(i))
		return
	}
	f.elements = append(f.elements, registerElement(r, false))
	f.use(r, len(f.elements)-1)
}

func (f *VirtualFrame) PushConstant(c value.Constant) {
	f.elements = append(f.elements, constantElement(c, false))
}

// Pop removes the top element and returns its value
func (f *VirtualFrame) Pop() Result {
	top := len(f.elements) - 1
	e := f.elements[top]
	f.elements = f.elements[:top]
	index := top
	if f.sp == top {
		f.sp--
		if e.IsMemory() {
			tmp := f.g.allocate()
			f.g.masm.Pop(asm.Reg(tmp.reg))
			return tmp
		}
		f.g.masm.Add(asm.Reg(asm.ESP), asm.Int(1))
	}
	switch e.Kind {
	case ElementRegister:
		f.unuse(e.Reg)
		return f.g.registerResult(e.Reg)
	case ElementConstant:
		return f.g.constantResult(e.Const)
	case ElementCopy:
		index = e.Index
		e = f.elements[index]
	}
	switch e.Kind {
	case ElementRegister:
		return f.g.registerResult(e.Reg)
	case ElementConstant:
		return f.g.constantResult(e.Const)
	case ElementMemory:
		// the backing slot of a copy: cache it in a register
		tmp := f.g.allocate()
		f.g.masm.Mov(asm.Reg(tmp.reg), f.slot(index))
		backing := registerElement(tmp.reg, true)
		backing.Copied = f.elements[index].Copied
		f.elements[index] = backing
		f.use(tmp.reg, index)
		return tmp
	}
	panic(fmt.Sprintf("codegen: pop of %s", e))
}

// PopToRegister pops the top element into target
func (f *VirtualFrame) PopToRegister(target asm.Register) Result {
	r := f.Pop()
	r.ToRegisterSpecific(target)
	return r
}

// Drop removes n elements, emitting a stack adjustment for those already
// on the machine stack
func (f *VirtualFrame) Drop(n int) {
	virtual := len(f.elements) - 1 - f.sp
	if virtual < n {
		dropped := n - virtual
		f.sp -= dropped
		f.g.masm.Add(asm.Reg(asm.ESP), asm.Int(int32(dropped)))
	}
	f.forget(n)
}

// Forget removes n elements whose machine stack words were already
// consumed by emitted code, typically the arguments of a call. When the
// dropped range reaches the stack pointer, the stack pointer moves to
// the element just below the range.
func (f *VirtualFrame) Forget(n int) {
	if lo := len(f.elements) - n; f.sp >= lo {
		f.sp = lo - 1
	}
	f.forget(n)
}

func (f *VirtualFrame) forget(n int) {
	if len(f.elements)-n <= f.fpIndex() {
		panic("codegen: dropping fixed frame slots")
	}
	for i := len(f.elements) - n; i < len(f.elements); i++ {
		if e := f.elements[i]; e.IsRegister() {
			f.unuse(e.Reg)
		}
	}
	f.elements = f.elements[:len(f.elements)-n]
}

func (f *VirtualFrame) Dup() { f.PushElementAt(0) }

// Nip removes n elements below the top
func (f *VirtualFrame) Nip(n int) {
	top := f.Pop()
	f.Drop(n)
	f.Push(&top)
}

// PushElementAt pushes a copy of the element depth slots below the top
func (f *VirtualFrame) PushElementAt(depth int) {
	f.pushFrameSlotAt(len(f.elements) - 1 - depth)
}

func (f *VirtualFrame) PushParameterAt(i int) { f.pushFrameSlotAt(f.parameterIndex(i)) }
func (f *VirtualFrame) PushLocalAt(i int)     { f.pushFrameSlotAt(f.localIndex(i)) }
func (f *VirtualFrame) PushReceiver()         { f.pushFrameSlotAt(f.receiverIndex()) }
func (f *VirtualFrame) PushFunction()         { f.pushFrameSlotAt(f.functionIndex()) }
func (f *VirtualFrame) PushContext()          { f.pushFrameSlotAt(f.contextIndex()) }

func (f *VirtualFrame) pushFrameSlotAt(index int) {
	e := f.elements[index]
	switch e.Kind {
	case ElementConstant:
		f.elements = append(f.elements, constantElement(e.Const, false))
	case ElementCopy:
		f.elements = append(f.elements, copyElement(e.Index))
	case ElementMemory, ElementRegister:
		f.elements[index].Copied = true
		f.elements = append(f.elements, copyElement(index))
	default:
		panic(fmt.Sprintf("codegen: push of %s element", e))
	}
}

func (f *VirtualFrame) StoreToLocalAt(i int)     { f.storeToFrameSlotAt(f.localIndex(i)) }
func (f *VirtualFrame) StoreToParameterAt(i int) { f.storeToFrameSlotAt(f.parameterIndex(i)) }

// StoreToElementAt stores the top element into the element depth slots
// below it, leaving the top in place
func (f *VirtualFrame) StoreToElementAt(depth int) {
	f.storeToFrameSlotAt(len(f.elements) - 1 - depth)
}

func (f *VirtualFrame) storeToFrameSlotAt(index int) {
	topIndex := len(f.elements) - 1
	if top := f.elements[topIndex]; top.IsCopy() && top.Index == index {
		return
	}
	f.adjustCopies(index)

	// a memory value has to pass through a register
	var tmp Result
	for {
		top := f.elements[topIndex]
		needs := top.IsMemory() || top.IsCopy() && top.Index > index && f.elements[top.Index].IsMemory()
		if !needs || tmp.IsValid() {
			break
		}
		tmp = f.g.allocate()
	}

	top := f.elements[topIndex]
	switch top.Kind {
	case ElementConstant:
		f.elements[index] = constantElement(top.Const, false)
	case ElementRegister:
		f.regs[top.Reg] = index
		f.elements[index] = registerElement(top.Reg, false)
		f.elements[index].Copied = true
		f.elements[topIndex] = copyElement(index)
		f.elements[topIndex].Synced = top.Synced
	case ElementMemory:
		f.g.masm.Mov(asm.Reg(tmp.reg), f.slot(topIndex))
		f.elements[index] = registerElement(tmp.reg, false)
		f.elements[index].Copied = true
		f.use(tmp.reg, index)
		f.elements[topIndex] = copyElement(index)
		f.elements[topIndex].Synced = true
	case ElementCopy:
		if top.Index < index {
			f.elements[index] = copyElement(top.Index)
			break
		}
		f.moveBacking(top.Index, index, tmp)
	}
	tmp.Unuse()
}

// moveBacking makes the invalid slot the new backing element of the
// copies of from, which lies above it
func (f *VirtualFrame) moveBacking(from, to int, tmp Result) {
	backing := f.elements[from]
	switch backing.Kind {
	case ElementRegister:
		f.regs[backing.Reg] = to
		f.elements[to] = registerElement(backing.Reg, false)
	case ElementMemory:
		f.g.masm.Mov(asm.Reg(tmp.reg), f.slot(from))
		f.elements[to] = registerElement(tmp.reg, false)
		f.use(tmp.reg, to)
	default:
		panic(fmt.Sprintf("codegen: %s cannot back copies", backing))
	}
	f.elements[to].Copied = true
	f.elements[from] = copyElement(to)
	f.elements[from].Synced = backing.Synced
	for i := from + 1; i < len(f.elements); i++ {
		if e := f.elements[i]; e.IsCopy() && e.Index == from {
			f.elements[i].Index = to
		}
	}
}

// SetElementAt replaces the element depth slots below the top with r
func (f *VirtualFrame) SetElementAt(depth int, r *Result) {
	index := len(f.elements) - 1 - depth
	if r.IsRegister() && f.regs[r.Reg()] == index {
		r.Unuse()
		return
	}
	f.adjustCopies(index)
	switch {
	case r.IsConstant():
		f.elements[index] = constantElement(r.Constant(), false)
	case f.regs[r.Reg()] < 0:
		f.elements[index] = registerElement(r.Reg(), false)
		f.use(r.Reg(), index)
	case f.regs[r.Reg()] < index:
		i := f.regs[r.Reg()]
		f.elements[i].Copied = true
		f.elements[index] = copyElement(i)
	default:
		f.moveBacking(f.regs[r.Reg()], index, Result{})
	}
	r.Unuse()
}

// adjustCopies prepares the element at index to be overwritten: its
// first copy becomes the new backing element of the others. The element
// is left invalid.
func (f *VirtualFrame) adjustCopies(index int) int {
	original := f.elements[index]
	next := -1
	if original.Copied {
		for i := index + 1; i < len(f.elements); i++ {
			if e := f.elements[i]; e.IsCopy() && e.Index == index {
				next = i
				break
			}
		}
	}
	if next < 0 {
		if original.IsRegister() {
			f.unuse(original.Reg)
		}
		f.elements[index] = FrameElement{Kind: ElementInvalid, Reg: asm.NoReg}
		return -1
	}

	var reg asm.Register
	if original.IsMemory() {
		tmp := f.g.allocate()
		reg = tmp.reg
		f.g.masm.Mov(asm.Reg(reg), f.slot(index))
		f.use(reg, next)
		tmp.Unuse()
	} else {
		reg = original.Reg
		f.regs[reg] = next
	}
	f.elements[index] = FrameElement{Kind: ElementInvalid, Reg: asm.NoReg}
	f.elements[next] = registerElement(reg, f.elements[next].Synced)
	for i := next + 1; i < len(f.elements); i++ {
		if e := f.elements[i]; e.IsCopy() && e.Index == index {
			f.elements[i].Index = next
			f.elements[next].Copied = true
		}
	}
	return next
}
