package codegen

import (
	"fmt"

	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

type referenceKind uint8

const (
	// referenceSlot is a variable in a frame slot, a context slot or
	// resolved by name at run time; nothing is on the frame
	referenceSlot referenceKind = iota
	// referenceNamed has the receiver on the frame and a constant name
	referenceNamed
	// referenceKeyed has the receiver and the key on the frame
	referenceKeyed
)

// reference is an assignable location whose parts are on the frame
type reference struct {
	g        *Generator
	kind     referenceKind
	variable *ast.Variable
	name     string
	// global marks a named reference to a global variable, which reads
	// through a contextual load
	global bool
}

// size returns the number of frame elements the reference occupies
func (r *reference) size() int {
	switch r.kind {
	case referenceNamed:
		return 1
	case referenceKeyed:
		return 2
	}
	return 0
}

// loadReference pushes the parts of the location target denotes. With
// keepReceiver a property reference is preceded by a second copy of its
// receiver, which stays on the frame after the store.
func (g *Generator) loadReference(target ast.Expression, keepReceiver bool) *reference {
	switch e := target.(type) {
	case *ast.VariableProxy:
		v := e.Var
		if v.Slot.Kind == ast.SlotGlobal {
			g.loadGlobalObject()
			return &reference{g: g, kind: referenceNamed, variable: v, name: v.Name, global: true}
		}
		return &reference{g: g, kind: referenceSlot, variable: v, name: v.Name}
	case *ast.Property:
		g.load(e.Object)
		if keepReceiver {
			g.frame.Dup()
		}
		if e.IsNamed() {
			return &reference{g: g, kind: referenceNamed, name: e.Key.(*ast.Literal).Value.Str()}
		}
		g.load(e.Key)
		return &reference{g: g, kind: referenceKeyed}
	}
	panic(fmt.Sprintf("codegen: %s is not assignable", target.Kind()))
}

// getValue pushes the value of the reference above its parts
func (r *reference) getValue() {
	g := r.g
	switch r.kind {
	case referenceSlot:
		g.loadFromSlot(r.variable, false)
	case referenceNamed:
		g.frame.Dup()
		name := g.masm.AddConstant(value.StringConstant(r.name))
		res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_LOAD_IC, Name: name, Contextual: r.global})
		g.frame.Push(&res)
	case referenceKeyed:
		g.frame.PushElementAt(1)
		g.frame.PushElementAt(1)
		g.keyedLoad()
	}
}

// setValue stores the value on top of the frame into the reference.
// The parts of the reference are consumed and the value stays.
func (r *reference) setValue() {
	g := r.g
	switch r.kind {
	case referenceSlot:
		g.storeToSlot(r.variable)
	case referenceNamed:
		name := g.masm.AddConstant(value.StringConstant(r.name))
		res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_STORE_IC, Name: name})
		g.frame.Push(&res)
	case referenceKeyed:
		res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_KEYED_STORE_IC})
		g.frame.Push(&res)
	}
}

// unload removes the parts of a reference from below the value on top
func (r *reference) unload() {
	if n := r.size(); n > 0 {
		r.g.frame.Nip(n)
	}
}

// loadGlobalObject pushes the global object of the current context
func (g *Generator) loadGlobalObject() {
	tmp := g.allocate()
	g.masm.Mov(tmp.Operand(), asm.Mem(asm.ContextRegister, value.ContextGlobalOffset))
	g.frame.Push(&tmp)
}

// contextSlotOperand walks the context chain to the function context
// that holds v and returns the operand of its slot, based on tmp
func (g *Generator) contextSlotOperand(v *ast.Variable, tmp asm.Register) asm.Operand {
	m := g.masm
	ctx := asm.ContextRegister
	for hops := g.scope.ContextChainLength(v.Scope); hops > 0; hops-- {
		m.Mov(asm.Reg(tmp), asm.Mem(ctx, value.ContextFcontextOffset))
		m.Mov(asm.Reg(tmp), asm.Mem(tmp, value.ContextPreviousOffset))
		ctx = tmp
	}
	// the context may be a with context of the function
	m.Mov(asm.Reg(tmp), asm.Mem(ctx, value.ContextFcontextOffset))
	return contextSlot(tmp, v.Slot.Index)
}

// loadFromSlot pushes the value of a variable that is not global.
// insideTypeof suppresses the reference error of an unresolved name.
func (g *Generator) loadFromSlot(v *ast.Variable, insideTypeof bool) {
	m := g.masm
	switch v.Slot.Kind {
	case ast.SlotParameter:
		g.frame.PushParameterAt(v.Slot.Index)
	case ast.SlotLocal:
		g.frame.PushLocalAt(v.Slot.Index)
	case ast.SlotContext:
		tmp := g.allocate()
		op := g.contextSlotOperand(v, tmp.Reg())
		m.Mov(tmp.Operand(), op)
		g.frame.Push(&tmp)
	case ast.SlotLookup:
		g.frame.EmitPush(asm.Reg(asm.ContextRegister))
		g.frame.PushConstant(value.StringConstant(v.Name))
		id := asm.RT_LOAD_CONTEXT_SLOT
		if insideTypeof {
			id = asm.RT_LOAD_CONTEXT_SLOT_NO_REFERENCE_ERROR
		}
		res := g.frame.CallRuntime(id)
		g.frame.Push(&res)
	default:
		panic(fmt.Sprintf("codegen: load of %s variable %s", v.Slot.Kind, v.Name))
	}
}

// storeToSlot stores the top of the frame into a variable that is not
// global, leaving the value in place
func (g *Generator) storeToSlot(v *ast.Variable) {
	m := g.masm
	switch v.Slot.Kind {
	case ast.SlotParameter:
		g.frame.StoreToParameterAt(v.Slot.Index)
	case ast.SlotLocal:
		g.frame.StoreToLocalAt(v.Slot.Index)
	case ast.SlotContext:
		val := g.frame.Pop()
		if !val.IsConstant() {
			val.ToRegister()
		} else if _, ok := val.Constant().Immediate(); !ok {
			val.ToRegister()
		}
		tmp := g.allocate()
		op := g.contextSlotOperand(v, tmp.Reg())
		m.Mov(op, val.Operand())
		tmp.Unuse()
		g.frame.Push(&val)
	case ast.SlotLookup:
		g.frame.EmitPush(asm.Reg(asm.ContextRegister))
		g.frame.PushConstant(value.StringConstant(v.Name))
		g.frame.PushElementAt(2)
		res := g.frame.CallRuntime(asm.RT_STORE_CONTEXT_SLOT)
		g.frame.Drop(1)
		g.frame.Push(&res)
	default:
		panic(fmt.Sprintf("codegen: store to %s variable %s", v.Slot.Kind, v.Name))
	}
}

// storeTop stores the top of the frame into target, which is a variable
// or a property, and leaves the value on top
func (g *Generator) storeTop(target ast.Expression) {
	ref := g.loadReference(target, false)
	n := ref.size()
	if n > 0 {
		g.frame.PushElementAt(n)
	}
	ref.setValue()
	if n > 0 {
		g.frame.Drop(1)
	}
}

func (g *Generator) visitVariableProxy(e *ast.VariableProxy) {
	g.loadVariable(e.Var, false)
}

// loadVariable pushes the value of v
func (g *Generator) loadVariable(v *ast.Variable, insideTypeof bool) {
	if v.Slot.Kind != ast.SlotGlobal {
		g.loadFromSlot(v, insideTypeof)
		return
	}
	g.loadGlobalObject()
	name := g.masm.AddConstant(value.StringConstant(v.Name))
	res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_LOAD_IC, Name: name, Contextual: !insideTypeof})
	g.frame.Push(&res)
}

func (g *Generator) visitProperty(e *ast.Property) {
	ref := g.loadReference(e, false)
	ref.getValue()
	ref.unload()
}

// keyedLoad replaces the receiver and key on top of the frame with the
// property value. Inside loops, array elements are read inline.
func (g *Generator) keyedLoad() {
	if g.loopNesting > 0 && g.opts.InlineKeyedLoads {
		g.inlineKeyedLoad()
		return
	}
	res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_KEYED_LOAD_IC})
	g.frame.Push(&res)
}

// inlineKeyedLoad reads a smi index of an array in place and calls the
// keyed load stub out of line for everything else: a key that is not a
// smi, a receiver that is not an array, an index out of bounds or a hole
func (g *Generator) inlineKeyedLoad() {
	m := g.masm
	key := g.frame.Pop()
	receiver := g.frame.Pop()
	key.ToRegister()
	receiver.ToRegister()
	dst := g.allocate()
	tmp := g.allocate()

	d := &deferredKeyedLoad{deferredBase: g.newDeferred("inline keyed load"),
		dst: dst.Reg(), receiver: receiver.Reg(), key: key.Reg()}
	g.addDeferred(d)

	m.Test(key.Operand(), asm.Imm(value.SmiTagMask))
	d.Branch(m, asm.NotZero)
	m.Test(receiver.Operand(), asm.Imm(value.SmiTagMask))
	d.Branch(m, asm.Zero)
	m.Mov(tmp.Operand(), asm.Mem(receiver.Reg(), value.MapOffset))
	m.Cmp(asm.Mem(tmp.Reg(), value.MapInstanceTypeOffset), asm.Smi(int32(value.TypeArray)))
	d.Branch(m, asm.NotEqual)
	m.Mov(tmp.Operand(), asm.Mem(receiver.Reg(), value.ObjectElementsOffset))
	m.Cmp(key.Operand(), asm.Mem(tmp.Reg(), value.FixedArrayLengthOffset))
	d.Branch(m, asm.AboveEqual)
	m.Mov(dst.Operand(), asm.MemIndex(tmp.Reg(), key.Reg(), true, value.FixedArrayHeaderSize))
	m.Cmp(dst.Operand(), asm.Imm(value.TheHole))
	d.Branch(m, asm.Equal)
	d.BindExit(m)

	tmp.Unuse()
	key.Unuse()
	receiver.Unuse()
	g.frame.Push(&dst)
}
