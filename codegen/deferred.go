package codegen

import (
	"kestrel/asm"
	"kestrel/trace"
	"kestrel/value"
)

// DeferredCode is an out-of-line slow path. The fast path branches to
// its entry; after Generate the frame's registers are restored and
// control returns to the exit label, where the fast path continues.
type DeferredCode interface {
	Generate(g *Generator)
	base() *deferredBase
}

// saveAction says how a frame register survives deferred code
type saveAction uint8

const (
	saveIgnore saveAction = iota
	// savePush pushes an element that is not on the machine stack yet
	savePush
	// saveToSlot writes an unsynced element to its slot and reloads it
	saveToSlot
	// saveReloadSynced reloads a synced element from its slot
	saveReloadSynced
)

type deferredBase struct {
	entry   *asm.Label
	exit    *asm.Label
	comment string
	pos     int
	actions [asm.NumRegisters]saveAction
	slots   [asm.NumRegisters]asm.Operand
}

func (d *deferredBase) base() *deferredBase { return d }

// Branch enters the deferred code when cc holds
func (d *deferredBase) Branch(m *asm.Assembler, cc asm.Condition) { m.J(cc, d.entry) }

// Jump enters the deferred code
func (d *deferredBase) Jump(m *asm.Assembler) { m.Jmp(d.entry) }

// BindExit marks where the deferred code returns to
func (d *deferredBase) BindExit(m *asm.Assembler) { m.Bind(d.exit) }

// newDeferred captures the save plan of the current frame. The frame
// must not change between here and the branch into the deferred code.
func (g *Generator) newDeferred(comment string) deferredBase {
	d := deferredBase{entry: new(asm.Label), exit: new(asm.Label), comment: comment, pos: g.masm.Position()}
	f := g.frame
	for _, r := range asm.AllocatableRegisters {
		i := f.RegisterLocation(r)
		if i < 0 {
			continue
		}
		d.slots[r] = f.slot(i)
		switch {
		case f.elements[i].Synced:
			d.actions[r] = saveReloadSynced
		case i <= f.sp:
			d.actions[r] = saveToSlot
		default:
			d.actions[r] = savePush
		}
	}
	return d
}

func (g *Generator) addDeferred(d DeferredCode) {
	trace.Deferred(g.name, d.base().comment)
	g.deferred = append(g.deferred, d)
}

func (d *deferredBase) save(m *asm.Assembler) {
	for _, r := range asm.AllocatableRegisters {
		switch d.actions[r] {
		case savePush:
			m.Push(asm.Reg(r))
		case saveToSlot:
			m.Mov(d.slots[r], asm.Reg(r))
		}
	}
}

func (d *deferredBase) restore(m *asm.Assembler) {
	for i := len(asm.AllocatableRegisters) - 1; i >= 0; i-- {
		r := asm.AllocatableRegisters[i]
		switch d.actions[r] {
		case savePush:
			m.Pop(asm.Reg(r))
		case saveToSlot, saveReloadSynced:
			m.Mov(asm.Reg(r), d.slots[r])
		}
	}
}

// generateDeferred emits every deferred block in creation order
func (g *Generator) generateDeferred() {
	m := g.masm
	for _, d := range g.deferred {
		b := d.base()
		m.SetPosition(b.pos)
		m.RecordComment("[ " + b.comment)
		m.Bind(b.entry)
		b.save(m)
		d.Generate(g)
		b.restore(m)
		m.Jmp(b.exit)
	}
	g.deferred = nil
}

// deferredInlineBinaryOp is the slow path of the general inline smi
// fast path: both operands are intact in registers or constants.
type deferredInlineBinaryOp struct {
	deferredBase
	op          asm.ArithOp
	dst         asm.Register
	left, right asm.Operand
}

func (d *deferredInlineBinaryOp) Generate(g *Generator) {
	m := g.masm
	m.Push(d.left)
	m.Push(d.right)
	m.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: d.op})
	if d.dst != asm.EAX {
		m.Mov(asm.Reg(d.dst), asm.Reg(asm.EAX))
	}
}

// deferredInlineSmiAddSub undoes an optimistic add or subtract of a smi
// immediate before calling the generic operation.
type deferredInlineSmiAddSub struct {
	deferredBase
	op       asm.ArithOp // ArithAdd or ArithSub
	dst      asm.Register
	value    value.Word
	reversed bool // the constant is the left operand
}

func (d *deferredInlineSmiAddSub) Generate(g *Generator) {
	m := g.masm
	if d.op == asm.ArithAdd {
		m.Sub(asm.Reg(d.dst), asm.Imm(d.value))
	} else {
		m.Add(asm.Reg(d.dst), asm.Imm(d.value))
	}
	if d.reversed {
		m.Push(asm.Imm(d.value))
		m.Push(asm.Reg(d.dst))
	} else {
		m.Push(asm.Reg(d.dst))
		m.Push(asm.Imm(d.value))
	}
	m.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: d.op})
	if d.dst != asm.EAX {
		m.Mov(asm.Reg(d.dst), asm.Reg(asm.EAX))
	}
}

// deferredInlineSmiOperation is the slow path of the other operators
// with a smi immediate. src holds the untouched dynamic operand.
type deferredInlineSmiOperation struct {
	deferredBase
	op       asm.ArithOp
	dst, src asm.Register
	value    value.Word
	reversed bool
}

func (d *deferredInlineSmiOperation) Generate(g *Generator) {
	m := g.masm
	if d.reversed {
		m.Push(asm.Imm(d.value))
		m.Push(asm.Reg(d.src))
	} else {
		m.Push(asm.Reg(d.src))
		m.Push(asm.Imm(d.value))
	}
	m.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: d.op})
	if d.dst != asm.EAX {
		m.Mov(asm.Reg(d.dst), asm.Reg(asm.EAX))
	}
}

// deferredInlineNegate handles unary minus of a non-smi, zero or the
// most negative smi by multiplying with -1.
type deferredInlineNegate struct {
	deferredBase
	dst asm.Register
}

func (d *deferredInlineNegate) Generate(g *Generator) {
	m := g.masm
	m.Push(asm.Reg(d.dst))
	m.Push(asm.Smi(-1))
	m.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: asm.ArithMul})
	if d.dst != asm.EAX {
		m.Mov(asm.Reg(d.dst), asm.Reg(asm.EAX))
	}
}

// deferredInlineCount undoes an optimistic smi increment or decrement,
// converts the old value to a number and redoes the operation
// generically. old receives the converted old value of a postfix
// operation.
type deferredInlineCount struct {
	deferredBase
	increment bool
	dst       asm.Register
	old       asm.Register // NoReg for prefix operations
}

func (d *deferredInlineCount) Generate(g *Generator) {
	m := g.masm
	op := asm.ArithAdd
	if d.increment {
		m.Sub(asm.Reg(d.dst), asm.Smi(1))
	} else {
		m.Add(asm.Reg(d.dst), asm.Smi(1))
		op = asm.ArithSub
	}
	m.Push(asm.Reg(d.dst))
	m.CallRuntime(asm.RT_TO_NUMBER)
	if d.old != asm.NoReg {
		m.Push(asm.Reg(asm.EAX))
	}
	m.Push(asm.Reg(asm.EAX))
	m.Push(asm.Smi(1))
	m.CallStub(asm.Stub{Kind: asm.STUB_GENERIC_BINARY_OP, Op: op})
	if d.dst != asm.EAX {
		m.Mov(asm.Reg(d.dst), asm.Reg(asm.EAX))
	}
	if d.old != asm.NoReg {
		m.Pop(asm.Reg(d.old))
	}
}

// deferredKeyedLoad is the slow path of the inline array element load
type deferredKeyedLoad struct {
	deferredBase
	dst           asm.Register
	receiver, key asm.Register
}

func (d *deferredKeyedLoad) Generate(g *Generator) {
	m := g.masm
	m.Push(asm.Reg(d.receiver))
	m.Push(asm.Reg(d.key))
	m.CallStub(asm.Stub{Kind: asm.STUB_KEYED_LOAD_IC})
	if d.dst != asm.EAX {
		m.Mov(asm.Reg(d.dst), asm.Reg(asm.EAX))
	}
}

// deferredStackCheck calls the stack guard when the stack limit is hit
type deferredStackCheck struct {
	deferredBase
}

func (d *deferredStackCheck) Generate(g *Generator) {
	g.masm.CallRuntime(asm.RT_STACK_GUARD)
}
