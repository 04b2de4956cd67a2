package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// elementRegister returns a register holding the element depth slots
// below the top. The register may be shared with the frame and must not
// be written.
func (g *Generator) elementRegister(depth int) Result {
	g.frame.PushElementAt(depth)
	r := g.frame.Pop()
	r.ToRegister()
	return r
}

// makeWritable gives r a register that nothing else holds, so it can be
// modified in place
func (g *Generator) makeWritable(r *Result) {
	r.ToRegister()
	reg := r.Reg()
	if g.pool.Count(reg) == 1 {
		return
	}
	if g.frame != nil && g.frame.IsUsed(reg) && g.pool.Count(reg) == 2 {
		g.frame.Spill(reg)
		return
	}
	fresh := g.allocate()
	g.masm.Mov(asm.Reg(fresh.reg), asm.Reg(reg))
	fresh.Hint, fresh.Smi = r.Hint, r.Smi
	r.Unuse()
	*r = fresh
}

// visitForIn iterates over the enumerable keys of an object. While the
// body runs the frame holds five words above the statement's height:
//
//	[object, map or 0, keys, length, index]
//
// A map means the keys are its enum cache; as long as the object keeps
// that map no key needs to be filtered.
func (g *Generator) visitForIn(s *ast.ForIn) {
	m := g.masm
	empty := g.newJumpTarget()
	primitive := g.newJumpTarget()
	jsObject := g.newJumpTarget()
	fixedArray := g.newJumpTarget()
	entry := g.newBidirectionalTarget()

	// undefined and null enumerate nothing
	g.load(s.Enumerable)
	obj := g.elementRegister(0)
	m.Cmp(obj.Operand(), asm.Imm(value.Undefined))
	empty.Branch(asm.Equal)
	m.Cmp(obj.Operand(), asm.Imm(value.Null))
	empty.Branch(asm.Equal)
	m.Test(obj.Operand(), asm.Imm(value.SmiTagMask))
	primitive.Branch(asm.Zero)
	tmp := g.allocate()
	m.Mov(tmp.Operand(), asm.Mem(obj.Reg(), value.MapOffset))
	m.Mov(tmp.Operand(), asm.Mem(tmp.Reg(), value.MapInstanceTypeOffset))
	m.Cmp(tmp.Operand(), asm.Smi(int32(value.FirstJSObjectType)))
	tmp.Unuse()
	obj.Unuse()
	jsObject.Branch(asm.AboveEqual)

	primitive.Bind()
	converted := g.frame.CallRuntime(asm.RT_TO_OBJECT)
	g.frame.Push(&converted)

	jsObject.Bind()
	g.frame.Dup()
	names := g.frame.CallRuntime(asm.RT_GET_PROPERTY_NAMES_FAST)
	g.frame.Push(&names)
	names = g.elementRegister(0)
	tmp = g.allocate()
	m.Mov(tmp.Operand(), asm.Mem(names.Reg(), value.MapOffset))
	m.Cmp(tmp.Operand(), asm.Imm(value.MetaMap))
	tmp.Unuse()
	names.Unuse()
	fixedArray.Branch(asm.NotEqual)

	// a map: iterate over its enum cache
	names = g.elementRegister(0)
	keys := g.allocate()
	m.Mov(keys.Operand(), asm.Mem(names.Reg(), value.MapEnumCacheOffset))
	names.Unuse()
	length := g.allocate()
	m.Mov(length.Operand(), asm.Mem(keys.Reg(), value.FixedArrayLengthOffset))
	g.frame.Push(&keys)
	g.frame.Push(&length)
	g.frame.PushConstant(value.SmiConstant(0))
	entry.Jump()

	// a fixed array of keys that are filtered on every step
	fixedArray.Bind()
	keys = g.frame.Pop()
	keys.ToRegister()
	length = g.allocate()
	m.Mov(length.Operand(), asm.Mem(keys.Reg(), value.FixedArrayLengthOffset))
	g.frame.PushConstant(value.SmiConstant(0))
	g.frame.Push(&keys)
	g.frame.Push(&length)
	g.frame.PushConstant(value.SmiConstant(0))

	entry.Bind()
	brk := g.newBreakTarget()
	cont := g.newBreakTarget()
	index := g.elementRegister(0)
	length = g.elementRegister(1)
	m.Cmp(index.Operand(), length.Operand())
	length.Unuse()
	index.Unuse()
	brk.Branch(asm.AboveEqual)

	// the key at index
	keys = g.elementRegister(2)
	index = g.elementRegister(0)
	key := g.allocate()
	m.Mov(key.Operand(), asm.MemIndex(keys.Reg(), index.Reg(), true, value.FixedArrayHeaderSize))
	index.Unuse()
	keys.Unuse()
	g.frame.Push(&key)

	// [object, map, keys, length, index, key]
	endFilter := g.newJumpTarget()
	obj = g.elementRegister(5)
	expected := g.elementRegister(4)
	tmp = g.allocate()
	m.Mov(tmp.Operand(), asm.Mem(obj.Reg(), value.MapOffset))
	m.Cmp(tmp.Operand(), expected.Operand())
	tmp.Unuse()
	expected.Unuse()
	obj.Unuse()
	endFilter.Branch(asm.Equal)

	// skip keys deleted during the iteration
	g.frame.PushElementAt(5)
	g.frame.PushElementAt(1)
	filtered := g.frame.CallRuntime(asm.RT_FOR_IN_FILTER)
	g.frame.Drop(1)
	m.Cmp(filtered.Operand(), asm.Imm(value.Undefined))
	g.frame.Push(&filtered)
	cont.Branch(asm.Equal)

	endFilter.Bind()
	g.storeTop(s.Each)
	g.frame.Drop(1)

	g.loopNesting++
	g.enterBreakable(s, brk, cont)
	g.checkStack()
	g.visitStatement(s.Body)
	g.leaveBreakable(s)
	g.loopNesting--

	cont.Bind()
	if g.frame != nil {
		index = g.frame.Pop()
		g.makeWritable(&index)
		m.Add(index.Operand(), asm.Smi(1))
		g.frame.Push(&index)
		entry.Jump()
	}

	brk.Bind()
	g.frame.Drop(5)
	if empty.IsLinked() {
		exit := g.newJumpTarget()
		exit.Jump()
		empty.Bind()
		g.frame.Drop(1)
		exit.Bind()
	}
}
