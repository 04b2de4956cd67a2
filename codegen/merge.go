package codegen

import (
	"fmt"

	"kestrel/asm"
	"kestrel/trace"
)

// MergeOpKind is one step of reconciling a frame with an expected frame
type MergeOpKind uint8

const (
	// MergeSync writes an element to its stack slot
	MergeSync MergeOpKind = iota
	// MergeSpill releases the register of a synced element
	MergeSpill
	// MergeMoveReg moves an element between registers
	MergeMoveReg
	// MergeLoadMemory loads an element from its stack slot
	MergeLoadMemory
	// MergeLoadConstant loads a constant element into a register
	MergeLoadConstant
	// MergeMaterialise turns a synced copy or constant into memory
	MergeMaterialise
)

var mergeOpNames = [...]string{"sync", "spill", "move", "load", "load-constant", "materialise"}

func (k MergeOpKind) String() string { return mergeOpNames[k] }

// MergeOp is one reconciliation step for the element at Index
type MergeOp struct {
	Kind  MergeOpKind
	Index int
	From  asm.Register
	To    asm.Register
}

func (op MergeOp) String() string {
	switch op.Kind {
	case MergeMoveReg:
		return fmt.Sprintf("%s %d %s->%s", op.Kind, op.Index, op.From, op.To)
	case MergeLoadMemory, MergeLoadConstant:
		return fmt.Sprintf("%s %d ->%s", op.Kind, op.Index, op.To)
	case MergeSpill:
		return fmt.Sprintf("%s %d %s", op.Kind, op.Index, op.From)
	}
	return fmt.Sprintf("%s %d", op.Kind, op.Index)
}

// PlanMerge returns the steps that turn current into expected. Expected
// frames are fully synced and hold no copies; a constant is only expected
// where every reaching frame has the same constant.
func PlanMerge(current, expected *VirtualFrame) ([]MergeOp, error) {
	if len(current.elements) != len(expected.elements) {
		return nil, fmt.Errorf("merge of frames with %d and %d elements", len(current.elements), len(expected.elements))
	}
	if expected.sp != len(expected.elements)-1 {
		return nil, fmt.Errorf("merge into a frame with virtual elements")
	}
	cur := append([]FrameElement(nil), current.elements...)
	var owner [asm.NumRegisters]int
	for i := range owner {
		owner[i] = -1
	}
	for i, e := range cur {
		if e.IsRegister() {
			owner[e.Reg] = i
		}
	}
	var ops []MergeOp

	for i := range cur {
		if !cur[i].Synced {
			ops = append(ops, MergeOp{Kind: MergeSync, Index: i})
			cur[i].Synced = true
		}
	}

	var moves []int
	for i, want := range expected.elements {
		have := cur[i]
		switch want.Kind {
		case ElementMemory:
			switch have.Kind {
			case ElementRegister:
				ops = append(ops, MergeOp{Kind: MergeSpill, Index: i, From: have.Reg})
				owner[have.Reg] = -1
			case ElementCopy, ElementConstant:
				ops = append(ops, MergeOp{Kind: MergeMaterialise, Index: i})
			}
			cur[i] = memoryElement()
		case ElementConstant:
			if !have.IsConstant() || !have.Const.Equal(want.Const) {
				return nil, fmt.Errorf("element %d: %s cannot become constant %s", i, have, want.Const)
			}
		case ElementRegister:
			switch have.Kind {
			case ElementRegister:
				if have.Reg != want.Reg {
					moves = append(moves, i)
				}
			case ElementCopy:
				ops = append(ops, MergeOp{Kind: MergeMaterialise, Index: i})
				cur[i] = memoryElement()
			}
		default:
			return nil, fmt.Errorf("element %d: unexpected %s", i, want)
		}
	}

	for len(moves) > 0 {
		progress := false
		for k := 0; k < len(moves); k++ {
			i := moves[k]
			to := expected.elements[i].Reg
			if owner[to] >= 0 {
				continue
			}
			from := cur[i].Reg
			ops = append(ops, MergeOp{Kind: MergeMoveReg, Index: i, From: from, To: to})
			owner[from], owner[to] = -1, i
			cur[i] = registerElement(to, true)
			moves = append(moves[:k], moves[k+1:]...)
			k--
			progress = true
		}
		if !progress {
			// a cycle: break it through memory
			i := moves[0]
			ops = append(ops, MergeOp{Kind: MergeSpill, Index: i, From: cur[i].Reg})
			owner[cur[i].Reg] = -1
			cur[i] = memoryElement()
			moves = moves[1:]
		}
	}

	for i, want := range expected.elements {
		if !want.IsRegister() {
			continue
		}
		switch have := cur[i]; have.Kind {
		case ElementMemory:
			ops = append(ops, MergeOp{Kind: MergeLoadMemory, Index: i, To: want.Reg})
		case ElementConstant:
			ops = append(ops, MergeOp{Kind: MergeLoadConstant, Index: i, To: want.Reg})
		}
		owner[want.Reg] = i
	}
	return ops, nil
}

// MergeTo emits the code that makes f match expected
func (f *VirtualFrame) MergeTo(expected *VirtualFrame) {
	ops, err := PlanMerge(f, expected)
	if err != nil {
		panic("codegen: " + err.Error())
	}
	if trace.Enabled(f.g.name) {
		steps := make([]string, len(ops))
		for i, op := range ops {
			steps[i] = op.String()
		}
		trace.Merge(f.g.name, steps)
	}
	for _, op := range ops {
		f.apply(op)
	}
	for i := range f.elements {
		f.elements[i].Copied = false
	}
	if !f.Equals(expected) {
		panic(fmt.Sprintf("codegen: merge produced %s, want %s", f, expected))
	}
}

func (f *VirtualFrame) apply(op MergeOp) {
	m := f.g.masm
	i := op.Index
	switch op.Kind {
	case MergeSync:
		if !f.elements[i].Synced {
			f.SyncElementAt(i)
		}
	case MergeSpill:
		f.SpillElementAt(i)
	case MergeMaterialise:
		f.elements[i] = memoryElement()
	case MergeMoveReg:
		m.Mov(asm.Reg(op.To), asm.Reg(op.From))
		f.unuse(op.From)
		f.use(op.To, i)
		f.elements[i] = registerElement(op.To, true)
	case MergeLoadMemory:
		m.Mov(asm.Reg(op.To), f.slot(i))
		f.use(op.To, i)
		f.elements[i] = registerElement(op.To, true)
	case MergeLoadConstant:
		m.Mov(asm.Reg(op.To), m.ConstantOperand(f.elements[i].Const))
		f.use(op.To, i)
		f.elements[i] = registerElement(op.To, true)
	}
}

// entryFrame computes the frame at a label reached by frames. An element
// stays in a register or a constant only when every frame agrees; at a
// bidirectional label everything is in memory.
func entryFrame(frames []*VirtualFrame, bidirectional bool) *VirtualFrame {
	entry := frames[0].Clone()
	for i := range entry.regs {
		entry.regs[i] = -1
	}
	for _, f := range frames[1:] {
		if len(f.elements) != len(entry.elements) {
			panic(fmt.Sprintf("codegen: frames of %d and %d elements reach one label", len(f.elements), len(entry.elements)))
		}
	}
	for i := range entry.elements {
		e := memoryElement()
		if !bidirectional {
			e = agreedElement(frames, i)
		}
		entry.elements[i] = e
		if e.IsRegister() {
			entry.regs[e.Reg] = i
		}
	}
	entry.sp = len(entry.elements) - 1
	return entry
}

func agreedElement(frames []*VirtualFrame, i int) FrameElement {
	first := frames[0].elements[i]
	for _, f := range frames[1:] {
		e := f.elements[i]
		if e.Kind != first.Kind {
			return memoryElement()
		}
		switch {
		case e.IsRegister() && e.Reg != first.Reg:
			return memoryElement()
		case e.IsConstant() && !e.Const.Equal(first.Const):
			return memoryElement()
		}
	}
	switch first.Kind {
	case ElementRegister:
		return registerElement(first.Reg, true)
	case ElementConstant:
		return constantElement(first.Const, true)
	}
	return memoryElement()
}
