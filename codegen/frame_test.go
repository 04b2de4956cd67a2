package codegen

import (
	"testing"

	"github.com/kr/pretty"

	"kestrel/asm"
	"kestrel/value"
)

// newTestGenerator returns a generator positioned after the prologue of
// a function with the given parameter and local counts
func newTestGenerator(params, locals int) *Generator {
	g := &Generator{
		masm: asm.NewAssembler("test"),
		opts: DefaultOptions(),
		name: "test",
	}
	g.setFrame(NewFrame(g, params, locals))
	g.frame.Enter()
	g.frame.AllocateLocals()
	return g
}

func TestRegisterPoolAllocationOrder(t *testing.T) {
	var p RegisterPool
	var got []asm.Register
	for {
		r, ok := p.Allocate()
		if !ok {
			break
		}
		got = append(got, r)
	}
	want := []asm.Register{asm.EAX, asm.EBX, asm.ECX, asm.EDX, asm.EDI}
	if diff := pretty.Diff(got, want); len(diff) > 0 {
		t.Errorf("allocation order: %v", diff)
	}
	if p.AllocateSpecific(asm.ESI) {
		t.Error("AllocateSpecific(esi) succeeded for the context register")
	}
	p.Unuse(asm.ECX)
	if r, ok := p.Allocate(); !ok || r != asm.ECX {
		t.Errorf("Allocate after release = %s, %v; want ecx, true", r, ok)
	}
}

func TestRegisterPoolOverReleasePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	var p RegisterPool
	p.Use(asm.EAX)
	p.Unuse(asm.EAX)
	p.Unuse(asm.EAX)
}

func TestFramePushAndDup(t *testing.T) {
	g := newTestGenerator(1, 1)
	f := g.frame
	if h := f.Height(); h != 0 {
		t.Fatalf("Height after entry = %d, want 0", h)
	}
	r := g.allocateSpecific(asm.EAX)
	f.Push(&r)
	f.Dup()
	if !f.ElementAt(0).IsCopy() || !f.ElementAt(1).Copied {
		t.Fatalf("after Dup: %s", f)
	}
	if n := g.pool.Count(asm.EAX); n != 1 {
		t.Errorf("eax references = %d, want 1 (the frame)", n)
	}
	top := f.Pop()
	if !top.IsRegister() || top.Reg() != asm.EAX {
		t.Fatalf("Pop of a copy = %s, want eax", top)
	}
	if n := g.pool.Count(asm.EAX); n != 2 {
		t.Errorf("eax references = %d, want 2", n)
	}
	top.Unuse()
	f.Drop(1)
	if n := g.pool.Count(asm.EAX); n != 0 {
		t.Errorf("eax references after drop = %d, want 0", n)
	}
	if h := f.Height(); h != 0 {
		t.Errorf("Height = %d, want 0", h)
	}
}

func TestFrameSpill(t *testing.T) {
	g := newTestGenerator(0, 0)
	f := g.frame
	f.PushConstant(value.SmiConstant(7))
	r := g.allocateSpecific(asm.EBX)
	f.Push(&r)
	f.Spill(asm.EBX)
	if f.IsUsed(asm.EBX) || g.pool.IsUsed(asm.EBX) {
		t.Errorf("ebx still in use after Spill: frame %s pool %s", f, &g.pool)
	}
	for d := 0; d < 2; d++ {
		if e := f.ElementAt(d); !e.Synced {
			t.Errorf("element %d not synced after Spill: %s", d, e)
		}
	}
	if !f.ElementAt(0).IsMemory() {
		t.Errorf("spilled element = %s, want memory", f.ElementAt(0))
	}
}

func TestPlanMergeBreaksRegisterCycle(t *testing.T) {
	g := newTestGenerator(0, 0)
	f := g.frame
	a := g.allocateSpecific(asm.EAX)
	f.Push(&a)
	b := g.allocateSpecific(asm.EBX)
	f.Push(&b)
	f.SyncAll()

	want := f.Clone()
	n := len(want.elements)
	want.elements[n-2] = registerElement(asm.EBX, true)
	want.elements[n-1] = registerElement(asm.EAX, true)
	want.regs[asm.EAX], want.regs[asm.EBX] = n-1, n-2

	ops, err := PlanMerge(f, want)
	if err != nil {
		t.Fatalf("PlanMerge: %v", err)
	}
	var got []string
	for _, op := range ops {
		got = append(got, op.String())
	}
	expect := []string{"spill 5 eax", "move 6 ebx->eax", "load 5 ->ebx"}
	if diff := pretty.Diff(got, expect); len(diff) > 0 {
		t.Errorf("merge plan %v: %v", got, diff)
	}

	f.MergeTo(want)
	if !f.Equals(want) {
		t.Errorf("after MergeTo: %s, want %s", f, want)
	}
	for _, r := range []asm.Register{asm.EAX, asm.EBX} {
		if n := g.pool.Count(r); n != 1 {
			t.Errorf("%s references = %d, want 1", r, n)
		}
	}
}

func TestPlanMergeSyncsAndMaterialises(t *testing.T) {
	g := newTestGenerator(0, 0)
	f := g.frame
	f.PushConstant(value.SmiConstant(1))
	f.Dup()
	f.SyncAll()

	want := f.Clone()
	for i := range want.elements {
		want.elements[i] = memoryElement()
	}
	ops, err := PlanMerge(f, want)
	if err != nil {
		t.Fatalf("PlanMerge: %v", err)
	}
	var got []string
	for _, op := range ops {
		got = append(got, op.String())
	}
	expect := []string{"materialise 5", "materialise 6"}
	if diff := pretty.Diff(got, expect); len(diff) > 0 {
		t.Errorf("merge plan %v: %v", got, diff)
	}
}

func TestPlanMergeRejectsHeightMismatch(t *testing.T) {
	g := newTestGenerator(0, 0)
	want := g.frame.Clone()
	g.frame.PushConstant(value.SmiConstant(1))
	if _, err := PlanMerge(g.frame, want); err == nil {
		t.Error("PlanMerge of frames of different heights succeeded")
	}
}

func TestFrameForgetLowersStackPointer(t *testing.T) {
	tests := []struct {
		name   string
		synced int // elements synced before the forget, bottom up
		pushed int
		forget int
	}{
		{"all synced", 4, 4, 3},
		{"partly synced", 2, 4, 3},
		{"only unsynced dropped", 2, 4, 2},
		{"single", 3, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(1, 1)
			f := g.frame
			base := f.expressionBase()
			for i := 0; i < tt.pushed; i++ {
				f.PushConstant(value.SmiConstant(int32(i)))
			}
			f.SyncElementAt(base + tt.synced - 1)
			f.Forget(tt.forget)

			top := base + tt.pushed - tt.forget - 1
			want := base + tt.synced - 1
			if want > top {
				want = top
			}
			if f.sp != want {
				t.Errorf("sp = %d, want %d (frame %s)", f.sp, want, f)
			}
			// Syncing the rest must push exactly the unsynced survivors.
			f.SyncAll()
			if f.sp != top {
				t.Errorf("sp after SyncAll = %d, want %d", f.sp, top)
			}
		})
	}
}

func TestFrameCallKeepsSpilledStateBelowArguments(t *testing.T) {
	g := newTestGenerator(0, 2)
	f := g.frame
	base := f.expressionBase()
	a := g.allocateSpecific(asm.EBX)
	f.Push(&a)
	b := g.allocateSpecific(asm.ECX)
	f.Push(&b)
	f.PushConstant(value.SmiConstant(1))
	f.PushConstant(value.SmiConstant(2))

	f.PrepareForCall(2, 2)
	if h := f.Height(); h != 2 {
		t.Fatalf("Height = %d, want 2", h)
	}
	if f.sp != base+1 {
		t.Errorf("sp = %d, want %d", f.sp, base+1)
	}
	for d := 0; d < 2; d++ {
		if e := f.ElementAt(d); !e.IsMemory() || !e.Synced {
			t.Errorf("element %d = %s, want synced memory", d, e)
		}
	}
	for _, r := range []asm.Register{asm.EBX, asm.ECX} {
		if g.pool.IsUsed(r) {
			t.Errorf("%s still allocated after the call", r)
		}
	}
}
