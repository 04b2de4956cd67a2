package codegen

import (
	"fmt"
	"strings"

	"kestrel/asm"
)

// RegisterPool counts the live references to each physical register.
// A register is free when its count is zero. Frame elements and Results
// each hold one reference; reserved registers are never handed out.
type RegisterPool struct {
	counts [asm.NumRegisters]int
}

// Use and Unuse panic on misuse; a count never goes negative.
func (p *RegisterPool) Use(r asm.Register) {
	if !r.IsAllocatable() {
		panic(fmt.Sprintf("codegen: use of unallocatable register %s", r))
	}
	p.counts[r]++
}

func (p *RegisterPool) Unuse(r asm.Register) {
	if p.counts[r] <= 0 {
		panic(fmt.Sprintf("codegen: register %s released more often than used", r))
	}
	p.counts[r]--
}

func (p *RegisterPool) IsUsed(r asm.Register) bool { return p.counts[r] > 0 }

func (p *RegisterPool) Count(r asm.Register) int { return p.counts[r] }

// Allocate returns the first free register in preference order and takes
// a reference to it. ok is false when every register is in use.
func (p *RegisterPool) Allocate() (r asm.Register, ok bool) {
	for _, r := range asm.AllocatableRegisters {
		if p.counts[r] == 0 {
			p.counts[r] = 1
			return r, true
		}
	}
	return asm.NoReg, false
}

// AllocateSpecific takes r if it is free
func (p *RegisterPool) AllocateSpecific(r asm.Register) bool {
	if !r.IsAllocatable() || p.counts[r] != 0 {
		return false
	}
	p.counts[r] = 1
	return true
}

// Used lists the referenced registers in allocation order
func (p *RegisterPool) Used() []asm.Register {
	var out []asm.Register
	for _, r := range asm.AllocatableRegisters {
		if p.counts[r] > 0 {
			out = append(out, r)
		}
	}
	return out
}

func (p *RegisterPool) Reset() { p.counts = [asm.NumRegisters]int{} }

func (p *RegisterPool) String() string {
	var parts []string
	for _, r := range asm.AllocatableRegisters {
		if p.counts[r] > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", r, p.counts[r]))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}
