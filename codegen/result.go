package codegen

import (
	"fmt"

	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

type resultKind uint8

const (
	resultInvalid resultKind = iota
	resultRegister
	resultConstant
)

// Result is a transient handle to a value in a register or a constant.
// A register result holds one reference in the register pool until
// Unuse is called. Copying the struct does not take a reference; use
// Share for a second owner.
type Result struct {
	kind resultKind
	reg  asm.Register
	con  value.Constant
	// Hint is what analysis expects of the value; Smi is set when the
	// value is certainly a smi
	Hint ast.StaticType
	Smi  bool
	g    *Generator
}

// registerResult wraps r and takes a reference to it
func (g *Generator) registerResult(r asm.Register) Result {
	g.pool.Use(r)
	return Result{kind: resultRegister, reg: r, g: g}
}

func (g *Generator) constantResult(c value.Constant) Result {
	res := Result{kind: resultConstant, con: c, g: g}
	if c.IsSmi() {
		res.Hint, res.Smi = ast.TypeLikelySmi, true
	} else if c.IsNumber() {
		res.Hint = ast.TypeNumber
	}
	return res
}

func (r *Result) IsValid() bool    { return r.kind != resultInvalid }
func (r *Result) IsRegister() bool { return r.kind == resultRegister }
func (r *Result) IsConstant() bool { return r.kind == resultConstant }

func (r *Result) Reg() asm.Register {
	if r.kind != resultRegister {
		panic("codegen: register of a non-register result")
	}
	return r.reg
}

func (r *Result) Constant() value.Constant {
	if r.kind != resultConstant {
		panic("codegen: constant of a non-constant result")
	}
	return r.con
}

func (r *Result) IsSmiConstant() bool { return r.kind == resultConstant && r.con.IsSmi() }

// KnownSmi: a smi literal, or a register the fast path already tagged as smi.
func (r *Result) KnownSmi() bool { return r.IsSmiConstant() || r.kind == resultRegister && r.Smi }

func (r *Result) Unuse() {
	if r.kind == resultRegister {
		r.g.pool.Unuse(r.reg)
	}
	r.kind = resultInvalid
	r.Hint = ast.TypeUnknown
	r.Smi = false
}

// Share returns a second handle to the same value
func (r *Result) Share() Result {
	if r.kind == resultRegister {
		r.g.pool.Use(r.reg)
	}
	return *r
}

// Operand returns the value as an instruction operand
func (r *Result) Operand() asm.Operand {
	switch r.kind {
	case resultRegister:
		return asm.Reg(r.reg)
	case resultConstant:
		return r.g.masm.ConstantOperand(r.con)
	}
	panic("codegen: operand of an invalid result")
}

// ToRegister moves a constant result into a fresh register
func (r *Result) ToRegister() {
	if r.kind == resultRegister {
		return
	}
	if r.kind != resultConstant {
		panic("codegen: ToRegister on an invalid result")
	}
	fresh := r.g.allocate()
	r.g.masm.Mov(asm.Reg(fresh.reg), r.g.masm.ConstantOperand(r.con))
	fresh.Hint, fresh.Smi = r.Hint, r.IsSmiConstant()
	*r = fresh
}

// ToRegisterSpecific moves the value into target, spilling whatever the
// frame keeps there
func (r *Result) ToRegisterSpecific(target asm.Register) {
	if r.kind == resultRegister && r.reg == target {
		return
	}
	fresh := r.g.allocateSpecific(target)
	if r.kind == resultRegister {
		r.g.masm.Mov(asm.Reg(target), asm.Reg(r.reg))
	} else {
		r.g.masm.Mov(asm.Reg(target), r.g.masm.ConstantOperand(r.con))
	}
	fresh.Hint, fresh.Smi = r.Hint, r.KnownSmi()
	r.Unuse()
	*r = fresh
}

func (r Result) String() string {
	switch r.kind {
	case resultRegister:
		return r.reg.String()
	case resultConstant:
		return r.con.String()
	}
	return "invalid"
}

// allocate returns a fresh register, spilling a frame register when the
// pool is exhausted
func (g *Generator) allocate() Result {
	if r, ok := g.pool.Allocate(); ok {
		return Result{kind: resultRegister, reg: r, g: g}
	}
	if g.frame != nil {
		if r, ok := g.frame.SpillAnyRegister(); ok {
			g.pool.Use(r)
			return Result{kind: resultRegister, reg: r, g: g}
		}
	}
	panic(fmt.Sprintf("codegen: out of registers %s", &g.pool))
}

// allocateSpecific returns target, spilling it from the frame if needed
func (g *Generator) allocateSpecific(target asm.Register) Result {
	if !g.pool.IsUsed(target) {
		return g.registerResult(target)
	}
	if g.frame != nil && g.frame.IsUsed(target) && g.pool.Count(target) == 1 {
		g.frame.Spill(target)
		return g.registerResult(target)
	}
	panic(fmt.Sprintf("codegen: %s is held by a live result", target))
}
