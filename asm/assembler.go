package asm

import (
	"fmt"

	"kestrel/value"
)

// Assembler accumulates instructions for one function
type Assembler struct {
	name      string
	instrs    []Instr
	constants []any
	pos       int
	pending   map[*Label]struct{}
	deferred  int
}

// NewAssembler creates an assembler for the named function
func NewAssembler(name string) *Assembler {
	return &Assembler{name: name, pos: -1, pending: make(map[*Label]struct{}), deferred: -1}
}

// SetDeferredStart marks the first instruction of the out-of-line code
func (a *Assembler) SetDeferredStart(pc int) { a.deferred = pc }

// PC returns the index of the next instruction
func (a *Assembler) PC() int { return len(a.instrs) }

// SetPosition records the source position attached to following instructions
func (a *Assembler) SetPosition(pos int) { a.pos = pos }

// Position returns the current source position
func (a *Assembler) Position() int { return a.pos }

// Emit appends an instruction
func (a *Assembler) Emit(in Instr) {
	in.Pos = a.pos
	a.instrs = append(a.instrs, in)
}

// Bind binds l to the current position and patches jumps waiting on it
func (a *Assembler) Bind(l *Label) {
	if l.bound {
		panic("asm: label bound twice")
	}
	l.bound = true
	l.pos = len(a.instrs)
	for _, at := range l.uses {
		a.instrs[at].Target = l.pos
	}
	l.uses = nil
	delete(a.pending, l)
}

func (a *Assembler) emitJump(in Instr, l *Label) {
	if l.bound {
		in.Target = l.pos
	} else {
		l.uses = append(l.uses, len(a.instrs))
		a.pending[l] = struct{}{}
		in.Target = -1
	}
	a.Emit(in)
}

// Jmp emits an unconditional jump
func (a *Assembler) Jmp(l *Label) { a.emitJump(Instr{Op: OP_JMP, Cond: Always}, l) }

// J emits a conditional jump
func (a *Assembler) J(cc Condition, l *Label) {
	if cc == Always {
		a.Jmp(l)
		return
	}
	a.emitJump(Instr{Op: OP_JCC, Cond: cc}, l)
}

// CallLocal pushes a return token and jumps to l
func (a *Assembler) CallLocal(l *Label) { a.emitJump(Instr{Op: OP_CALL_LOCAL}, l) }

func (a *Assembler) op2(op OpCode, dst, src Operand) {
	if dst.Kind == OperandMemory && src.Kind == OperandMemory {
		panic(fmt.Sprintf("asm: %s with two memory operands", op))
	}
	a.Emit(Instr{Op: op, Dst: dst, Src: src})
}

func (a *Assembler) Mov(dst, src Operand) {
	if dst.Kind == OperandImmediate || dst.Kind == OperandConstant {
		panic("asm: mov to an immediate")
	}
	a.op2(OP_MOV, dst, src)
}

// Set loads an immediate into a register
func (a *Assembler) Set(r Register, w value.Word) { a.Mov(Reg(r), Imm(w)) }

func (a *Assembler) Xchg(x, y Register) { a.op2(OP_XCHG, Reg(x), Reg(y)) }
func (a *Assembler) Add(dst, src Operand) { a.op2(OP_ADD, dst, src) }
func (a *Assembler) Sub(dst, src Operand) { a.op2(OP_SUB, dst, src) }
func (a *Assembler) Imul(dst Register, src Operand) { a.op2(OP_IMUL, Reg(dst), src) }
func (a *Assembler) Idiv(src Register) { a.Emit(Instr{Op: OP_IDIV, Src: Reg(src)}) }
func (a *Assembler) Cdq() { a.Emit(Instr{Op: OP_CDQ}) }
func (a *Assembler) And(dst, src Operand) { a.op2(OP_AND, dst, src) }
func (a *Assembler) Or(dst, src Operand) { a.op2(OP_OR, dst, src) }
func (a *Assembler) Xor(dst, src Operand) { a.op2(OP_XOR, dst, src) }
func (a *Assembler) Not(dst Register) { a.Emit(Instr{Op: OP_NOT, Dst: Reg(dst)}) }
func (a *Assembler) Neg(dst Register) { a.Emit(Instr{Op: OP_NEG, Dst: Reg(dst)}) }
func (a *Assembler) Cmp(dst, src Operand) { a.op2(OP_CMP, dst, src) }
func (a *Assembler) Test(dst, src Operand) { a.op2(OP_TEST, dst, src) }
func (a *Assembler) Push(src Operand) { a.Emit(Instr{Op: OP_PUSH, Src: src}) }
func (a *Assembler) Pop(dst Operand) { a.Emit(Instr{Op: OP_POP, Dst: dst}) }

// Shl shifts by an immediate count
func (a *Assembler) Shl(dst Register, count int) { a.op2(OP_SHL, Reg(dst), Int(int32(count))) }
func (a *Assembler) Sar(dst Register, count int) { a.op2(OP_SAR, Reg(dst), Int(int32(count))) }
func (a *Assembler) Shr(dst Register, count int) { a.op2(OP_SHR, Reg(dst), Int(int32(count))) }

// ShlCL, SarCL and ShrCL shift by the count in ECX
func (a *Assembler) ShlCL(dst Register) { a.op2(OP_SHL, Reg(dst), Reg(ECX)) }
func (a *Assembler) SarCL(dst Register) { a.op2(OP_SAR, Reg(dst), Reg(ECX)) }
func (a *Assembler) ShrCL(dst Register) { a.op2(OP_SHR, Reg(dst), Reg(ECX)) }

func (a *Assembler) CallRuntime(id RuntimeID) {
	a.Emit(Instr{Op: OP_CALL_RUNTIME, Runtime: id, Argc: id.Argc()})
}

func (a *Assembler) CallStub(s Stub) {
	a.Emit(Instr{Op: OP_CALL_STUB, Stub: s, Argc: s.Argc()})
}

func (a *Assembler) CallFunction(argc int) { a.Emit(Instr{Op: OP_CALL_FUNCTION, Argc: argc}) }
func (a *Assembler) CallConstruct(argc int) { a.Emit(Instr{Op: OP_CALL_CONSTRUCT, Argc: argc}) }

func (a *Assembler) PushHandler(kind HandlerKind) {
	a.Emit(Instr{Op: OP_PUSH_HANDLER, Handler: kind})
}

func (a *Assembler) PopHandler() { a.Emit(Instr{Op: OP_POP_HANDLER}) }
func (a *Assembler) UnlinkHandler() { a.Emit(Instr{Op: OP_UNLINK_HANDLER}) }
func (a *Assembler) Ret(argc int) { a.Emit(Instr{Op: OP_RET, Argc: argc}) }
func (a *Assembler) Int3() { a.Emit(Instr{Op: OP_INT3}) }

// RecordComment emits a listing comment
func (a *Assembler) RecordComment(text string) {
	a.Emit(Instr{Op: OP_COMMENT, Text: text})
}

// AddConstant returns the pool index of entry, sharing equal literals
func (a *Assembler) AddConstant(entry any) int {
	if c, ok := entry.(value.Constant); ok {
		for i, k := range a.constants {
			if kc, ok := k.(value.Constant); ok && kc.Equal(c) {
				return i
			}
		}
	}
	a.constants = append(a.constants, entry)
	return len(a.constants) - 1
}

// ConstantOperand returns an immediate for smis and oddballs and a pool
// reference for every other literal.
func (a *Assembler) ConstantOperand(c value.Constant) Operand {
	if w, ok := c.Immediate(); ok {
		return Imm(w)
	}
	return Pool(a.AddConstant(c))
}

// Finalize checks that every jump is resolved and returns the code
func (a *Assembler) Finalize() (*Code, error) {
	if len(a.pending) > 0 {
		return nil, fmt.Errorf("%s: %d labels used but never bound", a.name, len(a.pending))
	}
	deferred := a.deferred
	if deferred < 0 {
		deferred = len(a.instrs)
	}
	return &Code{
		Name:          a.name,
		Instrs:        a.instrs,
		Constants:     a.constants,
		DeferredStart: deferred,
	}, nil
}
