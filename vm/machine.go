package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"kestrel/asm"
	"kestrel/value"
)

// ErrTickLimit is returned when a run executes more instructions than the
// machine's tick limit
var ErrTickLimit = errors.New("tick limit exceeded")

// ErrStackExhausted is returned when the machine stack has no room left
// even for the stack guard to raise an exception
var ErrStackExhausted = errors.New("machine stack exhausted")

// ThrowError is an exception that no handler caught
type ThrowError struct {
	Value   value.Word
	Message string
}

func (e *ThrowError) Error() string {
	return "uncaught exception: " + e.Message
}

// Fault is a machine check: generated code did something the target
// machine cannot do, such as reading a field of a small integer.
type Fault struct {
	Function string
	PC       int
	Instr    string
	Msg      string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault in %s at %d (%s): %s", f.Function, f.PC, f.Instr, f.Msg)
}

// faultf aborts the current instruction; execute recovers it into a Fault
type faultf string

// Machine simulates the target machine
type Machine struct {
	Heap    *Heap
	Stack   []value.Word
	Regs    [asm.NumRegisters]value.Word
	Flags   asm.Flags
	Handler int // stack address of the innermost handler record, 0 if none

	StackLimit int   // stack guard trips when esp drops below this address
	MaxDepth   int   // maximum nesting of function invocations
	TickLimit  int64 // 0 means unlimited
	Ticks      int64
	Out        io.Writer // destination of print

	depth       int
	consts      map[*asm.Code][]value.Word
	errorProtos map[string]value.Word
	poison      bool
}

// Default machine dimensions
const (
	DefaultStackSize = 1 << 18
	DefaultMaxDepth  = 10000
	stackHeadroom    = 1024
)

// poisonWord is written to registers a call clobbers
const poisonWord = value.Word(0x7ffffff1)

// NewMachine creates a machine with a fresh heap and the natives installed
func NewMachine() *Machine {
	m := &Machine{
		Heap:        NewHeap(),
		Stack:       make([]value.Word, DefaultStackSize),
		StackLimit:  stackHeadroom,
		MaxDepth:    DefaultMaxDepth,
		Out:         os.Stdout,
		consts:      make(map[*asm.Code][]value.Word),
		errorProtos: make(map[string]value.Word),
		poison:      true,
	}
	m.setESP(len(m.Stack))
	m.Regs[asm.ESI] = m.Heap.GlobalContext
	m.installNatives()
	return m
}

func (m *Machine) esp() int { return int(m.Regs[asm.ESP]) }

func (m *Machine) setESP(addr int) { m.Regs[asm.ESP] = value.Word(uint32(addr)) }

func (m *Machine) context() value.Word { return m.Regs[asm.ESI] }

func (m *Machine) push(w value.Word) {
	sp := m.esp() - 1
	if sp < 0 {
		panic(faultf("stack overflow"))
	}
	m.Stack[sp] = w
	m.setESP(sp)
}

func (m *Machine) pop() value.Word {
	sp := m.esp()
	if sp >= len(m.Stack) {
		panic(faultf("stack underflow"))
	}
	m.setESP(sp + 1)
	return m.Stack[sp]
}

// stackArg returns argument i of a call that takes argc stack arguments
func (m *Machine) stackArg(argc, i int) value.Word {
	return m.Stack[m.esp()+argc-1-i]
}

// Run executes the top-level code of a script with the global object as
// receiver
func (m *Machine) Run(code *asm.Code) (value.Word, error) {
	fn := m.Heap.NewFunction(code, m.Heap.GlobalContext)
	return m.Call(fn, m.Heap.Global)
}

// Call invokes fn from outside the machine. The stack pointer and
// registers are restored when the call returns or throws.
func (m *Machine) Call(fn, receiver value.Word, args ...value.Word) (result value.Word, err error) {
	saved := m.Regs
	handler := m.Handler
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(faultf)
			if !ok {
				panic(r)
			}
			err = &Fault{Function: "<call>", Msg: string(f)}
		}
		m.Regs = saved
		m.Handler = handler
	}()
	m.push(fn)
	m.push(receiver)
	for _, a := range args {
		m.push(a)
	}
	if !m.Heap.IsCallable(fn) {
		return value.Undefined, m.typeError("%s is not a function", m.Heap.ToString(fn))
	}
	m.Regs[asm.EDI] = fn
	return m.invoke(fn, len(args))
}

// execute runs code until it returns. The return token is already on the
// stack.
func (m *Machine) execute(code *asm.Code) (result value.Word, err error) {
	base := m.esp()
	pc := 0
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(faultf)
			if !ok {
				panic(r)
			}
			in := ""
			if pc < len(code.Instrs) {
				in = code.Instrs[pc].String()
			}
			err = &Fault{Function: code.Name, PC: pc, Instr: in, Msg: string(f)}
		}
	}()
	consts := m.constants(code)
	for {
		if pc >= len(code.Instrs) {
			panic(faultf("fell off the end of the code"))
		}
		in := &code.Instrs[pc]
		if in.Op == asm.OP_COMMENT || in.Op == asm.OP_NOP {
			pc++
			continue
		}
		m.Ticks++
		if m.TickLimit > 0 && m.Ticks > m.TickLimit {
			return value.Undefined, ErrTickLimit
		}
		next, done, err := m.step(consts, pc, in)
		if err != nil {
			var te *ThrowError
			if errors.As(err, &te) && m.Handler != 0 && m.Handler < base {
				pc = m.unwind(te.Value)
				continue
			}
			return value.Undefined, err
		}
		if done {
			return m.Regs[asm.EAX], nil
		}
		pc = next
	}
}

// unwind transfers control to the innermost handler with the exception
// in EAX and returns the handler's pc
func (m *Machine) unwind(exception value.Word) int {
	m.setESP(m.Handler)
	m.Handler = int(m.pop())
	m.Regs[asm.EBP] = m.pop()
	token := m.pop()
	m.Regs[asm.EAX] = exception
	return int(token.SmiValue())
}

// step executes one instruction and returns the next pc
func (m *Machine) step(consts []value.Word, pc int, in *asm.Instr) (int, bool, error) {
	switch in.Op {
	case asm.OP_MOV:
		m.write(in.Dst, m.read(in.Src, consts))
	case asm.OP_XCHG:
		a, b := m.read(in.Dst, consts), m.read(in.Src, consts)
		m.write(in.Dst, b)
		m.write(in.Src, a)
	case asm.OP_PUSH:
		m.push(m.read(in.Src, consts))
	case asm.OP_POP:
		m.write(in.Dst, m.pop())
	case asm.OP_ADD, asm.OP_SUB, asm.OP_IMUL, asm.OP_AND, asm.OP_OR, asm.OP_XOR,
		asm.OP_SHL, asm.OP_SAR, asm.OP_SHR:
		m.write(in.Dst, m.alu(in.Op, m.read(in.Dst, consts), m.read(in.Src, consts)))
	case asm.OP_CMP:
		m.alu(asm.OP_SUB, m.read(in.Dst, consts), m.read(in.Src, consts))
	case asm.OP_TEST:
		m.alu(asm.OP_AND, m.read(in.Dst, consts), m.read(in.Src, consts))
	case asm.OP_NOT:
		m.write(in.Dst, ^m.read(in.Dst, consts))
	case asm.OP_NEG:
		m.write(in.Dst, m.alu(asm.OP_SUB, 0, m.read(in.Dst, consts)))
	case asm.OP_CDQ:
		m.Regs[asm.EDX] = value.Word(uint32(m.Regs[asm.EAX].Int32() >> 31))
	case asm.OP_IDIV:
		m.idiv(m.read(in.Src, consts))
	case asm.OP_JMP:
		return in.Target, false, nil
	case asm.OP_JCC:
		if in.Cond.Holds(m.Flags) {
			return in.Target, false, nil
		}
	case asm.OP_CALL_LOCAL:
		m.push(value.SmiFromInt(int32(pc + 1)))
		return in.Target, false, nil
	case asm.OP_CALL_RUNTIME:
		if err := m.callRuntime(in.Runtime, in.Argc); err != nil {
			return 0, false, err
		}
	case asm.OP_CALL_STUB:
		if err := m.callStub(consts, in.Stub); err != nil {
			return 0, false, err
		}
	case asm.OP_CALL_FUNCTION:
		if err := m.callFunction(in.Argc); err != nil {
			return 0, false, err
		}
	case asm.OP_CALL_CONSTRUCT:
		if err := m.callConstruct(in.Argc); err != nil {
			return 0, false, err
		}
	case asm.OP_PUSH_HANDLER:
		m.push(m.Regs[asm.EBP])
		m.push(value.Word(uint32(m.Handler)))
		m.Handler = m.esp()
	case asm.OP_POP_HANDLER:
		m.Handler = int(m.Stack[m.esp()])
		m.setESP(m.esp() + asm.HandlerSize)
	case asm.OP_UNLINK_HANDLER:
		m.setESP(m.Handler)
		m.Handler = int(m.pop())
		m.setESP(m.esp() + asm.HandlerSize - 1)
	case asm.OP_RET:
		m.pop()
		m.setESP(m.esp() + in.Argc)
		return 0, true, nil
	case asm.OP_INT3:
		panic(faultf("unreachable code reached"))
	default:
		panic(faultf("unknown opcode " + in.Op.String()))
	}
	return pc + 1, false, nil
}

// constants materialises the constant pool of code on first use
func (m *Machine) constants(code *asm.Code) []value.Word {
	if ws, ok := m.consts[code]; ok {
		return ws
	}
	ws := make([]value.Word, len(code.Constants))
	for i, c := range code.Constants {
		ws[i] = m.Heap.constant(c)
	}
	m.consts[code] = ws
	return ws
}

// clobber poisons the registers a call does not preserve
func (m *Machine) clobber(keepEDX bool) {
	if !m.poison {
		return
	}
	m.Regs[asm.ECX] = poisonWord
	m.Regs[asm.EBX] = poisonWord
	m.Regs[asm.EDI] = poisonWord
	if !keepEDX {
		m.Regs[asm.EDX] = poisonWord
	}
}
