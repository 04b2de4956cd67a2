package asm

import (
	"fmt"
	"strings"
)

// OpCode is a target machine instruction
type OpCode byte

// Data movement
const (
	OP_NOP  OpCode = iota
	OP_MOV         // dst = src
	OP_XCHG        // swap dst, src
	OP_PUSH        // esp--; [esp] = src
	OP_POP         // dst = [esp]; esp++
)

// Arithmetic and logic; all but NOT set ZF SF OF CF like ia32
const (
	OP_ADD OpCode = OP_POP + 1 + iota
	OP_SUB
	OP_IMUL // dst = dst * src, OF/CF on signed overflow
	OP_IDIV // edx:eax / src: quotient to eax, remainder to edx
	OP_CDQ  // sign-extend eax into edx
	OP_AND
	OP_OR
	OP_XOR
	OP_NOT
	OP_NEG
	OP_SHL // count is an immediate or ECX, masked to 5 bits
	OP_SAR
	OP_SHR
	OP_CMP
	OP_TEST
)

// Control flow
const (
	OP_JMP OpCode = OP_TEST + 1 + iota
	OP_JCC
	OP_CALL_LOCAL // push a return token and jump to a label in the same code
	OP_CALL_RUNTIME
	OP_CALL_STUB
	OP_CALL_FUNCTION  // invoke EDI with Argc arguments above the receiver
	OP_CALL_CONSTRUCT // invoke EDI as a constructor with Argc arguments
	OP_PUSH_HANDLER   // the return token is on top: push ebp, push handler, handler = esp
	OP_POP_HANDLER    // pop the handler record at the top of the stack
	OP_UNLINK_HANDLER // esp = handler, then pop the handler record
	OP_RET            // pop the return address, then Argc words
	OP_INT3           // unreachable
	OP_COMMENT
)

// HandlerSize is the number of words in a try handler record,
// including the return token pushed by OP_CALL_LOCAL.
const HandlerSize = 3

// HandlerKind distinguishes the handlers pushed for try/catch and try/finally
type HandlerKind uint8

const (
	TryCatchHandler HandlerKind = iota
	TryFinallyHandler
)

// OpCodeNames maps opcodes to their mnemonics
var OpCodeNames = map[OpCode]string{
	OP_NOP:            "nop",
	OP_MOV:            "mov",
	OP_XCHG:           "xchg",
	OP_PUSH:           "push",
	OP_POP:            "pop",
	OP_ADD:            "add",
	OP_SUB:            "sub",
	OP_IMUL:           "imul",
	OP_IDIV:           "idiv",
	OP_CDQ:            "cdq",
	OP_AND:            "and",
	OP_OR:             "or",
	OP_XOR:            "xor",
	OP_NOT:            "not",
	OP_NEG:            "neg",
	OP_SHL:            "shl",
	OP_SAR:            "sar",
	OP_SHR:            "shr",
	OP_CMP:            "cmp",
	OP_TEST:           "test",
	OP_JMP:            "jmp",
	OP_JCC:            "j",
	OP_CALL_LOCAL:     "call",
	OP_CALL_RUNTIME:   "call-runtime",
	OP_CALL_STUB:      "call-stub",
	OP_CALL_FUNCTION:  "call-function",
	OP_CALL_CONSTRUCT: "call-construct",
	OP_PUSH_HANDLER:   "push-handler",
	OP_POP_HANDLER:    "pop-handler",
	OP_UNLINK_HANDLER: "unlink-handler",
	OP_RET:            "ret",
	OP_INT3:           "int3",
	OP_COMMENT:        ";;",
}

func (op OpCode) String() string {
	if name, ok := OpCodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", byte(op))
}

// Instr is one instruction
type Instr struct {
	Op      OpCode
	Cond    Condition
	Dst     Operand
	Src     Operand
	Target  int // resolved instruction index for jumps and local calls
	Runtime RuntimeID
	Stub    Stub
	Handler HandlerKind
	Argc    int
	Text    string
	Pos     int // source position, -1 when unknown
}

// IsJump reports whether the instruction transfers control to Target
func (in *Instr) IsJump() bool {
	return in.Op == OP_JMP || in.Op == OP_JCC || in.Op == OP_CALL_LOCAL
}

func (in *Instr) String() string {
	var b strings.Builder
	switch in.Op {
	case OP_JCC:
		fmt.Fprintf(&b, "j%s %d", in.Cond, in.Target)
	case OP_JMP, OP_CALL_LOCAL:
		fmt.Fprintf(&b, "%s %d", in.Op, in.Target)
	case OP_CALL_RUNTIME:
		fmt.Fprintf(&b, "%s %s/%d", in.Op, in.Runtime, in.Argc)
	case OP_CALL_STUB:
		fmt.Fprintf(&b, "%s %s", in.Op, in.Stub)
	case OP_CALL_FUNCTION, OP_CALL_CONSTRUCT, OP_RET:
		fmt.Fprintf(&b, "%s %d", in.Op, in.Argc)
	case OP_PUSH_HANDLER:
		kind := "catch"
		if in.Handler == TryFinallyHandler {
			kind = "finally"
		}
		fmt.Fprintf(&b, "%s %s", in.Op, kind)
	case OP_COMMENT:
		fmt.Fprintf(&b, ";; %s", in.Text)
	default:
		b.WriteString(in.Op.String())
		if in.Dst.Kind != OperandNone {
			b.WriteByte(' ')
			b.WriteString(in.Dst.String())
		}
		if in.Src.Kind != OperandNone {
			if in.Dst.Kind != OperandNone {
				b.WriteString(",")
			}
			b.WriteByte(' ')
			b.WriteString(in.Src.String())
		}
	}
	return b.String()
}
