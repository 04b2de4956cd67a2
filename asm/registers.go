package asm

import "fmt"

// Register is a physical register of the target machine
type Register int8

const (
	EAX Register = iota
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI

	NoReg Register = -1
)

// NumRegisters is the size of the register file
const NumRegisters = 8

var registerNames = [NumRegisters]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

func (r Register) String() string {
	if r.IsValid() {
		return registerNames[r]
	}
	return fmt.Sprintf("reg(%d)", int(r))
}

// IsValid reports whether r names a physical register
func (r Register) IsValid() bool { return r >= 0 && r < NumRegisters }

// ContextRegister holds the current context; it is never handed out as scratch
const ContextRegister = ESI

// FunctionRegister carries the callee on function entry
const FunctionRegister = EDI

// AllocatableRegisters lists the registers the code generator may use,
// in allocation preference order.
var AllocatableRegisters = [...]Register{EAX, EBX, ECX, EDX, EDI}

// NumAllocatable is len(AllocatableRegisters)
const NumAllocatable = len(AllocatableRegisters)

// IsAllocatable reports whether r can hold a value for the code generator
func (r Register) IsAllocatable() bool {
	switch r {
	case EAX, EBX, ECX, EDX, EDI:
		return true
	}
	return false
}

// IsReserved reports whether r is owned by the calling convention
func (r Register) IsReserved() bool {
	return r == ESP || r == EBP || r == ESI
}
