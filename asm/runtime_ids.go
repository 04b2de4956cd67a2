package asm

import "fmt"

// RuntimeID numbers a runtime routine. Arguments are read from the top of
// the machine stack and consumed by the call; the result is left in EAX.
type RuntimeID uint8

const (
	RT_NEW_CLOSURE RuntimeID = iota
	RT_NEW_CONTEXT
	RT_CREATE_OBJECT_LITERAL
	RT_CREATE_ARRAY_LITERAL
	RT_TO_SLOW_PROPERTIES
	RT_TO_FAST_PROPERTIES
	RT_THROW
	RT_RETHROW
	RT_LOAD_CONTEXT_SLOT
	RT_LOAD_CONTEXT_SLOT_NO_REFERENCE_ERROR
	RT_STORE_CONTEXT_SLOT
	RT_DELETE_PROPERTY
	RT_DELETE_CONTEXT_SLOT
	RT_TYPEOF
	RT_INSTANCE_OF
	RT_IN
	RT_TO_OBJECT
	RT_TO_NUMBER
	RT_GET_PROPERTY_NAMES_FAST
	RT_FOR_IN_FILTER
	RT_PUSH_WITH_CONTEXT
	RT_POP_CONTEXT
	RT_DECLARE_GLOBALS
	RT_STACK_GUARD
	RT_COUNT
)

// RuntimeInfo describes a runtime routine's calling contract
type RuntimeInfo struct {
	Name  string
	Argc  int
	Extra string // registers written besides EAX
}

// RuntimeTable maps runtime ids to their contracts
var RuntimeTable = [RT_COUNT]RuntimeInfo{
	RT_NEW_CLOSURE:                          {Name: "NewClosure", Argc: 1},
	RT_NEW_CONTEXT:                          {Name: "NewContext", Argc: 1},
	RT_CREATE_OBJECT_LITERAL:                {Name: "CreateObjectLiteral", Argc: 1},
	RT_CREATE_ARRAY_LITERAL:                 {Name: "CreateArrayLiteral", Argc: 1},
	RT_TO_SLOW_PROPERTIES:                   {Name: "ToSlowProperties", Argc: 1},
	RT_TO_FAST_PROPERTIES:                   {Name: "ToFastProperties", Argc: 1},
	RT_THROW:                                {Name: "Throw", Argc: 1},
	RT_RETHROW:                              {Name: "ReThrow", Argc: 1},
	RT_LOAD_CONTEXT_SLOT:                    {Name: "LoadContextSlot", Argc: 2, Extra: "edx"},
	RT_LOAD_CONTEXT_SLOT_NO_REFERENCE_ERROR: {Name: "LoadContextSlotNoReferenceError", Argc: 2, Extra: "edx"},
	RT_STORE_CONTEXT_SLOT:                   {Name: "StoreContextSlot", Argc: 3},
	RT_DELETE_PROPERTY:                      {Name: "DeleteProperty", Argc: 2},
	RT_DELETE_CONTEXT_SLOT:                  {Name: "DeleteContextSlot", Argc: 2},
	RT_TYPEOF:                               {Name: "TypeOf", Argc: 1},
	RT_INSTANCE_OF:                          {Name: "InstanceOf", Argc: 2},
	RT_IN:                                   {Name: "In", Argc: 2},
	RT_TO_OBJECT:                            {Name: "ToObject", Argc: 1},
	RT_TO_NUMBER:                            {Name: "ToNumber", Argc: 1},
	RT_GET_PROPERTY_NAMES_FAST:              {Name: "GetPropertyNamesFast", Argc: 1},
	RT_FOR_IN_FILTER:                        {Name: "ForInFilter", Argc: 2},
	RT_PUSH_WITH_CONTEXT:                    {Name: "PushWithContext", Argc: 1},
	RT_POP_CONTEXT:                          {Name: "PopContext", Argc: 0},
	RT_DECLARE_GLOBALS:                      {Name: "DeclareGlobals", Argc: 1},
	RT_STACK_GUARD:                          {Name: "StackGuard", Argc: 0},
}

func (id RuntimeID) String() string {
	if id < RT_COUNT {
		return RuntimeTable[id].Name
	}
	return fmt.Sprintf("runtime(%d)", int(id))
}

// Argc returns the number of stack arguments the routine consumes
func (id RuntimeID) Argc() int { return RuntimeTable[id].Argc }

// ArithOp is an arithmetic or bitwise operator implemented by the generic
// binary operation stub
type ArithOp uint8

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithDiv
	ArithMod
	ArithBitOr
	ArithBitAnd
	ArithBitXor
	ArithShl
	ArithSar
	ArithShr
)

var arithNames = [...]string{"ADD", "SUB", "MUL", "DIV", "MOD", "BIT_OR", "BIT_AND", "BIT_XOR", "SHL", "SAR", "SHR"}

func (op ArithOp) String() string {
	if int(op) < len(arithNames) {
		return arithNames[op]
	}
	return "ARITH?"
}

// StubKind selects a pre-built code sequence
type StubKind uint8

const (
	STUB_GENERIC_BINARY_OP StubKind = iota
	STUB_COMPARE
	STUB_TO_BOOLEAN
	STUB_LOAD_IC
	STUB_KEYED_LOAD_IC
	STUB_STORE_IC
	STUB_KEYED_STORE_IC
)

var stubNames = [...]string{"GenericBinaryOp", "Compare", "ToBoolean", "LoadIC", "KeyedLoadIC", "StoreIC", "KeyedStoreIC"}

func (k StubKind) String() string {
	if int(k) < len(stubNames) {
		return stubNames[k]
	}
	return "stub?"
}

// Stub identifies a stub call together with its parameters
type Stub struct {
	Kind       StubKind
	Op         ArithOp   // GenericBinaryOp
	Cond       Condition // Compare
	Strict     bool      // Compare
	Name       int       // LoadIC/StoreIC: constant pool index of the property name
	Contextual bool      // LoadIC on the global object for a variable reference
}

// Argc returns the number of stack arguments the stub consumes
func (s Stub) Argc() int {
	switch s.Kind {
	case STUB_TO_BOOLEAN, STUB_LOAD_IC:
		return 1
	case STUB_KEYED_STORE_IC:
		return 3
	}
	return 2
}

func (s Stub) String() string {
	name := s.Kind.String()
	switch s.Kind {
	case STUB_GENERIC_BINARY_OP:
		return fmt.Sprintf("%s(%s)", name, s.Op)
	case STUB_COMPARE:
		if s.Strict {
			return fmt.Sprintf("%s(%s,strict)", name, s.Cond)
		}
		return fmt.Sprintf("%s(%s)", name, s.Cond)
	case STUB_LOAD_IC:
		if s.Contextual {
			return fmt.Sprintf("%s(const[%d],contextual)", name, s.Name)
		}
		return fmt.Sprintf("%s(const[%d])", name, s.Name)
	case STUB_STORE_IC:
		return fmt.Sprintf("%s(const[%d])", name, s.Name)
	}
	return name
}
