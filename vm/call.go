package vm

import (
	"fmt"

	"kestrel/asm"
	"kestrel/value"
)

// returnToken stands in for the return address of a call from the
// simulator into generated code
var returnToken = value.SmiFromInt(0)

// throw raises v as a script exception
func (m *Machine) throw(v value.Word) *ThrowError {
	return &ThrowError{Value: v, Message: m.Heap.ToString(v)}
}

// newError creates an error object of the given kind
func (m *Machine) newError(kind, format string, args ...any) *ThrowError {
	proto, ok := m.errorProtos[kind]
	if !ok {
		proto = m.Heap.ErrorPrototype
	}
	e := m.Heap.NewObject(proto)
	m.Heap.SetProperty(e, "message", m.Heap.NewString(fmt.Sprintf(format, args...)))
	return m.throw(e)
}

func (m *Machine) typeError(format string, args ...any) *ThrowError {
	return m.newError("TypeError", format, args...)
}

func (m *Machine) referenceError(format string, args ...any) *ThrowError {
	return m.newError("ReferenceError", format, args...)
}

func (m *Machine) rangeError(format string, args ...any) *ThrowError {
	return m.newError("RangeError", format, args...)
}

// describe renders a value for an error message
func (m *Machine) describe(w value.Word) string {
	if m.Heap.IsString(w) {
		return fmt.Sprintf("%q", m.Heap.Get(w).Str)
	}
	return m.Heap.ToString(w)
}

// invoke runs fn with argc arguments above the receiver on the stack.
// On return the receiver and arguments are gone; the function slot
// below them stays for the caller.
func (m *Machine) invoke(fn value.Word, argc int) (value.Word, error) {
	o := m.Heap.Get(fn)
	pre := m.esp()
	defer m.setESP(pre + argc + 1)

	if o.Native != nil {
		res, err := o.Native.Fn(m, m.Stack[pre+argc], m.args(argc))
		if err != nil {
			return value.Undefined, err
		}
		return res, nil
	}

	if m.depth >= m.MaxDepth {
		return value.Undefined, m.rangeError("Maximum call stack size exceeded")
	}
	if pre < m.StackLimit/2 {
		return value.Undefined, ErrStackExhausted
	}
	code := o.Code
	switch {
	case argc < code.ParamCount:
		for i := argc; i < code.ParamCount; i++ {
			m.push(value.Undefined)
		}
	case argc > code.ParamCount:
		m.setESP(pre + argc - code.ParamCount)
	}
	m.push(returnToken)

	savedContext := m.Regs[asm.ESI]
	m.Regs[asm.ESI] = o.Fields[value.FunctionContextOffset]
	m.Regs[asm.EDI] = fn
	m.depth++
	res, err := m.execute(code)
	m.depth--
	m.Regs[asm.ESI] = savedContext
	return res, err
}

// callFunction implements call-function: EDI holds the callee and the
// stack holds [function, receiver, args...]
func (m *Machine) callFunction(argc int) error {
	fn := m.Regs[asm.EDI]
	if !m.Heap.IsCallable(fn) {
		m.setESP(m.esp() + argc + 1)
		return m.typeError("%s is not a function", m.describe(fn))
	}
	res, err := m.invoke(fn, argc)
	m.Regs[asm.EAX] = res
	m.clobber(false)
	return err
}

// callConstruct implements call-construct: EDI holds the constructor and
// the stack holds [constructor, args...]. The constructor slot becomes
// the receiver and is consumed with the arguments.
func (m *Machine) callConstruct(argc int) error {
	fn := m.Regs[asm.EDI]
	pre := m.esp()
	if !m.Heap.IsCallable(fn) {
		m.setESP(pre + argc + 1)
		return m.typeError("%s is not a constructor", m.describe(fn))
	}
	h := m.Heap
	receiver := value.Undefined
	var res value.Word
	var err error
	if n := h.Get(fn).Native; n != nil && n.Construct != nil {
		res, err = n.Construct(m, m.args(argc))
		m.setESP(pre + argc + 1)
	} else {
		proto, _ := h.GetProperty(fn, "prototype")
		if !h.IsJSObject(proto) {
			proto = h.ObjectPrototype
		}
		receiver = h.NewObject(proto)
		m.Stack[pre+argc] = receiver
		res, err = m.invoke(fn, argc)
	}
	m.clobber(false)
	if err != nil {
		return err
	}
	if !h.IsJSObject(res) {
		res = receiver
	}
	m.Regs[asm.EAX] = res
	return nil
}

// args copies the argc call arguments on top of the stack
func (m *Machine) args(argc int) []value.Word {
	args := make([]value.Word, argc)
	for i := range args {
		args[i] = m.stackArg(argc, i)
	}
	return args
}
