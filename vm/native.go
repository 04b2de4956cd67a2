package vm

import (
	"fmt"
	"math"
	"strings"

	"kestrel/value"
)

// NativeFunc implements a script function in Go
type NativeFunc func(m *Machine, receiver value.Word, args []value.Word) (value.Word, error)

// ConstructFunc implements new for a native constructor
type ConstructFunc func(m *Machine, args []value.Word) (value.Word, error)

// Native describes a function implemented in Go
type Native struct {
	Name      string
	Arity     int
	Fn        NativeFunc
	Construct ConstructFunc
}

func arg(args []value.Word, i int) value.Word {
	if i < len(args) {
		return args[i]
	}
	return value.Undefined
}

// Register installs fn as a global function
func (m *Machine) Register(name string, arity int, fn NativeFunc) value.Word {
	f := m.Heap.NewNativeFunction(&Native{Name: name, Arity: arity, Fn: fn})
	m.Heap.DefineHidden(m.Heap.Global, name, f)
	return f
}

// registerMethod installs fn as a hidden method of obj
func (m *Machine) registerMethod(obj value.Word, name string, arity int, fn NativeFunc) {
	f := m.Heap.NewNativeFunction(&Native{Name: name, Arity: arity, Fn: fn})
	m.Heap.DefineHidden(obj, name, f)
}

// registerConstructor installs a global constructor with the given
// prototype
func (m *Machine) registerConstructor(name string, proto value.Word, fn NativeFunc, construct ConstructFunc) {
	f := m.Heap.NewNativeFunction(&Native{Name: name, Arity: 1, Fn: fn, Construct: construct})
	m.Heap.DefineHidden(f, "prototype", proto)
	m.Heap.DefineHidden(proto, "constructor", f)
	m.Heap.DefineHidden(m.Heap.Global, name, f)
}

func (m *Machine) installNatives() {
	h := m.Heap
	m.Register("print", 1, builtinPrint)
	m.Register("isNaN", 1, func(m *Machine, _ value.Word, args []value.Word) (value.Word, error) {
		return value.Bool(math.IsNaN(m.Heap.ToNumber(arg(args, 0)))), nil
	})
	h.DefineHidden(h.Global, "NaN", h.NewNumber(math.NaN()))
	h.DefineHidden(h.Global, "Infinity", h.NewNumber(math.Inf(1)))
	h.DefineHidden(h.Global, "undefined", value.Undefined)

	m.registerConstructor("Object", h.ObjectPrototype, builtinObject,
		func(m *Machine, args []value.Word) (value.Word, error) {
			return builtinObject(m, value.Undefined, args)
		})
	m.registerConstructor("Array", h.ArrayPrototype, builtinArray,
		func(m *Machine, args []value.Word) (value.Word, error) {
			return builtinArray(m, value.Undefined, args)
		})
	m.registerMethod(h.ArrayPrototype, "push", 1, builtinArrayPush)
	m.registerMethod(h.ArrayPrototype, "pop", 0, builtinArrayPop)
	m.registerMethod(h.ArrayPrototype, "join", 1, builtinArrayJoin)
	m.registerMethod(h.ObjectPrototype, "hasOwnProperty", 1, builtinHasOwnProperty)

	m.Register("String", 1, func(m *Machine, _ value.Word, args []value.Word) (value.Word, error) {
		if len(args) == 0 {
			return m.Heap.Intern(""), nil
		}
		return m.Heap.NewString(m.Heap.ToString(args[0])), nil
	})
	m.Register("Number", 1, func(m *Machine, _ value.Word, args []value.Word) (value.Word, error) {
		if len(args) == 0 {
			return value.SmiFromInt(0), nil
		}
		return m.Heap.NewNumber(m.Heap.ToNumber(args[0])), nil
	})

	m.errorProtos["Error"] = h.ErrorPrototype
	h.DefineHidden(h.ErrorPrototype, "name", h.Intern("Error"))
	h.DefineHidden(h.ErrorPrototype, "message", h.Intern(""))
	m.registerError("Error", h.ErrorPrototype)
	for _, kind := range []string{"TypeError", "ReferenceError", "RangeError"} {
		proto := h.NewObject(h.ErrorPrototype)
		h.DefineHidden(proto, "name", h.Intern(kind))
		m.errorProtos[kind] = proto
		m.registerError(kind, proto)
	}
}

func (m *Machine) registerError(kind string, proto value.Word) {
	construct := func(m *Machine, args []value.Word) (value.Word, error) {
		e := m.Heap.NewObject(proto)
		if msg := arg(args, 0); msg != value.Undefined {
			m.Heap.SetProperty(e, "message", m.Heap.NewString(m.Heap.ToString(msg)))
		}
		return e, nil
	}
	m.registerConstructor(kind, proto, func(m *Machine, _ value.Word, args []value.Word) (value.Word, error) {
		return construct(m, args)
	}, construct)
}

func builtinPrint(m *Machine, _ value.Word, args []value.Word) (value.Word, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = m.Heap.ToString(a)
	}
	fmt.Fprintln(m.Out, strings.Join(parts, " "))
	return value.Undefined, nil
}

func builtinObject(m *Machine, _ value.Word, args []value.Word) (value.Word, error) {
	if v := arg(args, 0); m.Heap.IsJSObject(v) {
		return v, nil
	}
	return m.Heap.NewObject(m.Heap.ObjectPrototype), nil
}

func builtinArray(m *Machine, _ value.Word, args []value.Word) (value.Word, error) {
	if len(args) == 1 && m.Heap.IsNumber(args[0]) {
		n := m.Heap.Number(args[0])
		if n < 0 || n != math.Trunc(n) || !value.IsValidSmi(int64(n)) {
			return value.Undefined, m.rangeError("invalid array length")
		}
		arr := m.Heap.NewArray(nil)
		m.Heap.setArrayLength(arr, int(n))
		return arr, nil
	}
	return m.Heap.NewArray(args), nil
}

func (m *Machine) thisArray(receiver value.Word, method string) (value.Word, error) {
	if !m.Heap.is(receiver, value.TypeArray) {
		return value.Undefined, m.typeError("Array.prototype.%s called on a non-array", method)
	}
	return receiver, nil
}

func builtinArrayPush(m *Machine, receiver value.Word, args []value.Word) (value.Word, error) {
	arr, err := m.thisArray(receiver, "push")
	if err != nil {
		return value.Undefined, err
	}
	for _, a := range args {
		m.Heap.SetElement(arr, m.Heap.ArrayLength(arr), a)
	}
	return value.SmiFromInt(int32(m.Heap.ArrayLength(arr))), nil
}

func builtinArrayPop(m *Machine, receiver value.Word, _ []value.Word) (value.Word, error) {
	arr, err := m.thisArray(receiver, "pop")
	if err != nil {
		return value.Undefined, err
	}
	n := m.Heap.ArrayLength(arr)
	if n == 0 {
		return value.Undefined, nil
	}
	last, _ := m.Heap.GetElement(arr, n-1)
	m.Heap.setArrayLength(arr, n-1)
	return last, nil
}

func builtinArrayJoin(m *Machine, receiver value.Word, args []value.Word) (value.Word, error) {
	arr, err := m.thisArray(receiver, "join")
	if err != nil {
		return value.Undefined, err
	}
	sep := ","
	if s := arg(args, 0); s != value.Undefined {
		sep = m.Heap.ToString(s)
	}
	elems := m.Heap.ArrayElements(arr)
	parts := make([]string, len(elems))
	for i, e := range elems {
		if e != value.TheHole && e != value.Undefined && e != value.Null {
			parts[i] = m.Heap.ToString(e)
		}
	}
	return m.Heap.NewString(strings.Join(parts, sep)), nil
}

func builtinHasOwnProperty(m *Machine, receiver value.Word, args []value.Word) (value.Word, error) {
	if !m.Heap.IsJSObject(receiver) {
		return value.False, nil
	}
	_, ok := m.Heap.GetOwn(receiver, m.Heap.ToString(arg(args, 0)))
	return value.Bool(ok), nil
}
