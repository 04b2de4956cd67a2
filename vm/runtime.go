package vm

import (
	"fmt"

	"kestrel/asm"
	"kestrel/value"
)

// callRuntime runs a runtime routine. Its arguments are popped from the
// stack and the result is left in EAX.
func (m *Machine) callRuntime(id asm.RuntimeID, argc int) error {
	if id >= asm.RT_COUNT {
		panic(faultf(fmt.Sprintf("unknown runtime routine %d", id)))
	}
	if argc != id.Argc() {
		panic(faultf(fmt.Sprintf("%s called with %d arguments", id, argc)))
	}
	args := m.args(argc)
	m.setESP(m.esp() + argc)
	res, receiver, err := m.runtime(id, args)
	keepEDX := id == asm.RT_LOAD_CONTEXT_SLOT || id == asm.RT_LOAD_CONTEXT_SLOT_NO_REFERENCE_ERROR
	m.clobber(keepEDX)
	if err != nil {
		return err
	}
	m.Regs[asm.EAX] = res
	if keepEDX {
		m.Regs[asm.EDX] = receiver
	}
	return nil
}

func (m *Machine) runtime(id asm.RuntimeID, args []value.Word) (res, receiver value.Word, err error) {
	h := m.Heap
	res = value.Undefined
	switch id {
	case asm.RT_NEW_CLOSURE:
		res = h.NewFunction(h.Get(args[0]).Code, m.context())
	case asm.RT_NEW_CONTEXT:
		fn := h.Get(args[0])
		res = h.NewContext(fn.Fields[value.FunctionContextOffset], value.Undefined,
			fn.Code.ContextSlots, fn.Code.ContextNames)
	case asm.RT_CREATE_OBJECT_LITERAL:
		res = m.createObjectLiteral(h.Get(args[0]).Data.(*asm.ObjectBoilerplate))
	case asm.RT_CREATE_ARRAY_LITERAL:
		res = m.createArrayLiteral(h.Get(args[0]).Data.(*asm.ArrayBoilerplate))
	case asm.RT_TO_SLOW_PROPERTIES:
		if h.IsJSObject(args[0]) {
			h.ToSlowProperties(args[0])
		}
		res = args[0]
	case asm.RT_TO_FAST_PROPERTIES:
		if h.IsJSObject(args[0]) {
			h.ToFastProperties(args[0])
		}
		res = args[0]
	case asm.RT_THROW, asm.RT_RETHROW:
		err = m.throw(args[0])
	case asm.RT_LOAD_CONTEXT_SLOT, asm.RT_LOAD_CONTEXT_SLOT_NO_REFERENCE_ERROR:
		res, receiver, err = m.loadContextSlot(args[0], h.ToString(args[1]), id == asm.RT_LOAD_CONTEXT_SLOT)
	case asm.RT_STORE_CONTEXT_SLOT:
		m.storeContextSlot(args[0], h.ToString(args[1]), args[2])
		res = args[2]
	case asm.RT_DELETE_PROPERTY:
		res = value.True
		if h.IsJSObject(args[0]) {
			res = value.Bool(h.DeleteProperty(args[0], h.ToString(args[1])))
		} else if isNullish(args[0]) {
			err = m.typeError("cannot delete a property of %s", h.ToString(args[0]))
		}
	case asm.RT_DELETE_CONTEXT_SLOT:
		res = m.deleteContextSlot(args[0], h.ToString(args[1]))
	case asm.RT_TYPEOF:
		res = h.Intern(h.TypeOfString(args[0]))
	case asm.RT_INSTANCE_OF:
		res, err = m.instanceOf(args[0], args[1])
	case asm.RT_IN:
		if !h.IsJSObject(args[1]) {
			err = m.typeError("cannot use 'in' to search for %s in %s", m.describe(args[0]), h.ToString(args[1]))
			break
		}
		res = value.Bool(h.HasProperty(args[1], h.ToString(args[0])))
	case asm.RT_TO_OBJECT:
		res, err = m.toObject(args[0])
	case asm.RT_TO_NUMBER:
		res = h.NewNumber(h.ToNumber(args[0]))
	case asm.RT_GET_PROPERTY_NAMES_FAST:
		res = m.propertyNames(args[0])
	case asm.RT_FOR_IN_FILTER:
		res = value.Undefined
		if h.HasProperty(args[0], h.ToString(args[1])) {
			res = args[1]
		}
	case asm.RT_PUSH_WITH_CONTEXT:
		var obj value.Word
		obj, err = m.toObject(args[0])
		if err == nil {
			res = h.NewContext(m.context(), obj, 0, nil)
		}
	case asm.RT_POP_CONTEXT:
		res = h.Get(m.context()).Fields[value.ContextPreviousOffset]
	case asm.RT_DECLARE_GLOBALS:
		for _, name := range h.Get(args[0]).Data.(asm.NameList) {
			if _, ok := h.GetOwn(h.Global, name); !ok {
				h.SetProperty(h.Global, name, value.Undefined)
			}
		}
	case asm.RT_STACK_GUARD:
		if m.esp() < m.StackLimit {
			err = m.rangeError("Maximum call stack size exceeded")
		}
	default:
		panic(faultf("unimplemented runtime routine " + id.String()))
	}
	return res, receiver, err
}

func (m *Machine) toObject(v value.Word) (value.Word, error) {
	h := m.Heap
	switch {
	case isNullish(v):
		return value.Undefined, m.typeError("%s has no properties", h.ToString(v))
	case h.IsJSObject(v):
		return v, nil
	}
	return h.NewObject(h.ObjectPrototype), nil
}

func (m *Machine) instanceOf(obj, fn value.Word) (value.Word, error) {
	h := m.Heap
	if !h.IsCallable(fn) {
		return value.Undefined, m.typeError("right-hand side of instanceof is not callable")
	}
	if !h.IsJSObject(obj) {
		return value.False, nil
	}
	proto, _ := h.GetProperty(fn, "prototype")
	return value.Bool(h.instanceOf(obj, proto)), nil
}

func constantKey(c value.Constant) string {
	if c.IsString() {
		return c.Str()
	}
	return value.FormatNumber(c.Number())
}

func (m *Machine) createObjectLiteral(b *asm.ObjectBoilerplate) value.Word {
	h := m.Heap
	obj := h.NewObject(h.ObjectPrototype)
	for i, k := range b.Keys {
		v := value.Undefined
		if !b.Values[i].Is(value.RootTheHole) {
			v = h.constant(b.Values[i])
		}
		h.SetProperty(obj, constantKey(k), v)
	}
	return obj
}

func (m *Machine) createArrayLiteral(b *asm.ArrayBoilerplate) value.Word {
	h := m.Heap
	elems := make([]value.Word, len(b.Values))
	for i, c := range b.Values {
		elems[i] = h.constant(c)
	}
	return h.NewArray(elems)
}

// propertyNames returns the map of obj when for-in can use its enum
// cache, else a fixed array of the keys to visit
func (m *Machine) propertyNames(obj value.Word) value.Word {
	h := m.Heap
	if h.hasEnumCache(obj) {
		mw := h.Get(obj).Fields[value.MapOffset]
		h.EnumCache(mw)
		return mw
	}
	keys := h.EnumerableKeys(obj)
	ws := make([]value.Word, len(keys))
	for i, k := range keys {
		ws[i] = h.Intern(k)
	}
	return h.NewFixedArray(ws)
}
