package vm

import (
	"kestrel/asm"
	"kestrel/value"
)

// callStub runs a stub. Like runtime routines, stubs pop their stack
// arguments and leave the result in EAX.
func (m *Machine) callStub(consts []value.Word, s asm.Stub) error {
	argc := s.Argc()
	args := m.args(argc)
	m.setESP(m.esp() + argc)
	res, err := m.stub(consts, s, args)
	m.clobber(false)
	if err != nil {
		return err
	}
	m.Regs[asm.EAX] = res
	return nil
}

func (m *Machine) stub(consts []value.Word, s asm.Stub, args []value.Word) (value.Word, error) {
	h := m.Heap
	switch s.Kind {
	case asm.STUB_GENERIC_BINARY_OP:
		return h.BinaryOp(s.Op, args[0], args[1]), nil
	case asm.STUB_COMPARE:
		return h.Compare(s.Cond, s.Strict, args[0], args[1]), nil
	case asm.STUB_TO_BOOLEAN:
		if h.ToBoolean(args[0]) {
			return value.SmiFromInt(1), nil
		}
		return value.SmiFromInt(0), nil
	case asm.STUB_LOAD_IC:
		name := h.ToString(consts[s.Name])
		if s.Contextual {
			v, ok := h.GetProperty(args[0], name)
			if !ok {
				return value.Undefined, m.referenceError("%s is not defined", name)
			}
			return v, nil
		}
		return m.getProperty(args[0], name)
	case asm.STUB_KEYED_LOAD_IC:
		if args[1].IsSmi() && h.is(args[0], value.TypeArray) {
			v, _ := h.GetElement(args[0], int(args[1].SmiValue()))
			return v, nil
		}
		return m.getProperty(args[0], h.ToString(args[1]))
	case asm.STUB_STORE_IC:
		return args[1], m.setProperty(args[0], h.ToString(consts[s.Name]), args[1])
	case asm.STUB_KEYED_STORE_IC:
		if args[1].IsSmi() && args[1].SmiValue() >= 0 && h.is(args[0], value.TypeArray) {
			h.SetElement(args[0], int(args[1].SmiValue()), args[2])
			return args[2], nil
		}
		return args[2], m.setProperty(args[0], h.ToString(args[1]), args[2])
	}
	panic(faultf("unknown stub " + s.String()))
}

// getProperty implements property reads on any value
func (m *Machine) getProperty(obj value.Word, key string) (value.Word, error) {
	h := m.Heap
	switch {
	case isNullish(obj):
		return value.Undefined, m.typeError("cannot read property %q of %s", key, h.ToString(obj))
	case h.IsJSObject(obj):
		v, _ := h.GetProperty(obj, key)
		return v, nil
	case h.IsString(obj):
		s := h.Get(obj).Str
		if key == "length" {
			return value.SmiFromInt(int32(len(s))), nil
		}
		if i, ok := arrayIndex(key); ok && i < len(s) {
			return h.NewString(s[i : i+1]), nil
		}
	}
	return value.Undefined, nil
}

// setProperty implements property stores on any value. Stores to
// primitives are dropped.
func (m *Machine) setProperty(obj value.Word, key string, v value.Word) error {
	h := m.Heap
	switch {
	case isNullish(obj):
		return m.typeError("cannot set property %q of %s", key, h.ToString(obj))
	case h.IsJSObject(obj):
		h.SetProperty(obj, key, v)
	}
	return nil
}
