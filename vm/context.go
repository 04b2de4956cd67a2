package vm

import (
	"kestrel/value"
)

// binding is where a name resolved during a dynamic lookup
type binding struct {
	holder value.Word // context or object
	slot   int        // context slot index, -1 for an object property
	found  bool
}

// lookup resolves name starting at ctx: the extension object of each
// context, the named slots of each function context, then the global
// object
func (m *Machine) lookup(ctx value.Word, name string) binding {
	h := m.Heap
	for ctx != value.Undefined {
		c := h.Get(ctx)
		if ext := c.Fields[value.ContextExtensionOffset]; ext != value.Undefined && h.HasProperty(ext, name) {
			return binding{holder: ext, slot: -1, found: true}
		}
		if c.Fields[value.ContextFcontextOffset] == ctx {
			for i, n := range c.Names {
				if n == name {
					return binding{holder: ctx, slot: value.ContextHeaderSize + i, found: true}
				}
			}
		}
		ctx = c.Fields[value.ContextPreviousOffset]
	}
	return binding{holder: h.Global, slot: -1, found: h.HasProperty(h.Global, name)}
}

// loadContextSlot returns the value of name and the receiver to use when
// calling it
func (m *Machine) loadContextSlot(ctx value.Word, name string, referenceError bool) (value.Word, value.Word, error) {
	h := m.Heap
	b := m.lookup(ctx, name)
	if !b.found {
		if referenceError {
			return value.Undefined, value.Undefined, m.referenceError("%s is not defined", name)
		}
		return value.Undefined, h.Global, nil
	}
	if b.slot >= 0 {
		return h.Get(b.holder).Fields[b.slot], h.Global, nil
	}
	v, _ := h.GetProperty(b.holder, name)
	return v, b.holder, nil
}

func (m *Machine) storeContextSlot(ctx value.Word, name string, v value.Word) {
	h := m.Heap
	b := m.lookup(ctx, name)
	if b.slot >= 0 {
		h.Get(b.holder).Fields[b.slot] = v
		return
	}
	h.SetProperty(b.holder, name, v)
}

func (m *Machine) deleteContextSlot(ctx value.Word, name string) value.Word {
	b := m.lookup(ctx, name)
	switch {
	case !b.found:
		return value.True
	case b.slot >= 0:
		return value.False
	}
	return value.Bool(m.Heap.DeleteProperty(b.holder, name))
}
