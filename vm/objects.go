package vm

import (
	"strconv"

	"kestrel/value"
)

// arrayIndex parses key as a canonical array index
func arrayIndex(key string) (int, bool) {
	if key == "" || len(key) > 10 || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n >= 1<<32-1 || !value.IsValidSmi(int64(n)) {
		return 0, false
	}
	return int(n), true
}

// Prototype returns the prototype of a JS object
func (h *Heap) Prototype(obj value.Word) value.Word {
	return h.MapOf(obj).Prototype
}

// ArrayLength returns the length of an array
func (h *Heap) ArrayLength(arr value.Word) int {
	return int(h.Get(arr).Fields[value.ArrayLengthOffset].SmiValue())
}

// ArrayElements returns the live elements of an array. Holes read as
// value.TheHole.
func (h *Heap) ArrayElements(arr value.Word) []value.Word {
	o := h.Get(arr)
	return h.FixedArrayElements(o.Fields[value.ObjectElementsOffset])[:h.ArrayLength(arr)]
}

func (h *Heap) setArrayLength(arr value.Word, n int) {
	o := h.Get(arr)
	elems := h.Get(o.Fields[value.ObjectElementsOffset])
	capacity := len(elems.Fields) - value.FixedArrayHeaderSize
	switch {
	case n > capacity:
		grown := make([]value.Word, n+n/2+1)
		copy(grown, elems.Fields[value.FixedArrayHeaderSize:])
		for i := capacity; i < len(grown); i++ {
			grown[i] = value.TheHole
		}
		o.Fields[value.ObjectElementsOffset] = h.NewFixedArray(grown)
	case n < h.ArrayLength(arr):
		for i := n; i < h.ArrayLength(arr); i++ {
			elems.Fields[value.FixedArrayHeaderSize+i] = value.TheHole
		}
	}
	o.Fields[value.ArrayLengthOffset] = value.SmiFromInt(int32(n))
}

// SetElement stores v at index i of an array, growing it as needed
func (h *Heap) SetElement(arr value.Word, i int, v value.Word) {
	if i >= h.ArrayLength(arr) {
		h.setArrayLength(arr, i+1)
	}
	elems := h.Get(h.Get(arr).Fields[value.ObjectElementsOffset])
	elems.Fields[value.FixedArrayHeaderSize+i] = v
}

// GetElement reads index i of an array, reporting false for holes and
// out-of-range indices
func (h *Heap) GetElement(arr value.Word, i int) (value.Word, bool) {
	if i < 0 || i >= h.ArrayLength(arr) {
		return value.Undefined, false
	}
	v := h.ArrayElements(arr)[i]
	if v == value.TheHole {
		return value.Undefined, false
	}
	return v, true
}

// GetOwn reads an own property of a JS object
func (h *Heap) GetOwn(obj value.Word, key string) (value.Word, bool) {
	o := h.Get(obj)
	switch h.TypeOf(obj) {
	case value.TypeArray:
		if key == "length" {
			return o.Fields[value.ArrayLengthOffset], true
		}
		if i, ok := arrayIndex(key); ok {
			return h.GetElement(obj, i)
		}
	case value.TypeFunction:
		if key == "prototype" && o.Code != nil {
			if _, ok := o.Props.get(key); !ok {
				proto := h.NewObject(h.ObjectPrototype)
				h.DefineHidden(proto, "constructor", obj)
				h.DefineHidden(obj, key, proto)
			}
		}
		if key == "length" {
			if o.Code != nil {
				return value.SmiFromInt(int32(o.Code.ParamCount)), true
			}
			return value.SmiFromInt(int32(o.Native.Arity)), true
		}
	}
	return o.Props.get(key)
}

// GetProperty reads a property through the prototype chain
func (h *Heap) GetProperty(obj value.Word, key string) (value.Word, bool) {
	for obj != value.Null {
		if v, ok := h.GetOwn(obj, key); ok {
			return v, true
		}
		obj = h.Prototype(obj)
	}
	return value.Undefined, false
}

// HasProperty reports whether key is found on obj or its prototypes
func (h *Heap) HasProperty(obj value.Word, key string) bool {
	_, ok := h.GetProperty(obj, key)
	return ok
}

// SetProperty stores an own property, moving the object to the map that
// has the new key when it is in fast mode
func (h *Heap) SetProperty(obj value.Word, key string, v value.Word) {
	o := h.Get(obj)
	if h.TypeOf(obj) == value.TypeArray {
		if key == "length" {
			if v.IsSmi() && v.SmiValue() >= 0 {
				h.setArrayLength(obj, int(v.SmiValue()))
			}
			return
		}
		if i, ok := arrayIndex(key); ok {
			h.SetElement(obj, i, v)
			return
		}
	}
	if !o.Props.set(key, v) {
		return
	}
	if m := o.Fields[value.MapOffset]; !h.Get(m).Map.Dictionary {
		o.Fields[value.MapOffset] = h.transition(m, key)
	}
}

// DefineHidden stores a property that for-in does not visit
func (h *Heap) DefineHidden(obj value.Word, key string, v value.Word) {
	o := h.Get(obj)
	o.Props.set(key, v)
	if o.Props.hidden == nil {
		o.Props.hidden = make(map[string]bool)
	}
	o.Props.hidden[key] = true
}

// DeleteProperty removes an own property. Deleting a named property puts
// the object into dictionary mode.
func (h *Heap) DeleteProperty(obj value.Word, key string) bool {
	if h.TypeOf(obj) == value.TypeArray {
		if key == "length" {
			return false
		}
		if i, ok := arrayIndex(key); ok {
			if i < h.ArrayLength(obj) {
				h.ArrayElements(obj)[i] = value.TheHole
			}
			return true
		}
	}
	if h.Get(obj).Props.remove(key) {
		h.ToSlowProperties(obj)
	}
	return true
}

// ToSlowProperties moves obj to a map of its own in dictionary mode
func (h *Heap) ToSlowProperties(obj value.Word) {
	o := h.Get(obj)
	md := h.Get(o.Fields[value.MapOffset]).Map
	if md.Dictionary {
		return
	}
	o.Fields[value.MapOffset] = h.newMap(md.Type, md.Prototype, nil, true)
}

// ToFastProperties moves a dictionary-mode object back to the shared map
// for its current keys
func (h *Heap) ToFastProperties(obj value.Word) {
	o := h.Get(obj)
	md := h.Get(o.Fields[value.MapOffset]).Map
	if !md.Dictionary {
		return
	}
	m := h.rootMap(md.Type, md.Prototype)
	for _, k := range o.Props.keys {
		m = h.transition(m, k)
	}
	o.Fields[value.MapOffset] = m
}

// OwnKeys lists the enumerable own property names of obj in for-in order
func (h *Heap) OwnKeys(obj value.Word) []string {
	var keys []string
	if h.TypeOf(obj) == value.TypeArray {
		for i, v := range h.ArrayElements(obj) {
			if v != value.TheHole {
				keys = append(keys, strconv.Itoa(i))
			}
		}
	}
	p := h.Get(obj).Props
	for _, k := range p.keys {
		if !p.hidden[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// EnumerableKeys lists the names for-in visits on obj: own keys first,
// then unshadowed keys of the prototypes
func (h *Heap) EnumerableKeys(obj value.Word) []string {
	var out []string
	seen := make(map[string]bool)
	for o := obj; o != value.Null; o = h.Prototype(o) {
		for _, k := range h.OwnKeys(o) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		for _, k := range h.Get(o).Props.keys {
			seen[k] = true
		}
	}
	return out
}

// hasEnumCache reports whether for-in over obj can use the key list of its
// map: the object is in fast mode, has no elements, and nothing on its
// prototype chain is enumerable.
func (h *Heap) hasEnumCache(obj value.Word) bool {
	md := h.MapOf(obj)
	if md.Dictionary || md.Type == value.TypeArray {
		return false
	}
	for _, k := range md.Keys {
		if h.Get(obj).Props.hidden[k] {
			return false
		}
	}
	for p := md.Prototype; p != value.Null; p = h.Prototype(p) {
		if len(h.OwnKeys(p)) > 0 {
			return false
		}
	}
	return true
}

// EnumCache returns the fixed array of keys cached on a fast-mode map,
// building it on first use
func (h *Heap) EnumCache(m value.Word) value.Word {
	mo := h.Get(m)
	if c := mo.Fields[value.MapEnumCacheOffset]; c != value.Undefined {
		return c
	}
	keys := make([]value.Word, len(mo.Map.Keys))
	for i, k := range mo.Map.Keys {
		keys[i] = h.Intern(k)
	}
	c := h.NewFixedArray(keys)
	mo.Fields[value.MapEnumCacheOffset] = c
	return c
}
