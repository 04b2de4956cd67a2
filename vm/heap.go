package vm

import (
	"fmt"

	"kestrel/asm"
	"kestrel/value"
)

// Object is a simulated heap object. Fields are the words generated code
// can address; the remaining members hold the payload the runtime works
// with directly.
type Object struct {
	Fields []value.Word

	Num    float64     // heap numbers
	Str    string      // strings, oddball names
	Props  *properties // JS objects
	Map    *MapData    // maps
	Code   *asm.Code   // shared function infos and compiled functions
	Native *Native     // native functions
	Names  []string    // slot names of a function context
	Data   any         // literal boilerplates and name lists
}

// MapData describes the shape of the objects that share a map
type MapData struct {
	Type       value.InstanceType
	Prototype  value.Word
	Keys       []string // property names in fast mode, in order
	Dictionary bool
	// transitions lead to the map with one more property
	transitions map[string]value.Word
	root        value.Word
}

type properties struct {
	keys   []string
	vals   map[string]value.Word
	hidden map[string]bool // not enumerable
}

func newProperties() *properties {
	return &properties{vals: make(map[string]value.Word)}
}

func (p *properties) get(key string) (value.Word, bool) {
	v, ok := p.vals[key]
	return v, ok
}

// set stores key and reports whether it was added
func (p *properties) set(key string, v value.Word) bool {
	_, had := p.vals[key]
	if !had {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = v
	return !had
}

func (p *properties) remove(key string) bool {
	if _, ok := p.vals[key]; !ok {
		return false
	}
	delete(p.vals, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i:i], p.keys[i+1:]...)
			break
		}
	}
	return true
}

type mapKey struct {
	t     value.InstanceType
	proto value.Word
}

// Heap owns every simulated object. Nothing is ever freed.
type Heap struct {
	objects  []*Object
	rootMaps map[mapKey]value.Word
	strings  map[string]value.Word

	ObjectPrototype   value.Word
	FunctionPrototype value.Word
	ArrayPrototype    value.Word
	ErrorPrototype    value.Word
	Global            value.Word
	GlobalContext     value.Word
}

// NewHeap creates a heap holding the fixed roots, the prototypes, the
// global object and the global context.
func NewHeap() *Heap {
	h := &Heap{
		rootMaps: make(map[mapKey]value.Word),
		strings:  make(map[string]value.Word),
	}
	oddball := func(name string) {
		h.alloc(&Object{Fields: []value.Word{value.OddballMap}, Str: name})
	}
	oddball("undefined")
	oddball("null")
	oddball("true")
	oddball("false")
	oddball("hole")
	h.alloc(&Object{Fields: []value.Word{value.FixedArrayMap, value.SmiFromInt(0)}})
	for _, t := range []value.InstanceType{value.TypeHeapNumber, value.TypeString, value.TypeFixedArray, value.TypeMap, value.TypeOddball} {
		h.alloc(&Object{
			Fields: []value.Word{value.MetaMap, value.SmiFromInt(int32(t)), value.EmptyFixedArray, value.Null},
			Map:    &MapData{Type: t, Prototype: value.Null},
		})
	}
	if len(h.objects) != int(value.RootCount) {
		panic("vm: root layout mismatch")
	}

	h.ObjectPrototype = h.NewObject(value.Null)
	h.FunctionPrototype = h.NewObject(h.ObjectPrototype)
	h.ArrayPrototype = h.NewObject(h.ObjectPrototype)
	h.ErrorPrototype = h.NewObject(h.ObjectPrototype)
	h.Global = h.NewObject(h.ObjectPrototype)
	h.GlobalContext = h.NewContext(value.Undefined, value.Undefined, 0, nil)
	return h
}

func (h *Heap) alloc(o *Object) value.Word {
	h.objects = append(h.objects, o)
	return value.FromHeapIndex(len(h.objects) - 1)
}

// Size returns the number of allocated objects
func (h *Heap) Size() int { return len(h.objects) }

// Get returns the object w points to
func (h *Heap) Get(w value.Word) *Object {
	if !w.IsHeapObject() || w.HeapIndex() >= len(h.objects) {
		panic(faultf(fmt.Sprintf("%s is not a heap pointer", w)))
	}
	return h.objects[w.HeapIndex()]
}

// MapOf returns the map object of a heap object
func (h *Heap) MapOf(w value.Word) *MapData {
	return h.Get(h.Get(w).Fields[value.MapOffset]).Map
}

// TypeOf returns the instance type of a heap object
func (h *Heap) TypeOf(w value.Word) value.InstanceType {
	return h.MapOf(w).Type
}

// IsJSObject reports whether w is an object that can hold properties
func (h *Heap) IsJSObject(w value.Word) bool {
	return w.IsHeapObject() && h.TypeOf(w) >= value.FirstJSObjectType
}

func (h *Heap) is(w value.Word, t value.InstanceType) bool {
	return w.IsHeapObject() && h.TypeOf(w) == t
}

func (h *Heap) newMap(t value.InstanceType, proto value.Word, keys []string, dictionary bool) value.Word {
	return h.alloc(&Object{
		Fields: []value.Word{value.MetaMap, value.SmiFromInt(int32(t)), value.Undefined, proto},
		Map:    &MapData{Type: t, Prototype: proto, Keys: keys, Dictionary: dictionary},
	})
}

// rootMap returns the empty fast map for objects of type t with the given
// prototype
func (h *Heap) rootMap(t value.InstanceType, proto value.Word) value.Word {
	k := mapKey{t, proto}
	if m, ok := h.rootMaps[k]; ok {
		return m
	}
	m := h.newMap(t, proto, nil, false)
	h.Get(m).Map.root = m
	h.rootMaps[k] = m
	return m
}

// transition returns the map reached from m by adding key
func (h *Heap) transition(m value.Word, key string) value.Word {
	md := h.Get(m).Map
	if next, ok := md.transitions[key]; ok {
		return next
	}
	keys := append(append([]string(nil), md.Keys...), key)
	next := h.newMap(md.Type, md.Prototype, keys, false)
	h.Get(next).Map.root = md.root
	if md.transitions == nil {
		md.transitions = make(map[string]value.Word)
	}
	md.transitions[key] = next
	return next
}

// NewNumber returns a smi when f is representable as one, else a heap
// number
func (h *Heap) NewNumber(f float64) value.Word {
	if i, ok := value.SmiFromFloat(f); ok {
		return value.SmiFromInt(i)
	}
	return h.alloc(&Object{Fields: []value.Word{value.HeapNumberMap}, Num: f})
}

// NewString allocates a string
func (h *Heap) NewString(s string) value.Word {
	return h.alloc(&Object{Fields: []value.Word{value.StringMap, value.SmiFromInt(int32(len(s)))}, Str: s})
}

// Intern returns the shared string object for s
func (h *Heap) Intern(s string) value.Word {
	if w, ok := h.strings[s]; ok {
		return w
	}
	w := h.NewString(s)
	h.strings[s] = w
	return w
}

// NewFixedArray allocates a fixed array holding elems
func (h *Heap) NewFixedArray(elems []value.Word) value.Word {
	fields := make([]value.Word, value.FixedArrayHeaderSize+len(elems))
	fields[0] = value.FixedArrayMap
	fields[value.FixedArrayLengthOffset] = value.SmiFromInt(int32(len(elems)))
	copy(fields[value.FixedArrayHeaderSize:], elems)
	return h.alloc(&Object{Fields: fields})
}

// FixedArrayElements returns the element words of a fixed array
func (h *Heap) FixedArrayElements(w value.Word) []value.Word {
	return h.Get(w).Fields[value.FixedArrayHeaderSize:]
}

func (h *Heap) newJSObject(t value.InstanceType, proto value.Word, extra int) (value.Word, *Object) {
	fields := make([]value.Word, value.ArrayLengthOffset+extra)
	fields[value.MapOffset] = h.rootMap(t, proto)
	fields[value.ObjectPropertiesOffset] = value.EmptyFixedArray
	fields[value.ObjectElementsOffset] = value.EmptyFixedArray
	o := &Object{Fields: fields, Props: newProperties()}
	return h.alloc(o), o
}

// NewObject allocates an empty plain object
func (h *Heap) NewObject(proto value.Word) value.Word {
	w, _ := h.newJSObject(value.TypeObject, proto, 0)
	return w
}

// NewArray allocates an array with the given elements
func (h *Heap) NewArray(elems []value.Word) value.Word {
	w, o := h.newJSObject(value.TypeArray, h.ArrayPrototype, 1)
	o.Fields[value.ObjectElementsOffset] = h.NewFixedArray(elems)
	o.Fields[value.ArrayLengthOffset] = value.SmiFromInt(int32(len(elems)))
	return w
}

// NewFunction allocates a closure of code over context
func (h *Heap) NewFunction(code *asm.Code, context value.Word) value.Word {
	w, o := h.newJSObject(value.TypeFunction, h.FunctionPrototype, 1)
	o.Fields[value.FunctionContextOffset] = context
	o.Code = code
	return w
}

// NewNativeFunction allocates a function implemented in Go
func (h *Heap) NewNativeFunction(n *Native) value.Word {
	w, o := h.newJSObject(value.TypeFunction, h.FunctionPrototype, 1)
	o.Fields[value.FunctionContextOffset] = h.GlobalContext
	o.Native = n
	return w
}

// NewContext allocates a context. A function context is its own function
// context; a with context shares the function context of previous.
func (h *Heap) NewContext(previous, extension value.Word, slots int, names []string) value.Word {
	fields := make([]value.Word, value.ContextHeaderSize+slots)
	fields[value.MapOffset] = h.rootMap(value.TypeContext, value.Null)
	fields[value.ContextPreviousOffset] = previous
	fields[value.ContextExtensionOffset] = extension
	fields[value.ContextGlobalOffset] = h.Global
	for i := value.ContextHeaderSize; i < len(fields); i++ {
		fields[i] = value.Undefined
	}
	w := h.alloc(&Object{Fields: fields, Names: names})
	if extension != value.Undefined && previous != value.Undefined {
		fields[value.ContextFcontextOffset] = h.Get(previous).Fields[value.ContextFcontextOffset]
	} else {
		fields[value.ContextFcontextOffset] = w
	}
	return w
}

// constant materialises a constant pool entry as a word
func (h *Heap) constant(entry any) value.Word {
	switch c := entry.(type) {
	case value.Constant:
		if w, ok := c.Immediate(); ok {
			return w
		}
		if c.IsString() {
			return h.Intern(c.Str())
		}
		return h.NewNumber(c.Number())
	case *asm.Code:
		return h.alloc(&Object{Fields: []value.Word{h.rootMap(value.TypeSharedInfo, value.Null)}, Code: c})
	default:
		return h.alloc(&Object{Fields: []value.Word{h.rootMap(value.TypeBoilerplate, value.Null)}, Data: c})
	}
}
