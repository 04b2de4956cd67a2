package value

import "fmt"

// Word is a 32-bit machine word. The low bit is the tag: 0 for a small
// integer (smi) whose payload is the upper 31 bits, 1 for a heap pointer.
type Word uint32

const (
	SmiTag     Word = 0
	SmiTagMask Word = 1
	SmiTagSize      = 1

	HeapObjectTag Word = 1
)

// Smi range: 31-bit two's complement payload.
const (
	SmiMin int32 = -(1 << 30)
	SmiMax int32 = 1<<30 - 1
)

// IsSmi reports whether w is tagged as a small integer.
func (w Word) IsSmi() bool { return w&SmiTagMask == SmiTag }

// IsHeapObject reports whether w is tagged as a heap pointer.
func (w Word) IsHeapObject() bool { return w&SmiTagMask == HeapObjectTag }

// SmiValue returns the untagged payload of a smi word.
func (w Word) SmiValue() int32 { return int32(w) >> SmiTagSize }

// HeapIndex returns the heap slot a pointer word refers to.
func (w Word) HeapIndex() int { return int(w >> 1) }

// Int32 reinterprets the word as a signed integer.
func (w Word) Int32() int32 { return int32(w) }

// IsValidSmi reports whether v fits the smi payload.
func IsValidSmi(v int64) bool { return v >= int64(SmiMin) && v <= int64(SmiMax) }

// SmiFromInt tags v. The caller guarantees IsValidSmi(v).
func SmiFromInt(v int32) Word { return Word(uint32(v) << SmiTagSize) }

// FromHeapIndex tags a heap slot index as a pointer.
func FromHeapIndex(i int) Word { return Word(uint32(i)<<1) | HeapObjectTag }

// Root is one of the fixed heap objects allocated before any other, so
// their pointer words are known at code generation time.
type Root int

const (
	RootUndefined Root = iota
	RootNull
	RootTrue
	RootFalse
	RootTheHole
	RootEmptyFixedArray
	RootHeapNumberMap
	RootStringMap
	RootFixedArrayMap
	RootMetaMap
	RootOddballMap
	RootCount
)

var rootNames = [...]string{
	RootUndefined:       "undefined",
	RootNull:            "null",
	RootTrue:            "true",
	RootFalse:           "false",
	RootTheHole:         "the_hole",
	RootEmptyFixedArray: "empty_fixed_array",
	RootHeapNumberMap:   "heap_number_map",
	RootStringMap:       "string_map",
	RootFixedArrayMap:   "fixed_array_map",
	RootMetaMap:         "meta_map",
	RootOddballMap:      "oddball_map",
}

func (r Root) String() string {
	if r >= 0 && int(r) < len(rootNames) {
		return rootNames[r]
	}
	return fmt.Sprintf("root(%d)", int(r))
}

// Word returns the fixed pointer word of a root.
func (r Root) Word() Word { return FromHeapIndex(int(r)) }

// Well-known root words.
var (
	Undefined       = RootUndefined.Word()
	Null            = RootNull.Word()
	True            = RootTrue.Word()
	False           = RootFalse.Word()
	TheHole         = RootTheHole.Word()
	EmptyFixedArray = RootEmptyFixedArray.Word()
	HeapNumberMap   = RootHeapNumberMap.Word()
	StringMap       = RootStringMap.Word()
	FixedArrayMap   = RootFixedArrayMap.Word()
	MetaMap         = RootMetaMap.Word()
	OddballMap      = RootOddballMap.Word()
)

// RootOf returns the root a word names, if any.
func RootOf(w Word) (Root, bool) {
	if !w.IsHeapObject() {
		return 0, false
	}
	i := w.HeapIndex()
	if i < int(RootCount) {
		return Root(i), true
	}
	return 0, false
}

// Bool returns the oddball word for b.
func Bool(b bool) Word {
	if b {
		return True
	}
	return False
}

// String renders a word without heap access.
func (w Word) String() string {
	if w.IsSmi() {
		return fmt.Sprintf("smi(%d)", w.SmiValue())
	}
	if r, ok := RootOf(w); ok {
		return r.String()
	}
	return fmt.Sprintf("ptr(%d)", w.HeapIndex())
}
