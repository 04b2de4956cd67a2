package value

// InstanceType is stored as a smi in every map and tells generated code
// what kind of heap object it is looking at.
type InstanceType int32

const (
	TypeOddball InstanceType = iota
	TypeHeapNumber
	TypeString
	TypeFixedArray
	TypeMap
	TypeSharedInfo
	TypeBoilerplate
	TypeContext

	// JS objects; everything from TypeObject up can hold properties.
	TypeObject
	TypeArray
	TypeFunction
)

// FirstJSObjectType is the lowest instance type of a property-bearing object
const FirstJSObjectType = TypeObject

var instanceTypeNames = [...]string{
	"oddball", "heap_number", "string", "fixed_array", "map", "shared_info",
	"boilerplate", "context", "object", "array", "function",
}

func (t InstanceType) String() string {
	if int(t) < len(instanceTypeNames) {
		return instanceTypeNames[t]
	}
	return "instance_type?"
}

// Field offsets of heap objects, in words from the object start.
const (
	MapOffset = 0 // every heap object

	MapInstanceTypeOffset = 1
	MapEnumCacheOffset    = 2
	MapPrototypeOffset    = 3

	ObjectPropertiesOffset = 1
	ObjectElementsOffset   = 2
	ArrayLengthOffset      = 3
	FunctionContextOffset  = 3

	FixedArrayLengthOffset = 1
	FixedArrayHeaderSize   = 2

	StringLengthOffset = 1

	ContextPreviousOffset  = 1
	ContextExtensionOffset = 2
	ContextFcontextOffset  = 3
	ContextGlobalOffset    = 4
	ContextHeaderSize      = 5
)
