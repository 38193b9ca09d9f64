package value

// ObjKind tags which heap-object variant an Object header belongs to.
type ObjKind byte

const (
	ObjString ObjKind = iota
	ObjFunction
	ObjNative
	ObjClosure
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
)

// Object is the header every heap entity embeds, per spec.md §3: a
// variant tag, a GC mark bit, and the intrusive "next" link threading it
// into the VM's global object list. Ownership is non-owning: the VM owns
// every object, and reachability alone (not reference counting) keeps an
// object alive.
type Object struct {
	Kind   ObjKind
	Marked bool
	Next   Obj
}

// Header implements Obj for the embedded type itself, letting code that
// already has an *Object (e.g. while walking the object list) call the
// same accessor other variants expose.
func (o *Object) Header() *Object { return o }

// TypeName returns a lower-case, human-readable name for the variant.
// The VM's runtime error messages do not currently include it.
func (k ObjKind) TypeName() string {
	switch k {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjNative:
		return "native function"
	case ObjClosure:
		return "function"
	case ObjUpvalue:
		return "upvalue"
	case ObjClass:
		return "class"
	case ObjInstance:
		return "instance"
	case ObjBoundMethod:
		return "bound method"
	default:
		return "object"
	}
}

// describeObject renders any object variant for `print` and diagnostics.
func describeObject(o Obj) string {
	switch v := o.(type) {
	case *ObjStringData:
		return v.Chars
	case *ObjFunctionData:
		return functionString(v)
	case *ObjNativeData:
		return "<native fn>"
	case *ObjClosureData:
		return functionString(v.Function)
	case *ObjUpvalueData:
		return "upvalue"
	case *ObjClassData:
		return v.Name.Chars
	case *ObjInstanceData:
		return v.Class.Name.Chars + " instance"
	case *ObjBoundMethodData:
		return functionString(v.Method.Function)
	default:
		return "<object>"
	}
}

func functionString(f *ObjFunctionData) string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Chars + ">"
}

// --- String ---

// ObjStringData is an immutable, interned byte sequence.
type ObjStringData struct {
	Object
	Chars string
	Hash  uint32
}

// NewString allocates an unlinked string object with its hash
// precomputed; the caller is responsible for rooting/interning it via
// the VM's Heap.
func NewString(s string) *ObjStringData {
	return &ObjStringData{Object: Object{Kind: ObjString}, Chars: s, Hash: HashString(s)}
}

// HashString computes the FNV-1a 32-bit hash used for interning and
// table indexing (spec.md §3, §4.4).
func HashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// --- Function ---

// ObjFunctionData is a compiled function: its arity, how many variables
// it captures, the compiled Chunk for its body, and an optional name
// (nil for the top-level script).
type ObjFunctionData struct {
	Object
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Name         *ObjStringData
}

// NewFunction allocates an unlinked function object; the caller is
// responsible for rooting it via the VM's Heap.
func NewFunction() *ObjFunctionData {
	return &ObjFunctionData{Object: Object{Kind: ObjFunction}, Chunk: NewChunk()}
}

// --- Native ---

// NativeFn is a Go-implemented builtin, per spec.md §6.
type NativeFn func(args []Value) (Value, error)

// ObjNativeData wraps a NativeFn as a callable heap object.
type ObjNativeData struct {
	Object
	Function NativeFn
	Name     string
}

// --- Upvalue ---

// ObjUpvalueData is either "open" (Location points into the VM's value
// stack) or "closed" (it owns Closed and Location points at it), per
// spec.md §3 invariants 4-5. Slot records the stack index Location
// refers to while open; it's meaningless once closed and exists only so
// the VM can order/compare the open-list without pointer arithmetic.
type ObjUpvalueData struct {
	Object
	Location *Value
	Closed   Value
	Slot     int
	NextOpen *ObjUpvalueData // open-list intrusive link, sorted by stack depth desc
}

// --- Closure ---

// ObjClosureData bundles a Function with its captured Upvalues.
type ObjClosureData struct {
	Object
	Function *ObjFunctionData
	Upvalues []*ObjUpvalueData
}

// --- Class ---

// ObjClassData is a class: its name, its method table (keyed by interned
// name), and a cached initializer value for fast construction.
type ObjClassData struct {
	Object
	Name    *ObjStringData
	Methods *Table
	Init    Value // cached `init` method, or Nil
}

// NewClass allocates an unlinked class object.
func NewClass(name *ObjStringData) *ObjClassData {
	return &ObjClassData{Object: Object{Kind: ObjClass}, Name: name, Methods: NewTable(), Init: Nil}
}

// --- Instance ---

// ObjInstanceData is an instance of a class: a pointer to its class and
// its own field table.
type ObjInstanceData struct {
	Object
	Class  *ObjClassData
	Fields *Table
}

// NewInstance allocates an unlinked instance object.
func NewInstance(class *ObjClassData) *ObjInstanceData {
	return &ObjInstanceData{Object: Object{Kind: ObjInstance}, Class: class, Fields: NewTable()}
}

// --- BoundMethod ---

// ObjBoundMethodData is the first-class result of reading a method off
// an instance: it remembers the receiver.
type ObjBoundMethodData struct {
	Object
	Receiver Value
	Method   *ObjClosureData
}

// Header implementations: each variant simply returns its embedded
// Object's address, satisfying the Obj interface.
func (o *ObjStringData) Header() *Object      { return &o.Object }
func (o *ObjFunctionData) Header() *Object    { return &o.Object }
func (o *ObjNativeData) Header() *Object      { return &o.Object }
func (o *ObjUpvalueData) Header() *Object     { return &o.Object }
func (o *ObjClosureData) Header() *Object     { return &o.Object }
func (o *ObjClassData) Header() *Object       { return &o.Object }
func (o *ObjInstanceData) Header() *Object    { return &o.Object }
func (o *ObjBoundMethodData) Header() *Object { return &o.Object }
