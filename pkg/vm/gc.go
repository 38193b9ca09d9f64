package vm

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/kristofer/ember/pkg/value"
)

// gcHeapGrowFactor is spec.md §4.6's threshold growth multiplier.
const gcHeapGrowFactor = 2

// register links a freshly allocated object into the intrusive object
// list and accounts its size, triggering a collection first if the
// VM is in stress mode or if bytesAllocated has crossed nextGC.
//
// The size accounting and the possible collection both happen before o
// is linked into vm.objects: o isn't reachable from any root yet (its
// caller hasn't pushed it or stored it anywhere), so if this very
// allocation is what crosses the GC threshold, o must not be a
// candidate for sweep. Linking it in only after collectGarbage returns
// keeps that window closed, mirroring the safety discipline spec.md
// §4.6 requires of allocation call sites.
func (vm *VM) register(o value.Obj, size int) {
	vm.bytesAllocated += size

	if vm.stressGC || vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}

	o.Header().Next = vm.objects
	vm.objects = o
}

func sizeOf(o value.Obj) int {
	switch o.(type) {
	case *value.ObjStringData:
		return 32
	case *value.ObjFunctionData:
		return 64
	case *value.ObjNativeData:
		return 32
	case *value.ObjUpvalueData:
		return 24
	case *value.ObjClosureData:
		return 32
	case *value.ObjClassData:
		return 48
	case *value.ObjInstanceData:
		return 32
	case *value.ObjBoundMethodData:
		return 24
	default:
		return 16
	}
}

// InternString returns the canonical string object for s, allocating
// and registering a new one only on a miss, per spec.md §4.4's
// findString specialization.
func (vm *VM) InternString(s string) *value.ObjStringData {
	hash := value.HashString(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := value.NewString(s)
	// Root the new string on the stack across the table insert: Set may
	// grow the table (an allocation point), so the string must already
	// be reachable before that happens (spec.md §4.6's safety discipline).
	vm.push(value.FromObject(str))
	vm.register(str, sizeOf(str))
	vm.strings.Set(str, value.Bool(true))
	vm.pop()
	return str
}

// NewFunction allocates and registers an empty function object, for the
// compiler to fill in as it compiles a body.
func (vm *VM) NewFunction() *value.ObjFunctionData {
	fn := value.NewFunction()
	vm.register(fn, sizeOf(fn))
	return fn
}

// PushCompilerRoot/PopCompilerRoot implement compiler.Heap's GC-root
// hook: while a function is mid-compile it's unreachable from any
// value, so the GC must be told about it explicitly (spec.md §4.6).
func (vm *VM) PushCompilerRoot(fn *value.ObjFunctionData) {
	vm.compilerRoots = append(vm.compilerRoots, fn)
}

func (vm *VM) PopCompilerRoot() {
	vm.compilerRoots = vm.compilerRoots[:len(vm.compilerRoots)-1]
}

func (vm *VM) newClosure(fn *value.ObjFunctionData) *value.ObjClosureData {
	c := &value.ObjClosureData{
		Object:   value.Object{Kind: value.ObjClosure},
		Function: fn,
		Upvalues: make([]*value.ObjUpvalueData, fn.UpvalueCount),
	}
	vm.register(c, sizeOf(c))
	return c
}

func (vm *VM) newUpvalue(slot *value.Value) *value.ObjUpvalueData {
	uv := &value.ObjUpvalueData{Object: value.Object{Kind: value.ObjUpvalue}, Location: slot}
	vm.register(uv, sizeOf(uv))
	return uv
}

func (vm *VM) newClass(name *value.ObjStringData) *value.ObjClassData {
	c := value.NewClass(name)
	vm.register(c, sizeOf(c))
	return c
}

func (vm *VM) newInstance(class *value.ObjClassData) *value.ObjInstanceData {
	inst := value.NewInstance(class)
	vm.register(inst, sizeOf(inst))
	return inst
}

func (vm *VM) newBoundMethod(receiver value.Value, method *value.ObjClosureData) *value.ObjBoundMethodData {
	bm := &value.ObjBoundMethodData{
		Object:   value.Object{Kind: value.ObjBoundMethod},
		Receiver: receiver,
		Method:   method,
	}
	vm.register(bm, sizeOf(bm))
	return bm
}

func (vm *VM) newNative(name string, fn value.NativeFn) *value.ObjNativeData {
	n := &value.ObjNativeData{Object: value.Object{Kind: value.ObjNative}, Function: fn, Name: name}
	vm.register(n, sizeOf(n))
	return n
}

// collectGarbage runs one full tri-color mark-sweep cycle, per
// spec.md §4.6.
func (vm *VM) collectGarbage() {
	before := vm.bytesAllocated

	vm.markRoots()
	vm.traceReferences()
	vm.strings.RemoveWhite()
	vm.sweep()

	vm.nextGC = vm.bytesAllocated * gcHeapGrowFactor
	if vm.nextGC < 1<<16 {
		vm.nextGC = 1 << 16
	}

	if vm.gcStats {
		fmt.Fprintf(vm.stderr, "gc: collected %s, %s -> %s, next at %s\n",
			humanize.Bytes(uint64(before-vm.bytesAllocated)),
			humanize.Bytes(uint64(before)),
			humanize.Bytes(uint64(vm.bytesAllocated)),
			humanize.Bytes(uint64(vm.nextGC)))
	}
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObject() {
		vm.markObject(v.Obj)
	}
}

func (vm *VM) markObject(o value.Obj) {
	if o == nil {
		return
	}
	h := o.Header()
	if h.Marked {
		return
	}
	h.Marked = true
	vm.grayStack = append(vm.grayStack, o)
}

func (vm *VM) markTable(t *value.Table) {
	t.Each(func(k *value.ObjStringData, v value.Value) {
		vm.markObject(k)
		vm.markValue(v)
	})
}

// markRoots enumerates every root spec.md §4.6 names: the live stack
// slots, each active frame's closure, the open-upvalue list, globals,
// the in-progress compiler chain, and the cached init string.
func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].Closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		vm.markObject(uv)
	}
	vm.markTable(vm.globals)
	for _, fn := range vm.compilerRoots {
		vm.markObject(fn)
	}
	vm.markObject(vm.initString)
}

// traceReferences drains the gray worklist, blackening each object by
// marking its own children, per spec.md §4.6 step 2.
func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		o := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blacken(o)
	}
}

func (vm *VM) blacken(o value.Obj) {
	switch obj := o.(type) {
	case *value.ObjUpvalueData:
		vm.markValue(obj.Closed)
	case *value.ObjFunctionData:
		vm.markObject(obj.Name)
		for _, c := range obj.Chunk.Constants {
			vm.markValue(c)
		}
	case *value.ObjClosureData:
		vm.markObject(obj.Function)
		for _, uv := range obj.Upvalues {
			vm.markObject(uv)
		}
	case *value.ObjClassData:
		vm.markObject(obj.Name)
		vm.markTable(obj.Methods)
		vm.markValue(obj.Init)
	case *value.ObjInstanceData:
		vm.markObject(obj.Class)
		vm.markTable(obj.Fields)
	case *value.ObjBoundMethodData:
		vm.markValue(obj.Receiver)
		vm.markObject(obj.Method)
	case *value.ObjStringData, *value.ObjNativeData:
		// no children
	}
}

// sweep walks the intrusive object list, freeing every unmarked object
// and clearing the mark bit on survivors, per spec.md §4.6 step 4. Go's
// own collector reclaims the memory once the last reference (here, the
// Next link) is dropped; this loop enforces the spec's liveness
// discipline independently of that, which is what makes it testable.
func (vm *VM) sweep() {
	var prev value.Obj
	cur := vm.objects
	for cur != nil {
		h := cur.Header()
		if h.Marked {
			h.Marked = false
			prev = cur
			cur = h.Next
			continue
		}
		unreached := cur
		cur = h.Next
		if prev == nil {
			vm.objects = cur
		} else {
			prev.Header().Next = cur
		}
		vm.bytesAllocated -= sizeOf(unreached)
	}
}
