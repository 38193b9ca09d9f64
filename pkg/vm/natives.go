package vm

import (
	"fmt"
	"time"

	"github.com/kristofer/ember/pkg/value"
)

// defineNative registers a Go-implemented builtin as a global, per
// spec.md §6.
func (vm *VM) defineNative(name string, fn value.NativeFn) {
	native := vm.newNative(name, fn)
	// Root both the name string and the native object across the
	// globals insert, matching the push/pop discipline used elsewhere.
	vm.push(value.FromObject(vm.InternString(name)))
	vm.push(value.FromObject(native))
	vm.globals.Set(vm.stack[vm.stackTop-2].Obj.(*value.ObjStringData), vm.stack[vm.stackTop-1])
	vm.pop()
	vm.pop()
}

// defineNatives installs every built-in native spec.md §6 names.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", vm.nativeClock)
	vm.defineNative("deleteField", vm.nativeDeleteField)
}

func (vm *VM) nativeClock(args []value.Value) (value.Value, error) {
	return value.Number(time.Since(vm.startTime).Seconds()), nil
}

// nativeDeleteField removes a field from an instance, silently no-op on
// a non-instance or missing field per spec.md §6.
func (vm *VM) nativeDeleteField(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil, fmt.Errorf("deleteField expects 2 arguments, got %d", len(args))
	}
	inst, ok := args[0].Obj.(*value.ObjInstanceData)
	if !args[0].IsObject() || !ok {
		return value.Nil, nil
	}
	name, ok := args[1].Obj.(*value.ObjStringData)
	if !args[1].IsObject() || !ok {
		return value.Nil, nil
	}
	inst.Fields.Delete(name)
	return value.Nil, nil
}
