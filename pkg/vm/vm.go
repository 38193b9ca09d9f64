// Package vm implements ember's bytecode virtual machine.
//
// The VM is a stack-based interpreter. It's the final stage in the
// execution pipeline:
//
//	Source Code -> Lexer -> Compiler -> Bytecode -> VM -> Execution
//
// Unlike a tree-walking interpreter, the VM never recurses over source
// structure: it fetches, decodes, and dispatches one opcode at a time
// against a value stack and a fixed-size array of call frames. An
// ember-level function call pushes a new CallFrame and the same loop
// carries on; the Go stack does not grow with ember call depth, and the
// FramesMax cap below stops runaway recursion.
//
// The VM also owns the heap: every object allocation is registered here
// so the garbage collector (gc.go) can find it, and every compile-time
// string or function allocation reaches the VM through the Heap
// interface the compiler package depends on.
package vm

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/debug"
	"github.com/kristofer/ember/pkg/value"
)

// FramesMax bounds call-frame depth, per spec.md §3 invariant 7.
const FramesMax = 64

// StackMax bounds the value stack; fixed rather than dynamically grown,
// so slot indices into it are stable for the lifetime of a call frame —
// see DESIGN.md's resolution of spec.md §9's "Stack growth" note.
const StackMax = FramesMax * 256

// InterpretResult is the status Interpret returns, per spec.md §6.
type InterpretResult int

const (
	InterpretOk InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// CallFrame is one activation of a closure: its instruction pointer into
// the closure's function's chunk, and the base slot in the VM's value
// stack where its locals (including the receiver/callee at slot 0) live.
type CallFrame struct {
	Closure *value.ObjClosureData
	IP      int
	Slots   int
}

// VM holds all interpreter state: the value stack, the call-frame stack,
// the open-upvalue list, globals, the string-intern table, and every
// garbage-collection bookkeeping field from spec.md §4.6.
type VM struct {
	stack      [StackMax]value.Value
	stackTop   int
	frames     [FramesMax]CallFrame
	frameCount int

	openUpvalues *value.ObjUpvalueData
	globals      *value.Table
	strings      *value.Table
	initString   *value.ObjStringData

	objects        value.Obj
	bytesAllocated int
	nextGC         int
	grayStack      []value.Obj
	compilerRoots  []*value.ObjFunctionData

	stressGC bool
	trace    bool
	gcStats  bool

	startTime time.Time
	stdout    io.Writer
	stderr    io.Writer

	lastError *RuntimeError
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithTrace enables an instruction trace on stdout before each dispatch,
// the `--trace` CLI flag's effect.
func WithTrace(on bool) Option { return func(vm *VM) { vm.trace = on } }

// WithStressGC forces a full collection on every allocation that would
// otherwise merely grow bytesAllocated, per spec.md §4.6's stress mode.
func WithStressGC(on bool) Option { return func(vm *VM) { vm.stressGC = on } }

// WithGCStats logs a one-line summary after every collection.
func WithGCStats(on bool) Option { return func(vm *VM) { vm.gcStats = on } }

// WithOutput redirects `print` and diagnostics, mainly for tests.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(vm *VM) { vm.stdout = stdout; vm.stderr = stderr }
}

// New constructs a VM ready for repeated Interpret calls. Globals and the
// intern table persist across calls; the stack and frames reset each time.
func New(opts ...Option) *VM {
	vm := &VM{
		globals:   value.NewTable(),
		strings:   value.NewTable(),
		nextGC:    1 << 20,
		startTime: time.Now(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.initString = vm.InternString("init")
	vm.defineNatives()
	return vm
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// Interpret compiles and runs source against this VM, per spec.md §6's
// public entry point. Compile errors are reported to stderr and return
// InterpretCompileError without touching the VM's runtime state.
func (vm *VM) Interpret(source string) InterpretResult {
	fn, errs := compiler.Compile(source, vm)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(vm.stderr, e.Error())
		}
		return InterpretCompileError
	}

	vm.resetStack()
	closure := vm.newClosure(fn)
	vm.push(value.FromObject(closure))
	vm.callValue(value.FromObject(closure), 0)

	return vm.run()
}

func (vm *VM) currentFrame() *CallFrame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte(f *CallFrame) byte {
	b := f.Closure.Function.Chunk.Code[f.IP]
	f.IP++
	return b
}

func (vm *VM) readShort(f *CallFrame) int {
	hi := vm.readByte(f)
	lo := vm.readByte(f)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(f *CallFrame) value.Value {
	return f.Closure.Function.Chunk.Constants[vm.readByte(f)]
}

func (vm *VM) readString(f *CallFrame) *value.ObjStringData {
	return vm.readConstant(f).Obj.(*value.ObjStringData)
}

// run is the fetch-decode-dispatch loop, per spec.md §4.5.
func (vm *VM) run() InterpretResult {
	frame := vm.currentFrame()

	for {
		if vm.trace {
			vm.traceInstruction(frame)
		}

		op := value.OpCode(vm.readByte(frame))
		switch op {
		case value.OpConstant:
			vm.push(vm.readConstant(frame))

		case value.OpConstantLong:
			hi, mid, lo := vm.readByte(frame), vm.readByte(frame), vm.readByte(frame)
			idx := int(hi)<<16 | int(mid)<<8 | int(lo)
			vm.push(frame.Closure.Function.Chunk.Constants[idx])

		case value.OpNil:
			vm.push(value.Nil)
		case value.OpTrue:
			vm.push(value.Bool(true))
		case value.OpFalse:
			vm.push(value.Bool(false))
		case value.OpPop:
			vm.pop()
		case value.OpDup:
			vm.push(vm.peek(0))

		case value.OpGetLocal:
			slot := vm.readByte(frame)
			vm.push(vm.stack[frame.Slots+int(slot)])
		case value.OpSetLocal:
			slot := vm.readByte(frame)
			vm.stack[frame.Slots+int(slot)] = vm.peek(0)

		case value.OpGetGlobal:
			name := vm.readString(frame)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case value.OpDefineGlobal:
			name := vm.readString(frame)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case value.OpSetGlobal:
			name := vm.readString(frame)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case value.OpGetUpvalue:
			slot := vm.readByte(frame)
			vm.push(*frame.Closure.Upvalues[slot].Location)
		case value.OpSetUpvalue:
			slot := vm.readByte(frame)
			*frame.Closure.Upvalues[slot].Location = vm.peek(0)

		case value.OpGetProperty:
			if !vm.peek(0).IsObject() {
				return vm.runtimeError("Only instances have properties.")
			}
			inst, ok := vm.peek(0).Obj.(*value.ObjInstanceData)
			if !ok {
				return vm.runtimeError("Only instances have properties.")
			}
			name := vm.readString(frame)
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return InterpretRuntimeError
			}

		case value.OpSetProperty:
			inst, ok := vm.peek(1).Obj.(*value.ObjInstanceData)
			if !vm.peek(1).IsObject() || !ok {
				return vm.runtimeError("Only instances have fields.")
			}
			name := vm.readString(frame)
			inst.Fields.Set(name, vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case value.OpGetSuper:
			name := vm.readString(frame)
			superclass := vm.pop().Obj.(*value.ObjClassData)
			if !vm.bindMethod(superclass, name) {
				return InterpretRuntimeError
			}

		case value.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))

		case value.OpGreater, value.OpLess:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			b := vm.pop().AsNumber()
			a := vm.pop().AsNumber()
			if op == value.OpGreater {
				vm.push(value.Bool(a > b))
			} else {
				vm.push(value.Bool(a < b))
			}

		case value.OpAdd:
			switch {
			case vm.peek(0).IsObject() && vm.peek(1).IsObject():
				_, aok := vm.peek(1).Obj.(*value.ObjStringData)
				_, bok := vm.peek(0).Obj.(*value.ObjStringData)
				if !aok || !bok {
					return vm.runtimeError("Operands must be two numbers or two strings.")
				}
				vm.concatenate()
			case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
				b := vm.pop().AsNumber()
				a := vm.pop().AsNumber()
				vm.push(value.Number(a + b))
			default:
				return vm.runtimeError("Operands must be two numbers or two strings.")
			}

		case value.OpSubtract, value.OpMultiply, value.OpDivide, value.OpModulus:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			b := vm.pop().AsNumber()
			a := vm.pop().AsNumber()
			switch op {
			case value.OpSubtract:
				vm.push(value.Number(a - b))
			case value.OpMultiply:
				vm.push(value.Number(a * b))
			case value.OpDivide:
				if b == 0 {
					return vm.runtimeError("Division by zero.")
				}
				vm.push(value.Number(a / b))
			case value.OpModulus:
				if a != float64(int64(a)) || b != float64(int64(b)) {
					return vm.runtimeError("Operands to '%%' must be integers.")
				}
				if int64(b) == 0 {
					return vm.runtimeError("Modulo by zero.")
				}
				vm.push(value.Number(float64(int64(a) % int64(b))))
			}

		case value.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case value.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case value.OpConditional:
			elseVal := vm.pop()
			thenVal := vm.pop()
			cond := vm.pop()
			if cond.IsFalsey() {
				vm.push(elseVal)
			} else {
				vm.push(thenVal)
			}

		case value.OpPrint:
			fmt.Fprintln(vm.stdout, vm.pop().String())

		case value.OpJump:
			offset := vm.readShort(frame)
			frame.IP += offset
		case value.OpJumpIfFalse:
			offset := vm.readShort(frame)
			if vm.peek(0).IsFalsey() {
				frame.IP += offset
			}
		case value.OpLoop:
			offset := vm.readShort(frame)
			frame.IP -= offset

		case value.OpCall:
			argc := int(vm.readByte(frame))
			if !vm.callValue(vm.peek(argc), argc) {
				return InterpretRuntimeError
			}
			frame = vm.currentFrame()

		case value.OpInvoke:
			name := vm.readString(frame)
			argc := int(vm.readByte(frame))
			if !vm.invoke(name, argc) {
				return InterpretRuntimeError
			}
			frame = vm.currentFrame()

		case value.OpSuperInvoke:
			name := vm.readString(frame)
			argc := int(vm.readByte(frame))
			superclass := vm.pop().Obj.(*value.ObjClassData)
			if !vm.invokeFromClass(superclass, name, argc) {
				return InterpretRuntimeError
			}
			frame = vm.currentFrame()

		case value.OpClosure:
			fn := vm.readConstant(frame).Obj.(*value.ObjFunctionData)
			closure := vm.newClosure(fn)
			vm.push(value.FromObject(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(frame)
				index := int(vm.readByte(frame))
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.Slots + index)
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}

		case value.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case value.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.Slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return InterpretOk
			}
			vm.stackTop = frame.Slots
			vm.push(result)
			frame = vm.currentFrame()

		case value.OpClass:
			vm.push(value.FromObject(vm.newClass(vm.readString(frame))))

		case value.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.Obj.(*value.ObjClassData)
			if !ok || !superVal.IsObject() {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).Obj.(*value.ObjClassData)
			superclass.Methods.Each(func(k *value.ObjStringData, v value.Value) {
				subclass.Methods.Set(k, v)
			})
			if v, ok := superclass.Methods.Get(vm.initString); ok {
				subclass.Init = v
			}
			vm.pop()

		case value.OpMethod:
			vm.defineMethod(vm.readString(frame))

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

// callValue dispatches a call per spec.md §4.5's callee-variant table.
func (vm *VM) callValue(callee value.Value, argc int) bool {
	if callee.IsObject() {
		switch c := callee.Obj.(type) {
		case *value.ObjClosureData:
			return vm.call(c, argc)
		case *value.ObjClassData:
			vm.stack[vm.stackTop-argc-1] = value.FromObject(vm.newInstance(c))
			if !c.Init.IsNil() {
				return vm.call(c.Init.Obj.(*value.ObjClosureData), argc)
			}
			if argc != 0 {
				return vm.runtimeErrorBool("Expected 0 arguments but got %d.", argc)
			}
			return true
		case *value.ObjBoundMethodData:
			vm.stack[vm.stackTop-argc-1] = c.Receiver
			return vm.call(c.Method, argc)
		case *value.ObjNativeData:
			args := vm.stack[vm.stackTop-argc : vm.stackTop]
			result, err := c.Function(args)
			if err != nil {
				return vm.runtimeErrorBool("%s", err.Error())
			}
			vm.stackTop -= argc + 1
			vm.push(result)
			return true
		}
	}
	return vm.runtimeErrorBool("Can only call functions and classes.")
}

func (vm *VM) call(closure *value.ObjClosureData, argc int) bool {
	if argc != closure.Function.Arity {
		return vm.runtimeErrorBool("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeErrorBool("Stack overflow.")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.Closure = closure
	frame.IP = 0
	frame.Slots = vm.stackTop - argc - 1
	return true
}

// invoke implements the INVOKE fast path: a field shadows a method.
func (vm *VM) invoke(name *value.ObjStringData, argc int) bool {
	receiver := vm.peek(argc)
	inst, ok := receiver.Obj.(*value.ObjInstanceData)
	if !receiver.IsObject() || !ok {
		return vm.runtimeErrorBool("Only instances have methods.")
	}
	if v, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argc-1] = v
		return vm.callValue(v, argc)
	}
	return vm.invokeFromClass(inst.Class, name, argc)
}

func (vm *VM) invokeFromClass(class *value.ObjClassData, name *value.ObjStringData, argc int) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeErrorBool("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method.Obj.(*value.ObjClosureData), argc)
}

func (vm *VM) bindMethod(class *value.ObjClassData, name *value.ObjStringData) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeErrorBool("Undefined property '%s'.", name.Chars)
	}
	bound := vm.newBoundMethod(vm.peek(0), method.Obj.(*value.ObjClosureData))
	vm.pop()
	vm.push(value.FromObject(bound))
	return true
}

func (vm *VM) defineMethod(name *value.ObjStringData) {
	method := vm.peek(0)
	class := vm.peek(1).Obj.(*value.ObjClassData)
	class.Methods.Set(name, method)
	if name.Chars == "init" {
		class.Init = method
	}
	vm.pop()
}

// captureUpvalue walks the sorted-descending open-list per spec.md
// §4.5, reusing an existing up-value for the same stack slot.
func (vm *VM) captureUpvalue(slot int) *value.ObjUpvalueData {
	var prev *value.ObjUpvalueData
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Slot == slot {
		return cur
	}
	created := vm.newUpvalue(&vm.stack[slot])
	created.Slot = slot
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues moves every open up-value at or above fromSlot into its
// own closed storage, per spec.md §4.5.
func (vm *VM) closeUpvalues(fromSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= fromSlot {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.NextOpen
	}
}

// concatenate implements spec.md §4.5's GC-safe string ADD: both
// operands stay rooted on the stack (peeked, not popped) until the new
// string is safely allocated.
func (vm *VM) concatenate() {
	b := vm.peek(0).Obj.(*value.ObjStringData)
	a := vm.peek(1).Obj.(*value.ObjStringData)
	result := vm.InternString(a.Chars + b.Chars)
	vm.pop()
	vm.pop()
	vm.push(value.FromObject(result))
}

func (vm *VM) traceInstruction(f *CallFrame) {
	fmt.Fprint(vm.stdout, color.New(color.FgHiBlack).Sprint("          "))
	for i := 0; i < vm.stackTop; i++ {
		fmt.Fprintf(vm.stdout, "[ %s ]", vm.stack[i].String())
	}
	fmt.Fprintln(vm.stdout)
	debug.DisassembleInstruction(vm.stdout, f.Closure.Function.Chunk, f.IP)
}
