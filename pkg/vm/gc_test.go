package vm

import (
	"bytes"
	"testing"

	"github.com/kristofer/ember/pkg/value"
)

func TestInternString_DeduplicatesByContent(t *testing.T) {
	machine := New()
	a := machine.InternString("shared")
	b := machine.InternString("shared")
	if a != b {
		t.Error("interning the same content twice should return the same pointer")
	}
}

func TestCollectGarbage_SweepsUnreachableStrings(t *testing.T) {
	machine := New()
	machine.InternString("reachable-from-nothing")

	before := machine.bytesAllocated
	machine.collectGarbage()
	if machine.bytesAllocated >= before {
		t.Errorf("expected bytesAllocated to shrink after sweeping an unrooted string: before=%d after=%d", before, machine.bytesAllocated)
	}
}

func TestCollectGarbage_PreservesGlobals(t *testing.T) {
	var out, errOut bytes.Buffer
	machine := New(WithOutput(&out, &errOut))
	result := machine.Interpret(`var kept = "still here";`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}

	machine.collectGarbage()

	name := machine.InternString("kept")
	v, ok := machine.globals.Get(name)
	if !ok {
		t.Fatal("expected global 'kept' to survive a collection")
	}
	if v.Obj.(*value.ObjStringData).Chars != "still here" {
		t.Errorf("unexpected surviving value %v", v)
	}
}

func TestCollectGarbage_PreservesCompilerRoots(t *testing.T) {
	machine := New()
	fn := machine.NewFunction()
	machine.PushCompilerRoot(fn)
	defer machine.PopCompilerRoot()

	machine.collectGarbage()

	if fn.Header().Marked {
		t.Error("mark bit should be cleared again after sweep, even though the object survived")
	}
	// The object list should still contain fn; walk it to confirm.
	found := false
	for o := machine.objects; o != nil; o = o.Header().Next {
		if o == value.Obj(fn) {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected a pushed compiler root to survive collection")
	}
}

func TestSizeOf_CoversEveryVariant(t *testing.T) {
	objs := []value.Obj{
		value.NewString("s"),
		value.NewFunction(),
		&value.ObjNativeData{},
		&value.ObjUpvalueData{},
		&value.ObjClosureData{},
		value.NewClass(value.NewString("C")),
		value.NewInstance(value.NewClass(value.NewString("C"))),
		&value.ObjBoundMethodData{},
	}
	for _, o := range objs {
		if sizeOf(o) <= 0 {
			t.Errorf("%T should have a positive size estimate", o)
		}
	}
}
