package vm

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, source string) (stdout, stderr string, result InterpretResult) {
	t.Helper()
	var out, errOut bytes.Buffer
	machine := New(WithOutput(&out, &errOut))
	result = machine.Interpret(source)
	return out.String(), errOut.String(), result
}

func TestInterpret_ArithmeticAndPrint(t *testing.T) {
	out, _, result := run(t, `print 1 + 2 * 3;`)
	if result != InterpretOk {
		t.Fatalf("expected InterpretOk, got %v", result)
	}
	if strings.TrimSpace(out) != "7" {
		t.Errorf("expected 7, got %q", out)
	}
}

func TestInterpret_StringConcatenation(t *testing.T) {
	out, _, result := run(t, `print "foo" + "bar";`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
	if strings.TrimSpace(out) != "foobar" {
		t.Errorf("expected foobar, got %q", out)
	}
}

func TestInterpret_GlobalsAndAssignment(t *testing.T) {
	out, _, result := run(t, `
		var x = 10;
		x = x + 5;
		print x;
	`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
	if strings.TrimSpace(out) != "15" {
		t.Errorf("expected 15, got %q", out)
	}
}

func TestInterpret_Closures(t *testing.T) {
	out, _, result := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
	want := "1\n2\n3\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestInterpret_ClassesAndMethods(t *testing.T) {
	out, _, result := run(t, `
		class Counter {
			init() {
				this.count = 0;
			}
			increment() {
				this.count = this.count + 1;
				return this.count;
			}
		}
		var c = Counter();
		c.increment();
		c.increment();
		print c.increment();
	`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
	if strings.TrimSpace(out) != "3" {
		t.Errorf("expected 3, got %q", out)
	}
}

func TestInterpret_Inheritance(t *testing.T) {
	out, _, result := run(t, `
		class Animal {
			speak() {
				return "...";
			}
		}
		class Dog < Animal {
			speak() {
				return "Woof";
			}
			parentSpeak() {
				return super.speak();
			}
		}
		var d = Dog();
		print d.speak();
		print d.parentSpeak();
	`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
	want := "Woof\n...\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestInterpret_ControlFlowAndSwitch(t *testing.T) {
	out, _, result := run(t, `
		for (var i = 0; i < 3; i = i + 1) {
			switch (i) {
				case 0: print "zero";
				case 1: print "one";
				default: print "other";
			}
		}
	`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
	want := "zero\none\nother\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestInterpret_ContinueSkipsIteration(t *testing.T) {
	out, _, result := run(t, `
		for (var i = 0; i < 3; i = i + 1) {
			if (i == 1) continue;
			print i;
		}
	`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
	want := "0\n2\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestInterpret_DivisionByZeroIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `print 1 / 0;`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected InterpretRuntimeError, got %v", result)
	}
	if !strings.Contains(errOut, "Division by zero.") {
		t.Errorf("expected division-by-zero message, got %q", errOut)
	}
}

func TestInterpret_UndefinedVariableIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `print doesNotExist;`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected InterpretRuntimeError, got %v", result)
	}
	if !strings.Contains(errOut, "Undefined variable") {
		t.Errorf("expected undefined-variable message, got %q", errOut)
	}
}

func TestInterpret_MixedAddOperandsIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `print 1 + "a";`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected InterpretRuntimeError, got %v", result)
	}
	if !strings.Contains(errOut, "Operands must be two numbers or two strings.") {
		t.Errorf("expected mixed-operand message, got %q", errOut)
	}
}

func TestInterpret_CallingNonCallableIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `var x; x();`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected InterpretRuntimeError, got %v", result)
	}
	if !strings.Contains(errOut, "Can only call functions and classes.") {
		t.Errorf("expected non-callable message, got %q", errOut)
	}
}

func TestInterpret_UnknownPropertyIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `class C {} print C().nope;`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected InterpretRuntimeError, got %v", result)
	}
	if !strings.Contains(errOut, "Undefined property 'nope'.") {
		t.Errorf("expected undefined-property message, got %q", errOut)
	}
}

func TestInterpret_CompileErrorDoesNotRun(t *testing.T) {
	out, errOut, result := run(t, `print ;`)
	if result != InterpretCompileError {
		t.Fatalf("expected InterpretCompileError, got %v", result)
	}
	if out != "" {
		t.Errorf("expected no stdout output on compile error, got %q", out)
	}
	if errOut == "" {
		t.Error("expected a diagnostic on stderr")
	}
}

func TestInterpret_TypeStrictEquality(t *testing.T) {
	out, _, result := run(t, `print 0 == false;`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
	if strings.TrimSpace(out) != "false" {
		t.Errorf("expected false (type-strict equality), got %q", out)
	}
}

func TestInterpret_LastErrorIsPopulatedAfterRuntimeFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	machine := New(WithOutput(&out, &errOut))
	result := machine.Interpret(`1 / 0;`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected InterpretRuntimeError, got %v", result)
	}
	if machine.LastError() == nil {
		t.Fatal("expected LastError to be populated")
	}
	if !strings.Contains(machine.LastError().Message, "Division by zero") {
		t.Errorf("unexpected LastError message %q", machine.LastError().Message)
	}
}

func TestInterpret_StressGCDoesNotCorruptState(t *testing.T) {
	var out bytes.Buffer
	machine := New(WithOutput(&out, &bytes.Buffer{}), WithStressGC(true))
	result := machine.Interpret(`
		class Node {
			init(value) {
				this.value = value;
			}
		}
		fun build(n) {
			if (n == 0) return nil;
			var node = Node(n);
			return node.value + (build(n - 1) == nil ? 0 : 0);
		}
		print build(20);
	`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v under stress GC", result)
	}
	if strings.TrimSpace(out.String()) != "20" {
		t.Errorf("expected 20, got %q", out.String())
	}
}

func TestInterpret_NativeClockReturnsNumber(t *testing.T) {
	_, _, result := run(t, `
		var t = clock();
		if (t < 0) print "bad";
	`)
	if result != InterpretOk {
		t.Fatalf("unexpected result %v", result)
	}
}
