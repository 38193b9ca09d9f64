package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kristofer/ember/pkg/value"
)

func TestDisassembleChunk_ConstantAndReturn(t *testing.T) {
	chunk := value.NewChunk()
	idx := chunk.AddConstant(value.Number(42))
	chunk.Write(byte(value.OpConstant), 1)
	chunk.Write(byte(idx), 1)
	chunk.Write(byte(value.OpReturn), 1)

	var out bytes.Buffer
	DisassembleChunk(&out, chunk, "test chunk")

	text := out.String()
	if !strings.Contains(text, "== test chunk ==") {
		t.Error("expected a section header")
	}
	if !strings.Contains(text, "OP_CONSTANT") {
		t.Error("expected OP_CONSTANT in the output")
	}
	if !strings.Contains(text, "42") {
		t.Error("expected the constant's value to be rendered")
	}
	if !strings.Contains(text, "OP_RETURN") {
		t.Error("expected OP_RETURN in the output")
	}
}

func TestDisassembleInstruction_SharesLineMarker(t *testing.T) {
	chunk := value.NewChunk()
	chunk.Write(byte(value.OpNil), 5)
	chunk.Write(byte(value.OpPop), 5)

	var out bytes.Buffer
	offset := DisassembleInstruction(&out, chunk, 0)
	if offset != 1 {
		t.Fatalf("expected OP_NIL to be a 1-byte instruction, got next offset %d", offset)
	}
	DisassembleInstruction(&out, chunk, offset)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "|") {
		t.Errorf("second instruction on the same line should show a '|' marker, got %q", lines[1])
	}
}

func TestJumpInstruction_ReportsTarget(t *testing.T) {
	chunk := value.NewChunk()
	chunk.Write(byte(value.OpJump), 1)
	chunk.Write(0, 1)
	chunk.Write(2, 1) // jump +2: target = offset(0) + 3 + 2 = 5

	var out bytes.Buffer
	DisassembleInstruction(&out, chunk, 0)
	if !strings.Contains(out.String(), "-> 5") {
		t.Errorf("expected jump target 5 in output, got %q", out.String())
	}
}

func TestByteInstruction_RendersSlot(t *testing.T) {
	chunk := value.NewChunk()
	chunk.Write(byte(value.OpGetLocal), 1)
	chunk.Write(3, 1)

	var out bytes.Buffer
	DisassembleInstruction(&out, chunk, 0)
	if !strings.Contains(out.String(), "OP_GET_LOCAL") || !strings.Contains(out.String(), "3") {
		t.Errorf("expected slot 3 rendered, got %q", out.String())
	}
}
