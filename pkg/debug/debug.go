// Package debug renders a compiled chunk as human-readable text.
//
// This is strictly a debugging aid: it never persists bytecode to disk
// (ember has no `.compiled` file format) and is only ever invoked behind
// the `--trace` flag or the `disasm` CLI verb.
package debug

import (
	"fmt"
	"io"

	"github.com/kristofer/ember/pkg/value"
)

// DisassembleChunk writes every instruction in chunk to w, one per
// line, prefixed with name as a section header.
func DisassembleChunk(w io.Writer, chunk *value.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = DisassembleInstruction(w, chunk, offset)
	}
}

// DisassembleInstruction writes the instruction at offset and returns
// the offset of the next one.
func DisassembleInstruction(w io.Writer, chunk *value.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)

	line := chunk.GetLine(offset)
	if offset > 0 && line == chunk.GetLine(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", line)
	}

	op := value.OpCode(chunk.Code[offset])
	switch op {
	case value.OpConstant:
		return constantInstruction(w, op, chunk, offset)
	case value.OpConstantLong:
		return constantLongInstruction(w, op, chunk, offset)
	case value.OpGetLocal, value.OpSetLocal, value.OpCall:
		return byteInstruction(w, op, chunk, offset)
	case value.OpGetGlobal, value.OpDefineGlobal, value.OpSetGlobal,
		value.OpGetProperty, value.OpSetProperty, value.OpGetSuper,
		value.OpClass, value.OpMethod:
		return constantInstruction(w, op, chunk, offset)
	case value.OpGetUpvalue, value.OpSetUpvalue:
		return byteInstruction(w, op, chunk, offset)
	case value.OpInvoke, value.OpSuperInvoke:
		return invokeInstruction(w, op, chunk, offset)
	case value.OpJump, value.OpJumpIfFalse:
		return jumpInstruction(w, op, chunk, offset, 1)
	case value.OpLoop:
		return jumpInstruction(w, op, chunk, offset, -1)
	case value.OpClosure:
		return closureInstruction(w, chunk, offset)
	default:
		fmt.Fprintln(w, op)
		return offset + 1
	}
}

func byteInstruction(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", op, slot)
	return offset + 2
}

func constantInstruction(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, chunk.Constants[idx].String())
	return offset + 2
}

func constantLongInstruction(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	idx := int(chunk.Code[offset+1])<<16 | int(chunk.Code[offset+2])<<8 | int(chunk.Code[offset+3])
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, chunk.Constants[idx].String())
	return offset + 4
}

func invokeInstruction(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	argc := chunk.Code[offset+2]
	fmt.Fprintf(w, "%-16s (%d args) %4d '%s'\n", op, argc, idx, chunk.Constants[idx].String())
	return offset + 3
}

func jumpInstruction(w io.Writer, op value.OpCode, chunk *value.Chunk, offset, sign int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func closureInstruction(w io.Writer, chunk *value.Chunk, offset int) int {
	offset++
	idx := chunk.Code[offset]
	offset++
	fmt.Fprintf(w, "%-16s %4d '%s'\n", value.OpClosure, idx, chunk.Constants[idx].String())

	fn, ok := chunk.Constants[idx].Obj.(*value.ObjFunctionData)
	if !ok {
		return offset
	}
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		offset++
		index := chunk.Code[offset]
		offset++
		kind := "upvalue"
		if isLocal == 1 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}
