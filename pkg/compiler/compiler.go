// Package compiler implements ember's single-pass Pratt compiler.
//
// Unlike a tree-walking interpreter, the compiler never builds an
// intermediate AST: it parses with a precedence-climbing (Pratt) table
// and emits bytecode directly as each construct is recognized, per
// spec.md §4.2. A chain of FunctionCompilers (one per nested function
// being compiled, leaf-to-root) tracks locals, scope depth, and
// up-value descriptors; a chain of ClassCompilers tracks nested class
// declarations and whether each has a superclass.
package compiler

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kristofer/ember/pkg/lexer"
	"github.com/kristofer/ember/pkg/value"
)

// Heap is the allocation surface the compiler needs from the VM: string
// interning (so identical identifiers and literals share one object,
// spec.md §3 invariant 3) and function-object allocation, both routed
// through the same accounting the VM's GC uses (spec.md §1, §4.6).
type Heap interface {
	InternString(s string) *value.ObjStringData
	NewFunction() *value.ObjFunctionData

	// PushCompilerRoot/PopCompilerRoot let the GC see every function
	// currently being compiled, even though none are reachable from a
	// value yet (spec.md §4.6's "compiler roots").
	PushCompilerRoot(fn *value.ObjFunctionData)
	PopCompilerRoot()
}

// CompileError reports a single diagnostic, in spec.md §7's
// `[line N] Error[ at 'lexeme'|at end]: message` shape.
type CompileError struct {
	Line    int
	Where   string
	Message string
}

// FirstError wraps the first diagnostic in errs (if any) with
// github.com/pkg/errors so VM/CLI callers can use errors.Cause to
// recover the structured CompileError while still getting a single
// idiomatic error value to check.
func FirstError(errs []*CompileError) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errors.WithStack(errs[0])
	}
	return errors.Wrapf(errs[0], "compile failed with %d errors", len(errs))
}

func (e *CompileError) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("[line %d] Error %s: %s", e.Line, e.Where, e.Message)
	}
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

// funcKind distinguishes the four contexts spec.md §4.2 calls out, since
// each reserves local slot 0 differently and governs what `return` may do.
type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
	kindMethod
	kindInitializer
)

type local struct {
	name       string
	depth      int // -1 while declared but not yet defined
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

// funcState is one entry in the leaf-to-root chain of in-progress
// function compilations (spec.md §4.2).
type funcState struct {
	enclosing *funcState
	fn        *value.ObjFunctionData
	kind      funcKind

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int

	loopStart      int
	loopScopeDepth int
	hasLoop        bool
}

// classState is one entry in the chain of nested class compilations.
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// Compiler holds all parser and codegen state for one compilation.
type Compiler struct {
	heap Heap
	lx   *lexer.Lexer

	current   lexer.Token
	previous  lexer.Token
	hadError  bool
	panicking bool
	errs      []*CompileError

	fn    *funcState
	class *classState
}

// Errors returns every diagnostic collected during Compile, in the order
// they were reported. Panic-mode suppresses cascades, so this is usually
// a short, high-signal list rather than one per bad token.
func (c *Compiler) Errors() []*CompileError { return c.errs }

// Compile compiles source into a top-level script function. The
// returned function is always non-nil (even on error, to mirror
// spec.md §7's "still emits bytecode, but callers discard the function
// on failure"); errs is non-empty if any compile error was reported.
func Compile(source string, heap Heap) (*value.ObjFunctionData, []*CompileError) {
	c := &Compiler{heap: heap, lx: lexer.New(source)}
	script := heap.NewFunction()
	heap.PushCompilerRoot(script)
	defer heap.PopCompilerRoot()
	c.fn = newFuncState(nil, script, kindScript)
	c.fn.locals = append(c.fn.locals, local{name: "", depth: 0})

	c.advance()
	for !c.match(lexer.TokenEOF) {
		c.declaration()
	}
	fn := c.endFunction()
	return fn, c.errs
}

func newFuncState(enclosing *funcState, fn *value.ObjFunctionData, kind funcKind) *funcState {
	return &funcState{enclosing: enclosing, fn: fn, kind: kind}
}

// --- token plumbing ---

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lx.Next()
		if c.current.Type != lexer.TokenError {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t lexer.TokenType) bool { return c.current.Type == t }

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.previous, message) }

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicking {
		return
	}
	c.panicking = true
	c.hadError = true
	where := "at '" + tok.Lexeme + "'"
	if tok.Type == lexer.TokenEOF {
		where = "at end"
	} else if tok.Type == lexer.TokenError {
		where = ""
	}
	c.errs = append(c.errs, &CompileError{Line: tok.Line, Where: where, Message: message})
}

// synchronize consumes tokens until a statement boundary, per spec.md
// §7's error-recovery discipline.
func (c *Compiler) synchronize() {
	c.panicking = false
	for c.current.Type != lexer.TokenEOF {
		if c.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch c.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn,
			lexer.TokenSwitch:
			return
		}
		c.advance()
	}
}

// --- emission helpers ---

func (c *Compiler) chunk() *value.Chunk { return c.fn.fn.Chunk }

func (c *Compiler) emitByte(b byte) { c.chunk().Write(b, c.previous.Line) }

func (c *Compiler) emitOp(op value.OpCode) { c.emitByte(byte(op)) }

func (c *Compiler) emitOps(op value.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(value.OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xFFFF {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xFF))
}

// emitJump writes the opcode and a 2-byte placeholder, returning the
// offset to patch once the jump target is known.
func (c *Compiler) emitJump(op value.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xFF)
	c.emitByte(0xFF)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xFFFF {
		c.error("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump & 0xFF)
}

// makeConstant adds v to the chunk's constants pool for a 1-byte-operand
// site (CLOSURE/CLASS/METHOD's name constants, property/global names):
// spec.md §4.1 specifies those operands as a single byte, so unlike
// emitConstant below there's no long form to fall back to.
func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > 255 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

// emitConstant pushes v, using the 3-byte CONSTANT_LONG form once the
// pool grows past 256 entries, per spec.md §4.1's CONSTANT/CONSTANT_LONG
// pair.
func (c *Compiler) emitConstant(v value.Value) {
	idx := c.chunk().AddConstant(v)
	if idx <= 255 {
		c.emitOps(value.OpConstant, byte(idx))
		return
	}
	if idx > 0xFFFFFF {
		c.error("Too many constants in one chunk.")
		return
	}
	c.emitOp(value.OpConstantLong)
	c.emitByte(byte(idx >> 16))
	c.emitByte(byte(idx >> 8))
	c.emitByte(byte(idx))
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.FromObject(c.heap.InternString(name)))
}

func (c *Compiler) emitReturn() {
	if c.fn.kind == kindInitializer {
		c.emitOps(value.OpGetLocal, 0)
	} else {
		c.emitOp(value.OpNil)
	}
	c.emitOp(value.OpReturn)
}

// endFunction finishes the current funcState, emits an implicit return,
// and pops back to the enclosing funcState (or nil at the top level).
func (c *Compiler) endFunction() *value.ObjFunctionData {
	c.emitReturn()
	fn := c.fn.fn
	fn.UpvalueCount = len(c.fn.upvalues)
	c.fn = c.fn.enclosing
	return fn
}
