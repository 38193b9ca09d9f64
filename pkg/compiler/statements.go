package compiler

import (
	"github.com/kristofer/ember/pkg/lexer"
	"github.com/kristofer/ember/pkg/value"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.TokenClass):
		c.classDeclaration()
	case c.match(lexer.TokenFun):
		c.funDeclaration()
	case c.match(lexer.TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicking {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokenPrint):
		c.printStatement()
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenReturn):
		c.returnStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenFor):
		c.forStatement()
	case c.match(lexer.TokenSwitch):
		c.switchStatement()
	case c.match(lexer.TokenContinue):
		c.continueStatement()
	case c.match(lexer.TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after value.")
	c.emitOp(value.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(value.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.statement()

	elseJump := c.emitJump(value.OpJump)
	c.patchJump(thenJump)
	c.emitOp(value.OpPop)

	if c.match(lexer.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

// whileStatement and forStatement save/restore loopStart and
// loopScopeDepth around themselves so `continue` always targets the
// innermost loop, per spec.md §4.2.
func (c *Compiler) whileStatement() {
	savedStart, savedDepth, savedHas := c.fn.loopStart, c.fn.loopScopeDepth, c.fn.hasLoop
	c.fn.loopStart = len(c.chunk().Code)
	c.fn.loopScopeDepth = c.fn.scopeDepth
	c.fn.hasLoop = true

	c.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.statement()
	c.emitLoop(c.fn.loopStart)

	c.patchJump(exitJump)
	c.emitOp(value.OpPop)

	c.fn.loopStart, c.fn.loopScopeDepth, c.fn.hasLoop = savedStart, savedDepth, savedHas
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(lexer.TokenSemicolon):
		// no initializer
	case c.match(lexer.TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	savedStart, savedDepth, savedHas := c.fn.loopStart, c.fn.loopScopeDepth, c.fn.hasLoop
	loopStart := len(c.chunk().Code)
	exitJump := -1

	if !c.match(lexer.TokenSemicolon) {
		c.expression()
		c.consume(lexer.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(value.OpJumpIfFalse)
		c.emitOp(value.OpPop)
	}

	if !c.match(lexer.TokenRightParen) {
		bodyJump := c.emitJump(value.OpJump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(value.OpPop)
		c.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.fn.loopStart = loopStart
	c.fn.loopScopeDepth = c.fn.scopeDepth
	c.fn.hasLoop = true

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(value.OpPop)
	}

	c.fn.loopStart, c.fn.loopScopeDepth, c.fn.hasLoop = savedStart, savedDepth, savedHas
	c.endScope()
}

// continueStatement pops any locals declared since the loop started
// (they're about to go out of reach) then jumps back to the loop's
// start: the increment clause of a `for` that has one, otherwise the
// condition check.
func (c *Compiler) continueStatement() {
	if !c.fn.hasLoop {
		c.error("Can't use 'continue' outside of a loop.")
	}
	c.consume(lexer.TokenSemicolon, "Expect ';' after 'continue'.")
	for i := len(c.fn.locals) - 1; i >= 0 && c.fn.locals[i].depth > c.fn.loopScopeDepth; i-- {
		if c.fn.locals[i].isCaptured {
			c.emitOp(value.OpCloseUpvalue)
		} else {
			c.emitOp(value.OpPop)
		}
	}
	c.emitLoop(c.fn.loopStart)
}

func (c *Compiler) returnStatement() {
	if c.fn.kind == kindScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(lexer.TokenSemicolon) {
		c.emitReturn()
		return
	}
	if c.fn.kind == kindInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after return value.")
	c.emitOp(value.OpReturn)
}

// switchStatement implements spec.md §4.2's case-state machine: state 0
// before any case, 1 after a case header, 2 after default. Each case
// tests equality against a DUP'd subject; falling through a
// non-terminated case chains via a jump to the statement's end.
func (c *Compiler) switchStatement() {
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'switch'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after switch subject.")
	c.consume(lexer.TokenLeftBrace, "Expect '{' before switch body.")

	state := 0 // 0 = before any case, 1 = after a case, 2 = after default
	var endJumps []int
	previousCaseSkip := -1

	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		if c.match(lexer.TokenCase) || c.match(lexer.TokenDefault) {
			isDefault := c.previous.Type == lexer.TokenDefault
			if state == 2 {
				c.error("Can't have another case after the default case.")
			}
			if previousCaseSkip != -1 {
				endJumps = append(endJumps, c.emitJump(value.OpJump))
				c.patchJump(previousCaseSkip)
				c.emitOp(value.OpPop)
			}
			if isDefault {
				state = 2
				c.consume(lexer.TokenColon, "Expect ':' after 'default'.")
				previousCaseSkip = -1
			} else {
				state = 1
				c.emitOp(value.OpDup)
				c.expression()
				c.emitOp(value.OpEqual)
				c.consume(lexer.TokenColon, "Expect ':' after case value.")
				previousCaseSkip = c.emitJump(value.OpJumpIfFalse)
				c.emitOp(value.OpPop)
			}
		} else {
			if state == 0 {
				c.error("Can't have statements before the first case.")
			}
			c.statement()
		}
	}

	if previousCaseSkip != -1 {
		endJumps = append(endJumps, c.emitJump(value.OpJump))
		c.patchJump(previousCaseSkip)
		c.emitOp(value.OpPop)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after switch body.")
	c.emitOp(value.OpPop) // discard the subject
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(lexer.TokenEqual) {
		c.expression()
	} else {
		c.emitOp(value.OpNil)
	}
	c.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) parseVariable(message string) byte {
	c.consume(lexer.TokenIdentifier, message)
	c.declareVariable(c.previous.Lexeme)
	if c.fn.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous.Lexeme)
}

func (c *Compiler) defineVariable(global byte) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOps(value.OpDefineGlobal, global)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	name := c.previous.Lexeme
	c.markInitialized()
	c.function(kindFunction, name)
	c.defineVariable(global)
}

// function compiles a function body (or method, or initializer) into
// its own funcState, then emits CLOSURE in the enclosing chunk with the
// (isLocal, index) pair for each captured up-value, per spec.md §4.2.
func (c *Compiler) function(kind funcKind, name string) {
	enclosing := c.fn
	fn := c.heap.NewFunction()
	fn.Name = c.heap.InternString(name)
	c.heap.PushCompilerRoot(fn)
	defer c.heap.PopCompilerRoot()
	c.fn = newFuncState(enclosing, fn, kind)
	c.beginScope()

	slot0 := ""
	if kind == kindMethod || kind == kindInitializer {
		slot0 = "this"
	}
	c.fn.locals = append(c.fn.locals, local{name: slot0, depth: 0})

	c.consume(lexer.TokenLeftParen, "Expect '(' after function name.")
	if !c.check(lexer.TokenRightParen) {
		for {
			c.fn.fn.Arity++
			if c.fn.fn.Arity > 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConst)
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "Expect ')' after parameters.")
	c.consume(lexer.TokenLeftBrace, "Expect '{' before function body.")
	c.block()

	upvalues := c.fn.upvalues
	compiled := c.endFunction()

	c.emitOps(value.OpClosure, c.makeConstant(value.FromObject(compiled)))
	for _, up := range upvalues {
		if up.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(up.index)
	}
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.TokenIdentifier, "Expect class name.")
	className := c.previous.Lexeme
	nameConst := c.identifierConstant(className)
	c.declareVariable(className)

	c.emitOps(value.OpClass, nameConst)
	c.defineVariable(nameConst)

	c.class = &classState{enclosing: c.class}

	if c.match(lexer.TokenLess) {
		c.consume(lexer.TokenIdentifier, "Expect superclass name.")
		if c.previous.Lexeme == className {
			c.error("A class can't inherit from itself.")
		}
		c.namedVariable(c.previous, false)

		c.beginScope()
		c.addLocal("super")
		c.markInitialized()

		c.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: className}, false)
		c.emitOp(value.OpInherit)
		c.class.hasSuperclass = true
	}

	c.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: className}, false)
	c.consume(lexer.TokenLeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.method()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after class body.")
	c.emitOp(value.OpPop)

	if c.class.hasSuperclass {
		c.endScope()
	}
	c.class = c.class.enclosing
}

func (c *Compiler) method() {
	c.consume(lexer.TokenIdentifier, "Expect method name.")
	name := c.previous.Lexeme
	nameConst := c.identifierConstant(name)

	kind := kindMethod
	if name == "init" {
		kind = kindInitializer
	}
	c.function(kind, name)
	c.emitOps(value.OpMethod, nameConst)
}
