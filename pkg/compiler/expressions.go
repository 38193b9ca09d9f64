package compiler

import (
	"strconv"

	"github.com/kristofer/ember/pkg/lexer"
	"github.com/kristofer/ember/pkg/value"
)

// precedence levels, low to high, per spec.md §4.2.
type precedence int

const (
	precNone        precedence = iota
	precAssignment             // =
	precConditional            // ?:
	precOr                     // or
	precAnd                    // and
	precEquality               // == !=
	precComparison             // < > <= >=
	precTerm                   // + - %
	precFactor                 // * /
	precUnary                  // ! -
	precCall                   // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.TokenType]rule

func init() {
	rules = map[lexer.TokenType]rule{
		lexer.TokenLeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		lexer.TokenDot:          {infix: (*Compiler).dot, precedence: precCall},
		lexer.TokenMinus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenPlus:         {infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenPercent:      {infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenSlash:        {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenStar:         {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenBang:         {prefix: (*Compiler).unary},
		lexer.TokenBangEqual:    {infix: (*Compiler).binary, precedence: precEquality},
		lexer.TokenEqualEqual:   {infix: (*Compiler).binary, precedence: precEquality},
		lexer.TokenGreater:      {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenGreaterEqual: {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenLess:         {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenLessEqual:    {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenIdentifier:   {prefix: (*Compiler).variable},
		lexer.TokenString:       {prefix: (*Compiler).stringLit},
		lexer.TokenNumber:       {prefix: (*Compiler).number},
		lexer.TokenAnd:          {infix: (*Compiler).and_, precedence: precAnd},
		lexer.TokenOr:           {infix: (*Compiler).or_, precedence: precOr},
		lexer.TokenFalse:        {prefix: (*Compiler).literal},
		lexer.TokenTrue:         {prefix: (*Compiler).literal},
		lexer.TokenNil:          {prefix: (*Compiler).literal},
		lexer.TokenThis:         {prefix: (*Compiler).this_},
		lexer.TokenSuper:        {prefix: (*Compiler).super_},
		lexer.TokenQuestion:     {infix: (*Compiler).conditional, precedence: precConditional},
	}
}

func getRule(t lexer.TokenType) rule { return rules[t] }

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

// parsePrecedence is the core of the Pratt parser: it runs the prefix
// rule for the current token, then keeps folding in infix rules whose
// precedence is at least prec. canAssign gates whether a following `=`
// is legal, per spec.md §4.2's "assignment context" rule.
func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(canAssign bool) {
	n, _ := strconv.ParseFloat(c.previous.Lexeme, 64)
	c.emitConstant(value.Number(n))
}

func (c *Compiler) stringLit(canAssign bool) {
	raw := c.previous.Lexeme
	unescaped := unescapeString(raw[1 : len(raw)-1])
	c.emitConstant(value.FromObject(c.heap.InternString(unescaped)))
}

func unescapeString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '"' {
			out = append(out, '"')
			i++
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case lexer.TokenFalse:
		c.emitOp(value.OpFalse)
	case lexer.TokenTrue:
		c.emitOp(value.OpTrue)
	case lexer.TokenNil:
		c.emitOp(value.OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	opType := c.previous.Type
	c.parsePrecedence(precUnary)
	switch opType {
	case lexer.TokenBang:
		c.emitOp(value.OpNot)
	case lexer.TokenMinus:
		c.emitOp(value.OpNegate)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.previous.Type
	r := getRule(opType)
	c.parsePrecedence(r.precedence + 1)

	switch opType {
	case lexer.TokenBangEqual:
		c.emitOp(value.OpEqual)
		c.emitOp(value.OpNot)
	case lexer.TokenEqualEqual:
		c.emitOp(value.OpEqual)
	case lexer.TokenGreater:
		c.emitOp(value.OpGreater)
	case lexer.TokenGreaterEqual:
		c.emitOp(value.OpLess)
		c.emitOp(value.OpNot)
	case lexer.TokenLess:
		c.emitOp(value.OpLess)
	case lexer.TokenLessEqual:
		c.emitOp(value.OpGreater)
		c.emitOp(value.OpNot)
	case lexer.TokenPlus:
		c.emitOp(value.OpAdd)
	case lexer.TokenMinus:
		c.emitOp(value.OpSubtract)
	case lexer.TokenStar:
		c.emitOp(value.OpMultiply)
	case lexer.TokenSlash:
		c.emitOp(value.OpDivide)
	case lexer.TokenPercent:
		c.emitOp(value.OpModulus)
	}
}

// conditional parses `cond ? then : else` after the condition has
// already been emitted as the infix operand, per spec.md §4.2's ternary
// rule: then-branch at Conditional precedence, else-branch at
// Assignment precedence, folded with a single CONDITIONAL op.
func (c *Compiler) conditional(canAssign bool) {
	c.parsePrecedence(precConditional)
	c.consume(lexer.TokenColon, "Expect ':' after then-branch of conditional expression.")
	c.parsePrecedence(precAssignment)
	c.emitOp(value.OpConditional)
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(value.OpJumpIfFalse)
	endJump := c.emitJump(value.OpJump)
	c.patchJump(elseJump)
	c.emitOp(value.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOps(value.OpCall, argc)
}

func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(lexer.TokenRightParen) {
		for {
			c.expression()
			if argc == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "Expect ')' after arguments.")
	return byte(argc)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.TokenIdentifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous.Lexeme)

	switch {
	case canAssign && c.match(lexer.TokenEqual):
		c.expression()
		c.emitOps(value.OpSetProperty, name)
	case c.match(lexer.TokenLeftParen):
		argc := c.argumentList()
		c.emitOps(value.OpInvoke, name)
		c.emitByte(argc)
	default:
		c.emitOps(value.OpGetProperty, name)
	}
}

func (c *Compiler) this_(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.variable(false)
}

func (c *Compiler) super_(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.class.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}
	c.consume(lexer.TokenDot, "Expect '.' after 'super'.")
	c.consume(lexer.TokenIdentifier, "Expect superclass method name.")
	name := c.identifierConstant(c.previous.Lexeme)

	c.namedVariable(lexer.Token{Type: lexer.TokenThis, Lexeme: "this"}, false)
	if c.match(lexer.TokenLeftParen) {
		argc := c.argumentList()
		c.namedVariable(lexer.Token{Type: lexer.TokenSuper, Lexeme: "super"}, false)
		c.emitOps(value.OpSuperInvoke, name)
		c.emitByte(argc)
	} else {
		c.namedVariable(lexer.Token{Type: lexer.TokenSuper, Lexeme: "super"}, false)
		c.emitOps(value.OpGetSuper, name)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

// namedVariable resolves an identifier through the three-tier order
// spec.md §4.2 describes: enclosing-compiler locals, then the up-value
// chain, then a late-bound global.
func (c *Compiler) namedVariable(tok lexer.Token, canAssign bool) {
	var getOp, setOp value.OpCode
	arg := resolveLocal(c.fn, tok.Lexeme)
	switch {
	case arg == -2:
		c.error("Can't read local variable in its own initializer.")
		arg = 0
		getOp, setOp = value.OpGetLocal, value.OpSetLocal
	case arg != -1:
		getOp, setOp = value.OpGetLocal, value.OpSetLocal
	default:
		if up := resolveUpvalue(c.fn, tok.Lexeme); up != -1 {
			arg = up
			getOp, setOp = value.OpGetUpvalue, value.OpSetUpvalue
		} else {
			arg = int(c.identifierConstant(tok.Lexeme))
			getOp, setOp = value.OpGetGlobal, value.OpSetGlobal
		}
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.expression()
		c.emitOps(setOp, byte(arg))
	} else {
		c.emitOps(getOp, byte(arg))
	}
}
