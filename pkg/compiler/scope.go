package compiler

import "github.com/kristofer/ember/pkg/value"

const maxLocals = 256
const maxUpvalues = 256

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

// endScope pops locals going out of scope. A captured local is closed
// (its value moves off the stack into its own up-value slot) rather
// than simply popped, per spec.md §4.2.
func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	for len(c.fn.locals) > 0 && c.fn.locals[len(c.fn.locals)-1].depth > c.fn.scopeDepth {
		if c.fn.locals[len(c.fn.locals)-1].isCaptured {
			c.emitOp(value.OpCloseUpvalue)
		} else {
			c.emitOp(value.OpPop)
		}
		c.fn.locals = c.fn.locals[:len(c.fn.locals)-1]
	}
}

func (c *Compiler) addLocal(name string) {
	if len(c.fn.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.fn.locals = append(c.fn.locals, local{name: name, depth: -1})
}

func (c *Compiler) declareVariable(name string) {
	if c.fn.scopeDepth == 0 {
		return
	}
	for i := len(c.fn.locals) - 1; i >= 0; i-- {
		l := c.fn.locals[i]
		if l.depth != -1 && l.depth < c.fn.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) markInitialized() {
	if c.fn.scopeDepth == 0 {
		return
	}
	c.fn.locals[len(c.fn.locals)-1].depth = c.fn.scopeDepth
}

// resolveLocal scans the given funcState's locals from the end, per
// spec.md §4.2's resolution order.
func resolveLocal(fn *funcState, name string) int {
	for i := len(fn.locals) - 1; i >= 0; i-- {
		if fn.locals[i].name == name {
			if fn.locals[i].depth == -1 {
				return -2 // sentinel: used before its own initializer finished
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue recursively walks the enclosing funcState chain,
// marking the captured local and threading an up-value descriptor
// through every intervening compiler, per spec.md §4.2.
func resolveUpvalue(fn *funcState, name string) int {
	if fn.enclosing == nil {
		return -1
	}
	if local := resolveLocal(fn.enclosing, name); local >= 0 {
		fn.enclosing.locals[local].isCaptured = true
		return addUpvalue(fn, byte(local), true)
	}
	if up := resolveUpvalue(fn.enclosing, name); up >= 0 {
		return addUpvalue(fn, byte(up), false)
	}
	return -1
}

func addUpvalue(fn *funcState, index byte, isLocal bool) int {
	for i, u := range fn.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(fn.upvalues) >= maxUpvalues {
		return 0
	}
	fn.upvalues = append(fn.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fn.upvalues) - 1
}
