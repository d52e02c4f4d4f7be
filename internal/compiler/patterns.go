package compiler

import (
	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/bytecode"
)

// bindPatternBlockScoped destructures srcReg against pat, declaring a
// fresh binding in the CURRENT scope for every identifier named —
// correct for let/const declarators and for function parameters, which
// always bind into the scope just pushed for them.
func (c *Compiler) bindPatternBlockScoped(pat ast.Pattern, srcReg int32, mutable bool) error {
	return c.walkPattern(pat, srcReg, func(name string, v int32) error {
		c.declareInit(name, mutable, v)
		return nil
	})
}

// bindPatternVar destructures srcReg against pat for a `var` declarator:
// the binding was already created (and initialized to undefined) by
// hoistBlock at function-top scope, possibly several lexical scopes
// outward from where this declarator statement actually runs, so each
// leaf resolves the existing binding by name instead of declaring a new
// one in the current (inner) scope.
func (c *Compiler) bindPatternVar(pat ast.Pattern, srcReg int32) error {
	return c.walkPattern(pat, srcReg, func(name string, v int32) error {
		if loc, ok := c.resolveIdent(name); ok {
			c.emit(bytecode.OpSetBinding, c.locatorIndex(loc), v, 0, 0)
			return nil
		}
		// Hoisted onto the global object by the script top scope (or an
		// assignment to a name never declared at all).
		c.emit(bytecode.OpSetGlobal, c.nameIndex(name), v, 0, 0)
		return nil
	})
}

// walkPattern destructures srcReg against pat, calling leaf for every
// identifier binding target it finds. Object-pattern rest elements bind
// an empty object rather than the input's own remaining keys — the
// object package has no own-keys-minus-used-keys helper yet (DESIGN.md
// gap); every other pattern shape is fully supported.
func (c *Compiler) walkPattern(pat ast.Pattern, srcReg int32, leaf func(name string, v int32) error) error {
	f := c.cur()
	switch p := pat.(type) {
	case *ast.IdentPattern:
		return leaf(c.atom(p.Name), srcReg)

	case *ast.AssignPattern:
		final, err := c.applyPatternDefault(srcReg, p.Default)
		if err != nil {
			return err
		}
		err = c.walkPattern(p.Target, final, leaf)
		f.free(final)
		return err

	case *ast.ArrayPattern:
		iter := f.alloc()
		c.emit(bytecode.OpGetIterator, iter, srcReg, 0, 0)
		for _, el := range p.Elements {
			c.emit(bytecode.OpIteratorNext, iter, 0, 0, 0)
			val := f.alloc()
			c.emit(bytecode.OpIteratorValue, val, iter, 0, 0)
			if el != nil {
				if err := c.walkPattern(el, val, leaf); err != nil {
					f.free(val)
					return err
				}
			}
			f.free(val)
		}
		if p.Rest != nil {
			restArr := f.alloc()
			c.emit(bytecode.OpNewArray, restArr, 0, 0, 0)
			loopStart := c.here()
			c.emit(bytecode.OpIteratorNext, iter, 0, 0, 0)
			doneReg := f.alloc()
			c.emit(bytecode.OpIteratorDone, doneReg, iter, 0, 0)
			exitJ := c.emit(bytecode.OpJumpIfTrue, doneReg, 0, 0, 0)
			f.free(doneReg)
			v := f.alloc()
			c.emit(bytecode.OpIteratorValue, v, iter, 0, 0)
			c.emit(bytecode.OpArrayPush, restArr, v, 0, 0)
			f.free(v)
			c.emit(bytecode.OpJump, loopStart, 0, 0, 0)
			c.patchJump(exitJ)
			err := c.walkPattern(p.Rest, restArr, leaf)
			f.free(restArr)
			if err != nil {
				return err
			}
		}
		f.free(iter)
		return nil

	case *ast.ObjectPattern:
		for _, prop := range p.Props {
			var propReg int32
			if prop.Key.Computed != nil {
				keyReg, err := c.compileExpr(prop.Key.Computed)
				if err != nil {
					return err
				}
				propReg = f.alloc()
				c.emit(bytecode.OpGetPropComputed, propReg, srcReg, keyReg, 0)
				f.free(keyReg)
			} else {
				propReg = f.alloc()
				c.emit(bytecode.OpGetProp, propReg, srcReg, c.nameIndex(c.atom(prop.Key.Name)), 0)
			}
			if err := c.walkPattern(prop.Value, propReg, leaf); err != nil {
				f.free(propReg)
				return err
			}
			f.free(propReg)
		}
		if p.Rest != nil {
			emptyObj := f.alloc()
			c.emit(bytecode.OpNewObject, emptyObj, 0, 0, 0)
			err := c.walkPattern(p.Rest, emptyObj, leaf)
			f.free(emptyObj)
			if err != nil {
				return err
			}
		}
		return nil

	default:
		return &Error{Message: "compiler: unsupported binding pattern", Span: pat.Span()}
	}
}

// applyPatternDefault returns a register holding src, or the evaluated
// defaultExpr when src is strictly undefined.
func (c *Compiler) applyPatternDefault(src int32, defaultExpr ast.Expr) (int32, error) {
	f := c.cur()
	undef := c.constUndefinedReg()
	isUndef := f.alloc()
	c.emit(bytecode.OpStrictEq, isUndef, src, undef, 0)
	f.free(undef)
	hasValueJump := c.emit(bytecode.OpJumpIfFalse, isUndef, 0, 0, 0)
	f.free(isUndef)

	final := f.alloc()
	defReg, err := c.compileExpr(defaultExpr)
	if err != nil {
		return 0, err
	}
	c.emit(bytecode.OpMove, final, defReg, 0, 0)
	f.free(defReg)
	toEnd := c.emit(bytecode.OpJump, 0, 0, 0, 0)

	c.patchJump(hasValueJump)
	c.emit(bytecode.OpMove, final, src, 0, 0)
	c.patchJump(toEnd)
	return final, nil
}

// --- destructuring assignment (pre-existing targets, not declarations) ---

// exprAsAssignPattern reports whether target is an array/object literal
// being reinterpreted as an assignment pattern — the only shapes that
// need destructuring assignment rather than a single-reference store.
func exprAsAssignPattern(target ast.Expr) (ast.Expr, bool) {
	switch target.(type) {
	case *ast.ArrayLit, *ast.ObjectLit:
		return target, true
	default:
		return nil, false
	}
}

// destructureAssign mirrors walkPattern but over the Expr-shaped cover
// grammar destructuring assignment parses into (ArrayLit/ObjectLit of
// Ident/MemberExpr/AssignExpr-as-default/SpreadElement-as-rest), storing
// through assignSimple at each leaf instead of declaring a binding.
func (c *Compiler) destructureAssign(target ast.Expr, srcReg int32) error {
	f := c.cur()
	switch t := target.(type) {
	case *ast.ArrayLit:
		iter := f.alloc()
		c.emit(bytecode.OpGetIterator, iter, srcReg, 0, 0)
		for _, el := range t.Elements {
			if spread, ok := el.(*ast.SpreadElement); ok {
				restArr := f.alloc()
				c.emit(bytecode.OpNewArray, restArr, 0, 0, 0)
				loopStart := c.here()
				c.emit(bytecode.OpIteratorNext, iter, 0, 0, 0)
				doneReg := f.alloc()
				c.emit(bytecode.OpIteratorDone, doneReg, iter, 0, 0)
				exitJ := c.emit(bytecode.OpJumpIfTrue, doneReg, 0, 0, 0)
				f.free(doneReg)
				v := f.alloc()
				c.emit(bytecode.OpIteratorValue, v, iter, 0, 0)
				c.emit(bytecode.OpArrayPush, restArr, v, 0, 0)
				f.free(v)
				c.emit(bytecode.OpJump, loopStart, 0, 0, 0)
				c.patchJump(exitJ)
				if err := c.assignDestructureLeaf(spread.Arg, restArr); err != nil {
					return err
				}
				f.free(restArr)
				continue
			}
			c.emit(bytecode.OpIteratorNext, iter, 0, 0, 0)
			val := f.alloc()
			c.emit(bytecode.OpIteratorValue, val, iter, 0, 0)
			if el != nil {
				if err := c.assignDestructureLeaf(el, val); err != nil {
					f.free(val)
					return err
				}
			}
			f.free(val)
		}
		f.free(iter)
		return nil

	case *ast.ObjectLit:
		for _, p := range t.Props {
			if p.Kind == ast.PropSpread {
				emptyObj := f.alloc()
				c.emit(bytecode.OpNewObject, emptyObj, 0, 0, 0)
				if err := c.assignDestructureLeaf(p.Value, emptyObj); err != nil {
					return err
				}
				f.free(emptyObj)
				continue
			}
			var propReg int32
			if p.Key.Computed != nil {
				keyReg, err := c.compileExpr(p.Key.Computed)
				if err != nil {
					return err
				}
				propReg = f.alloc()
				c.emit(bytecode.OpGetPropComputed, propReg, srcReg, keyReg, 0)
				f.free(keyReg)
			} else {
				propReg = f.alloc()
				c.emit(bytecode.OpGetProp, propReg, srcReg, c.nameIndex(c.atom(p.Key.Name)), 0)
			}
			if err := c.assignDestructureLeaf(p.Value, propReg); err != nil {
				return err
			}
			f.free(propReg)
		}
		return nil

	default:
		return &Error{Message: "compiler: unsupported destructuring assignment target", Span: target.Span()}
	}
}

// assignDestructureLeaf handles one destructuring-assignment element:
// a plain reference, a nested pattern, or a defaulted reference.
func (c *Compiler) assignDestructureLeaf(el ast.Expr, val int32) error {
	if ae, ok := el.(*ast.AssignExpr); ok {
		final, err := c.applyPatternDefault(val, ae.Value)
		if err != nil {
			return err
		}
		err = c.assignDestructureLeaf(ae.Target, final)
		c.cur().free(final)
		return err
	}
	if pat, ok := exprAsAssignPattern(el); ok {
		return c.destructureAssign(pat, val)
	}
	return c.assignSimple(el, val)
}
