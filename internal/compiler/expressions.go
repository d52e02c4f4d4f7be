package compiler

import (
	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/token"
	"github.com/oxhq/esengine/internal/value"
)

// compileExpr lowers expr, returning the register holding its value.
// Callers are responsible for freeing that register once done with it
// (most do, via the funcUnit free-list; a handful of call sites keep it
// alive across further emission, e.g. an assignment target).
func (c *Compiler) compileExpr(expr ast.Expr) (int32, error) {
	switch e := expr.(type) {
	case *ast.NumberLit:
		return c.loadConst(value.Num(e.Value)), nil
	case *ast.StringLit:
		return c.loadConst(value.Str(c.atom(e.Value))), nil
	case *ast.BoolLit:
		f := c.cur()
		r := f.alloc()
		c.emit(bytecode.OpLoadBool, r, boolToInt32(e.Value), 0, 0)
		return r, nil
	case *ast.NullLit:
		f := c.cur()
		r := f.alloc()
		c.emit(bytecode.OpLoadNull, r, 0, 0, 0)
		return r, nil
	case *ast.UndefinedLit:
		return c.constUndefinedReg(), nil
	case *ast.ThisExpr:
		f := c.cur()
		r := f.alloc()
		c.emit(bytecode.OpThis, r, 0, 0, 0)
		return r, nil
	case *ast.NewTargetExpr:
		f := c.cur()
		r := f.alloc()
		c.emit(bytecode.OpNewTarget, r, 0, 0, 0)
		return r, nil
	case *ast.Ident:
		return c.compileIdentRef(c.atom(e.Name))
	case *ast.ParenExpr:
		return c.compileExpr(e.Inner)
	case *ast.TemplateLit:
		return c.compileTemplateLit(e)
	case *ast.ArrayLit:
		return c.compileArrayLit(e)
	case *ast.ObjectLit:
		return c.compileObjectLit(e)
	case *ast.FunctionLit:
		return c.compileFunctionExpr(e)
	case *ast.ClassLit:
		return c.compileClassExpr(e)
	case *ast.UnaryExpr:
		return c.compileUnary(e)
	case *ast.UpdateExpr:
		return c.compileUpdate(e)
	case *ast.BinaryExpr:
		return c.compileBinary(e)
	case *ast.LogicalExpr:
		return c.compileLogical(e)
	case *ast.AssignExpr:
		return c.compileAssign(e)
	case *ast.ConditionalExpr:
		return c.compileConditional(e)
	case *ast.CallExpr:
		return c.compileCall(e)
	case *ast.NewExpr:
		return c.compileNew(e)
	case *ast.MemberExpr:
		return c.compileMemberGet(e)
	case *ast.SequenceExpr:
		return c.compileSequence(e)
	case *ast.YieldExpr:
		return c.compileYield(e)
	case *ast.AwaitExpr:
		return c.compileAwait(e)
	case *ast.SpreadElement:
		// A bare spread only appears as a call-argument or array-element,
		// handled by their own callers; reaching here is a caller bug.
		return c.compileExpr(e.Arg)
	default:
		return 0, &Error{Message: "compiler: unsupported expression node", Span: expr.Span()}
	}
}

func (c *Compiler) loadConst(v value.Value) int32 {
	f := c.cur()
	r := f.alloc()
	c.emit(bytecode.OpLoadConst, r, c.constIndex(v), 0, 0)
	return r
}

// compileIdentRef resolves name against the lexical scope stack first;
// an unresolved name falls back to a direct-by-name global reference —
// the documented simplification that bypasses environment.ObjectBacked
// for the global scope (see DESIGN.md).
func (c *Compiler) compileIdentRef(name string) (int32, error) {
	f := c.cur()
	if loc, ok := c.resolveIdent(name); ok {
		r := f.alloc()
		c.emit(bytecode.OpGetBinding, r, c.locatorIndex(loc), 0, 0)
		return r, nil
	}
	r := f.alloc()
	c.emit(bytecode.OpGetGlobal, r, c.nameIndex(name), 0, 0)
	return r, nil
}

func cookedOf(t token.Template) string {
	if t.Cooked == nil {
		return t.Raw
	}
	return *t.Cooked
}

func (c *Compiler) compileTemplateLit(e *ast.TemplateLit) (int32, error) {
	f := c.cur()
	acc := c.loadConst(value.Str(cookedOf(e.Quasis[0])))
	for i, expr := range e.Exprs {
		r, err := c.compileExpr(expr)
		if err != nil {
			return 0, err
		}
		next := f.alloc()
		c.emit(bytecode.OpAdd, next, acc, r, 0)
		f.free(acc)
		f.free(r)
		acc = next
		quasi := c.loadConst(value.Str(cookedOf(e.Quasis[i+1])))
		joined := f.alloc()
		c.emit(bytecode.OpAdd, joined, acc, quasi, 0)
		f.free(acc)
		f.free(quasi)
		acc = joined
	}
	return acc, nil
}

func (c *Compiler) compileArrayLit(e *ast.ArrayLit) (int32, error) {
	f := c.cur()
	arr := f.alloc()
	c.emit(bytecode.OpNewArray, arr, 0, 0, 0)
	for _, el := range e.Elements {
		if el == nil {
			und := c.constUndefinedReg()
			c.emit(bytecode.OpArrayPush, arr, und, 0, 0)
			f.free(und)
			continue
		}
		if spread, ok := el.(*ast.SpreadElement); ok {
			if err := c.emitSpreadInto(arr, spread.Arg); err != nil {
				return 0, err
			}
			continue
		}
		r, err := c.compileExpr(el)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.OpArrayPush, arr, r, 0, 0)
		f.free(r)
	}
	return arr, nil
}

// emitSpreadInto inlines the iterate-and-push loop for a `...expr`
// array element or spread call argument, rather than a dedicated
// native opcode — reuses the same iterator-protocol opcodes for-of
// lowering already needs.
func (c *Compiler) emitSpreadInto(arr int32, iterable ast.Expr) error {
	f := c.cur()
	srcReg, err := c.compileExpr(iterable)
	if err != nil {
		return err
	}
	iter := f.alloc()
	c.emit(bytecode.OpGetIterator, iter, srcReg, 0, 0)
	f.free(srcReg)

	loopStart := c.here()
	c.emit(bytecode.OpIteratorNext, iter, 0, 0, 0)
	doneReg := f.alloc()
	c.emit(bytecode.OpIteratorDone, doneReg, iter, 0, 0)
	exitJump := c.emit(bytecode.OpJumpIfTrue, doneReg, 0, 0, 0)
	f.free(doneReg)

	val := f.alloc()
	c.emit(bytecode.OpIteratorValue, val, iter, 0, 0)
	c.emit(bytecode.OpArrayPush, arr, val, 0, 0)
	f.free(val)
	c.emit(bytecode.OpJump, loopStart, 0, 0, 0)

	c.patchJump(exitJump)
	f.free(iter)
	return nil
}

func (c *Compiler) compileObjectLit(e *ast.ObjectLit) (int32, error) {
	f := c.cur()
	obj := f.alloc()
	c.emit(bytecode.OpNewObject, obj, 0, 0, 0)
	for _, p := range e.Props {
		if p.Kind == ast.PropSpread {
			// Object spread needs an own-keys-copy helper the object
			// package doesn't expose yet; documented gap (DESIGN.md).
			continue
		}
		valReg, err := c.compileExpr(p.Value)
		if err != nil {
			return 0, err
		}
		switch p.Kind {
		case ast.PropGet:
			if p.Key.Computed == nil {
				c.emit(bytecode.OpDefineGetter, obj, c.nameIndex(c.atom(p.Key.Name)), valReg, 0)
			}
		case ast.PropSet:
			if p.Key.Computed == nil {
				c.emit(bytecode.OpDefineSetter, obj, c.nameIndex(c.atom(p.Key.Name)), valReg, 0)
			}
		default:
			if p.Key.Computed != nil {
				keyReg, err := c.compileExpr(p.Key.Computed)
				if err != nil {
					return 0, err
				}
				c.emit(bytecode.OpSetPropComputed, obj, keyReg, valReg, 0)
				f.free(keyReg)
			} else {
				c.emit(bytecode.OpSetProp, obj, c.nameIndex(c.atom(p.Key.Name)), valReg, 0)
			}
		}
		f.free(valReg)
	}
	return obj, nil
}

func (c *Compiler) compileFunctionExpr(fn *ast.FunctionLit) (int32, error) {
	cb, err := c.compileFunction(fn)
	if err != nil {
		return 0, err
	}
	f := c.cur()
	r := f.alloc()
	c.emit(bytecode.OpNewFunction, r, c.innerIndex(cb), 0, 0)
	return r, nil
}

func (c *Compiler) compileClassExpr(cl *ast.ClassLit) (int32, error) {
	return c.compileClass(cl)
}

var unaryOps = map[ast.UnaryOp]bytecode.Opcode{
	ast.UnaryMinus:  bytecode.OpNeg,
	ast.UnaryPlus:   bytecode.OpPlus,
	ast.UnaryNot:    bytecode.OpLogicalNot,
	ast.UnaryBitNot: bytecode.OpBitNot,
	ast.UnaryTypeof: bytecode.OpTypeof,
}

func (c *Compiler) compileUnary(e *ast.UnaryExpr) (int32, error) {
	if e.Op == ast.UnaryVoid {
		r, err := c.compileExpr(e.Arg)
		if err != nil {
			return 0, err
		}
		c.cur().free(r)
		return c.constUndefinedReg(), nil
	}
	if e.Op == ast.UnaryDelete {
		return c.compileDelete(e.Arg)
	}
	if e.Op == ast.UnaryTypeof {
		// typeof on an unresolved name must not throw ReferenceError the
		// way a plain OpGetGlobal read would.
		if id, ok := e.Arg.(*ast.Ident); ok {
			name := c.atom(id.Name)
			if _, resolved := c.resolveIdent(name); !resolved {
				dst := c.cur().alloc()
				c.emit(bytecode.OpTypeofGlobal, dst, c.nameIndex(name), 0, 0)
				return dst, nil
			}
		}
	}
	src, err := c.compileExpr(e.Arg)
	if err != nil {
		return 0, err
	}
	f := c.cur()
	dst := f.alloc()
	c.emit(unaryOps[e.Op], dst, src, 0, 0)
	f.free(src)
	return dst, nil
}

func (c *Compiler) compileDelete(target ast.Expr) (int32, error) {
	f := c.cur()
	switch m := target.(type) {
	case *ast.MemberExpr:
		objReg, err := c.compileExpr(m.Obj)
		if err != nil {
			return 0, err
		}
		dst := f.alloc()
		if m.Computed {
			keyReg, err := c.compileExpr(m.Prop)
			if err != nil {
				return 0, err
			}
			c.emit(bytecode.OpDeletePropComputed, dst, objReg, keyReg, 0)
			f.free(keyReg)
		} else {
			name := c.atom(m.Prop.(*ast.Ident).Name)
			c.emit(bytecode.OpDeleteProp, dst, objReg, c.nameIndex(name), 0)
		}
		f.free(objReg)
		return dst, nil
	default:
		// delete of a non-reference (or an unqualified name) is always
		// `true` and never deletes a declarative binding.
		dst := f.alloc()
		c.emit(bytecode.OpLoadBool, dst, 1, 0, 0)
		return dst, nil
	}
}

func (c *Compiler) compileUpdate(e *ast.UpdateExpr) (int32, error) {
	f := c.cur()
	srcReg, setTarget, err := c.compileRefForUpdate(e.Arg)
	if err != nil {
		return 0, err
	}
	newReg := f.alloc()
	oldReg := f.alloc()
	op := bytecode.OpInc
	if e.Op == "--" {
		op = bytecode.OpDec
	}
	c.emit(op, newReg, oldReg, srcReg, 0)
	f.free(srcReg)
	if err := setTarget(newReg); err != nil {
		return 0, err
	}
	if e.Prefix {
		f.free(oldReg)
		return newReg, nil
	}
	f.free(newReg)
	return oldReg, nil
}

// compileRefForUpdate loads the current value of a simple reference
// (identifier or member expression) and returns a setter closure to
// write back a new value to the same reference.
func (c *Compiler) compileRefForUpdate(target ast.Expr) (int32, func(int32) error, error) {
	switch t := target.(type) {
	case *ast.Ident:
		cur, err := c.compileExpr(t)
		if err != nil {
			return 0, nil, err
		}
		name := c.atom(t.Name)
		setter := func(src int32) error {
			if loc, ok := c.resolveIdent(name); ok {
				c.emit(bytecode.OpSetBinding, c.locatorIndex(loc), src, 0, 0)
				return nil
			}
			c.emit(bytecode.OpSetGlobal, c.nameIndex(name), src, 0, 0)
			return nil
		}
		return cur, setter, nil
	case *ast.MemberExpr:
		objReg, err := c.compileExpr(t.Obj)
		if err != nil {
			return 0, nil, err
		}
		if t.Computed {
			keyReg, err := c.compileExpr(t.Prop)
			if err != nil {
				return 0, nil, err
			}
			f := c.cur()
			cur := f.alloc()
			c.emit(bytecode.OpGetPropComputed, cur, objReg, keyReg, 0)
			setter := func(src int32) error {
				c.emit(bytecode.OpSetPropComputed, objReg, keyReg, src, 0)
				f.free(objReg)
				f.free(keyReg)
				return nil
			}
			return cur, setter, nil
		}
		name := c.atom(t.Prop.(*ast.Ident).Name)
		f := c.cur()
		cur := f.alloc()
		c.emit(bytecode.OpGetProp, cur, objReg, c.nameIndex(name), 0)
		setter := func(src int32) error {
			c.emit(bytecode.OpSetProp, objReg, c.nameIndex(name), src, 0)
			f.free(objReg)
			return nil
		}
		return cur, setter, nil
	default:
		return 0, nil, &Error{Message: "compiler: invalid update target", Span: target.Span()}
	}
}

var binaryOps = map[ast.BinaryOp]bytecode.Opcode{
	ast.BinAdd: bytecode.OpAdd, ast.BinSub: bytecode.OpSub, ast.BinMul: bytecode.OpMul,
	ast.BinDiv: bytecode.OpDiv, ast.BinMod: bytecode.OpMod, ast.BinPow: bytecode.OpPow,
	ast.BinLt: bytecode.OpLt, ast.BinGt: bytecode.OpGt, ast.BinLtEq: bytecode.OpLe, ast.BinGtEq: bytecode.OpGe,
	ast.BinEqEq: bytecode.OpEq, ast.BinNotEq: bytecode.OpNeq,
	ast.BinEqEqEq: bytecode.OpStrictEq, ast.BinNotEqEq: bytecode.OpStrictNeq,
	ast.BinShl: bytecode.OpShl, ast.BinShr: bytecode.OpShr, ast.BinUShr: bytecode.OpUShr,
	ast.BinBitAnd: bytecode.OpBitAnd, ast.BinBitOr: bytecode.OpBitOr, ast.BinBitXor: bytecode.OpBitXor,
	ast.BinIn: bytecode.OpIn, ast.BinInstanceof: bytecode.OpInstanceOf,
}

func (c *Compiler) compileBinary(e *ast.BinaryExpr) (int32, error) {
	l, err := c.compileExpr(e.Left)
	if err != nil {
		return 0, err
	}
	r, err := c.compileExpr(e.Right)
	if err != nil {
		return 0, err
	}
	f := c.cur()
	dst := f.alloc()
	c.emit(binaryOps[e.Op], dst, l, r, 0)
	f.free(l)
	f.free(r)
	return dst, nil
}

// compileLogical lowers &&, ||, ?? with the short-circuit jump the
// grammar requires: the right operand is only ever evaluated, and only
// ever written into the shared destination register, when needed.
func (c *Compiler) compileLogical(e *ast.LogicalExpr) (int32, error) {
	f := c.cur()
	l, err := c.compileExpr(e.Left)
	if err != nil {
		return 0, err
	}
	dst := f.alloc()
	c.emit(bytecode.OpMove, dst, l, 0, 0)
	f.free(l)

	var skip int
	switch e.Op {
	case ast.LogAnd:
		skip = c.emit(bytecode.OpJumpIfFalse, dst, 0, 0, 0)
	case ast.LogOr:
		skip = c.emit(bytecode.OpJumpIfTrue, dst, 0, 0, 0)
	default: // LogNullish
		skip = c.emit(bytecode.OpJumpIfNullish, dst, 0, 0, 0)
		// JumpIfNullish jumps to the right-hand evaluation (nullish means
		// "keep going"); everything else here assumes "jump past it".
		// Patch semantics are uniform below by instead inverting: we want
		// to skip evaluating Right when the value IS NOT nullish, so we
		// need the complementary test. Replace the emitted instruction
		// with the two-step form: jump to Right only if nullish, else
		// jump to the end.
		toRight := skip
		toEnd := c.emit(bytecode.OpJump, 0, 0, 0, 0)
		c.patchJump(toRight)
		r, err := c.compileExpr(e.Right)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.OpMove, dst, r, 0, 0)
		f.free(r)
		c.patchJump(toEnd)
		return dst, nil
	}
	r, err := c.compileExpr(e.Right)
	if err != nil {
		return 0, err
	}
	c.emit(bytecode.OpMove, dst, r, 0, 0)
	f.free(r)
	c.patchJump(skip)
	return dst, nil
}

func (c *Compiler) compileConditional(e *ast.ConditionalExpr) (int32, error) {
	test, err := c.compileExpr(e.Test)
	if err != nil {
		return 0, err
	}
	elseJump := c.emit(bytecode.OpJumpIfFalse, test, 0, 0, 0)
	c.cur().free(test)

	f := c.cur()
	dst := f.alloc()
	cons, err := c.compileExpr(e.Cons)
	if err != nil {
		return 0, err
	}
	c.emit(bytecode.OpMove, dst, cons, 0, 0)
	f.free(cons)
	endJump := c.emit(bytecode.OpJump, 0, 0, 0, 0)

	c.patchJump(elseJump)
	alt, err := c.compileExpr(e.Alt)
	if err != nil {
		return 0, err
	}
	c.emit(bytecode.OpMove, dst, alt, 0, 0)
	f.free(alt)
	c.patchJump(endJump)
	return dst, nil
}

// compileAssign handles `=` and the compound-assignment operators.
// Destructuring assignment (`[a,b] = x`) is supported when the target
// is an ArrayLit/ObjectLit reinterpreted as a pattern; nested array and
// object targets are lowered recursively the same way.
func (c *Compiler) compileAssign(e *ast.AssignExpr) (int32, error) {
	if e.Op == token.Eq {
		if pat, ok := exprAsAssignPattern(e.Target); ok {
			val, err := c.compileExpr(e.Value)
			if err != nil {
				return 0, err
			}
			if err := c.destructureAssign(pat, val); err != nil {
				return 0, err
			}
			return val, nil
		}
		val, err := c.compileExpr(e.Value)
		if err != nil {
			return 0, err
		}
		if err := c.assignSimple(e.Target, val); err != nil {
			return 0, err
		}
		return val, nil
	}

	// Compound: load current value, compute with the binary op implied
	// by the compound token, store back.
	cur, setter, err := c.compileRefForUpdate(e.Target)
	if err != nil {
		return 0, err
	}
	rhs, err := c.compileExpr(e.Value)
	if err != nil {
		return 0, err
	}
	f := c.cur()
	dst := f.alloc()
	c.emit(compoundOps[e.Op], dst, cur, rhs, 0)
	f.free(cur)
	f.free(rhs)
	if err := setter(dst); err != nil {
		return 0, err
	}
	return dst, nil
}

var compoundOps = map[token.Kind]bytecode.Opcode{
	token.PlusEq: bytecode.OpAdd, token.MinusEq: bytecode.OpSub, token.StarEq: bytecode.OpMul,
	token.PercentEq: bytecode.OpMod, token.StarStarEq: bytecode.OpPow,
	token.LtLtEq: bytecode.OpShl, token.GtGtEq: bytecode.OpShr, token.GtGtGtEq: bytecode.OpUShr,
	token.AmpEq: bytecode.OpBitAnd, token.PipeEq: bytecode.OpBitOr, token.CaretEq: bytecode.OpBitXor,
}

func (c *Compiler) assignSimple(target ast.Expr, val int32) error {
	switch t := target.(type) {
	case *ast.Ident:
		name := c.atom(t.Name)
		if loc, ok := c.resolveIdent(name); ok {
			c.emit(bytecode.OpSetBinding, c.locatorIndex(loc), val, 0, 0)
			return nil
		}
		c.emit(bytecode.OpSetGlobal, c.nameIndex(name), val, 0, 0)
		return nil
	case *ast.MemberExpr:
		objReg, err := c.compileExpr(t.Obj)
		if err != nil {
			return err
		}
		if t.Computed {
			keyReg, err := c.compileExpr(t.Prop)
			if err != nil {
				return err
			}
			c.emit(bytecode.OpSetPropComputed, objReg, keyReg, val, 0)
			c.cur().free(keyReg)
		} else {
			c.emit(bytecode.OpSetProp, objReg, c.nameIndex(c.atom(t.Prop.(*ast.Ident).Name)), val, 0)
		}
		c.cur().free(objReg)
		return nil
	default:
		return &Error{Message: "compiler: invalid assignment target", Span: target.Span()}
	}
}

func (c *Compiler) compileCall(e *ast.CallExpr) (int32, error) {
	if _, ok := e.Callee.(*ast.SuperExpr); ok {
		return c.compileSuperCall(e)
	}

	hasSpread := false
	for _, a := range e.Args {
		if _, ok := a.(*ast.SpreadElement); ok {
			hasSpread = true
			break
		}
	}

	calleeReg, thisReg, err := c.compileCallee(e.Callee)
	if err != nil {
		return 0, err
	}
	f := c.cur()

	if hasSpread {
		argsArr := f.alloc()
		c.emit(bytecode.OpNewArray, argsArr, 0, 0, 0)
		for _, a := range e.Args {
			if spread, ok := a.(*ast.SpreadElement); ok {
				if err := c.emitSpreadInto(argsArr, spread.Arg); err != nil {
					return 0, err
				}
				continue
			}
			r, err := c.compileExpr(a)
			if err != nil {
				return 0, err
			}
			c.emit(bytecode.OpArrayPush, argsArr, r, 0, 0)
			f.free(r)
		}
		dst := f.alloc()
		c.emit(bytecode.OpCallSpread, dst, calleeReg, thisReg, argsArr)
		f.free(calleeReg)
		f.free(thisReg)
		f.free(argsArr)
		return dst, nil
	}

	argRegs := make([]int32, len(e.Args))
	for i, a := range e.Args {
		r, err := c.compileExpr(a)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	run := c.emitContiguousCallArgs(thisReg, argRegs)
	dst := f.alloc()
	argsStart := int32(-1)
	if len(argRegs) > 0 {
		argsStart = run[1]
	}
	c.emit(bytecode.OpCall, dst, calleeReg, argsStart, int32(len(argRegs)))
	f.free(calleeReg)
	f.free(thisReg)
	for _, r := range argRegs {
		f.free(r)
	}
	for _, r := range run {
		f.free(r)
	}
	return dst, nil
}

// emitContiguousCallArgs copies thisVal and each argument value into a
// freshly bump-allocated contiguous register run (index 0 the receiver,
// 1..n the arguments), satisfying OpCall's "receiver immediately
// precedes a contiguous argument block" convention regardless of where
// those values originally landed.
func (c *Compiler) emitContiguousCallArgs(thisVal int32, argVals []int32) []int32 {
	f := c.cur()
	run := f.allocRun(1 + len(argVals))
	c.emit(bytecode.OpMove, run[0], thisVal, 0, 0)
	for i, v := range argVals {
		c.emit(bytecode.OpMove, run[1+i], v, 0, 0)
	}
	return run
}

// compileSuperCall lowers a bare `super(...)` constructor call. The
// receiver (`this`) already exists by the time this runs — the VM
// builds it before entering a derived constructor's body rather than
// deferring `this` until super() returns, an approximation of the real
// TDZ-on-`this` semantics documented in DESIGN.md — so the super
// constructor is simply invoked as a method against the current `this`.
func (c *Compiler) compileSuperCall(e *ast.CallExpr) (int32, error) {
	if len(c.classSuperStack) == 0 || !c.classSuperStack[len(c.classSuperStack)-1].has {
		return 0, &Error{Message: "compiler: 'super' keyword is only valid inside a derived class constructor", Span: e.Span()}
	}
	ctx := c.classSuperStack[len(c.classSuperStack)-1]
	loc, ok := c.resolveIdent(ctx.ctorName)
	if !ok {
		return 0, &Error{Message: "compiler: internal error resolving super constructor binding", Span: e.Span()}
	}
	f := c.cur()
	calleeReg := f.alloc()
	c.emit(bytecode.OpGetBinding, calleeReg, c.locatorIndex(loc), 0, 0)
	thisReg := f.alloc()
	c.emit(bytecode.OpThis, thisReg, 0, 0, 0)

	argRegs := make([]int32, len(e.Args))
	for i, a := range e.Args {
		if spread, ok := a.(*ast.SpreadElement); ok {
			argsArr := f.alloc()
			c.emit(bytecode.OpNewArray, argsArr, 0, 0, 0)
			if err := c.emitSpreadInto(argsArr, spread.Arg); err != nil {
				return 0, err
			}
			dst := f.alloc()
			c.emit(bytecode.OpCallSpread, dst, calleeReg, thisReg, argsArr)
			f.free(argsArr)
			f.free(calleeReg)
			f.free(thisReg)
			return dst, nil
		}
		r, err := c.compileExpr(a)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	run := c.emitContiguousCallArgs(thisReg, argRegs)
	dst := f.alloc()
	argsStart := int32(-1)
	if len(argRegs) > 0 {
		argsStart = run[1]
	}
	c.emit(bytecode.OpCall, dst, calleeReg, argsStart, int32(len(argRegs)))
	f.free(calleeReg)
	f.free(thisReg)
	for _, r := range argRegs {
		f.free(r)
	}
	for _, r := range run {
		f.free(r)
	}
	return dst, nil
}

// compileCallee evaluates the callee and, for a member-expression
// callee, the receiver it must be invoked with (Call's implicit
// thisReg convention: the register immediately before the argument
// block).
func (c *Compiler) compileCallee(callee ast.Expr) (calleeReg, thisReg int32, err error) {
	f := c.cur()
	if m, ok := callee.(*ast.MemberExpr); ok {
		if _, ok := m.Obj.(*ast.SuperExpr); ok {
			objReg, err := c.superProtoReg()
			if err != nil {
				return 0, 0, err
			}
			fn := f.alloc()
			if m.Computed {
				keyReg, err := c.compileExpr(m.Prop)
				if err != nil {
					return 0, 0, err
				}
				c.emit(bytecode.OpGetPropComputed, fn, objReg, keyReg, 0)
				f.free(keyReg)
			} else {
				c.emit(bytecode.OpGetProp, fn, objReg, c.nameIndex(c.atom(m.Prop.(*ast.Ident).Name)), 0)
			}
			f.free(objReg)
			thisReg := f.alloc()
			c.emit(bytecode.OpThis, thisReg, 0, 0, 0)
			return fn, thisReg, nil
		}
		objReg, err := c.compileExpr(m.Obj)
		if err != nil {
			return 0, 0, err
		}
		fn := f.alloc()
		if m.Computed {
			keyReg, err := c.compileExpr(m.Prop)
			if err != nil {
				return 0, 0, err
			}
			c.emit(bytecode.OpGetPropComputed, fn, objReg, keyReg, 0)
			f.free(keyReg)
		} else {
			c.emit(bytecode.OpGetProp, fn, objReg, c.nameIndex(c.atom(m.Prop.(*ast.Ident).Name)), 0)
		}
		return fn, objReg, nil
	}
	fn, err := c.compileExpr(callee)
	if err != nil {
		return 0, 0, err
	}
	return fn, c.constUndefinedReg(), nil
}

// superProtoReg loads the hidden `%superproto` binding a derived
// class's method/constructor scope resolves `super.x` against.
func (c *Compiler) superProtoReg() (int32, error) {
	if len(c.classSuperStack) == 0 || !c.classSuperStack[len(c.classSuperStack)-1].has {
		return 0, &Error{Message: "compiler: 'super' keyword is only valid inside a derived class"}
	}
	ctx := c.classSuperStack[len(c.classSuperStack)-1]
	loc, ok := c.resolveIdent(ctx.protoName)
	if !ok {
		return 0, &Error{Message: "compiler: internal error resolving super prototype binding"}
	}
	f := c.cur()
	r := f.alloc()
	c.emit(bytecode.OpGetBinding, r, c.locatorIndex(loc), 0, 0)
	return r, nil
}

func (c *Compiler) compileNew(e *ast.NewExpr) (int32, error) {
	calleeReg, err := c.compileExpr(e.Callee)
	if err != nil {
		return 0, err
	}
	f := c.cur()

	hasSpread := false
	for _, a := range e.Args {
		if _, ok := a.(*ast.SpreadElement); ok {
			hasSpread = true
			break
		}
	}

	if hasSpread {
		argsArr := f.alloc()
		c.emit(bytecode.OpNewArray, argsArr, 0, 0, 0)
		for _, a := range e.Args {
			if spread, ok := a.(*ast.SpreadElement); ok {
				if err := c.emitSpreadInto(argsArr, spread.Arg); err != nil {
					return 0, err
				}
				continue
			}
			r, err := c.compileExpr(a)
			if err != nil {
				return 0, err
			}
			c.emit(bytecode.OpArrayPush, argsArr, r, 0, 0)
			f.free(r)
		}
		dst := f.alloc()
		c.emit(bytecode.OpConstructSpread, dst, calleeReg, argsArr, 0)
		f.free(calleeReg)
		f.free(argsArr)
		return dst, nil
	}

	argRegs := make([]int32, len(e.Args))
	for i, a := range e.Args {
		r, err := c.compileExpr(a)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	run := f.allocRun(len(argRegs))
	for i, v := range argRegs {
		c.emit(bytecode.OpMove, run[i], v, 0, 0)
	}
	argsStart := int32(-1)
	if len(argRegs) > 0 {
		argsStart = run[0]
	}
	dst := f.alloc()
	c.emit(bytecode.OpConstruct, dst, calleeReg, argsStart, int32(len(argRegs)))
	f.free(calleeReg)
	for _, r := range argRegs {
		f.free(r)
	}
	for _, r := range run {
		f.free(r)
	}
	return dst, nil
}

func (c *Compiler) compileMemberGet(e *ast.MemberExpr) (int32, error) {
	if _, ok := e.Obj.(*ast.SuperExpr); ok {
		objReg, err := c.superProtoReg()
		if err != nil {
			return 0, err
		}
		f := c.cur()
		dst := f.alloc()
		if e.Computed {
			keyReg, err := c.compileExpr(e.Prop)
			if err != nil {
				return 0, err
			}
			c.emit(bytecode.OpGetPropComputed, dst, objReg, keyReg, 0)
			f.free(keyReg)
		} else {
			c.emit(bytecode.OpGetProp, dst, objReg, c.nameIndex(c.atom(e.Prop.(*ast.Ident).Name)), 0)
		}
		f.free(objReg)
		return dst, nil
	}
	objReg, err := c.compileExpr(e.Obj)
	if err != nil {
		return 0, err
	}
	f := c.cur()
	dst := f.alloc()
	if e.Computed {
		keyReg, err := c.compileExpr(e.Prop)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.OpGetPropComputed, dst, objReg, keyReg, 0)
		f.free(keyReg)
	} else {
		c.emit(bytecode.OpGetProp, dst, objReg, c.nameIndex(c.atom(e.Prop.(*ast.Ident).Name)), 0)
	}
	f.free(objReg)
	return dst, nil
}

func (c *Compiler) compileSequence(e *ast.SequenceExpr) (int32, error) {
	f := c.cur()
	var last int32
	for i, sub := range e.Exprs {
		r, err := c.compileExpr(sub)
		if err != nil {
			return 0, err
		}
		if i > 0 {
			f.free(last)
		}
		last = r
	}
	return last, nil
}

func (c *Compiler) compileYield(e *ast.YieldExpr) (int32, error) {
	f := c.cur()
	var argReg int32
	if e.Arg != nil {
		r, err := c.compileExpr(e.Arg)
		if err != nil {
			return 0, err
		}
		argReg = r
	} else {
		argReg = c.constUndefinedReg()
	}
	dst := f.alloc()
	c.emit(bytecode.OpYield, dst, argReg, boolToInt32(e.Delegate), 0)
	f.free(argReg)
	return dst, nil
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (c *Compiler) compileAwait(e *ast.AwaitExpr) (int32, error) {
	argReg, err := c.compileExpr(e.Arg)
	if err != nil {
		return 0, err
	}
	f := c.cur()
	dst := f.alloc()
	c.emit(bytecode.OpAwait, dst, argReg, 0, 0)
	f.free(argReg)
	return dst, nil
}
