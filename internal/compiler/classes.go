package compiler

import (
	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/token"
)

// compileClass lowers a class declaration or expression to a
// constructor function value: a fresh prototype object, one compiled
// CodeBlock for the (explicit or synthesized) constructor, and a
// property per method/accessor/field, static or instance. Private
// members (`#name`) and computed method/field keys are skipped
// entirely — documented gaps, not partial attempts.
func (c *Compiler) compileClass(cl *ast.ClassLit) (int32, error) {
	f := c.cur()
	derived := cl.SuperClass != nil

	var superCtorReg, superProtoReg int32
	if derived {
		r, err := c.compileExpr(cl.SuperClass)
		if err != nil {
			return 0, err
		}
		superCtorReg = r
		superProtoReg = f.alloc()
		c.emit(bytecode.OpGetProp, superProtoReg, superCtorReg, c.nameIndex("prototype"), 0)
	}

	protoReg := f.alloc()
	c.emit(bytecode.OpNewObject, protoReg, 0, 0, 0)
	if derived {
		c.emit(bytecode.OpSetPrototype, protoReg, superProtoReg, 0, 0)
	}

	// Hidden scope holding %superctor/%superproto — pushed around the
	// constructor and every method so super(...)/super.x resolve them
	// like an ordinary outer-scope identifier, by name (see
	// classSuperCtx), since method bodies nest their own funcUnit and
	// scopes on top of this one.
	c.pushScope(false)
	ctx := classSuperCtx{has: derived}
	if derived {
		ctorLoc := c.declareBinding("%superctor", false)
		c.emit(bytecode.OpInitBinding, c.locatorIndex(ctorLoc), superCtorReg, 0, 0)
		protoLoc := c.declareBinding("%superproto", false)
		c.emit(bytecode.OpInitBinding, c.locatorIndex(protoLoc), superProtoReg, 0, 0)
		ctx.ctorName = "%superctor"
		ctx.protoName = "%superproto"
	}
	c.classSuperStack = append(c.classSuperStack, ctx)

	var ctorFn *ast.FunctionLit
	var instanceFields, staticFields, methods, staticMethods []*ast.ClassMember

	for _, m := range cl.Members {
		if m.Private != token.NoAtom {
			continue
		}
		if m.IsField {
			if m.Key.Computed != nil {
				continue
			}
			if m.Static {
				staticFields = append(staticFields, m)
			} else {
				instanceFields = append(instanceFields, m)
			}
			continue
		}
		if !m.Static && m.Key.Computed == nil && c.atom(m.Key.Name) == "constructor" {
			ctorFn = m.Value
			continue
		}
		if m.Key.Computed != nil {
			continue
		}
		if m.Static {
			staticMethods = append(staticMethods, m)
		} else {
			methods = append(methods, m)
		}
	}

	ctorCB, err := c.compileConstructor(ctorFn, instanceFields, derived)
	if err != nil {
		return 0, err
	}
	ctorReg := f.alloc()
	c.emit(bytecode.OpNewFunction, ctorReg, c.innerIndex(ctorCB), 0, 0)
	c.emit(bytecode.OpSetProp, ctorReg, c.nameIndex("prototype"), protoReg, 0)
	c.emit(bytecode.OpSetProp, protoReg, c.nameIndex("constructor"), ctorReg, 0)

	if err := c.compileClassMethods(methods, protoReg); err != nil {
		return 0, err
	}
	if err := c.compileClassMethods(staticMethods, ctorReg); err != nil {
		return 0, err
	}
	for _, m := range staticFields {
		valReg, err := c.classFieldValue(m)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.OpSetProp, ctorReg, c.nameIndex(c.atom(m.Key.Name)), valReg, 0)
		f.free(valReg)
	}

	if derived {
		c.emit(bytecode.OpSetPrototype, ctorReg, superCtorReg, 0, 0)
		f.free(superCtorReg)
		f.free(superProtoReg)
	}

	c.classSuperStack = c.classSuperStack[:len(c.classSuperStack)-1]
	c.popScope()
	f.free(protoReg)

	return ctorReg, nil
}

func (c *Compiler) compileClassMethods(members []*ast.ClassMember, target int32) error {
	f := c.cur()
	for _, m := range members {
		cb, err := c.compileFunction(m.Value)
		if err != nil {
			return err
		}
		fnReg := f.alloc()
		c.emit(bytecode.OpNewFunction, fnReg, c.innerIndex(cb), 0, 0)
		switch m.Kind {
		case ast.PropGet:
			c.emit(bytecode.OpDefineGetter, target, c.nameIndex(c.atom(m.Key.Name)), fnReg, 0)
		case ast.PropSet:
			c.emit(bytecode.OpDefineSetter, target, c.nameIndex(c.atom(m.Key.Name)), fnReg, 0)
		default:
			c.emit(bytecode.OpSetProp, target, c.nameIndex(c.atom(m.Key.Name)), fnReg, 0)
		}
		f.free(fnReg)
	}
	return nil
}

func (c *Compiler) classFieldValue(m *ast.ClassMember) (int32, error) {
	if m.FieldInit == nil {
		return c.constUndefinedReg(), nil
	}
	return c.compileExpr(m.FieldInit)
}

// compileConstructor builds the constructor CodeBlock. When no explicit
// constructor member exists, a trivial one is synthesized: for a
// derived class this forwards all arguments to the super constructor
// (`super(...args)`), for a base class it does nothing beyond running
// field initializers. Field initializers splice in immediately after
// an explicit leading `super(...)` call when one is present; otherwise
// they run at the very front of the body — for a derived class whose
// constructor doesn't open with `super()` this runs fields before the
// super call actually executes, a simplification documented in
// DESIGN.md rather than the precise "fields run right after super()
// returns, wherever it's written" semantics.
func (c *Compiler) compileConstructor(ctorFn *ast.FunctionLit, fields []*ast.ClassMember, derived bool) (*bytecode.CodeBlock, error) {
	f := newFuncUnit("constructor")
	paramCount := 0
	if ctorFn != nil {
		paramCount = len(ctorFn.Params)
	}
	c.funcs = append(c.funcs, f)
	f.baseScopeDepth = len(c.scopes)
	c.pushScope(true)

	var bodyStmts []ast.Stmt
	if ctorFn != nil {
		if err := c.bindParams(ctorFn.Params); err != nil {
			return nil, err
		}
		bodyStmts = ctorFn.Body.Body
		hoistBlock(c, bodyStmts)
	} else if derived {
		restReg := f.alloc()
		c.emit(bytecode.OpRestArgs, restReg, 0, 0, 0)
		loc := c.declareBinding("__args", true)
		c.emit(bytecode.OpInitBinding, c.locatorIndex(loc), restReg, 0, 0)
		f.free(restReg)
	}

	hasLeadingSuper := false
	if derived && len(bodyStmts) > 0 {
		if es, ok := bodyStmts[0].(*ast.ExprStmt); ok {
			if ce, ok := es.Expr.(*ast.CallExpr); ok {
				if _, ok := ce.Callee.(*ast.SuperExpr); ok {
					hasLeadingSuper = true
				}
			}
		}
	}

	spliceAt := 0
	if ctorFn == nil && derived {
		if err := c.emitDefaultSuperCall(); err != nil {
			return nil, err
		}
	} else if hasLeadingSuper {
		if err := c.compileStmt(bodyStmts[0]); err != nil {
			return nil, err
		}
		spliceAt = 1
	}

	for _, fld := range fields {
		thisReg := f.alloc()
		c.emit(bytecode.OpThis, thisReg, 0, 0, 0)
		valReg, err := c.classFieldValue(fld)
		if err != nil {
			return nil, err
		}
		if fld.Key.Computed != nil {
			keyReg, err := c.compileExpr(fld.Key.Computed)
			if err != nil {
				return nil, err
			}
			c.emit(bytecode.OpSetPropComputed, thisReg, keyReg, valReg, 0)
			f.free(keyReg)
		} else {
			c.emit(bytecode.OpSetProp, thisReg, c.nameIndex(c.atom(fld.Key.Name)), valReg, 0)
		}
		f.free(valReg)
		f.free(thisReg)
	}

	if ctorFn != nil {
		if err := c.compileStmts(bodyStmts[spliceAt:]); err != nil {
			return nil, err
		}
	}

	thisReg := f.alloc()
	c.emit(bytecode.OpThis, thisReg, 0, 0, 0)
	c.emit(bytecode.OpReturn, thisReg, 0, 0, 0)
	f.free(thisReg)

	c.popScope()
	return c.finish(f, paramCount, false, false)
}

// emitDefaultSuperCall synthesizes `super(...__args)` for a derived
// class with no explicit constructor.
func (c *Compiler) emitDefaultSuperCall() error {
	ctx := c.classSuperStack[len(c.classSuperStack)-1]
	ctorLoc, ok := c.resolveIdent(ctx.ctorName)
	if !ok {
		return &Error{Message: "compiler: internal error resolving super constructor binding"}
	}
	argsLoc, ok := c.resolveIdent("__args")
	if !ok {
		return &Error{Message: "compiler: internal error resolving rest-args binding"}
	}
	f := c.cur()
	calleeReg := f.alloc()
	c.emit(bytecode.OpGetBinding, calleeReg, c.locatorIndex(ctorLoc), 0, 0)
	thisReg := f.alloc()
	c.emit(bytecode.OpThis, thisReg, 0, 0, 0)
	argsReg := f.alloc()
	c.emit(bytecode.OpGetBinding, argsReg, c.locatorIndex(argsLoc), 0, 0)
	dst := f.alloc()
	c.emit(bytecode.OpCallSpread, dst, calleeReg, thisReg, argsReg)
	f.free(calleeReg)
	f.free(thisReg)
	f.free(argsReg)
	f.free(dst)
	return nil
}
