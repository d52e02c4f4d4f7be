package compiler

import (
	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/bytecode"
)

func (c *Compiler) compileStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		r, err := c.compileExpr(s.Expr)
		if err != nil {
			return err
		}
		f := c.cur()
		if f.completionReg >= 0 {
			c.emit(bytecode.OpMove, f.completionReg, r, 0, 0)
		}
		f.free(r)
		return nil
	case *ast.EmptyStmt, *ast.DebuggerStmt:
		return nil
	case *ast.VarDecl:
		return c.compileVarDecl(s)
	case *ast.FunctionDecl:
		// Already declared and initialized by hoistBlock.
		return nil
	case *ast.ClassDecl:
		return c.compileClassDecl(s)
	case *ast.BlockStmt:
		c.pushScope(false)
		err := c.compileStmts(s.Body)
		c.popScope()
		return err
	case *ast.IfStmt:
		return c.compileIf(s)
	case *ast.WhileStmt:
		return c.compileWhile(s, "")
	case *ast.DoWhileStmt:
		return c.compileDoWhile(s, "")
	case *ast.ForStmt:
		return c.compileFor(s, "")
	case *ast.ForInOfStmt:
		return c.compileForInOf(s, "")
	case *ast.ReturnStmt:
		var reg int32
		if s.Arg != nil {
			r, err := c.compileExpr(s.Arg)
			if err != nil {
				return err
			}
			reg = r
		} else {
			reg = c.constUndefinedReg()
		}
		c.emit(bytecode.OpReturn, reg, 0, 0, 0)
		c.cur().free(reg)
		return nil
	case *ast.ThrowStmt:
		reg, err := c.compileExpr(s.Arg)
		if err != nil {
			return err
		}
		c.emit(bytecode.OpThrow, reg, 0, 0, 0)
		c.cur().free(reg)
		return nil
	case *ast.BreakStmt:
		return c.compileBreak(s.Label)
	case *ast.ContinueStmt:
		return c.compileContinue(s.Label)
	case *ast.TryStmt:
		return c.compileTry(s)
	case *ast.SwitchStmt:
		return c.compileSwitch(s, "")
	case *ast.LabeledStmt:
		return c.compileLabeled(s)
	case *ast.WithStmt:
		return c.compileWith(s)
	default:
		return &Error{Message: "compiler: unsupported statement node", Span: stmt.Span()}
	}
}

func (c *Compiler) compileVarDecl(s *ast.VarDecl) error {
	for _, d := range s.Decls {
		var reg int32
		if d.Init != nil {
			r, err := c.compileExpr(d.Init)
			if err != nil {
				return err
			}
			reg = r
		} else {
			reg = c.constUndefinedReg()
		}
		var err error
		switch s.Kind {
		case ast.VarVar:
			err = c.bindPatternVar(d.Target, reg)
		case ast.VarConst:
			err = c.bindPatternBlockScoped(d.Target, reg, false)
		default:
			err = c.bindPatternBlockScoped(d.Target, reg, true)
		}
		c.cur().free(reg)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileClassDecl(s *ast.ClassDecl) error {
	name := c.atom(s.Class.Name)
	reg, err := c.compileClass(s.Class)
	if err != nil {
		return err
	}
	c.declareInit(name, true, reg)
	c.cur().free(reg)
	return nil
}

func (c *Compiler) compileIf(s *ast.IfStmt) error {
	test, err := c.compileExpr(s.Test)
	if err != nil {
		return err
	}
	elseJump := c.emit(bytecode.OpJumpIfFalse, test, 0, 0, 0)
	c.cur().free(test)

	if err := c.compileStmt(s.Cons); err != nil {
		return err
	}

	if s.Alt == nil {
		c.patchJump(elseJump)
		return nil
	}
	endJump := c.emit(bytecode.OpJump, 0, 0, 0, 0)
	c.patchJump(elseJump)
	if err := c.compileStmt(s.Alt); err != nil {
		return err
	}
	c.patchJump(endJump)
	return nil
}

// --- loops: break/continue, optionally labeled ---------------------------

func (c *Compiler) pushLoop(label string) *loopCtx {
	lc := &loopCtx{label: label, scopeDepth: len(c.scopes), continuePC: -1}
	c.loops = append(c.loops, lc)
	return lc
}

func (c *Compiler) popLoop() *loopCtx {
	lc := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	return lc
}

func (c *Compiler) findLoop(label string) *loopCtx {
	for i := len(c.loops) - 1; i >= 0; i-- {
		lc := c.loops[i]
		if label == "" || lc.label == label {
			if label != "" || !lc.isSwitch {
				return lc
			}
		}
	}
	return nil
}

func (c *Compiler) compileBreak(label string) error {
	for i := len(c.loops) - 1; i >= 0; i-- {
		lc := c.loops[i]
		if label == "" || lc.label == label {
			c.unwindScopesTo(lc.scopeDepth)
			lc.breakJumps = append(lc.breakJumps, c.emit(bytecode.OpJump, 0, 0, 0, 0))
			return nil
		}
	}
	return &Error{Message: "compiler: break outside of a loop or switch"}
}

func (c *Compiler) compileContinue(label string) error {
	for i := len(c.loops) - 1; i >= 0; i-- {
		lc := c.loops[i]
		if lc.isSwitch {
			continue
		}
		if label == "" || lc.label == label {
			c.unwindScopesTo(lc.scopeDepth)
			if lc.continuePC >= 0 {
				c.emit(bytecode.OpJump, int32(lc.continuePC), 0, 0, 0)
			} else {
				lc.pendingCont = append(lc.pendingCont, c.emit(bytecode.OpJump, 0, 0, 0, 0))
			}
			return nil
		}
	}
	return &Error{Message: "compiler: continue outside of a loop"}
}

// unwindScopesTo emits the OpPopScope instructions needed to bring the
// runtime environment chain back to depth target before a break/continue
// jumps out of however many nested blocks it's currently inside —
// without touching the compile-time scope stack itself, since control
// returns to (and keeps compiling) the scopes the jump originated in.
func (c *Compiler) unwindScopesTo(target int) {
	for i := len(c.scopes); i > target; i-- {
		c.emit(bytecode.OpPopScope, 0, 0, 0, 0)
	}
}

func (c *Compiler) patchLoopExits(lc *loopCtx) {
	for _, idx := range lc.breakJumps {
		c.patchJump(idx)
	}
}

func (c *Compiler) compileWhile(s *ast.WhileStmt, label string) error {
	lc := c.pushLoop(label)
	start := c.here()
	test, err := c.compileExpr(s.Test)
	if err != nil {
		return err
	}
	exit := c.emit(bytecode.OpJumpIfFalse, test, 0, 0, 0)
	c.cur().free(test)

	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	lc.continuePC = int(start)
	for _, idx := range lc.pendingCont {
		c.patchJumpTo(idx, start)
	}
	c.emit(bytecode.OpJump, start, 0, 0, 0)
	c.patchJump(exit)
	c.patchLoopExits(lc)
	c.popLoop()
	return nil
}

func (c *Compiler) compileDoWhile(s *ast.DoWhileStmt, label string) error {
	lc := c.pushLoop(label)
	start := c.here()
	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	stepPC := c.here()
	lc.continuePC = int(stepPC)
	for _, idx := range lc.pendingCont {
		c.patchJumpTo(idx, stepPC)
	}
	test, err := c.compileExpr(s.Test)
	if err != nil {
		return err
	}
	c.emit(bytecode.OpJumpIfTrue, test, start, 0, 0)
	c.cur().free(test)
	c.patchLoopExits(lc)
	c.popLoop()
	return nil
}

func (c *Compiler) compileFor(s *ast.ForStmt, label string) error {
	c.pushScope(false)
	if s.Init != nil {
		switch init := s.Init.(type) {
		case *ast.VarDecl:
			if err := c.compileVarDecl(init); err != nil {
				c.popScope()
				return err
			}
		case ast.Expr:
			r, err := c.compileExpr(init)
			if err != nil {
				c.popScope()
				return err
			}
			c.cur().free(r)
		}
	}

	lc := c.pushLoop(label)
	start := c.here()
	var exit int
	hasTest := s.Test != nil
	if hasTest {
		test, err := c.compileExpr(s.Test)
		if err != nil {
			return err
		}
		exit = c.emit(bytecode.OpJumpIfFalse, test, 0, 0, 0)
		c.cur().free(test)
	}

	if err := c.compileStmt(s.Body); err != nil {
		return err
	}

	stepPC := c.here()
	lc.continuePC = int(stepPC)
	for _, idx := range lc.pendingCont {
		c.patchJumpTo(idx, stepPC)
	}
	if s.Step != nil {
		r, err := c.compileExpr(s.Step)
		if err != nil {
			return err
		}
		c.cur().free(r)
	}
	c.emit(bytecode.OpJump, start, 0, 0, 0)
	if hasTest {
		c.patchJump(exit)
	}
	c.patchLoopExits(lc)
	c.popLoop()
	c.popScope()
	return nil
}

// compileForInOf lowers both `for-in` and `for-of` onto the same
// iterator-protocol opcodes (OpGetForInIterator vs OpGetIterator
// produce the two different iterators the VM needs), a duck-typed
// simplification noted in DESIGN.md: iteration consumes whatever the
// runtime iterator exposes rather than dispatching through a
// `Symbol.iterator`-keyed well-known-symbol registry.
func (c *Compiler) compileForInOf(s *ast.ForInOfStmt, label string) error {
	rightReg, err := c.compileExpr(s.Right)
	if err != nil {
		return err
	}
	f := c.cur()
	iter := f.alloc()
	if s.Kind == ast.ForIn {
		c.emit(bytecode.OpGetForInIterator, iter, rightReg, 0, 0)
	} else {
		c.emit(bytecode.OpGetIterator, iter, rightReg, 0, 0)
	}
	f.free(rightReg)

	lc := c.pushLoop(label)
	start := c.here()
	c.emit(bytecode.OpIteratorNext, iter, 0, 0, 0)
	doneReg := f.alloc()
	c.emit(bytecode.OpIteratorDone, doneReg, iter, 0, 0)
	exit := c.emit(bytecode.OpJumpIfTrue, doneReg, 0, 0, 0)
	f.free(doneReg)

	val := f.alloc()
	c.emit(bytecode.OpIteratorValue, val, iter, 0, 0)

	c.pushScope(false)
	if err := c.bindForHead(s.Left, val); err != nil {
		return err
	}
	f.free(val)

	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	c.popScope()

	stepPC := c.here()
	lc.continuePC = int(stepPC)
	for _, idx := range lc.pendingCont {
		c.patchJumpTo(idx, stepPC)
	}
	c.emit(bytecode.OpJump, start, 0, 0, 0)
	c.patchJump(exit)
	c.emit(bytecode.OpIteratorClose, iter, 0, 0, 0)
	c.patchLoopExits(lc)
	c.popLoop()
	f.free(iter)
	return nil
}

// bindForHead handles the three legal for-in/for-of left-hand shapes: a
// fresh `var`/`let`/`const` declarator, or an existing reference
// (identifier or member expression, or a destructuring pattern of
// either) to assign into.
func (c *Compiler) bindForHead(left ast.Node, val int32) error {
	if decl, ok := left.(*ast.VarDecl); ok {
		target := decl.Decls[0].Target
		switch decl.Kind {
		case ast.VarVar:
			return c.bindPatternVar(target, val)
		case ast.VarConst:
			return c.bindPatternBlockScoped(target, val, false)
		default:
			return c.bindPatternBlockScoped(target, val, true)
		}
	}
	expr := left.(ast.Expr)
	if pat, ok := exprAsAssignPattern(expr); ok {
		return c.destructureAssign(pat, val)
	}
	return c.assignSimple(expr, val)
}

func (c *Compiler) compileLabeled(s *ast.LabeledStmt) error {
	switch body := s.Body.(type) {
	case *ast.WhileStmt:
		return c.compileWhile(body, s.Label)
	case *ast.DoWhileStmt:
		return c.compileDoWhile(body, s.Label)
	case *ast.ForStmt:
		return c.compileFor(body, s.Label)
	case *ast.ForInOfStmt:
		return c.compileForInOf(body, s.Label)
	case *ast.SwitchStmt:
		return c.compileSwitch(body, s.Label)
	default:
		// A label on a non-loop/switch statement is only reachable via
		// `break label;`; model it as a single-iteration breakable block.
		lc := c.pushLoop(s.Label)
		lc.isSwitch = true
		err := c.compileStmt(s.Body)
		c.patchLoopExits(lc)
		c.popLoop()
		return err
	}
}

// compileSwitch lowers to a sequential if/else-if chain over strict
// equality, matching switch's case-selection semantics directly rather
// than building a jump table — grounded on spec.md §4.3's closing note
// that "sequential comparison is a correct, simpler starting point."
func (c *Compiler) compileSwitch(s *ast.SwitchStmt, label string) error {
	disc, err := c.compileExpr(s.Disc)
	if err != nil {
		return err
	}
	f := c.cur()
	lc := c.pushLoop(label)
	lc.isSwitch = true

	c.pushScope(false)

	caseJumps := make([]int, len(s.Cases))
	defaultIdx := -1
	for i, cs := range s.Cases {
		if cs.Test == nil {
			defaultIdx = i
			continue
		}
		test, err := c.compileExpr(*cs.Test)
		if err != nil {
			return err
		}
		eq := f.alloc()
		c.emit(bytecode.OpStrictEq, eq, disc, test, 0)
		f.free(test)
		caseJumps[i] = c.emit(bytecode.OpJumpIfTrue, eq, 0, 0, 0)
		f.free(eq)
	}
	f.free(disc)

	noMatchJump := c.emit(bytecode.OpJump, 0, 0, 0, 0)

	bodyStarts := make([]int32, len(s.Cases))
	for i, cs := range s.Cases {
		bodyStarts[i] = c.here()
		if err := c.compileStmts(cs.Body); err != nil {
			return err
		}
	}
	end := c.here()

	for i, cs := range s.Cases {
		if cs.Test != nil {
			c.patchJumpTo(caseJumps[i], bodyStarts[i])
		}
	}
	if defaultIdx >= 0 {
		c.patchJumpTo(noMatchJump, bodyStarts[defaultIdx])
	} else {
		c.patchJumpTo(noMatchJump, end)
	}

	c.popScope()
	c.patchLoopExits(lc)
	c.popLoop()
	return nil
}

// compileTry emits the protected region plus its handler table entries
// per spec.md §4.4. A catch (if present) gets a HandlerEntry covering
// the try block. When a finally is present, it additionally gets its
// own always-run handler — covering the try block when there's no
// catch, and ALSO covering the catch block when there is one, so an
// exception escaping the catch body still runs finally — compiled as
// "run the finally block, then rethrow the pending value" rather than
// sharing the catch's ordinary fallthrough path.
func (c *Compiler) compileTry(s *ast.TryStmt) error {
	f := c.cur()
	tryStart := int(c.here())
	c.pushScope(false)
	if err := c.compileStmts(s.Block.Body); err != nil {
		return err
	}
	c.popScope()
	tryEnd := int(c.here())
	afterTryJump := c.emit(bytecode.OpJump, 0, 0, 0, 0)

	haveCatch := s.Catch != nil
	var catchStart, catchEnd int
	if haveCatch {
		pendingReg := f.alloc()
		catchStart = int(c.here())
		c.pushScope(false)
		if s.Catch.Param != nil {
			if err := c.bindPatternBlockScoped(s.Catch.Param, pendingReg, true); err != nil {
				return err
			}
		}
		if err := c.compileStmts(s.Catch.Body.Body); err != nil {
			return err
		}
		c.popScope()
		catchEnd = int(c.here())
		f.free(pendingReg)
		c.cur().handlers = append(c.cur().handlers, bytecode.HandlerEntry{
			Start: tryStart, End: tryEnd, HandlerPC: catchStart,
			EnvDepth: c.envDepth(), PendingReg: pendingReg,
		})
	}
	c.patchJump(afterTryJump)

	if s.Finally != nil {
		c.pushScope(false)
		if err := c.compileStmts(s.Finally.Body); err != nil {
			return err
		}
		c.popScope()
	}

	// The exception-only rethrowing copies of finally live after the
	// statement's normal control flow, reached only via handler
	// dispatch (never by fallthrough) — skip over them here.
	if s.Finally != nil {
		skipJump := c.emit(bytecode.OpJump, 0, 0, 0, 0)

		rethrowReg := f.alloc()
		finallyHandlerPC := int(c.here())
		c.pushScope(false)
		if err := c.compileStmts(s.Finally.Body); err != nil {
			return err
		}
		c.popScope()
		c.emit(bytecode.OpThrow, rethrowReg, 0, 0, 0)
		f.free(rethrowReg)

		if haveCatch {
			// An exception unwinding out of the catch body must still
			// run finally before propagating.
			c.cur().handlers = append(c.cur().handlers, bytecode.HandlerEntry{
				Start: catchStart, End: catchEnd, HandlerPC: finallyHandlerPC,
				EnvDepth: c.envDepth(), PendingReg: rethrowReg, IsFinally: true,
			})
		} else {
			c.cur().handlers = append(c.cur().handlers, bytecode.HandlerEntry{
				Start: tryStart, End: tryEnd, HandlerPC: finallyHandlerPC,
				EnvDepth: c.envDepth(), PendingReg: rethrowReg, IsFinally: true,
			})
		}
		c.patchJump(skipJump)
	}
	return nil
}

func (c *Compiler) compileWith(s *ast.WithStmt) error {
	// `with` pushes an object-backed environment; the compiler can't
	// statically resolve names against it (any unresolved identifier
	// inside the body might refer to one of the object's properties),
	// so names are left to resolve dynamically at the global fallback
	// path. A fully faithful `with` needs environment.ObjectBacked
	// wired through OpPushScope with an operand selecting the kind —
	// documented as a known gap (DESIGN.md): `with` bodies compile but
	// only see their own declarative bindings and globals, not the
	// `with` object's properties.
	_, err := c.compileExpr(s.Obj)
	if err != nil {
		return err
	}
	return c.compileStmt(s.Body)
}

// hoistBlock pre-declares every `var` and top-level function declaration
// reachable (without crossing a nested function boundary) in stmts,
// initializing each to undefined (vars) or its compiled function value
// (function declarations) before any statement in the block runs — the
// two hoisting behaviors spec.md §4.3 requires of a function/script top
// scope.
func hoistBlock(c *Compiler, stmts []ast.Stmt) {
	var names []string
	seen := map[string]bool{}
	c.collectVarNames(stmts, &names, seen)
	for _, name := range names {
		und := c.constUndefinedReg()
		c.declareInit(name, true, und)
		c.cur().free(und)
	}

	for _, st := range stmts {
		fd, ok := st.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		name := c.atom(fd.Fn.Name)
		cb, err := c.compileFunction(fd.Fn)
		if err != nil {
			continue // syntax-level errors in hoisted functions surface when their statement node would be compiled; keeping hoisting best-effort here.
		}
		f := c.cur()
		dst := f.alloc()
		c.emit(bytecode.OpNewFunction, dst, c.innerIndex(cb), 0, 0)
		c.declareInit(name, true, dst)
		f.free(dst)
	}
}

func (c *Compiler) collectVarNames(stmts []ast.Stmt, out *[]string, seen map[string]bool) {
	for _, st := range stmts {
		c.collectVarNamesStmt(st, out, seen)
	}
}

func (c *Compiler) collectVarNamesStmt(st ast.Stmt, out *[]string, seen map[string]bool) {
	switch s := st.(type) {
	case *ast.VarDecl:
		if s.Kind != ast.VarVar {
			return
		}
		for _, d := range s.Decls {
			c.collectPatternNames(d.Target, out, seen)
		}
	case *ast.BlockStmt:
		c.collectVarNames(s.Body, out, seen)
	case *ast.IfStmt:
		c.collectVarNamesStmt(s.Cons, out, seen)
		if s.Alt != nil {
			c.collectVarNamesStmt(s.Alt, out, seen)
		}
	case *ast.ForStmt:
		if decl, ok := s.Init.(*ast.VarDecl); ok {
			c.collectVarNamesStmt(decl, out, seen)
		}
		c.collectVarNamesStmt(s.Body, out, seen)
	case *ast.ForInOfStmt:
		if decl, ok := s.Left.(*ast.VarDecl); ok {
			c.collectVarNamesStmt(decl, out, seen)
		}
		c.collectVarNamesStmt(s.Body, out, seen)
	case *ast.WhileStmt:
		c.collectVarNamesStmt(s.Body, out, seen)
	case *ast.DoWhileStmt:
		c.collectVarNamesStmt(s.Body, out, seen)
	case *ast.TryStmt:
		c.collectVarNames(s.Block.Body, out, seen)
		if s.Catch != nil {
			c.collectVarNames(s.Catch.Body.Body, out, seen)
		}
		if s.Finally != nil {
			c.collectVarNames(s.Finally.Body, out, seen)
		}
	case *ast.SwitchStmt:
		for _, cs := range s.Cases {
			c.collectVarNames(cs.Body, out, seen)
		}
	case *ast.LabeledStmt:
		c.collectVarNamesStmt(s.Body, out, seen)
	case *ast.WithStmt:
		c.collectVarNamesStmt(s.Body, out, seen)
	}
}

func (c *Compiler) collectPatternNames(pat ast.Pattern, out *[]string, seen map[string]bool) {
	switch p := pat.(type) {
	case *ast.IdentPattern:
		name := c.atom(p.Name)
		if !seen[name] {
			seen[name] = true
			*out = append(*out, name)
		}
	case *ast.ArrayPattern:
		for _, el := range p.Elements {
			if el != nil {
				c.collectPatternNames(el, out, seen)
			}
		}
		if p.Rest != nil {
			c.collectPatternNames(p.Rest, out, seen)
		}
	case *ast.ObjectPattern:
		for _, prop := range p.Props {
			c.collectPatternNames(prop.Value, out, seen)
		}
		if p.Rest != nil {
			c.collectPatternNames(p.Rest, out, seen)
		}
	case *ast.AssignPattern:
		c.collectPatternNames(p.Target, out, seen)
	}
}

// bindParams declares and initializes one binding per parameter in the
// function's already-pushed top scope, from left to right, reading each
// argument out of its pre-populated register (the VM copies call
// arguments into registers 0..N-1, or undefined past argc, before the
// first instruction runs). internal/parser encodes a trailing rest
// parameter as the last Params entry being an *ast.AssignPattern with a
// nil Default (see parseParamList); the compiler recognizes that shape
// here and collects the remaining arguments via OpRestArgs instead of
// reading a single positional register.
func (c *Compiler) bindParams(params []ast.Pattern) error {
	// Positional arguments occupy registers 0..N-1 at entry. Reserve the
	// whole run before binding anything: a destructuring pattern on an
	// early parameter allocates temporaries, and without the reservation
	// those would land in the argument registers later parameters have
	// yet to read.
	c.cur().allocRun(len(params))
	for i, p := range params {
		f := c.cur()
		if i == len(params)-1 {
			if ap, ok := p.(*ast.AssignPattern); ok && ap.Default == nil {
				rest := f.alloc()
				c.emit(bytecode.OpRestArgs, rest, int32(i), 0, 0)
				err := c.bindPatternBlockScoped(ap.Target, rest, true)
				f.free(rest)
				return err
			}
		}
		argReg := f.alloc()
		c.emit(bytecode.OpMove, argReg, int32(i), 0, 0)
		if err := c.bindPatternBlockScoped(p, argReg, true); err != nil {
			return err
		}
		f.free(argReg)
	}
	return nil
}
