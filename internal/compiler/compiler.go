// Package compiler lowers internal/ast trees into internal/bytecode
// CodeBlocks: spec.md §4.3's register allocator, binding-locator
// resolution, and two-pass jump patching. Grounded on internal/parser's
// file split (a small driver plus statements.go/expressions.go
// companions) and, for the register/scope bookkeeping itself, on
// spec.md §4.3's description of the two as independent concerns —
// registers hold only expression temporaries, variable access always
// goes through a binding opcode.
package compiler

import (
	"fmt"

	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/environment"
	"github.com/oxhq/esengine/internal/token"
	"github.com/oxhq/esengine/internal/value"
)

// Error is a single compile-time diagnostic, e.g. a `break`/`continue`
// outside a loop or naming an unknown label, an invalid assignment
// target, or a syntax node the compiler does not lower.
type Error struct {
	Message string
	Span    token.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

// lexScope is the compile-time shadow of one runtime environment.Env:
// it tracks which names have been declared in this block so identifier
// resolution can compute a Locator{Depth, Slot}. One lexScope is pushed
// for every OpPushScope the compiler emits, so Depth counted here always
// matches the parent-chain depth the VM builds at runtime.
type lexScope struct {
	names         map[string]int // declared name -> slot index
	mutable       map[string]bool
	next          int
	isFunctionTop bool

	// isGlobal marks the script/module top scope: declarations landing
	// here become properties of the realm's global object (via
	// OpSetGlobal) instead of declarative slots, so they persist across
	// RunScript calls, are visible to Context.GetGlobal, and back the
	// module graph's export recovery. Top-level `const` consequently
	// loses its immutability check — recorded in DESIGN.md.
	isGlobal bool
}

func newLexScope(isFunctionTop bool) *lexScope {
	return &lexScope{names: make(map[string]int), mutable: make(map[string]bool), isFunctionTop: isFunctionTop}
}

func (s *lexScope) declare(name string, mutable bool) int {
	if idx, ok := s.names[name]; ok {
		return idx
	}
	idx := s.next
	s.next++
	s.names[name] = idx
	s.mutable[name] = mutable
	return idx
}

// loopCtx tracks one enclosing breakable/continuable construct so
// break/continue statements (possibly labeled) can patch their jumps
// once the loop's exit and step points are known.
type loopCtx struct {
	label       string
	isSwitch    bool // switch is breakable but not continuable
	scopeDepth  int  // len(c.scopes) at loop entry, for unwind-pop counting
	continuePC  int  // -1 until the step point is reached
	pendingCont []int
	breakJumps  []int
}

// funcUnit holds all per-function-unit compilation state: the
// instruction buffer, constant/name/locator pools, the register
// allocator, and the nested CodeBlocks this function's literal
// expressions produced.
type funcUnit struct {
	name        string
	paramCount  int
	isGenerator bool
	isAsync     bool
	strict      bool

	instrs   []bytecode.Instr
	consts   []value.Value
	names    []string
	nameIdx  map[string]int
	locators []environment.Locator
	inner    []*bytecode.CodeBlock
	handlers []bytecode.HandlerEntry

	freeRegs []int32
	nextReg  int32
	maxReg   int32

	// completionReg, when >= 0, receives every expression statement's
	// value so the block's final OpReturn yields the script's completion
	// value (spec.md §8 scenario 1: `let x = 2; x + 3;` evaluates to 5).
	// Function bodies leave it at -1: their completion value is whatever
	// an explicit `return` produces, never a trailing expression.
	completionReg int32

	// baseScopeDepth is len(c.scopes) at the moment this funcUnit was
	// pushed, before its own top-level pushScope — c.scopes is one
	// stack shared by every nested function compilation, so a
	// HandlerEntry's EnvDepth is recorded relative to this baseline
	// (len(c.scopes) - baseScopeDepth) rather than as an absolute
	// count: the VM only ever has one frame's own scope chain in hand
	// at a time, not the compile-time view across enclosing functions.
	baseScopeDepth int
}

func newFuncUnit(name string) *funcUnit {
	return &funcUnit{name: name, nameIdx: make(map[string]int), completionReg: -1}
}

// envDepth returns the current scope nesting relative to f's own
// entry, for recording in a HandlerEntry.
func (c *Compiler) envDepth() int {
	return len(c.scopes) - c.cur().baseScopeDepth
}

func (f *funcUnit) alloc() int32 {
	if n := len(f.freeRegs); n > 0 {
		r := f.freeRegs[n-1]
		f.freeRegs = f.freeRegs[:n-1]
		return r
	}
	r := f.nextReg
	f.nextReg++
	if f.nextReg > f.maxReg {
		f.maxReg = f.nextReg
	}
	return r
}

func (f *funcUnit) free(r int32) {
	if r < 0 {
		return
	}
	f.freeRegs = append(f.freeRegs, r)
}

// allocRun bump-allocates n contiguous fresh registers, bypassing the
// free list. OpCall/OpConstruct need a contiguous argument block (and,
// for OpCall, the implicit receiver register immediately before it);
// values already sitting in arbitrary (possibly non-adjacent, possibly
// free-list-recycled) registers are copied in with OpMove rather than
// assumed to already be contiguous.
func (f *funcUnit) allocRun(n int) []int32 {
	regs := make([]int32, n)
	for i := 0; i < n; i++ {
		regs[i] = f.nextReg
		f.nextReg++
	}
	if f.nextReg > f.maxReg {
		f.maxReg = f.nextReg
	}
	return regs
}

// classSuperCtx names the hidden bindings a derived class's
// constructor/method bodies resolve `super(...)`/`super.x` against.
// Only the names are kept — not a precomputed Locator — because
// methods nest their own funcUnit and scopes on top of the scope these
// are declared in, so the correct Depth varies per reference site and
// must be recomputed via resolveIdent at each use.
type classSuperCtx struct {
	has                 bool
	ctorName, protoName string
}

// Compiler walks an *ast.Program or *ast.FunctionLit, emitting a
// bytecode.CodeBlock per function (including the top-level script or
// module body, treated as an implicit zero-parameter function).
type Compiler struct {
	interner *token.Interner
	module   bool

	funcs           []*funcUnit
	scopes          []*lexScope
	loops           []*loopCtx
	classSuperStack []classSuperCtx
}

// New creates a Compiler sharing interner with whatever Parser produced
// the tree being compiled (atoms are only meaningful against the
// interner that minted them).
func New(interner *token.Interner, module bool) *Compiler {
	return &Compiler{interner: interner, module: module}
}

func (c *Compiler) cur() *funcUnit      { return c.funcs[len(c.funcs)-1] }
func (c *Compiler) curScope() *lexScope { return c.scopes[len(c.scopes)-1] }

func (c *Compiler) atom(a token.Atom) string {
	if a == token.NoAtom {
		return ""
	}
	return c.interner.MustLookup(a)
}

// Compile lowers a top-level Program into a CodeBlock. The program body
// runs in its own pushed scope marked as the global scope, so every
// top-level declaration (`var`, `let`, `const`, function and class) is
// stored on the realm's global object through OpSetGlobal, and names
// no enclosing declarative binding resolves are read and written
// through OpGetGlobal/OpSetGlobal — see compileIdentRef.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.CodeBlock, error) {
	f := newFuncUnit("<script>")
	f.strict = prog.Strict
	c.funcs = append(c.funcs, f)
	f.baseScopeDepth = len(c.scopes)
	f.completionReg = f.alloc()
	c.emit(bytecode.OpLoadUndefined, f.completionReg, 0, 0, 0)
	c.pushScope(true)
	c.curScope().isGlobal = true
	hoistBlock(c, prog.Body)
	if err := c.compileStmts(prog.Body); err != nil {
		return nil, err
	}
	c.emit(bytecode.OpReturn, f.completionReg, 0, 0, 0)
	c.popScope()

	return c.finish(f, 0, false, false)
}

// compileFunction lowers fn into its own CodeBlock, called both for
// function declarations/expressions and for compiling an inner
// CodeBlock slot that OpNewFunction will reference.
func (c *Compiler) compileFunction(fn *ast.FunctionLit) (*bytecode.CodeBlock, error) {
	name := c.atom(fn.Name)
	f := newFuncUnit(name)
	f.isGenerator = fn.IsGen
	f.isAsync = fn.IsAsync
	f.strict = fn.Strict
	f.paramCount = len(fn.Params)
	c.funcs = append(c.funcs, f)
	f.baseScopeDepth = len(c.scopes)
	c.pushScope(true)
	if err := c.bindParams(fn.Params); err != nil {
		return nil, err
	}

	if fn.ExprBody != nil {
		reg, err := c.compileExpr(fn.ExprBody)
		if err != nil {
			return nil, err
		}
		c.emit(bytecode.OpReturn, reg, 0, 0, 0)
		f.free(reg)
	} else {
		hoistBlock(c, fn.Body.Body)
		if err := c.compileStmts(fn.Body.Body); err != nil {
			return nil, err
		}
		c.emit(bytecode.OpReturn, c.constUndefinedReg(), 0, 0, 0)
	}
	c.popScope()

	return c.finish(f, len(fn.Params), fn.IsGen, fn.IsAsync)
}

func (c *Compiler) finish(f *funcUnit, paramCount int, isGen, isAsync bool) (*bytecode.CodeBlock, error) {
	c.funcs = c.funcs[:len(c.funcs)-1]
	regCount := int(f.maxReg)
	cb := &bytecode.CodeBlock{
		Name:          f.name,
		ParamCount:    paramCount,
		RegisterCount: regCount,
		RegWidth:      bytecode.RegisterWidthFor(regCount + 1),
		Code:          f.instrs,
		Consts:        f.consts,
		Names:         f.names,
		Locators:      f.locators,
		Inner:         f.inner,
		Handlers:      f.handlers,
		IsGenerator:   isGen,
		IsAsync:       isAsync,
		Strict:        f.strict,
	}
	return cb, nil
}

// constUndefinedReg loads `undefined` into a fresh register — used for
// the implicit completion value of a function/script body that falls
// off the end.
func (c *Compiler) constUndefinedReg() int32 {
	f := c.cur()
	r := f.alloc()
	c.emit(bytecode.OpLoadUndefined, r, 0, 0, 0)
	return r
}

func (c *Compiler) emit(op bytecode.Opcode, a, b, cc, d int32) int {
	f := c.cur()
	f.instrs = append(f.instrs, bytecode.Instr{Op: op, A: a, B: b, C: cc, D: d})
	return len(f.instrs) - 1
}

func (c *Compiler) here() int32 { return int32(len(c.cur().instrs)) }

// patchJump rewrites a previously emitted jump at idx to target the
// current instruction position. Unconditional jumps carry their target
// in A; conditional jumps (test register in A) carry it in B.
func (c *Compiler) patchJump(idx int) {
	f := c.cur()
	target := int32(len(f.instrs))
	if f.instrs[idx].Op == bytecode.OpJump {
		f.instrs[idx].A = target
	} else {
		f.instrs[idx].B = target
	}
}

func (c *Compiler) patchJumpTo(idx int, target int32) {
	f := c.cur()
	if f.instrs[idx].Op == bytecode.OpJump {
		f.instrs[idx].A = target
	} else {
		f.instrs[idx].B = target
	}
}

func (c *Compiler) constIndex(v value.Value) int32 {
	f := c.cur()
	f.consts = append(f.consts, v)
	return int32(len(f.consts) - 1)
}

func (c *Compiler) nameIndex(s string) int32 {
	f := c.cur()
	if idx, ok := f.nameIdx[s]; ok {
		return int32(idx)
	}
	idx := len(f.names)
	f.names = append(f.names, s)
	f.nameIdx[s] = idx
	return int32(idx)
}

func (c *Compiler) locatorIndex(loc environment.Locator) int32 {
	f := c.cur()
	f.locators = append(f.locators, loc)
	return int32(len(f.locators) - 1)
}

func (c *Compiler) innerIndex(cb *bytecode.CodeBlock) int32 {
	f := c.cur()
	f.inner = append(f.inner, cb)
	return int32(len(f.inner) - 1)
}

// pushScope opens both the runtime scope (OpPushScope) and its
// compile-time shadow; isFunctionTop marks the one scope per function
// that parameters and var/function hoisting target.
func (c *Compiler) pushScope(isFunctionTop bool) {
	c.scopes = append(c.scopes, newLexScope(isFunctionTop))
	c.emit(bytecode.OpPushScope, 0, 0, 0, 0)
}

func (c *Compiler) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
	c.emit(bytecode.OpPopScope, 0, 0, 0, 0)
}

// declareBinding reserves a slot in the current scope and emits the
// OpDeclareBinding the VM uses to create the matching runtime binding —
// the two sides stay in lockstep because both assign slot indices by a
// simple incrementing counter, in the same emission order.
func (c *Compiler) declareBinding(name string, mutable bool) environment.Locator {
	scope := c.curScope()
	slot := scope.declare(name, mutable)
	loc := environment.NewSlotLocator(0, slot, name, mutable)
	idx := c.locatorIndex(loc)
	c.emit(bytecode.OpDeclareBinding, idx, 0, 0, 0)
	return loc
}

// declareInit declares name in the current scope and stores v as its
// initial value, routing through the global object when the current
// scope is the script's global top scope.
func (c *Compiler) declareInit(name string, mutable bool, v int32) {
	if c.curScope().isGlobal {
		c.emit(bytecode.OpSetGlobal, c.nameIndex(name), v, 0, 0)
		return
	}
	loc := c.declareBinding(name, mutable)
	c.emit(bytecode.OpInitBinding, c.locatorIndex(loc), v, 0, 0)
}

// resolveIdent looks up name against the compile-time scope stack,
// innermost first, returning a Locator with Depth counted in pushed
// scopes. ok is false when no enclosing declarative scope declares the
// name — the caller falls back to a global reference.
func (c *Compiler) resolveIdent(name string) (environment.Locator, bool) {
	for depth, i := 0, len(c.scopes)-1; i >= 0; i, depth = i-1, depth+1 {
		s := c.scopes[i]
		if slot, ok := s.names[name]; ok {
			return environment.NewSlotLocator(depth, slot, name, s.mutable[name]), true
		}
	}
	return environment.Locator{}, false
}
