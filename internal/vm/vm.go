// Package vm executes internal/bytecode.CodeBlocks: spec.md §4.4's
// register-file dispatch loop, call/construct conventions, and
// handler-table exception unwinding.
//
// Grounded on spec.md §4.4 directly for the dispatch loop shape (a
// single switch over Opcode walking a flat []Instr with an explicit
// program counter, rather than a tree-walking evaluator); on
// internal/environment and internal/object for the runtime binding and
// value model the compiler's Locators/property opcodes already target;
// and on the teacher's internal/evaluator/universal.go for the overall
// "one function owns the step loop, per-opcode cases call out to small
// focused helpers" shape reused here across vm.go/operators.go/
// iterator.go/generator.go/promise.go.
package vm

import (
	"fmt"
	"math"

	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/environment"
	"github.com/oxhq/esengine/internal/gc"
	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

// Thrown wraps a thrown language value as a Go error so it can
// propagate out of Go call frames (runFrame, Call, Construct) the same
// way any other error does, while still carrying the original
// value.Value for a catch block (or the embedder) to inspect.
type Thrown struct {
	Value     value.Value
	Backtrace []string
}

func (t *Thrown) Error() string {
	if t.Value.IsObject() {
		if o, ok := t.Value.AsObject().(*object.Object); ok {
			if msg, err := o.Get(value.NewPropertyKeyFromString("message"), t.Value); err == nil && msg.IsString() {
				return fmt.Sprintf("%s: %s", o.Name, msg.AsString().Go())
			}
		}
	}
	return fmt.Sprintf("uncaught exception: %v", displayValue(t.Value))
}

func throwValue(v value.Value) error { return &Thrown{Value: v} }

func throwTypeError(vm *VM, format string, args ...any) error {
	return vm.throwError("TypeError", format, args...)
}

func throwReferenceError(vm *VM, format string, args ...any) error {
	return vm.throwError("ReferenceError", format, args...)
}

func throwRangeError(vm *VM, format string, args ...any) error {
	return vm.throwError("RangeError", format, args...)
}

// VM owns one realm's heap, global object, prototypes, and job queue.
// Script/module code blocks (and every function nested inside them) are
// all executed against the same VM — spec.md §5's "one VM per context".
type VM struct {
	Heap *gc.Heap

	Global *object.Object

	ObjectProto    *object.Object
	FunctionProto  *object.Object
	ArrayProto     *object.Object
	ErrorProto     *object.Object
	errorProtos    map[string]*object.Object
	PromiseProto   *object.Object
	GeneratorProto *object.Object
	IteratorProto  *object.Object

	microtasks []func()

	iterStates map[*object.Object]*iterState
	genStates  map[*object.Object]*genState
	promises   map[*object.Object]*promiseState

	// InstructionBudget, when non-zero, bounds total dispatched
	// instructions across the VM's lifetime (spec.md §5's bounded-run
	// mode); Spent tracks how many have executed. A run that exceeds
	// the budget fails with ErrBudgetExceeded rather than looping
	// forever on host-supplied untrusted code.
	InstructionBudget int64
	Spent             int64

	// roots holds the realm fixtures' GC handles (global object,
	// intrinsic prototypes, intrinsic functions) for the VM's lifetime,
	// so Collect never sweeps the realm out from under a script.
	roots []*gc.Handle

	// callStack is the shadow stack backtraces are captured from
	// (SPEC_FULL §6/§7): each live invokeCall/invokeConstruct pushes its
	// CodeBlock's name and pops it on return, so a throw mid-call can
	// snapshot "who called whom" without reconstructing it from Go's own
	// call stack. BacktraceDepth, when non-zero, caps how many innermost
	// frames Backtrace returns.
	callStack      []string
	BacktraceDepth int
}

// Backtrace snapshots the current shadow call stack, innermost frame
// first, truncated to BacktraceDepth when that is non-zero.
func (vm *VM) Backtrace() []string {
	n := len(vm.callStack)
	if vm.BacktraceDepth > 0 && n > vm.BacktraceDepth {
		n = vm.BacktraceDepth
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = vm.callStack[len(vm.callStack)-1-i]
	}
	return out
}

func (vm *VM) pushFrame(name string) {
	if name == "" {
		name = "<anonymous>"
	}
	vm.callStack = append(vm.callStack, name)
}

func (vm *VM) popFrame() {
	vm.callStack = vm.callStack[:len(vm.callStack)-1]
}

// ErrBudgetExceeded is returned when InstructionBudget is exhausted.
var ErrBudgetExceeded = fmt.Errorf("vm: instruction budget exceeded")

// New creates a VM with a fresh heap and the minimal prototype chain
// (Object.prototype / Function.prototype / Array.prototype / the Error
// kind hierarchy / Promise.prototype) every script needs regardless of
// which host builtins a higher-level realm layers on top. Registering
// Object/Array/console/etc. methods onto these prototypes is the
// embedding package's job, not this one's.
func New(heapBudget uintptr) *VM {
	vm := &VM{
		Heap:        gc.NewHeap(heapBudget),
		iterStates:  make(map[*object.Object]*iterState),
		genStates:   make(map[*object.Object]*genState),
		promises:    make(map[*object.Object]*promiseState),
		errorProtos: make(map[string]*object.Object),
	}
	vm.ObjectProto = vm.Adopt(object.New(nil))
	vm.FunctionProto = vm.Adopt(object.New(vm.ObjectProto))
	vm.ArrayProto = vm.Adopt(object.New(vm.ObjectProto))
	vm.ErrorProto = vm.Adopt(object.New(vm.ObjectProto))
	vm.IteratorProto = vm.Adopt(object.New(vm.ObjectProto))
	vm.GeneratorProto = vm.Adopt(object.New(vm.IteratorProto))
	vm.PromiseProto = vm.Adopt(object.New(vm.ObjectProto))
	for _, kind := range []string{"TypeError", "RangeError", "ReferenceError", "SyntaxError", "EvalError", "URIError"} {
		proto := vm.Adopt(object.New(vm.ErrorProto))
		object.CreateDataProperty(proto, value.NewPropertyKeyFromString("name"), value.Str(kind))
		vm.errorProtos[kind] = proto
	}
	object.CreateDataProperty(vm.ErrorProto, value.NewPropertyKeyFromString("name"), value.Str("Error"))
	vm.Global = vm.Adopt(object.New(vm.ObjectProto))
	for name, v := range map[string]value.Value{
		"undefined":  value.Undef(),
		"NaN":        value.Num(math.NaN()),
		"Infinity":   value.Num(math.Inf(1)),
		"globalThis": value.ObjectRef(vm.Global),
	} {
		vm.Global.DefineOwnProperty(value.NewPropertyKeyFromString(name), object.PropertyDescriptor{
			Value: v, HasValue: true,
			Writable: false, HasWritable: true,
			Enumerable: false, HasEnumerable: true,
			Configurable: false, HasConfigurable: true,
		})
	}
	vm.setupGeneratorProto()
	vm.setupPromiseProto()
	return vm
}

// Object cells are accounted at a flat estimate; spec.md §5's memory
// budget bounds allocation pressure, not exact byte counts.
const objectCellSize = 128

// track registers o with the heap for GC tracing and memory-budget
// accounting; failure is spec.md §7's non-catchable out-of-memory,
// propagated as a plain Go error past every handler table.
func (vm *VM) track(o *object.Object) (*object.Object, error) {
	cell, err := vm.Heap.Alloc(o, objectCellSize)
	if err != nil {
		return nil, err
	}
	o.Cell = cell
	return o, nil
}

// trackLoose registers o when the budget allows and carries on
// untracked otherwise — for engine-internal helper objects (iteration
// results, promise capabilities, error values mid-throw) whose
// allocation sites have no error channel worth threading. The
// script-driven allocation opcodes all use track and do enforce the
// budget.
func (vm *VM) trackLoose(o *object.Object) *object.Object {
	if cell, err := vm.Heap.Alloc(o, objectCellSize); err == nil {
		o.Cell = cell
	}
	return o
}

// Track is trackLoose for callers outside this package: host code
// building a script-visible object (an error value, a descriptor
// reflection object) registers it for tracing without rooting it —
// its lifetime is the script's business, not the host's.
func (vm *VM) Track(o *object.Object) *object.Object { return vm.trackLoose(o) }

// Adopt is trackLoose plus rooting: for realm fixtures (prototypes,
// intrinsic functions, the global object) and embedder-held values,
// which spec.md §9 requires be registered through a rooted handle.
func (vm *VM) Adopt(o *object.Object) *object.Object {
	if cell, err := vm.Heap.Alloc(o, objectCellSize); err == nil {
		o.Cell = cell
		vm.roots = append(vm.roots, vm.Heap.Root(cell))
	}
	return o
}

// Collect runs one stop-the-world mark-sweep pass over the realm's
// heap. Only rooted fixtures (and everything reachable from them,
// notably the whole global-object graph) survive; call it between
// runs — the registers of a live or suspended frame are not roots.
func (vm *VM) Collect() int { return vm.Heap.Collect() }

func (vm *VM) newError(kind, message string) value.Value {
	proto := vm.errorProtos[kind]
	if proto == nil {
		proto = vm.ErrorProto
	}
	o := vm.trackLoose(object.NewWithKind(proto, object.KindError))
	o.Name = kind
	object.CreateDataProperty(o, value.NewPropertyKeyFromString("message"), value.Str(message))
	return value.ObjectRef(o)
}

// NewError is the exported form of newError, for the embedding
// package's global "Error"/"TypeError"/... constructors to build
// language-visible error objects without reaching into this package's
// unexported prototype table.
func (vm *VM) NewError(kind, message string) value.Value {
	return vm.newError(kind, message)
}

// ErrorPrototype returns the prototype object for one of the standard
// error kinds ("TypeError", "RangeError", ...), or the base
// Error.prototype for an unrecognized kind — the prototype an
// embedder-built constructor function's `.prototype` property should
// point at.
func (vm *VM) ErrorPrototype(kind string) *object.Object {
	if proto := vm.errorProtos[kind]; proto != nil {
		return proto
	}
	return vm.ErrorProto
}

// throwError builds a Thrown carrying the current shadow-stack
// backtrace (SPEC_FULL §6/§7), the form every throwXError helper below
// should use instead of the bare throwValue.
func (vm *VM) throwError(kind, format string, args ...any) error {
	v := vm.newError(kind, fmt.Sprintf(format, args...))
	return &Thrown{Value: v, Backtrace: vm.Backtrace()}
}

// --- Frame -------------------------------------------------------------

// Frame is one activation of a CodeBlock: its register file, the
// innermost active lexical environment, and the bookkeeping needed to
// resume a suspended generator/async frame later (pc and scopeDepth are
// read and written in place by runFrame, so a yield/await simply
// returns out of the dispatch loop leaving them exactly where the next
// resume should continue).
type Frame struct {
	cb   *bytecode.CodeBlock
	pc   int
	regs []value.Value

	// env is the innermost active declarative scope; envBase is what it
	// was when this frame began (the captured closure environment),
	// used together with scopeDepth to know how far OpPopScope (or an
	// exception unwind) can walk before leaving this frame's own scopes.
	env        *environment.Env
	envBase    *environment.Env
	scopeDepth int

	this      value.Value
	newTarget *object.Object
	args      []value.Value

	pendingYieldDst int32
}

func newFrame(cb *bytecode.CodeBlock, closureEnv *environment.Env, this value.Value, newTarget *object.Object, args []value.Value) *Frame {
	regs := make([]value.Value, cb.RegisterCount+1)
	for i := range regs {
		regs[i] = value.Undef()
	}
	n := len(args)
	if n > len(regs) {
		n = len(regs)
	}
	copy(regs, args[:n])
	return &Frame{
		cb: cb, regs: regs,
		env: closureEnv, envBase: closureEnv,
		this: this, newTarget: newTarget, args: args,
	}
}

// --- closures ------------------------------------------------------------

// MakeClosure wraps cb as a callable (and, unless it's a generator/async
// function, constructable) function object capturing closureEnv — the
// environment chain current at the moment OpNewFunction executes, per
// spec.md §4.3's "a function value closes over the environment active
// at its creation point."
func (vm *VM) MakeClosure(cb *bytecode.CodeBlock, closureEnv *environment.Env) (*object.Object, error) {
	call := func(this value.Value, args []value.Value) (value.Value, error) {
		return vm.invokeCall(cb, closureEnv, this, args)
	}
	var construct object.ConstructFn
	if !cb.IsGenerator && !cb.IsAsync {
		construct = func(args []value.Value, newTarget *object.Object) (value.Value, error) {
			return vm.invokeConstruct(cb, closureEnv, newTarget, args)
		}
	}
	fnObj, err := vm.track(object.NewFunction(vm.FunctionProto, cb.Name, cb.ParamCount, call, construct))
	if err != nil {
		return nil, err
	}
	if construct != nil {
		protoObj, err := vm.track(object.New(vm.ObjectProto))
		if err != nil {
			return nil, err
		}
		object.CreateDataProperty(protoObj, value.NewPropertyKeyFromString("constructor"), value.ObjectRef(fnObj))
		object.CreateDataProperty(fnObj, value.NewPropertyKeyFromString("prototype"), value.ObjectRef(protoObj))
	}
	return fnObj, nil
}

func (vm *VM) invokeCall(cb *bytecode.CodeBlock, closureEnv *environment.Env, this value.Value, args []value.Value) (value.Value, error) {
	if cb.IsGenerator {
		gen, err := vm.newGenerator(cb, closureEnv, this, args)
		if err != nil {
			return value.Undef(), err
		}
		return value.ObjectRef(gen), nil
	}
	fr := newFrame(cb, closureEnv, this, nil, args)
	if cb.IsAsync {
		return vm.runAsync(fr)
	}
	vm.pushFrame(cb.Name)
	defer vm.popFrame()
	result, err := vm.runFrame(fr)
	if err != nil {
		return value.Undef(), err
	}
	return result.value, nil
}

func (vm *VM) invokeConstruct(cb *bytecode.CodeBlock, closureEnv *environment.Env, newTarget *object.Object, args []value.Value) (value.Value, error) {
	protoVal, _ := newTarget.Get(value.NewPropertyKeyFromString("prototype"), value.ObjectRef(newTarget))
	instProto := vm.ObjectProto
	if protoVal.IsObject() {
		if p, ok := protoVal.AsObject().(*object.Object); ok {
			instProto = p
		}
	}
	inst, err := vm.track(object.New(instProto))
	if err != nil {
		return value.Undef(), err
	}
	thisVal := value.ObjectRef(inst)
	fr := newFrame(cb, closureEnv, thisVal, newTarget, args)
	vm.pushFrame("new " + cb.Name)
	defer vm.popFrame()
	result, err := vm.runFrame(fr)
	if err != nil {
		return value.Undef(), err
	}
	if result.value.IsObject() {
		return result.value, nil
	}
	return thisVal, nil
}

// CallValue / ConstructValue are the public entry points used by
// OpCall/OpConstruct (and anything outside this package invoking a
// function value, e.g. a module's top-level await driving a promise
// callback): callee must be an *object.Object, checked callable/
// constructable per spec.md §4.5's internal-method table.
func (vm *VM) CallValue(callee value.Value, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asObject(callee)
	if !ok || !o.IsCallable() {
		return value.Undef(), throwTypeError(vm, "value is not a function")
	}
	return o.Call(this, args)
}

func (vm *VM) ConstructValue(callee value.Value, args []value.Value) (value.Value, error) {
	o, ok := asObject(callee)
	if !ok || !o.IsConstructor() {
		return value.Undef(), throwTypeError(vm, "value is not a constructor")
	}
	return o.Construct(args, o)
}

func asObject(v value.Value) (*object.Object, bool) {
	if !v.IsObject() {
		return nil, false
	}
	o, ok := v.AsObject().(*object.Object)
	return o, ok
}

// --- top level -------------------------------------------------------------

// RunScript executes a script-level CodeBlock (spec.md §4.2's top-level
// Compile output) with `this` as undefined and the global object as the
// sole outer scope (global bindings resolve via OpGetGlobal/OpSetGlobal
// rather than through any Env — see internal/compiler's design notes).
func (vm *VM) RunScript(cb *bytecode.CodeBlock) (value.Value, error) {
	fr := newFrame(cb, nil, value.Undef(), nil, nil)
	result, err := vm.runFrame(fr)
	if err != nil {
		return value.Undef(), err
	}
	return result.value, nil
}

// --- dispatch loop control-flow signal --------------------------------

type signalKind uint8

const (
	sigReturn signalKind = iota
	sigYield
	sigAwait
)

type frameResult struct {
	kind  signalKind
	value value.Value
}

// runFrame is the dispatch loop: it walks fr.cb.Code from fr.pc,
// mutating fr.pc/fr.regs/fr.env in place so a yield/await can return
// control to the caller mid-function and a later resume just calls
// this again with the same *Frame.
func (vm *VM) runFrame(fr *Frame) (frameResult, error) {
	cb := fr.cb
	for {
		if fr.pc >= len(cb.Code) {
			return frameResult{kind: sigReturn, value: value.Undef()}, nil
		}
		instr := cb.Code[fr.pc]
		fr.pc++

		if vm.InstructionBudget != 0 {
			vm.Spent++
			if vm.Spent > vm.InstructionBudget {
				return frameResult{}, ErrBudgetExceeded
			}
		}

		res, err := vm.step(fr, instr)
		if err != nil {
			handled, herr := vm.handleThrow(fr, err)
			if herr != nil {
				return frameResult{}, herr
			}
			if !handled {
				return frameResult{}, err
			}
			continue
		}
		if res != nil {
			return *res, nil
		}
	}
}

// handleThrow looks up a handler for the instruction that just raised
// err (fr.pc already points one past it), unwinds fr.env/fr.scopeDepth
// to the handler's recorded depth, writes the thrown value into its
// pending register, and jumps fr.pc there. ok is false when no handler
// in this frame covers the current pc, meaning err must propagate to
// the caller (a Go-level return from runFrame).
func (vm *VM) handleThrow(fr *Frame, err error) (bool, error) {
	thrown, ok := err.(*Thrown)
	if !ok {
		return false, nil
	}
	handler, ok := fr.cb.HandlerFor(fr.pc - 1)
	if !ok {
		return false, nil
	}
	for fr.scopeDepth > handler.EnvDepth {
		fr.env = fr.env.Parent()
		fr.scopeDepth--
	}
	fr.regs[handler.PendingReg] = thrown.Value
	fr.pc = handler.HandlerPC
	return true, nil
}

// step executes one instruction, returning a non-nil *frameResult only
// when the frame is done (return) or suspended (yield/await).
func (vm *VM) step(fr *Frame, instr bytecode.Instr) (*frameResult, error) {
	cb := fr.cb
	regs := fr.regs

	switch instr.Op {
	case bytecode.OpNop:

	case bytecode.OpLoadConst:
		regs[instr.A] = cb.Consts[instr.B]
	case bytecode.OpLoadUndefined:
		regs[instr.A] = value.Undef()
	case bytecode.OpLoadNull:
		regs[instr.A] = value.Nul()
	case bytecode.OpLoadBool:
		regs[instr.A] = value.Bool(instr.B != 0)
	case bytecode.OpMove:
		regs[instr.A] = regs[instr.B]

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpPow,
		bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShl, bytecode.OpShr, bytecode.OpUShr:
		v, err := vm.binaryOp(instr.Op, regs[instr.B], regs[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v

	case bytecode.OpNeg:
		n, err := vm.toNumber(regs[instr.B])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.Num(-n)
	case bytecode.OpPlus:
		n, err := vm.toNumber(regs[instr.B])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.Num(n)
	case bytecode.OpLogicalNot:
		regs[instr.A] = value.Bool(!regs[instr.B].ToBoolean())
	case bytecode.OpBitNot:
		n, err := vm.toInt32(regs[instr.B])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.Num(float64(^n))
	case bytecode.OpTypeof:
		regs[instr.A] = value.Str(vm.typeOf(regs[instr.B]))
	case bytecode.OpInc, bytecode.OpDec:
		old, err := vm.toNumber(regs[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.B] = value.Num(old)
		delta := 1.0
		if instr.Op == bytecode.OpDec {
			delta = -1.0
		}
		regs[instr.A] = value.Num(old + delta)

	case bytecode.OpEq:
		eq, err := vm.abstractEquals(regs[instr.B], regs[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.Bool(eq)
	case bytecode.OpNeq:
		eq, err := vm.abstractEquals(regs[instr.B], regs[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.Bool(!eq)
	case bytecode.OpStrictEq:
		regs[instr.A] = value.Bool(value.StrictEquals(regs[instr.B], regs[instr.C]))
	case bytecode.OpStrictNeq:
		regs[instr.A] = value.Bool(!value.StrictEquals(regs[instr.B], regs[instr.C]))
	case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		v, err := vm.relational(instr.Op, regs[instr.B], regs[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v
	case bytecode.OpInstanceOf:
		v, err := vm.instanceOf(regs[instr.B], regs[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.Bool(v)
	case bytecode.OpIn:
		v, err := vm.inOperator(regs[instr.B], regs[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.Bool(v)

	case bytecode.OpJump:
		fr.pc = int(instr.A)
	case bytecode.OpJumpIfFalse:
		if !regs[instr.A].ToBoolean() {
			fr.pc = int(instr.B)
		}
	case bytecode.OpJumpIfTrue:
		if regs[instr.A].ToBoolean() {
			fr.pc = int(instr.B)
		}
	case bytecode.OpJumpIfNullish:
		if regs[instr.A].IsNullish() {
			fr.pc = int(instr.B)
		}

	case bytecode.OpDeclareBinding:
		loc := cb.Locators[instr.A]
		if loc.Mutable {
			fr.env.CreateMutableBinding(loc.Name)
		} else {
			fr.env.CreateImmutableBinding(loc.Name)
		}
	case bytecode.OpGetBinding:
		loc := cb.Locators[instr.B]
		v, err := environment.GetBinding(fr.env, loc)
		if err != nil {
			return nil, throwReferenceError(vm, "%s is not defined", loc.Name)
		}
		regs[instr.A] = v
	case bytecode.OpSetBinding:
		loc := cb.Locators[instr.A]
		if err := environment.SetBinding(fr.env, loc, regs[instr.B]); err != nil {
			return nil, throwTypeError(vm, "assignment to constant variable '%s'", loc.Name)
		}
	case bytecode.OpInitBinding:
		loc := cb.Locators[instr.A]
		target := environment.Resolve(fr.env, loc)
		target.InitializeBindingAt(loc.Slot, regs[instr.B])
	case bytecode.OpGetGlobal:
		name := cb.Names[instr.B]
		key := value.NewPropertyKeyFromString(name)
		if !vm.Global.HasProperty(key) {
			return nil, throwReferenceError(vm, "%s is not defined", name)
		}
		v, err := vm.Global.Get(key, value.ObjectRef(vm.Global))
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v
	case bytecode.OpSetGlobal:
		name := cb.Names[instr.A]
		_, err := vm.Global.Set(value.NewPropertyKeyFromString(name), regs[instr.B], vm.Global)
		if err != nil {
			return nil, err
		}
	case bytecode.OpTypeofGlobal:
		key := value.NewPropertyKeyFromString(cb.Names[instr.B])
		if !vm.Global.HasProperty(key) {
			regs[instr.A] = value.Str("undefined")
		} else {
			v, err := vm.Global.Get(key, value.ObjectRef(vm.Global))
			if err != nil {
				return nil, err
			}
			regs[instr.A] = value.Str(vm.typeOf(v))
		}

	case bytecode.OpNewObject:
		o, err := vm.track(object.New(vm.ObjectProto))
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.ObjectRef(o)
	case bytecode.OpNewArray:
		arr, err := vm.track(object.NewArray(vm.ArrayProto, nil))
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.ObjectRef(arr)
	case bytecode.OpArrayPush:
		arr, _ := asObject(regs[instr.A])
		length := arrayLen(arr)
		object.CreateDataProperty(arr, value.NewPropertyKeyIndex(length), regs[instr.B])
	case bytecode.OpRestArgs:
		from := int(instr.B)
		var rest []value.Value
		if from < len(fr.args) {
			rest = fr.args[from:]
		}
		arr, err := vm.track(object.NewArray(vm.ArrayProto, rest))
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.ObjectRef(arr)

	case bytecode.OpGetProp:
		v, err := vm.getProp(regs[instr.B], cb.Names[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v
	case bytecode.OpSetProp:
		if err := vm.setProp(regs[instr.A], cb.Names[instr.B], regs[instr.C], cb.Strict); err != nil {
			return nil, err
		}
	case bytecode.OpGetPropComputed:
		v, err := vm.getPropComputed(regs[instr.B], regs[instr.C])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v
	case bytecode.OpSetPropComputed:
		if err := vm.setPropComputed(regs[instr.A], regs[instr.B], regs[instr.C], cb.Strict); err != nil {
			return nil, err
		}
	case bytecode.OpDeleteProp:
		o, ok := asObject(regs[instr.B])
		if !ok {
			regs[instr.A] = value.Bool(true)
		} else {
			ok2, err := o.Delete(value.NewPropertyKeyFromString(cb.Names[instr.C]))
			if err != nil {
				return nil, err
			}
			regs[instr.A] = value.Bool(ok2)
		}
	case bytecode.OpDeletePropComputed:
		o, ok := asObject(regs[instr.B])
		if !ok {
			regs[instr.A] = value.Bool(true)
		} else {
			ok2, err := o.Delete(value.ToPropertyKey(regs[instr.C]))
			if err != nil {
				return nil, err
			}
			regs[instr.A] = value.Bool(ok2)
		}
	case bytecode.OpDefineGetter, bytecode.OpDefineSetter:
		o, ok := asObject(regs[instr.A])
		if !ok {
			return nil, throwTypeError(vm, "cannot define accessor on a non-object")
		}
		fn, _ := asObject(regs[instr.C])
		key := value.NewPropertyKeyFromString(cb.Names[instr.B])
		existing, _ := o.GetOwnPropertyDescriptorOrZero(key)
		desc := object.PropertyDescriptor{Enumerable: true, HasEnumerable: true, Configurable: true, HasConfigurable: true}
		if instr.Op == bytecode.OpDefineGetter {
			desc.Get, desc.HasGet = fn, true
			desc.Set, desc.HasSet = existing.Set, existing.HasSet
		} else {
			desc.Set, desc.HasSet = fn, true
			desc.Get, desc.HasGet = existing.Get, existing.HasGet
		}
		if _, err := o.DefineOwnProperty(key, desc); err != nil {
			return nil, err
		}

	case bytecode.OpNewFunction:
		fn, err := vm.MakeClosure(cb.Inner[instr.B], fr.env)
		if err != nil {
			return nil, err
		}
		regs[instr.A] = value.ObjectRef(fn)

	case bytecode.OpCall:
		v, err := vm.doCall(fr, instr)
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v
	case bytecode.OpCallSpread:
		v, err := vm.doCallSpread(fr, instr)
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v
	case bytecode.OpConstruct:
		v, err := vm.doConstruct(fr, instr)
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v
	case bytecode.OpConstructSpread:
		v, err := vm.doConstructSpread(fr, instr)
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v

	case bytecode.OpReturn:
		return &frameResult{kind: sigReturn, value: regs[instr.A]}, nil
	case bytecode.OpThrow:
		return nil, throwValue(regs[instr.A])

	case bytecode.OpGetIterator:
		v, err := vm.getIterator(regs[instr.B])
		if err != nil {
			return nil, err
		}
		regs[instr.A] = v
	case bytecode.OpGetForInIterator:
		regs[instr.A] = vm.getForInIterator(regs[instr.B])
	case bytecode.OpIteratorNext:
		if err := vm.iteratorAdvance(regs[instr.A]); err != nil {
			return nil, err
		}
	case bytecode.OpIteratorValue:
		regs[instr.A] = vm.iteratorCurrentValue(regs[instr.B])
	case bytecode.OpIteratorDone:
		regs[instr.A] = value.Bool(vm.iteratorCurrentDone(regs[instr.B]))
	case bytecode.OpIteratorClose:
		vm.iteratorClose(regs[instr.A])

	case bytecode.OpYield:
		fr.pendingYieldDst = instr.A
		val := regs[instr.B]
		if instr.C != 0 {
			// yield* delegation: the compiler forwards a single value
			// through the same OpYield as a non-delegating yield;
			// full iterator-delegation semantics (forwarding next()'s
			// argument, propagating return()/throw()) are not modeled.
			val = vm.iteratorCurrentValue(val)
		}
		return &frameResult{kind: sigYield, value: val}, nil
	case bytecode.OpAwait:
		fr.pendingYieldDst = instr.A
		return &frameResult{kind: sigAwait, value: regs[instr.B]}, nil

	case bytecode.OpThis:
		regs[instr.A] = fr.this
	case bytecode.OpNewTarget:
		if fr.newTarget != nil {
			regs[instr.A] = value.ObjectRef(fr.newTarget)
		} else {
			regs[instr.A] = value.Undef()
		}
	case bytecode.OpSetPrototype:
		target, ok := asObject(regs[instr.A])
		if !ok {
			return nil, nil
		}
		var proto *object.Object
		if p, ok := asObject(regs[instr.B]); ok {
			proto = p
		}
		target.SetPrototypeOf(proto)

	case bytecode.OpPushScope:
		env, err := environment.NewDeclarative(vm.Heap, fr.env)
		if err != nil {
			return nil, err
		}
		fr.env = env
		fr.scopeDepth++
	case bytecode.OpPopScope:
		fr.env = fr.env.Parent()
		fr.scopeDepth--

	default:
		return nil, fmt.Errorf("vm: unimplemented opcode %s", instr.Op)
	}
	return nil, nil
}

func arrayLen(arr *object.Object) uint32 {
	d, ok := arr.GetOwnProperty(value.NewPropertyKeyFromString("length"))
	if !ok {
		return 0
	}
	return uint32(d.Value.AsNumber())
}

// --- call/construct instruction handlers --------------------------------

func (vm *VM) doCall(fr *Frame, instr bytecode.Instr) (value.Value, error) {
	calleeVal := fr.regs[instr.B]
	callee, ok := asObject(calleeVal)
	if !ok || !callee.IsCallable() {
		return value.Undef(), throwTypeError(vm, "value is not a function")
	}
	argsStart := instr.C
	argc := instr.D
	thisVal := fr.regs[argsStart-1]
	args := make([]value.Value, argc)
	copy(args, fr.regs[argsStart:argsStart+argc])
	return callee.Call(thisVal, args)
}

func (vm *VM) doCallSpread(fr *Frame, instr bytecode.Instr) (value.Value, error) {
	calleeVal := fr.regs[instr.B]
	callee, ok := asObject(calleeVal)
	if !ok || !callee.IsCallable() {
		return value.Undef(), throwTypeError(vm, "value is not a function")
	}
	thisVal := fr.regs[instr.C]
	argsArr, _ := asObject(fr.regs[instr.D])
	args := elementsOf(argsArr)
	return callee.Call(thisVal, args)
}

func (vm *VM) doConstruct(fr *Frame, instr bytecode.Instr) (value.Value, error) {
	calleeVal := fr.regs[instr.B]
	callee, ok := asObject(calleeVal)
	if !ok || !callee.IsConstructor() {
		return value.Undef(), throwTypeError(vm, "value is not a constructor")
	}
	argsStart := instr.C
	argc := instr.D
	args := make([]value.Value, argc)
	copy(args, fr.regs[argsStart:argsStart+argc])
	return callee.Construct(args, callee)
}

func (vm *VM) doConstructSpread(fr *Frame, instr bytecode.Instr) (value.Value, error) {
	calleeVal := fr.regs[instr.B]
	callee, ok := asObject(calleeVal)
	if !ok || !callee.IsConstructor() {
		return value.Undef(), throwTypeError(vm, "value is not a constructor")
	}
	argsArr, _ := asObject(fr.regs[instr.C])
	args := elementsOf(argsArr)
	return callee.Construct(args, callee)
}

func elementsOf(arr *object.Object) []value.Value {
	if arr == nil {
		return nil
	}
	n := arrayLen(arr)
	out := make([]value.Value, n)
	for i := uint32(0); i < n; i++ {
		v, _ := arr.Get(value.NewPropertyKeyIndex(i), value.ObjectRef(arr))
		out[i] = v
	}
	return out
}

// --- property access helpers (shared with operators.go's ToPrimitive) ----

func (vm *VM) getProp(base value.Value, name string) (value.Value, error) {
	return vm.getPropComputed(base, value.Str(name))
}

func (vm *VM) getPropComputed(base value.Value, keyVal value.Value) (value.Value, error) {
	keyVal, err := vm.coerceKey(keyVal)
	if err != nil {
		return value.Undef(), err
	}
	key := value.ToPropertyKey(keyVal)
	switch {
	case base.IsObject():
		o, _ := asObject(base)
		return o.Get(key, base)
	case base.IsString():
		s := base.AsString()
		if key.IsString() && key.StringVal() == "length" {
			return value.Num(float64(s.Len())), nil
		}
		if key.IsIndex() {
			idx := int(key.Index())
			units := s.Units()
			if idx >= 0 && idx < len(units) {
				return value.StrVal(stringFromUTF16(units[idx : idx+1])), nil
			}
		}
		return value.Undef(), nil
	case base.IsNullish():
		return value.Undef(), throwTypeError(vm, "cannot read properties of %s", base.Type())
	default:
		return value.Undef(), nil
	}
}

// coerceKey stringifies an object used as a computed property key via
// ToPrimitive; primitives (including symbols) pass through for
// ToPropertyKey to classify.
func (vm *VM) coerceKey(keyVal value.Value) (value.Value, error) {
	if !keyVal.IsObject() {
		return keyVal, nil
	}
	s, err := vm.toStringValue(keyVal)
	if err != nil {
		return value.Undef(), err
	}
	return value.StrVal(s), nil
}

func (vm *VM) setProp(base value.Value, name string, v value.Value, strict bool) error {
	return vm.setPropComputed(base, value.Str(name), v, strict)
}

func (vm *VM) setPropComputed(base value.Value, keyVal value.Value, v value.Value, strict bool) error {
	if base.IsNullish() {
		return throwTypeError(vm, "cannot set properties of %s", base.Type())
	}
	o, ok := asObject(base)
	if !ok {
		if strict {
			return throwTypeError(vm, "cannot create property on a primitive")
		}
		return nil // primitives silently discard property writes in sloppy mode
	}
	keyVal, err := vm.coerceKey(keyVal)
	if err != nil {
		return err
	}
	key := value.ToPropertyKey(keyVal)
	ok, err = o.Set(key, v, o)
	if err != nil {
		return err
	}
	if !ok && strict {
		return throwTypeError(vm, "cannot assign to read only property '%s'", key)
	}
	return nil
}

func (vm *VM) instanceOf(a, b value.Value) (bool, error) {
	ctor, ok := asObject(b)
	if !ok || !ctor.IsConstructor() {
		return false, throwTypeError(vm, "right-hand side of 'instanceof' is not callable")
	}
	protoVal, err := ctor.Get(value.NewPropertyKeyFromString("prototype"), b)
	if err != nil {
		return false, err
	}
	proto, ok := asObject(protoVal)
	if !ok {
		return false, throwTypeError(vm, "function has non-object prototype")
	}
	inst, ok := asObject(a)
	if !ok {
		return false, nil
	}
	for p := inst.GetPrototypeOf(); p != nil; p = p.GetPrototypeOf() {
		if p == proto {
			return true, nil
		}
	}
	return false, nil
}

func (vm *VM) inOperator(a, b value.Value) (bool, error) {
	o, ok := asObject(b)
	if !ok {
		return false, throwTypeError(vm, "cannot use 'in' operator on a non-object")
	}
	return o.HasProperty(value.ToPropertyKey(a)), nil
}

func displayValue(v value.Value) string {
	switch {
	case v.IsUndefined():
		return "undefined"
	case v.IsNull():
		return "null"
	case v.IsString():
		return v.AsString().Go()
	case v.IsNumber():
		return value.ToNumberString(v.AsNumber())
	case v.IsBoolean():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsObject():
		return "[object]"
	default:
		return "?"
	}
}
