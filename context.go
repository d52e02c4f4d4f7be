// Package esengine is the public embedding surface of this repository:
// spec.md §6's context handle, tying together the front end
// (internal/lexer via internal/parser), the bytecode compiler
// (internal/compiler), the virtual machine (internal/vm), and the
// module graph (internal/module) behind the operations an embedder
// drives — RunScript, RunModule, Call, value construction, host
// function/module-loader registration, global bindings, and
// microtask draining.
//
// Grounded on spec.md §6 directly: the teacher has no embeddable-
// library entry point of its own to generalize from (morfx is driven
// only as a CLI/MCP server), so this package's shape instead follows
// cmd/morfx/main.go's "build a config once, then drive one pipeline
// object for the whole run" idiom, applied to a long-lived handle
// instead of a single process invocation.
package esengine

import (
	"fmt"

	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/compiler"
	"github.com/oxhq/esengine/internal/config"
	"github.com/oxhq/esengine/internal/diagnostics"
	"github.com/oxhq/esengine/internal/gc"
	"github.com/oxhq/esengine/internal/jserrors"
	"github.com/oxhq/esengine/internal/logging"
	"github.com/oxhq/esengine/internal/module"
	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/parser"
	"github.com/oxhq/esengine/internal/token"
	"github.com/oxhq/esengine/internal/value"
	"github.com/oxhq/esengine/internal/vm"
)

// Context is one realm (spec.md §2's "process-wide init of intrinsics
// and global bindings"): a single VM/heap, a single atom interner
// (every CodeBlock a Context compiles must share it — atoms from one
// interner are meaningless against another), and the optional
// diagnostics/module-loader integrations an embedder wires in.
//
// A Context must not be shared across OS threads (spec.md §5); the
// host may run independent Contexts concurrently in separate
// goroutines/threads.
type Context struct {
	Config *config.Config
	VM     *vm.VM

	interner *token.Interner
	log      *logging.Logger
	diag     *diagnostics.Store
	loader   module.Loader
}

// New creates a Context with a fresh heap, realm intrinsics (§1's
// minimal Object/Error/Promise set), and the limits/diagnostics wiring
// described by cfg. A nil cfg uses config.Default().
func New(cfg *config.Config) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	heapBudget := uintptr(cfg.MemoryBudget)
	v := vm.New(heapBudget)
	v.InstructionBudget = cfg.InstructionBudget
	v.BacktraceDepth = cfg.BacktraceDepth

	ctx := &Context{
		Config:   cfg,
		VM:       v,
		interner: token.NewInterner(),
		log:      logging.Discard(),
	}
	installGlobals(ctx)

	if cfg.DiagnosticsDSN != "" {
		store, err := diagnostics.Open(cfg.DiagnosticsDSN, false)
		if err != nil {
			return nil, fmt.Errorf("esengine: opening diagnostics store: %w", err)
		}
		ctx.diag = store
	}
	return ctx, nil
}

// SetLogger replaces the Context's diagnostic sink (default: discard).
// cmd/esrun wires a real one when its -verbose flag is set.
func (c *Context) SetLogger(l *logging.Logger) { c.log = l }

// Close releases the Context's external resources (currently, only the
// optional diagnostics store's database handle).
func (c *Context) Close() error {
	if c.diag != nil {
		return c.diag.Close()
	}
	return nil
}

// RegisterModuleLoader installs the Loader internal/module's Graph
// uses to resolve and read a module's source text, per spec.md §6's
// "Register module loader" operation. Passing a *module.FileLoader
// wires the concrete filesystem policy of §6; any other Loader
// implementation is equally valid (e.g. one backed by an in-memory
// map for embedded/bundled scripts).
func (c *Context) RegisterModuleLoader(loader module.Loader) {
	c.loader = loader
}

// RegisterHostFunction installs a native function under name on the
// global object, per spec.md §6's "Register host function" operation:
// fn receives the call's arguments and returns a result or a raised
// error (wrap a jserrors.Error, or any error — both surface to script
// as a catchable exception via the normal Thrown plumbing).
func (c *Context) RegisterHostFunction(name string, arity int, fn func(this value.Value, args []value.Value) (value.Value, error)) {
	f := c.VM.Adopt(object.NewFunction(c.VM.FunctionProto, name, arity, fn, nil))
	object.CreateDataProperty(c.VM.Global, value.NewPropertyKeyFromString(name), value.ObjectRef(f))
}

// SetGlobal/GetGlobal implement spec.md §6's "Global binding
// operations": direct reads/writes of a named property on the realm's
// global object, bypassing the compiled-script binding-resolution path
// entirely (an embedder calling these is not subject to strict-mode
// assignment checks — it is host code, not script code).
func (c *Context) SetGlobal(name string, v value.Value) {
	object.CreateDataProperty(c.VM.Global, value.NewPropertyKeyFromString(name), v)
}

func (c *Context) GetGlobal(name string) (value.Value, bool) {
	key := value.NewPropertyKeyFromString(name)
	if !c.VM.Global.HasProperty(key) {
		return value.Undef(), false
	}
	v, err := c.VM.Global.Get(key, value.ObjectRef(c.VM.Global))
	if err != nil {
		return value.Undef(), false
	}
	return v, true
}

// Call invokes a function value with this/args, per spec.md §6's "Call
// a function value" operation.
func (c *Context) Call(callee, this value.Value, args []value.Value) (value.Value, error) {
	result, err := c.VM.CallValue(callee, this, args)
	return result, c.wrapErr(err)
}

// DrainMicrotasks runs every queued job (promise reactions, per
// spec.md §5) to completion, per §6's "Microtask drain" operation.
func (c *Context) DrainMicrotasks() {
	c.VM.DrainMicrotasks()
}

// --- compile pipeline ------------------------------------------------

func (c *Context) compile(source, specifier string, isModule bool) (*bytecode.CodeBlock, error) {
	prog, err := parser.ParseProgram(source, c.interner, isModule)
	if err != nil {
		return nil, jserrors.New(jserrors.Syntax, fmt.Sprintf("%s: %v", specifier, err))
	}
	cb, err := compiler.New(c.interner, isModule).Compile(prog)
	if err != nil {
		return nil, jserrors.New(jserrors.Syntax, fmt.Sprintf("%s: %v", specifier, err))
	}
	cb.Name = specifier
	return cb, nil
}

// RunScript parses and runs source as a top-level script, per spec.md
// §6's "Parse+run script" operation.
func (c *Context) RunScript(source, filename string) (value.Value, error) {
	c.log.Debug("run script", "file", filename, "bytes", len(source))
	rec := diagnostics.NewRunRecord("script", source, filename)
	cb, err := c.compile(source, filename, false)
	if err != nil {
		c.finishRun(rec, err)
		return value.Undef(), err
	}
	result, err := c.VM.RunScript(cb)
	c.finishRun(rec, err)
	return result, c.wrapErr(err)
}

// RunModule resolves, links, and evaluates the module graph rooted at
// specifier against the registered loader, per spec.md §6's
// "Parse+link+evaluate module" operation. Evaluation order, specifier
// resolution, and cyclic-import tolerance are internal/module.Graph's
// job; this method only supplies the loader and a CompileFunc so that
// package never has to import internal/compiler or internal/parser
// directly.
func (c *Context) RunModule(specifier string) (value.Value, error) {
	if c.loader == nil {
		return value.Undef(), jserrors.New(jserrors.Type, "esengine: no module loader registered")
	}
	c.log.Debug("run module", "specifier", specifier)
	rec := diagnostics.NewRunRecord("module", "", specifier)
	graph := module.NewGraph(c.loader, func(source, spec string) (*bytecode.CodeBlock, error) {
		return c.compile(source, spec, true)
	}, c.VM)
	entry, err := graph.Link(specifier)
	if err != nil {
		c.finishRun(rec, err)
		return value.Undef(), c.wrapErr(err)
	}
	result, err := graph.Evaluate(entry)
	c.finishRun(rec, err)
	return result, c.wrapErr(err)
}

func (c *Context) finishRun(rec *diagnostics.RunRecord, err error) {
	rec.Finish(err == nil, errMessage(err), c.VM.Spent, uint64(c.VM.Heap.Used()))
	if c.diag == nil {
		return
	}
	var backtrace []string
	if thrown, ok := err.(*vm.Thrown); ok {
		backtrace = thrown.Backtrace
	}
	if recErr := c.diag.Record(rec, backtrace); recErr != nil {
		c.log.Warn("diagnostics record failed", "error", recErr)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// wrapErr classifies a VM-surfaced error into spec.md §7's taxonomy:
// ErrBudgetExceeded and gc.ErrOutOfMemory become non-catchable
// jserrors.Fatal sentinels (§7's "three categories of engine failure
// that are not language errors"); a *vm.Thrown carrying a language
// value becomes a jserrors.Error built from that value's own kind/
// message/backtrace so an embedder never has to reach into
// internal/vm itself; any other error is an internal invariant
// violation, also Fatal per §7.
func (c *Context) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case err == vm.ErrBudgetExceeded:
		return jserrors.NewFatal(jserrors.FatalBudgetExceeded, err)
	case err == gc.ErrOutOfMemory:
		return jserrors.NewFatal(jserrors.FatalOutOfMemory, err)
	}
	if thrown, ok := err.(*vm.Thrown); ok {
		return thrownToJSError(thrown)
	}
	if jsErr, ok := err.(*jserrors.Error); ok {
		return jsErr
	}
	return jserrors.NewFatal(jserrors.FatalInvariantViolation, err)
}

// thrownToJSError recovers a jserrors.Kind from a thrown object's
// Error-kind Name field (set by vm.VM.newError for every built-in
// error the VM itself raises); a value thrown directly by script code
// that is not one of the engine's Error objects is §7's User kind,
// passed through unchanged.
func thrownToJSError(t *vm.Thrown) *jserrors.Error {
	kind := jserrors.User
	message := ""
	if o, ok := t.Value.AsObject().(*object.Object); ok && o.Kind() == object.KindError {
		kind = kindFromName(o.Name)
		if msg, err := o.Get(value.NewPropertyKeyFromString("message"), t.Value); err == nil && msg.IsString() {
			message = msg.AsString().Go()
		}
	}
	e := jserrors.New(kind, message)
	e.Backtrace = t.Backtrace
	return e
}

func kindFromName(name string) jserrors.Kind {
	switch name {
	case "TypeError":
		return jserrors.Type
	case "RangeError":
		return jserrors.Range
	case "ReferenceError":
		return jserrors.Reference
	case "SyntaxError":
		return jserrors.Syntax
	case "EvalError":
		return jserrors.Eval
	case "URIError":
		return jserrors.URI
	case "AggregateError":
		return jserrors.Aggregate
	default:
		return jserrors.User
	}
}
