// Generator suspension: spec.md §4.4/§9's "snapshot the interpreter's
// own data stack and frame at suspension, reinstall on resume" model.
// A genState just holds the paused *Frame; resumeGenerator re-enters
// runFrame exactly where OpYield left off, since fr.pc/fr.regs/fr.env
// are already sitting at the right place — no separate continuation
// representation is needed.
package vm

import (
	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/environment"
	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

type resumeKind uint8

const (
	resumeNormal resumeKind = iota
	resumeThrow
	resumeReturn
)

type genState struct {
	fr      *Frame
	done    bool
	yielded bool

	// lastValue/lastDone cache the most recent IteratorNext result so
	// the for-of opcodes (which read iterator state out-of-band from
	// the resume call that produced it) can see it.
	lastValue value.Value
	lastDone  bool
}

// newGenerator builds the generator object a generator-function call
// returns instead of running its body immediately (spec.md §4.4:
// "every yield emits Generator.Yield which returns control to the
// caller of Generator.resume").
func (vm *VM) newGenerator(cb *bytecode.CodeBlock, closureEnv *environment.Env, this value.Value, args []value.Value) (*object.Object, error) {
	obj, err := vm.track(object.NewWithKind(vm.GeneratorProto, object.KindGenerator))
	if err != nil {
		return nil, err
	}
	fr := newFrame(cb, closureEnv, this, nil, args)
	vm.genStates[obj] = &genState{fr: fr, lastValue: value.Undef()}
	return obj, nil
}

// resumeGenerator implements Generator.resume(value, kind): kind ∈
// {normal, throw, return} per spec.md §4.4. The very first resume
// discards its argument (spec.md §8's invariant: "the first call to
// G.next(V) discards V").
func (vm *VM) resumeGenerator(obj *object.Object, kind resumeKind, v value.Value) (value.Value, bool, error) {
	st, ok := vm.genStates[obj]
	if !ok || st.done {
		if kind == resumeThrow {
			return value.Undef(), true, throwValue(v)
		}
		if kind == resumeReturn {
			return v, true, nil
		}
		return value.Undef(), true, nil
	}

	fr := st.fr
	if st.yielded {
		switch kind {
		case resumeNormal:
			fr.regs[fr.pendingYieldDst] = v
		case resumeReturn:
			st.done = true
			return v, true, nil
		case resumeThrow:
			handled, herr := vm.handleThrow(fr, &Thrown{Value: v})
			if herr != nil {
				st.done = true
				return value.Undef(), true, herr
			}
			if !handled {
				st.done = true
				return value.Undef(), true, &Thrown{Value: v}
			}
		}
	} else {
		switch kind {
		case resumeReturn:
			st.done = true
			return v, true, nil
		case resumeThrow:
			st.done = true
			return value.Undef(), true, &Thrown{Value: v}
		}
	}

	res, err := vm.runFrame(fr)
	if err != nil {
		st.done = true
		return value.Undef(), true, err
	}
	switch res.kind {
	case sigYield:
		st.yielded = true
		return res.value, false, nil
	default:
		st.done = true
		return res.value, true, nil
	}
}

func (vm *VM) iterResultObject(v value.Value, done bool) value.Value {
	o := vm.trackLoose(object.New(vm.ObjectProto))
	object.CreateDataProperty(o, value.NewPropertyKeyFromString("value"), v)
	object.CreateDataProperty(o, value.NewPropertyKeyFromString("done"), value.Bool(done))
	return value.ObjectRef(o)
}

// setupGeneratorProto installs next/throw/return on the shared
// GeneratorProto once at VM construction, each dispatching through
// `this` to the calling generator's own genState rather than needing a
// per-instance closure.
func (vm *VM) setupGeneratorProto() {
	method := func(name string, kind resumeKind) {
		fn := func(this value.Value, args []value.Value) (value.Value, error) {
			obj, ok := asObject(this)
			if !ok {
				return value.Undef(), throwTypeError(vm, "%s called on a non-generator", name)
			}
			arg := value.Undef()
			if len(args) > 0 {
				arg = args[0]
			}
			v, done, err := vm.resumeGenerator(obj, kind, arg)
			if err != nil {
				return value.Undef(), err
			}
			return vm.iterResultObject(v, done), nil
		}
		f := vm.Adopt(object.NewFunction(vm.FunctionProto, name, 1, fn, nil))
		object.CreateDataProperty(vm.GeneratorProto, value.NewPropertyKeyFromString(name), value.ObjectRef(f))
	}
	method("next", resumeNormal)
	method("throw", resumeThrow)
	method("return", resumeReturn)
}
