// A minimal Promise (spec.md §9's supplemented-features note, SPEC_FULL
// §"Supplemented features"): resolve/reject/then and the job-queue
// plumbing async/await needs, grounded on spec.md §5's "jobs are
// drained in FIFO order after each synchronous completion" and §4.4's
// "await suspends into a promise reaction" text. Promise.all/any/race
// are explicitly not built (DESIGN.md Open Questions) — out of scope
// per spec.md §1's built-in-library non-goal.
package vm

import (
	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

type promiseStatus uint8

const (
	promisePending promiseStatus = iota
	promiseFulfilled
	promiseRejected
)

type promiseState struct {
	status promiseStatus
	value  value.Value

	onFulfilled []func(value.Value)
	onRejected  []func(value.Value)
}

// NewPromiseCapability creates a pending promise plus the resolve/reject
// functions that settle it, the shape every Promise-producing operation
// (the Promise constructor, async-function return) needs.
func (vm *VM) NewPromiseCapability() (*object.Object, func(value.Value), func(value.Value)) {
	p := vm.trackLoose(object.NewWithKind(vm.PromiseProto, object.KindPromise))
	st := &promiseState{status: promisePending}
	vm.promises[p] = st
	resolve := func(v value.Value) { vm.settlePromise(p, promiseFulfilled, v) }
	reject := func(v value.Value) { vm.settlePromise(p, promiseRejected, v) }
	return p, resolve, reject
}

func (vm *VM) settlePromise(p *object.Object, status promiseStatus, v value.Value) {
	st := vm.promises[p]
	if st == nil || st.status != promisePending {
		return
	}
	// Resolving with a thenable promise adopts its eventual state
	// rather than nesting a promise-in-a-promise.
	if status == promiseFulfilled {
		if inner, ok := asObject(v); ok {
			if innerSt, isProm := vm.promises[inner]; isProm {
				switch innerSt.status {
				case promisePending:
					innerSt.onFulfilled = append(innerSt.onFulfilled, func(iv value.Value) { vm.settlePromise(p, promiseFulfilled, iv) })
					innerSt.onRejected = append(innerSt.onRejected, func(iv value.Value) { vm.settlePromise(p, promiseRejected, iv) })
					return
				case promiseFulfilled:
					v = innerSt.value
				case promiseRejected:
					status, v = promiseRejected, innerSt.value
				}
			}
		}
	}

	st.status = status
	st.value = v
	cbs := st.onFulfilled
	if status == promiseRejected {
		cbs = st.onRejected
	}
	st.onFulfilled, st.onRejected = nil, nil
	for _, cb := range cbs {
		cb := cb
		vm.microtasks = append(vm.microtasks, func() { cb(v) })
	}
}

// PromiseResolve implements Promise.resolve(x): returns x unchanged if
// it is already one of this VM's promises, else a newly fulfilled one.
func (vm *VM) PromiseResolve(v value.Value) *object.Object {
	if o, ok := asObject(v); ok {
		if _, isProm := vm.promises[o]; isProm {
			return o
		}
	}
	p, resolve, _ := vm.NewPromiseCapability()
	resolve(v)
	return p
}

// MakePromiseConstructor builds the `Promise` constructor function a
// realm installs as a global: `new Promise((resolve, reject) => ...)`.
func (vm *VM) MakePromiseConstructor() *object.Object {
	construct := func(args []value.Value, newTarget *object.Object) (value.Value, error) {
		if len(args) == 0 {
			return value.Undef(), throwTypeError(vm, "Promise resolver is not a function")
		}
		executor, ok := asObject(args[0])
		if !ok || !executor.IsCallable() {
			return value.Undef(), throwTypeError(vm, "Promise resolver is not a function")
		}
		p, resolve, reject := vm.NewPromiseCapability()
		resolveFn := vm.trackLoose(object.NewFunction(vm.FunctionProto, "", 1, func(_ value.Value, a []value.Value) (value.Value, error) {
			v := value.Undef()
			if len(a) > 0 {
				v = a[0]
			}
			resolve(v)
			return value.Undef(), nil
		}, nil))
		rejectFn := vm.trackLoose(object.NewFunction(vm.FunctionProto, "", 1, func(_ value.Value, a []value.Value) (value.Value, error) {
			v := value.Undef()
			if len(a) > 0 {
				v = a[0]
			}
			reject(v)
			return value.Undef(), nil
		}, nil))
		if _, err := executor.Call(value.Undef(), []value.Value{value.ObjectRef(resolveFn), value.ObjectRef(rejectFn)}); err != nil {
			if thrown, ok := err.(*Thrown); ok {
				reject(thrown.Value)
			} else {
				reject(value.Str(err.Error()))
			}
		}
		return value.ObjectRef(p), nil
	}
	ctor := vm.Adopt(object.NewFunction(vm.FunctionProto, "Promise", 1, func(value.Value, []value.Value) (value.Value, error) {
		return value.Undef(), throwTypeError(vm, "Promise constructor cannot be invoked without 'new'")
	}, construct))
	object.CreateDataProperty(ctor, value.NewPropertyKeyFromString("prototype"), value.ObjectRef(vm.PromiseProto))
	object.CreateDataProperty(vm.PromiseProto, value.NewPropertyKeyFromString("constructor"), value.ObjectRef(ctor))
	resolveFn := vm.Adopt(object.NewFunction(vm.FunctionProto, "resolve", 1, func(_ value.Value, a []value.Value) (value.Value, error) {
		v := value.Undef()
		if len(a) > 0 {
			v = a[0]
		}
		return value.ObjectRef(vm.PromiseResolve(v)), nil
	}, nil))
	object.CreateDataProperty(ctor, value.NewPropertyKeyFromString("resolve"), value.ObjectRef(resolveFn))
	rejectStaticFn := vm.Adopt(object.NewFunction(vm.FunctionProto, "reject", 1, func(_ value.Value, a []value.Value) (value.Value, error) {
		v := value.Undef()
		if len(a) > 0 {
			v = a[0]
		}
		p, _, reject := vm.NewPromiseCapability()
		reject(v)
		return value.ObjectRef(p), nil
	}, nil))
	object.CreateDataProperty(ctor, value.NewPropertyKeyFromString("reject"), value.ObjectRef(rejectStaticFn))
	return ctor
}

// setupPromiseProto installs `then` (the one combinator spec.md §8
// scenario 6 and §5's job-queue draining actually exercise).
func (vm *VM) setupPromiseProto() {
	then := func(this value.Value, args []value.Value) (value.Value, error) {
		p, ok := asObject(this)
		if !ok {
			return value.Undef(), throwTypeError(vm, "Promise.prototype.then called on a non-promise")
		}
		st, ok := vm.promises[p]
		if !ok {
			return value.Undef(), throwTypeError(vm, "Promise.prototype.then called on a non-promise")
		}
		var onF, onR *object.Object
		if len(args) > 0 {
			onF, _ = asObject(args[0])
		}
		if len(args) > 1 {
			onR, _ = asObject(args[1])
		}
		next, resolveNext, rejectNext := vm.NewPromiseCapability()

		react := func(handler *object.Object, isRejectPath bool) func(value.Value) {
			return func(v value.Value) {
				if handler == nil || !handler.IsCallable() {
					if isRejectPath {
						rejectNext(v)
					} else {
						resolveNext(v)
					}
					return
				}
				res, err := handler.Call(value.Undef(), []value.Value{v})
				if err != nil {
					if thrown, ok := err.(*Thrown); ok {
						rejectNext(thrown.Value)
						return
					}
					rejectNext(value.Str(err.Error()))
					return
				}
				resolveNext(res)
			}
		}
		onFulfilledFn := react(onF, false)
		onRejectedFn := react(onR, true)

		switch st.status {
		case promisePending:
			st.onFulfilled = append(st.onFulfilled, onFulfilledFn)
			st.onRejected = append(st.onRejected, onRejectedFn)
		case promiseFulfilled:
			v := st.value
			vm.microtasks = append(vm.microtasks, func() { onFulfilledFn(v) })
		case promiseRejected:
			v := st.value
			vm.microtasks = append(vm.microtasks, func() { onRejectedFn(v) })
		}
		return value.ObjectRef(next), nil
	}
	f := vm.Adopt(object.NewFunction(vm.FunctionProto, "then", 2, then, nil))
	object.CreateDataProperty(vm.PromiseProto, value.NewPropertyKeyFromString("then"), value.ObjectRef(f))

	catch := func(this value.Value, args []value.Value) (value.Value, error) {
		thenVal, err := vm.getProp(this, "then")
		if err != nil {
			return value.Undef(), err
		}
		thenFn, _ := asObject(thenVal)
		onR := value.Undef()
		if len(args) > 0 {
			onR = args[0]
		}
		return thenFn.Call(this, []value.Value{value.Undef(), onR})
	}
	cf := vm.Adopt(object.NewFunction(vm.FunctionProto, "catch", 1, catch, nil))
	object.CreateDataProperty(vm.PromiseProto, value.NewPropertyKeyFromString("catch"), value.ObjectRef(cf))
}

// DrainMicrotasks runs every queued job (and any jobs those jobs
// enqueue) until the queue empties, per spec.md §5/§6.
func (vm *VM) DrainMicrotasks() {
	for len(vm.microtasks) > 0 {
		job := vm.microtasks[0]
		vm.microtasks = vm.microtasks[1:]
		job()
	}
}

// --- async function driver ------------------------------------------------

// runAsync drives an async function's frame to its first suspension
// point (or completion) and returns the Promise the call expression
// observes synchronously, per spec.md §4.4: "await suspends the frame
// and returns to the driver to be resumed when the awaited promise
// settles" — the same save/restore plumbing generators use (spec.md §9).
func (vm *VM) runAsync(fr *Frame) (value.Value, error) {
	p, resolve, reject := vm.NewPromiseCapability()
	vm.stepAsync(fr, resolve, reject)
	return value.ObjectRef(p), nil
}

func (vm *VM) stepAsync(fr *Frame, resolve, reject func(value.Value)) {
	res, err := vm.runFrame(fr)
	if err != nil {
		if thrown, ok := err.(*Thrown); ok {
			reject(thrown.Value)
			return
		}
		reject(value.Str(err.Error()))
		return
	}
	switch res.kind {
	case sigReturn:
		resolve(res.value)
	case sigAwait:
		vm.awaitThen(fr, res.value, resolve, reject)
	}
}

func (vm *VM) awaitThen(fr *Frame, awaited value.Value, resolve, reject func(value.Value)) {
	onSettle := func(v value.Value, isErr bool) {
		if isErr {
			handled, herr := vm.handleThrow(fr, &Thrown{Value: v})
			if herr != nil {
				reject(v)
				return
			}
			if !handled {
				reject(v)
				return
			}
		} else {
			fr.regs[fr.pendingYieldDst] = v
		}
		vm.stepAsync(fr, resolve, reject)
	}
	if o, ok := asObject(awaited); ok {
		if st, isProm := vm.promises[o]; isProm {
			switch st.status {
			case promisePending:
				st.onFulfilled = append(st.onFulfilled, func(v value.Value) { onSettle(v, false) })
				st.onRejected = append(st.onRejected, func(v value.Value) { onSettle(v, true) })
			case promiseFulfilled:
				v := st.value
				vm.microtasks = append(vm.microtasks, func() { onSettle(v, false) })
			case promiseRejected:
				v := st.value
				vm.microtasks = append(vm.microtasks, func() { onSettle(v, true) })
			}
			return
		}
	}
	v := awaited
	vm.microtasks = append(vm.microtasks, func() { onSettle(v, false) })
}
