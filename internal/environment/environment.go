// Package environment implements the binding-record chain spec.md §3
// describes: declarative records (compile-time-indexed slot vectors)
// and object-backed records (delegating to an object's property map,
// for the global scope and `with`), linked by parent pointer and
// addressed by a compile-time-resolved Locator.
package environment

import (
	"errors"

	"github.com/oxhq/esengine/internal/gc"
	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

var (
	ErrUninitialized = errors.New("environment: binding accessed before initialization")
	ErrAssignToConst = errors.New("environment: assignment to immutable binding")
	ErrNotFound      = errors.New("environment: binding not found")
)

type Kind uint8

const (
	Declarative Kind = iota
	ObjectBacked
)

type binding struct {
	value       value.Value
	mutable     bool
	initialized bool
}

// Env is one record in the chain. Declarative records are a flat slot
// vector addressed by compile-time-assigned index (the fast path every
// function/block scope uses); object-backed records delegate every
// operation to an Object's property map (the global object, or the
// object a `with` statement pushes).
type Env struct {
	Cell *gc.Cell

	kind   Kind
	parent *Env

	slots []binding
	names map[string]int // name -> slot index, declarative only

	obj *object.Object
}

// NewDeclarative allocates a fresh declarative record extending parent,
// rooted in heap so the tracing collector can reach the bindings (and,
// through them, whatever objects those bindings hold) from wherever
// this Env itself is reachable.
func NewDeclarative(heap *gc.Heap, parent *Env) (*Env, error) {
	e := &Env{kind: Declarative, parent: parent, names: make(map[string]int)}
	cell, err := heap.Alloc(e, 64)
	if err != nil {
		return nil, err
	}
	e.Cell = cell
	return e, nil
}

// NewObjectBacked wraps obj (the global object, or a `with` operand) as
// an environment record delegating every binding operation to it.
func NewObjectBacked(heap *gc.Heap, parent *Env, obj *object.Object) (*Env, error) {
	e := &Env{kind: ObjectBacked, parent: parent, obj: obj}
	cell, err := heap.Alloc(e, 32)
	if err != nil {
		return nil, err
	}
	e.Cell = cell
	return e, nil
}

func (e *Env) Parent() *Env { return e.parent }
func (e *Env) Kind() Kind   { return e.kind }

// Trace implements gc.Tracer: an environment's edges are its parent,
// its object-backed target (if any), and every object-valued slot.
func (e *Env) Trace(v *gc.Visitor) {
	if e.parent != nil && e.parent.Cell != nil {
		v.Mark(e.parent.Cell)
	}
	if e.obj != nil && e.obj.Cell != nil {
		v.Mark(e.obj.Cell)
	}
	for _, b := range e.slots {
		markIfObject(v, b.value)
	}
}

func markIfObject(v *gc.Visitor, val value.Value) {
	if !val.IsObject() {
		return
	}
	if ref, ok := val.AsObject().(*object.Object); ok && ref.Cell != nil {
		v.Mark(ref.Cell)
	}
}

// --- compile-time binding creation (declarative records only) -----------

// CreateMutableBinding reserves a new slot, uninitialized, and returns
// its compile-time-stable index — the "compile-time-assigned binding
// index" spec.md §3 calls for.
func (e *Env) CreateMutableBinding(name string) int {
	return e.createSlot(name, true)
}

func (e *Env) CreateImmutableBinding(name string) int {
	return e.createSlot(name, false)
}

func (e *Env) createSlot(name string, mutable bool) int {
	idx := len(e.slots)
	e.slots = append(e.slots, binding{mutable: mutable})
	if e.names == nil {
		e.names = make(map[string]int)
	}
	e.names[name] = idx
	return idx
}

// --- slot-indexed fast path -----------------------------------------------

func (e *Env) InitializeBindingAt(index int, v value.Value) {
	e.slots[index].value = v
	e.slots[index].initialized = true
}

func (e *Env) GetBindingAt(index int) (value.Value, error) {
	b := e.slots[index]
	if !b.initialized {
		return value.Undef(), ErrUninitialized
	}
	return b.value, nil
}

func (e *Env) SetBindingAt(index int, v value.Value) error {
	b := &e.slots[index]
	if !b.initialized {
		return ErrUninitialized
	}
	if !b.mutable {
		return ErrAssignToConst
	}
	b.value = v
	return nil
}

// --- name-indexed path (object-backed records, and debug/dynamic lookup) --

func (e *Env) HasBinding(name string) bool {
	if e.kind == Declarative {
		_, ok := e.names[name]
		return ok
	}
	return e.obj.HasProperty(value.NewPropertyKeyFromString(name))
}

func (e *Env) GetBindingValue(name string) (value.Value, error) {
	if e.kind == Declarative {
		idx, ok := e.names[name]
		if !ok {
			return value.Undef(), ErrNotFound
		}
		return e.GetBindingAt(idx)
	}
	key := value.NewPropertyKeyFromString(name)
	if !e.obj.HasProperty(key) {
		return value.Undef(), ErrNotFound
	}
	return e.obj.Get(key, value.ObjectRef(e.obj))
}

func (e *Env) SetMutableBinding(name string, v value.Value) error {
	if e.kind == Declarative {
		idx, ok := e.names[name]
		if !ok {
			return ErrNotFound
		}
		return e.SetBindingAt(idx, v)
	}
	key := value.NewPropertyKeyFromString(name)
	if !e.obj.HasProperty(key) {
		return ErrNotFound
	}
	ok, err := e.obj.Set(key, v, e.obj)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (e *Env) DeleteBinding(name string) (bool, error) {
	if e.kind == Declarative {
		// Declarative bindings (var/let/const/function) are never
		// individually deletable; only object-backed bindings (the
		// global object, or a `with` object) are, and only when the
		// backing property is configurable.
		return false, nil
	}
	return e.obj.Delete(value.NewPropertyKeyFromString(name))
}

// --- Locator: the compile-time-resolved binding reference -----------------

// Locator names (environment-index-in-chain, slot-index, mutability)
// per spec.md §3. Slot is -1 when the binding must be resolved by name
// at the target environment (object-backed records don't have
// compile-time slot indices).
type Locator struct {
	Depth   int
	Slot    int
	Name    string
	Mutable bool
}

func NewSlotLocator(depth, slot int, name string, mutable bool) Locator {
	return Locator{Depth: depth, Slot: slot, Name: name, Mutable: mutable}
}

func NewNameLocator(depth int, name string, mutable bool) Locator {
	return Locator{Depth: depth, Slot: -1, Name: name, Mutable: mutable}
}

// Resolve walks Depth parent hops from env to reach the target record.
func Resolve(env *Env, loc Locator) *Env {
	e := env
	for i := 0; i < loc.Depth; i++ {
		e = e.parent
	}
	return e
}

func GetBinding(env *Env, loc Locator) (value.Value, error) {
	target := Resolve(env, loc)
	if loc.Slot >= 0 && target.kind == Declarative {
		return target.GetBindingAt(loc.Slot)
	}
	return target.GetBindingValue(loc.Name)
}

func SetBinding(env *Env, loc Locator, v value.Value) error {
	target := Resolve(env, loc)
	if loc.Slot >= 0 && target.kind == Declarative {
		return target.SetBindingAt(loc.Slot, v)
	}
	return target.SetMutableBinding(loc.Name, v)
}
