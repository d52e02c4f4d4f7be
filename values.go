package esengine

import (
	"math/big"

	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

// Value re-exports internal/value.Value so embedders never need to
// import an internal package directly, per spec.md §6's "Create
// values" operation.
type Value = value.Value

// NewUndefined/NewNull/NewBoolean/NewNumber/NewBigInt/NewString build
// the primitive variants of spec.md §3's tagged Value.
func NewUndefined() Value        { return value.Undef() }
func NewNull() Value             { return value.Nul() }
func NewBoolean(b bool) Value    { return value.Bool(b) }
func NewNumber(f float64) Value  { return value.Num(f) }
func NewBigInt(b *big.Int) Value { return value.BigIntVal(b) }
func NewString(s string) Value   { return value.Str(s) }

// NewObject creates a plain object whose prototype is this Context's
// realm Object.prototype, per spec.md §6's "Create values" operation
// for the ordinary object kind.
func (c *Context) NewObject() Value {
	return value.ObjectRef(c.VM.Adopt(object.New(c.VM.ObjectProto)))
}

// NewArray creates an array-exotic object (spec.md §4.5's Array
// override of [[DefineOwnProperty]]) pre-populated with elements.
func (c *Context) NewArray(elements ...Value) Value {
	return value.ObjectRef(c.VM.Adopt(object.NewArray(c.VM.ArrayProto, elements)))
}

// NewFunction wraps a native Go function as a callable host function
// value without installing it as a global binding (RegisterHostFunction
// does that additionally) — useful for passing a callback value
// directly to RunScript-produced code via an argument or a property.
func (c *Context) NewFunction(name string, arity int, fn func(this Value, args []Value) (Value, error)) Value {
	return value.ObjectRef(c.VM.Adopt(object.NewFunction(c.VM.FunctionProto, name, arity, fn, nil)))
}

// NewError builds a language-visible error object of the given kind
// ("TypeError", "RangeError", ...), the value constructor a host
// function raising a script-catchable error should return via
// jserrors-independent code paths (see internal/vm.VM.NewError for the
// underlying prototype lookup).
func (c *Context) NewError(kind, message string) Value {
	return c.VM.NewError(kind, message)
}

// SetProperty/GetProperty perform an ordinary [[Set]]/[[Get]] against
// an object Value, the property-level counterpart of Context's global
// binding operations — used by embedding code building up a value
// returned from NewObject before handing it to script.
func (c *Context) SetProperty(obj Value, name string, v Value) error {
	o, ok := obj.AsObject().(*object.Object)
	if !ok {
		return jsErrNotAnObject
	}
	_, err := o.Set(value.NewPropertyKeyFromString(name), v, o)
	return err
}

func (c *Context) GetProperty(obj Value, name string) (Value, error) {
	o, ok := obj.AsObject().(*object.Object)
	if !ok {
		return value.Undef(), jsErrNotAnObject
	}
	return o.Get(value.NewPropertyKeyFromString(name), obj)
}
