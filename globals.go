package esengine

import (
	"errors"

	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

var jsErrNotAnObject = errors.New("esengine: value is not an object")

// installGlobals sets up the minimal intrinsics spec.md §1 keeps in
// scope for a core-only rewrite: enough of Object/Error/Promise to
// make §8's scenarios and §6's contracts observable, never growing
// into the full built-in library (Array methods beyond construction,
// Date, Intl, Reflect, TypedArrays, ... stay out of scope by §1).
//
// Grounded on SPEC_FULL's "Supplemented features" section (itself
// grounded on `original_source/boa_engine`'s builtins::object/error/
// promise modules, reduced to exactly the operations this repository's
// scope needs) rather than on the teacher, which ships no ECMAScript
// builtins at all.
func installGlobals(c *Context) {
	installObjectGlobal(c)
	installErrorGlobals(c)
	installPromiseGlobal(c)
}

func installObjectGlobal(c *Context) {
	vmv := c.VM
	ctor := vmv.Adopt(object.NewFunction(vmv.FunctionProto, "Object", 1, func(this value.Value, args []value.Value) (value.Value, error) {
		if len(args) > 0 && args[0].IsObject() {
			return args[0], nil
		}
		return value.ObjectRef(vmv.Track(object.New(vmv.ObjectProto))), nil
	}, func(args []value.Value, newTarget *object.Object) (value.Value, error) {
		if len(args) > 0 && args[0].IsObject() {
			return args[0], nil
		}
		return value.ObjectRef(vmv.Track(object.New(vmv.ObjectProto))), nil
	}))
	object.CreateDataProperty(ctor, value.NewPropertyKeyFromString("prototype"), value.ObjectRef(vmv.ObjectProto))
	object.CreateDataProperty(vmv.ObjectProto, value.NewPropertyKeyFromString("constructor"), value.ObjectRef(ctor))

	static := map[string]struct {
		arity int
		fn    func(this value.Value, args []value.Value) (value.Value, error)
	}{
		"freeze": {1, func(_ value.Value, args []value.Value) (value.Value, error) {
			if o, ok := firstObject(args); ok {
				object.Freeze(o)
			}
			return argOrUndef(args, 0), nil
		}},
		"isFrozen": {1, func(_ value.Value, args []value.Value) (value.Value, error) {
			o, ok := firstObject(args)
			return value.Bool(!ok || object.IsFrozen(o)), nil
		}},
		"seal": {1, func(_ value.Value, args []value.Value) (value.Value, error) {
			if o, ok := firstObject(args); ok {
				object.Seal(o)
			}
			return argOrUndef(args, 0), nil
		}},
		"isSealed": {1, func(_ value.Value, args []value.Value) (value.Value, error) {
			o, ok := firstObject(args)
			return value.Bool(!ok || object.IsSealed(o)), nil
		}},
		"is": {2, func(_ value.Value, args []value.Value) (value.Value, error) {
			return value.Bool(object.Is(argOrUndef(args, 0), argOrUndef(args, 1))), nil
		}},
		"getPrototypeOf": {1, func(_ value.Value, args []value.Value) (value.Value, error) {
			o, ok := firstObject(args)
			if !ok || o.GetPrototypeOf() == nil {
				return value.Nul(), nil
			}
			return value.ObjectRef(o.GetPrototypeOf()), nil
		}},
		"preventExtensions": {1, func(_ value.Value, args []value.Value) (value.Value, error) {
			if o, ok := firstObject(args); ok {
				o.PreventExtensions()
			}
			return argOrUndef(args, 0), nil
		}},
		"isExtensible": {1, func(_ value.Value, args []value.Value) (value.Value, error) {
			o, ok := firstObject(args)
			return value.Bool(ok && o.IsExtensible()), nil
		}},
	}
	for name, spec := range static {
		fn := vmv.Adopt(object.NewFunction(vmv.FunctionProto, name, spec.arity, spec.fn, nil))
		object.CreateDataProperty(ctor, value.NewPropertyKeyFromString(name), value.ObjectRef(fn))
	}

	getOwnDesc := vmv.Adopt(object.NewFunction(vmv.FunctionProto, "getOwnPropertyDescriptor", 2, func(_ value.Value, args []value.Value) (value.Value, error) {
		o, ok := firstObject(args)
		if !ok || len(args) < 2 {
			return value.Undef(), nil
		}
		key := value.ToPropertyKey(args[1])
		desc, found := object.GetOwnPropertyDescriptor(o, key)
		if !found {
			return value.Undef(), nil
		}
		result := vmv.Track(object.New(vmv.ObjectProto))
		if desc.IsAccessorDescriptor() {
			getV, setV := value.Undef(), value.Undef()
			if desc.Get != nil {
				getV = value.ObjectRef(desc.Get)
			}
			if desc.Set != nil {
				setV = value.ObjectRef(desc.Set)
			}
			object.CreateDataProperty(result, value.NewPropertyKeyFromString("get"), getV)
			object.CreateDataProperty(result, value.NewPropertyKeyFromString("set"), setV)
		} else {
			object.CreateDataProperty(result, value.NewPropertyKeyFromString("value"), desc.Value)
			object.CreateDataProperty(result, value.NewPropertyKeyFromString("writable"), value.Bool(desc.Writable))
		}
		object.CreateDataProperty(result, value.NewPropertyKeyFromString("enumerable"), value.Bool(desc.Enumerable))
		object.CreateDataProperty(result, value.NewPropertyKeyFromString("configurable"), value.Bool(desc.Configurable))
		return value.ObjectRef(result), nil
	}, nil))
	object.CreateDataProperty(ctor, value.NewPropertyKeyFromString("getOwnPropertyDescriptor"), value.ObjectRef(getOwnDesc))

	defineProp := vmv.Adopt(object.NewFunction(vmv.FunctionProto, "defineProperty", 3, func(_ value.Value, args []value.Value) (value.Value, error) {
		o, ok := firstObject(args)
		if !ok || len(args) < 3 {
			return value.Undef(), errors.New("Object.defineProperty called on non-object")
		}
		key := value.ToPropertyKey(args[1])
		descObj, ok := args[2].AsObject().(*object.Object)
		if !ok {
			return value.Undef(), errors.New("property description must be an object")
		}
		desc := descFromObject(descObj)
		if _, err := o.DefineOwnProperty(key, desc); err != nil {
			return value.Undef(), err
		}
		return args[0], nil
	}, nil))
	object.CreateDataProperty(ctor, value.NewPropertyKeyFromString("defineProperty"), value.ObjectRef(defineProp))

	object.CreateDataProperty(vmv.Global, value.NewPropertyKeyFromString("Object"), value.ObjectRef(ctor))
}

func descFromObject(descObj *object.Object) object.PropertyDescriptor {
	var d object.PropertyDescriptor
	get := func(name string) (value.Value, bool) {
		k := value.NewPropertyKeyFromString(name)
		if !descObj.HasProperty(k) {
			return value.Undef(), false
		}
		v, _ := descObj.Get(k, value.ObjectRef(descObj))
		return v, true
	}
	if v, ok := get("value"); ok {
		d.Value, d.HasValue = v, true
	}
	if v, ok := get("writable"); ok {
		d.Writable, d.HasWritable = v.ToBoolean(), true
	}
	if v, ok := get("enumerable"); ok {
		d.Enumerable, d.HasEnumerable = v.ToBoolean(), true
	}
	if v, ok := get("configurable"); ok {
		d.Configurable, d.HasConfigurable = v.ToBoolean(), true
	}
	if v, ok := get("get"); ok {
		if o, isObj := v.AsObject().(*object.Object); isObj {
			d.Get, d.HasGet = o, true
		}
	}
	if v, ok := get("set"); ok {
		if o, isObj := v.AsObject().(*object.Object); isObj {
			d.Set, d.HasSet = o, true
		}
	}
	return d
}

func firstObject(args []value.Value) (*object.Object, bool) {
	if len(args) == 0 {
		return nil, false
	}
	o, ok := args[0].AsObject().(*object.Object)
	return o, ok
}

func argOrUndef(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Undef()
}

// errorKinds is the minimal Error constructor family spec.md §8
// scenario 4 (`e.constructor.name === "TypeError"`) needs observable,
// per SPEC_FULL's supplemented-features note.
var errorKinds = []string{"Error", "TypeError", "RangeError", "ReferenceError", "SyntaxError", "EvalError", "URIError", "AggregateError"}

func installErrorGlobals(c *Context) {
	vmv := c.VM
	for _, kind := range errorKinds {
		kind := kind
		proto := vmv.ErrorPrototype(kind)
		if kind == "Error" {
			proto = vmv.ErrorProto
		}
		construct := func(args []value.Value, newTarget *object.Object) (value.Value, error) {
			msg := ""
			if len(args) > 0 && !args[0].IsUndefined() {
				msg = toDisplayString(args[0])
			}
			v := vmv.NewError(kind, msg)
			if len(args) > 1 {
				if opts, ok := args[1].AsObject().(*object.Object); ok {
					if cause, err := opts.Get(value.NewPropertyKeyFromString("cause"), args[1]); err == nil && opts.HasProperty(value.NewPropertyKeyFromString("cause")) {
						if o, isObj := v.AsObject().(*object.Object); isObj {
							object.CreateDataProperty(o, value.NewPropertyKeyFromString("cause"), cause)
						}
					}
				}
			}
			return v, nil
		}
		call := func(_ value.Value, args []value.Value) (value.Value, error) {
			return construct(args, nil)
		}
		ctor := vmv.Adopt(object.NewFunction(vmv.FunctionProto, kind, 1, call, construct))
		object.CreateDataProperty(ctor, value.NewPropertyKeyFromString("prototype"), value.ObjectRef(proto))
		object.CreateDataProperty(proto, value.NewPropertyKeyFromString("constructor"), value.ObjectRef(ctor))
		object.CreateDataProperty(vmv.Global, value.NewPropertyKeyFromString(kind), value.ObjectRef(ctor))
	}
}

func installPromiseGlobal(c *Context) {
	ctor := c.VM.MakePromiseConstructor()
	object.CreateDataProperty(c.VM.Global, value.NewPropertyKeyFromString("Promise"), value.ObjectRef(ctor))
}

func toDisplayString(v value.Value) string {
	switch {
	case v.IsString():
		return v.AsString().Go()
	case v.IsNumber():
		return value.ToNumberString(v.AsNumber())
	case v.IsBoolean():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNull():
		return "null"
	case v.IsUndefined():
		return "undefined"
	default:
		return "[object]"
	}
}
