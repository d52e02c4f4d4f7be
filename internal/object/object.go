// Package object implements the value-and-object model of spec.md §3/
// §4.5: property descriptors, the three-submap own-property store, the
// prototype chain, and the ordinary (and array-exotic) internal method
// table ([[Get]], [[Set]], [[DefineOwnProperty]], ...).
package object

import (
	"errors"
	"sort"

	"github.com/oxhq/esengine/internal/gc"
	"github.com/oxhq/esengine/internal/value"
)

// Kind selects which internal slots (and which exotic method overrides)
// an Object carries, per spec.md §3's "may carry typed internal data
// selecting its kind" and §4.5's per-kind dispatch table.
type Kind uint8

const (
	KindOrdinary Kind = iota
	KindArray
	KindFunction
	KindBoundFunction
	KindArguments
	KindError
	KindPromise
	KindGenerator
	KindTypedArray
	KindDataView
	KindArrayBuffer
	KindMap
	KindSet
	KindRegExp
	KindDate
	KindProxy
	KindModuleNamespace
)

// CallFn is the native trampoline a function object's [[Call]] invokes.
type CallFn func(this value.Value, args []value.Value) (value.Value, error)

// ConstructFn is the native trampoline a function object's [[Construct]]
// invokes; newTarget is the originally-referenced constructor (may
// differ from the receiver under Reflect.construct / class `super`).
type ConstructFn func(args []value.Value, newTarget *Object) (value.Value, error)

var (
	ErrNotCallable    = errors.New("object: value is not callable")
	ErrNotConstructor = errors.New("object: value is not a constructor")
)

// Object is the engine's only heap-reference-bearing type: every
// exotic kind (array, function, error, ...) is one of these with Kind
// set and, where relevant, internal data attached (Call/Construct for
// functions, elements tracked implicitly via the indexed submap and a
// "length" string property for arrays).
//
// Grounded on spec.md §3's three-submap property layout, and on the
// teacher's internal/registry.Registry for the "mutex-guarded map plus
// a parallel order-preserving slice" shape reused here for the string
// and symbol submaps (registry.go keeps providers in a map and aliases
// in a map; this keeps descriptors in a map and emits them in the
// insertion order spec.md §4.5 requires for [[OwnPropertyKeys]]).
type Object struct {
	Cell *gc.Cell // set by Heap.Alloc once the object is registered for tracing

	kind Kind

	proto      *Object
	extensible bool

	indexed map[uint32]Descriptor

	strings     map[string]Descriptor
	stringOrder []string

	symbols     map[*value.Symbol]Descriptor
	symbolOrder []*value.Symbol

	call      CallFn
	construct ConstructFn

	// Name/Length back Function.prototype.name/.length without needing a
	// round trip through the property store for the common case.
	Name   string
	Length int
}

// New creates an ordinary, extensible object with the given prototype
// (nil means no prototype, i.e. the eventual Object.prototype or an
// object created via Object.create(null)).
func New(proto *Object) *Object {
	return &Object{
		kind:       KindOrdinary,
		proto:      proto,
		extensible: true,
		indexed:    make(map[uint32]Descriptor),
		strings:    make(map[string]Descriptor),
		symbols:    make(map[*value.Symbol]Descriptor),
	}
}

func NewWithKind(proto *Object, kind Kind) *Object {
	o := New(proto)
	o.kind = kind
	return o
}

// NewFunction creates a callable (and, if construct is non-nil,
// constructable) function object.
func NewFunction(proto *Object, name string, length int, call CallFn, construct ConstructFn) *Object {
	o := New(proto)
	o.kind = KindFunction
	o.Name = name
	o.Length = length
	o.call = call
	o.construct = construct
	return o
}

func (o *Object) Kind() Kind         { return o.kind }
func (o *Object) Prototype() *Object { return o.proto }
func (o *Object) Extensible() bool   { return o.extensible }
func (o *Object) IsCallable() bool   { return o.call != nil }
func (o *Object) IsConstructor() bool {
	return o.construct != nil
}

// Trace implements gc.Tracer: an object's GC edges are its prototype
// and every value held by its own properties (object-valued data
// descriptors, and getter/setter function objects).
func (o *Object) Trace(v *gc.Visitor) {
	if o.proto != nil && o.proto.Cell != nil {
		v.Mark(o.proto.Cell)
	}
	mark := func(d Descriptor) {
		if d.IsAccessor {
			if d.Get != nil && d.Get.Cell != nil {
				v.Mark(d.Get.Cell)
			}
			if d.Set != nil && d.Set.Cell != nil {
				v.Mark(d.Set.Cell)
			}
			return
		}
		if d.Value.IsObject() {
			if ref, ok := d.Value.AsObject().(*Object); ok && ref.Cell != nil {
				v.Mark(ref.Cell)
			}
		}
	}
	for _, d := range o.indexed {
		mark(d)
	}
	for _, d := range o.strings {
		mark(d)
	}
	for _, d := range o.symbols {
		mark(d)
	}
}

// --- own-property storage -------------------------------------------------

func (o *Object) ownDescriptor(key value.PropertyKey) (Descriptor, bool) {
	switch key.Kind() {
	case value.KeyIndex:
		d, ok := o.indexed[key.Index()]
		return d, ok
	case value.KeyString:
		d, ok := o.strings[key.StringVal()]
		return d, ok
	default:
		d, ok := o.symbols[key.Symbol()]
		return d, ok
	}
}

func (o *Object) putOwnDescriptor(key value.PropertyKey, d Descriptor) {
	switch key.Kind() {
	case value.KeyIndex:
		o.indexed[key.Index()] = d
	case value.KeyString:
		s := key.StringVal()
		if _, exists := o.strings[s]; !exists {
			o.stringOrder = append(o.stringOrder, s)
		}
		o.strings[s] = d
	default:
		sym := key.Symbol()
		if _, exists := o.symbols[sym]; !exists {
			o.symbolOrder = append(o.symbolOrder, sym)
		}
		o.symbols[sym] = d
	}
}

func (o *Object) removeOwnDescriptor(key value.PropertyKey) {
	switch key.Kind() {
	case value.KeyIndex:
		delete(o.indexed, key.Index())
	case value.KeyString:
		s := key.StringVal()
		delete(o.strings, s)
		for i, k := range o.stringOrder {
			if k == s {
				o.stringOrder = append(o.stringOrder[:i], o.stringOrder[i+1:]...)
				break
			}
		}
	default:
		sym := key.Symbol()
		delete(o.symbols, sym)
		for i, k := range o.symbolOrder {
			if k == sym {
				o.symbolOrder = append(o.symbolOrder[:i], o.symbolOrder[i+1:]...)
				break
			}
		}
	}
}

// --- exotic dispatch table -------------------------------------------------

type exoticOps struct {
	DefineOwnProperty func(o *Object, key value.PropertyKey, desc PropertyDescriptor) (bool, error)
	GetOwnProperty    func(o *Object, key value.PropertyKey) (Descriptor, bool)
}

// kindTable holds the per-kind overrides spec.md §4.5 describes ("every
// object operation routes through a per-kind method table"). A nil
// entry (or a nil field within an entry) means "use the ordinary
// behavior" — most kinds override nothing.
var kindTable map[Kind]*exoticOps

func init() {
	kindTable = map[Kind]*exoticOps{
		KindArray:         {DefineOwnProperty: arrayDefineOwnProperty},
		KindFunction:      {GetOwnProperty: functionGetOwnProperty},
		KindBoundFunction: {GetOwnProperty: functionGetOwnProperty},
	}
}

// functionGetOwnProperty surfaces the Name/Length fields as the
// language-visible `name`/`length` properties (non-writable,
// non-enumerable, configurable) unless a stored descriptor shadows
// them — so `f.name` works without every NewFunction call paying for
// two property-map entries.
func functionGetOwnProperty(o *Object, key value.PropertyKey) (Descriptor, bool) {
	if d, ok := o.ownDescriptor(key); ok {
		return d, true
	}
	if key.IsString() {
		switch key.StringVal() {
		case "name":
			return Descriptor{Value: value.Str(o.Name), Configurable: true}, true
		case "length":
			return Descriptor{Value: value.Num(float64(o.Length)), Configurable: true}, true
		}
	}
	return Descriptor{}, false
}

func (o *Object) ops() *exoticOps {
	return kindTable[o.kind]
}

// --- [[GetOwnProperty]] / [[Get]] / [[HasProperty]] ------------------------

func (o *Object) GetOwnProperty(key value.PropertyKey) (Descriptor, bool) {
	if ops := o.ops(); ops != nil && ops.GetOwnProperty != nil {
		return ops.GetOwnProperty(o, key)
	}
	return o.ownDescriptor(key)
}

// Get implements [[Get]]: walk self then the prototype chain; data
// descriptors return their value directly, accessor descriptors invoke
// the getter with receiver bound as `this`.
func (o *Object) Get(key value.PropertyKey, receiver value.Value) (value.Value, error) {
	cur := o
	for cur != nil {
		desc, ok := cur.GetOwnProperty(key)
		if ok {
			if desc.IsAccessor {
				if desc.Get == nil {
					return value.Undef(), nil
				}
				return desc.Get.Call(receiver, nil)
			}
			return desc.Value, nil
		}
		cur = cur.proto
	}
	return value.Undef(), nil
}

func (o *Object) HasProperty(key value.PropertyKey) bool {
	cur := o
	for cur != nil {
		if _, ok := cur.GetOwnProperty(key); ok {
			return true
		}
		cur = cur.proto
	}
	return false
}

func (o *Object) HasOwnProperty(key value.PropertyKey) bool {
	_, ok := o.GetOwnProperty(key)
	return ok
}

// --- [[Set]] ----------------------------------------------------------------

// Set implements [[Set]] via OrdinarySetWithOwnDescriptor: walk to find
// an owning descriptor; a writable data descriptor found on an
// ancestor still creates a new own property on receiver (the
// "shadowing" case), while a non-writable one anywhere in the chain
// rejects the write.
func (o *Object) Set(key value.PropertyKey, val value.Value, receiver *Object) (bool, error) {
	ownDesc, ok := o.GetOwnProperty(key)
	if !ok {
		if o.proto != nil {
			return o.proto.Set(key, val, receiver)
		}
		ownDesc = Descriptor{Writable: true, Enumerable: true, Configurable: true}
	}

	if ownDesc.IsAccessor {
		if ownDesc.Set == nil {
			return false, nil
		}
		_, err := ownDesc.Set.Call(value.ObjectRef(receiver), []value.Value{val})
		return err == nil, err
	}

	if !ownDesc.Writable {
		return false, nil
	}

	existing, ok2 := receiver.GetOwnProperty(key)
	if ok2 {
		if existing.IsAccessor || !existing.Writable {
			return false, nil
		}
		return receiver.DefineOwnProperty(key, PropertyDescriptor{Value: val, HasValue: true})
	}
	return receiver.DefineOwnProperty(key, PropertyDescriptor{
		Value: val, HasValue: true,
		Writable: true, HasWritable: true,
		Enumerable: true, HasEnumerable: true,
		Configurable: true, HasConfigurable: true,
	})
}

// --- [[DefineOwnProperty]] ---------------------------------------------------

// DefineOwnProperty implements ValidateAndApplyPropertyDescriptor
// (spec.md §4.5): every combination of current/new and
// configurable/writable/data/accessor is checked; disallowed
// transitions return false rather than raising, leaving the decision
// to raise (strict-mode assignment, Object.defineProperty) to the
// caller.
func (o *Object) DefineOwnProperty(key value.PropertyKey, desc PropertyDescriptor) (bool, error) {
	if ops := o.ops(); ops != nil && ops.DefineOwnProperty != nil {
		return ops.DefineOwnProperty(o, key, desc)
	}
	return o.ordinaryDefineOwnProperty(key, desc)
}

func (o *Object) ordinaryDefineOwnProperty(key value.PropertyKey, desc PropertyDescriptor) (bool, error) {
	current, exists := o.ownDescriptor(key)
	if !exists {
		if !o.extensible {
			return false, nil
		}
		o.putOwnDescriptor(key, desc.ToDescriptor())
		return true, nil
	}

	if desc.isEmpty() {
		return true, nil
	}

	if !current.Configurable {
		if desc.HasConfigurable && desc.Configurable {
			return false, nil
		}
		if desc.HasEnumerable && desc.Enumerable != current.Enumerable {
			return false, nil
		}
		if !desc.IsGenericDescriptor() && desc.IsAccessorDescriptor() != current.IsAccessor {
			return false, nil
		}
		if current.IsAccessor {
			if desc.HasGet && desc.Get != current.Get {
				return false, nil
			}
			if desc.HasSet && desc.Set != current.Set {
				return false, nil
			}
		} else {
			if !current.Writable {
				if desc.HasWritable && desc.Writable {
					return false, nil
				}
				if desc.HasValue && !value.SameValue(desc.Value, current.Value) {
					return false, nil
				}
			}
		}
	}

	merged := current
	if !desc.IsGenericDescriptor() && desc.IsAccessorDescriptor() != current.IsAccessor {
		// Switching data<->accessor: spec 10.1.6.3 step 7 resets the
		// opposite-kind fields to their defaults, preserving only the
		// shared enumerable/configurable bits.
		merged = Descriptor{
			IsAccessor:   desc.IsAccessorDescriptor(),
			Enumerable:   current.Enumerable,
			Configurable: current.Configurable,
		}
	}
	if desc.HasEnumerable {
		merged.Enumerable = desc.Enumerable
	}
	if desc.HasConfigurable {
		merged.Configurable = desc.Configurable
	}
	if merged.IsAccessor {
		if desc.HasGet {
			merged.Get = desc.Get
		}
		if desc.HasSet {
			merged.Set = desc.Set
		}
	} else {
		if desc.HasValue {
			merged.Value = desc.Value
		}
		if desc.HasWritable {
			merged.Writable = desc.Writable
		}
	}
	o.putOwnDescriptor(key, merged)
	return true, nil
}

// CreateDataProperty is the common "just add a fully-permissive data
// property" helper array/argument construction and destructuring both
// need.
func CreateDataProperty(o *Object, key value.PropertyKey, val value.Value) (bool, error) {
	return o.DefineOwnProperty(key, PropertyDescriptor{
		Value: val, HasValue: true,
		Writable: true, HasWritable: true,
		Enumerable: true, HasEnumerable: true,
		Configurable: true, HasConfigurable: true,
	})
}

// --- [[Delete]] ---------------------------------------------------------

func (o *Object) Delete(key value.PropertyKey) (bool, error) {
	desc, ok := o.GetOwnProperty(key)
	if !ok {
		return true, nil
	}
	if !desc.Configurable {
		return false, nil
	}
	o.removeOwnDescriptor(key)
	return true, nil
}

// --- prototype / extensibility ------------------------------------------

func (o *Object) GetPrototypeOf() *Object { return o.proto }

// SetPrototypeOf rejects a prototype chain that would cycle back to o.
func (o *Object) SetPrototypeOf(proto *Object) (bool, error) {
	if proto == o {
		return false, nil
	}
	for p := proto; p != nil; p = p.proto {
		if p == o {
			return false, nil
		}
	}
	o.proto = proto
	return true, nil
}

func (o *Object) IsExtensible() bool { return o.extensible }

func (o *Object) PreventExtensions() (bool, error) {
	o.extensible = false
	return true, nil
}

// OwnPropertyKeys returns keys in spec order: ascending integer index,
// then string keys in insertion order, then symbol keys in insertion
// order (spec.md §4.5).
func (o *Object) OwnPropertyKeys() []value.PropertyKey {
	keys := make([]value.PropertyKey, 0, len(o.indexed)+len(o.stringOrder)+len(o.symbolOrder))

	indices := make([]uint32, 0, len(o.indexed))
	for idx := range o.indexed {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, idx := range indices {
		keys = append(keys, value.NewPropertyKeyIndex(idx))
	}
	for _, s := range o.stringOrder {
		keys = append(keys, value.NewPropertyKeyFromString(s))
	}
	for _, sym := range o.symbolOrder {
		keys = append(keys, value.NewPropertyKeySymbol(sym))
	}
	return keys
}

// --- [[Call]] / [[Construct]] --------------------------------------------

func (o *Object) Call(this value.Value, args []value.Value) (value.Value, error) {
	if o.call == nil {
		return value.Undef(), ErrNotCallable
	}
	return o.call(this, args)
}

func (o *Object) Construct(args []value.Value, newTarget *Object) (value.Value, error) {
	if o.construct == nil {
		return value.Undef(), ErrNotConstructor
	}
	return o.construct(args, newTarget)
}

// --- freeze / seal / descriptor introspection -----------------------------

// Freeze makes every own property non-writable/non-configurable (data)
// or leaves accessors configurable=false, then clears extensible —
// spec.md §3's "freezing sets all descriptors non-configurable/
// non-writable and clears extensible."
func Freeze(o *Object) {
	for _, key := range o.OwnPropertyKeys() {
		d, _ := o.ownDescriptor(key)
		d.Configurable = false
		if !d.IsAccessor {
			d.Writable = false
		}
		o.putOwnDescriptor(key, d)
	}
	o.extensible = false
}

func Seal(o *Object) {
	for _, key := range o.OwnPropertyKeys() {
		d, _ := o.ownDescriptor(key)
		d.Configurable = false
		o.putOwnDescriptor(key, d)
	}
	o.extensible = false
}

func IsFrozen(o *Object) bool {
	if o.extensible {
		return false
	}
	for _, key := range o.OwnPropertyKeys() {
		d, _ := o.ownDescriptor(key)
		if d.Configurable {
			return false
		}
		if !d.IsAccessor && d.Writable {
			return false
		}
	}
	return true
}

func IsSealed(o *Object) bool {
	if o.extensible {
		return false
	}
	for _, key := range o.OwnPropertyKeys() {
		d, _ := o.ownDescriptor(key)
		if d.Configurable {
			return false
		}
	}
	return true
}

// GetOwnPropertyDescriptor exposes the stored descriptor in the
// "all fields present" language-visible shape.
func GetOwnPropertyDescriptor(o *Object, key value.PropertyKey) (PropertyDescriptor, bool) {
	d, ok := o.GetOwnProperty(key)
	if !ok {
		return PropertyDescriptor{}, false
	}
	return d.AsPropertyDescriptor(), true
}

// Is implements Object.is (SameValue exposed at the object-model
// boundary so callers don't need to reach into internal/value directly
// for this one built-in).
func Is(a, b value.Value) bool { return value.SameValue(a, b) }
