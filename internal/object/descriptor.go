package object

import "github.com/oxhq/esengine/internal/value"

// Descriptor is the complete, stored form of a property descriptor
// (spec.md §3): either a data variant (Value/Writable) or an accessor
// variant (Get/Set), always carrying Enumerable/Configurable. The
// invariant "an accessor descriptor cannot carry a writable bit" is
// enforced by construction: NewAccessorDescriptor never sets Writable.
type Descriptor struct {
	IsAccessor bool

	Value    value.Value
	Writable bool

	Get *Object
	Set *Object

	Enumerable   bool
	Configurable bool
}

func NewDataDescriptor(v value.Value, writable, enumerable, configurable bool) Descriptor {
	return Descriptor{
		Value: v, Writable: writable,
		Enumerable: enumerable, Configurable: configurable,
	}
}

func NewAccessorDescriptor(get, set *Object, enumerable, configurable bool) Descriptor {
	return Descriptor{
		IsAccessor: true, Get: get, Set: set,
		Enumerable: enumerable, Configurable: configurable,
	}
}

// PropertyDescriptor is the partial form a caller supplies to
// defineProperty: every field is independently optional, matching the
// "fields may be absent" shape of the language-level descriptor object.
type PropertyDescriptor struct {
	Value    value.Value
	HasValue bool

	Writable    bool
	HasWritable bool

	Get    *Object
	HasGet bool
	Set    *Object
	HasSet bool

	Enumerable    bool
	HasEnumerable bool

	Configurable    bool
	HasConfigurable bool
}

func (d PropertyDescriptor) IsAccessorDescriptor() bool {
	return d.HasGet || d.HasSet
}

func (d PropertyDescriptor) IsDataDescriptor() bool {
	return d.HasValue || d.HasWritable
}

func (d PropertyDescriptor) IsGenericDescriptor() bool {
	return !d.IsAccessorDescriptor() && !d.IsDataDescriptor()
}

func (d PropertyDescriptor) isEmpty() bool {
	return !d.HasValue && !d.HasWritable && !d.HasGet && !d.HasSet &&
		!d.HasEnumerable && !d.HasConfigurable
}

// ToDescriptor completes a partial descriptor against ECMAScript's
// defaults (undefined/false for every absent field) — used the first
// time a property is created, where there is no "current" descriptor
// to inherit absent fields from. The accessor-cannot-carry-writable
// invariant is enforced here too: an accessor-shaped partial descriptor
// is completed without ever setting Writable.
func (d PropertyDescriptor) ToDescriptor() Descriptor {
	if d.IsAccessorDescriptor() {
		return Descriptor{
			IsAccessor:   true,
			Get:          d.Get,
			Set:          d.Set,
			Enumerable:   d.Enumerable,
			Configurable: d.Configurable,
		}
	}
	return Descriptor{
		Value:        d.Value,
		Writable:     d.Writable,
		Enumerable:   d.Enumerable,
		Configurable: d.Configurable,
	}
}

// GetOwnPropertyDescriptorOrZero is the method form of
// GetOwnPropertyDescriptor: it returns the zero PropertyDescriptor and
// false when o has no own property under key, for call sites (like
// accessor definition) that only want existing Get/Set to carry over.
func (o *Object) GetOwnPropertyDescriptorOrZero(key value.PropertyKey) (PropertyDescriptor, bool) {
	return GetOwnPropertyDescriptor(o, key)
}

// AsPropertyDescriptor converts a complete, stored Descriptor back into
// the "all fields present" partial form — what
// Object.getOwnPropertyDescriptor hands back to the language.
func (d Descriptor) AsPropertyDescriptor() PropertyDescriptor {
	if d.IsAccessor {
		return PropertyDescriptor{
			Get: d.Get, HasGet: true,
			Set: d.Set, HasSet: true,
			Enumerable: d.Enumerable, HasEnumerable: true,
			Configurable: d.Configurable, HasConfigurable: true,
		}
	}
	return PropertyDescriptor{
		Value: d.Value, HasValue: true,
		Writable: d.Writable, HasWritable: true,
		Enumerable: d.Enumerable, HasEnumerable: true,
		Configurable: d.Configurable, HasConfigurable: true,
	}
}
