package object

import (
	"sort"

	"github.com/oxhq/esengine/internal/value"
)

var lengthKey = value.NewPropertyKeyFromString("length")

// NewArray builds an array-exotic object: a non-enumerable, writable,
// non-configurable "length" property tracking one past the highest
// index, plus each initial element as an ordinary enumerable data
// property (spec.md §4.5's "arrays override [[DefineOwnProperty]] to
// maintain length").
func NewArray(proto *Object, elements []value.Value) *Object {
	o := New(proto)
	o.kind = KindArray
	o.putOwnDescriptor(lengthKey, NewDataDescriptor(value.Num(float64(len(elements))), true, false, false))
	for i, v := range elements {
		o.putOwnDescriptor(value.NewPropertyKeyIndex(uint32(i)), NewDataDescriptor(v, true, true, true))
	}
	return o
}

func arrayLength(o *Object) (Descriptor, uint32) {
	d, _ := o.ownDescriptor(lengthKey)
	return d, uint32(d.Value.AsNumber())
}

// arrayDefineOwnProperty implements the ArrayDefineOwnProperty /
// ArraySetLength algorithms: defining "length" can truncate the index
// range (deleting indices at or above the new length, stopping — and
// reporting the partial length actually reached — at the first
// non-configurable index that refuses deletion); defining an index at
// or beyond the current length grows "length" to match, unless
// "length" itself is non-writable.
func arrayDefineOwnProperty(o *Object, key value.PropertyKey, desc PropertyDescriptor) (bool, error) {
	if key.IsString() && key.StringVal() == "length" {
		return arraySetLength(o, desc)
	}
	if key.IsIndex() {
		lenDesc, oldLen := arrayLength(o)
		index := key.Index()
		if index >= oldLen && !lenDesc.Writable {
			return false, nil
		}
		ok, err := o.ordinaryDefineOwnProperty(key, desc)
		if err != nil || !ok {
			return ok, err
		}
		if index >= oldLen {
			lenDesc.Value = value.Num(float64(index + 1))
			o.putOwnDescriptor(lengthKey, lenDesc)
		}
		return true, nil
	}
	return o.ordinaryDefineOwnProperty(key, desc)
}

func arraySetLength(o *Object, desc PropertyDescriptor) (bool, error) {
	if !desc.HasValue {
		return o.ordinaryDefineOwnProperty(lengthKey, desc)
	}

	oldDesc, oldLen := arrayLength(o)
	newLen := uint32(desc.Value.AsNumber())

	newDesc := desc
	newDesc.Value = value.Num(float64(newLen))

	if newLen >= oldLen {
		return o.ordinaryDefineOwnProperty(lengthKey, newDesc)
	}
	if !oldDesc.Writable {
		return false, nil
	}

	var toDelete []uint32
	for idx := range o.indexed {
		if idx >= newLen {
			toDelete = append(toDelete, idx)
		}
	}
	sort.Slice(toDelete, func(i, j int) bool { return toDelete[i] > toDelete[j] })

	for _, idx := range toDelete {
		ok, err := o.Delete(value.NewPropertyKeyIndex(idx))
		if err != nil {
			return false, err
		}
		if !ok {
			stopped := Descriptor{
				Value:        value.Num(float64(idx + 1)),
				Writable:     oldDesc.Writable,
				Enumerable:   oldDesc.Enumerable,
				Configurable: oldDesc.Configurable,
			}
			o.putOwnDescriptor(lengthKey, stopped)
			return false, nil
		}
	}

	return o.ordinaryDefineOwnProperty(lengthKey, newDesc)
}
