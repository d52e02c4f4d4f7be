// The iteration protocol opcodes (`GetIterator`/`GetForInIterator`/
// `IteratorNext`/`IteratorValue`/`IteratorDone`/`IteratorClose`) that
// back `for-of`/`for-in` per spec.md §4.3. A generator object is its
// own iterator (its genState already tracks value/done); arrays,
// strings, and for-in enumeration get a lightweight internal iterator
// object whose state lives in vm.iterStates, keyed by that wrapper
// object's identity, since this engine has no generic Symbol.iterator
// dispatch for host-defined iterables.
package vm

import (
	"unicode/utf16"

	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

type iterKind uint8

const (
	iterArray iterKind = iota
	iterString
	iterForIn
)

type iterState struct {
	kind iterKind

	arr    *object.Object
	idx    uint32
	length uint32

	str    *value.JSString
	strIdx int

	keys   []string
	keyIdx int

	current value.Value
	done    bool
}

func stringFromUTF16(units []uint16) *value.JSString {
	return value.NewString(string(utf16.Decode(units)))
}

// getIterator implements GetIterator for the subset of iterables this
// engine models: generators (already iterators), arrays, and strings.
func (vm *VM) getIterator(v value.Value) (value.Value, error) {
	if o, ok := asObject(v); ok {
		if _, isGen := vm.genStates[o]; isGen {
			return v, nil
		}
		if o.Kind() == object.KindArray {
			it := vm.trackLoose(object.New(vm.IteratorProto))
			vm.iterStates[it] = &iterState{kind: iterArray, arr: o, length: arrayLen(o)}
			return value.ObjectRef(it), nil
		}
	}
	if v.IsString() {
		it := vm.trackLoose(object.New(vm.IteratorProto))
		vm.iterStates[it] = &iterState{kind: iterString, str: v.AsString()}
		return value.ObjectRef(it), nil
	}
	return value.Undef(), throwTypeError(vm, "value is not iterable")
}

// getForInIterator enumerates own-then-inherited enumerable string
// keys, each name visited at most once (the first, most-derived
// occurrence wins), per the language's for-in enumeration order.
func (vm *VM) getForInIterator(v value.Value) value.Value {
	it := vm.trackLoose(object.New(vm.IteratorProto))
	o, ok := asObject(v)
	if !ok {
		vm.iterStates[it] = &iterState{kind: iterForIn, done: true}
		return value.ObjectRef(it)
	}
	seen := make(map[string]bool)
	var keys []string
	for cur := o; cur != nil; cur = cur.GetPrototypeOf() {
		for _, k := range cur.OwnPropertyKeys() {
			if k.IsSymbol() || seen[k.String()] {
				continue
			}
			seen[k.String()] = true
			d, _ := cur.GetOwnProperty(k)
			if d.Enumerable {
				keys = append(keys, k.String())
			}
		}
	}
	vm.iterStates[it] = &iterState{kind: iterForIn, keys: keys}
	return value.ObjectRef(it)
}

func (vm *VM) iteratorAdvance(iterVal value.Value) error {
	o, ok := asObject(iterVal)
	if !ok {
		return nil
	}
	if _, isGen := vm.genStates[o]; isGen {
		v, done, err := vm.resumeGenerator(o, resumeNormal, value.Undef())
		if err != nil {
			return err
		}
		st := vm.genStates[o]
		st.lastValue, st.lastDone = v, done
		return nil
	}
	st, ok := vm.iterStates[o]
	if !ok {
		return nil
	}
	switch st.kind {
	case iterArray:
		if st.idx >= st.length {
			st.done, st.current = true, value.Undef()
			return nil
		}
		v, err := st.arr.Get(value.NewPropertyKeyIndex(st.idx), value.ObjectRef(st.arr))
		if err != nil {
			return err
		}
		st.current = v
		st.idx++
	case iterString:
		units := st.str.Units()
		if st.strIdx >= len(units) {
			st.done, st.current = true, value.Undef()
			return nil
		}
		st.current = value.StrVal(stringFromUTF16(units[st.strIdx : st.strIdx+1]))
		st.strIdx++
	case iterForIn:
		if st.keyIdx >= len(st.keys) {
			st.done, st.current = true, value.Undef()
			return nil
		}
		st.current = value.Str(st.keys[st.keyIdx])
		st.keyIdx++
	}
	return nil
}

func (vm *VM) iteratorCurrentValue(iterVal value.Value) value.Value {
	o, ok := asObject(iterVal)
	if !ok {
		return value.Undef()
	}
	if st, isGen := vm.genStates[o]; isGen {
		return st.lastValue
	}
	if st, ok := vm.iterStates[o]; ok {
		return st.current
	}
	return value.Undef()
}

func (vm *VM) iteratorCurrentDone(iterVal value.Value) bool {
	o, ok := asObject(iterVal)
	if !ok {
		return true
	}
	if st, isGen := vm.genStates[o]; isGen {
		return st.lastDone
	}
	if st, ok := vm.iterStates[o]; ok {
		return st.done
	}
	return true
}

// iteratorClose drops the wrapper iterator's tracked state (IteratorClose
// on a generator is a no-op here: this engine's generators have no
// return()-on-close side effect to run beyond what an explicit
// `return` resume kind already provides).
func (vm *VM) iteratorClose(iterVal value.Value) {
	o, ok := asObject(iterVal)
	if !ok {
		return
	}
	delete(vm.iterStates, o)
}
