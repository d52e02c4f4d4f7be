package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/esengine/internal/value"
)

func TestGetWalksPrototypeChain(t *testing.T) {
	proto := New(nil)
	_, err := CreateDataProperty(proto, value.NewPropertyKeyFromString("greeting"), value.Str("hi"))
	require.NoError(t, err)

	child := New(proto)
	got, err := child.Get(value.NewPropertyKeyFromString("greeting"), value.ObjectRef(child))
	require.NoError(t, err)
	assert.True(t, value.StrictEquals(got, value.Str("hi")))
}

func TestSetOnNonWritableInheritedPropertyFails(t *testing.T) {
	proto := New(nil)
	ok, err := proto.DefineOwnProperty(value.NewPropertyKeyFromString("k"), PropertyDescriptor{
		Value: value.Num(1), HasValue: true,
		Writable: false, HasWritable: true,
		Configurable: true, HasConfigurable: true,
	})
	require.NoError(t, err)
	require.True(t, ok)

	child := New(proto)
	wrote, err := child.Set(value.NewPropertyKeyFromString("k"), value.Num(2), child)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.False(t, child.HasOwnProperty(value.NewPropertyKeyFromString("k")))
}

func TestSetCreatesShadowingOwnProperty(t *testing.T) {
	proto := New(nil)
	_, err := CreateDataProperty(proto, value.NewPropertyKeyFromString("k"), value.Num(1))
	require.NoError(t, err)

	child := New(proto)
	wrote, err := child.Set(value.NewPropertyKeyFromString("k"), value.Num(2), child)
	require.NoError(t, err)
	assert.True(t, wrote)

	got, _ := child.Get(value.NewPropertyKeyFromString("k"), value.ObjectRef(child))
	assert.Equal(t, float64(2), got.AsNumber())
}

func TestAccessorDescriptorInvokesGetterAndSetter(t *testing.T) {
	var stored value.Value = value.Num(0)
	getter := NewFunction(nil, "get", 0, func(this value.Value, args []value.Value) (value.Value, error) {
		return stored, nil
	}, nil)
	setter := NewFunction(nil, "set", 1, func(this value.Value, args []value.Value) (value.Value, error) {
		stored = args[0]
		return value.Undef(), nil
	}, nil)

	o := New(nil)
	ok, err := o.DefineOwnProperty(value.NewPropertyKeyFromString("x"), PropertyDescriptor{
		Get: getter, HasGet: true,
		Set: setter, HasSet: true,
		Configurable: true, HasConfigurable: true,
	})
	require.NoError(t, err)
	require.True(t, ok)

	wrote, err := o.Set(value.NewPropertyKeyFromString("x"), value.Num(7), o)
	require.NoError(t, err)
	assert.True(t, wrote)

	got, err := o.Get(value.NewPropertyKeyFromString("x"), value.ObjectRef(o))
	require.NoError(t, err)
	assert.Equal(t, float64(7), got.AsNumber())
}

func TestDefineOwnPropertyRejectsNonConfigurableChanges(t *testing.T) {
	o := New(nil)
	key := value.NewPropertyKeyFromString("frozenish")
	_, err := o.DefineOwnProperty(key, PropertyDescriptor{
		Value: value.Num(1), HasValue: true,
		Configurable: false, HasConfigurable: true,
	})
	require.NoError(t, err)

	ok, err := o.DefineOwnProperty(key, PropertyDescriptor{
		Configurable: true, HasConfigurable: true,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRejectsNonConfigurable(t *testing.T) {
	o := New(nil)
	key := value.NewPropertyKeyFromString("k")
	_, _ = o.DefineOwnProperty(key, PropertyDescriptor{
		Value: value.Num(1), HasValue: true,
		Configurable: false, HasConfigurable: true,
	})
	ok, err := o.Delete(key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, o.HasOwnProperty(key))
}

func TestOwnPropertyKeysOrdering(t *testing.T) {
	o := New(nil)
	_, _ = CreateDataProperty(o, value.NewPropertyKeyFromString("b"), value.Num(1))
	_, _ = CreateDataProperty(o, value.NewPropertyKeyIndex(5), value.Num(1))
	_, _ = CreateDataProperty(o, value.NewPropertyKeyFromString("a"), value.Num(1))
	_, _ = CreateDataProperty(o, value.NewPropertyKeyIndex(1), value.Num(1))

	keys := o.OwnPropertyKeys()
	require.Len(t, keys, 4)
	assert.Equal(t, uint32(1), keys[0].Index())
	assert.Equal(t, uint32(5), keys[1].Index())
	assert.Equal(t, "b", keys[2].StringVal())
	assert.Equal(t, "a", keys[3].StringVal())
}

func TestFreezeLocksDownObject(t *testing.T) {
	o := New(nil)
	_, _ = CreateDataProperty(o, value.NewPropertyKeyFromString("k"), value.Num(1))
	Freeze(o)

	assert.True(t, IsFrozen(o))
	wrote, err := o.Set(value.NewPropertyKeyFromString("k"), value.Num(2), o)
	require.NoError(t, err)
	assert.False(t, wrote)

	ok, err := o.DefineOwnProperty(value.NewPropertyKeyFromString("new"), PropertyDescriptor{
		Value: value.Num(1), HasValue: true,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArrayDefineOwnPropertyGrowsLength(t *testing.T) {
	arr := NewArray(nil, []value.Value{value.Num(1), value.Num(2)})
	ok, err := arr.DefineOwnProperty(value.NewPropertyKeyIndex(5), PropertyDescriptor{
		Value: value.Num(9), HasValue: true,
		Writable: true, HasWritable: true,
		Enumerable: true, HasEnumerable: true,
		Configurable: true, HasConfigurable: true,
	})
	require.NoError(t, err)
	require.True(t, ok)

	lenDesc, ok := arr.GetOwnProperty(lengthKey)
	require.True(t, ok)
	assert.Equal(t, float64(6), lenDesc.Value.AsNumber())
}

func TestArraySetLengthTruncatesElements(t *testing.T) {
	arr := NewArray(nil, []value.Value{value.Num(1), value.Num(2), value.Num(3)})
	ok, err := arr.DefineOwnProperty(lengthKey, PropertyDescriptor{
		Value: value.Num(1), HasValue: true,
	})
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, arr.HasOwnProperty(value.NewPropertyKeyIndex(1)))
	assert.False(t, arr.HasOwnProperty(value.NewPropertyKeyIndex(2)))
	assert.True(t, arr.HasOwnProperty(value.NewPropertyKeyIndex(0)))
}

func TestSetPrototypeOfRejectsCycle(t *testing.T) {
	a := New(nil)
	b := New(a)
	ok, err := a.SetPrototypeOf(b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCallOnNonCallableFails(t *testing.T) {
	o := New(nil)
	_, err := o.Call(value.Undef(), nil)
	assert.ErrorIs(t, err, ErrNotCallable)
}
