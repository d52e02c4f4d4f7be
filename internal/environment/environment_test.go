package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/esengine/internal/gc"
	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

func TestDeclarativeBindingLifecycle(t *testing.T) {
	heap := gc.NewHeap(0)
	env, err := NewDeclarative(heap, nil)
	require.NoError(t, err)

	idx := env.CreateMutableBinding("x")
	_, err = env.GetBindingAt(idx)
	assert.ErrorIs(t, err, ErrUninitialized)

	env.InitializeBindingAt(idx, value.Num(1))
	v, err := env.GetBindingAt(idx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.AsNumber())

	require.NoError(t, env.SetBindingAt(idx, value.Num(2)))
	v, _ = env.GetBindingAt(idx)
	assert.Equal(t, float64(2), v.AsNumber())
}

func TestImmutableBindingRejectsSet(t *testing.T) {
	heap := gc.NewHeap(0)
	env, err := NewDeclarative(heap, nil)
	require.NoError(t, err)

	idx := env.CreateImmutableBinding("c")
	env.InitializeBindingAt(idx, value.Num(1))
	err = env.SetBindingAt(idx, value.Num(2))
	assert.ErrorIs(t, err, ErrAssignToConst)
}

func TestLocatorResolvesThroughParentChain(t *testing.T) {
	heap := gc.NewHeap(0)
	outer, err := NewDeclarative(heap, nil)
	require.NoError(t, err)
	outerIdx := outer.CreateMutableBinding("y")
	outer.InitializeBindingAt(outerIdx, value.Str("outer"))

	inner, err := NewDeclarative(heap, outer)
	require.NoError(t, err)

	loc := NewSlotLocator(1, outerIdx, "y", true)
	v, err := GetBinding(inner, loc)
	require.NoError(t, err)
	assert.True(t, value.StrictEquals(v, value.Str("outer")))

	require.NoError(t, SetBinding(inner, loc, value.Str("changed")))
	v, _ = GetBinding(outer, NewSlotLocator(0, outerIdx, "y", true))
	assert.True(t, value.StrictEquals(v, value.Str("changed")))
}

func TestObjectBackedEnvironmentDelegatesToGlobalObject(t *testing.T) {
	heap := gc.NewHeap(0)
	global := object.New(nil)
	env, err := NewObjectBacked(heap, nil, global)
	require.NoError(t, err)

	assert.False(t, env.HasBinding("g"))
	err = env.SetMutableBinding("g", value.Num(5))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = object.CreateDataProperty(global, value.NewPropertyKeyFromString("g"), value.Num(5))
	require.NoError(t, err)
	assert.True(t, env.HasBinding("g"))

	v, err := env.GetBindingValue("g")
	require.NoError(t, err)
	assert.Equal(t, float64(5), v.AsNumber())

	require.NoError(t, env.SetMutableBinding("g", value.Num(9)))
	v, _ = env.GetBindingValue("g")
	assert.Equal(t, float64(9), v.AsNumber())
}

func TestDeclarativeBindingsAreNotDeletable(t *testing.T) {
	heap := gc.NewHeap(0)
	env, err := NewDeclarative(heap, nil)
	require.NoError(t, err)
	env.CreateMutableBinding("x")
	ok, err := env.DeleteBinding("x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTraceMarksSlotValues(t *testing.T) {
	heap := gc.NewHeap(0)
	inner := object.New(nil)
	innerCell, err := heap.Alloc(inner, 8)
	require.NoError(t, err)
	inner.Cell = innerCell

	outer, err := NewDeclarative(heap, nil)
	require.NoError(t, err)
	idx := outer.CreateMutableBinding("o")
	outer.InitializeBindingAt(idx, value.ObjectRef(inner))

	root := heap.Root(outer.Cell)
	defer root.Release()

	collected := heap.Collect()
	assert.Equal(t, 0, collected, "env and the object its binding references should both survive")
	assert.Equal(t, 2, heap.Len())
}
