package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkedCell is a minimal Tracer used to build reachability graphs in
// tests: it holds direct child cells and traces each of them.
type linkedCell struct {
	children []*Cell
}

func (l *linkedCell) Trace(v *Visitor) {
	for _, c := range l.children {
		v.Mark(c)
	}
}

func TestCollectReclaimsUnreachable(t *testing.T) {
	h := NewHeap(0)

	leafPayload := &linkedCell{}
	leaf, err := h.Alloc(leafPayload, 8)
	require.NoError(t, err)

	rootPayload := &linkedCell{children: []*Cell{leaf}}
	root, err := h.Alloc(rootPayload, 8)
	require.NoError(t, err)

	garbagePayload := &linkedCell{}
	_, err = h.Alloc(garbagePayload, 8)
	require.NoError(t, err)

	assert.Equal(t, 3, h.Len())

	handle := h.Root(root)
	defer handle.Release()

	collected := h.Collect()
	assert.Equal(t, 1, collected)
	assert.Equal(t, 2, h.Len())
}

func TestCollectReclaimsEverythingOnceUnrooted(t *testing.T) {
	h := NewHeap(0)
	c, err := h.Alloc(&linkedCell{}, 16)
	require.NoError(t, err)

	handle := h.Root(c)
	h.Collect()
	assert.Equal(t, 1, h.Len())

	handle.Release()
	collected := h.Collect()
	assert.Equal(t, 1, collected)
	assert.Equal(t, 0, h.Len())
}

func TestCollectHandlesCycles(t *testing.T) {
	h := NewHeap(0)
	aPayload := &linkedCell{}
	a, err := h.Alloc(aPayload, 8)
	require.NoError(t, err)
	bPayload := &linkedCell{children: []*Cell{a}}
	b, err := h.Alloc(bPayload, 8)
	require.NoError(t, err)
	aPayload.children = []*Cell{b} // a <-> b cycle, nothing external roots it

	collected := h.Collect()
	assert.Equal(t, 2, collected)
	assert.Equal(t, 0, h.Len())
}

func TestAllocRespectsBudget(t *testing.T) {
	h := NewHeap(16)
	_, err := h.Alloc(&linkedCell{}, 10)
	require.NoError(t, err)

	_, err = h.Alloc(&linkedCell{}, 10)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestBorrowGuardDetectsWriteDuringRead(t *testing.T) {
	c := &Cell{}
	require.NoError(t, c.BeginRead())
	err := c.BeginWrite()
	assert.ErrorIs(t, err, ErrBorrowViolation)
	c.EndRead()
	assert.NoError(t, c.BeginWrite())
	c.EndWrite()
}

func TestBorrowGuardDetectsReadDuringWrite(t *testing.T) {
	c := &Cell{}
	require.NoError(t, c.BeginWrite())
	err := c.BeginRead()
	assert.ErrorIs(t, err, ErrBorrowViolation)
	c.EndWrite()
	assert.NoError(t, c.BeginRead())
}

func TestMultipleHandlesKeepCellRootedUntilAllReleased(t *testing.T) {
	h := NewHeap(0)
	c, err := h.Alloc(&linkedCell{}, 4)
	require.NoError(t, err)

	h1 := h.Root(c)
	h2 := h.Root(c)

	h1.Release()
	h.Collect()
	assert.Equal(t, 1, h.Len(), "second handle should still root the cell")

	h2.Release()
	h.Collect()
	assert.Equal(t, 0, h.Len())
}
