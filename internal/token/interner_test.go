package token

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternReturnsStableHandles(t *testing.T) {
	in := NewInterner()
	a := in.Intern("foo")
	b := in.Intern("bar")
	require.NotEqual(t, NoAtom, a)
	require.NotEqual(t, NoAtom, b)
	assert.NotEqual(t, a, b)

	assert.Equal(t, a, in.Intern("foo"), "re-interning must yield the same atom")
	assert.Equal(t, 2, in.Len())
}

func TestLookupRoundTrip(t *testing.T) {
	in := NewInterner()
	a := in.Intern("console")
	s, ok := in.Lookup(a)
	require.True(t, ok)
	assert.Equal(t, "console", s)

	_, ok = in.Lookup(NoAtom)
	assert.False(t, ok)
	_, ok = in.Lookup(Atom(999))
	assert.False(t, ok)
}

func TestMustLookupPanicsOnUnknownAtom(t *testing.T) {
	in := NewInterner()
	assert.Panics(t, func() { in.MustLookup(Atom(7)) })
}

func TestInternConcurrent(t *testing.T) {
	in := NewInterner()
	var wg sync.WaitGroup
	atoms := make([][]Atom, 8)
	for g := 0; g < 8; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			atoms[g] = make([]Atom, 100)
			for i := 0; i < 100; i++ {
				atoms[g][i] = in.Intern(fmt.Sprintf("atom-%d", i))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, in.Len())
	for g := 1; g < 8; g++ {
		assert.Equal(t, atoms[0], atoms[g], "goroutine %d disagreed on atom handles", g)
	}
}
