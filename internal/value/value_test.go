package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameValueNaNAndZero(t *testing.T) {
	nan := Num(math.NaN())
	assert.True(t, SameValue(nan, nan))
	assert.False(t, StrictEquals(nan, nan))

	posZero := Num(0)
	negZero := Num(math.Copysign(0, -1))
	assert.True(t, StrictEquals(posZero, negZero))
	assert.False(t, SameValue(posZero, negZero))
}

func TestSameValueZeroTreatsZerosEqual(t *testing.T) {
	posZero := Num(0)
	negZero := Num(math.Copysign(0, -1))
	assert.True(t, SameValueZero(posZero, negZero))
}

func TestToBoolean(t *testing.T) {
	assert.False(t, Undef().ToBoolean())
	assert.False(t, Nul().ToBoolean())
	assert.False(t, Num(0).ToBoolean())
	assert.False(t, Num(math.NaN()).ToBoolean())
	assert.True(t, Num(1).ToBoolean())
	assert.False(t, Str("").ToBoolean())
	assert.True(t, Str("a").ToBoolean())
}

func TestPropertyKeyCanonicalIndexNormalization(t *testing.T) {
	k := NewPropertyKeyFromString("42")
	assert.True(t, k.IsIndex())
	assert.Equal(t, uint32(42), k.Index())

	k2 := NewPropertyKeyFromString("042")
	assert.True(t, k2.IsString(), "leading zero must not be an index")

	k3 := NewPropertyKeyFromString("-1")
	assert.True(t, k3.IsString())
}

func TestStringConcatAndEqual(t *testing.T) {
	a := NewString("abc")
	b := NewString("def")
	c := a.Concat(b)
	assert.Equal(t, "abcdef", c.Go())
	assert.True(t, c.Equal(NewString("abcdef")))
}
