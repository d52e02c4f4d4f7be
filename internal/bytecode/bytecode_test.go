package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cb := &CodeBlock{
		RegWidth: RegisterWidthFor(3),
		Code: []Instr{
			{Op: OpLoadConst, A: 0, B: 0},
			{Op: OpLoadConst, A: 1, B: 1},
			{Op: OpAdd, A: 2, B: 0, C: 1},
			{Op: OpReturn, A: 2},
		},
	}
	raw := cb.Encode()
	decoded, err := Decode(raw, cb.RegWidth)
	require.NoError(t, err)
	assert.Equal(t, cb.Code, decoded)
}

func TestRegisterWidthForPicksNarrowestWidth(t *testing.T) {
	assert.Equal(t, uint8(1), RegisterWidthFor(200))
	assert.Equal(t, uint8(2), RegisterWidthFor(1000))
	assert.Equal(t, uint8(4), RegisterWidthFor(1<<20))
}

func TestHandlerForPicksInnermostMatch(t *testing.T) {
	cb := &CodeBlock{
		Handlers: []HandlerEntry{
			{Start: 0, End: 100, HandlerPC: 50},
			{Start: 10, End: 20, HandlerPC: 15},
		},
	}
	h, ok := cb.HandlerFor(12)
	require.True(t, ok)
	assert.Equal(t, 15, h.HandlerPC)

	h, ok = cb.HandlerFor(60)
	require.True(t, ok)
	assert.Equal(t, 50, h.HandlerPC)

	_, ok = cb.HandlerFor(500)
	assert.False(t, ok)
}

func TestEncodeNegativeOperandsAtEachWidth(t *testing.T) {
	for _, width := range []uint8{1, 2, 4} {
		cb := &CodeBlock{
			RegWidth: width,
			Code:     []Instr{{Op: OpJump, A: -1}},
		}
		raw := cb.Encode()
		decoded, err := Decode(raw, width)
		require.NoError(t, err)
		assert.Equal(t, int32(-1), decoded[0].A)
	}
}
