package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionKeyDeterministic(t *testing.T) {
	z := NewZobristSeeded(42)
	h1, err := NewHistory(z)
	require.NoError(t, err)
	h2, err := NewHistory(z)
	require.NoError(t, err)
	assert.Equal(t, z.PositionKey(h1.Current()), z.PositionKey(h2.Current()))
	assert.Equal(t, z.FullKey(h1.Current()), z.FullKey(h2.Current()))
}

func TestPositionKeyDiffersAfterMove(t *testing.T) {
	z := NewZobristSeeded(7)
	h, err := NewHistory(z)
	require.NoError(t, err)
	before := z.PositionKey(h.Current())
	moves := h.Current().ValidMoves()
	require.NotEmpty(t, moves)
	require.NoError(t, h.DoMove(moves[0]))
	after := z.PositionKey(h.Current())
	assert.NotEqual(t, before, after)
}

func TestFullKeyIgnoresIrrelevantEPFile(t *testing.T) {
	// A position with an e.p. target file set in the FEN but no enemy pawn
	// able to execute the capture must key identically to the same position
	// with no e.p. target at all (spec §4.1 "equivalent to one without the
	// e.p. file").
	z := NewZobristSeeded(99)
	withEP, err := NewHistoryFromFEN("4k3/8/8/8/4P3/8/8/4K3 b - e3 0 1", z)
	require.NoError(t, err)
	withoutEP, err := NewHistoryFromFEN("4k3/8/8/8/4P3/8/8/4K3 b - - 0 1", z)
	require.NoError(t, err)
	assert.Equal(t, z.FullKey(withEP.Current()), z.FullKey(withoutEP.Current()))
}

func TestFullKeyDiffersWithCapturableEP(t *testing.T) {
	z := NewZobristSeeded(99)
	// Black pawn on d4 can capture en passant onto e3.
	withEP, err := NewHistoryFromFEN("4k3/8/8/8/3pP3/8/8/4K3 b - e3 0 1", z)
	require.NoError(t, err)
	withoutEP, err := NewHistoryFromFEN("4k3/8/8/8/3pP3/8/8/4K3 b - - 0 1", z)
	require.NoError(t, err)
	assert.NotEqual(t, z.FullKey(withEP.Current()), z.FullKey(withoutEP.Current()))
}

func TestFullKeyQuantizesRule50ByScale(t *testing.T) {
	z := NewZobristSeeded(123)
	z.RULE50Scale = 10
	a, err := NewHistoryFromFEN("4k3/8/8/8/8/8/8/4K3 w - - 3 1", z)
	require.NoError(t, err)
	b, err := NewHistoryFromFEN("4k3/8/8/8/8/8/8/4K3 w - - 7 1", z)
	require.NoError(t, err)
	// Both halfmove clocks quantize to the same bucket (3/10 == 7/10 == 0),
	// so the full key should agree even though Rule50() differs.
	assert.NotEqual(t, a.Current().Rule50(), b.Current().Rule50())
	assert.Equal(t, z.FullKey(a.Current()), z.FullKey(b.Current()))
}
