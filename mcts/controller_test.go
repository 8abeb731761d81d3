package mcts

import (
	"testing"
	"time"

	"github.com/corvid-chess/azcore/board"
	"github.com/corvid-chess/azcore/mctsnode"
	"github.com/corvid-chess/azcore/timectl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniformEvaluator mimics the network's Uniform stand-in directly against
// mctsnode.Evaluator, so the controller and its workers can be exercised
// without a real network, cache, or move index.
type uniformEvaluator struct{}

func (uniformEvaluator) Evaluate(h *board.History) (moves []mctsnode.MoveEval, value float32, err error) {
	legal := h.Current().ValidMoves()
	out := make([]mctsnode.MoveEval, len(legal))
	for i, m := range legal {
		out[i] = mctsnode.MoveEval{Move: m, Prior: 1}
	}
	return out, 0.5, nil
}

func newTestHistory(t *testing.T) *board.History {
	t.Helper()
	h, err := board.NewHistory(board.NewZobristSeeded(1))
	require.NoError(t, err)
	return h
}

func singleWorkerConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.ApplyRootNoise = false
	return cfg
}

func TestThinkReturnsLegalMove(t *testing.T) {
	h := newTestHistory(t)
	ctrl := New(uniformEvaluator{}, singleWorkerConfig())

	move, err := ctrl.Think(h, timectl.Limits{MoveTime: 50 * time.Millisecond})
	require.NoError(t, err)

	legal := h.Current().ValidMoves()
	found := false
	for _, m := range legal {
		if m == move {
			found = true
			break
		}
	}
	assert.True(t, found, "Think must return one of the position's legal moves")
}

func TestThinkOnCheckmateReturnsErrNoLegalMoves(t *testing.T) {
	h, err := board.NewHistoryFromFEN(
		"r1bqkbnr/pppp1Qpp/2n5/4p3/2B1P3/8/PPPP1PPP/RNB1K1NR b KQkq - 0 3",
		board.NewZobristSeeded(1))
	require.NoError(t, err)
	ctrl := New(uniformEvaluator{}, singleWorkerConfig())

	_, err = ctrl.Think(h, timectl.Limits{MoveTime: 20 * time.Millisecond})
	assert.Equal(t, ErrNoLegalMoves, err)
}

func TestThinkReusesTreeAcrossMoves(t *testing.T) {
	h := newTestHistory(t)
	ctrl := New(uniformEvaluator{}, singleWorkerConfig())

	move, err := ctrl.Think(h, timectl.Limits{MoveTime: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, h.DoMove(move))

	// After Think, ctrl.root is the played child — the subtree tree reuse
	// (spec §4.4 "Tree reuse") adopts as the new search root next call.
	playedChild := ctrl.root
	require.NotNil(t, playedChild)
	reusedVisitsBeforeSecondThink := playedChild.Visits()

	move2, err := ctrl.Think(h, timectl.Limits{MoveTime: 50 * time.Millisecond})
	require.NoError(t, err)

	legal := h.Current().ValidMoves()
	found := false
	for _, m := range legal {
		if m == move2 {
			found = true
			break
		}
	}
	assert.True(t, found)
	// The played child already carried visits into the second Think, and
	// that Think searched from it: its new root is one of its children.
	assert.GreaterOrEqual(t, reusedVisitsBeforeSecondThink, uint32(1))
	assert.Same(t, playedChild.FindChild(move2), ctrl.root)
}

func TestThinkOnNewPositionStartsFreshRoot(t *testing.T) {
	h := newTestHistory(t)
	ctrl := New(uniformEvaluator{}, singleWorkerConfig())

	_, err := ctrl.Think(h, timectl.Limits{MoveTime: 30 * time.Millisecond})
	require.NoError(t, err)

	other, err := board.NewHistoryFromFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", board.NewZobristSeeded(1))
	require.NoError(t, err)
	_, err = ctrl.Think(other, timectl.Limits{MoveTime: 10 * time.Millisecond})
	assert.Equal(t, ErrNoLegalMoves, err)
}

func TestPVDescendsMostVisitedChildren(t *testing.T) {
	h := newTestHistory(t)
	ctrl := New(uniformEvaluator{}, singleWorkerConfig())
	_, err := ctrl.Think(h, timectl.Limits{MoveTime: 80 * time.Millisecond})
	require.NoError(t, err)

	pv := PV(ctrl.root, mctsnode.White, 4)
	assert.NotEmpty(t, pv)

	formatted := FormatPV(ctrl.root, mctsnode.White, 4)
	assert.NotEmpty(t, formatted)
}
