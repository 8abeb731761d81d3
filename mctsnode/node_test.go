package mctsnode

import (
	"context"
	"testing"

	"github.com/corvid-chess/azcore/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEvaluator returns a fixed set of (move, prior) pairs and value for
// every position, regardless of history — enough to exercise expansion,
// selection, and backprop without a real network or move generator.
type fakeEvaluator struct {
	moves []MoveEval
	value float32
	err   error
}

func (f *fakeEvaluator) Evaluate(h *board.History) (moves []MoveEval, value float32, err error) {
	return f.moves, f.value, f.err
}

func zobrist() *board.Zobrist { return board.NewZobristSeeded(1) }

func newTestHistory(t *testing.T) *board.History {
	t.Helper()
	h, err := board.NewHistory(zobrist())
	require.NoError(t, err)
	return h
}

func sampleMoves(h *board.History, n int) []MoveEval {
	legal := h.Current().ValidMoves()
	if n > len(legal) {
		n = len(legal)
	}
	out := make([]MoveEval, n)
	for i := 0; i < n; i++ {
		out[i] = MoveEval{Move: legal[i], Prior: float32(n - i)}
	}
	return out
}

func TestCreateChildrenPublishesSortedNormalizedPriors(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 4), value: 0.6}

	expanded, v := n.CreateChildren(context.Background(), eval, h)
	require.True(t, expanded)
	assert.InDelta(t, 0.6, v, 1e-6) // white to move, so whiteEval == v
	require.True(t, n.HasChildren())

	children := n.Children()
	require.Len(t, children, 4)

	var sum float32
	for i, c := range children {
		sum += c.Prior()
		if i > 0 {
			assert.GreaterOrEqual(t, children[i-1].Prior(), c.Prior(), "children must be sorted by descending prior")
		}
		assert.InDelta(t, 0.6, c.initEval, 1e-6)
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestCreateChildrenTwiceReturnsFalseSecondTime(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 3), value: 0.5}

	expanded, _ := n.CreateChildren(context.Background(), eval, h)
	require.True(t, expanded)

	expanded, v := n.CreateChildren(context.Background(), eval, h)
	assert.False(t, expanded)
	assert.Zero(t, v)
}

func TestCreateChildrenNoLegalMovesYieldsNoChildren(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: nil, value: 0}

	expanded, _ := n.CreateChildren(context.Background(), eval, h)
	assert.False(t, expanded)
	assert.False(t, n.HasChildren())
}

func TestCreateChildrenUniformPriorsWhenDegenerate(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	moves := sampleMoves(h, 3)
	for i := range moves {
		moves[i].Prior = 0
	}
	eval := &fakeEvaluator{moves: moves, value: 0.5}

	expanded, _ := n.CreateChildren(context.Background(), eval, h)
	require.True(t, expanded)
	for _, c := range n.Children() {
		assert.InDelta(t, 1.0/3.0, c.Prior(), 1e-6)
	}
}

func TestEvalUnvisitedReturnsInitEvalFlippedForBlack(t *testing.T) {
	n := New(board.NoMove, 0.5, 0.7)
	assert.InDelta(t, 0.7, n.Eval(White), 1e-6)
	assert.InDelta(t, 0.3, n.Eval(Black), 1e-6)
}

func TestEvalWhiteBlackSumToOne(t *testing.T) {
	n := New(board.NoMove, 0.5, 0.5)
	n.Update(0.2)
	n.Update(0.8)
	assert.InDelta(t, 1.0, n.Eval(White)+n.Eval(Black), 1e-6)
	assert.GreaterOrEqual(t, n.Eval(White), float32(0))
	assert.LessOrEqual(t, n.Eval(White), float32(1))
}

func TestVirtualLossMovesEvalTowardsWorstForMover(t *testing.T) {
	n := New(board.NoMove, 0.5, 0.5)
	n.Update(0.9) // one visit, strongly white-favoring
	before := n.Eval(Black)
	n.VirtualLossAdd()
	after := n.Eval(Black)
	assert.Less(t, after, before, "virtual loss should make the position look worse for the side about to move")
	n.VirtualLossUndo()
	assert.InDelta(t, before, n.Eval(Black), 1e-6)
}

func TestUpdateIncrementsVisitsMonotonically(t *testing.T) {
	n := New(board.NoMove, 0, 0.5)
	assert.Equal(t, uint32(0), n.Visits())
	n.Update(0.5)
	assert.Equal(t, uint32(1), n.Visits())
	n.Update(0.5)
	assert.Equal(t, uint32(2), n.Visits())
}

func TestSelectPicksHighestPriorWhenUnvisited(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 4), value: 0.5}
	_, _ = n.CreateChildren(context.Background(), eval, h)

	best := n.Select(White, 1.0, true, false)
	require.NotNil(t, best)
	children := n.Children()
	assert.Equal(t, children[0].Move(), best.Move()) // all unvisited: Q+U ties (U is 0 with no parent visits), so the first, highest-prior child wins
}

func TestSelectSkipsPrunedChildren(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 3), value: 0.5}
	_, _ = n.CreateChildren(context.Background(), eval, h)

	children := n.Children()
	children[0].SetActive(false)

	best := n.Select(White, 1.0, true, false)
	require.NotNil(t, best)
	assert.NotEqual(t, children[0].Move(), best.Move())
}

func TestDirichletNoisePreservesPriorSum(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 5), value: 0.5}
	_, _ = n.CreateChildren(context.Background(), eval, h)

	n.DirichletNoise(0.25, 0.3)

	var sum float32
	for _, c := range n.Children() {
		sum += c.Prior()
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestSortRootChildrenOrdersByVisitsThenPrior(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 3), value: 0.5}
	_, _ = n.CreateChildren(context.Background(), eval, h)

	children := n.Children()
	children[2].Update(0.9)
	children[2].Update(0.9)
	children[1].Update(0.9)

	n.SortRootChildren(White)
	sorted := n.Children()
	assert.Equal(t, uint32(2), sorted[0].Visits())
	assert.Equal(t, uint32(1), sorted[1].Visits())
	assert.Equal(t, uint32(0), sorted[2].Visits())
}

func TestDetachChildFindsByMove(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 3), value: 0.5}
	_, _ = n.CreateChildren(context.Background(), eval, h)

	children := n.Children()
	got := n.DetachChild(children[1].Move())
	require.NotNil(t, got)
	assert.Equal(t, children[1].Move(), got.Move())

	assert.Nil(t, n.DetachChild(board.NullMove))
}

func TestCountChildrenCountsActiveSubtreeOnly(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 3), value: 0.5}
	_, _ = n.CreateChildren(context.Background(), eval, h)

	assert.Equal(t, 3, n.CountChildren())
	n.Children()[0].SetActive(false)
	assert.Equal(t, 2, n.CountChildren())
}

func TestRandomizeFirstProportionallySwapsWithinFilters(t *testing.T) {
	h := newTestHistory(t)
	n := New(board.NoMove, 0, 0.5)
	eval := &fakeEvaluator{moves: sampleMoves(h, 3), value: 0.5}
	_, _ = n.CreateChildren(context.Background(), eval, h)

	children := n.Children()
	children[0].Update(0.9)
	children[0].Update(0.9)
	children[1].Update(0.9)

	// rnd always returns 0: picks the first (lowest-cumulative-weight)
	// candidate, which after SortRootChildren-style visit-descending sort
	// is the current best — so position 0 should be unchanged (a stable
	// no-op swap), confirming the draw respects the candidate filter.
	n.RandomizeFirstProportionally(White, 1.0, 0.5, 0.0, func() float32 { return 0 })
	assert.GreaterOrEqual(t, n.Children()[0].Visits(), uint32(1))
}
