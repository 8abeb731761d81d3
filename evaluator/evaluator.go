package evaluator

import (
	"github.com/corvid-chess/azcore/board"
	"github.com/corvid-chess/azcore/evalcache"
	"github.com/corvid-chess/azcore/moveindex"
	"github.com/corvid-chess/azcore/network"
	"github.com/notnil/chess"
)

// Evaluator is the per-leaf entry point mctsnode uses during expansion
// (spec §4.4 step 3, "call the batching evaluator on the position"). Each
// call builds a single-sample Batch: the cache-dedup/short-circuit and
// cache-population machinery of Batch is fully exercised, but this
// package does not coalesce leaves discovered by independent concurrent
// workers into one larger network batch.
type Evaluator struct {
	cache *evalcache.Cache
	pool  *network.Pool
	index *moveindex.Index
	z     *board.Zobrist
}

// New builds an Evaluator over a shared cache, network pool, and move
// index.
func New(cache *evalcache.Cache, pool *network.Pool, index *moveindex.Index, z *board.Zobrist) *Evaluator {
	return &Evaluator{cache: cache, pool: pool, index: index, z: z}
}

// MoveEval is a (move, prior) pair, re-exported so mctsnode need not
// import evalcache directly.
type MoveEval = evalcache.MoveEval

// Evaluate runs (or short-circuits via cache) the network for h's current
// position, returning the side-to-move-perspective value and the legal
// moves with their priors.
func (e *Evaluator) Evaluate(h *board.History) (moves []MoveEval, value float32, err error) {
	pos := h.Current()
	key := e.z.FullKey(pos)

	comp := e.pool.Acquire()
	defer e.pool.Release(comp)

	b := New(e.cache, comp, e.index)
	defer b.Unpin()

	color := colorOf(pos.Turn())
	legal := pos.ValidMoves()
	planes := network.Encode(h)
	if err := b.Add(key, color, planes, legal); err != nil {
		return nil, 0, err
	}
	if err := b.ComputeBlocking(); err != nil {
		return nil, 0, err
	}
	return b.Moves(0), b.Q(0), nil
}

func colorOf(c chess.Color) int {
	if c == chess.Black {
		return moveindex.Black
	}
	return moveindex.White
}
