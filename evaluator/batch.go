// Package evaluator implements the batching evaluator (spec §4.3): it
// wraps a single network.Computation, deduplicating cache hits from real
// network work and writing fresh results back into the evaluation cache.
package evaluator

import (
	"github.com/corvid-chess/azcore/board"
	"github.com/corvid-chess/azcore/evalcache"
	"github.com/corvid-chess/azcore/moveindex"
	"github.com/corvid-chess/azcore/network"
	"gorgonia.org/vecf32"
)

type source int

const (
	sourceCached source = iota
	sourceNetwork
)

type batchEntry struct {
	key    uint64
	src    source
	ref    *evalcache.Ref // set when src == sourceCached
	netIdx int            // set when src == sourceNetwork: index within the underlying computation
	moves  []evalcache.MoveEval
}

// Batch is one ordered collection of positions to be evaluated together:
// some short-circuited via the cache, the rest pushed into a single
// network.Computation.
type Batch struct {
	cache   *evalcache.Cache
	comp    network.Computation
	index   *moveindex.Index
	entries []batchEntry
	color   []int // per-entry side-to-move, needed to convert move-ids back to board.Move
}

// New builds a Batch over comp, backed by cache and idx.
func New(cache *evalcache.Cache, comp network.Computation, idx *moveindex.Index) *Batch {
	return &Batch{cache: cache, comp: comp, index: idx}
}

// AddByHash records a cache hit for key if one exists, without doing any
// network work. Returns true on a hit.
func (b *Batch) AddByHash(key uint64) bool {
	ref, ok := b.cache.Lookup(key)
	if !ok {
		return false
	}
	b.entries = append(b.entries, batchEntry{key: key, src: sourceCached, ref: ref})
	b.color = append(b.color, 0)
	return true
}

// Add records key for evaluation: a cache hit short-circuits, otherwise
// planes is pushed into the underlying network computation and movesToCache
// records which legal moves should be cached once the batch runs.
func (b *Batch) Add(key uint64, color int, planes *network.Planes, movesToCache []board.Move) error {
	if b.AddByHash(key) {
		return nil
	}
	idx, err := b.comp.AddInput(planes)
	if err != nil {
		return err
	}
	moves := make([]evalcache.MoveEval, len(movesToCache))
	for i, m := range movesToCache {
		moves[i] = evalcache.MoveEval{Move: m}
	}
	b.entries = append(b.entries, batchEntry{key: key, src: sourceNetwork, netIdx: idx, moves: moves})
	b.color = append(b.color, color)
	return nil
}

// PopLastHit removes the most recently added cached entry — used to
// abandon a speculative prefetch (spec §4.3).
func (b *Batch) PopLastHit() {
	n := len(b.entries)
	if n == 0 || b.entries[n-1].src != sourceCached {
		return
	}
	last := b.entries[n-1]
	b.cache.Unpin(last.key, last.ref)
	b.entries = b.entries[:n-1]
	b.color = b.color[:n-1]
}

// ComputeBlocking runs the underlying network computation (if any entry
// actually needs it), then inserts a CachedEval into the cache for every
// freshly-computed entry.
func (b *Batch) ComputeBlocking() error {
	needsNetwork := false
	for _, e := range b.entries {
		if e.src == sourceNetwork {
			needsNetwork = true
			break
		}
	}
	if !needsNetwork {
		return nil
	}
	if err := b.comp.ComputeBlocking(); err != nil {
		return err
	}

	for i := range b.entries {
		e := &b.entries[i]
		if e.src != sourceNetwork {
			continue
		}
		q := b.comp.Q(e.netIdx)
		priors := make([]float32, len(e.moves))
		for j, mv := range e.moves {
			id, ok := b.index.Lookup(mv.Move, b.color[i])
			if !ok {
				continue
			}
			priors[j] = b.comp.P(e.netIdx, id)
		}
		normalizePriors(priors)
		for j := range e.moves {
			e.moves[j].Prior = priors[j]
		}
		cv := &evalcache.CachedEval{Q: q, Moves: e.moves}
		e.ref = b.cache.Insert(e.key, cv, false)
	}
	return nil
}

// normalizePriors renormalizes priors to sum to 1, using vecf32 for the
// vectorized sum (spec §4.4 step 5's renormalization, reused here so
// a cached record's priors are always pre-normalized).
func normalizePriors(priors []float32) {
	if len(priors) == 0 {
		return
	}
	sum := vecf32.Sum(priors)
	if sum > 1e-6 {
		inv := 1 / sum
		for i := range priors {
			priors[i] *= inv
		}
		return
	}
	uniform := 1 / float32(len(priors))
	for i := range priors {
		priors[i] = uniform
	}
}

// Q returns the value for sample i, from the side-to-move perspective of
// the position that was evaluated.
func (b *Batch) Q(sample int) float32 {
	e := &b.entries[sample]
	if e.ref != nil {
		return e.ref.Eval().Q
	}
	return b.comp.Q(e.netIdx)
}

// Moves returns the (move, prior) pairs considered for sample i.
func (b *Batch) Moves(sample int) []evalcache.MoveEval {
	e := &b.entries[sample]
	if e.ref != nil {
		return e.ref.Eval().Moves
	}
	return e.moves
}

// Len returns how many entries were added to the batch.
func (b *Batch) Len() int { return len(b.entries) }

// Unpin releases the cache pins this batch is holding — callers must do
// this once they're done reading back results.
func (b *Batch) Unpin() {
	for i := range b.entries {
		e := &b.entries[i]
		if e.ref != nil {
			b.cache.Unpin(e.key, e.ref)
		}
	}
}
