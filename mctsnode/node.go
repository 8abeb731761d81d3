// Package mctsnode implements the MCTS search tree node (spec §3 "Search
// node", §4.4): selection, expansion, and the concurrent-update atomics
// that let many playout workers visit the same tree at once.
package mctsnode

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/corvid-chess/azcore/board"
	"github.com/corvid-chess/azcore/evalcache"
	distrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"
)

// Color is White or Black, mirroring chess.Color without importing it here
// (mctsnode only needs two sides, not the rest of the rules package).
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is a node's search-time status: active participants in PUCT
// selection, or pruned non-contenders (spec §3).
type Status uint32

const (
	Active Status = iota
	Pruned
)

// Evaluator is what Node.CreateChildren needs from the batching evaluator
// (spec §4.3): a blocking call that returns legal (move, prior) pairs and
// a side-to-move-perspective value for the position the history is
// currently sitting on.
type Evaluator interface {
	Evaluate(h *board.History) (moves []MoveEval, value float32, err error)
}

// MoveEval is a (move, prior) pair from the network. Aliased to
// evalcache.MoveEval so the evaluation cache, the batching evaluator, and
// the tree all share one type instead of converting slices at each
// boundary.
type MoveEval = evalcache.MoveEval

// fpuCoef scales the FPU reduction applied to unvisited children (spec
// §4.4 uct_select_child).
const fpuCoef = 0.25

// virtualLossCount is the fixed per-visit virtual-loss penalty (spec §4.4
// "Virtual loss").
const virtualLossCount = 3

// Node is a single vertex in the MCTS tree (spec §3, §4.4). Each node
// exclusively owns its children; there is no parent pointer — descent
// keeps its own stack of borrowed references, and back-propagation walks
// that stack (spec §9).
type Node struct {
	move     board.Move
	prior    float32 // mutable only during root Dirichlet noise
	initEval float32 // parent's eval at construction time; immutable FPU baseline

	visits      uint32 // atomic
	virtualLoss int32  // atomic
	whiteEvals  uint32 // atomic; float32 bits, CAS-updated

	status uint32 // atomic Status

	mu          sync.Mutex
	children    []*Node
	isExpanding uint32 // atomic bool
	hasChildren atomic.Bool
}

// New constructs a child node. initEval is the parent's current estimate,
// used as this node's FPU baseline until it has its own visits (spec
// §4.4 "Creation").
func New(move board.Move, prior, initEval float32) *Node {
	return &Node{move: move, prior: prior, initEval: initEval, status: uint32(Active)}
}

func (n *Node) Move() board.Move   { return n.move }
func (n *Node) Prior() float32     { return n.prior }
func (n *Node) Visits() uint32     { return atomic.LoadUint32(&n.visits) }
func (n *Node) VirtualLoss() int32 { return atomic.LoadInt32(&n.virtualLoss) }
func (n *Node) HasChildren() bool  { return n.hasChildren.Load() }
func (n *Node) Status() Status     { return Status(atomic.LoadUint32(&n.status)) }
func (n *Node) IsActive() bool     { return n.Status() == Active }

// Children returns the node's children. Only valid once HasChildren() is
// true; the release/acquire pairing on hasChildren guarantees a reader
// that observes true also observes a fully populated slice (spec §5).
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.children
}

// SetActive toggles the node between Active and Pruned (spec §4.6
// have_alternate_moves pruning).
func (n *Node) SetActive(active bool) {
	v := uint32(Pruned)
	if active {
		v = uint32(Active)
	}
	atomic.StoreUint32(&n.status, v)
}

// whiteEvalsLoad / atomicAddFloat32 implement the CAS-loop atomic
// floating-point add the spec calls for explicitly (§5, §9): correctness
// under contention comes from idempotent retry, not from a wider lock.
func (n *Node) whiteEvalsLoad() float32 {
	return math32.Float32frombits(atomic.LoadUint32(&n.whiteEvals))
}

func (n *Node) atomicAddWhiteEvals(delta float32) {
	for {
		old := atomic.LoadUint32(&n.whiteEvals)
		newV := math32.Float32frombits(old) + delta
		if atomic.CompareAndSwapUint32(&n.whiteEvals, old, math32.Float32bits(newV)) {
			return
		}
	}
}

// Eval returns the node's current value estimate from color's perspective
// (spec §4.4 "Eval read"). It snapshots virtual loss once so the returned
// score stays in [0,1] even while other workers are mid-descent.
func (n *Node) Eval(color Color) float32 {
	vl := float32(atomic.LoadInt32(&n.virtualLoss))
	visits := atomic.LoadUint32(&n.visits)
	total := float32(visits) + vl
	if total == 0 {
		if color == Black {
			return 1 - n.initEval
		}
		return n.initEval
	}
	w := n.whiteEvalsLoad()
	if color == Black {
		w += vl
	}
	score := w / total
	if color == White {
		return score
	}
	return 1 - score
}

// Update records a completed simulation's result (white POV) into this
// node (spec §4.4 "Update").
func (n *Node) Update(evalWhitePov float32) {
	n.atomicAddWhiteEvals(evalWhitePov)
	atomic.AddUint32(&n.visits, 1)
}

// VirtualLossAdd applies the transient in-flight-visit penalty during
// descent (spec §4.4, §4.5).
func (n *Node) VirtualLossAdd() { atomic.AddInt32(&n.virtualLoss, virtualLossCount) }

// VirtualLossUndo removes the penalty once back-propagation passes
// through this node.
func (n *Node) VirtualLossUndo() { atomic.AddInt32(&n.virtualLoss, -virtualLossCount) }

// CreateChildren expands this node (spec §4.4 "Expansion"). It returns
// false (without mutating children) if another goroutine already expanded
// or is expanding this node, or if the position has no legal moves
// (terminal) — callers are expected to treat that as "no children" rather
// than an error (spec §7 TerminalPosition/ExpansionLostRace).
func (n *Node) CreateChildren(ctx context.Context, eval Evaluator, h *board.History) (expanded bool, whiteEval float32) {
	if n.hasChildren.Load() {
		return false, 0
	}
	if !atomic.CompareAndSwapUint32(&n.isExpanding, 0, 1) {
		return false, 0 // another goroutine claimed expansion first
	}
	defer atomic.StoreUint32(&n.isExpanding, 0)
	if n.hasChildren.Load() {
		return false, 0
	}

	moves, v, err := eval.Evaluate(h)
	if err != nil || len(moves) == 0 {
		return false, 0
	}

	stm := colorOf(h.Current())
	whiteEval = v
	if stm == Black {
		whiteEval = 1 - v
	}

	rescalePriors(moves)
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].Prior > moves[j].Prior })

	children := make([]*Node, len(moves))
	for i, m := range moves {
		children[i] = New(m.Move, m.Prior, whiteEval)
	}

	n.mu.Lock()
	n.children = children
	n.mu.Unlock()
	n.hasChildren.Store(true) // release: publishes the now-populated children slice
	return true, whiteEval
}

func colorOf(pos *board.Position) Color {
	if pos.Turn() == 2 { // chess.Black == 2 in notnil/chess's iota (NoColor, White, Black)
		return Black
	}
	return White
}

func rescalePriors(moves []MoveEval) {
	var sum float32
	for _, m := range moves {
		sum += m.Prior
	}
	if sum > math32.SmallestNonzeroFloat32*float32(len(moves)) {
		for i := range moves {
			moves[i].Prior /= sum
		}
		return
	}
	uniform := 1 / float32(len(moves))
	for i := range moves {
		moves[i].Prior = uniform
	}
}

// Select runs PUCT selection among active children (spec §4.4
// "Selection"). isRoot and noiseApplied together silence the FPU
// reduction exactly when Dirichlet noise was mixed into the root's
// priors, per spec.
func (n *Node) Select(color Color, puct float32, isRoot, noiseApplied bool) *Node {
	children := n.Children()

	var parentVisits uint32
	var totalVisitedPolicy float32
	for _, c := range children {
		v := c.Visits()
		parentVisits += v
		if v > 0 {
			totalVisitedPolicy += c.Prior()
		}
	}

	fpuReduction := float32(0)
	if !(isRoot && noiseApplied) {
		fpuReduction = fpuCoef * math32.Sqrt(totalVisitedPolicy)
	}

	// Any not-yet-visited child carries the parent's net eval as its
	// initEval — used here as the baseline before the reduction.
	netEval := n.initEval
	for _, c := range children {
		if c.Visits() == 0 {
			netEval = c.initEval
			break
		}
	}
	fpuEval := netEval - fpuReduction

	numerator := math32.Sqrt(float32(parentVisits))
	var best *Node
	bestValue := math32.Inf(-1)
	for _, c := range children {
		if !c.IsActive() {
			continue
		}
		visits := c.Visits()
		q := fpuEval
		if visits > 0 {
			q = c.Eval(color)
		}
		u := puct * c.Prior() * numerator / (1 + float32(visits))
		if val := q + u; val > bestValue {
			bestValue = val
			best = c
		}
	}
	return best
}

// CountChildren recursively counts all active descendants, not including
// this node (used to size the tree against MaxTreeSize).
func (n *Node) CountChildren() int {
	total := 0
	for _, c := range n.Children() {
		if c.IsActive() {
			total += c.CountChildren()
			total++
		}
	}
	return total
}

// FindChild returns the first child whose incoming move equals m, or nil.
func (n *Node) FindChild(m board.Move) *Node {
	for _, c := range n.Children() {
		if c.move == m {
			return c
		}
	}
	return nil
}

// DirichletNoise mixes a Dirichlet(alpha) sample into the root's children
// priors: p <- (1-eps)*p + eps*eta (spec §4.4 "Root-only operations").
// Called once per new search when exploration noise is enabled.
func (n *Node) DirichletNoise(eps, alpha float32) {
	children := n.Children()
	if len(children) == 0 {
		return
	}
	a := make([]float64, len(children))
	for i := range a {
		a[i] = float64(alpha)
	}
	dist, ok := distmv.NewDirichlet(a, distrand.NewSource(uint64(time.Now().UnixNano())))
	if !ok {
		return
	}
	sample := dist.Rand(nil)

	n.mu.Lock()
	defer n.mu.Unlock()
	for i, c := range n.children {
		c.prior = (1-eps)*c.prior + eps*float32(sample[i])
	}
}

// RandomizeFirstProportionally draws a child index with probability
// proportional to visits^(1/tau), restricted to children within
// evalMaxDiff of the best eval and with at least visitFloor*best.visits
// visits, then swaps it to position 0 (spec §4.4 "Root-only operations").
func (n *Node) RandomizeFirstProportionally(color Color, tau, evalMaxDiff, visitFloor float32, rnd func() float32) {
	n.mu.Lock()
	children := n.children
	sort.SliceStable(children, func(i, j int) bool { return children[i].Visits() > children[j].Visits() })
	n.mu.Unlock()

	if len(children) == 0 {
		return
	}
	best := children[0]
	bestEval := best.Eval(color)
	bestVisits := float32(best.Visits())

	var candidates []int
	for i, c := range children {
		if math32.Abs(c.Eval(color)-bestEval) > evalMaxDiff {
			continue
		}
		if float32(c.Visits()) < visitFloor*bestVisits {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return
	}

	var denom float32
	weights := make([]float32, len(candidates))
	for i, idx := range candidates {
		w := math32.Pow(float32(children[idx].Visits()), 1/tau)
		weights[i] = w
		denom += w
	}
	r := rnd() * denom
	chosen := candidates[0]
	var accum float32
	for i, idx := range candidates {
		accum += weights[i]
		if r <= accum {
			chosen = idx
			break
		}
	}

	n.mu.Lock()
	n.children[0], n.children[chosen] = n.children[chosen], n.children[0]
	n.mu.Unlock()
}

// SortRootChildren sorts children descending by (visits, else prior if no
// visits, else eval) — spec §4.4 "Root-only operations".
func (n *Node) SortRootChildren(color Color) {
	n.mu.Lock()
	defer n.mu.Unlock()
	sort.SliceStable(n.children, func(i, j int) bool {
		a, b := n.children[i], n.children[j]
		av, bv := a.Visits(), b.Visits()
		if av != bv {
			return av > bv
		}
		if av == 0 {
			return a.Prior() > b.Prior()
		}
		return a.Eval(color) > b.Eval(color)
	})
}

// DetachChild finds the child reached by move m (tree reuse, spec §4.4
// "Tree reuse"). The caller — mcts.Controller, which knows the exact move
// sequence played since the previous root — walks DetachChild once per
// played move to locate the new root (see mcts.Controller.prepareRoot).
// The child stays in this node's children slice.
func (n *Node) DetachChild(m board.Move) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.children {
		if c.move == m {
			return c
		}
	}
	return nil
}
