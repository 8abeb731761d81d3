// Package mcts implements the concurrent playout workers and the
// time-budgeted search controller (spec §4.5, §4.6) on top of mctsnode's
// tree and evaluator's batching evaluation. Structurally grounded on the
// teacher's Arena/MCTS split (agogo.go, mcts/search.go): a persistent,
// reused tree plus a pool of workers that race a deadline, reporting back
// through a buffered *log.Logger the way arena.go does.
package mcts

import (
	"bytes"
	"context"
	"log"
	"math/rand"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvid-chess/azcore/board"
	"github.com/corvid-chess/azcore/mctsnode"
	"github.com/corvid-chess/azcore/timectl"
	"github.com/notnil/chess"
	"github.com/pkg/errors"
)

// defaultMaxTreeSize bounds total node count independent of the time
// budget (spec §4.6), the same role MAXTREESIZE played in the teacher's
// mcts/search.go — a won/lost position with a huge time budget still
// terminates instead of growing the tree forever.
const defaultMaxTreeSize = 2_000_000

// ErrNoLegalMoves is returned by Think when History.Ended reports the game
// over (checkmate, stalemate, or a draw such as insufficient material) or
// the root cannot be expanded, and by Controller.DumpTree when no Think
// call has left a tree behind.
var ErrNoLegalMoves = errors.New("mcts: no legal moves in current position")

// Config configures one Controller (spec §4.6 "think", §6 "Search
// parameters").
type Config struct {
	PUCT float32

	DirichletEps, DirichletAlpha float32
	ApplyRootNoise               bool

	RandomPlyCutoff   int
	RandomTemperature float32
	RandomEvalMaxDiff float32
	RandomVisitFloor  float32

	MaxTreeSize int
	Workers     int
}

// DefaultConfig returns the engine's out-of-the-box search parameters.
func DefaultConfig() Config {
	return Config{
		PUCT:              1.0,
		DirichletEps:      0.25,
		DirichletAlpha:    0.3,
		ApplyRootNoise:    true,
		RandomPlyCutoff:   30,
		RandomTemperature: 1.0,
		RandomEvalMaxDiff: 0.1,
		RandomVisitFloor:  0.1,
		MaxTreeSize:       defaultMaxTreeSize,
		Workers:           runtime.NumCPU(),
	}
}

// Controller runs Think calls against a tree it keeps alive across calls
// (tree reuse, spec §4.4/§4.6), the way the teacher's Arena kept an Agent's
// MCTS alive across a game instead of rebuilding it every ply.
type Controller struct {
	cfg  Config
	eval mctsnode.Evaluator
	tm   *timectl.Manager
	rnd  *rand.Rand

	buf    bytes.Buffer
	logger *log.Logger

	mu        sync.Mutex
	root      *mctsnode.Node
	rootMoves int // len(History.AllMoves()) at the time root was last set
	rootColor mctsnode.Color
}

// New builds a Controller over eval, the shared batching evaluator.
func New(eval mctsnode.Evaluator, cfg Config) *Controller {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxTreeSize <= 0 {
		cfg.MaxTreeSize = defaultMaxTreeSize
	}
	c := &Controller{
		cfg:  cfg,
		eval: eval,
		tm:   timectl.NewManager(),
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.logger = log.New(&c.buf, "", log.Ltime)
	return c
}

// Log drains and returns everything logged since the last call (spec's
// "info" output), read back the way arena.go reads its buffered logger.
func (c *Controller) Log() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.buf.String()
	c.buf.Reset()
	return s
}

// DumpTree renders the current search tree's principal variation as a
// Graphviz graph (spec's "dumping of principal-variation info" duty,
// SPEC_FULL.md §4), using the root and side to move left behind by the
// most recent Think call.
func (c *Controller) DumpTree(depth int) (string, error) {
	c.mu.Lock()
	root, color := c.root, c.rootColor
	c.mu.Unlock()
	if root == nil {
		return "", ErrNoLegalMoves
	}
	return DumpTree(root, color, depth)
}

// PV extracts the principal variation from root by recursively picking
// get_best_root_child(color) at each level (spec §4.6 "PV extraction"):
// the most-visited child, falling back to prior when nothing has been
// visited yet.
func PV(root *mctsnode.Node, color mctsnode.Color, maxPlies int) []board.Move {
	moves := make([]board.Move, 0, maxPlies)
	n := root
	c := color
	for i := 0; i < maxPlies; i++ {
		children := n.Children()
		if len(children) == 0 {
			break
		}
		best := children[0]
		for _, ch := range children[1:] {
			if ch.Visits() > best.Visits() {
				best = ch
			}
		}
		moves = append(moves, best.Move())
		n = best
		c = c.Other()
	}
	return moves
}

// FormatPV renders root's principal variation in UCI move notation (spec
// §4.6: "printing in UCI or SAN"), the same move-string form History.AllMoves
// and cmd/perftsearch already print in.
func FormatPV(root *mctsnode.Node, color mctsnode.Color, maxPlies int) string {
	moves := PV(root, color, maxPlies)
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}

// Think searches from h's current position for the time/node budget lim
// implies and returns the chosen move (spec §4.6 "think").
func (c *Controller) Think(h *board.History, lim timectl.Limits) (board.Move, error) {
	if ended, _ := h.Ended(); ended {
		return board.NoMove, ErrNoLegalMoves
	}

	c.mu.Lock()
	root, hist := c.prepareRoot(h)
	c.mu.Unlock()

	color := colorOf(hist.Current())
	if !root.HasChildren() {
		expanded, whiteEval := root.CreateChildren(context.Background(), c.eval, hist)
		if !expanded {
			return board.NoMove, ErrNoLegalMoves
		}
		root.Update(whiteEval)
	}
	if c.cfg.ApplyRootNoise {
		root.DirichletNoise(c.cfg.DirichletEps, c.cfg.DirichletAlpha)
	}

	ply := len(hist.AllMoves())
	side := timectl.White
	if color == mctsnode.Black {
		side = timectl.Black
	}
	c.tm.Start()
	budget := c.tm.Compute(lim, side, ply)

	ctx, cancel := context.WithTimeout(context.Background(), budget.Max)
	defer cancel()
	playouts := c.runWorkers(ctx, root, hist, color, lim.Nodes)

	// Pruning during the search is a search-time optimization only; once
	// playouts stop, every child is a legitimate candidate again (spec §4.6
	// step 8 "re-activate all pruned children, sort root children").
	for _, ch := range root.Children() {
		ch.SetActive(true)
	}
	root.SortRootChildren(color)
	if ply < c.cfg.RandomPlyCutoff {
		root.RandomizeFirstProportionally(color, c.cfg.RandomTemperature, c.cfg.RandomEvalMaxDiff, c.cfg.RandomVisitFloor, c.rnd.Float32)
	}

	children := root.Children()
	if len(children) == 0 {
		return board.NoMove, ErrNoLegalMoves
	}
	best := children[0]

	c.logger.Printf("ply %d elapsed %s target %s max %s playouts %d nodes %d best %s q=%.3f pv %s",
		ply, c.tm.Elapsed(), budget.Target, budget.Max, playouts, root.CountChildren(), best.Move(), best.Eval(color),
		FormatPV(root, color, 8))

	c.mu.Lock()
	c.root = best
	c.rootMoves = ply + 1
	c.rootColor = color.Other()
	c.mu.Unlock()

	return best.Move(), nil
}

// prepareRoot implements tree reuse (spec §4.4 "Tree reuse", §4.6): if h's
// move log extends the previously-searched tree's move log, the controller
// walks DetachChild forward through exactly the moves played since the
// last Think call. Otherwise (first call, a takeback, or a position that
// didn't come from our own last move) it starts a fresh root. Grounded on
// the teacher's newRootState (mcts/search.go), replayed here via
// board.History.AllMoves()/mctsnode.Node.DetachChild instead of the
// teacher's UndoLastMove/Fwd dance over a single shared game.State.
func (c *Controller) prepareRoot(h *board.History) (*mctsnode.Node, *board.History) {
	hist := h.ShallowClone()
	moves := hist.AllMoves()

	if c.root != nil && len(moves) >= c.rootMoves {
		node := c.root
		reused := true
		for _, m := range moves[c.rootMoves:] {
			next := node.DetachChild(m)
			if next == nil {
				reused = false
				break
			}
			node = next
		}
		if reused {
			return node, hist
		}
	}
	return mctsnode.New(board.NoMove, 0, 0.5), hist
}

// runWorkers spawns cfg.Workers playout goroutines and blocks until ctx's
// deadline, the node budget, or the tree-size ceiling stops them — the
// same channel-less worker-pool shape as the teacher's doSearch loop
// (mcts/search.go), minus the reusable-searchState channel since mctsnode
// descent needs no per-worker arena bookkeeping.
func (c *Controller) runWorkers(ctx context.Context, root *mctsnode.Node, hist *board.History, color mctsnode.Color, nodeLimit int64) int64 {
	var playouts, nodeCount int64
	p := &playout{eval: c.eval, puct: c.cfg.PUCT, noiseApplied: c.cfg.ApplyRootNoise, nodeCount: &nodeCount}

	monitorCtx, monitorCancel := context.WithCancel(ctx)
	defer monitorCancel()
	go c.monitorContenders(monitorCtx, monitorCancel, root, color, &playouts, nodeLimit)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-monitorCtx.Done():
					return
				default:
				}
				if atomic.LoadInt64(&nodeCount) >= int64(c.cfg.MaxTreeSize) {
					return
				}
				if nodeLimit > 0 && atomic.LoadInt64(&playouts) >= nodeLimit {
					return
				}
				leaf := hist.ShallowClone()
				if p.run(monitorCtx, root, leaf) {
					atomic.AddInt64(&playouts, 1)
				}
			}
		}()
	}
	wg.Wait()
	return atomic.LoadInt64(&playouts)
}

// monitorContenders periodically prunes root children that can no longer
// catch the leader and cancels the search early once only one contender
// remains (spec §4.6 "have_alternate_moves").
func (c *Controller) monitorContenders(ctx context.Context, cancel context.CancelFunc, root *mctsnode.Node, color mctsnode.Color, playouts *int64, nodeLimit int64) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := atomic.LoadInt64(playouts)
			if n < 64 {
				continue // too little data to extrapolate a remaining-playout estimate
			}
			remaining := nodeLimit - n
			if nodeLimit <= 0 {
				elapsed := c.tm.Elapsed()
				if elapsed <= 0 {
					continue
				}
				remaining = n // no node budget: extrapolate one more elapsed-time's worth of playouts
			}
			if remaining <= 0 {
				continue
			}
			if !haveAlternateMoves(root, color, remaining) {
				cancel()
				return
			}
		}
	}
}

// haveAlternateMoves marks children as Pruned once the leader's visit
// count is high enough that no child could overtake it within remaining
// further playouts, and reports whether more than one contender is still
// live (spec §4.6).
func haveAlternateMoves(root *mctsnode.Node, color mctsnode.Color, remaining int64) bool {
	children := root.Children()
	if len(children) < 2 {
		return false
	}
	sorted := append([]*mctsnode.Node(nil), children...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Visits() > sorted[j].Visits() })
	best := sorted[0]
	bestVisits := int64(best.Visits())

	alternates := false
	for _, ch := range sorted[1:] {
		if !ch.IsActive() {
			continue
		}
		if int64(ch.Visits())+remaining < bestVisits {
			ch.SetActive(false)
			continue
		}
		alternates = true
	}
	return alternates
}

func colorOf(pos *board.Position) mctsnode.Color {
	if pos.Turn() == chess.Black {
		return mctsnode.Black
	}
	return mctsnode.White
}
