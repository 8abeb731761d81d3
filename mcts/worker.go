package mcts

import (
	"context"
	"sync/atomic"

	"github.com/corvid-chess/azcore/board"
	"github.com/corvid-chess/azcore/mctsnode"
	"github.com/notnil/chess"
)

// playout runs one simulation: SELECT down to an unexpanded or terminal
// node, EXPAND+EVALUATE there, BACKPROPAGATE the result back up the
// descent path (spec §4.5). Structurally grounded on the teacher's
// doSearch/pipeline recursion (mcts/search.go) — expand-and-simulate then
// select-and-recurse then backpropagate, flattened here into an iterative
// loop since mctsnode.Node has no parent pointer to recurse back through.
type playout struct {
	eval         mctsnode.Evaluator
	puct         float32
	noiseApplied bool   // whether the controller mixed Dirichlet noise into the root priors this think()
	nodeCount    *int64 // shared counter, incremented on every successful expansion
}

// run descends from root against h (a throwaway clone the caller owns),
// applying virtual loss on the way down and undoing it once the result is
// known. Returns false if ctx was cancelled mid-descent, in which case the
// simulation does not count towards the playout budget.
func (p *playout) run(ctx context.Context, root *mctsnode.Node, h *board.History) bool {
	path := make([]*mctsnode.Node, 0, 64)
	n := root
	color := colorOf(h.Current())
	isRoot := true

	var whiteEval float32
	for {
		select {
		case <-ctx.Done():
			p.undo(path)
			return false
		default:
		}

		n.VirtualLossAdd()
		path = append(path, n)

		if ended, winner := h.Ended(); ended {
			whiteEval = terminalWhiteEval(winner)
			break
		}

		if !n.HasChildren() {
			expanded, v := n.CreateChildren(ctx, p.eval, h)
			if expanded {
				atomic.AddInt64(p.nodeCount, int64(n.CountChildren()))
				whiteEval = v
			} else {
				// Lost the expansion race to another worker, or the network
				// reported no legal moves for a position our own movegen
				// thought was live: fall back to this node's own running
				// estimate rather than stalling the backprop (spec §7
				// ExpansionLostRace).
				whiteEval = n.Eval(mctsnode.White)
			}
			break
		}

		next := n.Select(color, p.puct, isRoot, p.noiseApplied)
		if next == nil {
			whiteEval = n.Eval(mctsnode.White)
			break
		}
		if err := h.DoMove(next.Move()); err != nil {
			whiteEval = n.Eval(mctsnode.White)
			break
		}
		n = next
		color = color.Other()
		isRoot = false
	}

	for _, node := range path {
		node.Update(whiteEval)
	}
	p.undo(path)
	return true
}

func (p *playout) undo(path []*mctsnode.Node) {
	for _, node := range path {
		node.VirtualLossUndo()
	}
}

// terminalWhiteEval converts a finished game's winner into a white-POV
// value for backpropagation (spec §4.5 "terminal handling").
func terminalWhiteEval(winner chess.Color) float32 {
	switch winner {
	case chess.White:
		return 1
	case chess.Black:
		return 0
	default:
		return 0.5
	}
}
