// perftsearch is a smoke-test CLI for the search core: it runs a handful
// of timed Think() calls against a position and prints the chosen move and
// node count, the way the teacher's cmd/generatemoves and cmd/infer were
// small standalone drivers around one piece of the pipeline rather than
// a full training run.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/corvid-chess/azcore/board"
	"github.com/corvid-chess/azcore/evalcache"
	"github.com/corvid-chess/azcore/evaluator"
	"github.com/corvid-chess/azcore/mcts"
	"github.com/corvid-chess/azcore/moveindex"
	"github.com/corvid-chess/azcore/network"
	"github.com/corvid-chess/azcore/timectl"
)

var (
	fen        = flag.String("fen", "", "FEN to search from (defaults to the starting position)")
	moveTimeMs = flag.Int("movetime", 1000, "milliseconds to search")
	cacheSize  = flag.Int("cache", 65536, "evaluation cache capacity")
	workers    = flag.Int("workers", 0, "playout worker count (0 = number of CPUs)")
	plies      = flag.Int("plies", 1, "number of plies to search and play out")
	dumpTree   = flag.Bool("dumptree", false, "print a Graphviz dump of the PV after each move")
)

func main() {
	flag.Parse()

	z := board.NewZobrist()
	idx := moveindex.New()

	var hist *board.History
	var err error
	if *fen == "" {
		hist, err = board.NewHistory(z)
	} else {
		hist, err = board.NewHistoryFromFEN(*fen, z)
	}
	if err != nil {
		log.Fatalf("building history: %v", err)
	}

	cache := evalcache.New(*cacheSize)
	nn := network.NewUniform(16)
	pool, err := network.NewPool(nn, 16)
	if err != nil {
		log.Fatalf("network pool: %v", err)
	}
	defer pool.Close()

	eval := evaluator.New(cache, pool, idx, z)

	cfg := mcts.DefaultConfig()
	if *workers > 0 {
		cfg.Workers = *workers
	}
	ctrl := mcts.New(eval, cfg)

	lim := timectl.Limits{MoveTime: time.Duration(*moveTimeMs) * time.Millisecond}

	for i := 0; i < *plies; i++ {
		if ended, winner := hist.Ended(); ended {
			fmt.Printf("game over, winner=%v\n", winner)
			break
		}
		move, err := ctrl.Think(hist, lim)
		if err != nil {
			log.Fatalf("think: %v", err)
		}
		fmt.Print(ctrl.Log())
		fmt.Printf("ply %d: %s\n", i, move)
		if *dumpTree {
			dot, err := ctrl.DumpTree(6)
			if err != nil {
				log.Fatalf("dumptree: %v", err)
			}
			fmt.Println(dot)
		}
		if err := hist.DoMove(move); err != nil {
			log.Fatalf("applying %s: %v", move, err)
		}
	}
	fmt.Println(hist.PGN())
}
