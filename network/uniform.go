package network

import "github.com/pkg/errors"

// Uniform is a deterministic stand-in Network: it reports a flat 0.5 value
// and a uniform policy over whatever move ids were queried. It exists so
// the rest of the stack (cache, batching evaluator, search tree, time
// manager) can be exercised end to end without wiring an actual trained
// model — cmd/perftsearch uses it as a smoke test, the way the teacher's
// cmd/generatemoves let the move-id space be exercised without a real NN.
type Uniform struct{ BatchCap int }

// NewUniform builds a Uniform network with room for batchCap samples per
// Computation.
func NewUniform(batchCap int) *Uniform {
	if batchCap <= 0 {
		batchCap = 1
	}
	return &Uniform{BatchCap: batchCap}
}

func (u *Uniform) NewComputation() (Computation, error) {
	return &uniformComputation{cap: u.BatchCap}, nil
}

type uniformComputation struct {
	cap int
	n   int
}

func (c *uniformComputation) AddInput(p *Planes) (int, error) {
	if c.n >= c.cap {
		return 0, errors.New("network: uniform computation batch is full")
	}
	idx := c.n
	c.n++
	return idx, nil
}

func (c *uniformComputation) ComputeBlocking() error { return nil }
func (c *uniformComputation) BatchSize() int         { return c.n }
func (c *uniformComputation) Q(i int) float32        { return 0.5 }
func (c *uniformComputation) P(i, moveID int) float32 { return 1 }
