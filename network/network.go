// Package network defines the external collaborator the search core
// consumes — the policy/value neural network — and the input-plane
// encoding the core and the network agree on (spec §1 "deliberately out of
// scope", §6 "External interfaces").
package network

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Network produces Computations: one-shot, single-batch inference handles.
// Concrete backends (BLAS, OpenCL, a remote multiplexer, ...) register
// under this same capability set and are chosen at construction — the
// core only ever depends on this interface (spec §9 "model inheritance as
// an interface capability set").
type Network interface {
	NewComputation() (Computation, error)
}

// Computation is a single forward pass: the caller pushes 0..BatchSize
// inputs, runs it once, then reads back per-sample results.
type Computation interface {
	// AddInput pushes one set of input planes into the pending batch and
	// returns its index within the batch.
	AddInput(planes *Planes) (index int, err error)
	// ComputeBlocking runs the forward pass for every input pushed so far,
	// blocking the caller until it completes.
	ComputeBlocking() error
	// BatchSize returns how many inputs were actually pushed.
	BatchSize() int
	// Q returns the value head's output for sample i, from the side-to-move
	// perspective of that sample's input.
	Q(i int) float32
	// P returns the policy head's output for sample i at the given
	// move-id (spec §6 move-id space).
	P(i int, moveID int) float32
}

// ErrBackendInit wraps a network backend construction failure — fatal at
// controller startup per spec §7 (NetworkBackendInitFailure).
func ErrBackendInit(cause error) error {
	return errors.WithMessage(cause, "network backend init failure")
}

// Pool hands out a fixed number of independent Computation handles so that
// N concurrent playout workers never share one (teacher:
// Agent.SwitchToInference's channel of pooled Inferers, agent.go).
type Pool struct {
	nn   Network
	free chan Computation
	all  []Computation
}

// NewPool eagerly constructs n Computations from nn.
func NewPool(nn Network, n int) (*Pool, error) {
	p := &Pool{nn: nn, free: make(chan Computation, n)}
	for i := 0; i < n; i++ {
		c, err := nn.NewComputation()
		if err != nil {
			return nil, ErrBackendInit(err)
		}
		p.all = append(p.all, c)
		p.free <- c
	}
	return p, nil
}

// Acquire blocks until a Computation is available.
func (p *Pool) Acquire() Computation { return <-p.free }

// Release returns a Computation to the pool.
func (p *Pool) Release(c Computation) { p.free <- c }

// Close releases every pooled computation that implements io.Closer,
// aggregating any failures (teacher: agent.go's Close via multierror).
func (p *Pool) Close() error {
	close(p.free)
	var errs error
	for _, c := range p.all {
		if closer, ok := c.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	return errs
}
