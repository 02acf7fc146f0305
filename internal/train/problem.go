// Package train runs optimization loops over problems with analytic
// gradients, with periodic checkpointing and resume support.
package train

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/blas/blas64"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/parallel"
)

// Problem is a differentiable objective. Eval computes the loss at the
// current parameter values and accumulates the gradients into the
// parameters; the trainer wraps it in the optimizer step closure.
type Problem interface {
	// Name identifies the problem in logs and checkpoint metadata.
	Name() string

	// Params returns the trainable parameters.
	Params() []*optim.Parameter

	// Eval computes the loss and accumulates gradients.
	Eval() float64
}

// LeastSquares fits a linear model y = w·x + b to a fixed dataset by
// minimizing the mean squared error. Gradients are analytic.
type LeastSquares struct {
	x [][]float64
	y []float64
	w *optim.Parameter
	b *optim.Parameter
}

// NewLeastSquares creates a least squares problem over the given
// dataset. Every row of x must have the same length and y must have one
// target per row.
func NewLeastSquares(x [][]float64, y []float64) (*LeastSquares, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("train: empty dataset")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("train: %d rows but %d targets", len(x), len(y))
	}
	dim := len(x[0])
	for i, row := range x {
		if len(row) != dim {
			return nil, fmt.Errorf("train: row %d has %d features, want %d", i, len(row), dim)
		}
	}

	return &LeastSquares{
		x: x,
		y: y,
		w: optim.NewParameter("w", make([]float64, dim)),
		b: optim.NewParameter("b", make([]float64, 1)),
	}, nil
}

// NewRandomLeastSquares builds a synthetic least squares problem with n
// samples of the given dimension. The ground-truth weights and the
// samples are drawn from the seeded source, so the same seed always
// yields the same problem.
func NewRandomLeastSquares(dim, n int, seed int64) *LeastSquares {
	rng := rand.New(rand.NewSource(seed))

	truth := make([]float64, dim)
	for j := range truth {
		truth[j] = rng.NormFloat64()
	}
	bias := rng.NormFloat64()

	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		x[i] = row
		y[i] = bias + dot(truth, row)
	}

	p, err := NewLeastSquares(x, y)
	if err != nil {
		// Shapes are constructed consistently above.
		panic(err)
	}
	return p
}

// Name identifies the problem in logs and checkpoint metadata.
func (p *LeastSquares) Name() string {
	return "least_squares"
}

// Params returns the weight vector and the bias.
func (p *LeastSquares) Params() []*optim.Parameter {
	return []*optim.Parameter{p.w, p.b}
}

// Eval computes the mean squared error and accumulates its gradients
// into the parameters. Samples are evaluated in fixed-size chunks and
// the per-chunk results reduced in chunk order, so the result does not
// depend on the worker count.
func (p *LeastSquares) Eval() float64 {
	w := p.w.Data()
	b := p.b.Data()[0]
	n := float64(len(p.x))

	type partial struct {
		loss float64
		gw   []float64
		gb   float64
	}
	cfg := parallel.DefaultConfig()
	parts := make([]partial, parallel.NumChunks(len(p.x), cfg))
	parallel.ForChunks(len(p.x), func(chunk, start, end int) {
		gw := make([]float64, len(w))
		var gb, loss float64
		for i := start; i < end; i++ {
			xi := p.x[i]
			r := b + dot(w, xi) - p.y[i]
			loss += r * r
			blas64.Axpy(2*r/n, vec(xi), vec(gw))
			gb += 2 * r / n
		}
		parts[chunk] = partial{loss: loss, gw: gw, gb: gb}
	}, cfg)

	gw := make([]float64, len(w))
	var gb, loss float64
	for _, part := range parts {
		loss += part.loss
		blas64.Axpy(1, vec(part.gw), vec(gw))
		gb += part.gb
	}

	p.w.AccumulateGrad(gw)
	p.b.AccumulateGrad([]float64{gb})
	return loss / n
}

func vec(x []float64) blas64.Vector {
	return blas64.Vector{N: len(x), Data: x, Inc: 1}
}

func dot(x, y []float64) float64 {
	return blas64.Dot(vec(x), vec(y))
}
