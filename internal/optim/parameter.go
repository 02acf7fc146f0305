package optim

import "fmt"

// Parameter is a named vector of trainable values together with the
// gradient accumulated for it by the caller.
//
// The optimizer never computes gradients itself. Training code computes
// them (analytically or otherwise), deposits them with SetGrad or
// AccumulateGrad, and calls Step; the optimizer reads Grad and updates
// Data in place.
type Parameter struct {
	name string
	data []float64
	grad []float64
}

// NewParameter creates a parameter with the given name and initial values.
// The slice is owned by the parameter afterwards.
func NewParameter(name string, data []float64) *Parameter {
	return &Parameter{name: name, data: data}
}

// Name returns the parameter's name.
func (p *Parameter) Name() string {
	return p.name
}

// Data returns the parameter's values. The returned slice is the live
// storage: optimizers mutate it in place during Step.
func (p *Parameter) Data() []float64 {
	return p.data
}

// Grad returns the accumulated gradient, or nil if none has been set
// since the last ZeroGrad.
func (p *Parameter) Grad() []float64 {
	return p.grad
}

// SetGrad replaces the gradient. The slice is owned by the parameter
// afterwards. A nil gradient marks the parameter as grad-free, which
// makes optimizers skip it on the next Step.
func (p *Parameter) SetGrad(grad []float64) {
	p.grad = grad
}

// AccumulateGrad adds grad element-wise into the stored gradient,
// allocating a zero gradient first if none is present.
func (p *Parameter) AccumulateGrad(grad []float64) {
	if len(grad) != len(p.data) {
		panic(fmt.Sprintf("optim: gradient size %d does not match parameter %q size %d", len(grad), p.name, len(p.data)))
	}
	if p.grad == nil {
		p.grad = make([]float64, len(p.data))
	}
	axpy(1, grad, p.grad)
}

// ZeroGrad clears the gradient.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
