// Package optim implements gradient-based optimizers driven by per-step
// hyperparameter schedules.
//
// This package provides:
//   - Optimizer interface: parameter-group based optimizers (SGD, AdamW)
//   - ScheduledOptimizer: wrapper that advances schedules after every step
//   - LinearSchedule: linear warmup followed by linear decay
//   - CyclicalLinearSchedule: sawtooth decay restarting every cycle
//
// Design inspired by PyTorch's torch.optim but adapted for Go with
// explicit parameter groups and explicit error returns.
//
// Example usage:
//
//	w := optim.NewParameter("w", []float64{0.5, -0.3})
//	group := &optim.ParamGroup{
//		Params:    []*optim.Parameter{w},
//		Options:   optim.Options{"lr": 0.01},
//		Schedules: []optim.Schedule{optim.NewLinearSchedule(optim.LinearScheduleConfig{TotalSteps: 1000})},
//	}
//	sched := optim.NewScheduledOptimizer(optim.NewSGD([]*optim.ParamGroup{group}, optim.SGDConfig{}))
//
//	// Training loop
//	for step := 0; step < 1000; step++ {
//	    sched.ZeroGrad()
//	    loss := sched.Step(func() float64 {
//	        return computeLossAndGradients(w)
//	    })
//	    _ = loss
//	}
package optim

import "gonum.org/v1/gonum/blas/blas64"

// Closure re-evaluates the model on the current parameter values,
// accumulates fresh gradients into the parameters, and returns the loss.
type Closure func() float64

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update the parameters of their groups in place based on the
// gradients the caller accumulated, reading every hyperparameter from the
// group's Options at the moment of the step. That late binding is what
// makes schedules effective: whatever a schedule wrote into a group's
// Options is picked up by the very next Step.
type Optimizer interface {
	// Step applies one gradient update to all parameter groups.
	//
	// When closure is non-nil it is invoked first to recompute the loss
	// and refresh gradients; its return value is passed through.
	// Parameters without a gradient are skipped.
	Step(closure Closure) float64

	// ZeroGrad clears the gradients of every parameter in every group.
	//
	// This should be called before each loss evaluation to prevent
	// gradient accumulation from previous iterations.
	ZeroGrad()

	// ParamGroups returns the live parameter groups. Mutating a group's
	// Options changes the hyperparameters used by subsequent steps.
	ParamGroups() []*ParamGroup

	// SetParamGroups replaces the parameter groups wholesale.
	SetParamGroups(groups []*ParamGroup)

	// State returns the live per-parameter optimizer state (momentum
	// buffers, moment estimates, step counts).
	State() State

	// SetState replaces the per-parameter optimizer state wholesale.
	SetState(state State)

	// Defaults returns the hyperparameter defaults the optimizer was
	// constructed with. Groups registered without one of these keys had
	// it filled in from here.
	Defaults() Options

	// StateDict captures groups and per-parameter state as a portable,
	// serializable snapshot. Parameters are referred to by their index
	// in the flattened group order, never by pointer.
	StateDict() *StateDict

	// LoadStateDict restores a snapshot produced by StateDict on an
	// optimizer holding structurally identical parameters. The current
	// groups are replaced by the snapshot's groups, rebound to the
	// optimizer's own parameters positionally.
	LoadStateDict(state *StateDict) error
}

// base carries the group and state bookkeeping shared by all optimizers.
// Concrete optimizers embed it and add only their Step.
type base struct {
	groups   []*ParamGroup
	state    State
	defaults Options
}

func newBase(groups []*ParamGroup, defaults Options) base {
	for _, g := range groups {
		if g.Options == nil {
			g.Options = Options{}
		}
		for k, v := range defaults {
			if _, ok := g.Options[k]; !ok {
				g.Options[k] = v
			}
		}
	}
	return base{groups: groups, state: State{}, defaults: defaults}
}

func (b *base) ZeroGrad() {
	for _, g := range b.groups {
		for _, p := range g.Params {
			p.ZeroGrad()
		}
	}
}

func (b *base) ParamGroups() []*ParamGroup {
	return b.groups
}

func (b *base) SetParamGroups(groups []*ParamGroup) {
	b.groups = groups
}

func (b *base) State() State {
	return b.state
}

func (b *base) SetState(state State) {
	b.state = state
}

func (b *base) Defaults() Options {
	return b.defaults
}

// paramState returns the state entry for p, creating it on first use.
func (b *base) paramState(p *Parameter) *ParamState {
	ps := b.state[p]
	if ps == nil {
		ps = &ParamState{Buffers: map[string][]float64{}}
		b.state[p] = ps
	}
	return ps
}

// option reads a group hyperparameter, falling back to the optimizer
// defaults when the group does not carry the key.
func (b *base) option(g *ParamGroup, path string) float64 {
	if v, ok := g.Options.Get(path); ok {
		return v
	}
	v, _ := b.defaults.Get(path)
	return v
}

// flattenParams lists the parameters of all groups in group order.
// StateDict indices are positions in this order.
func flattenParams(groups []*ParamGroup) []*Parameter {
	var params []*Parameter
	for _, g := range groups {
		params = append(params, g.Params...)
	}
	return params
}

func vec(x []float64) blas64.Vector {
	return blas64.Vector{N: len(x), Data: x, Inc: 1}
}

// axpy computes y += alpha*x.
func axpy(alpha float64, x, y []float64) {
	blas64.Axpy(alpha, vec(x), vec(y))
}

// scal computes x *= alpha.
func scal(alpha float64, x []float64) {
	blas64.Scal(alpha, vec(x))
}
