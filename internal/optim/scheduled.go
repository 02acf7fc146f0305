package optim

// ScheduledOptimizer drives the schedules of an inner optimizer's
// parameter groups. It exposes the inner optimizer's surface and adds
// one behavior: after every Step it walks each group's schedules and
// lets them rewrite the group's hyperparameters for the next step.
//
// Construction immediately runs every schedule once, so the group
// options already hold step-0 schedule values before the first Step.
// Note the consequence: the first Step therefore updates parameters
// with the schedule value for index 0 and leaves the value for index 1
// behind in the options.
type ScheduledOptimizer struct {
	inner Optimizer
}

// NewScheduledOptimizer wraps inner and primes all schedules: each one
// is stepped once against its group so that lazily resolved peaks are
// fixed and the step-0 value is in place before training starts.
func NewScheduledOptimizer(inner Optimizer) *ScheduledOptimizer {
	w := &ScheduledOptimizer{inner: inner}
	for _, g := range inner.ParamGroups() {
		for _, s := range g.Schedules {
			s.Step(g)
		}
	}
	return w
}

// Inner returns the wrapped optimizer.
func (w *ScheduledOptimizer) Inner() Optimizer {
	return w.inner
}

// Step first delegates to the inner optimizer, which updates parameters
// using the hyperparameters currently in the groups, then advances every
// schedule so the groups hold the values for the next step. The inner
// optimizer's loss is passed through.
func (w *ScheduledOptimizer) Step(closure Closure) float64 {
	loss := w.inner.Step(closure)
	for _, g := range w.inner.ParamGroups() {
		for _, s := range g.Schedules {
			s.Step(g)
		}
	}
	return loss
}

// ZeroGrad clears the gradients of every parameter in every group.
func (w *ScheduledOptimizer) ZeroGrad() {
	w.inner.ZeroGrad()
}

// ParamGroups returns the inner optimizer's live parameter groups.
func (w *ScheduledOptimizer) ParamGroups() []*ParamGroup {
	return w.inner.ParamGroups()
}

// SetParamGroups replaces the inner optimizer's parameter groups.
func (w *ScheduledOptimizer) SetParamGroups(groups []*ParamGroup) {
	w.inner.SetParamGroups(groups)
}

// State returns the inner optimizer's live per-parameter state.
func (w *ScheduledOptimizer) State() State {
	return w.inner.State()
}

// SetState replaces the inner optimizer's per-parameter state.
func (w *ScheduledOptimizer) SetState(state State) {
	w.inner.SetState(state)
}

// Defaults returns the inner optimizer's hyperparameter defaults.
func (w *ScheduledOptimizer) Defaults() Options {
	return w.inner.Defaults()
}

// StateDict captures the composite snapshot: the inner optimizer's
// snapshot with schedules stripped from its group entries, the "lr"
// option of every group (zero when a group has none), and the state of
// every schedule, grouped by group position.
func (w *ScheduledOptimizer) StateDict() *ScheduledState {
	inner := w.inner.StateDict()
	groups := w.inner.ParamGroups()

	lr := make([]float64, len(groups))
	schedules := make([][]ScheduleState, len(groups))
	for i, g := range groups {
		lr[i], _ = g.Options.Get("lr")
		states := make([]ScheduleState, len(g.Schedules))
		for j, s := range g.Schedules {
			states[j] = s.StateDict()
		}
		schedules[i] = states
	}

	// Schedules are live objects; they have no place in a snapshot that
	// may outlive the process. Their state is already captured above.
	for i := range inner.Groups {
		inner.Groups[i].Schedules = nil
	}

	return &ScheduledState{Optim: inner, LR: lr, Schedules: schedules}
}

// LoadStateDict restores a composite snapshot. The schedules currently
// attached to the groups are kept aside, the inner optimizer is restored
// (which replaces its groups), and the kept schedules are re-attached to
// the restored groups by position. Each schedule then has its own state
// restored, again by position, and the saved "lr" value is written back
// into the group. Positions past the shorter of any two matched lists
// are silently left as they are.
func (w *ScheduledOptimizer) LoadStateDict(state *ScheduledState) error {
	attached := make([][]Schedule, 0, len(w.inner.ParamGroups()))
	for _, g := range w.inner.ParamGroups() {
		attached = append(attached, g.Schedules)
	}

	if err := w.inner.LoadStateDict(state.Optim); err != nil {
		return err
	}

	groups := w.inner.ParamGroups()
	n := min(len(groups), len(attached), len(state.Schedules), len(state.LR))
	for i := 0; i < n; i++ {
		g := groups[i]
		g.Schedules = attached[i]
		m := min(len(g.Schedules), len(state.Schedules[i]))
		for j := 0; j < m; j++ {
			g.Schedules[j].LoadStateDict(state.Schedules[i][j])
		}
		g.Options.Set("lr", state.LR[i])
	}
	return nil
}
