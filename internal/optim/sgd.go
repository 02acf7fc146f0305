package optim

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Momentum helps accelerate SGD in relevant directions and dampens
// oscillations. The momentum buffer lives in the optimizer state under
// the key "momentum_buffer" and survives a StateDict round trip.
//
// Hyperparameters are read from each group's Options on every step, so
// "lr", "momentum" and "weight_decay" can differ per group and can be
// rewritten between steps by schedules.
type SGD struct {
	base
}

// SGDConfig holds the hyperparameter defaults for SGD. Groups that do
// not set a hyperparameter themselves inherit it from here.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float64 // L2 penalty added to gradients (default: 0.0)
}

// NewSGD creates a new SGD optimizer over the given parameter groups.
//
// Example:
//
//	sgd := optim.NewSGD(groups, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
func NewSGD(groups []*ParamGroup, config SGDConfig) *SGD {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.01
	}

	defaults := Options{
		"lr":           config.LR,
		"momentum":     config.Momentum,
		"weight_decay": config.WeightDecay,
	}
	return &SGD{base: newBase(groups, defaults)}
}

// Step performs a single optimization step across all groups.
// Parameters with no gradient are skipped.
func (s *SGD) Step(closure Closure) float64 {
	var loss float64
	if closure != nil {
		loss = closure()
	}

	for _, g := range s.groups {
		lr := s.option(g, "lr")
		momentum := s.option(g, "momentum")
		weightDecay := s.option(g, "weight_decay")

		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil {
				continue
			}

			if weightDecay != 0 {
				// d = grad + weight_decay * param, on a copy so the
				// caller's gradient stays untouched.
				d := append([]float64(nil), grad...)
				axpy(weightDecay, p.Data(), d)
				grad = d
			}

			update := grad
			if momentum != 0 {
				buf := s.paramState(p).buffer("momentum_buffer", len(p.Data()))
				scal(momentum, buf)
				axpy(1, grad, buf)
				update = buf
			}

			axpy(-lr, update, p.Data())
		}
	}
	return loss
}
