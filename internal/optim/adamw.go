package optim

import "math"

// AdamW implements the Adam optimizer with decoupled weight decay.
//
// Update rule per parameter element:
//
//	m = beta1 * m + (1 - beta1) * grad
//	v = beta2 * v + (1 - beta2) * grad^2
//	m_hat = m / (1 - beta1^t)
//	v_hat = v / (1 - beta2^t)
//	param = param * (1 - lr * weight_decay)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Unlike classic Adam with L2 regularization, the decay is applied to
// the parameter directly instead of being folded into the gradient.
// Moment estimates live in the optimizer state under "exp_avg" and
// "exp_avg_sq", the step count in ParamState.Step; all of it survives a
// StateDict round trip.
type AdamW struct {
	base
}

// AdamWConfig holds the hyperparameter defaults for AdamW. Groups that
// do not set a hyperparameter themselves inherit it from here.
type AdamWConfig struct {
	LR          float64 // Learning rate (default: 0.001)
	Beta1       float64 // First moment decay (default: 0.9)
	Beta2       float64 // Second moment decay (default: 0.999)
	Eps         float64 // Denominator fuzz (default: 1e-8)
	WeightDecay float64 // Decoupled weight decay (default: 0.0)
}

// NewAdamW creates a new AdamW optimizer over the given parameter groups.
func NewAdamW(groups []*ParamGroup, config AdamWConfig) *AdamW {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Beta1 == 0 {
		config.Beta1 = 0.9
	}
	if config.Beta2 == 0 {
		config.Beta2 = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	defaults := Options{
		"lr":           config.LR,
		"beta1":        config.Beta1,
		"beta2":        config.Beta2,
		"eps":          config.Eps,
		"weight_decay": config.WeightDecay,
	}
	return &AdamW{base: newBase(groups, defaults)}
}

// Step performs a single optimization step across all groups.
// Parameters with no gradient are skipped.
func (a *AdamW) Step(closure Closure) float64 {
	var loss float64
	if closure != nil {
		loss = closure()
	}

	for _, g := range a.groups {
		lr := a.option(g, "lr")
		beta1 := a.option(g, "beta1")
		beta2 := a.option(g, "beta2")
		eps := a.option(g, "eps")
		weightDecay := a.option(g, "weight_decay")

		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil {
				continue
			}

			st := a.paramState(p)
			st.Step++
			bc1 := 1 - math.Pow(beta1, float64(st.Step))
			bc2 := 1 - math.Pow(beta2, float64(st.Step))

			data := p.Data()
			m := st.buffer("exp_avg", len(data))
			v := st.buffer("exp_avg_sq", len(data))

			// m = beta1*m + (1-beta1)*grad
			scal(beta1, m)
			axpy(1-beta1, grad, m)

			if weightDecay != 0 {
				scal(1-lr*weightDecay, data)
			}

			for i, gv := range grad {
				v[i] = beta2*v[i] + (1-beta2)*gv*gv
				mHat := m[i] / bc1
				vHat := v[i] / bc2
				data[i] -= lr * mHat / (math.Sqrt(vHat) + eps)
			}
		}
	}
	return loss
}
