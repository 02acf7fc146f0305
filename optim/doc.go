// Copyright 2025 APHP Data Science. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides schedule-driven optimizers for gradient-based
// training.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - AdamW: Adam with decoupled weight decay
//   - ScheduledOptimizer: wrapper that retunes hyperparameters every step
//   - LinearSchedule and CyclicalLinearSchedule
//
// Optimizers read their hyperparameters from each parameter group's
// Options on every step. Schedules write into those Options after every
// step, which is how warmup, decay and cyclical policies take effect.
//
// # Basic Usage
//
//	import (
//	    "github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/optim"
//	)
//
//	func main() {
//	    w := optim.NewParameter("w", []float64{0.5, -0.3})
//
//	    group := &optim.ParamGroup{
//	        Params:  []*optim.Parameter{w},
//	        Options: optim.Options{"lr": 0.001},
//	        Schedules: []optim.Schedule{
//	            optim.NewLinearSchedule(optim.LinearScheduleConfig{TotalSteps: 10000}),
//	        },
//	    }
//
//	    scheduled := optim.NewScheduledOptimizer(
//	        optim.NewSGD([]*optim.ParamGroup{group}, optim.SGDConfig{Momentum: 0.9}),
//	    )
//
//	    // Training loop
//	    for step := 0; step < 10000; step++ {
//	        scheduled.ZeroGrad()
//	        loss := scheduled.Step(func() float64 {
//	            return evalAndAccumulateGradients(w)
//	        })
//	        _ = loss
//	    }
//	}
//
// # Snapshots
//
// ScheduledOptimizer.StateDict captures the inner optimizer state, the
// current lr of every group and every schedule position in one
// serializable snapshot:
//
//	snapshot := scheduled.StateDict()
//	raw, _ := json.Marshal(snapshot)
//
//	// later, in a fresh process with identically built groups
//	var restored optim.ScheduledState
//	_ = json.Unmarshal(raw, &restored)
//	if err := scheduled.LoadStateDict(&restored); err != nil {
//	    log.Fatal(err)
//	}
package optim
