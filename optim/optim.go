// Copyright 2025 APHP Data Science. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Closure re-evaluates the model and returns the loss.
type Closure = optim.Closure

// Parameter is a named vector of trainable values with its gradient.
type Parameter = optim.Parameter

// NewParameter creates a parameter with the given name and initial values.
func NewParameter(name string, data []float64) *Parameter {
	return optim.NewParameter(name, data)
}

// ParamGroup ties parameters to hyperparameters and schedules.
type ParamGroup = optim.ParamGroup

// Options holds group hyperparameters addressable by dotted paths.
type Options = optim.Options

// State maps parameters to their optimizer state.
type State = optim.State

// ParamState is the per-parameter optimizer state.
type ParamState = optim.ParamState

// StateDict is the serializable snapshot of an optimizer.
type StateDict = optim.StateDict

// GroupState is the serializable form of a parameter group.
type GroupState = optim.GroupState

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(
//	    []*optim.ParamGroup{{Params: params, Options: optim.Options{"lr": 0.01}}},
//	    optim.SGDConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	    },
//	)
func NewSGD(groups []*ParamGroup, config SGDConfig) *SGD {
	return optim.NewSGD(groups, config)
}

// AdamW (Adam with decoupled weight decay)

// AdamW represents the AdamW optimizer.
type AdamW = optim.AdamW

// AdamWConfig contains configuration for AdamW optimizer.
type AdamWConfig = optim.AdamWConfig

// NewAdamW creates a new AdamW optimizer.
//
// Example:
//
//	optimizer := optim.NewAdamW(
//	    []*optim.ParamGroup{{Params: params}},
//	    optim.AdamWConfig{
//	        LR:          0.001,
//	        WeightDecay: 0.01,
//	    },
//	)
func NewAdamW(groups []*ParamGroup, config AdamWConfig) *AdamW {
	return optim.NewAdamW(groups, config)
}

// Schedules

// Schedule retunes one hyperparameter of one parameter group per step.
type Schedule = optim.Schedule

// ScheduleState is the serializable state of a schedule.
type ScheduleState = optim.ScheduleState

// LinearSchedule ramps a value linearly up, then decays it linearly.
type LinearSchedule = optim.LinearSchedule

// LinearScheduleConfig contains configuration for LinearSchedule.
type LinearScheduleConfig = optim.LinearScheduleConfig

// NewLinearSchedule creates a linear warmup/decay schedule.
//
// Example:
//
//	schedule := optim.NewLinearSchedule(optim.LinearScheduleConfig{
//	    TotalSteps: 10000,
//	    MaxValue:   0.001,
//	    WarmupRate: 0.1,
//	})
func NewLinearSchedule(config LinearScheduleConfig) *LinearSchedule {
	return optim.NewLinearSchedule(config)
}

// CyclicalLinearSchedule decays a value linearly within repeating cycles.
type CyclicalLinearSchedule = optim.CyclicalLinearSchedule

// CyclicalLinearScheduleConfig contains configuration for CyclicalLinearSchedule.
type CyclicalLinearScheduleConfig = optim.CyclicalLinearScheduleConfig

// NewCyclicalLinearSchedule creates a cyclical sawtooth schedule.
//
// Example:
//
//	schedule := optim.NewCyclicalLinearSchedule(optim.CyclicalLinearScheduleConfig{
//	    StepsPerEpoch:  500,
//	    MaxValue:       0.01,
//	    MinValue:       0.001,
//	    EpochsPerCycle: 10,
//	})
func NewCyclicalLinearSchedule(config CyclicalLinearScheduleConfig) *CyclicalLinearSchedule {
	return optim.NewCyclicalLinearSchedule(config)
}

// Scheduled optimizer wrapper

// ScheduledState is the composite snapshot of a ScheduledOptimizer.
type ScheduledState = optim.ScheduledState

// ScheduledOptimizer drives group schedules around an inner optimizer.
type ScheduledOptimizer = optim.ScheduledOptimizer

// NewScheduledOptimizer wraps an optimizer and primes all schedules.
//
// Example:
//
//	scheduled := optim.NewScheduledOptimizer(optim.NewSGD(groups, optim.SGDConfig{}))
//	for step := 0; step < totalSteps; step++ {
//	    scheduled.ZeroGrad()
//	    loss := scheduled.Step(closure)
//	    _ = loss
//	}
func NewScheduledOptimizer(inner Optimizer) *ScheduledOptimizer {
	return optim.NewScheduledOptimizer(inner)
}
