// Copyright 2025 APHP Data Science. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train runs gradient-based optimization loops with scheduled
// hyperparameters and checkpoint-based resumption.
//
// A Trainer drives a Problem with a ScheduledOptimizer, periodically
// saving checkpoints so interrupted runs can continue exactly where
// they stopped.
//
// Example:
//
//	problem := train.NewRandomLeastSquares(8, 256, 1)
//	trainer := train.NewTrainer("run-42", problem, scheduled, store, train.TrainerConfig{
//	    Steps:           5000,
//	    CheckpointEvery: 500,
//	    LogEvery:        100,
//	})
//	if err := trainer.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package train

import (
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/checkpoint"
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/train"
)

// Problem is an objective with trainable parameters.
type Problem = train.Problem

// LeastSquares is a linear regression Problem with mean squared error.
type LeastSquares = train.LeastSquares

// Trainer drives a training loop over a Problem.
type Trainer = train.Trainer

// TrainerConfig controls loop length, checkpointing and logging.
type TrainerConfig = train.TrainerConfig

// NewLeastSquares creates a least squares problem over the given data.
func NewLeastSquares(x [][]float64, y []float64) (*LeastSquares, error) {
	return train.NewLeastSquares(x, y)
}

// NewRandomLeastSquares creates a synthetic least squares problem with
// dim features and n samples, reproducible from seed.
func NewRandomLeastSquares(dim, n int, seed int64) *LeastSquares {
	return train.NewRandomLeastSquares(dim, n, seed)
}

// NewTrainer creates a Trainer for the given problem and optimizer.
// The store may be nil to disable checkpointing.
func NewTrainer(runID string, problem Problem, scheduled *optim.ScheduledOptimizer, store checkpoint.Store, config TrainerConfig) *Trainer {
	return train.NewTrainer(runID, problem, scheduled, store, config)
}
