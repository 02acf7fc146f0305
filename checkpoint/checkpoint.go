// Copyright 2025 APHP Data Science. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint provides persistence for training runs.
//
// A Checkpoint carries everything needed to resume a run: parameter
// data, the composite optimizer snapshot and step counters. Store
// implementations put checkpoints somewhere durable; FSStore keeps them
// as JSON files on the local filesystem.
//
// Example:
//
//	store, err := checkpoint.NewFSStore("/var/lib/training")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = store.SaveCheckpoint("run-42", &checkpoint.Checkpoint{
//	    RunID:     "run-42",
//	    Step:      1000,
//	    Loss:      0.034,
//	    Params:    map[string][]float64{"w": {0.12, -0.8}},
//	    Optimizer: scheduled.StateDict(),
//	})
package checkpoint

import (
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/checkpoint"
)

// Checkpoint is a durable snapshot of a training run.
type Checkpoint = checkpoint.Checkpoint

// Info is a lightweight summary of a stored checkpoint.
type Info = checkpoint.Info

// Store persists and retrieves checkpoints.
type Store = checkpoint.Store

// FSStore is a Store backed by the local filesystem.
type FSStore = checkpoint.FSStore

// NotFoundError reports that no checkpoint exists for a run.
type NotFoundError = checkpoint.NotFoundError

// ErrNotFound matches any NotFoundError with errors.Is.
var ErrNotFound = checkpoint.ErrNotFound

// NewFSStore creates a filesystem store rooted at baseDir.
func NewFSStore(baseDir string) (*FSStore, error) {
	return checkpoint.NewFSStore(baseDir)
}
