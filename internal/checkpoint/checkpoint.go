// Package checkpoint persists training state snapshots.
//
// A checkpoint bundles everything needed to resume a training run:
// parameter values, the composite optimizer snapshot (including schedule
// positions), and training progress counters. Snapshots are plain data,
// serialized as JSON by the Store implementations.
package checkpoint

import (
	"time"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
)

// Checkpoint represents a complete training state snapshot.
//
// A checkpoint includes:
//   - Parameter values, keyed by parameter name
//   - The scheduled optimizer snapshot (inner state, lr values, schedule positions)
//   - Training progress (epoch, step, loss)
//   - Custom metadata
//
// Checkpoints enable training to be resumed from a specific point,
// which is essential for long-running runs that might be interrupted.
//
// Example:
//
//	cp := &checkpoint.Checkpoint{
//	    RunID:     runID,
//	    Epoch:     10,
//	    Step:      5000,
//	    Loss:      0.123,
//	    Params:    map[string][]float64{"w": w.Data()},
//	    Optimizer: scheduled.StateDict(),
//	    CreatedAt: time.Now().UTC(),
//	}
//	err := store.SaveCheckpoint(runID, cp)
type Checkpoint struct {
	RunID     string                `json:"run_id"`
	Epoch     int                   `json:"epoch"`
	Step      int64                 `json:"step"`
	Loss      float64               `json:"loss"`
	Params    map[string][]float64  `json:"params"`
	Optimizer *optim.ScheduledState `json:"optimizer,omitempty"`
	Metadata  map[string]any        `json:"metadata,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// Info is the listing view of a checkpoint: progress counters without
// the parameter and optimizer payload.
type Info struct {
	RunID     string    `json:"run_id"`
	Epoch     int       `json:"epoch"`
	Step      int64     `json:"step"`
	Loss      float64   `json:"loss"`
	CreatedAt time.Time `json:"created_at"`
}

// ToInfo strips the payload down to the listing view.
func (c *Checkpoint) ToInfo() Info {
	return Info{
		RunID:     c.RunID,
		Epoch:     c.Epoch,
		Step:      c.Step,
		Loss:      c.Loss,
		CreatedAt: c.CreatedAt,
	}
}
