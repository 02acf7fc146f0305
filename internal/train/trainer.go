package train

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/checkpoint"
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
)

// TrainerConfig holds the run parameters of a Trainer.
type TrainerConfig struct {
	// Steps is the total number of optimizer steps for the run. A
	// resumed run continues from its restored step count up to this.
	Steps int

	// StepsPerEpoch sets the epoch bookkeeping used in logs and
	// checkpoint records. Zero disables epoch accounting.
	StepsPerEpoch int

	// CheckpointEvery is the number of steps between periodic
	// checkpoint saves. Zero disables periodic saves; the final state is
	// still saved when the run finishes or is interrupted.
	CheckpointEvery int

	// LogEvery is the number of steps between progress log lines.
	// Zero disables progress logging.
	LogEvery int

	// Metadata is merged into every checkpoint written by the run.
	// Callers use it to carry the run configuration so a later resume
	// can rebuild the same problem and optimizer.
	Metadata map[string]any
}

// Trainer drives a scheduled optimizer over a problem: closure-based
// steps, progress logging, periodic checkpoints, and resume.
type Trainer struct {
	problem   Problem
	scheduled *optim.ScheduledOptimizer
	store     checkpoint.Store
	runID     string
	config    TrainerConfig

	step     int64
	lastLoss float64
}

// NewTrainer creates a trainer for one run. The store may be nil, which
// disables checkpointing entirely.
func NewTrainer(runID string, problem Problem, scheduled *optim.ScheduledOptimizer, store checkpoint.Store, config TrainerConfig) *Trainer {
	return &Trainer{
		problem:   problem,
		scheduled: scheduled,
		store:     store,
		runID:     runID,
		config:    config,
	}
}

// Step returns the number of optimizer steps taken so far, including
// steps restored from a checkpoint.
func (t *Trainer) Step() int64 {
	return t.step
}

// LastLoss returns the loss of the most recent step.
func (t *Trainer) LastLoss() float64 {
	return t.lastLoss
}

func (t *Trainer) epoch() int {
	if t.config.StepsPerEpoch <= 0 {
		return 0
	}
	return int(t.step / int64(t.config.StepsPerEpoch))
}

// Run trains until the configured step count is reached. The context is
// checked between steps only; on cancellation the current state is
// saved so the run can be resumed, and the context error is returned.
func (t *Trainer) Run(ctx context.Context) error {
	logger := log.WithFields(log.Fields{"run": t.runID, "problem": t.problem.Name()})
	logger.WithFields(log.Fields{"steps": t.config.Steps, "from": t.step}).Info("training")

	for t.step < int64(t.config.Steps) {
		if err := ctx.Err(); err != nil {
			if saveErr := t.saveCheckpoint(); saveErr != nil {
				logger.WithError(saveErr).Warn("failed to save checkpoint on interrupt")
			}
			return err
		}

		t.scheduled.ZeroGrad()
		t.lastLoss = t.scheduled.Step(t.problem.Eval)
		t.step++

		if t.config.LogEvery > 0 && t.step%int64(t.config.LogEvery) == 0 {
			lr := 0.0
			if groups := t.scheduled.ParamGroups(); len(groups) > 0 {
				lr, _ = groups[0].Options.Get("lr")
			}
			logger.WithFields(log.Fields{
				"step":  t.step,
				"epoch": t.epoch(),
				"loss":  t.lastLoss,
				"lr":    lr,
			}).Info("progress")
		}

		if t.config.CheckpointEvery > 0 && t.step%int64(t.config.CheckpointEvery) == 0 {
			if err := t.saveCheckpoint(); err != nil {
				return fmt.Errorf("periodic checkpoint: %w", err)
			}
		}
	}

	if err := t.saveCheckpoint(); err != nil {
		return fmt.Errorf("final checkpoint: %w", err)
	}
	logger.WithFields(log.Fields{"step": t.step, "loss": t.lastLoss}).Info("training complete")
	return nil
}

// Resume loads the run's checkpoint, restores parameters, optimizer and
// progress counters, and continues training to the configured step
// count. The trainer must have been built with the same problem and
// optimizer construction as the saved run.
func (t *Trainer) Resume(ctx context.Context) error {
	if t.store == nil {
		return errors.New("train: no checkpoint store configured")
	}
	cp, err := t.store.LoadCheckpoint(t.runID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if err := t.restore(cp); err != nil {
		return err
	}
	log.WithFields(log.Fields{"run": t.runID, "step": t.step, "loss": t.lastLoss}).Info("resumed from checkpoint")
	return t.Run(ctx)
}

func (t *Trainer) restore(cp *checkpoint.Checkpoint) error {
	for _, p := range t.problem.Params() {
		saved, ok := cp.Params[p.Name()]
		if !ok {
			return fmt.Errorf("train: checkpoint has no values for parameter %q", p.Name())
		}
		if len(saved) != len(p.Data()) {
			return fmt.Errorf("train: parameter %q has %d values in checkpoint, want %d", p.Name(), len(saved), len(p.Data()))
		}
		copy(p.Data(), saved)
	}
	if cp.Optimizer != nil {
		if err := t.scheduled.LoadStateDict(cp.Optimizer); err != nil {
			return fmt.Errorf("restore optimizer: %w", err)
		}
	}
	t.step = cp.Step
	t.lastLoss = cp.Loss
	return nil
}

func (t *Trainer) saveCheckpoint() error {
	if t.store == nil {
		return nil
	}
	params := make(map[string][]float64, len(t.problem.Params()))
	for _, p := range t.problem.Params() {
		params[p.Name()] = append([]float64(nil), p.Data()...)
	}
	meta := map[string]any{"problem": t.problem.Name()}
	for k, v := range t.config.Metadata {
		meta[k] = v
	}
	cp := &checkpoint.Checkpoint{
		RunID:     t.runID,
		Epoch:     t.epoch(),
		Step:      t.step,
		Loss:      t.lastLoss,
		Params:    params,
		Optimizer: t.scheduled.StateDict(),
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	return t.store.SaveCheckpoint(t.runID, cp)
}
