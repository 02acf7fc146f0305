package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/checkpoint"
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/train"
)

var (
	trainRunID           string
	trainConfigPath      string
	trainSteps           int
	trainDim             int
	trainSamples         int
	trainSeed            int64
	trainOptimizer       string
	trainLR              float64
	trainMomentum        float64
	trainWeightDecay     float64
	trainSchedule        string
	trainWarmupRate      float64
	trainNoWarmup        bool
	trainMinLR           float64
	trainEpochsPerCycle  int
	trainStepsPerEpoch   int
	trainCheckpointEvery int
	trainLogEvery        int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run a synthetic least-squares training demo",
	Long: `Train a linear model on a synthetic least-squares problem with a
scheduled learning rate, writing periodic checkpoints to the data
directory. The run configuration can also be given as a YAML file:

	problem:
	  dim: 8
	  samples: 256
	  seed: 1
	optimizer:
	  type: sgd
	  lr: 0.1
	  momentum: 0.9
	schedules:
	  - type: linear
	    totalSteps: 1000
	    warmupRate: 0.1
	loop:
	  steps: 1000
	  checkpointEvery: 100
	  logEvery: 100
`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainRunID, "run-id", "", "Run identifier (generated when empty)")
	trainCmd.Flags().StringVar(&trainConfigPath, "config", "", "Run spec YAML file (overrides the other flags)")
	trainCmd.Flags().IntVar(&trainSteps, "steps", 1000, "Total optimizer steps")
	trainCmd.Flags().IntVar(&trainDim, "dim", 8, "Number of features")
	trainCmd.Flags().IntVar(&trainSamples, "samples", 256, "Number of samples")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 1, "Random seed for the synthetic data")
	trainCmd.Flags().StringVar(&trainOptimizer, "optimizer", "sgd", "Optimizer: sgd, adamw")
	trainCmd.Flags().Float64Var(&trainLR, "lr", 0.1, "Learning rate (the peak when a schedule is attached)")
	trainCmd.Flags().Float64Var(&trainMomentum, "momentum", 0.9, "SGD momentum")
	trainCmd.Flags().Float64Var(&trainWeightDecay, "weight-decay", 0, "Weight decay")
	trainCmd.Flags().StringVar(&trainSchedule, "schedule", "linear", "Learning rate schedule: linear, cyclical, none")
	trainCmd.Flags().Float64Var(&trainWarmupRate, "warmup-rate", 0.1, "Warmup fraction of the linear schedule")
	trainCmd.Flags().BoolVar(&trainNoWarmup, "no-warmup", false, "Disable the linear schedule's warmup phase")
	trainCmd.Flags().Float64Var(&trainMinLR, "min-lr", 0.001, "Bottom of the cyclical schedule")
	trainCmd.Flags().IntVar(&trainEpochsPerCycle, "epochs-per-cycle", 10, "Cycle length of the cyclical schedule")
	trainCmd.Flags().IntVar(&trainStepsPerEpoch, "steps-per-epoch", 100, "Steps per epoch")
	trainCmd.Flags().IntVar(&trainCheckpointEvery, "checkpoint-every", 100, "Steps between periodic checkpoints (0 = final only)")
	trainCmd.Flags().IntVar(&trainLogEvery, "log-every", 100, "Steps between progress log lines (0 = quiet)")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	spec, err := trainSpec()
	if err != nil {
		return err
	}

	id := trainRunID
	if id == "" {
		id = uuid.New().String()
	}
	log.WithField("run", id).Info("starting training run")

	ctx, cancel := interruptContext()
	defer cancel()
	return startRun(ctx, id, spec, false)
}

// trainSpec assembles the run spec from the YAML file when given, and
// from the command flags otherwise.
func trainSpec() (*runSpec, error) {
	if trainConfigPath != "" {
		spec, err := loadRunSpec(trainConfigPath)
		if err != nil {
			return nil, err
		}
		spec.applyDefaults()
		return spec, nil
	}

	spec := &runSpec{
		Problem: problemSpec{Dim: trainDim, Samples: trainSamples, Seed: trainSeed},
		Optimizer: optimizerSpec{
			Type:        trainOptimizer,
			LR:          trainLR,
			Momentum:    trainMomentum,
			WeightDecay: trainWeightDecay,
		},
		Loop: loopSpec{
			Steps:           trainSteps,
			StepsPerEpoch:   trainStepsPerEpoch,
			CheckpointEvery: trainCheckpointEvery,
			LogEvery:        trainLogEvery,
		},
	}

	switch trainSchedule {
	case "linear":
		// MaxValue stays unset so the schedule adopts the group's lr
		// as its peak on the first step.
		spec.Schedules = []scheduleSpec{{
			Type:       "linear",
			TotalSteps: trainSteps,
			WarmupRate: trainWarmupRate,
			NoWarmup:   trainNoWarmup,
		}}
	case "cyclical":
		spec.Schedules = []scheduleSpec{{
			Type:           "cyclical",
			StepsPerEpoch:  trainStepsPerEpoch,
			MaxFromGroup:   true,
			MinValue:       trainMinLR,
			EpochsPerCycle: trainEpochsPerCycle,
		}}
	case "none":
	default:
		return nil, fmt.Errorf("unknown schedule %q", trainSchedule)
	}
	return spec, nil
}

// startRun builds the problem and optimizer a spec describes and runs
// (or resumes) training against the checkpoint store.
func startRun(ctx context.Context, id string, spec *runSpec, resume bool) error {
	store, err := checkpoint.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}

	problem := train.NewRandomLeastSquares(spec.Problem.Dim, spec.Problem.Samples, spec.Problem.Seed)
	scheduled, err := buildScheduled(spec, problem)
	if err != nil {
		return err
	}

	trainer := train.NewTrainer(id, problem, scheduled, store, train.TrainerConfig{
		Steps:           spec.Loop.Steps,
		StepsPerEpoch:   spec.Loop.StepsPerEpoch,
		CheckpointEvery: spec.Loop.CheckpointEvery,
		LogEvery:        spec.Loop.LogEvery,
		Metadata:        map[string]any{"config": spec},
	})
	if resume {
		return trainer.Resume(ctx)
	}
	return trainer.Run(ctx)
}
