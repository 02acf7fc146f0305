package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/train"
)

// runSpec fully describes a training run. It is loaded from flags or a
// YAML file, and embedded in every checkpoint so a resume can rebuild
// the same problem and optimizer without repeating the flags.
type runSpec struct {
	Problem   problemSpec    `yaml:"problem" json:"problem"`
	Optimizer optimizerSpec  `yaml:"optimizer" json:"optimizer"`
	Schedules []scheduleSpec `yaml:"schedules" json:"schedules"`
	Loop      loopSpec       `yaml:"loop" json:"loop"`
}

type problemSpec struct {
	Dim     int   `yaml:"dim" json:"dim"`
	Samples int   `yaml:"samples" json:"samples"`
	Seed    int64 `yaml:"seed" json:"seed"`
}

type optimizerSpec struct {
	Type        string  `yaml:"type" json:"type"`
	LR          float64 `yaml:"lr" json:"lr"`
	Momentum    float64 `yaml:"momentum" json:"momentum"`
	WeightDecay float64 `yaml:"weightDecay" json:"weightDecay"`
}

type scheduleSpec struct {
	Type           string  `yaml:"type" json:"type"`
	TotalSteps     int     `yaml:"totalSteps" json:"totalSteps"`
	StartValue     float64 `yaml:"startValue" json:"startValue"`
	MaxValue       float64 `yaml:"maxValue" json:"maxValue"`
	WarmupRate     float64 `yaml:"warmupRate" json:"warmupRate"`
	NoWarmup       bool    `yaml:"noWarmup" json:"noWarmup"`
	StepsPerEpoch  int     `yaml:"stepsPerEpoch" json:"stepsPerEpoch"`
	MinValue       float64 `yaml:"minValue" json:"minValue"`
	EpochsPerCycle int     `yaml:"epochsPerCycle" json:"epochsPerCycle"`
	MaxFromGroup   bool    `yaml:"maxFromGroup" json:"maxFromGroup"`
	Path           string  `yaml:"path" json:"path"`
}

type loopSpec struct {
	Steps           int `yaml:"steps" json:"steps"`
	StepsPerEpoch   int `yaml:"stepsPerEpoch" json:"stepsPerEpoch"`
	CheckpointEvery int `yaml:"checkpointEvery" json:"checkpointEvery"`
	LogEvery        int `yaml:"logEvery" json:"logEvery"`
}

func (s *runSpec) applyDefaults() {
	if s.Problem.Dim == 0 {
		s.Problem.Dim = 8
	}
	if s.Problem.Samples == 0 {
		s.Problem.Samples = 256
	}
	if s.Problem.Seed == 0 {
		s.Problem.Seed = 1
	}
	if s.Optimizer.Type == "" {
		s.Optimizer.Type = "sgd"
	}
	if s.Optimizer.LR == 0 {
		s.Optimizer.LR = 0.1
	}
	if s.Loop.Steps == 0 {
		s.Loop.Steps = 1000
	}
}

// loadRunSpec reads a run spec from a YAML file.
func loadRunSpec(path string) (*runSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run spec: %w", err)
	}
	var spec runSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse run spec: %w", err)
	}
	return &spec, nil
}

// runSpecFromMetadata recovers the run spec a train run embedded in its
// checkpoint metadata. The metadata comes back from JSON as generic
// maps, so it is re-encoded and decoded into the typed spec.
func runSpecFromMetadata(meta map[string]any) (*runSpec, error) {
	raw, ok := meta["config"]
	if !ok {
		return nil, errors.New("checkpoint has no embedded run config")
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode run config: %w", err)
	}
	var spec runSpec
	if err := json.Unmarshal(buf, &spec); err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}
	return &spec, nil
}

// buildSchedule constructs the schedule a spec describes.
func buildSchedule(spec scheduleSpec) (optim.Schedule, error) {
	switch spec.Type {
	case "linear":
		return optim.NewLinearSchedule(optim.LinearScheduleConfig{
			TotalSteps: spec.TotalSteps,
			StartValue: spec.StartValue,
			MaxValue:   spec.MaxValue,
			WarmupRate: spec.WarmupRate,
			NoWarmup:   spec.NoWarmup,
			Path:       spec.Path,
		}), nil
	case "cyclical":
		return optim.NewCyclicalLinearSchedule(optim.CyclicalLinearScheduleConfig{
			StepsPerEpoch:  spec.StepsPerEpoch,
			MaxValue:       spec.MaxValue,
			MaxFromGroup:   spec.MaxFromGroup,
			MinValue:       spec.MinValue,
			EpochsPerCycle: spec.EpochsPerCycle,
			Path:           spec.Path,
		}), nil
	default:
		return nil, fmt.Errorf("unknown schedule type %q", spec.Type)
	}
}

// buildScheduled constructs the scheduled optimizer over a single
// parameter group holding all of the problem's parameters.
func buildScheduled(spec *runSpec, problem train.Problem) (*optim.ScheduledOptimizer, error) {
	schedules := make([]optim.Schedule, 0, len(spec.Schedules))
	for _, s := range spec.Schedules {
		built, err := buildSchedule(s)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, built)
	}

	groups := []*optim.ParamGroup{{
		Params:    problem.Params(),
		Options:   optim.Options{"lr": spec.Optimizer.LR},
		Schedules: schedules,
	}}

	var inner optim.Optimizer
	switch spec.Optimizer.Type {
	case "sgd":
		inner = optim.NewSGD(groups, optim.SGDConfig{
			LR:          spec.Optimizer.LR,
			Momentum:    spec.Optimizer.Momentum,
			WeightDecay: spec.Optimizer.WeightDecay,
		})
	case "adamw":
		inner = optim.NewAdamW(groups, optim.AdamWConfig{
			LR:          spec.Optimizer.LR,
			WeightDecay: spec.Optimizer.WeightDecay,
		})
	default:
		return nil, fmt.Errorf("unknown optimizer type %q", spec.Optimizer.Type)
	}
	return optim.NewScheduledOptimizer(inner), nil
}
