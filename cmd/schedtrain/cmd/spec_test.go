package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/checkpoint"
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/train"
)

func TestLoadRunSpec(t *testing.T) {
	yamlSpec := `problem:
  dim: 4
  samples: 64
  seed: 7
optimizer:
  type: adamw
  lr: 0.003
  weightDecay: 0.01
schedules:
  - type: linear
    totalSteps: 500
    warmupRate: 0.2
  - type: cyclical
    stepsPerEpoch: 50
    maxValue: 0.01
    minValue: 0.002
    epochsPerCycle: 5
    path: regularization.l2
loop:
  steps: 500
  stepsPerEpoch: 50
  checkpointEvery: 100
  logEvery: 50
`
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(yamlSpec), 0644); err != nil {
		t.Fatalf("failed to write spec file: %v", err)
	}

	spec, err := loadRunSpec(path)
	if err != nil {
		t.Fatalf("loadRunSpec failed: %v", err)
	}

	if spec.Problem.Dim != 4 || spec.Problem.Samples != 64 || spec.Problem.Seed != 7 {
		t.Errorf("unexpected problem spec: %+v", spec.Problem)
	}
	if spec.Optimizer.Type != "adamw" || spec.Optimizer.LR != 0.003 || spec.Optimizer.WeightDecay != 0.01 {
		t.Errorf("unexpected optimizer spec: %+v", spec.Optimizer)
	}
	if len(spec.Schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(spec.Schedules))
	}
	if spec.Schedules[0].Type != "linear" || spec.Schedules[0].TotalSteps != 500 || spec.Schedules[0].WarmupRate != 0.2 {
		t.Errorf("unexpected first schedule: %+v", spec.Schedules[0])
	}
	if spec.Schedules[1].Type != "cyclical" || spec.Schedules[1].Path != "regularization.l2" || spec.Schedules[1].EpochsPerCycle != 5 {
		t.Errorf("unexpected second schedule: %+v", spec.Schedules[1])
	}
	if spec.Loop.Steps != 500 || spec.Loop.CheckpointEvery != 100 {
		t.Errorf("unexpected loop spec: %+v", spec.Loop)
	}
}

func TestLoadRunSpec_MissingFile(t *testing.T) {
	if _, err := loadRunSpec(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRunSpec_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("problem: [not a map"), 0644); err != nil {
		t.Fatalf("failed to write spec file: %v", err)
	}
	if _, err := loadRunSpec(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestBuildSchedule_Linear(t *testing.T) {
	s, err := buildSchedule(scheduleSpec{Type: "linear", TotalSteps: 10, MaxValue: 1.0, WarmupRate: 0.5})
	if err != nil {
		t.Fatalf("buildSchedule failed: %v", err)
	}

	group := &optim.ParamGroup{Options: optim.Options{}}
	var values []float64
	for i := 0; i < 6; i++ {
		s.Step(group)
		v, _ := group.Options.Get("lr")
		values = append(values, v)
	}

	// Warmup covers the first 5 steps, then decay starts at the peak.
	want := []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("step %d: got %g, want %g", i, values[i], want[i])
		}
	}
}

func TestBuildSchedule_Cyclical(t *testing.T) {
	s, err := buildSchedule(scheduleSpec{Type: "cyclical", StepsPerEpoch: 5, MaxValue: 0.01, MinValue: 0.001, EpochsPerCycle: 10})
	if err != nil {
		t.Fatalf("buildSchedule failed: %v", err)
	}

	// The explicit peak wins over whatever the group holds.
	group := &optim.ParamGroup{Options: optim.Options{"lr": 0.5}}
	s.Step(group)
	v, _ := group.Options.Get("lr")
	if v != 0.01 {
		t.Errorf("got lr %g, want 0.01", v)
	}
}

func TestBuildSchedule_Unknown(t *testing.T) {
	if _, err := buildSchedule(scheduleSpec{Type: "exponential"}); err == nil {
		t.Error("expected error for unknown schedule type")
	}
}

func TestBuildScheduled(t *testing.T) {
	spec := &runSpec{
		Problem:   problemSpec{Dim: 2, Samples: 8, Seed: 3},
		Optimizer: optimizerSpec{Type: "sgd", LR: 0.1, Momentum: 0.9},
		Schedules: []scheduleSpec{{Type: "linear", TotalSteps: 100}},
	}
	problem := train.NewRandomLeastSquares(spec.Problem.Dim, spec.Problem.Samples, spec.Problem.Seed)

	scheduled, err := buildScheduled(spec, problem)
	if err != nil {
		t.Fatalf("buildScheduled failed: %v", err)
	}

	groups := scheduled.ParamGroups()
	if len(groups) != 1 {
		t.Fatalf("expected 1 param group, got %d", len(groups))
	}
	if len(groups[0].Params) != len(problem.Params()) {
		t.Errorf("expected %d params in group, got %d", len(problem.Params()), len(groups[0].Params))
	}
	if len(groups[0].Schedules) != 1 {
		t.Fatalf("expected 1 schedule attached, got %d", len(groups[0].Schedules))
	}

	// Construction primes the schedule, so the group lr has already
	// moved from the configured 0.1 to the warmup start.
	lr, ok := groups[0].Options.Get("lr")
	if !ok {
		t.Fatal("group has no lr")
	}
	if lr != 0 {
		t.Errorf("got primed lr %g, want 0", lr)
	}
}

func TestBuildScheduled_UnknownOptimizer(t *testing.T) {
	spec := &runSpec{
		Problem:   problemSpec{Dim: 2, Samples: 8, Seed: 3},
		Optimizer: optimizerSpec{Type: "lbfgs", LR: 0.1},
	}
	problem := train.NewRandomLeastSquares(spec.Problem.Dim, spec.Problem.Samples, spec.Problem.Seed)
	if _, err := buildScheduled(spec, problem); err == nil {
		t.Error("expected error for unknown optimizer type")
	}
}

func TestRunSpecFromMetadata(t *testing.T) {
	spec := &runSpec{
		Problem:   problemSpec{Dim: 4, Samples: 64, Seed: 7},
		Optimizer: optimizerSpec{Type: "sgd", LR: 0.05, Momentum: 0.9},
		Schedules: []scheduleSpec{{Type: "cyclical", StepsPerEpoch: 50, MaxFromGroup: true, MinValue: 0.005, EpochsPerCycle: 4}},
		Loop:      loopSpec{Steps: 2000, StepsPerEpoch: 50, CheckpointEvery: 200},
	}

	// Simulate the checkpoint JSON round trip that turns the embedded
	// spec into generic maps.
	raw, err := json.Marshal(map[string]any{"config": spec, "problem": "demo"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	got, err := runSpecFromMetadata(meta)
	if err != nil {
		t.Fatalf("runSpecFromMetadata failed: %v", err)
	}
	if got.Problem != spec.Problem {
		t.Errorf("problem spec mismatch: got %+v, want %+v", got.Problem, spec.Problem)
	}
	if got.Optimizer != spec.Optimizer {
		t.Errorf("optimizer spec mismatch: got %+v, want %+v", got.Optimizer, spec.Optimizer)
	}
	if len(got.Schedules) != 1 || got.Schedules[0] != spec.Schedules[0] {
		t.Errorf("schedule specs mismatch: got %+v, want %+v", got.Schedules, spec.Schedules)
	}
	if got.Loop != spec.Loop {
		t.Errorf("loop spec mismatch: got %+v, want %+v", got.Loop, spec.Loop)
	}
}

func TestRunSpecFromMetadata_Missing(t *testing.T) {
	if _, err := runSpecFromMetadata(map[string]any{"problem": "demo"}); err == nil {
		t.Error("expected error for metadata without run config")
	}
}

func TestTrainSpec_ScheduleSelection(t *testing.T) {
	originalSchedule := trainSchedule
	defer func() { trainSchedule = originalSchedule }()

	trainSchedule = "cyclical"
	spec, err := trainSpec()
	if err != nil {
		t.Fatalf("trainSpec failed: %v", err)
	}
	if len(spec.Schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(spec.Schedules))
	}
	s := spec.Schedules[0]
	if s.Type != "cyclical" || !s.MaxFromGroup || s.StepsPerEpoch != trainStepsPerEpoch {
		t.Errorf("unexpected cyclical spec: %+v", s)
	}

	trainSchedule = "none"
	spec, err = trainSpec()
	if err != nil {
		t.Fatalf("trainSpec failed: %v", err)
	}
	if len(spec.Schedules) != 0 {
		t.Errorf("expected no schedules, got %d", len(spec.Schedules))
	}

	trainSchedule = "bogus"
	if _, err := trainSpec(); err == nil {
		t.Error("expected error for unknown schedule")
	}
}

func TestSelectCheckpointsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []checkpoint.Info{
		{RunID: "run1", CreatedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", CreatedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", CreatedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", CreatedAt: now.AddDate(0, 0, -30)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 0, 7)
	if len(toDelete) != 2 {
		t.Fatalf("expected 2 checkpoints to delete, got %d", len(toDelete))
	}

	marked := make(map[string]bool)
	for _, info := range toDelete {
		marked[info.RunID] = true
	}
	if !marked["run1"] || !marked["run4"] {
		t.Error("expected run1 and run4 to be selected for deletion")
	}
}

func TestSelectCheckpointsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []checkpoint.Info{
		{RunID: "run1", CreatedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", CreatedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", CreatedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", CreatedAt: now.AddDate(0, 0, -30)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 2, 0)
	if len(toDelete) != 2 {
		t.Fatalf("expected 2 checkpoints to delete, got %d", len(toDelete))
	}

	marked := make(map[string]bool)
	for _, info := range toDelete {
		marked[info.RunID] = true
	}
	if !marked["run1"] || !marked["run4"] {
		t.Error("expected the two oldest runs to be selected for deletion")
	}
}

func TestSelectCheckpointsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []checkpoint.Info{
		{RunID: "run1", CreatedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", CreatedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", CreatedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", CreatedAt: now.AddDate(0, 0, -30)},
		{RunID: "run5", CreatedAt: now.AddDate(0, 0, -2)},
	}

	// Age marks run1 and run4; keeping only the 2 most recent adds run2
	// without duplicating the already-marked runs.
	toDelete := selectCheckpointsForDeletion(infos, 2, 7)
	if len(toDelete) != 3 {
		t.Fatalf("expected 3 checkpoints to delete, got %d", len(toDelete))
	}

	marked := make(map[string]bool)
	for _, info := range toDelete {
		marked[info.RunID] = true
	}
	if !marked["run1"] || !marked["run2"] || !marked["run4"] {
		t.Error("expected run1, run2 and run4 to be selected for deletion")
	}
}

func TestDirSize(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("hello, world")
	if err := os.WriteFile(filepath.Join(tmpDir, "test.txt"), content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	size, err := dirSize(tmpDir)
	if err != nil {
		t.Fatalf("dirSize failed: %v", err)
	}
	if size < int64(len(content)) {
		t.Errorf("expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}
