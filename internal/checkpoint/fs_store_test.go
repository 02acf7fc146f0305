package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	require.NoError(t, err, "failed to create test store")
	return store, tempDir
}

// createTestCheckpoint creates a checkpoint with test data, including a
// composite optimizer snapshot.
func createTestCheckpoint(runID string) *Checkpoint {
	return &Checkpoint{
		RunID: runID,
		Epoch: 3,
		Step:  1500,
		Loss:  0.0234,
		Params: map[string][]float64{
			"w": {0.5, -0.3},
			"b": {0.1},
		},
		Optimizer: &optim.ScheduledState{
			Optim: &optim.StateDict{
				State: map[int]*optim.ParamState{
					0: {Buffers: map[string][]float64{"momentum_buffer": {0.01, 0.02}}},
				},
				Groups: []optim.GroupState{
					{Options: optim.Options{"lr": 0.005, "momentum": 0.9}, Params: []int{0, 1}},
				},
			},
			LR:        []float64{0.005},
			Schedules: [][]optim.ScheduleState{{{Idx: 1500}}},
		},
		Metadata:  map[string]any{"problem": "least_squares"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewFSStore(filepath.Join(tempDir, "nested", "dir"))
	require.NoError(t, err)
	require.NotNil(t, store)

	_, err = os.Stat(filepath.Join(tempDir, "nested", "dir"))
	assert.NoError(t, err, "base directory should have been created")
}

func TestSaveCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	runID := "test-run-123"
	require.NoError(t, store.SaveCheckpoint(runID, createTestCheckpoint(runID)))

	expectedPath := filepath.Join(tempDir, "runs", runID, "checkpoint.json")
	_, err := os.Stat(expectedPath)
	assert.NoError(t, err, "checkpoint file should exist")

	_, err = os.Stat(expectedPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not remain after save")
}

func TestSaveCheckpoint_Validation(t *testing.T) {
	store, _ := setupTestStore(t)

	assert.Error(t, store.SaveCheckpoint("", createTestCheckpoint("any")))
	assert.Error(t, store.SaveCheckpoint("run", nil))
}

func TestSaveCheckpoint_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	runID := "test-run-overwrite"
	first := createTestCheckpoint(runID)
	first.Loss = 0.5
	second := createTestCheckpoint(runID)
	second.Loss = 0.1

	require.NoError(t, store.SaveCheckpoint(runID, first))
	require.NoError(t, store.SaveCheckpoint(runID, second))

	loaded, err := store.LoadCheckpoint(runID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, loaded.Loss)
}

func TestLoadCheckpoint_RoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)

	runID := "test-run-load"
	original := createTestCheckpoint(runID)
	require.NoError(t, store.SaveCheckpoint(runID, original))

	loaded, err := store.LoadCheckpoint(runID)
	require.NoError(t, err)

	assert.Equal(t, original.RunID, loaded.RunID)
	assert.Equal(t, original.Epoch, loaded.Epoch)
	assert.Equal(t, original.Step, loaded.Step)
	assert.Equal(t, original.Loss, loaded.Loss)
	assert.Equal(t, original.Params, loaded.Params)

	// The optimizer snapshot survives with its structure intact.
	require.NotNil(t, loaded.Optimizer)
	assert.Equal(t, original.Optimizer.LR, loaded.Optimizer.LR)
	assert.Equal(t, original.Optimizer.Schedules, loaded.Optimizer.Schedules)
	require.Len(t, loaded.Optimizer.Optim.Groups, 1)
	assert.Equal(t, []int{0, 1}, loaded.Optimizer.Optim.Groups[0].Params)

	lr, ok := loaded.Optimizer.Optim.Groups[0].Options.Get("lr")
	require.True(t, ok)
	assert.Equal(t, 0.005, lr)

	buf := loaded.Optimizer.Optim.State[0].Buffers["momentum_buffer"]
	assert.Equal(t, []float64{0.01, 0.02}, buf)
}

func TestLoadCheckpoint_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadCheckpoint("nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestLoadCheckpoint_EmptyRunID(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadCheckpoint("")
	assert.Error(t, err)
}

func TestListCheckpoints_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListCheckpoints()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestListCheckpoints_Multiple(t *testing.T) {
	store, _ := setupTestStore(t)

	runs := []string{"run-1", "run-2", "run-3"}
	for _, runID := range runs {
		require.NoError(t, store.SaveCheckpoint(runID, createTestCheckpoint(runID)))
	}

	infos, err := store.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, infos, len(runs))

	found := make(map[string]bool)
	for _, info := range infos {
		found[info.RunID] = true
	}
	for _, runID := range runs {
		assert.True(t, found[runID], "run %s missing from listing", runID)
	}
}

func TestListCheckpoints_SkipsInvalidEntries(t *testing.T) {
	store, tempDir := setupTestStore(t)

	validRunID := "valid-run"
	require.NoError(t, store.SaveCheckpoint(validRunID, createTestCheckpoint(validRunID)))

	// A run directory without checkpoint.json and a stray file.
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "runs", "empty-run"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "runs", "stray.txt"), []byte("x"), 0644))

	infos, err := store.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, validRunID, infos[0].RunID)
}

func TestDeleteCheckpoint(t *testing.T) {
	store, _ := setupTestStore(t)

	runID := "test-run-delete"
	require.NoError(t, store.SaveCheckpoint(runID, createTestCheckpoint(runID)))
	require.NoError(t, store.DeleteCheckpoint(runID))

	_, err := store.LoadCheckpoint(runID)
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound after delete, got %v", err)
}

func TestDeleteCheckpoint_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	err := store.DeleteCheckpoint("nonexistent-run")
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestCheckpointToInfo(t *testing.T) {
	cp := createTestCheckpoint("test-run")

	info := cp.ToInfo()

	assert.Equal(t, cp.RunID, info.RunID)
	assert.Equal(t, cp.Epoch, info.Epoch)
	assert.Equal(t, cp.Step, info.Step)
	assert.Equal(t, cp.Loss, info.Loss)
	assert.Equal(t, cp.CreatedAt, info.CreatedAt)
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	const numRuns = 10
	done := make(chan error, numRuns)
	for i := 0; i < numRuns; i++ {
		go func(idx int) {
			runID := fmt.Sprintf("concurrent-run-%d", idx)
			done <- store.SaveCheckpoint(runID, createTestCheckpoint(runID))
		}(i)
	}
	for i := 0; i < numRuns; i++ {
		require.NoError(t, <-done)
	}

	infos, err := store.ListCheckpoints()
	require.NoError(t, err)
	assert.Len(t, infos, numRuns)
}
