package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// FSStore implements the Store interface using filesystem-based
// persistence. Checkpoints are stored as <baseDir>/runs/<runID>/checkpoint.json.
//
// Thread-safety: atomic file operations (rename) make concurrent use
// safe without locks.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// runDir returns the directory path for a given run ID.
func (fs *FSStore) runDir(runID string) string {
	return filepath.Join(fs.baseDir, "runs", runID)
}

// checkpointPath returns the path to the checkpoint.json file for a run.
func (fs *FSStore) checkpointPath(runID string) string {
	return filepath.Join(fs.runDir(runID), "checkpoint.json")
}

// SaveCheckpoint atomically saves a checkpoint for the given run.
// Uses the temp file + rename pattern to ensure atomicity.
func (fs *FSStore) SaveCheckpoint(runID string, cp *Checkpoint) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if cp == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}

	runDir := fs.runDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	tempPath := fs.checkpointPath(runID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint file: %w", err)
	}

	finalPath := fs.checkpointPath(runID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	log.WithFields(log.Fields{"runID": runID, "path": finalPath}).Debug("checkpoint saved")
	return nil
}

// LoadCheckpoint retrieves the checkpoint for the given run.
func (fs *FSStore) LoadCheckpoint(runID string) (*Checkpoint, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.checkpointPath(runID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}

	log.WithFields(log.Fields{"runID": runID, "path": path}).Debug("checkpoint loaded")
	return &cp, nil
}

// ListCheckpoints returns metadata for all available checkpoints.
func (fs *FSStore) ListCheckpoints() ([]Info, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		return []Info{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat runs directory: %w", err)
	}

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		runID := entry.Name()
		if _, err := os.Stat(fs.checkpointPath(runID)); os.IsNotExist(err) {
			continue
		}

		cp, err := fs.LoadCheckpoint(runID)
		if err != nil {
			log.WithFields(log.Fields{"runID": runID, "error": err}).Warn("failed to load checkpoint for listing")
			continue
		}
		infos = append(infos, cp.ToInfo())
	}

	log.WithField("count", len(infos)).Debug("listed checkpoints")
	return infos, nil
}

// DeleteCheckpoint removes the checkpoint for the given run.
func (fs *FSStore) DeleteCheckpoint(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	runDir := fs.runDir(runID)
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	log.WithFields(log.Fields{"runID": runID, "path": runDir}).Debug("checkpoint deleted")
	return nil
}
