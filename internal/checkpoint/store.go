package checkpoint

// Store defines the interface for checkpoint persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the checkpoint doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveCheckpoint atomically saves a checkpoint for the given run.
	// If a checkpoint already exists for this runID, it is overwritten.
	// Implementations should use atomic write strategies (temp file +
	// rename) to prevent corruption in case of failures.
	SaveCheckpoint(runID string, cp *Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for the given run.
	// Returns ErrNotFound if no checkpoint exists for this runID.
	LoadCheckpoint(runID string) (*Checkpoint, error)

	// ListCheckpoints returns metadata for all available checkpoints.
	// The returned slice may be empty if no checkpoints exist.
	ListCheckpoints() ([]Info, error)

	// DeleteCheckpoint removes the checkpoint for the given run.
	// Returns ErrNotFound if no checkpoint exists for this runID.
	DeleteCheckpoint(runID string) error
}

// ErrNotFound is returned when a requested checkpoint does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing checkpoint error.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "checkpoint not found: " + e.RunID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
