package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkerCount is returned when a run is asked to use fewer than one worker.
var ErrInvalidWorkerCount = errors.New("worker count must be at least 1")

// SegmentError wraps the failure of a single segment's transcription.
type SegmentError struct {
	Index int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Index, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// WorkerInitError means a worker's pool could not be started. The worker's
// whole assignment is lost; other workers are unaffected.
type WorkerInitError struct {
	WorkerID int
	Err      error
}

func (e *WorkerInitError) Error() string {
	return fmt.Sprintf("worker %d: failed to start: %v", e.WorkerID, e.Err)
}

func (e *WorkerInitError) Unwrap() error { return e.Err }

// PersistenceError means the final transcript could not be written. Segment
// artifacts are left on disk when this happens.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to write transcript %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CleanupError records a temporary artifact that could not be removed.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to remove %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
