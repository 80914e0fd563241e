// Package batch coordinates one transcription run: it partitions segments
// across workers, drives each worker's pool, and merges the per-segment
// results back into a single transcript in segment order.
package batch

import "time"

// SegmentDescriptor locates one self-contained extract of the input file.
// Index is 0-based and defines the total order of the transcript.
type SegmentDescriptor struct {
	Index    int           `json:"index"`
	Path     string        `json:"path"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

// End returns the offset where the segment stops.
func (s SegmentDescriptor) End() time.Duration {
	return s.Start + s.Duration
}

// WorkAssignment is the fixed share of segments given to one worker.
type WorkAssignment struct {
	WorkerID int                 `json:"worker_id"`
	Segments []SegmentDescriptor `json:"segments"`
}

// Status is the outcome of one segment.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// SegmentResult is what a worker produced for one segment.
type SegmentResult struct {
	Index   int           `json:"index"`
	Text    string        `json:"text"`
	Status  Status        `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Failed reports whether the segment could not be transcribed.
func (r SegmentResult) Failed() bool {
	return r.Status != StatusOK
}

// WorkerResult is everything one worker returns. When Err is set the pool
// never came up and Results is empty.
type WorkerResult struct {
	WorkerID int
	Results  []SegmentResult
	Elapsed  time.Duration
	Err      error
}
