package batch

import (
	"errors"
	"time"
)

// WorkerSummary is one worker's share of the report.
type WorkerSummary struct {
	WorkerID int
	Segments int
	Failed   int
	Elapsed  time.Duration
}

// Report describes how a run ended. It is returned on success and on
// failure, so callers can always show which segments failed and why.
type Report struct {
	RunID  string
	Input  string
	Output string
	State  string
	Rank   int
	Size   int

	Segments       int
	Transcribed    int
	Failures       []*SegmentError
	Missing        []int
	WorkerFailures []*WorkerInitError
	Workers        []WorkerSummary

	CleanupErrors []error
	Preserved     []string
	Elapsed       time.Duration
}

// Degraded reports whether some segments are absent from the transcript.
func (r *Report) Degraded() bool {
	return len(r.Failures) > 0 || len(r.Missing) > 0
}

// AllWorkersFailed reports whether there was work to do but no worker ever started.
func (r *Report) AllWorkersFailed() bool {
	busy := 0
	for _, w := range r.Workers {
		if w.Segments > 0 {
			busy++
		}
	}
	return busy > 0 && len(r.WorkerFailures) == busy
}

func (r *Report) addWorkers(results []WorkerResult, assigned map[int]int) {
	for _, w := range results {
		s := WorkerSummary{WorkerID: w.WorkerID, Segments: assigned[w.WorkerID], Elapsed: w.Elapsed}
		for _, res := range w.Results {
			if res.Failed() {
				s.Failed++
			}
		}
		r.Workers = append(r.Workers, s)

		if w.Err == nil {
			continue
		}
		var wie *WorkerInitError
		if !errors.As(w.Err, &wie) {
			wie = &WorkerInitError{WorkerID: w.WorkerID, Err: w.Err}
		}
		r.WorkerFailures = append(r.WorkerFailures, wie)
	}
}
