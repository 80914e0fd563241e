package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/guiyumin/vscribe/internal/core/logger"
	"golang.org/x/sync/errgroup"
)

// ExecOptions tunes one worker's execution.
type ExecOptions struct {
	// Limit bounds the transcriptions in flight for this worker. Values
	// below 1 mean 1, since each call may hold a full model's worth of
	// memory on a shared device.
	Limit int

	// Observe, if set, is called once per finished segment. It may be
	// called from several goroutines at once.
	Observe func(SegmentResult)

	Log *logger.Logger
}

// Execute transcribes every segment of a on pool and returns the results in
// assignment order. A segment that fails is recorded as StatusFailed and does
// not stop its siblings. Only a pool that cannot start fails the worker as a
// whole, in which case the result carries a *WorkerInitError and no results.
func Execute(ctx context.Context, a WorkAssignment, pool Pool, opts ExecOptions) WorkerResult {
	start := time.Now()
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("worker", a.WorkerID)

	out := WorkerResult{WorkerID: a.WorkerID}
	if err := pool.Start(ctx); err != nil {
		out.Err = &WorkerInitError{WorkerID: a.WorkerID, Err: err}
		out.Elapsed = time.Since(start)
		log.Errorw("worker failed to start", "segments", len(a.Segments), "error", err)
		return out
	}
	defer func() {
		if err := pool.Close(); err != nil {
			log.Warnw("worker pool did not close cleanly", "error", err)
		}
	}()

	limit := opts.Limit
	if limit < 1 {
		limit = 1
	}

	results := make([]SegmentResult, len(a.Segments))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, seg := range a.Segments {
		g.Go(func() error {
			r := runSegment(ctx, pool, seg)
			if r.Failed() {
				log.Warnw("segment failed", "index", seg.Index, "reason", r.Reason)
			} else {
				log.Debugw("segment done", "index", seg.Index, "elapsed", r.Elapsed)
			}
			results[i] = r
			if opts.Observe != nil {
				opts.Observe(r)
			}
			return nil
		})
	}
	_ = g.Wait()

	out.Results = results
	out.Elapsed = time.Since(start)
	log.Infow("worker finished", "segments", len(results), "elapsed", out.Elapsed.Round(time.Millisecond))
	return out
}

// runSegment dispatches one segment and converts any error or panic into a
// failed result.
func runSegment(ctx context.Context, pool Pool, seg SegmentDescriptor) (r SegmentResult) {
	start := time.Now()
	r = SegmentResult{Index: seg.Index}
	defer func() {
		if p := recover(); p != nil {
			r.Text = ""
			r.Status = StatusFailed
			r.Reason = fmt.Sprintf("panic: %v", p)
		}
		r.Elapsed = time.Since(start)
	}()

	text, err := pool.Dispatch(ctx, seg)
	if err != nil {
		r.Status = StatusFailed
		r.Reason = err.Error()
		return r
	}
	r.Text = text
	r.Status = StatusOK
	return r
}
