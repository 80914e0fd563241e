package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/guiyumin/vscribe/internal/core/logger"
	"github.com/guiyumin/vscribe/internal/core/output"
	"github.com/looplab/fsm"
	"golang.org/x/sync/errgroup"
)

// Splitter cuts an input file into segment artifacts inside dir. On error the
// returned descriptors are the artifacts already written, so they can still
// be cleaned up.
type Splitter interface {
	Split(ctx context.Context, input, dir string) ([]SegmentDescriptor, error)
}

// PoolFactory returns the pool a worker should run on. It is called once per
// worker that has at least one segment.
type PoolFactory func(workerID int) Pool

// Config holds the knobs of a run.
type Config struct {
	RunID        string // names the work directory; random when empty
	Workers      int    // local workers; ignored by RunRank
	Limit        int    // in-flight transcriptions per worker
	WorkDir      string // parent of the run's segment directory; os.TempDir() when empty
	Output       string // transcript path; derived from the input when empty
	KeepSegments bool   // leave segment files on disk after a successful run
	Aggregate    AggregateOptions
	Observe      func(SegmentResult)
}

// Runner owns one run from split to cleanup.
type Runner struct {
	split   Splitter
	pools   PoolFactory
	cfg     Config
	log     *logger.Logger
	persist func(path, text string) error
}

// NewRunner wires a splitter and a pool factory into a runner.
func NewRunner(split Splitter, pools PoolFactory, cfg Config, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		split:   split,
		pools:   pools,
		cfg:     cfg,
		log:     log,
		persist: output.WriteText,
	}
}

type runState struct {
	fsm       *fsm.FSM
	artifacts *Artifacts
	report    *Report
	start     time.Time
	keep      bool
	log       *logger.Logger
}

// Run transcribes input with cfg.Workers local workers. The returned report
// is never nil. The error is non-nil only for failures that stop the whole
// run: an invalid worker count, a split failure, or a transcript that could
// not be written.
func (r *Runner) Run(ctx context.Context, input string) (*Report, error) {
	st := r.begin(input)
	if r.cfg.Workers <= 0 {
		return st.fail(ctx, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, r.cfg.Workers), false)
	}

	segs, err := r.splitInto(ctx, st, input)
	if err != nil {
		return st.fail(ctx, err, true)
	}

	st.event(ctx, eventDistribute)
	assignments, err := Distribute(segs, r.cfg.Workers)
	if err != nil {
		return st.fail(ctx, err, true)
	}
	st.report.Size = len(assignments)
	st.log.Infow("segments distributed", "segments", len(segs), "workers", len(assignments))

	st.event(ctx, eventExecute)
	results := make([]WorkerResult, len(assignments))
	var g errgroup.Group
	for i, a := range assignments {
		g.Go(func() error {
			results[i] = r.execute(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	return r.complete(ctx, st, input, segs, results, len(assignments))
}

// RunRank runs this process's part of a distributed run. Only rank 0 splits,
// aggregates, writes the transcript and cleans up; the segment files must be
// reachable from every rank at the same path.
func (r *Runner) RunRank(ctx context.Context, input string, g Group) (*Report, error) {
	st := r.begin(input)
	rank, size := g.Rank(), g.Size()
	root := rank == 0
	st.report.Rank, st.report.Size = rank, size
	st.log = st.log.With("rank", rank)

	var segs []SegmentDescriptor
	var err error
	if root {
		segs, err = r.splitInto(ctx, st, input)
		if _, berr := g.Broadcast(ctx, segs, err); berr != nil && err == nil {
			err = fmt.Errorf("failed to broadcast segments: %w", berr)
		}
	} else {
		segs, err = g.Broadcast(ctx, nil, nil)
	}
	if err != nil {
		return st.fail(ctx, err, root)
	}
	st.report.Segments = len(segs)

	st.event(ctx, eventDistribute)
	a, err := AssignmentFor(segs, rank, size)
	if err != nil {
		return st.fail(ctx, err, root)
	}

	st.event(ctx, eventExecute)
	local := r.execute(ctx, a)
	st.log.Infow("rank transcription completed", "segments", len(a.Segments), "elapsed", local.Elapsed.Round(time.Millisecond))

	gathered, err := g.Gather(ctx, local)
	if err != nil {
		return st.fail(ctx, fmt.Errorf("failed to gather results: %w", err), root)
	}

	if !root {
		st.report.addWorkers([]WorkerResult{local}, map[int]int{rank: len(a.Segments)})
		st.report.Transcribed = len(local.Results) - st.report.Workers[0].Failed
		st.event(ctx, eventFinish)
		return st.finish(), nil
	}
	return r.complete(ctx, st, input, segs, gathered, size)
}

func (r *Runner) begin(input string) *runState {
	id := r.cfg.RunID
	if id == "" {
		id = uuid.NewString()
	}
	return &runState{
		fsm:       newRunFSM(r.log),
		artifacts: NewArtifacts(),
		report:    &Report{RunID: id, Input: input, Size: 1},
		start:     time.Now(),
		keep:      r.cfg.KeepSegments,
		log:       r.log.With("run", id),
	}
}

// splitInto creates the run directory and lets the splitter fill it. Every
// artifact is tracked before the error is looked at.
func (r *Runner) splitInto(ctx context.Context, st *runState, input string) ([]SegmentDescriptor, error) {
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("input not found: %w", err)
	}

	parent := r.cfg.WorkDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, "vscribe-"+st.report.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	st.artifacts.TrackDir(dir)

	start := time.Now()
	segs, err := r.split.Split(ctx, input, dir)
	for _, s := range segs {
		st.artifacts.Track(s.Path)
	}
	if err != nil {
		return segs, fmt.Errorf("failed to split %s: %w", filepath.Base(input), err)
	}

	st.report.Segments = len(segs)
	st.log.Infow("audio split", "segments", len(segs), "dir", dir, "elapsed", time.Since(start).Round(time.Millisecond))
	return segs, nil
}

func (r *Runner) execute(ctx context.Context, a WorkAssignment) WorkerResult {
	if len(a.Segments) == 0 {
		return WorkerResult{WorkerID: a.WorkerID}
	}
	return Execute(ctx, a, r.pools(a.WorkerID), ExecOptions{
		Limit:   r.cfg.Limit,
		Observe: r.cfg.Observe,
		Log:     r.log,
	})
}

// complete aggregates, writes the transcript once, then releases artifacts.
// A failed write leaves every artifact in place for recovery.
func (r *Runner) complete(ctx context.Context, st *runState, input string, segs []SegmentDescriptor, results []WorkerResult, workers int) (*Report, error) {
	st.event(ctx, eventAggregate)

	assigned := make(map[int]int, workers)
	for i := range segs {
		assigned[i%workers]++
	}
	st.report.addWorkers(results, assigned)
	for _, wf := range st.report.WorkerFailures {
		st.log.Errorw("worker lost its assignment", "worker", wf.WorkerID, "error", wf.Err)
	}

	opts := r.cfg.Aggregate
	opts.Expected = len(segs)
	t := Aggregate(results, opts)

	reasons := make(map[int]string)
	for _, w := range results {
		for _, res := range w.Results {
			if res.Failed() {
				reasons[res.Index] = res.Reason
			}
		}
	}
	for _, i := range t.Failed {
		st.report.Failures = append(st.report.Failures, &SegmentError{Index: i, Err: errors.New(reasons[i])})
	}
	st.report.Missing = t.Missing
	st.report.Transcribed = t.Included

	st.event(ctx, eventPersist)
	out := r.cfg.Output
	if out == "" {
		out = output.DefaultPath(input)
	}
	if err := r.persist(out, t.Text); err != nil {
		return st.fail(ctx, &PersistenceError{Path: out, Err: err}, false)
	}
	st.report.Output = out
	st.log.Infow("transcript saved", "path", out, "segments", t.Included, "failed", len(t.Failed), "missing", len(t.Missing))

	st.event(ctx, eventClean)
	st.cleanup()
	st.event(ctx, eventFinish)
	return st.finish(), nil
}

func (st *runState) event(ctx context.Context, name string) {
	if err := st.fsm.Event(ctx, name); err != nil {
		st.log.Warnw("unexpected state transition", "event", name, "state", st.fsm.Current(), "error", err)
	}
}

// fail moves the run to failed. With cleanup set the artifacts are released
// best-effort; otherwise they are left in place and listed in the report.
func (st *runState) fail(ctx context.Context, err error, cleanup bool) (*Report, error) {
	st.event(ctx, eventFail)
	st.log.Errorw("run failed", "error", err)
	if cleanup {
		st.cleanup()
	} else {
		st.report.Preserved = st.artifacts.Paths()
	}
	return st.finish(), err
}

func (st *runState) cleanup() {
	if st.keep {
		st.report.Preserved = st.artifacts.Paths()
		return
	}
	for _, err := range st.artifacts.Release() {
		st.log.Warnw("cleanup failed", "error", err)
		st.report.CleanupErrors = append(st.report.CleanupErrors, err)
	}
}

func (st *runState) finish() *Report {
	st.report.State = st.fsm.Current()
	st.report.Elapsed = time.Since(st.start)
	return st.report
}
