package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/guiyumin/vscribe/internal/core/transcriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSplitter writes n small segment files. With failAfter >= 0 it stops
// after that many files and returns an error.
type fakeSplitter struct {
	n         int
	failAfter int
	calls     int
}

func (s *fakeSplitter) Split(_ context.Context, _ string, dir string) ([]SegmentDescriptor, error) {
	s.calls++
	var segs []SegmentDescriptor
	for i := 0; i < s.n; i++ {
		if s.failAfter >= 0 && i == s.failAfter {
			return segs, errors.New("ffmpeg exited with status 1")
		}
		p := filepath.Join(dir, fmt.Sprintf("segment_%04d.wav", i))
		if err := os.WriteFile(p, []byte("RIFF"), 0644); err != nil {
			return segs, err
		}
		segs = append(segs, SegmentDescriptor{
			Index:    i,
			Path:     p,
			Start:    time.Duration(i) * 300 * time.Second,
			Duration: 300 * time.Second,
		})
	}
	return segs, nil
}

func newSplitter(n int) *fakeSplitter { return &fakeSplitter{n: n, failAfter: -1} }

type runFixture struct {
	input   string
	output  string
	workDir string
}

func newFixture(t *testing.T) runFixture {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "talk.mp3")
	require.NoError(t, os.WriteFile(input, []byte("ID3"), 0644))
	return runFixture{
		input:   input,
		output:  filepath.Join(dir, "out", "talk.txt"),
		workDir: filepath.Join(dir, "work"),
	}
}

func (f runFixture) config(workers int) Config {
	return Config{
		RunID:   "test",
		Workers: workers,
		Limit:   2,
		WorkDir: f.workDir,
		Output:  f.output,
	}
}

func (f runFixture) runDir() string {
	return filepath.Join(f.workDir, "vscribe-test")
}

func sharedPool(model *fakeModel) PoolFactory {
	pool := NewThreadPool(func(context.Context) (transcriber.Transcriber, error) { return model, nil })
	return func(int) Pool { return pool }
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunProducesOrderedTranscript(t *testing.T) {
	f := newFixture(t)
	model := &fakeModel{delay: func(p string) time.Duration {
		// Segment 0 is the slowest so completion order differs from index order.
		if filepath.Base(p) == "segment_0000.wav" {
			return 30 * time.Millisecond
		}
		return time.Millisecond
	}}

	r := NewRunner(newSplitter(5), sharedPool(model), f.config(2), nil)
	report, err := r.Run(context.Background(), f.input)
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 5, report.Segments)
	assert.Equal(t, 5, report.Transcribed)
	assert.False(t, report.Degraded())
	assert.Equal(t, f.output, report.Output)
	assert.Equal(t,
		"text segment_0000\ntext segment_0001\ntext segment_0002\ntext segment_0003\ntext segment_0004",
		readOutput(t, f.output))

	_, err = os.Stat(f.runDir())
	assert.True(t, os.IsNotExist(err), "segment directory should be removed")
	assert.Empty(t, report.CleanupErrors)
}

func TestRunIsolatesFailedSegment(t *testing.T) {
	f := newFixture(t)
	model := &fakeModel{fail: map[string]bool{"segment_0001.wav": true}}

	r := NewRunner(newSplitter(3), sharedPool(model), f.config(2), nil)
	report, err := r.Run(context.Background(), f.input)
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "text segment_0000\ntext segment_0002", readOutput(t, f.output))
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.Contains(t, report.Failures[0].Error(), "decode failed")
	assert.True(t, report.Degraded())

	require.Len(t, report.Workers, 2)
	assert.Equal(t, WorkerSummary{WorkerID: 1, Segments: 1, Failed: 1, Elapsed: report.Workers[1].Elapsed}, report.Workers[1])
}

func TestRunPlaceholderPolicy(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(3)
	cfg.Aggregate = AggregateOptions{OnFailure: FailurePlaceholder}
	model := &fakeModel{fail: map[string]bool{"segment_0001.wav": true}}

	report, err := NewRunner(newSplitter(3), sharedPool(model), cfg, nil).Run(context.Background(), f.input)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "text segment_0000\n[segment 1: transcription failed]\ntext segment_0002", readOutput(t, f.output))
}

func TestRunWithoutSegments(t *testing.T) {
	f := newFixture(t)
	var built int
	pools := func(int) Pool {
		built++
		return &fakePool{}
	}

	report, err := NewRunner(newSplitter(0), pools, f.config(4), nil).Run(context.Background(), f.input)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Zero(t, report.Segments)
	assert.Zero(t, built, "no pool should be started without work")
	assert.Equal(t, "", readOutput(t, f.output))
}

func TestRunRejectsZeroWorkers(t *testing.T) {
	f := newFixture(t)
	split := newSplitter(3)

	report, err := NewRunner(split, sharedPool(&fakeModel{}), f.config(0), nil).Run(context.Background(), f.input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWorkerCount)
	assert.Equal(t, StateFailed, report.State)
	assert.Zero(t, split.calls, "split must not run")

	_, err = os.Stat(f.output)
	assert.True(t, os.IsNotExist(err))
}

func TestRunMissingInput(t *testing.T) {
	f := newFixture(t)
	report, err := NewRunner(newSplitter(1), sharedPool(&fakeModel{}), f.config(1), nil).
		Run(context.Background(), filepath.Join(filepath.Dir(f.input), "nope.mp3"))
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
}

func TestRunSplitFailureRemovesPartialSegments(t *testing.T) {
	f := newFixture(t)
	split := &fakeSplitter{n: 4, failAfter: 2}

	report, err := NewRunner(split, sharedPool(&fakeModel{}), f.config(2), nil).Run(context.Background(), f.input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg exited")
	assert.Equal(t, StateFailed, report.State)

	_, err = os.Stat(f.runDir())
	assert.True(t, os.IsNotExist(err), "partial segments should be cleaned up")
}

func TestRunPersistenceFailureKeepsSegments(t *testing.T) {
	f := newFixture(t)
	r := NewRunner(newSplitter(2), sharedPool(&fakeModel{}), f.config(2), nil)
	r.persist = func(string, string) error { return errors.New("disk full") }

	report, err := r.Run(context.Background(), f.input)
	require.Error(t, err)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, f.output, pe.Path)
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, report.Output)

	require.NotEmpty(t, report.Preserved)
	for _, p := range report.Preserved {
		_, err := os.Stat(p)
		assert.NoError(t, err, "%s should still exist", p)
	}
}

func TestRunKeepSegments(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(1)
	cfg.KeepSegments = true

	report, err := NewRunner(newSplitter(2), sharedPool(&fakeModel{}), cfg, nil).Run(context.Background(), f.input)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Len(t, report.Preserved, 3)
	_, err = os.Stat(filepath.Join(f.runDir(), "segment_0001.wav"))
	assert.NoError(t, err)
}

func TestRunWorkerInitFailure(t *testing.T) {
	f := newFixture(t)
	good := sharedPool(&fakeModel{})
	pools := func(id int) Pool {
		if id == 1 {
			return &fakePool{startErr: errors.New("CUDA out of memory")}
		}
		return good(id)
	}

	report, err := NewRunner(newSplitter(4), pools, f.config(2), nil).Run(context.Background(), f.input)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, []int{1, 3}, report.Missing)
	require.Len(t, report.WorkerFailures, 1)
	assert.Equal(t, 1, report.WorkerFailures[0].WorkerID)
	assert.False(t, report.AllWorkersFailed())
	assert.Equal(t, "text segment_0000\ntext segment_0002", readOutput(t, f.output))
}

func TestRunAllWorkersFail(t *testing.T) {
	f := newFixture(t)
	pools := func(int) Pool { return &fakePool{startErr: errors.New("no model")} }

	report, err := NewRunner(newSplitter(3), pools, f.config(2), nil).Run(context.Background(), f.input)
	require.NoError(t, err)
	assert.True(t, report.AllWorkersFailed())
	assert.Equal(t, []int{0, 1, 2}, report.Missing)
}

func TestRunObservesSegments(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(3)
	var mu sync.Mutex
	var seen []int
	cfg.Observe = func(r SegmentResult) {
		mu.Lock()
		seen = append(seen, r.Index)
		mu.Unlock()
	}

	_, err := NewRunner(newSplitter(7), sharedPool(&fakeModel{}), cfg, nil).Run(context.Background(), f.input)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6}, seen)
}

// memGroup connects ranks running in one process through channels.
type memGroup struct {
	rank int
	hub  *memHub
}

type memHub struct {
	size   int
	bcast  []chan memBroadcast
	gather chan WorkerResult
}

type memBroadcast struct {
	segs []SegmentDescriptor
	err  error
}

func newMemHub(size int) *memHub {
	h := &memHub{size: size, gather: make(chan WorkerResult, size)}
	for i := 0; i < size; i++ {
		h.bcast = append(h.bcast, make(chan memBroadcast, 1))
	}
	return h
}

func (h *memHub) rank(r int) *memGroup { return &memGroup{rank: r, hub: h} }

func (g *memGroup) Rank() int { return g.rank }
func (g *memGroup) Size() int { return g.hub.size }

func (g *memGroup) Broadcast(ctx context.Context, segs []SegmentDescriptor, cause error) ([]SegmentDescriptor, error) {
	if g.rank == 0 {
		for r := 1; r < g.hub.size; r++ {
			g.hub.bcast[r] <- memBroadcast{segs: segs, err: cause}
		}
		return segs, cause
	}
	select {
	case m := <-g.hub.bcast[g.rank]:
		return m.segs, m.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *memGroup) Gather(ctx context.Context, local WorkerResult) ([]WorkerResult, error) {
	if g.rank != 0 {
		g.hub.gather <- local
		return nil, nil
	}
	out := make([]WorkerResult, g.hub.size)
	out[0] = local
	for i := 1; i < g.hub.size; i++ {
		select {
		case w := <-g.hub.gather:
			out[w.WorkerID] = w
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func runRanks(t *testing.T, size int, split Splitter, cfg Config, pools PoolFactory, input string) ([]*Report, []error) {
	t.Helper()
	hub := newMemHub(size)
	reports := make([]*Report, size)
	errs := make([]error, size)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var s Splitter = split
			if rank != 0 {
				s = nil
			}
			reports[rank], errs[rank] = NewRunner(s, pools, cfg, nil).RunRank(ctx, input, hub.rank(rank))
		}()
	}
	wg.Wait()
	return reports, errs
}

func TestRunRankAcrossThreeRanks(t *testing.T) {
	f := newFixture(t)
	model := &fakeModel{fail: map[string]bool{"segment_0004.wav": true}}
	pools := func(int) Pool {
		return NewThreadPool(func(context.Context) (transcriber.Transcriber, error) { return model, nil })
	}

	reports, errs := runRanks(t, 3, newSplitter(7), f.config(1), pools, f.input)
	for rank, err := range errs {
		require.NoError(t, err, "rank %d", rank)
		assert.Equal(t, StateDone, reports[rank].State, "rank %d", rank)
		assert.Equal(t, rank, reports[rank].Rank)
		assert.Equal(t, 3, reports[rank].Size)
		assert.Equal(t, 7, reports[rank].Segments)
	}

	root := reports[0]
	assert.Equal(t, f.output, root.Output)
	assert.Equal(t,
		"text segment_0000\ntext segment_0001\ntext segment_0002\ntext segment_0003\ntext segment_0005\ntext segment_0006",
		readOutput(t, f.output))
	require.Len(t, root.Failures, 1)
	assert.Equal(t, 4, root.Failures[0].Index)
	assert.Len(t, root.Workers, 3)

	// Rank 1 owns 1 and 4.
	assert.Equal(t, 1, reports[1].Transcribed)
	assert.Empty(t, reports[1].Output)

	_, err := os.Stat(f.runDir())
	assert.True(t, os.IsNotExist(err))
}

func TestRunRankSplitFailureReachesEveryRank(t *testing.T) {
	f := newFixture(t)
	reports, errs := runRanks(t, 3, &fakeSplitter{n: 3, failAfter: 1}, f.config(1), sharedPool(&fakeModel{}), f.input)

	for rank, err := range errs {
		require.Error(t, err, "rank %d", rank)
		assert.Contains(t, err.Error(), "ffmpeg exited")
		assert.Equal(t, StateFailed, reports[rank].State)
	}
	_, err := os.Stat(f.runDir())
	assert.True(t, os.IsNotExist(err))
}
