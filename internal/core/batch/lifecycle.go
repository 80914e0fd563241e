package batch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"
	"sync"

	"github.com/guiyumin/vscribe/internal/core/logger"
	"github.com/looplab/fsm"
)

// Run states, in the order a successful run visits them.
const (
	StateSplitting    = "splitting"
	StateDistributing = "distributing"
	StateExecuting    = "executing"
	StateAggregating  = "aggregating"
	StatePersisting   = "persisting"
	StateCleaning     = "cleaning"
	StateDone         = "done"
	StateFailed       = "failed"
)

const (
	eventDistribute = "distribute"
	eventExecute    = "execute"
	eventAggregate  = "aggregate"
	eventPersist    = "persist"
	eventClean      = "clean"
	eventFinish     = "finish"
	eventFail       = "fail"
)

// newRunFSM builds the run state machine. Ranks that do not coordinate leave
// straight from executing to done once their results are handed over.
func newRunFSM(log *logger.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateSplitting,
		fsm.Events{
			{Name: eventDistribute, Src: []string{StateSplitting}, Dst: StateDistributing},
			{Name: eventExecute, Src: []string{StateDistributing}, Dst: StateExecuting},
			{Name: eventAggregate, Src: []string{StateExecuting}, Dst: StateAggregating},
			{Name: eventPersist, Src: []string{StateAggregating}, Dst: StatePersisting},
			{Name: eventClean, Src: []string{StatePersisting}, Dst: StateCleaning},
			{Name: eventFinish, Src: []string{StateCleaning, StateExecuting}, Dst: StateDone},
			{Name: eventFail, Src: []string{
				StateSplitting, StateDistributing, StateExecuting,
				StateAggregating, StatePersisting, StateCleaning,
			}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugw("run state", "from", e.Src, "to", e.Dst)
			},
		},
	)
}

// Artifacts owns the temporary files of one run. Release removes each of
// them exactly once, no matter how many times it is called.
type Artifacts struct {
	mu       sync.Mutex
	files    []string
	dirs     []string
	seen     map[string]struct{}
	released bool
}

// NewArtifacts returns an empty tracker.
func NewArtifacts() *Artifacts {
	return &Artifacts{seen: make(map[string]struct{})}
}

// Track registers files to be removed on release.
func (a *Artifacts) Track(paths ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := a.seen[p]; ok {
			continue
		}
		a.seen[p] = struct{}{}
		a.files = append(a.files, p)
	}
}

// TrackDir registers a directory created for the run. It is removed with
// everything left in it after the tracked files are gone.
func (a *Artifacts) TrackDir(dir string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.seen[dir]; ok || dir == "" {
		return
	}
	a.seen[dir] = struct{}{}
	a.dirs = append(a.dirs, dir)
}

// Paths lists everything still on disk, files first.
func (a *Artifacts) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil
	}
	return append(slices.Clone(a.files), a.dirs...)
}

// Release deletes every tracked artifact. Failures are returned as
// *CleanupError values and never stop the remaining removals. Files that
// are already gone count as removed.
func (a *Artifacts) Release() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil
	}
	a.released = true

	var errs []error
	for _, f := range a.files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, &CleanupError{Path: f, Err: err})
		}
	}
	for i := len(a.dirs) - 1; i >= 0; i-- {
		if err := os.RemoveAll(a.dirs[i]); err != nil {
			errs = append(errs, &CleanupError{Path: a.dirs[i], Err: err})
		}
	}
	return errs
}
