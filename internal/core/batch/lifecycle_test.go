package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/guiyumin/vscribe/internal/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("audio"), 0644))
		paths = append(paths, p)
	}
	return paths
}

func TestArtifactsReleaseOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, os.MkdirAll(dir, 0755))
	files := writeFiles(t, dir, "segment_0000.wav", "segment_0001.wav")

	a := NewArtifacts()
	a.TrackDir(dir)
	a.Track(files...)
	a.Track(files[0])
	assert.Equal(t, append(files, dir), a.Paths())

	assert.Empty(t, a.Release())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	assert.Nil(t, a.Paths())
	assert.Nil(t, a.Release(), "second release must be a no-op")
}

func TestArtifactsIgnoreAlreadyRemoved(t *testing.T) {
	dir := t.TempDir()
	files := writeFiles(t, dir, "a.wav")
	require.NoError(t, os.Remove(files[0]))

	a := NewArtifacts()
	a.Track(files...)
	a.Track("")
	assert.Empty(t, a.Release())
}

func TestArtifactsReportCleanupErrors(t *testing.T) {
	// A non-empty directory tracked as a file cannot be removed with os.Remove.
	dir := t.TempDir()
	sub := filepath.Join(dir, "busy")
	require.NoError(t, os.MkdirAll(sub, 0755))
	writeFiles(t, sub, "keep.wav")
	other := writeFiles(t, dir, "b.wav")

	a := NewArtifacts()
	a.Track(sub, other[0])

	errs := a.Release()
	require.Len(t, errs, 1)
	var ce *CleanupError
	require.ErrorAs(t, errs[0], &ce)
	assert.Equal(t, sub, ce.Path)

	_, err := os.Stat(other[0])
	assert.True(t, os.IsNotExist(err), "later artifacts are still removed")
}

func TestRunFSM(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		events []string
		want   string
	}{
		{
			name:   "full run",
			events: []string{eventDistribute, eventExecute, eventAggregate, eventPersist, eventClean, eventFinish},
			want:   StateDone,
		},
		{
			name:   "non-coordinating rank",
			events: []string{eventDistribute, eventExecute, eventFinish},
			want:   StateDone,
		},
		{
			name:   "split failure",
			events: []string{eventFail},
			want:   StateFailed,
		},
		{
			name:   "persist failure",
			events: []string{eventDistribute, eventExecute, eventAggregate, eventPersist, eventFail},
			want:   StateFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunFSM(logger.Nop())
			assert.Equal(t, StateSplitting, f.Current())
			for _, e := range tt.events {
				require.NoError(t, f.Event(ctx, e), e)
			}
			assert.Equal(t, tt.want, f.Current())
		})
	}
}

func TestRunFSMRejectsSkippedSteps(t *testing.T) {
	f := newRunFSM(logger.Nop())
	assert.Error(t, f.Event(context.Background(), eventAggregate))
	assert.Equal(t, StateSplitting, f.Current())

	require.NoError(t, f.Event(context.Background(), eventFail))
	assert.Error(t, f.Event(context.Background(), eventFail), "failed is terminal")
}
