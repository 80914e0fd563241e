package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/guiyumin/vscribe/internal/core/transcriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "VSCRIBE_HELPER_WORKER"

// TestMain doubles as a worker process: when helperEnv is set the test
// binary serves the worker protocol instead of running tests.
func TestMain(m *testing.M) {
	if mode, ok := os.LookupEnv(helperEnv); ok {
		os.Exit(helperWorker(mode))
	}
	os.Exit(m.Run())
}

type crashingModel struct{ fakeModel }

func (m *crashingModel) Transcribe(ctx context.Context, path string) (*transcriber.Result, error) {
	if strings.Contains(path, "crash") {
		os.Exit(2)
	}
	return m.fakeModel.Transcribe(ctx, path)
}

func helperWorker(mode string) int {
	open := func(context.Context) (transcriber.Transcriber, error) {
		if mode == "noload" {
			return nil, errors.New("model missing")
		}
		return &crashingModel{fakeModel{fail: map[string]bool{"bad.wav": true}}}, nil
	}
	if err := ServeWorker(context.Background(), os.Stdin, os.Stdout, open); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func helperCommand(mode string) CommandFunc {
	return func(ctx context.Context) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=^$")
		cmd.Env = append(os.Environ(), helperEnv+"="+mode)
		return cmd
	}
}

func newHelperPool(t *testing.T, mode string, size int) *ProcessPool {
	t.Helper()
	p := NewProcessPool(helperCommand(mode), size)
	p.SetStderr(io.Discard)
	return p
}

func pathAssignment(worker int, paths ...string) WorkAssignment {
	a := WorkAssignment{WorkerID: worker}
	for i, p := range paths {
		a.Segments = append(a.Segments, SegmentDescriptor{Index: i, Path: p})
	}
	return a
}

func TestProcessPoolTranscribes(t *testing.T) {
	pool := newHelperPool(t, "ok", 2)
	a := pathAssignment(0, "/w/a.wav", "/w/b.wav", "/w/c.wav", "/w/d.wav")

	got := Execute(context.Background(), a, pool, ExecOptions{Limit: 2})
	require.NoError(t, got.Err)
	require.Len(t, got.Results, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, StatusOK, got.Results[i].Status)
		assert.Equal(t, "text "+name, got.Results[i].Text)
	}
}

func TestProcessPoolReportsSegmentErrors(t *testing.T) {
	pool := newHelperPool(t, "ok", 1)
	a := pathAssignment(0, "/w/a.wav", "/w/bad.wav", "/w/c.wav")

	got := Execute(context.Background(), a, pool, ExecOptions{Limit: 1})
	require.NoError(t, got.Err)
	require.Len(t, got.Results, 3)
	assert.Equal(t, StatusOK, got.Results[0].Status)
	assert.Equal(t, StatusFailed, got.Results[1].Status)
	assert.Equal(t, "decode failed", got.Results[1].Reason)
	assert.Equal(t, StatusOK, got.Results[2].Status)
}

func TestProcessPoolReplacesCrashedWorker(t *testing.T) {
	pool := newHelperPool(t, "ok", 1)
	a := pathAssignment(0, "/w/a.wav", "/w/crash.wav", "/w/c.wav")

	got := Execute(context.Background(), a, pool, ExecOptions{Limit: 1})
	require.NoError(t, got.Err)
	require.Len(t, got.Results, 3)
	assert.Equal(t, StatusOK, got.Results[0].Status)
	assert.Equal(t, StatusFailed, got.Results[1].Status)
	assert.Contains(t, got.Results[1].Reason, "worker process failed")
	assert.Equal(t, StatusOK, got.Results[2].Status, "replacement worker should pick up the next segment")
	assert.Equal(t, "text c", got.Results[2].Text)
}

func TestProcessPoolStartFailure(t *testing.T) {
	pool := newHelperPool(t, "noload", 2)

	got := Execute(context.Background(), pathAssignment(4, "/w/a.wav"), pool, ExecOptions{})
	var wie *WorkerInitError
	require.ErrorAs(t, got.Err, &wie)
	assert.Equal(t, 4, wie.WorkerID)
	assert.Contains(t, wie.Error(), "model missing")
	assert.Empty(t, got.Results)
}

func TestProcessPoolMissingBinary(t *testing.T) {
	pool := NewProcessPool(func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "/nonexistent/vscribe-worker")
	}, 1)

	err := pool.Start(context.Background())
	assert.Error(t, err)
}
