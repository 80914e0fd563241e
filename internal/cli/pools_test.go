package cli

import (
	"testing"

	"github.com/guiyumin/vscribe/internal/core/batch"
	"github.com/guiyumin/vscribe/internal/core/config"
	"github.com/guiyumin/vscribe/internal/core/logger"
	"github.com/guiyumin/vscribe/internal/core/transcriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerArgs(t *testing.T) {
	opts := transcriber.Options{
		Provider: "faster-whisper",
		Model:    "tiny",
		Device:   "cuda",
		APIKey:   "sk-secret",
	}
	assert.Equal(t,
		[]string{"worker", "--provider", "faster-whisper", "--model", "tiny", "--device", "cuda"},
		workerArgs(opts, false))

	args := workerArgs(transcriber.Options{Provider: "whisper", ModelsDir: "/models"}, true)
	assert.Equal(t, []string{"worker", "--provider", "whisper", "--models-dir", "/models", "--debug"}, args)
	assert.NotContains(t, args, "sk-secret")
}

func TestNewPoolFactory(t *testing.T) {
	opts := transcriber.Options{Provider: "whisper"}

	threads, err := newPoolFactory(config.SubstrateThreads, opts, 2, logger.Nop())
	require.NoError(t, err)
	a, b := threads(0), threads(1)
	assert.IsType(t, &batch.ThreadPool{}, a)
	assert.Same(t, a, b, "thread workers share one model")

	procs, err := newPoolFactory(config.SubstrateProcesses, opts, 2, logger.Nop())
	require.NoError(t, err)
	p0, p1 := procs(0), procs(1)
	assert.IsType(t, &batch.ProcessPool{}, p0)
	assert.NotSame(t, p0, p1, "each process worker owns its children")

	_, err = newPoolFactory("fibers", opts, 1, logger.Nop())
	assert.Error(t, err)
}

func TestDefaultWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, defaultWorkers(), 1)
}
