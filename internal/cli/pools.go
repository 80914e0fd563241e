package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/guiyumin/vscribe/internal/core/batch"
	"github.com/guiyumin/vscribe/internal/core/config"
	"github.com/guiyumin/vscribe/internal/core/logger"
	"github.com/guiyumin/vscribe/internal/core/transcriber"
	"github.com/shirou/gopsutil/v3/cpu"
)

// defaultWorkers is one worker per CPU core.
func defaultWorkers() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func opener(opts transcriber.Options) batch.Opener {
	return func(context.Context) (transcriber.Transcriber, error) {
		return transcriber.New(opts)
	}
}

// workerArgs turns provider options back into `vscribe worker` flags. API
// keys stay in the inherited environment.
func workerArgs(opts transcriber.Options, debug bool) []string {
	args := []string{"worker"}
	add := func(flag, value string) {
		if value != "" {
			args = append(args, "--"+flag, value)
		}
	}
	add("provider", opts.Provider)
	add("model", opts.Model)
	add("device", opts.Device)
	add("language", opts.Language)
	add("models-dir", opts.ModelsDir)
	add("base-url", opts.BaseURL)
	add("binary", opts.Binary)
	if debug {
		args = append(args, "--debug")
	}
	return args
}

// newPoolFactory returns the pools for substrate. Threads share one model
// across every worker; processes give each worker its own children, each
// with its own model.
func newPoolFactory(substrate string, opts transcriber.Options, threads int, log *logger.Logger) (batch.PoolFactory, error) {
	switch substrate {
	case config.SubstrateThreads:
		shared := batch.NewThreadPool(opener(opts))
		return func(int) batch.Pool { return shared }, nil

	case config.SubstrateProcesses:
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate vscribe executable: %w", err)
		}
		args := workerArgs(opts, debug)
		return func(workerID int) batch.Pool {
			log.Debugw("starting worker processes", "worker", workerID, "processes", threads)
			return batch.NewProcessPool(func(ctx context.Context) *exec.Cmd {
				return exec.CommandContext(ctx, exe, args...)
			}, threads)
		}, nil

	default:
		return nil, fmt.Errorf("unknown substrate %q", substrate)
	}
}
