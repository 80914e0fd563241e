package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guiyumin/vscribe/internal/core/batch"
	"github.com/guiyumin/vscribe/internal/core/config"
	"github.com/guiyumin/vscribe/internal/core/logger"
	"github.com/guiyumin/vscribe/internal/core/media"
	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe an audio file on this machine",
	Long: `Split an audio file into segments, transcribe them with a pool of
workers and write the transcript next to the input.

Workers run as goroutines sharing one model (--substrate threads) or as
child processes with one model each (--substrate processes). Segments are
dealt out in turn: with 3 workers, worker 0 gets segments 0, 3, 6 and so on.

A segment that fails is left out of the transcript (or replaced with
--on-failure placeholder) and listed in the report; the run still succeeds
unless --strict is set. Interrupting the run leaves its segment files in the
work directory.

Examples:
  vscribe transcribe talk.mp3
  vscribe transcribe talk.mp3 --workers 4 --threads 2
  vscribe transcribe talk.m4a --substrate processes --provider faster-whisper --device cuda
  vscribe transcribe talk.wav --provider openai --chunk 10m --on-failure placeholder`,
	Args: cobra.ExactArgs(1),
	Run:  runTranscribe,
}

func init() {
	addRunFlags(transcribeCmd)
	transcribeCmd.Flags().String("substrate", "", "worker substrate: threads or processes (default: threads)")
	transcribeCmd.Flags().IntP("workers", "w", 0, "number of workers (default: one per CPU core)")
	transcribeCmd.Flags().Bool("tui", false, "show a progress bar instead of log lines")
	registerRunCompletions(transcribeCmd)
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) {
	input := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	v, err := newViper(cmd, cfg)
	if err != nil {
		fatal(err)
	}
	s := readSettings(v).withSubstrate(config.SubstrateThreads)
	if err := s.validate(); err != nil {
		fatal(err)
	}
	workers, err := s.workerCount(explicitWorkers(cmd))
	if err != nil {
		fatal(err)
	}

	log := newLogger()
	if s.TUI && !debug {
		log = logger.Nop()
	}

	bcfg, err := s.batchConfig("", workers)
	if err != nil {
		fatal(err)
	}
	pools, err := newPoolFactory(s.Substrate, s.transcriberOptions(), s.Threads, log)
	if err != nil {
		fatal(err)
	}

	var split batch.Splitter = media.NewSource(s.mediaOptions(), log)
	log.Infow("starting transcription",
		"input", input,
		"provider", s.Provider,
		"substrate", s.Substrate,
		"workers", workers,
		"threads", s.Threads,
		"chunk", s.Chunk,
	)

	var report *batch.Report
	run := func() {
		report, err = batch.NewRunner(split, pools, bcfg, log).Run(context.Background(), input)
	}
	if s.TUI {
		state := newRunProgress()
		split = countingSplitter{Splitter: split, progress: state}
		bcfg.Observe = state.observe
		withProgress(filepath.Base(input), s.Provider, state, []tea.ProgramOption{tea.WithOutput(os.Stderr)}, run)
	} else {
		run()
	}

	log.Sync()
	finishRun(report, err, s.Strict)
}

// finishRun prints the report and exits with the run's status.
func finishRun(report *batch.Report, err error, strict bool) {
	if report != nil {
		fmt.Fprint(os.Stderr, renderReport(report))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	} else if report != nil && report.AllWorkersFailed() {
		fmt.Fprintln(os.Stderr, "Error: no worker could load the model")
	}
	os.Exit(exitCode(report, err, strict))
}
