package cli

import (
	"context"
	"os"

	"github.com/guiyumin/vscribe/internal/core/batch"
	"github.com/spf13/cobra"
)

// workerCmd is started by the process pool. Requests arrive on stdin and
// results leave on stdout, so nothing else may write to stdout here.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve transcription requests on stdin (used by --substrate processes)",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run:    runWorker,
}

func init() {
	addTranscriberFlags(workerCmd)
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	v, err := newViper(cmd, cfg)
	if err != nil {
		fatal(err)
	}
	s := readSettings(v)

	log := newLogger().With("pid", os.Getpid())
	log.Debugw("worker starting", "provider", s.Provider, "model", s.Model)

	err = batch.ServeWorker(context.Background(), os.Stdin, os.Stdout, opener(s.transcriberOptions()))
	log.Sync()
	if err != nil {
		fatal(err)
	}
}
