package cli

import (
	"fmt"
	"os"

	"github.com/guiyumin/vscribe/internal/core/config"
	"github.com/guiyumin/vscribe/internal/core/logger"
	"github.com/guiyumin/vscribe/internal/core/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes of a transcription run.
const (
	exitOK       = 0
	exitFatal    = 1
	exitDegraded = 3
)

var (
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "vscribe",
	Short: "Batch speech-to-text for long recordings",
	Long: `vscribe splits a recording into fixed-length segments, transcribes them
in parallel and writes one ordered transcript.

Examples:
  vscribe transcribe interview.mp3
  vscribe transcribe lecture.m4a --workers 4 --substrate processes
  mpirun -n 4 vscribe rank lecture.m4a --redis redis:6379`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal; keys may come from the environment.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ~/.config/vscribe/config.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "human-readable debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config when given, otherwise the default file, and
// falls back to defaults when the default file does not exist.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	if !config.Exists() {
		return config.DefaultConfig(), nil
	}
	return config.Load()
}

func newLogger() *logger.Logger {
	return logger.New(debug)
}

// fatal prints err and exits with status 1.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitFatal)
}
