package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/guiyumin/vscribe/internal/core/batch"
	"github.com/guiyumin/vscribe/internal/core/config"
	"github.com/guiyumin/vscribe/internal/core/media"
	"github.com/guiyumin/vscribe/internal/core/transcriber"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// settings is the merged view of flags, VSCRIBE_* variables, the config
// file and built-in defaults, in that order of precedence.
type settings struct {
	Provider  string
	Model     string
	Device    string
	Language  string
	ModelsDir string
	BaseURL   string
	Binary    string

	Substrate    string
	Workers      int
	Threads      int
	Chunk        time.Duration
	WorkDir      string
	Output       string
	OnFailure    string
	Placeholder  string
	Separator    string
	Extensions   []string
	FFmpeg       string
	FFprobe      string
	Strict       bool
	KeepSegments bool
	TUI          bool
}

// addTranscriberFlags registers the flags that pick and configure a provider.
func addTranscriberFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("provider", "", "transcription provider: "+strings.Join(transcriber.Providers, ", "))
	f.String("model", "", "model name or path (default: small, whisper-1 for openai)")
	f.String("device", "", "device: auto, cpu, cuda, metal")
	f.StringP("language", "l", "", "language code, or auto to detect")
	f.String("models-dir", "", "directory holding whisper.cpp models")
	f.String("base-url", "", "base URL of an OpenAI-compatible server")
	f.String("binary", "", "whisper-cli or python interpreter to run")
}

// addRunFlags registers the flags shared by transcribe and rank.
func addRunFlags(cmd *cobra.Command) {
	addTranscriberFlags(cmd)
	f := cmd.Flags()
	f.Int("threads", 0, "segments in flight per worker (default: 1)")
	f.Duration("chunk", 0, "segment length (default: 5m0s)")
	f.String("work-dir", "", "where segment files are written (default: system temp dir)")
	f.StringP("output", "o", "", "transcript path (default: <input>_transcription.txt)")
	f.String("on-failure", "", "failed segments: omit or placeholder")
	f.String("placeholder", "", "placeholder text for failed segments; may contain %d")
	f.String("separator", "", "text between segments (default: newline)")
	f.StringSlice("extensions", nil, "accepted input extensions (default: .mp3,.m4a,.wav,.flac)")
	f.String("ffmpeg", "", "ffmpeg binary (default: PATH, then embedded)")
	f.String("ffprobe", "", "ffprobe binary (default: PATH, then native probe)")
	f.Bool("strict", false, "exit with status 3 when any segment is missing from the transcript")
	f.Bool("keep-segments", false, "keep segment files after the run")
}

// newViper binds cmd's flags and the VSCRIBE_* environment over cfg.
func newViper(cmd *cobra.Command, cfg *config.Config) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("VSCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	t, r, g := cfg.Transcription, cfg.Run, cfg.Group
	defaults := map[string]any{
		"provider":    t.Provider,
		"model":       t.Model,
		"device":      t.Device,
		"language":    t.Language,
		"models-dir":  t.ModelsDir,
		"base-url":    t.BaseURL,
		"binary":      t.Binary,
		"substrate":   r.Substrate,
		"workers":     r.Workers,
		"threads":     r.Threads,
		"chunk":       r.Chunk,
		"work-dir":    r.WorkDir,
		"on-failure":  r.OnFailure,
		"placeholder": r.Placeholder,
		"separator":   r.Separator,
		"extensions":  r.Extensions,
		"ffmpeg":      r.FFmpeg,
		"ffprobe":     r.FFprobe,
		"redis":       g.Redis,
		"redis-db":    g.DB,
		"prefix":      g.Prefix,
		"timeout":     g.Timeout,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	_ = v.BindEnv("redis-password", "VSCRIBE_REDIS_PASSWORD")
	v.SetDefault("redis-password", g.Password)
	return v, nil
}

func readSettings(v *viper.Viper) settings {
	s := settings{
		Provider:  v.GetString("provider"),
		Model:     v.GetString("model"),
		Device:    v.GetString("device"),
		Language:  v.GetString("language"),
		ModelsDir: v.GetString("models-dir"),
		BaseURL:   v.GetString("base-url"),
		Binary:    v.GetString("binary"),

		Substrate:    v.GetString("substrate"),
		Workers:      v.GetInt("workers"),
		Threads:      v.GetInt("threads"),
		Chunk:        v.GetDuration("chunk"),
		WorkDir:      v.GetString("work-dir"),
		Output:       v.GetString("output"),
		OnFailure:    v.GetString("on-failure"),
		Placeholder:  v.GetString("placeholder"),
		Separator:    v.GetString("separator"),
		Extensions:   v.GetStringSlice("extensions"),
		FFmpeg:       v.GetString("ffmpeg"),
		FFprobe:      v.GetString("ffprobe"),
		Strict:       v.GetBool("strict"),
		KeepSegments: v.GetBool("keep-segments"),
		TUI:          v.GetBool("tui"),
	}
	if s.Threads <= 0 {
		s.Threads = 1
	}
	if s.Chunk == 0 {
		s.Chunk = media.DefaultChunk
	}
	return s
}

// withSubstrate fills in the command's own substrate when neither a flag,
// VSCRIBE_SUBSTRATE nor the config file picked one.
func (s settings) withSubstrate(fallback string) settings {
	if s.Substrate == "" {
		s.Substrate = fallback
	}
	return s
}

// explicitWorkers reports whether the worker count came from --workers or
// VSCRIBE_WORKERS rather than from the config file or the default.
func explicitWorkers(cmd *cobra.Command) bool {
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		return true
	}
	v, ok := os.LookupEnv("VSCRIBE_WORKERS")
	return ok && v != ""
}

// workerCount resolves the number of local workers. Zero from the config
// file means one per CPU core; zero asked for explicitly is rejected.
func (s settings) workerCount(explicit bool) (int, error) {
	switch {
	case s.Workers > 0:
		return s.Workers, nil
	case s.Workers < 0 || explicit:
		return 0, fmt.Errorf("%w: got %d", batch.ErrInvalidWorkerCount, s.Workers)
	default:
		return defaultWorkers(), nil
	}
}

func (s settings) transcriberOptions() transcriber.Options {
	return transcriber.Options{
		Provider:  s.Provider,
		Model:     s.Model,
		Device:    s.Device,
		Language:  s.Language,
		ModelsDir: s.ModelsDir,
		BaseURL:   s.BaseURL,
		Binary:    s.Binary,
	}
}

func (s settings) mediaOptions() media.Options {
	return media.Options{
		Chunk:      s.Chunk,
		Extensions: s.Extensions,
		FFmpeg:     s.FFmpeg,
		FFprobe:    s.FFprobe,
	}
}

func (s settings) batchConfig(runID string, workers int) (batch.Config, error) {
	policy, err := batch.ParseFailurePolicy(s.OnFailure)
	if err != nil {
		return batch.Config{}, err
	}
	return batch.Config{
		RunID:        runID,
		Workers:      workers,
		Limit:        s.Threads,
		WorkDir:      s.WorkDir,
		Output:       s.Output,
		KeepSegments: s.KeepSegments,
		Aggregate: batch.AggregateOptions{
			Separator:   s.Separator,
			OnFailure:   policy,
			Placeholder: s.Placeholder,
		},
	}, nil
}

// validate rejects settings that would only fail later, after splitting.
func (s settings) validate() error {
	switch s.Substrate {
	case config.SubstrateThreads, config.SubstrateProcesses:
	default:
		return fmt.Errorf("substrate must be %s or %s, got %q", config.SubstrateThreads, config.SubstrateProcesses, s.Substrate)
	}
	if s.Chunk < 0 {
		return fmt.Errorf("chunk must be positive, got %s", s.Chunk)
	}
	if s.Workers < 0 {
		return fmt.Errorf("%w: got %d", batch.ErrInvalidWorkerCount, s.Workers)
	}
	return transcriber.ValidateDevice(s.Provider, s.Device)
}
