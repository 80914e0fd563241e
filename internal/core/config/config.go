package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "vscribe"
)

// Execution substrates for local runs.
const (
	SubstrateThreads   = "threads"
	SubstrateProcesses = "processes"
)

// ConfigDir returns the standard config directory for vscribe.
// Windows: %APPDATA%\vscribe\
// macOS/Linux: ~/.config/vscribe/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/vscribe/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	Transcription TranscriptionConfig `yaml:"transcription"`
	Run           RunConfig           `yaml:"run"`
	Group         GroupConfig         `yaml:"group,omitempty"`
}

// TranscriptionConfig selects the speech-to-text provider.
type TranscriptionConfig struct {
	// Provider is whisper, faster-whisper, openai or openai-compatible
	Provider string `yaml:"provider"`

	// Model name (e.g. "small", "large-v3-turbo", "whisper-1") or a path to a ggml file
	Model string `yaml:"model,omitempty"`

	// Device is auto, cpu, cuda or metal
	Device string `yaml:"device,omitempty"`

	// Language is an ISO code, or "auto" to detect
	Language string `yaml:"language,omitempty"`

	// ModelsDir holds whisper.cpp model files (default: ~/.config/vscribe/models)
	ModelsDir string `yaml:"models_dir,omitempty"`

	// BaseURL of an OpenAI-compatible server
	BaseURL string `yaml:"base_url,omitempty"`

	// Binary overrides whisper-cli or the python interpreter
	Binary string `yaml:"binary,omitempty"`
}

// RunConfig controls splitting, workers and aggregation.
type RunConfig struct {
	// Substrate is threads or processes; empty leaves it to the command
	// (threads for transcribe, processes for rank)
	Substrate string `yaml:"substrate,omitempty"`

	// Workers is the number of workers; 0 means one per CPU core
	Workers int `yaml:"workers,omitempty"`

	// Threads bounds in-flight transcriptions per worker (default: 1)
	Threads int `yaml:"threads,omitempty"`

	// Chunk is the segment length (default: 300s)
	Chunk time.Duration `yaml:"chunk"`

	// WorkDir is where segment files are written (default: system temp dir)
	WorkDir string `yaml:"work_dir,omitempty"`

	// OnFailure is omit or placeholder
	OnFailure string `yaml:"on_failure,omitempty"`

	// Placeholder replaces failed segments; may contain one %d
	Placeholder string `yaml:"placeholder,omitempty"`

	// Separator between segment texts (default: newline)
	Separator string `yaml:"separator,omitempty"`

	// Extensions accepted as input
	Extensions []string `yaml:"extensions,omitempty"`

	// FFmpeg and FFprobe override the binaries looked up on PATH
	FFmpeg  string `yaml:"ffmpeg,omitempty"`
	FFprobe string `yaml:"ffprobe,omitempty"`
}

// GroupConfig holds the Redis rendezvous used by `vscribe rank`.
type GroupConfig struct {
	// Redis address, e.g. "localhost:6379"
	Redis string `yaml:"redis,omitempty"`

	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`

	// Prefix namespaces the keys of every run (default: "vscribe")
	Prefix string `yaml:"prefix,omitempty"`

	// Timeout bounds each wait for another rank (default: 30m)
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Transcription: TranscriptionConfig{
			Provider: "whisper",
			Model:    "small",
			Device:   "auto",
			Language: "auto",
		},
		Run: RunConfig{
			Threads:   1,
			Chunk:     300 * time.Second,
			OnFailure: "omit",
		},
		Group: GroupConfig{
			Redis:   "localhost:6379",
			Prefix:  "vscribe",
			Timeout: 30 * time.Minute,
		},
	}
}

// Validate checks values that cannot be fixed up with a default.
func (c *Config) Validate() error {
	var errs []error
	switch c.Run.Substrate {
	case "", SubstrateThreads, SubstrateProcesses:
	default:
		errs = append(errs, fmt.Errorf("run.substrate must be %s or %s, got %q", SubstrateThreads, SubstrateProcesses, c.Run.Substrate))
	}
	if c.Run.Workers < 0 {
		errs = append(errs, fmt.Errorf("run.workers must not be negative, got %d", c.Run.Workers))
	}
	if c.Run.Threads < 0 {
		errs = append(errs, fmt.Errorf("run.threads must not be negative, got %d", c.Run.Threads))
	}
	if c.Run.Chunk < 0 {
		errs = append(errs, fmt.Errorf("run.chunk must be positive, got %s", c.Run.Chunk))
	}
	switch strings.ToLower(c.Run.OnFailure) {
	case "", "omit", "placeholder":
	default:
		errs = append(errs, fmt.Errorf("run.on_failure must be omit or placeholder, got %q", c.Run.OnFailure))
	}
	return errors.Join(errs...)
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/vscribe/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file. Missing fields keep their defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.Transcription.ModelsDir = expandPath(cfg.Transcription.ModelsDir)
	cfg.Run.WorkDir = expandPath(cfg.Run.WorkDir)
	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// Both separators are accepted so a config written on Windows still works.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") && (len(path) == 1 || path[1] == '/' || path[1] == '\\') {
		home, err := os.UserHomeDir()
		if err == nil {
			sub := path[1:]
			if len(sub) > 0 && (sub[0] == '/' || sub[0] == '\\') {
				sub = sub[1:]
			}
			return filepath.Join(home, sub)
		}
	}
	return path
}

// Save writes the config to ~/.config/vscribe/config.yml
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg to path, creating its directory.
func SaveTo(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# vscribe configuration file\n# Run 'vscribe config init' to regenerate with defaults\n\n"
	return os.WriteFile(path, []byte(header+string(data)), 0644)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	return cfg
}
