package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Empty path",
			input:    "",
			expected: "",
		},
		{
			name:     "Absolute path",
			input:    "/absolute/path",
			expected: "/absolute/path",
		},
		{
			name:     "Relative path",
			input:    "relative/path",
			expected: "relative/path",
		},
		{
			name:     "Home directory only",
			input:    "~",
			expected: home,
		},
		{
			name:     "Home directory with forward slash",
			input:    "~/models",
			expected: filepath.Join(home, "models"),
		},
		{
			name:     "Home directory with backslash (simulated)",
			input:    `~\models`,
			expected: filepath.Join(home, "models"),
		},
		{
			name:     "Invalid tilde use (middle)",
			input:    "/path/~/test",
			expected: "/path/~/test",
		},
		{
			name:     "Invalid tilde use (no separator)",
			input:    "~user",
			expected: "~user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.expected {
				t.Errorf("expandPath(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSaveToLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	cfg := DefaultConfig()
	cfg.Transcription.Provider = "faster-whisper"
	cfg.Transcription.Device = "cuda"
	cfg.Run.Substrate = SubstrateProcesses
	cfg.Run.Workers = 6
	cfg.Run.Chunk = 90 * time.Second
	cfg.Run.Extensions = []string{".mp3", ".ogg"}
	require.NoError(t, SaveTo(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# vscribe configuration file")
	assert.Contains(t, string(data), "chunk: 1m30s")

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadFromKeepsDefaults(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
transcription:
  provider: openai
  models_dir: ~/whisper
run:
  workers: 3
`), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Transcription.Provider)
	assert.Equal(t, filepath.Join(home, "whisper"), cfg.Transcription.ModelsDir)
	assert.Equal(t, 3, cfg.Run.Workers)
	assert.Equal(t, 300*time.Second, cfg.Run.Chunk)
	assert.Empty(t, cfg.Run.Substrate)
	assert.Equal(t, "vscribe", cfg.Group.Prefix)
}

func TestLoadFromErrors(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(bad, []byte("run: [not, a, map"), 0644))
	_, err = LoadFrom(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Run.Substrate = "fibers"
	cfg.Run.Workers = -1
	cfg.Run.OnFailure = "explode"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.substrate")
	assert.Contains(t, err.Error(), "run.workers")
	assert.Contains(t, err.Error(), "run.on_failure")
}

func TestInitRefusesToOverwrite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", "")

	require.False(t, Exists())
	require.NoError(t, Init())
	assert.True(t, Exists())
	assert.Error(t, Init())
	assert.Equal(t, DefaultConfig(), LoadOrDefault())
}
