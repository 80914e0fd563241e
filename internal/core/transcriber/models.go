package transcriber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// WhisperModel represents a whisper.cpp model.
type WhisperModel struct {
	Name        string // Short name (e.g., "small", "large-v3-turbo")
	FileName    string // ggml file name
	Size        string // Human-readable size
	Description string
	URL         string
}

const hfBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// WhisperModels lists the whisper.cpp models vscribe knows how to fetch.
var WhisperModels = []WhisperModel{
	{Name: "tiny", FileName: "ggml-tiny.bin", Size: "75MB", Description: "Fastest, lowest accuracy"},
	{Name: "base", FileName: "ggml-base.bin", Size: "142MB", Description: "Fast, fair accuracy"},
	{Name: "small", FileName: "ggml-small.bin", Size: "466MB", Description: "Good accuracy on CPU"},
	{Name: "medium", FileName: "ggml-medium.bin", Size: "1.5GB", Description: "Balanced speed and accuracy"},
	{Name: "large-v3", FileName: "ggml-large-v3.bin", Size: "2.9GB", Description: "Best accuracy, GPU recommended"},
	{Name: "large-v3-turbo", FileName: "ggml-large-v3-turbo.bin", Size: "1.5GB", Description: "Near large-v3 accuracy, much faster"},
}

func init() {
	for i := range WhisperModels {
		WhisperModels[i].URL = hfBase + WhisperModels[i].FileName
	}
}

// DefaultWhisperModel is used when no model is configured.
const DefaultWhisperModel = "small"

// DefaultModelsDir returns ~/.config/vscribe/models.
func DefaultModelsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "vscribe", "models"), nil
}

// GetModel returns a model by name. "ggml-" prefixes and ".bin" suffixes are ignored.
func GetModel(name string) *WhisperModel {
	name = strings.TrimSuffix(strings.TrimPrefix(name, "ggml-"), ".bin")
	for i := range WhisperModels {
		if WhisperModels[i].Name == name {
			return &WhisperModels[i]
		}
	}
	return nil
}

// ModelManager resolves and downloads model files in one directory.
type ModelManager struct {
	modelsDir string
	client    *http.Client
}

// NewModelManager creates a manager for modelsDir.
func NewModelManager(modelsDir string) *ModelManager {
	return &ModelManager{modelsDir: modelsDir, client: http.DefaultClient}
}

// Dir returns the managed directory.
func (m *ModelManager) Dir() string {
	return m.modelsDir
}

// ModelPath maps a model name to a file. Absolute paths are returned as-is,
// names ending in .bin are taken as file names, and short names get the
// ggml- prefix and .bin suffix.
func (m *ModelManager) ModelPath(name string) string {
	if name == "" {
		name = DefaultWhisperModel
	}
	if filepath.IsAbs(name) {
		return name
	}
	if strings.HasSuffix(name, ".bin") {
		return filepath.Join(m.modelsDir, name)
	}
	return filepath.Join(m.modelsDir, "ggml-"+name+".bin")
}

// IsDownloaded reports whether the model file exists and is not empty.
func (m *ModelManager) IsDownloaded(name string) bool {
	info, err := os.Stat(m.ModelPath(name))
	return err == nil && info.Size() > 0
}

// Resolve returns the model file path, failing if it is not on disk.
func (m *ModelManager) Resolve(name string) (string, error) {
	path := m.ModelPath(name)
	if !m.IsDownloaded(name) {
		return "", fmt.Errorf("whisper model not found: %s (run: vscribe models download %s)", path, name)
	}
	return path, nil
}

// EnsureModel downloads a known model unless it is already present and
// returns its path.
func (m *ModelManager) EnsureModel(ctx context.Context, name string) (string, error) {
	path := m.ModelPath(name)
	if m.IsDownloaded(name) {
		return path, nil
	}

	model := GetModel(name)
	if model == nil {
		return "", fmt.Errorf("unknown model: %s", name)
	}
	if err := m.download(ctx, model.URL, path); err != nil {
		return "", err
	}
	return path, nil
}

func (m *ModelManager) download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download model: HTTP %d", resp.StatusCode)
	}

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename model file: %w", err)
	}
	return nil
}

// ModelInfo is a registry entry with its download status.
type ModelInfo struct {
	Name        string `json:"name"`
	Size        string `json:"size"`
	Description string `json:"description"`
	Downloaded  bool   `json:"downloaded"`
}

// List returns every known model with its status.
func (m *ModelManager) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(WhisperModels))
	for _, model := range WhisperModels {
		out = append(out, ModelInfo{
			Name:        model.Name,
			Size:        model.Size,
			Description: model.Description,
			Downloaded:  m.IsDownloaded(model.Name),
		})
	}
	return out
}

func modelsDirOrDefault(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return DefaultModelsDir()
}
