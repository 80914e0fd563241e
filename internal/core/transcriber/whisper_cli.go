//go:build !cgo

package transcriber

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/guiyumin/vscribe/internal/core/audio"
)

// WhisperRunner transcribes audio with the whisper.cpp CLI. It is used in
// builds without cgo.
type WhisperRunner struct {
	binaryPath string
	modelPath  string
	language   string
	noGPU      bool
}

func newWhisper(opts Options) (Transcriber, error) {
	dir, err := modelsDirOrDefault(opts.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get models directory: %w", err)
	}
	path, err := NewModelManager(dir).Resolve(opts.Model)
	if err != nil {
		return nil, err
	}
	return NewWhisperRunner(opts.Binary, path, opts.Language, opts.Device)
}

// NewWhisperRunner locates the whisper-cli binary. An empty binary means
// whisper-cli on PATH. Device "cpu" disables GPU offload.
func NewWhisperRunner(binary, modelPath, language, device string) (*WhisperRunner, error) {
	if binary == "" {
		binary = "whisper-cli"
	}
	bin, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp binary not found: %s: %w", binary, err)
	}
	if language == "" {
		language = "auto"
	}
	return &WhisperRunner{
		binaryPath: bin,
		modelPath:  modelPath,
		language:   language,
		noGPU:      device == "cpu",
	}, nil
}

func (w *WhisperRunner) Name() string {
	return "whisper.cpp"
}

func (w *WhisperRunner) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	tmpDir, err := os.MkdirTemp("", "vscribe-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "input.wav")
	if err := audio.ToWAV16k(ctx, filePath, wavPath); err != nil {
		return nil, fmt.Errorf("failed to prepare audio: %w", err)
	}

	outputBase := filepath.Join(tmpDir, "output")
	cmd := exec.CommandContext(ctx, w.binaryPath, w.args(wavPath, outputBase)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w: %s", err, lastLines(string(out), 3))
	}

	content, err := os.ReadFile(outputBase + ".txt")
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	text := strings.TrimSpace(string(content))

	duration, _ := audio.Duration(wavPath)
	return &Result{
		Text:     cleanTranscriptText(text),
		Segments: parseWhisperOutput(text),
		Language: w.language,
		Duration: duration,
	}, nil
}

func (w *WhisperRunner) args(wavPath, outputBase string) []string {
	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-otxt",
		"-of", outputBase,
		"-np",
	}
	if w.language != "auto" {
		args = append(args, "-l", w.language)
	}
	if w.noGPU {
		args = append(args, "-ng")
	}
	threads := min(runtime.NumCPU(), 8)
	return append(args, "-t", strconv.Itoa(threads))
}

// Close is a no-op for the runner.
func (w *WhisperRunner) Close() error {
	return nil
}
