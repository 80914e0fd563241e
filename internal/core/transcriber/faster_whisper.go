package transcriber

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

//go:embed assets/faster_whisper.py
var fwScript []byte

// FasterWhisper shells out to an embedded python helper that runs the
// faster-whisper package. The model is reloaded by python on every call.
type FasterWhisper struct {
	python     string
	scriptPath string
	model      string
	device     string
	language   string
}

type fwOut struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// NewFasterWhisper writes the helper script to a temp file and checks that
// the interpreter exists. Binary overrides the interpreter, then
// VSCRIBE_PYTHON, then python3 on PATH.
func NewFasterWhisper(opts Options) (Transcriber, error) {
	py := opts.Binary
	if py == "" {
		py = os.Getenv("VSCRIBE_PYTHON")
	}
	if py == "" {
		py = "python3"
	}
	bin, err := exec.LookPath(py)
	if err != nil {
		return nil, fmt.Errorf("python interpreter not found: %s: %w", py, err)
	}

	f, err := os.CreateTemp("", "vscribe-faster-whisper-*.py")
	if err != nil {
		return nil, fmt.Errorf("write helper script: %w", err)
	}
	_, werr := f.Write(fwScript)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("write helper script: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultWhisperModel
	}
	device := opts.Device
	if device == "" {
		device = "auto"
	}
	return &FasterWhisper{
		python:     bin,
		scriptPath: f.Name(),
		model:      model,
		device:     device,
		language:   opts.Language,
	}, nil
}

func (f *FasterWhisper) Name() string {
	return ProviderFasterWhisper
}

func (f *FasterWhisper) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	args := []string{f.scriptPath, "--audio", filePath, "--model", f.model, "--device", f.device}
	if f.language != "" && f.language != "auto" {
		args = append(args, "--language", f.language)
	}

	cmd := exec.CommandContext(ctx, f.python, args...)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("faster-whisper failed: %s", lastLines(string(ee.Stderr), 3))
		}
		return nil, fmt.Errorf("run helper: %w", err)
	}

	var parsed fwOut
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse helper output: %w", err)
	}

	res := &Result{
		Language: parsed.Language,
		Duration: time.Duration(parsed.Duration * float64(time.Second)),
	}
	for _, s := range parsed.Segments {
		res.Segments = append(res.Segments, Segment{
			Start: time.Duration(s.Start * float64(time.Second)),
			End:   time.Duration(s.End * float64(time.Second)),
			Text:  s.Text,
		})
	}
	res.Text = joinSegments(res.Segments)
	return res, nil
}

// Close removes the helper script.
func (f *FasterWhisper) Close() error {
	if err := os.Remove(f.scriptPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
