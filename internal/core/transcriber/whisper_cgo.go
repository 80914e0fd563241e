//go:build cgo

package transcriber

import (
	"context"
	"fmt"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/guiyumin/vscribe/internal/core/audio"
)

// WhisperTranscriber runs whisper.cpp in-process through its Go bindings.
// The loaded model is shared; every Transcribe call gets its own context,
// so one instance may serve several goroutines.
type WhisperTranscriber struct {
	model     whisper.Model
	modelPath string
	language  string
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
	return NewWhisperTranscriber(path, opts.Language)
}

// NewWhisperTranscriber loads the ggml model at modelPath.
func NewWhisperTranscriber(modelPath, language string) (*WhisperTranscriber, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}
	if language == "" {
		language = "auto"
	}
	return &WhisperTranscriber{
		model:     model,
		modelPath: modelPath,
		language:  language,
	}, nil
}

func (w *WhisperTranscriber) Name() string {
	return "whisper.cpp"
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	samples, err := audio.Samples16k(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper context: %w", err)
	}
	if w.language != "auto" {
		if err := wctx.SetLanguage(w.language); err != nil {
			return nil, fmt.Errorf("failed to set language: %w", err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to process audio: %w", err)
	}

	var segments []Segment
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			break
		}
		segments = append(segments, Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}

	return &Result{
		Text:     joinSegments(segments),
		Segments: segments,
		Language: w.language,
		Duration: time.Duration(len(samples)) * time.Second / audio.TargetRate,
	}, nil
}

func (w *WhisperTranscriber) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}
