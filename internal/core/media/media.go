// Package media turns an input recording into fixed-length segment files.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/guiyumin/vscribe/internal/core/batch"
	"github.com/guiyumin/vscribe/internal/core/logger"
)

// DefaultChunk is the segment length used when none is configured.
const DefaultChunk = 300 * time.Second

// DefaultExtensions are the input formats accepted out of the box.
var DefaultExtensions = []string{".mp3", ".m4a", ".wav", ".flac"}

// InputFormatError means the input's extension is not on the allow-list.
type InputFormatError struct {
	Ext     string
	Allowed []string
}

func (e *InputFormatError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("unsupported input format %s (allowed: %s)", ext, strings.Join(e.Allowed, ", "))
}

// Prober reports the playing time of a file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Extractor copies [start, start+dur) of input into output.
type Extractor interface {
	Extract(ctx context.Context, input, output string, start, dur time.Duration) error
}

// Options configures a Source.
type Options struct {
	Chunk      time.Duration
	Extensions []string
	FFmpeg     string // ffmpeg binary; looked up on PATH when empty
	FFprobe    string // ffprobe binary; looked up on PATH when empty
}

// Source splits inputs with a Prober and an Extractor.
type Source struct {
	chunk      time.Duration
	extensions []string
	probe      Prober
	extract    Extractor
	log        *logger.Logger
}

// NewSource picks ffprobe and ffmpeg from PATH when they exist and falls
// back to the pure-Go probe and the embedded WASM ffmpeg otherwise.
func NewSource(opts Options, log *logger.Logger) *Source {
	if log == nil {
		log = logger.Nop()
	}

	var probe Prober = NativeProber{}
	if bin, ok := lookPath(opts.FFprobe, "ffprobe"); ok {
		probe = &FFprobe{Binary: bin}
	} else {
		log.Debugw("ffprobe not found, reading durations natively")
	}

	var extract Extractor = WASMExtractor{}
	if bin, ok := lookPath(opts.FFmpeg, "ffmpeg"); ok {
		extract = &FFmpeg{Binary: bin}
	} else {
		log.Debugw("ffmpeg not found, using embedded ffmpeg")
	}

	return NewSourceWith(opts, probe, extract, log)
}

// NewSourceWith builds a Source on the given collaborators.
func NewSourceWith(opts Options, probe Prober, extract Extractor, log *logger.Logger) *Source {
	if log == nil {
		log = logger.Nop()
	}
	chunk := opts.Chunk
	if chunk == 0 {
		chunk = DefaultChunk
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	normalized := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e != "" {
			normalized = append(normalized, e)
		}
	}
	return &Source{
		chunk:      chunk,
		extensions: normalized,
		probe:      probe,
		extract:    extract,
		log:        log,
	}
}

// CheckFormat returns an *InputFormatError unless path has an allowed extension.
func (s *Source) CheckFormat(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if slices.Contains(s.extensions, ext) {
		return nil
	}
	return &InputFormatError{Ext: ext, Allowed: slices.Clone(s.extensions)}
}

// Split writes one file per span into dir, named segment_0000<ext> and so
// on. The returned descriptors cover every file written, including on error.
func (s *Source) Split(ctx context.Context, input, dir string) ([]batch.SegmentDescriptor, error) {
	if err := s.CheckFormat(input); err != nil {
		return nil, err
	}

	total, err := s.probe.Duration(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}
	spans, err := Plan(total, s.chunk)
	if err != nil {
		return nil, err
	}
	s.log.Debugw("split plan", "duration", total, "chunk", s.chunk, "segments", len(spans))

	ext := strings.ToLower(filepath.Ext(input))
	segs := make([]batch.SegmentDescriptor, 0, len(spans))
	for i, sp := range spans {
		path := filepath.Join(dir, fmt.Sprintf("segment_%04d%s", i, ext))
		err := s.extract.Extract(ctx, input, path, sp.Start, sp.Duration)
		if _, statErr := os.Stat(path); err == nil || statErr == nil {
			segs = append(segs, batch.SegmentDescriptor{
				Index:    i,
				Path:     path,
				Start:    sp.Start,
				Duration: sp.Duration,
			})
		}
		if err != nil {
			return segs, fmt.Errorf("failed to extract segment %d: %w", i, err)
		}
	}
	return segs, nil
}

func lookPath(configured, name string) (string, bool) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, true
		}
		if p, err := exec.LookPath(configured); err == nil {
			return p, true
		}
		return "", false
	}
	p, err := exec.LookPath(name)
	return p, err == nil
}
