package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/guiyumin/vscribe/internal/core/audio"
)

// FFprobe reads durations with the ffprobe binary.
type FFprobe struct {
	Binary string
}

func (p *FFprobe) Duration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseSeconds(string(out))
}

func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration reported")
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", s, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// NativeProber reads WAV, MP3 and FLAC headers in pure Go.
type NativeProber struct{}

func (NativeProber) Duration(_ context.Context, path string) (time.Duration, error) {
	return audio.Duration(path)
}

// FFmpeg extracts spans with the ffmpeg binary, copying the codec.
type FFmpeg struct {
	Binary string
}

func (f *FFmpeg) Extract(ctx context.Context, input, output string, start, dur time.Duration) error {
	cmd := exec.CommandContext(ctx, f.Binary, extractArgs(input, output, start, dur)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// WASMExtractor runs the same copy through the embedded ffmpeg.
type WASMExtractor struct{}

func (WASMExtractor) Extract(ctx context.Context, input, output string, start, dur time.Duration) error {
	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	absOut, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	return audio.RunFFmpeg(ctx, extractArgs(absIn, absOut, start, dur), absIn, absOut)
}

func extractArgs(input, output string, start, dur time.Duration) []string {
	return []string{
		"-y",
		"-ss", formatDuration(start),
		"-i", input,
		"-t", formatDuration(dur),
		"-c", "copy",
		output,
	}
}
