package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes mono float32 samples as 16-bit PCM.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Data:           make([]int, len(samples)),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		buf.Data[i] = int(s * 32767)
	}

	if err := encoder.Write(buf); err != nil {
		return err
	}
	return encoder.Close()
}

// Resample16k resamples audio to TargetRate using linear interpolation.
func Resample16k(samples []float32, srcRate int) []float32 {
	if srcRate == TargetRate || srcRate <= 0 {
		return samples
	}

	ratio := float64(srcRate) / TargetRate
	out := make([]float32, len(samples)*TargetRate/srcRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		if idx+1 < len(samples) {
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		} else if idx < len(samples) {
			out[i] = samples[idx]
		}
	}
	return out
}

// ToWAV16k converts any readable input to a 16kHz mono WAV at dst.
func ToWAV16k(ctx context.Context, src, dst string) error {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".mp3", ".flac", ".wav":
		samples, rate, err := ReadSamples(src)
		if err != nil {
			return err
		}
		return WriteWAV(dst, Resample16k(samples, rate), TargetRate)
	}

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	return RunFFmpeg(ctx, []string{
		"-i", absSrc,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		absDst,
	}, absSrc, absDst)
}

// Samples16k returns the mono 16kHz samples of path, converting through a
// temporary WAV when no native decoder exists.
func Samples16k(ctx context.Context, path string) ([]float32, error) {
	if samples, rate, err := ReadSamples(path); err == nil {
		return Resample16k(samples, rate), nil
	}

	tmp, err := os.CreateTemp("", "vscribe-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := ToWAV16k(ctx, path, tmpPath); err != nil {
		return nil, err
	}
	samples, _, err := ReadWAVSamples(tmpPath)
	return samples, err
}
