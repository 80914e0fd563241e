// Package audio decodes, probes and converts the audio formats vscribe reads.
// MP3, FLAC and WAV are handled in pure Go; anything else goes through the
// embedded ffmpeg WASM build.
package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// TargetRate is the sample rate whisper models expect.
const TargetRate = 16000

// ReadSamples decodes path into mono float32 samples in [-1, 1] and returns
// them with their sample rate.
func ReadSamples(path string) ([]float32, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return ReadMP3Samples(path)
	case ".flac":
		return ReadFLACSamples(path)
	case ".wav":
		return ReadWAVSamples(path)
	default:
		return nil, 0, fmt.Errorf("no native decoder for %s", filepath.Ext(path))
	}
}

// ReadMP3Samples reads MP3 and returns float32 samples.
func ReadMP3Samples(path string) ([]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return nil, 0, err
	}

	sampleRate := decoder.SampleRate()
	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, err
	}

	// go-mp3 always yields stereo 16-bit little-endian PCM.
	n := len(data) / 4
	samples := make([]float32, n)
	const maxInt16 = 32768.0
	for i := 0; i < n; i++ {
		left := int16(data[i*4]) | int16(data[i*4+1])<<8
		right := int16(data[i*4+2]) | int16(data[i*4+3])<<8
		samples[i] = float32((int32(left)+int32(right))/2) / maxInt16
	}
	return samples, sampleRate, nil
}

// ReadFLACSamples reads FLAC and returns float32 samples.
func ReadFLACSamples(path string) ([]float32, int, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()

	sampleRate := int(stream.Info.SampleRate)
	channels := int(stream.Info.NChannels)
	maxVal := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	samples := make([]float32, 0, stream.Info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		for i := range frame.Subframes[0].Samples {
			var mono int64
			for ch := 0; ch < channels; ch++ {
				mono += int64(frame.Subframes[ch].Samples[i])
			}
			samples = append(samples, float32(mono/int64(channels))/maxVal)
		}
	}
	return samples, sampleRate, nil
}

// ReadWAVSamples reads a PCM WAV file of any bit depth and channel count.
func ReadWAVSamples(path string) ([]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file: %s", filepath.Base(path))
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV: %w", err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		channels = 1
	}
	depth := int(decoder.BitDepth)
	if depth < 8 {
		depth = 16
	}
	maxVal := float32(int64(1) << (depth - 1))

	n := len(buf.Data) / channels
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		var mono int
		for ch := 0; ch < channels; ch++ {
			mono += buf.Data[i*channels+ch]
		}
		samples[i] = float32(mono/channels) / maxVal
	}
	return samples, int(decoder.SampleRate), nil
}
