package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Duration reads the length of an MP3, FLAC or WAV file without ffprobe.
func Duration(path string) (time.Duration, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wavDuration(path)
	case ".mp3":
		return mp3Duration(path)
	case ".flac":
		return flacDuration(path)
	default:
		return 0, fmt.Errorf("cannot read duration of %s without ffprobe", filepath.Ext(path))
	}
}

func wavDuration(path string) (time.Duration, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return 0, fmt.Errorf("invalid WAV file: %s", filepath.Base(path))
	}
	return decoder.Duration()
}

func mp3Duration(path string) (time.Duration, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return 0, err
	}
	n := decoder.Length()
	if n < 0 {
		return 0, fmt.Errorf("mp3 length unknown: %s", filepath.Base(path))
	}
	// 4 bytes per stereo 16-bit frame.
	frames := n / 4
	return time.Duration(frames) * time.Second / time.Duration(decoder.SampleRate()), nil
}

func flacDuration(path string) (time.Duration, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	if stream.Info.SampleRate == 0 {
		return 0, fmt.Errorf("flac sample rate missing: %s", filepath.Base(path))
	}
	return time.Duration(stream.Info.NSamples) * time.Second / time.Duration(stream.Info.SampleRate), nil
}
