// Package transcriber provides speech-to-text for a single audio segment.
package transcriber

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Segment represents a timestamped portion of transcript.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result contains the transcription output.
type Result struct {
	Text     string        // Plain text of the whole file
	Segments []Segment     // Timestamped segments, when the engine reports them
	Language string        // Detected language
	Duration time.Duration // Audio duration
}

// Transcriber converts audio to text.
type Transcriber interface {
	// Transcribe converts an audio file to text.
	Transcribe(ctx context.Context, filePath string) (*Result, error)

	// Name returns the provider name.
	Name() string

	// Close releases the loaded model.
	Close() error
}

// Provider names accepted by New.
const (
	ProviderWhisper          = "whisper"
	ProviderFasterWhisper    = "faster-whisper"
	ProviderOpenAI           = "openai"
	ProviderOpenAICompatible = "openai-compatible"
)

// Providers lists every provider New understands.
var Providers = []string{ProviderWhisper, ProviderFasterWhisper, ProviderOpenAI, ProviderOpenAICompatible}

// Options selects and configures a provider.
type Options struct {
	Provider  string
	Model     string // model name or path; provider-specific
	Device    string // auto, cpu, cuda, metal
	Language  string // ISO code or "auto"
	ModelsDir string // where local model files live
	Binary    string // external program for CLI-backed providers
	BaseURL   string
	APIKey    string
}

// New creates a Transcriber for the configured provider. Loading a local model
// happens here, so callers should create one per process and share it.
func New(opts Options) (Transcriber, error) {
	if err := ValidateDevice(opts.Provider, opts.Device); err != nil {
		return nil, err
	}

	switch opts.Provider {
	case ProviderWhisper, "":
		return newWhisper(opts)
	case ProviderFasterWhisper:
		return NewFasterWhisper(opts)
	case ProviderOpenAI:
		return NewOpenAI(opts)
	case ProviderOpenAICompatible:
		return NewCompatible(opts)
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s (supported: %s)",
			opts.Provider, strings.Join(Providers, ", "))
	}
}

// ValidateDevice checks the device selector against what the provider can use.
// Remote providers ignore the device entirely.
func ValidateDevice(provider, device string) error {
	if device == "" {
		return nil
	}

	var allowed []string
	switch provider {
	case ProviderWhisper, "":
		allowed = []string{"auto", "cpu", "cuda", "metal"}
	case ProviderFasterWhisper:
		allowed = []string{"auto", "cpu", "cuda"}
	default:
		return nil
	}

	for _, d := range allowed {
		if device == d {
			return nil
		}
	}
	return fmt.Errorf("device %q not supported by %s (use one of: %s)",
		device, provider, strings.Join(allowed, ", "))
}
