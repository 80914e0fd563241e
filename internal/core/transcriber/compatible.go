package transcriber

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compatible talks to any server exposing the OpenAI transcription endpoint,
// such as a self-hosted whisper server or a local speaches instance.
type Compatible struct {
	client   openai.Client
	model    string
	language string
}

// NewCompatible requires a base URL. The API key is optional.
func NewCompatible(opts Options) (Transcriber, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%s provider needs a base URL", ProviderOpenAICompatible)
	}

	reqOpts := []option.RequestOption{option.WithBaseURL(opts.BaseURL)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}

	model := opts.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	return &Compatible{
		client:   openai.NewClient(reqOpts...),
		model:    model,
		language: opts.Language,
	}, nil
}

func (c *Compatible) Name() string {
	return ProviderOpenAICompatible
}

func (c *Compatible) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(c.model),
	}
	if c.language != "" && c.language != "auto" {
		params.Language = openai.String(c.language)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcription API error: %w", err)
	}
	return &Result{Text: resp.Text, Language: c.language}, nil
}

func (c *Compatible) Close() error {
	return nil
}
