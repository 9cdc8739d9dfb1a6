package transcribe

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type Whisper struct {
	client   *openai.Client
	model    string
	language string
}

func NewWhisper(apiKey, model, language, baseURL string) (*Whisper, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisper: OPENAI_API_KEY is required")
	}
	if model == "" {
		model = openai.Whisper1
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Whisper{client: openai.NewClientWithConfig(config), model: model, language: language}, nil
}

func (w *Whisper) Transcribe(ctx context.Context, wav []byte) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       w.model,
		Reader:      bytes.NewReader(wav),
		FilePath:    "answer.wav",
		Language:    w.language,
		Temperature: 0,
		Format:      openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return Clean(resp.Text), nil
}
