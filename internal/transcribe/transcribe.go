// Package transcribe turns recorded answers into text.
package transcribe

import (
	"context"
	"fmt"
	"strings"
)

// Transcriber converts a WAV recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Config selects and configures a speech-to-text provider.
type Config struct {
	Provider string
	Model    string
	Language string
	BaseURL  string

	OpenAIKey   string
	DeepgramKey string

	GoogleProjectID       string
	GoogleLocation        string
	GoogleCredentialsFile string
}

// New builds the transcriber named by cfg.Provider: whisper, deepgram or
// google.
func New(ctx context.Context, cfg Config) (Transcriber, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "whisper", "openai":
		return NewWhisper(cfg.OpenAIKey, cfg.Model, cfg.Language, cfg.BaseURL)
	case "deepgram":
		return NewDeepgram(cfg.DeepgramKey, cfg.Model, cfg.Language), nil
	case "google":
		return NewCloudSpeech(ctx, CloudSpeechConfig{
			ProjectID:       cfg.GoogleProjectID,
			Location:        cfg.GoogleLocation,
			Language:        cfg.Language,
			Model:           cfg.Model,
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
	default:
		return nil, fmt.Errorf("unknown stt provider %q (supported: whisper, deepgram, google)", cfg.Provider)
	}
}

// Clean normalizes whitespace, tightens punctuation and drops words that
// the recognizer repeated back to back.
func Clean(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	joined := strings.NewReplacer(" ,", ",", " .", ".", " ?", "?", " !", "!").Replace(strings.Join(words, " "))
	words = strings.Fields(joined)

	out := words[:1]
	for _, w := range words[1:] {
		if w != out[len(out)-1] {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}
