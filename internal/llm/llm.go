// Package llm talks to the chat models that write interview questions and
// assessments. Every provider sits behind Client and sees the same
// normalized conversation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultOllamaURL is the OpenAI-compatible endpoint of a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434/v1"

// openingCue stands in for the candidate when a transcript opens with the
// interviewer speaking. Anthropic and Gemini reject histories that start
// with the model.
const openingCue = "Please begin the interview."

var (
	ErrEmptyCompletion = errors.New("model returned no text")
	ErrNoPrompt        = errors.New("conversation has no user message")
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL     string
	temperature *float64
	maxTokens   int
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithTemperature sets the sampling temperature sent with each request.
func WithTemperature(t float64) Option {
	return func(o *clientOptions) {
		o.temperature = &t
	}
}

// WithMaxTokens caps the length of each completion. Non-positive values
// leave the provider default in place.
func WithMaxTokens(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// ParseModel splits a "provider/model" reference. Everything after the
// first slash is the model name, so Ollama library paths survive.
func ParseModel(model string) (provider, modelName string, err error) {
	provider, modelName, ok := strings.Cut(model, "/")
	if !ok || provider == "" || modelName == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return provider, modelName, nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		next Client
		err  error
	)
	switch provider {
	case "openai":
		next, err = newOpenAIClient(apiKey, model, o)
	case "ollama":
		if o.baseURL == "" {
			o.baseURL = DefaultOllamaURL
		}
		if apiKey == "" {
			apiKey = "ollama"
		}
		next, err = newOpenAIClient(apiKey, model, o)
	case "anthropic":
		next, err = newAnthropicClient(apiKey, model, o)
	case "gemini":
		next, err = newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, ollama, anthropic, gemini", provider)
	}
	if err != nil {
		return nil, err
	}
	return &loggedClient{
		next:     next,
		provider: provider,
		logger:   slog.Default().With("component", "llm", "provider", provider, "model", model),
	}, nil
}

// loggedClient trims replies, turns blank ones into ErrEmptyCompletion and
// records how long each call took.
type loggedClient struct {
	next     Client
	provider string
	logger   *slog.Logger
}

func (c *loggedClient) Complete(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	text, err := c.next.Complete(ctx, messages)
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = fmt.Errorf("%s: %w", c.provider, ErrEmptyCompletion)
		}
	}
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		c.logger.Warn("completion failed", "elapsed", elapsed, "error", err)
		return "", err
	}
	c.logger.Debug("completion", "elapsed", elapsed, "chars", len(text))
	return text, nil
}

// conversation is a chat history split into its system prompt and the
// strictly alternating turns that follow it.
type conversation struct {
	system string
	turns  []Message
}

// prepare folds every system message into one prompt, drops blank turns,
// merges consecutive turns from the same speaker and makes sure the
// history opens with a user turn.
func prepare(messages []Message) (conversation, error) {
	var conv conversation
	var system []string
	hasUser := false

	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case RoleSystem:
			system = append(system, content)
			continue
		case RoleUser:
			hasUser = true
		case RoleAssistant:
		default:
			return conversation{}, fmt.Errorf("unsupported message role %q", m.Role)
		}

		if n := len(conv.turns); n > 0 && conv.turns[n-1].Role == m.Role {
			conv.turns[n-1].Content += "\n\n" + content
			continue
		}
		conv.turns = append(conv.turns, Message{Role: m.Role, Content: content})
	}

	if !hasUser {
		return conversation{}, ErrNoPrompt
	}
	if conv.turns[0].Role == RoleAssistant {
		conv.turns = append([]Message{{Role: RoleUser, Content: openingCue}}, conv.turns...)
	}
	conv.system = strings.Join(system, "\n\n")
	return conv, nil
}
