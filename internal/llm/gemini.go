package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
	config genai.GenerateContentConfig
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		cc.HTTPOptions.BaseURL = opts.baseURL
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c := &geminiClient{client: client, model: model}
	if opts.temperature != nil {
		c.config.Temperature = genai.Ptr(float32(*opts.temperature))
	}
	if opts.maxTokens > 0 {
		c.config.MaxOutputTokens = int32(opts.maxTokens)
	}
	return c, nil
}

// geminiContents maps a prepared conversation onto Gemini's user/model
// roles. The system prompt travels separately as a system instruction.
func geminiContents(conv conversation) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	if conv.system != "" {
		system = &genai.Content{Parts: []*genai.Part{{Text: conv.system}}}
	}
	contents := make([]*genai.Content, 0, len(conv.turns))
	for _, t := range conv.turns {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: t.Content}}})
	}
	return system, contents
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	conv, err := prepare(messages)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	system, contents := geminiContents(conv)
	config := c.config
	config.SystemInstruction = system

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	return result.Text(), nil
}
