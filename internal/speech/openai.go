package speech

import (
	"context"
	"fmt"
	"os/exec"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultPlayer decodes audio from stdin and plays it.
var DefaultPlayer = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"}

type openAIOptions struct {
	baseURL string
	model   string
	voice   string
	player  []string
}

type OpenAIOption func(*openAIOptions)

func WithVoice(voice string) OpenAIOption {
	return func(o *openAIOptions) { o.voice = voice }
}

func WithSpeechModel(model string) OpenAIOption {
	return func(o *openAIOptions) { o.model = model }
}

func WithPlayer(argv ...string) OpenAIOption {
	return func(o *openAIOptions) { o.player = argv }
}

func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// OpenAIEngine synthesizes speech with the OpenAI audio API and pipes the
// response into a player process.
type OpenAIEngine struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	player []string
	proc   process
}

func NewOpenAIEngine(apiKey string, opts ...OpenAIOption) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai speech: api key required")
	}
	o := openAIOptions{model: string(openai.TTSModel1), voice: string(openai.VoiceAlloy), player: DefaultPlayer}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.player) == 0 {
		o.player = DefaultPlayer
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	return &OpenAIEngine{
		client: openai.NewClientWithConfig(config),
		model:  openai.SpeechModel(o.model),
		voice:  openai.SpeechVoice(o.voice),
		player: o.player,
	}, nil
}

func (e *OpenAIEngine) Say(ctx context.Context, text string) error {
	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          e.model,
		Input:          text,
		Voice:          e.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	cmd := exec.CommandContext(ctx, e.player[0], e.player[1:]...)
	cmd.Stdin = resp
	return e.proc.run(ctx, cmd)
}

func (e *OpenAIEngine) Stop() {
	e.proc.kill()
}
