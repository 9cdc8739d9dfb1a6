package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	Location        string
	Language        string
	Model           string
	CredentialsFile string
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// CloudSpeech transcribes with Google Cloud Speech-to-Text v2.
type CloudSpeech struct {
	recognizer string
	language   string
	model      string
	recognize  recognizeFunc
	close      func() error
}

func NewCloudSpeech(ctx context.Context, cfg CloudSpeechConfig) (*CloudSpeech, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("cloud speech: project id is required")
	}
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}

	detect := &credentials.DetectOptions{Scopes: []string{"https://www.googleapis.com/auth/cloud-platform"}}
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		detect.CredentialsJSON = data
	}
	creds, err := credentials.DetectDefault(detect)
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{option.WithAuthCredentials(creds)}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	slog.Info("cloud speech ready", "component", "transcribe", "location", location, "model", cfg.Model)
	return newCloudSpeech(cfg, location, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}, client.Close), nil
}

func newCloudSpeech(cfg CloudSpeechConfig, location string, recognize recognizeFunc, closeFn func() error) *CloudSpeech {
	model := cfg.Model
	if model == "" {
		model = "long"
	}
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}
	return &CloudSpeech{
		recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", cfg.ProjectID, location),
		language:   language,
		model:      model,
		recognize:  recognize,
		close:      closeFn,
	}
}

func (c *CloudSpeech) Transcribe(ctx context.Context, wav []byte) (string, error) {
	resp, err := c.recognize(ctx, &speechpb.RecognizeRequest{
		Recognizer: c.recognizer,
		Config: &speechpb.RecognitionConfig{
			Model:         c.model,
			LanguageCodes: []string{c.language},
			DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
				AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
			},
			Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: wav},
	})
	if err != nil {
		return "", fmt.Errorf("cloud speech recognize: %w", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, alts[0].GetTranscript())
		}
	}
	return Clean(strings.Join(parts, " ")), nil
}

func (c *CloudSpeech) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}
