package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

const defaultDeepgramModel = "nova-2"

type prerecorded interface {
	FromStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (*restapi.PreRecordedResponse, error)
}

// Deepgram uses the prerecorded REST endpoint. An empty key makes the SDK
// read DEEPGRAM_API_KEY from the environment.
type Deepgram struct {
	rest    prerecorded
	options interfaces.PreRecordedTranscriptionOptions
}

func NewDeepgram(apiKey, model, language string) *Deepgram {
	if model == "" {
		model = defaultDeepgramModel
	}
	c := client.NewREST(apiKey, &interfaces.ClientOptions{})
	return &Deepgram{
		rest: api.New(c),
		options: interfaces.PreRecordedTranscriptionOptions{
			Model:       model,
			Language:    language,
			Punctuate:   true,
			SmartFormat: true,
		},
	}
}

func (d *Deepgram) Transcribe(ctx context.Context, wav []byte) (string, error) {
	opts := d.options
	res, err := d.rest.FromStream(ctx, bytes.NewReader(wav), &opts)
	if err != nil {
		return "", fmt.Errorf("deepgram transcription: %w", err)
	}
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 ||
		len(res.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return Clean(res.Results.Channels[0].Alternatives[0].Transcript), nil
}
