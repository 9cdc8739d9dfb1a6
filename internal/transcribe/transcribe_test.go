package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	restapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "  I   am a\n developer  ", want: "I am a developer"},
		{in: "I I am am a developer", want: "I am a developer"},
		{in: "Hello , world . Ready ?", want: "Hello, world. Ready?"},
		{in: "really Really", want: "really Really"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWhisperTranscribe(t *testing.T) {
	var gotModel, gotLanguage, gotFile string
	var gotAudio []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("parse content type: %v", err)
			return
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("read part: %v", err)
				return
			}
			data, _ := io.ReadAll(part)
			switch part.FormName() {
			case "model":
				gotModel = string(data)
			case "language":
				gotLanguage = string(data)
			case "file":
				gotFile = part.FileName()
				gotAudio = data
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "  I am a   developer "})
	}))
	t.Cleanup(server.Close)

	whisper, err := NewWhisper("test-key", "", "en", server.URL+"/v1")
	if err != nil {
		t.Fatalf("NewWhisper failed: %v", err)
	}
	text, err := whisper.Transcribe(context.Background(), []byte("RIFFfake"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "I am a developer" {
		t.Fatalf("unexpected text %q", text)
	}
	if gotModel != "whisper-1" || gotLanguage != "en" || gotFile != "answer.wav" || string(gotAudio) != "RIFFfake" {
		t.Fatalf("unexpected request: model=%q language=%q file=%q audio=%q", gotModel, gotLanguage, gotFile, gotAudio)
	}
}

func TestWhisperServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	whisper, err := NewWhisper("test-key", "", "", server.URL+"/v1")
	if err != nil {
		t.Fatalf("NewWhisper failed: %v", err)
	}
	if _, err := whisper.Transcribe(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error from failing server")
	}
}

func TestNewWhisperRequiresKey(t *testing.T) {
	if _, err := NewWhisper("", "", "", ""); err == nil {
		t.Fatal("expected missing key error")
	}
}

type deepgramMock struct {
	body    string
	options *interfaces.PreRecordedTranscriptionOptions
	resp    string
	err     error
}

func (m *deepgramMock) FromStream(_ context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (*restapi.PreRecordedResponse, error) {
	data, _ := io.ReadAll(src)
	m.body = string(data)
	m.options = options
	if m.err != nil {
		return nil, m.err
	}
	var res restapi.PreRecordedResponse
	if err := json.Unmarshal([]byte(m.resp), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func TestDeepgramTranscribe(t *testing.T) {
	mock := &deepgramMock{resp: `{"results":{"channels":[{"alternatives":[{"transcript":"I am a developer","confidence":0.98}]}]}}`}
	d := NewDeepgram("test-key", "", "en")
	d.rest = mock

	text, err := d.Transcribe(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "I am a developer" || mock.body != "wav" {
		t.Fatalf("unexpected result %q body %q", text, mock.body)
	}
	if mock.options.Model != defaultDeepgramModel || !mock.options.Punctuate || mock.options.Language != "en" {
		t.Fatalf("unexpected options %+v", mock.options)
	}
}

func TestDeepgramEmptyAndError(t *testing.T) {
	d := NewDeepgram("test-key", "nova-3", "")
	d.rest = &deepgramMock{resp: `{"results":{"channels":[]}}`}
	if text, err := d.Transcribe(context.Background(), nil); err != nil || text != "" {
		t.Fatalf("expected empty transcript, got %q, %v", text, err)
	}

	boom := errors.New("rate limited")
	d.rest = &deepgramMock{err: boom}
	if _, err := d.Transcribe(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestCloudSpeechTranscribe(t *testing.T) {
	var got *speechpb.RecognizeRequest
	c := newCloudSpeech(CloudSpeechConfig{ProjectID: "proj"}, "us-central1", func(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		got = req
		return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "I am"}}},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "a developer"}}},
			{},
		}}, nil
	}, nil)

	text, err := c.Transcribe(context.Background(), []byte("wav"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "I am a developer" {
		t.Fatalf("unexpected text %q", text)
	}
	if got.GetRecognizer() != "projects/proj/locations/us-central1/recognizers/_" {
		t.Fatalf("unexpected recognizer %q", got.GetRecognizer())
	}
	if string(got.GetContent()) != "wav" || got.GetConfig().GetLanguageCodes()[0] != "en-US" || got.GetConfig().GetModel() != "long" {
		t.Fatalf("unexpected request %v", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "vosk"})
	if err == nil || !strings.Contains(err.Error(), "vosk") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	tr, err := New(context.Background(), Config{Provider: "deepgram", DeepgramKey: "k"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := tr.(*Deepgram); !ok {
		t.Fatalf("expected Deepgram, got %T", tr)
	}
	tr, err = New(context.Background(), Config{OpenAIKey: "k"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := tr.(*Whisper); !ok {
		t.Fatalf("expected Whisper by default, got %T", tr)
	}
}
