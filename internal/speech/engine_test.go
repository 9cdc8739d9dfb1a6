package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestCommandEngineAppendsText(t *testing.T) {
	requireCommand(t, "sh")
	out := filepath.Join(t.TempDir(), "said.txt")
	engine := NewCommandEngine("sh", "-c", `printf '%s' "$1" > "$0"`, out)

	if err := engine.Say(context.Background(), "Tell me about yourself?"); err != nil {
		t.Fatalf("Say failed: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "Tell me about yourself?" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestCommandEngineStop(t *testing.T) {
	requireCommand(t, "sleep")
	engine := NewCommandEngine("sleep")

	errCh := make(chan error, 1)
	go func() { errCh <- engine.Say(context.Background(), "5") }()

	deadline := time.After(2 * time.Second)
	for {
		engine.proc.mu.Lock()
		running := engine.proc.cmd != nil
		engine.proc.mu.Unlock()
		if running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("process never started")
		case <-time.After(10 * time.Millisecond):
		}
	}
	engine.Stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Say did not return after Stop")
	}
}

func TestCommandEngineMissingBinary(t *testing.T) {
	engine := NewCommandEngine("definitely-not-a-speech-binary")
	if err := engine.Say(context.Background(), "hi"); err == nil {
		t.Fatal("expected start error")
	}
}

func TestOpenAIEnginePipesAudioToPlayer(t *testing.T) {
	requireCommand(t, "sh")
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request: %v", err)
		}
		body = string(b)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	t.Cleanup(server.Close)

	out := filepath.Join(t.TempDir(), "played.mp3")
	engine, err := NewOpenAIEngine("test-key",
		WithBaseURL(server.URL+"/v1"),
		WithVoice("nova"),
		WithPlayer("sh", "-c", `cat > "$0"`, out),
	)
	if err != nil {
		t.Fatalf("NewOpenAIEngine failed: %v", err)
	}

	if err := engine.Say(context.Background(), "Welcome to the interview."); err != nil {
		t.Fatalf("Say failed: %v", err)
	}
	played, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read played audio: %v", err)
	}
	if string(played) != "mp3-bytes" {
		t.Fatalf("unexpected audio %q", played)
	}
	if !strings.Contains(body, `"voice":"nova"`) || !strings.Contains(body, "Welcome to the interview.") {
		t.Fatalf("unexpected request body %s", body)
	}
}

func TestNewOpenAIEngineRequiresKey(t *testing.T) {
	if _, err := NewOpenAIEngine(""); err == nil {
		t.Fatal("expected error without api key")
	}
}
