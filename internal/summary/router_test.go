package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sjawhar/ghost-interviewer/internal/config"
	"github.com/sjawhar/ghost-interviewer/internal/llm"
)

func rubricConfig(model string, names ...string) config.Assessment {
	cfg := config.Assessment{Model: model, Presets: map[string]config.Preset{}}
	for _, name := range names {
		cfg.Presets[name] = config.Preset{Description: name + " roles"}
	}
	return cfg
}

const markdownInterview = "**[10:00:00] Interviewer:** Tell me about yourself?\n\n" +
	"**[10:00:30] Candidate:** I lead a platform team at a bank.\n\n" +
	"**[10:02:00] Interviewer:** How would you design a rate limiter?\n\n" +
	"**[10:03:10] Candidate:** _(no answer)_"

func TestRouterSelectsRubricFromQuestions(t *testing.T) {
	client := &mockLLMClient{response: " `Engineering`\n"}
	router := NewRouter(rubricConfig("openai/gpt-4o-mini", "default", "engineering"), func(provider, model string) (llm.Client, error) {
		if provider != "openai" || model != "gpt-4o-mini" {
			t.Fatalf("unexpected model %s/%s", provider, model)
		}
		return client, nil
	})

	preset, err := router.SelectPreset(context.Background(), markdownInterview)
	if err != nil {
		t.Fatalf("SelectPreset failed: %v", err)
	}
	if preset != "engineering" {
		t.Fatalf("expected engineering, got %q", preset)
	}

	prompt := client.lastMessages[0].Content
	if !strings.Contains(prompt, "- How would you design a rate limiter?") {
		t.Fatalf("expected interviewer questions in prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "platform team") {
		t.Fatalf("candidate answers leaked into prompt:\n%s", prompt)
	}
	if strings.Index(prompt, "- default:") > strings.Index(prompt, "- engineering:") {
		t.Fatalf("expected rubrics in sorted order:\n%s", prompt)
	}
}

func TestRouterAcceptsSentenceNamingOneRubric(t *testing.T) {
	client := &mockLLMClient{response: "The best fit is leadership."}
	router := NewRouter(rubricConfig("openai/gpt-4o-mini", "default", "leadership"), func(_, _ string) (llm.Client, error) {
		return client, nil
	})

	if preset, _ := router.SelectPreset(context.Background(), markdownInterview); preset != "leadership" {
		t.Fatalf("expected leadership, got %q", preset)
	}
}

func TestRouterFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Assessment
		factory ClientFactory
		want    string
	}{
		{
			name: "ambiguous reply prefers default",
			cfg:  rubricConfig("openai/gpt-4o-mini", "default", "leadership", "sales"),
			factory: func(_, _ string) (llm.Client, error) {
				return &mockLLMClient{response: "leadership or sales"}, nil
			},
			want: "default",
		},
		{
			name: "bad model uses first sorted rubric",
			cfg:  rubricConfig("invalid-model", "senior", "junior"),
			factory: func(_, _ string) (llm.Client, error) {
				return nil, fmt.Errorf("should not be called")
			},
			want: "junior",
		},
		{
			name: "model error",
			cfg:  rubricConfig("openai/gpt-4o-mini", "default", "sales"),
			factory: func(_, _ string) (llm.Client, error) {
				return &mockLLMClient{err: errors.New("503"), failures: 1}, nil
			},
			want: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRouter(tt.cfg, tt.factory).SelectPreset(context.Background(), markdownInterview)
			if err != nil {
				t.Fatalf("SelectPreset failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRouterReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	router := NewRouter(rubricConfig("openai/gpt-4o-mini", "default", "sales"), func(_, _ string) (llm.Client, error) {
		return &mockLLMClient{err: context.Canceled, failures: 1}, nil
	})

	if _, err := router.SelectPreset(ctx, markdownInterview); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt(markdownInterview, 100); got != "- Tell me about yourself?\n- How would you design a rate limiter?" {
		t.Fatalf("unexpected question excerpt %q", got)
	}

	plain := numberedWords(50)
	got := Excerpt(plain, 10)
	if !strings.HasPrefix(got, "w1 w2") || !strings.HasSuffix(got, "w10 [...]") {
		t.Fatalf("expected truncated opening, got %q", got)
	}
	if short := numberedWords(5); Excerpt(short, 10) != short {
		t.Fatalf("expected short text unchanged, got %q", Excerpt(short, 10))
	}
}

func numberedWords(n int) string {
	words := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		words = append(words, fmt.Sprintf("w%d", i))
	}
	return strings.Join(words, " ")
}
