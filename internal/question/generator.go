package question

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/llm"
)

var ErrEmptyQuestion = errors.New("model returned an empty question")

// Generator asks a language model for the next interview question.
type Generator struct {
	client  llm.Client
	backoff []time.Duration
	sleep   func(context.Context, time.Duration) error
	logger  *slog.Logger
}

func NewGenerator(client llm.Client) *Generator {
	return &Generator{
		client:  client,
		backoff: []time.Duration{500 * time.Millisecond, 2 * time.Second},
		sleep:   sleepContext,
		logger:  slog.Default().With("component", "question"),
	}
}

// Generate returns one sanitized question. It retries transient failures
// and gives up with the last error; callers fall back to canned questions.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	messages := BuildMessages(req)

	var lastErr error
	for attempt := 0; attempt <= len(g.backoff); attempt++ {
		raw, err := g.client.Complete(ctx, messages)
		if err == nil {
			if q := Sanitize(raw); q != "" {
				g.logger.Debug("question generated", "phase", req.Phase, "attempt", attempt+1)
				return q, nil
			}
			err = ErrEmptyQuestion
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < len(g.backoff) {
			g.logger.Warn("question generation failed, retrying", "phase", req.Phase, "attempt", attempt+1, "error", err)
			if err := g.sleep(ctx, g.backoff[attempt]); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("generate question after %d attempts: %w", len(g.backoff)+1, lastErr)
}

// Sanitize reduces a model reply to a single spoken question.
func Sanitize(raw string) string {
	q := strings.TrimSpace(raw)
	if i := strings.IndexByte(q, '\n'); i >= 0 {
		q = strings.TrimSpace(q[:i])
	}
	q = strings.NewReplacer(`"`, "", "“", "", "”", "").Replace(q)
	q = strings.TrimSpace(strings.TrimPrefix(q, "Question:"))
	if q == "" {
		return ""
	}
	if !strings.HasSuffix(q, "?") {
		q = strings.TrimRight(q, ".!") + "?"
	}
	return q
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
