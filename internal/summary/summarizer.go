// Package summary writes the post-interview assessment.
package summary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/config"
	"github.com/sjawhar/ghost-interviewer/internal/llm"
	"github.com/sjawhar/ghost-interviewer/internal/storage"
)

const minWords = 20

type ClientFactory func(provider, model string) (llm.Client, error)

// Store records summary requests and results against the archived interview.
type Store interface {
	ClaimSummaryRequest(interviewID, promptHash string) (bool, error)
	UpdateSummary(interviewID, summary, status string) error
}

type Summarizer struct {
	cfg     config.Assessment
	factory ClientFactory
	router  *Router
	store   Store
	backoff []time.Duration
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
	logger  *slog.Logger
}

func New(cfg config.Assessment, factory ClientFactory, store Store) *Summarizer {
	var router *Router
	if len(cfg.Presets) > 1 {
		router = NewRouter(cfg, factory)
	}
	return &Summarizer{
		cfg:     cfg,
		factory: factory,
		router:  router,
		store:   store,
		backoff: []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second},
		sleep:   sleepContext,
		now:     time.Now,
		logger:  slog.Default().With("component", "summary"),
	}
}

// Assess writes an assessment for the interview transcript and stores it.
// Short transcripts and repeated requests for the same transcript return an
// empty summary without calling the model.
func (s *Summarizer) Assess(ctx context.Context, interviewID, transcript string) (string, error) {
	if len(strings.Fields(transcript)) < minWords {
		s.logger.Info("transcript too short for assessment", "interview_id", interviewID)
		s.update(interviewID, "", storage.SummarySkipped)
		return "", nil
	}

	hash := sha256.Sum256([]byte(transcript))
	if s.store != nil {
		claimed, err := s.store.ClaimSummaryRequest(interviewID, hex.EncodeToString(hash[:]))
		if err != nil {
			return "", fmt.Errorf("claim summary request: %w", err)
		}
		if !claimed {
			s.logger.Info("assessment already requested", "interview_id", interviewID)
			return "", nil
		}
	}
	s.update(interviewID, "", storage.SummaryRunning)

	presetName, err := s.selectPreset(ctx, transcript)
	if err != nil {
		s.update(interviewID, "", storage.SummaryFailed)
		return "", fmt.Errorf("select preset: %w", err)
	}
	text, err := s.AssessWithPreset(ctx, transcript, presetName)
	if err != nil {
		s.update(interviewID, "", storage.SummaryFailed)
		return "", err
	}

	s.update(interviewID, text, storage.SummaryCompleted)
	s.logger.Info("assessment complete", "interview_id", interviewID, "preset", presetName, "chars", len(text))
	return text, nil
}

func (s *Summarizer) AssessWithPreset(ctx context.Context, transcript, presetName string) (string, error) {
	preset, ok := s.cfg.Presets[presetName]
	if !ok {
		return "", fmt.Errorf("unknown preset %q", presetName)
	}

	modelStr := preset.Model
	if modelStr == "" {
		modelStr = s.cfg.Model
	}
	provider, model, err := llm.ParseModel(modelStr)
	if err != nil {
		return "", err
	}
	client, err := s.factory(provider, model)
	if err != nil {
		return "", fmt.Errorf("create llm client: %w", err)
	}

	userContent := strings.NewReplacer(
		"{{transcript}}", transcript,
		"{{date}}", s.now().UTC().Format("2006-01-02"),
	).Replace(preset.UserTemplate)
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: preset.SystemPrompt},
		{Role: llm.RoleUser, Content: userContent},
	}

	var lastErr error
	for attempt := range s.backoff {
		result, err := client.Complete(ctx, messages)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < len(s.backoff)-1 {
			s.logger.Warn("assessment failed, retrying", "attempt", attempt+1, "error", err)
			if err := s.sleep(ctx, s.backoff[attempt]); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("assess failed after retries: %w", lastErr)
}

func (s *Summarizer) selectPreset(ctx context.Context, transcript string) (string, error) {
	if s.router == nil {
		for name := range s.cfg.Presets {
			return name, nil
		}
		return "", fmt.Errorf("no assessment presets configured")
	}
	return s.router.SelectPreset(ctx, transcript)
}

func (s *Summarizer) update(interviewID, text, status string) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateSummary(interviewID, text, status); err != nil {
		s.logger.Warn("store summary status", "interview_id", interviewID, "status", status, "error", err)
	}
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
