package storage

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func archivedState(id string, pairs int) session.State {
	st := session.State{
		SessionID:     id,
		Status:        session.StatusCompleted,
		JobInfo:       session.JobInfo{Title: "Backend Engineer", Company: "Acme"},
		CandidateInfo: session.CandidateInfo{Name: "Ada"},
		StartedAt:     time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC),
	}
	for i := 0; i < pairs; i++ {
		st.Transcript = append(st.Transcript,
			transcript.Turn{Speaker: transcript.SpeakerAI, Text: "Why Go?", PairID: "p", Phase: "technical", Timestamp: 1772100000.5},
			transcript.Turn{Speaker: transcript.SpeakerHuman, Text: "Simplicity.", PairID: "p", Phase: "technical", Timestamp: 1772100000.5},
		)
	}
	return st
}

func TestSQLitePragmas(t *testing.T) {
	store := newTestSQLiteStore(t)

	var mode string
	if err := store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected journal_mode wal, got %q", mode)
	}

	var timeout int
	if err := store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
}

func TestArchiveInterviewAndRead(t *testing.T) {
	store := newTestSQLiteStore(t)
	st := archivedState("session_a", 2)
	ended := st.StartedAt.Add(30 * time.Minute)

	if err := store.ArchiveInterview(st, "data/transcripts/session_a.jsonl", ended); err != nil {
		t.Fatalf("ArchiveInterview failed: %v", err)
	}

	iv, err := store.GetInterview("session_a")
	if err != nil {
		t.Fatalf("GetInterview failed: %v", err)
	}
	if iv.Status != "COMPLETED" || iv.Pairs != 2 || iv.CandidateName != "Ada" || iv.SummaryStatus != SummaryPending {
		t.Fatalf("unexpected interview: %+v", iv)
	}
	if iv.EndedAt == nil || !iv.EndedAt.Equal(ended) {
		t.Fatalf("expected ended_at %s, got %v", ended, iv.EndedAt)
	}

	turns, err := store.GetTurns("session_a")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[0].Speaker != transcript.SpeakerAI || turns[1].Text != "Simplicity." || turns[1].Timestamp != 1772100000.5 {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestArchiveInterviewIsRepeatable(t *testing.T) {
	store := newTestSQLiteStore(t)
	st := archivedState("session_b", 1)

	if err := store.ArchiveInterview(st, "", time.Time{}); err != nil {
		t.Fatalf("first ArchiveInterview failed: %v", err)
	}
	if err := store.UpdateSummary("session_b", "Strong candidate.", SummaryCompleted); err != nil {
		t.Fatalf("UpdateSummary failed: %v", err)
	}

	st = archivedState("session_b", 3)
	if err := store.ArchiveInterview(st, "", time.Now()); err != nil {
		t.Fatalf("second ArchiveInterview failed: %v", err)
	}

	iv, err := store.GetInterview("session_b")
	if err != nil {
		t.Fatalf("GetInterview failed: %v", err)
	}
	if iv.Pairs != 3 {
		t.Fatalf("expected pairs updated to 3, got %d", iv.Pairs)
	}
	if iv.Summary != "Strong candidate." || iv.SummaryStatus != SummaryCompleted {
		t.Fatalf("expected summary preserved, got %+v", iv)
	}
	turns, err := store.GetTurns("session_b")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 6 {
		t.Fatalf("expected 6 turns after re-archive, got %d", len(turns))
	}
}

func TestListInterviewsNewestFirst(t *testing.T) {
	store := newTestSQLiteStore(t)
	older := archivedState("session_old", 1)
	newer := archivedState("session_new", 1)
	newer.StartedAt = older.StartedAt.Add(time.Hour)

	for _, st := range []session.State{older, newer} {
		if err := store.ArchiveInterview(st, "", time.Time{}); err != nil {
			t.Fatalf("ArchiveInterview failed: %v", err)
		}
	}

	list, err := store.ListInterviews(10)
	if err != nil {
		t.Fatalf("ListInterviews failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "session_new" {
		t.Fatalf("unexpected list order: %+v", list)
	}
}

func TestGetInterviewMissing(t *testing.T) {
	store := newTestSQLiteStore(t)
	if _, err := store.GetInterview("nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if err := store.UpdateSummary("nope", "x", SummaryCompleted); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows from UpdateSummary, got %v", err)
	}
}

func TestClaimSummaryRequest(t *testing.T) {
	store := newTestSQLiteStore(t)

	claimed, err := store.ClaimSummaryRequest("session_a", "hash")
	if err != nil || !claimed {
		t.Fatalf("expected first claim to succeed, got %v, %v", claimed, err)
	}
	claimed, err = store.ClaimSummaryRequest("session_a", "hash")
	if err != nil || claimed {
		t.Fatalf("expected duplicate claim to be rejected, got %v, %v", claimed, err)
	}
}
