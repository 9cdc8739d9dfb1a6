package session

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

var testPhases = []string{"warmup", "technical", "closing"}

func newTestSession() *Session {
	return New(
		JobInfo{Title: "Backend Engineer", Company: "Acme"},
		CandidateInfo{Name: "Ada"},
		testPhases,
		time.Date(2026, 3, 1, 9, 0, 0, 123456000, time.UTC),
	)
}

func pair(id, phase string) (transcript.Turn, transcript.Turn) {
	return transcript.Turn{Speaker: transcript.SpeakerAI, Text: "q", PairID: id, Phase: phase, Timestamp: 1},
		transcript.Turn{Speaker: transcript.SpeakerHuman, Text: "a", PairID: id, Phase: phase, Timestamp: 1}
}

func TestNewInitializesSession(t *testing.T) {
	s := newTestSession()

	if s.ID() != "session_20260301_090000_123456" {
		t.Fatalf("unexpected id %q", s.ID())
	}
	if s.Status() != StatusNotStarted {
		t.Fatalf("expected NOT_STARTED, got %s", s.Status())
	}
	if s.CurrentPhase() != "warmup" {
		t.Fatalf("expected current phase warmup, got %q", s.CurrentPhase())
	}
	if !s.TranscriptEmpty() || len(s.CompletedPhases()) != 0 {
		t.Fatal("expected empty transcript and completed phases")
	}
}

func TestNewIDDiffersWithinSameSecond(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if NewID(base) == NewID(base.Add(time.Microsecond)) {
		t.Fatal("expected distinct ids for distinct microseconds")
	}
}

func TestCompletePhaseIsIdempotent(t *testing.T) {
	s := newTestSession()
	for i := 0; i < 3; i++ {
		if err := s.CompletePhase("warmup"); err != nil {
			t.Fatalf("CompletePhase failed: %v", err)
		}
	}
	if got := s.CompletedPhases(); !reflect.DeepEqual(got, []string{"warmup"}) {
		t.Fatalf("expected [warmup], got %v", got)
	}
}

func TestAdvancePhaseDoesNotCompletePrevious(t *testing.T) {
	s := newTestSession()
	if err := s.AdvancePhase("technical"); err != nil {
		t.Fatalf("AdvancePhase failed: %v", err)
	}
	if s.IsPhaseCompleted("warmup") {
		t.Fatal("expected warmup to remain incomplete")
	}
	if s.CurrentPhase() != "technical" {
		t.Fatalf("expected technical, got %q", s.CurrentPhase())
	}
}

func TestRecordErrorKeepsStatus(t *testing.T) {
	s := newTestSession()
	s.RecordError("transcription", "timeout")
	if s.Status() != StatusNotStarted {
		t.Fatalf("expected status unchanged, got %s", s.Status())
	}
	errs := s.Errors()
	if len(errs) != 1 || errs[0].Kind != "transcription" || errs[0].Detail != "timeout" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []Status
		wantErr error
	}{
		{name: "complete", path: []Status{StatusInProgress, StatusCompleted}},
		{name: "pause and resume", path: []Status{StatusInProgress, StatusPaused, StatusInProgress}},
		{name: "fail from paused", path: []Status{StatusInProgress, StatusPaused, StatusFailed}},
		{name: "skip start", path: []Status{StatusCompleted}, wantErr: ErrInvalidTransition},
		{name: "leave completed", path: []Status{StatusInProgress, StatusCompleted, StatusInProgress}, wantErr: ErrTerminal},
		{name: "leave failed", path: []Status{StatusFailed, StatusPaused}, wantErr: ErrTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession()
			var err error
			for _, next := range tt.path {
				if err = s.SetStatus(next); err != nil {
					break
				}
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTerminalSessionRejectsMutation(t *testing.T) {
	s := newTestSession()
	_ = s.SetStatus(StatusInProgress)
	_ = s.SetStatus(StatusCompleted)

	q, a := pair("p1", "warmup")
	if err := s.AppendPair(q, a); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal from AppendPair, got %v", err)
	}
	if err := s.AdvancePhase("technical"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal from AdvancePhase, got %v", err)
	}
	if err := s.CompletePhase("warmup"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal from CompletePhase, got %v", err)
	}

	s.RecordError("export", "disk full")
	if len(s.Errors()) != 1 {
		t.Fatal("expected RecordError to work on terminal sessions")
	}
}

func TestAppendPairRejectsWrongSpeakers(t *testing.T) {
	s := newTestSession()
	q, a := pair("p1", "warmup")
	if err := s.AppendPair(a, q); !errors.Is(err, transcript.ErrBrokenPair) {
		t.Fatalf("expected ErrBrokenPair, got %v", err)
	}
	if !s.TranscriptEmpty() {
		t.Fatal("expected nothing appended")
	}
}

func TestConcurrentSnapshotsSeeWholePairs(t *testing.T) {
	s := newTestSession()
	_ = s.SetStatus(StatusInProgress)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			q, a := pair("p", "technical")
			if err := s.AppendPair(q, a); err != nil {
				t.Errorf("AppendPair failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		if n := len(s.Snapshot().Transcript); n%2 != 0 {
			t.Fatalf("snapshot saw a half-committed pair: %d turns", n)
		}
	}
	wg.Wait()

	if got := len(s.Turns()); got != 400 {
		t.Fatalf("expected 400 turns, got %d", got)
	}
}

func TestFromStateRoundTrip(t *testing.T) {
	s := newTestSession()
	_ = s.SetStatus(StatusInProgress)
	_ = s.CompletePhase("warmup")
	_ = s.AdvancePhase("technical")
	q, a := pair("p1", "warmup")
	_ = s.AppendPair(q, a)

	snap := s.Snapshot()
	restored := FromState(snap).Snapshot()
	if !reflect.DeepEqual(snap, restored) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", snap, restored)
	}
}

func TestLoadProfileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	data := `job:
  title: Backend Engineer
  company: Acme
  requirements:
    technical_skills: [Go, PostgreSQL]
    experience_years: 4
candidate:
  name: Ada
  key_skills: [Go]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write profile failed: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.Job.Title != "Backend Engineer" || p.Job.Requirements.ExperienceYears != 4 {
		t.Fatalf("unexpected job: %+v", p.Job)
	}
	if p.Candidate.Name != "Ada" || len(p.Candidate.KeySkills) != 1 {
		t.Fatalf("unexpected candidate: %+v", p.Candidate)
	}
}

func TestLoadProfileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	data := `{"job": {"title": "Data Engineer", "company": "Acme"}, "candidate": {"name": "Lin"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write profile failed: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.Job.Title != "Data Engineer" || p.Candidate.Name != "Lin" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestLoadProfileRequiresTitleAndName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte("job:\n  company: Acme\n"), 0o644); err != nil {
		t.Fatalf("write profile failed: %v", err)
	}

	_, err := LoadProfile(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"job.title", "candidate.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error, got %v", want, err)
		}
	}
}
