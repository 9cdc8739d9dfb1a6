package session

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Recoverable reports whether a session in this status can be resumed.
func (s Status) Recoverable() bool {
	return s == StatusInProgress || s == StatusPaused
}

var transitions = map[Status][]Status{
	StatusNotStarted: {StatusInProgress, StatusPaused, StatusFailed},
	StatusInProgress: {StatusPaused, StatusCompleted, StatusFailed},
	StatusPaused:     {StatusInProgress, StatusFailed},
}

type Requirements struct {
	TechnicalSkills []string `json:"technical_skills,omitempty" yaml:"technical_skills"`
	ExperienceYears int      `json:"experience_years,omitempty" yaml:"experience_years"`
	Education       string   `json:"education,omitempty" yaml:"education"`
}

type JobInfo struct {
	Title        string       `json:"title" yaml:"title"`
	Company      string       `json:"company" yaml:"company"`
	Requirements Requirements `json:"requirements" yaml:"requirements"`
}

type CandidateInfo struct {
	Name            string   `json:"name" yaml:"name"`
	CurrentPosition string   `json:"current_position,omitempty" yaml:"current_position"`
	YearsExperience int      `json:"years_experience,omitempty" yaml:"years_experience"`
	KeySkills       []string `json:"key_skills,omitempty" yaml:"key_skills"`
}

type ErrorRecord struct {
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
	Time   time.Time `json:"time"`
}

// State is the serializable form of a Session.
type State struct {
	SessionID       string            `json:"session_id"`
	Status          Status            `json:"status"`
	JobInfo         JobInfo           `json:"job_info"`
	CandidateInfo   CandidateInfo     `json:"candidate_info"`
	Phases          []string          `json:"phases"`
	CurrentPhase    string            `json:"current_phase"`
	CompletedPhases []string          `json:"completed_phases"`
	Transcript      []transcript.Turn `json:"transcript"`
	StartedAt       time.Time         `json:"started_at"`
	LastCheckpoint  time.Time         `json:"last_checkpoint"`
	Errors          []ErrorRecord     `json:"errors"`
}

// Session is the resumable state of one interview attempt. All methods are
// safe for concurrent use.
type Session struct {
	mu  sync.Mutex
	now func() time.Time

	id              string
	status          Status
	job             JobInfo
	candidate       CandidateInfo
	phases          []string
	currentPhase    string
	completedPhases []string
	transcript      *transcript.Transcript
	startedAt       time.Time
	lastCheckpoint  time.Time
	errors          []ErrorRecord
}

// NewID derives a session id from t with microsecond precision.
func NewID(t time.Time) string {
	stamp := t.UTC().Format("20060102_150405.000000")
	return "session_" + strings.Replace(stamp, ".", "_", 1)
}

func New(job JobInfo, candidate CandidateInfo, phases []string, now time.Time) *Session {
	s := &Session{
		now:             time.Now,
		id:              NewID(now),
		status:          StatusNotStarted,
		job:             job,
		candidate:       candidate,
		phases:          slices.Clone(phases),
		completedPhases: []string{},
		transcript:      transcript.New(nil),
		startedAt:       now.UTC(),
	}
	if len(phases) > 0 {
		s.currentPhase = phases[0]
	}
	return s
}

// FromState rebuilds a session from its persisted form.
func FromState(st State) *Session {
	completed := slices.Clone(st.CompletedPhases)
	if completed == nil {
		completed = []string{}
	}
	return &Session{
		now:             time.Now,
		id:              st.SessionID,
		status:          st.Status,
		job:             st.JobInfo,
		candidate:       st.CandidateInfo,
		phases:          slices.Clone(st.Phases),
		currentPhase:    st.CurrentPhase,
		completedPhases: completed,
		transcript:      transcript.New(st.Transcript),
		startedAt:       st.StartedAt,
		lastCheckpoint:  st.LastCheckpoint,
		errors:          slices.Clone(st.Errors),
	}
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		SessionID:       s.id,
		Status:          s.status,
		JobInfo:         s.job,
		CandidateInfo:   s.candidate,
		Phases:          slices.Clone(s.phases),
		CurrentPhase:    s.currentPhase,
		CompletedPhases: slices.Clone(s.completedPhases),
		Transcript:      s.transcript.Turns(),
		StartedAt:       s.startedAt,
		LastCheckpoint:  s.lastCheckpoint,
		Errors:          slices.Clone(s.errors),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Job() JobInfo { return s.job }

func (s *Session) Candidate() CandidateInfo { return s.candidate }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) CurrentPhase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPhase
}

func (s *Session) StartedAt() time.Time { return s.startedAt }

// Phases returns the phase plan fixed when the session was created.
func (s *Session) Phases() []string { return slices.Clone(s.phases) }

func (s *Session) Turns() []transcript.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Turns()
}

func (s *Session) TranscriptEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Empty()
}

// PhaseProgress reports how many exchanges of phase are already committed.
func (s *Session) PhaseProgress(phase string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.CountPhase(phase)
}

func (s *Session) SetStatus(next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == next {
		return nil
	}
	if s.status.Terminal() {
		return fmt.Errorf("set status %s: %w", next, ErrTerminal)
	}
	if !slices.Contains(transitions[s.status], next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, next)
	}
	s.status = next
	return nil
}

func (s *Session) AdvancePhase(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return fmt.Errorf("advance phase %q: %w", name, ErrTerminal)
	}
	s.currentPhase = name
	return nil
}

func (s *Session) CompletePhase(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return fmt.Errorf("complete phase %q: %w", name, ErrTerminal)
	}
	if !slices.Contains(s.completedPhases, name) {
		s.completedPhases = append(s.completedPhases, name)
	}
	return nil
}

func (s *Session) IsPhaseCompleted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.completedPhases, name)
}

func (s *Session) CompletedPhases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.completedPhases)
}

// RecordError appends to the error log. It is allowed in every status.
func (s *Session) RecordError(kind, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, ErrorRecord{Kind: kind, Detail: detail, Time: s.now().UTC()})
}

func (s *Session) Errors() []ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.errors)
}

// AppendPair commits a question and its answer as one unit.
func (s *Session) AppendPair(question, answer transcript.Turn) error {
	if question.Speaker != transcript.SpeakerAI || answer.Speaker != transcript.SpeakerHuman {
		return fmt.Errorf("append pair: %w: got %s/%s", transcript.ErrBrokenPair, question.Speaker, answer.Speaker)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return fmt.Errorf("append pair: %w", ErrTerminal)
	}
	s.transcript.Append(question)
	s.transcript.Append(answer)
	return nil
}

// MarkCheckpoint stamps the time of a persisted write.
func (s *Session) MarkCheckpoint(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheckpoint = t.UTC()
}

func (s *Session) LastCheckpoint() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheckpoint
}
