// Package interview drives a voice interview: it asks questions, races
// speech against candidate interruptions, records answers and keeps the
// session durable.
package interview

import (
	"context"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/question"
	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

type QuestionSource interface {
	Generate(ctx context.Context, req question.Request) (string, error)
}

// Speaker plays one unit of text and returns once playback ends. onStart
// fires when playback of the unit actually begins. Stop cuts off the unit
// playing and drops any queued ones.
type Speaker interface {
	SpeakUnit(ctx context.Context, text string, onStart func()) error
	Stop()
}

// Interrupter returns nil as soon as the candidate starts talking.
type Interrupter interface {
	WaitForInterruption(ctx context.Context) error
}

type Recorder interface {
	RecordUntilSilence(ctx context.Context, max time.Duration) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type AudioArchive interface {
	Store(sessionID, name string, wav []byte) (string, error)
}

type StateSaver interface {
	Save(sess *session.Session) error
}

type Checkpointer interface {
	Start(ctx context.Context, sess *session.Session) (stop func())
}

type Exporter interface {
	Export(st session.State) (string, error)
}

type Archiver interface {
	ArchiveInterview(st session.State, transcriptPath string, endedAt time.Time) error
}

type Assessor interface {
	Assess(ctx context.Context, interviewID, transcript string) (string, error)
}

type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// Broadcaster publishes live progress to monitors.
type Broadcaster interface {
	BroadcastSessionStarted(sessionID string, resumed bool)
	BroadcastPhaseStarted(sessionID, phase string)
	BroadcastTurnCommitted(sessionID string, question, answer transcript.Turn, interrupted bool)
	BroadcastStatusChanged(sessionID string, status session.Status)
	BroadcastSessionEnded(sessionID string, status session.Status, duration time.Duration)
	BroadcastSummaryReady(sessionID, summary, status string)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastSessionStarted(string, bool) {}
func (nopBroadcaster) BroadcastPhaseStarted(string, string) {}
func (nopBroadcaster) BroadcastTurnCommitted(string, transcript.Turn, transcript.Turn, bool) {}
func (nopBroadcaster) BroadcastStatusChanged(string, session.Status) {}
func (nopBroadcaster) BroadcastSessionEnded(string, session.Status, time.Duration) {}
func (nopBroadcaster) BroadcastSummaryReady(string, string, string) {}
