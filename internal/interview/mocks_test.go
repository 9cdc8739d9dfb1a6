package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/question"
	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

type fakeQuestions struct {
	mu    sync.Mutex
	q     string
	err   error
	calls int
}

func (f *fakeQuestions) Generate(_ context.Context, _ question.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.q, f.err
}

// fakeSpeaker records every unit it starts. With block set, each unit plays
// until its context is cancelled or Stop is called.
type fakeSpeaker struct {
	mu      sync.Mutex
	block   bool
	units   []string
	stops   int
	started chan struct{}
	stopped chan struct{}
}

func newFakeSpeaker(block bool) *fakeSpeaker {
	return &fakeSpeaker{block: block, started: make(chan struct{}, 64), stopped: make(chan struct{})}
}

func (f *fakeSpeaker) SpeakUnit(ctx context.Context, text string, onStart func()) error {
	f.mu.Lock()
	f.units = append(f.units, text)
	stopped := f.stopped
	f.mu.Unlock()
	if onStart != nil {
		onStart()
	}
	f.started <- struct{}{}
	if !f.block {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped:
		return errors.New("stopped")
	}
}

func (f *fakeSpeaker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.block {
		close(f.stopped)
		f.stopped = make(chan struct{})
	}
}

func (f *fakeSpeaker) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.units...)
}

// fakeInterrupter fires once trigger yields, fails with err, or waits for
// cancellation when both are unset.
type fakeInterrupter struct {
	trigger <-chan struct{}
	err     error
}

func (f *fakeInterrupter) WaitForInterruption(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.trigger:
		return nil
	}
}

type fakeRecorder struct {
	mu     sync.Mutex
	wav    []byte
	err    error
	block  bool
	called chan struct{}
	calls  int
}

func (f *fakeRecorder) RecordUntilSilence(ctx context.Context, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.wav, f.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type fakeArchive struct {
	names []string
}

func (f *fakeArchive) Store(sessionID, name string, _ []byte) (string, error) {
	f.names = append(f.names, name)
	return "/audio/" + sessionID + "/" + name + ".wav", nil
}

type fakeSaver struct {
	mu       sync.Mutex
	err      error
	failFrom int
	saves    int
	last     session.State
}

func (f *fakeSaver) Save(sess *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.err != nil && f.saves >= f.failFrom {
		return f.err
	}
	f.last = sess.Snapshot()
	return nil
}

func (f *fakeSaver) lastState() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type recordingBroadcaster struct {
	mu        sync.Mutex
	statuses  []session.Status
	phases    []string
	turns     int
	resumed   []bool
	ended     []session.Status
	summaries []string
}

func (r *recordingBroadcaster) BroadcastSessionStarted(_ string, resumed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed = append(r.resumed, resumed)
}

func (r *recordingBroadcaster) BroadcastPhaseStarted(_ string, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *recordingBroadcaster) BroadcastTurnCommitted(string, transcript.Turn, transcript.Turn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns++
}

func (r *recordingBroadcaster) BroadcastStatusChanged(_ string, status session.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recordingBroadcaster) BroadcastSessionEnded(_ string, status session.Status, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, status)
}

func (r *recordingBroadcaster) BroadcastSummaryReady(_ string, summary, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
}

func testSession(t *testing.T, phases ...string) *session.Session {
	t.Helper()
	if len(phases) == 0 {
		phases = []string{"warmup"}
	}
	return session.New(
		session.JobInfo{Title: "Backend Engineer", Company: "Acme"},
		session.CandidateInfo{Name: "Ada"},
		phases,
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)
}

func inProgress(t *testing.T, sess *session.Session) *session.Session {
	t.Helper()
	if err := sess.SetStatus(session.StatusInProgress); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	return sess
}
