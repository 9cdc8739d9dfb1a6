package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/ghost-interviewer/internal/question"
	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/speech"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

const (
	DefaultMinAnswerBytes = 2000
	DefaultMaxAnswer      = 120 * time.Second
)

// Exchange is the outcome of one question and answer.
type Exchange struct {
	Question    string
	Answer      string
	Interrupted bool
	AudioRef    string
}

// TurnDeps are the collaborators of a TurnController. Interrupter, Archive
// and Events are optional.
type TurnDeps struct {
	Questions   QuestionSource
	Speaker     Speaker
	Interrupter Interrupter
	Recorder    Recorder
	Transcriber Transcriber
	Archive     AudioArchive
	Saver       StateSaver
	Events      Broadcaster
}

// TurnController runs a single exchange: ask, listen, commit.
type TurnController struct {
	deps           TurnDeps
	maxAnswer      time.Duration
	minAnswerBytes int
	now            func() time.Time
	newPairID      func() string
	logger         *slog.Logger
}

func NewTurnController(deps TurnDeps, maxAnswer time.Duration, minAnswerBytes int) *TurnController {
	if deps.Events == nil {
		deps.Events = nopBroadcaster{}
	}
	if maxAnswer <= 0 {
		maxAnswer = DefaultMaxAnswer
	}
	if minAnswerBytes <= 0 {
		minAnswerBytes = DefaultMinAnswerBytes
	}
	return &TurnController{
		deps:           deps,
		maxAnswer:      maxAnswer,
		minAnswerBytes: minAnswerBytes,
		now:            time.Now,
		newPairID:      func() string { return uuid.NewString() },
		logger:         slog.Default().With("component", "turn"),
	}
}

// Run asks one question in phase and commits the question and answer to sess
// as a single pair. Collaborator failures that have a fallback are recorded
// on the session; everything else is returned.
func (c *TurnController) Run(ctx context.Context, sess *session.Session, phase string) (Exchange, error) {
	logger := c.logger.With("session_id", sess.ID(), "phase", phase)

	q, err := c.deps.Questions.Generate(ctx, question.Request{
		Job:       sess.Job(),
		Candidate: sess.Candidate(),
		Phase:     phase,
		Prior:     sess.Turns(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return Exchange{}, ctx.Err()
		}
		logger.Warn("question generation failed, using fallback", "error", err)
		sess.RecordError("question_generation", err.Error())
		q = question.Fallback(phase)
	}

	units := speech.SplitSentences(q)
	if len(units) == 0 {
		units = []string{q}
	}
	spoken, interrupted, err := c.speak(ctx, logger, units)
	if err != nil {
		return Exchange{}, err
	}
	aiText := strings.Join(spoken, " ")
	if interrupted {
		logger.Info("candidate interrupted", "units_started", len(spoken), "units_total", len(units))
	}

	wav, err := c.deps.Recorder.RecordUntilSilence(ctx, c.maxAnswer)
	if err != nil {
		if ctx.Err() != nil {
			return Exchange{}, ctx.Err()
		}
		return Exchange{}, fmt.Errorf("record answer: %w", err)
	}

	answer, audioRef, err := c.answer(ctx, logger, sess, wav)
	if err != nil {
		return Exchange{}, err
	}

	ts := transcript.Timestamp(c.now())
	pairID := c.newPairID()
	qTurn := transcript.Turn{Speaker: transcript.SpeakerAI, Text: aiText, Timestamp: ts, PairID: pairID, Phase: phase}
	aTurn := transcript.Turn{Speaker: transcript.SpeakerHuman, Text: answer, AudioRef: audioRef, Timestamp: ts, PairID: pairID, Phase: phase}
	if err := sess.AppendPair(qTurn, aTurn); err != nil {
		return Exchange{}, err
	}
	if err := c.deps.Saver.Save(sess); err != nil {
		return Exchange{}, fmt.Errorf("save after exchange: %w", err)
	}
	c.deps.Events.BroadcastTurnCommitted(sess.ID(), qTurn, aTurn, interrupted)
	logger.Info("turn committed", "pair_id", pairID, "answer_chars", len(answer), "interrupted", interrupted)

	return Exchange{Question: aiText, Answer: answer, Interrupted: interrupted, AudioRef: audioRef}, nil
}

// speak plays units while listening for the candidate. It returns the units
// whose playback the speaker reported as started and whether the candidate
// cut in. A unit still queued when Stop drops it is not counted.
func (c *TurnController) speak(ctx context.Context, logger *slog.Logger, units []string) ([]string, bool, error) {
	speakCtx, cancelSpeak := context.WithCancel(ctx)
	defer cancelSpeak()
	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()

	var (
		mu      sync.Mutex
		started int
	)
	markStarted := func() {
		mu.Lock()
		started++
		mu.Unlock()
	}
	speakDone := make(chan error, 1)
	go func() {
		for _, unit := range units {
			if err := speakCtx.Err(); err != nil {
				speakDone <- err
				return
			}
			if err := c.deps.Speaker.SpeakUnit(speakCtx, unit, markStarted); err != nil {
				speakDone <- err
				return
			}
		}
		speakDone <- nil
	}()

	var listenDone chan error
	if c.deps.Interrupter != nil {
		listenDone = make(chan error, 1)
		go func() { listenDone <- c.deps.Interrupter.WaitForInterruption(listenCtx) }()
	}
	joinListener := func() {
		cancelListen()
		if listenDone != nil {
			<-listenDone
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.deps.Speaker.Stop()
			cancelSpeak()
			<-speakDone
			joinListener()
			return nil, false, ctx.Err()

		case err := <-listenDone:
			listenDone = nil
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("interruption listener failed, continuing without it", "error", err)
				}
				continue
			}
			c.deps.Speaker.Stop()
			cancelSpeak()
			<-speakDone
			mu.Lock()
			n := min(started, len(units))
			mu.Unlock()
			return units[:n], true, nil

		case err := <-speakDone:
			joinListener()
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			if err != nil {
				logger.Warn("speech output failed", "error", err)
			}
			return units, false, nil
		}
	}
}

func (c *TurnController) answer(ctx context.Context, logger *slog.Logger, sess *session.Session, wav []byte) (string, string, error) {
	if len(wav) < c.minAnswerBytes {
		logger.Info("no answer recorded", "bytes", len(wav))
		return "", "", nil
	}

	var audioRef string
	if c.deps.Archive != nil {
		name := fmt.Sprintf("answer_%03d", len(sess.Turns())/2+1)
		ref, err := c.deps.Archive.Store(sess.ID(), name, wav)
		if err != nil {
			logger.Warn("archive answer audio failed", "error", err)
		} else {
			audioRef = ref
		}
	}

	text, err := c.deps.Transcriber.Transcribe(ctx, wav)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		logger.Warn("transcription failed", "error", err)
		sess.RecordError("transcription", err.Error())
		return transcript.NoSpeechDetected, audioRef, nil
	}
	return strings.TrimSpace(text), audioRef, nil
}
