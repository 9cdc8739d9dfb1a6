package interview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/speech"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

const defaultFinalizeTimeout = 2 * time.Minute

// Exchanger runs one question and answer. TurnController is the production
// implementation.
type Exchanger interface {
	Run(ctx context.Context, sess *session.Session, phase string) (Exchange, error)
}

// RunnerDeps are the collaborators of a Runner. Everything after Checkpoints
// is optional.
type RunnerDeps struct {
	Turns       Exchanger
	Speaker     Speaker
	Saver       StateSaver
	Checkpoints Checkpointer

	Exporter Exporter
	Archiver Archiver
	Assessor Assessor
	Uploader Uploader
	Events   Broadcaster
	Out      io.Writer
}

type RunnerConfig struct {
	QuestionsFor    func(phase string) int
	FinalizeTimeout time.Duration
}

// Runner drives a session through its phases and owns its status.
type Runner struct {
	sess    *session.Session
	deps    RunnerDeps
	cfg     RunnerConfig
	closers []io.Closer
	now     func() time.Time
	logger  *slog.Logger

	interruptions int
}

func NewRunner(sess *session.Session, deps RunnerDeps, cfg RunnerConfig) *Runner {
	if deps.Events == nil {
		deps.Events = nopBroadcaster{}
	}
	if cfg.QuestionsFor == nil {
		cfg.QuestionsFor = func(string) int { return 1 }
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = defaultFinalizeTimeout
	}
	return &Runner{
		sess:   sess,
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "runner", "session_id", sess.ID()),
	}
}

// AddCloser registers a resource released after finalization.
func (r *Runner) AddCloser(c io.Closer) {
	r.closers = append(r.closers, c)
}

// Run conducts the interview until every phase is complete, ctx is cancelled
// or an unrecoverable error occurs. Cancellation pauses the session and
// returns a *PausedError.
func (r *Runner) Run(ctx context.Context) (err error) {
	id := r.sess.ID()
	resumed := !r.sess.TranscriptEmpty()

	if err := r.setStatus(session.StatusInProgress); err != nil {
		return fmt.Errorf("start interview %s: %w", id, err)
	}
	defer func() { r.finalize() }()

	if err := r.deps.Saver.Save(r.sess); err != nil {
		r.fail(err)
		return fmt.Errorf("interview %s: save initial state: %w", id, err)
	}
	stop := r.deps.Checkpoints.Start(ctx, r.sess)
	r.deps.Events.BroadcastSessionStarted(id, resumed)
	r.logger.Info("interview started", "resumed", resumed, "phase", r.sess.CurrentPhase())

	err = r.conduct(ctx, resumed)
	stop()

	switch {
	case err == nil:
		if err := r.setStatus(session.StatusCompleted); err != nil {
			return fmt.Errorf("interview %s: %w", id, err)
		}
		if err := r.deps.Saver.Save(r.sess); err != nil {
			return fmt.Errorf("interview %s: save final state: %w", id, err)
		}
		r.logger.Info("interview completed")
		return nil

	case ctx.Err() != nil:
		if err := r.setStatus(session.StatusPaused); err != nil {
			return fmt.Errorf("interview %s: %w", id, err)
		}
		if err := r.deps.Saver.Save(r.sess); err != nil {
			r.logger.Error("save paused state", "error", err)
		}
		r.logger.Info("interview paused")
		return &PausedError{SessionID: id, Err: ctx.Err()}

	default:
		r.fail(err)
		return fmt.Errorf("interview %s: %w", id, err)
	}
}

func (r *Runner) conduct(ctx context.Context, resumed bool) error {
	if resumed {
		r.say(ctx, ResumeMessage(r.sess.Candidate(), r.sess.CurrentPhase()))
	} else {
		r.say(ctx, WelcomeMessage(r.sess.Job(), r.sess.Candidate()))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, phase := range r.sess.Phases() {
		if r.sess.IsPhaseCompleted(phase) {
			continue
		}
		if err := r.sess.AdvancePhase(phase); err != nil {
			return err
		}
		r.deps.Events.BroadcastPhaseStarted(r.sess.ID(), phase)

		want := r.cfg.QuestionsFor(phase)
		done := r.sess.PhaseProgress(phase)
		r.logger.Info("phase started", "phase", phase, "questions", want, "already_done", done)
		for i := done; i < want; i++ {
			ex, err := r.deps.Turns.Run(ctx, r.sess, phase)
			if err != nil {
				return err
			}
			if ex.Interrupted {
				r.interruptions++
			}
		}

		if err := r.sess.CompletePhase(phase); err != nil {
			return err
		}
		if err := r.deps.Saver.Save(r.sess); err != nil {
			return fmt.Errorf("save after phase %s: %w", phase, err)
		}
	}

	r.say(ctx, ClosingMessage(r.sess.Candidate()))
	return ctx.Err()
}

// say speaks a scripted message. Failures other than cancellation are
// logged; the interview goes on without the audio.
func (r *Runner) say(ctx context.Context, text string) {
	if r.deps.Speaker == nil {
		return
	}
	for _, unit := range speech.SplitSentences(text) {
		if err := r.deps.Speaker.SpeakUnit(ctx, unit, nil); err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("speak message failed", "error", err)
			}
			return
		}
	}
}

func (r *Runner) fail(cause error) {
	r.sess.RecordError("fatal", cause.Error())
	if err := r.setStatus(session.StatusFailed); err != nil {
		r.logger.Error("mark session failed", "error", err)
	}
	if err := r.deps.Saver.Save(r.sess); err != nil {
		r.logger.Error("save failed state", "error", err)
	}
	r.logger.Error("interview failed", "error", cause)
}

func (r *Runner) setStatus(status session.Status) error {
	if err := r.sess.SetStatus(status); err != nil {
		return err
	}
	r.deps.Events.BroadcastStatusChanged(r.sess.ID(), status)
	return nil
}

// finalize runs after every started interview, whatever its outcome. It has
// its own deadline so a cancelled run still exports and archives.
func (r *Runner) finalize() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FinalizeTimeout)
	defer cancel()

	end := r.now()
	st := r.sess.Snapshot()
	stats := ComputeStats(st, r.interruptions, end)
	r.logger.Info("interview statistics",
		"status", stats.Status,
		"duration", stats.Duration,
		"pairs", stats.Pairs,
		"empty_answers", stats.EmptyAnswers,
		"unrecognized", stats.Unrecognized,
		"interruptions", stats.Interruptions,
		"errors", stats.Errors,
	)
	if r.deps.Out != nil {
		fmt.Fprint(r.deps.Out, stats.String())
	}

	var exportPath string
	if r.deps.Exporter != nil {
		path, err := r.deps.Exporter.Export(st)
		if err != nil {
			r.logger.Error("export transcript", "error", err)
		} else {
			exportPath = path
			r.logger.Info("transcript exported", "path", path)
		}
	}

	archived := false
	if r.deps.Archiver != nil {
		if err := r.deps.Archiver.ArchiveInterview(st, exportPath, end); err != nil {
			r.logger.Error("archive interview", "error", err)
		} else {
			archived = true
		}
	}

	if st.Status == session.StatusCompleted {
		if r.deps.Assessor != nil && archived {
			text, err := r.deps.Assessor.Assess(ctx, st.SessionID, transcript.New(st.Transcript).FormatMarkdown())
			switch {
			case err != nil:
				r.logger.Error("assess interview", "error", err)
				r.deps.Events.BroadcastSummaryReady(st.SessionID, "", "failed")
			case text != "":
				r.deps.Events.BroadcastSummaryReady(st.SessionID, text, "completed")
			}
		}
		if r.deps.Uploader != nil && exportPath != "" {
			if err := r.deps.Uploader.Upload(ctx, exportPath); err != nil {
				r.logger.Error("upload transcript", "error", err)
			}
		}
	}

	r.deps.Events.BroadcastSessionEnded(st.SessionID, st.Status, stats.Duration)

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.logger.Warn("close resource", "error", err)
		}
	}
}
