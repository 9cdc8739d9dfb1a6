package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	"github.com/sjawhar/ghost-interviewer/internal/audio"
	"github.com/sjawhar/ghost-interviewer/internal/config"
	"github.com/sjawhar/ghost-interviewer/internal/gdrive"
	"github.com/sjawhar/ghost-interviewer/internal/interview"
	"github.com/sjawhar/ghost-interviewer/internal/server"
	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/speech"
	"github.com/sjawhar/ghost-interviewer/internal/storage"
	"github.com/sjawhar/ghost-interviewer/internal/summary"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config file")
		jobFile    = flag.String("job-file", "", "YAML or JSON file with job and candidate details")
		list       = flag.Bool("list", false, "list recoverable sessions and exit")
		cleanup    = flag.Bool("cleanup-sessions", false, "delete finished session files older than retention_days and exit")
		resume     resumeFlag
	)
	flag.Var(&resume, "resume", "resume a paused session by id; without an id, choose interactively")
	flag.Parse()
	if resume.set && resume.id == "" && flag.NArg() > 0 {
		resume.id = flag.Arg(0)
	}

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	initLogger(&cfg)
	for _, w := range warnings {
		slog.Warn("config warning", "warning", w)
	}

	injector := setupDI(&cfg)
	states, err := do.Invoke[*storage.StateStore](injector)
	if err != nil {
		slog.Error("state store init failed", "error", err)
		return 1
	}

	switch {
	case *list:
		if err := listSessions(os.Stdout, states); err != nil {
			slog.Error("list sessions failed", "error", err)
			return 1
		}
		return 0
	case *cleanup:
		n, err := states.CleanupOlderThan(cfg.RetentionDays)
		if err != nil {
			slog.Error("cleanup failed", "error", err)
			return 1
		}
		fmt.Printf("Removed %d session file(s) older than %d days.\n", n, cfg.RetentionDays)
		return 0
	}

	sess, err := openSession(states, resume, *jobFile, cfg.Phases)
	if err != nil {
		if errors.Is(err, errNoSelection) {
			return 0
		}
		slog.Error("open session failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := do.MustInvoke[*server.Hub](injector)
	if cfg.HTTPAddr != "" {
		go serveMonitor(ctx, injector, hub, &cfg, warnings)
	}

	runner, err := buildRunner(ctx, injector, hub, sess, &cfg)
	if err != nil {
		slog.Error("interview setup failed", "error", err)
		return 1
	}

	fmt.Printf("Interview %s: %s with %s\n", sess.ID(), sess.Job().Title, sess.Candidate().Name)
	err = runner.Run(ctx)

	var paused *interview.PausedError
	switch {
	case err == nil:
		fmt.Println("Interview completed.")
		return 0
	case errors.As(err, &paused):
		fmt.Printf("\nInterview paused. Resume with: ghost-interviewer %s\n", paused.ResumeHint())
		return 0
	default:
		slog.Error("interview failed", "error", err)
		return 1
	}
}

func initLogger(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func openSession(states *storage.StateStore, resume resumeFlag, jobFile string, phases []string) (*session.Session, error) {
	if !resume.set {
		return newSession(jobFile, phases, time.Now())
	}
	id := resume.id
	if id == "" {
		chosen, err := promptSession(os.Stdin, os.Stdout, states)
		if err != nil {
			return nil, err
		}
		id = chosen
	}
	return loadResumable(states, id)
}

func buildRunner(ctx context.Context, injector do.Injector, hub *server.Hub, sess *session.Session, cfg *config.Config) (*interview.Runner, error) {
	deps, err := turnDeps(injector, hub)
	if err != nil {
		return nil, err
	}
	turns := interview.NewTurnController(deps, cfg.ParsedMaxAnswerDuration(), cfg.Audio.MinAnswerBytes)

	runnerDeps := interview.RunnerDeps{
		Turns:       turns,
		Speaker:     deps.Speaker,
		Saver:       deps.Saver,
		Checkpoints: do.MustInvoke[*storage.Checkpointer](injector),
		Exporter:    do.MustInvoke[*storage.Writer](injector),
		Events:      hub,
		Out:         os.Stdout,
	}

	archive, err := do.Invoke[*storage.SQLiteStore](injector)
	if err != nil {
		slog.Warn("interview archive unavailable", "error", err)
	} else {
		runnerDeps.Archiver = archive
		if summarizer, err := do.Invoke[*summary.Summarizer](injector); err == nil {
			runnerDeps.Assessor = summarizer
		} else {
			slog.Info("post-interview assessment disabled", "reason", err)
		}
	}

	if cfg.GDriveFolderID != "" && cfg.CredentialsFile() != "" {
		uploader, err := gdrive.NewUploader(ctx, cfg.CredentialsFile(), cfg.GDriveFolderID)
		if err != nil {
			slog.Warn("drive upload disabled", "error", err)
		} else {
			runnerDeps.Uploader = uploader
		}
	}

	runner := interview.NewRunner(sess, runnerDeps, interview.RunnerConfig{
		QuestionsFor:    cfg.QuestionsFor,
		FinalizeTimeout: cfg.ParsedFinalizeTimeout(),
	})

	runner.AddCloser(do.MustInvoke[*audio.Mic](injector))
	runner.AddCloser(do.MustInvoke[*speech.Worker](injector))
	if c, ok := deps.Transcriber.(io.Closer); ok {
		runner.AddCloser(c)
	}
	if archive != nil {
		runner.AddCloser(archive)
	}
	runner.AddCloser(recorderStatsLogger{do.MustInvoke[*audio.Recorder](injector)})
	return runner, nil
}

// recorderStatsLogger reports recording statistics when the interview ends.
type recorderStatsLogger struct{ rec *audio.Recorder }

func (l recorderStatsLogger) Close() error {
	st := l.rec.Stats()
	slog.Info("recording statistics",
		"recordings", st.Recordings,
		"total", st.Total,
		"average", st.Average(),
		"threshold", st.Threshold,
		"sample_rate", st.SampleRate,
	)
	return nil
}

func serveMonitor(ctx context.Context, injector do.Injector, hub *server.Hub, cfg *config.Config, warnings []string) {
	stores := server.Stores{
		Sessions: do.MustInvoke[*storage.StateStore](injector),
		AudioDir: cfg.AudioDir,
	}
	hooks := server.ControlHooks{
		Warnings: func() []string { return warnings },
		Presets:  func() map[string]config.Preset { return cfg.Assessment.Presets },
	}

	if archive, err := do.Invoke[*storage.SQLiteStore](injector); err == nil {
		stores.Interviews = archive
		if summarizer, err := do.Invoke[*summary.Summarizer](injector); err == nil {
			hooks.Reassess = reassessFunc(archive, summarizer, hub)
		}
	}

	if err := server.Serve(ctx, cfg.HTTPAddr, server.Handler(hub, stores, hooks)); err != nil {
		slog.Error("monitor server stopped", "error", err)
	}
}

const defaultPreset = "default"

// reassessFunc rewrites the stored assessment of an archived interview with
// the named rubric.
func reassessFunc(archive *storage.SQLiteStore, summarizer *summary.Summarizer, hub *server.Hub) func(context.Context, string, string) error {
	return func(ctx context.Context, id, preset string) error {
		if preset == "" {
			preset = defaultPreset
		}
		turns, err := archive.GetTurns(id)
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			return fmt.Errorf("interview %s has no turns", id)
		}
		text := transcript.New(turns).FormatMarkdown()

		if err := archive.UpdateSummary(id, "", storage.SummaryRunning); err != nil {
			return err
		}
		result, err := summarizer.AssessWithPreset(ctx, text, preset)
		if err != nil {
			_ = archive.UpdateSummary(id, "", storage.SummaryFailed)
			hub.BroadcastSummaryReady(id, "", storage.SummaryFailed)
			return err
		}
		if err := archive.UpdateSummary(id, result, storage.SummaryCompleted); err != nil {
			return err
		}
		hub.BroadcastSummaryReady(id, result, storage.SummaryCompleted)
		return nil
	}
}
