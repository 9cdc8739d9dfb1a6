package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/do/v2"

	"github.com/sjawhar/ghost-interviewer/internal/audio"
	"github.com/sjawhar/ghost-interviewer/internal/config"
	"github.com/sjawhar/ghost-interviewer/internal/interview"
	"github.com/sjawhar/ghost-interviewer/internal/llm"
	"github.com/sjawhar/ghost-interviewer/internal/question"
	"github.com/sjawhar/ghost-interviewer/internal/server"
	"github.com/sjawhar/ghost-interviewer/internal/speech"
	"github.com/sjawhar/ghost-interviewer/internal/storage"
	"github.com/sjawhar/ghost-interviewer/internal/summary"
	"github.com/sjawhar/ghost-interviewer/internal/transcribe"
)

// setupDI registers every component. Providers are lazy, so -list and
// -cleanup-sessions never open the microphone or reach a vendor API.
func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	registerStorage(injector)
	registerModels(injector)
	registerAudio(injector)
	registerSpeech(injector)
	do.Provide(injector, func(i do.Injector) (*server.Hub, error) {
		return server.NewHub(), nil
	})

	return injector
}

func registerStorage(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*storage.StateStore, error) {
		return storage.NewStateStore(do.MustInvoke[*config.Config](i).StateDir)
	})
	do.Provide(injector, func(i do.Injector) (*storage.SQLiteStore, error) {
		return storage.NewSQLiteStore(do.MustInvoke[*config.Config](i).DBPath)
	})
	do.Provide(injector, func(i do.Injector) (*storage.Writer, error) {
		return storage.NewWriter(do.MustInvoke[*config.Config](i).TranscriptDir), nil
	})
	do.Provide(injector, func(i do.Injector) (*storage.Checkpointer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		states := do.MustInvoke[*storage.StateStore](i)
		return storage.NewCheckpointer(states, cfg.ParsedAutosaveInterval()), nil
	})
}

// unavailableClient stands in for a model that could not be configured.
// Every call fails, so the interview runs on the canned questions.
type unavailableClient struct{ err error }

func (c unavailableClient) Complete(context.Context, []llm.Message) (string, error) {
	return "", c.err
}

func modelFactory(cfg *config.Config) summary.ClientFactory {
	return func(provider, model string) (llm.Client, error) {
		var opts []llm.Option
		if provider == "ollama" && cfg.LLM.BaseURL != "" {
			opts = append(opts, llm.WithBaseURL(cfg.LLM.BaseURL))
		}
		return llm.NewClient(provider, cfg.APIKeyFor(provider), model, opts...)
	}
}

func registerModels(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*question.Generator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client, err := newQuestionClient(cfg)
		if err != nil {
			slog.Warn("question model unavailable, using canned questions", "model", cfg.LLM.Model, "error", err)
			client = unavailableClient{err: err}
		}
		return question.NewGenerator(client), nil
	})

	do.Provide(injector, func(i do.Injector) (*summary.Summarizer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.Assessment.Enabled {
			return nil, fmt.Errorf("assessment disabled")
		}
		store := do.MustInvoke[*storage.SQLiteStore](i)
		return summary.New(cfg.Assessment, modelFactory(cfg), store), nil
	})

	do.Provide(injector, func(i do.Injector) (transcribe.Transcriber, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return transcribe.New(context.Background(), transcribe.Config{
			Provider:              cfg.STT.Provider,
			Model:                 cfg.STT.Model,
			Language:              cfg.STT.Language,
			BaseURL:               cfg.STT.BaseURL,
			OpenAIKey:             cfg.Secrets.OpenAIAPIKey,
			DeepgramKey:           cfg.Secrets.DeepgramAPIKey,
			GoogleProjectID:       cfg.STT.GoogleProjectID,
			GoogleLocation:        cfg.STT.GoogleLocation,
			GoogleCredentialsFile: cfg.CredentialsFile(),
		})
	})
}

func newQuestionClient(cfg *config.Config) (llm.Client, error) {
	provider, model, err := llm.ParseModel(cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	opts := []llm.Option{llm.WithTemperature(cfg.LLM.Temperature), llm.WithMaxTokens(cfg.LLM.MaxTokens)}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	return llm.NewClient(provider, cfg.APIKeyFor(provider), model, opts...)
}

func registerAudio(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*audio.Mic, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return openMic(cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
	})

	do.Provide(injector, func(i do.Injector) (*audio.Recorder, error) {
		cfg := do.MustInvoke[*config.Config](i)
		mic, err := do.Invoke[*audio.Mic](i)
		if err != nil {
			return nil, err
		}
		threshold := calibrate(mic, cfg)
		return recorderFor(mic, mic.SampleRate(), threshold, cfg), nil
	})

	do.Provide(injector, func(i do.Injector) (*audio.Listener, error) {
		cfg := do.MustInvoke[*config.Config](i)
		mic, err := do.Invoke[*audio.Mic](i)
		if err != nil {
			return nil, err
		}
		rec, err := do.Invoke[*audio.Recorder](i)
		if err != nil {
			return nil, err
		}
		return audio.NewListener(mic, rec.Stats().Threshold, cfg.Audio.InterruptFrames), nil
	})

	do.Provide(injector, func(i do.Injector) (*audio.Archive, error) {
		cfg := do.MustInvoke[*config.Config](i)
		mic, err := do.Invoke[*audio.Mic](i)
		if err != nil {
			return nil, err
		}
		return audio.NewArchive(cfg.AudioDir, mic.SampleRate()), nil
	})
}

func recorderFor(src audio.FrameSource, sampleRate int, threshold float64, cfg *config.Config) *audio.Recorder {
	return audio.NewRecorder(src, sampleRate, threshold, cfg.ParsedSilenceDuration(),
		audio.WithSpeechTimeout(cfg.ParsedSpeechTimeout()))
}

// openMic tries the configured rate first, then common hardware rates.
func openMic(preferred, framesPerBuffer int) (*audio.Mic, error) {
	var lastErr error
	for _, rate := range sampleRateCandidates(preferred) {
		mic, err := audio.NewMic(rate, framesPerBuffer)
		if err != nil {
			slog.Warn("microphone open failed", "sample_rate", rate, "error", err)
			lastErr = err
			continue
		}
		slog.Info("microphone opened", "sample_rate", rate)
		return mic, nil
	}
	return nil, fmt.Errorf("open microphone: %w", lastErr)
}

func sampleRateCandidates(preferred int) []int {
	defaults := []int{audio.DefaultSampleRate, 48000, 44100, 32000, 24000}
	combined := make([]int, 0, len(defaults)+1)
	if preferred > 0 {
		combined = append(combined, preferred)
	}
	combined = append(combined, defaults...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

func calibrate(mic *audio.Mic, cfg *config.Config) float64 {
	floor := cfg.Audio.SilenceThreshold
	d := cfg.ParsedCalibrateDuration()
	if d <= 0 {
		return floor
	}

	fmt.Printf("Calibrating microphone for %s, please stay quiet...\n", d)
	ctx, cancel := context.WithTimeout(context.Background(), d+5*time.Second)
	defer cancel()
	threshold, err := audio.Calibrate(ctx, mic, mic.SampleRate(), d, floor)
	if err != nil {
		slog.Warn("microphone calibration failed, using configured threshold", "threshold", floor, "error", err)
		return floor
	}
	slog.Info("microphone calibrated", "threshold", threshold)
	return threshold
}

func registerSpeech(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (speech.Engine, error) {
		return newEngine(do.MustInvoke[*config.Config](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*speech.Worker, error) {
		return speech.NewWorker(do.MustInvoke[speech.Engine](i)), nil
	})
}

func newEngine(cfg *config.Config) speech.Engine {
	if cfg.TTS.Engine == "openai" {
		opts := []speech.OpenAIOption{}
		if cfg.TTS.Model != "" {
			opts = append(opts, speech.WithSpeechModel(cfg.TTS.Model))
		}
		if cfg.TTS.Voice != "" {
			opts = append(opts, speech.WithVoice(cfg.TTS.Voice))
		}
		if len(cfg.TTS.Player) > 0 {
			opts = append(opts, speech.WithPlayer(cfg.TTS.Player...))
		}
		engine, err := speech.NewOpenAIEngine(cfg.Secrets.OpenAIAPIKey, opts...)
		if err == nil {
			return engine
		}
		slog.Warn("openai speech unavailable, using command engine", "error", err)
	}

	name, args := speech.DefaultCommand()
	if len(cfg.TTS.Command) > 0 {
		name, args = cfg.TTS.Command[0], cfg.TTS.Command[1:]
	}
	return speech.NewCommandEngine(name, args...)
}

// turnDeps resolves the collaborators of one exchange. The microphone and
// the transcriber are required; audio archiving is optional.
func turnDeps(injector do.Injector, events interview.Broadcaster) (interview.TurnDeps, error) {
	cfg := do.MustInvoke[*config.Config](injector)

	recorder, err := do.Invoke[*audio.Recorder](injector)
	if err != nil {
		return interview.TurnDeps{}, err
	}
	listener, err := do.Invoke[*audio.Listener](injector)
	if err != nil {
		return interview.TurnDeps{}, err
	}
	stt, err := do.Invoke[transcribe.Transcriber](injector)
	if err != nil {
		return interview.TurnDeps{}, fmt.Errorf("speech-to-text: %w", err)
	}

	deps := interview.TurnDeps{
		Questions:   do.MustInvoke[*question.Generator](injector),
		Speaker:     do.MustInvoke[*speech.Worker](injector),
		Interrupter: listener,
		Recorder:    recorder,
		Transcriber: stt,
		Saver:       do.MustInvoke[*storage.StateStore](injector),
		Events:      events,
	}
	if cfg.ArchiveAudio {
		deps.Archive = do.MustInvoke[*audio.Archive](injector)
	}
	return deps, nil
}
