package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Ghost Interviewer environment
// variables. Vendor API keys use their usual unprefixed names.
const EnvPrefix = "GHOST_INTERVIEWER_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	StateDir      string `yaml:"state_dir" env:"STATE_DIR"`
	TranscriptDir string `yaml:"transcript_dir" env:"TRANSCRIPT_DIR"`
	AudioDir      string `yaml:"audio_dir" env:"AUDIO_DIR"`
	ArchiveAudio  bool   `yaml:"archive_audio" env:"ARCHIVE_AUDIO"`
	DBPath        string `yaml:"db_path" env:"DB_PATH"`

	Phases            []string       `yaml:"phases" env:"PHASES"`
	QuestionsPerPhase map[string]int `yaml:"questions_per_phase" env:"QUESTIONS_PER_PHASE"`

	AutosaveInterval  string `yaml:"autosave_interval" env:"AUTOSAVE_INTERVAL"`
	RetentionDays     int    `yaml:"retention_days" env:"RETENTION_DAYS"`
	FinalizeTimeout   string `yaml:"finalize_timeout" env:"FINALIZE_TIMEOUT"`
	MaxAnswerDuration string `yaml:"max_answer_duration" env:"MAX_ANSWER_DURATION"`

	Audio      Audio      `yaml:"audio" envPrefix:"AUDIO_"`
	LLM        LLM        `yaml:"llm" envPrefix:"LLM_"`
	TTS        TTS        `yaml:"tts" envPrefix:"TTS_"`
	STT        STT        `yaml:"stt" envPrefix:"STT_"`
	Assessment Assessment `yaml:"assessment" envPrefix:"ASSESSMENT_"`

	HTTPAddr              string `yaml:"http_addr" env:"HTTP_ADDR"`
	GDriveFolderID        string `yaml:"gdrive_folder_id" env:"GDRIVE_FOLDER_ID"`
	GoogleCredentialsFile string `yaml:"google_credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	Secrets Secrets `yaml:"-" env:"-"`
}

// Audio configures capture and silence detection.
type Audio struct {
	SampleRate        int     `yaml:"sample_rate" env:"SAMPLE_RATE"`
	FramesPerBuffer   int     `yaml:"frames_per_buffer" env:"FRAMES_PER_BUFFER"`
	SilenceDuration   string  `yaml:"silence_duration" env:"SILENCE_DURATION"`
	SilenceThreshold  float64 `yaml:"silence_threshold" env:"SILENCE_THRESHOLD"`
	SpeechTimeout     string  `yaml:"speech_timeout" env:"SPEECH_TIMEOUT"`
	CalibrateDuration string  `yaml:"calibrate_duration" env:"CALIBRATE_DURATION"`
	InterruptFrames   int     `yaml:"interrupt_frames" env:"INTERRUPT_FRAMES"`
	MinAnswerBytes    int     `yaml:"min_answer_bytes" env:"MIN_ANSWER_BYTES"`
}

// LLM configures the question generator. Model is "provider/model".
type LLM struct {
	Model       string  `yaml:"model" env:"MODEL"`
	BaseURL     string  `yaml:"base_url" env:"BASE_URL"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS"`
}

type TTS struct {
	Engine  string   `yaml:"engine" env:"ENGINE"`
	Command []string `yaml:"command" env:"COMMAND"`
	Model   string   `yaml:"model" env:"MODEL"`
	Voice   string   `yaml:"voice" env:"VOICE"`
	Player  []string `yaml:"player" env:"PLAYER"`
}

type STT struct {
	Provider        string `yaml:"provider" env:"PROVIDER"`
	Model           string `yaml:"model" env:"MODEL"`
	Language        string `yaml:"language" env:"LANGUAGE"`
	BaseURL         string `yaml:"base_url" env:"BASE_URL"`
	GoogleProjectID string `yaml:"google_project_id" env:"GOOGLE_PROJECT_ID"`
	GoogleLocation  string `yaml:"google_location" env:"GOOGLE_LOCATION"`
}

// Assessment configures the post-interview summary. With more than one
// preset, a router picks the rubric that best fits the transcript.
type Assessment struct {
	Enabled bool              `yaml:"enabled" env:"ENABLED"`
	Model   string            `yaml:"model" env:"MODEL"`
	Presets map[string]Preset `yaml:"presets" env:"-"`
}

type Preset struct {
	Description  string `yaml:"description"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	UserTemplate string `yaml:"user_template"`
}

// Secrets come from the vendor environment variables only.
type Secrets struct {
	OpenAIAPIKey          string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey       string `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey          string `env:"GEMINI_API_KEY"`
	DeepgramAPIKey        string `env:"DEEPGRAM_API_KEY"`
	GoogleCredentialsPath string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

const defaultAssessmentSystemPrompt = `You are a senior hiring manager reviewing a job interview transcript.
Write a concise, fair assessment of the candidate in Markdown.`

const defaultAssessmentTemplate = `Interview date: {{date}}

Transcript:
{{transcript}}

Write sections: Summary, Strengths, Concerns, Recommendation (hire / no hire / needs follow-up).`

var defaultPhases = []string{"warmup", "technical", "behavioral", "situational", "closing"}

func defaults() Config {
	return Config{
		StateDir:      "data/sessions",
		TranscriptDir: "data/transcripts",
		AudioDir:      "data/audio",
		DBPath:        "data/ghost-interviewer.db",

		Phases: slices.Clone(defaultPhases),
		QuestionsPerPhase: map[string]int{
			"warmup": 1, "technical": 2, "behavioral": 1, "situational": 1, "closing": 1,
		},

		AutosaveInterval:  "60s",
		RetentionDays:     7,
		FinalizeTimeout:   "2m",
		MaxAnswerDuration: "120s",

		Audio: Audio{
			SampleRate:        16000,
			FramesPerBuffer:   960,
			SilenceDuration:   "2s",
			SilenceThreshold:  500,
			SpeechTimeout:     "8s",
			CalibrateDuration: "0s",
			InterruptFrames:   3,
			MinAnswerBytes:    2000,
		},
		LLM: LLM{
			Model:       "ollama/llama3.2",
			BaseURL:     "http://localhost:11434/v1",
			Temperature: 0.7,
			MaxTokens:   200,
		},
		TTS: TTS{Engine: "command"},
		STT: STT{Provider: "whisper", Language: "en", GoogleLocation: "global"},
		Assessment: Assessment{
			Enabled: true,
			Model:   "ollama/llama3.2",
			Presets: map[string]Preset{
				"default": {
					Description:  "General interview assessment",
					SystemPrompt: defaultAssessmentSystemPrompt,
					UserTemplate: defaultAssessmentTemplate,
				},
			},
		},

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := env.Parse(&cfg.Secrets); err != nil {
		return cfg, nil, fmt.Errorf("parse secrets: %w", err)
	}

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

func (c *Config) ParsedAutosaveInterval() time.Duration {
	return parseDuration(c.AutosaveInterval, 60*time.Second)
}

func (c *Config) ParsedFinalizeTimeout() time.Duration {
	return parseDuration(c.FinalizeTimeout, 2*time.Minute)
}

func (c *Config) ParsedMaxAnswerDuration() time.Duration {
	return parseDuration(c.MaxAnswerDuration, 120*time.Second)
}

func (c *Config) ParsedSilenceDuration() time.Duration {
	return parseDuration(c.Audio.SilenceDuration, 2*time.Second)
}

// ParsedSpeechTimeout is how long an answer may take to start before the
// recording is given up as empty.
func (c *Config) ParsedSpeechTimeout() time.Duration {
	return parseDuration(c.Audio.SpeechTimeout, 8*time.Second)
}

// ParsedCalibrateDuration returns zero when calibration is disabled.
func (c *Config) ParsedCalibrateDuration() time.Duration {
	d, err := time.ParseDuration(c.Audio.CalibrateDuration)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// QuestionsFor returns the number of exchanges for phase, at least one.
func (c *Config) QuestionsFor(phase string) int {
	if n := c.QuestionsPerPhase[phase]; n > 0 {
		return n
	}
	return 1
}

// APIKeyFor returns the secret used by an llm provider.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.Secrets.OpenAIAPIKey
	case "anthropic":
		return c.Secrets.AnthropicAPIKey
	case "gemini":
		return c.Secrets.GeminiAPIKey
	}
	return ""
}

// CredentialsFile prefers the explicit setting over
// GOOGLE_APPLICATION_CREDENTIALS.
func (c *Config) CredentialsFile() string {
	if c.GoogleCredentialsFile != "" {
		return c.GoogleCredentialsFile
	}
	return c.Secrets.GoogleCredentialsPath
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func validate(cfg *Config) []string {
	var warnings []string

	durations := []struct {
		key, value, fallback string
	}{
		{"autosave_interval", cfg.AutosaveInterval, "60s"},
		{"finalize_timeout", cfg.FinalizeTimeout, "2m"},
		{"max_answer_duration", cfg.MaxAnswerDuration, "120s"},
		{"audio.silence_duration", cfg.Audio.SilenceDuration, "2s"},
	}
	for _, d := range durations {
		if v, err := time.ParseDuration(d.value); err != nil || v <= 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q, using default %s.", d.key, d.value, d.fallback))
		}
	}

	if len(cfg.Phases) == 0 {
		warnings = append(warnings, "No interview phases configured, using the default phases.")
		cfg.Phases = slices.Clone(defaultPhases)
	}
	for phase := range cfg.QuestionsPerPhase {
		if !slices.Contains(cfg.Phases, phase) {
			warnings = append(warnings, fmt.Sprintf("questions_per_phase names unknown phase %q.", phase))
		}
	}
	if cfg.RetentionDays < 1 {
		warnings = append(warnings, fmt.Sprintf("Invalid retention_days %d, using 7.", cfg.RetentionDays))
		cfg.RetentionDays = 7
	}

	provider, _, _ := strings.Cut(cfg.LLM.Model, "/")
	if provider != "ollama" && cfg.APIKeyFor(provider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for llm provider %q, questions will use the canned fallbacks.", provider))
	}
	switch cfg.STT.Provider {
	case "whisper", "openai", "":
		if cfg.Secrets.OpenAIAPIKey == "" {
			warnings = append(warnings, "OPENAI_API_KEY not set, whisper transcription is unavailable.")
		}
	case "deepgram":
		if cfg.Secrets.DeepgramAPIKey == "" {
			warnings = append(warnings, "DEEPGRAM_API_KEY not set, deepgram transcription is unavailable.")
		}
	}
	if cfg.TTS.Engine == "openai" && cfg.Secrets.OpenAIAPIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY not set, falling back to the command speech engine.")
	}
	if cfg.GDriveFolderID != "" && cfg.CredentialsFile() == "" {
		warnings = append(warnings, "gdrive_folder_id set without google credentials, uploads are disabled.")
	}

	return warnings
}
