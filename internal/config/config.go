// Package config reads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by the *_BACKEND variables.
const (
	BackendOllama  = "ollama"
	BackendOpenAI  = "openai"
	BackendWhisper = "whisper"
	BackendSay     = "say"
	BackendAzure   = "azure"
	BackendNone    = "none"
)

// Config holds application configuration.
type Config struct {
	SessionsDir   string
	TurnDB        string
	SampleRate    int
	MinUtterance  time.Duration
	HistoryPolicy string

	LLMBackend     string
	OllamaURL      string
	OllamaModel    string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	SystemPrompt   string
	OpenAIEndpoint string
	OpenAIKey      string
	OpenAIModel    string

	ASRBackend     string
	WhisperBin     string
	WhisperModel   string
	WhisperLang    string
	WhisperThreads int
	ASREndpoint    string
	ASRKey         string
	ASRModel       string

	TTSBackend  string
	SayVoice    string
	AzureKey    string
	AzureRegion string
	AzureVoice  string
	TTSCacheDir string

	RobotName      string
	RobotOutboxDir string
	BridgeAddr     string
	BridgeStale    time.Duration
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		SessionsDir:    "sessions",
		SampleRate:     16000,
		MinUtterance:   200 * time.Millisecond,
		HistoryPolicy:  "strict",
		LLMBackend:     BackendOllama,
		OllamaURL:      "http://localhost:11434",
		OllamaModel:    "custom_1",
		ConnectTimeout: 3 * time.Second,
		ReadTimeout:    120 * time.Second,
		OpenAIModel:    "gpt-4o-mini",
		ASRBackend:     BackendWhisper,
		WhisperBin:     "whisper-cli",
		WhisperModel:   "bin/ggml-base.en.bin",
		WhisperLang:    "en",
		ASRModel:       "whisper-1",
		TTSBackend:     BackendSay,
		SayVoice:       "Samantha",
		AzureVoice:     "en-US-AvaNeural",
		TTSCacheDir:    ".voicechat-cache",
		RobotName:      "robot",
		BridgeAddr:     ":8765",
		BridgeStale:    2 * time.Minute,
	}
}

// LoadDotEnv loads a .env file into the process environment. A missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// FromEnv is Load with os.LookupEnv.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load builds a Config from lookup, falling back to Defaults for unset
// keys, and validates the result.
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	r := reader{lookup: lookup}

	r.str("SESSIONS_DIR", &cfg.SessionsDir)
	r.str("TURN_DB", &cfg.TurnDB)
	r.integer("SAMPLE_RATE", &cfg.SampleRate)
	r.seconds("MIN_UTTERANCE_SEC", &cfg.MinUtterance)
	r.str("HISTORY_POLICY", &cfg.HistoryPolicy)

	r.str("LLM_BACKEND", &cfg.LLMBackend)
	r.str("OLLAMA_URL", &cfg.OllamaURL)
	r.str("OLLAMA_MODEL", &cfg.OllamaModel)
	r.seconds("CONNECT_TIMEOUT_SEC", &cfg.ConnectTimeout)
	r.seconds("READ_TIMEOUT_SEC", &cfg.ReadTimeout)
	r.str("SYSTEM_PROMPT", &cfg.SystemPrompt)
	r.str("OPENAI_ENDPOINT", &cfg.OpenAIEndpoint)
	r.str("OPENAI_API_KEY", &cfg.OpenAIKey)
	r.str("OPENAI_MODEL", &cfg.OpenAIModel)

	r.str("ASR_BACKEND", &cfg.ASRBackend)
	r.str("WHISPER_BIN", &cfg.WhisperBin)
	r.str("WHISPER_MODEL", &cfg.WhisperModel)
	r.str("WHISPER_LANG", &cfg.WhisperLang)
	r.integer("WHISPER_THREADS", &cfg.WhisperThreads)
	r.str("ASR_ENDPOINT", &cfg.ASREndpoint)
	r.str("ASR_API_KEY", &cfg.ASRKey)
	r.str("ASR_MODEL", &cfg.ASRModel)

	r.str("TTS_BACKEND", &cfg.TTSBackend)
	r.str("SAY_VOICE", &cfg.SayVoice)
	r.str("AZURE_SPEECH_KEY", &cfg.AzureKey)
	r.str("AZURE_SPEECH_REGION", &cfg.AzureRegion)
	r.str("AZURE_VOICE", &cfg.AzureVoice)
	r.str("TTS_CACHE_DIR", &cfg.TTSCacheDir)

	r.str("ROBOT_NAME", &cfg.RobotName)
	r.str("ROBOT_OUTBOX_DIR", &cfg.RobotOutboxDir)
	r.str("BRIDGE_ADDR", &cfg.BridgeAddr)
	r.seconds("BRIDGE_STALE_TURN_SEC", &cfg.BridgeStale)

	if err := errors.Join(r.errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate))
	}
	if c.MinUtterance < 0 {
		errs = append(errs, errors.New("MIN_UTTERANCE_SEC must not be negative"))
	}
	if c.BridgeStale < 0 {
		errs = append(errs, errors.New("BRIDGE_STALE_TURN_SEC must not be negative"))
	}
	switch c.LLMBackend {
	case BackendOllama:
	case BackendOpenAI:
		if c.OpenAIEndpoint == "" || c.OpenAIKey == "" {
			errs = append(errs, errors.New("LLM_BACKEND=openai needs OPENAI_ENDPOINT and OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_BACKEND %q", c.LLMBackend))
	}
	switch c.ASRBackend {
	case BackendWhisper:
	case BackendOpenAI:
		if c.ASREndpoint == "" {
			errs = append(errs, errors.New("ASR_BACKEND=openai needs ASR_ENDPOINT"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ASR_BACKEND %q", c.ASRBackend))
	}
	switch c.TTSBackend {
	case BackendSay, BackendNone:
	case BackendAzure:
		if c.AzureKey == "" || c.AzureRegion == "" {
			errs = append(errs, errors.New("TTS_BACKEND=azure needs AZURE_SPEECH_KEY and AZURE_SPEECH_REGION"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TTS_BACKEND %q", c.TTSBackend))
	}
	return errors.Join(errs...)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) integer(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (r *reader) seconds(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = time.Duration(f * float64(time.Second))
}
