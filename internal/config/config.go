// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	AllowedOrigins []string
	LogLevel       string

	Store     StoreConfig
	LLM       LLMConfig
	Speech    SpeechConfig
	Timeout   TimeoutConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig
	Retention RetentionConfig

	// RecentObjectionWindow is how many of a trainee's latest sessions are
	// consulted when choosing a new persona's objection.
	RecentObjectionWindow int
	// MaxAudioBytes caps uploaded and streamed audio.
	MaxAudioBytes int64
}

// StoreConfig selects and configures the session repository.
type StoreConfig struct {
	Driver        string
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LLMConfig selects the prospect text generation backend.
type LLMConfig struct {
	Provider          string
	OllamaBaseURL     string
	OllamaModel       string
	OllamaTemperature float64
	AnthropicAPIKey   string
	AnthropicModel    string
	AnthropicBaseURL  string
	GRPCAddr          string
}

// SpeechConfig configures the STT and TTS command line tools.
type SpeechConfig struct {
	WhisperCmdTemplate string
	PiperCmdTemplate   string
	PiperVoicePath     string
	RuntimeIODir       string
	Container          string // run tools inside this container instead of on the host
	ContainerUser      string
}

// TimeoutConfig bounds calls to external dependencies.
type TimeoutConfig struct {
	LLM         time.Duration
	Speech      time.Duration
	HealthCheck time.Duration
}

// RetryConfig controls retries of conflicting database writes.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// RateLimitConfig is the per-trainee sliding window for expensive endpoints.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RetentionConfig controls the background sweeper. A zero Max keeps
// sessions forever.
type RetentionConfig struct {
	Max           time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8000"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
			DBPath:        getEnv("DB_PATH", "./data/app.db"),
			RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisPrefix:   getEnv("REDIS_PREFIX", "callcoach"),
		},
		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", "ollama")),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://127.0.0.1:11434"),
			OllamaModel:       getEnv("OLLAMA_MODEL", "mistral:7b"),
			OllamaTemperature: getEnvFloat("OLLAMA_TEMPERATURE", 0.35),
			AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:    getEnv("ANTHROPIC_MODEL", ""),
			AnthropicBaseURL:  getEnv("ANTHROPIC_BASE_URL", ""),
			GRPCAddr:          getEnv("PROSPECT_GRPC_ADDR", "localhost:50051"),
		},
		Speech: SpeechConfig{
			WhisperCmdTemplate: getEnv("WHISPER_CMD_TEMPLATE", ""),
			PiperCmdTemplate:   getEnv("PIPER_CMD_TEMPLATE", ""),
			PiperVoicePath:     getEnv("PIPER_VOICE_PATH", ""),
			RuntimeIODir:       getEnv("RUNTIME_IO_DIR", "./data/runtime_io"),
			Container:          getEnv("SPEECH_CONTAINER", ""),
			ContainerUser:      getEnv("SPEECH_CONTAINER_USER", ""),
		},
		Timeout: TimeoutConfig{
			LLM:         getEnvDuration("LLM_TIMEOUT", 15*time.Second),
			Speech:      getEnvDuration("SPEECH_TIMEOUT", 60*time.Second),
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		Retry: RetryConfig{
			MaxRetries: getEnvInt("DB_MAX_RETRIES", 3),
			BaseDelay:  getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Retention: RetentionConfig{
			Max:           getEnvDuration("SESSION_RETENTION", 0),
			SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
		RecentObjectionWindow: getEnvInt("RECENT_OBJECTION_WINDOW", 20),
		MaxAudioBytes:         int64(getEnvInt("MAX_AUDIO_BYTES", 10<<20)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.DBPath == "" {
			return errors.New("DB_PATH cannot be empty")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("REDIS_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreSQLite, StoreRedis, c.Store.Driver)
	}
	switch c.LLM.Provider {
	case "ollama", "anthropic", "grpc", "none":
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of ollama, anthropic, grpc, none, got %q", c.LLM.Provider)
	}
	if c.LLM.OllamaTemperature < 0 || c.LLM.OllamaTemperature > 2 {
		return errors.New("OLLAMA_TEMPERATURE must be within [0, 2]")
	}
	if c.Speech.RuntimeIODir == "" {
		return errors.New("RUNTIME_IO_DIR cannot be empty")
	}
	if c.Timeout.LLM <= 0 || c.Timeout.Speech <= 0 || c.Timeout.HealthCheck <= 0 {
		return errors.New("timeouts must be > 0")
	}
	if c.Retry.MaxRetries <= 0 {
		return errors.New("DB_MAX_RETRIES must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Retention.Max < 0 {
		return errors.New("SESSION_RETENTION cannot be negative")
	}
	if c.Retention.Max > 0 && c.Retention.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be > 0 when SESSION_RETENTION is set")
	}
	if c.RecentObjectionWindow < 0 {
		return errors.New("RECENT_OBJECTION_WINDOW cannot be negative")
	}
	if c.MaxAudioBytes <= 0 {
		return errors.New("MAX_AUDIO_BYTES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
