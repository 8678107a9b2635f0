package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/callcoach/internal/config"
)

// Backend is a generation backend that can also be probed for readiness.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Check(ctx context.Context) error
}

// NewBackend builds the backend named by cfg.Provider. ProviderNone yields a
// nil backend. The returned func releases backend resources and is never nil.
func NewBackend(cfg config.LLMConfig, timeout time.Duration, logger *slog.Logger) (Backend, func(), error) {
	noop := func() {}

	switch cfg.Provider {
	case ProviderNone, "":
		return nil, noop, nil
	case ProviderOllama:
		c := NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel, timeout)
		c.Temperature = cfg.OllamaTemperature
		return c, noop, nil
	case ProviderAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:     cfg.AnthropicAPIKey,
			Model:      cfg.AnthropicModel,
			BaseURL:    cfg.AnthropicBaseURL,
			MaxRetries: 1,
		}), noop, nil
	case ProviderGRPC:
		c, err := NewGRPCClient(DefaultGRPCConfig(cfg.GRPCAddr), logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
