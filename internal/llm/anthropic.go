package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

const (
	anthropicMaxTokens   = 128
	anthropicTemperature = 0.35
	prospectSystemPrompt = "You play the prospect on a B2B sales practice call. " +
		"Answer with a single short spoken sentence and nothing else."
)

// AnthropicConfig configures the hosted Claude backend.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
}

// AnthropicClient generates replies with the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	hasKey bool
}

// NewAnthropicClient creates a client. An empty API key falls back to the
// ANTHROPIC_API_KEY environment variable read by the SDK.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
		hasKey: cfg.APIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != "",
	}
}

// Check reports whether an API key is available. It does not call the API.
func (c *AnthropicClient) Check(context.Context) error {
	if !c.hasKey {
		return errors.New("ANTHROPIC_API_KEY is not set")
	}
	return nil
}

// Generate sends the prompt as a single user message.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(anthropicTemperature),
		System: []anthropic.TextBlockParam{
			{Text: prospectSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: claude status=%d", ErrUnavailable, apiErr.StatusCode)
		}
		return "", fmt.Errorf("%w: claude request failed: %v", ErrUnavailable, err)
	}

	text := strings.TrimSpace(extractText(message))
	if text == "" {
		return "", fmt.Errorf("%w: empty response from claude", ErrEmpty)
	}
	return text, nil
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
