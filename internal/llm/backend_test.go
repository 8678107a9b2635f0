package llm

import (
	"testing"
	"time"

	"github.com/ashureev/callcoach/internal/config"
)

func TestNewBackend(t *testing.T) {
	backend, closeFn, err := NewBackend(config.LLMConfig{Provider: ProviderNone}, time.Second, nil)
	if err != nil || backend != nil || closeFn == nil {
		t.Fatalf("none: got backend=%v err=%v", backend, err)
	}
	closeFn()

	backend, _, err = NewBackend(config.LLMConfig{
		Provider:          ProviderOllama,
		OllamaBaseURL:     "http://127.0.0.1:11434",
		OllamaModel:       "mistral:7b",
		OllamaTemperature: 0.7,
	}, time.Second, nil)
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	ollama, ok := backend.(*OllamaClient)
	if !ok {
		t.Fatalf("expected *OllamaClient, got %T", backend)
	}
	if ollama.Temperature != 0.7 || ollama.Model != "mistral:7b" {
		t.Fatalf("unexpected ollama client %+v", ollama)
	}

	backend, _, err = NewBackend(config.LLMConfig{
		Provider:          ProviderOllama,
		OllamaBaseURL:     "http://127.0.0.1:11434",
		OllamaModel:       "mistral:7b",
		OllamaTemperature: 0,
	}, time.Second, nil)
	if err != nil {
		t.Fatalf("ollama zero temperature: %v", err)
	}
	if got := backend.(*OllamaClient).Temperature; got != 0 {
		t.Fatalf("configured temperature 0 must be kept, got %v", got)
	}

	backend, _, err = NewBackend(config.LLMConfig{Provider: ProviderAnthropic, AnthropicAPIKey: "k"}, time.Second, nil)
	if err != nil {
		t.Fatalf("anthropic: %v", err)
	}
	if _, ok := backend.(*AnthropicClient); !ok {
		t.Fatalf("expected *AnthropicClient, got %T", backend)
	}

	if _, _, err := NewBackend(config.LLMConfig{Provider: "gpt"}, time.Second, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
