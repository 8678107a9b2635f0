// Package llm provides text generation backends for prospect replies.
//
// Every backend satisfies dialogue.Generator and reports failures with one of
// the sentinel errors below so callers can tell an unreachable backend from a
// malformed or empty answer.
package llm

import (
	"errors"
	"strings"
)

var (
	// ErrUnavailable means the backend could not be reached or refused the request.
	ErrUnavailable = errors.New("generation backend unavailable")
	// ErrMalformed means the backend answered with data that could not be decoded.
	ErrMalformed = errors.New("generation backend returned malformed data")
	// ErrEmpty means the backend answered without usable text.
	ErrEmpty = errors.New("generation backend returned no text")
)

// Provider names accepted by configuration.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGRPC      = "grpc"
	ProviderNone      = "none"
)

// ValidProvider reports whether name is a known provider.
func ValidProvider(name string) bool {
	switch name {
	case ProviderOllama, ProviderAnthropic, ProviderGRPC, ProviderNone:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
