// Package speech adapts external speech-to-text and text-to-speech command
// line tools.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means the adapter has no command template.
	ErrNotConfigured = errors.New("speech command is not configured")
	// ErrCommandFailed means the external tool exited with a non-zero status
	// or could not be started.
	ErrCommandFailed = errors.New("speech command failed")
	// ErrNoOutput means the tool succeeded but produced nothing usable.
	ErrNoOutput = errors.New("speech command produced no output")
	// ErrVoiceMissing means the configured Piper voice file does not exist.
	ErrVoiceMissing = errors.New("piper voice file not found")
)

// PendingTranscript is returned by the placeholder transcriber.
const PendingTranscript = "[transcript_pending]"

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns text into WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// PlaceholderTranscriber stands in when no STT tool is configured.
type PlaceholderTranscriber struct{}

// Transcribe returns PendingTranscript for any non-empty audio.
func (PlaceholderTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	return PendingTranscript, nil
}

// PlaceholderSynthesizer stands in when no TTS tool is configured.
type PlaceholderSynthesizer struct{}

// Synthesize echoes the text as UTF-8 bytes.
func (PlaceholderSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}
	return []byte(text), nil
}
