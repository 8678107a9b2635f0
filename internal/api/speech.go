package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/callcoach/internal/speech"
)

// multipartOverhead is the slack allowed on top of the audio cap for form
// boundaries and headers.
const multipartOverhead = 64 << 10

// SpeechHandler exposes the STT and TTS adapters.
type SpeechHandler struct {
	stt      speech.Transcriber
	tts      speech.Synthesizer
	maxAudio int64
	timeout  time.Duration
	limiter  *RateLimiter
}

// NewSpeechHandler creates a speech handler. limiter may be nil.
func NewSpeechHandler(stt speech.Transcriber, tts speech.Synthesizer, maxAudio int64, timeout time.Duration, limiter *RateLimiter) *SpeechHandler {
	return &SpeechHandler{
		stt:      stt,
		tts:      tts,
		maxAudio: maxAudio,
		timeout:  timeout,
		limiter:  limiter,
	}
}

// RegisterRoutes registers speech routes.
func (h *SpeechHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware)
		}
		r.Post("/stt/transcribe", h.Transcribe)
		r.Post("/tts/synthesize", h.Synthesize)
	})
}

func (h *SpeechHandler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

// Transcribe converts an uploaded audio file to text.
func (h *SpeechHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudio+multipartOverhead)
	file, _, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "audio_too_large")
			return
		}
		Error(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, h.maxAudio+1))
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read audio")
		return
	}
	if int64(len(audio)) > h.maxAudio {
		Error(w, http.StatusRequestEntityTooLarge, "audio_too_large")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	text, err := h.stt.Transcribe(ctx, audio)
	if err != nil {
		slog.Warn("Transcription failed", "error", err, "bytes", len(audio))
		Error(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"text": text})
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// Synthesize renders text as WAV audio.
func (h *SpeechHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	wav, err := h.tts.Synthesize(ctx, req.Text)
	if err != nil {
		slog.Warn("Synthesis failed", "error", err)
		Error(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(wav); err != nil {
		slog.Debug("Failed to write audio response", "error", err)
	}
}
