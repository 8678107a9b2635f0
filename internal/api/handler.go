// Package api provides HTTP handlers for the call coaching API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ashureev/callcoach/internal/config"
	"github.com/ashureev/callcoach/internal/shared"
	"github.com/ashureev/callcoach/internal/store"
)

// maxJSONBody caps JSON request bodies. Transcripts are the largest payload.
const maxJSONBody = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo store.Repository
	cfg  *config.Config
}

// NewHandler creates a new Handler with common dependencies. cfg may be nil,
// in which case built-in defaults apply.
func NewHandler(repo store.Repository, cfg *config.Config) *Handler {
	return &Handler{
		repo: repo,
		cfg:  cfg,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func (h *Handler) retryPolicy() shared.RetryPolicy {
	if h.cfg == nil {
		return shared.DefaultRetryPolicy
	}
	return shared.RetryPolicy{
		MaxRetries: h.cfg.Retry.MaxRetries,
		BaseDelay:  h.cfg.Retry.BaseDelay,
	}
}
