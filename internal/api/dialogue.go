package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/callcoach/internal/dialogue"
	"github.com/ashureev/callcoach/internal/domain"
)

// DialogueHandler serves single stateless dialogue turns.
type DialogueHandler struct {
	engine  *dialogue.Engine
	limiter *RateLimiter
}

// NewDialogueHandler creates a dialogue handler. limiter may be nil.
func NewDialogueHandler(engine *dialogue.Engine, limiter *RateLimiter) *DialogueHandler {
	return &DialogueHandler{engine: engine, limiter: limiter}
}

// RegisterRoutes registers dialogue routes.
func (h *DialogueHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware)
		}
		r.Post("/dialogue/turn", h.Turn)
	})
}

// turnRequest carries the caller's view of the prospect. Missing trust or
// resistance start from the default disposition.
type turnRequest struct {
	Trust            *float64 `json:"trust"`
	Resistance       *float64 `json:"resistance"`
	TraineeText      string   `json:"trainee_text"`
	PrimaryObjection string   `json:"primary_objection"`
}

type turnResponse struct {
	Text       string           `json:"text"`
	Trust      float64          `json:"trust"`
	Resistance float64          `json:"resistance"`
	Mode       domain.ReplyMode `json:"mode"`
}

// Turn advances the prospect by one trainee utterance.
func (h *DialogueHandler) Turn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_json")
		return
	}

	state := domain.DefaultProspectState
	if req.Trust != nil {
		state.Trust = *req.Trust
	}
	if req.Resistance != nil {
		state.Resistance = *req.Resistance
	}
	if !state.InRange() {
		Error(w, http.StatusBadRequest, "trust and resistance must be between 0 and 1")
		return
	}
	if strings.TrimSpace(req.TraineeText) == "" {
		Error(w, http.StatusBadRequest, "trainee_text is required")
		return
	}

	turn := h.engine.Respond(r.Context(), state, req.TraineeText, req.PrimaryObjection)
	JSON(w, http.StatusOK, turnResponse{
		Text:       turn.Text,
		Trust:      turn.NextState.Trust,
		Resistance: turn.NextState.Resistance,
		Mode:       turn.Mode,
	})
}
