package api

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/callcoach/internal/domain"
	"github.com/ashureev/callcoach/internal/identity"
	"github.com/ashureev/callcoach/internal/persona"
	"github.com/ashureev/callcoach/internal/scoring"
	"github.com/ashureev/callcoach/internal/shared"
	"github.com/ashureev/callcoach/internal/store"
)

const (
	maxSeed          = 10_000_000
	defaultListLimit = 20
	maxListLimit     = 100
)

// SessionHandler handles practice session endpoints.
type SessionHandler struct {
	*Handler
	seed  func() int64
	newID func() string
	now   func() time.Time
}

// NewSessionHandler creates a session handler with random seeds and UUIDs.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{
		Handler: base,
		seed:    func() int64 { return rand.Int64N(maxSeed) + 1 },
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Post("/score", h.Score)
		r.Get("/{sessionID}", h.Get)
		r.Post("/{sessionID}/complete", h.Complete)
	})
}

type createSessionRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Seed      int64  `json:"seed"`
}

// sessionView is the public shape of a stored session. Persona fields are
// flattened into the top level.
type sessionView struct {
	SessionID       string `json:"session_id"`
	Seed            int64  `json:"seed"`
	DurationMinutes int    `json:"duration_minutes"`
	domain.Persona
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Score       *domain.ScoreReport `json:"score,omitempty"`
}

func newSessionView(s *domain.Session) sessionView {
	return sessionView{
		SessionID:       s.ID,
		Seed:            s.Seed,
		DurationMinutes: s.DurationMinutes,
		Persona:         s.Persona,
		CreatedAt:       s.CreatedAt,
		CompletedAt:     s.CompletedAt,
		Score:           s.Score,
	}
}

type scoreRequest struct {
	Transcript []domain.TranscriptEntry `json:"transcript"`
	Outcomes   domain.OutcomeFlags      `json:"outcomes"`
}

func (h *SessionHandler) recentWindow() int {
	if h.cfg == nil {
		return 20
	}
	return h.cfg.RecentObjectionWindow
}

// Create starts a new practice session with a freshly generated persona.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	traineeID := identity.TraineeIDFromContext(r.Context())

	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if !domain.ValidDuration(req.DurationMinutes) {
		Error(w, http.StatusBadRequest, "duration_minutes must be between 1 and 30")
		return
	}

	ctx := r.Context()
	var recent []string
	if window := h.recentWindow(); window > 0 {
		objections, err := h.repo.RecentObjections(ctx, traineeID, window)
		if err != nil {
			slog.Error("Failed to load recent objections", "error", err, "trainee_id", traineeID)
			Error(w, http.StatusInternalServerError, "failed to load recent sessions")
			return
		}
		recent = objections
	}

	seed := h.seed()
	session := &domain.Session{
		ID:              h.newID(),
		TraineeID:       traineeID,
		Seed:            seed,
		DurationMinutes: req.DurationMinutes,
		Persona:         persona.Generate(seed, persona.RecentFromObjections(recent)),
		CreatedAt:       h.now(),
	}

	err := shared.RetryOnConflict(ctx, h.retryPolicy(), "create session", func() error {
		return h.repo.CreateSession(ctx, session)
	})
	if err != nil {
		slog.Error("Failed to create session", "error", err, "trainee_id", traineeID)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	slog.Info("Session created",
		"session_id", session.ID,
		"trainee_id", traineeID,
		"seed", seed,
		"primary_objection", session.Persona.PrimaryObjection)
	JSON(w, http.StatusCreated, createSessionResponse{SessionID: session.ID, Seed: seed})
}

// List returns the calling trainee's most recent sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	traineeID := identity.TraineeIDFromContext(r.Context())

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	sessions, err := h.repo.ListSessions(r.Context(), traineeID, limit)
	if err != nil {
		slog.Error("Failed to list sessions", "error", err, "trainee_id", traineeID)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// Get returns one session owned by the caller.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, newSessionView(session))
}

// Complete scores a finished call and stores the result.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := domain.ValidateTranscript(req.Transcript); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	session, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	report := scoring.Score(req.Transcript, req.Outcomes)
	err := shared.RetryOnConflict(ctx, h.retryPolicy(), "complete session", func() error {
		return h.repo.CompleteSession(ctx, session.ID, req.Transcript, report, h.now())
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "session_not_found")
		return
	case errors.Is(err, store.ErrAlreadyCompleted):
		Error(w, http.StatusConflict, "session_already_completed")
		return
	case err != nil:
		slog.Error("Failed to complete session", "error", err, "session_id", session.ID)
		Error(w, http.StatusInternalServerError, "failed to store score")
		return
	}

	slog.Info("Session completed", "session_id", session.ID, "total_score", report.TotalScore)
	JSON(w, http.StatusOK, report)
}

// Score evaluates a transcript without touching any stored session.
func (h *SessionHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := domain.ValidateTranscript(req.Transcript); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	JSON(w, http.StatusOK, scoring.Score(req.Transcript, req.Outcomes))
}

// loadOwned fetches the session named in the URL and writes a 404 unless it
// belongs to the calling trainee.
func (h *SessionHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	traineeID := identity.TraineeIDFromContext(r.Context())

	session, err := h.repo.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && session.TraineeID != traineeID) {
		Error(w, http.StatusNotFound, "session_not_found")
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to get session", "error", err, "session_id", id)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return session, true
}
