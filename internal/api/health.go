package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/callcoach/internal/health"
	"github.com/ashureev/callcoach/internal/store"
)

// RuntimeProbe reports on the speech and generation dependencies.
type RuntimeProbe func(ctx context.Context) health.Report

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	timeout time.Duration
	runtime RuntimeProbe
}

// NewHealthHandler creates a new health handler. runtime may be nil, in
// which case /runtime/health is not served.
func NewHealthHandler(repo store.Repository, timeout time.Duration, runtime RuntimeProbe) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{repo: repo, timeout: timeout, runtime: runtime}
}

// RegisterRoutes registers the health routes.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	if h.runtime != nil {
		r.Get("/runtime/health", h.Runtime)
	}
}

// Health returns the health status of the API and its database.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status": "ok",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// Runtime reports whether the external runtimes are usable. It always
// answers 200; the body carries the verdict.
func (h *HealthHandler) Runtime(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	JSON(w, http.StatusOK, h.runtime(ctx))
}
