// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/callcoach/internal/domain"
)

var (
	// ErrNotFound is returned when a session id does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyCompleted is returned when a session already has a score.
	ErrAlreadyCompleted = errors.New("session already completed")
)

// Repository defines the interface for persisting practice sessions.
type Repository interface {
	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by id. It returns ErrNotFound when the
	// id is unknown.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns up to limit sessions, newest first. An empty
	// traineeID lists sessions of every trainee.
	ListSessions(ctx context.Context, traineeID string, limit int) ([]*domain.Session, error)

	// RecentObjections returns the primary objections of the trainee's
	// latest sessions, newest first.
	RecentObjections(ctx context.Context, traineeID string, limit int) ([]string, error)

	// CompleteSession records the transcript and score of a finished call.
	CompleteSession(ctx context.Context, id string, transcript []domain.TranscriptEntry, report domain.ScoreReport, completedAt time.Time) error

	// DeleteSessionsBefore removes sessions created before cutoff and
	// returns how many were removed.
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
