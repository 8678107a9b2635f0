// Package domain contains core domain types for the call coaching service.
package domain

import (
	"time"
)

// MinDurationMinutes and MaxDurationMinutes bound the planned length of a practice call.
const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 30
)

// Session is a persisted practice call.
type Session struct {
	ID              string            `json:"session_id"`
	TraineeID       string            `json:"trainee_id"`
	Seed            int64             `json:"seed"`
	DurationMinutes int               `json:"duration_minutes"`
	Persona         Persona           `json:"persona"`
	CreatedAt       time.Time         `json:"created_at"`
	Transcript      []TranscriptEntry `json:"transcript,omitempty"`
	Score           *ScoreReport      `json:"score,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// IsCompleted returns true once a score report has been stored.
func (s *Session) IsCompleted() bool {
	return s.CompletedAt != nil && s.Score != nil
}

// Complete attaches the final transcript and score to the session.
func (s *Session) Complete(transcript []TranscriptEntry, report ScoreReport, at time.Time) {
	s.Transcript = append([]TranscriptEntry(nil), transcript...)
	s.Score = &report
	s.CompletedAt = &at
}

// ValidDuration reports whether minutes is an allowed call length.
func ValidDuration(minutes int) bool {
	return minutes >= MinDurationMinutes && minutes <= MaxDurationMinutes
}
