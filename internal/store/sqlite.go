package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/callcoach/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets readers proceed while a call result is being written.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		trainee_id TEXT NOT NULL,
		seed INTEGER NOT NULL,
		duration_minutes INTEGER NOT NULL,
		industry TEXT NOT NULL,
		role TEXT NOT NULL,
		pain_point TEXT NOT NULL,
		personality TEXT NOT NULL,
		urgency TEXT NOT NULL,
		primary_objection TEXT NOT NULL,
		transcript_json TEXT,
		score_json TEXT,
		created_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_trainee_created ON sessions(trainee_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession stores a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO sessions (
		session_id, trainee_id, seed, duration_minutes,
		industry, role, pain_point, personality, urgency, primary_objection,
		created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	p := session.Persona
	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.TraineeID, session.Seed, session.DurationMinutes,
		p.Industry, p.Role, p.PainPoint, p.Personality, p.Urgency, p.PrimaryObjection,
		session.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `
	session_id, trainee_id, seed, duration_minutes,
	industry, role, pain_point, personality, urgency, primary_objection,
	transcript_json, score_json, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var transcriptJSON, scoreJSON sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64

	p := &session.Persona
	err := row.Scan(
		&session.ID, &session.TraineeID, &session.Seed, &session.DurationMinutes,
		&p.Industry, &p.Role, &p.PainPoint, &p.Personality, &p.Urgency, &p.PrimaryObjection,
		&transcriptJSON, &scoreJSON, &createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		session.CompletedAt = &t
	}
	if transcriptJSON.Valid && transcriptJSON.String != "" {
		if err := json.Unmarshal([]byte(transcriptJSON.String), &session.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript for %s: %w", session.ID, err)
		}
	}
	if scoreJSON.Valid && scoreJSON.String != "" {
		var report domain.ScoreReport
		if err := json.Unmarshal([]byte(scoreJSON.String), &report); err != nil {
			return nil, fmt.Errorf("decode score for %s: %w", session.ID, err)
		}
		session.Score = &report
	}

	return &session, nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return session, nil
}

// ListSessions returns up to limit sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, traineeID string, limit int) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if traineeID != "" {
		query += ` WHERE trainee_id = ?`
		args = append(args, traineeID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// RecentObjections returns the trainee's latest primary objections.
func (s *SQLiteStore) RecentObjections(ctx context.Context, traineeID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT primary_objection FROM sessions
		WHERE trainee_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, traineeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent objections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objections []string
	for rows.Next() {
		var objection string
		if err := rows.Scan(&objection); err != nil {
			return nil, fmt.Errorf("scan objection: %w", err)
		}
		objections = append(objections, objection)
	}
	return objections, rows.Err()
}

// CompleteSession records the transcript and score of a finished call.
func (s *SQLiteStore) CompleteSession(ctx context.Context, id string, transcript []domain.TranscriptEntry, report domain.ScoreReport, completedAt time.Time) error {
	transcriptJSON, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	scoreJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}

	// The completed_at guard makes completion a single-winner update.
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET transcript_json = ?, score_json = ?, completed_at = ?
		WHERE session_id = ? AND completed_at IS NULL`,
		string(transcriptJSON), string(scoreJSON), completedAt.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return ErrAlreadyCompleted
}

// DeleteSessionsBefore removes sessions created before cutoff.
func (s *SQLiteStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return result.RowsAffected()
}

var _ Repository = (*SQLiteStore)(nil)
