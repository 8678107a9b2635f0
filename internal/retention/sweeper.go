// Package retention removes old practice sessions and leftover speech
// scratch files in the background.
package retention

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/callcoach/internal/shared"
	"github.com/ashureev/callcoach/internal/store"
)

// DefaultScratchMaxAge is how long a speech scratch file may linger. Adapters
// delete their files when they finish, so anything older was orphaned by a
// crash or a killed request.
const DefaultScratchMaxAge = time.Hour

// Sweeper deletes sessions older than MaxAge and stale files in IODir.
type Sweeper struct {
	Repo          store.Repository
	MaxAge        time.Duration // zero keeps sessions forever
	IODir         string
	ScratchMaxAge time.Duration
	Retry         shared.RetryPolicy

	now func() time.Time
}

// Result counts what one sweep removed.
type Result struct {
	Sessions int64
	Files    int
}

func (s *Sweeper) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Sweep runs one pass. Session and file cleanup are independent; a failure in
// one does not skip the other.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	var errs []error
	now := s.clock()

	if s.MaxAge > 0 {
		cutoff := now.Add(-s.MaxAge)
		err := shared.RetryOnConflict(ctx, s.Retry, "delete expired sessions", func() error {
			n, err := s.Repo.DeleteSessionsBefore(ctx, cutoff)
			res.Sessions = n
			return err
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if s.IODir != "" {
		n, err := s.removeStaleFiles(now)
		res.Files = n
		if err != nil {
			errs = append(errs, err)
		}
	}

	return res, errors.Join(errs...)
}

func (s *Sweeper) removeStaleFiles(now time.Time) (int, error) {
	maxAge := s.ScratchMaxAge
	if maxAge <= 0 {
		maxAge = DefaultScratchMaxAge
	}
	cutoff := now.Add(-maxAge)

	entries, err := os.ReadDir(s.IODir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.IODir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Retention sweeper failed to remove scratch file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Start runs Sweep every interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention sweeper started", "interval", interval, "max_age", s.MaxAge)

		for {
			select {
			case <-ticker.C:
				res, err := s.Sweep(ctx)
				if err != nil {
					slog.Error("Retention sweep failed", "error", err)
				}
				if res.Sessions > 0 || res.Files > 0 {
					slog.Info("Retention sweep completed", "sessions", res.Sessions, "files", res.Files)
				}
			case <-ctx.Done():
				slog.Info("Retention sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
