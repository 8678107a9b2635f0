package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ashureev/callcoach/internal/domain"
)

var base = time.UnixMilli(1_760_000_000_000).UTC()

func newSQLite(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "data", "app.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newRedis(t *testing.T) Repository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := NewRedisFromClient(client, "test")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func backends() map[string]func(*testing.T) Repository {
	return map[string]func(*testing.T) Repository{
		"sqlite": newSQLite,
		"redis":  newRedis,
	}
}

func makeSession(id, trainee, objection string, created time.Time) *domain.Session {
	return &domain.Session{
		ID:              id,
		TraineeID:       trainee,
		Seed:            42,
		DurationMinutes: 5,
		Persona: domain.Persona{
			Industry:         "saas",
			Role:             "vp_sales",
			PainPoint:        "high_churn",
			Personality:      "direct",
			Urgency:          "this_month",
			PrimaryObjection: objection,
		},
		CreatedAt: created,
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			want := makeSession("s1", "alice", "busy", base)
			if err := repo.CreateSession(ctx, want); err != nil {
				t.Fatalf("create: %v", err)
			}

			got, err := repo.GetSession(ctx, "s1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.ID != want.ID || got.TraineeID != "alice" || got.Seed != 42 || got.DurationMinutes != 5 {
				t.Fatalf("unexpected session %+v", got)
			}
			if got.Persona != want.Persona {
				t.Fatalf("persona = %+v, want %+v", got.Persona, want.Persona)
			}
			if !got.CreatedAt.Equal(base) {
				t.Fatalf("created_at = %v, want %v", got.CreatedAt, base)
			}
			if got.IsCompleted() {
				t.Fatal("new session should not be completed")
			}
		})
	}
}

func TestRepository_GetMissing(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			_, err := open(t).GetSession(context.Background(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRepository_ListAndRecentObjections(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			objections := []string{"busy", "no_budget", "send_email", "already_vendor"}
			for i, o := range objections {
				s := makeSession(fmt.Sprintf("a%d", i), "alice", o, base.Add(time.Duration(i)*time.Minute))
				if err := repo.CreateSession(ctx, s); err != nil {
					t.Fatalf("create: %v", err)
				}
			}
			if err := repo.CreateSession(ctx, makeSession("b0", "bob", "no_interest", base.Add(time.Hour))); err != nil {
				t.Fatalf("create: %v", err)
			}

			sessions, err := repo.ListSessions(ctx, "alice", 3)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(sessions) != 3 || sessions[0].ID != "a3" || sessions[2].ID != "a1" {
				t.Fatalf("unexpected order: %v", ids(sessions))
			}

			all, err := repo.ListSessions(ctx, "", 10)
			if err != nil {
				t.Fatalf("list all: %v", err)
			}
			if len(all) != 5 || all[0].ID != "b0" {
				t.Fatalf("unexpected global list: %v", ids(all))
			}

			recent, err := repo.RecentObjections(ctx, "alice", 2)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if fmt.Sprint(recent) != "[already_vendor send_email]" {
				t.Fatalf("unexpected recent objections %v", recent)
			}

			none, err := repo.RecentObjections(ctx, "carol", 20)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(none) != 0 {
				t.Fatalf("expected no objections for new trainee, got %v", none)
			}
		})
	}
}

func TestRepository_CompleteSession(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			if err := repo.CreateSession(ctx, makeSession("s1", "alice", "busy", base)); err != nil {
				t.Fatalf("create: %v", err)
			}

			transcript := []domain.TranscriptEntry{
				{Speaker: domain.SpeakerTrainee, Text: "Can I get 30 seconds?"},
				{Speaker: domain.SpeakerProspect, Text: "I have a minute."},
			}
			report := domain.ScoreReport{
				TotalScore: 58,
				Dimensions: map[string]int{"close_quality": 70},
				Misses:     []string{"Ask one additional pain-focused discovery question."},
				ReplacementPhrasing: domain.ReplacementPhrasing{
					Actual:   "a",
					Stronger: "b",
				},
			}
			done := base.Add(5 * time.Minute)

			if err := repo.CompleteSession(ctx, "s1", transcript, report, done); err != nil {
				t.Fatalf("complete: %v", err)
			}

			got, err := repo.GetSession(ctx, "s1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !got.IsCompleted() {
				t.Fatal("expected completed session")
			}
			if got.Score.TotalScore != 58 || got.Score.Dimensions["close_quality"] != 70 {
				t.Fatalf("unexpected score %+v", got.Score)
			}
			if len(got.Transcript) != 2 || got.Transcript[1].Speaker != domain.SpeakerProspect {
				t.Fatalf("unexpected transcript %+v", got.Transcript)
			}
			if !got.CompletedAt.Equal(done) {
				t.Fatalf("completed_at = %v, want %v", got.CompletedAt, done)
			}

			err = repo.CompleteSession(ctx, "s1", transcript, report, done)
			if !errors.Is(err, ErrAlreadyCompleted) {
				t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
			}
			err = repo.CompleteSession(ctx, "missing", transcript, report, done)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRepository_ConcurrentCompletionHasOneWinner(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()
			if err := repo.CreateSession(ctx, makeSession("s1", "alice", "busy", base)); err != nil {
				t.Fatalf("create: %v", err)
			}

			const workers = 8
			var wg sync.WaitGroup
			var mu sync.Mutex
			succeeded := 0
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := repo.CompleteSession(ctx, "s1", nil, domain.ScoreReport{TotalScore: 1}, base)
					if err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if succeeded != 1 {
				t.Fatalf("expected exactly one successful completion, got %d", succeeded)
			}
		})
	}
}

func TestRepository_DeleteSessionsBefore(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			for i := 0; i < 4; i++ {
				s := makeSession(fmt.Sprintf("s%d", i), "alice", "busy", base.Add(time.Duration(i)*time.Hour))
				if err := repo.CreateSession(ctx, s); err != nil {
					t.Fatalf("create: %v", err)
				}
			}

			deleted, err := repo.DeleteSessionsBefore(ctx, base.Add(2*time.Hour))
			if err != nil {
				t.Fatalf("delete: %v", err)
			}
			if deleted != 2 {
				t.Fatalf("expected 2 deleted, got %d", deleted)
			}

			if _, err := repo.GetSession(ctx, "s0"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected s0 to be gone, got %v", err)
			}
			remaining, err := repo.ListSessions(ctx, "alice", 10)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(remaining) != 2 {
				t.Fatalf("expected 2 remaining, got %v", ids(remaining))
			}
		})
	}
}

func TestRepository_Ping(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			if err := open(t).Ping(context.Background()); err != nil {
				t.Fatalf("ping: %v", err)
			}
		})
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedis(ctx, RedisConfig{Addr: addr}); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func ids(sessions []*domain.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
