package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashureev/callcoach/internal/domain"
)

const completeMaxAttempts = 3

// RedisConfig configures the Redis-backed repository.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "callcoach"
}

// RedisStore implements Repository on Redis. Each session is a JSON value;
// sorted sets scored by creation time index sessions globally and per trainee.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisFromClient(client, cfg.Prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "callcoach"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *RedisStore) allKey() string {
	return r.prefix + ":sessions"
}

func (r *RedisStore) traineeKey(traineeID string) string {
	return fmt.Sprintf("%s:trainee:%s:sessions", r.prefix, traineeID)
}

// Ping verifies Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// CreateSession stores a new session record.
func (r *RedisStore) CreateSession(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	member := redis.Z{Score: float64(session.CreatedAt.UnixMilli()), Member: session.ID}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), data, 0)
		pipe.ZAdd(ctx, r.allKey(), member)
		pipe.ZAdd(ctx, r.traineeKey(session.TraineeID), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (r *RedisStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(data)
}

func decodeSession(data []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// ListSessions returns up to limit sessions, newest first.
func (r *RedisStore) ListSessions(ctx context.Context, traineeID string, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		return nil, nil
	}
	index := r.allKey()
	if traineeID != "" {
		index = r.traineeKey(traineeID)
	}

	ids, err := r.client.ZRevRange(ctx, index, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	return r.load(ctx, ids)
}

// load fetches sessions by id, skipping ids whose record has expired.
func (r *RedisStore) load(ctx context.Context, ids []string) ([]*domain.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		session, err := decodeSession([]byte(s))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// RecentObjections returns the trainee's latest primary objections.
func (r *RedisStore) RecentObjections(ctx context.Context, traineeID string, limit int) ([]string, error) {
	sessions, err := r.ListSessions(ctx, traineeID, limit)
	if err != nil {
		return nil, err
	}
	objections := make([]string, 0, len(sessions))
	for _, s := range sessions {
		objections = append(objections, s.Persona.PrimaryObjection)
	}
	return objections, nil
}

// CompleteSession records the transcript and score of a finished call. The
// record is updated under WATCH so concurrent completions have one winner.
func (r *RedisStore) CompleteSession(ctx context.Context, id string, transcript []domain.TranscriptEntry, report domain.ScoreReport, completedAt time.Time) error {
	key := r.sessionKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if session.IsCompleted() {
			return ErrAlreadyCompleted
		}
		session.Complete(transcript, report, completedAt)

		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < completeMaxAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("complete session %s: %w", id, redis.TxFailedErr)
}

// DeleteSessionsBefore removes sessions created before cutoff.
func (r *RedisStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.allKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("find expired sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	sessions, err := r.load(ctx, ids)
	if err != nil {
		return 0, err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range sessions {
			pipe.ZRem(ctx, r.traineeKey(s.TraineeID), s.ID)
		}
		for _, id := range ids {
			pipe.Del(ctx, r.sessionKey(id))
			pipe.ZRem(ctx, r.allKey(), id)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return int64(len(ids)), nil
}

var _ Repository = (*RedisStore)(nil)
