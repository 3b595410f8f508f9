// Package redis keeps the visitor counter and login sessions in Redis so that
// several server instances can share them.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
)

var (
	_ repository.SessionStore   = (*Store)(nil)
	_ repository.VisitorCounter = (*Store)(nil)
)

const (
	visitorsKey   = "lifeline:visitors"
	sessionPrefix = "lifeline:session:"
)

// Store wraps a go-redis client.
type Store struct {
	rdb *goredis.Client
}

// New connects to addr and pings once. Unlike the database, Redis is
// optional infrastructure: the caller decides whether a failure is fatal.
func New(ctx context.Context, addr string, db int) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}

	return &Store{rdb: rdb}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *goredis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping reports whether Redis is reachable. Used by the health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// =========================================================================
// VISITORS
// =========================================================================

func (s *Store) Increment(ctx context.Context) (int64, error) {
	n, err := s.rdb.Incr(ctx, visitorsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incrementing visitors: %w", err)
	}
	return n, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.rdb.Get(ctx, visitorsKey).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: reading visitors: %w", err)
	}
	return n, nil
}

// =========================================================================
// SESSIONS
// =========================================================================

// Sessions are hashes with a native TTL, so Redis expires them on its own.

func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return apperror.ValidationFailed("expiresAt", "session already expired")
	}

	key := sessionPrefix + session.ID
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", session.UserID,
			"expires_at", session.ExpiresAt.UnixMilli(),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: creating session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.rdb.HGetAll(ctx, sessionPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: getting session: %w", err)
	}
	if len(data) == 0 {
		return nil, apperror.NotFound("session", id)
	}

	userID, err := strconv.ParseInt(data["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: session %s has bad user_id: %w", id, err)
	}
	expires, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: session %s has bad expires_at: %w", id, err)
	}

	sess := &model.Session{ID: id, UserID: userID, ExpiresAt: time.UnixMilli(expires)}
	if sess.Expired(time.Now()) {
		return nil, apperror.NotFound("session", id)
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis: deleting session: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: keys carry their own TTL.
func (s *Store) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}
