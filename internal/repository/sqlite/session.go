package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
)

var (
	_ repository.SessionStore   = (*DB)(nil)
	_ repository.VisitorCounter = (*DB)(nil)
)

// Session expiry is stored as unix milliseconds so that the purge query is
// a plain integer comparison.

func (db *DB) CreateSession(ctx context.Context, session *model.Session) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)`,
		session.ID, session.UserID, session.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session: %w", err)
	}
	return nil
}

func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		s       model.Session
		expires int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at FROM sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().UnixMilli(),
	).Scan(&s.ID, &s.UserID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}
	s.ExpiresAt = time.UnixMilli(expires)
	return &s, nil
}

func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

func (db *DB) PurgeExpired(ctx context.Context) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}

// Increment bumps the persistent visitor counter and returns the new value.
func (db *DB) Increment(ctx context.Context) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE visitors SET count = count + 1 WHERE id = 1 RETURNING count`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: incrementing visitors: %w", err)
	}
	return count, nil
}

func (db *DB) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := db.conn.QueryRowContext(ctx, `SELECT count FROM visitors WHERE id = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: reading visitors: %w", err)
	}
	return count, nil
}
