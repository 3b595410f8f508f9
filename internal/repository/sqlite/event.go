package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
)

var _ repository.EventRepository = (*DB)(nil)

const eventColumns = `id, user_id, category_id, date, title, description, score, sort_order`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (model.Event, error) {
	var (
		e        model.Event
		category sql.NullInt64
		desc     sql.NullString
	)
	err := s.Scan(&e.ID, &e.UserID, &category, &e.Date, &e.Title, &desc, &e.Score, &e.Order)
	if err != nil {
		return e, err
	}
	e.CategoryID = int64Ptr(category)
	e.Description = stringPtr(desc)
	return e, nil
}

// ListEvents returns the user's events ordered by sort_order, then id.
func (db *DB) ListEvents(ctx context.Context, userID int64) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? ORDER BY sort_order, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating event rows: %w", err)
	}

	return events, nil
}

func (db *DB) GetEvent(ctx context.Context, id, userID int64) (*model.Event, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("sqlite: getting event %d: %w", id, err)
	}
	return &e, nil
}

func (db *DB) CreateEvent(ctx context.Context, event *model.Event) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (user_id, category_id, date, title, description, score, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.UserID,
		nullInt64(event.CategoryID),
		event.Date,
		event.Title,
		nullString(event.Description),
		event.Score,
		event.Order,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading event id: %w", err)
	}
	event.ID = id
	return nil
}

// UpdateEvent rewrites the row matching event.ID and event.UserID.
func (db *DB) UpdateEvent(ctx context.Context, event *model.Event) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE events
		 SET category_id = ?, date = ?, title = ?, description = ?, score = ?, sort_order = ?
		 WHERE id = ? AND user_id = ?`,
		nullInt64(event.CategoryID),
		event.Date,
		event.Title,
		nullString(event.Description),
		event.Score,
		event.Order,
		event.ID,
		event.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating event %d: %w", event.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("event", event.ID)
	}
	return nil
}

func (db *DB) DeleteEvent(ctx context.Context, id, userID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM events WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting event %d: %w", id, err)
	}
	return nil
}
