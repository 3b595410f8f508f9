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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, email_verified,
	verification_token, github_id, created_at`

// CreateUser inserts a new user and sets user.ID from the AUTOINCREMENT key.
//
// The UNIQUE constraints on email and username are the real guard against
// duplicates; the service's pre-checks only produce nicer messages. A
// violation comes back as apperror.ErrConflict naming the column.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, email_verified,
		                    verification_token, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.EmailVerified,
		nullString(user.VerificationToken),
		nullInt64(user.GitHubID),
		user.CreatedAt,
	)
	if err != nil {
		if col := uniqueViolation(err, "users"); col != "" {
			return apperror.Conflict("user", col)
		}
		return fmt.Errorf("sqlite: creating user %q: %w", user.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by their ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUserWhere(ctx, "id = ?", id, "user", id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserWhere(ctx, "email = ?", email, "user with email", email)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUserWhere(ctx, "username = ?", username, "user with username", username)
}

func (db *DB) GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	return db.getUserWhere(ctx, "verification_token = ?", token, "user with verification token", token)
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getUserWhere(ctx, "github_id = ?", githubID, "user with github id", githubID)
}

// UpdateUser rewrites every mutable column of the user.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET username = ?, email = ?, password_hash = ?, email_verified = ?,
		     verification_token = ?, github_id = ?
		 WHERE id = ?`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.EmailVerified,
		nullString(user.VerificationToken),
		nullInt64(user.GitHubID),
		user.ID,
	)
	if err != nil {
		if col := uniqueViolation(err, "users"); col != "" {
			return apperror.Conflict("user", col)
		}
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// getUserWhere runs a single-row SELECT. where is always a constant from
// this file, never user input.
func (db *DB) getUserWhere(ctx context.Context, where string, arg any, resource string, key any) (*model.User, error) {
	var (
		u        model.User
		token    sql.NullString
		githubID sql.NullInt64
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.EmailVerified,
		&token,
		&githubID,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(resource, key)
		}
		return nil, fmt.Errorf("sqlite: getting %s %v: %w", resource, key, err)
	}

	u.VerificationToken = stringPtr(token)
	u.GitHubID = int64Ptr(githubID)
	return &u, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
