// Package repository declares the storage contracts the services depend on.
//
// Every category and event method takes the owner's user ID. Implementations
// must filter by it so that a row belonging to someone else is
// indistinguishable from a row that does not exist.
package repository

import (
	"context"

	"github.com/sakif/lifeline/internal/model"
)

// UserRepository stores accounts.
type UserRepository interface {
	// CreateUser assigns user.ID. A duplicate email or username returns
	// apperror.ErrConflict with Field set to "email" or "username".
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

// CategoryRepository stores categories.
type CategoryRepository interface {
	ListCategories(ctx context.Context, userID int64) ([]model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	// UpdateCategory replaces name and color of the row matching
	// category.ID and category.UserID.
	UpdateCategory(ctx context.Context, category *model.Category) error
	// DeleteCategory is a no-op when the row is missing or not owned.
	// Events that reference the category are left alone.
	DeleteCategory(ctx context.Context, id, userID int64) error
}

// EventRepository stores events.
type EventRepository interface {
	// ListEvents returns the user's events ordered by Order, then ID.
	ListEvents(ctx context.Context, userID int64) ([]model.Event, error)
	GetEvent(ctx context.Context, id, userID int64) (*model.Event, error)
	CreateEvent(ctx context.Context, event *model.Event) error
	UpdateEvent(ctx context.Context, event *model.Event) error
	DeleteEvent(ctx context.Context, id, userID int64) error
}

// VisitorCounter is the global page-visit counter.
type VisitorCounter interface {
	Increment(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// SessionStore keeps server-side login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *model.Session) error
	// GetSession returns apperror.ErrNotFound for unknown or expired sessions.
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	// PurgeExpired drops sessions that expired before now and reports how
	// many were removed.
	PurgeExpired(ctx context.Context) (int, error)
}

// Store bundles everything a server backend provides.
type Store interface {
	UserRepository
	CategoryRepository
	EventRepository
}
