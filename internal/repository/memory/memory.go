// Package memory implements the repository interfaces with process-local maps.
//
// It is the default backend when no database path is configured. Everything
// is lost on restart. IDs come from one counter per table, starting at 1, and
// are never reused.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
)

var (
	_ repository.Store          = (*Store)(nil)
	_ repository.SessionStore   = (*Store)(nil)
	_ repository.VisitorCounter = (*Store)(nil)
)

// Store holds the users, categories, events and sessions tables.
//
// A single RWMutex guards all maps and counters. Values are copied on the way
// in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	users      map[int64]model.User
	categories map[int64]model.Category
	events     map[int64]model.Event
	sessions   map[string]model.Session

	nextUserID     int64
	nextCategoryID int64
	nextEventID    int64

	visitors atomic.Int64

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:          make(map[int64]model.User),
		categories:     make(map[int64]model.Category),
		events:         make(map[int64]model.Event),
		sessions:       make(map[string]model.Session),
		nextUserID:     1,
		nextCategoryID: 1,
		nextEventID:    1,
		now:            time.Now,
	}
}

// =========================================================================
// USERS
// =========================================================================

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", "email")
		}
		if u.Username == user.Username {
			return apperror.Conflict("user", "username")
		}
	}

	user.ID = s.nextUserID
	s.nextUserID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = cloneUser(*user)
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return s.findUser("email", email, func(u model.User) bool { return u.Email == email })
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return s.findUser("username", username, func(u model.User) bool { return u.Username == username })
}

func (s *Store) GetUserByVerificationToken(_ context.Context, token string) (*model.User, error) {
	return s.findUser("verification token", token, func(u model.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == token
	})
}

func (s *Store) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	return s.findUser("github user", githubID, func(u model.User) bool {
		return u.GitHubID != nil && *u.GitHubID == githubID
	})
}

func (s *Store) UpdateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	for id, u := range s.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email {
			return apperror.Conflict("user", "email")
		}
		if u.Username == user.Username {
			return apperror.Conflict("user", "username")
		}
	}
	s.users[user.ID] = cloneUser(*user)
	return nil
}

func (s *Store) findUser(field string, key any, match func(model.User) bool) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user with "+field, key)
}

// =========================================================================
// CATEGORIES
// =========================================================================

func (s *Store) ListCategories(_ context.Context, userID int64) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b model.Category) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, category *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category.ID = s.nextCategoryID
	s.nextCategoryID++
	s.categories[category.ID] = *category
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, category *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok || existing.UserID != category.UserID {
		return apperror.NotFound("category", category.ID)
	}
	s.categories[category.ID] = *category
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.categories[id]; ok && c.UserID == userID {
		delete(s.categories, id)
	}
	return nil
}

// =========================================================================
// EVENTS
// =========================================================================

func (s *Store) ListEvents(_ context.Context, userID int64) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, 0)
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, cloneEvent(e))
		}
	}
	slices.SortFunc(out, func(a, b model.Event) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetEvent(_ context.Context, id, userID int64) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok || e.UserID != userID {
		return nil, apperror.NotFound("event", id)
	}
	e = cloneEvent(e)
	return &e, nil
}

func (s *Store) CreateEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.nextEventID
	s.nextEventID++
	s.events[event.ID] = cloneEvent(*event)
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[event.ID]
	if !ok || existing.UserID != event.UserID {
		return apperror.NotFound("event", event.ID)
	}
	s.events[event.ID] = cloneEvent(*event)
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.events[id]; ok && e.UserID == userID {
		delete(s.events, id)
	}
	return nil
}

// =========================================================================
// SESSIONS
// =========================================================================

func (s *Store) CreateSession(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = *session
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Expired(s.now()) {
		return nil, apperror.NotFound("session", id)
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *Store) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// =========================================================================
// VISITORS
// =========================================================================

func (s *Store) Increment(_ context.Context) (int64, error) {
	return s.visitors.Add(1), nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	return s.visitors.Load(), nil
}

func cloneUser(u model.User) model.User {
	if u.VerificationToken != nil {
		t := *u.VerificationToken
		u.VerificationToken = &t
	}
	if u.GitHubID != nil {
		g := *u.GitHubID
		u.GitHubID = &g
	}
	return u
}

func cloneEvent(e model.Event) model.Event {
	if e.CategoryID != nil {
		c := *e.CategoryID
		e.CategoryID = &c
	}
	if e.Description != nil {
		d := *e.Description
		e.Description = &d
	}
	return e
}
