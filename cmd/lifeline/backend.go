package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sakif/lifeline/internal/client"
	"github.com/sakif/lifeline/internal/localcache"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/service"
	"github.com/sakif/lifeline/internal/timeline"
)

const (
	defaultServerURL = "http://localhost:8080"
	sessionFileName  = "session.json"
)

// backend is what the category, event and stats commands need. The remote
// implementation is *client.Client itself.
type backend interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, in model.CategoryInput) (*model.Category, error)
	ReplaceCategory(ctx context.Context, id int64, in model.CategoryInput) (*model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListEvents(ctx context.Context, category, sort string) ([]model.Event, error)
	CreateEvent(ctx context.Context, in model.EventInput) (*model.Event, error)
	UpdateEvent(ctx context.Context, id int64, patch model.EventPatch) (*model.Event, error)
	DeleteEvent(ctx context.Context, id int64) error

	Export(ctx context.Context) (string, error)
	CategoryStats(ctx context.Context) ([]timeline.CategoryStat, error)
}

var (
	_ backend = (*client.Client)(nil)
	_ backend = (*localBackend)(nil)
)

// localUser owns every row in the cache file.
const localUser int64 = 0

// localBackend runs the same services the server runs, over the cache file.
type localBackend struct {
	categories *service.CategoryService
	events     *service.EventService
}

func newLocalBackend(a *app) *localBackend {
	cache := localcache.OpenDir(a.dataDir)
	return &localBackend{
		categories: service.NewCategoryService(cache, a.logger),
		events:     service.NewEventService(cache, cache, a.logger),
	}
}

func (b *localBackend) ListCategories(ctx context.Context) ([]model.Category, error) {
	return b.categories.List(ctx, localUser)
}

func (b *localBackend) CreateCategory(ctx context.Context, in model.CategoryInput) (*model.Category, error) {
	return b.categories.Create(ctx, localUser, in)
}

func (b *localBackend) ReplaceCategory(ctx context.Context, id int64, in model.CategoryInput) (*model.Category, error) {
	return b.categories.Replace(ctx, localUser, id, in)
}

func (b *localBackend) DeleteCategory(ctx context.Context, id int64) error {
	return b.categories.Delete(ctx, localUser, id)
}

func (b *localBackend) ListEvents(ctx context.Context, category, sort string) ([]model.Event, error) {
	return b.events.List(ctx, localUser, service.EventQuery{Category: category, Sort: sort})
}

func (b *localBackend) CreateEvent(ctx context.Context, in model.EventInput) (*model.Event, error) {
	return b.events.Create(ctx, localUser, in)
}

func (b *localBackend) UpdateEvent(ctx context.Context, id int64, patch model.EventPatch) (*model.Event, error) {
	return b.events.Update(ctx, localUser, id, patch)
}

func (b *localBackend) DeleteEvent(ctx context.Context, id int64) error {
	return b.events.Delete(ctx, localUser, id)
}

func (b *localBackend) Export(ctx context.Context) (string, error) {
	return b.events.Export(ctx, localUser)
}

func (b *localBackend) CategoryStats(ctx context.Context) ([]timeline.CategoryStat, error) {
	return b.events.Stats(ctx, localUser)
}

// =========================================================================
// SAVED SESSION
// =========================================================================

// savedSession is written by login and removed by logout. Its presence is
// what "logged in" means to the CLI.
type savedSession struct {
	Server   string `json:"server"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (a *app) sessionPath() string {
	return filepath.Join(a.dataDir, sessionFileName)
}

// loadSession returns nil, nil when no session is saved.
func (a *app) loadSession() (*savedSession, error) {
	data, err := os.ReadFile(a.sessionPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s savedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", a.sessionPath(), err)
	}
	if s.Token == "" {
		return nil, nil
	}
	return &s, nil
}

func (a *app) saveSession(s savedSession) error {
	if err := os.MkdirAll(a.dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.sessionPath(), data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (a *app) clearSession() error {
	if err := os.Remove(a.sessionPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// resolveServer picks the server URL: --server, then the saved session, then
// the default.
func (a *app) resolveServer(s *savedSession) string {
	switch {
	case a.serverURL != "":
		return a.serverURL
	case s != nil && s.Server != "":
		return s.Server
	}
	return defaultServerURL
}

// remote returns a client for the resolved server, carrying the saved token
// when there is one.
func (a *app) remote() (*client.Client, *savedSession, error) {
	s, err := a.loadSession()
	if err != nil {
		return nil, nil, err
	}
	var opts []client.Option
	if s != nil {
		opts = append(opts, client.WithToken(s.Token))
	}
	return client.New(a.resolveServer(s), opts...), s, nil
}

// backend returns the server when logged in, the local cache otherwise.
func (a *app) backend() (backend, error) {
	c, s, err := a.remote()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return newLocalBackend(a), nil
	}
	return c, nil
}
