// Package localcache keeps categories and events in a JSON file on the local
// machine, for use while the user is not signed in to a server.
//
// FILE LAYOUT:
//
//	{
//	  "lifeline_events":     [Event, ...],
//	  "lifeline_categories": [Category, ...],
//	  "lifeline_last_id":    1718000000123
//	}
//
// Every row belongs to one implicit local user, so the userID arguments of
// the repository methods are accepted and ignored. Rows are stored without
// an owner.
//
// IDS:
// New ids are clock-seeded but never repeat within one cache file:
// next = max(now in milliseconds, last id + 1). The last id is persisted, so
// a clock that moves backwards between runs cannot produce a duplicate.
package localcache

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
)

// Document keys.
const (
	EventsKey     = "lifeline_events"
	CategoriesKey = "lifeline_categories"
	LastIDKey     = "lifeline_last_id"
)

// FileName is the cache file inside the data directory.
const FileName = "cache.json"

var (
	_ repository.CategoryRepository = (*Cache)(nil)
	_ repository.EventRepository    = (*Cache)(nil)
)

type document struct {
	Events     []model.Event    `json:"lifeline_events"`
	Categories []model.Category `json:"lifeline_categories"`
	LastID     int64            `json:"lifeline_last_id"`
}

// Cache is a file-backed category and event store.
//
// Each operation reads the file, applies the change and writes the whole
// document back through a temp file and rename. The mutex serializes
// operations within a process; separate processes sharing the file are last
// writer wins.
type Cache struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Open returns a Cache over the file at path. The file and its directory are
// created on the first write.
func Open(path string) *Cache {
	return &Cache{path: path, now: time.Now}
}

// OpenDir returns a Cache over FileName in dir.
func OpenDir(dir string) *Cache {
	return Open(filepath.Join(dir, FileName))
}

// Path reports the file backing the cache.
func (c *Cache) Path() string { return c.path }

// load reads the document. A missing file is an empty document.
func (c *Cache) load() (*document, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localcache: read: %w", err)
	}

	var doc document
	if len(data) == 0 {
		return &doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("localcache: parse %s: %w", c.path, err)
	}
	return &doc, nil
}

// save writes doc atomically: a reader sees the old file or the new one,
// never a partial write.
func (c *Cache) save(doc *document) error {
	if doc.Events == nil {
		doc.Events = []model.Event{}
	}
	if doc.Categories == nil {
		doc.Categories = []model.Category{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("localcache: encode: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("localcache: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("localcache: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("localcache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("localcache: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("localcache: replace: %w", err)
	}
	return nil
}

// update runs fn on the current document and saves it when fn succeeds.
func (c *Cache) update(fn func(doc *document) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return c.save(doc)
}

func (c *Cache) read() (*document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// nextID must be called with doc loaded under the mutex.
func (c *Cache) nextID(doc *document) int64 {
	id := max(c.now().UnixMilli(), doc.LastID+1)
	doc.LastID = id
	return id
}

// =========================================================================
// CATEGORIES
// =========================================================================

func (c *Cache) ListCategories(_ context.Context, _ int64) ([]model.Category, error) {
	doc, err := c.read()
	if err != nil {
		return nil, err
	}
	out := doc.Categories
	if out == nil {
		out = []model.Category{}
	}
	return out, nil
}

func (c *Cache) CreateCategory(_ context.Context, category *model.Category) error {
	return c.update(func(doc *document) error {
		category.ID = c.nextID(doc)
		row := *category
		row.UserID = 0
		doc.Categories = append(doc.Categories, row)
		return nil
	})
}

func (c *Cache) UpdateCategory(_ context.Context, category *model.Category) error {
	return c.update(func(doc *document) error {
		i := slices.IndexFunc(doc.Categories, func(x model.Category) bool { return x.ID == category.ID })
		if i < 0 {
			return apperror.NotFound("category", category.ID)
		}
		doc.Categories[i].Name = category.Name
		doc.Categories[i].Color = category.Color
		return nil
	})
}

func (c *Cache) DeleteCategory(_ context.Context, id, _ int64) error {
	return c.update(func(doc *document) error {
		doc.Categories = slices.DeleteFunc(doc.Categories, func(x model.Category) bool { return x.ID == id })
		return nil
	})
}

// =========================================================================
// EVENTS
// =========================================================================

func (c *Cache) ListEvents(_ context.Context, _ int64) ([]model.Event, error) {
	doc, err := c.read()
	if err != nil {
		return nil, err
	}
	out := slices.Clone(doc.Events)
	if out == nil {
		out = []model.Event{}
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (c *Cache) GetEvent(_ context.Context, id, _ int64) (*model.Event, error) {
	doc, err := c.read()
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(doc.Events, func(x model.Event) bool { return x.ID == id })
	if i < 0 {
		return nil, apperror.NotFound("event", id)
	}
	e := doc.Events[i]
	return &e, nil
}

func (c *Cache) CreateEvent(_ context.Context, event *model.Event) error {
	return c.update(func(doc *document) error {
		event.ID = c.nextID(doc)
		row := *event
		row.UserID = 0
		doc.Events = append(doc.Events, row)
		return nil
	})
}

func (c *Cache) UpdateEvent(_ context.Context, event *model.Event) error {
	return c.update(func(doc *document) error {
		i := slices.IndexFunc(doc.Events, func(x model.Event) bool { return x.ID == event.ID })
		if i < 0 {
			return apperror.NotFound("event", event.ID)
		}
		row := *event
		row.UserID = 0
		doc.Events[i] = row
		return nil
	})
}

func (c *Cache) DeleteEvent(_ context.Context, id, _ int64) error {
	return c.update(func(doc *document) error {
		doc.Events = slices.DeleteFunc(doc.Events, func(x model.Event) bool { return x.ID == id })
		return nil
	})
}

// Clear removes every row but keeps the last id, so ids handed out later
// still never collide with ones a previous export or sync may hold.
func (c *Cache) Clear() error {
	return c.update(func(doc *document) error {
		doc.Events = nil
		doc.Categories = nil
		return nil
	})
}
