package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/lifeline/internal/handler"
	"github.com/sakif/lifeline/internal/repository"
	"github.com/sakif/lifeline/internal/repository/memory"
	redisRepo "github.com/sakif/lifeline/internal/repository/redis"
	sqliteRepo "github.com/sakif/lifeline/internal/repository/sqlite"
)

// backends is what the storage configuration resolved to.
//
//	DB_PATH unset          → users/categories/events in memory
//	DB_PATH=path           → users/categories/events in SQLite
//	REDIS_ADDR unset       → sessions + visitors in the main store
//	REDIS_ADDR=host:port   → sessions + visitors in Redis
type backends struct {
	store    repository.Store
	sessions repository.SessionStore
	visitors repository.VisitorCounter
	checks   map[string]handler.Pinger
	closers  []func() error
}

// sessionVisitorStore is what the memory and SQLite stores provide besides
// the main tables.
type sessionVisitorStore interface {
	repository.SessionStore
	repository.VisitorCounter
}

func openBackends(ctx context.Context, dbPath, redisAddr string, redisDB int, logger *slog.Logger) (*backends, error) {
	b := &backends{checks: make(map[string]handler.Pinger)}

	var local sessionVisitorStore
	if dbPath == "" {
		mem := memory.New()
		b.store, local = mem, mem
		logger.Info("using in-memory store; data is lost on restart")
	} else {
		if dbPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		b.store, local = db, db
		b.checks["sqlite"] = db
		b.closers = append(b.closers, db.Close)
		logger.Info("using SQLite store", slog.String("path", dbPath))
	}
	b.sessions, b.visitors = local, local

	if redisAddr != "" {
		rs, err := redisRepo.New(ctx, redisAddr, redisDB)
		if err != nil {
			_ = b.close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		b.sessions, b.visitors = rs, rs
		b.checks["redis"] = rs
		b.closers = append(b.closers, rs.Close)
		logger.Info("using Redis for sessions and visitors", slog.String("addr", redisAddr))
	}

	return b, nil
}

// close releases backends in reverse order of opening.
func (b *backends) close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
