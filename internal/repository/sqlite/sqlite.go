// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// It is selected when DB_PATH is set. modernc.org/sqlite is a pure Go
// translation of SQLite, so the binary still builds without a C toolchain.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB    — a connection pool (NOT a single connection!)
//   - sql.Row   — a single result row
//   - sql.Rows  — multiple result rows (must be closed!)
//
// Ownership is enforced in SQL: every category and event statement carries a
// "user_id = ?" predicate, so a foreign row behaves exactly like a missing one.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/lifeline.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand new, empty database.
	// Pin the pool to one connection so all queries see the same tables.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run
// on every start.
//
// categories.user_id and events.user_id reference users, but events.category_id
// deliberately has NO foreign key: deleting a category must leave the events
// that point at it untouched.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			username           TEXT NOT NULL UNIQUE,
			email              TEXT NOT NULL UNIQUE,
			password_hash      TEXT NOT NULL DEFAULT '',
			email_verified     INTEGER NOT NULL DEFAULT 0,
			verification_token TEXT,
			created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_verification_token ON users(verification_token);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// GitHub sign-in came later; older databases get the column added in place.
	if err := db.addColumnIfNotExists("users", "github_id", "INTEGER"); err != nil {
		return fmt.Errorf("adding github_id to users: %w", err)
	}
	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id ON users(github_id);
	`)
	if err != nil {
		return fmt.Errorf("creating users github_id index: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			name    TEXT NOT NULL,
			color   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_categories_user_id ON categories(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating categories table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     INTEGER NOT NULL REFERENCES users(id),
			category_id INTEGER,
			date        TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT,
			score       INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
			sort_order  INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_events_user_order ON events(user_id, sort_order);
	`)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

		CREATE TABLE IF NOT EXISTS visitors (
			id    INTEGER PRIMARY KEY CHECK (id = 1),
			count INTEGER NOT NULL
		);
		INSERT OR IGNORE INTO visitors (id, count) VALUES (1, 0);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions/visitors tables: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent — safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// uniqueViolation reports which column of table tripped a UNIQUE constraint,
// or "" when err is something else. SQLite phrases these as
// "UNIQUE constraint failed: users.email".
func uniqueViolation(err error, table string) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := strings.TrimPrefix(msg[i+len(marker):], table+".")
	if end := strings.IndexAny(rest, " ,)"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
