// Package sqlite provides the SQLite-backed storage layer: connection
// setup, schema migration, and the posts.Repository implementation the
// rest of the system writes and reads through.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/reuning/trending-news-feed/internal/db/migrations"
)

// Open opens (creating if needed) the database file at path, applies the
// concurrency pragmas, and runs any pending migrations. The returned handle
// is capped at one open connection: SQLite in WAL mode performs best with a
// single writer, and the system assumes exactly one ingester anyway.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database ready", "path", path)
	return db, nil
}

// migrate brings the schema up to date from the embedded goose scripts.
// Idempotent: goose tracks applied versions in its own table.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
