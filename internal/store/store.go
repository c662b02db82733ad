// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and tunes the connection pool.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the schema if it does not exist yet.
//
// Cross-aggregate references (added_by, user_id, book_id) are plain UUID
// columns rather than foreign keys; rows referencing a deleted aggregate keep
// their historical value, matching the append-only loan history.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '📚',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			description TEXT NOT NULL,
			isbn TEXT NOT NULL DEFAULT '',
			published_date DATE,
			category TEXT NOT NULL,
			cover_image TEXT NOT NULL DEFAULT '',
			available BOOLEAN NOT NULL DEFAULT TRUE,
			total_copies INT NOT NULL DEFAULT 1,
			available_copies INT NOT NULL DEFAULT 1,
			added_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (available_copies >= 0),
			CHECK (available_copies <= total_copies)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS books_isbn_uniq
			ON books (isbn) WHERE isbn <> ''`,
		`CREATE TABLE IF NOT EXISTS loans (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			book_id UUID NOT NULL,
			borrowed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			returned_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS loans_active_uniq
			ON loans (user_id, book_id) WHERE returned_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS loans_user_idx ON loans (user_id)`,
		`CREATE TABLE IF NOT EXISTS lending_events (
			id BIGSERIAL PRIMARY KEY,
			aggregate_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			event_data JSONB NOT NULL,
			version INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (aggregate_id, version)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
