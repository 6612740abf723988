package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS queue_entries (
		id TEXT PRIMARY KEY,
		identifier TEXT NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		short_text TEXT NOT NULL DEFAULT '',
		long_text TEXT NOT NULL DEFAULT '',
		summary_method TEXT NOT NULL DEFAULT '',
		media_urls TEXT NOT NULL DEFAULT '',
		published_at INTEGER NOT NULL,
		scheduled_time INTEGER NOT NULL,
		status TEXT NOT NULL,
		x_url TEXT NOT NULL DEFAULT '',
		linkedin_url TEXT NOT NULL DEFAULT '',
		telegram_url TEXT NOT NULL DEFAULT '',
		posted_time INTEGER,
		error_message TEXT NOT NULL DEFAULT '',
		thread_group_id TEXT NOT NULL DEFAULT '',
		thread_position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_entries_status_time ON queue_entries(status, scheduled_time)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_entries_identifier ON queue_entries(identifier)`,
}

// NewSQLite opens (or creates) a single-file queue, handy for local runs.
func NewSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	log.Info("✅ SQLite queue opened", "path", path)
	return newSQLStore(db, sq.Question), nil
}
