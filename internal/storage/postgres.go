package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS queue_entries (
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
		published_at BIGINT NOT NULL,
		scheduled_time BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL,
		x_url TEXT NOT NULL DEFAULT '',
		linkedin_url TEXT NOT NULL DEFAULT '',
		telegram_url TEXT NOT NULL DEFAULT '',
		posted_time BIGINT,
		error_message TEXT NOT NULL DEFAULT '',
		thread_group_id TEXT NOT NULL DEFAULT '',
		thread_position INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_queue_entries_status_time ON queue_entries(status, scheduled_time);
	CREATE INDEX IF NOT EXISTS idx_queue_entries_identifier ON queue_entries(identifier);
`

// NewPostgres opens the queue in PostgreSQL and creates the table if needed.
func NewPostgres(ctx context.Context, dsn string, log *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info("✅ PostgreSQL queue connected")
	return newSQLStore(db, sq.Dollar), nil
}
