package storage

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/deusflow/aipost/internal/config"
)

// Open connects to the configured queue backend.
func Open(ctx context.Context, q config.Queue, client *http.Client, log *slog.Logger) (Store, error) {
	switch q.Backend {
	case config.BackendPostgres:
		return NewPostgres(ctx, q.DatabaseURL, log)
	case config.BackendSQLite:
		return NewSQLite(ctx, q.SQLitePath, log)
	default:
		return NewNotion(client, q.NotionBaseURL, q.NotionToken, q.NotionDatabaseID), nil
	}
}
