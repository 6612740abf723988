package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const queueTable = "queue_entries"

var platformColumns = map[string]string{
	"x":        "x_url",
	"linkedin": "linkedin_url",
	"telegram": "telegram_url",
}

var entryColumns = []string{
	"id", "identifier", "title", "link", "source", "score",
	"short_text", "long_text", "summary_method", "media_urls",
	"published_at", "scheduled_time", "status",
	"x_url", "linkedin_url", "telegram_url",
	"posted_time", "error_message", "thread_group_id", "thread_position",
}

// SQLStore keeps the queue in a SQL table. Timestamps are stored as Unix
// seconds so the same code serves Postgres and SQLite.
type SQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func newSQLStore(db *sql.DB, placeholder sq.PlaceholderFormat) *SQLStore {
	return &SQLStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(placeholder)}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateEntry(ctx context.Context, e Entry) (string, error) {
	id := uuid.NewString()
	urls := e.PostURLs
	if urls == nil {
		urls = map[string]string{}
	}

	query, args, err := s.sb.Insert(queueTable).
		Columns(entryColumns...).
		Values(
			id, e.Identifier, e.Title, e.Link, e.Source, e.Score,
			e.ShortText, e.LongText, e.SummaryMethod, strings.Join(e.MediaURLs, " "),
			e.PublishedAt.Unix(), e.ScheduledTime.Unix(), string(e.Status),
			urls["x"], urls["linkedin"], urls["telegram"],
			unixOrNull(e.PostedTime), e.ErrorMessage, e.ThreadGroupID, e.ThreadPosition,
		).
		ToSql()
	if err != nil {
		return "", &WriteError{Identifier: e.Identifier, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", &WriteError{Identifier: e.Identifier, Err: err}
	}
	return id, nil
}

func (s *SQLStore) QueryByStatus(ctx context.Context, q Query) ([]Entry, error) {
	b := s.sb.Select(entryColumns...).From(queueTable).
		OrderBy("scheduled_time ASC", "thread_position ASC", "id ASC")
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		b = b.Where(sq.Eq{"status": statuses})
	}
	if !q.ScheduledFrom.IsZero() {
		b = b.Where(sq.GtOrEq{"scheduled_time": q.ScheduledFrom.Unix()})
	}
	if !q.ScheduledTo.IsZero() {
		b = b.Where(sq.LtOrEq{"scheduled_time": q.ScheduledTo.Unix()})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                    Entry
		status, media        string
		published, scheduled int64
		xURL, liURL, tgURL   string
		posted               sql.NullInt64
	)
	err := rows.Scan(
		&e.ID, &e.Identifier, &e.Title, &e.Link, &e.Source, &e.Score,
		&e.ShortText, &e.LongText, &e.SummaryMethod, &media,
		&published, &scheduled, &status,
		&xURL, &liURL, &tgURL,
		&posted, &e.ErrorMessage, &e.ThreadGroupID, &e.ThreadPosition,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan queue entry: %w", err)
	}
	e.Status = Status(status)
	e.MediaURLs = strings.Fields(media)
	e.PublishedAt = time.Unix(published, 0).UTC()
	e.ScheduledTime = time.Unix(scheduled, 0).UTC()
	if posted.Valid {
		t := time.Unix(posted.Int64, 0).UTC()
		e.PostedTime = &t
	}
	for platform, url := range map[string]string{"x": xURL, "linkedin": liURL, "telegram": tgURL} {
		if url == "" {
			continue
		}
		if e.PostURLs == nil {
			e.PostURLs = map[string]string{}
		}
		e.PostURLs[platform] = url
	}
	return e, nil
}

func (s *SQLStore) UpdateEntry(ctx context.Context, id string, u Update) error {
	b := s.sb.Update(queueTable).Where(sq.Eq{"id": id})
	changed := false
	if u.Status != "" {
		b = b.Set("status", string(u.Status))
		changed = true
	}
	if u.Platform != "" && u.PostURL != "" {
		col, ok := platformColumns[u.Platform]
		if !ok {
			return fmt.Errorf("unknown platform %q", u.Platform)
		}
		b = b.Set(col, u.PostURL)
		changed = true
	}
	if u.PostedTime != nil {
		b = b.Set("posted_time", u.PostedTime.Unix())
		changed = true
	}
	if u.ErrorMessage != nil {
		b = b.Set("error_message", *u.ErrorMessage)
		changed = true
	}
	if !changed {
		return nil
	}

	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func unixOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
