package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/aipost/internal/logger"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func sampleEntry(id string, scheduled time.Time, status Status) Entry {
	return Entry{
		Identifier:    id,
		Title:         "Title " + id,
		Link:          "https://example.com/" + id,
		Source:        "example.com",
		Score:         22,
		ShortText:     "short " + id,
		LongText:      "long " + id,
		SummaryMethod: "fallback",
		MediaURLs:     []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"},
		PublishedAt:   scheduled.Add(-time.Hour),
		ScheduledTime: scheduled,
		Status:        status,
	}
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	idA, err := s.CreateEntry(ctx, sampleEntry("a", base, StatusScheduled))
	require.NoError(t, err)
	require.NotEmpty(t, idA)
	_, err = s.CreateEntry(ctx, sampleEntry("b", base.Add(-2*time.Hour), StatusPosted))
	require.NoError(t, err)
	_, err = s.CreateEntry(ctx, sampleEntry("c", base.Add(-10*24*time.Hour), StatusFailed))
	require.NoError(t, err)
	_, err = s.CreateEntry(ctx, sampleEntry("d", base.Add(time.Hour), StatusScheduled))
	require.NoError(t, err)

	recent, err := s.QueryByStatus(ctx, Query{Statuses: HistoryStatuses, ScheduledFrom: base.Add(-7 * 24 * time.Hour)})
	require.NoError(t, err)
	var ids []string
	for _, e := range recent {
		ids = append(ids, e.Identifier)
	}
	assert.Equal(t, []string{"b", "a", "d"}, ids)

	due, err := s.QueryByStatus(ctx, Query{Statuses: []Status{StatusScheduled}, ScheduledTo: base})
	require.NoError(t, err)
	require.Len(t, due, 1)
	got := due[0]
	assert.Equal(t, idA, got.ID)
	assert.Equal(t, "Title a", got.Title)
	assert.Equal(t, 22, got.Score)
	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}, got.MediaURLs)
	assert.Equal(t, base, got.ScheduledTime)
	assert.Equal(t, base.Add(-time.Hour), got.PublishedAt)
	assert.Nil(t, got.PostedTime)

	posted := base.Add(time.Minute)
	require.NoError(t, s.UpdateEntry(ctx, idA, Update{Platform: "x", PostURL: "https://x.com/i/web/status/1"}))
	require.NoError(t, s.UpdateEntry(ctx, idA, Update{
		Status:       StatusPosted,
		Platform:     "linkedin",
		PostURL:      "https://www.linkedin.com/feed/update/urn:li:share:9",
		PostedTime:   &posted,
		ErrorMessage: ErrorText("visibility: PROCESSING"),
	}))

	after, err := s.QueryByStatus(ctx, Query{Statuses: []Status{StatusPosted}, ScheduledFrom: base})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, map[string]string{
		"x":        "https://x.com/i/web/status/1",
		"linkedin": "https://www.linkedin.com/feed/update/urn:li:share:9",
	}, after[0].PostURLs)
	require.NotNil(t, after[0].PostedTime)
	assert.Equal(t, posted, *after[0].PostedTime)
	assert.Equal(t, "visibility: PROCESSING", after[0].ErrorMessage)

	err = s.UpdateEntry(ctx, "00000000-0000-0000-0000-000000000000", Update{Status: StatusFailed})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.UpdateEntry(ctx, idA, Update{Platform: "myspace", PostURL: "u"}))
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "queue.db"), logger.Discard())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreLimit(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "queue.db"), logger.Discard())
	require.NoError(t, err)
	defer s.Close()

	for _, id := range []string{"1", "2", "3"} {
		_, err := s.CreateEntry(ctx, sampleEntry(id, base, StatusScheduled))
		require.NoError(t, err)
	}
	out, err := s.QueryByStatus(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn, logger.Discard())
	require.NoError(t, err)
	defer s.Close()
	_, err = s.db.ExecContext(ctx, "TRUNCATE queue_entries")
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestErrorTextIsCapped(t *testing.T) {
	long := make([]rune, MaxErrorRunes+50)
	for i := range long {
		long[i] = 'é'
	}
	got := ErrorText(string(long))
	assert.Len(t, []rune(*got), MaxErrorRunes)
}
