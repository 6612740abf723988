// Package storage persists queue entries: the posts selected for publishing
// and their delivery state.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusPosted    Status = "Posted"
	StatusFailed    Status = "Failed"
	StatusSkipped   Status = "Skipped"
)

// HistoryStatuses are the statuses that count as "already handled" when
// deciding whether a candidate was seen before.
var HistoryStatuses = []Status{StatusScheduled, StatusPosted, StatusFailed}

// Entry is one row of the posting queue.
type Entry struct {
	ID             string            `json:"id,omitempty"`
	Identifier     string            `json:"identifier"`
	Title          string            `json:"title"`
	Link           string            `json:"link,omitempty"`
	Source         string            `json:"source,omitempty"`
	Score          int               `json:"score"`
	ScoreBreakdown map[string]int    `json:"score_breakdown,omitempty"`
	ShortText      string            `json:"short_text"`
	LongText       string            `json:"long_text"`
	SummaryMethod  string            `json:"summary_method,omitempty"`
	MediaURLs      []string          `json:"media_urls,omitempty"`
	PublishedAt    time.Time         `json:"published_at"`
	ScheduledTime  time.Time         `json:"scheduled_time"`
	Status         Status            `json:"status"`
	PostURLs       map[string]string `json:"post_urls,omitempty"`
	PostedTime     *time.Time        `json:"posted_time,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ThreadGroupID  string            `json:"thread_group_id,omitempty"`
	ThreadPosition int               `json:"thread_position,omitempty"`
}

// Query selects entries by status and scheduled time window. Zero times are
// unbounded. Results are ordered by scheduled time, then thread position.
type Query struct {
	Statuses      []Status
	ScheduledFrom time.Time
	ScheduledTo   time.Time
	Limit         int
}

// Update is a partial change to an entry. Zero fields are left untouched.
type Update struct {
	Status       Status
	Platform     string
	PostURL      string
	PostedTime   *time.Time
	ErrorMessage *string
}

// Store is the queue collaborator.
type Store interface {
	CreateEntry(ctx context.Context, e Entry) (string, error)
	QueryByStatus(ctx context.Context, q Query) ([]Entry, error)
	UpdateEntry(ctx context.Context, id string, u Update) error
	Close() error
}

var ErrNotFound = errors.New("entry not found")

// WriteError is a failed queue write. It is fatal for the run.
type WriteError struct {
	Identifier string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write queue entry %q: %v", e.Identifier, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// MaxErrorRunes caps stored error messages.
const MaxErrorRunes = 1800

// ErrorText prepares err for storage in an entry.
func ErrorText(msg string) *string {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) > MaxErrorRunes {
		msg = string([]rune(msg)[:MaxErrorRunes])
	}
	return &msg
}
