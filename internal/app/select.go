// Package app wires the collaborators into the three runs: selection,
// posting and the readiness probe.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/deusflow/aipost/internal/collector"
	"github.com/deusflow/aipost/internal/config"
	"github.com/deusflow/aipost/internal/metrics"
	"github.com/deusflow/aipost/internal/news"
	"github.com/deusflow/aipost/internal/storage"
	"github.com/deusflow/aipost/internal/summarize"
)

type Outcome string

const (
	OutcomeScheduled Outcome = "Scheduled"
	OutcomeSkipped   Outcome = "Skipped"
)

// Collector produces the deduplicated candidate batch for one run.
type Collector interface {
	Collect(ctx context.Context) collector.Batch
}

// Enricher fills in article text and images for the selected candidate.
type Enricher interface {
	Enrich(ctx context.Context, c news.Candidate) news.Candidate
}

// Result describes what a selection run did.
type Result struct {
	Outcome  Outcome
	Entry    *storage.Entry
	EntryID  string
	Failures []*collector.FetchError
	Skipped  map[news.Reason]int
}

// Selector runs one selection: history, collect, score, pick, summarize,
// queue. It writes at most one entry per run.
type Selector struct {
	Collector  Collector
	Scorer     *news.Scorer
	Summarizer summarize.Summarizer
	// Enricher is optional.
	Enricher Enricher
	// Store may be nil in dry-run mode; history is then empty.
	Store storage.Store

	Dedup          config.Dedup
	ScheduleOffset time.Duration

	// Out receives the dry-run payload.
	Out     io.Writer
	Log     *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (s *Selector) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Selector) Run(ctx context.Context, dryRun bool) (_ Result, err error) {
	start := time.Now()
	m := s.Metrics
	if m == nil {
		m = metrics.Global
	}
	defer func() {
		m.RecordProcessingTime(time.Since(start))
		if err != nil {
			m.SetError(err.Error())
			return
		}
		m.SetLastRun()
	}()

	if s.Store == nil && !dryRun {
		return Result{}, &config.Error{Field: "queue", Msg: "a queue store is required outside dry-run mode"}
	}

	now := s.now()

	history, err := s.loadHistory(ctx, now)
	if err != nil {
		return Result{}, err
	}

	batch := s.Collector.Collect(ctx)
	res := Result{Outcome: OutcomeSkipped, Failures: batch.Failures}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	scored := s.Scorer.ScoreAll(batch.Candidates, now)
	news.Rank(scored)

	picked, skipped, ok := news.NewDeduplicator(history, s.Dedup.SimilarityThreshold).Select(scored)
	res.Skipped = skipped
	m.AddStaleCandidates(skipped[news.ReasonTooOld])
	m.AddHistoryMatches(skipped[news.ReasonSeenID] + skipped[news.ReasonSimilarName])

	if !ok {
		m.IncrementSelectionsSkipped()
		s.Log.Info("nothing to schedule",
			"candidates", len(scored),
			"too_old", skipped[news.ReasonTooOld],
			"seen", skipped[news.ReasonSeenID],
			"similar", skipped[news.ReasonSimilarName],
			"failed_sources", len(batch.Failures))
		return res, nil
	}
	s.Log.Info("candidate selected", "identifier", picked.Identifier, "title", picked.Title, "score", picked.Score)

	c := picked.Candidate
	if s.Enricher != nil {
		c = s.Enricher.Enrich(ctx, c)
	}
	sum := s.Summarizer.Summarize(ctx, c)

	entry := storage.Entry{
		Identifier:     picked.Identifier,
		Title:          c.Title,
		Link:           picked.Link,
		Source:         picked.SourceTag,
		Score:          picked.Score,
		ScoreBreakdown: picked.Breakdown,
		ShortText:      sum.ShortText,
		LongText:       sum.LongText,
		SummaryMethod:  sum.Method,
		MediaURLs:      c.MediaURLs,
		PublishedAt:    picked.PublishedAt,
		ScheduledTime:  now.Add(s.ScheduleOffset),
		Status:         storage.StatusScheduled,
	}
	res.Outcome = OutcomeScheduled
	res.Entry = &entry

	if dryRun {
		if err := printEntry(s.Out, entry); err != nil {
			return res, fmt.Errorf("print dry-run payload: %w", err)
		}
		s.Log.Info("dry run, queue not written", "identifier", entry.Identifier)
		return res, nil
	}

	id, err := s.Store.CreateEntry(ctx, entry)
	if err != nil {
		s.Log.Error("queue write failed", "identifier", entry.Identifier, "error", err)
		return res, err
	}
	entry.ID = id
	res.EntryID = id
	m.IncrementEntriesScheduled()
	s.Log.Info("entry scheduled", "id", id, "identifier", entry.Identifier, "summary", entry.SummaryMethod)
	return res, nil
}

// loadHistory reads recently queued entries. A failure here aborts the run:
// without history there is no guarantee against reposting.
func (s *Selector) loadHistory(ctx context.Context, now time.Time) (*news.History, error) {
	if s.Store == nil {
		s.Log.Warn("no queue configured, history is empty")
		return news.NewHistory(), nil
	}
	entries, err := s.Store.QueryByStatus(ctx, storage.Query{
		Statuses:      storage.HistoryStatuses,
		ScheduledFrom: now.Add(-s.Dedup.Window),
	})
	if err != nil {
		return nil, fmt.Errorf("load recent history: %w", err)
	}
	h := news.NewHistory()
	for _, e := range entries {
		h.Add(news.HistoryItem{Identifier: e.Identifier, Title: e.Title})
	}
	s.Log.Debug("history loaded", "entries", h.Len())
	return h, nil
}

func printEntry(w io.Writer, e storage.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
