// Package collector gathers candidates from the configured sources.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/aipost/internal/config"
	"github.com/deusflow/aipost/internal/metrics"
	"github.com/deusflow/aipost/internal/news"
)

// Source produces candidates from one upstream listing.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]news.Candidate, error)
}

// FetchError wraps the failure of a single source. It never aborts a run.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Batch is the outcome of one collection pass.
type Batch struct {
	Candidates []news.Candidate
	Failures   []*FetchError
	// Duplicates counts candidates dropped because an earlier source already
	// produced the same identifier.
	Duplicates int
}

type Collector struct {
	sources     []Source
	concurrency int
	log         *slog.Logger
	metrics     *metrics.Metrics
}

func New(sources []Source, concurrency int, log *slog.Logger, m *metrics.Metrics) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	if m == nil {
		m = metrics.Global
	}
	return &Collector{sources: sources, concurrency: concurrency, log: log, metrics: m}
}

// Collect fetches every source and returns the merged batch in source order.
// Failing sources are logged and contribute nothing.
func (c *Collector) Collect(ctx context.Context) Batch {
	results := make([][]news.Candidate, len(c.sources))
	errs := make([]error, len(c.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, src := range c.sources {
		g.Go(func() error {
			start := time.Now()
			items, err := src.Fetch(gctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = items
			c.log.Info("source fetched", "source", src.Name(), "items", len(items), "took", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	_ = g.Wait()

	var batch Batch
	var all []news.Candidate
	for i, src := range c.sources {
		if errs[i] != nil {
			fe := &FetchError{Source: src.Name(), Err: errs[i]}
			batch.Failures = append(batch.Failures, fe)
			c.metrics.IncrementFetchFailures()
			c.log.Warn("source failed, skipping", "source", src.Name(), "error", errs[i])
			continue
		}
		all = append(all, results[i]...)
	}

	batch.Candidates, batch.Duplicates = news.DedupeBatch(all)
	c.metrics.AddCandidatesFetched(len(batch.Candidates))
	c.metrics.AddBatchDuplicates(batch.Duplicates)
	c.log.Info("collection done",
		"sources_ok", len(c.sources)-len(batch.Failures),
		"sources_total", len(c.sources),
		"candidates", len(batch.Candidates),
		"duplicates", batch.Duplicates)
	return batch
}

// SourcesFromProfile builds the sources listed in p.
func SourcesFromProfile(p config.Profile, client *http.Client, userAgent string) ([]Source, error) {
	out := make([]Source, 0, len(p.Sources))
	for _, sc := range p.Sources {
		switch sc.Kind {
		case "rss":
			out = append(out, NewRSSSource(sc.Name, sc.URL, client, userAgent))
		case "arxiv":
			out = append(out, NewArxivSource(sc.Name, sc.URL, sc.Categories, sc.MaxResults, client, userAgent))
		default:
			return nil, &config.Error{Field: "sources." + sc.Name, Msg: fmt.Sprintf("unknown kind %q", sc.Kind)}
		}
	}
	return out, nil
}
