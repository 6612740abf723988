package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Selection counters
	CandidatesFetched int64
	FetchFailures     int64
	BatchDuplicates   int64
	HistoryMatches    int64
	StaleCandidates   int64
	SummaryFallbacks  int64
	EntriesScheduled  int64
	SelectionsSkipped int64

	// Posting counters
	PostsSent   int64
	PostsFailed int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) add(field *int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field += int64(n)
}

func (m *Metrics) AddCandidatesFetched(n int) { m.add(&m.CandidatesFetched, n) }
func (m *Metrics) AddBatchDuplicates(n int) { m.add(&m.BatchDuplicates, n) }
func (m *Metrics) AddHistoryMatches(n int) { m.add(&m.HistoryMatches, n) }
func (m *Metrics) AddStaleCandidates(n int) { m.add(&m.StaleCandidates, n) }
func (m *Metrics) IncrementFetchFailures() { m.add(&m.FetchFailures, 1) }
func (m *Metrics) IncrementSummaryFallbacks() { m.add(&m.SummaryFallbacks, 1) }
func (m *Metrics) IncrementEntriesScheduled() { m.add(&m.EntriesScheduled, 1) }
func (m *Metrics) IncrementSelectionsSkipped() { m.add(&m.SelectionsSkipped, 1) }
func (m *Metrics) IncrementPostsSent() { m.add(&m.PostsSent, 1) }
func (m *Metrics) IncrementPostsFailed() { m.add(&m.PostsFailed, 1) }

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"candidates_fetched":         m.CandidatesFetched,
		"fetch_failures":             m.FetchFailures,
		"batch_duplicates":           m.BatchDuplicates,
		"history_matches":            m.HistoryMatches,
		"stale_candidates":           m.StaleCandidates,
		"summary_fallbacks":          m.SummaryFallbacks,
		"entries_scheduled":          m.EntriesScheduled,
		"selections_skipped":         m.SelectionsSkipped,
		"posts_sent":                 m.PostsSent,
		"posts_failed":               m.PostsFailed,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}

// LogArgs flattens the stats into slog key/value pairs.
func (m *Metrics) LogArgs() []any {
	stats := m.GetStats()
	keys := []string{
		"candidates_fetched", "fetch_failures", "batch_duplicates", "history_matches",
		"stale_candidates", "summary_fallbacks", "entries_scheduled", "selections_skipped",
		"posts_sent", "posts_failed", "last_processing_time_ms",
	}
	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, stats[k])
	}
	return out
}
