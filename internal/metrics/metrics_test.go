package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountersAndStats(t *testing.T) {
	m := New()
	m.AddCandidatesFetched(5)
	m.AddBatchDuplicates(2)
	m.IncrementFetchFailures()
	m.IncrementEntriesScheduled()
	m.RecordProcessingTime(2 * time.Second)
	m.RecordProcessingTime(4 * time.Second)

	stats := m.GetStats()
	assert.Equal(t, int64(5), stats["candidates_fetched"])
	assert.Equal(t, int64(2), stats["batch_duplicates"])
	assert.Equal(t, int64(1), stats["fetch_failures"])
	assert.Equal(t, int64(1), stats["entries_scheduled"])
	assert.Equal(t, int64(3000), stats["average_processing_time_ms"])
	assert.Equal(t, true, stats["is_healthy"])
}

func TestErrorFlipsHealth(t *testing.T) {
	m := New()
	m.SetError("queue down")
	assert.False(t, m.GetStats()["is_healthy"].(bool))
	assert.Equal(t, "queue down", m.GetStats()["last_error"])

	m.SetLastRun()
	assert.True(t, m.GetStats()["is_healthy"].(bool))
}

func TestLogArgsArePairs(t *testing.T) {
	args := New().LogArgs()
	assert.Equal(t, 0, len(args)%2)
	assert.Equal(t, "candidates_fetched", args[0])
}
