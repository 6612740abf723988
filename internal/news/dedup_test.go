package news

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "openai releases gpt 5", NormalizeTitle("  OpenAI   releases GPT-5!! "))
	assert.Equal(t, "", NormalizeTitle("?!..."))
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TitleSimilarity("Hello, World", "hello world"))
	assert.Equal(t, 0.0, TitleSimilarity("alpha beta", "gamma delta"))
	assert.Equal(t, 0.0, TitleSimilarity("", "anything"))
	assert.InDelta(t, 1.0/3.0, TitleSimilarity("a b", "b c"), 1e-9)
}

func scored(id, title string) ScoredCandidate {
	return ScoredCandidate{Candidate: Candidate{Identifier: id, Title: title, PublishedAt: testNow}}
}

func TestDeduplicatorExactIdentifier(t *testing.T) {
	h := NewHistory(HistoryItem{Identifier: "https://a.example/post", Title: "Totally different words"})
	d := NewDeduplicator(h, 0.7)
	assert.Equal(t, ReasonSeenID, d.Check(scored("https://a.example/post", "Fresh title")))
	assert.Equal(t, ReasonNone, d.Check(scored("https://a.example/other", "Fresh title")))
}

func TestDeduplicatorNearDuplicateTitle(t *testing.T) {
	h := NewHistory(HistoryItem{Identifier: "old", Title: "OpenAI releases GPT-5 model for developers"})
	d := NewDeduplicator(h, 0.7)

	assert.Equal(t, ReasonSimilarName, d.Check(scored("new", "OpenAI releases GPT-5 model for all developers")))
	assert.Equal(t, ReasonNone, d.Check(scored("new2", "Meta unveils new robotics lab")))
}

func TestDeduplicatorThresholdIsExclusive(t *testing.T) {
	// four shared words out of five total: 0.8
	h := NewHistory(HistoryItem{Identifier: "old", Title: "one two three four"})
	assert.Equal(t, ReasonNone, NewDeduplicator(h, 0.8).Check(scored("n", "one two three four five")))
	assert.Equal(t, ReasonSimilarName, NewDeduplicator(h, 0.79).Check(scored("n", "one two three four five")))
}

func TestSelectSkipsHistoryAndStale(t *testing.T) {
	top := scored("seen", "Top story")
	top.Score = 30
	stale := scored("stale", "Stale story")
	stale.Excluded = true
	stale.Score = -1000
	next := scored("fresh", "Runner up")
	next.Score = 10

	d := NewDeduplicator(NewHistory(HistoryItem{Identifier: "seen"}), 0.7)
	got, skipped, ok := d.Select([]ScoredCandidate{top, next, stale})
	require.True(t, ok)
	assert.Equal(t, "fresh", got.Identifier)
	assert.Equal(t, 1, skipped[ReasonSeenID])
}

func TestSelectNothingEligible(t *testing.T) {
	old := scored("o", "Old")
	old.Excluded = true
	old.PublishedAt = testNow.Add(-72 * time.Hour)

	_, skipped, ok := NewDeduplicator(nil, 0.7).Select([]ScoredCandidate{old})
	assert.False(t, ok)
	assert.Equal(t, 1, skipped[ReasonTooOld])

	_, _, ok = NewDeduplicator(nil, 0.7).Select(nil)
	assert.False(t, ok)
}

func TestSelectedNeverInHistory(t *testing.T) {
	h := NewHistory(
		HistoryItem{Identifier: "a", Title: "Alpha launch"},
		HistoryItem{Identifier: "b", Title: "Beta launch"},
	)
	d := NewDeduplicator(h, 0.7)
	batch := []ScoredCandidate{scored("a", "x"), scored("b", "y"), scored("c", "Alpha launch"), scored("d", "Delta")}
	got, _, ok := d.Select(batch)
	require.True(t, ok)
	assert.Equal(t, "d", got.Identifier)
}
