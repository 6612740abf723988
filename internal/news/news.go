// Package news holds the candidate model and the pure selection logic:
// scoring, ranking and history-based deduplication.
package news

import (
	"time"
)

// Candidate is one article or paper produced by a source.
type Candidate struct {
	Identifier   string    `json:"identifier"`
	Title        string    `json:"title"`
	Excerpt      string    `json:"excerpt,omitempty"`
	Link         string    `json:"link,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	SourceTag    string    `json:"source"`
	CategoryTags []string  `json:"categories,omitempty"`
	MediaURLs    []string  `json:"media_urls,omitempty"`
	Authors      []string  `json:"authors,omitempty"`
}

// ScoredCandidate pairs a candidate with its score and per-component breakdown.
type ScoredCandidate struct {
	Candidate
	Score     int            `json:"score"`
	Breakdown map[string]int `json:"score_breakdown"`
	// Excluded is set when the candidate is past the max-age ceiling.
	Excluded bool `json:"-"`
}

// DedupeBatch drops repeated identifiers, keeping the first occurrence.
func DedupeBatch(items []Candidate) (out []Candidate, dropped int) {
	seen := make(map[string]struct{}, len(items))
	out = make([]Candidate, 0, len(items))
	for _, c := range items {
		if _, ok := seen[c.Identifier]; ok {
			dropped++
			continue
		}
		seen[c.Identifier] = struct{}{}
		out = append(out, c)
	}
	return out, dropped
}
