package news

import (
	"sort"
	"strings"
	"time"

	"github.com/deusflow/aipost/internal/config"
)

// Breakdown keys.
const (
	ComponentRecency  = "recency"
	ComponentCategory = "category"
	ComponentTooOld   = "too_old"
	keywordPrefix     = "keyword:"
)

// Scorer computes candidate scores from a profile. It holds no mutable state.
type Scorer struct {
	maxAge         time.Duration
	tiers          []config.Tier
	keywordPoints  int
	categoryPoints int
	keywords       []string
	preferred      map[string]struct{}
}

func NewScorer(p config.Profile) *Scorer {
	s := &Scorer{
		maxAge:         p.MaxAge,
		tiers:          append([]config.Tier(nil), p.Tiers...),
		keywordPoints:  p.KeywordPoints,
		categoryPoints: p.CategoryPoints,
		preferred:      make(map[string]struct{}, len(p.PreferredTags)),
	}
	seen := map[string]bool{}
	for _, k := range p.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		s.keywords = append(s.keywords, k)
	}
	for _, t := range p.PreferredTags {
		s.preferred[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return s
}

// Score rates c as of now. The same inputs always give the same result.
func (s *Scorer) Score(c Candidate, now time.Time) ScoredCandidate {
	age := now.Sub(c.PublishedAt)
	if age < 0 {
		// clock skew between feeds and us
		age = 0
	}

	if age > s.maxAge {
		return ScoredCandidate{
			Candidate: c,
			Score:     config.ExcludedScore,
			Breakdown: map[string]int{ComponentTooOld: config.ExcludedScore},
			Excluded:  true,
		}
	}

	breakdown := map[string]int{ComponentRecency: s.recency(age)}

	// one bonus per distinct keyword, however often it repeats
	text := strings.ToLower(c.Title + "\n" + c.Excerpt)
	for _, k := range s.keywords {
		if strings.Contains(text, k) {
			breakdown[keywordPrefix+k] = s.keywordPoints
		}
	}

	if s.isPreferred(c) {
		breakdown[ComponentCategory] = s.categoryPoints
	}

	total := 0
	for _, v := range breakdown {
		total += v
	}
	return ScoredCandidate{Candidate: c, Score: total, Breakdown: breakdown}
}

func (s *Scorer) recency(age time.Duration) int {
	for _, t := range s.tiers {
		if age <= t.MaxAge {
			return t.Points
		}
	}
	return 0
}

func (s *Scorer) isPreferred(c Candidate) bool {
	if _, ok := s.preferred[strings.ToLower(c.SourceTag)]; ok {
		return true
	}
	for _, tag := range c.CategoryTags {
		if _, ok := s.preferred[strings.ToLower(tag)]; ok {
			return true
		}
	}
	return false
}

// ScoreAll scores every candidate against the same instant.
func (s *Scorer) ScoreAll(items []Candidate, now time.Time) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(items))
	for _, c := range items {
		out = append(out, s.Score(c, now))
	}
	return out
}

// Rank orders candidates best first: higher score, then more recent, then
// identifier so the order never depends on input order.
func Rank(items []ScoredCandidate) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.Identifier < b.Identifier
	})
}
