package news

import (
	"strings"
	"unicode"
)

// History is the set of recently queued or posted items. A candidate matching
// it, exactly or by near-identical title, must not be selected again.
type History struct {
	ids    map[string]struct{}
	titles [][]string
}

// HistoryItem is the part of a queue entry that history cares about.
type HistoryItem struct {
	Identifier string
	Title      string
}

func NewHistory(items ...HistoryItem) *History {
	h := &History{ids: make(map[string]struct{}, len(items))}
	for _, it := range items {
		h.Add(it)
	}
	return h
}

func (h *History) Add(it HistoryItem) {
	if it.Identifier != "" {
		h.ids[it.Identifier] = struct{}{}
	}
	if words := titleWords(it.Title); len(words) > 0 {
		h.titles = append(h.titles, words)
	}
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.ids)
}

// NormalizeTitle lowercases, turns punctuation and symbols into spaces and
// collapses whitespace.
func NormalizeTitle(s string) string {
	b := make([]rune, 0, len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b = append(b, r)
		} else {
			b = append(b, ' ')
		}
	}
	return strings.Join(strings.Fields(string(b)), " ")
}

func titleWords(s string) []string {
	return strings.Fields(NormalizeTitle(s))
}

// TitleSimilarity is the Jaccard index of the normalized word sets of a and b.
func TitleSimilarity(a, b string) float64 {
	return jaccard(titleWords(a), titleWords(b))
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	inter, union := 0, len(set)
	counted := make(map[string]bool, len(b))
	for _, w := range b {
		if counted[w] {
			continue
		}
		counted[w] = true
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// Reason explains why a candidate was filtered out.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonTooOld      Reason = "too_old"
	ReasonSeenID      Reason = "seen_identifier"
	ReasonSimilarName Reason = "similar_title"
)

// Deduplicator filters ranked candidates against History.
type Deduplicator struct {
	history   *History
	threshold float64
}

func NewDeduplicator(h *History, threshold float64) *Deduplicator {
	if h == nil {
		h = NewHistory()
	}
	return &Deduplicator{history: h, threshold: threshold}
}

// Check reports whether c may be selected.
func (d *Deduplicator) Check(c ScoredCandidate) Reason {
	if c.Excluded {
		return ReasonTooOld
	}
	if _, ok := d.history.ids[c.Identifier]; ok {
		return ReasonSeenID
	}
	words := titleWords(c.Title)
	for _, seen := range d.history.titles {
		if jaccard(words, seen) > d.threshold {
			return ReasonSimilarName
		}
	}
	return ReasonNone
}

// Select returns the first candidate of ranked that passes Check, together
// with per-reason counts of what was skipped. ranked must already be ordered.
func (d *Deduplicator) Select(ranked []ScoredCandidate) (ScoredCandidate, map[Reason]int, bool) {
	skipped := map[Reason]int{}
	for _, c := range ranked {
		if r := d.Check(c); r != ReasonNone {
			skipped[r]++
			continue
		}
		return c, skipped, true
	}
	return ScoredCandidate{}, skipped, false
}
