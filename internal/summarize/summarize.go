// Package summarize turns the selected candidate into a short post and a long
// post. An LLM-backed strategy is used when credentials exist; otherwise, and
// whenever the model fails, a deterministic heuristic summary is produced.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/aipost/internal/config"
	"github.com/deusflow/aipost/internal/metrics"
	"github.com/deusflow/aipost/internal/news"
)

// Summary methods.
const (
	MethodLLM      = "llm"
	MethodFallback = "fallback"
)

// Summary is the pair of texts queued for posting.
type Summary struct {
	ShortText string `json:"short_text"`
	LongText  string `json:"long_text"`
	Method    string `json:"summary_method"`
}

// Limits are the length ceilings in runes.
type Limits struct {
	ShortMax     int
	LongMax      int
	ExcerptRunes int
}

func LimitsFrom(s config.Summary) Limits {
	return Limits{ShortMax: s.ShortMax, LongMax: s.LongMax, ExcerptRunes: s.ExcerptRunes}
}

// Summarizer never fails: it always returns texts within Limits.
type Summarizer interface {
	Summarize(ctx context.Context, c news.Candidate) Summary
}

// Error is a summarization failure. It is logged and replaced by the
// heuristic summary, never returned to the caller of Summarize.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("summarize via %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Heuristic is the no-credentials strategy.
type Heuristic struct {
	Limits Limits
}

func (h Heuristic) Summarize(_ context.Context, c news.Candidate) Summary {
	return Fallback(c, h.Limits)
}

// Fallback builds both texts from the candidate alone. It is a pure function.
func Fallback(c news.Candidate, l Limits) Summary {
	title := strings.Join(strings.Fields(c.Title), " ")
	link := strings.TrimSpace(c.Link)

	short := Truncate(title, l.ShortMax)
	if link != "" {
		if budget := l.ShortMax - utf8.RuneCountInString(link) - 1; budget > utf8.RuneCountInString(Ellipsis) {
			short = strings.TrimSpace(Truncate(title, budget) + " " + link)
		}
	}

	parts := []string{title}
	if excerpt := strings.Join(strings.Fields(c.Excerpt), " "); excerpt != "" {
		parts = append(parts, Truncate(excerpt, l.ExcerptRunes))
	}
	if link != "" {
		parts = append(parts, link)
	}
	long := Truncate(strings.Join(parts, "\n\n"), l.LongMax)

	return Summary{ShortText: short, LongText: long, Method: MethodFallback}
}

// Provider generates the raw JSON answer for a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, system, user string) (string, error)
}

// LLM asks a Provider for both texts and falls back to the heuristic summary
// on any failure.
type LLM struct {
	provider Provider
	limits   Limits
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewLLM(p Provider, l Limits, log *slog.Logger, m *metrics.Metrics) *LLM {
	if m == nil {
		m = metrics.Global
	}
	return &LLM{provider: p, limits: l, log: log, metrics: m}
}

func (s *LLM) Summarize(ctx context.Context, c news.Candidate) Summary {
	sum, err := s.generate(ctx, c)
	if err != nil {
		s.metrics.IncrementSummaryFallbacks()
		s.log.Warn("summarization failed, using fallback", "identifier", c.Identifier, "error", err)
		return Fallback(c, s.limits)
	}
	return sum
}

func (s *LLM) generate(ctx context.Context, c news.Candidate) (Summary, error) {
	raw, err := s.provider.Generate(ctx, systemPrompt(s.limits), userPrompt(c))
	if err != nil {
		return Summary{}, &Error{Provider: s.provider.Name(), Err: err}
	}
	out, err := ParseOutput(raw)
	if err != nil {
		return Summary{}, &Error{Provider: s.provider.Name(), Err: err}
	}

	short, long := out.XText, out.LinkedInText
	if n := utf8.RuneCountInString(short); n > s.limits.ShortMax {
		s.log.Warn("short text over limit, truncating", "runes", n, "limit", s.limits.ShortMax)
		short = Truncate(short, s.limits.ShortMax)
	}
	if n := utf8.RuneCountInString(long); n > s.limits.LongMax {
		s.log.Warn("long text over limit, truncating", "runes", n, "limit", s.limits.LongMax)
		long = Truncate(long, s.limits.LongMax)
	}
	if short == "" || long == "" {
		return Summary{}, &Error{Provider: s.provider.Name(), Err: fmt.Errorf("empty text after truncation")}
	}
	return Summary{ShortText: short, LongText: long, Method: MethodLLM}, nil
}

// New picks the strategy once, from the configured provider and available
// credentials.
func New(ctx context.Context, cfg config.Summary, log *slog.Logger, m *metrics.Metrics) (Summarizer, func(), error) {
	limits := LimitsFrom(cfg)
	noop := func() {}

	provider := cfg.Provider
	if provider == "auto" {
		switch {
		case cfg.OpenAIKey != "":
			provider = "openai"
		case cfg.GeminiKey != "":
			provider = "gemini"
		default:
			provider = "none"
		}
	}

	switch provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, noop, &config.Error{Field: "OPENAI_API_KEY", Msg: "is required for the openai provider"}
		}
		log.Info("summarizer: OpenAI", "model", cfg.OpenAIModel)
		return NewLLM(NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, "", cfg.Timeout), limits, log, m), noop, nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, noop, &config.Error{Field: "GEMINI_API_KEY", Msg: "is required for the gemini provider"}
		}
		g, err := NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel, cfg.Timeout)
		if err != nil {
			return nil, noop, err
		}
		log.Info("summarizer: Gemini", "model", cfg.GeminiModel)
		return NewLLM(g, limits, log, m), g.Close, nil
	default:
		log.Info("summarizer: heuristic (no LLM credentials)")
		return Heuristic{Limits: limits}, noop, nil
	}
}
