// Package scraper enriches the selected candidate with the article's main
// text and lead image when the feed excerpt is too thin to summarize.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/temoto/robotstxt"

	"github.com/deusflow/aipost/internal/cache"
	"github.com/deusflow/aipost/internal/news"
)

const (
	// MinExcerptRunes is the excerpt length below which a page is fetched.
	MinExcerptRunes = 200
	maxPageBytes    = 4 << 20
	maxExcerptRunes = 4000
	robotsTTL       = time.Hour
)

// ArticleContent is what was extracted from a page.
type ArticleContent struct {
	Title string
	Text  string
	Image string
}

type Enricher struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger

	robots *cache.Cache[*robotstxt.Group]
}

func NewEnricher(client *http.Client, userAgent string, log *slog.Logger) *Enricher {
	return &Enricher{
		client:    client,
		userAgent: userAgent,
		log:       log,
		robots:    cache.New[*robotstxt.Group](robotsTTL),
	}
}

// Enrich fills a thin excerpt, a missing lead image and a missing title from
// the article page. Candidates whose excerpt is already long enough are left
// alone, as is c on any failure.
func (e *Enricher) Enrich(ctx context.Context, c news.Candidate) news.Candidate {
	if utf8.RuneCountInString(c.Excerpt) >= MinExcerptRunes {
		return c
	}
	if !strings.HasPrefix(c.Link, "http://") && !strings.HasPrefix(c.Link, "https://") {
		return c
	}

	article, err := e.ExtractFullArticle(ctx, c.Link)
	if err != nil {
		e.log.Warn("article enrichment skipped", "identifier", c.Identifier, "error", err)
		return c
	}

	if utf8.RuneCountInString(article.Text) > utf8.RuneCountInString(c.Excerpt) {
		c.Excerpt = clip(article.Text, maxExcerptRunes)
	}
	if strings.TrimSpace(c.Title) == "" && article.Title != "" {
		c.Title = article.Title
	}
	if len(c.MediaURLs) == 0 && article.Image != "" {
		c.MediaURLs = []string{article.Image}
	}
	e.log.Debug("article enriched", "identifier", c.Identifier, "excerpt_runes", utf8.RuneCountInString(c.Excerpt), "media", len(c.MediaURLs))
	return c
}

// ExtractFullArticle downloads pageURL and extracts its readable content.
func (e *Enricher) ExtractFullArticle(ctx context.Context, pageURL string) (*ArticleContent, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("bad url: %w", err)
	}
	if !e.allowed(ctx, parsed) {
		return nil, fmt.Errorf("disallowed by robots.txt")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	out := &ArticleContent{Image: leadImage(doc)}

	if article, err := readability.FromReader(bytes.NewReader(raw), parsed); err == nil {
		out.Title = strings.TrimSpace(article.Title)
		out.Text = PlainText(article.Content)
		if out.Text == "" {
			out.Text = PlainText(article.Excerpt)
		}
	}
	if out.Text == "" {
		out.Text = genericContent(doc)
	}
	if out.Text == "" {
		return nil, fmt.Errorf("can't get content")
	}
	return out, nil
}

// allowed consults robots.txt, cached per host. Unreachable robots files allow.
func (e *Enricher) allowed(ctx context.Context, u *url.URL) bool {
	group, cached := e.robots.Get(u.Host)
	if !cached {
		if n := e.robots.Sweep(); n > 0 {
			e.log.Debug("robots cache swept", "expired", n, "hosts", e.robots.Len())
		}
		group = e.loadRobots(ctx, u)
		e.robots.Set(u.Host, group)
	}
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (e *Enricher) loadRobots(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Debug("robots.txt unavailable", "host", u.Host, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		e.log.Debug("robots.txt unparsable", "host", u.Host, "error", err)
		return nil
	}
	return data.FindGroup(e.userAgent)
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
