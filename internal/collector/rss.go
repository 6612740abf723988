package collector

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/publicsuffix"

	"github.com/deusflow/aipost/internal/news"
	"github.com/deusflow/aipost/internal/scraper"
)

// RSSSource reads an RSS or Atom feed.
type RSSSource struct {
	name   string
	url    string
	parser *gofeed.Parser
	now    func() time.Time
}

func NewRSSSource(name, feedURL string, client *http.Client, userAgent string) *RSSSource {
	fp := gofeed.NewParser()
	fp.Client = client
	fp.UserAgent = userAgent
	return &RSSSource{name: name, url: feedURL, parser: fp, now: time.Now}
}

func (s *RSSSource) Name() string { return s.name }

func (s *RSSSource) Fetch(ctx context.Context) ([]news.Candidate, error) {
	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, err
	}

	fetchedAt := s.now().UTC()
	items := make([]news.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		c, ok := s.toCandidate(item, fetchedAt)
		if !ok {
			continue
		}
		items = append(items, c)
	}
	return items, nil
}

func (s *RSSSource) toCandidate(item *gofeed.Item, fetchedAt time.Time) (news.Candidate, bool) {
	title := strings.Join(strings.Fields(scraper.PlainText(item.Title)), " ")
	id := strings.TrimSpace(item.Link)
	if id == "" {
		id = strings.TrimSpace(item.GUID)
	}
	if title == "" || id == "" {
		return news.Candidate{}, false
	}

	// Undated items are treated as just published.
	published := fetchedAt
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	excerpt := item.Description
	if excerpt == "" {
		excerpt = item.Content
	}

	var authors []string
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	return news.Candidate{
		Identifier:   id,
		Title:        title,
		Excerpt:      scraper.PlainText(excerpt),
		Link:         strings.TrimSpace(item.Link),
		PublishedAt:  published,
		SourceTag:    sourceTag(item.Link, s.name),
		CategoryTags: item.Categories,
		MediaURLs:    mediaURLs(item),
		Authors:      authors,
	}, true
}

// sourceTag is the registrable domain of link, e.g. "openai.com".
func sourceTag(link, fallback string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return fallback
	}
	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return strings.TrimPrefix(host, "www.")
	}
	return domain
}

func mediaURLs(item *gofeed.Item) []string {
	var out []string
	seen := map[string]bool{}
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] || !strings.HasPrefix(u, "http") {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	if item.Image != nil {
		add(item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			add(enc.URL)
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if medium := ext.Attrs["medium"]; medium != "" && medium != "image" {
					continue
				}
				add(ext.Attrs["url"])
			}
		}
	}
	return out
}
