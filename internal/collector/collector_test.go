package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/aipost/internal/logger"
	"github.com/deusflow/aipost/internal/metrics"
	"github.com/deusflow/aipost/internal/news"
)

type staticSource struct {
	name  string
	items []news.Candidate
	err   error
	delay time.Duration
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Fetch(ctx context.Context) ([]news.Candidate, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.items, s.err
}

func TestCollectToleratesFailingSource(t *testing.T) {
	m := metrics.New()
	c := New([]Source{
		staticSource{name: "broken", err: errors.New("connection refused")},
		staticSource{name: "ok", items: []news.Candidate{{Identifier: "a"}, {Identifier: "b"}}},
	}, 2, logger.Discard(), m)

	batch := c.Collect(context.Background())
	require.Len(t, batch.Candidates, 2)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "broken", batch.Failures[0].Source)
	assert.EqualError(t, batch.Failures[0], "fetch broken: connection refused")
	assert.Equal(t, int64(1), m.FetchFailures)
	assert.Equal(t, int64(2), m.CandidatesFetched)
}

func TestCollectAllSourcesFailing(t *testing.T) {
	c := New([]Source{
		staticSource{name: "a", err: errors.New("boom")},
		staticSource{name: "b", err: errors.New("boom")},
	}, 1, logger.Discard(), metrics.New())

	batch := c.Collect(context.Background())
	assert.Empty(t, batch.Candidates)
	assert.Len(t, batch.Failures, 2)
}

func TestCollectDedupesAcrossSourcesKeepingFirst(t *testing.T) {
	// the first source is slower, order must still follow configuration
	c := New([]Source{
		staticSource{name: "A", delay: 20 * time.Millisecond, items: []news.Candidate{{Identifier: "X", SourceTag: "A"}}},
		staticSource{name: "B", items: []news.Candidate{{Identifier: "X", SourceTag: "B"}, {Identifier: "Y", SourceTag: "B"}}},
	}, 4, logger.Discard(), metrics.New())

	batch := c.Collect(context.Background())
	require.Len(t, batch.Candidates, 2)
	assert.Equal(t, "A", batch.Candidates[0].SourceTag)
	assert.Equal(t, "Y", batch.Candidates[1].Identifier)
	assert.Equal(t, 1, batch.Duplicates)
}

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>AI Blog</title>
  <item>
    <title>New &lt;b&gt;agents&lt;/b&gt; SDK</title>
    <link>https://www.example.co.uk/posts/agents-sdk</link>
    <description>&lt;p&gt;We shipped an &lt;a href="#"&gt;agents&lt;/a&gt; SDK.&lt;/p&gt;&lt;p&gt;Try it.&lt;/p&gt;</description>
    <pubDate>Mon, 10 Mar 2025 10:00:00 GMT</pubDate>
    <category>Research</category>
    <media:content url="https://cdn.example.co.uk/agents.png" medium="image"/>
  </item>
  <item>
    <title>Undated note</title>
    <guid>urn:note:1</guid>
    <enclosure url="https://cdn.example.co.uk/note.jpg" type="image/jpeg" length="10"/>
  </item>
  <item>
    <link>https://www.example.co.uk/untitled</link>
  </item>
</channel>
</rss>`

func TestRSSSourceMapsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aipost-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFixture)
	}))
	defer srv.Close()

	fetched := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src := NewRSSSource("blog", srv.URL, srv.Client(), "aipost-test")
	src.now = func() time.Time { return fetched }

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2, "untitled item is dropped")

	first := items[0]
	assert.Equal(t, "https://www.example.co.uk/posts/agents-sdk", first.Identifier)
	assert.Equal(t, "New agents SDK", first.Title)
	assert.Equal(t, "We shipped an agents SDK. Try it.", first.Excerpt)
	assert.Equal(t, "example.co.uk", first.SourceTag)
	assert.Equal(t, []string{"Research"}, first.CategoryTags)
	assert.Equal(t, []string{"https://cdn.example.co.uk/agents.png"}, first.MediaURLs)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), first.PublishedAt)

	second := items[1]
	assert.Equal(t, "urn:note:1", second.Identifier)
	assert.Equal(t, fetched, second.PublishedAt)
	assert.Equal(t, "blog", second.SourceTag)
	assert.Equal(t, []string{"https://cdn.example.co.uk/note.jpg"}, second.MediaURLs)
}

func TestRSSSourceHTTPErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	c := New([]Source{NewRSSSource("dead", srv.URL, srv.Client(), "ua")}, 1, logger.Discard(), metrics.New())
	batch := c.Collect(context.Background())
	assert.Empty(t, batch.Candidates)
	require.Len(t, batch.Failures, 1)
}

const arxivFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2025-03-10T00:00:00Z</updated>
  <entry>
    <id>http://arxiv.org/abs/2503.01234v2</id>
    <updated>2025-03-10T08:00:00Z</updated>
    <published>2025-03-09T18:00:00Z</published>
    <title>Reasoning Agents
      at Scale</title>
    <summary>  We present a novel
      method.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2503.01234v2" rel="alternate" type="text/html"/>
    <arxiv:primary_category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

func TestArxivSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cat:cs.AI OR cat:cs.LG", r.URL.Query().Get("search_query"))
		assert.Equal(t, "submittedDate", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFixture)
	}))
	defer srv.Close()

	src := NewArxivSource("arxiv", srv.URL, []string{"cs.AI", "cs.LG"}, 5, srv.Client(), "ua")
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	p := items[0]
	assert.Equal(t, "https://arxiv.org/abs/2503.01234", p.Identifier)
	assert.Equal(t, "Reasoning Agents at Scale", p.Title)
	assert.Equal(t, "We present a novel method.", p.Excerpt)
	assert.Equal(t, "arxiv", p.SourceTag)
	assert.Equal(t, []string{"cs.LG", "cs.AI"}, p.CategoryTags)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, p.Authors)
	assert.Equal(t, time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC), p.PublishedAt)
}

func TestArxivID(t *testing.T) {
	assert.Equal(t, "2503.01234", ArxivID("http://arxiv.org/abs/2503.01234v12"))
	assert.Equal(t, "cs/0112017", ArxivID("http://arxiv.org/abs/cs/0112017v1"))
	assert.Equal(t, "", ArxivID("https://example.com/paper"))
}
