package collector

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/aipost/internal/news"
)

const arxivAbsBase = "https://arxiv.org/abs/"

var arxivVersion = regexp.MustCompile(`v\d+$`)

// ArxivSource queries the arXiv export API for the newest submissions in a
// set of categories. The API answers with Atom, which gofeed parses.
type ArxivSource struct {
	name       string
	endpoint   string
	categories []string
	maxResults int
	parser     *gofeed.Parser
}

func NewArxivSource(name, endpoint string, categories []string, maxResults int, client *http.Client, userAgent string) *ArxivSource {
	if maxResults <= 0 {
		maxResults = 100
	}
	fp := gofeed.NewParser()
	fp.Client = client
	fp.UserAgent = userAgent
	return &ArxivSource{
		name:       name,
		endpoint:   endpoint,
		categories: categories,
		maxResults: maxResults,
		parser:     fp,
	}
}

func (s *ArxivSource) Name() string { return s.name }

func (s *ArxivSource) queryURL() string {
	terms := make([]string, 0, len(s.categories))
	for _, c := range s.categories {
		terms = append(terms, "cat:"+c)
	}
	q := url.Values{}
	q.Set("search_query", strings.Join(terms, " OR "))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(s.maxResults))
	return s.endpoint + "?" + q.Encode()
}

func (s *ArxivSource) Fetch(ctx context.Context) ([]news.Candidate, error) {
	feed, err := s.parser.ParseURLWithContext(s.queryURL(), ctx)
	if err != nil {
		return nil, err
	}

	out := make([]news.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := ArxivID(item.GUID)
		if id == "" {
			id = ArxivID(item.Link)
		}
		title := strings.Join(strings.Fields(item.Title), " ")
		if id == "" || title == "" || item.PublishedParsed == nil {
			continue
		}

		var authors []string
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				authors = append(authors, a.Name)
			}
		}

		out = append(out, news.Candidate{
			Identifier:   arxivAbsBase + id,
			Title:        title,
			Excerpt:      strings.Join(strings.Fields(item.Description), " "),
			Link:         arxivAbsBase + id,
			PublishedAt:  item.PublishedParsed.UTC(),
			SourceTag:    "arxiv",
			CategoryTags: arxivCategories(item),
			Authors:      authors,
		})
	}
	return out, nil
}

// ArxivID extracts the paper id from an abs URL or Atom id, dropping the
// version suffix so a revised paper is still the same paper.
func ArxivID(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, "/abs/"); i >= 0 {
		ref = ref[i+len("/abs/"):]
	} else {
		return ""
	}
	ref = strings.TrimSuffix(ref, "/")
	return arxivVersion.ReplaceAllString(ref, "")
}

// arxivCategories lists the primary category first.
func arxivCategories(item *gofeed.Item) []string {
	var out []string
	seen := map[string]bool{}
	if ext, ok := item.Extensions["arxiv"]; ok {
		for _, p := range ext["primary_category"] {
			if term := p.Attrs["term"]; term != "" && !seen[term] {
				seen[term] = true
				out = append(out, term)
			}
		}
	}
	for _, c := range item.Categories {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

