package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// Notion database property names.
const (
	propTitle          = "Title"
	propIdentifier     = "Identifier"
	propLink           = "Link"
	propSource         = "Source"
	propScore          = "Score"
	propXText          = "X Text"
	propLinkedInText   = "LinkedIn Text"
	propSummaryMethod  = "Summary Method"
	propMediaURLs      = "Media URLs"
	propPublishedTime  = "Published Time"
	propScheduledTime  = "Scheduled Time"
	propStatus         = "Status"
	propPostedTime     = "Posted Time"
	propErrorMessage   = "Error Message"
	propThreadGroupID  = "Thread Group ID"
	propThreadPosition = "Thread Position"
)

var platformProps = map[string]string{
	"x":        "X URL",
	"linkedin": "LinkedIn URL",
	"telegram": "Telegram URL",
}

const notionAPIBase = "https://api.notion.com/v1"

// Notion keeps the queue in a Notion database.
type Notion struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
}

// NewNotion builds the store on client. A baseURL other than the public API
// redirects every call there, which is how tests and proxies plug in.
func NewNotion(client *http.Client, baseURL, token, databaseID string) *Notion {
	if client == nil {
		client = &http.Client{}
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL != "" && baseURL != notionAPIBase {
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			next := client.Transport
			if next == nil {
				next = http.DefaultTransport
			}
			redirected := *client
			redirected.Transport = &rebaseTransport{base: u, next: next}
			client = &redirected
		}
	}
	return &Notion{
		client:     notionapi.NewClient(notionapi.Token(token), notionapi.WithHTTPClient(client)),
		databaseID: notionapi.DatabaseID(databaseID),
	}
}

// rebaseTransport swaps the API origin and /v1 prefix for base.
type rebaseTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *rebaseTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.URL.Path = strings.TrimRight(t.base.Path, "/") + strings.TrimPrefix(r.URL.Path, "/v1")
	r.URL.RawPath = ""
	r.Host = t.base.Host
	return t.next.RoundTrip(r)
}

func (n *Notion) Close() error { return nil }

func (n *Notion) CreateEntry(ctx context.Context, e Entry) (string, error) {
	props := notionapi.Properties{
		propTitle:         &notionapi.TitleProperty{Title: textChunks(e.Title)},
		propIdentifier:    richTextProp(e.Identifier),
		propSource:        richTextProp(e.Source),
		propScore:         &notionapi.NumberProperty{Number: float64(e.Score)},
		propXText:         richTextProp(e.ShortText),
		propLinkedInText:  richTextProp(e.LongText),
		propSummaryMethod: richTextProp(e.SummaryMethod),
		propMediaURLs:     richTextProp(strings.Join(e.MediaURLs, " ")),
		propScheduledTime: dateProp(e.ScheduledTime),
		propStatus:        selectProp(string(e.Status)),
	}
	if e.Link != "" {
		props[propLink] = &notionapi.URLProperty{URL: e.Link}
	}
	if !e.PublishedAt.IsZero() {
		props[propPublishedTime] = dateProp(e.PublishedAt)
	}
	if e.ErrorMessage != "" {
		props[propErrorMessage] = richTextProp(e.ErrorMessage)
	}
	if e.ThreadGroupID != "" {
		props[propThreadGroupID] = richTextProp(e.ThreadGroupID)
		props[propThreadPosition] = &notionapi.NumberProperty{Number: float64(e.ThreadPosition)}
	}
	for platform, link := range e.PostURLs {
		if prop, ok := platformProps[platform]; ok && link != "" {
			props[prop] = &notionapi.URLProperty{URL: link}
		}
	}

	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: n.databaseID,
		},
		Properties: props,
	})
	if err != nil {
		return "", &WriteError{Identifier: e.Identifier, Err: err}
	}
	return string(page.ID), nil
}

func (n *Notion) QueryByStatus(ctx context.Context, q Query) ([]Entry, error) {
	var and notionapi.AndCompoundFilter
	if len(q.Statuses) > 0 {
		var or notionapi.OrCompoundFilter
		for _, s := range q.Statuses {
			or = append(or, &notionapi.PropertyFilter{
				Property: propStatus,
				Select:   &notionapi.SelectFilterCondition{Equals: string(s)},
			})
		}
		and = append(and, &or)
	}
	if !q.ScheduledFrom.IsZero() {
		from := notionapi.Date(q.ScheduledFrom.UTC())
		and = append(and, &notionapi.PropertyFilter{
			Property: propScheduledTime,
			Date:     &notionapi.DateFilterCondition{OnOrAfter: &from},
		})
	}
	if !q.ScheduledTo.IsZero() {
		to := notionapi.Date(q.ScheduledTo.UTC())
		and = append(and, &notionapi.PropertyFilter{
			Property: propScheduledTime,
			Date:     &notionapi.DateFilterCondition{OnOrBefore: &to},
		})
	}

	req := &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: propScheduledTime, Direction: notionapi.SortOrderASC},
			{Property: propThreadPosition, Direction: notionapi.SortOrderASC},
		},
		PageSize: 100,
	}
	if len(and) > 0 {
		req.Filter = &and
	}

	var out []Entry
	for {
		resp, err := n.client.Database.Query(ctx, n.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("query notion: %w", err)
		}
		for _, p := range resp.Results {
			out = append(out, pageEntry(p))
		}
		if q.Limit > 0 && len(out) >= q.Limit {
			return out[:q.Limit], nil
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return out, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

func (n *Notion) UpdateEntry(ctx context.Context, id string, u Update) error {
	props := notionapi.Properties{}
	if u.Status != "" {
		props[propStatus] = selectProp(string(u.Status))
	}
	if u.Platform != "" && u.PostURL != "" {
		prop, ok := platformProps[u.Platform]
		if !ok {
			return fmt.Errorf("unknown platform %q", u.Platform)
		}
		props[prop] = &notionapi.URLProperty{URL: u.PostURL}
	}
	if u.PostedTime != nil {
		props[propPostedTime] = dateProp(*u.PostedTime)
	}
	if u.ErrorMessage != nil {
		props[propErrorMessage] = richTextProp(*u.ErrorMessage)
	}
	if len(props) == 0 {
		return nil
	}

	_, err := n.client.Page.Update(ctx, notionapi.PageID(id), &notionapi.PageUpdateRequest{Properties: props})
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("update entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update entry %s: %w", id, err)
	}
	return nil
}

// Notion caps a single rich text object at 2000 characters.
const notionTextChunk = 2000

func textChunks(s string) []notionapi.RichText {
	runes := []rune(s)
	chunks := []notionapi.RichText{}
	for len(runes) > 0 {
		n := min(len(runes), notionTextChunk)
		chunks = append(chunks, notionapi.RichText{Text: &notionapi.Text{Content: string(runes[:n])}})
		runes = runes[n:]
	}
	return chunks
}

func richTextProp(s string) *notionapi.RichTextProperty {
	return &notionapi.RichTextProperty{RichText: textChunks(s)}
}

func selectProp(s string) *notionapi.SelectProperty {
	return &notionapi.SelectProperty{Select: notionapi.Option{Name: s}}
}

func dateProp(t time.Time) *notionapi.DateProperty {
	start := notionapi.Date(t.UTC())
	return &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}}
}

func propText(p notionapi.Property) string {
	var parts []notionapi.RichText
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		parts = v.Title
	case *notionapi.RichTextProperty:
		parts = v.RichText
	}
	var b strings.Builder
	for _, t := range parts {
		switch {
		case t.PlainText != "":
			b.WriteString(t.PlainText)
		case t.Text != nil:
			b.WriteString(t.Text.Content)
		}
	}
	return b.String()
}

func propNumber(p notionapi.Property) int {
	if v, ok := p.(*notionapi.NumberProperty); ok {
		return int(v.Number)
	}
	return 0
}

func propDate(p notionapi.Property) time.Time {
	v, ok := p.(*notionapi.DateProperty)
	if !ok || v.Date == nil || v.Date.Start == nil {
		return time.Time{}
	}
	return time.Time(*v.Date.Start).UTC()
}

func propURL(p notionapi.Property) string {
	if v, ok := p.(*notionapi.URLProperty); ok {
		return v.URL
	}
	return ""
}

func pageEntry(p notionapi.Page) Entry {
	props := p.Properties
	e := Entry{
		ID:             string(p.ID),
		Identifier:     propText(props[propIdentifier]),
		Title:          propText(props[propTitle]),
		Link:           propURL(props[propLink]),
		Source:         propText(props[propSource]),
		Score:          propNumber(props[propScore]),
		ShortText:      propText(props[propXText]),
		LongText:       propText(props[propLinkedInText]),
		SummaryMethod:  propText(props[propSummaryMethod]),
		MediaURLs:      strings.Fields(propText(props[propMediaURLs])),
		PublishedAt:    propDate(props[propPublishedTime]),
		ScheduledTime:  propDate(props[propScheduledTime]),
		ErrorMessage:   propText(props[propErrorMessage]),
		ThreadGroupID:  propText(props[propThreadGroupID]),
		ThreadPosition: propNumber(props[propThreadPosition]),
	}
	if v, ok := props[propStatus].(*notionapi.SelectProperty); ok {
		e.Status = Status(v.Select.Name)
	}
	if t := propDate(props[propPostedTime]); !t.IsZero() {
		e.PostedTime = &t
	}
	for platform, prop := range platformProps {
		if link := propURL(props[prop]); link != "" {
			if e.PostURLs == nil {
				e.PostURLs = map[string]string{}
			}
			e.PostURLs[platform] = link
		}
	}
	return e
}
