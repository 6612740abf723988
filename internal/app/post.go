package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/deusflow/aipost/internal/config"
	"github.com/deusflow/aipost/internal/metrics"
	"github.com/deusflow/aipost/internal/ratelimit"
	"github.com/deusflow/aipost/internal/social"
	"github.com/deusflow/aipost/internal/storage"
	"github.com/deusflow/aipost/internal/summarize"
)

// PostReport counts what a posting run did.
type PostReport struct {
	Due     int
	Posted  int
	Failed  int
	Skipped int
}

// Publisher posts due queue entries to one platform and records the
// outcome back into the queue.
type Publisher struct {
	Store  storage.Store
	Poster social.Poster
	// Required lists the platforms that must all carry a URL before an
	// entry is marked Posted.
	Required []string
	Pacer    *ratelimit.Pacer

	Log     *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Due returns the Scheduled entries whose time has come, grouped into
// threads. Each group is ordered by thread position.
func Due(ctx context.Context, store storage.Store, now time.Time) ([][]storage.Entry, error) {
	entries, err := store.QueryByStatus(ctx, storage.Query{
		Statuses:    []storage.Status{storage.StatusScheduled},
		ScheduledTo: now,
	})
	if err != nil {
		return nil, fmt.Errorf("query due entries: %w", err)
	}

	var order []string
	groups := map[string][]storage.Entry{}
	for _, e := range entries {
		key := e.ThreadGroupID
		if key == "" {
			key = e.ID
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	out := make([][]storage.Entry, 0, len(order))
	for _, key := range order {
		g := groups[key]
		sort.SliceStable(g, func(i, j int) bool { return g[i].ThreadPosition < g[j].ThreadPosition })
		out = append(out, g)
	}
	return out, nil
}

func (p *Publisher) Run(ctx context.Context, dryRun bool) (PostReport, error) {
	m := p.Metrics
	if m == nil {
		m = metrics.Global
	}
	platform := p.Poster.Platform()

	groups, err := Due(ctx, p.Store, p.now())
	if err != nil {
		return PostReport{}, err
	}

	var rep PostReport
	for _, g := range groups {
		rep.Due += len(g)
	}
	p.Log.Info("due entries", "platform", platform, "entries", rep.Due, "threads", len(groups))

	for _, g := range groups {
		for _, e := range g {
			if e.PostURLs[platform] != "" {
				rep.Skipped++
				continue
			}

			text := PostText(e, platform, p.Poster.MaxRunes())
			if text == "" {
				rep.Failed++
				m.IncrementPostsFailed()
				if err := p.markFailed(ctx, e, fmt.Sprintf("empty text for %s", platform), dryRun); err != nil {
					return rep, err
				}
				continue
			}

			if dryRun {
				p.Log.Info("dry run, not posting", "platform", platform, "id", e.ID, "title", e.Title, "text", text)
				rep.Skipped++
				continue
			}

			if p.Pacer != nil {
				if err := p.Pacer.Wait(ctx); err != nil {
					return rep, err
				}
			}

			pub, err := p.Poster.Post(ctx, text, e.MediaURLs)
			if err != nil {
				rep.Failed++
				m.IncrementPostsFailed()
				p.Log.Error("post failed", "platform", platform, "id", e.ID, "error", err)
				if err := p.markFailed(ctx, e, fmt.Sprintf("%s: %v", platform, err), false); err != nil {
					return rep, err
				}
				continue
			}

			rep.Posted++
			m.IncrementPostsSent()
			if err := p.markPosted(ctx, e, pub); err != nil {
				return rep, err
			}
			p.Log.Info("posted", "platform", platform, "id", e.ID, "url", pub.URL)
		}
	}
	return rep, nil
}

func (p *Publisher) markPosted(ctx context.Context, e storage.Entry, pub social.Published) error {
	platform := p.Poster.Platform()
	u := storage.Update{Platform: platform, PostURL: pub.URL}

	urls := map[string]string{platform: pub.URL}
	for k, v := range e.PostURLs {
		if v != "" {
			urls[k] = v
		}
	}
	if complete(urls, p.Required) {
		now := p.now()
		u.Status = storage.StatusPosted
		u.PostedTime = &now
	}
	if pub.Warning != "" {
		u.ErrorMessage = storage.ErrorText(pub.Warning)
	}
	if err := p.Store.UpdateEntry(ctx, e.ID, u); err != nil {
		return fmt.Errorf("record %s url for %s: %w", platform, e.ID, err)
	}
	return nil
}

func (p *Publisher) markFailed(ctx context.Context, e storage.Entry, msg string, dryRun bool) error {
	if dryRun {
		p.Log.Warn("dry run, entry would fail", "id", e.ID, "reason", msg)
		return nil
	}
	err := p.Store.UpdateEntry(ctx, e.ID, storage.Update{
		Status:       storage.StatusFailed,
		ErrorMessage: storage.ErrorText(msg),
	})
	if err != nil {
		return fmt.Errorf("mark %s failed: %w", e.ID, err)
	}
	return nil
}

func complete(urls map[string]string, required []string) bool {
	for _, r := range required {
		if urls[r] == "" {
			return false
		}
	}
	return true
}

// PostText picks the text for platform and enforces its hard limit.
// X gets the short text, the others the long one. The title is the
// last resort.
func PostText(e storage.Entry, platform string, maxRunes int) string {
	text := e.LongText
	if platform == config.PlatformX {
		text = e.ShortText
	}
	if text == "" {
		text = e.Title
	}
	return summarize.Truncate(text, maxRunes)
}

// Ready reports whether at least one entry is due. With a platform, entries
// already posted there do not count.
func Ready(ctx context.Context, store storage.Store, platform string, now time.Time) (bool, error) {
	groups, err := Due(ctx, store, now)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		for _, e := range g {
			if platform == "" || e.PostURLs[platform] == "" {
				return true, nil
			}
		}
	}
	return false, nil
}
