package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/aipost/internal/config"
	"github.com/deusflow/aipost/internal/retry"
)

const linkedInFeedURL = "https://www.linkedin.com/feed/update/"

var errProcessing = errors.New("post still processing")

// LinkedIn publishes through the versioned REST Posts API.
type LinkedIn struct {
	client    *http.Client
	baseURL   string
	token     string
	orgID     string
	authorURN string
	version   string
	verify    retry.RetryConfig
	log       *slog.Logger
}

func NewLinkedIn(s config.Social, timeout time.Duration, log *slog.Logger) *LinkedIn {
	return &LinkedIn{
		client:    &http.Client{Timeout: timeout},
		baseURL:   "https://api.linkedin.com",
		token:     s.LinkedInToken,
		orgID:     s.LinkedInOrgID,
		authorURN: s.LinkedInAuthorURN,
		version:   s.LinkedInVersion,
		verify:    retry.RetryConfig{MaxAttempts: s.VerifyAttempts, Delay: s.VerifyDelay},
		log:       log,
	}
}

// WithBaseURL points the client at another API host. Used by tests.
func (l *LinkedIn) WithBaseURL(base string) *LinkedIn {
	l.baseURL = strings.TrimRight(base, "/")
	return l
}

func (l *LinkedIn) Platform() string { return config.PlatformLinkedIn }
func (l *LinkedIn) MaxRunes() int    { return MaxLinkedInRunes }

// Post shares text as a public feed post. Media URLs are not uploaded.
func (l *LinkedIn) Post(ctx context.Context, text string, _ []string) (Published, error) {
	author, err := l.author(ctx)
	if err != nil {
		return Published{}, err
	}

	payload := map[string]any{
		"author":     author,
		"commentary": text,
		"visibility": "PUBLIC",
		"distribution": map[string]any{
			"feedDistribution":               "MAIN_FEED",
			"targetEntities":                 []any{},
			"thirdPartyDistributionChannels": []any{},
		},
		"lifecycleState":            "PUBLISHED",
		"isReshareDisabledByAuthor": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Published{}, err
	}

	req, err := l.request(ctx, http.MethodPost, "/rest/posts", bytes.NewReader(body))
	if err != nil {
		return Published{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return Published{}, fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Published{}, apiError("linkedin", resp)
	}

	urn := resp.Header.Get("x-restli-id")
	if urn == "" {
		urn = resp.Header.Get("X-LinkedIn-Id")
	}
	if urn == "" {
		return Published{}, errors.New("linkedin returned no post id")
	}

	out := Published{URL: linkedInFeedURL + urn}
	if l.verify.MaxAttempts > 0 {
		if err := retry.WithRetry(ctx, l.verify, func() error { return l.checkPublished(ctx, urn) }); err != nil {
			l.log.Warn("linkedin post not confirmed", "urn", urn, "error", err)
			out.Warning = "could not verify post: " + err.Error()
		}
	}
	return out, nil
}

func (l *LinkedIn) author(ctx context.Context) (string, error) {
	if l.orgID != "" {
		return "urn:li:organization:" + l.orgID, nil
	}
	if l.authorURN != "" {
		return l.authorURN, nil
	}

	req, err := l.request(ctx, http.MethodGet, "/v2/userinfo", nil)
	if err != nil {
		return "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve linkedin author: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError("linkedin", resp)
	}
	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return "", errors.New("linkedin userinfo has no subject")
	}
	l.authorURN = "urn:li:person:" + info.Sub
	return l.authorURN, nil
}

func (l *LinkedIn) checkPublished(ctx context.Context, urn string) error {
	req, err := l.request(ctx, http.MethodGet, "/rest/posts/"+url.PathEscape(urn), nil)
	if err != nil {
		return retry.Stop(err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("linkedin", resp)
	}
	var post struct {
		LifecycleState string `json:"lifecycleState"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return retry.Stop(err)
	}
	if post.LifecycleState == "PROCESSING" {
		return errProcessing
	}
	return nil
}

func (l *LinkedIn) request(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, l.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, l.baseURL+path, body)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+l.token)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	if l.version != "" {
		req.Header.Set("LinkedIn-Version", l.version)
	}
	return req, nil
}
