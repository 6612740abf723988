// Package social publishes queued posts to X, LinkedIn and Telegram.
package social

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/deusflow/aipost/internal/config"
)

// Hard length limits enforced right before posting, in runes.
const (
	MaxXRunes        = 280
	MaxLinkedInRunes = 3000
	MaxTelegramRunes = 4096
)

// Published describes a successful post.
type Published struct {
	URL string
	// Warning is set when the post went out but could not be confirmed as
	// publicly visible.
	Warning string
}

// Poster publishes text, with optional media URLs, to one platform.
type Poster interface {
	Platform() string
	MaxRunes() int
	Post(ctx context.Context, text string, media []string) (Published, error)
}

// APIError is a non-2xx answer from a platform API.
type APIError struct {
	Platform string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Platform, e.Status, e.Body)
}

func apiError(platform string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &APIError{Platform: platform, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// New builds the poster for platform from configuration, checking that its
// credentials are present.
func New(cfg *config.Config, platform string, log *slog.Logger) (Poster, error) {
	if err := cfg.RequirePlatform(platform); err != nil {
		return nil, err
	}
	s := cfg.Social
	timeout := cfg.HTTP.Timeout
	switch platform {
	case config.PlatformX:
		return NewX(XCredentials{
			ConsumerKey:    s.XConsumerKey,
			ConsumerSecret: s.XConsumerSecret,
			AccessToken:    s.XAccessToken,
			AccessSecret:   s.XAccessSecret,
		}, timeout, log), nil
	case config.PlatformLinkedIn:
		return NewLinkedIn(s, timeout, log), nil
	case config.PlatformTelegram:
		return NewTelegram(s.TelegramToken, s.TelegramChatID, timeout, log), nil
	}
	return nil, fmt.Errorf("unknown platform %q", platform)
}
