package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/deusflow/aipost/internal/config"
)

const (
	maxXMedia      = 4
	maxMediaBytes  = 5 << 20
	xStatusURLBase = "https://x.com/i/web/status/"
)

// X posts through the v2 tweets endpoint with OAuth 1.0a user context.
type X struct {
	api        *http.Client
	download   *http.Client
	apiBase    string
	uploadBase string
	log        *slog.Logger
}

type XCredentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

func NewX(creds XCredentials, timeout time.Duration, log *slog.Logger) *X {
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	api := cfg.Client(oauth1.NoContext, oauth1.NewToken(creds.AccessToken, creds.AccessSecret))
	api.Timeout = timeout
	return &X{
		api:        api,
		download:   &http.Client{Timeout: timeout},
		apiBase:    "https://api.twitter.com",
		uploadBase: "https://upload.twitter.com",
		log:        log,
	}
}

// WithBaseURLs points the client at other hosts. Used by tests.
func (x *X) WithBaseURLs(apiBase, uploadBase string) *X {
	x.apiBase = strings.TrimRight(apiBase, "/")
	x.uploadBase = strings.TrimRight(uploadBase, "/")
	return x
}

func (x *X) Platform() string { return config.PlatformX }
func (x *X) MaxRunes() int    { return MaxXRunes }

func (x *X) Post(ctx context.Context, text string, media []string) (Published, error) {
	var mediaIDs []string
	for _, u := range media {
		if len(mediaIDs) == maxXMedia {
			break
		}
		id, err := x.uploadMedia(ctx, u)
		if err != nil {
			x.log.Warn("media upload failed, posting without it", "url", u, "error", err)
			continue
		}
		mediaIDs = append(mediaIDs, id)
	}

	payload := map[string]any{"text": text}
	if len(mediaIDs) > 0 {
		payload["media"] = map[string]any{"media_ids": mediaIDs}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Published{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.apiBase+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return Published{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.api.Do(req)
	if err != nil {
		return Published{}, fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Published{}, apiError("x", resp)
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return Published{}, fmt.Errorf("decode tweet response: %w", err)
	}
	if created.Data.ID == "" {
		return Published{}, fmt.Errorf("x returned no tweet id")
	}

	out := Published{URL: xStatusURLBase + created.Data.ID}
	if err := x.verify(ctx, created.Data.ID); err != nil {
		out.Warning = "could not verify tweet: " + err.Error()
	}
	return out, nil
}

func (x *X) verify(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.apiBase+"/2/tweets/"+id, nil)
	if err != nil {
		return err
	}
	resp, err := x.api.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("x", resp)
	}
	return nil
}

func (x *X) uploadMedia(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := x.download.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if len(data) > maxMediaBytes {
		return "", fmt.Errorf("media larger than %d bytes", maxMediaBytes)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("media", "media")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	up, err := http.NewRequestWithContext(ctx, http.MethodPost, x.uploadBase+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", err
	}
	up.Header.Set("Content-Type", mw.FormDataContentType())

	upResp, err := x.api.Do(up)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer upResp.Body.Close()
	if upResp.StatusCode != http.StatusOK && upResp.StatusCode != http.StatusCreated {
		return "", apiError("x", upResp)
	}
	var uploaded struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(upResp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if uploaded.MediaIDString == "" {
		return "", fmt.Errorf("upload returned no media id")
	}
	return uploaded.MediaIDString, nil
}
