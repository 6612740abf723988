package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/aipost/internal/config"
	"github.com/deusflow/aipost/internal/retry"
)

// Telegram caption limit for sendPhoto.
const maxCaptionRunes = 1024

// Telegram sends messages through the Bot API. Text goes out without a
// parse mode so summaries never need escaping.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
	retry   retry.RetryConfig
	log     *slog.Logger
}

func NewTelegram(token, chatID string, timeout time.Duration, log *slog.Logger) *Telegram {
	return &Telegram{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		retry:   retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
		log:     log,
	}
}

// WithBaseURL points the client at another Bot API host. Used by tests.
func (t *Telegram) WithBaseURL(base string) *Telegram {
	t.baseURL = strings.TrimRight(base, "/")
	return t
}

// WithRetry replaces the retry policy for send calls.
func (t *Telegram) WithRetry(cfg retry.RetryConfig) *Telegram {
	t.retry = cfg
	return t
}

func (t *Telegram) Platform() string { return config.PlatformTelegram }
func (t *Telegram) MaxRunes() int    { return MaxTelegramRunes }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"chat"`
	} `json:"result"`
}

// Post sends a photo with the text as caption when media is present and
// the text fits a caption, otherwise a plain message.
func (t *Telegram) Post(ctx context.Context, text string, media []string) (Published, error) {
	method := "sendMessage"
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"disable_web_page_preview": false,
	}
	if len(media) > 0 && len([]rune(text)) <= maxCaptionRunes {
		method = "sendPhoto"
		payload = map[string]any{
			"chat_id": t.chatID,
			"photo":   media[0],
			"caption": text,
		}
	}

	var res telegramResponse
	err := retry.WithRetry(ctx, t.retry, func() error {
		var sendErr error
		res, sendErr = t.send(ctx, method, payload)
		if sendErr != nil {
			t.log.Warn("telegram send failed", "method", method, "error", sendErr)
		}
		return sendErr
	})
	if err != nil && method == "sendPhoto" {
		// A broken image URL should not cost the post.
		t.log.Warn("photo rejected, sending text only", "error", err)
		method = "sendMessage"
		payload = map[string]any{"chat_id": t.chatID, "text": text}
		res, err = t.send(ctx, method, payload)
	}
	if err != nil {
		return Published{}, err
	}
	return Published{URL: t.messageURL(res)}, nil
}

func (t *Telegram) send(ctx context.Context, method string, payload map[string]any) (telegramResponse, error) {
	var out telegramResponse
	body, err := json.Marshal(payload)
	if err != nil {
		return out, retry.Stop(fmt.Errorf("error make JSON: %w", err))
	}
	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return out, retry.Stop(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := apiError("telegram", resp)
		// 4xx other than rate limiting will not improve on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return out, retry.Stop(apiErr)
		}
		return out, apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode telegram response: %w", err)
	}
	if !out.OK {
		return out, retry.Stop(fmt.Errorf("telegram API error: %s", out.Description))
	}
	return out, nil
}

// messageURL builds a t.me link: public channels by username, private
// supergroups through the /c/ form.
func (t *Telegram) messageURL(res telegramResponse) string {
	msgID := res.Result.MessageID
	if u := res.Result.Chat.Username; u != "" {
		return fmt.Sprintf("https://t.me/%s/%d", u, msgID)
	}
	if strings.HasPrefix(t.chatID, "@") {
		return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(t.chatID, "@"), msgID)
	}
	if id, ok := strings.CutPrefix(t.chatID, "-100"); ok {
		return fmt.Sprintf("https://t.me/c/%s/%d", id, msgID)
	}
	return fmt.Sprintf("tg://message?chat_id=%s&message_id=%d", t.chatID, msgID)
}
