package social

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/aipost/internal/config"
	"github.com/deusflow/aipost/internal/logger"
	"github.com/deusflow/aipost/internal/retry"
)

func TestXPostWithMedia(t *testing.T) {
	var tweet map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/image.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpegbytes"))
	})
	mux.HandleFunc("/1.1/media/upload.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "OAuth ")
		_, _ = io.WriteString(w, `{"media_id_string":"m-1"}`)
	})
	mux.HandleFunc("/2/tweets", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tweet))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":"123","text":"hi"}}`)
	})
	mux.HandleFunc("/2/tweets/123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"id":"123"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	x := NewX(XCredentials{"ck", "cs", "at", "as"}, 5*time.Second, logger.Discard()).WithBaseURLs(srv.URL, srv.URL)
	pub, err := x.Post(context.Background(), "hello", []string{srv.URL + "/image.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/i/web/status/123", pub.URL)
	assert.Empty(t, pub.Warning)
	assert.Equal(t, "hello", tweet["text"])
	assert.Equal(t, map[string]any{"media_ids": []any{"m-1"}}, tweet["media"])
}

func TestXPostRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"duplicate content"}`)
	}))
	defer srv.Close()

	x := NewX(XCredentials{"ck", "cs", "at", "as"}, 5*time.Second, logger.Discard()).WithBaseURLs(srv.URL, srv.URL)
	_, err := x.Post(context.Background(), "hello", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Body, "duplicate")
}

func TestXMissingMediaStillPosts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2/tweets", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "media")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":"9"}}`)
	})
	mux.HandleFunc("/2/tweets/9", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	x := NewX(XCredentials{"ck", "cs", "at", "as"}, 5*time.Second, logger.Discard()).WithBaseURLs(srv.URL, srv.URL)
	pub, err := x.Post(context.Background(), "hello", []string{srv.URL + "/missing.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/i/web/status/9", pub.URL)
	assert.NotEmpty(t, pub.Warning)
}

func TestLinkedInPost(t *testing.T) {
	var posted map[string]any
	checks := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"sub":"abc"}`)
	})
	mux.HandleFunc("/rest/posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "202410", r.Header.Get("LinkedIn-Version"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.Header().Set("x-restli-id", "urn:li:share:42")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/rest/posts/", func(w http.ResponseWriter, r *http.Request) {
		checks++
		state := "PUBLISHED"
		if checks == 1 {
			state = "PROCESSING"
		}
		_, _ = io.WriteString(w, `{"lifecycleState":"`+state+`"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := config.Social{LinkedInToken: "tok", LinkedInVersion: "202410", VerifyAttempts: 3, VerifyDelay: time.Millisecond}
	li := NewLinkedIn(s, 5*time.Second, logger.Discard()).WithBaseURL(srv.URL)
	pub, err := li.Post(context.Background(), "long text", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:42", pub.URL)
	assert.Empty(t, pub.Warning)
	assert.Equal(t, "urn:li:person:abc", posted["author"])
	assert.Equal(t, "long text", posted["commentary"])
	assert.Equal(t, 2, checks)
}

func TestLinkedInOrganizationAuthor(t *testing.T) {
	var posted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/userinfo" {
			t.Error("userinfo should not be called when an organization is configured")
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.Header().Set("x-restli-id", "urn:li:share:1")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := config.Social{LinkedInToken: "tok", LinkedInOrgID: "777"}
	li := NewLinkedIn(s, 5*time.Second, logger.Discard()).WithBaseURL(srv.URL)
	_, err := li.Post(context.Background(), "text", nil)
	require.NoError(t, err)
	assert.Equal(t, "urn:li:organization:777", posted["author"])
}

func TestTelegramPost(t *testing.T) {
	tests := []struct {
		name   string
		chatID string
		media  []string
		method string
		chat   string
		want   string
	}{
		{"public channel", "@ainews", nil, "sendMessage", `{"id":-1001,"username":"ainews"}`, "https://t.me/ainews/5"},
		{"private supergroup", "-1001234", nil, "sendMessage", `{"id":-1001234}`, "https://t.me/c/1234/5"},
		{"photo caption", "@ainews", []string{"https://img.example/a.png"}, "sendPhoto", `{"id":-1,"username":"ainews"}`, "https://t.me/ainews/5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.True(t, strings.HasSuffix(r.URL.Path, "/bottok/"+tt.method), r.URL.Path)
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.NotContains(t, body, "parse_mode")
				_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":5,"chat":`+tt.chat+`}}`)
			}))
			defer srv.Close()

			tg := NewTelegram("tok", tt.chatID, 5*time.Second, logger.Discard()).WithBaseURL(srv.URL)
			pub, err := tg.Post(context.Background(), "hello <b>", tt.media)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pub.URL)
		})
	}
}

func TestTelegramRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":1,"username":"c"}}}`)
	}))
	defer srv.Close()

	tg := NewTelegram("tok", "@c", 5*time.Second, logger.Discard()).
		WithBaseURL(srv.URL).
		WithRetry(retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond})
	_, err := tg.Post(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestTelegramClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	tg := NewTelegram("tok", "@c", 5*time.Second, logger.Discard()).
		WithBaseURL(srv.URL).
		WithRetry(retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond})
	_, err := tg.Post(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewChecksCredentials(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, config.PlatformTelegram, logger.Discard())
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)

	cfg.Social.TelegramToken = "t"
	cfg.Social.TelegramChatID = "@c"
	p, err := New(cfg, config.PlatformTelegram, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, config.PlatformTelegram, p.Platform())
	assert.Equal(t, MaxTelegramRunes, p.MaxRunes())
}
