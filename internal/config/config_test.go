package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"AIPOST_CONFIG", "AIPOST_MODE", "LOG_LEVEL", "DEBUG", "QUEUE_BACKEND",
		"NOTION_TOKEN", "NOTION_DB_ID", "DATABASE_URL", "FETCH_CONCURRENCY", "POST_PACE", "HTTP_TIMEOUT",
		"REQUIRED_PLATFORMS", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	// an explicit path that does not exist is an error
	require.Error(t, err)
	var cerr *Error
	require.True(t, errors.As(err, &cerr))

	t.Chdir(t.TempDir())
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeNews, cfg.Mode)
	assert.Equal(t, 0.7, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, 7*24*time.Hour, cfg.Dedup.Window)
	assert.Equal(t, 280, cfg.Summary.ShortMax)
	assert.Equal(t, 2000, cfg.Summary.LongMax)
	p := cfg.Profile()
	assert.Equal(t, 48*time.Hour, p.MaxAge)
	assert.Equal(t, 15, p.Tiers[0].Points)
}

func TestLoadYAMLOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "aipost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: papers
dedup:
  similarity_threshold: 0.8
profiles:
  papers:
    max_age: 72h
    recency_tiers:
      - {max_age: 24h, points: 9}
      - {max_age: 72h, points: 4}
    keyword_points: 1
    category_points: 5
    preferred_tags: [cs.CL]
    sources:
      - {name: arxiv, kind: arxiv, url: "https://export.arxiv.org/api/query"}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModePapers, cfg.Mode)
	assert.Equal(t, 0.8, cfg.Dedup.SimilarityThreshold)
	// untouched sections keep their defaults
	assert.Equal(t, 7*24*time.Hour, cfg.Dedup.Window)
	p := cfg.Profile()
	assert.Equal(t, 72*time.Hour, p.MaxAge)
	assert.Equal(t, []string{"cs.CL"}, p.PreferredTags)
	// the news profile was not mentioned and is still available
	require.NotNil(t, cfg.Profiles[ModeNews])
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("AIPOST_MODE", "PAPERS")
	t.Setenv("DEBUG", "true")
	t.Setenv("POST_PACE", "5s")
	t.Setenv("REQUIRED_PLATFORMS", "x, telegram")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModePapers, cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Social.Pace)
	assert.Equal(t, []string{"x", "telegram"}, cfg.Social.Required)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{name: "unknown mode", env: map[string]string{"AIPOST_MODE": "blogs"}},
		{name: "bad integer", env: map[string]string{"FETCH_CONCURRENCY": "many"}},
		{name: "bad backend", env: map[string]string{"QUEUE_BACKEND": "mongo"}},
		{name: "threshold above one", yaml: "dedup:\n  similarity_threshold: 1.5\n"},
		{name: "non decreasing tiers", yaml: `
profiles:
  news:
    max_age: 48h
    recency_tiers:
      - {max_age: 6h, points: 5}
      - {max_age: 12h, points: 8}
    sources:
      - {name: a, kind: rss, url: "https://example.com/feed"}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			t.Chdir(dir)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = filepath.Join(dir, "c.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			}
			_, err := Load(path)
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
		})
	}
}

func TestRequireQueueAndPlatform(t *testing.T) {
	cfg := Default()
	var cerr *Error

	require.ErrorAs(t, cfg.RequireQueue(), &cerr)
	assert.Equal(t, "NOTION_TOKEN", cerr.Field)

	cfg.Queue.NotionToken = "secret"
	cfg.Queue.NotionDatabaseID = "db"
	assert.NoError(t, cfg.RequireQueue())

	cfg.Queue.Backend = BackendSQLite
	assert.NoError(t, cfg.RequireQueue())

	require.ErrorAs(t, cfg.RequirePlatform(PlatformLinkedIn), &cerr)
	cfg.Social.LinkedInToken = "token"
	assert.NoError(t, cfg.RequirePlatform(PlatformLinkedIn))
	assert.Error(t, cfg.RequirePlatform("myspace"))
}
