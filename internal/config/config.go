// Package config builds the run configuration from defaults, an optional YAML
// file and the environment. The resulting Config is passed explicitly into
// every component; nothing here is read lazily from global state.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Mode selects which data source family and scoring profile a run uses.
type Mode string

const (
	ModeNews   Mode = "news"
	ModePapers Mode = "papers"
)

// Platform names a posting target.
const (
	PlatformX        = "x"
	PlatformLinkedIn = "linkedin"
	PlatformTelegram = "telegram"
)

// Queue backends.
const (
	BackendNotion   = "notion"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Tier awards Points to candidates no older than MaxAge.
type Tier struct {
	MaxAge time.Duration `yaml:"max_age" validate:"gt=0"`
	Points int           `yaml:"points"`
}

// SourceConfig describes one feed or paper listing.
type SourceConfig struct {
	Name       string   `yaml:"name" validate:"required"`
	Kind       string   `yaml:"kind" validate:"oneof=rss arxiv"`
	URL        string   `yaml:"url" validate:"required,url"`
	Categories []string `yaml:"categories"`
	MaxResults int      `yaml:"max_results" validate:"gte=0"`
}

// Profile is the scoring table and source list for one Mode.
type Profile struct {
	MaxAge         time.Duration  `yaml:"max_age" validate:"gt=0"`
	Tiers          []Tier         `yaml:"recency_tiers" validate:"min=1,dive"`
	KeywordPoints  int            `yaml:"keyword_points" validate:"gte=0"`
	CategoryPoints int            `yaml:"category_points" validate:"gte=0"`
	Keywords       []string       `yaml:"boost_keywords"`
	PreferredTags  []string       `yaml:"preferred_tags"`
	Sources        []SourceConfig `yaml:"sources" validate:"min=1,dive"`
	Enrich         bool           `yaml:"enrich"`
}

type Dedup struct {
	Window              time.Duration `yaml:"window" validate:"gt=0"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
}

type Summary struct {
	ShortMax     int           `yaml:"short_max" validate:"gt=3"`
	LongMax      int           `yaml:"long_max" validate:"gt=3"`
	ExcerptRunes int           `yaml:"excerpt_runes" validate:"gt=0"`
	Provider     string        `yaml:"provider" validate:"oneof=auto openai gemini none"`
	OpenAIModel  string        `yaml:"openai_model"`
	GeminiModel  string        `yaml:"gemini_model"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`

	OpenAIKey string `yaml:"-"`
	GeminiKey string `yaml:"-"`
}

type Queue struct {
	Backend string `yaml:"backend" validate:"oneof=notion postgres sqlite"`

	NotionToken      string `yaml:"-"`
	NotionDatabaseID string `yaml:"notion_database_id"`
	NotionBaseURL    string `yaml:"notion_base_url"`
	DatabaseURL      string `yaml:"-"`
	SQLitePath       string `yaml:"sqlite_path"`

	// ScheduleOffset is added to "now" when a selected entry is queued.
	ScheduleOffset time.Duration `yaml:"schedule_offset"`
}

type Social struct {
	Required       []string      `yaml:"required_platforms" validate:"min=1,dive,oneof=x linkedin telegram"`
	Pace           time.Duration `yaml:"pace" validate:"gte=0"`
	VerifyAttempts int           `yaml:"verify_attempts" validate:"gte=0"`
	VerifyDelay    time.Duration `yaml:"verify_delay" validate:"gte=0"`

	XConsumerKey    string `yaml:"-"`
	XConsumerSecret string `yaml:"-"`
	XAccessToken    string `yaml:"-"`
	XAccessSecret   string `yaml:"-"`

	LinkedInToken     string `yaml:"-"`
	LinkedInOrgID     string `yaml:"-"`
	LinkedInAuthorURN string `yaml:"-"`
	LinkedInVersion   string `yaml:"linkedin_version"`

	TelegramToken  string `yaml:"-"`
	TelegramChatID string `yaml:"-"`
}

type HTTP struct {
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent   string        `yaml:"user_agent" validate:"required"`
	Concurrency int           `yaml:"concurrency" validate:"gt=0"`
}

type Config struct {
	Mode     Mode              `yaml:"mode" validate:"oneof=news papers"`
	Profiles map[Mode]*Profile `yaml:"profiles"`
	Dedup    Dedup             `yaml:"dedup"`
	Summary  Summary           `yaml:"summary"`
	Queue    Queue             `yaml:"queue"`
	Social   Social            `yaml:"social"`
	HTTP     HTTP              `yaml:"http"`
	LogLevel string            `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Monitoring starts the /health and /metrics endpoints while a command runs.
	Monitoring     bool   `yaml:"-"`
	MonitoringPort string `yaml:"-"`
}

// Error is returned for any invalid or missing configuration. It is always
// produced before the first network call.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// DefaultPath is read when AIPOST_CONFIG is not set and the file exists.
const DefaultPath = "configs/aipost.yaml"

// Load builds a Config: defaults, then the YAML file at path (or AIPOST_CONFIG,
// or DefaultPath if present), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = os.Getenv("AIPOST_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return &Error{Field: "file", Msg: fmt.Sprintf("read %s: %v", path, err)}
	}

	// Profiles in the file replace the built-in profile of the same mode as a
	// whole, so keep the defaults aside and restore the ones not mentioned.
	defaults := c.Profiles
	c.Profiles = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return &Error{Field: "file", Msg: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if c.Profiles == nil {
		c.Profiles = map[Mode]*Profile{}
	}
	for mode, p := range defaults {
		if _, ok := c.Profiles[mode]; !ok {
			c.Profiles[mode] = p
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("AIPOST_MODE"); v != "" {
		c.Mode = Mode(strings.ToLower(v))
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if os.Getenv("DEBUG") == "true" {
		c.LogLevel = "debug"
	}

	c.Summary.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.Summary.GeminiKey = os.Getenv("GEMINI_API_KEY")
	c.Summary.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", c.Summary.OpenAIModel)
	c.Summary.GeminiModel = getEnvOrDefault("GEMINI_MODEL", c.Summary.GeminiModel)
	c.Summary.Provider = getEnvOrDefault("SUMMARY_PROVIDER", c.Summary.Provider)

	c.Queue.Backend = getEnvOrDefault("QUEUE_BACKEND", c.Queue.Backend)
	c.Queue.NotionToken = os.Getenv("NOTION_TOKEN")
	c.Queue.NotionDatabaseID = getEnvOrDefault("NOTION_DB_ID", c.Queue.NotionDatabaseID)
	c.Queue.DatabaseURL = os.Getenv("DATABASE_URL")
	c.Queue.SQLitePath = getEnvOrDefault("SQLITE_PATH", c.Queue.SQLitePath)

	c.Social.XConsumerKey = os.Getenv("X_CONSUMER_KEY")
	c.Social.XConsumerSecret = os.Getenv("X_CONSUMER_SECRET")
	c.Social.XAccessToken = os.Getenv("X_ACCESS_TOKEN")
	c.Social.XAccessSecret = os.Getenv("X_ACCESS_TOKEN_SECRET")
	c.Social.LinkedInToken = os.Getenv("LINKEDIN_ACCESS_TOKEN")
	c.Social.LinkedInOrgID = os.Getenv("LINKEDIN_ORG_ID")
	c.Social.LinkedInAuthorURN = os.Getenv("LINKEDIN_AUTHOR_URN")
	c.Social.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	c.Social.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	if v := os.Getenv("REQUIRED_PLATFORMS"); v != "" {
		c.Social.Required = splitList(v)
	}

	var err error
	if c.HTTP.Concurrency, err = getEnvIntOrDefault("FETCH_CONCURRENCY", c.HTTP.Concurrency); err != nil {
		return err
	}
	if c.Social.Pace, err = getEnvDurationOrDefault("POST_PACE", c.Social.Pace); err != nil {
		return err
	}
	if c.HTTP.Timeout, err = getEnvDurationOrDefault("HTTP_TIMEOUT", c.HTTP.Timeout); err != nil {
		return err
	}

	c.Monitoring = os.Getenv("ENABLE_HTTP_MONITORING") == "true"
	c.MonitoringPort = getEnvOrDefault("MONITORING_PORT", "8080")
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &Error{Field: key, Msg: "must be an integer"}
	}
	return n, nil
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &Error{Field: key, Msg: "must be a duration like 2s or 5m"}
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints shared by every command.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fromValidation(err)
	}
	p, ok := c.Profiles[c.Mode]
	if !ok || p == nil {
		return &Error{Field: "profiles", Msg: fmt.Sprintf("no profile for mode %q", c.Mode)}
	}
	if err := validate.Struct(p); err != nil {
		return fromValidation(err)
	}
	for i := 1; i < len(p.Tiers); i++ {
		if p.Tiers[i].MaxAge <= p.Tiers[i-1].MaxAge || p.Tiers[i].Points >= p.Tiers[i-1].Points {
			return &Error{Field: "recency_tiers", Msg: "tiers must have increasing age and strictly decreasing points"}
		}
	}
	if last := p.Tiers[len(p.Tiers)-1]; last.MaxAge > p.MaxAge {
		return &Error{Field: "recency_tiers", Msg: "last tier exceeds max_age"}
	}
	if c.Summary.ShortMax > c.Summary.LongMax {
		return &Error{Field: "summary.short_max", Msg: "must not exceed long_max"}
	}
	return nil
}

func fromValidation(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Error{Field: fe.Namespace(), Msg: fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value())}
	}
	return &Error{Msg: err.Error()}
}

// Profile returns the scoring profile of the active mode.
func (c *Config) Profile() Profile {
	if p := c.Profiles[c.Mode]; p != nil {
		return *p
	}
	return Profile{}
}

// RequireQueue checks the credentials of the configured queue backend.
func (c *Config) RequireQueue() error {
	switch c.Queue.Backend {
	case BackendNotion:
		if c.Queue.NotionToken == "" {
			return &Error{Field: "NOTION_TOKEN", Msg: "is required"}
		}
		if c.Queue.NotionDatabaseID == "" {
			return &Error{Field: "NOTION_DB_ID", Msg: "is required"}
		}
	case BackendPostgres:
		if c.Queue.DatabaseURL == "" {
			return &Error{Field: "DATABASE_URL", Msg: "is required"}
		}
	case BackendSQLite:
		if c.Queue.SQLitePath == "" {
			return &Error{Field: "SQLITE_PATH", Msg: "is required"}
		}
	default:
		return &Error{Field: "QUEUE_BACKEND", Msg: fmt.Sprintf("unknown backend %q", c.Queue.Backend)}
	}
	return nil
}

// RequirePlatform checks the credentials needed to post to platform.
func (c *Config) RequirePlatform(platform string) error {
	s := c.Social
	switch platform {
	case PlatformX:
		if s.XConsumerKey == "" || s.XConsumerSecret == "" || s.XAccessToken == "" || s.XAccessSecret == "" {
			return &Error{Field: "X_*", Msg: "X_CONSUMER_KEY, X_CONSUMER_SECRET, X_ACCESS_TOKEN and X_ACCESS_TOKEN_SECRET are required"}
		}
	case PlatformLinkedIn:
		if s.LinkedInToken == "" {
			return &Error{Field: "LINKEDIN_ACCESS_TOKEN", Msg: "is required"}
		}
	case PlatformTelegram:
		if s.TelegramToken == "" {
			return &Error{Field: "TELEGRAM_TOKEN", Msg: "is required"}
		}
		if s.TelegramChatID == "" {
			return &Error{Field: "TELEGRAM_CHAT_ID", Msg: "is required"}
		}
	default:
		return &Error{Field: "platform", Msg: fmt.Sprintf("unknown platform %q", platform)}
	}
	return nil
}
