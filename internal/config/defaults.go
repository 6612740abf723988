package config

import "time"

// ExcludedScore is the score given to candidates older than the profile's
// max age. It sits far below any reachable positive total.
const ExcludedScore = -1000

// Default returns the built-in configuration. Every scoring constant the
// selector uses lives here; configs/aipost.yaml may override them.
func Default() *Config {
	return &Config{
		Mode: ModeNews,
		Profiles: map[Mode]*Profile{
			ModeNews:   newsProfile(),
			ModePapers: papersProfile(),
		},
		Dedup: Dedup{
			Window:              7 * 24 * time.Hour,
			SimilarityThreshold: 0.7,
		},
		Summary: Summary{
			ShortMax:     280,
			LongMax:      2000,
			ExcerptRunes: 600,
			Provider:     "auto",
			OpenAIModel:  "gpt-4o-mini",
			GeminiModel:  "gemini-1.5-flash",
			Timeout:      60 * time.Second,
		},
		Queue: Queue{
			Backend:        BackendNotion,
			NotionBaseURL:  "https://api.notion.com/v1",
			SQLitePath:     "aipost.db",
			ScheduleOffset: -5 * time.Minute,
		},
		Social: Social{
			Required:        []string{PlatformX, PlatformLinkedIn},
			Pace:            2 * time.Second,
			VerifyAttempts:  3,
			VerifyDelay:     20 * time.Second,
			LinkedInVersion: "202410",
		},
		HTTP: HTTP{
			Timeout:     30 * time.Second,
			UserAgent:   "aipost/1.0 (+https://github.com/deusflow/aipost)",
			Concurrency: 4,
		},
		LogLevel: "info",
	}
}

func newsProfile() *Profile {
	return &Profile{
		MaxAge: 48 * time.Hour,
		Tiers: []Tier{
			{MaxAge: 6 * time.Hour, Points: 15},
			{MaxAge: 12 * time.Hour, Points: 12},
			{MaxAge: 24 * time.Hour, Points: 8},
			{MaxAge: 36 * time.Hour, Points: 3},
			{MaxAge: 48 * time.Hour, Points: 1},
		},
		KeywordPoints:  2,
		CategoryPoints: 3,
		Keywords: []string{
			"AI", "GenAI", "LLM", "agents", "model", "inference",
			"NVIDIA", "OpenAI", "Anthropic", "Meta",
		},
		PreferredTags: []string{"openai.com", "deepmind.com", "anthropic.com"},
		Sources: []SourceConfig{
			{Name: "openai", Kind: "rss", URL: "https://openai.com/blog/rss.xml"},
			{Name: "google-ai", Kind: "rss", URL: "https://blog.google/technology/ai/rss/"},
			{Name: "deepmind", Kind: "rss", URL: "https://www.deepmind.com/blog/rss.xml"},
			{Name: "nvidia", Kind: "rss", URL: "https://developer.nvidia.com/blog/feed/"},
			{Name: "aws-ml", Kind: "rss", URL: "https://aws.amazon.com/blogs/machine-learning/feed/"},
			{Name: "techcrunch", Kind: "rss", URL: "https://techcrunch.com/tag/artificial-intelligence/feed/"},
			{Name: "venturebeat", Kind: "rss", URL: "https://venturebeat.com/category/ai/feed/"},
		},
		Enrich: true,
	}
}

func papersProfile() *Profile {
	return &Profile{
		MaxAge: 7 * 24 * time.Hour,
		Tiers: []Tier{
			{MaxAge: 24 * time.Hour, Points: 20},
			{MaxAge: 48 * time.Hour, Points: 15},
			{MaxAge: 96 * time.Hour, Points: 10},
			{MaxAge: 168 * time.Hour, Points: 5},
		},
		KeywordPoints:  2,
		CategoryPoints: 3,
		Keywords: []string{
			"state-of-the-art", "SOTA", "novel", "breakthrough", "outperforms",
			"large language model", "LLM", "transformer", "diffusion",
			"reinforcement learning", "fine-tuning", "reasoning", "multimodal", "agents",
		},
		PreferredTags: []string{"cs.AI", "cs.LG"},
		Sources: []SourceConfig{
			{
				Name:       "arxiv",
				Kind:       "arxiv",
				URL:        "https://export.arxiv.org/api/query",
				Categories: []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV"},
				MaxResults: 100,
			},
		},
	}
}
