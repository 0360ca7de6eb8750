package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Extraction collaborator
	LLMAPIKey    string `env:"LLM_API_KEY" envDefault:"mock"`
	LLMModel     string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	RateLimitRPS int    `env:"RATE_LIMIT_RPS" envDefault:"1"`

	// Ingestion
	PodcastFeeds  []string      `env:"PODCAST_FEEDS" envSeparator:","`
	NewsletterDir string        `env:"NEWSLETTER_DIR" envDefault:"./inbox"`
	IngestPoll    time.Duration `env:"INGEST_POLL_INTERVAL" envDefault:"15m"`
	UserAgent     string        `env:"INGEST_USER_AGENT" envDefault:"ticker-digest/1.0"`

	// Extraction pipeline
	WorkerBatchSize    int           `env:"WORKER_BATCH_SIZE" envDefault:"20"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"30s"`

	// Aggregation
	AggregateAt string `env:"AGGREGATE_AT" envDefault:"21:30"`

	// Main page capacity
	MaxInsights      int `env:"MAX_INSIGHTS" envDefault:"8"`
	MaxDefinitions   int `env:"MAX_DEFINITIONS" envDefault:"10"`
	MaxEmergentTerms int `env:"MAX_EMERGENT_TERMS" envDefault:"8"`

	// Export
	ExportDir string `env:"EXPORT_DIR" envDefault:"./site/data"`
}

// FeedSources pairs each configured feed URL with a display name. Entries
// may be "Name|https://url" or a bare URL; a bare URL gets its name from the
// feed title at fetch time.
func (c *Config) FeedSources() []FeedSource {
	sources := make([]FeedSource, 0, len(c.PodcastFeeds))

	for _, entry := range c.PodcastFeeds {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, url, found := strings.Cut(entry, "|")
		if !found {
			sources = append(sources, FeedSource{URL: entry})
			continue
		}

		sources = append(sources, FeedSource{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}

	return sources
}

// FeedSource is one configured podcast feed.
type FeedSource struct {
	Name string
	URL  string
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}
