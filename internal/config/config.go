// Package config assembles the seoscan service configuration from YAML,
// .env files and environment variables using infrastructure/config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	infraconfig "github.com/jonesrussell/seoscan/infrastructure/config"
	infraevents "github.com/jonesrussell/seoscan/infrastructure/events"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	infraredis "github.com/jonesrussell/seoscan/infrastructure/redis"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
	"github.com/jonesrussell/seoscan/internal/janitor"
	"github.com/jonesrussell/seoscan/internal/scan"
	"github.com/jonesrussell/seoscan/internal/seo"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const (
	defaultUserAgent        = "seoscan/1.0 (+https://github.com/jonesrussell/seoscan)"
	defaultHTTPTimeout      = 30 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second
)

// Config is the root of config.yml.
type Config struct {
	Debug      bool                       `env:"APP_DEBUG" yaml:"debug"`
	Server     infraconfig.ServerConfig   `yaml:"server"`
	Logging    infralogger.Config         `yaml:"logging"`
	HTTP       HTTPConfig                 `yaml:"http"`
	Store      StoreConfig                `yaml:"store"`
	Database   infraconfig.DatabaseConfig `yaml:"database"`
	Redis      infraredis.Config          `yaml:"redis"`
	SSE        sse.Config                 `yaml:"sse"`
	NATS       NATSConfig                 `yaml:"nats"`
	Discovery  DiscoveryConfig            `yaml:"discovery"`
	Crawl      CrawlConfig                `yaml:"crawl"`
	Render     RenderConfig               `yaml:"render"`
	Fetcher    FetcherConfig              `yaml:"fetcher"`
	Plagiarism PlagiarismConfig           `yaml:"plagiarism"`
	Scan       scan.Config                `yaml:"scan"`
	Janitor    janitor.Config             `yaml:"janitor"`
	SEO        seo.Config                 `yaml:"seo"`
}

// HTTPConfig configures the shared outbound client.
type HTTPConfig struct {
	UserAgent string        `env:"HTTP_USER_AGENT" yaml:"user_agent"`
	Timeout   time.Duration `env:"HTTP_TIMEOUT"    yaml:"timeout"`
}

// StoreConfig selects where scans and snapshots live.
type StoreConfig struct {
	Backend string `env:"STORE_BACKEND" yaml:"backend"`
	// Migrate applies the embedded schema on start (postgres only).
	Migrate bool `env:"STORE_MIGRATE" yaml:"migrate"`
	// LockTTL bounds the cross-instance enqueue lock (redis only).
	LockTTL time.Duration `env:"STORE_LOCK_TTL" yaml:"lock_ttl"`
}

// NATSConfig enables lifecycle event publishing to NATS.
type NATSConfig struct {
	Enabled       bool   `env:"NATS_ENABLED"        yaml:"enabled"`
	URL           string `env:"NATS_URL"            yaml:"url"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" yaml:"subject_prefix"`
}

// DiscoveryConfig bounds sitemap discovery.
type DiscoveryConfig struct {
	PerTypeLimit     int   `env:"DISCOVERY_PER_TYPE_LIMIT"     yaml:"per_type_limit"`
	MinPerType       int   `env:"DISCOVERY_MIN_PER_TYPE"       yaml:"min_per_type"`
	MaxChildSitemaps int   `env:"DISCOVERY_MAX_CHILD_SITEMAPS" yaml:"max_child_sitemaps"`
	MaxSitemapURLs   int   `env:"DISCOVERY_MAX_SITEMAP_URLS"   yaml:"max_sitemap_urls"`
	MaxBodyBytes     int64 `yaml:"max_body_bytes"`
	ProbeFeeds       bool  `env:"DISCOVERY_PROBE_FEEDS"        yaml:"probe_feeds"`
}

// CrawlConfig bounds the crawl fallback.
type CrawlConfig struct {
	MaxPages     int           `env:"CRAWL_MAX_PAGES"     yaml:"max_pages"`
	PageTimeout  time.Duration `env:"CRAWL_PAGE_TIMEOUT"  yaml:"page_timeout"`
	IgnoreRobots bool          `env:"CRAWL_IGNORE_ROBOTS" yaml:"ignore_robots"`
	RobotsTTL    time.Duration `yaml:"robots_ttl"`
}

// RenderConfig points at a Browserless-compatible service. An empty
// endpoint disables rendering.
type RenderConfig struct {
	Endpoint        string        `env:"RENDER_ENDPOINT"    yaml:"endpoint"`
	Token           string        `env:"RENDER_TOKEN"       yaml:"token"`
	Timeout         time.Duration `env:"RENDER_TIMEOUT"     yaml:"timeout"`
	Concurrency     int           `env:"RENDER_CONCURRENCY" yaml:"concurrency"`
	MinText         int           `env:"RENDER_MIN_TEXT"    yaml:"min_text"`
	ReadyTextLength int           `yaml:"ready_text_length"`
	// BreakerThreshold consecutive failures stop render attempts for BreakerTimeout.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout"`
}

// FetcherConfig tunes the direct GET tier.
type FetcherConfig struct {
	Timeout      time.Duration `env:"FETCH_TIMEOUT"  yaml:"timeout"`
	Attempts     int           `env:"FETCH_ATTEMPTS" yaml:"attempts"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// PlagiarismConfig points at the originality service. An empty endpoint
// disables checks.
type PlagiarismConfig struct {
	Endpoint string        `env:"PLAGIARISM_ENDPOINT" yaml:"endpoint"`
	APIKey   string        `env:"PLAGIARISM_API_KEY"  yaml:"api_key"`
	Timeout  time.Duration `env:"PLAGIARISM_TIMEOUT"  yaml:"timeout"`
}

// Load reads path and applies defaults, environment overrides and the
// provider key variables.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}
	applyProviderKeys(cfg)
	return cfg, nil
}

// applyProviderKeys reads the keys of providers that share seo.APIConfig,
// which cannot carry per-provider env tags.
func applyProviderKeys(cfg *Config) {
	for env, dst := range map[string]*string{
		"OPENPAGERANK_API_KEY": &cfg.SEO.OpenPageRank.APIKey,
		"SERPER_API_KEY":       &cfg.SEO.Serper.APIKey,
		"AHREFS_API_KEY":       &cfg.SEO.Ahrefs.APIKey,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

func setDefaults(cfg *Config) {
	cfg.Server.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Redis.SetDefaults()
	cfg.Scan.SetDefaults()
	cfg.Janitor.SetDefaults()
	cfg.SEO.SetDefaults()

	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = defaultUserAgent
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = defaultHTTPTimeout
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = infraevents.DefaultSubjectPrefix
	}
	if cfg.Render.BreakerThreshold <= 0 {
		cfg.Render.BreakerThreshold = defaultBreakerThreshold
	}
	if cfg.Render.BreakerTimeout <= 0 {
		cfg.Render.BreakerTimeout = defaultBreakerTimeout
	}
	if cfg.Store.Backend == BackendPostgres {
		cfg.Database.SetDefaults()
	}
}

// Validate checks the sections the configured backend depends on.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := infraconfig.ValidateLogLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if err := infraconfig.ValidateRequired("redis.address", c.Redis.Address); err != nil {
			return err
		}
	case BackendPostgres:
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	default:
		return &infraconfig.ValidationError{
			Field:   "store.backend",
			Message: "must be one of: memory, redis, postgres",
		}
	}

	if c.NATS.Enabled {
		if err := infraconfig.ValidateRequired("nats.url", c.NATS.URL); err != nil {
			return err
		}
	}
	if err := infraconfig.ValidatePositive("scan.workers", c.Scan.Workers); err != nil {
		return err
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Store.Backend == BackendRedis || c.Redis.Enabled
}
