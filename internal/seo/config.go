package seo

import (
	"net/http"
	"time"

	"github.com/jonesrussell/seoscan/infrastructure/retry"
)

const (
	DefaultTimeout     = 45 * time.Second
	DefaultCacheTTL    = 15 * time.Minute
	DefaultCacheSizeMB = 64
	DefaultFAQCount    = 6

	DefaultPageSpeedEndpoint    = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	DefaultOpenPageRankEndpoint = "https://openpagerank.com/api/v1.0/getPageRank"
	DefaultSerperEndpoint       = "https://google.serper.dev/search"
	DefaultDataForSEOEndpoint   = "https://api.dataforseo.com"
	DefaultAhrefsEndpoint       = "https://api.ahrefs.com/v3/site-explorer/backlinks-stats"
	DefaultFAQEndpoint          = "https://api.perplexity.ai"
	DefaultFAQModel             = "sonar"

	defaultRPS   = 2
	defaultBurst = 2
)

// RateLimit caps calls to one provider.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func (r *RateLimit) setDefaults() {
	if r.RPS <= 0 {
		r.RPS = defaultRPS
	}
	if r.Burst <= 0 {
		r.Burst = defaultBurst
	}
}

// APIConfig is an endpoint with a single API key.
type APIConfig struct {
	Endpoint  string    `yaml:"endpoint"`
	APIKey    string    `yaml:"api_key"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// PageSpeedConfig configures PageSpeed Insights. The key is optional.
type PageSpeedConfig struct {
	Endpoint  string    `yaml:"endpoint"`
	APIKey    string    `env:"PAGESPEED_API_KEY" yaml:"api_key"`
	Strategy  string    `yaml:"strategy"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// DataForSEOConfig uses HTTP basic auth.
type DataForSEOConfig struct {
	Endpoint  string    `yaml:"endpoint"`
	Login     string    `env:"DATAFORSEO_LOGIN"    yaml:"login"`
	Password  string    `env:"DATAFORSEO_PASSWORD" yaml:"password"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// FAQConfig configures the chat-completions API used for FAQ generation.
type FAQConfig struct {
	Endpoint  string    `yaml:"endpoint"`
	APIKey    string    `env:"FAQ_API_KEY" yaml:"api_key"`
	Model     string    `yaml:"model"`
	Count     int       `yaml:"count"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// Config holds provider credentials and aggregation tunables.
type Config struct {
	Timeout      time.Duration    `env:"SEO_TIMEOUT"       yaml:"timeout"`
	CacheTTL     time.Duration    `env:"SEO_CACHE_TTL"     yaml:"cache_ttl"`
	CacheSizeMB  int              `env:"SEO_CACHE_SIZE_MB" yaml:"cache_size_mb"`
	PageSpeed    PageSpeedConfig  `yaml:"pagespeed"`
	OpenPageRank APIConfig        `yaml:"openpagerank"`
	Serper       APIConfig        `yaml:"serper"`
	DataForSEO   DataForSEOConfig `yaml:"dataforseo"`
	Ahrefs       APIConfig        `yaml:"ahrefs"`
	FAQs         FAQConfig        `yaml:"faqs"`
	Retry        RetryConfig      `yaml:"retry"`
}

// RetryConfig bounds retries of 429/5xx provider responses.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.CacheSizeMB <= 0 {
		c.CacheSizeMB = DefaultCacheSizeMB
	}
	if c.PageSpeed.Endpoint == "" {
		c.PageSpeed.Endpoint = DefaultPageSpeedEndpoint
	}
	if c.PageSpeed.Strategy == "" {
		c.PageSpeed.Strategy = "mobile"
	}
	if c.OpenPageRank.Endpoint == "" {
		c.OpenPageRank.Endpoint = DefaultOpenPageRankEndpoint
	}
	if c.Serper.Endpoint == "" {
		c.Serper.Endpoint = DefaultSerperEndpoint
	}
	if c.DataForSEO.Endpoint == "" {
		c.DataForSEO.Endpoint = DefaultDataForSEOEndpoint
	}
	if c.Ahrefs.Endpoint == "" {
		c.Ahrefs.Endpoint = DefaultAhrefsEndpoint
	}
	if c.FAQs.Endpoint == "" {
		c.FAQs.Endpoint = DefaultFAQEndpoint
	}
	if c.FAQs.Model == "" {
		c.FAQs.Model = DefaultFAQModel
	}
	if c.FAQs.Count <= 0 {
		c.FAQs.Count = DefaultFAQCount
	}
	for _, rl := range []*RateLimit{
		&c.PageSpeed.RateLimit, &c.OpenPageRank.RateLimit, &c.Serper.RateLimit,
		&c.DataForSEO.RateLimit, &c.Ahrefs.RateLimit, &c.FAQs.RateLimit,
	} {
		rl.setDefaults()
	}
}

// RateLimits maps provider names to their configured limits.
func (c *Config) RateLimits() map[string]RateLimit {
	return map[string]RateLimit{
		ProviderPerformance: c.PageSpeed.RateLimit,
		ProviderAuthority:   c.OpenPageRank.RateLimit,
		ProviderSERP:        c.Serper.RateLimit,
		ProviderDataForSEO:  c.DataForSEO.RateLimit,
		StepBacklinks:       c.Ahrefs.RateLimit,
		ProviderFAQs:        c.FAQs.RateLimit,
	}
}

// Providers builds every provider that has the credentials it needs.
// Content is included when pages is non-nil.
func (c *Config) Providers(client *http.Client, pages PageFetcher) []Provider {
	api := apiClient{
		http: client,
		retry: retry.Config{
			MaxAttempts:  c.Retry.MaxAttempts,
			InitialDelay: c.Retry.InitialDelay,
		},
	}

	providers := []Provider{NewPerformance(api, c.PageSpeed)}
	if c.OpenPageRank.APIKey != "" {
		providers = append(providers, NewAuthority(api, c.OpenPageRank))
	}
	if c.Serper.APIKey != "" {
		providers = append(providers, NewSERP(api, c.Serper))
	}
	if c.DataForSEO.Login != "" && c.DataForSEO.Password != "" {
		providers = append(providers, NewDataForSEO(api, c.DataForSEO))
	}
	if pages != nil {
		providers = append(providers, NewContent(pages))
	}
	if c.FAQs.APIKey != "" {
		providers = append(providers, NewFAQs(api, c.FAQs))
	}
	return providers
}

// BacklinkFallback returns the Ahrefs-compatible provider, or nil without a key.
func (c *Config) BacklinkFallback(client *http.Client) Provider {
	if c.Ahrefs.APIKey == "" {
		return nil
	}
	return NewBacklinks(apiClient{
		http:  client,
		retry: retry.Config{MaxAttempts: c.Retry.MaxAttempts, InitialDelay: c.Retry.InitialDelay},
	}, c.Ahrefs)
}
