package scan

import (
	"time"

	"github.com/jonesrussell/seoscan/internal/crawl"
	"github.com/jonesrussell/seoscan/internal/store"
)

const (
	DefaultMaxCandidates    = 24
	DefaultWorkers          = 4
	DefaultTopN             = 2
	DefaultMinWords         = 200
	DefaultMinHTML          = 1200
	DefaultPlagiarismBudget = 12
	DefaultRegistryGrace    = 30 * time.Second
	DefaultScanTimeout      = 5 * time.Minute

	finalWriteTimeout = 10 * time.Second
)

// Config holds the orchestrator's tunables. Zero values take the defaults.
type Config struct {
	MaxCandidates    int           `env:"SCAN_MAX_CANDIDATES"     yaml:"max_candidates"`
	Workers          int           `env:"SCAN_WORKERS"            yaml:"workers"`
	TopN             int           `env:"SCAN_TOP_N"              yaml:"top_n"`
	MinWords         int           `env:"SCAN_MIN_WORDS"          yaml:"min_words"`
	MinHTML          int           `env:"SCAN_MIN_HTML"           yaml:"min_html"`
	PlagiarismBudget int           `env:"SCAN_PLAGIARISM_BUDGET"  yaml:"plagiarism_budget"`
	RegistryGrace    time.Duration `env:"SCAN_REGISTRY_GRACE"     yaml:"registry_grace"`
	ScanTimeout      time.Duration `env:"SCAN_TIMEOUT"            yaml:"timeout"`
	SnapshotTTL      time.Duration `env:"SCAN_SNAPSHOT_TTL"       yaml:"snapshot_ttl"`
	RecoveryPages    int           `env:"SCAN_RECOVERY_MAX_PAGES" yaml:"recovery_max_pages"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.MinWords <= 0 {
		c.MinWords = DefaultMinWords
	}
	if c.MinHTML <= 0 {
		c.MinHTML = DefaultMinHTML
	}
	if c.PlagiarismBudget <= 0 {
		c.PlagiarismBudget = DefaultPlagiarismBudget
	}
	if c.RegistryGrace <= 0 {
		c.RegistryGrace = DefaultRegistryGrace
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = DefaultScanTimeout
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = store.DefaultSnapshotTTL
	}
	if c.RecoveryPages <= 0 {
		c.RecoveryPages = crawl.DefaultMaxPages
	}
}
