// Package janitor periodically removes stale snapshots and finished scans.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
)

const (
	DefaultSchedule  = "*/15 * * * *"
	DefaultRetention = 48 * time.Hour

	sweepTimeout = time.Minute
)

// Sweeper deletes records not updated within olderThan.
type Sweeper interface {
	SweepExpired(ctx context.Context, olderThan time.Duration) (int, error)
}

// Config controls the sweep schedule.
type Config struct {
	Enabled   bool          `env:"JANITOR_ENABLED"   yaml:"enabled"`
	Schedule  string        `env:"JANITOR_SCHEDULE"  yaml:"schedule"`
	Retention time.Duration `env:"JANITOR_RETENTION" yaml:"retention"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
}

// Janitor runs a Sweeper on a cron schedule.
type Janitor struct {
	cron    *cron.Cron
	sweeper Sweeper
	cfg     Config
	log     infralogger.Logger
}

// New validates the schedule. Standard five-field expressions and
// descriptors such as "@hourly" or "@every 10m" are accepted.
func New(sweeper Sweeper, cfg Config, log infralogger.Logger) (*Janitor, error) {
	cfg.SetDefaults()

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("parse janitor schedule %q: %w", cfg.Schedule, err)
	}

	return &Janitor{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		sweeper: sweeper,
		cfg:     cfg,
		log:     log.With(infralogger.Component("janitor")),
	}, nil
}

// Start schedules the sweep. Runs stop when ctx ends or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, sweepErr := j.RunOnce(ctx); sweepErr != nil {
			j.log.Error("Sweep failed", infralogger.Error(sweepErr))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	j.cron.Start()
	j.log.Info("Janitor started",
		infralogger.String("schedule", j.cfg.Schedule),
		infralogger.Duration("retention", j.cfg.Retention),
	)
	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce sweeps immediately.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	removed, err := j.sweeper.SweepExpired(sweepCtx, j.cfg.Retention)
	if err != nil {
		return 0, err
	}
	j.log.Info("Sweep finished",
		infralogger.Int("removed", removed),
		infralogger.Duration("duration", time.Since(start)),
	)
	return removed, nil
}
