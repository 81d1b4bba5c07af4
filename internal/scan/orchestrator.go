// Package scan turns an opportunities request into a single in-flight
// background scan per (hostname, mode, allowSubdomains) key and persists its
// progress as snapshots.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	infraevents "github.com/jonesrussell/seoscan/infrastructure/events"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/discovery"
	"github.com/jonesrussell/seoscan/internal/events"
	"github.com/jonesrussell/seoscan/internal/fetcher"
	"github.com/jonesrussell/seoscan/internal/observability"
	"github.com/jonesrussell/seoscan/internal/plagiarism"
	"github.com/jonesrussell/seoscan/internal/store"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// ErrShuttingDown rejects enqueues after Shutdown has begun.
var ErrShuttingDown = errors.New("scan orchestrator is shutting down")

// Discoverer finds candidate URLs for a site.
type Discoverer interface {
	DiscoverWithLimit(ctx context.Context, websiteURL string, allowSubdomains bool, limit int) (*discovery.Result, error)
}

// PageFetcher returns a page's HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*fetcher.Page, error)
}

// Deps are the orchestrator's collaborators. Crawler, Checker, Locker,
// Events, Metrics and Tracer are optional.
type Deps struct {
	Store      *store.Store
	Discoverer Discoverer
	Crawler    discovery.SiteCrawler
	Fetcher    PageFetcher
	Checker    plagiarism.Checker
	// Locker guards enqueue across instances sharing a store.
	Locker  store.Locker
	Events  events.Publisher
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Logger  infralogger.Logger
}

type entry struct {
	scan   store.Scan
	status store.Status
}

// Orchestrator owns the in-flight registry and the scan goroutines.
type Orchestrator struct {
	store      *store.Store
	discoverer Discoverer
	crawler    discovery.SiteCrawler
	fetcher    PageFetcher
	checker    plagiarism.Checker
	locker     store.Locker
	events     events.Publisher
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	log        infralogger.Logger
	cfg        Config

	mu       sync.Mutex
	inflight map[store.Key]*entry
	closed   bool
	keys     store.KeyedMutex

	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// New builds an Orchestrator. Scans run on a background context that
// Shutdown cancels once its deadline passes.
func New(deps Deps, cfg Config) *Orchestrator {
	cfg.SetDefaults()

	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.NewTracer()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:      deps.Store,
		discoverer: deps.Discoverer,
		crawler:    deps.Crawler,
		fetcher:    deps.Fetcher,
		checker:    deps.Checker,
		locker:     deps.Locker,
		events:     deps.Events,
		metrics:    deps.Metrics,
		tracer:     deps.Tracer,
		log:        deps.Logger.With(infralogger.Component("scan")),
		cfg:        cfg,
		inflight:   make(map[store.Key]*entry),
		runCtx:     runCtx,
		cancelRun:  cancel,
	}
}

// Enqueue returns the active scan for the site's published key, or creates
// one and starts it in the background. created is false when an existing
// scan was returned.
func (o *Orchestrator) Enqueue(ctx context.Context, websiteURL string, allowSubdomains bool) (*store.Scan, bool, error) {
	site, err := urlutil.NormalizeSite(websiteURL)
	if err != nil {
		return nil, false, err
	}
	hostname := urlutil.Hostname(site.Host)
	key := store.NewKey(hostname, string(store.ModePublished), allowSubdomains)

	if scan, ok, err := o.activeEntry(key); ok || err != nil {
		return scan, false, err
	}

	// Serialize creation per key; o.mu only guards the registry map.
	defer o.keys.Lock(key.String())()

	if scan, ok, err := o.activeEntry(key); ok || err != nil {
		return scan, false, err
	}

	if o.locker != nil {
		release, lockErr := o.locker.Acquire(ctx, key)
		if lockErr != nil {
			return nil, false, fmt.Errorf("enqueue %s: %w", key, lockErr)
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				o.log.Warn("Failed to release enqueue lock", infralogger.Hostname(hostname), infralogger.Error(relErr))
			}
		}()

		shared, sharedErr := o.sharedActiveScan(ctx, key)
		if sharedErr != nil {
			return nil, false, sharedErr
		}
		if shared != nil {
			o.metrics.ScansEnqueued.WithLabelValues("deduplicated").Inc()
			return shared, false, nil
		}
	}

	scan, err := o.store.CreateScan(ctx, store.NewScan{
		WebsiteURL:      site.String(),
		Hostname:        hostname,
		AllowSubdomains: allowSubdomains,
		Mode:            string(store.ModePublished),
	})
	if err != nil {
		return nil, false, err
	}

	_, err = o.store.UpsertSnapshot(ctx, hostname, store.SnapshotPatch{
		Mode:            string(key.Mode),
		AllowSubdomains: allowSubdomains,
		ScanID:          scan.ID,
		Status:          store.StatusQueued,
		Diagnostics:     map[string]any{"stage": "queued", "error": nil},
	})
	if err != nil {
		o.abandon(ctx, scan, err.Error())
		return nil, false, err
	}

	e := &entry{scan: *scan, status: store.StatusQueued}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.abandon(ctx, scan, ErrShuttingDown.Error())
		return nil, false, ErrShuttingDown
	}
	o.inflight[key] = e
	o.wg.Add(1)
	o.mu.Unlock()

	o.metrics.ScansEnqueued.WithLabelValues("created").Inc()
	o.publish(ctx, infraevents.ScanQueued, scan, nil, "")

	go o.run(e, key)

	o.log.Info("Scan queued",
		infralogger.ScanID(scan.ID),
		infralogger.Hostname(hostname),
		infralogger.Bool("allow_subdomains", allowSubdomains),
	)
	return e.current(), true, nil
}

// activeEntry returns the registered active scan for key. ok is false when
// there is none.
func (o *Orchestrator) activeEntry(key store.Key) (*store.Scan, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, false, ErrShuttingDown
	}
	if e, ok := o.inflight[key]; ok && e.status.IsActive() {
		o.metrics.ScansEnqueued.WithLabelValues("deduplicated").Inc()
		return e.current(), true, nil
	}
	return nil, false, nil
}

// abandon fails a scan that was created but never started.
func (o *Orchestrator) abandon(ctx context.Context, scan *store.Scan, reason string) {
	if _, err := o.store.FailScan(context.WithoutCancel(ctx), scan.ID, reason, nil); err != nil {
		o.log.Warn("Failed to mark scan failed", infralogger.ScanID(scan.ID), infralogger.Error(err))
	}
}

// sharedActiveScan finds a scan another instance started for key. A scan
// not updated within ScanTimeout+RegistryGrace is treated as abandoned.
func (o *Orchestrator) sharedActiveScan(ctx context.Context, key store.Key) (*store.Scan, error) {
	snap, err := o.store.GetLatest(ctx, key.Hostname, store.LatestOptions{
		TTL:             o.cfg.SnapshotTTL,
		Mode:            string(key.Mode),
		AllowSubdomains: key.AllowSubdomains,
	})
	if err != nil || snap == nil || snap.ScanID == "" {
		return nil, err
	}

	scan, err := o.store.GetScan(ctx, snap.ScanID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !scan.Status.IsActive() || time.Since(scan.UpdatedAt) > o.cfg.ScanTimeout+o.cfg.RegistryGrace {
		return nil, nil
	}
	return scan, nil
}

func (e *entry) current() *store.Scan {
	scan := e.scan
	scan.Status = e.status
	return &scan
}

func (o *Orchestrator) setStatus(e *entry, status store.Status) {
	o.mu.Lock()
	e.status = status
	o.mu.Unlock()
}

// release drops the registry entry after RegistryGrace so near-simultaneous
// requests still see the terminal status.
func (o *Orchestrator) release(key store.Key, e *entry) {
	time.AfterFunc(o.cfg.RegistryGrace, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.inflight[key] == e {
			delete(o.inflight, key)
		}
	})
}

// InFlight reports how many keys are registered, terminal entries in their
// grace period included.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// Status returns a scan by ID.
func (o *Orchestrator) Status(ctx context.Context, scanID string) (*store.Scan, error) {
	return o.store.GetScan(ctx, scanID)
}

// Shutdown stops accepting scans and waits for running ones. When ctx ends
// first the remaining scans are cancelled and fail.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancelRun()
		return nil
	case <-ctx.Done():
		o.cancelRun()
		<-done
		return ctx.Err()
	}
}

func (o *Orchestrator) publish(ctx context.Context, t infraevents.EventType, scan *store.Scan, diag map[string]any, errMsg string) {
	event := infraevents.NewScanEvent(t, scan.ID, scan.Hostname, scan.AllowSubdomains)
	event.Diagnostics = diag
	event.Error = errMsg
	if err := o.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		o.log.Warn("Failed to publish scan event",
			infralogger.ScanID(scan.ID),
			infralogger.String("event_type", string(t)),
			infralogger.Error(err),
		)
	}
}
