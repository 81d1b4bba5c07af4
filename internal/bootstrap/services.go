package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonesrussell/seoscan/infrastructure/circuitbreaker"
	infrahttp "github.com/jonesrussell/seoscan/infrastructure/http"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/retry"
	"github.com/jonesrussell/seoscan/internal/config"
	"github.com/jonesrussell/seoscan/internal/crawl"
	"github.com/jonesrussell/seoscan/internal/discovery"
	"github.com/jonesrussell/seoscan/internal/fetcher"
	"github.com/jonesrussell/seoscan/internal/janitor"
	"github.com/jonesrussell/seoscan/internal/observability"
	"github.com/jonesrussell/seoscan/internal/plagiarism"
	"github.com/jonesrussell/seoscan/internal/scan"
	"github.com/jonesrussell/seoscan/internal/seo"
)

// PipelineComponents are the discovery and fetch stages shared by every scan.
type PipelineComponents struct {
	HTTPClient *http.Client
	Robots     *crawl.RobotsChecker
	Crawler    *crawl.Crawler
	Discoverer *discovery.Discoverer
	Fetcher    *fetcher.Fetcher
	// Checker is nil when no plagiarism endpoint is configured.
	Checker plagiarism.Checker
}

// SetupPipeline builds discovery, the crawl fallback, the two-tier fetcher
// and the plagiarism client from cfg.
func SetupPipeline(cfg *config.Config, log infralogger.Logger) *PipelineComponents {
	client := infrahttp.NewClient(infrahttp.ClientConfig{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})

	robots := crawl.NewRobotsChecker(client, cfg.HTTP.UserAgent, cfg.Crawl.RobotsTTL)
	crawlRobots := robots
	if cfg.Crawl.IgnoreRobots {
		crawlRobots = nil
	}
	crawler := crawl.New(client, crawlRobots, crawl.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		PageTimeout: cfg.Crawl.PageTimeout,
	}, log)

	discoverer := discovery.New(
		discovery.NewHTTPFetcher(client, cfg.Discovery.MaxBodyBytes, retry.DefaultConfig()),
		crawler,
		robots,
		discovery.Options{
			PerTypeLimit:     cfg.Discovery.PerTypeLimit,
			MinPerType:       cfg.Discovery.MinPerType,
			MaxChildSitemaps: cfg.Discovery.MaxChildSitemaps,
			MaxSitemapURLs:   cfg.Discovery.MaxSitemapURLs,
			CrawlMaxPages:    cfg.Crawl.MaxPages,
			ProbeFeeds:       cfg.Discovery.ProbeFeeds,
		},
		log,
	)

	pc := &PipelineComponents{
		HTTPClient: client,
		Robots:     robots,
		Crawler:    crawler,
		Discoverer: discoverer,
		Fetcher:    setupFetcher(cfg, client, log),
	}

	if cfg.Plagiarism.Endpoint != "" {
		pc.Checker = plagiarism.NewClient(client, plagiarism.Config{
			Endpoint: cfg.Plagiarism.Endpoint,
			APIKey:   cfg.Plagiarism.APIKey,
			Timeout:  cfg.Plagiarism.Timeout,
		}, log)
	} else {
		log.Info("Plagiarism endpoint not configured, checks disabled")
	}
	return pc
}

func setupFetcher(cfg *config.Config, client *http.Client, log infralogger.Logger) *fetcher.Fetcher {
	var renderer fetcher.Renderer
	if cfg.Render.Endpoint != "" {
		renderer = fetcher.NewBrowserlessRenderer(client, fetcher.RenderConfig{
			Endpoint:        cfg.Render.Endpoint,
			Token:           cfg.Render.Token,
			Timeout:         cfg.Render.Timeout,
			ReadyTextLength: cfg.Render.ReadyTextLength,
		})
	} else {
		log.Info("Render endpoint not configured, fetching pages directly")
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.Render.BreakerThreshold,
		Timeout:          cfg.Render.BreakerTimeout,
		OnStateChange: func(from, to circuitbreaker.State) {
			log.Warn("Render circuit breaker changed state",
				infralogger.String("from", from.String()),
				infralogger.String("to", to.String()),
			)
		},
	})

	return fetcher.New(renderer, breaker, client, fetcher.Config{
		RenderConcurrency: cfg.Render.Concurrency,
		MinRenderedText:   cfg.Render.MinText,
		DirectTimeout:     cfg.Fetcher.Timeout,
		MaxBodyBytes:      cfg.Fetcher.MaxBodyBytes,
		DirectAttempts:    cfg.Fetcher.Attempts,
		UserAgent:         cfg.HTTP.UserAgent,
	}, log)
}

// ServiceComponents are the long-lived services behind the API.
type ServiceComponents struct {
	Pipeline     *PipelineComponents
	Orchestrator *scan.Orchestrator
	Aggregator   *seo.Aggregator
	Cache        *seo.Cache
	Janitor      *janitor.Janitor
	Registry     *prometheus.Registry
}

// SetupServices wires the scan orchestrator, the SEO aggregator and the
// janitor onto the storage and event components.
func SetupServices(
	ctx context.Context,
	deps *CommandDeps,
	storage *StorageComponents,
	ev *EventComponents,
) (*ServiceComponents, error) {
	cfg := deps.Config

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	tracer := observability.NewTracer()

	pipeline := SetupPipeline(cfg, deps.Logger)

	orchestrator := scan.New(scan.Deps{
		Store:      storage.Store,
		Discoverer: pipeline.Discoverer,
		Crawler:    pipeline.Crawler,
		Fetcher:    pipeline.Fetcher,
		Checker:    pipeline.Checker,
		Locker:     storage.Locker,
		Events:     ev.Publisher,
		Metrics:    metrics,
		Tracer:     tracer,
		Logger:     deps.Logger,
	}, cfg.Scan)

	aggregator, cache, err := SetupSEO(ctx, cfg, pipeline.Fetcher, metrics, tracer, deps.Logger)
	if err != nil {
		return nil, err
	}

	sc := &ServiceComponents{
		Pipeline:     pipeline,
		Orchestrator: orchestrator,
		Aggregator:   aggregator,
		Cache:        cache,
		Registry:     registry,
	}

	if cfg.Janitor.Enabled {
		j, janitorErr := janitor.New(storage.Store, cfg.Janitor, deps.Logger)
		if janitorErr != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("create janitor: %w", janitorErr)
		}
		if janitorErr = j.Start(ctx); janitorErr != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("start janitor: %w", janitorErr)
		}
		sc.Janitor = j
	}

	return sc, nil
}

// SetupSEO builds the provider set from the configured credentials. The
// content provider reads pages through pages.
func SetupSEO(
	ctx context.Context,
	cfg *config.Config,
	pages seo.PageFetcher,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	log infralogger.Logger,
) (*seo.Aggregator, *seo.Cache, error) {
	cache, err := seo.NewCache(ctx, cfg.SEO.CacheTTL, cfg.SEO.CacheSizeMB)
	if err != nil {
		return nil, nil, fmt.Errorf("create seo cache: %w", err)
	}

	client := infrahttp.NewClient(infrahttp.ClientConfig{
		Timeout:   cfg.SEO.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})

	opts := []seo.Option{
		seo.WithCache(cache),
		seo.WithRateLimits(cfg.SEO.RateLimits()),
		seo.WithMetrics(metrics),
		seo.WithTracer(tracer),
	}
	if fallback := cfg.SEO.BacklinkFallback(client); fallback != nil {
		opts = append(opts, seo.WithBacklinkFallback(fallback))
	}

	aggregator := seo.NewAggregator(cfg.SEO.Providers(client, pages), log, opts...)
	log.Info("SEO providers configured", infralogger.Strings("providers", aggregator.Configured()))
	return aggregator, cache, nil
}

// Close stops the janitor and releases the provider cache.
func (sc *ServiceComponents) Close(log infralogger.Logger) {
	if sc.Janitor != nil {
		log.Info("Stopping janitor")
		sc.Janitor.Stop()
	}
	if sc.Cache != nil {
		if err := sc.Cache.Close(); err != nil {
			log.Warn("Failed to close SEO cache", infralogger.Error(err))
		}
	}
}
