// Package crawl is the breadth-first same-host crawler used when sitemaps
// do not yield enough candidates.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	colly "github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/queue"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

const (
	DefaultMaxPages    = 30
	DefaultPageTimeout = 12 * time.Second

	// discoveredPerPage bounds how many links are kept per visited page.
	discoveredPerPage = 50
	maxBodyBytes      = 5 << 20
)

// ErrSeedUnreachable means not a single page of the site could be fetched.
var ErrSeedUnreachable = errors.New("crawl seed unreachable")

// Options bound a single crawl.
type Options struct {
	MaxPages        int
	AllowSubdomains bool
	// Seed overrides the start URL, which defaults to https://hostname/.
	Seed string
}

// Result is every distinct allowed URL seen, in discovery order.
type Result struct {
	URLs    []string
	Visited int
}

// Crawler runs bounded BFS crawls. It is safe for concurrent use; each
// Crawl builds its own collector.
type Crawler struct {
	client      *http.Client
	robots      *RobotsChecker
	userAgent   string
	pageTimeout time.Duration
	log         infralogger.Logger
}

// Config configures New.
type Config struct {
	UserAgent   string
	PageTimeout time.Duration
}

// New builds a Crawler. robots may be nil to ignore robots.txt.
func New(client *http.Client, robots *RobotsChecker, cfg Config, log infralogger.Logger) *Crawler {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	return &Crawler{
		client:      client,
		robots:      robots,
		userAgent:   cfg.UserAgent,
		pageTimeout: cfg.PageTimeout,
		log:         log.With(infralogger.Component("crawl")),
	}
}

// Crawl visits at most opts.MaxPages pages breadth-first from the seed.
// Per-page failures are skipped; the crawl only fails when nothing could be fetched.
func (c *Crawler) Crawl(ctx context.Context, hostname string, opts Options) (*Result, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	target := urlutil.Hostname(hostname)

	seedRaw := opts.Seed
	if seedRaw == "" {
		seedRaw = hostname
	}
	site, err := urlutil.NormalizeSite(seedRaw)
	if err != nil {
		return nil, err
	}
	seed := site.String()

	state := &crawlState{
		target:   target,
		allowSub: opts.AllowSubdomains,
		maxPages: opts.MaxPages,
		seen:     map[string]struct{}{seed: {}},
		urls:     []string{seed},
	}

	collector, err := c.newCollector(ctx)
	if err != nil {
		return nil, err
	}
	q, err := queue.New(1, &queue.InMemoryQueueStorage{MaxSize: opts.MaxPages * discoveredPerPage})
	if err != nil {
		return nil, fmt.Errorf("create crawl queue: %w", err)
	}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if c.robots != nil {
			allowed, robotsErr := c.robots.IsAllowed(ctx, r.URL.String())
			if robotsErr == nil && !allowed {
				c.log.Debug("Disallowed by robots.txt", infralogger.URL(r.URL.String()))
				r.Abort()
				return
			}
		}
		if !state.claimVisit() {
			r.Abort()
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		state.markFetched()
	})

	collector.OnError(func(r *colly.Response, err error) {
		state.recordError(err)
		c.log.Debug("Crawl page failed",
			infralogger.URL(r.Request.URL.String()),
			infralogger.Int("status", r.StatusCode),
			infralogger.Error(err),
		)
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link, ok := state.accept(e.Attr("href"), e.Request.URL)
		if !ok {
			return
		}
		if addErr := q.AddURL(link); addErr != nil {
			c.log.Debug("Crawl queue full", infralogger.URL(link), infralogger.Error(addErr))
		}
	})

	if err = q.AddURL(seed); err != nil {
		return nil, fmt.Errorf("enqueue seed: %w", err)
	}
	if err = q.Run(collector); err != nil {
		return nil, fmt.Errorf("run crawl: %w", err)
	}

	res := state.result()
	if res.Visited == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSeedUnreachable, seed, state.firstError())
	}

	c.log.Debug("Crawl finished",
		infralogger.Hostname(target),
		infralogger.Int("visited", res.Visited),
		infralogger.Int("discovered", len(res.URLs)),
	)
	return res, nil
}

func (c *Crawler) newCollector(ctx context.Context) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(maxBodyBytes),
	}
	if c.userAgent != "" {
		opts = append(opts, colly.UserAgent(c.userAgent))
	}
	collector := colly.NewCollector(opts...)

	// SetRequestTimeout mutates the client, so give the collector its own copy.
	client := *c.client
	collector.SetClient(&client)
	collector.SetRequestTimeout(c.pageTimeout)

	if err := collector.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1}); err != nil {
		return nil, fmt.Errorf("set crawl limit: %w", err)
	}
	return collector, nil
}

type crawlState struct {
	target   string
	allowSub bool
	maxPages int

	mu       sync.Mutex
	seen     map[string]struct{}
	urls     []string
	claimed  int
	fetched  int
	firstErr error
}

func (s *crawlState) claimVisit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed >= s.maxPages {
		return false
	}
	s.claimed++
	return true
}

func (s *crawlState) markFetched() {
	s.mu.Lock()
	s.fetched++
	s.mu.Unlock()
}

func (s *crawlState) recordError(err error) {
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.mu.Unlock()
}

func (s *crawlState) firstError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstErr == nil {
		return errors.New("no page fetched")
	}
	return s.firstErr
}

// accept normalizes href and records it when it is new, allowed and not an asset.
func (s *crawlState) accept(href string, base *url.URL) (string, bool) {
	link, err := urlutil.Normalize(href, base)
	if err != nil {
		return "", false
	}
	if !urlutil.URLAllowed(link, s.target, s.allowSub) || urlutil.IsAssetPath(link) || urlutil.IsJunkPath(link) {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[link]; dup {
		return "", false
	}
	if len(s.seen) >= s.maxPages*discoveredPerPage {
		return "", false
	}
	s.seen[link] = struct{}{}
	s.urls = append(s.urls, link)
	return link, true
}

func (s *crawlState) result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Result{URLs: append([]string(nil), s.urls...), Visited: s.fetched}
}
