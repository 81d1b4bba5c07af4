package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/crawl"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

const (
	DefaultPerTypeLimit     = 2
	DefaultMinPerType       = 2
	DefaultMaxChildSitemaps = 50
	DefaultMaxSitemapURLs   = 5000
	DefaultCrawlMaxPages    = crawl.DefaultMaxPages

	childFetchConcurrency = 4
)

// ErrSiteUnreachable is a discovery failure: no sitemap and no crawlable seed.
var ErrSiteUnreachable = errors.New("site unreachable")

var rootSitemapPaths = []string{"/sitemap_index.xml", "/sitemap.xml"}

// SiteCrawler is the crawl fallback.
type SiteCrawler interface {
	Crawl(ctx context.Context, hostname string, opts crawl.Options) (*crawl.Result, error)
}

// SitemapHinter lists sitemaps advertised outside the well-known paths (robots.txt).
type SitemapHinter interface {
	Sitemaps(ctx context.Context, siteURL string) []string
}

// Options tune a Discoverer. Zero values take the defaults.
type Options struct {
	PerTypeLimit     int
	MinPerType       int
	MaxChildSitemaps int
	MaxSitemapURLs   int
	CrawlMaxPages    int
	ProbeFeeds       bool
}

func (o *Options) setDefaults() {
	if o.PerTypeLimit <= 0 {
		o.PerTypeLimit = DefaultPerTypeLimit
	}
	if o.MinPerType <= 0 {
		o.MinPerType = DefaultMinPerType
	}
	if o.MaxChildSitemaps <= 0 {
		o.MaxChildSitemaps = DefaultMaxChildSitemaps
	}
	if o.MaxSitemapURLs <= 0 {
		o.MaxSitemapURLs = DefaultMaxSitemapURLs
	}
	if o.CrawlMaxPages <= 0 {
		o.CrawlMaxPages = DefaultCrawlMaxPages
	}
}

// Diagnostics describe how a Result was produced.
type Diagnostics struct {
	SitemapsTried     []string `json:"sitemapsTried"`
	SitemapFound      string   `json:"sitemapFound,omitempty"`
	ChildSitemaps     int      `json:"childSitemaps"`
	SitemapURLCount   int      `json:"sitemapUrlCount"`
	UsedFallback      bool     `json:"usedFallback"`
	CrawlVisited      int      `json:"crawlVisited"`
	CrawlError        string   `json:"crawlError,omitempty"`
	BlogIndexExpanded bool     `json:"blogIndexExpanded"`
	FeedProbed        bool     `json:"feedProbed"`
}

// Map flattens the diagnostics for a scan's free-form diagnostics map.
func (d Diagnostics) Map() map[string]any {
	m := map[string]any{
		"sitemapsTried":     d.SitemapsTried,
		"sitemapFound":      d.SitemapFound,
		"childSitemaps":     d.ChildSitemaps,
		"sitemapUrlCount":   d.SitemapURLCount,
		"usedFallback":      d.UsedFallback,
		"crawlVisited":      d.CrawlVisited,
		"blogIndexExpanded": d.BlogIndexExpanded,
		"feedProbed":        d.FeedProbed,
	}
	if d.CrawlError != "" {
		m["crawlError"] = d.CrawlError
	}
	return m
}

// Result is the bounded, ranked candidate set for a site.
type Result struct {
	Hostname    string      `json:"hostname"`
	SiteURL     string      `json:"siteUrl"`
	BlogURLs    []string    `json:"blogUrls"`
	PageURLs    []string    `json:"pageUrls"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Discoverer finds blog and page candidates for a site.
type Discoverer struct {
	fetcher Fetcher
	crawler SiteCrawler
	hinter  SitemapHinter
	opts    Options
	log     infralogger.Logger
}

// New builds a Discoverer. crawler and hinter may be nil.
func New(fetcher Fetcher, crawler SiteCrawler, hinter SitemapHinter, opts Options, log infralogger.Logger) *Discoverer {
	opts.setDefaults()
	return &Discoverer{
		fetcher: fetcher,
		crawler: crawler,
		hinter:  hinter,
		opts:    opts,
		log:     log.With(infralogger.Component("discovery")),
	}
}

// Discover returns up to PerTypeLimit blog and page URLs.
func (d *Discoverer) Discover(ctx context.Context, websiteURL string, allowSubdomains bool) (*Result, error) {
	return d.DiscoverWithLimit(ctx, websiteURL, allowSubdomains, d.opts.PerTypeLimit)
}

// DiscoverWithLimit is Discover with a per-call cap on each type.
func (d *Discoverer) DiscoverWithLimit(ctx context.Context, websiteURL string, allowSubdomains bool, limit int) (*Result, error) {
	site, err := urlutil.NormalizeSite(websiteURL)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = d.opts.PerTypeLimit
	}

	res := &Result{
		Hostname: urlutil.Hostname(site.Host),
		SiteURL:  site.String(),
		BlogURLs: []string{},
		PageURLs: []string{},
	}
	log := d.log.With(infralogger.Hostname(res.Hostname))
	set := newCandidateSet(res.Hostname, allowSubdomains, site)

	sitemapOK := d.collectSitemaps(ctx, site, set, &res.Diagnostics)
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	res.BlogURLs, res.PageURLs = set.ranked(limit)

	if len(res.BlogURLs) < d.opts.MinPerType || len(res.PageURLs) < d.opts.MinPerType {
		crawlErr := d.crawlFallback(ctx, site, allowSubdomains, set, &res.Diagnostics)
		if crawlErr != nil && !sitemapOK && set.empty() {
			return nil, fmt.Errorf("%w: %s: %w", ErrSiteUnreachable, res.Hostname, crawlErr)
		}
		res.BlogURLs, res.PageURLs = set.ranked(limit)
	}

	if len(res.BlogURLs) == 0 {
		res.Diagnostics.BlogIndexExpanded = true
		for _, u := range d.expandBlogIndexes(ctx, site, set) {
			set.add(u, KindBlog)
		}
		res.BlogURLs, _ = set.ranked(limit)
	}

	if len(res.BlogURLs) == 0 && d.opts.ProbeFeeds {
		res.Diagnostics.FeedProbed = true
		for _, u := range d.probeFeeds(ctx, site, set) {
			set.add(u, KindBlog)
		}
		res.BlogURLs, _ = set.ranked(limit)
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("Discovery finished",
		infralogger.Int("blogs", len(res.BlogURLs)),
		infralogger.Int("pages", len(res.PageURLs)),
		infralogger.Bool("used_fallback", res.Diagnostics.UsedFallback),
		infralogger.String("sitemap", res.Diagnostics.SitemapFound),
	)
	return res, nil
}

// collectSitemaps tries the well-known locations, then robots.txt hints.
// It reports whether any sitemap document was parsed.
func (d *Discoverer) collectSitemaps(ctx context.Context, site *url.URL, set *candidateSet, diag *Diagnostics) bool {
	locations := make([]string, 0, len(rootSitemapPaths))
	for _, p := range rootSitemapPaths {
		locations = append(locations, site.ResolveReference(&url.URL{Path: p}).String())
	}

	try := func(loc string) bool {
		diag.SitemapsTried = append(diag.SitemapsTried, loc)
		sm, err := d.fetchSitemap(ctx, loc)
		if err != nil {
			d.log.Debug("Sitemap unavailable", infralogger.URL(loc), infralogger.Error(err))
			return false
		}
		diag.SitemapFound = loc
		d.ingest(ctx, sm, set, diag)
		return true
	}

	for _, loc := range locations {
		if try(loc) {
			return true
		}
	}

	if d.hinter == nil {
		return false
	}
	for _, loc := range d.hinter.Sitemaps(ctx, site.String()) {
		if !urlutil.URLAllowed(loc, set.target, set.allowSub) {
			continue
		}
		if try(loc) {
			return true
		}
	}
	return false
}

func (d *Discoverer) fetchSitemap(ctx context.Context, loc string) (*Sitemap, error) {
	resp, err := d.fetcher.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}
	return ParseSitemap(resp.Body)
}

type childSitemap struct {
	url  string
	kind Kind
}

// ingest adds a root sitemap's entries, following indexes breadth-first up
// to MaxChildSitemaps fetched children.
func (d *Discoverer) ingest(ctx context.Context, root *Sitemap, set *candidateSet, diag *Diagnostics) {
	if !root.IsIndex {
		d.addEntries(root.URLs, kindUnknown, set, diag)
		return
	}

	pending := d.retainedChildren(root.Children, kindUnknown)
	for len(pending) > 0 && diag.ChildSitemaps < d.opts.MaxChildSitemaps && ctx.Err() == nil {
		budget := d.opts.MaxChildSitemaps - diag.ChildSitemaps
		batch := pending
		if len(batch) > budget {
			batch = batch[:budget]
		}
		pending = nil
		diag.ChildSitemaps += len(batch)

		docs := d.fetchChildren(ctx, batch)
		for i, sm := range docs {
			if sm == nil {
				continue
			}
			if sm.IsIndex {
				pending = append(pending, d.retainedChildren(sm.Children, batch[i].kind)...)
				continue
			}
			d.addEntries(sm.URLs, batch[i].kind, set, diag)
		}
	}
}

// retainedChildren classifies child sitemaps and drops ignored ones. A
// child of a typed nested index inherits that type unless its own name says otherwise.
func (d *Discoverer) retainedChildren(children []string, parent Kind) []childSitemap {
	out := make([]childSitemap, 0, len(children))
	for _, child := range children {
		kind := ClassifySitemapURL(child)
		if kind == KindIgnore {
			continue
		}
		if parent == KindBlog && kind == KindPage && !hasPageToken(child) {
			kind = KindBlog
		}
		out = append(out, childSitemap{url: child, kind: kind})
	}
	return out
}

func (d *Discoverer) fetchChildren(ctx context.Context, batch []childSitemap) []*Sitemap {
	docs := make([]*Sitemap, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(childFetchConcurrency)
	for i, child := range batch {
		g.Go(func() error {
			sm, err := d.fetchSitemap(gctx, child.url)
			if err != nil {
				d.log.Debug("Child sitemap unavailable", infralogger.URL(child.url), infralogger.Error(err))
				return nil
			}
			docs[i] = sm
			return nil
		})
	}
	_ = g.Wait()
	return docs
}

func (d *Discoverer) addEntries(entries []string, kind Kind, set *candidateSet, diag *Diagnostics) {
	for _, entry := range entries {
		if diag.SitemapURLCount >= d.opts.MaxSitemapURLs {
			return
		}
		diag.SitemapURLCount++
		set.addRaw(entry, kind)
	}
}

func (d *Discoverer) crawlFallback(ctx context.Context, site *url.URL, allowSub bool, set *candidateSet, diag *Diagnostics) error {
	if d.crawler == nil {
		return errors.New("crawl fallback not configured")
	}
	diag.UsedFallback = true

	res, err := d.crawler.Crawl(ctx, site.Host, crawl.Options{
		MaxPages:        d.opts.CrawlMaxPages,
		AllowSubdomains: allowSub,
		Seed:            site.String(),
	})
	if err != nil {
		diag.CrawlError = err.Error()
		d.log.Warn("Crawl fallback failed", infralogger.Error(err))
		return err
	}

	diag.CrawlVisited = res.Visited
	for _, u := range res.URLs {
		set.addRaw(u, kindUnknown)
	}
	return nil
}
