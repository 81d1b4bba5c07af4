package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	defaultRobotsCacheTTL = 24 * time.Hour
	maxRobotsBodyBytes    = 512 * 1024
)

// RobotsChecker caches robots.txt per host and answers allow/deny for URLs.
// A missing, failing or unparseable robots.txt allows everything.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration

	mu    sync.RWMutex
	cache map[string]*robotsEntry
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// NewRobotsChecker shares one cache across crawls. ttl <= 0 uses 24h.
func NewRobotsChecker(client *http.Client, userAgent string, ttl time.Duration) *RobotsChecker {
	if ttl <= 0 {
		ttl = defaultRobotsCacheTTL
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		cache:     make(map[string]*robotsEntry),
	}
}

// IsAllowed reports whether rawURL may be fetched by this user agent.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}
	if u.Host == "" {
		return false, fmt.Errorf("robots: empty host in %q", rawURL)
	}

	entry := r.entry(ctx, u)
	if entry.data == nil {
		return true, nil
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return entry.data.TestAgent(p, r.userAgent), nil
}

// Sitemaps returns the Sitemap: lines advertised by the site's robots.txt.
func (r *RobotsChecker) Sitemaps(ctx context.Context, siteURL string) []string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return nil
	}
	entry := r.entry(ctx, u)
	if entry.data == nil {
		return nil
	}
	return append([]string(nil), entry.data.Sitemaps...)
}

func (r *RobotsChecker) entry(ctx context.Context, u *url.URL) *robotsEntry {
	host := strings.ToLower(u.Host)

	r.mu.RLock()
	entry, ok := r.cache[host]
	r.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) <= r.ttl {
		return entry
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	entry = &robotsEntry{fetchedAt: time.Now(), data: r.fetch(ctx, scheme+"://"+host+"/robots.txt")}
	if ctx.Err() != nil {
		return entry
	}

	r.mu.Lock()
	r.cache[host] = entry
	r.mu.Unlock()

	return entry
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return data
}
