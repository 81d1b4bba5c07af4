// Package fetcher retrieves page HTML, rendered through a headless browser
// service when one is configured and fetched directly otherwise.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"

	"github.com/jonesrussell/seoscan/infrastructure/circuitbreaker"
	infraerrors "github.com/jonesrussell/seoscan/infrastructure/errors"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/retry"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

const (
	DefaultRenderConcurrency = 1
	DefaultMinRenderedText   = 200
	DefaultDirectTimeout     = 15 * time.Second
	DefaultMaxBodyBytes      = 5 << 20
	DefaultDirectAttempts    = 2
)

// ErrNotHTML is returned by the direct tier for non-HTML responses.
var ErrNotHTML = errors.New("response is not html")

// ErrRedirectedOffHost is returned when a direct fetch ends on another host.
var ErrRedirectedOffHost = errors.New("redirected to another host")

// Source is the tier that produced a Page.
type Source string

const (
	SourceRender Source = "render"
	SourceDirect Source = "direct"
)

// Page is fetched HTML.
type Page struct {
	URL        string
	HTML       string
	Source     Source
	StatusCode int
	// RenderError explains why the render tier was skipped, when it was.
	RenderError string
}

// Config configures a Fetcher. Zero values take the defaults.
type Config struct {
	RenderConcurrency int
	MinRenderedText   int
	DirectTimeout     time.Duration
	MaxBodyBytes      int64
	DirectAttempts    int
	UserAgent         string
}

func (c *Config) setDefaults() {
	if c.RenderConcurrency <= 0 {
		c.RenderConcurrency = DefaultRenderConcurrency
	}
	if c.MinRenderedText <= 0 {
		c.MinRenderedText = DefaultMinRenderedText
	}
	if c.DirectTimeout <= 0 {
		c.DirectTimeout = DefaultDirectTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.DirectAttempts <= 0 {
		c.DirectAttempts = DefaultDirectAttempts
	}
}

// Fetcher is shared by every scan in the process so the render limiter and
// breaker apply globally.
type Fetcher struct {
	renderer Renderer
	limiter  *semaphore.Weighted
	breaker  *circuitbreaker.Breaker
	client   *http.Client
	cfg      Config
	log      infralogger.Logger
}

// New builds a Fetcher. renderer may be nil to always fetch directly.
func New(renderer Renderer, breaker *circuitbreaker.Breaker, client *http.Client, cfg Config, log infralogger.Logger) *Fetcher {
	cfg.setDefaults()
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{})
	}
	return &Fetcher{
		renderer: renderer,
		limiter:  semaphore.NewWeighted(int64(cfg.RenderConcurrency)),
		breaker:  breaker,
		client:   client,
		cfg:      cfg,
		log:      log.With(infralogger.Component("fetcher")),
	}
}

// Fetch tries the render tier, then falls back to a direct GET when rendering
// is unavailable, rate limited, failing or returns too little text.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	var renderErr error
	if f.renderer != nil {
		html, err := f.render(ctx, pageURL)
		switch {
		case err == nil && TextLength(html) >= f.cfg.MinRenderedText:
			return &Page{URL: pageURL, HTML: html, Source: SourceRender, StatusCode: http.StatusOK}, nil
		case err == nil:
			renderErr = fmt.Errorf("rendered text below %d chars", f.cfg.MinRenderedText)
		default:
			renderErr = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		f.log.Debug("Render tier skipped, fetching directly",
			infralogger.URL(pageURL),
			infralogger.Error(renderErr),
		)
	}

	page, err := f.direct(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if renderErr != nil {
		page.RenderError = renderErr.Error()
	}
	return page, nil
}

func (f *Fetcher) render(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiter.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer f.limiter.Release(1)

	var html string
	err := f.breaker.Execute(ctx, func(ctx context.Context) error {
		var renderErr error
		html, renderErr = f.renderer.Render(ctx, pageURL)
		return renderErr
	})
	return html, err
}

func (f *Fetcher) direct(ctx context.Context, pageURL string) (*Page, error) {
	var page *Page
	cfg := retry.Config{
		MaxAttempts: f.cfg.DirectAttempts,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, ErrNotHTML) && !errors.Is(err, ErrRedirectedOffHost) &&
				retry.DefaultIsRetryable(err)
		},
	}
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		p, err := f.directOnce(ctx, pageURL)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *Fetcher) directOnce(ctx context.Context, pageURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.DirectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, httpErr)
	}
	finalURL := resp.Request.URL.String()
	if !urlutil.URLAllowed(finalURL, urlutil.HostOf(pageURL), false) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectedOffHost, pageURL, finalURL)
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	return &Page{
		URL:        finalURL,
		HTML:       string(body),
		Source:     SourceDirect,
		StatusCode: resp.StatusCode,
	}, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// TextLength is the trimmed length of the document's body text.
func TextLength(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	doc.Find("script, style, noscript").Remove()
	return len(strings.Join(strings.Fields(doc.Find("body").Text()), " "))
}
