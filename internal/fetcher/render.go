package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	infraerrors "github.com/jonesrussell/seoscan/infrastructure/errors"
)

const (
	DefaultRenderTimeout   = 45 * time.Second
	DefaultReadyTextLength = 500
	readyPollInterval      = 500
	maxRenderedBytes       = 8 << 20
)

// ErrRateLimited is returned when the render service answers 429.
var ErrRateLimited = errors.New("render service rate limited")

// Renderer returns the HTML of a page after JavaScript has run.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// RenderConfig configures a BrowserlessRenderer.
type RenderConfig struct {
	// Endpoint is the service base URL, e.g. http://browserless:3000.
	Endpoint string
	Token    string
	Timeout  time.Duration
	// ReadyTextLength is the body text length at which the page counts as loaded.
	ReadyTextLength int
}

// BrowserlessRenderer calls a Browserless-compatible /content endpoint.
type BrowserlessRenderer struct {
	client *http.Client
	cfg    RenderConfig
}

// NewBrowserlessRenderer returns a renderer using client for the service calls.
func NewBrowserlessRenderer(client *http.Client, cfg RenderConfig) *BrowserlessRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRenderTimeout
	}
	if cfg.ReadyTextLength <= 0 {
		cfg.ReadyTextLength = DefaultReadyTextLength
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &BrowserlessRenderer{client: client, cfg: cfg}
}

type waitForFunction struct {
	Fn      string `json:"fn"`
	Polling int    `json:"polling"`
	Timeout int64  `json:"timeout"`
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil"`
	Timeout   int64  `json:"timeout"`
}

type contentRequest struct {
	URL                  string          `json:"url"`
	SetJavaScriptEnabled bool            `json:"setJavaScriptEnabled"`
	BestAttempt          bool            `json:"bestAttempt"`
	GotoOptions          gotoOptions     `json:"gotoOptions"`
	WaitForFunction      waitForFunction `json:"waitForFunction"`
}

// readinessScript scrolls one viewport per poll to trigger lazy loading and
// resolves once a main content element exists and the body has enough text.
func readinessScript(minText int) string {
	return fmt.Sprintf(`() => {
  window.scrollBy(0, window.innerHeight);
  const main = document.querySelector('main, article, [role="main"]');
  const text = document.body ? document.body.innerText.trim() : '';
  return !!main && text.length >= %d;
}`, minText)
}

// Render posts pageURL to the service. A 429 yields ErrRateLimited.
func (r *BrowserlessRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	waitMs := r.cfg.Timeout.Milliseconds() * 2 / 3
	payload, err := json.Marshal(contentRequest{
		URL:                  pageURL,
		SetJavaScriptEnabled: true,
		BestAttempt:          true,
		GotoOptions:          gotoOptions{WaitUntil: "networkidle2", Timeout: waitMs},
		WaitForFunction: waitForFunction{
			Fn:      readinessScript(r.cfg.ReadyTextLength),
			Polling: readyPollInterval,
			Timeout: waitMs / 2,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode render request: %w", err)
	}

	endpoint := r.cfg.Endpoint + "/content"
	if r.cfg.Token != "" {
		endpoint += "?token=" + url.QueryEscape(r.cfg.Token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, httpErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderedBytes))
	if err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}
	return string(body), nil
}
