// Package plagiarism talks to an originality-check service and meters how
// many checks a scan may spend.
package plagiarism

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	infraerrors "github.com/jonesrussell/seoscan/infrastructure/errors"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
)

const (
	DefaultTimeout = 30 * time.Second
	maxTextLength  = 50000
)

// ErrNotConfigured is returned by a Client without an endpoint.
var ErrNotConfigured = errors.New("plagiarism service not configured")

// Source is a page the checked text matched.
type Source struct {
	URL          string  `json:"url" mapstructure:"url"`
	Title        string  `json:"title,omitempty" mapstructure:"title"`
	Percent      float64 `json:"percent,omitempty" mapstructure:"percent"`
	MatchedWords int     `json:"matchedWords,omitempty" mapstructure:"matchedWords"`
}

// Report is the outcome of one check.
type Report struct {
	Score     int
	CheckedAt time.Time
	Sources   []Source
}

// Checker checks text for plagiarism.
type Checker interface {
	Check(ctx context.Context, pageURL, text string) (*Report, error)
}

// Config configures a Client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client posts {url, text} to a JSON originality API.
type Client struct {
	http *http.Client
	cfg  Config
	log  infralogger.Logger
}

// NewClient builds a Client.
func NewClient(httpClient *http.Client, cfg Config, log infralogger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{http: httpClient, cfg: cfg, log: log.With(infralogger.Component("plagiarism"))}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Endpoint != ""
}

// response accepts the field spellings seen across originality APIs.
type response struct {
	Score      *float64 `mapstructure:"score"`
	Percent    *float64 `mapstructure:"percentPlagiarized"`
	Plagiarism *float64 `mapstructure:"plagiarism"`
	CheckedAt  string   `mapstructure:"checkedAt"`
	Sources    []Source `mapstructure:"sources"`
	Matches    []Source `mapstructure:"matches"`
}

// Check submits text (capped at 50k characters) for pageURL.
func (c *Client) Check(ctx context.Context, pageURL, text string) (*Report, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if r := []rune(text); len(r) > maxTextLength {
		text = string(r[:maxTextLength])
	}
	payload, err := json.Marshal(map[string]string{"url": pageURL, "text": text})
	if err != nil {
		return nil, fmt.Errorf("encode plagiarism request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create plagiarism request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plagiarism check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return nil, fmt.Errorf("plagiarism check: %w", httpErr)
	}

	var raw map[string]any
	if err = json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode plagiarism response: %w", err)
	}
	return decodeReport(raw)
}

func decodeReport(raw map[string]any) (*Report, error) {
	var body response
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &body,
	})
	if err != nil {
		return nil, err
	}
	if err = dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode plagiarism response: %w", err)
	}

	var score float64
	switch {
	case body.Score != nil:
		score = *body.Score
	case body.Percent != nil:
		score = *body.Percent
	case body.Plagiarism != nil:
		score = *body.Plagiarism
	default:
		return nil, errors.New("plagiarism response has no score")
	}

	checkedAt := time.Now().UTC()
	if body.CheckedAt != "" {
		if ts, parseErr := time.Parse(time.RFC3339, strings.TrimSpace(body.CheckedAt)); parseErr == nil {
			checkedAt = ts.UTC()
		}
	}

	sources := body.Sources
	if len(sources) == 0 {
		sources = body.Matches
	}
	if sources == nil {
		sources = []Source{}
	}

	return &Report{Score: clampScore(score), CheckedAt: checkedAt, Sources: sources}, nil
}

func clampScore(v float64) int {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v + 0.5)
	}
}
