package seo

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Backlinks reads Ahrefs-compatible backlink stats. The aggregator runs it
// only when the primary summary came back empty.
type Backlinks struct {
	api apiClient
	cfg APIConfig
	now func() time.Time
}

// NewBacklinks builds the fallback backlink provider.
func NewBacklinks(api apiClient, cfg APIConfig) *Backlinks {
	return &Backlinks{api: api, cfg: cfg, now: time.Now}
}

func (b *Backlinks) Name() string { return StepBacklinks }

func (b *Backlinks) Decode(raw []byte) (any, error) { return decodeAs[BacklinkSummary](raw) }

type backlinksStats struct {
	Metrics struct {
		Live             int64 `json:"live"`
		AllTime          int64 `json:"all_time"`
		LiveRefdomains   int64 `json:"live_refdomains"`
		AllTimeRefdomain int64 `json:"all_time_refdomains"`
	} `json:"metrics"`
}

func (b *Backlinks) Fetch(ctx context.Context, t Target) (any, error) {
	q := url.Values{}
	q.Set("target", t.Domain)
	q.Set("mode", "subdomains")
	q.Set("date", b.now().UTC().Format(time.DateOnly))
	endpoint := b.cfg.Endpoint + "?" + q.Encode()

	var body backlinksStats
	err := b.api.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
		return req, nil
	}, &body)
	if err != nil {
		return nil, err
	}

	m := body.Metrics
	summary := &BacklinkSummary{Backlinks: m.Live, ReferringDomains: m.LiveRefdomains, Source: "ahrefs"}
	if summary.Empty() {
		summary.Backlinks = m.AllTime
		summary.ReferringDomains = m.AllTimeRefdomain
	}
	return summary, nil
}
