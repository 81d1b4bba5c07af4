package seo

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"sort"
)

const passingAuditScore = 0.9

var lighthouseCategories = []string{"performance", "seo", "accessibility", "best-practices"}

var vitalAudits = map[string]string{
	"largest-contentful-paint": "lcp",
	"cumulative-layout-shift":  "cls",
	"total-blocking-time":      "tbt",
	"first-contentful-paint":   "fcp",
	"speed-index":              "speedIndex",
}

// Performance queries PageSpeed Insights.
type Performance struct {
	api apiClient
	cfg PageSpeedConfig
}

// NewPerformance builds the performance provider.
func NewPerformance(api apiClient, cfg PageSpeedConfig) *Performance {
	return &Performance{api: api, cfg: cfg}
}

func (p *Performance) Name() string { return ProviderPerformance }

func (p *Performance) Decode(raw []byte) (any, error) { return decodeAs[PerformanceResult](raw) }

type lighthouseAudit struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Score        *float64 `json:"score"`
	DisplayValue string   `json:"displayValue"`
	NumericValue *float64 `json:"numericValue"`
}

type pageSpeedResponse struct {
	LighthouseResult struct {
		Categories map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
		Audits map[string]lighthouseAudit `json:"audits"`
	} `json:"lighthouseResult"`
}

func (p *Performance) Fetch(ctx context.Context, t Target) (any, error) {
	q := url.Values{}
	q.Set("url", t.URL)
	q.Set("strategy", p.cfg.Strategy)
	for _, c := range lighthouseCategories {
		q.Add("category", c)
	}
	if p.cfg.APIKey != "" {
		q.Set("key", p.cfg.APIKey)
	}
	endpoint := p.cfg.Endpoint + "?" + q.Encode()

	var body pageSpeedResponse
	err := p.api.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	}, &body)
	if err != nil {
		return nil, err
	}

	lh := body.LighthouseResult
	result := &PerformanceResult{
		Strategy:      p.cfg.Strategy,
		Scores:        make(map[string]int, len(lh.Categories)),
		FailingAudits: []Audit{},
		Vitals:        make(map[string]float64),
	}
	for name, cat := range lh.Categories {
		if cat.Score != nil {
			result.Scores[name] = int(math.Round(*cat.Score * 100))
		}
	}
	for id, audit := range lh.Audits {
		if key, ok := vitalAudits[id]; ok && audit.NumericValue != nil {
			result.Vitals[key] = *audit.NumericValue
		}
		// Informative audits carry a null score.
		if audit.Score == nil || *audit.Score >= passingAuditScore {
			continue
		}
		if audit.ID == "" {
			audit.ID = id
		}
		result.FailingAudits = append(result.FailingAudits, Audit{
			ID:           audit.ID,
			Title:        audit.Title,
			Score:        *audit.Score,
			DisplayValue: audit.DisplayValue,
		})
	}
	sort.Slice(result.FailingAudits, func(i, j int) bool {
		a, b := result.FailingAudits[i], result.FailingAudits[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return a.ID < b.ID
	})
	return result, nil
}
