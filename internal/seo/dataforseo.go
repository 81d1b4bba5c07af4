package seo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	dataForSEOOK = 20000

	backlinksSummaryPath = "/v3/backlinks/summary/live"
	keywordIdeasPath     = "/v3/dataforseo_labs/google/keyword_ideas/live"

	defaultLocationCode = 2840
)

var locationCodes = map[string]int{
	"us": 2840,
	"gb": 2826,
	"uk": 2826,
	"ca": 2124,
	"au": 2036,
	"in": 2356,
	"de": 2276,
	"fr": 2250,
}

// LocationCode maps a two-letter country code to a DataForSEO location,
// falling back to the United States.
func LocationCode(country string) int {
	if code, ok := locationCodes[strings.ToLower(country)]; ok {
		return code
	}
	return defaultLocationCode
}

// DataForSEO reads the backlink summary and keyword ideas. With
// Target.KeywordsOnly the backlink call is skipped.
type DataForSEO struct {
	api apiClient
	cfg DataForSEOConfig
}

// NewDataForSEO builds the dataforseo provider.
func NewDataForSEO(api apiClient, cfg DataForSEOConfig) *DataForSEO {
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &DataForSEO{api: api, cfg: cfg}
}

func (d *DataForSEO) Name() string { return ProviderDataForSEO }

func (d *DataForSEO) Decode(raw []byte) (any, error) { return decodeAs[DataForSEOResult](raw) }

type dataForSEOEnvelope struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []struct {
		StatusCode    int              `json:"status_code"`
		StatusMessage string           `json:"status_message"`
		Result        []map[string]any `json:"result"`
	} `json:"tasks"`
}

// firstResult returns tasks[0].result[0], or nil when the task found nothing.
func (e *dataForSEOEnvelope) firstResult() (map[string]any, error) {
	if e.StatusCode != dataForSEOOK {
		return nil, fmt.Errorf("dataforseo: %d %s", e.StatusCode, e.StatusMessage)
	}
	if len(e.Tasks) == 0 {
		return nil, nil
	}
	task := e.Tasks[0]
	if task.StatusCode != dataForSEOOK {
		return nil, fmt.Errorf("dataforseo task: %d %s", task.StatusCode, task.StatusMessage)
	}
	if len(task.Result) == 0 {
		return nil, nil
	}
	return task.Result[0], nil
}

type backlinkSummaryRow struct {
	Backlinks        int64 `json:"backlinks"`
	ReferringDomains int64 `json:"referring_domains"`
	Rank             int   `json:"rank"`
}

type keywordIdeaRow struct {
	Keyword     string `json:"keyword"`
	KeywordInfo struct {
		SearchVolume     int64   `json:"search_volume"`
		Competition      float64 `json:"competition"`
		CompetitionLevel string  `json:"competition_level"`
		CPC              float64 `json:"cpc"`
	} `json:"keyword_info"`
	KeywordProperties struct {
		KeywordDifficulty int `json:"keyword_difficulty"`
	} `json:"keyword_properties"`
}

func (d *DataForSEO) Fetch(ctx context.Context, t Target) (any, error) {
	result := &DataForSEOResult{}

	if !t.KeywordsOnly {
		summary, err := d.backlinks(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("backlinks summary: %w", err)
		}
		result.Backlinks = summary
	}

	if t.Keyword != "" {
		ideas, err := d.keywordIdeas(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("keyword ideas: %w", err)
		}
		result.Keywords = ideas
	}
	return result, nil
}

func (d *DataForSEO) backlinks(ctx context.Context, t Target) (*BacklinkSummary, error) {
	row, err := d.post(ctx, backlinksSummaryPath, map[string]any{
		"target":             t.Domain,
		"include_subdomains": true,
	})
	if err != nil || row == nil {
		return nil, err
	}

	var summary backlinkSummaryRow
	if err = decodeMap(row, &summary); err != nil {
		return nil, err
	}
	return &BacklinkSummary{
		Backlinks:        summary.Backlinks,
		ReferringDomains: summary.ReferringDomains,
		Rank:             summary.Rank,
		Source:           ProviderDataForSEO,
	}, nil
}

func (d *DataForSEO) keywordIdeas(ctx context.Context, t Target) ([]KeywordIdea, error) {
	row, err := d.post(ctx, keywordIdeasPath, map[string]any{
		"keywords":      []string{t.Keyword},
		"location_code": LocationCode(t.CountryCode),
		"language_code": t.LanguageCode,
		"limit":         t.Depth,
	})
	if err != nil {
		return nil, err
	}
	ideas := []KeywordIdea{}
	if row == nil {
		return ideas, nil
	}

	var rows struct {
		Items []keywordIdeaRow `json:"items"`
	}
	if err = decodeMap(row, &rows); err != nil {
		return nil, err
	}
	for _, item := range rows.Items {
		if item.Keyword == "" {
			continue
		}
		ideas = append(ideas, KeywordIdea{
			Keyword:          item.Keyword,
			SearchVolume:     item.KeywordInfo.SearchVolume,
			Competition:      item.KeywordInfo.Competition,
			CompetitionLevel: item.KeywordInfo.CompetitionLevel,
			CPC:              item.KeywordInfo.CPC,
			Difficulty:       item.KeywordProperties.KeywordDifficulty,
		})
	}
	sort.SliceStable(ideas, func(i, j int) bool { return ideas[i].SearchVolume > ideas[j].SearchVolume })
	return ideas, nil
}

// post sends a single-task array, the shape every DataForSEO live endpoint takes.
func (d *DataForSEO) post(ctx context.Context, path string, task map[string]any) (map[string]any, error) {
	payload, err := json.Marshal([]map[string]any{task})
	if err != nil {
		return nil, err
	}

	var env dataForSEOEnvelope
	err = d.api.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint+path, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(d.cfg.Login, d.cfg.Password)
		return req, nil
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.firstResult()
}
