package seo

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

const serpResults = 10

// SERP queries a Serper-compatible Google search API.
type SERP struct {
	api apiClient
	cfg APIConfig
}

// NewSERP builds the serp provider.
func NewSERP(api apiClient, cfg APIConfig) *SERP {
	return &SERP{api: api, cfg: cfg}
}

func (s *SERP) Name() string { return ProviderSERP }

func (s *SERP) Decode(raw []byte) (any, error) { return decodeAs[SERPResult](raw) }

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
	PeopleAlsoAsk []struct {
		Question string `json:"question"`
		Snippet  string `json:"snippet"`
		Link     string `json:"link"`
	} `json:"peopleAlsoAsk"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"relatedSearches"`
}

func (s *SERP) Fetch(ctx context.Context, t Target) (any, error) {
	payload, err := json.Marshal(map[string]any{
		"q":   t.Query(),
		"gl":  t.CountryCode,
		"hl":  t.LanguageCode,
		"num": serpResults,
	})
	if err != nil {
		return nil, err
	}

	var body serperResponse
	err = s.api.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", s.cfg.APIKey)
		return req, nil
	}, &body)
	if err != nil {
		return nil, err
	}

	result := &SERPResult{
		Query:           t.Query(),
		Organic:         make([]SERPEntry, 0, len(body.Organic)),
		PeopleAlsoAsk:   make([]Question, 0, len(body.PeopleAlsoAsk)),
		RelatedSearches: make([]string, 0, len(body.RelatedSearches)),
	}
	for i, o := range body.Organic {
		pos := o.Position
		if pos == 0 {
			pos = i + 1
		}
		result.Organic = append(result.Organic, SERPEntry{Position: pos, Title: o.Title, Link: o.Link, Snippet: o.Snippet})
		if result.Position == 0 && urlutil.URLAllowed(o.Link, t.Domain, true) {
			result.Position = pos
		}
	}
	for _, q := range body.PeopleAlsoAsk {
		result.PeopleAlsoAsk = append(result.PeopleAlsoAsk, Question{Question: q.Question, Snippet: q.Snippet, Link: q.Link})
	}
	for _, r := range body.RelatedSearches {
		result.RelatedSearches = append(result.RelatedSearches, r.Query)
	}
	return result, nil
}
