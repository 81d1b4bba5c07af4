package seo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Authority queries OpenPageRank for the target domain.
type Authority struct {
	api apiClient
	cfg APIConfig
}

// NewAuthority builds the authority provider.
func NewAuthority(api apiClient, cfg APIConfig) *Authority {
	return &Authority{api: api, cfg: cfg}
}

func (a *Authority) Name() string { return ProviderAuthority }

func (a *Authority) Decode(raw []byte) (any, error) { return decodeAs[AuthorityResult](raw) }

// pageRankEntry mirrors one element of the "response" array. rank arrives
// as a string and page_rank_decimal may be a string or number.
type pageRankEntry struct {
	StatusCode      int     `json:"status_code"`
	Error           string  `json:"error"`
	PageRankInteger int     `json:"page_rank_integer"`
	PageRankDecimal float64 `json:"page_rank_decimal"`
	Rank            int64   `json:"rank"`
	Domain          string  `json:"domain"`
}

func (a *Authority) Fetch(ctx context.Context, t Target) (any, error) {
	endpoint := a.cfg.Endpoint + "?" + url.Values{"domains[]": {t.Domain}}.Encode()

	var body struct {
		Response []map[string]any `json:"response"`
	}
	err := a.api.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("API-OPR", a.cfg.APIKey)
		return req, nil
	}, &body)
	if err != nil {
		return nil, err
	}
	if len(body.Response) == 0 {
		return nil, errors.New("openpagerank returned no entries")
	}

	var entry pageRankEntry
	if err = decodeMap(body.Response[0], &entry); err != nil {
		return nil, fmt.Errorf("decode openpagerank entry: %w", err)
	}
	if entry.StatusCode != 0 && entry.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openpagerank: %s", entry.Error)
	}
	if entry.Domain == "" {
		entry.Domain = t.Domain
	}

	return &AuthorityResult{
		Domain:          entry.Domain,
		PageRank:        entry.PageRankDecimal,
		PageRankInteger: entry.PageRankInteger,
		Rank:            entry.Rank,
	}, nil
}
