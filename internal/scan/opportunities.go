package scan

import (
	"context"

	"github.com/jonesrussell/seoscan/internal/store"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// Source describes where a Response came from.
type Source struct {
	ScanID          string       `json:"scanId"`
	Status          store.Status `json:"status"`
	Mode            store.Mode   `json:"mode"`
	FromCache       bool         `json:"fromCache"`
	AllowSubdomains bool         `json:"allowSubdomains"`
}

// Response is the opportunities payload.
type Response struct {
	Hostname string              `json:"hostname"`
	Blogs    []store.ContentItem `json:"blogs"`
	Pages    []store.ContentItem `json:"pages"`
	Source   Source              `json:"source"`
}

// GetOpportunities returns the fresh complete snapshot for the site, with
// fresh true. Otherwise it enqueues (or joins) a scan and returns an empty
// response carrying that scan's ID and status.
func (o *Orchestrator) GetOpportunities(ctx context.Context, websiteURL string, allowSubdomains bool) (*Response, bool, error) {
	site, err := urlutil.NormalizeSite(websiteURL)
	if err != nil {
		return nil, false, err
	}
	hostname := urlutil.Hostname(site.Host)

	snap, err := o.store.GetLatest(ctx, hostname, store.LatestOptions{
		TTL:             o.cfg.SnapshotTTL,
		Mode:            string(store.ModePublished),
		AllowSubdomains: allowSubdomains,
	})
	if err != nil {
		return nil, false, err
	}
	if snap != nil && snap.Status == store.StatusComplete {
		return &Response{
			Hostname: snap.Hostname,
			Blogs:    nonNil(snap.Blogs),
			Pages:    nonNil(snap.Pages),
			Source: Source{
				ScanID:          snap.ScanID,
				Status:          snap.Status,
				Mode:            snap.Mode,
				FromCache:       true,
				AllowSubdomains: snap.AllowSubdomains,
			},
		}, true, nil
	}

	scan, _, err := o.Enqueue(ctx, websiteURL, allowSubdomains)
	if err != nil {
		return nil, false, err
	}
	return &Response{
		Hostname: scan.Hostname,
		Blogs:    []store.ContentItem{},
		Pages:    []store.ContentItem{},
		Source: Source{
			ScanID:          scan.ID,
			Status:          scan.Status,
			Mode:            scan.Mode,
			AllowSubdomains: scan.AllowSubdomains,
		},
	}, false, nil
}

func nonNil(items []store.ContentItem) []store.ContentItem {
	if items == nil {
		return []store.ContentItem{}
	}
	return items
}
