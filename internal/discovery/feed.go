package discovery

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

var commonFeedPaths = []string{"/feed", "/rss", "/feed.xml", "/rss.xml", "/atom.xml", "/index.xml"}

// probeFeeds returns post URLs from the first RSS/Atom feed that yields any.
// Advertised feeds on the home page are tried before the common paths.
func (d *Discoverer) probeFeeds(ctx context.Context, site *url.URL, set *candidateSet) []string {
	for _, feedURL := range d.feedLocations(ctx, site, set) {
		if ctx.Err() != nil {
			return nil
		}
		resp, err := d.fetcher.Fetch(ctx, feedURL)
		if err != nil {
			continue
		}

		feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
		if err != nil {
			d.log.Debug("Feed parse failed", infralogger.URL(feedURL), infralogger.Error(err))
			continue
		}

		base, _ := url.Parse(feedURL)
		var posts []string
		for _, item := range feed.Items {
			link := item.Link
			if link == "" && strings.HasPrefix(item.GUID, "http") {
				link = item.GUID
			}
			if u, ok := set.accept(link, base); ok {
				posts = append(posts, u)
			}
		}
		if len(posts) > 0 {
			d.log.Debug("Feed probed", infralogger.URL(feedURL), infralogger.Int("items", len(posts)))
			return posts
		}
	}
	return nil
}

func (d *Discoverer) feedLocations(ctx context.Context, site *url.URL, set *candidateSet) []string {
	var locations []string
	seen := make(map[string]struct{})
	push := func(u string) {
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		locations = append(locations, u)
	}

	if resp, err := d.fetcher.Fetch(ctx, site.String()); err == nil {
		if doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body)); parseErr == nil {
			doc.Find(`link[rel="alternate"]`).Each(func(_ int, sel *goquery.Selection) {
				typ, _ := sel.Attr("type")
				if !strings.Contains(typ, "rss+xml") && !strings.Contains(typ, "atom+xml") {
					return
				}
				href, _ := sel.Attr("href")
				u, normErr := urlutil.Normalize(href, site)
				if normErr == nil && urlutil.URLAllowed(u, set.target, set.allowSub) {
					push(u)
				}
			})
		}
	}

	for _, p := range commonFeedPaths {
		push(site.ResolveReference(&url.URL{Path: p}).String())
	}
	return locations
}
