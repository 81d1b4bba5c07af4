package discovery

import (
	"bytes"
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
)

var blogIndexPaths = []string{"/blog/", "/blogs/", "/news/", "/insights/", "/articles/"}

// expandBlogIndexes reads the common blog listing pages and returns the
// same-host links on them that classify as blog posts.
func (d *Discoverer) expandBlogIndexes(ctx context.Context, site *url.URL, set *candidateSet) []string {
	var found []string
	for _, p := range blogIndexPaths {
		if ctx.Err() != nil {
			break
		}
		indexURL := site.ResolveReference(&url.URL{Path: p})

		resp, err := d.fetcher.Fetch(ctx, indexURL.String())
		if err != nil {
			d.log.Debug("Blog index unavailable", infralogger.URL(indexURL.String()), infralogger.Error(err))
			continue
		}

		links := blogLinks(resp.Body, indexURL, set)
		d.log.Debug("Blog index expanded",
			infralogger.URL(indexURL.String()),
			infralogger.Int("links", len(links)),
		)
		found = append(found, links...)
	}
	return found
}

func blogLinks(body []byte, indexURL *url.URL, set *candidateSet) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		u, ok := set.accept(href, indexURL)
		if !ok || ClassifyURL(u) != KindBlog {
			return
		}
		links = append(links, u)
	})
	return links
}
