package discovery

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrNotSitemap is returned when a document is neither a urlset nor a sitemapindex.
var ErrNotSitemap = errors.New("document is not a sitemap")

type xmlLoc struct {
	Loc string `xml:"loc"`
}

type xmlSitemapDocument struct {
	XMLName  xml.Name
	URLs     []xmlLoc `xml:"url"`
	Sitemaps []xmlLoc `xml:"sitemap"`
}

// Sitemap is a parsed sitemap document. Exactly one of URLs or Children is
// meaningful, depending on IsIndex.
type Sitemap struct {
	IsIndex  bool
	URLs     []string
	Children []string
}

// ParseSitemap parses a <urlset> or <sitemapindex> document.
func ParseSitemap(body []byte) (*Sitemap, error) {
	var doc xmlSitemapDocument
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotSitemap, err)
	}

	switch strings.ToLower(doc.XMLName.Local) {
	case "sitemapindex":
		return &Sitemap{IsIndex: true, Children: locs(doc.Sitemaps)}, nil
	case "urlset":
		return &Sitemap{URLs: locs(doc.URLs)}, nil
	default:
		return nil, fmt.Errorf("%w: root element <%s>", ErrNotSitemap, doc.XMLName.Local)
	}
}

func locs(entries []xmlLoc) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
