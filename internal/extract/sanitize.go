package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxHTMLLength caps sanitized HTML, in characters.
const MaxHTMLLength = 140000

const (
	// truncateSlack leaves room for the closing tags re-added after truncation.
	truncateSlack = 1024
	maxPasses     = 4
)

// droppedElements are removed together with everything inside them.
var droppedElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "template": {},
	"svg": {}, "math": {}, "iframe": {}, "frame": {}, "frameset": {}, "canvas": {},
	"form": {}, "input": {}, "button": {}, "select": {}, "textarea": {}, "label": {},
	"header": {}, "nav": {}, "footer": {}, "aside": {},
	"img": {}, "picture": {}, "figure": {}, "figcaption": {}, "video": {}, "audio": {},
	"source": {}, "track": {}, "object": {}, "embed": {}, "map": {}, "area": {},
	"head": {}, "title": {}, "meta": {}, "link": {}, "base": {},
}

var allowedElements = map[string]struct{}{
	"p": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"ul": {}, "ol": {}, "li": {},
	"table": {}, "thead": {}, "tbody": {}, "tfoot": {}, "tr": {}, "th": {}, "td": {}, "caption": {},
	"strong": {}, "b": {}, "em": {}, "i": {}, "u": {}, "s": {}, "code": {}, "pre": {}, "blockquote": {},
	"br": {}, "hr": {}, "a": {}, "span": {}, "div": {},
}

var anchorAttributes = map[string]struct{}{
	"href": {}, "title": {}, "target": {}, "rel": {},
}

// Sanitize reduces HTML to an image-free, attribute-free (anchors aside)
// allow-listed subset. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(in string) string {
	out := sanitizePass(in)
	for range maxPasses {
		if utf8.RuneCountInString(out) > MaxHTMLLength {
			out = sanitizePass(truncateRunes(out, MaxHTMLLength-truncateSlack))
			continue
		}
		next := sanitizePass(out)
		if next == out {
			return out
		}
		out = next
	}
	return out
}

func sanitizePass(in string) string {
	if strings.TrimSpace(in) == "" {
		return ""
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(in), body)
	if err != nil {
		return ""
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		for _, kept := range cleanNode(n) {
			_ = html.Render(&buf, kept)
		}
	}
	return strings.TrimSpace(buf.String())
}

// cleanNode returns the sanitized replacement for n: nothing, n itself, or
// n's cleaned children when n is unwrapped.
func cleanNode(n *html.Node) []*html.Node {
	switch n.Type {
	case html.TextNode:
		return []*html.Node{{Type: html.TextNode, Data: n.Data}}
	case html.ElementNode:
	case html.DocumentNode:
		return cleanChildren(n)
	default:
		return nil
	}

	name := strings.ToLower(n.Data)
	if _, drop := droppedElements[name]; drop {
		return nil
	}

	children := cleanChildren(n)
	if _, ok := allowedElements[name]; !ok {
		return children
	}

	out := &html.Node{Type: html.ElementNode, Data: name, DataAtom: atom.Lookup([]byte(name))}
	if name == "a" {
		out.Attr = anchorAttrs(n.Attr)
	}
	for _, c := range children {
		out.AppendChild(c)
	}

	if (name == "p" || name == "div") && isEmptyBlock(out) {
		return nil
	}
	return []*html.Node{out}
}

func cleanChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, cleanNode(c)...)
	}
	return out
}

func anchorAttrs(attrs []html.Attribute) []html.Attribute {
	var out []html.Attribute
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" {
			continue
		}
		if _, ok := anchorAttributes[key]; !ok {
			continue
		}
		if key == "href" && !safeHref(a.Val) {
			continue
		}
		out = append(out, html.Attribute{Key: key, Val: a.Val})
	}
	return out
}

func safeHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	lower := strings.ToLower(href)
	colon := strings.IndexByte(lower, ':')
	if colon < 0 {
		return true
	}
	// A colon after the first path, query or fragment delimiter is not a scheme.
	if slash := strings.IndexAny(lower, "/?#"); slash >= 0 && slash < colon {
		return true
	}
	scheme := lower[:colon]
	return scheme == "http" || scheme == "https" || scheme == "mailto"
}

// isEmptyBlock reports a block with no text, no br/hr and no non-empty child.
func isEmptyBlock(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		case html.ElementNode:
			if c.Data == "br" || c.Data == "hr" || !isEmptyBlock(c) {
				return false
			}
		}
	}
	return true
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
