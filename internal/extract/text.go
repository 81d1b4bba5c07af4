package extract

import (
	"strings"

	"golang.org/x/net/html"
)

var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "li": {}, "br": {}, "hr": {}, "tr": {}, "td": {}, "th": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"blockquote": {}, "pre": {}, "table": {}, "ul": {}, "ol": {}, "caption": {},
}

// PlainText strips tags from an HTML fragment and collapses whitespace.
// Block boundaries become spaces so adjacent paragraphs do not merge words.
func PlainText(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if _, ok := blockElements[string(name)]; ok {
				b.WriteByte(' ')
			}
		}
	}
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
