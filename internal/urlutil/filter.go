package urlutil

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var assetExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".avif": {}, ".svg": {}, ".ico": {}, ".bmp": {},
	".css": {}, ".js": {}, ".mjs": {}, ".map": {},
	".pdf": {}, ".json": {}, ".xml": {}, ".txt": {}, ".rss": {}, ".atom": {}, ".csv": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".mp3": {}, ".mp4": {}, ".webm": {}, ".mov": {}, ".avi": {}, ".wav": {},
	".zip": {}, ".gz": {}, ".tar": {}, ".rar": {}, ".7z": {},
}

// junkSegments mark utility or archive pages that never hold content worth scanning.
var junkSegments = map[string]struct{}{
	"admin": {}, "wp-admin": {}, "wp-json": {}, "wp-content": {}, "wp-includes": {},
	"wp-login.php": {}, "xmlrpc.php": {}, "cdn-cgi": {},
	"cart": {}, "basket": {}, "checkout": {},
	"login": {}, "logout": {}, "signin": {}, "signup": {}, "register": {},
	"account": {}, "my-account": {},
	"search": {}, "feed": {}, "rss": {}, "amp": {},
	"tag": {}, "tags": {}, "author": {}, "category": {},
}

var paginationPattern = regexp.MustCompile(`(^|/)page/\d+(/|$)`)

// IsAssetPath reports whether the URL path ends in a static-asset or document extension.
func IsAssetPath(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	_, ok := assetExtensions[ext]
	return ok
}

// IsJunkPath reports utility, archive, paginated and search-result URLs.
func IsJunkPath(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	lower := strings.ToLower(u.Path)
	if paginationPattern.MatchString(lower) {
		return true
	}
	if u.Query().Has("s") || u.Query().Has("amp") {
		return true
	}
	for _, seg := range strings.Split(lower, "/") {
		if _, ok := junkSegments[seg]; ok {
			return true
		}
	}
	return false
}
