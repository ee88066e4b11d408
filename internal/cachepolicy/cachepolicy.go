// Package cachepolicy maps responses to Cache-Control directives and CDN
// invalidation tags.
//
// Everything here is a pure function over fixed tables; nothing is cached or
// mutated after package init.
package cachepolicy

import (
	"path"
	"strconv"
	"strings"
)

type Class string

const (
	ClassPage            Class = "page"
	ClassAsset           Class = "asset"
	ClassImage           Class = "image"
	ClassAPI             Class = "api"
	ClassAnalyticsBeacon Class = "analytics-beacon"
)

// Directive is a Cache-Control policy in seconds. StaleIfError of zero means
// the clause is omitted.
type Directive struct {
	MaxAge               int
	SMaxAge              int
	StaleWhileRevalidate int
	StaleIfError         int
	Immutable            bool
}

const (
	hour  = 3600
	day   = 24 * hour
	month = 30 * day
	year  = 365 * day
)

var directives = map[Class]Directive{
	ClassPage:            {MaxAge: hour, SMaxAge: day, StaleWhileRevalidate: 7 * day, StaleIfError: month},
	ClassAsset:           {MaxAge: year, SMaxAge: year, StaleWhileRevalidate: year, Immutable: true},
	ClassImage:           {MaxAge: month, SMaxAge: month, StaleWhileRevalidate: month},
	ClassAPI:             {MaxAge: 300, SMaxAge: 300, StaleWhileRevalidate: 600},
	ClassAnalyticsBeacon: {},
}

// Classify maps a Content-Type to a resource class. Rules are checked in
// order: html, javascript/css, image/*, json. Anything else is api.
func Classify(contentType string) Class {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "html"):
		return ClassPage
	case strings.Contains(ct, "javascript"), strings.Contains(ct, "css"):
		return ClassAsset
	case strings.Contains(ct, "image/"):
		return ClassImage
	case strings.Contains(ct, "json"):
		return ClassAPI
	default:
		return ClassAPI
	}
}

// DirectiveFor returns the fixed directive for c. Unknown classes get the
// api directive.
func DirectiveFor(c Class) Directive {
	if d, ok := directives[c]; ok {
		return d
	}
	return directives[ClassAPI]
}

// Format renders d as a Cache-Control value.
func Format(d Directive) string {
	var b strings.Builder
	b.WriteString("public, max-age=")
	b.WriteString(strconv.Itoa(d.MaxAge))
	b.WriteString(", s-maxage=")
	b.WriteString(strconv.Itoa(d.SMaxAge))
	b.WriteString(", stale-while-revalidate=")
	b.WriteString(strconv.Itoa(d.StaleWhileRevalidate))
	if d.StaleIfError > 0 {
		b.WriteString(", stale-if-error=")
		b.WriteString(strconv.Itoa(d.StaleIfError))
	}
	if d.Immutable {
		b.WriteString(", immutable")
	}
	return b.String()
}

// HeaderFor is Format(DirectiveFor(c)).
func HeaderFor(c Class) string { return Format(DirectiveFor(c)) }

// NoStore is used for responses that must never be cached, such as a failed
// security header computation.
const NoStore = "no-store"

var staticPrefixes = []string{"/_next/static/", "/static/", "/assets/"}

var staticExts = map[string]struct{}{
	".css": {}, ".js": {}, ".mjs": {}, ".map": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {}, ".avif": {}, ".gif": {}, ".svg": {}, ".ico": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
}

// ClassifyPath is the request-side classification used by the edge before
// any handler runs: api, asset or page.
func ClassifyPath(p string) Class {
	if strings.HasPrefix(p, "/api/") {
		return ClassAPI
	}
	for _, pre := range staticPrefixes {
		if strings.HasPrefix(p, pre) {
			return ClassAsset
		}
	}
	if _, ok := staticExts[strings.ToLower(path.Ext(p))]; ok {
		return ClassAsset
	}
	return ClassPage
}

// TagAll is appended to every tag set.
const TagAll = "all-content"

var tagPrefixes = []struct {
	prefix string
	tags   []string
}{
	{"/api/", []string{"api"}},
	{"/category/", []string{"category", "posts"}},
	{"/author/", []string{"author", "posts"}},
	{"/tag/", []string{"tag", "posts"}},
	{"/search", []string{"search", "posts"}},
	{"/page/", []string{"homepage", "posts"}},
}

// TagsFor returns the invalidation tags for a request path. The first
// matching rule wins and all-content is always last.
func TagsFor(p string) []string {
	var out []string
	for _, r := range tagPrefixes {
		if strings.HasPrefix(p, r.prefix) {
			out = append(out, r.tags...)
			break
		}
	}
	if out == nil {
		switch {
		case p == "" || p == "/":
			out = append(out, "homepage", "posts")
		case strings.Contains(p, "."):
			out = append(out, "assets")
		}
	}
	return append(out, TagAll)
}

// TagHeader renders tags for a Cache-Tag response header.
func TagHeader(tags []string) string { return strings.Join(tags, ",") }
