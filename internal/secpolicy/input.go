package secpolicy

import (
	"net/url"
	"strings"
)

const placeholderBase = "https://placeholder.invalid"

var base, _ = url.Parse(placeholderBase)

// IsValidRedirectURL reports whether raw may be used as a redirect target.
//
// Relative paths are resolved against a placeholder base and accepted as
// same-origin when at least one origin is allowed. Absolute URLs must match
// the scheme and host of an allowed origin exactly. Protocol-relative forms
// ("//host", "/\host") and anything that fails to parse are rejected.
func IsValidRedirectURL(raw string, allowedOrigins []string) bool {
	if raw == "" || len(allowedOrigins) == 0 {
		return false
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) || strings.HasPrefix(raw, `\`) {
		return false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return false
	}
	u := base.ResolveReference(ref)

	if ref.Scheme == "" && ref.Host == "" {
		return u.Host == base.Host && anyOriginValid(allowedOrigins)
	}

	for _, o := range allowedOrigins {
		ou, err := url.Parse(o)
		if err != nil || ou.Scheme == "" || ou.Host == "" {
			continue
		}
		if ou.Scheme == u.Scheme && strings.EqualFold(ou.Host, u.Host) {
			return true
		}
	}
	return false
}

func anyOriginValid(origins []string) bool {
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Scheme != "" && u.Host != "" {
			return true
		}
	}
	return false
}

// ampersand first, then the rest, in a single pass so nothing is escaped twice
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// SanitizeInput escapes the five HTML-significant characters.
func SanitizeInput(s string) string {
	return htmlEscaper.Replace(s)
}
