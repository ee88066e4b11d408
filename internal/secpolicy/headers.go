package secpolicy

import "net/http"

// HeaderSet maps header names to values for a single response.
type HeaderSet map[string]string

// StaticHeaders returns a new copy of the fixed security headers. The
// Server value is a generic placeholder so the serving stack is not
// disclosed.
func StaticHeaders() HeaderSet {
	return HeaderSet{
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains; preload",
		"Referrer-Policy":           "origin-when-cross-origin",
		"Permissions-Policy":        "camera=(), microphone=(), payment=(), geolocation=(self)",
		"X-DNS-Prefetch-Control":    "on",
		"Server":                    "web",
	}
}

// Apply sets every entry on h, replacing existing values.
func (s HeaderSet) Apply(h http.Header) {
	for k, v := range s {
		h.Set(k, v)
	}
}
