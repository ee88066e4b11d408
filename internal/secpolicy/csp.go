package secpolicy

import "strings"

// NoncePlaceholder is the source token replaced with 'nonce-<value>' when a
// nonce is issued for the request.
const NoncePlaceholder = "'nonce-{{NONCE}}'"

// Directive is one CSP directive and its source tokens, in order.
type Directive struct {
	Name    string   `yaml:"directive"`
	Sources []string `yaml:"sources"`
}

// Policy is an ordered list of directives.
type Policy []Directive

// Clone returns a deep copy so callers can extend a shared policy.
func (p Policy) Clone() Policy {
	out := make(Policy, len(p))
	for i, d := range p {
		out[i] = Directive{Name: d.Name, Sources: append([]string(nil), d.Sources...)}
	}
	return out
}

// HasNonce reports whether any directive carries the nonce placeholder.
func (p Policy) HasNonce() bool {
	for _, d := range p {
		for _, s := range d.Sources {
			if s == NoncePlaceholder {
				return true
			}
		}
	}
	return false
}

var (
	gaScriptSources  = []string{"https://www.googletagmanager.com", "https://www.google-analytics.com"}
	gaConnectSources = []string{"https://www.google-analytics.com", "https://*.analytics.google.com", "https://*.google-analytics.com"}
)

// DefaultPolicy is the built-in CSP. Analytics hosts are only allowed when
// analytics is enabled.
func DefaultPolicy(analytics bool) Policy {
	script := []string{"'self'", NoncePlaceholder, "'strict-dynamic'"}
	connect := []string{"'self'"}
	img := []string{"'self'", "data:", "https:"}
	if analytics {
		script = append(script, gaScriptSources...)
		connect = append(connect, gaConnectSources...)
		img = append(img, "https://www.google-analytics.com")
	}
	return Policy{
		{Name: "default-src", Sources: []string{"'self'"}},
		{Name: "script-src", Sources: script},
		{Name: "style-src", Sources: []string{"'self'", "'unsafe-inline'"}},
		{Name: "img-src", Sources: img},
		{Name: "font-src", Sources: []string{"'self'", "data:"}},
		{Name: "connect-src", Sources: connect},
		{Name: "frame-ancestors", Sources: []string{"'none'"}},
		{Name: "base-uri", Sources: []string{"'self'"}},
		{Name: "form-action", Sources: []string{"'self'"}},
		{Name: "object-src", Sources: []string{"'none'"}},
		{Name: "upgrade-insecure-requests"},
	}
}

// BuildCSP renders p in directive order. With a non-empty nonce every
// placeholder token becomes 'nonce-<nonce>'; with an empty nonce the
// placeholder is left as configured. A directive with no sources renders as
// its bare name.
func BuildCSP(p Policy, nonce string) string {
	parts := make([]string, 0, len(p))
	for _, d := range p {
		if len(d.Sources) == 0 {
			parts = append(parts, d.Name)
			continue
		}
		var b strings.Builder
		b.WriteString(d.Name)
		for _, s := range d.Sources {
			b.WriteByte(' ')
			if s == NoncePlaceholder && nonce != "" {
				b.WriteString("'nonce-")
				b.WriteString(nonce)
				b.WriteByte('\'')
				continue
			}
			b.WriteString(s)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "; ")
}
