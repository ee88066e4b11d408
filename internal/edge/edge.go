// Package edge attaches security and caching headers to every response
// before any other handler runs. It computes headers from the request path
// alone and never fetches content.
package edge

import (
	"context"
	"crypto/rand"
	"io"
	"net/http"

	"github.com/keithlinneman/newsfront/internal/cachepolicy"
	"github.com/keithlinneman/newsfront/internal/log"
	"github.com/keithlinneman/newsfront/internal/secpolicy"
)

// Metrics is the subset of metrics.ServerMetrics the interceptor reports to.
type Metrics interface {
	IncEdgeResponse(class string)
	IncNonceFailure()
}

type Options struct {
	// Policy is the CSP template. Nil means secpolicy.DefaultPolicy(false).
	Policy secpolicy.Policy

	// NonceBytes <= 0 means secpolicy.DefaultNonceBytes.
	NonceBytes int

	// Rand defaults to crypto/rand.Reader.
	Rand io.Reader

	Logger  log.Logger
	Metrics Metrics
}

type Interceptor struct {
	policy     secpolicy.Policy
	nonceBytes int
	rand       io.Reader
	logger     log.Logger
	metrics    Metrics
}

func New(opts Options) *Interceptor {
	p := opts.Policy
	if len(p) == 0 {
		p = secpolicy.DefaultPolicy(false)
	}
	r := opts.Rand
	if r == nil {
		r = rand.Reader
	}
	l := opts.Logger
	if l == nil {
		l = log.Nop()
	}
	return &Interceptor{
		policy:     p.Clone(),
		nonceBytes: opts.NonceBytes,
		rand:       r,
		logger:     l.With("component", "edge"),
		metrics:    opts.Metrics,
	}
}

type nonceKey struct{}

// NonceFromContext returns the CSP nonce issued for this request.
func NonceFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	n, ok := ctx.Value(nonceKey{}).(string)
	return n, ok && n != ""
}

// WithNonce stores a nonce in ctx. Handlers normally get it from the
// interceptor; tests use this directly.
func WithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey{}, nonce)
}

// Middleware runs received -> headers-attached -> forwarded. When no nonce
// can be generated the request ends with a 500 and is not forwarded.
func (i *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		secpolicy.StaticHeaders().Apply(h)

		nonce, err := secpolicy.GenerateNonceFrom(i.rand, i.nonceBytes)
		if err != nil {
			if i.metrics != nil {
				i.metrics.IncNonceFailure()
			}
			i.logger.Error(r.Context(), err, "csp nonce generation failed", "path", r.URL.Path)
			h.Set("Cache-Control", cachepolicy.NoStore)
			h.Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, http.StatusText(http.StatusInternalServerError)+"\n")
			return
		}

		class := cachepolicy.ClassifyPath(r.URL.Path)
		h.Set("Content-Security-Policy", secpolicy.BuildCSP(i.policy, nonce))
		h.Set("Cache-Control", cachepolicy.HeaderFor(class))
		h.Set("Cache-Tag", cachepolicy.TagHeader(cachepolicy.TagsFor(r.URL.Path)))
		if i.metrics != nil {
			i.metrics.IncEdgeResponse(string(class))
		}

		next.ServeHTTP(w, r.WithContext(WithNonce(r.Context(), nonce)))
	})
}
