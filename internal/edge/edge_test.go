package edge

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/keithlinneman/newsfront/internal/cachepolicy"
	"github.com/keithlinneman/newsfront/internal/secpolicy"
)

type spyMetrics struct {
	mu      sync.Mutex
	classes []string
	nonce   int
}

func (s *spyMetrics) IncEdgeResponse(class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = append(s.classes, class)
}

func (s *spyMetrics) IncNonceFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce++
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestMiddleware_AttachesHeadersAndForwards(t *testing.T) {
	spy := &spyMetrics{}
	ic := New(Options{Metrics: spy, Rand: bytes.NewReader(bytes.Repeat([]byte{0xab}, 64)), NonceBytes: 4})

	var gotNonce string
	var forwarded bool
	h := ic.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = true
		gotNonce, _ = NonceFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/category/tech", http.NoBody))

	if !forwarded {
		t.Fatal("request was not forwarded")
	}
	if gotNonce != "abababab" {
		t.Fatalf("nonce = %q", gotNonce)
	}
	for k, v := range secpolicy.StaticHeaders() {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'nonce-abababab'") || strings.Contains(csp, "{{NONCE}}") {
		t.Fatalf("csp = %q", csp)
	}
	if got := rec.Header().Get("Cache-Control"); got != cachepolicy.HeaderFor(cachepolicy.ClassPage) {
		t.Fatalf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Cache-Tag"); got != "category,posts,all-content" {
		t.Fatalf("Cache-Tag = %q", got)
	}
	if len(spy.classes) != 1 || spy.classes[0] != "page" {
		t.Fatalf("classes = %v", spy.classes)
	}
}

func TestMiddleware_CacheControlByPath(t *testing.T) {
	ic := New(Options{})
	h := ic.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	tests := []struct {
		path string
		want string
	}{
		{"/_next/static/chunks/app.js", "public, max-age=31536000, s-maxage=31536000, stale-while-revalidate=31536000, immutable"},
		{"/logo.png", "public, max-age=31536000, s-maxage=31536000, stale-while-revalidate=31536000, immutable"},
		{"/api/posts", "public, max-age=300, s-maxage=300, stale-while-revalidate=600"},
		{"/my-post", "public, max-age=3600, s-maxage=86400, stale-while-revalidate=604800, stale-if-error=2592000"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
		if got := rec.Header().Get("Cache-Control"); got != tt.want {
			t.Errorf("%s: Cache-Control = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMiddleware_FreshNoncePerRequest(t *testing.T) {
	ic := New(Options{})
	seen := map[string]bool{}
	h := ic.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, ok := NonceFromContext(r.Context())
		if !ok || len(n) != 2*secpolicy.DefaultNonceBytes {
			t.Errorf("nonce = %q", n)
		}
		seen[n] = true
	}))
	for i := 0; i < 5; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	}
	if len(seen) != 5 {
		t.Fatalf("nonces reused: %d distinct of 5", len(seen))
	}
}

func TestMiddleware_NonceFailure(t *testing.T) {
	spy := &spyMetrics{}
	ic := New(Options{Metrics: spy, Rand: failingReader{}})

	forwarded := false
	h := ic.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { forwarded = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if forwarded {
		t.Fatal("request must not be forwarded without a nonce")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q", got)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("static headers should still be present")
	}
	if rec.Header().Get("Content-Security-Policy") != "" {
		t.Fatal("no CSP should be emitted without a nonce")
	}
	if spy.nonce != 1 || len(spy.classes) != 0 {
		t.Fatalf("metrics = %+v", spy)
	}
}

func TestMiddleware_CustomPolicyIsCopied(t *testing.T) {
	p := secpolicy.Policy{{Name: "script-src", Sources: []string{secpolicy.NoncePlaceholder}}}
	ic := New(Options{Policy: p})
	p[0].Sources[0] = "'unsafe-inline'"

	rec := httptest.NewRecorder()
	ic.Middleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.HasPrefix(csp, "script-src 'nonce-") {
		t.Fatalf("csp = %q", csp)
	}
}

func TestNonceFromContext(t *testing.T) {
	if _, ok := NonceFromContext(context.Background()); ok {
		t.Fatal("empty context should have no nonce")
	}
	//nolint:staticcheck // nil ctx must not panic
	if _, ok := NonceFromContext(nil); ok {
		t.Fatal("nil context should have no nonce")
	}
	if n, ok := NonceFromContext(WithNonce(context.Background(), "abc")); !ok || n != "abc" {
		t.Fatalf("nonce = %q, %v", n, ok)
	}
}
