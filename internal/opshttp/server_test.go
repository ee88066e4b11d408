package opshttp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keithlinneman/newsfront/internal/health"
)

func serveFrom(h http.Handler, remote, target string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestHandler_Routes(t *testing.T) {
	var gate health.ShutdownGate
	h := Handler(Options{
		Health:    health.Fixed(true, ""),
		Readiness: gate.Probe(),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("newsfront_up 1\n"))
		}),
		EnablePprof: true,
	})

	tests := []struct {
		target   string
		wantCode int
		wantBody string
	}{
		{"/-/healthy", http.StatusOK, "ok"},
		{"/-/ready", http.StatusOK, "ready"},
		{"/metrics", http.StatusOK, "newsfront_up"},
		{"/debug/pprof/", http.StatusOK, "goroutine"},
	}
	for _, tt := range tests {
		rec := serveFrom(h, "127.0.0.1:5555", tt.target)
		if rec.Code != tt.wantCode || !strings.Contains(rec.Body.String(), tt.wantBody) {
			t.Errorf("%s: %d %q", tt.target, rec.Code, rec.Body.String())
		}
	}

	gate.Set("draining")
	if rec := serveFrom(h, "127.0.0.1:5555", "/-/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready during drain = %d", rec.Code)
	}
}

func TestHandler_PprofDisabled(t *testing.T) {
	h := Handler(Options{})
	if rec := serveFrom(h, "10.0.0.8:5555", "/debug/pprof/"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec := serveFrom(h, "10.0.0.8:5555", "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("metrics without handler = %d, want 404", rec.Code)
	}
}

func TestRequireNonPublicNetwork(t *testing.T) {
	h := Handler(Options{Health: health.Fixed(true, "")})
	tests := []struct {
		remote string
		xff    string
		want   int
	}{
		{"127.0.0.1:1", "", http.StatusOK},
		{"[::1]:1", "", http.StatusOK},
		{"10.1.2.3:1", "", http.StatusOK},
		{"192.168.0.4:1", "", http.StatusOK},
		{"169.254.10.1:1", "", http.StatusOK},
		{"[::ffff:10.0.0.1]:1", "", http.StatusOK},
		{"203.0.113.5:1", "", http.StatusForbidden},
		{"[::ffff:203.0.113.5]:1", "", http.StatusForbidden},
		{"10.1.2.3:1", "198.51.100.1", http.StatusForbidden},
		{"garbage", "", http.StatusForbidden},
		{"", "", http.StatusForbidden},
		{"not-an-ip:1", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/-/healthy", nil)
		r.RemoteAddr = tt.remote
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != tt.want {
			t.Errorf("remote=%q xff=%q: status = %d, want %d", tt.remote, tt.xff, rec.Code, tt.want)
		}
	}
}

func TestHandler_RecoversPanics(t *testing.T) {
	panics := 0
	h := Handler(Options{
		Metrics: http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("collector bug") }),
		OnPanic: func() { panics++ },
	})
	if rec := serveFrom(h, "127.0.0.1:1", "/metrics"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if panics != 1 {
		t.Fatalf("OnPanic called %d times", panics)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestStart_Lifecycle(t *testing.T) {
	port := freePort(t)
	ctx := context.Background()
	stop, err := Start(ctx, Options{Port: port, Health: health.Fixed(true, "")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/-/healthy", port))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Fatalf("healthy = %d %q", resp.StatusCode, body)
	}

	if _, err := Start(ctx, Options{Port: port}); err == nil {
		t.Fatal("expected error for port in use")
	}

	for i := 0; i < 3; i++ {
		if err := stop(ctx); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
	}
	if _, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/-/healthy", port)); err == nil {
		t.Fatal("server still accepting connections after stop")
	}
}
