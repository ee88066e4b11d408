package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func panicking(v any) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(v) })
}

func TestRecover_NoPanic(t *testing.T) {
	spy := newSpyLogger()
	h := Recover(spy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", http.NoBody))

	if rec.Code != http.StatusCreated || rec.Body.String() != "created" || rec.Header().Get("X-Custom") != "value" {
		t.Fatalf("response altered: %d %q", rec.Code, rec.Body.String())
	}
	if len(spy.byLevel("error")) != 0 {
		t.Fatal("error logged without a panic")
	}
}

func TestRecover_Panics(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"string", "something broke"},
		{"error", errors.New("cms decoder state corrupted")},
		{"other", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := newSpyLogger()
			called := 0
			h := Recover(spy, func() { called++ })(panicking(tt.v))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/x", http.NoBody))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if rec.Body.Len() == 0 {
				t.Fatal("empty body")
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Fatalf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
			}
			errs := spy.byLevel("error")
			if len(errs) != 1 || errs[0].msg != "httpserver panic recovered" || errs[0].err == nil {
				t.Fatalf("logged = %+v", errs)
			}
			if got, _ := field(spy.allWith(), "url.path"); got != "/api/posts/x" {
				t.Fatalf("url.path = %v", got)
			}
			if called != 1 {
				t.Fatalf("onPanic called %d times", called)
			}
		})
	}
}

func TestRecover_WrapsPanicError(t *testing.T) {
	spy := newSpyLogger()
	cause := errors.New("boom")
	Recover(spy, nil)(panicking(cause)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if errs := spy.byLevel("error"); len(errs) != 1 || !errors.Is(errs[0].err, cause) {
		t.Fatalf("logged = %+v", errs)
	}
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", v)
		}
	}()
	Recover(newSpyLogger(), nil)(panicking(http.ErrAbortHandler)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	t.Fatal("expected panic")
}
