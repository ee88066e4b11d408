package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/newsfront/internal/health"
	"github.com/keithlinneman/newsfront/internal/httpmw"
	"github.com/keithlinneman/newsfront/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	Health       health.Probe
	Readiness    health.Probe

	// Edge is the outermost layer; every response, including panics and
	// rate limit rejections, passes through it.
	Edge func(http.Handler) http.Handler

	// APIRoutes mounts the content API on the router.
	APIRoutes func(chi.Router)

	// MaxBody caps request bodies. Zero means httpmw.DefaultMaxBody.
	MaxBody int64
}
