package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/newsfront/internal/version"
)

type ServerMetrics struct {
	reg                    *prometheus.Registry
	handler                http.Handler
	inflight               prometheus.Gauge
	reqTotal               *prometheus.CounterVec
	reqDur                 *prometheus.HistogramVec
	respBytes              *prometheus.HistogramVec
	httpPanicTotal         prometheus.Counter
	buildInfo              *prometheus.GaugeVec
	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter

	errorsTotal *prometheus.CounterVec

	profilingActive prometheus.Gauge

	// cms gateway
	cmsReqTotal  *prometheus.CounterVec
	cmsReqDur    *prometheus.HistogramVec
	cmsWalkPages *prometheus.HistogramVec

	// edge interceptor
	edgeResponses     *prometheus.CounterVec
	edgeNonceFailures prometheus.Counter

	revalidateTotal *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 52428800},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times rate limiter capacity reached",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		cmsReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_requests_total",
			Help: "Total CMS GraphQL requests by operation and outcome (ok, error, unavailable)",
		}, []string{"operation", "outcome"}),
		cmsReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_request_duration_seconds",
			Help:    "CMS GraphQL request latency by operation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"operation"}),
		cmsWalkPages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_cursor_walk_pages",
			Help:    "Pages fetched per full cursor walk",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"operation"}),
		edgeResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_responses_total",
			Help: "Responses passed through the edge interceptor by resource class",
		}, []string{"class"}),
		edgeNonceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edge_nonce_failures_total",
			Help: "Requests failed because a CSP nonce could not be generated",
		}),
		revalidateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "revalidate_requests_total",
			Help: "Revalidation requests by result (accepted, unauthorized, bad_request)",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.errorsTotal,
		m.profilingActive,
		m.cmsReqTotal,
		m.cmsReqDur,
		m.cmsWalkPages,
		m.edgeResponses,
		m.edgeNonceFailures,
		m.revalidateTotal,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildID,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// ObserveCMSRequest implements gateway.Observer. Unavailable requests never
// reached the wire and are counted without a latency sample.
func (m *ServerMetrics) ObserveCMSRequest(operation, outcome string, d time.Duration) {
	m.cmsReqTotal.WithLabelValues(operation, outcome).Inc()
	if outcome != "unavailable" {
		m.cmsReqDur.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// ObserveCursorWalk implements gateway.Observer.
func (m *ServerMetrics) ObserveCursorWalk(operation string, pages int) {
	m.cmsWalkPages.WithLabelValues(operation).Observe(float64(pages))
}

func (m *ServerMetrics) IncEdgeResponse(class string) {
	m.edgeResponses.WithLabelValues(class).Inc()
}

func (m *ServerMetrics) IncNonceFailure() {
	m.edgeNonceFailures.Inc()
}

func (m *ServerMetrics) IncRevalidate(result string) {
	m.revalidateTotal.WithLabelValues(result).Inc()
}
