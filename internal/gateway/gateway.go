package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/newsfront/internal/log"
)

// Endpoint errors. All are fatal at startup.
var (
	ErrEndpointMissing  = errors.New("cms endpoint is not configured")
	ErrEndpointInvalid  = errors.New("cms endpoint is not a valid absolute http(s) URL")
	ErrEndpointInsecure = errors.New("cms endpoint must use https in production")
	ErrEndpointLoopback = errors.New("cms endpoint must not be a loopback host in production")
)

// Observer receives per-request and per-walk measurements. metrics.ServerMetrics
// satisfies it.
type Observer interface {
	ObserveCMSRequest(operation, outcome string, d time.Duration)
	ObserveCursorWalk(operation string, pages int)
}

// Request outcomes reported to the Observer.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxWalkPages = 500
	maxFirst            = 100
	walkPageSize        = 100
	scanWindow          = 100
)

type Options struct {
	Endpoint   string
	Production bool

	// HTTPClient is used as is when set. Otherwise a client with Timeout and
	// an otelhttp transport is built.
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string

	Logger  log.Logger
	Metrics Observer

	// MaxWalkPages caps a full cursor walk.
	MaxWalkPages int
}

type Gateway struct {
	opts   Options
	logger log.Logger
	obs    Observer
	client func() (*client, error)
}

// New is cheap; the endpoint is checked and the client built on first use.
func New(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxWalkPages <= 0 {
		opts.MaxWalkPages = defaultMaxWalkPages
	}
	g := &Gateway{
		opts:   opts,
		logger: opts.Logger.With("component", "gateway"),
		obs:    opts.Metrics,
	}
	g.client = sync.OnceValues(func() (*client, error) { return newClient(g.opts) })
	return g
}

// Init builds the client now and returns the endpoint error, if any. The
// result is final: a failed Init is not retried by later calls.
func (g *Gateway) Init(ctx context.Context) error {
	if _, err := g.client(); err != nil {
		g.logger.Error(ctx, err, "gateway init failed", "endpoint", redactEndpoint(g.opts.Endpoint))
		return err
	}
	g.logger.Info(ctx, "gateway ready", "endpoint", redactEndpoint(g.opts.Endpoint), "production", g.opts.Production)
	return nil
}

// Err reports the initialization error, building the client if needed. It
// backs the readiness probe.
func (g *Gateway) Err() error {
	_, err := g.client()
	return err
}

func newClient(opts Options) (*client, error) {
	u, err := checkEndpoint(opts.Endpoint, opts.Production)
	if err != nil {
		return nil, err
	}
	queries, err := parseQueries(queryText)
	if err != nil {
		return nil, err
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &client{
		endpoint:  u.String(),
		http:      hc,
		queries:   queries,
		userAgent: opts.UserAgent,
	}, nil
}

func checkEndpoint(raw string, production bool) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEndpointMissing
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrEndpointInvalid, raw)
	}
	if !production {
		return u, nil
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrEndpointInsecure, redactEndpoint(raw))
	}
	if isLoopbackHost(u.Hostname()) {
		return nil, fmt.Errorf("%w: %q", ErrEndpointLoopback, u.Hostname())
	}
	return u, nil
}

// isLoopbackHost checks the literal host only; names are not resolved.
// Numeric IPv4 shorthands a resolver would accept (127.1, 0x7f.1,
// 2130706433) count as literals.
func isLoopbackHost(host string) bool {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	if ip, err := netip.ParseAddr(h); err == nil {
		ip = ip.Unmap()
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	if v, ok := parseShortIPv4(h); ok {
		return v>>24 == 127 || v == 0
	}
	return false
}

// parseShortIPv4 parses the inet_aton forms: one to four dot separated parts,
// each decimal, octal (leading 0) or hex (leading 0x), the last part filling
// the remaining bytes.
func parseShortIPv4(s string) (uint32, bool) {
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return 0, false
	}
	var v uint32
	for i, p := range parts {
		base := 10
		switch {
		case strings.HasPrefix(p, "0x"):
			p, base = p[2:], 16
		case len(p) > 1 && p[0] == '0':
			p, base = p[1:], 8
		}
		n, err := strconv.ParseUint(p, base, 32)
		if err != nil {
			return 0, false
		}
		if i < len(parts)-1 {
			if n > 0xff {
				return 0, false
			}
			v |= uint32(n) << (24 - 8*i)
			continue
		}
		if bits := 8 * (4 - i); bits < 32 && n >= 1<<bits {
			return 0, false
		}
		v |= uint32(n)
	}
	return v, true
}

// redactEndpoint drops userinfo and query before logging.
func redactEndpoint(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// query runs one operation. Every failure is logged and observed here, so
// callers only need to pick their empty value.
func (g *Gateway) query(ctx context.Context, op string, vars map[string]any, out any, kv ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := g.client()
	if err != nil {
		g.logger.Error(ctx, err, "gateway unavailable", append([]any{"operation", op}, kv...)...)
		g.observe(op, OutcomeUnavailable, 0)
		return err
	}

	start := time.Now()
	err = c.do(ctx, op, vars, out)
	if err != nil {
		g.observe(op, OutcomeError, time.Since(start))
		g.logger.Error(ctx, err, "cms request failed", append([]any{"operation", op}, kv...)...)
		return err
	}
	g.observe(op, OutcomeOK, time.Since(start))
	return nil
}

func (g *Gateway) observe(op, outcome string, d time.Duration) {
	if g.obs != nil {
		g.obs.ObserveCMSRequest(op, outcome, d)
	}
}

func clampFirst(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxFirst {
		return maxFirst
	}
	return n
}

// cursorVar maps an empty cursor to a GraphQL null.
func cursorVar(after string) any {
	if after == "" {
		return nil
	}
	return after
}
