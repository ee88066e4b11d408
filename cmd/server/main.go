package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/newsfront/internal/cfg"
	"github.com/keithlinneman/newsfront/internal/contenthttp"
	"github.com/keithlinneman/newsfront/internal/edge"
	"github.com/keithlinneman/newsfront/internal/gateway"
	"github.com/keithlinneman/newsfront/internal/health"
	"github.com/keithlinneman/newsfront/internal/httpmw"
	"github.com/keithlinneman/newsfront/internal/httpserver"
	"github.com/keithlinneman/newsfront/internal/log"
	"github.com/keithlinneman/newsfront/internal/metrics"
	"github.com/keithlinneman/newsfront/internal/opshttp"
	"github.com/keithlinneman/newsfront/internal/otelx"
	"github.com/keithlinneman/newsfront/internal/prof"
	"github.com/keithlinneman/newsfront/internal/ratelimit"
	"github.com/keithlinneman/newsfront/internal/secpolicy"
	"github.com/keithlinneman/newsfront/internal/sitemap"
	v "github.com/keithlinneman/newsfront/internal/version"
	"github.com/keithlinneman/newsfront/internal/xerrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.App, vi.Version, vi.Commit, vi.CommitDate, vi.BuildID, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// flags win over NEWSFRONT_* env vars
	cfg.FillFromEnv(flag.CommandLine, "NEWSFRONT_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Component:         "server",
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg
	ctx = log.WithContext(ctx, L)

	// configuration gate: resolve secrets from SSM, then refuse to start on
	// any missing or invalid site variable
	env := cfg.LookupEnv()
	var ssmClient cfg.ParameterGetter
	if conf.ResolveSSM && cfg.NeedsSSM(env, nil) {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config for SSM resolution")
		} else {
			ssmClient = ssm.NewFromConfig(awsCfg)
		}
	}
	resolution := cfg.ResolveSSM(ctx, ssmClient, env, nil)
	gateResult, err := resolution.ValidateOrError()
	for _, w := range gateResult.Warnings {
		L.Warn(ctx, "configuration warning", "warning", w)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		L.Error(ctx, err, "configuration gate failed",
			"missing_variables", gateResult.MissingVariables,
			"error_count", len(gateResult.Errors),
		)
		os.Exit(1)
	}
	site := cfg.SiteFromEnv(resolution.Env)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"commit_date", vi.CommitDate,
		"build_id", vi.BuildID,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"app_env", site.Env,
		"site_url", site.URL,
		"analytics_enabled", site.AnalyticsEnabled,
		"ssm_resolved", resolution.Resolved,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"cms_timeout", conf.CMSTimeout,
		"rate_limit_rps", conf.RateLimitRPS,
		"rate_limit_burst", conf.RateLimitBurst,
		"trusted_proxy_hops", conf.TrustedProxyHops,
	)

	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:     conf.EnableTracing,
		Endpoint:    conf.OTLPEndpoint,
		Insecure:    true,
		Sample:      conf.TraceSample,
		Service:     v.AppName,
		Component:   "server",
		Version:     vi.Version,
		Environment: site.Env,
		Logger:      L,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
		shutdownOTEL = func(context.Context) error { return nil }
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.ShortCommit(),
			"env":       site.Env,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)

	gw := gateway.New(gateway.Options{
		Endpoint:     site.Endpoint,
		Production:   site.Production(),
		Timeout:      conf.CMSTimeout,
		UserAgent:    vi.UserAgent(),
		Logger:       L,
		Metrics:      m,
		MaxWalkPages: conf.MaxWalkPages,
	})
	if err := gw.Init(ctx); err != nil {
		L.Error(ctx, err, "content gateway init failed")
		os.Exit(1)
	}

	policy := secpolicy.DefaultPolicy(site.AnalyticsEnabled)
	if conf.CSPPolicyFile != "" {
		policy, err = secpolicy.LoadPolicyFile(conf.CSPPolicyFile)
		if err != nil {
			L.Error(ctx, err, "failed to load csp policy file", "path", conf.CSPPolicyFile)
			os.Exit(1)
		}
	}
	interceptor := edge.New(edge.Options{
		Policy:  policy,
		Logger:  L,
		Metrics: m,
	})

	api := contenthttp.NewAPI(contenthttp.Options{
		Content: gw,
		Sitemaps: &sitemap.Builder{
			Source:          gw,
			SiteURL:         site.URL,
			PublicationName: site.Name,
			Language:        site.NewsLanguage,
		},
		Site:    site,
		Logger:  L,
		Metrics: m,
	})

	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.Initialized("gateway", gw.Err),
	)

	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// logged once per ip until it is evicted
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  limiter.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		Edge:         interceptor.Middleware,
		APIRoutes:    api.RegisterRoutes,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}

	// sg restricts the admin port to internal monitoring; the listener also
	// rejects public peers and proxied requests
	opsHTTPStop, err := opshttp.Start(ctx, opshttp.Options{
		Port:        conf.AdminPort,
		Logger:      L,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		_ = siteHTTPStop(context.Background())
		os.Exit(1)
	}

	if err := notifySystemd(); err != nil {
		// worst case systemd kills us after its start timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	stop()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so the load balancer stops sending new requests
	gate.Set("draining")
	L.Info(context.Background(), "draining", "drain_period", conf.DrainPeriod)
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainPeriod):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when the unit is Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return xerrors.New("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return xerrors.Wrap(err, "systemd notify: dial")
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return xerrors.Wrap(err, "systemd notify: write")
	}
	return nil
}
