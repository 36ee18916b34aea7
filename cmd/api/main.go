package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/phonebill/internal/app"
	"github.com/noah-isme/phonebill/internal/billing"
	"github.com/noah-isme/phonebill/internal/config"
	"github.com/noah-isme/phonebill/internal/health"
	"github.com/noah-isme/phonebill/internal/obs"
	"github.com/noah-isme/phonebill/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "phonebill-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if deps.Redis == nil {
		logger.Warn().Msg("REDIS_URL not set; result cache and bill jobs disabled")
	}

	handler := &billing.Handler{
		Svc:         deps.Service(cfg, logger, "http"),
		MaxLogBytes: cfg.MaxLogBytes,
		Currency:    cfg.Currency,
	}

	var checker health.Checker
	if deps.Redis != nil {
		queue := asynq.NewClient(deps.TaskRedisOpt())
		defer func() {
			if err := queue.Close(); err != nil {
				logger.Error().Err(err).Msg("close job queue")
			}
		}()
		handler.Jobs = &billing.Jobs{Queue: queue, Store: deps.Store, QueueName: cfg.QueueName, TTL: cfg.JobTTL}
		checker = health.RedisChecker{Client: deps.Redis}
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit != "" {
		lim, err := ratelimit.New(cfg.RateLimit, deps.Redis, app.KeyPrefix+"ratelimit")
		if err != nil {
			logger.Fatal().Err(err).Str("rate", cfg.RateLimit).Msg("configure rate limit")
		}
		limiter = lim
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
	}

	r := newRouter(routerDeps{
		cfg:     cfg,
		logger:  logger,
		bills:   handler,
		health:  health.Handler{Checker: checker, RedisTimeout: cfg.RedisReadyTimeout},
		limiter: limiter,
		metrics: httpMetrics,
	})

	var root http.Handler = r
	if tracingEnabled {
		root = obs.TracingHandler("phonebill-api", r)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Bool("jobs", handler.Jobs != nil).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
