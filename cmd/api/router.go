package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/phonebill/internal/billing"
	"github.com/noah-isme/phonebill/internal/config"
	"github.com/noah-isme/phonebill/internal/health"
	"github.com/noah-isme/phonebill/internal/obs"
	"github.com/noah-isme/phonebill/internal/ratelimit"
	"github.com/noah-isme/phonebill/internal/security"
)

type routerDeps struct {
	cfg     *config.Config
	logger  zerolog.Logger
	bills   *billing.Handler
	health  health.Handler
	limiter ratelimit.Limiter
	metrics *obs.HTTPMetrics
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(security.Headers{Enable: d.cfg.SecurityHeaders, EnableHSTS: d.cfg.HSTSEnabled}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(d.cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Location", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if d.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.cfg.PprofUser, d.cfg.PprofPass))
	}

	r.Get("/health/live", d.health.Live)
	r.Get("/health/ready", d.health.Ready)

	r.Route("/api/v1/bills", func(b chi.Router) {
		if d.limiter != nil {
			logger := d.logger
			b.Use(ratelimit.Handler{
				Limiter: d.limiter,
				OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit store") },
			}.Middleware)
		}
		b.Post("/calculate", d.bills.Calculate)
		b.Post("/jobs", d.bills.SubmitJob)
		b.Get("/jobs/{id}", d.bills.JobStatus)
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
