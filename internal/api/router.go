// Package api provides the HTTP API for megabin.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/megabin/megabin/internal/api/handler"
	"github.com/megabin/megabin/internal/api/middleware"
	"github.com/megabin/megabin/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics
	Schedules handler.ScheduleService
	Registry  *resilience.Registry
	DB        handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Registry)
	scheduleHandler := handler.NewScheduleHandler(cfg.Schedules)

	runRateLimit := middleware.RateLimitByIPAndQuery(middleware.RunRateLimit, "date") // 6 req/min per date
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)       // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Admin schedule endpoints
		r.With(runRateLimit).Post("/admin/schedules:optimize", scheduleHandler.Optimize)
		r.With(standardRateLimit).Get("/admin/schedules:preview", scheduleHandler.Preview)
		r.With(standardRateLimit).Get("/admin/schedules/{date}", scheduleHandler.Get)
	})

	return r
}
