// Package main provides the entrypoint for the megabin route worker. It runs
// the daily optimization on a schedule and on demand from Pub/Sub.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/megabin/megabin/internal/api/middleware"
	"github.com/megabin/megabin/internal/api/response"
	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/database"
	"github.com/megabin/megabin/internal/provider/resilience"
	"github.com/megabin/megabin/internal/schedule"
	"github.com/megabin/megabin/internal/telemetry"
	"github.com/megabin/megabin/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "megabin-worker"

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting megabin worker")

	// Worker also exposes health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if os.Getenv("DB_AUTO_MIGRATE") == "true" {
		if err := schedule.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure schema")
		}
	}

	routeCfg := dailyroute.ConfigFromEnv()
	registry := resilience.NewRegistry()
	service, err := dailyroute.NewPostgresService(routeCfg, pool, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure daily route service")
	}
	loc, err := routeCfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load time zone")
	}

	cfg := worker.ConfigFromEnv()
	job := worker.NewOptimizeJob(worker.OptimizeJobConfig{
		Runner:  service,
		Timeout: cfg.RunTimeout,
		Logger:  log,
	})

	var lock worker.RunLock = worker.LocalRunLock{}
	if cfg.RedisURL != "" {
		client, err := worker.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer func() { _ = client.Close() }()
		lock = worker.NewRedisRunLock(client, "")
		log.Info().Msg("redis run lock enabled")
	}

	if cfg.SchedulerEnabled {
		scheduler, err := worker.NewDailyScheduler(worker.DailySchedulerConfig{
			Job:      job,
			RunAt:    cfg.RunAt,
			Location: loc,
			Lock:     lock,
			LockTTL:  cfg.LockTTL,
			Logger:   log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("invalid scheduler configuration")
		}
		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("scheduler stopped")
			}
		}()
	}

	if cfg.PubSubEnabled() {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Job:              job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() { _ = handler.Close() }()
		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"job":     job.StatsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
