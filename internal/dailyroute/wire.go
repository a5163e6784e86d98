package dailyroute

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/optimization/openrouteservice"
	"github.com/megabin/megabin/internal/provider/resilience"
	"github.com/megabin/megabin/internal/schedule"
)

// NewPostgresService assembles a Service backed by Postgres and the
// OpenRouteService solver. The solver client registers with registry.
func NewPostgresService(cfg Config, pool *pgxpool.Pool, registry *resilience.Registry, logger zerolog.Logger) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	depots, err := LoadDepotsFile(cfg.DepotsFile)
	if err != nil {
		return nil, err
	}

	solver := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:            cfg.SolverAPIKey,
		BaseURL:           cfg.SolverBaseURL,
		Timeout:           cfg.SolverTimeout,
		RequestsPerSecond: cfg.SolverRequestsPerSecond,
		MaxAttempts:       cfg.SolverMaxAttempts,
		RetryAmbiguous:    cfg.SolverRetryAmbiguous,
		Registry:          registry,
		Logger:            logger,
	})

	logger.Info().
		Str("time_zone", loc.String()).
		Int("depots", len(depots)).
		Str("profile", cfg.Profile).
		Uint64("solver_max_attempts", cfg.SolverMaxAttempts).
		Bool("solver_retry_ambiguous", cfg.SolverRetryAmbiguous).
		Msg("daily route service configured")

	return NewService(ServiceConfig{
		Contracts: schedule.NewPostgresContractRepository(pool),
		Drivers:   schedule.NewPostgresDriverRepository(pool),
		Store:     schedule.NewPostgresStore(pool),
		Depots:    depots,
		Optimizer: optimization.NewService(optimization.ServiceConfig{
			Solver:  solver,
			Profile: cfg.Profile,
			Logger:  logger,
		}),
		Location: loc,
		Logger:   logger,
	}), nil
}
