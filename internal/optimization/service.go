package optimization

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Solver is the external capacitated vehicle routing solver.
type Solver interface {
	// Optimize submits a routing problem and returns the raw solution.
	Optimize(ctx context.Context, req *SolverRequest) (*SolverResponse, error)
	// Name returns the solver identifier for logging.
	Name() string
}

// ServiceConfig holds configuration for the optimization service.
type ServiceConfig struct {
	// Solver is the routing solver (required).
	Solver Solver

	// Profile is the vehicle routing profile (default: driving-car).
	Profile string

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service runs validation, depot assignment, the solver round trip and
// reconstruction as one pipeline.
type Service struct {
	solver  Solver
	profile string
	logger  zerolog.Logger
}

// NewService creates a new optimization service.
func NewService(cfg ServiceConfig) *Service {
	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}
	return &Service{
		solver:  cfg.Solver,
		profile: profile,
		logger:  cfg.Logger,
	}
}

// Optimize routes jobs across vehicles, sending every vehicle to its nearest
// depot at the end of its route. Input is validated before the solver is called.
func (s *Service) Optimize(ctx context.Context, jobs []CollectionJob, vehicles []DriverVehicle, depots []DepotLocation) (*DailyOptimizationResult, error) {
	if err := Validate(jobs, vehicles, depots); err != nil {
		return nil, err
	}

	assignment, err := AssignDepots(vehicles, depots)
	if err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		return EmptyResult(), nil
	}
	if len(vehicles) == 0 {
		return nil, &NoCapacityError{Message: "no vehicles available"}
	}

	req := BuildRequest(jobs, vehicles, assignment, RequestOptions{Profile: s.profile})

	// Nothing has been sent yet, so a cancelled run stops here.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.solver.Optimize(ctx, req)
	if err != nil {
		var solverErr *SolverError
		if errors.As(err, &solverErr) {
			return nil, err
		}
		return nil, &SolverError{
			Provider: s.solver.Name(),
			Message:  "solver call failed",
			Err:      err,
		}
	}
	if err := resp.CheckShape(); err != nil {
		return nil, &SolverError{
			Provider: s.solver.Name(),
			Message:  "malformed solver response",
			Err:      err,
		}
	}

	result, err := Reconstruct(resp, jobs, vehicles, depots, assignment)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("solver", s.solver.Name()).
		Int("jobs", len(jobs)).
		Int("vehicles", len(vehicles)).
		Int("routes", len(result.Routes)).
		Int("unassigned", len(result.UnassignedJobs)).
		Float64("distance_m", result.TotalDistanceMeters).
		Dur("solver_duration", time.Since(start)).
		Msg("optimization completed")

	return result, nil
}
