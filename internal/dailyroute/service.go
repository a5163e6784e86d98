// Package dailyroute produces a day's collection schedule: it gathers the
// contracts due on the target date, asks the optimizer for routes and replaces
// the date's schedule entries in one transaction.
package dailyroute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/schedule"
)

const tracerName = "github.com/megabin/megabin/internal/dailyroute"

// ErrProgressRecorded is returned when a run would delete entries that drivers
// have already marked collected or annotated.
var ErrProgressRecorded = errors.New("schedule already has driver progress")

// ProgressRecordedError reports how many entries carry driver progress.
type ProgressRecordedError struct {
	Date    time.Time
	Entries int
}

func (e *ProgressRecordedError) Error() string {
	return fmt.Sprintf("%s: %d entries for %s are collected or annotated; rerun with overwrite",
		ErrProgressRecorded, e.Entries, e.Date.Format(schedule.DateLayout))
}

func (e *ProgressRecordedError) Unwrap() error {
	return ErrProgressRecorded
}

// Optimizer computes routes for a set of jobs.
type Optimizer interface {
	Optimize(ctx context.Context, jobs []optimization.CollectionJob, vehicles []optimization.DriverVehicle, depots []optimization.DepotLocation) (*optimization.DailyOptimizationResult, error)
}

// RunOptions tunes a single run.
type RunOptions struct {
	// Overwrite allows replacing entries that already carry driver progress.
	Overwrite bool
}

// ServiceConfig holds configuration for the daily route service.
type ServiceConfig struct {
	Contracts schedule.ContractRepository
	Drivers   schedule.DriverRepository
	Store     schedule.Store
	Depots    DepotSource
	Optimizer Optimizer

	// Location is the reference zone for "today" (default: UTC).
	Location *time.Location

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time

	Logger zerolog.Logger
}

// Service runs daily route optimization.
type Service struct {
	contracts schedule.ContractRepository
	drivers   schedule.DriverRepository
	store     schedule.Store
	depots    DepotSource
	optimizer Optimizer
	location  *time.Location
	clock     func() time.Time
	logger    zerolog.Logger
	tracer    trace.Tracer
	metrics   *runMetrics
}

// NewService creates a new daily route service.
func NewService(cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	metrics, err := newRunMetrics()
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("daily route metrics disabled")
	}

	return &Service{
		contracts: cfg.Contracts,
		drivers:   cfg.Drivers,
		store:     cfg.Store,
		depots:    cfg.Depots,
		optimizer: cfg.Optimizer,
		location:  loc,
		clock:     clock,
		logger:    cfg.Logger,
		tracer:    otel.Tracer(tracerName),
		metrics:   metrics,
	}
}

// Today returns the current calendar date in the reference zone.
func (s *Service) Today() time.Time {
	return s.NormalizeDate(time.Time{})
}

// NormalizeDate returns t as a calendar date. A non-zero t is already a
// date: its year, month and day are kept as written, in whatever zone t
// carries. The zero time means today in the reference zone.
func (s *Service) NormalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return schedule.Date(s.clock().In(s.location))
	}
	return schedule.Date(t)
}

// ParseDate parses a YYYY-MM-DD date. An empty string means today.
func (s *Service) ParseDate(value string) (time.Time, error) {
	if value == "" {
		return s.Today(), nil
	}
	t, err := time.ParseInLocation(schedule.DateLayout, value, s.location)
	if err != nil {
		return time.Time{}, &optimization.ValidationError{Violations: []optimization.Violation{{
			Field:   "date",
			Message: fmt.Sprintf("must be a date in YYYY-MM-DD form, got %q", value),
		}}}
	}
	return schedule.Date(t), nil
}

// Run computes routes for date and replaces its schedule entries.
// Nothing is persisted unless the whole run succeeds.
func (s *Service) Run(ctx context.Context, date time.Time, opts RunOptions) (result *optimization.DailyOptimizationResult, err error) {
	target := s.NormalizeDate(date)
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "dailyroute.Run",
		trace.WithAttributes(
			attribute.String("schedule.date", target.Format(schedule.DateLayout)),
			attribute.Bool("schedule.overwrite", opts.Overwrite),
		),
	)
	defer func() {
		s.metrics.recordRun(ctx, err, time.Since(start), result)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := s.logger.With().
		Str("date", target.Format(schedule.DateLayout)).
		Str("day_of_week", schedule.WeekdayName(target.Weekday())).
		Logger()

	var inserted int
	var deleted int64
	err = s.store.InDateTx(ctx, target, func(ctx context.Context, tx schedule.Tx) error {
		if !opts.Overwrite {
			progress, err := tx.CountProgress(ctx, target)
			if err != nil {
				return err
			}
			if progress > 0 {
				return &ProgressRecordedError{Date: target, Entries: progress}
			}
		}

		n, err := tx.DeleteForDate(ctx, target)
		if err != nil {
			return err
		}
		deleted = n

		res, entries, err := s.plan(ctx, target)
		if err != nil {
			return err
		}

		if err := tx.InsertEntries(ctx, entries); err != nil {
			return err
		}
		inserted = len(entries)
		result = res
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("daily route run failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("schedule.entries", inserted),
		attribute.Int("schedule.unassigned", len(result.UnassignedJobs)),
	)
	logger.Info().
		Int64("deleted", deleted).
		Int("inserted", inserted).
		Int("routes", len(result.Routes)).
		Int("unassigned", len(result.UnassignedJobs)).
		Dur("duration", time.Since(start)).
		Msg("daily route run completed")

	return result, nil
}

// plan loads the day's inputs, optimizes and turns routes into entries.
func (s *Service) plan(ctx context.Context, date time.Time) (*optimization.DailyOptimizationResult, []schedule.Entry, error) {
	contracts, err := s.contracts.ListSchedulable(ctx, date.Weekday())
	if err != nil {
		return nil, nil, fmt.Errorf("list contracts: %w", err)
	}
	if len(contracts) == 0 {
		s.logger.Info().
			Str("date", date.Format(schedule.DateLayout)).
			Msg("no contracts scheduled, skipping optimization")
		return optimization.EmptyResult(), nil, nil
	}

	drivers, err := s.drivers.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list drivers: %w", err)
	}
	if len(drivers) == 0 {
		return nil, nil, &optimization.NoCapacityError{Message: "no active drivers available"}
	}

	depots, err := s.depots.Depots(ctx)
	if err != nil {
		return nil, nil, &optimization.ConfigurationError{Message: "depots unavailable: " + err.Error()}
	}
	if len(depots) == 0 {
		return nil, nil, &optimization.ConfigurationError{Message: "no depots configured"}
	}

	jobs := make([]optimization.CollectionJob, 0, len(contracts))
	addressByJob := make(map[string]string, len(contracts))
	for _, c := range contracts {
		jobs = append(jobs, optimization.CollectionJob{
			ID:       c.ID,
			Location: c.Location,
			Address:  c.Address,
		})
		addressByJob[c.ID] = c.AddressID
	}

	vehicles := make([]optimization.DriverVehicle, 0, len(drivers))
	for _, d := range drivers {
		vehicles = append(vehicles, optimization.DriverVehicle{
			ID:            d.ID,
			StartLocation: d.HomeLocation,
			Capacity:      d.Capacity,
		})
	}

	result, err := s.optimizer.Optimize(ctx, jobs, vehicles, depots)
	if err != nil {
		return nil, nil, err
	}

	return result, buildEntries(date, result, addressByJob), nil
}

// buildEntries emits one entry per collection stop, numbered from 1 per driver.
func buildEntries(date time.Time, result *optimization.DailyOptimizationResult, addressByJob map[string]string) []schedule.Entry {
	var entries []schedule.Entry
	for _, route := range result.Routes {
		for i, stop := range route.CollectionStops() {
			entries = append(entries, schedule.Entry{
				ScheduledFor:  date,
				DriverID:      route.DriverID,
				AddressID:     addressByJob[stop.JobID],
				RouteSequence: i + 1,
			})
		}
	}
	return entries
}
