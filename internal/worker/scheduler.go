package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/schedule"
)

// ErrRunClaimed is returned when another replica already holds today's run.
var ErrRunClaimed = errors.New("daily run already claimed")

// DailyScheduler fires the optimize job once per day at a fixed local time.
type DailyScheduler struct {
	job      *OptimizeJob
	at       ClockTime
	location *time.Location
	lock     RunLock
	lockTTL  time.Duration
	clock    func() time.Time
	after    func(time.Duration) <-chan time.Time
	logger   zerolog.Logger
}

// DailySchedulerConfig holds configuration for the daily scheduler.
type DailySchedulerConfig struct {
	Job *OptimizeJob

	// RunAt is the HH:MM time of day (default: 05:00).
	RunAt string

	// Location is the zone RunAt is interpreted in (default: UTC).
	Location *time.Location

	// Lock claims the day across replicas (default: LocalRunLock).
	Lock    RunLock
	LockTTL time.Duration

	// Clock and After are injectable for tests.
	Clock func() time.Time
	After func(time.Duration) <-chan time.Time

	Logger zerolog.Logger
}

// NewDailyScheduler creates a new daily scheduler.
func NewDailyScheduler(cfg DailySchedulerConfig) (*DailyScheduler, error) {
	def := DefaultConfig()

	runAt := cfg.RunAt
	if runAt == "" {
		runAt = def.RunAt
	}
	at, err := ParseClockTime(runAt)
	if err != nil {
		return nil, fmt.Errorf("RUN_AT: %w", err)
	}

	s := &DailyScheduler{
		job:      cfg.Job,
		at:       at,
		location: cfg.Location,
		lock:     cfg.Lock,
		lockTTL:  cfg.LockTTL,
		clock:    cfg.Clock,
		after:    cfg.After,
		logger:   cfg.Logger,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.lock == nil {
		s.lock = LocalRunLock{}
	}
	if s.lockTTL <= 0 {
		s.lockTTL = def.LockTTL
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.after == nil {
		s.after = time.After
	}
	return s, nil
}

// Next returns the next fire time after now.
func (s *DailyScheduler) Next() time.Time {
	return s.at.Next(s.clock().In(s.location))
}

// Start runs the schedule until ctx is cancelled. A failed run is logged and
// the loop carries on with the next day.
func (s *DailyScheduler) Start(ctx context.Context) error {
	s.logger.Info().
		Str("run_at", s.at.String()).
		Str("time_zone", s.location.String()).
		Msg("starting daily scheduler")

	for {
		next := s.Next()
		wait := next.Sub(s.clock())
		s.logger.Debug().
			Time("next_run", next).
			Dur("wait", wait).
			Msg("waiting for next daily run")

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("daily scheduler stopped")
			return ctx.Err()
		case <-s.after(wait):
		}

		// Errors are already logged by RunOnce.
		_, _ = s.RunOnce(ctx) //nolint:errcheck // loop continues regardless
	}
}

// RunOnce runs today's optimization if no other replica has claimed it.
func (s *DailyScheduler) RunOnce(ctx context.Context) (*optimization.DailyOptimizationResult, error) {
	date := s.job.Today()
	key := date.Format(schedule.DateLayout)
	logger := s.logger.With().Str("date", key).Logger()

	token, ok, err := s.lock.TryAcquire(ctx, key, s.lockTTL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to acquire daily run lock")
		return nil, err
	}
	if !ok {
		s.job.recordSkipped()
		logger.Info().Msg("daily run claimed by another replica, skipping")
		return nil, ErrRunClaimed
	}

	result, err := s.job.Run(ctx, TriggerSchedule, date, dailyroute.RunOptions{})
	if err != nil {
		// Let a retry or another replica pick the day up again.
		if relErr := s.lock.Release(context.WithoutCancel(ctx), key, token); relErr != nil {
			logger.Warn().Err(relErr).Msg("failed to release daily run lock")
		}
		return nil, err
	}
	return result, nil
}
