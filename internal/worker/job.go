package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/schedule"
)

// Runner performs a daily route run.
type Runner interface {
	Run(ctx context.Context, date time.Time, opts dailyroute.RunOptions) (*optimization.DailyOptimizationResult, error)
	Today() time.Time
}

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerPubSub   Trigger = "pubsub"
)

// OptimizeJob runs daily route optimization and tracks run statistics.
type OptimizeJob struct {
	runner  Runner
	timeout time.Duration
	logger  zerolog.Logger

	stats *JobStats
}

// JobStats tracks optimize job statistics.
type JobStats struct {
	mu sync.RWMutex

	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	SkippedRuns    int64

	LastRunAt       time.Time
	LastRunDate     string
	LastRunDuration time.Duration
	LastError       string
}

// OptimizeJobConfig holds configuration for creating an OptimizeJob.
type OptimizeJobConfig struct {
	Runner Runner

	// Timeout bounds each run (default: 10 minutes).
	Timeout time.Duration

	Logger zerolog.Logger
}

// NewOptimizeJob creates a new optimize job.
func NewOptimizeJob(cfg OptimizeJobConfig) *OptimizeJob {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().RunTimeout
	}
	return &OptimizeJob{
		runner:  cfg.Runner,
		timeout: timeout,
		logger:  cfg.Logger,
		stats:   &JobStats{},
	}
}

// Today returns the runner's current date.
func (j *OptimizeJob) Today() time.Time {
	return j.runner.Today()
}

// Run executes one optimization for date.
func (j *OptimizeJob) Run(ctx context.Context, trigger Trigger, date time.Time, opts dailyroute.RunOptions) (*optimization.DailyOptimizationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	logger := j.logger.With().
		Str("trigger", string(trigger)).
		Str("date", date.Format(schedule.DateLayout)).
		Bool("overwrite", opts.Overwrite).
		Logger()

	logger.Info().Msg("starting daily route run")

	result, err := j.runner.Run(ctx, date, opts)
	j.record(date, time.Since(start), err)
	if err != nil {
		logger.Error().
			Err(err).
			Str("outcome", dailyroute.Outcome(err)).
			Msg("daily route run failed")
		return nil, err
	}

	logger.Info().
		Int("routes", len(result.Routes)).
		Int("unassigned", len(result.UnassignedJobs)).
		Dur("duration", time.Since(start)).
		Msg("daily route run finished")
	return result, nil
}

func (j *OptimizeJob) record(date time.Time, elapsed time.Duration, err error) {
	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()

	j.stats.TotalRuns++
	j.stats.LastRunAt = time.Now()
	j.stats.LastRunDate = date.Format(schedule.DateLayout)
	j.stats.LastRunDuration = elapsed
	if err != nil {
		j.stats.FailedRuns++
		j.stats.LastError = err.Error()
		return
	}
	j.stats.SuccessfulRuns++
	j.stats.LastError = ""
}

func (j *OptimizeJob) recordSkipped() {
	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()
	j.stats.SkippedRuns++
}

// GetStats returns a copy of the current statistics.
func (j *OptimizeJob) GetStats() JobStats {
	j.stats.mu.RLock()
	defer j.stats.mu.RUnlock()

	return JobStats{
		TotalRuns:       j.stats.TotalRuns,
		SuccessfulRuns:  j.stats.SuccessfulRuns,
		FailedRuns:      j.stats.FailedRuns,
		SkippedRuns:     j.stats.SkippedRuns,
		LastRunAt:       j.stats.LastRunAt,
		LastRunDate:     j.stats.LastRunDate,
		LastRunDuration: j.stats.LastRunDuration,
		LastError:       j.stats.LastError,
	}
}

// StatsSnapshot returns the statistics as a map for JSON encoding.
func (j *OptimizeJob) StatsSnapshot() map[string]interface{} {
	s := j.GetStats()

	snapshot := map[string]interface{}{
		"total_runs":      s.TotalRuns,
		"successful_runs": s.SuccessfulRuns,
		"failed_runs":     s.FailedRuns,
		"skipped_runs":    s.SkippedRuns,
	}
	if !s.LastRunAt.IsZero() {
		snapshot["last_run_at"] = s.LastRunAt.Format(time.RFC3339)
		snapshot["last_run_date"] = s.LastRunDate
		snapshot["last_run_duration_ms"] = s.LastRunDuration.Milliseconds()
	}
	if s.LastError != "" {
		snapshot["last_error"] = s.LastError
	}
	return snapshot
}
