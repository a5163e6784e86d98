package dailyroute

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/megabin/megabin/internal/optimization"
)

const meterName = "github.com/megabin/megabin/internal/dailyroute"

type runMetrics struct {
	runs       metric.Int64Counter
	duration   metric.Float64Histogram
	stops      metric.Int64Counter
	unassigned metric.Int64Counter
}

func newRunMetrics() (*runMetrics, error) {
	meter := otel.Meter(meterName)

	runs, err := meter.Int64Counter(
		"dailyroute.runs",
		metric.WithDescription("Number of daily route runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"dailyroute.run.duration",
		metric.WithDescription("Duration of daily route runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stops, err := meter.Int64Counter(
		"dailyroute.collection_stops",
		metric.WithDescription("Collection stops scheduled by successful runs"),
		metric.WithUnit("{stop}"),
	)
	if err != nil {
		return nil, err
	}

	unassigned, err := meter.Int64Counter(
		"dailyroute.unassigned_jobs",
		metric.WithDescription("Jobs the solver could not place on any route"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return &runMetrics{
		runs:       runs,
		duration:   duration,
		stops:      stops,
		unassigned: unassigned,
	}, nil
}

func (m *runMetrics) recordRun(ctx context.Context, err error, elapsed time.Duration, result *optimization.DailyOptimizationResult) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", Outcome(err)))
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)

	if err != nil || result == nil {
		return
	}
	var stops int
	for i := range result.Routes {
		stops += len(result.Routes[i].CollectionStops())
	}
	m.stops.Add(ctx, int64(stops))
	m.unassigned.Add(ctx, int64(len(result.UnassignedJobs)))
}

// Outcome classifies a run error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, optimization.ErrValidation):
		return "validation_error"
	case errors.Is(err, optimization.ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, optimization.ErrNoCapacity):
		return "no_capacity"
	case errors.Is(err, optimization.ErrSolver):
		return "solver_error"
	case errors.Is(err, optimization.ErrDataIntegrity):
		return "data_integrity_error"
	case errors.Is(err, ErrProgressRecorded):
		return "progress_recorded"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
