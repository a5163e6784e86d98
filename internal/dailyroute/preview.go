package dailyroute

import (
	"context"
	"fmt"
	"time"

	"github.com/megabin/megabin/internal/schedule"
)

// Preview summarizes what a run for a date would work with.
type Preview struct {
	TargetDate               time.Time
	DayOfWeek                string
	ActiveDriverCount        int
	ExistingCollectionsCount int
	ScheduleContracts        []schedule.ContractSummary
}

// Preview reports the inputs of a run for date without calling the solver or
// writing anything.
func (s *Service) Preview(ctx context.Context, date time.Time) (*Preview, error) {
	target := s.NormalizeDate(date)

	ctx, span := s.tracer.Start(ctx, "dailyroute.Preview")
	defer span.End()

	contracts, err := s.contracts.ListSchedulable(ctx, target.Weekday())
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}

	drivers, err := s.drivers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}

	existing, err := s.store.CountForDate(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("count schedule entries: %w", err)
	}

	summaries := make([]schedule.ContractSummary, 0, len(contracts))
	for _, c := range contracts {
		summaries = append(summaries, schedule.ContractSummary{
			ContractID: c.ID,
			AddressID:  c.AddressID,
			Address:    c.Address,
			Location:   c.Location,
		})
	}

	return &Preview{
		TargetDate:               target,
		DayOfWeek:                schedule.WeekdayName(target.Weekday()),
		ActiveDriverCount:        len(drivers),
		ExistingCollectionsCount: existing,
		ScheduleContracts:        summaries,
	}, nil
}

// Schedule returns the committed entries for date.
func (s *Service) Schedule(ctx context.Context, date time.Time) ([]schedule.Entry, error) {
	entries, err := s.store.ListForDate(ctx, s.NormalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}
