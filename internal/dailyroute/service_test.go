package dailyroute_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/schedule"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type scriptedSolver struct {
	calls   int
	respond func(req *optimization.SolverRequest) (*optimization.SolverResponse, error)
}

func (s *scriptedSolver) Optimize(_ context.Context, req *optimization.SolverRequest) (*optimization.SolverResponse, error) {
	s.calls++
	return s.respond(req)
}

func (s *scriptedSolver) Name() string { return "scripted" }

func loc(lon, lat float64) optimization.Location {
	return optimization.Location{Longitude: lon, Latitude: lat}
}

func jobStep(id string, l optimization.Location) optimization.SolverStep {
	jid := optimization.ID(id)
	return optimization.SolverStep{Type: optimization.StepJob, Job: &jid, Location: l.LonLat()}
}

// oneDriverTwoLoads routes c1 and c2, dumps at the depot, then routes c3.
func oneDriverTwoLoads(req *optimization.SolverRequest) (*optimization.SolverResponse, error) {
	code := 0
	v := req.Vehicles[0]
	return &optimization.SolverResponse{
		Code:    &code,
		Summary: &optimization.SolverSummary{Distance: 4200, Duration: 900},
		Routes: []optimization.SolverRoute{{
			Vehicle: optimization.ID(v.ID),
			Steps: []optimization.SolverStep{
				{Type: optimization.StepStart, Location: v.Start},
				jobStep("c1", loc(28.01, -26.01)),
				jobStep("c2", loc(28.02, -26.02)),
				{Type: optimization.StepEnd, Location: v.End},
				jobStep("c3", loc(28.03, -26.03)),
				{Type: optimization.StepEnd, Location: v.End},
			},
		}},
	}, nil
}

type harness struct {
	contracts *schedule.InMemoryContractRepository
	drivers   *schedule.InMemoryDriverRepository
	store     *schedule.InMemoryStore
	solver    *scriptedSolver
	depots    dailyroute.StaticDepots
	svc       *dailyroute.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		contracts: schedule.NewInMemoryContractRepository(
			schedule.Contract{ID: "c1", AddressID: "addr-1", Address: "1 Oak St", Location: loc(28.01, -26.01), DayOfWeek: time.Monday, Active: true, ApprovedExternally: true},
			schedule.Contract{ID: "c2", AddressID: "addr-2", Address: "2 Oak St", Location: loc(28.02, -26.02), DayOfWeek: time.Monday, Active: true, ApprovedExternally: true},
			schedule.Contract{ID: "c3", AddressID: "addr-3", Address: "3 Oak St", Location: loc(28.03, -26.03), DayOfWeek: time.Monday, Active: true, ApprovedExternally: true},
			schedule.Contract{ID: "c4", AddressID: "addr-4", Address: "4 Oak St", Location: loc(28.04, -26.04), DayOfWeek: time.Tuesday, Active: true, ApprovedExternally: true},
		),
		drivers: schedule.NewInMemoryDriverRepository(
			schedule.Driver{ID: "drv-1", Name: "Thandi", HomeLocation: loc(28.00, -26.00), Capacity: 2, Active: true},
		),
		store:  schedule.NewInMemoryStore(),
		solver: &scriptedSolver{respond: oneDriverTwoLoads},
		depots: dailyroute.StaticDepots{{ID: "depot-1", Address: "Landfill Rd", Location: loc(28.05, -26.05)}},
	}
	h.svc = h.newService(h.depots)
	return h
}

func (h *harness) newService(depots dailyroute.DepotSource) *dailyroute.Service {
	return dailyroute.NewService(dailyroute.ServiceConfig{
		Contracts: h.contracts,
		Drivers:   h.drivers,
		Store:     h.store,
		Depots:    depots,
		Optimizer: optimization.NewService(optimization.ServiceConfig{
			Solver: h.solver,
			Logger: zerolog.Nop(),
		}),
		Clock:  func() time.Time { return monday.Add(5 * time.Hour) },
		Logger: zerolog.Nop(),
	})
}

func (h *harness) entries(t *testing.T) []schedule.Entry {
	t.Helper()
	entries, err := h.store.ListForDate(context.Background(), monday)
	require.NoError(t, err)
	return entries
}

func TestService_Run_PersistsCollectionStops(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.Run(context.Background(), monday, dailyroute.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, h.solver.calls)

	require.Len(t, result.Routes, 1)
	route := result.Routes[0]
	assert.Equal(t, "drv-1", route.DriverID)

	var kinds []optimization.StopType
	for _, s := range route.Stops {
		kinds = append(kinds, s.Type)
	}
	assert.Equal(t, []optimization.StopType{
		optimization.StopCollection,
		optimization.StopCollection,
		optimization.StopDepot,
		optimization.StopCollection,
	}, kinds)
	assert.Empty(t, result.UnassignedJobs)

	entries := h.entries(t)
	require.Len(t, entries, 3)
	for i, want := range []string{"addr-1", "addr-2", "addr-3"} {
		assert.Equal(t, want, entries[i].AddressID)
		assert.Equal(t, i+1, entries[i].RouteSequence)
		assert.Equal(t, "drv-1", entries[i].DriverID)
		assert.Equal(t, monday, entries[i].ScheduledFor)
		assert.False(t, entries[i].Collected)
		assert.Empty(t, entries[i].Notes)
	}
}

func TestService_Run_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Run(ctx, monday, dailyroute.RunOptions{})
	require.NoError(t, err)
	first := h.entries(t)

	_, err = h.svc.Run(ctx, monday, dailyroute.RunOptions{})
	require.NoError(t, err)
	second := h.entries(t)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].AddressID, second[i].AddressID)
		assert.Equal(t, first[i].RouteSequence, second[i].RouteSequence)
		assert.NotEqual(t, first[i].ID, second[i].ID, "entries are recreated")
	}
}

func TestService_Run_NoContracts(t *testing.T) {
	h := newHarness(t)
	h.contracts.Put()
	h.store.Seed(schedule.Entry{ScheduledFor: monday, DriverID: "drv-1", AddressID: "stale", RouteSequence: 1})

	result, err := h.svc.Run(context.Background(), monday, dailyroute.RunOptions{})
	require.NoError(t, err)

	assert.Empty(t, result.Routes)
	assert.Empty(t, result.UnassignedJobs)
	assert.Zero(t, h.solver.calls)
	assert.Empty(t, h.entries(t), "stale entries are cleared")
}

func TestService_Run_NoDrivers(t *testing.T) {
	h := newHarness(t)
	h.drivers.Put()
	h.store.Seed(schedule.Entry{ScheduledFor: monday, DriverID: "drv-1", AddressID: "kept", RouteSequence: 1})

	_, err := h.svc.Run(context.Background(), monday, dailyroute.RunOptions{})
	require.Error(t, err)

	var noCap *optimization.NoCapacityError
	assert.ErrorAs(t, err, &noCap)
	assert.Zero(t, h.solver.calls)

	entries := h.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].AddressID)
}

func TestService_Run_NoDepots(t *testing.T) {
	h := newHarness(t)
	svc := h.newService(dailyroute.StaticDepots{})

	_, err := svc.Run(context.Background(), monday, dailyroute.RunOptions{})
	assert.ErrorIs(t, err, optimization.ErrConfiguration)
	assert.Zero(t, h.solver.calls)
}

type failingDepots struct{}

func (failingDepots) Depots(context.Context) ([]optimization.DepotLocation, error) {
	return nil, errors.New("file vanished")
}

func TestService_Run_DepotSourceFailure(t *testing.T) {
	h := newHarness(t)
	svc := h.newService(failingDepots{})

	_, err := svc.Run(context.Background(), monday, dailyroute.RunOptions{})
	assert.ErrorIs(t, err, optimization.ErrConfiguration)
	assert.Contains(t, err.Error(), "file vanished")
}

func TestService_Run_InvalidInputSkipsSolver(t *testing.T) {
	h := newHarness(t)
	h.drivers.Put(schedule.Driver{ID: "drv-1", HomeLocation: loc(200, -26), Capacity: 0, Active: true})

	_, err := h.svc.Run(context.Background(), monday, dailyroute.RunOptions{})

	var verr *optimization.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2)
	assert.Zero(t, h.solver.calls)
}

func TestService_Run_SolverFailureKeepsSchedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Run(ctx, monday, dailyroute.RunOptions{})
	require.NoError(t, err)
	before := h.entries(t)

	h.solver.respond = func(*optimization.SolverRequest) (*optimization.SolverResponse, error) {
		return nil, &optimization.SolverError{Provider: "scripted", StatusCode: 503, Message: "unavailable"}
	}
	_, err = h.svc.Run(ctx, monday, dailyroute.RunOptions{})
	assert.ErrorIs(t, err, optimization.ErrSolver)
	assert.Equal(t, "solver_error", dailyroute.Outcome(err))

	assert.Equal(t, before, h.entries(t))
}

func TestService_Run_IntegrityFailureKeepsSchedule(t *testing.T) {
	h := newHarness(t)
	h.store.Seed(schedule.Entry{ScheduledFor: monday, DriverID: "drv-1", AddressID: "kept", RouteSequence: 1})

	h.solver.respond = func(req *optimization.SolverRequest) (*optimization.SolverResponse, error) {
		code := 0
		return &optimization.SolverResponse{
			Code: &code,
			Routes: []optimization.SolverRoute{{
				Vehicle: "ghost",
				Steps:   []optimization.SolverStep{jobStep("c1", loc(28.01, -26.01))},
			}},
		}, nil
	}

	_, err := h.svc.Run(context.Background(), monday, dailyroute.RunOptions{})
	assert.ErrorIs(t, err, optimization.ErrDataIntegrity)
	require.Len(t, h.entries(t), 1)
}

func TestService_Run_ProgressGuard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(
		schedule.Entry{ScheduledFor: monday, DriverID: "drv-1", AddressID: "addr-1", RouteSequence: 1, Collected: true},
		schedule.Entry{ScheduledFor: monday, DriverID: "drv-1", AddressID: "addr-2", RouteSequence: 2},
	)

	_, err := h.svc.Run(ctx, monday, dailyroute.RunOptions{})
	require.ErrorIs(t, err, dailyroute.ErrProgressRecorded)

	var perr *dailyroute.ProgressRecordedError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Entries)
	assert.Zero(t, h.solver.calls)
	assert.Len(t, h.entries(t), 2)

	_, err = h.svc.Run(ctx, monday, dailyroute.RunOptions{Overwrite: true})
	require.NoError(t, err)

	entries := h.entries(t)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.False(t, e.Collected)
	}
}

func TestService_Run_CancelledBeforeSolver(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Run(ctx, monday, dailyroute.RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.solver.calls)
	assert.Empty(t, h.entries(t))
}

func TestService_Run_DefaultsToToday(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Run(context.Background(), time.Time{}, dailyroute.RunOptions{})
	require.NoError(t, err)
	assert.Len(t, h.entries(t), 3)
}

func TestService_Run_TuesdayUsesTuesdayContracts(t *testing.T) {
	h := newHarness(t)
	tuesday := monday.AddDate(0, 0, 1)
	h.solver.respond = func(req *optimization.SolverRequest) (*optimization.SolverResponse, error) {
		code := 0
		require.Len(t, req.Jobs, 1)
		assert.Equal(t, "c4", req.Jobs[0].ID)
		v := req.Vehicles[0]
		return &optimization.SolverResponse{
			Code: &code,
			Routes: []optimization.SolverRoute{{
				Vehicle: optimization.ID(v.ID),
				Steps: []optimization.SolverStep{
					{Type: optimization.StepStart, Location: v.Start},
					jobStep("c4", loc(28.04, -26.04)),
					{Type: optimization.StepEnd, Location: v.End},
				},
			}},
		}, nil
	}

	_, err := h.svc.Run(context.Background(), tuesday, dailyroute.RunOptions{})
	require.NoError(t, err)

	entries, err := h.store.ListForDate(context.Background(), tuesday)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "addr-4", entries[0].AddressID)
	assert.Empty(t, h.entries(t), "other dates are untouched")
}

func TestService_ParseDate(t *testing.T) {
	h := newHarness(t)

	got, err := h.svc.ParseDate("2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, monday.AddDate(0, 0, 2), got)

	got, err = h.svc.ParseDate("")
	require.NoError(t, err)
	assert.Equal(t, monday, got)

	_, err = h.svc.ParseDate("04/03/2026")
	assert.ErrorIs(t, err, optimization.ErrValidation)
}

func TestService_NormalizeDateUsesReferenceZone(t *testing.T) {
	zone, err := time.LoadLocation(dailyroute.DefaultTimeZone)
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 23:30 UTC on Sunday is already Monday in Johannesburg.
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	svc := dailyroute.NewService(dailyroute.ServiceConfig{
		Location: zone,
		Clock:    func() time.Time { return now },
		Logger:   zerolog.Nop(),
	})

	assert.Equal(t, monday, svc.Today())
	assert.Equal(t, monday, svc.NormalizeDate(time.Time{}))
}

func TestService_NormalizeDateKeepsCalendarDates(t *testing.T) {
	zone, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	svc := dailyroute.NewService(dailyroute.ServiceConfig{
		Location: zone,
		Logger:   zerolog.Nop(),
	})

	assert.Equal(t, monday, svc.NormalizeDate(monday))
	assert.Equal(t, monday, svc.NormalizeDate(time.Date(2026, 3, 2, 23, 0, 0, 0, zone)))
}

func TestService_Run_WestOfUTCKeepsTargetDate(t *testing.T) {
	zone, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	h := newHarness(t)
	// 20:00 on Monday in New York is 01:00 Tuesday UTC.
	now := time.Date(2026, 3, 2, 20, 0, 0, 0, zone)
	h.svc = dailyroute.NewService(dailyroute.ServiceConfig{
		Contracts: h.contracts,
		Drivers:   h.drivers,
		Store:     h.store,
		Depots:    h.depots,
		Optimizer: optimization.NewService(optimization.ServiceConfig{
			Solver: h.solver,
			Logger: zerolog.Nop(),
		}),
		Location: zone,
		Clock:    func() time.Time { return now },
		Logger:   zerolog.Nop(),
	})

	date, err := h.svc.ParseDate("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, monday, date)

	_, err = h.svc.Run(context.Background(), date, dailyroute.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, h.solver.calls)
	assert.Len(t, h.entries(t), 3)

	sunday, err := h.store.ListForDate(context.Background(), monday.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Empty(t, sunday)

	today := h.svc.Today()
	assert.Equal(t, monday, today)
	_, err = h.svc.Run(context.Background(), today, dailyroute.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, h.solver.calls)
	assert.Len(t, h.entries(t), 3)

	preview, err := h.svc.Preview(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, monday, preview.TargetDate)
	assert.Equal(t, "monday", preview.DayOfWeek)
	assert.Len(t, preview.ScheduleContracts, 3)

	listed, err := h.svc.Schedule(context.Background(), date)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{&optimization.ValidationError{}, "validation_error"},
		{&optimization.ConfigurationError{Message: "x"}, "configuration_error"},
		{&optimization.NoCapacityError{Message: "x"}, "no_capacity"},
		{&optimization.SolverError{Message: "x"}, "solver_error"},
		{&optimization.DataIntegrityError{Message: "x"}, "data_integrity_error"},
		{&dailyroute.ProgressRecordedError{Entries: 1}, "progress_recorded"},
		{context.Canceled, "cancelled"},
		{errors.New("db down"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dailyroute.Outcome(tt.err))
	}
}
