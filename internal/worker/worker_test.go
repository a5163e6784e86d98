package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/optimization"
)

var today = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type runCall struct {
	date time.Time
	opts dailyroute.RunOptions
}

// fakeRunner records calls and returns err when set.
type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
	err   error
}

func (f *fakeRunner) Run(_ context.Context, date time.Time, opts dailyroute.RunOptions) (*optimization.DailyOptimizationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runCall{date: date, opts: opts})
	if f.err != nil {
		return nil, f.err
	}
	return optimization.EmptyResult(), nil
}

func (f *fakeRunner) Today() time.Time { return today }

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errDatabaseDown = errors.New("database down")
