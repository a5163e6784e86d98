package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryContractRepository is an in-memory implementation of ContractRepository.
// This is intended for testing. Production should use PostgresContractRepository.
type InMemoryContractRepository struct {
	mu        sync.RWMutex
	contracts []Contract
}

// NewInMemoryContractRepository creates a new in-memory contract repository.
func NewInMemoryContractRepository(contracts ...Contract) *InMemoryContractRepository {
	return &InMemoryContractRepository{contracts: append([]Contract(nil), contracts...)}
}

// Put replaces the stored contracts.
func (r *InMemoryContractRepository) Put(contracts ...Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts = append([]Contract(nil), contracts...)
}

// ListSchedulable returns active, approved contracts for day in insertion order.
func (r *InMemoryContractRepository) ListSchedulable(_ context.Context, day time.Weekday) ([]Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Contract
	for i := range r.contracts {
		if r.contracts[i].Schedulable(day) {
			out = append(out, r.contracts[i])
		}
	}
	return out, nil
}

// InMemoryDriverRepository is an in-memory implementation of DriverRepository.
type InMemoryDriverRepository struct {
	mu      sync.RWMutex
	drivers []Driver
}

// NewInMemoryDriverRepository creates a new in-memory driver repository.
func NewInMemoryDriverRepository(drivers ...Driver) *InMemoryDriverRepository {
	return &InMemoryDriverRepository{drivers: append([]Driver(nil), drivers...)}
}

// Put replaces the stored drivers.
func (r *InMemoryDriverRepository) Put(drivers ...Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers = append([]Driver(nil), drivers...)
}

// ListActive returns active drivers in insertion order.
func (r *InMemoryDriverRepository) ListActive(_ context.Context) ([]Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Driver
	for _, d := range r.drivers {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

// InMemoryStore is an in-memory implementation of Store.
// Writes made inside InDateTx are staged and only become visible on success.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewInMemoryStore creates a new in-memory schedule store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string][]Entry),
		locks:   make(map[string]chan struct{}),
	}
}

// Seed stores entries directly, outside any transaction.
func (s *InMemoryStore) Seed(entries ...Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, e := range entries {
		prepareEntry(&e, now)
		key := e.ScheduledFor.Format(DateLayout)
		s.entries[key] = append(s.entries[key], e)
	}
}

// InDateTx runs fn holding the date's lock and commits its writes if fn succeeds.
func (s *InMemoryStore) InDateTx(ctx context.Context, date time.Time, fn func(ctx context.Context, tx Tx) error) error {
	key := Date(date).Format(DateLayout)
	lock := s.dateLock(key)

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	s.mu.RLock()
	staged := append([]Entry(nil), s.entries[key]...)
	s.mu.RUnlock()

	tx := &memoryTx{date: key, entries: staged}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = tx.entries
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) dateLock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = make(chan struct{}, 1)
		s.locks[key] = lock
	}
	return lock
}

// ListForDate returns the committed entries for date ordered by driver and sequence.
func (s *InMemoryStore) ListForDate(_ context.Context, date time.Time) ([]Entry, error) {
	s.mu.RLock()
	entries := append([]Entry{}, s.entries[Date(date).Format(DateLayout)]...)
	s.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].DriverID != entries[j].DriverID {
			return entries[i].DriverID < entries[j].DriverID
		}
		return entries[i].RouteSequence < entries[j].RouteSequence
	})
	return entries, nil
}

// CountForDate returns the number of committed entries for date.
func (s *InMemoryStore) CountForDate(_ context.Context, date time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[Date(date).Format(DateLayout)]), nil
}

type memoryTx struct {
	date    string
	entries []Entry
}

func (t *memoryTx) checkDate(date time.Time) error {
	if key := Date(date).Format(DateLayout); key != t.date {
		return fmt.Errorf("date %s outside transaction for %s", key, t.date)
	}
	return nil
}

func (t *memoryTx) CountProgress(_ context.Context, date time.Time) (int, error) {
	if err := t.checkDate(date); err != nil {
		return 0, err
	}
	n := 0
	for i := range t.entries {
		if t.entries[i].HasProgress() {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeleteForDate(_ context.Context, date time.Time) (int64, error) {
	if err := t.checkDate(date); err != nil {
		return 0, err
	}
	n := int64(len(t.entries))
	t.entries = nil
	return n, nil
}

func (t *memoryTx) InsertEntries(_ context.Context, entries []Entry) error {
	now := time.Now().UTC()
	staged := make([]Entry, 0, len(entries))
	for i := range entries {
		prepareEntry(&entries[i], now)
		if err := t.checkDate(entries[i].ScheduledFor); err != nil {
			return err
		}
		staged = append(staged, entries[i])
	}
	t.entries = append(t.entries, staged...)
	return nil
}
