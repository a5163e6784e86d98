package schedule

import (
	"context"
	"time"
)

// ContractRepository reads collection contracts.
type ContractRepository interface {
	// ListSchedulable returns active, externally approved contracts for day,
	// each with its address location.
	ListSchedulable(ctx context.Context, day time.Weekday) ([]Contract, error)
}

// DriverRepository reads drivers.
type DriverRepository interface {
	// ListActive returns all currently active drivers.
	ListActive(ctx context.Context) ([]Driver, error)
}

// Store persists schedule entries.
type Store interface {
	// InDateTx runs fn in a transaction holding the exclusive lock for date.
	// Concurrent calls for the same date serialize. The transaction commits
	// only if fn returns nil.
	InDateTx(ctx context.Context, date time.Time, fn func(ctx context.Context, tx Tx) error) error

	// ListForDate returns the committed entries for date ordered by driver
	// and route sequence.
	ListForDate(ctx context.Context, date time.Time) ([]Entry, error)

	// CountForDate returns the number of committed entries for date.
	CountForDate(ctx context.Context, date time.Time) (int, error)
}

// Tx is the set of writes available inside a date transaction.
type Tx interface {
	// CountProgress returns how many entries for date carry driver progress.
	CountProgress(ctx context.Context, date time.Time) (int, error)

	// DeleteForDate removes every entry for date and returns how many were removed.
	DeleteForDate(ctx context.Context, date time.Time) (int64, error)

	// InsertEntries adds entries. IDs and CreatedAt are filled in when empty.
	InsertEntries(ctx context.Context, entries []Entry) error
}
