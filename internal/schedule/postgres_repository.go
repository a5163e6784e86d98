package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresContractRepository is a PostgreSQL implementation of ContractRepository.
type PostgresContractRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresContractRepository creates a new PostgreSQL contract repository.
func NewPostgresContractRepository(pool *pgxpool.Pool) *PostgresContractRepository {
	return &PostgresContractRepository{pool: pool}
}

// ListSchedulable returns active, approved contracts for day.
func (r *PostgresContractRepository) ListSchedulable(ctx context.Context, day time.Weekday) ([]Contract, error) {
	query := `
		SELECT
			c.id::text, c.address_id::text, a.line,
			a.longitude, a.latitude,
			c.active, c.approved_externally
		FROM contracts c
		JOIN addresses a ON a.id = c.address_id
		WHERE c.active
			AND c.approved_externally
			AND lower(c.day_of_week) = $1
		ORDER BY c.id
	`

	rows, err := r.pool.Query(ctx, query, WeekdayName(day))
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []Contract
	for rows.Next() {
		c := Contract{DayOfWeek: day}
		if err := rows.Scan(
			&c.ID,
			&c.AddressID,
			&c.Address,
			&c.Location.Longitude,
			&c.Location.Latitude,
			&c.Active,
			&c.ApprovedExternally,
		); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}

	return contracts, nil
}

// PostgresDriverRepository is a PostgreSQL implementation of DriverRepository.
type PostgresDriverRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDriverRepository creates a new PostgreSQL driver repository.
func NewPostgresDriverRepository(pool *pgxpool.Pool) *PostgresDriverRepository {
	return &PostgresDriverRepository{pool: pool}
}

// ListActive returns all active drivers.
func (r *PostgresDriverRepository) ListActive(ctx context.Context) ([]Driver, error) {
	query := `
		SELECT id::text, name, home_longitude, home_latitude, capacity
		FROM drivers
		WHERE active
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	defer rows.Close()

	var drivers []Driver
	for rows.Next() {
		d := Driver{Active: true}
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.HomeLocation.Longitude,
			&d.HomeLocation.Latitude,
			&d.Capacity,
		); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drivers: %w", err)
	}

	return drivers, nil
}

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL schedule store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InDateTx runs fn under a transaction-scoped advisory lock on the date.
// The lock is released on commit or rollback.
func (s *PostgresStore) InDateTx(ctx context.Context, date time.Time, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin schedule tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // rollback after failure is best effort
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(date)); err != nil {
		return fmt.Errorf("lock schedule date: %w", err)
	}

	if err = fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schedule tx: %w", err)
	}
	return nil
}

// ListForDate returns the committed entries for date.
func (s *PostgresStore) ListForDate(ctx context.Context, date time.Time) ([]Entry, error) {
	query := `
		SELECT id::text, scheduled_for, driver_id, address_id, route_sequence, collected, notes, created_at
		FROM schedule_entries
		WHERE scheduled_for = $1
		ORDER BY driver_id, route_sequence
	`

	rows, err := s.pool.Query(ctx, query, pgDate(date))
	if err != nil {
		return nil, fmt.Errorf("query schedule entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var scheduledFor pgtype.Date
		if err := rows.Scan(
			&e.ID,
			&scheduledFor,
			&e.DriverID,
			&e.AddressID,
			&e.RouteSequence,
			&e.Collected,
			&e.Notes,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		e.ScheduledFor = Date(scheduledFor.Time)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule entries: %w", err)
	}

	return entries, nil
}

// CountForDate returns the number of committed entries for date.
func (s *PostgresStore) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM schedule_entries WHERE scheduled_for = $1`,
		pgDate(date),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count schedule entries: %w", err)
	}
	return n, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) CountProgress(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*) FROM schedule_entries
		WHERE scheduled_for = $1 AND (collected OR btrim(notes) <> '')
	`, pgDate(date)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count schedule progress: %w", err)
	}
	return n, nil
}

func (t *postgresTx) DeleteForDate(ctx context.Context, date time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM schedule_entries WHERE scheduled_for = $1`, pgDate(date))
	if err != nil {
		return 0, fmt.Errorf("delete schedule entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *postgresTx) InsertEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for i := range entries {
		prepareEntry(&entries[i], now)
		e := entries[i]
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return fmt.Errorf("schedule entry id %q: %w", e.ID, err)
		}
		rows = append(rows, []any{
			id,
			pgDate(e.ScheduledFor),
			e.DriverID,
			e.AddressID,
			e.RouteSequence,
			e.Collected,
			e.Notes,
			e.CreatedAt,
		})
	}

	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"schedule_entries"},
		[]string{"id", "scheduled_for", "driver_id", "address_id", "route_sequence", "collected", "notes", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert schedule entries: %w", err)
	}
	return nil
}

// prepareEntry fills in generated fields.
func prepareEntry(e *Entry, now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.ScheduledFor = Date(e.ScheduledFor)
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: Date(t), Valid: true}
}

func lockKey(date time.Time) string {
	return "schedule:" + Date(date).Format(DateLayout)
}
