package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/dvloznov/revenue-cohorts/internal/domain"
)

// Store keeps transactions and customers in a local SQLite file.
// Timestamps are stored as unix nanoseconds and amounts as decimal text,
// so sums are exact.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertTransactions inserts or updates records by (tenant, kind, id) in one
// transaction.
func (s *Store) UpsertTransactions(ctx context.Context, records []domain.TransactionRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("UpsertTransactions: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			tenant_id, kind, id, txn_at, amount, customer_ref, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, kind, id)
		DO UPDATE SET
			txn_at = excluded.txn_at,
			amount = excluded.amount,
			customer_ref = excluded.customer_ref,
			synced_at = excluded.synced_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixNano()
	for _, r := range records {
		var at int64
		if at, err = unixNanos(r.TxnDate); err != nil {
			return fmt.Errorf("UpsertTransactions: %s/%s: %w", r.Kind, r.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			r.TenantID,
			string(r.Kind),
			r.ID,
			at,
			r.Amount.String(),
			r.CustomerRef,
			now,
		)
		if err != nil {
			return fmt.Errorf("UpsertTransactions: %s/%s: %w", r.Kind, r.ID, err)
		}
	}

	return tx.Commit()
}

// UpsertCustomers inserts or updates customers by (tenant, id).
func (s *Store) UpsertCustomers(ctx context.Context, customers []domain.CustomerRecord) (err error) {
	if len(customers) == 0 {
		return nil
	}
	for _, c := range customers {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("UpsertCustomers: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO customers (tenant_id, id, display_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, id)
		DO UPDATE SET
			display_name = excluded.display_name,
			created_at = excluded.created_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range customers {
		var createdAt any
		if !c.CreatedAt.IsZero() {
			var ns int64
			if ns, err = unixNanos(c.CreatedAt); err != nil {
				return fmt.Errorf("UpsertCustomers: %s: %w", c.ID, err)
			}
			createdAt = ns
		}
		if _, err = stmt.ExecContext(ctx, c.TenantID, c.ID, c.DisplayName, createdAt); err != nil {
			return fmt.Errorf("UpsertCustomers: %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// SumAmount implements aggregation.Reader.
func (s *Store) SumAmount(ctx context.Context, kind domain.Kind, tenantID string, start, end time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.scan(ctx, kind, tenantID, &start, &end, func(_ time.Time, amount decimal.Decimal) {
		total = total.Add(amount)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumAmount: %w", err)
	}
	return total, nil
}

// SumByMonth implements aggregation.Reader. Rows are read for the calendar
// year in loc and grouped in Go.
func (s *Store) SumByMonth(ctx context.Context, kind domain.Kind, tenantID string, year int, loc *time.Location) (map[time.Month]decimal.Decimal, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(1, 0, 0).Add(-time.Nanosecond)

	out := make(map[time.Month]decimal.Decimal)
	err := s.scan(ctx, kind, tenantID, &start, &end, func(at time.Time, amount decimal.Decimal) {
		m := at.In(loc).Month()
		out[m] = out[m].Add(amount)
	})
	if err != nil {
		return nil, fmt.Errorf("SumByMonth: %w", err)
	}
	return out, nil
}

// SumByYear implements aggregation.Reader.
func (s *Store) SumByYear(ctx context.Context, kind domain.Kind, tenantID string, loc *time.Location) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal)
	err := s.scan(ctx, kind, tenantID, nil, nil, func(at time.Time, amount decimal.Decimal) {
		y := at.In(loc).Year()
		out[y] = out[y].Add(amount)
	})
	if err != nil {
		return nil, fmt.Errorf("SumByYear: %w", err)
	}
	return out, nil
}

// CountCustomers implements aggregation.Reader.
func (s *Store) CountCustomers(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	from, to, err := nanoRange(start, end)
	if err != nil {
		return 0, fmt.Errorf("CountCustomers: %w", err)
	}

	var n int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM customers
		WHERE tenant_id = ? AND created_at BETWEEN ? AND ?
	`, tenantID, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountCustomers: %w", err)
	}
	return n, nil
}

// scan streams (txn time, amount) of one kind and tenant, optionally
// bounded by [start, end].
func (s *Store) scan(ctx context.Context, kind domain.Kind, tenantID string, start, end *time.Time, fn func(time.Time, decimal.Decimal)) error {
	query := `SELECT txn_at, amount FROM transactions WHERE tenant_id = ? AND kind = ?`
	args := []any{tenantID, string(kind)}
	if start != nil && end != nil {
		from, to, err := nanoRange(*start, *end)
		if err != nil {
			return err
		}
		query += ` AND txn_at BETWEEN ? AND ?`
		args = append(args, from, to)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying %s: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			at     int64
			amount string
		)
		if err := rows.Scan(&at, &amount); err != nil {
			return fmt.Errorf("scanning %s: %w", kind, err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("parsing %s amount %q: %w", kind, amount, err)
		}
		fn(time.Unix(0, at), d)
	}
	return rows.Err()
}

var (
	minStorable = time.Unix(0, math.MinInt64)
	maxStorable = time.Unix(0, math.MaxInt64)
)

// unixNanos encodes t for the txn_at and created_at columns. UnixNano is
// undefined outside 1677-2262, so such instants are an error rather than a
// silently wrapped value.
func unixNanos(t time.Time) (int64, error) {
	if t.Before(minStorable) || t.After(maxStorable) {
		return 0, fmt.Errorf("time %s is outside the storable range", t.UTC().Format(time.RFC3339))
	}
	return t.UnixNano(), nil
}

func nanoRange(start, end time.Time) (int64, int64, error) {
	from, err := unixNanos(start)
	if err != nil {
		return 0, 0, err
	}
	to, err := unixNanos(end)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			tenant_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			txn_at INTEGER NOT NULL,
			amount TEXT NOT NULL,
			customer_ref TEXT,
			synced_at INTEGER NOT NULL,
			PRIMARY KEY (tenant_id, kind, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_range
			ON transactions (tenant_id, kind, txn_at);`,
		`CREATE TABLE IF NOT EXISTS customers (
			tenant_id TEXT NOT NULL,
			id TEXT NOT NULL,
			display_name TEXT,
			created_at INTEGER,
			PRIMARY KEY (tenant_id, id)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

var _ aggregation.Store = (*Store)(nil)
