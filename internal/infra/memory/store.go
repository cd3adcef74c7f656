package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is an in-memory transaction and customer store.
// It is safe for concurrent use. Data is lost on restart, so it is meant
// for tests and local runs.
type Store struct {
	mu        sync.RWMutex
	txns      map[domain.Kind]map[string]domain.TransactionRecord
	customers map[string]domain.CustomerRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	txns := make(map[domain.Kind]map[string]domain.TransactionRecord, len(domain.Kinds))
	for _, k := range domain.Kinds {
		txns[k] = make(map[string]domain.TransactionRecord)
	}
	return &Store{
		txns:      txns,
		customers: make(map[string]domain.CustomerRecord),
	}
}

func key(tenantID, id string) string {
	return tenantID + "/" + id
}

// UpsertTransactions inserts or replaces records by (tenant, kind, id).
func (s *Store) UpsertTransactions(ctx context.Context, records []domain.TransactionRecord) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("UpsertTransactions: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.txns[r.Kind][key(r.TenantID, r.ID)] = r
	}
	return nil
}

// UpsertCustomers inserts or replaces customers by (tenant, id).
func (s *Store) UpsertCustomers(ctx context.Context, customers []domain.CustomerRecord) error {
	for _, c := range customers {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("UpsertCustomers: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range customers {
		s.customers[key(c.TenantID, c.ID)] = c
	}
	return nil
}

// SumAmount implements aggregation.Reader.
func (s *Store) SumAmount(ctx context.Context, kind domain.Kind, tenantID string, start, end time.Time) (decimal.Decimal, error) {
	rows, err := s.rows(ctx, kind)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, r := range rows {
		if r.TenantID != tenantID || r.TxnDate.Before(start) || r.TxnDate.After(end) {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total, nil
}

// SumByMonth implements aggregation.Reader.
func (s *Store) SumByMonth(ctx context.Context, kind domain.Kind, tenantID string, year int, loc *time.Location) (map[time.Month]decimal.Decimal, error) {
	rows, err := s.rows(ctx, kind)
	if err != nil {
		return nil, err
	}

	out := make(map[time.Month]decimal.Decimal)
	for _, r := range rows {
		if r.TenantID != tenantID {
			continue
		}
		t := r.TxnDate.In(loc)
		if t.Year() != year {
			continue
		}
		out[t.Month()] = out[t.Month()].Add(r.Amount)
	}
	return out, nil
}

// SumByYear implements aggregation.Reader.
func (s *Store) SumByYear(ctx context.Context, kind domain.Kind, tenantID string, loc *time.Location) (map[int]decimal.Decimal, error) {
	rows, err := s.rows(ctx, kind)
	if err != nil {
		return nil, err
	}

	out := make(map[int]decimal.Decimal)
	for _, r := range rows {
		if r.TenantID != tenantID {
			continue
		}
		y := r.TxnDate.In(loc).Year()
		out[y] = out[y].Add(r.Amount)
	}
	return out, nil
}

// CountCustomers implements aggregation.Reader.
func (s *Store) CountCustomers(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.customers {
		if c.TenantID != tenantID || c.CreatedAt.Before(start) || c.CreatedAt.After(end) {
			continue
		}
		n++
	}
	return n, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// rows returns a snapshot of the records of one kind.
func (s *Store) rows(ctx context.Context, kind domain.Kind) ([]domain.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byID, ok := s.txns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", kind)
	}
	rows := make([]domain.TransactionRecord, 0, len(byID))
	for _, r := range byID {
		rows = append(rows, r)
	}
	return rows, nil
}

// Ensure Store implements the aggregation store contract.
var _ aggregation.Store = (*Store)(nil)
