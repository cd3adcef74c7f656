package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is the BigQuery implementation of aggregation.Store. It holds a
// shared client for all operations.
type Store struct {
	client *bigquery.Client
	ds     Dataset
	now    func() time.Time
}

// NewStore creates a store with its own BigQuery client.
func NewStore(ctx context.Context, ds Dataset) (*Store, error) {
	if ds.ProjectID == "" || ds.DatasetID == "" {
		return nil, fmt.Errorf("NewStore: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, ds), nil
}

// NewStoreWithClient creates a store over an existing client. Close closes
// the client.
func NewStoreWithClient(client *bigquery.Client, ds Dataset) *Store {
	return &Store{client: client, ds: ds, now: time.Now}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// UpsertTransactions validates records and merges them, one statement per kind.
func (s *Store) UpsertTransactions(ctx context.Context, records []domain.TransactionRecord) error {
	synced := s.now()
	byKind := make(map[domain.Kind][]TransactionRow)
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("UpsertTransactions: %w", err)
		}
		byKind[r.Kind] = append(byKind[r.Kind], NewTransactionRow(r, synced))
	}

	for _, kind := range domain.Kinds {
		if err := UpsertTransactionsWithClient(ctx, s.client, s.ds, kind, byKind[kind]); err != nil {
			return err
		}
	}
	return nil
}

// UpsertCustomers validates customers and merges them.
func (s *Store) UpsertCustomers(ctx context.Context, customers []domain.CustomerRecord) error {
	synced := s.now()
	rows := make([]CustomerRow, 0, len(customers))
	for _, c := range customers {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("UpsertCustomers: %w", err)
		}
		rows = append(rows, NewCustomerRow(c, synced))
	}
	return UpsertCustomersWithClient(ctx, s.client, s.ds, rows)
}

// SumAmount delegates to SumAmountWithClient with the shared client.
func (s *Store) SumAmount(ctx context.Context, kind domain.Kind, tenantID string, start, end time.Time) (decimal.Decimal, error) {
	return SumAmountWithClient(ctx, s.client, s.ds, kind, tenantID, start, end)
}

// SumByMonth delegates to SumByMonthWithClient with the shared client.
func (s *Store) SumByMonth(ctx context.Context, kind domain.Kind, tenantID string, year int, loc *time.Location) (map[time.Month]decimal.Decimal, error) {
	return SumByMonthWithClient(ctx, s.client, s.ds, kind, tenantID, year, loc)
}

// SumByYear delegates to SumByYearWithClient with the shared client.
func (s *Store) SumByYear(ctx context.Context, kind domain.Kind, tenantID string, loc *time.Location) (map[int]decimal.Decimal, error) {
	return SumByYearWithClient(ctx, s.client, s.ds, kind, tenantID, loc)
}

// CountCustomers delegates to CountCustomersWithClient with the shared client.
func (s *Store) CountCustomers(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	return CountCustomersWithClient(ctx, s.client, s.ds, tenantID, start, end)
}

var _ aggregation.Store = (*Store)(nil)
