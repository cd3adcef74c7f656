package aggregation

import (
	"context"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/shopspring/decimal"
)

// Reader is the read contract the engine consumes. It covers the four
// transaction sources and the customer source of one store.
// Implementations must be safe for concurrent use and must scope every
// query to tenantID. Interval bounds are inclusive.
type Reader interface {
	// SumAmount sums the amount of kind records with txn date in [start, end].
	SumAmount(ctx context.Context, kind domain.Kind, tenantID string, start, end time.Time) (decimal.Decimal, error)

	// SumByMonth sums kind amounts of one calendar year grouped by month,
	// months taken in loc. Months without records may be absent.
	SumByMonth(ctx context.Context, kind domain.Kind, tenantID string, year int, loc *time.Location) (map[time.Month]decimal.Decimal, error)

	// SumByYear sums kind amounts grouped by calendar year in loc. Only
	// years with at least one record are present.
	SumByYear(ctx context.Context, kind domain.Kind, tenantID string, loc *time.Location) (map[int]decimal.Decimal, error)

	// CountCustomers counts customers created in [start, end].
	CountCustomers(ctx context.Context, tenantID string, start, end time.Time) (int, error)
}

// Loader is the write side used by ingestion tooling. Records are upserted
// by external id.
type Loader interface {
	UpsertTransactions(ctx context.Context, records []domain.TransactionRecord) error
	UpsertCustomers(ctx context.Context, customers []domain.CustomerRecord) error
}

// Store is a Reader that can also be loaded and closed.
type Store interface {
	Reader
	Loader
	Close() error
}
