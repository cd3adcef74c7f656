package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/dvloznov/revenue-cohorts/internal/logger"
	"github.com/shopspring/decimal"
)

// LoadFile is the JSON document accepted by Load.
type LoadFile struct {
	Transactions []TransactionInput `json:"transactions"`
	Customers    []CustomerInput    `json:"customers"`
}

// TransactionInput is a transaction as exported from the accounting system.
// Kind takes either form accepted by domain.ParseKind; dates are
// YYYY-MM-DD or RFC 3339.
type TransactionInput struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	TxnDate     string          `json:"txn_date"`
	Amount      decimal.Decimal `json:"amount"`
	CustomerRef string          `json:"customer_ref"`
	TenantID    string          `json:"tenant_id"`
}

// CustomerInput is a customer as exported from the accounting system.
type CustomerInput struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
	TenantID    string `json:"tenant_id"`
}

// LoadResult counts the records written by Load.
type LoadResult struct {
	Transactions int `json:"transactions"`
	Customers    int `json:"customers"`
}

// Decode parses a LoadFile into validated records. Records without a
// tenant id get tenantID; dates without an offset are read in loc.
func Decode(r io.Reader, tenantID string, loc *time.Location) ([]domain.TransactionRecord, []domain.CustomerRecord, error) {
	var f LoadFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("Decode: parsing file: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	txns := make([]domain.TransactionRecord, 0, len(f.Transactions))
	for i, in := range f.Transactions {
		kind, err := domain.ParseKind(in.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("Decode: transaction %d: %w", i, err)
		}
		date, err := parseDate(in.TxnDate, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("Decode: transaction %d: %w", i, err)
		}
		rec := domain.TransactionRecord{
			ID:          in.ID,
			Kind:        kind,
			TxnDate:     date,
			Amount:      in.Amount,
			CustomerRef: in.CustomerRef,
			TenantID:    orDefault(in.TenantID, tenantID),
		}
		if err := rec.Validate(); err != nil {
			return nil, nil, fmt.Errorf("Decode: %w", err)
		}
		txns = append(txns, rec)
	}

	customers := make([]domain.CustomerRecord, 0, len(f.Customers))
	for i, in := range f.Customers {
		var created time.Time
		if in.CreatedAt != "" {
			var err error
			if created, err = parseDate(in.CreatedAt, loc); err != nil {
				return nil, nil, fmt.Errorf("Decode: customer %d: %w", i, err)
			}
		}
		rec := domain.CustomerRecord{
			ID:          in.ID,
			DisplayName: in.DisplayName,
			CreatedAt:   created,
			TenantID:    orDefault(in.TenantID, tenantID),
		}
		if err := rec.Validate(); err != nil {
			return nil, nil, fmt.Errorf("Decode: %w", err)
		}
		customers = append(customers, rec)
	}
	return txns, customers, nil
}

// Load decodes r and upserts its records through loader.
func Load(ctx context.Context, loader aggregation.Loader, r io.Reader, tenantID string, loc *time.Location) (LoadResult, error) {
	log := logger.FromContext(ctx)

	txns, customers, err := Decode(r, tenantID, loc)
	if err != nil {
		return LoadResult{}, err
	}
	if err := loader.UpsertTransactions(ctx, txns); err != nil {
		return LoadResult{}, fmt.Errorf("Load: upserting transactions: %w", err)
	}
	if err := loader.UpsertCustomers(ctx, customers); err != nil {
		return LoadResult{}, fmt.Errorf("Load: upserting customers: %w", err)
	}

	log.Info().
		Int("transactions", len(txns)).
		Int("customers", len(customers)).
		Msg("Records loaded")
	return LoadResult{Transactions: len(txns), Customers: len(customers)}, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
