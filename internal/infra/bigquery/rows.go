package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	invoicesTable       = "invoices"
	salesReceiptsTable  = "sales_receipts"
	creditMemosTable    = "credit_memos"
	refundReceiptsTable = "refund_receipts"
	customersTable      = "customers"
)

// Dataset names the project and dataset holding the synced tables.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// Table returns the fully qualified, backquoted table name.
func (d Dataset) Table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

// TableFor returns the table holding records of kind.
func TableFor(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindInvoice:
		return invoicesTable, nil
	case domain.KindSalesReceipt:
		return salesReceiptsTable, nil
	case domain.KindCreditMemo:
		return creditMemosTable, nil
	case domain.KindRefundReceipt:
		return refundReceiptsTable, nil
	}
	return "", fmt.Errorf("unknown source %q", kind)
}

// TransactionRow is one row of a transaction table. All four transaction
// tables share this schema.
type TransactionRow struct {
	ID       string `bigquery:"id"`        // REQUIRED
	TenantID string `bigquery:"tenant_id"` // REQUIRED

	TxnTS  time.Time `bigquery:"txn_ts"` // REQUIRED TIMESTAMP
	Amount *big.Rat  `bigquery:"amount"` // REQUIRED NUMERIC

	CustomerRef bigquery.NullString `bigquery:"customer_ref"` // NULLABLE

	SyncedTS time.Time `bigquery:"synced_ts"` // REQUIRED
}

// CustomerRow is one row of the customers table.
type CustomerRow struct {
	ID       string `bigquery:"id"`        // REQUIRED
	TenantID string `bigquery:"tenant_id"` // REQUIRED

	DisplayName bigquery.NullString    `bigquery:"display_name"` // NULLABLE
	CreatedTS   bigquery.NullTimestamp `bigquery:"created_ts"`   // NULLABLE, as reported by the source

	SyncedTS time.Time `bigquery:"synced_ts"` // REQUIRED
}

// NewTransactionRow converts a record for writing.
func NewTransactionRow(r domain.TransactionRecord, synced time.Time) TransactionRow {
	return TransactionRow{
		ID:          r.ID,
		TenantID:    r.TenantID,
		TxnTS:       r.TxnDate.UTC(),
		Amount:      r.Amount.Rat(),
		CustomerRef: bigquery.NullString{StringVal: r.CustomerRef, Valid: r.CustomerRef != ""},
		SyncedTS:    synced.UTC(),
	}
}

// NewCustomerRow converts a customer for writing.
func NewCustomerRow(c domain.CustomerRecord, synced time.Time) CustomerRow {
	return CustomerRow{
		ID:          c.ID,
		TenantID:    c.TenantID,
		DisplayName: bigquery.NullString{StringVal: c.DisplayName, Valid: c.DisplayName != ""},
		CreatedTS:   bigquery.NullTimestamp{Timestamp: c.CreatedAt.UTC(), Valid: !c.CreatedAt.IsZero()},
		SyncedTS:    synced.UTC(),
	}
}

// ratToDecimal converts a NUMERIC value. NUMERIC has 9 fractional digits,
// so the conversion is exact. A NULL sum reads as zero.
func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(r.FloatString(9))
	if err != nil {
		return decimal.Zero, fmt.Errorf("converting numeric %s: %w", r.String(), err)
	}
	return d, nil
}

// tzName is the time zone name passed to AT TIME ZONE.
func tzName(loc *time.Location) string {
	if loc == nil || loc.String() == "Local" || loc.String() == "" {
		return "UTC"
	}
	return loc.String()
}
