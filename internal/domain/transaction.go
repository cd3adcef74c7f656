package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies one of the four transaction sources synced from the
// accounting system. All kinds share the same record shape; only their
// polarity in revenue formulas differs.
type Kind string

const (
	KindInvoice       Kind = "invoice"
	KindSalesReceipt  Kind = "sales_receipt"
	KindCreditMemo    Kind = "credit_memo"
	KindRefundReceipt Kind = "refund_receipt"
)

// Kinds lists every transaction source in a fixed order.
var Kinds = []Kind{KindInvoice, KindSalesReceipt, KindCreditMemo, KindRefundReceipt}

// IsRefund reports whether amounts of this kind reduce revenue.
func (k Kind) IsRefund() bool {
	return k == KindCreditMemo || k == KindRefundReceipt
}

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInvoice, KindSalesReceipt, KindCreditMemo, KindRefundReceipt:
		return true
	}
	return false
}

// ParseKind accepts the snake_case name or the accounting-system entity name
// ("Invoice", "SalesReceipt", ...), case-insensitively.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	switch norm {
	case "invoice":
		return KindInvoice, nil
	case "salesreceipt":
		return KindSalesReceipt, nil
	case "creditmemo":
		return KindCreditMemo, nil
	case "refundreceipt":
		return KindRefundReceipt, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// TransactionRecord is one synced transaction. Records are immutable once
// synced and are only read by the analytics engine.
type TransactionRecord struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	TxnDate     time.Time       `json:"txn_date"`
	Amount      decimal.Decimal `json:"amount"`
	CustomerRef string          `json:"customer_ref,omitempty"`
	TenantID    string          `json:"tenant_id"`
}

// CustomerRecord is a customer as reported by the source system.
type CustomerRecord struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	TenantID    string    `json:"tenant_id"`
}

// Validate checks the required fields of a transaction record.
func (r TransactionRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if r.TenantID == "" {
		return fmt.Errorf("transaction %s: tenant id is required", r.ID)
	}
	if r.TxnDate.IsZero() {
		return fmt.Errorf("transaction %s: txn date is required", r.ID)
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("transaction %s: amount must be non-negative", r.ID)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("transaction %s: unknown kind %q", r.ID, r.Kind)
	}
	return nil
}

// Validate checks the required fields of a customer record.
func (c CustomerRecord) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("customer id is required")
	}
	if c.TenantID == "" {
		return fmt.Errorf("customer %s: tenant id is required", c.ID)
	}
	return nil
}
