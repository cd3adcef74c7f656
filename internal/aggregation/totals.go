package aggregation

import (
	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/shopspring/decimal"
)

// Totals holds the per-source sums of one interval.
type Totals struct {
	Invoice       decimal.Decimal
	SalesReceipt  decimal.Decimal
	CreditMemo    decimal.Decimal
	RefundReceipt decimal.Decimal

	// Failed lists the sources whose query failed and were counted as zero.
	Failed []domain.Kind
}

// sums must be ordered like domain.Kinds.
func newTotals(sums []Sum) Totals {
	t := Totals{
		Invoice:       sums[0].Value,
		SalesReceipt:  sums[1].Value,
		CreditMemo:    sums[2].Value,
		RefundReceipt: sums[3].Value,
	}
	for i, s := range sums {
		if s.Degraded {
			t.Failed = append(t.Failed, domain.Kinds[i])
		}
	}
	return t
}

// Revenue is Invoice + SalesReceipt.
func (t Totals) Revenue() decimal.Decimal {
	return t.Invoice.Add(t.SalesReceipt)
}

// Refunds is CreditMemo + RefundReceipt.
func (t Totals) Refunds() decimal.Decimal {
	return t.CreditMemo.Add(t.RefundReceipt)
}

// Net is Revenue - Refunds.
func (t Totals) Net() decimal.Decimal {
	return t.Revenue().Sub(t.Refunds())
}

// Degraded reports whether any source failed.
func (t Totals) Degraded() bool {
	return len(t.Failed) > 0
}
