package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/dvloznov/revenue-cohorts/internal/infra/memory"
	"github.com/dvloznov/revenue-cohorts/internal/period"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func totals(invoice, sales, credit, refund string) aggregation.Totals {
	return aggregation.Totals{
		Invoice:       dec(invoice),
		SalesReceipt:  dec(sales),
		CreditMemo:    dec(credit),
		RefundReceipt: dec(refund),
	}
}

func TestDerive_Scenarios(t *testing.T) {
	tests := []struct {
		name            string
		current         aggregation.Totals
		baseline        aggregation.Totals
		customers       int
		wantNet         string
		wantExpansion   string
		wantContraction string
		wantChurn       string
		wantGDR         string
		wantNDR         string
		wantLTV         string
	}{
		{
			name:            "expansion over baseline",
			current:         totals("1000", "200", "50", "0"),
			baseline:        totals("900", "0", "0", "0"),
			customers:       10,
			wantNet:         "1150",
			wantExpansion:   "250",
			wantContraction: "0",
			wantChurn:       "0",
			wantGDR:         "127.78%",
			wantNDR:         "127.78%",
			wantLTV:         "$115.00",
		},
		{
			name:            "zero baseline",
			current:         totals("300", "0", "0", "0"),
			baseline:        totals("0", "0", "0", "0"),
			customers:       3,
			wantNet:         "300",
			wantExpansion:   "300",
			wantContraction: "0",
			wantChurn:       "0",
			wantGDR:         "0.00%",
			wantNDR:         "0.00%",
			wantLTV:         "$100.00",
		},
		{
			name:            "contraction",
			current:         totals("600", "0", "0", "0"),
			baseline:        totals("1000", "0", "200", "0"),
			customers:       0,
			wantNet:         "600",
			wantExpansion:   "0",
			wantContraction: "200",
			wantChurn:       "0",
			wantGDR:         "75.00%",
			wantNDR:         "75.00%",
			wantLTV:         "$600.00",
		},
		{
			name:            "full churn",
			current:         totals("100", "0", "100", "0"),
			baseline:        totals("500", "0", "0", "0"),
			customers:       4,
			wantNet:         "0",
			wantExpansion:   "0",
			wantContraction: "0",
			wantChurn:       "500",
			wantGDR:         "0.00%",
			wantNDR:         "0.00%",
			wantLTV:         "$0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Derive(tt.current, tt.baseline, tt.customers)

			if !f.NetRevenue.Equal(dec(tt.wantNet)) {
				t.Errorf("NetRevenue = %s, want %s", f.NetRevenue, tt.wantNet)
			}
			if !f.Expansion.Equal(dec(tt.wantExpansion)) {
				t.Errorf("Expansion = %s, want %s", f.Expansion, tt.wantExpansion)
			}
			if !f.Contraction.Equal(dec(tt.wantContraction)) {
				t.Errorf("Contraction = %s, want %s", f.Contraction, tt.wantContraction)
			}
			if !f.Churn.Equal(dec(tt.wantChurn)) {
				t.Errorf("Churn = %s, want %s", f.Churn, tt.wantChurn)
			}
			if got := FormatPercent(f.GDR); got != tt.wantGDR {
				t.Errorf("GDR = %s, want %s", got, tt.wantGDR)
			}
			if got := FormatPercent(f.NDR); got != tt.wantNDR {
				t.Errorf("NDR = %s, want %s", got, tt.wantNDR)
			}
			if got := FormatCurrency(f.LTV); got != tt.wantLTV {
				t.Errorf("LTV = %s, want %s", got, tt.wantLTV)
			}
			if !f.NetRevenue.Equal(f.TotalRevenue.Sub(f.TotalRefunds)) {
				t.Errorf("NetRevenue %s != TotalRevenue %s - TotalRefunds %s", f.NetRevenue, f.TotalRevenue, f.TotalRefunds)
			}
			if !f.TotalRevenue.Equal(tt.current.Invoice.Add(tt.current.SalesReceipt)) {
				t.Errorf("TotalRevenue %s != Invoice + SalesReceipt", f.TotalRevenue)
			}
		})
	}
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 9, 0, 0, 0, time.UTC) }
	records := []domain.TransactionRecord{
		{ID: "inv-1", Kind: domain.KindInvoice, TxnDate: day(time.March, 5), Amount: dec("1000"), TenantID: "t1"},
		{ID: "sr-1", Kind: domain.KindSalesReceipt, TxnDate: day(time.March, 6), Amount: dec("200"), TenantID: "t1"},
		{ID: "cm-1", Kind: domain.KindCreditMemo, TxnDate: day(time.March, 7), Amount: dec("50"), TenantID: "t1"},
		{ID: "inv-2", Kind: domain.KindInvoice, TxnDate: day(time.February, 10), Amount: dec("900"), TenantID: "t1"},
	}
	if err := store.UpsertTransactions(ctx, records); err != nil {
		t.Fatalf("UpsertTransactions() error: %v", err)
	}

	var customers []domain.CustomerRecord
	for i := 0; i < 10; i++ {
		customers = append(customers, domain.CustomerRecord{
			ID:        "c" + string(rune('a'+i)),
			TenantID:  "t1",
			CreatedAt: day(time.March, i+1),
		})
	}
	if err := store.UpsertCustomers(ctx, customers); err != nil {
		t.Fatalf("UpsertCustomers() error: %v", err)
	}
	return store
}

func TestCalculator_Compute_March2024(t *testing.T) {
	resolver := period.NewResolver(time.UTC)
	calc := NewCalculator(aggregation.NewEngine(seed(t), resolver))

	res, err := calc.Compute(context.Background(), "t1", period.Spec{Granularity: period.Month, Year: 2024, Month: 3})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	if res.CohortLabel != "Mar 24" {
		t.Errorf("CohortLabel = %q, want %q", res.CohortLabel, "Mar 24")
	}
	if res.CustomerCount != 10 {
		t.Errorf("CustomerCount = %d, want 10", res.CustomerCount)
	}
	if res.NetRevenue != 1150 || res.BaselineRevenue != 900 || res.Expansion != 250 {
		t.Errorf("NetRevenue/BaselineRevenue/Expansion = %v/%v/%v, want 1150/900/250", res.NetRevenue, res.BaselineRevenue, res.Expansion)
	}
	if res.GDR != "127.78%" {
		t.Errorf("GDR = %q, want %q", res.GDR, "127.78%")
	}
	if res.LTV != "$115.00" {
		t.Errorf("LTV = %q, want %q", res.LTV, "$115.00")
	}
	if res.GDRValue != 127.78 || res.LTVValue != 115 {
		t.Errorf("GDRValue/LTVValue = %v/%v, want 127.78/115", res.GDRValue, res.LTVValue)
	}
	if res.Degraded {
		t.Error("Degraded = true, want false")
	}
	if want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC); !res.BaselinePeriod.Start.Equal(want) {
		t.Errorf("BaselinePeriod.Start = %v, want %v", res.BaselinePeriod.Start, want)
	}
}

func TestCalculator_Compute_QuarterLabel(t *testing.T) {
	calc := NewCalculator(aggregation.NewEngine(seed(t), period.NewResolver(time.UTC)))

	res, err := calc.Compute(context.Background(), "t1", period.Spec{Granularity: period.Quarter, Year: 2024, Quarter: 1})
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if res.CohortLabel != "2024-Q1" {
		t.Errorf("CohortLabel = %q, want %q", res.CohortLabel, "2024-Q1")
	}
	// Q1 net is Feb + Mar; the baseline is December 2023, which is empty.
	if res.NetRevenue != 2050 {
		t.Errorf("NetRevenue = %v, want 2050", res.NetRevenue)
	}
	if res.GDR != "0.00%" || res.NDR != "0.00%" {
		t.Errorf("GDR/NDR = %s/%s, want 0.00%%/0.00%%", res.GDR, res.NDR)
	}
}

func TestCalculator_Compute_InvalidSpec(t *testing.T) {
	calc := NewCalculator(aggregation.NewEngine(memory.NewStore(), period.NewResolver(time.UTC)))

	_, err := calc.Compute(context.Background(), "t1", period.Spec{Granularity: period.Month, Year: 2024})
	var verr *period.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Compute() error = %v, want *period.ValidationError", err)
	}
}
