package metrics

import (
	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Figures are the derived SaaS metrics of one period against its baseline.
// GDR and NDR are percentages; all values keep full precision until formatted.
type Figures struct {
	TotalRevenue decimal.Decimal
	TotalRefunds decimal.Decimal
	NetRevenue   decimal.Decimal
	BaselineNet  decimal.Decimal
	Expansion    decimal.Decimal
	Contraction  decimal.Decimal
	Churn        decimal.Decimal
	GDR          decimal.Decimal
	NDR          decimal.Decimal
	LTV          decimal.Decimal
}

// Derive computes the period metrics from the current and baseline totals.
// GDR and NDR are zero when the baseline is not positive; a customer count
// below one is treated as one in the LTV denominator.
func Derive(current, baseline aggregation.Totals, customerCount int) Figures {
	f := Figures{
		TotalRevenue: current.Revenue(),
		TotalRefunds: current.Refunds(),
		BaselineNet:  baseline.Net(),
		Expansion:    decimal.Zero,
		Contraction:  decimal.Zero,
		Churn:        decimal.Zero,
		GDR:          decimal.Zero,
		NDR:          decimal.Zero,
	}
	f.NetRevenue = f.TotalRevenue.Sub(f.TotalRefunds)

	net, base := f.NetRevenue, f.BaselineNet
	if net.GreaterThan(base) {
		f.Expansion = net.Sub(base)
	}
	if net.LessThan(base) && net.IsPositive() {
		f.Contraction = base.Sub(net)
	}
	if net.IsZero() {
		f.Churn = base
	}

	if base.IsPositive() {
		f.GDR = net.Div(base).Mul(hundred)
		retained := base.Add(f.Expansion).Sub(f.Contraction).Sub(f.Churn)
		f.NDR = retained.Div(base).Mul(hundred)
	}

	customers := customerCount
	if customers < 1 {
		customers = 1
	}
	f.LTV = net.Div(decimal.NewFromInt(int64(customers)))

	return f
}

// FormatPercent renders a percentage with two decimals and a "%" suffix.
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// FormatCurrency renders an amount with two decimals and a "$" prefix.
func FormatCurrency(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// round2 converts to float64 after rounding to cents.
func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
