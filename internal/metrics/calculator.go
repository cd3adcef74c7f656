package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/dvloznov/revenue-cohorts/internal/period"
)

// Result is the summary of one cohort period.
type Result struct {
	CohortLabel     string  `json:"cohortLabel"`
	CustomerCount   int     `json:"customerCount"`
	BaselineRevenue float64 `json:"baselineRevenue"`
	TotalRevenue    float64 `json:"totalRevenue"`
	TotalRefunds    float64 `json:"totalRefunds"`
	NetRevenue      float64 `json:"netRevenue"`
	Expansion       float64 `json:"expansion"`
	Contraction     float64 `json:"contraction"`
	Churn           float64 `json:"churn"`

	GDR string `json:"gdr"`
	NDR string `json:"ndr"`
	LTV string `json:"ltv"`

	GDRValue float64 `json:"gdrValue"`
	NDRValue float64 `json:"ndrValue"`
	LTVValue float64 `json:"ltvValue"`

	Period         period.Interval `json:"period"`
	BaselinePeriod period.Interval `json:"baselinePeriod"`

	// Degraded is set when any aggregation behind the result failed and
	// was counted as zero.
	Degraded bool `json:"degraded"`

	Figures Figures `json:"-"`
}

// Calculator computes cohort metrics for a period against the calendar
// month before it.
type Calculator struct {
	engine *aggregation.Engine
}

// NewCalculator creates a calculator over engine.
func NewCalculator(engine *aggregation.Engine) *Calculator {
	return &Calculator{engine: engine}
}

// Compute resolves spec, then aggregates the period, its baseline month and
// the period's new customers concurrently. Only invalid specs return an error.
func (c *Calculator) Compute(ctx context.Context, tenantID string, spec period.Spec) (*Result, error) {
	resolver := c.engine.Resolver()
	iv, err := resolver.Resolve(spec)
	if err != nil {
		return nil, fmt.Errorf("Compute: resolving period: %w", err)
	}
	baseline := resolver.Baseline(iv)

	var (
		current, prior aggregation.Totals
		customers      aggregation.Count
	)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		current = c.engine.Totals(ctx, tenantID, iv)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		prior = c.engine.Totals(ctx, tenantID, baseline)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		customers = c.engine.CountCustomers(ctx, tenantID, iv)
	}()
	wg.Wait()

	f := Derive(current, prior, customers.Value)

	return &Result{
		CohortLabel:     spec.Label(),
		CustomerCount:   customers.Value,
		BaselineRevenue: f.BaselineNet.InexactFloat64(),
		TotalRevenue:    f.TotalRevenue.InexactFloat64(),
		TotalRefunds:    f.TotalRefunds.InexactFloat64(),
		NetRevenue:      f.NetRevenue.InexactFloat64(),
		Expansion:       f.Expansion.InexactFloat64(),
		Contraction:     f.Contraction.InexactFloat64(),
		Churn:           f.Churn.InexactFloat64(),
		GDR:             FormatPercent(f.GDR),
		NDR:             FormatPercent(f.NDR),
		LTV:             FormatCurrency(f.LTV),
		GDRValue:        round2(f.GDR),
		NDRValue:        round2(f.NDR),
		LTVValue:        round2(f.LTV),
		Period:          iv,
		BaselinePeriod:  baseline,
		Degraded:        current.Degraded() || prior.Degraded() || customers.Degraded,
		Figures:         f,
	}, nil
}
