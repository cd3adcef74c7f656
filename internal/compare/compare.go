package compare

import (
	"context"
	"fmt"

	"github.com/dvloznov/revenue-cohorts/internal/metrics"
	"github.com/dvloznov/revenue-cohorts/internal/period"
	"golang.org/x/sync/errgroup"
)

// Difference holds the signed change from period 1 to period 2.
type Difference struct {
	NetRevenue    float64 `json:"netRevenue"`
	Churn         float64 `json:"churn"`
	GDR           float64 `json:"gdr"`
	NDR           float64 `json:"ndr"`
	LTV           float64 `json:"ltv"`
	CustomerCount int     `json:"customerCount"`
}

// Series is one period's values laid over the granularity slots.
type Series struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// Chart is a two-series projection of the compared periods. Each series
// carries its period's net revenue at the period's own slot and 0 elsewhere.
type Chart struct {
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// Comparison is the result of comparing two periods of one granularity.
type Comparison struct {
	Type       period.Granularity `json:"type"`
	Period1    *metrics.Result    `json:"period1"`
	Period2    *metrics.Result    `json:"period2"`
	Difference Difference         `json:"difference"`
	Chart      Chart              `json:"chart"`
	Degraded   bool               `json:"degraded"`
}

// Comparator compares the metrics of two periods.
type Comparator struct {
	calc *metrics.Calculator
}

// NewComparator creates a comparator over calc.
func NewComparator(calc *metrics.Calculator) *Comparator {
	return &Comparator{calc: calc}
}

// Compare parses two period tokens of granularity typ and computes both
// periods concurrently.
func (c *Comparator) Compare(ctx context.Context, tenantID, typ, token1, token2 string) (*Comparison, error) {
	g, err := period.ParseGranularity(typ)
	if err != nil {
		return nil, err
	}
	spec1, err := period.ParseToken(g, token1)
	if err != nil {
		return nil, fmt.Errorf("Compare: period1: %w", err)
	}
	spec2, err := period.ParseToken(g, token2)
	if err != nil {
		return nil, fmt.Errorf("Compare: period2: %w", err)
	}

	var m1, m2 *metrics.Result
	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		m1, err = c.calc.Compute(ctx, tenantID, spec1)
		return err
	})
	eg.Go(func() error {
		var err error
		m2, err = c.calc.Compute(ctx, tenantID, spec2)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("Compare: computing metrics: %w", err)
	}

	return &Comparison{
		Type:       g,
		Period1:    m1,
		Period2:    m2,
		Difference: Diff(m1, m2),
		Chart:      Project(g, spec1, m1.NetRevenue, spec2, m2.NetRevenue),
		Degraded:   m1.Degraded || m2.Degraded,
	}, nil
}

// Diff returns m2 minus m1 for each compared figure.
func Diff(m1, m2 *metrics.Result) Difference {
	return Difference{
		NetRevenue:    m2.NetRevenue - m1.NetRevenue,
		Churn:         m2.Churn - m1.Churn,
		GDR:           m2.GDRValue - m1.GDRValue,
		NDR:           m2.NDRValue - m1.NDRValue,
		LTV:           m2.LTVValue - m1.LTVValue,
		CustomerCount: m2.CustomerCount - m1.CustomerCount,
	}
}

// Project builds the one-hot chart of two periods over the slots of g.
func Project(g period.Granularity, spec1 period.Spec, v1 float64, spec2 period.Spec, v2 float64) Chart {
	return Chart{
		Labels: slotLabels(g),
		Series: []Series{
			oneHot(g, spec1, v1),
			oneHot(g, spec2, v2),
		},
	}
}

func oneHot(g period.Granularity, spec period.Spec, v float64) Series {
	values := make([]float64, g.Slots())
	if slot := spec.Slot(); slot >= 0 && slot < len(values) {
		values[slot] = v
	}
	return Series{Label: spec.Label(), Values: values}
}

func slotLabels(g period.Granularity) []string {
	switch g {
	case period.Month:
		return period.MonthLabels()
	case period.Quarter:
		return period.QuarterLabels()
	}
	return []string{"Year"}
}
