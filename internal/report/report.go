package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/heatmap"
	"github.com/dvloznov/revenue-cohorts/internal/logger"
	"github.com/dvloznov/revenue-cohorts/internal/metrics"
	"github.com/dvloznov/revenue-cohorts/internal/period"
	"github.com/dvloznov/revenue-cohorts/internal/trend"
	"golang.org/x/sync/errgroup"
)

// Request is a financial report request.
type Request struct {
	Type     string `json:"type"`
	Year     int    `json:"year"`
	Month    int    `json:"month,omitempty"`
	Quarter  int    `json:"quarter,omitempty"`
	TenantID string `json:"tenantId"`
}

// Spec validates the request and returns the period it asks for.
func (r Request) Spec() (period.Spec, error) {
	if strings.TrimSpace(r.TenantID) == "" {
		return period.Spec{}, &period.ValidationError{Field: "tenantId", Message: "tenantId is required"}
	}
	g, err := period.ParseGranularity(r.Type)
	if err != nil {
		return period.Spec{}, err
	}
	spec := period.Spec{Granularity: g, Year: r.Year}
	switch g {
	case period.Month:
		spec.Month = r.Month
	case period.Quarter:
		spec.Quarter = r.Quarter
	}
	if err := spec.Validate(); err != nil {
		return period.Spec{}, err
	}
	return spec, nil
}

// Profit is the gross profit block of a summary. Gross profit equals net
// revenue, so the margin is 100 for a positive net and 0 otherwise.
type Profit struct {
	GrossProfit  float64 `json:"grossProfit"`
	ProfitMargin float64 `json:"profitMargin"`
}

// Summary is the cohort metrics of the requested period.
type Summary struct {
	metrics.Result
	Profit Profit `json:"profit"`
}

// Report is the combined financial report of one period.
type Report struct {
	TenantID    string           `json:"tenantId"`
	Summary     Summary          `json:"summary"`
	Trend       *trend.Trend     `json:"trend"`
	Heatmap     *heatmap.Heatmap `json:"heatmap"`
	Degraded    bool             `json:"degraded"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Service generates financial reports.
type Service struct {
	calc   *metrics.Calculator
	trends *trend.Builder
	now    func() time.Time
}

// NewService creates a report service.
func NewService(calc *metrics.Calculator, trends *trend.Builder) *Service {
	return &Service{calc: calc, trends: trends, now: time.Now}
}

// Generate validates req, computes the summary and the trend concurrently
// and derives the heatmap from the trend.
func (s *Service) Generate(ctx context.Context, req Request) (*Report, error) {
	spec, err := req.Spec()
	if err != nil {
		return nil, err
	}
	ctx = logger.WithTenant(ctx, req.TenantID)
	log := logger.FromContext(ctx)

	var (
		result *metrics.Result
		tr     *trend.Trend
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		result, err = s.calc.Compute(ctx, req.TenantID, spec)
		return err
	})
	g.Go(func() error {
		month := 0
		if spec.Granularity == period.Month {
			month = spec.Month
		}
		tr = s.trends.Build(ctx, req.TenantID, spec.Year, month)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Generate: computing summary: %w", err)
	}

	rep := &Report{
		TenantID: req.TenantID,
		Summary: Summary{
			Result: *result,
			Profit: profitOf(result.NetRevenue),
		},
		Trend:       tr,
		Heatmap:     heatmap.Build(tr),
		Degraded:    result.Degraded || tr.Degraded,
		GeneratedAt: s.now().UTC(),
	}
	if rep.Degraded {
		log.Warn().Str("cohort", result.CohortLabel).Msg("report generated with failed aggregations")
	} else {
		log.Debug().Str("cohort", result.CohortLabel).Msg("report generated")
	}
	return rep, nil
}

func profitOf(net float64) Profit {
	p := Profit{GrossProfit: net}
	if net > 0 {
		p.ProfitMargin = 100
	}
	return p
}
