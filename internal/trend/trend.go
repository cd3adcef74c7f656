package trend

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/dvloznov/revenue-cohorts/internal/period"
)

// SeriesPoint is one labelled net revenue value of a trend series.
type SeriesPoint struct {
	Label      string  `json:"label"`
	NetRevenue float64 `json:"netRevenue"`
}

// Trend holds the series of one report. Weekly is only set when a month
// was requested.
type Trend struct {
	Year      int           `json:"year"`
	Weekly    []SeriesPoint `json:"weekly,omitempty"`
	Monthly   []SeriesPoint `json:"monthly"`
	Quarterly []SeriesPoint `json:"quarterly"`
	Yearly    []SeriesPoint `json:"yearly"`
	Degraded  bool          `json:"degraded"`
}

// Builder builds trend series from grouped aggregations.
type Builder struct {
	engine *aggregation.Engine
}

// NewBuilder creates a builder over engine.
func NewBuilder(engine *aggregation.Engine) *Builder {
	return &Builder{engine: engine}
}

// Build computes the monthly, quarterly and yearly series of year, plus
// the weekly series of month when month is between 1 and 12.
func (b *Builder) Build(ctx context.Context, tenantID string, year, month int) *Trend {
	t := &Trend{Year: year}

	var (
		monthly, weekly, yearly []SeriesPoint
		mDeg, wDeg, yDeg        bool
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monthly, mDeg = b.Monthly(ctx, tenantID, year)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		yearly, yDeg = b.Yearly(ctx, tenantID)
	}()
	if month >= 1 && month <= 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			weekly, wDeg = b.Weekly(ctx, tenantID, year, time.Month(month))
		}()
	}
	wg.Wait()

	t.Monthly = monthly
	t.Quarterly = Quarterly(monthly)
	t.Yearly = yearly
	t.Weekly = weekly
	t.Degraded = mDeg || wDeg || yDeg
	return t
}

// Monthly returns 12 points for year, one grouped aggregation per source.
func (b *Builder) Monthly(ctx context.Context, tenantID string, year int) ([]SeriesPoint, bool) {
	months := b.engine.MonthlyTotals(ctx, tenantID, year)
	labels := period.MonthLabels()

	points := make([]SeriesPoint, len(months))
	degraded := false
	for i, m := range months {
		points[i] = SeriesPoint{Label: labels[i], NetRevenue: m.Net().InexactFloat64()}
		degraded = degraded || m.Degraded()
	}
	return points, degraded
}

// Quarterly sums a 12-point monthly series in groups of three, so quarterly
// and monthly figures agree by construction.
func Quarterly(monthly []SeriesPoint) []SeriesPoint {
	labels := period.QuarterLabels()
	points := make([]SeriesPoint, len(labels))
	for q := range points {
		points[q].Label = labels[q]
		for m := q * 3; m < q*3+3 && m < len(monthly); m++ {
			points[q].NetRevenue += monthly[m].NetRevenue
		}
	}
	return points
}

// Weekly returns the four fixed week buckets of a month. The buckets are
// aggregated concurrently.
func (b *Builder) Weekly(ctx context.Context, tenantID string, year int, month time.Month) ([]SeriesPoint, bool) {
	weeks := b.engine.Resolver().Weeks(year, month)
	labels := period.WeekLabels()
	totals := make([]aggregation.Totals, len(weeks))

	var wg sync.WaitGroup
	for i, iv := range weeks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			totals[i] = b.engine.Totals(ctx, tenantID, iv)
		}()
	}
	wg.Wait()

	points := make([]SeriesPoint, len(weeks))
	degraded := false
	for i, tot := range totals {
		points[i] = SeriesPoint{Label: labels[i], NetRevenue: tot.Net().InexactFloat64()}
		degraded = degraded || tot.Degraded()
	}
	return points, degraded
}

// Yearly returns one point per year present in any source, ascending.
func (b *Builder) Yearly(ctx context.Context, tenantID string) ([]SeriesPoint, bool) {
	yearly := b.engine.YearlyTotals(ctx, tenantID)

	points := make([]SeriesPoint, len(yearly.Years))
	for i, y := range yearly.Years {
		points[i] = SeriesPoint{Label: strconv.Itoa(y), NetRevenue: yearly.Totals[i].Net().InexactFloat64()}
	}
	return points, yearly.Degraded
}

// Values extracts the net revenue values of a series in order.
func Values(points []SeriesPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.NetRevenue
	}
	return out
}

// Labels extracts the labels of a series in order.
func Labels(points []SeriesPoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Label
	}
	return out
}
