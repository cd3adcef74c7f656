package aggregation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/dvloznov/revenue-cohorts/internal/logger"
	"github.com/dvloznov/revenue-cohorts/internal/period"
	"github.com/shopspring/decimal"
)

// Sum is an aggregated amount. Degraded is set when the source query failed
// and Value is a stand-in zero.
type Sum struct {
	Value    decimal.Decimal
	Degraded bool
}

// Count is an aggregated customer count with the same degraded semantics as Sum.
type Count struct {
	Value    int
	Degraded bool
}

// Engine is the single source of truth for what counts as revenue in an
// interval for a tenant. Source failures never propagate: they are logged
// and contribute zero, flagged as degraded.
type Engine struct {
	reader   Reader
	resolver *period.Resolver
}

// NewEngine creates an engine over reader. Grouped aggregations bucket
// records in the resolver's location.
func NewEngine(reader Reader, resolver *period.Resolver) *Engine {
	return &Engine{reader: reader, resolver: resolver}
}

// Resolver returns the resolver the engine groups by.
func (e *Engine) Resolver() *period.Resolver {
	return e.resolver
}

// SumAmount sums one source over iv.
func (e *Engine) SumAmount(ctx context.Context, kind domain.Kind, tenantID string, iv period.Interval) Sum {
	total, err := e.reader.SumAmount(ctx, kind, tenantID, iv.Start, iv.End)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("source", string(kind)).
			Str("tenant_id", tenantID).
			Time("start", iv.Start).
			Time("end", iv.End).
			Msg("Aggregation failed, counting source as zero")
		return Sum{Value: decimal.Zero, Degraded: true}
	}
	return Sum{Value: total}
}

// CountCustomers counts customers created within iv.
func (e *Engine) CountCustomers(ctx context.Context, tenantID string, iv period.Interval) Count {
	n, err := e.reader.CountCustomers(ctx, tenantID, iv.Start, iv.End)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("source", "customer").
			Str("tenant_id", tenantID).
			Time("start", iv.Start).
			Time("end", iv.End).
			Msg("Customer count failed, counting as zero")
		return Count{Degraded: true}
	}
	return Count{Value: n}
}

// Totals sums all four sources over iv concurrently.
func (e *Engine) Totals(ctx context.Context, tenantID string, iv period.Interval) Totals {
	sums := make([]Sum, len(domain.Kinds))

	var wg sync.WaitGroup
	for i, kind := range domain.Kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sums[i] = e.SumAmount(ctx, kind, tenantID, iv)
		}()
	}
	wg.Wait()

	return newTotals(sums)
}

// MonthlyTotals aggregates one year grouped by month with a single grouped
// query per source, the four sources running concurrently.
func (e *Engine) MonthlyTotals(ctx context.Context, tenantID string, year int) [12]Totals {
	grouped := make([]map[time.Month]decimal.Decimal, len(domain.Kinds))
	failed := make([]bool, len(domain.Kinds))

	var wg sync.WaitGroup
	for i, kind := range domain.Kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := e.reader.SumByMonth(ctx, kind, tenantID, year, e.resolver.Location())
			if err != nil {
				log := logger.FromContext(ctx)
				log.Warn().
					Err(err).
					Str("source", string(kind)).
					Str("tenant_id", tenantID).
					Int("year", year).
					Msg("Monthly aggregation failed, counting source as zero")
				failed[i] = true
				return
			}
			grouped[i] = m
		}()
	}
	wg.Wait()

	var months [12]Totals
	for m := range months {
		sums := make([]Sum, len(domain.Kinds))
		for i := range domain.Kinds {
			sums[i] = Sum{Value: grouped[i][time.Month(m+1)], Degraded: failed[i]}
		}
		months[m] = newTotals(sums)
	}
	return months
}

// Yearly holds per-year totals. Degraded is set when any source failed,
// in which case years present only in that source are missing.
type Yearly struct {
	Years    []int
	Totals   []Totals
	Degraded bool
}

// YearlyTotals aggregates every year that has a record in any source. Years
// are the union across all four sources, sorted ascending.
func (e *Engine) YearlyTotals(ctx context.Context, tenantID string) Yearly {
	grouped := make([]map[int]decimal.Decimal, len(domain.Kinds))
	failed := make([]bool, len(domain.Kinds))

	var wg sync.WaitGroup
	for i, kind := range domain.Kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := e.reader.SumByYear(ctx, kind, tenantID, e.resolver.Location())
			if err != nil {
				log := logger.FromContext(ctx)
				log.Warn().
					Err(err).
					Str("source", string(kind)).
					Str("tenant_id", tenantID).
					Msg("Yearly aggregation failed, counting source as zero")
				failed[i] = true
				return
			}
			grouped[i] = m
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	var years []int
	for _, m := range grouped {
		for y := range m {
			if !seen[y] {
				seen[y] = true
				years = append(years, y)
			}
		}
	}
	sort.Ints(years)

	out := Yearly{Years: years, Totals: make([]Totals, len(years))}
	for _, f := range failed {
		out.Degraded = out.Degraded || f
	}
	for j, y := range years {
		sums := make([]Sum, len(domain.Kinds))
		for i := range domain.Kinds {
			sums[i] = Sum{Value: grouped[i][y], Degraded: failed[i]}
		}
		out.Totals[j] = newTotals(sums)
	}
	return out
}
