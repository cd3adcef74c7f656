package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/revenue-cohorts/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// UpsertTransactionsWithClient merges rows into the table of kind, keyed by
// (tenant_id, id).
func UpsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, kind domain.Kind, rows []TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	table, err := TableFor(kind)
	if err != nil {
		return fmt.Errorf("UpsertTransactionsWithClient: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING UNNEST(@rows) S
		ON T.tenant_id = S.tenant_id AND T.id = S.id
		WHEN MATCHED THEN UPDATE SET
			txn_ts = S.txn_ts,
			amount = S.amount,
			customer_ref = S.customer_ref,
			synced_ts = S.synced_ts
		WHEN NOT MATCHED THEN INSERT (id, tenant_id, txn_ts, amount, customer_ref, synced_ts)
			VALUES (S.id, S.tenant_id, S.txn_ts, S.amount, S.customer_ref, S.synced_ts)
	`, ds.Table(table)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("UpsertTransactionsWithClient: %s: %w", table, err)
	}
	return nil
}

// SumAmountWithClient sums amounts of kind for a tenant over [start, end].
func SumAmountWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, kind domain.Kind, tenantID string, start, end time.Time) (decimal.Decimal, error) {
	table, err := TableFor(kind)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumAmountWithClient: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		SELECT SUM(amount) AS total
		FROM %s
		WHERE tenant_id = @tenant_id
		  AND txn_ts BETWEEN @start_ts AND @end_ts
	`, ds.Table(table)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
		{Name: "start_ts", Value: start.UTC()},
		{Name: "end_ts", Value: end.UTC()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumAmountWithClient: reading query: %w", err)
	}

	var row struct {
		Total *big.Rat `bigquery:"total"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumAmountWithClient: reading row: %w", err)
	}
	return ratToDecimal(row.Total)
}

type groupRow struct {
	Key   int64    `bigquery:"k"`
	Total *big.Rat `bigquery:"total"`
}

// SumByMonthWithClient sums amounts of kind per calendar month of year, with
// months taken in loc.
func SumByMonthWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, kind domain.Kind, tenantID string, year int, loc *time.Location) (map[time.Month]decimal.Decimal, error) {
	table, err := TableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("SumByMonthWithClient: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		SELECT EXTRACT(MONTH FROM txn_ts AT TIME ZONE @tz) AS k, SUM(amount) AS total
		FROM %s
		WHERE tenant_id = @tenant_id
		  AND EXTRACT(YEAR FROM txn_ts AT TIME ZONE @tz) = @year
		GROUP BY k
	`, ds.Table(table)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
		{Name: "tz", Value: tzName(loc)},
		{Name: "year", Value: int64(year)},
	}

	groups, err := readGroups(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("SumByMonthWithClient: %w", err)
	}
	out := make(map[time.Month]decimal.Decimal, len(groups))
	for k, v := range groups {
		out[time.Month(k)] = v
	}
	return out, nil
}

// SumByYearWithClient sums amounts of kind per calendar year, with years
// taken in loc.
func SumByYearWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, kind domain.Kind, tenantID string, loc *time.Location) (map[int]decimal.Decimal, error) {
	table, err := TableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("SumByYearWithClient: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		SELECT EXTRACT(YEAR FROM txn_ts AT TIME ZONE @tz) AS k, SUM(amount) AS total
		FROM %s
		WHERE tenant_id = @tenant_id
		GROUP BY k
		ORDER BY k
	`, ds.Table(table)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
		{Name: "tz", Value: tzName(loc)},
	}

	groups, err := readGroups(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("SumByYearWithClient: %w", err)
	}
	out := make(map[int]decimal.Decimal, len(groups))
	for k, v := range groups {
		out[int(k)] = v
	}
	return out, nil
}

func readGroups(ctx context.Context, q *bigquery.Query) (map[int64]decimal.Decimal, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	out := make(map[int64]decimal.Decimal)
	for {
		var row groupRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating: %w", err)
		}
		d, err := ratToDecimal(row.Total)
		if err != nil {
			return nil, err
		}
		out[row.Key] = d
	}
	return out, nil
}

func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
