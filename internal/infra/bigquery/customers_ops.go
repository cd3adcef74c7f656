package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// UpsertCustomersWithClient merges customers keyed by (tenant_id, id).
func UpsertCustomersWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []CustomerRow) error {
	if len(rows) == 0 {
		return nil
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING UNNEST(@rows) S
		ON T.tenant_id = S.tenant_id AND T.id = S.id
		WHEN MATCHED THEN UPDATE SET
			display_name = S.display_name,
			created_ts = S.created_ts,
			synced_ts = S.synced_ts
		WHEN NOT MATCHED THEN INSERT (id, tenant_id, display_name, created_ts, synced_ts)
			VALUES (S.id, S.tenant_id, S.display_name, S.created_ts, S.synced_ts)
	`, ds.Table(customersTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("UpsertCustomersWithClient: %w", err)
	}
	return nil
}

// CountCustomersWithClient counts a tenant's customers created in [start, end].
func CountCustomersWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tenantID string, start, end time.Time) (int, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE tenant_id = @tenant_id
		  AND created_ts BETWEEN @start_ts AND @end_ts
	`, ds.Table(customersTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
		{Name: "start_ts", Value: start.UTC()},
		{Name: "end_ts", Value: end.UTC()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountCustomersWithClient: reading query: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("CountCustomersWithClient: reading row: %w", err)
	}
	return int(row.N), nil
}
