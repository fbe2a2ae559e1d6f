package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// BigQueryTransactionRepository is the TransactionRepository backed by a
// BigQuery table. It holds a shared client for all operations.
type BigQueryTransactionRepository struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryTransactionRepository connects to projectID and targets
// dataset.table.
func NewBigQueryTransactionRepository(ctx context.Context, projectID, dataset, table string) (*BigQueryTransactionRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryTransactionRepository: project id is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryTransactionRepository: creating client: %w", err)
	}
	return &BigQueryTransactionRepository{client: client, dataset: dataset, table: table}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryTransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryTransactionRepository) qualified() string {
	return fmt.Sprintf("`%s.%s.%s`", r.client.Project(), r.dataset, r.table)
}

// EnsureTable creates the transactions table, partitioned by transaction
// date, when it does not exist yet.
func (r *BigQueryTransactionRepository) EnsureTable(ctx context.Context) error {
	t := r.client.Dataset(r.dataset).Table(r.table)
	if _, err := t.Metadata(ctx); err == nil {
		return nil
	}

	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}
	err = t.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.MonthPartitioningType,
			Field: "transaction_date",
		},
	})
	if err != nil {
		return fmt.Errorf("EnsureTable: create %s: %w", r.qualified(), err)
	}
	return nil
}

// InsertTransactions implements TransactionRepository.
func (r *BigQueryTransactionRepository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := r.client.Dataset(r.dataset).Table(r.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// QueryTransactionsByDateRange implements TransactionRepository. The
// streaming insert ID only deduplicates on a best-effort basis, so the
// latest export of each transaction wins here.
func (r *BigQueryTransactionRepository) QueryTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]*TransactionRow, error) {
	q := r.client.Query(`
		SELECT * EXCEPT(rn) FROM (
			SELECT
				t.*,
				ROW_NUMBER() OVER (PARTITION BY t.transaction_id ORDER BY t.exported_ts DESC) AS rn
			FROM ` + r.qualified() + ` t
			WHERE t.transaction_date >= @start_date
			  AND t.transaction_date <= @end_date
		)
		WHERE rn = 1
		ORDER BY transaction_date DESC, created_ts DESC
	`)
	q.Parameters = dateRange(start, end)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// CategoryTotals implements TransactionRepository.
func (r *BigQueryTransactionRepository) CategoryTotals(ctx context.Context, start, end time.Time) ([]CategoryTotalRow, error) {
	q := r.client.Query(`
		SELECT kind, category, SUM(amount) AS total, COUNT(*) AS tx_count
		FROM (
			SELECT DISTINCT transaction_id, kind, category, amount
			FROM ` + r.qualified() + `
			WHERE transaction_date >= @start_date
			  AND transaction_date <= @end_date
		)
		GROUP BY kind, category
		ORDER BY total DESC
	`)
	q.Parameters = dateRange(start, end)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CategoryTotals: query read: %w", err)
	}

	var rows []CategoryTotalRow
	for {
		var row CategoryTotalRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CategoryTotals: iter next: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func dateRange(start, end time.Time) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "start_date", Value: civil.DateOf(start)},
		{Name: "end_date", Value: civil.DateOf(end)},
	}
}

var _ TransactionRepository = (*BigQueryTransactionRepository)(nil)
