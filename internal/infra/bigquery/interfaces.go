// Package bigquery exports ledger transactions to a BigQuery table for
// analysis outside the app.
package bigquery

import (
	"context"
	"time"
)

// TransactionRepository is the analytics side of the ledger.
type TransactionRepository interface {
	// InsertTransactions streams rows into the transactions table.
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error

	// QueryTransactionsByDateRange returns rows dated within [start, end].
	QueryTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]*TransactionRow, error)

	// CategoryTotals sums amounts per kind and category within [start, end].
	CategoryTotals(ctx context.Context, start, end time.Time) ([]CategoryTotalRow, error)

	Close() error
}
