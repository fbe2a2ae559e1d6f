package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionRow is one ledger transaction in the analytics table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	Kind     string `bigquery:"kind"`     // REQUIRED: income | expense
	Category string `bigquery:"category"` // REQUIRED
	Source   string `bigquery:"source"`   // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	Notes bigquery.NullString `bigquery:"notes"` // NULLABLE

	CreatedTS  time.Time `bigquery:"created_ts"`  // REQUIRED
	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// Save implements bigquery.ValueSaver. The transaction ID doubles as the
// insert ID so a retried export does not duplicate rows.
func (r *TransactionRow) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"transaction_id":   r.TransactionID,
		"kind":             r.Kind,
		"category":         r.Category,
		"source":           r.Source,
		"transaction_date": r.TransactionDate,
		"amount":           r.Amount,
		"currency":         r.Currency,
		"notes":            r.Notes,
		"created_ts":       r.CreatedTS,
		"exported_ts":      r.ExportedTS,
	}, r.TransactionID, nil
}

var _ bigquery.ValueSaver = (*TransactionRow)(nil)

// NewTransactionRow converts a ledger transaction. Amounts are stored as
// NUMERIC without losing precision.
func NewTransactionRow(t domain.Transaction, currency string, exportedAt time.Time) (*TransactionRow, error) {
	date, err := civil.ParseDate(t.Date)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRow: transaction %s date %q: %w", t.ID, t.Date, err)
	}

	amount, ok := new(big.Rat).SetString(t.Amount.String())
	if !ok {
		return nil, fmt.Errorf("NewTransactionRow: transaction %s amount %s", t.ID, t.Amount)
	}

	row := &TransactionRow{
		TransactionID:   t.ID,
		Kind:            string(t.Kind),
		Category:        t.Category,
		Source:          t.Source,
		TransactionDate: date,
		Amount:          amount,
		Currency:        currency,
		CreatedTS:       t.CreatedAt.UTC(),
		ExportedTS:      exportedAt.UTC(),
	}
	if t.Notes != "" {
		row.Notes = bigquery.NullString{StringVal: t.Notes, Valid: true}
	}
	return row, nil
}

// Transaction converts the row back into a ledger transaction.
func (r *TransactionRow) Transaction() domain.Transaction {
	amount := decimal.Zero
	if r.Amount != nil {
		amount = decimal.NewFromBigRat(r.Amount, 9)
	}
	return domain.Transaction{
		ID:        r.TransactionID,
		Kind:      domain.Kind(r.Kind),
		Category:  r.Category,
		Source:    r.Source,
		Amount:    amount,
		Date:      r.TransactionDate.String(),
		Notes:     r.Notes.StringVal,
		CreatedAt: r.CreatedTS,
		UpdatedAt: r.CreatedTS,
	}
}

// CategoryTotalRow is one category's summed amount over a date range.
type CategoryTotalRow struct {
	Kind     string   `bigquery:"kind"`
	Category string   `bigquery:"category"`
	Total    *big.Rat `bigquery:"total"`
	Count    int64    `bigquery:"tx_count"`
}
