package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/logger"
)

// exportBatchSize bounds each streaming insert request.
const exportBatchSize = 500

// ExportResult reports what an export wrote.
type ExportResult struct {
	Exported int      `json:"exported"`
	Skipped  []string `json:"skipped,omitempty"`
}

// ExportLedger writes every transaction in l to repo in batches.
// Transactions that cannot be converted are skipped and reported by ID.
func ExportLedger(ctx context.Context, repo TransactionRepository, l domain.Ledger, now time.Time) (ExportResult, error) {
	log := logger.FromContext(ctx)

	var res ExportResult
	batch := make([]*TransactionRow, 0, exportBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := repo.InsertTransactions(ctx, batch); err != nil {
			return err
		}
		res.Exported += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, t := range l.Transactions {
		row, err := NewTransactionRow(t, l.Settings.Currency, now)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", t.ID).Msg("Skipping transaction in export")
			res.Skipped = append(res.Skipped, t.ID)
			continue
		}
		batch = append(batch, row)
		if len(batch) == exportBatchSize {
			if err := flush(); err != nil {
				return res, fmt.Errorf("ExportLedger: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return res, fmt.Errorf("ExportLedger: %w", err)
	}

	log.Info().Int("exported", res.Exported).Int("skipped", len(res.Skipped)).Msg("Exported transactions to BigQuery")
	return res, nil
}
