package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/logger"
	"github.com/jomei/notionapi"
)

// BatchSize is how many transactions are logged as one progress step.
const BatchSize = 100

// Result counts what a sync did, or would do in a dry run.
type Result struct {
	Created int  `json:"created"`
	Deleted int  `json:"deleted"`
	Skipped int  `json:"skipped"`
	Failed  int  `json:"failed"`
	DryRun  bool `json:"dryRun"`
}

// SyncTransactions mirrors txs into the Notion database. Pages are matched
// on their Transaction ID column, so repeated runs only create pages for new
// transactions. Pages whose transaction no longer exists, or that carry no
// Transaction ID, are archived. Failures on single pages are logged and
// counted without stopping the run.
func SyncTransactions(ctx context.Context, notionClient NotionService, databaseID string, txs []domain.Transaction, currency string, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)
	res := Result{DryRun: dryRun}

	log.Info().
		Int("transaction_count", len(txs)).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	valid := make(map[string]bool, len(txs))
	for _, t := range txs {
		valid[t.ID] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, databaseID)
	if err != nil {
		return res, fmt.Errorf("SyncTransactions: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		txID := extractTransactionID(page)
		if txID != "" && valid[txID] && !existing[txID] {
			existing[txID] = true
			continue
		}

		// Stale, untagged or duplicate page.
		if dryRun {
			log.Info().Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive Notion page")
			res.Deleted++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("Failed to archive Notion page")
			res.Failed++
			continue
		}
		res.Deleted++
	}

	for i, t := range txs {
		if i > 0 && i%BatchSize == 0 {
			log.Info().Int("processed", i).Int("total", len(txs)).Msg("Notion sync progress")
		}
		if existing[t.ID] {
			res.Skipped++
			continue
		}
		if dryRun {
			log.Info().Str("transaction_id", t.ID).Msg("[DRY RUN] Would create Notion page")
			res.Created++
			continue
		}

		page, err := notionClient.CreatePage(ctx, databaseID, TransactionToNotionProperties(t, currency))
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", t.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("transaction_id", t.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("deleted", res.Deleted).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Transaction sync completed")

	return res, nil
}

// queryAllNotionPages pages through a whole database.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}
