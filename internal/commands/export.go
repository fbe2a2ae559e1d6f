package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/infra/bigquery"
	"github.com/dvloznov/mintbalance/internal/notionsync"
)

func newExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy transactions to BigQuery or Notion",
	}
	cmd.AddCommand(newExportBigQueryCommand(a), newExportNotionCommand(a))
	return cmd
}

func newExportBigQueryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bigquery",
		Short: "Stream every transaction into the analytics table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bq := a.cfg.BigQuery
			if bq.ProjectID == "" {
				return fmt.Errorf("bigquery.project_id (or GOOGLE_CLOUD_PROJECT) is required")
			}

			ctx := cmd.Context()
			repo, err := bigquery.NewBigQueryTransactionRepository(ctx, bq.ProjectID, bq.Dataset, bq.Table)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.EnsureTable(ctx); err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			l, err := st.Snapshot(ctx)
			if err != nil {
				return err
			}
			res, err := bigquery.ExportLedger(ctx, repo, l, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			okColor.Fprintf(out, "Exported %d transaction(s) to %s.%s.%s\n", res.Exported, bq.ProjectID, bq.Dataset, bq.Table)
			for _, id := range res.Skipped {
				warnColor.Fprintf(out, "Skipped %s\n", id)
			}
			return nil
		},
	}
}

func newExportNotionCommand(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "notion",
		Short: "Mirror transactions into a Notion database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := a.cfg.Notion
			if n.Token == "" || n.DatabaseID == "" {
				return fmt.Errorf("notion.token and notion.database_id (or NOTION_TOKEN and NOTION_DATABASE_ID) are required")
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			l, err := st.Snapshot(ctx)
			if err != nil {
				return err
			}

			client := notionsync.NewNotionClient(n.Token)
			res, err := notionsync.SyncTransactions(ctx, client, n.DatabaseID, l.Transactions, l.Settings.Currency, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.DryRun {
				warnColor.Fprintln(out, "Dry run, nothing was changed.")
			}
			fmt.Fprintf(out, "Created %d, archived %d, unchanged %d, failed %d\n", res.Created, res.Deleted, res.Skipped, res.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing to Notion")
	return cmd
}
