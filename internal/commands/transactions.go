package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/ledger"
)

func newTransactionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Add, list and delete transactions",
	}
	cmd.AddCommand(newTxAddCommand(a), newTxListCommand(a), newTxDeleteCommand(a))
	return cmd
}

func newTxAddCommand(a *app) *cobra.Command {
	var (
		kind     string
		category string
		amount   string
		date     string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "add <source>",
		Short: "Record a transaction",
		Long: `Record a transaction. Expenses filed under the "Auto" category are
categorized by the configured AI backend before they are stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing --amount %q: %w", amount, domain.ErrInvalid)
			}
			if date == "" {
				date = time.Now().Format(domain.DateLayout)
			}

			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			settings, err := svc.Repository().Settings(ctx)
			if err != nil {
				return err
			}

			t, err := svc.AddTransaction(ctx, domain.TransactionInput{
				Kind:     domain.Kind(strings.ToLower(kind)),
				Category: category,
				Source:   args[0],
				Amount:   amt,
				Date:     date,
				Notes:    notes,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			okColor.Fprint(out, "Added ")
			printTransaction(out, t, settings.Currency)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "type", string(domain.KindExpense), "income or expense")
	cmd.Flags().StringVar(&category, "category", ledger.AutoCategory, `category, or "Auto" to let the AI pick one`)
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50 (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")

	return cmd
}

func newTxListCommand(a *app) *cobra.Command {
	var (
		kind     string
		category string
		since    string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			l, err := st.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			txs := domain.SortByDateDesc(l.Transactions)
			if kind != "" {
				k := domain.Kind(strings.ToLower(kind))
				if !k.Valid() {
					return fmt.Errorf("--type %q: %w", kind, domain.ErrInvalid)
				}
				txs = domain.FilterKind(txs, k)
			}
			if since != "" {
				cutoff, err := domain.ParseDate(since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				txs = domain.Since(txs, cutoff)
			}
			if category != "" {
				filtered := txs[:0:0]
				for _, t := range txs {
					if strings.EqualFold(t.Category, category) {
						filtered = append(filtered, t)
					}
				}
				txs = filtered
			}
			if limit > 0 && len(txs) > limit {
				txs = txs[:limit]
			}

			out := cmd.OutOrStdout()
			if len(txs) == 0 {
				warnColor.Fprintln(out, "No transactions.")
				return nil
			}
			heading(out, "%d transaction(s)", len(txs))
			for _, t := range txs {
				printTransaction(out, t, l.Settings.Currency)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "type", "", "only income or expense")
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	cmd.Flags().StringVar(&since, "since", "", "only on or after YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many")

	return cmd
}

func newTxDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteTransaction(cmd.Context(), args[0]); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "Deleted transaction %s\n", args[0])
			return nil
		},
	}
}
