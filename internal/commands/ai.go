package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/ledger"
)

func newCategorizeCommand(a *app) *cobra.Command {
	var (
		amount string
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "categorize <source>",
		Short: "Ask the AI backend which category an expense belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt := decimal.Zero
			if amount != "" {
				var err error
				if amt, err = decimal.NewFromString(amount); err != nil {
					return fmt.Errorf("parsing --amount %q: %w", amount, err)
				}
			}

			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			category, err := svc.Categorize(cmd.Context(), ledger.CategorizeInput{
				Source: args[0],
				Amount: amt,
				Notes:  notes,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s ", args[0])
			incomeColor.Fprintf(out, " %s ", category)
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "expense amount")
	cmd.Flags().StringVar(&notes, "notes", "", "notes shown to the model")
	return cmd
}

func newPredictCommand(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast spending for the coming days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			p, err := svc.Predict(ctx, days)
			if err != nil {
				return err
			}
			settings, err := svc.Repository().Settings(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if p.Fallback {
				warnColor.Fprintln(out, "Figures estimated from the ledger.")
			}
			fmt.Fprintln(out, p.Summary)
			if p.TotalEstimate != nil {
				fmt.Fprintln(out)
				printAmountLine(out, "Estimated total", *p.TotalEstimate, settings.Currency, expenseColor)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", ledger.DefaultPredictDays, "forecast window in days")
	return cmd
}

func newInsightsCommand(a *app) *cobra.Command {
	var lookback int

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize recent spending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			res, err := svc.Insights(ctx, lookback)
			if err != nil {
				return err
			}
			settings, err := svc.Repository().Settings(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			heading(out, "Last %d days", res.LookbackDays)
			for _, line := range res.Insights {
				fmt.Fprintf(out, "  • %s\n", line)
			}
			fmt.Fprintln(out)
			printAmountLine(out, "Spent", res.ExpenseTotal, settings.Currency, expenseColor)
			if res.TopCategory != "" {
				fmt.Fprintf(out, "%-22s", "Top category")
				labelColor.Fprintf(out, " %s ", res.TopCategory)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&lookback, "lookback", 0, "days to look back (default from settings)")
	return cmd
}
