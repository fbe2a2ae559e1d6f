package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/finance"
)

func newDashboardCommand(a *app) *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals, the monthly series, category breakdowns and renewals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			d, err := svc.Dashboard(cmd.Context(), months)
			if err != nil {
				return err
			}
			printDashboard(cmd, d)
			return nil
		},
	}

	cmd.Flags().IntVar(&months, "months", finance.DefaultSeriesMonths, "number of trailing months to chart")
	return cmd
}

func printDashboard(cmd *cobra.Command, d finance.Dashboard) {
	out := cmd.OutOrStdout()
	cur := d.Currency

	heading(out, "Totals")
	printAmountLine(out, "Income", d.Totals.IncomeTotal, cur, incomeColor)
	printAmountLine(out, "Expenses", d.Totals.ExpenseTotal, cur, expenseColor)
	balanceColor := incomeColor
	if d.Totals.Balance.IsNegative() {
		balanceColor = expenseColor
	}
	printAmountLine(out, "Balance", d.Totals.Balance, cur, balanceColor)
	printAmountLine(out, "Subscriptions/month", d.SubscriptionMonthly, cur, expenseColor)

	fmt.Fprintln(out)
	heading(out, "Monthly")
	for _, p := range d.Series {
		labelColor.Fprintf(out, " %s ", p.Month)
		fmt.Fprintf(out, " in %12s  out %12s  net %12s\n",
			finance.FormatCurrency(p.Income, cur),
			finance.FormatCurrency(p.Expense, cur),
			finance.FormatCurrency(p.Net, cur))
	}

	if len(d.ExpenseBreakdown) > 0 {
		fmt.Fprintln(out)
		heading(out, "Expenses by category")
		for _, s := range d.ExpenseBreakdown {
			printAmountLine(out, s.Name, s.Value, cur, expenseColor)
		}
	}
	if len(d.IncomeBreakdown) > 0 {
		fmt.Fprintln(out)
		heading(out, "Income by category")
		for _, s := range d.IncomeBreakdown {
			printAmountLine(out, s.Name, s.Value, cur, incomeColor)
		}
	}

	if len(d.UpcomingRenewals) > 0 {
		fmt.Fprintln(out)
		heading(out, "Upcoming renewals")
		for _, r := range d.UpcomingRenewals {
			dateColor.Fprintf(out, " %10s ", r.NextPayment)
			fmt.Fprintf(out, " in %2d day(s)  %-24s %12s\n", r.DaysUntil, truncate(r.Name, 24), finance.FormatCurrency(r.Amount, cur))
		}
	}
}
