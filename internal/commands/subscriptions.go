package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/finance"
)

func newSubscriptionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sub",
		Aliases: []string{"subscriptions"},
		Short:   "Track recurring charges",
	}
	cmd.AddCommand(
		newSubAddCommand(a),
		newSubListCommand(a),
		newSubToggleCommand(a),
		newSubDeleteCommand(a),
	)
	return cmd
}

func newSubAddCommand(a *app) *cobra.Command {
	var (
		amount    string
		frequency string
		next      string
		category  string
		notes     string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parsing --amount %q: %w", amount, domain.ErrInvalid)
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			s, err := st.AddSubscription(ctx, domain.SubscriptionInput{
				Name:        args[0],
				Amount:      amt,
				Frequency:   domain.Frequency(strings.ToLower(frequency)),
				NextPayment: next,
				Category:    category,
				Notes:       notes,
			})
			if err != nil {
				return err
			}
			settings, err := st.Settings(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			okColor.Fprint(out, "Added ")
			printSubscription(out, s, settings.Currency)
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount per billing period (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&frequency, "frequency", string(domain.FrequencyMonthly), "weekly, monthly, quarterly or annual")
	cmd.Flags().StringVar(&next, "next", "", "next payment date as YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("next")
	cmd.Flags().StringVar(&category, "category", "Subscriptions", "category")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")

	return cmd
}

func newSubListCommand(a *app) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
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
			subs := l.Subscriptions
			if activeOnly {
				subs = domain.ActiveOnly(subs)
			}

			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				warnColor.Fprintln(out, "No subscriptions.")
				return nil
			}
			heading(out, "%d subscription(s)", len(subs))
			for _, s := range subs {
				printSubscription(out, s, l.Settings.Currency)
			}
			fmt.Fprintln(out)
			printAmountLine(out, "Monthly (active)", finance.SubscriptionMonthlyTotal(l.Subscriptions), l.Settings.Currency, expenseColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "hide paused subscriptions")
	return cmd
}

func newSubToggleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Pause or resume a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := st.ToggleSubscription(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "paused"
			if s.Active {
				state = "active"
			}
			okColor.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", s.Name, state)
			return nil
		},
	}
}

func newSubDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteSubscription(cmd.Context(), args[0]); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "Deleted subscription %s\n", args[0])
			return nil
		},
	}
}
