package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/mintbalance/internal/domain"
)

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change ledger settings",
	}
	cmd.AddCommand(newSettingsShowCommand(a), newSettingsSetCommand(a))
	return cmd
}

func newSettingsShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := st.Settings(cmd.Context())
			if err != nil {
				return err
			}
			printSettings(cmd, s)
			return nil
		},
	}
}

func newSettingsSetCommand(a *app) *cobra.Command {
	var (
		currency   string
		firstName  string
		lastName   string
		email      string
		aiMode     string
		categories []string
		lookback   int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only the flags given are updated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("currency") {
				patch.Currency = &currency
			}
			if flags.Changed("first-name") {
				patch.FirstName = &firstName
			}
			if flags.Changed("last-name") {
				patch.LastName = &lastName
			}
			if flags.Changed("email") {
				patch.Email = &email
			}
			if flags.Changed("ai-mode") {
				mode := domain.AIMode(strings.ToLower(aiMode))
				patch.AIMode = &mode
			}
			if flags.Changed("categories") {
				patch.Categories = categories
			}
			if flags.Changed("lookback") {
				patch.LookbackDays = &lookback
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := st.UpdateSettings(cmd.Context(), patch)
			if err != nil {
				return err
			}
			okColor.Fprintln(cmd.OutOrStdout(), "Settings updated.")
			printSettings(cmd, s)
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 currency code")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name used in insights")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&aiMode, "ai-mode", "", "cloud, claude, brokered or local")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "comma-separated category list")
	cmd.Flags().IntVar(&lookback, "lookback", 0, "insights lookback in days (30, 60 or 90)")

	return cmd
}

func printSettings(cmd *cobra.Command, s domain.Settings) {
	out := cmd.OutOrStdout()
	row := func(label, value string) {
		labelColor.Fprintf(out, " %-12s ", label)
		fmt.Fprintf(out, " %s\n", value)
	}

	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	if name != "" {
		row("Name", name)
	}
	if s.Email != "" {
		row("Email", s.Email)
	}
	row("Currency", s.Currency)
	row("AI mode", string(s.AIMode))
	row("Lookback", fmt.Sprintf("%d days", s.LookbackDays))
	row("Categories", strings.Join(s.Categories, ", "))
}
