package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/finance"
)

var (
	headingColor = color.New(color.Bold, color.Underline)
	dateColor    = color.New(color.BgYellow, color.FgBlack)
	expenseColor = color.New(color.BgRed, color.FgWhite)
	incomeColor  = color.New(color.BgGreen, color.FgBlack)
	labelColor   = color.New(color.BgBlue, color.FgWhite)
	pausedColor  = color.New(color.FgHiBlack)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
)

func heading(w io.Writer, format string, args ...any) {
	headingColor.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}

func amountColor(k domain.Kind) *color.Color {
	if k == domain.KindIncome {
		return incomeColor
	}
	return expenseColor
}

func printTransaction(w io.Writer, t domain.Transaction, currency string) {
	dateColor.Fprintf(w, " %10s ", t.Date)
	fmt.Fprintf(w, " %-8s %-16s %-28s ", t.Kind, t.Category, truncate(t.Source, 28))
	amountColor(t.Kind).Fprintf(w, " %12s ", finance.FormatCurrency(t.Amount, currency))
	fmt.Fprintf(w, "  %s\n", t.ID)
}

func printSubscription(w io.Writer, s domain.Subscription, currency string) {
	state := labelColor.Sprint(" active ")
	if !s.Active {
		state = pausedColor.Sprint(" paused ")
	}
	fmt.Fprint(w, state)
	fmt.Fprintf(w, " %-24s %-9s ", truncate(s.Name, 24), s.Frequency)
	expenseColor.Fprintf(w, " %12s ", finance.FormatCurrency(s.Amount, currency))
	dateColor.Fprintf(w, " next %10s ", s.NextPayment)
	fmt.Fprintf(w, "  %s\n", s.ID)
}

func printAmountLine(w io.Writer, label string, amount decimal.Decimal, currency string, c *color.Color) {
	fmt.Fprintf(w, "%-22s", label)
	c.Fprintf(w, " %14s ", finance.FormatCurrency(amount, currency))
	fmt.Fprintln(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
