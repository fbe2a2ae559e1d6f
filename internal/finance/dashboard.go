package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Renewal is an upcoming subscription charge with its distance from today.
type Renewal struct {
	domain.Subscription
	DaysUntil int `json:"daysUntil"`
}

// Dashboard bundles every figure the overview screen shows.
type Dashboard struct {
	Totals              Totals          `json:"totals"`
	Series              []MonthPoint    `json:"series"`
	ExpenseBreakdown    []Slice         `json:"expenseBreakdown"`
	IncomeBreakdown     []Slice         `json:"incomeBreakdown"`
	SubscriptionMonthly decimal.Decimal `json:"subscriptionMonthly"`
	UpcomingRenewals    []Renewal       `json:"upcomingRenewals"`
	Currency            string          `json:"currency"`
}

// BuildDashboard computes the overview for a ledger as of now.
func BuildDashboard(l domain.Ledger, months int, now time.Time) Dashboard {
	upcoming := UpcomingRenewals(l.Subscriptions, now)
	renewals := make([]Renewal, 0, len(upcoming))
	for _, s := range upcoming {
		due, _ := s.Due()
		renewals = append(renewals, Renewal{Subscription: s, DaysUntil: DaysBetween(now, due)})
	}

	return Dashboard{
		Totals:              ComputeTotals(l.Transactions),
		Series:              MonthlySeries(l.Transactions, months, now),
		ExpenseBreakdown:    CategoryBreakdown(l.Transactions, domain.KindExpense),
		IncomeBreakdown:     CategoryBreakdown(l.Transactions, domain.KindIncome),
		SubscriptionMonthly: SubscriptionMonthlyTotal(l.Subscriptions),
		UpcomingRenewals:    renewals,
		Currency:            l.Settings.Currency,
	}
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders amount with the symbol of the ISO 4217 code, e.g.
// "$1,234.50". Unknown codes fall back to "XYZ 1234.50".
func FormatCurrency(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "USD"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %s", code, amount.StringFixed(2))
	}

	f, _ := amount.Round(2).Float64()
	s := printer.Sprint(currency.Symbol(unit.Amount(f)))
	// x/text separates symbol and number with a space; the UI does not.
	return strings.Replace(s, " ", "", 1)
}
