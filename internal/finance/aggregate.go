// Package finance computes dashboard figures from a ledger snapshot. Every
// function here is pure: no I/O, no clock reads (callers pass now).
package finance

import (
	"sort"
	"time"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// DefaultSeriesMonths is the number of trailing months charted when the
	// caller does not ask for a specific count.
	DefaultSeriesMonths = 6

	// RenewalWindowDays bounds how far ahead UpcomingRenewals looks.
	RenewalWindowDays = 45
)

// Totals summarizes all income and expenses in a ledger.
type Totals struct {
	IncomeTotal  decimal.Decimal `json:"incomeTotal"`
	ExpenseTotal decimal.Decimal `json:"expenseTotal"`
	Balance      decimal.Decimal `json:"balance"`
}

// MonthPoint is one bar of the monthly income/expense chart.
type MonthPoint struct {
	Month   string          `json:"month"`
	Start   string          `json:"start"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// Slice is one category's share of a breakdown.
type Slice struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// ComputeTotals sums income and expense amounts.
func ComputeTotals(txs []domain.Transaction) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		switch t.Kind {
		case domain.KindIncome:
			income = income.Add(t.Amount)
		case domain.KindExpense:
			expense = expense.Add(t.Amount)
		}
	}
	return Totals{
		IncomeTotal:  income,
		ExpenseTotal: expense,
		Balance:      income.Sub(expense),
	}
}

// MonthlySeries buckets transactions into the trailing months calendar
// months ending with the month containing now, oldest first. Month bounds
// are inclusive on both ends. Transactions with unparseable dates are
// skipped.
func MonthlySeries(txs []domain.Transaction, months int, now time.Time) []MonthPoint {
	if months <= 0 {
		months = DefaultSeriesMonths
	}

	points := make([]MonthPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		start := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)

		income, expense := decimal.Zero, decimal.Zero
		for _, t := range txs {
			d, ok := t.Day()
			if !ok || d.Before(start) || d.After(end) {
				continue
			}
			switch t.Kind {
			case domain.KindIncome:
				income = income.Add(t.Amount)
			case domain.KindExpense:
				expense = expense.Add(t.Amount)
			}
		}

		points = append(points, MonthPoint{
			Month:   start.Format("Jan"),
			Start:   start.Format(domain.DateLayout),
			Income:  income,
			Expense: expense,
			Net:     income.Sub(expense),
		})
	}
	return points
}

// CategoryBreakdown groups transactions of kind by category. Slices come
// back in order of each category's first appearance.
func CategoryBreakdown(txs []domain.Transaction, kind domain.Kind) []Slice {
	index := make(map[string]int)
	var out []Slice
	for _, t := range txs {
		if t.Kind != kind {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, Slice{Name: t.Category, Value: decimal.Zero})
		}
		out[i].Value = out[i].Value.Add(t.Amount)
	}
	return out
}

// SubscriptionMonthlyTotal sums the monthly cost of active subscriptions.
func SubscriptionMonthlyTotal(subs []domain.Subscription) decimal.Decimal {
	total := decimal.Zero
	for _, s := range subs {
		if !s.Active {
			continue
		}
		total = total.Add(s.MonthlyAmount())
	}
	return total
}

// UpcomingRenewals returns active subscriptions due between today and
// RenewalWindowDays from today inclusive, soonest first.
func UpcomingRenewals(subs []domain.Subscription, now time.Time) []domain.Subscription {
	today := truncateDay(now)

	var out []domain.Subscription
	for _, s := range subs {
		if !s.Active {
			continue
		}
		due, ok := s.Due()
		if !ok {
			continue
		}
		days := DaysBetween(today, due)
		if days < 0 || days > RenewalWindowDays {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextPayment < out[j].NextPayment
	})
	return out
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(truncateDay(b).Sub(truncateDay(a)).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
