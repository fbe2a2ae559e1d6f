package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/finance"
	"github.com/shopspring/decimal"
)

// DefaultMaxInsights caps insight lists when the caller does not.
const DefaultMaxInsights = 6

// Prediction is a spending forecast.
type Prediction struct {
	Summary       string           `json:"summary"`
	TotalEstimate *decimal.Decimal `json:"totalEstimate,omitempty"`
	// Fallback is true when the figures were computed from the ledger
	// instead of coming from a model.
	Fallback bool `json:"fallback"`
}

// FallbackPrediction forecasts spend for timeframe from ledger arithmetic
// alone: all recorded expenses plus one month of active subscriptions.
func FallbackPrediction(txs []domain.Transaction, subs []domain.Subscription, timeframe, currency string) Prediction {
	expenses := domain.FilterKind(txs, domain.KindExpense)
	expenseTotal := finance.ComputeTotals(expenses).ExpenseTotal

	avg := decimal.Zero
	if len(expenses) > 0 {
		avg = expenseTotal.Div(decimal.NewFromInt(int64(len(expenses))))
	}

	subMonthly := finance.SubscriptionMonthlyTotal(subs)
	total := expenseTotal.Add(subMonthly)

	summary := strings.Join([]string{
		fmt.Sprintf("Estimated total for %s: %s", timeframe, finance.FormatCurrency(total, currency)),
		fmt.Sprintf("Recent avg expense: %s (%d items)", finance.FormatCurrency(avg, currency), len(expenses)),
		fmt.Sprintf("Active subscriptions monthly: %s", finance.FormatCurrency(subMonthly, currency)),
	}, "\n")

	return Prediction{
		Summary:       summary,
		TotalEstimate: &total,
		Fallback:      true,
	}
}

type tally struct {
	name  string
	value decimal.Decimal
	count int
}

// rank orders tallies by key descending. Ties keep first-appearance order.
func rank(items []tally, key func(tally) decimal.Decimal) []tally {
	out := make([]tally, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]).GreaterThan(key(out[j]))
	})
	return out
}

// FallbackInsights derives up to limit plain-language facts from the ledger.
// Lines appear in a fixed order (total, top category, most visited
// merchant, largest expense, subscription count, average size) and lines
// with nothing to report are left out.
func FallbackInsights(txs []domain.Transaction, subs []domain.Subscription, currency string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxInsights
	}

	expenses := domain.FilterKind(txs, domain.KindExpense)
	total := decimal.Zero

	var categories, merchants []tally
	catIndex := make(map[string]int)
	merchantIndex := make(map[string]int)

	var biggest *domain.Transaction
	for i := range expenses {
		t := expenses[i]
		total = total.Add(t.Amount)

		ci, ok := catIndex[t.Category]
		if !ok {
			ci = len(categories)
			catIndex[t.Category] = ci
			categories = append(categories, tally{name: t.Category})
		}
		categories[ci].value = categories[ci].value.Add(t.Amount)

		mi, ok := merchantIndex[t.Source]
		if !ok {
			mi = len(merchants)
			merchantIndex[t.Source] = mi
			merchants = append(merchants, tally{name: t.Source})
		}
		merchants[mi].count++

		if biggest == nil || t.Amount.GreaterThan(biggest.Amount) {
			biggest = &expenses[i]
		}
	}

	insights := []string{
		fmt.Sprintf("Total expenses: %s", finance.FormatCurrency(total, currency)),
	}

	if len(categories) > 0 {
		top := rank(categories, func(t tally) decimal.Decimal { return t.value })[0]
		insights = append(insights, fmt.Sprintf("Top category: %s (%s)", top.name, finance.FormatCurrency(top.value, currency)))
	}

	if len(merchants) > 0 {
		top := rank(merchants, func(t tally) decimal.Decimal { return decimal.NewFromInt(int64(t.count)) })[0]
		plural := "s"
		if top.count == 1 {
			plural = ""
		}
		insights = append(insights, fmt.Sprintf("Most visited merchant: %s (%d time%s)", top.name, top.count, plural))
	}

	if biggest != nil && biggest.Amount.IsPositive() {
		insights = append(insights, fmt.Sprintf("Largest expense: %s (%s) at %s",
			biggest.Source, biggest.Category, finance.FormatCurrency(biggest.Amount, currency)))
	}

	if len(subs) > 0 {
		insights = append(insights, fmt.Sprintf("Active subscriptions: %d (of %d)", len(domain.ActiveOnly(subs)), len(subs)))
	}

	if len(expenses) >= 3 {
		avg := total.Div(decimal.NewFromInt(int64(len(expenses))))
		insights = append(insights, fmt.Sprintf("Avg expense size: %s", finance.FormatCurrency(avg, currency)))
	}

	if len(insights) > limit {
		insights = insights[:limit]
	}
	return insights
}
