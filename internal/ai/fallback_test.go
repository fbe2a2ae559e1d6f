package ai

import (
	"strings"
	"testing"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(kind domain.Kind, category, source, amount, date string) domain.Transaction {
	return domain.Transaction{
		Kind:     kind,
		Category: category,
		Source:   source,
		Amount:   decimal.RequireFromString(amount),
		Date:     date,
	}
}

func sub(name, amount string, freq domain.Frequency, active bool) domain.Subscription {
	return domain.Subscription{
		Name:        name,
		Amount:      decimal.RequireFromString(amount),
		Frequency:   freq,
		NextPayment: "2025-07-01",
		Active:      active,
	}
}

func TestFallbackPrediction_Total(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.KindExpense, "Food", "Tesco", "100", "2025-06-01"),
		tx(domain.KindIncome, "Income", "Employer", "2500", "2025-06-01"),
	}
	subs := []domain.Subscription{sub("Gym", "20", domain.FrequencyMonthly, true)}

	p := FallbackPrediction(txs, subs, "next month", "USD")

	require.NotNil(t, p.TotalEstimate)
	assert.True(t, p.TotalEstimate.Equal(decimal.NewFromInt(120)), "got %s", p.TotalEstimate)
	assert.True(t, p.Fallback)

	lines := strings.Split(p.Summary, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Estimated total for next month: "))
	assert.Contains(t, lines[1], "(1 items)")
	assert.True(t, strings.HasPrefix(lines[2], "Active subscriptions monthly: "))
}

func TestFallbackPrediction_Empty(t *testing.T) {
	p := FallbackPrediction(nil, nil, "next week", "EUR")

	require.NotNil(t, p.TotalEstimate)
	assert.True(t, p.TotalEstimate.IsZero())
	assert.Contains(t, p.Summary, "(0 items)")
}

func TestFallbackPrediction_Deterministic(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.KindExpense, "Food", "Tesco", "12.40", "2025-06-01"),
		tx(domain.KindExpense, "Transport", "Uber", "18.00", "2025-06-03"),
	}
	subs := []domain.Subscription{sub("Netflix", "15.49", domain.FrequencyMonthly, true)}

	a := FallbackPrediction(txs, subs, "next month", "GBP")
	b := FallbackPrediction(txs, subs, "next month", "GBP")
	assert.Equal(t, a.Summary, b.Summary)
	assert.True(t, a.TotalEstimate.Equal(*b.TotalEstimate))
}

func TestFallbackInsights(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.KindExpense, "Food", "Tesco", "30", "2025-06-01"),
		tx(domain.KindExpense, "Food", "Tesco", "20", "2025-06-02"),
		tx(domain.KindExpense, "Transport", "Uber", "60", "2025-06-03"),
		tx(domain.KindIncome, "Income", "Employer", "1000", "2025-06-01"),
	}
	subs := []domain.Subscription{
		sub("Netflix", "15", domain.FrequencyMonthly, true),
		sub("Paper", "5", domain.FrequencyWeekly, false),
	}

	got := FallbackInsights(txs, subs, "USD", 0)
	require.Len(t, got, 6)

	assert.True(t, strings.HasPrefix(got[0], "Total expenses: "))
	assert.Contains(t, got[0], "110")
	assert.True(t, strings.HasPrefix(got[1], "Top category: Transport ("))
	assert.Equal(t, "Most visited merchant: Tesco (2 times)", got[2])
	assert.True(t, strings.HasPrefix(got[3], "Largest expense: Uber (Transport) at "))
	assert.Equal(t, "Active subscriptions: 1 (of 2)", got[4])
	assert.True(t, strings.HasPrefix(got[5], "Avg expense size: "))

	again := FallbackInsights(txs, subs, "USD", 0)
	assert.Equal(t, got, again)
}

func TestFallbackInsights_Limit(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.KindExpense, "Food", "Tesco", "30", "2025-06-01"),
	}

	got := FallbackInsights(txs, nil, "USD", 2)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[1], "Top category: Food"))
}

func TestFallbackInsights_NoData(t *testing.T) {
	got := FallbackInsights(nil, nil, "USD", 6)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "Total expenses: "))
}

func TestFallbackInsights_SingleVisit(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.KindExpense, "Food", "Tesco", "5", "2025-06-01"),
		tx(domain.KindExpense, "Food", "Lidl", "5", "2025-06-02"),
	}

	got := FallbackInsights(txs, nil, "USD", 6)
	assert.Contains(t, got, "Most visited merchant: Tesco (1 time)")
}
