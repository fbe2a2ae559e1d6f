package ai

import (
	"testing"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryClassifier(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.KindExpense, "Food", "Tesco Metro", "12", "2025-06-01"),
		tx(domain.KindExpense, "Food", "Tesco Extra", "40", "2025-06-05"),
		tx(domain.KindExpense, "Food", "Tesco", "9", "2025-06-09"),
		tx(domain.KindExpense, "Transport", "Shell Garage", "60", "2025-06-02"),
		tx(domain.KindExpense, "Transport", "Shell", "55", "2025-06-12"),
		tx(domain.KindIncome, "Income", "Tesco Payroll", "2000", "2025-06-30"),
	}

	h := TrainHistory(txs)
	require.NotNil(t, h)

	got, ok := h.Suggest("TESCO STORES 2231")
	require.True(t, ok)
	assert.Equal(t, "Food", got)

	got, ok = h.Suggest("Shell")
	require.True(t, ok)
	assert.Equal(t, "Transport", got)

	_, ok = h.Suggest("Brand New Cafe")
	assert.False(t, ok)
}

func TestTrainHistory_NeedsTwoCategories(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.KindExpense, "Food", "Tesco", "12", "2025-06-01"),
		tx(domain.KindExpense, "Food", "Lidl", "8", "2025-06-02"),
	}

	h := TrainHistory(txs)
	assert.Nil(t, h)

	_, ok := h.Suggest("Tesco")
	assert.False(t, ok)
}
