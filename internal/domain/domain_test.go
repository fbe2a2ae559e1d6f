package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func TestNewTransaction(t *testing.T) {
	tests := []struct {
		name    string
		in      TransactionInput
		wantErr bool
	}{
		{
			name: "valid expense",
			in:   TransactionInput{Kind: KindExpense, Category: "Food", Source: "Grocer", Amount: decimal.NewFromInt(12), Date: "2025-03-14"},
		},
		{
			name:    "zero amount",
			in:      TransactionInput{Kind: KindExpense, Category: "Food", Source: "Grocer", Amount: decimal.Zero, Date: "2025-03-14"},
			wantErr: true,
		},
		{
			name:    "negative amount",
			in:      TransactionInput{Kind: KindIncome, Category: "Income", Source: "Employer", Amount: decimal.NewFromInt(-5), Date: "2025-03-14"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			in:      TransactionInput{Kind: "transfer", Category: "Food", Source: "Grocer", Amount: decimal.NewFromInt(1), Date: "2025-03-14"},
			wantErr: true,
		},
		{
			name:    "bad date",
			in:      TransactionInput{Kind: KindExpense, Category: "Food", Source: "Grocer", Amount: decimal.NewFromInt(1), Date: "14/03/2025"},
			wantErr: true,
		},
		{
			name:    "missing source",
			in:      TransactionInput{Kind: KindExpense, Category: "Food", Amount: decimal.NewFromInt(1), Date: "2025-03-14"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewTransaction(tt.in, testNow)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalid))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tx.ID)
			assert.Equal(t, testNow, tx.CreatedAt)
			assert.Equal(t, tx.CreatedAt, tx.UpdatedAt)
		})
	}
}

func TestMonthlyEquivalent(t *testing.T) {
	tests := []struct {
		freq Frequency
		in   string
		want string
	}{
		{FrequencyWeekly, "10", "43.45"},
		{FrequencyMonthly, "20", "20"},
		{FrequencyQuarterly, "30", "10"},
		{FrequencyAnnual, "120", "10"},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			got := MonthlyEquivalent(decimal.RequireFromString(tt.in), tt.freq)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestSortByDateDesc(t *testing.T) {
	txs := []Transaction{
		{ID: "a", Date: "2025-01-01"},
		{ID: "b", Date: "2025-02-01"},
		{ID: "c", Date: "2025-01-01"},
	}

	got := SortByDateDesc(txs)

	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
	assert.Equal(t, "a", txs[0].ID, "input must not be reordered")
}

func TestSince(t *testing.T) {
	txs := []Transaction{
		{ID: "old", Date: "2025-01-01"},
		{ID: "edge", Date: "2025-02-13"},
		{ID: "new", Date: "2025-03-01"},
		{ID: "broken", Date: "not-a-date"},
	}

	got := Since(txs, testNow.AddDate(0, 0, -30))

	var ids []string
	for _, tx := range got {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"edge", "new"}, ids)
}

func TestSettingsNormalizeAndValidate(t *testing.T) {
	s := Settings{Currency: " eur "}.Normalize()

	assert.Equal(t, "EUR", s.Currency)
	assert.Equal(t, AIModeCloud, s.AIMode)
	assert.Equal(t, 30, s.LookbackDays)
	assert.Equal(t, DefaultCategories, s.Categories)
	require.NoError(t, s.Validate())

	s.LookbackDays = 45
	assert.ErrorIs(t, s.Validate(), ErrInvalid)

	s = DefaultSettings()
	s.Currency = "ZZZ1"
	assert.ErrorIs(t, s.Validate(), ErrInvalid)
}
