package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBackend is a mock implementation of Backend for testing.
type mockBackend struct {
	KindValue    Kind
	ReadyFunc    func() error
	CompleteFunc func(ctx context.Context, c Completion) (string, error)

	calls []Completion
}

func (m *mockBackend) Kind() Kind {
	if m.KindValue == "" {
		return KindCloud
	}
	return m.KindValue
}

func (m *mockBackend) Ready() error {
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return nil
}

func (m *mockBackend) Complete(ctx context.Context, c Completion) (string, error) {
	m.calls = append(m.calls, c)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, c)
	}
	return "", nil
}

func replying(text string) func(context.Context, Completion) (string, error) {
	return func(context.Context, Completion) (string, error) { return text, nil }
}

func echoing(_ context.Context, c Completion) (string, error) { return c.Prompt, nil }

func categorizeReq(source string) CategorizeRequest {
	return CategorizeRequest{
		Source:     source,
		Amount:     decimal.RequireFromString("12.50"),
		Currency:   "USD",
		Categories: testCategories,
	}
}

func TestGateway_Categorize(t *testing.T) {
	tests := []struct {
		name   string
		source string
		reply  string
		want   string
	}{
		{"json answer", "Tesco", `{"category":"Food"}`, "Food"},
		{"prose answer", "Shell", "Probably transport.", "Transport"},
		{"unmatched answer", "Mystery", "Groceries", OtherCategory},
		{"hardware override", "Laptop World", `{"category":"Other"}`, "Tech"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{CompleteFunc: replying(tt.reply)}
			g := NewGateway(backend)

			got, err := g.Categorize(context.Background(), categorizeReq(tt.source))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, backend.calls, 1)
			c := backend.calls[0]
			assert.InDelta(t, 0.1, c.Temperature, 1e-6)
			assert.Equal(t, 64, c.MaxTokens)
			assert.Contains(t, c.Prompt, "Merchant: "+tt.source)
			assert.Contains(t, c.Prompt, "- Notes: None")
		})
	}
}

func TestGateway_CategorizePropagatesFailures(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		backend := &mockBackend{
			ReadyFunc: func() error { return fmt.Errorf("gemini: %w", ErrMissingCredential) },
		}
		_, err := NewGateway(backend).Categorize(context.Background(), categorizeReq("Tesco"))
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Empty(t, backend.calls)
	})

	t.Run("backend error", func(t *testing.T) {
		backend := &mockBackend{
			CompleteFunc: func(context.Context, Completion) (string, error) {
				return "", &BackendError{Backend: KindCloud, Status: 500, Message: "internal"}
			},
		}
		_, err := NewGateway(backend).Categorize(context.Background(), categorizeReq("Tesco"))
		var be *BackendError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, 500, be.Status)
	})

	t.Run("echo", func(t *testing.T) {
		backend := &mockBackend{CompleteFunc: echoing}
		_, err := NewGateway(backend).Categorize(context.Background(), categorizeReq("Tesco"))
		assert.ErrorIs(t, err, ErrUninterpretable)
	})

	t.Run("empty", func(t *testing.T) {
		backend := &mockBackend{CompleteFunc: replying("  ")}
		_, err := NewGateway(backend).Categorize(context.Background(), categorizeReq("Tesco"))
		assert.ErrorIs(t, err, ErrUninterpretable)
	})
}

func TestGateway_CategorizeFallbackPolicy(t *testing.T) {
	buf := &bytes.Buffer{}
	backend := &mockBackend{
		CompleteFunc: func(context.Context, Completion) (string, error) {
			return "", transportError(KindCloud, errors.New("dial tcp: refused"))
		},
	}
	g := NewGateway(backend,
		WithPolicy(Policy{Categorize: Fallback, Predict: Fallback, Insights: Fallback}),
		WithLogger(logger.NewWithWriter(buf)),
	)

	got, err := g.Categorize(context.Background(), categorizeReq("Gadget GPU Shop"))
	require.NoError(t, err)
	assert.Equal(t, "Tech", got)
	assert.Contains(t, buf.String(), "Categorization failed")

	got, err = g.Categorize(context.Background(), categorizeReq("Corner Store"))
	require.NoError(t, err)
	assert.Equal(t, OtherCategory, got)
}

func TestGateway_CategorizeUsesHistoryHint(t *testing.T) {
	history := TrainHistory([]domain.Transaction{
		tx(domain.KindExpense, "Food", "Tesco", "12", "2025-06-01"),
		tx(domain.KindExpense, "Food", "Tesco", "8", "2025-06-03"),
		tx(domain.KindExpense, "Transport", "Shell", "40", "2025-06-02"),
	})
	backend := &mockBackend{CompleteFunc: replying(`{"category":"Food"}`)}
	g := NewGateway(backend, WithHistory(history))

	_, err := g.Categorize(context.Background(), categorizeReq("Tesco Express"))
	require.NoError(t, err)
	require.Len(t, backend.calls, 1)
	assert.Contains(t, backend.calls[0].Prompt, "filed under: Food")
}

func predictReq() PredictRequest {
	return PredictRequest{
		Timeframe: "next month",
		Currency:  "USD",
		Transactions: []domain.Transaction{
			tx(domain.KindExpense, "Food", "Tesco", "100", "2025-06-01"),
		},
		Subscriptions: []domain.Subscription{
			sub("Gym", "20", domain.FrequencyMonthly, true),
		},
	}
}

func TestGateway_Predict(t *testing.T) {
	reply := "- Food steady\n- Gym renews\nEstimated total: 1,250.00"
	backend := &mockBackend{CompleteFunc: replying(reply)}

	p, err := NewGateway(backend).Predict(context.Background(), predictReq())
	require.NoError(t, err)
	assert.False(t, p.Fallback)
	assert.Equal(t, reply, p.Summary)
	require.NotNil(t, p.TotalEstimate)
	assert.True(t, p.TotalEstimate.Equal(decimal.NewFromInt(1250)))

	require.Len(t, backend.calls, 1)
	assert.InDelta(t, 0.3, backend.calls[0].Temperature, 1e-6)
	assert.Equal(t, 400, backend.calls[0].MaxTokens)
	assert.Contains(t, backend.calls[0].Prompt, "You are a financial forecaster")
}

func TestGateway_PredictFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		backend *mockBackend
	}{
		{"echo of prompt", &mockBackend{CompleteFunc: echoing}},
		{"backend error", &mockBackend{CompleteFunc: func(context.Context, Completion) (string, error) {
			return "", &BackendError{Backend: KindCloud, Status: 503, Message: "unavailable"}
		}}},
		{"missing credential", &mockBackend{ReadyFunc: func() error { return ErrMissingCredential }}},
		{"local instruction echo", &mockBackend{KindValue: KindLocal, CompleteFunc: replying("Summarize upcoming expenses for timeframe next month")}},
		{"local answer too short", &mockBackend{KindValue: KindLocal, CompleteFunc: replying("ok.")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

			p, err := NewGateway(tt.backend).Predict(ctx, predictReq())
			require.NoError(t, err)
			assert.True(t, p.Fallback)
			require.NotNil(t, p.TotalEstimate)
			assert.True(t, p.TotalEstimate.Equal(decimal.NewFromInt(120)), "got %s", p.TotalEstimate)
			assert.True(t, strings.HasPrefix(p.Summary, "Estimated total for next month: "))
			assert.Contains(t, buf.String(), "ledger fallback")
		})
	}
}

func TestGateway_PredictWithoutTotalKeepsModelText(t *testing.T) {
	backend := &mockBackend{CompleteFunc: replying("Expect a quiet month with the gym renewal.")}

	p, err := NewGateway(backend).Predict(context.Background(), predictReq())
	require.NoError(t, err)
	assert.Equal(t, "Expect a quiet month with the gym renewal.", p.Summary)
	assert.True(t, p.Fallback)
	require.NotNil(t, p.TotalEstimate)
	assert.True(t, p.TotalEstimate.Equal(decimal.NewFromInt(120)))
}

func TestGateway_PredictPropagatePolicy(t *testing.T) {
	backend := &mockBackend{ReadyFunc: func() error { return ErrMissingCredential }}
	g := NewGateway(backend, WithPolicy(Policy{Categorize: Propagate, Predict: Propagate, Insights: Propagate}))

	_, err := g.Predict(context.Background(), predictReq())
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = g.Insights(context.Background(), InsightsRequest{Currency: "USD"})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestGateway_PredictSmallModelWording(t *testing.T) {
	backend := &mockBackend{KindValue: KindBrokered, CompleteFunc: replying("- Steady\nEstimated total: 130")}

	p, err := NewGateway(backend).Predict(context.Background(), predictReq())
	require.NoError(t, err)
	assert.False(t, p.Fallback)
	assert.Contains(t, backend.calls[0].Prompt, "Summarize upcoming expenses")
}

func insightsReq() InsightsRequest {
	return InsightsRequest{
		Currency:      "USD",
		LookbackLabel: "last 30 days",
		FirstName:     "Sam",
		Transactions: []domain.Transaction{
			tx(domain.KindExpense, "Food", "Tesco", "30", "2025-06-01"),
			tx(domain.KindExpense, "Food", "Tesco", "20", "2025-06-02"),
			tx(domain.KindExpense, "Transport", "Uber", "60", "2025-06-03"),
		},
	}
}

func TestGateway_Insights(t *testing.T) {
	backend := &mockBackend{CompleteFunc: replying("- Transport is your top category\n- Tesco twice this month\n- Dining steady\n- a\n- b\n- c\n- d")}

	got, err := NewGateway(backend).Insights(context.Background(), insightsReq())
	require.NoError(t, err)
	assert.Len(t, got, DefaultMaxInsights)
	assert.Equal(t, "Transport is your top category", got[0])

	c := backend.calls[0]
	assert.InDelta(t, 0.6, c.Temperature, 1e-6)
	assert.Equal(t, 500, c.MaxTokens)
	assert.Contains(t, c.Prompt, "Generate up to 6 concise spending insights")
	assert.Contains(t, c.Prompt, "for Sam.")
}

func TestGateway_InsightsFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		backend *mockBackend
	}{
		{"echo of prompt", &mockBackend{CompleteFunc: echoing}},
		{"blank answer", &mockBackend{CompleteFunc: replying("\n \n")}},
		{"single instruction line", &mockBackend{CompleteFunc: replying("Generate up to 6 concise spending insights")}},
		{"transport failure", &mockBackend{CompleteFunc: func(context.Context, Completion) (string, error) {
			return "", transportError(KindLocal, errors.New("connection refused"))
		}}},
	}

	want := FallbackInsights(insightsReq().Transactions, nil, "USD", DefaultMaxInsights)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewGateway(tt.backend).Insights(context.Background(), insightsReq())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestGateway_Options(t *testing.T) {
	backend := &mockBackend{KindValue: KindLocal}
	g := NewGateway(backend)
	assert.Equal(t, DefaultPolicy(), g.Policy())
	assert.Same(t, backend, g.Backend())

	custom := Profile{PredictTransactions: 1, Forecaster: true}
	backend.CompleteFunc = replying("Estimated total: 5")
	g = NewGateway(backend, WithProfile(custom))
	_, err := g.Predict(context.Background(), predictReq())
	require.NoError(t, err)
	assert.Contains(t, backend.calls[0].Prompt, "You are a financial forecaster")
}
