package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/mintbalance/internal/ai"
	"github.com/dvloznov/mintbalance/internal/config"
	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// mockBackend is a mock implementation of ai.Backend for testing.
type mockBackend struct {
	KindValue    ai.Kind
	ReadyFunc    func() error
	CompleteFunc func(ctx context.Context, c ai.Completion) (string, error)

	prompts []string
}

func (m *mockBackend) Kind() ai.Kind { return m.KindValue }

func (m *mockBackend) Ready() error {
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return nil
}

func (m *mockBackend) Complete(ctx context.Context, c ai.Completion) (string, error) {
	m.prompts = append(m.prompts, c.Prompt)
	return m.CompleteFunc(ctx, c)
}

// mockResolver is a mock implementation of BackendResolver for testing.
type mockResolver struct {
	BackendFunc func(kind ai.Kind) (ai.Backend, error)
	requested   []ai.Kind
}

func (m *mockResolver) Backend(kind ai.Kind) (ai.Backend, error) {
	m.requested = append(m.requested, kind)
	return m.BackendFunc(kind)
}

func resolverFor(b *mockBackend) *mockResolver {
	return &mockResolver{BackendFunc: func(kind ai.Kind) (ai.Backend, error) {
		b.KindValue = kind
		return b, nil
	}}
}

func newTestService(t *testing.T, backend *mockBackend, opts ...Option) (*Service, *store.BoltStore) {
	t.Helper()
	repo, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"), store.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(repo, resolverFor(backend), opts...), repo
}

func addExpense(t *testing.T, repo store.Repository, category, source, amount, date string) {
	t.Helper()
	_, err := repo.AddTransaction(context.Background(), domain.TransactionInput{
		Kind:     domain.KindExpense,
		Category: category,
		Source:   source,
		Amount:   decimal.RequireFromString(amount),
		Date:     date,
	})
	require.NoError(t, err)
}

func TestService_Dashboard(t *testing.T) {
	svc, repo := newTestService(t, &mockBackend{})
	addExpense(t, repo, "Food", "Tesco", "40", "2025-06-01")

	d, err := svc.Dashboard(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, d.Totals.ExpenseTotal.Equal(decimal.NewFromInt(40)))
	assert.Len(t, d.Series, 3)
}

func TestService_AddTransactionAutoCategory(t *testing.T) {
	backend := &mockBackend{CompleteFunc: func(context.Context, ai.Completion) (string, error) {
		return `{"category":"Transport"}`, nil
	}}
	svc, _ := newTestService(t, backend)

	tx, err := svc.AddTransaction(context.Background(), domain.TransactionInput{
		Kind:     domain.KindExpense,
		Category: "auto",
		Source:   "Uber",
		Amount:   decimal.RequireFromString("18"),
		Date:     "2025-06-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "Transport", tx.Category)

	require.Len(t, backend.prompts, 1)
	assert.NotContains(t, backend.prompts[0], "Income")
}

func TestService_AddTransactionAutoCategoryFailureStoresNothing(t *testing.T) {
	backend := &mockBackend{ReadyFunc: func() error { return ai.ErrMissingCredential }}
	svc, repo := newTestService(t, backend)

	_, err := svc.AddTransaction(context.Background(), domain.TransactionInput{
		Kind:     domain.KindExpense,
		Category: AutoCategory,
		Source:   "Uber",
		Amount:   decimal.RequireFromString("18"),
		Date:     "2025-06-10",
	})
	assert.ErrorIs(t, err, ai.ErrMissingCredential)

	txs, err := repo.Transactions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestService_CategorizeRequiresSource(t *testing.T) {
	svc, _ := newTestService(t, &mockBackend{})
	_, err := svc.Categorize(context.Background(), CategorizeInput{Source: " "})
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestService_ModeSelection(t *testing.T) {
	backend := &mockBackend{CompleteFunc: func(context.Context, ai.Completion) (string, error) {
		return `{"category":"Food"}`, nil
	}}

	t.Run("from settings", func(t *testing.T) {
		repo, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		defer repo.Close()
		mode := domain.AIModeLocal
		_, err = repo.UpdateSettings(context.Background(), domain.SettingsPatch{AIMode: &mode})
		require.NoError(t, err)

		resolver := resolverFor(backend)
		_, err = NewService(repo, resolver).Categorize(context.Background(), CategorizeInput{Source: "Tesco"})
		require.NoError(t, err)
		assert.Equal(t, []ai.Kind{ai.KindLocal}, resolver.requested)
	})

	t.Run("forced", func(t *testing.T) {
		repo, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		defer repo.Close()

		resolver := resolverFor(backend)
		_, err = NewService(repo, resolver, WithMode(ai.KindClaude)).Categorize(context.Background(), CategorizeInput{Source: "Tesco"})
		require.NoError(t, err)
		assert.Equal(t, []ai.Kind{ai.KindClaude}, resolver.requested)
	})
}

func TestService_PredictFallsBackOnEcho(t *testing.T) {
	backend := &mockBackend{CompleteFunc: func(_ context.Context, c ai.Completion) (string, error) {
		return c.Prompt, nil
	}}
	svc, repo := newTestService(t, backend)
	addExpense(t, repo, "Food", "Tesco", "100", "2025-06-01")
	_, err := repo.AddSubscription(context.Background(), domain.SubscriptionInput{
		Name:        "Gym",
		Amount:      decimal.NewFromInt(20),
		Frequency:   domain.FrequencyMonthly,
		NextPayment: "2025-07-01",
		Category:    "Health",
	})
	require.NoError(t, err)

	p, err := svc.Predict(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, p.Fallback)
	require.NotNil(t, p.TotalEstimate)
	assert.True(t, p.TotalEstimate.Equal(decimal.NewFromInt(120)))
	assert.True(t, strings.HasPrefix(p.Summary, "Estimated total for next 90 days: "))
}

func TestService_Insights(t *testing.T) {
	backend := &mockBackend{CompleteFunc: func(context.Context, ai.Completion) (string, error) {
		return "- Food leads spending\n- Tesco is a regular", nil
	}}
	svc, repo := newTestService(t, backend)
	addExpense(t, repo, "Food", "Tesco", "30", "2025-06-10")
	addExpense(t, repo, "Transport", "Uber", "10", "2025-06-12")
	addExpense(t, repo, "Housing", "Landlord", "900", "2025-01-01")

	res, err := svc.Insights(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"Food leads spending", "Tesco is a regular"}, res.Insights)
	assert.Equal(t, 30, res.LookbackDays)
	assert.True(t, res.ExpenseTotal.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "Food", res.TopCategory)

	require.Len(t, backend.prompts, 1)
	assert.Contains(t, backend.prompts[0], "Lookback: Last 30 days")
	assert.NotContains(t, backend.prompts[0], "Landlord")
}

func TestService_InsightsNoData(t *testing.T) {
	svc, repo := newTestService(t, &mockBackend{})
	addExpense(t, repo, "Food", "Tesco", "30", "2024-01-01")

	_, err := svc.Insights(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestService_ResolverError(t *testing.T) {
	repo, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer repo.Close()

	resolver := &mockResolver{BackendFunc: func(ai.Kind) (ai.Backend, error) {
		return nil, errors.New("no backend")
	}}
	_, err = NewService(repo, resolver).Predict(context.Background(), 30)
	assert.Error(t, err)
}

func TestBackends_CachesPerKind(t *testing.T) {
	b := NewBackends(config.Default().AI)

	local1, err := b.Backend(ai.KindLocal)
	require.NoError(t, err)
	local2, err := b.Backend(ai.KindLocal)
	require.NoError(t, err)
	assert.Same(t, local1, local2)

	brokered, err := b.Backend(ai.KindBrokered)
	require.NoError(t, err)
	assert.Equal(t, ai.KindBrokered, brokered.Kind())
	assert.NotNil(t, b.Broker())

	cloud, err := b.Backend(ai.KindCloud)
	require.NoError(t, err)
	assert.ErrorIs(t, cloud.Ready(), ai.ErrMissingCredential)

	_, err = b.Backend("openai")
	assert.ErrorIs(t, err, ai.ErrUnknownBackend)
}
