// Package ledger ties the stored ledger to the aggregation and AI layers.
// It is the single entry point the API and CLI use for anything beyond
// plain reads and writes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/mintbalance/internal/ai"
	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/finance"
	"github.com/dvloznov/mintbalance/internal/logger"
	"github.com/dvloznov/mintbalance/internal/store"
	"github.com/shopspring/decimal"
)

// AutoCategory asks AddTransaction to pick the category with AI.
const AutoCategory = "Auto"

// DefaultPredictDays is the forecast horizon when none is given.
const DefaultPredictDays = 90

// ErrNoData is returned when an insight request has nothing to analyze.
var ErrNoData = errors.New("no expenses or subscriptions to analyze")

// Service runs dashboard and AI operations against a Repository.
type Service struct {
	repo     store.Repository
	backends BackendResolver
	policy   ai.Policy
	mode     ai.Kind
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the AI failure policy. The default is ai.DefaultPolicy.
func WithPolicy(p ai.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMode forces an AI mode regardless of the stored settings.
func WithMode(kind ai.Kind) Option {
	return func(s *Service) { s.mode = kind }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(repo store.Repository, backends BackendResolver, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		backends: backends,
		policy:   ai.DefaultPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying store.
func (s *Service) Repository() store.Repository { return s.repo }

// Dashboard aggregates the whole ledger over the trailing months.
func (s *Service) Dashboard(ctx context.Context, months int) (finance.Dashboard, error) {
	l, err := s.repo.Snapshot(ctx)
	if err != nil {
		return finance.Dashboard{}, fmt.Errorf("Dashboard: %w", err)
	}
	return finance.BuildDashboard(l, months, s.now()), nil
}

func (s *Service) gateway(ctx context.Context, settings domain.Settings, history *ai.HistoryClassifier) (*ai.Gateway, error) {
	kind := s.mode
	if kind == "" {
		kind = ai.Kind(settings.AIMode)
	}
	backend, err := s.backends.Backend(kind)
	if err != nil {
		return nil, err
	}
	return ai.NewGateway(backend,
		ai.WithPolicy(s.policy),
		ai.WithHistory(history),
		ai.WithLogger(logger.FromContext(ctx)),
	), nil
}

// CategorizeInput describes an expense to categorize.
type CategorizeInput struct {
	Source string          `json:"source"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes,omitempty"`
}

// Categorize picks a category for an expense from the user's category
// list, hinted by how past expenses at the same merchant were filed.
func (s *Service) Categorize(ctx context.Context, in CategorizeInput) (string, error) {
	if strings.TrimSpace(in.Source) == "" {
		return "", fmt.Errorf("Categorize: source is required: %w", domain.ErrInvalid)
	}

	l, err := s.repo.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("Categorize: %w", err)
	}

	g, err := s.gateway(ctx, l.Settings, ai.TrainHistory(l.Transactions))
	if err != nil {
		return "", fmt.Errorf("Categorize: %w", err)
	}

	return g.Categorize(ctx, ai.CategorizeRequest{
		Source:     strings.TrimSpace(in.Source),
		Amount:     in.Amount,
		Notes:      in.Notes,
		Currency:   l.Settings.Currency,
		Categories: expenseCategories(l.Settings.Categories),
	})
}

// expenseCategories drops "Income", which is never a valid expense
// category.
func expenseCategories(all []string) []string {
	out := make([]string, 0, len(all))
	for _, c := range all {
		if strings.EqualFold(c, "Income") {
			continue
		}
		out = append(out, c)
	}
	return out
}

// AddTransaction stores a transaction. An expense whose category is
// AutoCategory is categorized first; if that fails, nothing is stored.
func (s *Service) AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	if in.Kind == domain.KindExpense && strings.EqualFold(strings.TrimSpace(in.Category), AutoCategory) {
		category, err := s.Categorize(ctx, CategorizeInput{Source: in.Source, Amount: in.Amount, Notes: in.Notes})
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
		}
		in.Category = category
	}
	return s.repo.AddTransaction(ctx, in)
}

// Predict forecasts spending over the next days days from the whole ledger.
func (s *Service) Predict(ctx context.Context, days int) (ai.Prediction, error) {
	if days <= 0 {
		days = DefaultPredictDays
	}

	l, err := s.repo.Snapshot(ctx)
	if err != nil {
		return ai.Prediction{}, fmt.Errorf("Predict: %w", err)
	}

	g, err := s.gateway(ctx, l.Settings, nil)
	if err != nil {
		return ai.Prediction{}, fmt.Errorf("Predict: %w", err)
	}

	return g.Predict(ctx, ai.PredictRequest{
		Timeframe:     fmt.Sprintf("next %d days", days),
		Currency:      l.Settings.Currency,
		Transactions:  l.Transactions,
		Subscriptions: l.Subscriptions,
	})
}

// InsightsResult is a list of insights and the window they cover.
type InsightsResult struct {
	Insights     []string        `json:"insights"`
	LookbackDays int             `json:"lookbackDays"`
	ExpenseTotal decimal.Decimal `json:"expenseTotal"`
	TopCategory  string          `json:"topCategory,omitempty"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}

// Insights summarizes expenses from the last lookbackDays days (the
// settings default when zero) and the current subscriptions.
func (s *Service) Insights(ctx context.Context, lookbackDays int) (InsightsResult, error) {
	l, err := s.repo.Snapshot(ctx)
	if err != nil {
		return InsightsResult{}, fmt.Errorf("Insights: %w", err)
	}
	if lookbackDays <= 0 {
		lookbackDays = l.Settings.LookbackDays
	}

	now := s.now()
	expenses := domain.SortByDateDesc(domain.Since(l.Expenses(), now.AddDate(0, 0, -lookbackDays)))
	if len(expenses) == 0 && len(l.Subscriptions) == 0 {
		return InsightsResult{}, fmt.Errorf("Insights: %w", ErrNoData)
	}

	g, err := s.gateway(ctx, l.Settings, nil)
	if err != nil {
		return InsightsResult{}, fmt.Errorf("Insights: %w", err)
	}

	lines, err := g.Insights(ctx, ai.InsightsRequest{
		Currency:      l.Settings.Currency,
		LookbackLabel: fmt.Sprintf("Last %d days", lookbackDays),
		FirstName:     l.Settings.FirstName,
		MaxInsights:   ai.DefaultMaxInsights,
		Transactions:  expenses,
		Subscriptions: l.Subscriptions,
	})
	if err != nil {
		return InsightsResult{}, err
	}

	res := InsightsResult{
		Insights:     lines,
		LookbackDays: lookbackDays,
		ExpenseTotal: finance.ComputeTotals(expenses).ExpenseTotal,
		GeneratedAt:  now.UTC(),
	}
	if breakdown := finance.CategoryBreakdown(expenses, domain.KindExpense); len(breakdown) > 0 {
		top := breakdown[0]
		for _, sl := range breakdown[1:] {
			if sl.Value.GreaterThan(top.Value) {
				top = sl
			}
		}
		res.TopCategory = top.Name
	}
	return res, nil
}
