package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/mintbalance/internal/logger"
	"github.com/rs/zerolog"
)

// FailureMode says what an operation does when its backend fails.
type FailureMode string

const (
	// Propagate returns the failure to the caller.
	Propagate FailureMode = "propagate"
	// Fallback substitutes a result computed from the ledger and logs the
	// failure.
	Fallback FailureMode = "fallback"
)

// Policy holds the failure mode of each operation.
type Policy struct {
	Categorize FailureMode
	Predict    FailureMode
	Insights   FailureMode
}

// DefaultPolicy surfaces categorization failures to the user, who must
// pick a category by hand, and quietly falls back for forecasts and
// insights.
func DefaultPolicy() Policy {
	return Policy{
		Categorize: Propagate,
		Predict:    Fallback,
		Insights:   Fallback,
	}
}

// Gateway runs AI operations against one backend.
type Gateway struct {
	backend Backend
	profile Profile
	policy  Policy
	history *HistoryClassifier
	log     *zerolog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

// WithProfile overrides the backend's default prompt profile.
func WithProfile(p Profile) Option {
	return func(g *Gateway) { g.profile = p }
}

// WithHistory adds merchant hints from past categorizations to
// categorization prompts.
func WithHistory(h *HistoryClassifier) Option {
	return func(g *Gateway) { g.history = h }
}

// WithLogger sets the logger used for fallback reports. Without it the
// logger is taken from the request context.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.log = &l }
}

// NewGateway creates a gateway for backend.
func NewGateway(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		profile: ProfileFor(backend.Kind()),
		policy:  DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backend returns the backend the gateway dispatches to.
func (g *Gateway) Backend() Backend { return g.backend }

// Policy returns the gateway's failure policy.
func (g *Gateway) Policy() Policy { return g.policy }

func (g *Gateway) logger(ctx context.Context) zerolog.Logger {
	if g.log != nil {
		return *g.log
	}
	return logger.FromContext(ctx)
}

// Categorize picks one of req.Categories for an expense. Under the default
// policy every failure is returned: ErrMissingCredential before any call,
// a *BackendError for rejected requests, ErrTransport when the backend is
// unreachable and ErrUninterpretable for empty or echoed output.
func (g *Gateway) Categorize(ctx context.Context, req CategorizeRequest) (string, error) {
	hint := ""
	if s, ok := g.history.Suggest(req.Source); ok {
		hint = s
	}
	prompt := categorizePrompt(req, hint)

	picked, err := g.categorize(ctx, prompt, req)
	if err != nil {
		if g.policy.Categorize == Propagate {
			return "", fmt.Errorf("Categorize: %w", err)
		}
		g.logger(ctx).Warn().
			Err(err).
			Str("backend", string(g.backend.Kind())).
			Str("source", req.Source).
			Msg("Categorization failed, using heuristics")
		picked = OtherCategory
		if hint != "" {
			if c, ok := matchCategory(hint, req.Categories); ok {
				picked = c
			}
		}
	}

	return ApplyCategoryHeuristics(req.Source, picked, req.Categories), nil
}

func (g *Gateway) categorize(ctx context.Context, prompt string, req CategorizeRequest) (string, error) {
	if err := g.backend.Ready(); err != nil {
		return "", err
	}

	text, err := g.backend.Complete(ctx, Completion{
		System:      categorizeSystem,
		Prompt:      prompt,
		Temperature: categorizeTemperature,
		MaxTokens:   categorizeMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response: %w", ErrUninterpretable)
	}
	// Any reply that quotes the category list back would match its first
	// entry, so echoes are rejected here as well.
	if isEcho(text, prompt, g.profile.EchoCheck, 0, categorizeMarker) {
		return "", fmt.Errorf("response echoed the prompt: %w", ErrUninterpretable)
	}

	return ExtractCategory(text, req.Categories), nil
}

// Predict forecasts spending for req.Timeframe. Under the default policy it
// never fails: when the backend errors or answers with an echo, the result
// comes from FallbackPrediction. A usable answer without an
// "Estimated total:" line keeps the model's text but takes the fallback
// total.
func (g *Gateway) Predict(ctx context.Context, req PredictRequest) (Prediction, error) {
	fallback := func() Prediction {
		return FallbackPrediction(req.Transactions, req.Subscriptions, req.Timeframe, req.Currency)
	}

	prompt := predictPrompt(g.profile, req)
	text, err := g.predict(ctx, prompt)
	if err != nil {
		if g.policy.Predict == Propagate {
			return Prediction{}, fmt.Errorf("Predict: %w", err)
		}
		g.reportFallback(ctx, "predict", err)
		return fallback(), nil
	}

	total, ok := ParseEstimatedTotal(text)
	if !ok {
		p := fallback()
		p.Summary = text
		return p, nil
	}
	return Prediction{Summary: text, TotalEstimate: &total}, nil
}

func (g *Gateway) predict(ctx context.Context, prompt string) (string, error) {
	if err := g.backend.Ready(); err != nil {
		return "", err
	}

	text, err := g.backend.Complete(ctx, Completion{
		System:      predictSystem,
		Prompt:      prompt,
		Temperature: predictTemperature,
		MaxTokens:   predictMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response: %w", ErrUninterpretable)
	}
	if isEcho(text, prompt, g.profile.EchoCheck, minAnswerRunes, summarizeMarker, forecastMarker) {
		return "", fmt.Errorf("response echoed the prompt: %w", ErrUninterpretable)
	}
	return text, nil
}

// Insights returns up to req.MaxInsights short observations about recent
// spending. Under the default policy it never fails: backend errors, echoes
// and answers with no usable lines yield FallbackInsights.
func (g *Gateway) Insights(ctx context.Context, req InsightsRequest) ([]string, error) {
	limit := req.MaxInsights
	if limit <= 0 {
		limit = DefaultMaxInsights
	}

	prompt := insightsPrompt(g.profile, req, limit)
	lines, err := g.insights(ctx, prompt, limit)
	if err != nil {
		if g.policy.Insights == Propagate {
			return nil, fmt.Errorf("Insights: %w", err)
		}
		g.reportFallback(ctx, "insights", err)
		return FallbackInsights(req.Transactions, req.Subscriptions, req.Currency, limit), nil
	}
	return lines, nil
}

func (g *Gateway) insights(ctx context.Context, prompt string, limit int) ([]string, error) {
	if err := g.backend.Ready(); err != nil {
		return nil, err
	}

	text, err := g.backend.Complete(ctx, Completion{
		System:      insightsSystem,
		Prompt:      prompt,
		Temperature: insightsTemperature,
		MaxTokens:   insightsMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if isEcho(text, prompt, g.profile.EchoCheck, minAnswerRunes, insightsMarker) {
		return nil, fmt.Errorf("response echoed the prompt: %w", ErrUninterpretable)
	}

	lines := ParseBullets(text, limit)
	if len(lines) == 0 {
		return nil, fmt.Errorf("no insight lines in response: %w", ErrUninterpretable)
	}
	if len(lines) == 1 {
		only := strings.ToLower(lines[0])
		if strings.Contains(only, insightsMarker) && strings.Contains(only, "insights") {
			return nil, fmt.Errorf("single line echoed the instruction: %w", ErrUninterpretable)
		}
	}
	return lines, nil
}

func (g *Gateway) reportFallback(ctx context.Context, op string, err error) {
	g.logger(ctx).Warn().
		Err(err).
		Str("backend", string(g.backend.Kind())).
		Str("operation", op).
		Msg("AI request failed, using ledger fallback")
}
