package ai

import (
	"fmt"
	"strings"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/shopspring/decimal"
)

// Profile holds the per-backend prompt shape: how much history fits into a
// prompt, which prediction wording the model follows best, and whether its
// answers need screening for echoes.
type Profile struct {
	PredictTransactions  int
	PredictSubscriptions int
	InsightTransactions  int
	InsightSubscriptions int

	// Forecaster selects the narrative forecaster wording for predictions;
	// smaller models get the terser summarize wording.
	Forecaster bool

	// EchoCheck enables instruction-phrase and minimum-length screening of
	// answers. Exact echoes of the prompt are always rejected.
	EchoCheck bool
}

// ProfileFor returns the prompt profile for a backend kind.
func ProfileFor(kind Kind) Profile {
	switch kind {
	case KindCloud, KindClaude:
		return Profile{
			PredictTransactions:  20,
			PredictSubscriptions: 15,
			InsightTransactions:  60,
			InsightSubscriptions: 20,
			Forecaster:           true,
		}
	default:
		return Profile{
			PredictTransactions:  40,
			PredictSubscriptions: 20,
			InsightTransactions:  60,
			InsightSubscriptions: 20,
			EchoCheck:            true,
		}
	}
}

// Sampling parameters per operation. Categorization wants a deterministic
// single token answer; insights benefit from some variety.
const (
	categorizeTemperature = 0.1
	predictTemperature    = 0.3
	insightsTemperature   = 0.6

	categorizeMaxTokens = 64
	predictMaxTokens    = 400
	insightsMaxTokens   = 500
)

const (
	categorizeSystem = "You are an expense categorizer. Reply with JSON only."
	predictSystem    = "You are a concise personal finance forecaster."
	insightsSystem   = "You are a concise personal finance assistant."
)

// Instruction phrases that open each prompt. A real answer never repeats
// them, so finding one in a response marks it as an echo.
const (
	categorizeMarker = "you categorize expenses using only these categories"
	forecastMarker   = "you are a financial forecaster"
	summarizeMarker  = "summarize upcoming expenses"
	insightsMarker   = "generate up to"
)

func categorizePrompt(req CategorizeRequest, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You categorize expenses using only these categories: %s.\n", strings.Join(req.Categories, ", "))
	b.WriteString(`Return a JSON object like {"category":"OneOfAbove"} with no extra text.` + "\n")
	b.WriteString("Expense:\n")
	fmt.Fprintf(&b, "- Merchant: %s\n", req.Source)
	fmt.Fprintf(&b, "- Amount: %s %s\n", req.Amount.String(), req.Currency)
	notes := req.Notes
	if notes == "" {
		notes = "None"
	}
	fmt.Fprintf(&b, "- Notes: %s\n", notes)
	if hint != "" {
		fmt.Fprintf(&b, "Past expenses at similar merchants were filed under: %s\n", hint)
	}
	return b.String()
}

func predictPrompt(p Profile, req PredictRequest) string {
	txs := capTransactions(req.Transactions, p.PredictTransactions)
	subs := capSubscriptions(req.Subscriptions, p.PredictSubscriptions)

	var b strings.Builder
	if p.Forecaster {
		fmt.Fprintf(&b, "You are a financial forecaster. Based on the history below, forecast expenses for the timeframe %q in %s.\n", req.Timeframe, req.Currency)
		b.WriteString(`Keep it concise, list 3-5 insights, highlight risky categories, and end with a single line starting with "Estimated total:" followed by a number only (no currency symbol).` + "\n\n")
		b.WriteString("Transactions:\n")
		for _, t := range txs {
			label := "Expense"
			if t.Kind == domain.KindIncome {
				label = "Income"
			}
			fmt.Fprintf(&b, "%s %s - %s: %s on %s\n", label, t.Category, t.Source, t.Amount.String(), t.Date)
		}
		b.WriteString("\nSubscriptions:\n")
		for _, s := range subs {
			state := "paused"
			if s.Active {
				state = "active"
			}
			fmt.Fprintf(&b, "%s (%s) - %s due %s [%s]\n", s.Name, s.Frequency, s.Amount.String(), s.NextPayment, state)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Summarize upcoming expenses for timeframe %q in %s.\n", req.Timeframe, req.Currency)
	b.WriteString("Return 3-5 concise bullets and end with a line: Estimated total: <number only>.\n")
	b.WriteString("Transactions:\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "%s | %s | %s | %s | %s\n", t.Date, t.Kind, t.Category, t.Source, t.Amount.String())
	}
	b.WriteString("Subscriptions:\n")
	for _, s := range subs {
		fmt.Fprintf(&b, "%s | %s | %s due %s\n", s.Name, s.Frequency, s.Amount.String(), s.NextPayment)
	}
	return b.String()
}

func insightsPrompt(p Profile, req InsightsRequest, limit int) string {
	txs := capTransactions(req.Transactions, p.InsightTransactions)
	subs := capSubscriptions(req.Subscriptions, p.InsightSubscriptions)

	who := req.FirstName
	if who == "" {
		who = "the user"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate up to %d concise spending insights (140 chars max each) for %s. ", limit, who)
	b.WriteString("Cover category comparisons, merchants, behaviors, recurring changes, anomalies, budgets and forecasts. Bullet list only (no numbering).\n")
	fmt.Fprintf(&b, "Currency: %s\n", req.Currency)
	fmt.Fprintf(&b, "Lookback: %s\n", req.LookbackLabel)
	b.WriteString("Transactions (recent first):\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "%s | %s | %s | %s | %s\n", t.Date, t.Category, t.Source, t.Amount.String(), t.Notes)
	}
	b.WriteString("Subscriptions:\n")
	for _, s := range subs {
		fmt.Fprintf(&b, "%s | %s | %s | next %s\n", s.Name, s.Frequency, s.Amount.String(), s.NextPayment)
	}
	return b.String()
}

// capTransactions keeps the first n entries. Callers order history most
// recent first, so the oldest are the ones dropped.
func capTransactions(txs []domain.Transaction, n int) []domain.Transaction {
	if n > 0 && len(txs) > n {
		return txs[:n]
	}
	return txs
}

func capSubscriptions(subs []domain.Subscription, n int) []domain.Subscription {
	if n > 0 && len(subs) > n {
		return subs[:n]
	}
	return subs
}

// CategorizeRequest describes one expense to categorize.
type CategorizeRequest struct {
	Source     string          `json:"source"`
	Amount     decimal.Decimal `json:"amount"`
	Notes      string          `json:"notes,omitempty"`
	Currency   string          `json:"currency"`
	Categories []string        `json:"categories"`
}

// PredictRequest asks for a spending forecast over Timeframe.
type PredictRequest struct {
	Timeframe     string                `json:"timeframe"`
	Currency      string                `json:"currency"`
	Transactions  []domain.Transaction  `json:"-"`
	Subscriptions []domain.Subscription `json:"-"`
}

// InsightsRequest asks for a short list of spending observations.
type InsightsRequest struct {
	Currency      string                `json:"currency"`
	LookbackLabel string                `json:"lookback"`
	FirstName     string                `json:"firstName,omitempty"`
	MaxInsights   int                   `json:"maxInsights,omitempty"`
	Transactions  []domain.Transaction  `json:"-"`
	Subscriptions []domain.Subscription `json:"-"`
}
