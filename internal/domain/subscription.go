package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is how often a subscription bills.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
)

var weeksPerMonth = decimal.RequireFromString("4.345")

// Valid reports whether f is a known billing frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual:
		return true
	}
	return false
}

// MonthlyEquivalent converts an amount billed at frequency f into its
// monthly cost.
func MonthlyEquivalent(amount decimal.Decimal, f Frequency) decimal.Decimal {
	switch f {
	case FrequencyWeekly:
		return amount.Mul(weeksPerMonth)
	case FrequencyQuarterly:
		return amount.Div(decimal.NewFromInt(3))
	case FrequencyAnnual:
		return amount.Div(decimal.NewFromInt(12))
	default:
		return amount
	}
}

// Subscription is a recurring charge the user tracks.
type Subscription struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   Frequency       `json:"frequency"`
	NextPayment string          `json:"nextPayment"` // YYYY-MM-DD
	Category    string          `json:"category"`
	Notes       string          `json:"notes,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// SubscriptionInput carries the user-supplied fields of a new subscription.
type SubscriptionInput struct {
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   Frequency       `json:"frequency"`
	NextPayment string          `json:"nextPayment"`
	Category    string          `json:"category"`
	Notes       string          `json:"notes,omitempty"`
}

// NewSubscription validates in and returns an active subscription.
func NewSubscription(in SubscriptionInput, now time.Time) (Subscription, error) {
	s := Subscription{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Amount:      in.Amount,
		Frequency:   in.Frequency,
		NextPayment: strings.TrimSpace(in.NextPayment),
		Category:    strings.TrimSpace(in.Category),
		Notes:       strings.TrimSpace(in.Notes),
		Active:      true,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if err := s.Validate(); err != nil {
		return Subscription{}, err
	}
	return s, nil
}

// Validate checks the invariants every stored subscription must satisfy.
func (s Subscription) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("subscription name is required: %w", ErrInvalid)
	}
	if !s.Amount.IsPositive() {
		return fmt.Errorf("subscription amount %s must be positive: %w", s.Amount, ErrInvalid)
	}
	if !s.Frequency.Valid() {
		return fmt.Errorf("subscription frequency %q: %w", s.Frequency, ErrInvalid)
	}
	if s.Category == "" {
		return fmt.Errorf("subscription category is required: %w", ErrInvalid)
	}
	if _, err := ParseDate(s.NextPayment); err != nil {
		return fmt.Errorf("subscription next payment %q: %w", s.NextPayment, ErrInvalid)
	}
	return nil
}

// MonthlyAmount is the subscription's cost normalized to one month.
func (s Subscription) MonthlyAmount() decimal.Decimal {
	return MonthlyEquivalent(s.Amount, s.Frequency)
}

// Due returns the next payment date. ok is false when it cannot be parsed.
func (s Subscription) Due() (time.Time, bool) {
	d, err := ParseDate(s.NextPayment)
	return d, err == nil
}

// ActiveOnly returns the active subscriptions, preserving order.
func ActiveOnly(subs []Subscription) []Subscription {
	var out []Subscription
	for _, s := range subs {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}
