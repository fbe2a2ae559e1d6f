package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// AIMode selects which model backend serves AI requests.
type AIMode string

const (
	AIModeCloud    AIMode = "cloud"
	AIModeClaude   AIMode = "claude"
	AIModeBrokered AIMode = "brokered"
	AIModeLocal    AIMode = "local"
)

// DefaultCategories is the category set offered to new users.
var DefaultCategories = []string{
	"Food",
	"Housing",
	"Transport",
	"Utilities",
	"Tech",
	"Entertainment",
	"Health",
	"Shopping",
	"Subscriptions",
	"Income",
	"Other",
}

// LookbackOptions are the analysis windows, in days, the UI offers.
var LookbackOptions = []int{30, 60, 90}

// Settings holds per-user preferences persisted with the ledger.
type Settings struct {
	Currency     string    `json:"currency"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Email        string    `json:"email,omitempty"`
	AIMode       AIMode    `json:"aiMode,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	LookbackDays int       `json:"lookbackDays,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// SettingsPatch is a partial settings update. Nil fields are left alone.
type SettingsPatch struct {
	Currency     *string  `json:"currency,omitempty"`
	FirstName    *string  `json:"firstName,omitempty"`
	LastName     *string  `json:"lastName,omitempty"`
	Email        *string  `json:"email,omitempty"`
	AIMode       *AIMode  `json:"aiMode,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	LookbackDays *int     `json:"lookbackDays,omitempty"`
}

// Apply merges p into s and stamps UpdatedAt.
func (p SettingsPatch) Apply(s Settings, now time.Time) Settings {
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	if p.FirstName != nil {
		s.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		s.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Email != nil {
		s.Email = strings.TrimSpace(*p.Email)
	}
	if p.AIMode != nil {
		s.AIMode = *p.AIMode
	}
	if p.Categories != nil {
		cats := make([]string, 0, len(p.Categories))
		seen := make(map[string]bool)
		for _, c := range p.Categories {
			c = strings.TrimSpace(c)
			if c == "" || seen[strings.ToLower(c)] {
				continue
			}
			seen[strings.ToLower(c)] = true
			cats = append(cats, c)
		}
		s.Categories = cats
	}
	if p.LookbackDays != nil {
		s.LookbackDays = *p.LookbackDays
	}
	s.UpdatedAt = now.UTC()
	return s.Normalize()
}

// DefaultSettings returns the settings a fresh ledger starts with.
func DefaultSettings() Settings {
	cats := make([]string, len(DefaultCategories))
	copy(cats, DefaultCategories)
	return Settings{
		Currency:     "USD",
		AIMode:       AIModeCloud,
		Categories:   cats,
		LookbackDays: 30,
	}
}

// Normalize fills empty fields with defaults and upper-cases the currency.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
	if s.Currency == "" {
		s.Currency = def.Currency
	}
	if s.AIMode == "" {
		s.AIMode = def.AIMode
	}
	if len(s.Categories) == 0 {
		s.Categories = def.Categories
	}
	if s.LookbackDays <= 0 {
		s.LookbackDays = def.LookbackDays
	}
	return s
}

// Validate rejects unknown currencies, AI modes and lookback windows.
func (s Settings) Validate() error {
	if _, err := currency.ParseISO(s.Currency); err != nil {
		return fmt.Errorf("currency %q: %w", s.Currency, ErrInvalid)
	}
	switch s.AIMode {
	case AIModeCloud, AIModeClaude, AIModeBrokered, AIModeLocal:
	default:
		return fmt.Errorf("ai mode %q: %w", s.AIMode, ErrInvalid)
	}
	valid := false
	for _, d := range LookbackOptions {
		if s.LookbackDays == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("lookback %d days: %w", s.LookbackDays, ErrInvalid)
	}
	return nil
}

// Ledger is a snapshot of everything the user has recorded.
type Ledger struct {
	Transactions  []Transaction  `json:"transactions"`
	Subscriptions []Subscription `json:"subscriptions"`
	Settings      Settings       `json:"settings"`
}

// Expenses returns the expense transactions in ledger order.
func (l Ledger) Expenses() []Transaction {
	return FilterKind(l.Transactions, KindExpense)
}
