package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for transaction dates and
// subscription payment dates.
const DateLayout = "2006-01-02"

// ErrInvalid is returned when a transaction, subscription or settings value
// fails validation.
var ErrInvalid = errors.New("invalid")

// Kind distinguishes money coming in from money going out.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Transaction is one ledger entry. Transactions are never edited after
// creation; they are only added or deleted.
type Transaction struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"type"`
	Category  string          `json:"category"`
	Source    string          `json:"source"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"` // YYYY-MM-DD
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// TransactionInput carries the user-supplied fields of a new transaction.
type TransactionInput struct {
	Kind     Kind            `json:"type"`
	Category string          `json:"category"`
	Source   string          `json:"source"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date"`
	Notes    string          `json:"notes,omitempty"`
}

// NewTransaction validates in and stamps it with a fresh ID and timestamps.
func NewTransaction(in TransactionInput, now time.Time) (Transaction, error) {
	tx := Transaction{
		ID:        uuid.New().String(),
		Kind:      in.Kind,
		Category:  strings.TrimSpace(in.Category),
		Source:    strings.TrimSpace(in.Source),
		Amount:    in.Amount,
		Date:      strings.TrimSpace(in.Date),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Validate checks the invariants every stored transaction must satisfy.
func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("transaction type %q: %w", t.Kind, ErrInvalid)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction amount %s must be positive: %w", t.Amount, ErrInvalid)
	}
	if t.Category == "" {
		return fmt.Errorf("transaction category is required: %w", ErrInvalid)
	}
	if t.Source == "" {
		return fmt.Errorf("transaction source is required: %w", ErrInvalid)
	}
	if _, err := ParseDate(t.Date); err != nil {
		return fmt.Errorf("transaction date %q: %w", t.Date, ErrInvalid)
	}
	return nil
}

// Day returns the transaction date at midnight UTC. ok is false when the
// stored date cannot be parsed.
func (t Transaction) Day() (time.Time, bool) {
	d, err := ParseDate(t.Date)
	return d, err == nil
}

// ParseDate parses a YYYY-MM-DD string. Longer ISO timestamps are accepted
// and truncated to their date part.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// SortByDateDesc returns a copy of txs ordered by date, newest first. Entries
// sharing a date keep their ledger order.
func SortByDateDesc(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}

// FilterKind returns the transactions of the given kind, preserving order.
func FilterKind(txs []Transaction, kind Kind) []Transaction {
	var out []Transaction
	for _, t := range txs {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Since returns the transactions dated on or after cutoff. Transactions with
// unparseable dates are dropped.
func Since(txs []Transaction, cutoff time.Time) []Transaction {
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	var out []Transaction
	for _, t := range txs {
		d, ok := t.Day()
		if !ok || d.Before(cutoff) {
			continue
		}
		out = append(out, t)
	}
	return out
}
