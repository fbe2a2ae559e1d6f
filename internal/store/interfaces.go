package store

import (
	"context"

	"github.com/dvloznov/mintbalance/internal/domain"
)

// Repository is the ledger persistence used by the API and CLI.
type Repository interface {
	AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	Transactions(ctx context.Context) ([]domain.Transaction, error)

	AddSubscription(ctx context.Context, in domain.SubscriptionInput) (domain.Subscription, error)
	ToggleSubscription(ctx context.Context, id string) (domain.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
	Subscriptions(ctx context.Context) ([]domain.Subscription, error)

	Settings(ctx context.Context) (domain.Settings, error)
	UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error)

	Snapshot(ctx context.Context) (domain.Ledger, error)
	ReplaceAll(ctx context.Context, r Replacement) error
	ClearAll(ctx context.Context) error
}

// Replacement carries the parts of a ledger to overwrite. A nil field keeps
// the stored value; an empty non-nil slice clears it.
type Replacement struct {
	Transactions  []domain.Transaction  `json:"transactions"`
	Subscriptions []domain.Subscription `json:"subscriptions"`
	Settings      *domain.Settings      `json:"settings"`
}

var _ Repository = (*BoltStore)(nil)
