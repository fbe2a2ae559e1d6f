package syncclient

import (
	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/store"
)

// Merge folds pulled records into the local ledger. Records are matched by
// ID and the pulled copy wins. Records only present locally are kept, so an
// incremental pull never deletes anything. Pulled settings replace local
// ones when present. The result is ready for store.ReplaceAll.
func Merge(local domain.Ledger, pulled PullResponse) store.Replacement {
	r := store.Replacement{Settings: pulled.Settings}

	if len(pulled.Transactions) > 0 {
		r.Transactions = mergeByID(local.Transactions, pulled.Transactions, func(t domain.Transaction) string { return t.ID })
		r.Transactions = domain.SortByDateDesc(r.Transactions)
	}
	if len(pulled.Subscriptions) > 0 {
		r.Subscriptions = mergeByID(local.Subscriptions, pulled.Subscriptions, func(s domain.Subscription) string { return s.ID })
	}
	return r
}

// mergeByID returns the pulled records followed by local records the pull
// did not mention.
func mergeByID[T any](local, pulled []T, id func(T) string) []T {
	seen := make(map[string]bool, len(pulled))
	out := make([]T, 0, len(local)+len(pulled))
	for _, p := range pulled {
		if seen[id(p)] {
			continue
		}
		seen[id(p)] = true
		out = append(out, p)
	}
	for _, l := range local {
		if !seen[id(l)] {
			out = append(out, l)
		}
	}
	return out
}

// PayloadFrom builds a push of the whole ledger.
func PayloadFrom(l domain.Ledger) PushPayload {
	settings := l.Settings
	return PushPayload{
		Transactions:  l.Transactions,
		Subscriptions: l.Subscriptions,
		Settings:      &settings,
	}
}
