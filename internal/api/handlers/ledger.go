// Package handlers implements the JSON HTTP endpoints of the API.
package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/mintbalance/internal/api/middleware"
	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/ledger"
	"github.com/dvloznov/mintbalance/internal/store"
	"github.com/go-chi/chi/v5"
)

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	svc *ledger.Service
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *ledger.Service) *TransactionsHandler {
	return &TransactionsHandler{svc: svc}
}

// ListTransactions handles GET /api/transactions. Results are ordered by
// date, newest first, and can be narrowed with type, category and since.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	txs, err := h.svc.Repository().Transactions(ctx)
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to list transactions")
		return
	}

	if kind := domain.Kind(query.Get("type")); kind != "" {
		if !kind.Valid() {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid type")
			return
		}
		txs = domain.FilterKind(txs, kind)
	}
	if since := query.Get("since"); since != "" {
		cutoff, err := domain.ParseDate(since)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid since date, expected YYYY-MM-DD")
			return
		}
		txs = domain.Since(txs, cutoff)
	}
	if category := query.Get("category"); category != "" {
		filtered := txs[:0:0]
		for _, t := range txs {
			if strings.EqualFold(t.Category, category) {
				filtered = append(filtered, t)
			}
		}
		txs = filtered
	}

	txs = domain.SortByDateDesc(txs)
	limit, err := intQuery(r, "limit")
	if err != nil {
		middleware.WriteErr(w, r, err, "Invalid limit")
		return
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// AddTransaction handles POST /api/transactions. An expense with category
// "Auto" is categorized by the configured AI backend before it is stored.
func (h *TransactionsHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		middleware.WriteErr(w, r, err, "Invalid request body")
		return
	}

	tx, err := h.svc.AddTransaction(r.Context(), in)
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to add transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Repository().DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.WriteErr(w, r, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscriptionsHandler handles subscription endpoints.
type SubscriptionsHandler struct {
	repo store.Repository
}

// NewSubscriptionsHandler creates a new subscriptions handler.
func NewSubscriptionsHandler(repo store.Repository) *SubscriptionsHandler {
	return &SubscriptionsHandler{repo: repo}
}

// ListSubscriptions handles GET /api/subscriptions. active=true limits the
// list to active subscriptions.
func (h *SubscriptionsHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.repo.Subscriptions(r.Context())
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to list subscriptions")
		return
	}
	if r.URL.Query().Get("active") == "true" {
		subs = domain.ActiveOnly(subs)
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// AddSubscription handles POST /api/subscriptions
func (h *SubscriptionsHandler) AddSubscription(w http.ResponseWriter, r *http.Request) {
	var in domain.SubscriptionInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		middleware.WriteErr(w, r, err, "Invalid request body")
		return
	}

	sub, err := h.repo.AddSubscription(r.Context(), in)
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to add subscription")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, sub)
}

// ToggleSubscription handles POST /api/subscriptions/{id}/toggle
func (h *SubscriptionsHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.repo.ToggleSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to toggle subscription")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sub)
}

// DeleteSubscription handles DELETE /api/subscriptions/{id}
func (h *SubscriptionsHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteSubscription(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.WriteErr(w, r, err, "Failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SettingsHandler handles settings endpoints.
type SettingsHandler struct {
	repo store.Repository
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(repo store.Repository) *SettingsHandler {
	return &SettingsHandler{repo: repo}
}

// GetSettings handles GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Settings(r.Context())
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to load settings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s)
}

// UpdateSettings handles PATCH /api/settings. Fields left out of the body
// keep their stored values.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		middleware.WriteErr(w, r, err, "Invalid request body")
		return
	}

	s, err := h.repo.UpdateSettings(r.Context(), patch)
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to update settings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s)
}

// LedgerHandler handles whole-ledger endpoints.
type LedgerHandler struct {
	svc *ledger.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(svc *ledger.Service) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// Dashboard handles GET /api/dashboard?months=N
func (h *LedgerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	months, err := intQuery(r, "months")
	if err != nil {
		middleware.WriteErr(w, r, err, "Invalid months")
		return
	}

	d, err := h.svc.Dashboard(r.Context(), months)
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to build dashboard")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, d)
}

// Snapshot handles GET /api/ledger
func (h *LedgerHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Repository().Snapshot(r.Context())
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to read ledger")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, l)
}

// Replace handles PUT /api/ledger. Parts missing from the body are kept;
// an empty list clears that part.
func (h *LedgerHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var repl store.Replacement
	if err := decodeJSON(w, r, &repl, false); err != nil {
		middleware.WriteErr(w, r, err, "Invalid request body")
		return
	}

	if err := h.svc.Repository().ReplaceAll(r.Context(), repl); err != nil {
		middleware.WriteErr(w, r, err, "Failed to replace ledger")
		return
	}
	h.Snapshot(w, r)
}

// Clear handles DELETE /api/ledger
func (h *LedgerHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Repository().ClearAll(r.Context()); err != nil {
		middleware.WriteErr(w, r, err, "Failed to clear ledger")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
