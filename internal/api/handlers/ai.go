package handlers

import (
	"net/http"

	"github.com/dvloznov/mintbalance/internal/api/middleware"
	"github.com/dvloznov/mintbalance/internal/ledger"
)

// AIHandler runs AI operations synchronously.
type AIHandler struct {
	svc *ledger.Service
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(svc *ledger.Service) *AIHandler {
	return &AIHandler{svc: svc}
}

// Categorize handles POST /api/ai/categorize
func (h *AIHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	var in ledger.CategorizeInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		middleware.WriteErr(w, r, err, "Invalid request body")
		return
	}

	category, err := h.svc.Categorize(r.Context(), in)
	if err != nil {
		middleware.WriteErr(w, r, err, "Categorization failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"category": category})
}

// Predict handles POST /api/ai/predict with an optional {"days": N}.
func (h *AIHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days int `json:"days"`
	}
	if err := decodeJSON(w, r, &req, true); err != nil {
		middleware.WriteErr(w, r, err, "Invalid request body")
		return
	}

	p, err := h.svc.Predict(r.Context(), req.Days)
	if err != nil {
		middleware.WriteErr(w, r, err, "Prediction failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

// Insights handles POST /api/ai/insights with an optional
// {"lookbackDays": N}.
func (h *AIHandler) Insights(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LookbackDays int `json:"lookbackDays"`
	}
	if err := decodeJSON(w, r, &req, true); err != nil {
		middleware.WriteErr(w, r, err, "Invalid request body")
		return
	}

	res, err := h.svc.Insights(r.Context(), req.LookbackDays)
	if err != nil {
		middleware.WriteErr(w, r, err, "Insights failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}
