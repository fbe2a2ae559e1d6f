// Package api wires the HTTP handlers into a chi router.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/mintbalance/internal/api/handlers"
	"github.com/dvloznov/mintbalance/internal/api/middleware"
	"github.com/dvloznov/mintbalance/internal/buildinfo"
	"github.com/dvloznov/mintbalance/internal/jobs"
	"github.com/dvloznov/mintbalance/internal/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Ledger    *ledger.Service
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	Log       zerolog.Logger

	AllowOrigin string
	AuthToken   string
}

// NewRouter builds the API handler.
func NewRouter(d Deps) http.Handler {
	transactions := handlers.NewTransactionsHandler(d.Ledger)
	subscriptions := handlers.NewSubscriptionsHandler(d.Ledger.Repository())
	settings := handlers.NewSettingsHandler(d.Ledger.Repository())
	ledgerHandler := handlers.NewLedgerHandler(d.Ledger)
	aiHandler := handlers.NewAIHandler(d.Ledger)
	jobsHandler := handlers.NewJobsHandler(d.Publisher, d.JobStore)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.CORS(d.AllowOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": buildinfo.Version,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.AuthToken))

		r.Get("/transactions", transactions.ListTransactions)
		r.Post("/transactions", transactions.AddTransaction)
		r.Delete("/transactions/{id}", transactions.DeleteTransaction)

		r.Get("/subscriptions", subscriptions.ListSubscriptions)
		r.Post("/subscriptions", subscriptions.AddSubscription)
		r.Post("/subscriptions/{id}/toggle", subscriptions.ToggleSubscription)
		r.Delete("/subscriptions/{id}", subscriptions.DeleteSubscription)

		r.Get("/settings", settings.GetSettings)
		r.Patch("/settings", settings.UpdateSettings)

		r.Get("/dashboard", ledgerHandler.Dashboard)
		r.Get("/ledger", ledgerHandler.Snapshot)
		r.Put("/ledger", ledgerHandler.Replace)
		r.Delete("/ledger", ledgerHandler.Clear)

		r.Post("/ai/categorize", aiHandler.Categorize)
		r.Post("/ai/predict", aiHandler.Predict)
		r.Post("/ai/insights", aiHandler.Insights)

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Post("/jobs", jobsHandler.EnqueueJob)
		r.Get("/jobs/{id}", jobsHandler.GetJob)
	})

	return r
}
