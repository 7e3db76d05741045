package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgknshn20/yapigraniterp/internal/crm"
	"github.com/dgknshn20/yapigraniterp/internal/finance"
	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	"github.com/dgknshn20/yapigraniterp/internal/production"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	ProposalHandler  *crm.Handler
	ContractHandler  *production.Handler
	PlanHandler      *finance.Handler
	InventoryHandler *inventory.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Everything below requires a trusted actor identity.
	r.Group(func(r chi.Router) {
		r.Use(shared.WithActor)
		r.Mount("/proposals", params.ProposalHandler.Routes())
		r.Mount("/contracts", params.ContractHandler.Routes())
		r.Mount("/payment-plans", params.PlanHandler.Routes())
		r.Mount("/jobs", params.InventoryHandler.Routes())
	})

	return r
}
