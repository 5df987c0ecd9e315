package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alsubhan/versal/internal/auth"
	"github.com/alsubhan/versal/internal/ledger"
	"github.com/alsubhan/versal/internal/masterdata/products"
	"github.com/alsubhan/versal/internal/observability"
	"github.com/alsubhan/versal/internal/procurement"
	"github.com/alsubhan/versal/internal/sales"
	"github.com/alsubhan/versal/internal/serials"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Authenticator      *auth.Authenticator
	RBAC               auth.Middleware
	ProductsHandler    *products.Handler
	SerialsHandler     *serials.Handler
	LedgerHandler      *ledger.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)

		r.Route("/products", func(r chi.Router) {
			r.Use(params.RBAC.Require("products:read"))
			params.ProductsHandler.MountRoutes(r)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Route("/serials", func(r chi.Router) {
				r.Use(params.RBAC.Require("inventory:manage"))
				params.SerialsHandler.MountRoutes(r)
			})
			r.Route("/transactions", func(r chi.Router) {
				r.Use(params.RBAC.Require("inventory:read"))
				params.LedgerHandler.MountRoutes(r)
			})
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Use(params.RBAC.Require("procurement:manage"))
			params.ProcurementHandler.MountOrderRoutes(r)
		})
		r.Route("/good-receive-notes", func(r chi.Router) {
			r.Use(params.RBAC.Require("procurement:manage"))
			params.ProcurementHandler.MountReceiptRoutes(r)
		})

		r.Route("/sale-invoices", func(r chi.Router) {
			r.Use(params.RBAC.Require("sales:manage"))
			params.SalesHandler.MountRoutes(r)
		})
	})

	return r
}
