package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aurum-erp/aurum/internal/inventory"
	"github.com/aurum-erp/aurum/internal/masterdata/branches"
	"github.com/aurum-erp/aurum/internal/masterdata/items"
	"github.com/aurum-erp/aurum/internal/masterdata/suppliers"
	"github.com/aurum-erp/aurum/internal/observability"
	"github.com/aurum-erp/aurum/internal/procurement"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ItemsHandler       *items.Handler
	BranchesHandler    *branches.Handler
	SuppliersHandler   *suppliers.Handler
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router for the JSON API.
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/items", params.ItemsHandler.MountRoutes)
		api.Route("/branches", params.BranchesHandler.MountRoutes)
		api.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		api.Route("/inventory-stock", params.InventoryHandler.MountRoutes)
		api.Route("/purchase-orders", params.ProcurementHandler.MountOrderRoutes)
		api.Route("/receipts", params.ProcurementHandler.MountReceiptRoutes)
		api.Route("/purchase-returns", params.ProcurementHandler.MountReturnRoutes)
	})

	return r
}
