package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msa-suite/msa-suite/internal/billing"
	"github.com/msa-suite/msa-suite/internal/inventory"
	"github.com/msa-suite/msa-suite/internal/masterdata/branches"
	"github.com/msa-suite/msa-suite/internal/masterdata/suppliers"
	"github.com/msa-suite/msa-suite/internal/observability"
	"github.com/msa-suite/msa-suite/internal/purchasing"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	PurchasingHandler *purchasing.Handler
	InventoryHandler  *inventory.Handler
	BillingHandler    *billing.Handler
	SuppliersHandler  *suppliers.Handler
	BranchesHandler   *branches.Handler
	BalanceExporter   *purchasing.BalanceExporter
	Metrics           *observability.Metrics
	Pool              *pgxpool.Pool
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(APIKeyAuth(params.Logger, params.Config.APIKeyHash))

		api.Route("/purchasing", func(sub chi.Router) {
			params.PurchasingHandler.MountRoutes(sub)
		})
		api.Route("/inventory", func(sub chi.Router) {
			params.InventoryHandler.MountRoutes(sub)
		})
		api.Route("/billing", func(sub chi.Router) {
			params.BillingHandler.MountRoutes(sub)
		})
		api.Route("/suppliers", func(sub chi.Router) {
			params.SuppliersHandler.MountRoutes(sub)
		})
		api.Route("/branches", func(sub chi.Router) {
			params.BranchesHandler.MountRoutes(sub)
		})

		if params.BalanceExporter != nil {
			api.Get("/exports/supplier-balances.csv", func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Content-Type", "text/csv; charset=utf-8")
				w.Header().Set("Content-Disposition", `attachment; filename="supplier-balances.csv"`)
				if err := params.BalanceExporter.WriteCSV(req.Context(), w); err != nil {
					params.Logger.Error("export supplier balances", slog.Any("error", err))
				}
			})
		}
	})

	return r
}
