package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/msa-suite/msa-suite/internal/app"
	"github.com/msa-suite/msa-suite/internal/billing"
	"github.com/msa-suite/msa-suite/internal/integration"
	"github.com/msa-suite/msa-suite/internal/inventory"
	"github.com/msa-suite/msa-suite/internal/masterdata/branches"
	"github.com/msa-suite/msa-suite/internal/masterdata/suppliers"
	"github.com/msa-suite/msa-suite/internal/observability"
	"github.com/msa-suite/msa-suite/internal/platform/cache"
	"github.com/msa-suite/msa-suite/internal/platform/db"
	"github.com/msa-suite/msa-suite/internal/purchasing"
	"github.com/msa-suite/msa-suite/internal/shared"
	"github.com/msa-suite/msa-suite/jobs"
)

// supplierDirectory adapts the masterdata service to the export port.
type supplierDirectory struct {
	svc *suppliers.Service
}

func (d supplierDirectory) ListSupplierRefs(ctx context.Context) ([]purchasing.SupplierRef, error) {
	all, err := d.svc.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]purchasing.SupplierRef, 0, len(all))
	for _, s := range all {
		refs = append(refs, purchasing.SupplierRef{ID: s.ID, Name: s.Name})
	}
	return refs, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("jobs client unavailable", slog.Any("error", err))
	}
	hooks := integration.NewHooks(jobClient, logger)

	purchasingRepo := purchasing.NewRepository(pool)
	balances := purchasing.NewBalanceCalculator(purchasingRepo, redisClient, cfg.BalanceCacheTTL)
	purchasingService := purchasing.NewService(purchasingRepo, auditLogger, balances, hooks, purchasing.ServiceConfig{
		NumberPrefix:   cfg.OrderNumberPrefix,
		InvoiceDueTerm: cfg.InvoiceDueTerm,
	})
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, shared.NewIdempotencyStore(pool))

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, auditLogger)
	billingHandler := billing.NewHandler(logger, billingService)

	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	suppliersHandler := suppliers.NewHandler(logger, suppliersService)

	branchesService := branches.NewService(branches.NewRepository(pool))
	branchesHandler := branches.NewHandler(logger, branchesService)

	exporter := purchasing.NewBalanceExporter(supplierDirectory{svc: suppliersService}, balances)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PurchasingHandler: purchasingHandler,
		InventoryHandler:  inventoryHandler,
		BillingHandler:    billingHandler,
		SuppliersHandler:  suppliersHandler,
		BranchesHandler:   branchesHandler,
		BalanceExporter:   exporter,
		Metrics:           metrics,
		Pool:              pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if jobClient != nil {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}
}
