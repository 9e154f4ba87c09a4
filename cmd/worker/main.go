package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/msa-suite/msa-suite/internal/app"
	jobmetrics "github.com/msa-suite/msa-suite/internal/jobs"
	"github.com/msa-suite/msa-suite/internal/masterdata/suppliers"
	"github.com/msa-suite/msa-suite/internal/platform/cache"
	"github.com/msa-suite/msa-suite/internal/platform/db"
	"github.com/msa-suite/msa-suite/internal/purchasing"
	"github.com/msa-suite/msa-suite/internal/shared"
	"github.com/msa-suite/msa-suite/jobs"
)

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
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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

	purchasingRepo := purchasing.NewRepository(pool)
	balances := purchasing.NewBalanceCalculator(purchasingRepo, redisClient, cfg.BalanceCacheTTL)
	directory := supplierDirectory{svc: suppliers.NewService(suppliers.NewRepository(pool))}

	metrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewBalanceWarmupJob(directory, balances, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics)

	warmupTask, err := jobs.NewBalanceWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(24 * time.Hour)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBalanceWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)
	mux := chi.NewRouter()
	jobsHandler.MountRoutes(mux)
	httpSrv := &http.Server{Addr: cfg.WorkerAddr, Handler: mux}
	go func() {
		logger.Info("starting worker http server", slog.String("addr", cfg.WorkerAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker http server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
