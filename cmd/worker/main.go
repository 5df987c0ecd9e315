package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alsubhan/versal/internal/app"
	"github.com/alsubhan/versal/internal/ledger"
	"github.com/alsubhan/versal/internal/masterdata/products"
	"github.com/alsubhan/versal/internal/platform/db"
	"github.com/alsubhan/versal/internal/sales"
	"github.com/alsubhan/versal/internal/serials"
	"github.com/alsubhan/versal/internal/shared"
	"github.com/alsubhan/versal/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	idempotencyStore := shared.NewIdempotencyStore(pool)
	productService := products.NewService(products.NewRepository(pool))
	ledgerRecorder := ledger.NewRecorder(ledger.NewRepository(pool), logger)
	serialRegistry := serials.NewRegistry(serials.NewRepository(pool), productService, ledgerRecorder, logger)
	salesService := sales.NewService(sales.NewRepository(pool), productService, serialRegistry, idempotencyStore, logger)

	overdueJob := jobs.NewOverdueScanJob(salesService, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, 30*24*time.Hour, logger)

	overdueTask, err := jobs.NewOverdueScanTask(time.Now())
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask()
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueScanCron, Task: overdueTask},
			{Spec: "30 3 * * 0", Task: cleanupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
