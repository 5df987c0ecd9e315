package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alsubhan/versal/internal/app"
	"github.com/alsubhan/versal/internal/auth"
	"github.com/alsubhan/versal/internal/ledger"
	"github.com/alsubhan/versal/internal/masterdata/products"
	"github.com/alsubhan/versal/internal/observability"
	"github.com/alsubhan/versal/internal/platform/cache"
	"github.com/alsubhan/versal/internal/platform/db"
	"github.com/alsubhan/versal/internal/procurement"
	"github.com/alsubhan/versal/internal/sales"
	"github.com/alsubhan/versal/internal/serials"
	"github.com/alsubhan/versal/internal/shared"
)

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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authenticator := auth.NewAuthenticator(cfg.JWTSecret, logger)
	permissionCache := auth.NewPermissionCache(auth.NewRepository(dbpool), redisClient, cfg.PermissionTTL, logger)
	rbacMiddleware := auth.Middleware{Cache: permissionCache, Logger: logger}

	ledgerRecorder := ledger.NewRecorder(ledger.NewRepository(dbpool), logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerRecorder)

	productService := products.NewService(products.NewRepository(dbpool))
	productsHandler := products.NewHandler(logger, productService)

	serialRegistry := serials.NewRegistry(serials.NewRepository(dbpool), productService, ledgerRecorder, logger)
	serialsHandler := serials.NewHandler(logger, serialRegistry)

	procurementService := procurement.NewService(
		procurement.NewRepository(dbpool), productService, serialRegistry, ledgerRecorder, idempotencyStore, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	salesService := sales.NewService(
		sales.NewRepository(dbpool), productService, serialRegistry, idempotencyStore, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Authenticator:      authenticator,
		RBAC:               rbacMiddleware,
		ProductsHandler:    productsHandler,
		SerialsHandler:     serialsHandler,
		LedgerHandler:      ledgerHandler,
		ProcurementHandler: procurementHandler,
		SalesHandler:       salesHandler,
		Metrics:            metrics,
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
}
