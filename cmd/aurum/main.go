package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aurum-erp/aurum/internal/app"
	"github.com/aurum-erp/aurum/internal/inventory"
	"github.com/aurum-erp/aurum/internal/masterdata/branches"
	"github.com/aurum-erp/aurum/internal/masterdata/items"
	"github.com/aurum-erp/aurum/internal/masterdata/suppliers"
	"github.com/aurum-erp/aurum/internal/observability"
	"github.com/aurum-erp/aurum/internal/platform/cache"
	"github.com/aurum-erp/aurum/internal/platform/db"
	"github.com/aurum-erp/aurum/internal/procurement"
	"github.com/aurum-erp/aurum/internal/shared"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	approvals := shared.NewApprovalRecorder(dbpool, logger)
	idempotency := shared.NewIdempotencyStore(dbpool)

	itemsService := items.NewService(items.NewRepository(dbpool))
	itemsHandler := items.NewHandler(logger, itemsService)
	branchesService := branches.NewService(branches.NewRepository(dbpool))
	branchesHandler := branches.NewHandler(logger, branchesService)
	suppliersService := suppliers.NewService(suppliers.NewRepository(dbpool))
	suppliersHandler := suppliers.NewHandler(logger, suppliersService)

	ledger := inventory.NewLedger(cfg.AllowNegativeStock)
	stockCache := inventory.NewStockCache(redisClient)
	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(logger, inventoryRepo, ledger, stockCache, auditLogger, metrics)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(
		logger,
		procurementRepo,
		ledger,
		stockCache,
		auditLogger,
		approvals,
		idempotency,
		metrics,
		procurement.Policy{AutoApproveDraftOnReceipt: cfg.AutoApproveDraftPO},
	)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ItemsHandler:       itemsHandler,
		BranchesHandler:    branchesHandler,
		SuppliersHandler:   suppliersHandler,
		InventoryHandler:   inventoryHandler,
		ProcurementHandler: procurementHandler,
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
