package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/nomina-receipts/internal/async"
	"github.com/joseph-ayodele/nomina-receipts/internal/common"
	"github.com/joseph-ayodele/nomina-receipts/internal/employees"
	"github.com/joseph-ayodele/nomina-receipts/internal/identify"
	"github.com/joseph-ayodele/nomina-receipts/internal/pipeline"
	"github.com/joseph-ayodele/nomina-receipts/internal/reconcile"
	repo "github.com/joseph-ayodele/nomina-receipts/internal/repository"
	"github.com/joseph-ayodele/nomina-receipts/internal/server"
	"github.com/joseph-ayodele/nomina-receipts/internal/storage"
)

func main() {
	cfg := common.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, pool, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer server.CloseDB(drv, pool, logger)

	if err := server.PingDB(ctx, drv, logger, 5*time.Second); err != nil {
		os.Exit(1)
	}
	if err := repo.Migrate(ctx, drv, logger); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	store := repo.NewStore(drv, logger)
	resolver, err := employees.NewResolver(cfg.Ingest.InitialCredential, logger)
	if err != nil {
		logger.Error("failed to build employee resolver", "error", err)
		os.Exit(1)
	}
	layout := storage.NewLayout(cfg.Storage.Root, logger)

	processor := pipeline.NewProcessor(pipeline.Deps{
		Batches:    store.Batches,
		Audit:      store.BatchFiles,
		Tx:         store,
		Identifier: identify.NewIdentifier(identify.Options{Workers: cfg.Ingest.IdentifyWorkers, ValidatePDF: cfg.Ingest.ValidatePDF}, logger),
		Employees:  resolver,
		Reconciler: reconcile.NewReconciler(layout, logger),
	}, pipeline.Options{
		WorkspaceRoot:   cfg.Storage.WorkspaceDir,
		ArchiveMaxBytes: cfg.Ingest.ArchiveMaxBytes,
	}, logger)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Worker.Concurrency),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
		async.WithMaxAttempts(cfg.Worker.MaxAttempts),
		async.WithRetryBackoff(cfg.Worker.RetryBackoff),
	)
	poller := async.NewPoller(store.Batches, queue, cfg.Worker.PollInterval, cfg.Worker.StaleAfter, logger)

	healthSrv := server.NewHealthServer(func(ctx context.Context) error {
		return repo.HealthCheck(ctx, drv, 2*time.Second, logger)
	}, 15*time.Second, logger)
	go func() {
		if err := healthSrv.Serve(ctx, cfg.Server.HealthAddr); err != nil {
			logger.Error("health server error", "error", err)
			stop()
		}
	}()

	logger.Info("nomina-worker started",
		"workers", cfg.Worker.Concurrency,
		"storage", cfg.Storage.Root,
		"health_addr", cfg.Server.HealthAddr)

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("poller stopped", "error", err)
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}
