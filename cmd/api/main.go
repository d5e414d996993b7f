package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vialshare/vialshare-backend/api/routes"
	"github.com/vialshare/vialshare-backend/internal/allocation"
	"github.com/vialshare/vialshare-backend/internal/batches"
	"github.com/vialshare/vialshare-backend/internal/progress"
	"github.com/vialshare/vialshare-backend/internal/reconcile"
	"github.com/vialshare/vialshare-backend/pkg/config"
	"github.com/vialshare/vialshare-backend/pkg/db"
	"github.com/vialshare/vialshare-backend/pkg/logger"
	"github.com/vialshare/vialshare-backend/pkg/metrics"
	"github.com/vialshare/vialshare-backend/pkg/migrate"
	"github.com/vialshare/vialshare-backend/pkg/outbox"
	"github.com/vialshare/vialshare-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	publisher := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	allocationMetrics := metrics.NewAllocationMetrics(prometheus.DefaultRegisterer)

	reconciler, err := reconcile.NewReconciler(logg, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Logger:     logg,
		TxRunner:   dbClient,
		Reconciler: reconciler,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	batchesService, err := batches.NewService(batches.ServiceParams{
		Logger:     logg,
		Repo:       batches.NewRepository(dbClient.DB()),
		TxRunner:   dbClient,
		Outbox:     publisher,
		Reconciler: reconciler,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create batches service", err)
		os.Exit(1)
	}

	allocationService, err := allocation.NewService(allocation.ServiceParams{
		Logger:          logg,
		Repo:            allocation.NewRepository(dbClient.DB()),
		TxRunner:        dbClient,
		Outbox:          publisher,
		Metrics:         allocationMetrics,
		CodeMaxAttempts: cfg.Orders.CodeMaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create allocation service", err)
		os.Exit(1)
	}

	progressService, err := progress.NewService(progress.ServiceParams{
		Logger:  logg,
		Batches: batches.NewRepository(dbClient.DB()),
		Broker:  redisClient,
		Cache:   redisClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create progress service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Batches:    batchesService,
			Allocation: allocationService,
			Progress:   progressService,
			Reconcile:  reconcileService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

