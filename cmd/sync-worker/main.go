package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cartavio/imagesync-backend/internal/fetch"
	syncsvc "github.com/cartavio/imagesync-backend/internal/sync"
	"github.com/cartavio/imagesync-backend/pkg/config"
	"github.com/cartavio/imagesync-backend/pkg/db"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
	"github.com/cartavio/imagesync-backend/pkg/metrics"
	"github.com/cartavio/imagesync-backend/pkg/migrate"
	"github.com/cartavio/imagesync-backend/pkg/redis"
	"github.com/cartavio/imagesync-backend/pkg/storage/gcs"
)

// pollInterval is how long the worker sleeps after draining the queue.
const pollInterval = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
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

	storeClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := storeClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing storage", err)
		}
	}()

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
	fetchClient := fetch.NewClient(cfg.Fetch, cfg.App, logg)

	syncRepo := syncsvc.NewRepository(dbClient.DB())
	syncService := syncsvc.NewService(syncRepo, fetchClient, storeClient, logg, pipelineMetrics)
	runner := syncsvc.NewGuardedRunner(
		syncsvc.NewRunner(syncRepo, syncService, cfg.Sync, logg, pipelineMetrics),
		redisClient, 0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting sync worker")

	runLoop(ctx, logg, runner)
	logg.Info(ctx, "sync worker shutting down gracefully")
}

// runLoop drains the pending queue across all tenants, then sleeps until
// the next poll. Batches overlapping a shutdown finish their in-flight
// chunk before returning.
func runLoop(ctx context.Context, logg *logger.Logger, runner *syncsvc.GuardedRunner) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		summary, err := runner.Run(ctx, nil)
		switch {
		case pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeConflict:
			logg.Debug(ctx, "another sync run holds the lock, skipping poll")
		case err != nil:
			logg.Error(ctx, "sync batch failed", err)
		case summary.Total > 0:
			logg.Info(logg.WithBatchID(ctx, summary.BatchID.String()), "sync batch complete")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
