package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cartavio/imagesync-backend/internal/cron"
	"github.com/cartavio/imagesync-backend/internal/reconcile"
	syncsvc "github.com/cartavio/imagesync-backend/internal/sync"
	"github.com/cartavio/imagesync-backend/pkg/config"
	"github.com/cartavio/imagesync-backend/pkg/db"
	"github.com/cartavio/imagesync-backend/pkg/logger"
	"github.com/cartavio/imagesync-backend/pkg/metrics"
	"github.com/cartavio/imagesync-backend/pkg/migrate"
	"github.com/cartavio/imagesync-backend/pkg/redis"
	"github.com/cartavio/imagesync-backend/pkg/storage/gcs"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	syncRepo := syncsvc.NewRepository(dbClient.DB())
	reconcileRepo := reconcile.NewRepository(dbClient.DB())
	reconcileService := reconcile.NewService(reconcileRepo, storeClient, reconcileRepo, logg, pipelineMetrics)

	batchCleanup, err := cron.NewBatchCleanupJob(cron.BatchCleanupJobParams{
		Logger:    logg,
		Repo:      syncRepo,
		Retention: cfg.Reconciler.BatchRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create batch cleanup job", err)
		os.Exit(1)
	}

	trashPurge, err := cron.NewTrashPurgeJob(cron.TrashPurgeJobParams{
		Logger:    logg,
		Tenants:   reconcileRepo,
		Purger:    reconcileService,
		Retention: cfg.Reconciler.TrashRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create trash purge job", err)
		os.Exit(1)
	}

	staleRequeue, err := cron.NewStaleRequeueJob(cron.StaleRequeueJobParams{
		Logger:     logg,
		Repo:       syncRepo,
		StaleAfter: cfg.Sync.StaleProcessingAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale requeue job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(batchCleanup, trashPurge, staleRequeue),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Reconciler.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
