package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartavio/imagesync-backend/api/controllers"
	"github.com/cartavio/imagesync-backend/api/routes"
	"github.com/cartavio/imagesync-backend/internal/fetch"
	"github.com/cartavio/imagesync-backend/internal/gallery"
	"github.com/cartavio/imagesync-backend/internal/importundo"
	"github.com/cartavio/imagesync-backend/internal/reconcile"
	syncsvc "github.com/cartavio/imagesync-backend/internal/sync"
	"github.com/cartavio/imagesync-backend/internal/urlrepair"
	"github.com/cartavio/imagesync-backend/pkg/config"
	"github.com/cartavio/imagesync-backend/pkg/db"
	"github.com/cartavio/imagesync-backend/pkg/logger"
	"github.com/cartavio/imagesync-backend/pkg/metrics"
	"github.com/cartavio/imagesync-backend/pkg/migrate"
	"github.com/cartavio/imagesync-backend/pkg/redis"
	"github.com/cartavio/imagesync-backend/pkg/storage/gcs"
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

	galleryService := gallery.NewService(
		gallery.NewRepository(dbClient.DB()),
		gallery.NewRedisNotifier(redisClient),
		logg,
	)

	reconcileRepo := reconcile.NewRepository(dbClient.DB())
	reconcileService := reconcile.NewService(reconcileRepo, storeClient, reconcileRepo, logg, pipelineMetrics)
	repairService := urlrepair.NewService(urlrepair.NewRepository(dbClient.DB()), logg)
	undoService := importundo.NewService(importundo.NewRepository(dbClient.DB()), storeClient, logg)

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"storage":  storeClient,
	}

	router := routes.NewRouter(cfg, logg, readiness, routes.Services{
		Sync:       syncService,
		Runner:     runner,
		Batches:    syncRepo,
		Gallery:    galleryService,
		Reconciler: reconcileService,
		URLRepair:  repairService,
		ImportUndo: undoService,
	}, promhttp.Handler())

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
		Addr:    addr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
