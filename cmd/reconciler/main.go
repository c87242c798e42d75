package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cartavio/imagesync-backend/internal/reconcile"
	"github.com/cartavio/imagesync-backend/pkg/config"
	"github.com/cartavio/imagesync-backend/pkg/db"
	"github.com/cartavio/imagesync-backend/pkg/logger"
	"github.com/cartavio/imagesync-backend/pkg/metrics"
	"github.com/cartavio/imagesync-backend/pkg/storage/gcs"
)

// One-shot reconciler. Without -apply it prints the dry-run report; with
// -apply it moves the listed paths (or every reported orphan) to trash.
func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler"})

	_ = godotenv.Load()

	tenant := flag.String("tenant", "", "tenant uuid (required)")
	apply := flag.Bool("apply", false, "move orphans to trash instead of reporting")
	paths := flag.String("paths", "", "comma-separated paths to apply; defaults to every reported orphan")
	flag.Parse()

	userID, err := uuid.Parse(*tenant)
	if err != nil {
		fmt.Fprintln(os.Stderr, "missing or invalid -tenant")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconciler",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithUserID(context.Background(), userID.String())

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	storeClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap storage", err)
		os.Exit(1)
	}
	defer storeClient.Close()

	repo := reconcile.NewRepository(dbClient.DB())
	service := reconcile.NewService(repo, storeClient, repo, logg,
		metrics.NewPipelineMetrics(prometheus.DefaultRegisterer))

	report, err := service.Run(ctx, userID)
	if err != nil {
		logg.Error(ctx, "reconcile report failed", err)
		os.Exit(1)
	}

	if !*apply {
		printJSON(report)
		return
	}

	candidates := report.Orphans
	if *paths != "" {
		candidates = splitPaths(*paths)
	}
	if len(candidates) == 0 {
		logg.Info(ctx, "nothing to apply")
		return
	}

	result, err := service.Apply(ctx, userID, candidates)
	if err != nil {
		logg.Error(ctx, "reconcile apply failed", err)
		os.Exit(1)
	}
	printJSON(result)
}

func splitPaths(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(payload any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
