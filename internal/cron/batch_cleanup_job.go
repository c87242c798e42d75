package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/cartavio/imagesync-backend/pkg/logger"
)

const defaultBatchRetention = 7 * 24 * time.Hour

type batchCleanupRepo interface {
	DeleteTerminalBatchesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BatchCleanupJobParams configure the sync batch cleanup job.
type BatchCleanupJobParams struct {
	Logger    *logger.Logger
	Repo      batchCleanupRepo
	Retention time.Duration
}

// NewBatchCleanupJob drops completed sync batches past their retention.
// Batch rows are disposable coordination records once terminal.
func NewBatchCleanupJob(params BatchCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("batch repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultBatchRetention
	}
	return &batchCleanupJob{
		logg:      params.Logger,
		repo:      params.Repo,
		retention: retention,
		now:       time.Now,
	}, nil
}

type batchCleanupJob struct {
	logg      *logger.Logger
	repo      batchCleanupRepo
	retention time.Duration
	now       func() time.Time
}

func (j *batchCleanupJob) Name() string { return "sync-batch-cleanup" }

func (j *batchCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteTerminalBatchesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sync batch cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"batches_deleted": deleted,
	})
	j.logg.Info(logCtx, "sync batch cleanup complete")
	return nil
}
