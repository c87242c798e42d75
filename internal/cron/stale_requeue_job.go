package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/cartavio/imagesync-backend/pkg/logger"
)

const defaultStaleAfter = time.Hour

type staleRequeueRepo interface {
	RequeueStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
}

// StaleRequeueJobParams configure the stale processing requeue job.
type StaleRequeueJobParams struct {
	Logger     *logger.Logger
	Repo       staleRequeueRepo
	StaleAfter time.Duration
}

// NewStaleRequeueJob reclaims products stuck in processing, usually after a
// worker crash mid-pipeline. Re-running the pipeline is safe: uploads are
// idempotent by path.
func NewStaleRequeueJob(params StaleRequeueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sync repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &staleRequeueJob{
		logg:       params.Logger,
		repo:       params.Repo,
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

type staleRequeueJob struct {
	logg       *logger.Logger
	repo       staleRequeueRepo
	staleAfter time.Duration
	now        func() time.Time
}

func (j *staleRequeueJob) Name() string { return "stale-processing-requeue" }

func (j *staleRequeueJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	requeued, err := j.repo.RequeueStaleProcessing(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("stale processing requeue: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"requeued": requeued,
	})
	j.logg.Info(logCtx, "stale processing requeue complete")
	return nil
}
