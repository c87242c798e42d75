package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cartavio/imagesync-backend/pkg/config"
	"github.com/cartavio/imagesync-backend/pkg/db/models"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
	"github.com/cartavio/imagesync-backend/pkg/metrics"
)

// productSyncer is the slice of Service the runner consumes.
type productSyncer interface {
	SyncProduct(ctx context.Context, productID uuid.UUID, force bool) error
}

// batchRepository is the slice of Repository the runner consumes.
type batchRepository interface {
	CountPending(ctx context.Context, userID *uuid.UUID) (int64, error)
	ListPendingProducts(ctx context.Context, userID *uuid.UUID, limit int) ([]models.Product, error)
	CreateBatch(ctx context.Context, batch *models.SyncBatch) error
	StartBatch(ctx context.Context, id uuid.UUID) error
	RecordBatchItem(ctx context.Context, batchID, productID uuid.UUID, itemErr error) error
	FinalizeBatch(ctx context.Context, id uuid.UUID) error
}

// ItemError is one failed product inside a batch run.
type ItemError struct {
	ProductID uuid.UUID `json:"product_id"`
	Message   string    `json:"message"`
}

// BatchSummary reports the outcome of one Run.
type BatchSummary struct {
	BatchID   uuid.UUID   `json:"batch_id"`
	Total     int         `json:"total"`
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Runner drains the pending queue in chunks through a bounded worker pool.
// One failed product never stops the run; the pool keeps pulling until the
// queue is empty.
type Runner struct {
	repo    batchRepository
	syncer  productSyncer
	cfg     config.SyncConfig
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewRunner builds a runner with the configured concurrency bounds.
func NewRunner(repo batchRepository, syncer productSyncer, cfg config.SyncConfig, logg *logger.Logger, pm *metrics.PipelineMetrics) *Runner {
	return &Runner{
		repo:    repo,
		syncer:  syncer,
		cfg:     cfg,
		logg:    logg,
		metrics: pm,
		sleep:   time.Sleep,
	}
}

// Run synchronizes every pending product, optionally scoped to one tenant.
// The batch row is created up front and its counters advance per item, so
// progress is observable while the run is in flight.
func (r *Runner) Run(ctx context.Context, userID *uuid.UUID) (*BatchSummary, error) {
	concurrency := r.cfg.Concurrency
	if concurrency < 2 {
		concurrency = 2
	}
	if concurrency > 5 {
		concurrency = 5
	}
	chunkSize := r.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 20
	}

	total, err := r.repo.CountPending(ctx, userID)
	if err != nil {
		return nil, err
	}

	batch := &models.SyncBatch{UserID: userID, TotalCount: int(total)}
	if err := r.repo.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	if err := r.repo.StartBatch(ctx, batch.ID); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IncBatchRun()
	}

	ctx = r.logg.WithBatchID(ctx, batch.ID.String())
	r.logg.Info(ctx, "sync batch started")

	summary := &BatchSummary{BatchID: batch.ID, Total: int(total)}
	var mu sync.Mutex

	for {
		if err := ctx.Err(); err != nil {
			break
		}
		products, err := r.repo.ListPendingProducts(ctx, userID, chunkSize)
		if err != nil {
			return summary, err
		}
		if len(products) == 0 {
			break
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(concurrency)
		for _, product := range products {
			product := product
			group.Go(func() error {
				itemErr := r.syncer.SyncProduct(groupCtx, product.ID, false)
				r.recordItem(groupCtx, batch.ID, product.ID, itemErr, summary, &mu)
				return nil
			})
		}
		// Goroutines swallow item errors, so Wait only reflects ctx.
		_ = group.Wait()

		// A short chunk is not the end of the queue: rows requeued or
		// inserted mid-run still count. Only an empty listing stops the run.
		if r.cfg.InterChunkDelay > 0 {
			r.sleep(r.cfg.InterChunkDelay)
		}
	}

	if err := r.repo.FinalizeBatch(ctx, batch.ID); err != nil {
		return summary, err
	}
	r.logg.Info(ctx, "sync batch finished")
	return summary, nil
}

// recordItem folds one outcome into the batch row and the in-memory summary.
// A claim lost to a concurrent worker counts as skipped, not failed.
func (r *Runner) recordItem(ctx context.Context, batchID, productID uuid.UUID, itemErr error, summary *BatchSummary, mu *sync.Mutex) {
	if typed := pkgerrors.As(itemErr); typed != nil && typed.Code() == pkgerrors.CodeConflict {
		mu.Lock()
		summary.Skipped++
		mu.Unlock()
		return
	}

	if err := r.repo.RecordBatchItem(ctx, batchID, productID, itemErr); err != nil {
		r.logg.Error(ctx, "record batch item", err)
	}

	mu.Lock()
	defer mu.Unlock()
	summary.Processed++
	if itemErr == nil {
		summary.Succeeded++
		return
	}
	summary.Failed++
	summary.Errors = append(summary.Errors, ItemError{
		ProductID: productID,
		Message:   itemErr.Error(),
	})
}