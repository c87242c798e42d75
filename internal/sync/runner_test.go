package sync

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartavio/imagesync-backend/pkg/config"
	"github.com/cartavio/imagesync-backend/pkg/db/models"
	"github.com/cartavio/imagesync-backend/pkg/enums"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

type stubBatchRepo struct {
	mu      stdsync.Mutex
	pending []models.Product
	// late rows join the queue once the initial pending set is drained,
	// like products requeued while the run is in flight.
	late []models.Product

	batch     *models.SyncBatch
	started   bool
	finalized bool
	items     map[uuid.UUID]error
}

func newStubBatchRepo(pending ...models.Product) *stubBatchRepo {
	return &stubBatchRepo{pending: pending, items: map[uuid.UUID]error{}}
}

func (s *stubBatchRepo) CountPending(_ context.Context, _ *uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.pending)), nil
}

func (s *stubBatchRepo) ListPendingProducts(_ context.Context, _ *uuid.UUID, limit int) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	chunk := make([]models.Product, limit)
	copy(chunk, s.pending[:limit])
	s.pending = s.pending[limit:]
	if len(s.pending) == 0 && len(s.late) > 0 {
		s.pending = s.late
		s.late = nil
	}
	return chunk, nil
}

func (s *stubBatchRepo) CreateBatch(_ context.Context, batch *models.SyncBatch) error {
	batch.ID = uuid.New()
	batch.Status = enums.BatchStatusQueued
	s.batch = batch
	return nil
}

func (s *stubBatchRepo) StartBatch(_ context.Context, _ uuid.UUID) error {
	s.started = true
	return nil
}

func (s *stubBatchRepo) RecordBatchItem(_ context.Context, _, productID uuid.UUID, itemErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[productID] = itemErr
	return nil
}

func (s *stubBatchRepo) FinalizeBatch(_ context.Context, _ uuid.UUID) error {
	s.finalized = true
	return nil
}

type stubSyncer struct {
	mu       stdsync.Mutex
	failFor  map[uuid.UUID]error
	seen     []uuid.UUID
	inFlight int
	peak     int
}

func (s *stubSyncer) SyncProduct(_ context.Context, productID uuid.UUID, _ bool) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.seen = append(s.seen, productID)
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	err := s.failFor[productID]
	s.mu.Unlock()
	return err
}

func pendingProducts(n int) []models.Product {
	products := make([]models.Product, n)
	for i := range products {
		products[i] = models.Product{ID: uuid.New(), SyncStatus: enums.SyncStatusPending}
	}
	return products
}

func newTestRunner(repo *stubBatchRepo, syncer *stubSyncer, cfg config.SyncConfig) *Runner {
	runner := NewRunner(repo, syncer, cfg, testLogger(), nil)
	runner.sleep = func(time.Duration) {}
	return runner
}

func TestRunDrainsQueueAndCountsOutcomes(t *testing.T) {
	t.Parallel()

	products := pendingProducts(7)
	failing := products[2].ID
	repo := newStubBatchRepo(products...)
	syncer := &stubSyncer{failFor: map[uuid.UUID]error{
		failing: pkgerrors.New(pkgerrors.CodeDecode, "not decodable"),
	}}
	runner := newTestRunner(repo, syncer, config.SyncConfig{Concurrency: 3, ChunkSize: 3})

	summary, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 7, summary.Processed)
	assert.Equal(t, 6, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, failing, summary.Errors[0].ProductID)

	assert.True(t, repo.started)
	assert.True(t, repo.finalized)
	assert.Len(t, repo.items, 7)
	assert.Error(t, repo.items[failing])
	assert.Len(t, syncer.seen, 7)
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	repo := newStubBatchRepo(pendingProducts(12)...)
	syncer := &stubSyncer{}
	runner := newTestRunner(repo, syncer, config.SyncConfig{Concurrency: 2, ChunkSize: 12})

	_, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, syncer.peak, 2)
}

func TestRunClampsConcurrencyAboveFive(t *testing.T) {
	t.Parallel()

	repo := newStubBatchRepo(pendingProducts(10)...)
	syncer := &stubSyncer{}
	runner := newTestRunner(repo, syncer, config.SyncConfig{Concurrency: 50, ChunkSize: 10})

	_, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, syncer.peak, 5)
}

func TestRunCountsLostClaimsAsSkipped(t *testing.T) {
	t.Parallel()

	products := pendingProducts(3)
	repo := newStubBatchRepo(products...)
	syncer := &stubSyncer{failFor: map[uuid.UUID]error{
		products[0].ID: pkgerrors.New(pkgerrors.CodeConflict, "claimed elsewhere"),
	}}
	runner := newTestRunner(repo, syncer, config.SyncConfig{Concurrency: 2, ChunkSize: 10})

	summary, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
	// Skipped items never land in the batch log.
	assert.Len(t, repo.items, 2)
}

func TestRunDrainsRowsThatBecomePendingMidRun(t *testing.T) {
	t.Parallel()

	initial := pendingProducts(3)
	late := pendingProducts(2)
	repo := newStubBatchRepo(initial...)
	repo.late = late
	syncer := &stubSyncer{}
	runner := newTestRunner(repo, syncer, config.SyncConfig{Concurrency: 2, ChunkSize: 2})

	summary, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)

	// The second chunk comes back short, but the queue is not empty: the
	// run keeps pulling and records more outcomes than the opening count.
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Len(t, repo.items, 5)
	for _, product := range late {
		require.Contains(t, repo.items, product.ID)
		assert.NoError(t, repo.items[product.ID])
	}
	assert.True(t, repo.finalized)
}

func TestRunEmptyQueueStillFinalizes(t *testing.T) {
	t.Parallel()

	repo := newStubBatchRepo()
	runner := newTestRunner(repo, &stubSyncer{}, config.SyncConfig{Concurrency: 3, ChunkSize: 5})

	summary, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.Processed)
	assert.True(t, repo.finalized)
}
