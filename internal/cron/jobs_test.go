package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBatchCleanupRepo struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (s *stubBatchCleanupRepo) DeleteTerminalBatchesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, s.err
}

func TestBatchCleanupJobUsesRetentionCutoff(t *testing.T) {
	t.Parallel()

	repo := &stubBatchCleanupRepo{deleted: 3}
	job, err := NewBatchCleanupJob(BatchCleanupJobParams{
		Logger:    testLogger(),
		Repo:      repo,
		Retention: 48 * time.Hour,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, job.Run(context.Background()))
	assert.WithinDuration(t, now.Add(-48*time.Hour), repo.cutoff, time.Minute)
	assert.Equal(t, "sync-batch-cleanup", job.Name())
}

type stubTenantLister struct {
	tenants []uuid.UUID
}

func (s *stubTenantLister) ListTenantIDs(_ context.Context) ([]uuid.UUID, error) {
	return s.tenants, nil
}

type stubPurger struct {
	counts map[uuid.UUID]int
	errFor map[uuid.UUID]error
	calls  []uuid.UUID
}

func (s *stubPurger) PurgeTrash(_ context.Context, userID uuid.UUID, _ time.Duration) (int, error) {
	s.calls = append(s.calls, userID)
	if err := s.errFor[userID]; err != nil {
		return 0, err
	}
	return s.counts[userID], nil
}

func TestTrashPurgeJobCoversEveryTenant(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	purger := &stubPurger{counts: map[uuid.UUID]int{a: 2, b: 1}}
	job, err := NewTrashPurgeJob(TrashPurgeJobParams{
		Logger:  testLogger(),
		Tenants: &stubTenantLister{tenants: []uuid.UUID{a, b}},
		Purger:  purger,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.ElementsMatch(t, []uuid.UUID{a, b}, purger.calls)
}

func TestTrashPurgeJobContinuesPastTenantFailure(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	purger := &stubPurger{
		counts: map[uuid.UUID]int{b: 1},
		errFor: map[uuid.UUID]error{a: assert.AnError},
	}
	job, err := NewTrashPurgeJob(TrashPurgeJobParams{
		Logger:  testLogger(),
		Tenants: &stubTenantLister{tenants: []uuid.UUID{a, b}},
		Purger:  purger,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, purger.calls, 2)
}

type stubStaleRepo struct {
	cutoff   time.Time
	requeued int64
}

func (s *stubStaleRepo) RequeueStaleProcessing(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.requeued, nil
}

func TestStaleRequeueJobUsesStaleCutoff(t *testing.T) {
	t.Parallel()

	repo := &stubStaleRepo{requeued: 5}
	job, err := NewStaleRequeueJob(StaleRequeueJobParams{
		Logger:     testLogger(),
		Repo:       repo,
		StaleAfter: 30 * time.Minute,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, job.Run(context.Background()))
	assert.WithinDuration(t, now.Add(-30*time.Minute), repo.cutoff, time.Minute)
	assert.Equal(t, "stale-processing-requeue", job.Name())
}
