package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

type stubLockStore struct {
	held     map[string]bool
	setErr   error
	released []string
}

func newStubLockStore() *stubLockStore {
	return &stubLockStore{held: map[string]bool{}}
}

func (s *stubLockStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if s.held[key] {
		return false, nil
	}
	s.held[key] = true
	return true, nil
}

func (s *stubLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.held, key)
		s.released = append(s.released, key)
	}
	return nil
}

func (s *stubLockStore) LockKey(name string) string {
	return "imagesync:lock:" + name
}

type stubDrainer struct {
	runs    int
	summary *BatchSummary
	err     error
}

func (s *stubDrainer) Run(context.Context, *uuid.UUID) (*BatchSummary, error) {
	s.runs++
	return s.summary, s.err
}

func TestGuardedRunnerRunsAndReleases(t *testing.T) {
	t.Parallel()

	store := newStubLockStore()
	drainer := &stubDrainer{summary: &BatchSummary{Total: 3, Succeeded: 3, Processed: 3}}
	guard := NewGuardedRunner(drainer, store, 0)

	summary, err := guard.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, drainer.runs)
	assert.Empty(t, store.held)
	assert.Equal(t, []string{"imagesync:lock:sync-run"}, store.released)
}

func TestGuardedRunnerConflictsWhenLockHeld(t *testing.T) {
	t.Parallel()

	store := newStubLockStore()
	store.held["imagesync:lock:sync-run"] = true
	drainer := &stubDrainer{}
	guard := NewGuardedRunner(drainer, store, 0)

	_, err := guard.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.Zero(t, drainer.runs)
}

func TestGuardedRunnerScopesLockPerTenant(t *testing.T) {
	t.Parallel()

	store := newStubLockStore()
	tenantA := uuid.New()
	store.held["imagesync:lock:sync-run:"+tenantA.String()] = true
	drainer := &stubDrainer{summary: &BatchSummary{}}
	guard := NewGuardedRunner(drainer, store, 0)

	_, err := guard.Run(context.Background(), &tenantA)
	require.Error(t, err)

	tenantB := uuid.New()
	_, err = guard.Run(context.Background(), &tenantB)
	require.NoError(t, err)
	assert.Equal(t, 1, drainer.runs)
}

func TestGuardedRunnerReleasesAfterRunnerError(t *testing.T) {
	t.Parallel()

	store := newStubLockStore()
	drainer := &stubDrainer{err: errors.New("db down")}
	guard := NewGuardedRunner(drainer, store, 0)

	_, err := guard.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, store.held)
}

func TestGuardedRunnerFailsClosedOnLockError(t *testing.T) {
	t.Parallel()

	store := newStubLockStore()
	store.setErr = errors.New("redis unreachable")
	drainer := &stubDrainer{}
	guard := NewGuardedRunner(drainer, store, 0)

	_, err := guard.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
	assert.Zero(t, drainer.runs)
}
