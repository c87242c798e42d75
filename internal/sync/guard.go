package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

const defaultRunGuardTTL = 30 * time.Minute

// runLockStore is the slice of the redis client the guard consumes.
type runLockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// batchDrainer is the runner surface the guard wraps.
type batchDrainer interface {
	Run(ctx context.Context, userID *uuid.UUID) (*BatchSummary, error)
}

// GuardedRunner wraps a Runner with a redis lock so only one drain runs per
// tenant scope at a time. A second trigger answers CONFLICT instead of
// starting a duplicate batch.
type GuardedRunner struct {
	runner batchDrainer
	store  runLockStore
	ttl    time.Duration
}

func NewGuardedRunner(runner batchDrainer, store runLockStore, ttl time.Duration) *GuardedRunner {
	if ttl <= 0 {
		ttl = defaultRunGuardTTL
	}
	return &GuardedRunner{runner: runner, store: store, ttl: ttl}
}

func (g *GuardedRunner) Run(ctx context.Context, userID *uuid.UUID) (*BatchSummary, error) {
	key := g.lockKey(userID)
	acquired, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire sync run lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a sync run is already in progress")
	}
	// TTL reaps the key if the release fails.
	defer func() { _ = g.store.Del(context.WithoutCancel(ctx), key) }()

	return g.runner.Run(ctx, userID)
}

func (g *GuardedRunner) lockKey(userID *uuid.UUID) string {
	name := "sync-run"
	if userID != nil {
		name += ":" + userID.String()
	}
	return g.store.LockKey(name)
}
