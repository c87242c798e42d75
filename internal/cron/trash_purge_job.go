package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/pkg/logger"
)

const defaultTrashRetention = 30 * 24 * time.Hour

type tenantLister interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

type trashPurger interface {
	PurgeTrash(ctx context.Context, userID uuid.UUID, retention time.Duration) (int, error)
}

// TrashPurgeJobParams configure the trash purge job.
type TrashPurgeJobParams struct {
	Logger    *logger.Logger
	Tenants   tenantLister
	Purger    trashPurger
	Retention time.Duration
}

// NewTrashPurgeJob permanently removes trash objects past their retention,
// tenant by tenant. This is the second, irreversible step of the orphan
// lifecycle; everything before it only moves objects.
func NewTrashPurgeJob(params TrashPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant lister required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("trash purger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultTrashRetention
	}
	return &trashPurgeJob{
		logg:      params.Logger,
		tenants:   params.Tenants,
		purger:    params.Purger,
		retention: retention,
	}, nil
}

type trashPurgeJob struct {
	logg      *logger.Logger
	tenants   tenantLister
	purger    trashPurger
	retention time.Duration
}

func (j *trashPurgeJob) Name() string { return "trash-purge" }

func (j *trashPurgeJob) Run(ctx context.Context) error {
	tenantIDs, err := j.tenants.ListTenantIDs(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	var purged, failures int
	for _, tenantID := range tenantIDs {
		count, err := j.purger.PurgeTrash(ctx, tenantID, j.retention)
		if err != nil {
			failures++
			j.logg.Error(j.logg.WithUserID(ctx, tenantID.String()), "trash purge failed for tenant", err)
			continue
		}
		purged += count
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"tenants":         len(tenantIDs),
		"objects_purged":  purged,
		"tenant_failures": failures,
	})
	j.logg.Info(logCtx, "trash purge complete")
	if failures > 0 {
		return fmt.Errorf("trash purge: %d tenant(s) failed", failures)
	}
	return nil
}
