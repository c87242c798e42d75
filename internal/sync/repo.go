package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cartavio/imagesync-backend/pkg/db/models"
	dbtypes "github.com/cartavio/imagesync-backend/pkg/db/types"
	"github.com/cartavio/imagesync-backend/pkg/enums"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

// Repository wires together the persistence helpers of the sync pipeline.
// Claim and mark operations are single guarded UPDATEs so that the lifecycle
// invariants hold even with parallel workers on the same rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindProduct loads the product without associations.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load product")
	}
	return &product, nil
}

// CountPending counts products eligible for a batch run, optionally scoped
// to a single tenant.
func (r *Repository) CountPending(ctx context.Context, userID *uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("sync_status = ? AND external_image_url <> ''", enums.SyncStatusPending)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count pending products")
	}
	return total, nil
}

// ListPendingProducts returns the next chunk of pending products in stable
// creation order.
func (r *Repository) ListPendingProducts(ctx context.Context, userID *uuid.UUID, limit int) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Where("sync_status = ? AND external_image_url <> ''", enums.SyncStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list pending products")
	}
	return products, nil
}

// ClaimProduct moves a product into processing. Only pending rows may be
// claimed; with force, failed rows are requeued and claimed in one step.
// Returns false when another worker already owns the row or the row is in a
// state the claim does not cover.
func (r *Repository) ClaimProduct(ctx context.Context, id uuid.UUID, force bool) (bool, error) {
	from := []enums.SyncStatus{enums.SyncStatusPending}
	if force {
		from = append(from, enums.SyncStatusFailed)
	}
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND sync_status IN ?", id, from).
		Updates(map[string]any{
			"sync_status": enums.SyncStatusProcessing,
			"sync_error":  nil,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "claim product")
	}
	return result.RowsAffected > 0, nil
}

// MarkProductSynced finishes the pipeline for a product. Status, path, URL
// and the rendition list land in one UPDATE; a synced row always carries
// its storage fields.
func (r *Repository) MarkProductSynced(ctx context.Context, id uuid.UUID, storagePath, publicURL string, variants dbtypes.ImageVariants) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND sync_status = ?", id, enums.SyncStatusProcessing).
		Updates(map[string]any{
			"sync_status":    enums.SyncStatusSynced,
			"image_path":     storagePath,
			"image_url":      publicURL,
			"image_variants": variants,
			"sync_error":     nil,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "mark product synced")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not processing")
	}
	return nil
}

// MarkProductFailed records the failure reason and releases the row into
// failed. Only an explicit requeue brings it back.
func (r *Repository) MarkProductFailed(ctx context.Context, id uuid.UUID, reason string) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND sync_status = ?", id, enums.SyncStatusProcessing).
		Updates(map[string]any{
			"sync_status": enums.SyncStatusFailed,
			"sync_error":  reason,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "mark product failed")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not processing")
	}
	return nil
}

// RequeueProduct moves a failed product back to pending.
func (r *Repository) RequeueProduct(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND sync_status = ?", id, enums.SyncStatusFailed).
		Updates(map[string]any{
			"sync_status": enums.SyncStatusPending,
			"sync_error":  nil,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "requeue product")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only failed products can be requeued")
	}
	return nil
}

// RequeueStaleProcessing reclaims products stuck in processing longer than
// the cutoff, usually after a worker crash. Returns the reclaimed count.
func (r *Repository) RequeueStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("sync_status = ? AND updated_at < ?", enums.SyncStatusProcessing, cutoff).
		Updates(map[string]any{
			"sync_status": enums.SyncStatusPending,
			"sync_error":  nil,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "requeue stale processing")
	}
	return result.RowsAffected, nil
}

// ListPendingGallery returns the product's pending gallery rows in display
// order. Failed rows are excluded; they come back only through an explicit
// requeue, same as products.
func (r *Repository) ListPendingGallery(ctx context.Context, productID uuid.UUID) ([]models.GalleryImage, error) {
	var images []models.GalleryImage
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND sync_status IN ?", productID, galleryClaimable).
		Order("position ASC, created_at ASC").
		Find(&images).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list pending gallery images")
	}
	return images, nil
}

// ClaimGalleryImage moves a pending gallery row into processing.
func (r *Repository) ClaimGalleryImage(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.GalleryImage{}).
		Where("id = ? AND sync_status IN ?", id, galleryClaimable).
		Updates(map[string]any{
			"sync_status": enums.SyncStatusProcessing,
			"sync_error":  nil,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "claim gallery image")
	}
	return result.RowsAffected > 0, nil
}

// MarkGallerySynced finishes a gallery row in one UPDATE, including the
// rendition list.
func (r *Repository) MarkGallerySynced(ctx context.Context, id uuid.UUID, storagePath, optimizedURL string, variants dbtypes.ImageVariants) error {
	result := r.db.WithContext(ctx).Model(&models.GalleryImage{}).
		Where("id = ? AND sync_status = ?", id, enums.SyncStatusProcessing).
		Updates(map[string]any{
			"sync_status":        enums.SyncStatusSynced,
			"storage_path":       storagePath,
			"optimized_url":      optimizedURL,
			"optimized_variants": variants,
			"sync_error":         nil,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "mark gallery image synced")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "gallery image is not processing")
	}
	return nil
}

// MarkGalleryFailed records the failure reason for a gallery row.
func (r *Repository) MarkGalleryFailed(ctx context.Context, id uuid.UUID, reason string) error {
	result := r.db.WithContext(ctx).Model(&models.GalleryImage{}).
		Where("id = ? AND sync_status = ?", id, enums.SyncStatusProcessing).
		Updates(map[string]any{
			"sync_status": enums.SyncStatusFailed,
			"sync_error":  reason,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "mark gallery image failed")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "gallery image is not processing")
	}
	return nil
}

// CreateBatch persists a new batch row in queued state.
func (r *Repository) CreateBatch(ctx context.Context, batch *models.SyncBatch) error {
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create sync batch")
	}
	return nil
}

// StartBatch flips the batch into processing.
func (r *Repository) StartBatch(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.SyncBatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.BatchStatusProcessing,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "start sync batch")
	}
	return nil
}

// RecordBatchItem appends the per-product outcome and advances the batch
// counters with server-side arithmetic so parallel workers never lose an
// increment.
func (r *Repository) RecordBatchItem(ctx context.Context, batchID, productID uuid.UUID, itemErr error) error {
	item := models.SyncBatchItem{
		BatchID:   batchID,
		ProductID: productID,
		Succeeded: itemErr == nil,
	}
	if itemErr != nil {
		msg := itemErr.Error()
		item.Error = &msg
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record batch item")
		}
		updates := map[string]any{
			"completed_count": gorm.Expr("completed_count + 1"),
			"updated_at":      time.Now().UTC(),
		}
		if itemErr == nil {
			updates["succeeded"] = gorm.Expr("succeeded + 1")
		} else {
			updates["failed"] = gorm.Expr("failed + 1")
		}
		if err := tx.Model(&models.SyncBatch{}).Where("id = ?", batchID).Updates(updates).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "advance batch counters")
		}
		return nil
	})
}

// FinalizeBatch marks the batch completed.
func (r *Repository) FinalizeBatch(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.SyncBatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.BatchStatusCompleted,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "finalize sync batch")
	}
	return nil
}

// FindBatch loads a batch with its items.
func (r *Repository) FindBatch(ctx context.Context, id uuid.UUID) (*models.SyncBatch, error) {
	var batch models.SyncBatch
	err := r.db.WithContext(ctx).Preload("Items").First(&batch, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sync batch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load sync batch")
	}
	return &batch, nil
}

// DeleteTerminalBatchesBefore drops completed batches older than the cutoff.
// Items cascade.
func (r *Repository) DeleteTerminalBatchesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.BatchStatusCompleted, cutoff).
		Delete(&models.SyncBatch{})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "delete terminal batches")
	}
	return result.RowsAffected, nil
}
