package reconcile

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cartavio/imagesync-backend/pkg/db/models"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

// Repository reads the rows whose references the reconciler cross-checks
// against the object listing.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListTenantIDs returns every tenant that owns at least one product.
func (r *Repository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list tenants")
	}
	return ids, nil
}

// ListProducts returns every product owned by the tenant.
func (r *Repository) ListProducts(ctx context.Context, userID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list tenant products")
	}
	return products, nil
}

// InUse answers whether any product or gallery row still references the
// path. It satisfies UsageVerifier so the apply step can double-check a
// candidate right before moving it.
func (r *Repository) InUse(ctx context.Context, path string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("image_path = ? OR image_variants::text LIKE ? OR images LIKE ?", path, "%"+path+"%", "%"+path+"%").
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check product usage")
	}
	if count > 0 {
		return true, nil
	}

	err = r.db.WithContext(ctx).Model(&models.GalleryImage{}).
		Where("storage_path = ? OR optimized_variants::text LIKE ?", path, "%"+path+"%").
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check gallery usage")
	}
	return count > 0, nil
}

// ListGallery returns every gallery row owned by the tenant.
func (r *Repository) ListGallery(ctx context.Context, userID uuid.UUID) ([]models.GalleryImage, error) {
	var images []models.GalleryImage
	err := r.db.WithContext(ctx).Model(&models.GalleryImage{}).
		Joins("JOIN products ON products.id = gallery_images.product_id").
		Where("products.user_id = ?", userID).
		Find(&images).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list tenant gallery")
	}
	return images, nil
}
