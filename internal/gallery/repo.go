package gallery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cartavio/imagesync-backend/pkg/db/models"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

// Repository wraps gallery persistence. Cover changes run inside one
// transaction so the single-primary constraint never sees an intermediate
// state with two covers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByProduct returns the product's gallery in display order.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.GalleryImage, error) {
	var images []models.GalleryImage
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("position ASC, created_at ASC").
		Find(&images).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list gallery images")
	}
	return images, nil
}

// FindImage loads one gallery row scoped to its product.
func (r *Repository) FindImage(ctx context.Context, productID, imageID uuid.UUID) (*models.GalleryImage, error) {
	var img models.GalleryImage
	err := r.db.WithContext(ctx).
		First(&img, "id = ? AND product_id = ?", imageID, productID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gallery image not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load gallery image")
	}
	return &img, nil
}

// SetCover promotes one image to primary. The clear and the set share a
// transaction; the unique partial index on is_primary backs this up at the
// database level.
func (r *Repository) SetCover(ctx context.Context, productID, imageID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var img models.GalleryImage
		if err := tx.First(&img, "id = ? AND product_id = ?", imageID, productID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "gallery image not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load gallery image")
		}

		err := tx.Model(&models.GalleryImage{}).
			Where("product_id = ? AND is_primary", productID).
			Updates(map[string]any{"is_primary": false, "updated_at": time.Now().UTC()}).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "clear previous cover")
		}

		err = tx.Model(&models.GalleryImage{}).
			Where("id = ?", imageID).
			Updates(map[string]any{"is_primary": true, "updated_at": time.Now().UTC()}).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "set cover")
		}
		return nil
	})
}

// Reorder rewrites the positions of the product's gallery to match the
// given order. Every image of the product must appear exactly once.
func (r *Repository) Reorder(ctx context.Context, productID uuid.UUID, orderedIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.GalleryImage{}).
			Where("product_id = ?", productID).
			Count(&count).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count gallery images")
		}
		if int64(len(orderedIDs)) != count {
			return pkgerrors.New(pkgerrors.CodeValidation, "order must list every gallery image exactly once")
		}

		for position, id := range orderedIDs {
			result := tx.Model(&models.GalleryImage{}).
				Where("id = ? AND product_id = ?", id, productID).
				Updates(map[string]any{"position": position, "updated_at": time.Now().UTC()})
			if result.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "update gallery position")
			}
			if result.RowsAffected == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "order references an image outside the product")
			}
		}
		return nil
	})
}

// AddImage appends a supplier URL to the gallery in pending state.
func (r *Repository) AddImage(ctx context.Context, img *models.GalleryImage) error {
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create gallery image")
	}
	return nil
}

// DeleteImage removes a gallery row scoped to its product.
func (r *Repository) DeleteImage(ctx context.Context, productID, imageID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", imageID, productID).
		Delete(&models.GalleryImage{})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "delete gallery image")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "gallery image not found")
	}
	return nil
}
