package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/cartavio/imagesync-backend/pkg/db/types"
	"github.com/cartavio/imagesync-backend/pkg/enums"
)

// Product represents one catalog item owned by a tenant. Image fields track
// both the supplier source of truth and the internalized copy.
type Product struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	LastImportID *uuid.UUID `gorm:"column:last_import_id;type:uuid"`
	Title        string     `gorm:"column:title;not null"`

	// ExternalImageURL is the supplier-hosted source image.
	ExternalImageURL string `gorm:"column:external_image_url"`
	// ImageURL is the resolved public URL, internal once synced.
	ImageURL *string `gorm:"column:image_url"`
	// ImagePath is the canonical storage path. Non-null implies synced.
	ImagePath *string `gorm:"column:image_path"`
	// ImageVariants lists the sized renditions uploaded next to the main
	// image, mirroring the gallery's optimized_variants.
	ImageVariants dbtypes.ImageVariants `gorm:"column:image_variants;type:jsonb;default:'[]'"`
	// Images is a legacy free-form column: raw URL, JSON-encoded array, or
	// comma-joined concatenation. Read through reconcile.ParseImageRefs.
	Images *string `gorm:"column:images"`

	SyncStatus enums.SyncStatus `gorm:"column:sync_status;not null;default:pending"`
	SyncError  *string          `gorm:"column:sync_error"`

	Gallery []GalleryImage `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
