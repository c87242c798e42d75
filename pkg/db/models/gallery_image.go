package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/cartavio/imagesync-backend/pkg/db/types"
	"github.com/cartavio/imagesync-backend/pkg/enums"
)

// GalleryImage is one discrete image in a product's gallery.
type GalleryImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`

	// URL is the original supplier source.
	URL          string  `gorm:"column:url;not null"`
	OptimizedURL *string `gorm:"column:optimized_url"`
	StoragePath  *string `gorm:"column:storage_path"`

	// IsPrimary marks the cover image; at most one per product.
	IsPrimary bool `gorm:"column:is_primary;not null;default:false"`
	Position  int  `gorm:"column:position;not null;default:0"`

	SyncStatus enums.SyncStatus `gorm:"column:sync_status;not null;default:pending"`
	SyncError  *string          `gorm:"column:sync_error"`

	OptimizedVariants dbtypes.ImageVariants `gorm:"column:optimized_variants;type:jsonb;default:'[]'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
