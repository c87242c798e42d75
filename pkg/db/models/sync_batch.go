package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/pkg/enums"
)

// SyncBatch tracks one triggered synchronization run. Progress counters are
// advanced with server-side increments so concurrent workers never
// double-count.
type SyncBatch struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         *uuid.UUID        `gorm:"column:user_id;type:uuid"`
	TotalCount     int               `gorm:"column:total_count;not null;default:0"`
	CompletedCount int               `gorm:"column:completed_count;not null;default:0"`
	Succeeded      int               `gorm:"column:succeeded;not null;default:0"`
	Failed         int               `gorm:"column:failed;not null;default:0"`
	Status         enums.BatchStatus `gorm:"column:status;not null;default:queued"`
	Items          []SyncBatchItem   `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// SyncBatchItem records the per-product outcome of a batch run.
type SyncBatchItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BatchID   uuid.UUID `gorm:"column:batch_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Succeeded bool      `gorm:"column:succeeded;not null;default:false"`
	Error     *string   `gorm:"column:error"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
