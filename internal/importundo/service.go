// Package importundo reverts the image side effects of one import batch:
// it computes every storage path the batch is responsible for and, on
// explicit confirmation, deletes the objects and resets the rows. The
// default is a dry run that reports paths and touches nothing.
package importundo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/cartavio/imagesync-backend/internal/reconcile"
	"github.com/cartavio/imagesync-backend/internal/storagepath"
	"github.com/cartavio/imagesync-backend/pkg/db/models"
	"github.com/cartavio/imagesync-backend/pkg/enums"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

// Repository reads and resets the rows belonging to an import batch.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByImport returns the tenant's products carrying the given provenance
// tag, gallery included.
func (r *Repository) ListByImport(ctx context.Context, userID, importID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Gallery").
		Where("user_id = ? AND last_import_id = ?", userID, importID).
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list products by import")
	}
	return products, nil
}

// ResetProductImages clears the internalized fields and returns the rows to
// pending so a later run can re-internalize from the supplier source.
func (r *Repository) ResetProductImages(ctx context.Context, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Product{}).
			Where("id IN ?", productIDs).
			Updates(map[string]any{
				"image_path":     nil,
				"image_url":      nil,
				"image_variants": "[]",
				"sync_status":    enums.SyncStatusPending,
				"sync_error":     nil,
				"updated_at":     time.Now().UTC(),
			}).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reset product image fields")
		}

		err = tx.Model(&models.GalleryImage{}).
			Where("product_id IN ?", productIDs).
			Updates(map[string]any{
				"storage_path":       nil,
				"optimized_url":      nil,
				"optimized_variants": "[]",
				"sync_status":        enums.SyncStatusPending,
				"sync_error":         nil,
				"updated_at":         time.Now().UTC(),
			}).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reset gallery image fields")
		}
		return nil
	})
}

// repository is the slice of Repository the service consumes.
type repository interface {
	ListByImport(ctx context.Context, userID, importID uuid.UUID) ([]models.Product, error)
	ResetProductImages(ctx context.Context, productIDs []uuid.UUID) error
}

// objectStore is the slice of the storage client the service consumes.
type objectStore interface {
	Delete(ctx context.Context, paths ...string) error
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// PathMapping records the before/after state of one product's paths.
type PathMapping struct {
	ProductID uuid.UUID `json:"product_id"`
	Paths     []string  `json:"paths"`
}

// Result is the undo report: in dry-run mode it only lists what would go.
type Result struct {
	ImportID     uuid.UUID     `json:"import_id"`
	UserID       uuid.UUID     `json:"user_id"`
	ProductCount int           `json:"product_count"`
	PathCount    int           `json:"path_count"`
	Deleted      bool          `json:"deleted"`
	Mappings     []PathMapping `json:"mappings"`
	AuditPath    string        `json:"audit_path,omitempty"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Service computes and, on confirmation, executes the undo.
type Service struct {
	repo  repository
	store objectStore
	logg  *logger.Logger

	now func() time.Time
}

// NewService wires the undo dependencies.
func NewService(repo repository, store objectStore, logg *logger.Logger) *Service {
	return &Service{repo: repo, store: store, logg: logg, now: time.Now}
}

// Undo reverts one import batch. Without confirmDelete it reports the
// affected paths and mutates nothing. With confirmDelete it deletes the
// storage objects, resets the rows, and uploads the audit mapping. Object
// deletion failures are aggregated; rows are reset only when every delete
// went through.
func (s *Service) Undo(ctx context.Context, userID, importID uuid.UUID, confirmDelete bool) (*Result, error) {
	products, err := s.repo.ListByImport(ctx, userID, importID)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no products carry this import id")
	}

	result := &Result{
		ImportID:     importID,
		UserID:       userID,
		ProductCount: len(products),
		GeneratedAt:  s.now().UTC(),
	}

	var allPaths []string
	var productIDs []uuid.UUID
	for _, product := range products {
		paths := collectPaths(userID, product)
		productIDs = append(productIDs, product.ID)
		result.Mappings = append(result.Mappings, PathMapping{ProductID: product.ID, Paths: paths})
		allPaths = append(allPaths, paths...)
	}
	result.PathCount = len(allPaths)

	if !confirmDelete {
		return result, nil
	}

	var deleteErr error
	for _, path := range allPaths {
		if err := s.store.Delete(ctx, path); err != nil {
			deleteErr = multierr.Append(deleteErr, err)
		}
	}
	if deleteErr != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeStorage, deleteErr, "delete import objects")
	}

	if err := s.repo.ResetProductImages(ctx, productIDs); err != nil {
		return result, err
	}
	result.Deleted = true

	auditPath, err := s.uploadAudit(ctx, userID, result)
	if err != nil {
		s.logg.Error(ctx, "upload import undo audit", err)
	} else {
		result.AuditPath = auditPath
	}
	return result, nil
}

// collectPaths gathers every internal storage path a product references,
// across the canonical fields, the legacy images column, and gallery rows.
// References stored as public URLs are reduced to their object paths, the
// form the store expects to delete.
func collectPaths(userID uuid.UUID, product models.Product) []string {
	seen := map[string]bool{}
	var paths []string
	add := func(ref string) {
		path, ok := storagepath.Normalize(userID, ref)
		if !ok {
			return
		}
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	if product.ImagePath != nil {
		add(*product.ImagePath)
	}
	for _, path := range product.ImageVariants.Paths() {
		add(path)
	}
	if product.Images != nil {
		for _, ref := range reconcile.ParseImageRefs(*product.Images) {
			add(ref)
		}
	}
	for _, img := range product.Gallery {
		if img.StoragePath != nil {
			add(*img.StoragePath)
		}
		for _, path := range img.OptimizedVariants.Paths() {
			add(path)
		}
	}
	return paths
}

func (s *Service) uploadAudit(ctx context.Context, userID uuid.UUID, payload *Result) (string, error) {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode undo audit")
	}
	path := storagepath.AuditReport(userID, "import_undo", s.now())
	if _, err := s.store.Upload(ctx, path, body, "application/json"); err != nil {
		return "", err
	}
	return path, nil
}
