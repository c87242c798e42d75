package urlrepair

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cartavio/imagesync-backend/pkg/db"
	"github.com/cartavio/imagesync-backend/pkg/db/models"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

// Repository scans for and rewrites malformed URL fields.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// The scan predicate matches two scheme prefixes anywhere in the field.
const multiURLPattern = `https?://.+https?://`

// ListMalformedGallery returns gallery rows whose url holds more than one
// concatenated URL, optionally scoped to one tenant.
func (r *Repository) ListMalformedGallery(ctx context.Context, userID *uuid.UUID) ([]models.GalleryImage, error) {
	query := r.db.WithContext(ctx).Model(&models.GalleryImage{}).
		Joins("JOIN products ON products.id = gallery_images.product_id").
		Where("gallery_images.url ~ ?", multiURLPattern)
	if userID != nil {
		query = query.Where("products.user_id = ?", *userID)
	}
	var images []models.GalleryImage
	if err := query.Find(&images).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "scan malformed gallery urls")
	}
	return images, nil
}

// ListMalformedProducts returns products whose external_image_url holds more
// than one concatenated URL.
func (r *Repository) ListMalformedProducts(ctx context.Context, userID *uuid.UUID) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Where("external_image_url ~ ?", multiURLPattern)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "scan malformed product urls")
	}
	return products, nil
}

// GalleryURLExists reports whether the product already has a gallery row
// with that exact URL.
func (r *Repository) GalleryURLExists(ctx context.Context, productID uuid.UUID, url string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GalleryImage{}).
		Where("product_id = ? AND url = ?", productID, url).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check gallery url")
	}
	return count > 0, nil
}

// InsertGalleryURL appends one extracted URL as a pending gallery row. A
// concurrent insert of the same URL trips the per-product unique index and
// surfaces as CONFLICT.
func (r *Repository) InsertGalleryURL(ctx context.Context, productID uuid.UUID, url string, position int) error {
	img := models.GalleryImage{ProductID: productID, URL: url, Position: position}
	if err := r.db.WithContext(ctx).Create(&img).Error; err != nil {
		if db.IsUniqueViolation(err, "uq_gallery_images_product_url") {
			return pkgerrors.New(pkgerrors.CodeConflict, "gallery url already present")
		}
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "insert extracted gallery url")
	}
	return nil
}

// DeleteGalleryRow removes the original malformed row.
func (r *Repository) DeleteGalleryRow(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Delete(&models.GalleryImage{}, "id = ?", id).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete malformed gallery row")
	}
	return nil
}

// RewriteExternalURL replaces a product's malformed external_image_url with
// the first extracted URL.
func (r *Repository) RewriteExternalURL(ctx context.Context, productID uuid.UUID, url string) error {
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("external_image_url", url).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "rewrite external image url")
	}
	return nil
}

// NextGalleryPosition returns one past the highest position in the gallery.
func (r *Repository) NextGalleryPosition(ctx context.Context, productID uuid.UUID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.GalleryImage{}).
		Where("product_id = ?", productID).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "max gallery position")
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

// repository is the slice of Repository the service consumes.
type repository interface {
	ListMalformedGallery(ctx context.Context, userID *uuid.UUID) ([]models.GalleryImage, error)
	ListMalformedProducts(ctx context.Context, userID *uuid.UUID) ([]models.Product, error)
	GalleryURLExists(ctx context.Context, productID uuid.UUID, url string) (bool, error)
	InsertGalleryURL(ctx context.Context, productID uuid.UUID, url string, position int) error
	DeleteGalleryRow(ctx context.Context, id uuid.UUID) error
	RewriteExternalURL(ctx context.Context, productID uuid.UUID, url string) error
	NextGalleryPosition(ctx context.Context, productID uuid.UUID) (int, error)
}

// Report summarizes one repair pass.
type Report struct {
	GalleryRowsRepaired int      `json:"gallery_rows_repaired"`
	ProductsRepaired    int      `json:"products_repaired"`
	URLsExtracted       int      `json:"urls_extracted"`
	Errors              []string `json:"errors,omitempty"`
}

// Service runs the repair over malformed rows.
type Service struct {
	repo repository
	logg *logger.Logger
}

// NewService wires the repair dependencies.
func NewService(repo repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// RepairAll scans the tenant (or every tenant with nil userID) and repairs
// each malformed field. Per-row failures are collected, never fatal to the
// pass.
func (s *Service) RepairAll(ctx context.Context, userID *uuid.UUID) (*Report, error) {
	report := &Report{}

	images, err := s.repo.ListMalformedGallery(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		if err := s.repairGalleryRow(ctx, img, report); err != nil {
			report.Errors = append(report.Errors, err.Error())
			s.logg.Error(ctx, "gallery url repair failed", err)
		}
	}

	products, err := s.repo.ListMalformedProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, product := range products {
		if err := s.repairProductURL(ctx, product, report); err != nil {
			report.Errors = append(report.Errors, err.Error())
			s.logg.Error(ctx, "product url repair failed", err)
		}
	}
	return report, nil
}

// repairGalleryRow extracts each URL into its own pending row, then deletes
// the malformed row once every URL is present. The delete never runs before
// all inserts are confirmed.
func (s *Service) repairGalleryRow(ctx context.Context, img models.GalleryImage, report *Report) error {
	urls := Split(img.URL)
	if len(urls) < 2 {
		return nil
	}

	position, err := s.repo.NextGalleryPosition(ctx, img.ProductID)
	if err != nil {
		return err
	}
	for _, url := range urls {
		exists, err := s.repo.GalleryURLExists(ctx, img.ProductID, url)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := s.repo.InsertGalleryURL(ctx, img.ProductID, url, position); err != nil {
			// A concurrent pass inserted the same URL between the existence
			// check and the insert; the URL is present either way.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			return err
		}
		position++
		report.URLsExtracted++
	}

	for _, url := range urls {
		exists, err := s.repo.GalleryURLExists(ctx, img.ProductID, url)
		if err != nil {
			return err
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeInternal, "extracted url missing after insert, keeping malformed row")
		}
	}

	if err := s.repo.DeleteGalleryRow(ctx, img.ID); err != nil {
		return err
	}
	report.GalleryRowsRepaired++
	return nil
}

// repairProductURL keeps the first URL as the product's source and moves the
// rest into the gallery. The rewrite runs only after the gallery inserts.
func (s *Service) repairProductURL(ctx context.Context, product models.Product, report *Report) error {
	urls := Split(product.ExternalImageURL)
	if len(urls) < 2 {
		return nil
	}

	position, err := s.repo.NextGalleryPosition(ctx, product.ID)
	if err != nil {
		return err
	}
	for _, url := range urls[1:] {
		exists, err := s.repo.GalleryURLExists(ctx, product.ID, url)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := s.repo.InsertGalleryURL(ctx, product.ID, url, position); err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			return err
		}
		position++
		report.URLsExtracted++
	}

	if err := s.repo.RewriteExternalURL(ctx, product.ID, urls[0]); err != nil {
		return err
	}
	report.ProductsRepaired++
	return nil
}
