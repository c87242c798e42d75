package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/internal/fetch"
	"github.com/cartavio/imagesync-backend/internal/storagepath"
	"github.com/cartavio/imagesync-backend/internal/transform"
	"github.com/cartavio/imagesync-backend/pkg/db/models"
	dbtypes "github.com/cartavio/imagesync-backend/pkg/db/types"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
	"github.com/cartavio/imagesync-backend/pkg/metrics"
)

// repository is the slice of Repository the pipeline consumes.
type repository interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ClaimProduct(ctx context.Context, id uuid.UUID, force bool) (bool, error)
	MarkProductSynced(ctx context.Context, id uuid.UUID, storagePath, publicURL string, variants dbtypes.ImageVariants) error
	MarkProductFailed(ctx context.Context, id uuid.UUID, reason string) error
	RequeueProduct(ctx context.Context, id uuid.UUID) error
	ListPendingGallery(ctx context.Context, productID uuid.UUID) ([]models.GalleryImage, error)
	ClaimGalleryImage(ctx context.Context, id uuid.UUID) (bool, error)
	MarkGallerySynced(ctx context.Context, id uuid.UUID, storagePath, optimizedURL string, variants dbtypes.ImageVariants) error
	MarkGalleryFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// fetcher retrieves the supplier-hosted source bytes.
type fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// objectStore is the slice of the storage client the pipeline consumes.
type objectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Service runs the internalization pipeline for one product at a time:
// claim, fetch, transform, upload, then commit. The database commit is the
// last step so an interrupted run leaves at worst an orphan object, never a
// dangling reference.
type Service struct {
	repo    repository
	fetcher fetcher
	store   objectStore
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics
}

// NewService wires the pipeline dependencies.
func NewService(repo repository, fetcher fetcher, store objectStore, logg *logger.Logger, pm *metrics.PipelineMetrics) *Service {
	return &Service{repo: repo, fetcher: fetcher, store: store, logg: logg, metrics: pm}
}

// SyncProduct internalizes the product's main image and any pending gallery
// rows. With force, a failed product is requeued and claimed in one step.
// A claim lost to a concurrent worker surfaces as CONFLICT.
func (s *Service) SyncProduct(ctx context.Context, productID uuid.UUID, force bool) error {
	start := time.Now()
	ctx = s.logg.WithProductID(ctx, productID.String())

	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product.ExternalImageURL == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product has no external image url")
	}

	claimed, err := s.repo.ClaimProduct(ctx, productID, force)
	if err != nil {
		return err
	}
	if !claimed {
		return pkgerrors.New(pkgerrors.CodeConflict, "product is not claimable in its current state")
	}

	err = s.internalizeMain(ctx, product)
	s.observe(err, time.Since(start))
	if err != nil {
		if markErr := s.repo.MarkProductFailed(ctx, productID, err.Error()); markErr != nil {
			s.logg.Error(ctx, "record product sync failure", markErr)
		}
		return err
	}

	// Gallery rows fail independently; a bad gallery URL never undoes the
	// main image commit.
	s.syncGallery(ctx, product)
	return nil
}

// internalizeMain fetches, transforms and uploads the product's main image,
// then commits status, path, URL and the rendition list in one update.
func (s *Service) internalizeMain(ctx context.Context, product *models.Product) error {
	result, err := s.fetcher.Fetch(ctx, product.ExternalImageURL)
	if err != nil {
		return err
	}

	outputs, err := transform.Variants(result.Bytes, transform.Hero, transform.Thumbnail)
	if err != nil {
		return err
	}

	mainPath := storagepath.Product(product.UserID, product.ID)
	publicURL := ""
	variants := dbtypes.ImageVariants{}
	for _, out := range outputs {
		path := mainPath
		if out.Profile.Name != transform.Hero.Name {
			path = storagepath.ProductVariant(product.UserID, product.ID, out.Profile.MaxSize)
		}
		url, err := s.store.Upload(ctx, path, out.Bytes, out.ContentType)
		if err != nil {
			return err
		}
		if path == mainPath {
			publicURL = url
			continue
		}
		variants = append(variants, dbtypes.ImageVariant{Size: out.Profile.MaxSize, URL: url, Path: path})
	}

	if err := s.repo.MarkProductSynced(ctx, product.ID, mainPath, publicURL, variants); err != nil {
		return err
	}
	s.logg.Info(ctx, "product image internalized")
	return nil
}

// syncGallery processes the product's pending gallery rows. Each row is
// claimed and committed on its own; failures are recorded per row.
func (s *Service) syncGallery(ctx context.Context, product *models.Product) {
	images, err := s.repo.ListPendingGallery(ctx, product.ID)
	if err != nil {
		s.logg.Error(ctx, "list pending gallery images", err)
		return
	}
	for _, img := range images {
		if err := s.syncGalleryImage(ctx, product, img); err != nil {
			s.logg.Error(ctx, "gallery image sync failed", err)
		}
	}
}

func (s *Service) syncGalleryImage(ctx context.Context, product *models.Product, img models.GalleryImage) error {
	start := time.Now()

	claimed, err := s.repo.ClaimGalleryImage(ctx, img.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	err = s.internalizeGalleryImage(ctx, product, img)
	s.observe(err, time.Since(start))
	if err != nil {
		if markErr := s.repo.MarkGalleryFailed(ctx, img.ID, err.Error()); markErr != nil {
			s.logg.Error(ctx, "record gallery sync failure", markErr)
		}
		return err
	}
	return nil
}

func (s *Service) internalizeGalleryImage(ctx context.Context, product *models.Product, img models.GalleryImage) error {
	result, err := s.fetcher.Fetch(ctx, img.URL)
	if err != nil {
		return err
	}

	outputs, err := transform.Variants(result.Bytes, transform.Gallery, transform.Thumbnail)
	if err != nil {
		return err
	}

	mainPath := storagepath.Gallery(product.UserID, product.ID, img.ID)
	optimizedURL := ""
	variants := dbtypes.ImageVariants{}
	for _, out := range outputs {
		path := mainPath
		if out.Profile.Name != transform.Gallery.Name {
			path = storagepath.GalleryVariant(product.UserID, product.ID, img.ID, out.Profile.MaxSize)
		}
		url, err := s.store.Upload(ctx, path, out.Bytes, out.ContentType)
		if err != nil {
			return err
		}
		if path == mainPath {
			optimizedURL = url
		} else {
			variants = append(variants, dbtypes.ImageVariant{
				Size: out.Profile.MaxSize,
				URL:  url,
				Path: path,
			})
		}
	}

	return s.repo.MarkGallerySynced(ctx, img.ID, mainPath, optimizedURL, variants)
}

// ProductOwner returns the tenant that owns the product.
func (s *Service) ProductOwner(ctx context.Context, productID uuid.UUID) (uuid.UUID, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return uuid.Nil, err
	}
	return product.UserID, nil
}

// Requeue moves a failed product back to pending for the next batch run.
func (s *Service) Requeue(ctx context.Context, productID uuid.UUID) error {
	return s.repo.RequeueProduct(ctx, productID)
}

func (s *Service) observe(err error, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	code := ""
	if err != nil {
		outcome = "failure"
		code = string(pkgerrors.As(err).Code())
	}
	s.metrics.ObserveItem(outcome, code, duration)
}