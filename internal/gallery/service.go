package gallery

import (
	"context"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/pkg/db/models"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

// repository is the slice of Repository the service consumes.
type repository interface {
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.GalleryImage, error)
	SetCover(ctx context.Context, productID, imageID uuid.UUID) error
	Reorder(ctx context.Context, productID uuid.UUID, orderedIDs []uuid.UUID) error
	AddImage(ctx context.Context, img *models.GalleryImage) error
	DeleteImage(ctx context.Context, productID, imageID uuid.UUID) error
}

// Notifier fans out a product cache invalidation after a gallery mutation.
// Delivery is best effort; a miss means one stale read, not a broken write.
type Notifier interface {
	ProductChanged(ctx context.Context, productID uuid.UUID) error
}

// Service exposes gallery mutations to the API layer.
type Service struct {
	repo     repository
	notifier Notifier
	logg     *logger.Logger
}

// NewService wires the gallery dependencies. notifier may be nil.
func NewService(repo repository, notifier Notifier, logg *logger.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logg: logg}
}

// List returns the product's gallery in display order.
func (s *Service) List(ctx context.Context, productID uuid.UUID) ([]models.GalleryImage, error) {
	return s.repo.ListByProduct(ctx, productID)
}

// SetCover promotes one gallery image to cover and invalidates the cached
// product view.
func (s *Service) SetCover(ctx context.Context, productID, imageID uuid.UUID) error {
	if err := s.repo.SetCover(ctx, productID, imageID); err != nil {
		return err
	}
	s.notify(ctx, productID)
	return nil
}

// Reorder rewrites the gallery display order.
func (s *Service) Reorder(ctx context.Context, productID uuid.UUID, orderedIDs []uuid.UUID) error {
	if err := s.repo.Reorder(ctx, productID, orderedIDs); err != nil {
		return err
	}
	s.notify(ctx, productID)
	return nil
}

// Add appends a supplier URL to the gallery; the sync pipeline picks the
// pending row up on the next run.
func (s *Service) Add(ctx context.Context, productID uuid.UUID, url string, position int) (*models.GalleryImage, error) {
	img := &models.GalleryImage{
		ProductID: productID,
		URL:       url,
		Position:  position,
	}
	if err := s.repo.AddImage(ctx, img); err != nil {
		return nil, err
	}
	s.notify(ctx, productID)
	return img, nil
}

// Delete removes a gallery row. Storage objects are left to the reconciler,
// which moves unreferenced objects to trash on its next pass.
func (s *Service) Delete(ctx context.Context, productID, imageID uuid.UUID) error {
	if err := s.repo.DeleteImage(ctx, productID, imageID); err != nil {
		return err
	}
	s.notify(ctx, productID)
	return nil
}

func (s *Service) notify(ctx context.Context, productID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ProductChanged(ctx, productID); err != nil {
		s.logg.Warn(s.logg.WithProductID(ctx, productID.String()), "product cache invalidation failed")
	}
}
