package urlrepair

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartavio/imagesync-backend/pkg/db/models"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubRepairRepo struct {
	malformedGallery  []models.GalleryImage
	malformedProducts []models.Product

	existing   map[string]bool
	inserted   []string
	deleted    []uuid.UUID
	rewrites   map[uuid.UUID]string
	insertFail bool
	// raced URLs behave as if another pass inserted them first: the
	// insert reports CONFLICT and the row exists from then on.
	raced map[string]bool
}

func newStubRepairRepo() *stubRepairRepo {
	return &stubRepairRepo{
		existing: map[string]bool{},
		rewrites: map[uuid.UUID]string{},
		raced:    map[string]bool{},
	}
}

func (s *stubRepairRepo) ListMalformedGallery(_ context.Context, _ *uuid.UUID) ([]models.GalleryImage, error) {
	return s.malformedGallery, nil
}

func (s *stubRepairRepo) ListMalformedProducts(_ context.Context, _ *uuid.UUID) ([]models.Product, error) {
	return s.malformedProducts, nil
}

func (s *stubRepairRepo) GalleryURLExists(_ context.Context, _ uuid.UUID, url string) (bool, error) {
	return s.existing[url], nil
}

func (s *stubRepairRepo) InsertGalleryURL(_ context.Context, _ uuid.UUID, url string, _ int) error {
	if s.insertFail {
		return assert.AnError
	}
	if s.raced[url] {
		s.existing[url] = true
		return pkgerrors.New(pkgerrors.CodeConflict, "gallery url already present")
	}
	s.inserted = append(s.inserted, url)
	s.existing[url] = true
	return nil
}

func (s *stubRepairRepo) DeleteGalleryRow(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubRepairRepo) RewriteExternalURL(_ context.Context, productID uuid.UUID, url string) error {
	s.rewrites[productID] = url
	return nil
}

func (s *stubRepairRepo) NextGalleryPosition(_ context.Context, _ uuid.UUID) (int, error) {
	return 10, nil
}

func TestRepairAllSplitsMalformedGalleryRow(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	malformed := models.GalleryImage{
		ID:        uuid.New(),
		ProductID: productID,
		URL:       "https://a.com/1.jpghttps://b.com/2.jpg",
	}
	repo := newStubRepairRepo()
	repo.malformedGallery = []models.GalleryImage{malformed}

	report, err := NewService(repo, testLogger()).RepairAll(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.com/1.jpg", "https://b.com/2.jpg"}, repo.inserted)
	assert.Equal(t, []uuid.UUID{malformed.ID}, repo.deleted)
	assert.Equal(t, 1, report.GalleryRowsRepaired)
	assert.Equal(t, 2, report.URLsExtracted)
	assert.Empty(t, report.Errors)
}

func TestRepairSkipsAlreadyPresentURLs(t *testing.T) {
	t.Parallel()

	malformed := models.GalleryImage{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		URL:       "https://a.com/1.jpghttps://b.com/2.jpg",
	}
	repo := newStubRepairRepo()
	repo.malformedGallery = []models.GalleryImage{malformed}
	repo.existing["https://a.com/1.jpg"] = true

	report, err := NewService(repo, testLogger()).RepairAll(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://b.com/2.jpg"}, repo.inserted)
	assert.Len(t, repo.deleted, 1)
	assert.Equal(t, 1, report.URLsExtracted)
}

func TestRepairTreatsLostInsertRaceAsPresent(t *testing.T) {
	t.Parallel()

	malformed := models.GalleryImage{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		URL:       "https://a.com/1.jpghttps://b.com/2.jpg",
	}
	repo := newStubRepairRepo()
	repo.malformedGallery = []models.GalleryImage{malformed}
	repo.raced["https://a.com/1.jpg"] = true

	report, err := NewService(repo, testLogger()).RepairAll(context.Background(), nil)
	require.NoError(t, err)

	// Losing the unique-index race to a concurrent insert is not a
	// failure: the pass moves on and still retires the malformed row.
	assert.Equal(t, []string{"https://b.com/2.jpg"}, repo.inserted)
	assert.Equal(t, []uuid.UUID{malformed.ID}, repo.deleted)
	assert.Equal(t, 1, report.GalleryRowsRepaired)
	assert.Empty(t, report.Errors)
}

func TestRepairKeepsMalformedRowWhenInsertFails(t *testing.T) {
	t.Parallel()

	malformed := models.GalleryImage{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		URL:       "https://a.com/1.jpghttps://b.com/2.jpg",
	}
	repo := newStubRepairRepo()
	repo.malformedGallery = []models.GalleryImage{malformed}
	repo.insertFail = true

	report, err := NewService(repo, testLogger()).RepairAll(context.Background(), nil)
	require.NoError(t, err)

	// Two-phase ordering: the original row survives a failed insert.
	assert.Empty(t, repo.deleted)
	assert.Equal(t, 0, report.GalleryRowsRepaired)
	assert.NotEmpty(t, report.Errors)
}

func TestRepairProductMovesExtrasToGallery(t *testing.T) {
	t.Parallel()

	product := models.Product{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		ExternalImageURL: "https://a.com/main.jpghttps://b.com/extra.jpg",
	}
	repo := newStubRepairRepo()
	repo.malformedProducts = []models.Product{product}

	report, err := NewService(repo, testLogger()).RepairAll(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://b.com/extra.jpg"}, repo.inserted)
	assert.Equal(t, "https://a.com/main.jpg", repo.rewrites[product.ID])
	assert.Equal(t, 1, report.ProductsRepaired)
}

func TestRepairLeavesCleanRowsAlone(t *testing.T) {
	t.Parallel()

	clean := models.GalleryImage{ID: uuid.New(), ProductID: uuid.New(), URL: "https://a.com/1.jpg"}
	repo := newStubRepairRepo()
	repo.malformedGallery = []models.GalleryImage{clean}

	report, err := NewService(repo, testLogger()).RepairAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, repo.inserted)
	assert.Empty(t, repo.deleted)
	assert.Equal(t, 0, report.GalleryRowsRepaired)
}
