package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/api/responses"
	"github.com/cartavio/imagesync-backend/api/validators"
	"github.com/cartavio/imagesync-backend/pkg/db/models"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

// GalleryService is the gallery surface the handlers consume.
type GalleryService interface {
	List(ctx context.Context, productID uuid.UUID) ([]models.GalleryImage, error)
	SetCover(ctx context.Context, productID, imageID uuid.UUID) error
	Reorder(ctx context.Context, productID uuid.UUID, orderedIDs []uuid.UUID) error
	Add(ctx context.Context, productID uuid.UUID, url string, position int) (*models.GalleryImage, error)
	Delete(ctx context.Context, productID, imageID uuid.UUID) error
}

type addGalleryImageRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Position int    `json:"position" validate:"min=0"`
}

type reorderGalleryRequest struct {
	ImageIDs []uuid.UUID `json:"image_ids" validate:"required,min=1"`
}

// ListGallery returns the product's gallery in display order.
func ListGallery(svc GalleryService, syncSvc SyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := ownedProduct(r, syncSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		images, err := svc.List(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, images)
	}
}

// AddGalleryImage appends a supplier URL to the gallery as a pending row.
func AddGalleryImage(svc GalleryService, syncSvc SyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := ownedProduct(r, syncSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addGalleryImageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		img, err := svc.Add(r.Context(), productID, payload.URL, payload.Position)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, img)
	}
}

// SetGalleryCover promotes one gallery image to cover.
func SetGalleryCover(svc GalleryService, syncSvc SyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := ownedProduct(r, syncSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		imageID, err := validators.ParsePathUUID(r, "imageID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetCover(r.Context(), productID, imageID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "cover_image_id": imageID})
	}
}

// ReorderGallery rewrites the gallery display order.
func ReorderGallery(svc GalleryService, syncSvc SyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := ownedProduct(r, syncSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reorderGalleryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reorder(r.Context(), productID, payload.ImageIDs); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "order": payload.ImageIDs})
	}
}

// DeleteGalleryImage removes one gallery row.
func DeleteGalleryImage(svc GalleryService, syncSvc SyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := ownedProduct(r, syncSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		imageID, err := validators.ParsePathUUID(r, "imageID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), productID, imageID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "deleted_image_id": imageID})
	}
}
