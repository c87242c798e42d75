package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/api/middleware"
	"github.com/cartavio/imagesync-backend/api/responses"
	"github.com/cartavio/imagesync-backend/api/validators"
	syncsvc "github.com/cartavio/imagesync-backend/internal/sync"
	"github.com/cartavio/imagesync-backend/pkg/db/models"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

// SyncService is the pipeline surface the sync handlers consume.
type SyncService interface {
	SyncProduct(ctx context.Context, productID uuid.UUID, force bool) error
	Requeue(ctx context.Context, productID uuid.UUID) error
	ProductOwner(ctx context.Context, productID uuid.UUID) (uuid.UUID, error)
}

// BatchRunner drains the pending queue for one tenant.
type BatchRunner interface {
	Run(ctx context.Context, userID *uuid.UUID) (*syncsvc.BatchSummary, error)
}

// BatchReader loads batch progress.
type BatchReader interface {
	FindBatch(ctx context.Context, id uuid.UUID) (*models.SyncBatch, error)
}

type syncProductRequest struct {
	Force bool `json:"force"`
}

// ownedProduct resolves the product's owner and hides other tenants'
// products behind NOT_FOUND.
func ownedProduct(r *http.Request, svc SyncService) (uuid.UUID, error) {
	productID, err := validators.ParsePathUUID(r, "productID")
	if err != nil {
		return uuid.Nil, err
	}
	owner, err := svc.ProductOwner(r.Context(), productID)
	if err != nil {
		return uuid.Nil, err
	}
	if owner != middleware.UserIDFromContext(r.Context()) {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return productID, nil
}

// SyncProduct triggers internalization for one product.
func SyncProduct(svc SyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := ownedProduct(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload syncProductRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if err := svc.SyncProduct(r.Context(), productID, payload.Force); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "status": "synced"})
	}
}

// RequeueProduct moves a failed product back to pending.
func RequeueProduct(svc SyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := ownedProduct(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Requeue(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "status": "pending"})
	}
}

// RunSyncBatch drains the tenant's pending queue and reports the summary.
func RunSyncBatch(runner BatchRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		summary, err := runner.Run(r.Context(), &userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// GetSyncBatch reports the progress of one batch run.
func GetSyncBatch(reader BatchReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := validators.ParsePathUUID(r, "batchID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := reader.FindBatch(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if batch.UserID != nil && *batch.UserID != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "sync batch not found"))
			return
		}
		responses.WriteSuccess(w, batch)
	}
}
