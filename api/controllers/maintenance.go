package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/api/middleware"
	"github.com/cartavio/imagesync-backend/api/responses"
	"github.com/cartavio/imagesync-backend/api/validators"
	"github.com/cartavio/imagesync-backend/internal/importundo"
	"github.com/cartavio/imagesync-backend/internal/reconcile"
	"github.com/cartavio/imagesync-backend/internal/urlrepair"
	"github.com/cartavio/imagesync-backend/pkg/logger"
)

// Reconciler is the reconcile surface the maintenance handlers consume.
type Reconciler interface {
	Run(ctx context.Context, userID uuid.UUID) (*reconcile.Report, error)
	Apply(ctx context.Context, userID uuid.UUID, paths []string) (*reconcile.ApplyResult, error)
}

// URLRepairer runs the malformed URL repair.
type URLRepairer interface {
	RepairAll(ctx context.Context, userID *uuid.UUID) (*urlrepair.Report, error)
}

// ImportUndoer reverts one import batch.
type ImportUndoer interface {
	Undo(ctx context.Context, userID, importID uuid.UUID, confirmDelete bool) (*importundo.Result, error)
}

type reconcileApplyRequest struct {
	Paths []string `json:"paths" validate:"required,min=1"`
}

type importUndoRequest struct {
	ImportID      uuid.UUID `json:"import_id" validate:"required"`
	ConfirmDelete bool      `json:"confirm_delete"`
}

// ReconcileReport produces the dry-run report and mutates nothing.
func ReconcileReport(svc Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		report, err := svc.Run(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ReconcileApply moves the listed orphan candidates to trash.
func ReconcileApply(svc Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload reconcileApplyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Apply(r.Context(), userID, payload.Paths)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RepairURLs runs the malformed multi-URL repair for the tenant.
func RepairURLs(svc URLRepairer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		report, err := svc.RepairAll(r.Context(), &userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ImportUndo reverts an import batch; without confirm_delete it is a dry
// run.
func ImportUndo(svc ImportUndoer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload importUndoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Undo(r.Context(), userID, payload.ImportID, payload.ConfirmDelete)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
