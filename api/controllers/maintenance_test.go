package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartavio/imagesync-backend/internal/importundo"
	"github.com/cartavio/imagesync-backend/internal/reconcile"
	"github.com/cartavio/imagesync-backend/internal/urlrepair"
	"github.com/cartavio/imagesync-backend/pkg/types"
)

type stubReconciler struct {
	ranFor       uuid.UUID
	appliedPaths []string
}

func (s *stubReconciler) Run(_ context.Context, userID uuid.UUID) (*reconcile.Report, error) {
	s.ranFor = userID
	return &reconcile.Report{UserID: userID, Orphans: []string{"public/" + userID.String() + "/products/stray.jpg"}}, nil
}

func (s *stubReconciler) Apply(_ context.Context, userID uuid.UUID, paths []string) (*reconcile.ApplyResult, error) {
	s.appliedPaths = paths
	return &reconcile.ApplyResult{Moved: len(paths)}, nil
}

type stubURLRepairer struct {
	scoped *uuid.UUID
}

func (s *stubURLRepairer) RepairAll(_ context.Context, userID *uuid.UUID) (*urlrepair.Report, error) {
	s.scoped = userID
	return &urlrepair.Report{GalleryRowsRepaired: 2, URLsExtracted: 5}, nil
}

type stubImportUndoer struct {
	userID    uuid.UUID
	importID  uuid.UUID
	confirmed bool
}

func (s *stubImportUndoer) Undo(_ context.Context, userID, importID uuid.UUID, confirmDelete bool) (*importundo.Result, error) {
	s.userID = userID
	s.importID = importID
	s.confirmed = confirmDelete
	return &importundo.Result{ImportID: importID, UserID: userID, Deleted: confirmDelete}, nil
}

func TestReconcileReportScopesToTenant(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &stubReconciler{}

	req := tenantRequest(t, http.MethodGet, "/api/v1/maintenance/reconcile", userID, nil, nil)
	rec := httptest.NewRecorder()
	ReconcileReport(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, svc.ranFor)

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
}

func TestReconcileApplyRequiresPaths(t *testing.T) {
	t.Parallel()

	req := tenantRequest(t, http.MethodPost, "/api/v1/maintenance/reconcile",
		uuid.New(), map[string]any{"paths": []string{}}, nil)
	rec := httptest.NewRecorder()
	ReconcileApply(&stubReconciler{}, testLogger())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcileApplyForwardsPaths(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &stubReconciler{}
	paths := []string{"public/" + userID.String() + "/products/stray.jpg"}

	req := tenantRequest(t, http.MethodPost, "/api/v1/maintenance/reconcile",
		userID, reconcileApplyRequest{Paths: paths}, nil)
	rec := httptest.NewRecorder()
	ReconcileApply(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, paths, svc.appliedPaths)
}

func TestRepairURLsScopesToTenant(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &stubURLRepairer{}

	req := tenantRequest(t, http.MethodPost, "/api/v1/maintenance/repair-urls", userID, nil, nil)
	rec := httptest.NewRecorder()
	RepairURLs(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.scoped)
	assert.Equal(t, userID, *svc.scoped)
}

func TestImportUndoDefaultsToDryRun(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	importID := uuid.New()
	svc := &stubImportUndoer{}

	req := tenantRequest(t, http.MethodPost, "/api/v1/maintenance/import-undo",
		userID, map[string]any{"import_id": importID}, nil)
	rec := httptest.NewRecorder()
	ImportUndo(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, svc.userID)
	assert.Equal(t, importID, svc.importID)
	assert.False(t, svc.confirmed)
}

func TestImportUndoConfirmDelete(t *testing.T) {
	t.Parallel()

	importID := uuid.New()
	svc := &stubImportUndoer{}

	req := tenantRequest(t, http.MethodPost, "/api/v1/maintenance/import-undo",
		uuid.New(), importUndoRequest{ImportID: importID, ConfirmDelete: true}, nil)
	rec := httptest.NewRecorder()
	ImportUndo(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.confirmed)
}

func TestImportUndoRequiresImportID(t *testing.T) {
	t.Parallel()

	req := tenantRequest(t, http.MethodPost, "/api/v1/maintenance/import-undo",
		uuid.New(), map[string]any{"confirm_delete": true}, nil)
	rec := httptest.NewRecorder()
	ImportUndo(&stubImportUndoer{}, testLogger())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
