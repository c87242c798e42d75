package reconcile

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/internal/storagepath"
	"github.com/cartavio/imagesync-backend/pkg/db/models"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
	"github.com/cartavio/imagesync-backend/pkg/logger"
	"github.com/cartavio/imagesync-backend/pkg/metrics"
	"github.com/cartavio/imagesync-backend/pkg/storage/gcs"
)

// repository is the slice of Repository the reconciler consumes.
type repository interface {
	ListProducts(ctx context.Context, userID uuid.UUID) ([]models.Product, error)
	ListGallery(ctx context.Context, userID uuid.UUID) ([]models.GalleryImage, error)
}

// objectStore is the slice of the storage client the reconciler consumes.
type objectStore interface {
	List(ctx context.Context, prefix string) ([]gcs.Object, error)
	Move(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, paths ...string) error
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// UsageVerifier answers whether a path is still considered in use by some
// collaborator outside this service. An error counts as in use.
type UsageVerifier interface {
	InUse(ctx context.Context, path string) (bool, error)
}

// DanglingRef is a database row pointing at a path absent from storage.
type DanglingRef struct {
	Table string    `json:"table"`
	RowID uuid.UUID `json:"row_id"`
	Path  string    `json:"path"`
}

// Report is the dry-run output: what would change, and nothing changed.
type Report struct {
	UserID         uuid.UUID     `json:"user_id"`
	ObjectCount    int           `json:"object_count"`
	ReferenceCount int           `json:"reference_count"`
	Orphans        []string      `json:"orphans,omitempty"`
	Dangling       []DanglingRef `json:"dangling,omitempty"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// ActionOutcome describes what Apply did with one path.
type ActionOutcome struct {
	Path    string `json:"path"`
	Action  string `json:"action"`
	Reason  string `json:"reason,omitempty"`
	Outcome string `json:"outcome"`
}

// ApplyResult is the audit payload of one apply run. It is also uploaded as
// a JSON artifact next to the tenant's data.
type ApplyResult struct {
	UserID      uuid.UUID       `json:"user_id"`
	Moved       int             `json:"moved"`
	Protected   int             `json:"protected"`
	Skipped     int             `json:"skipped"`
	Actions     []ActionOutcome `json:"actions"`
	AuditPath   string          `json:"audit_path,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Service cross-references database rows against the object listing. The
// dry-run path mutates nothing; apply moves orphans to trash and never
// deletes outright.
type Service struct {
	repo     repository
	store    objectStore
	verifier UsageVerifier
	logg     *logger.Logger
	metrics  *metrics.PipelineMetrics

	now func() time.Time
}

// NewService wires the reconciler dependencies. verifier may be nil, in
// which case no external veto is consulted.
func NewService(repo repository, store objectStore, verifier UsageVerifier, logg *logger.Logger, pm *metrics.PipelineMetrics) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		verifier: verifier,
		logg:     logg,
		metrics:  pm,
		now:      time.Now,
	}
}

// Run produces the dry-run report for one tenant.
func (s *Service) Run(ctx context.Context, userID uuid.UUID) (*Report, error) {
	refs, dangling, err := s.referenceSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	objects, err := s.store.List(ctx, storagepath.TenantPrefix(userID))
	if err != nil {
		return nil, err
	}

	objectSet := make(map[string]bool, len(objects))
	report := &Report{
		UserID:         userID,
		ObjectCount:    len(objects),
		ReferenceCount: len(refs),
		GeneratedAt:    s.now().UTC(),
	}
	for _, obj := range objects {
		objectSet[obj.Path] = true
		if !refs[obj.Path] {
			report.Orphans = append(report.Orphans, obj.Path)
		}
	}
	for _, ref := range dangling {
		if !objectSet[ref.Path] {
			report.Dangling = append(report.Dangling, ref)
		}
	}
	return report, nil
}

// Apply moves the given orphan candidates to the tenant's trash. Each path
// is re-verified against the current reference set; a path that is
// referenced, outside the tenant's tree, or vetoed by the usage verifier is
// left in place. The audit artifact is uploaded before returning.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, paths []string) (*ApplyResult, error) {
	if len(paths) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "apply requires at least one path")
	}

	refs, _, err := s.referenceSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{UserID: userID, GeneratedAt: s.now().UTC()}
	prefix := storagepath.TenantPrefix(userID)

	for _, path := range paths {
		outcome := s.applyOne(ctx, userID, prefix, path, refs)
		result.Actions = append(result.Actions, outcome)
		switch outcome.Outcome {
		case "moved":
			result.Moved++
		case "protected":
			result.Protected++
		default:
			result.Skipped++
		}
		if s.metrics != nil {
			s.metrics.IncReconcileAction(outcome.Outcome)
		}
	}

	auditPath, err := s.uploadAudit(ctx, userID, "reconcile", result)
	if err != nil {
		s.logg.Error(ctx, "upload reconcile audit", err)
	} else {
		result.AuditPath = auditPath
	}
	return result, nil
}

func (s *Service) applyOne(ctx context.Context, userID uuid.UUID, tenantPrefix, path string, refs map[string]bool) ActionOutcome {
	if !strings.HasPrefix(path, tenantPrefix) {
		return ActionOutcome{Path: path, Action: "move_to_trash", Outcome: "skipped", Reason: "outside tenant prefix"}
	}
	if refs[path] {
		return ActionOutcome{Path: path, Action: "move_to_trash", Outcome: "skipped", Reason: "still referenced"}
	}

	if s.verifier != nil {
		inUse, err := s.verifier.InUse(ctx, path)
		if err != nil {
			// Unverifiable means protected.
			verr := pkgerrors.Wrap(pkgerrors.CodeAmbiguousUsage, err, "usage verification unavailable")
			s.logg.Warn(s.logg.WithField(ctx, "path", path), verr.Error())
			return ActionOutcome{Path: path, Action: "move_to_trash", Outcome: "protected", Reason: "usage verification unavailable"}
		}
		if inUse {
			return ActionOutcome{Path: path, Action: "move_to_trash", Outcome: "protected", Reason: "verifier reports in use"}
		}
	}

	dst := storagepath.Trash(userID, path)
	if err := s.store.Move(ctx, path, dst); err != nil {
		s.logg.Error(ctx, "move orphan to trash", err)
		return ActionOutcome{Path: path, Action: "move_to_trash", Outcome: "skipped", Reason: err.Error()}
	}
	return ActionOutcome{Path: path, Action: "move_to_trash", Outcome: "moved"}
}

// PurgeTrash permanently deletes trash objects older than the retention
// cutoff. This is the only place the reconciler deletes anything.
func (s *Service) PurgeTrash(ctx context.Context, userID uuid.UUID, retention time.Duration) (int, error) {
	objects, err := s.store.List(ctx, storagepath.TrashPrefix(userID))
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-retention)
	var expired []string
	for _, obj := range objects {
		if obj.Updated.Before(cutoff) {
			expired = append(expired, obj.Path)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := s.store.Delete(ctx, expired...); err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.IncReconcileAction("purged")
	}
	return len(expired), nil
}

// referenceSet builds the set of internal storage paths referenced by the
// tenant's rows, plus the row-to-path pairs used for dangling detection.
func (s *Service) referenceSet(ctx context.Context, userID uuid.UUID) (map[string]bool, []DanglingRef, error) {
	products, err := s.repo.ListProducts(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	gallery, err := s.repo.ListGallery(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	refs := map[string]bool{}
	var rows []DanglingRef

	addRef := func(table string, rowID uuid.UUID, raw string) {
		path, ok := normalizeRef(userID, raw)
		if !ok {
			return
		}
		refs[path] = true
		rows = append(rows, DanglingRef{Table: table, RowID: rowID, Path: path})
	}

	for _, product := range products {
		if product.ImagePath != nil {
			addRef("products", product.ID, *product.ImagePath)
		}
		if product.ImageURL != nil {
			addRef("products", product.ID, *product.ImageURL)
		}
		for _, path := range product.ImageVariants.Paths() {
			addRef("products", product.ID, path)
		}
		if product.Images != nil {
			for _, ref := range ParseImageRefs(*product.Images) {
				addRef("products", product.ID, ref)
			}
		}
	}
	for _, img := range gallery {
		if img.StoragePath != nil {
			addRef("gallery_images", img.ID, *img.StoragePath)
		}
		if img.OptimizedURL != nil {
			addRef("gallery_images", img.ID, *img.OptimizedURL)
		}
		for _, path := range img.OptimizedVariants.Paths() {
			addRef("gallery_images", img.ID, path)
		}
	}
	return refs, rows, nil
}

// normalizeRef maps a stored reference, either a bare path or a public URL,
// onto the tenant's storage path. External supplier URLs do not normalize.
func normalizeRef(userID uuid.UUID, raw string) (string, bool) {
	return storagepath.Normalize(userID, raw)
}

func (s *Service) uploadAudit(ctx context.Context, userID uuid.UUID, kind string, payload any) (string, error) {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit payload")
	}
	path := storagepath.AuditReport(userID, kind, s.now())
	if _, err := s.store.Upload(ctx, path, body, "application/json"); err != nil {
		return "", err
	}
	return path, nil
}
