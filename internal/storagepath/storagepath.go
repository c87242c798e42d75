// Package storagepath derives the canonical object-store locations for
// internalized images. Paths are deterministic from tenant and product
// identity so re-running the pipeline overwrites instead of duplicating.
package storagepath

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	publicSegment = "public"
	repairSegment = "repair"
	trashSegment  = "trash"
	auditSegment  = "audit"
)

// Product returns the canonical path for a product's main image.
func Product(userID, productID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/products/%s.jpg", publicSegment, userID, productID)
}

// ProductVariant returns the path for a sized rendition of the main image.
func ProductVariant(userID, productID uuid.UUID, size int) string {
	return fmt.Sprintf("%s/%s/products/%s_%d.jpg", publicSegment, userID, productID, size)
}

// Gallery returns the canonical path for a gallery image.
func Gallery(userID, productID, galleryImageID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/products/%s/gallery/%s.jpg", publicSegment, userID, productID, galleryImageID)
}

// GalleryVariant returns the path for a sized rendition of a gallery image.
func GalleryVariant(userID, productID, galleryImageID uuid.UUID, size int) string {
	return fmt.Sprintf("%s/%s/products/%s/gallery/%s_%d.jpg", publicSegment, userID, productID, galleryImageID, size)
}

// TenantPrefix bounds every object a tenant can own under the public tree.
func TenantPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/", publicSegment, userID)
}

// Trash maps a live path into the tenant's trash area, preserving the
// original layout so a move can be reversed by inspection.
func Trash(userID uuid.UUID, livePath string) string {
	return fmt.Sprintf("%s/%s/%s", userID, trashSegment, strings.TrimPrefix(livePath, publicSegment+"/"))
}

// TrashPrefix is where soft-deleted objects await permanent removal.
func TrashPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/", userID, trashSegment)
}

// RepairPrefix holds candidates awaiting orphan review.
func RepairPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/", userID, repairSegment)
}

// AuditReport names a reconciliation or undo report artifact.
func AuditReport(userID uuid.UUID, kind string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s_%s.json", userID, auditSegment, kind, at.UTC().Format("20060102T150405Z"))
}

// Normalize maps a stored reference, either a bare path or a public URL,
// onto the tenant's storage path. External supplier URLs do not normalize.
func Normalize(userID uuid.UUID, pathOrURL string) (string, bool) {
	candidate := strings.TrimSpace(pathOrURL)
	if candidate == "" {
		return "", false
	}
	if idx := strings.Index(candidate, "://"); idx >= 0 {
		// Strip scheme+host from URLs before comparing prefixes.
		rest := candidate[idx+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", false
		}
		candidate = rest[slash+1:]
		// Public URLs may carry the bucket as the first segment.
		if idx := strings.Index(candidate, publicSegment+"/"); idx > 0 {
			candidate = candidate[idx:]
		}
	}
	if !strings.HasPrefix(candidate, TenantPrefix(userID)) {
		return "", false
	}
	return candidate, true
}

// IsInternal reports whether the given path or URL points into the tenant's
// own storage rather than a supplier host.
func IsInternal(userID uuid.UUID, pathOrURL string) bool {
	_, ok := Normalize(userID, pathOrURL)
	return ok
}
