package sync

import (
	"fmt"

	"github.com/cartavio/imagesync-backend/pkg/enums"
	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

// The sync lifecycle is a small fixed machine:
//
//	pending --> processing --> synced
//	                     \--> failed --> pending (explicit requeue only)
//
// Entering synced must carry the storage fields in the same update; the
// repository methods enforce that by construction.
type transition struct {
	from enums.SyncStatus
	to   enums.SyncStatus
}

var legalTransitions = map[transition]bool{
	{enums.SyncStatusPending, enums.SyncStatusProcessing}: true,
	{enums.SyncStatusProcessing, enums.SyncStatusSynced}:  true,
	{enums.SyncStatusProcessing, enums.SyncStatusFailed}:  true,
	{enums.SyncStatusFailed, enums.SyncStatusPending}:     true,
}

// galleryClaimable are the statuses the gallery listing and claim queries
// accept. Failed rows stay put until an explicit requeue.
var galleryClaimable = []enums.SyncStatus{enums.SyncStatusPending}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to enums.SyncStatus) bool {
	return legalTransitions[transition{from: from, to: to}]
}

// GuardTransition returns a STATE_CONFLICT error when from -> to is illegal.
func GuardTransition(from, to enums.SyncStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("illegal sync transition %s -> %s", from, to))
}
