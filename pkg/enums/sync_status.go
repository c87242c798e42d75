package enums

// SyncStatus describes the image internalization lifecycle of a product or
// gallery row.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusSynced     SyncStatus = "synced"
	SyncStatusFailed     SyncStatus = "failed"
)

var validSyncStatuses = []SyncStatus{
	SyncStatusPending,
	SyncStatusProcessing,
	SyncStatusSynced,
	SyncStatusFailed,
}

// String returns the literal string for the status.
func (s SyncStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s SyncStatus) IsValid() bool {
	for _, candidate := range validSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further pipeline work applies.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSynced || s == SyncStatusFailed
}

// ParseSyncStatus converts raw input into a SyncStatus. The status strings
// are a wire contract; unknown values degrade to pending so that a consumer
// never mistakes an unrecognized state for synced.
func ParseSyncStatus(value string) SyncStatus {
	for _, candidate := range validSyncStatuses {
		if string(candidate) == value {
			return candidate
		}
	}
	return SyncStatusPending
}
