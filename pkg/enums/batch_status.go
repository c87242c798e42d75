package enums

import "fmt"

// BatchStatus describes the overall state of a triggered sync run.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

var validBatchStatuses = []BatchStatus{
	BatchStatusQueued,
	BatchStatusProcessing,
	BatchStatusCompleted,
}

// String returns the literal string for the status.
func (b BatchStatus) String() string {
	return string(b)
}

// IsValid reports whether the status is known.
func (b BatchStatus) IsValid() bool {
	for _, candidate := range validBatchStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBatchStatus converts raw input into a BatchStatus.
func ParseBatchStatus(value string) (BatchStatus, error) {
	for _, candidate := range validBatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid batch status %q", value)
}
