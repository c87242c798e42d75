package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSyncStatusKnownValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SyncStatusPending, ParseSyncStatus("pending"))
	assert.Equal(t, SyncStatusProcessing, ParseSyncStatus("processing"))
	assert.Equal(t, SyncStatusSynced, ParseSyncStatus("synced"))
	assert.Equal(t, SyncStatusFailed, ParseSyncStatus("failed"))
}

func TestParseSyncStatusUnknownDegradesToPending(t *testing.T) {
	t.Parallel()

	// Forward-compatibility contract: an unknown status must never read as
	// synced.
	assert.Equal(t, SyncStatusPending, ParseSyncStatus(""))
	assert.Equal(t, SyncStatusPending, ParseSyncStatus("SYNCED"))
	assert.Equal(t, SyncStatusPending, ParseSyncStatus("archived"))
}

func TestSyncStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, SyncStatusPending.IsTerminal())
	assert.False(t, SyncStatusProcessing.IsTerminal())
	assert.True(t, SyncStatusSynced.IsTerminal())
	assert.True(t, SyncStatusFailed.IsTerminal())
}
