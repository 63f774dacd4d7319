package fidmemory

import (
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
)

// ErrSessionNotInitialized is returned by backend operations that mutate a
// manifest (AppendProgressEntry, RecordRunCheckpoint, UpdateFeaturePass,
// ReplaceFeatureList) when InitializeSessionIfMissing has never succeeded
// for sessionID.
func ErrSessionNotInitialized(sessionID fidcommon.SessionID) *storeerr.Error {
	return storeerr.NotFound("session not initialized: " + string(sessionID))
}

// ErrFeatureNotFound is returned by UpdateFeaturePass when featureID isn't
// tracked for sessionID.
func ErrFeatureNotFound(sessionID fidcommon.SessionID, featureID string) *storeerr.Error {
	return storeerr.NotFound("feature not tracked: " + featureID + " (session " + string(sessionID) + ")")
}
