package fidmemory

import (
	"context"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

// MemoryBackend is the durability contract every storage implementation
// (in-memory, filesystem, SQLite, Postgres) satisfies. Implementations own
// their own locking: callers may invoke backend methods concurrently across
// sessions; InitializeSessionIfMissing is additionally guaranteed atomic
// against itself for the same session.
type MemoryBackend interface {
	// IsInitialized reports whether sessionID has a manifest.
	IsInitialized(ctx context.Context, sessionID fidcommon.SessionID) (bool, error)

	// InitializeSessionIfMissing installs manifest, features, and the
	// optional first progress entry/checkpoint atomically, but only if no
	// manifest yet exists for sessionID. Returns did=false, writing
	// nothing, if the session was already initialized.
	InitializeSessionIfMissing(ctx context.Context, sessionID fidcommon.SessionID, manifest SessionManifest, features []FeatureRecord, progress *ProgressEntry, checkpoint *RunCheckpoint) (did bool, err error)

	// LoadBootstrapState returns the total view of sessionID's state. Total:
	// an unknown session returns a zero-value BootstrapState (nil Manifest,
	// empty slices), never an error.
	LoadBootstrapState(ctx context.Context, sessionID fidcommon.SessionID) (BootstrapState, error)

	// SaveManifest overwrites sessionID's manifest wholesale.
	SaveManifest(ctx context.Context, sessionID fidcommon.SessionID, manifest SessionManifest) error

	// AppendProgressEntry appends one progress log entry.
	AppendProgressEntry(ctx context.Context, sessionID fidcommon.SessionID, entry ProgressEntry) error

	// ReplaceFeatureList wholesale-replaces sessionID's tracked feature
	// list, as the initializer does when re-scoping work.
	ReplaceFeatureList(ctx context.Context, sessionID fidcommon.SessionID, features []FeatureRecord) error

	// UpdateFeaturePass sets the named feature's Passes flag. Returns a
	// NotFound error, not a silent no-op, if featureID isn't tracked.
	UpdateFeaturePass(ctx context.Context, sessionID fidcommon.SessionID, featureID string, passes bool) error

	// RecordRunCheckpoint appends one run checkpoint.
	RecordRunCheckpoint(ctx context.Context, sessionID fidcommon.SessionID, checkpoint RunCheckpoint) error

	// LoadTranscriptMessages returns sessionID's persisted transcript,
	// oldest first. A session with no transcript yet returns an empty
	// slice, never an error.
	LoadTranscriptMessages(ctx context.Context, sessionID fidcommon.SessionID) ([]fidprovider.Message, error)

	// AppendTranscriptMessages appends messages to sessionID's persisted
	// transcript.
	AppendTranscriptMessages(ctx context.Context, sessionID fidcommon.SessionID, messages []fidprovider.Message) error
}
