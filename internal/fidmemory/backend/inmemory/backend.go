// Package inmemory implements fidmemory.MemoryBackend as a process-local
// map, for tests and for harness runs that don't need durability across
// restarts.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

type sessionState struct {
	manifest    fidmemory.SessionManifest
	hasManifest bool
	features    []fidmemory.FeatureRecord
	progress    []fidmemory.ProgressEntry
	checkpoints []fidmemory.RunCheckpoint
	messages    []fidprovider.Message
}

// Backend is a sync.Mutex-guarded in-process fidmemory.MemoryBackend.
type Backend struct {
	mu       sync.Mutex
	sessions map[fidcommon.SessionID]*sessionState
	now      func() time.Time
}

// New returns an empty Backend. now defaults to time.Now; tests may
// substitute a deterministic clock.
func New(now func() time.Time) *Backend {
	if now == nil {
		now = time.Now
	}
	return &Backend{sessions: make(map[fidcommon.SessionID]*sessionState), now: now}
}

func (b *Backend) stateFor(sessionID fidcommon.SessionID) *sessionState {
	s, ok := b.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		b.sessions[sessionID] = s
	}
	return s
}

func (b *Backend) IsInitialized(_ context.Context, sessionID fidcommon.SessionID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	return ok && s.hasManifest, nil
}

func (b *Backend) InitializeSessionIfMissing(_ context.Context, sessionID fidcommon.SessionID, manifest fidmemory.SessionManifest, features []fidmemory.FeatureRecord, progress *fidmemory.ProgressEntry, checkpoint *fidmemory.RunCheckpoint) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stateFor(sessionID)
	if s.hasManifest {
		return false, nil
	}

	s.manifest = manifest
	s.hasManifest = true
	s.features = append([]fidmemory.FeatureRecord(nil), features...)
	if progress != nil {
		s.progress = append(s.progress, *progress)
	}
	if checkpoint != nil {
		s.checkpoints = append(s.checkpoints, *checkpoint)
	}
	return true, nil
}

func (b *Backend) LoadBootstrapState(_ context.Context, sessionID fidcommon.SessionID) (fidmemory.BootstrapState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		return fidmemory.BootstrapState{}, nil
	}

	var manifestPtr *fidmemory.SessionManifest
	if s.hasManifest {
		m := s.manifest
		manifestPtr = &m
	}

	return fidmemory.BootstrapState{
		Manifest:       manifestPtr,
		FeatureList:    append([]fidmemory.FeatureRecord(nil), s.features...),
		RecentProgress: append([]fidmemory.ProgressEntry(nil), s.progress...),
		Checkpoints:    append([]fidmemory.RunCheckpoint(nil), s.checkpoints...),
	}, nil
}

func (b *Backend) SaveManifest(_ context.Context, sessionID fidcommon.SessionID, manifest fidmemory.SessionManifest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stateFor(sessionID)
	s.manifest = manifest
	s.hasManifest = true
	return nil
}

func (b *Backend) AppendProgressEntry(_ context.Context, sessionID fidcommon.SessionID, entry fidmemory.ProgressEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok || !s.hasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = b.now()
	}
	s.progress = append(s.progress, entry)
	return nil
}

func (b *Backend) ReplaceFeatureList(_ context.Context, sessionID fidcommon.SessionID, features []fidmemory.FeatureRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok || !s.hasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	s.features = append([]fidmemory.FeatureRecord(nil), features...)
	return nil
}

func (b *Backend) UpdateFeaturePass(_ context.Context, sessionID fidcommon.SessionID, featureID string, passes bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok || !s.hasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	for i, f := range s.features {
		if f.ID == featureID {
			s.features[i].Passes = passes
			return nil
		}
	}
	return fidmemory.ErrFeatureNotFound(sessionID, featureID)
}

func (b *Backend) RecordRunCheckpoint(_ context.Context, sessionID fidcommon.SessionID, checkpoint fidmemory.RunCheckpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok || !s.hasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	s.checkpoints = append(s.checkpoints, checkpoint)
	return nil
}

func (b *Backend) LoadTranscriptMessages(_ context.Context, sessionID fidcommon.SessionID) ([]fidprovider.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	out := make([]fidprovider.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (b *Backend) AppendTranscriptMessages(_ context.Context, sessionID fidcommon.SessionID, messages []fidprovider.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stateFor(sessionID)
	s.messages = append(s.messages, messages...)
	return nil
}
