// Package filesystem implements fidmemory.MemoryBackend on top of one JSON
// file per session, written atomically via a temp-file-then-rename, guarded
// by an in-process mutex against concurrent writers.
package filesystem

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
)

// Backend persists one JSON document per session under dataDir.
type Backend struct {
	mu      sync.Mutex
	dataDir string
	now     func() time.Time
}

// New returns a Backend rooted at dataDir, which is created on first write
// if it doesn't already exist.
func New(dataDir string, now func() time.Time) *Backend {
	if now == nil {
		now = time.Now
	}
	return &Backend{dataDir: dataDir, now: now}
}

// document is the on-disk shape: the manifest plus its tracked features,
// progress log, checkpoint history, and transcript, so a single file
// read/write covers the whole backend contract for one session.
type document struct {
	Manifest    fidmemory.SessionManifest `json:"manifest"`
	HasManifest bool                      `json:"has_manifest"`
	Features    []fidmemory.FeatureRecord `json:"features"`
	Progress    []fidmemory.ProgressEntry `json:"progress"`
	Checkpoints []fidmemory.RunCheckpoint `json:"checkpoints"`
	Messages    []fidprovider.Message     `json:"messages"`
}

// sessionPath maps a session id to a file path via a hex encoding of its
// bytes, so arbitrary session id content (including path separators) can
// never escape dataDir.
func (b *Backend) sessionPath(sessionID fidcommon.SessionID) string {
	name := hex.EncodeToString([]byte(sessionID.String())) + ".json"
	return filepath.Join(b.dataDir, name)
}

func (b *Backend) readDocument(sessionID fidcommon.SessionID) (*document, bool, error) {
	path := b.sessionPath(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, storeerr.StorageWrap("read session file", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, storeerr.StorageWrap("decode session file", err)
	}
	return &doc, true, nil
}

func (b *Backend) writeDocument(sessionID fidcommon.SessionID, doc *document) error {
	if err := os.MkdirAll(b.dataDir, 0o700); err != nil {
		return storeerr.StorageWrap("create data directory", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return storeerr.StorageWrap("encode session file", err)
	}
	path := b.sessionPath(sessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return storeerr.StorageWrap("write session temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return storeerr.StorageWrap("rename session temp file", err)
	}
	return nil
}

func (b *Backend) IsInitialized(_ context.Context, sessionID fidcommon.SessionID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok, err := b.readDocument(sessionID)
	if err != nil || !ok {
		return false, err
	}
	return doc.HasManifest, nil
}

func (b *Backend) InitializeSessionIfMissing(_ context.Context, sessionID fidcommon.SessionID, manifest fidmemory.SessionManifest, features []fidmemory.FeatureRecord, progress *fidmemory.ProgressEntry, checkpoint *fidmemory.RunCheckpoint) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return false, err
	}
	if ok && doc.HasManifest {
		return false, nil
	}
	if doc == nil {
		doc = &document{}
	}

	doc.Manifest = manifest
	doc.HasManifest = true
	doc.Features = append([]fidmemory.FeatureRecord(nil), features...)
	if progress != nil {
		doc.Progress = append(doc.Progress, *progress)
	}
	if checkpoint != nil {
		doc.Checkpoints = append(doc.Checkpoints, *checkpoint)
	}

	if err := b.writeDocument(sessionID, doc); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) LoadBootstrapState(_ context.Context, sessionID fidcommon.SessionID) (fidmemory.BootstrapState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return fidmemory.BootstrapState{}, err
	}
	if !ok {
		return fidmemory.BootstrapState{}, nil
	}

	var manifestPtr *fidmemory.SessionManifest
	if doc.HasManifest {
		m := doc.Manifest
		manifestPtr = &m
	}
	return fidmemory.BootstrapState{
		Manifest:       manifestPtr,
		FeatureList:    doc.Features,
		RecentProgress: doc.Progress,
		Checkpoints:    doc.Checkpoints,
	}, nil
}

func (b *Backend) SaveManifest(_ context.Context, sessionID fidcommon.SessionID, manifest fidmemory.SessionManifest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return err
	}
	if !ok {
		doc = &document{}
	}
	doc.Manifest = manifest
	doc.HasManifest = true
	return b.writeDocument(sessionID, doc)
}

func (b *Backend) AppendProgressEntry(_ context.Context, sessionID fidcommon.SessionID, entry fidmemory.ProgressEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return err
	}
	if !ok || !doc.HasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = b.now()
	}
	doc.Progress = append(doc.Progress, entry)
	return b.writeDocument(sessionID, doc)
}

func (b *Backend) ReplaceFeatureList(_ context.Context, sessionID fidcommon.SessionID, features []fidmemory.FeatureRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return err
	}
	if !ok || !doc.HasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	doc.Features = append([]fidmemory.FeatureRecord(nil), features...)
	return b.writeDocument(sessionID, doc)
}

func (b *Backend) UpdateFeaturePass(_ context.Context, sessionID fidcommon.SessionID, featureID string, passes bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return err
	}
	if !ok || !doc.HasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	for i, f := range doc.Features {
		if f.ID == featureID {
			doc.Features[i].Passes = passes
			return b.writeDocument(sessionID, doc)
		}
	}
	return fidmemory.ErrFeatureNotFound(sessionID, featureID)
}

func (b *Backend) RecordRunCheckpoint(_ context.Context, sessionID fidcommon.SessionID, checkpoint fidmemory.RunCheckpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return err
	}
	if !ok || !doc.HasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	doc.Checkpoints = append(doc.Checkpoints, checkpoint)
	return b.writeDocument(sessionID, doc)
}

func (b *Backend) LoadTranscriptMessages(_ context.Context, sessionID fidcommon.SessionID) ([]fidprovider.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	out := make([]fidprovider.Message, len(doc.Messages))
	copy(out, doc.Messages)
	return out, nil
}

func (b *Backend) AppendTranscriptMessages(_ context.Context, sessionID fidcommon.SessionID, messages []fidprovider.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok, err := b.readDocument(sessionID)
	if err != nil {
		return err
	}
	if !ok {
		doc = &document{}
	}
	doc.Messages = append(doc.Messages, messages...)
	return b.writeDocument(sessionID, doc)
}
