// Package postgres implements fidmemory.MemoryBackend against a Postgres (or
// Postgres-wire-compatible) database via github.com/lib/pq, storing each
// session's full manifest and transcript as one JSONB document row and
// relying on SELECT ... FOR UPDATE to make first-time initialization
// transactionally atomic across concurrent callers.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
)

// Config configures the Postgres backend's connection pool.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns reasonable pool settings for a harness-scale
// workload: few concurrent sessions, each doing occasional writes.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnectTimeout:  5 * time.Second,
	}
}

// Backend stores one JSONB document per session under fmemory_session_state.
type Backend struct {
	db *sql.DB
}

// New opens a connection pool against dsn and ensures the backing table
// exists.
func New(dsn string, cfg Config) (*Backend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, storeerr.InvalidRequest("dsn is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, storeerr.StorageWrap("open postgres connection", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storeerr.StorageWrap("ping postgres", err)
	}

	b := &Backend{db: db}
	if err := b.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) init(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fmemory_session_state (
			session_id TEXT PRIMARY KEY,
			state JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return storeerr.StorageWrap("create session state table", err)
	}
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}

// document is the JSONB payload stored per session: the manifest plus its
// tracked features, progress log, checkpoint history, and transcript.
type document struct {
	Manifest    fidmemory.SessionManifest `json:"manifest"`
	HasManifest bool                      `json:"has_manifest"`
	Features    []fidmemory.FeatureRecord `json:"features"`
	Progress    []fidmemory.ProgressEntry `json:"progress"`
	Checkpoints []fidmemory.RunCheckpoint `json:"checkpoints"`
	Messages    []fidprovider.Message     `json:"messages"`
}

// querier is the subset of *sql.DB / *sql.Tx this package needs, letting
// loadDocument run inside or outside a transaction identically.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (b *Backend) loadDocument(ctx context.Context, q querier, sessionID fidcommon.SessionID) (document, bool, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, `SELECT state FROM fmemory_session_state WHERE session_id = $1`, sessionID.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return document{}, false, nil
	}
	if err != nil {
		return document{}, false, storeerr.StorageWrap("query session state", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, false, storeerr.StorageWrap("decode session state", err)
	}
	return doc, true, nil
}

func (b *Backend) upsertDocument(ctx context.Context, execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, sessionID fidcommon.SessionID, doc document, created bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return storeerr.StorageWrap("encode session state", err)
	}
	if created {
		_, err = execer.ExecContext(ctx, `INSERT INTO fmemory_session_state (session_id, state) VALUES ($1, $2)`, sessionID.String(), data)
	} else {
		_, err = execer.ExecContext(ctx, `UPDATE fmemory_session_state SET state = $2, updated_at = now() WHERE session_id = $1`, sessionID.String(), data)
	}
	if err != nil {
		return storeerr.StorageWrap("write session state", err)
	}
	return nil
}

func (b *Backend) IsInitialized(ctx context.Context, sessionID fidcommon.SessionID) (bool, error) {
	doc, ok, err := b.loadDocument(ctx, b.db, sessionID)
	if err != nil || !ok {
		return false, err
	}
	return doc.HasManifest, nil
}

// InitializeSessionIfMissing uses SELECT ... FOR UPDATE inside a transaction
// so concurrent first-init callers serialize on the row lock: the second
// transaction blocks until the first commits, then observes the
// now-existing row and returns did=false instead of double-initializing.
func (b *Backend) InitializeSessionIfMissing(ctx context.Context, sessionID fidcommon.SessionID, manifest fidmemory.SessionManifest, features []fidmemory.FeatureRecord, progress *fidmemory.ProgressEntry, checkpoint *fidmemory.RunCheckpoint) (bool, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeerr.StorageWrap("begin transaction", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT state FROM fmemory_session_state WHERE session_id = $1 FOR UPDATE`, sessionID.String()).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		// fall through to bootstrap below
	case err != nil:
		return false, storeerr.StorageWrap("lock session row", err)
	default:
		return false, nil
	}

	doc := document{
		Manifest:    manifest,
		HasManifest: true,
		Features:    append([]fidmemory.FeatureRecord(nil), features...),
	}
	if progress != nil {
		doc.Progress = append(doc.Progress, *progress)
	}
	if checkpoint != nil {
		doc.Checkpoints = append(doc.Checkpoints, *checkpoint)
	}

	if err := b.upsertDocument(ctx, tx, sessionID, doc, true); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, storeerr.StorageWrap("commit initialize session", err)
	}
	return true, nil
}

func (b *Backend) LoadBootstrapState(ctx context.Context, sessionID fidcommon.SessionID) (fidmemory.BootstrapState, error) {
	doc, ok, err := b.loadDocument(ctx, b.db, sessionID)
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

func (b *Backend) SaveManifest(ctx context.Context, sessionID fidcommon.SessionID, manifest fidmemory.SessionManifest) error {
	doc, ok, err := b.loadDocument(ctx, b.db, sessionID)
	if err != nil {
		return err
	}
	doc.Manifest = manifest
	doc.HasManifest = true
	return b.upsertDocument(ctx, b.db, sessionID, doc, !ok)
}

// withLockedDocument locks the session row for update, applies mutate, and
// writes the result back inside the same transaction, returning
// ErrSessionNotInitialized for sessions with no manifest yet.
func (b *Backend) withLockedDocument(ctx context.Context, sessionID fidcommon.SessionID, mutate func(doc *document) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return storeerr.StorageWrap("begin transaction", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT state FROM fmemory_session_state WHERE session_id = $1 FOR UPDATE`, sessionID.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	if err != nil {
		return storeerr.StorageWrap("lock session row", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return storeerr.StorageWrap("decode session state", err)
	}
	if !doc.HasManifest {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}

	if err := mutate(&doc); err != nil {
		return err
	}

	if err := b.upsertDocument(ctx, tx, sessionID, doc, false); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeerr.StorageWrap("commit session state update", err)
	}
	return nil
}

func (b *Backend) AppendProgressEntry(ctx context.Context, sessionID fidcommon.SessionID, entry fidmemory.ProgressEntry) error {
	return b.withLockedDocument(ctx, sessionID, func(doc *document) error {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		doc.Progress = append(doc.Progress, entry)
		return nil
	})
}

func (b *Backend) ReplaceFeatureList(ctx context.Context, sessionID fidcommon.SessionID, features []fidmemory.FeatureRecord) error {
	return b.withLockedDocument(ctx, sessionID, func(doc *document) error {
		doc.Features = append([]fidmemory.FeatureRecord(nil), features...)
		return nil
	})
}

func (b *Backend) UpdateFeaturePass(ctx context.Context, sessionID fidcommon.SessionID, featureID string, passes bool) error {
	return b.withLockedDocument(ctx, sessionID, func(doc *document) error {
		for i, f := range doc.Features {
			if f.ID == featureID {
				doc.Features[i].Passes = passes
				return nil
			}
		}
		return fidmemory.ErrFeatureNotFound(sessionID, featureID)
	})
}

func (b *Backend) RecordRunCheckpoint(ctx context.Context, sessionID fidcommon.SessionID, checkpoint fidmemory.RunCheckpoint) error {
	return b.withLockedDocument(ctx, sessionID, func(doc *document) error {
		doc.Checkpoints = append(doc.Checkpoints, checkpoint)
		return nil
	})
}

func (b *Backend) LoadTranscriptMessages(ctx context.Context, sessionID fidcommon.SessionID) ([]fidprovider.Message, error) {
	doc, ok, err := b.loadDocument(ctx, b.db, sessionID)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]fidprovider.Message, len(doc.Messages))
	copy(out, doc.Messages)
	return out, nil
}

func (b *Backend) AppendTranscriptMessages(ctx context.Context, sessionID fidcommon.SessionID, messages []fidprovider.Message) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return storeerr.StorageWrap("begin transaction", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT state FROM fmemory_session_state WHERE session_id = $1 FOR UPDATE`, sessionID.String()).Scan(&raw)
	var doc document
	created := false
	switch {
	case err == sql.ErrNoRows:
		doc = document{}
		created = true
	case err != nil:
		return storeerr.StorageWrap("lock session row", err)
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return storeerr.StorageWrap("decode session state", err)
		}
	}

	doc.Messages = append(doc.Messages, messages...)
	if err := b.upsertDocument(ctx, tx, sessionID, doc, created); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeerr.StorageWrap("commit append messages", err)
	}
	return nil
}
