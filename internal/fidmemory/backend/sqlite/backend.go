// Package sqlite implements fidmemory.MemoryBackend on a local SQLite
// database via the pure-Go modernc.org/sqlite driver, normalized into one
// table per manifest concern (sessions, features, progress, checkpoints,
// messages).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
	_ "modernc.org/sqlite"
)

// Backend serializes every query through a single connection and an
// in-process mutex: modernc.org/sqlite's driver does not multiplex writes
// safely under SQLite's own locking model, so one mutex-guarded *sql.DB
// with MaxOpenConns(1) is simpler than fighting SQLITE_BUSY.
type Backend struct {
	mu sync.Mutex
	db *sql.DB
}

// New opens (and, if needed, creates) the SQLite database at path, enabling
// WAL journaling and NORMAL synchronous mode and a busy timeout long enough
// to ride out lock contention from other processes on the same file.
func New(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeerr.StorageWrap("open sqlite database", err)
	}
	db.SetMaxOpenConns(1)

	b := &Backend{db: db}
	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := b.db.Exec(p); err != nil {
			return storeerr.StorageWrap("apply sqlite pragma", err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			harness_version TEXT NOT NULL,
			active_branch TEXT NOT NULL,
			current_objective TEXT NOT NULL,
			last_known_good_commit TEXT,
			init_plan TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS features (
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			feature_id TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL,
			steps TEXT NOT NULL,
			passes INTEGER NOT NULL,
			PRIMARY KEY (session_id, feature_id)
		)`,
		`CREATE TABLE IF NOT EXISTS progress_entries (
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			seq INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			seq INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			note TEXT,
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_call_id TEXT,
			PRIMARY KEY (session_id, seq)
		)`,
	}
	for _, stmt := range schema {
		if _, err := b.db.Exec(stmt); err != nil {
			return storeerr.StorageWrap("create sqlite schema", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) sessionExistsTx(tx *sql.Tx, sessionID fidcommon.SessionID) (bool, error) {
	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID.String()).Scan(&count); err != nil {
		return false, storeerr.StorageWrap("check session existence", err)
	}
	return count > 0, nil
}

func (b *Backend) IsInitialized(_ context.Context, sessionID fidcommon.SessionID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var count int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID.String()).Scan(&count); err != nil {
		return false, storeerr.StorageWrap("check session existence", err)
	}
	return count > 0, nil
}

func (b *Backend) InitializeSessionIfMissing(_ context.Context, sessionID fidcommon.SessionID, manifest fidmemory.SessionManifest, features []fidmemory.FeatureRecord, progress *fidmemory.ProgressEntry, checkpoint *fidmemory.RunCheckpoint) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return false, storeerr.StorageWrap("begin transaction", err)
	}
	defer tx.Rollback()

	exists, err := b.sessionExistsTx(tx, sessionID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	now := time.Now()
	planJSON, err := json.Marshal(manifest.InitPlan)
	if err != nil {
		return false, storeerr.StorageWrap("encode init plan", err)
	}
	metadataJSON, err := json.Marshal(manifest.Metadata)
	if err != nil {
		return false, storeerr.StorageWrap("encode metadata", err)
	}

	_, err = tx.Exec(`INSERT INTO sessions (session_id, schema_version, harness_version, active_branch, current_objective, last_known_good_commit, init_plan, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID.String(), manifest.SchemaVersion, manifest.HarnessVersion, manifest.ActiveBranch, manifest.CurrentObjective,
		manifest.LastKnownGoodCommit, string(planJSON), string(metadataJSON), now, now)
	if err != nil {
		return false, storeerr.StorageWrap("insert session row", err)
	}

	for _, f := range features {
		if err := insertFeature(tx, sessionID, f); err != nil {
			return false, err
		}
	}
	if progress != nil {
		if err := insertProgress(tx, sessionID, *progress, 0); err != nil {
			return false, err
		}
	}
	if checkpoint != nil {
		if err := insertCheckpoint(tx, sessionID, *checkpoint, 0); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, storeerr.StorageWrap("commit initialize session", err)
	}
	return true, nil
}

func insertFeature(tx *sql.Tx, sessionID fidcommon.SessionID, f fidmemory.FeatureRecord) error {
	stepsJSON, err := json.Marshal(f.Steps)
	if err != nil {
		return storeerr.StorageWrap("encode feature steps", err)
	}
	_, err = tx.Exec(`INSERT INTO features (session_id, feature_id, category, description, steps, passes) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID.String(), f.ID, f.Category, f.Description, string(stepsJSON), boolToInt(f.Passes))
	if err != nil {
		return storeerr.StorageWrap("insert feature row", err)
	}
	return nil
}

func insertProgress(tx *sql.Tx, sessionID fidcommon.SessionID, entry fidmemory.ProgressEntry, seq int64) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := tx.Exec(`INSERT INTO progress_entries (session_id, seq, run_id, summary, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID.String(), seq, entry.RunID, entry.Summary, entry.CreatedAt)
	if err != nil {
		return storeerr.StorageWrap("insert progress row", err)
	}
	return nil
}

func insertCheckpoint(tx *sql.Tx, sessionID fidcommon.SessionID, c fidmemory.RunCheckpoint, seq int64) error {
	var note sql.NullString
	if c.Note != nil {
		note = sql.NullString{String: *c.Note, Valid: true}
	}
	var completedAt sql.NullTime
	if c.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *c.CompletedAt, Valid: true}
	}
	_, err := tx.Exec(`INSERT INTO checkpoints (session_id, seq, run_id, status, started_at, completed_at, note) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID.String(), seq, c.RunID, string(c.Status), c.StartedAt, completedAt, note)
	if err != nil {
		return storeerr.StorageWrap("insert checkpoint row", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (b *Backend) LoadBootstrapState(_ context.Context, sessionID fidcommon.SessionID) (fidmemory.BootstrapState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var manifest fidmemory.SessionManifest
	var lastKnownGoodCommit sql.NullString
	var planJSON, metadataJSON sql.NullString
	row := b.db.QueryRow(`SELECT schema_version, harness_version, active_branch, current_objective, last_known_good_commit, init_plan, metadata FROM sessions WHERE session_id = ?`, sessionID.String())
	err := row.Scan(&manifest.SchemaVersion, &manifest.HarnessVersion, &manifest.ActiveBranch, &manifest.CurrentObjective, &lastKnownGoodCommit, &planJSON, &metadataJSON)
	if err == sql.ErrNoRows {
		return fidmemory.BootstrapState{}, nil
	}
	if err != nil {
		return fidmemory.BootstrapState{}, storeerr.StorageWrap("load session row", err)
	}
	manifest.SessionID = sessionID
	if lastKnownGoodCommit.Valid {
		manifest.LastKnownGoodCommit = &lastKnownGoodCommit.String
	}
	if planJSON.Valid && planJSON.String != "null" && planJSON.String != "" {
		var plan fidmemory.InitPlan
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err == nil {
			manifest.InitPlan = &plan
		}
	}
	if metadataJSON.Valid {
		_ = json.Unmarshal([]byte(metadataJSON.String), &manifest.Metadata)
	}

	featureRows, err := b.db.Query(`SELECT feature_id, category, description, steps, passes FROM features WHERE session_id = ? ORDER BY feature_id`, sessionID.String())
	if err != nil {
		return fidmemory.BootstrapState{}, storeerr.StorageWrap("load features", err)
	}
	defer featureRows.Close()
	var features []fidmemory.FeatureRecord
	for featureRows.Next() {
		var f fidmemory.FeatureRecord
		var stepsJSON string
		var passes int
		if err := featureRows.Scan(&f.ID, &f.Category, &f.Description, &stepsJSON, &passes); err != nil {
			return fidmemory.BootstrapState{}, storeerr.StorageWrap("scan feature row", err)
		}
		_ = json.Unmarshal([]byte(stepsJSON), &f.Steps)
		f.Passes = passes != 0
		features = append(features, f)
	}

	progressRows, err := b.db.Query(`SELECT run_id, summary, created_at FROM progress_entries WHERE session_id = ? ORDER BY seq`, sessionID.String())
	if err != nil {
		return fidmemory.BootstrapState{}, storeerr.StorageWrap("load progress entries", err)
	}
	defer progressRows.Close()
	var progress []fidmemory.ProgressEntry
	for progressRows.Next() {
		var p fidmemory.ProgressEntry
		if err := progressRows.Scan(&p.RunID, &p.Summary, &p.CreatedAt); err != nil {
			return fidmemory.BootstrapState{}, storeerr.StorageWrap("scan progress row", err)
		}
		progress = append(progress, p)
	}

	checkpointRows, err := b.db.Query(`SELECT run_id, status, started_at, completed_at, note FROM checkpoints WHERE session_id = ? ORDER BY seq`, sessionID.String())
	if err != nil {
		return fidmemory.BootstrapState{}, storeerr.StorageWrap("load checkpoints", err)
	}
	defer checkpointRows.Close()
	var checkpoints []fidmemory.RunCheckpoint
	for checkpointRows.Next() {
		var c fidmemory.RunCheckpoint
		var note sql.NullString
		var completedAt sql.NullTime
		if err := checkpointRows.Scan(&c.RunID, &c.Status, &c.StartedAt, &completedAt, &note); err != nil {
			return fidmemory.BootstrapState{}, storeerr.StorageWrap("scan checkpoint row", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			c.CompletedAt = &t
		}
		if note.Valid {
			n := note.String
			c.Note = &n
		}
		checkpoints = append(checkpoints, c)
	}

	return fidmemory.BootstrapState{
		Manifest:       &manifest,
		FeatureList:    features,
		RecentProgress: progress,
		Checkpoints:    checkpoints,
	}, nil
}

func (b *Backend) SaveManifest(_ context.Context, sessionID fidcommon.SessionID, manifest fidmemory.SessionManifest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	planJSON, err := json.Marshal(manifest.InitPlan)
	if err != nil {
		return storeerr.StorageWrap("encode init plan", err)
	}
	metadataJSON, err := json.Marshal(manifest.Metadata)
	if err != nil {
		return storeerr.StorageWrap("encode metadata", err)
	}
	now := time.Now()

	_, err = b.db.Exec(`
		INSERT INTO sessions (session_id, schema_version, harness_version, active_branch, current_objective, last_known_good_commit, init_plan, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			harness_version = excluded.harness_version,
			active_branch = excluded.active_branch,
			current_objective = excluded.current_objective,
			last_known_good_commit = excluded.last_known_good_commit,
			init_plan = excluded.init_plan,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, sessionID.String(), manifest.SchemaVersion, manifest.HarnessVersion, manifest.ActiveBranch, manifest.CurrentObjective,
		manifest.LastKnownGoodCommit, string(planJSON), string(metadataJSON), now, now)
	if err != nil {
		return storeerr.StorageWrap("upsert session row", err)
	}
	return nil
}

func (b *Backend) touchSession(sessionID fidcommon.SessionID) error {
	_, err := b.db.Exec(`UPDATE sessions SET updated_at = ? WHERE session_id = ?`, time.Now(), sessionID.String())
	if err != nil {
		return storeerr.StorageWrap("touch session updated_at", err)
	}
	return nil
}

func (b *Backend) requireInitialized(sessionID fidcommon.SessionID) error {
	var count int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID.String()).Scan(&count); err != nil {
		return storeerr.StorageWrap("check session existence", err)
	}
	if count == 0 {
		return fidmemory.ErrSessionNotInitialized(sessionID)
	}
	return nil
}

func (b *Backend) nextSeq(table string, sessionID fidcommon.SessionID) (int64, error) {
	var seq sql.NullInt64
	err := b.db.QueryRow(`SELECT MAX(seq) FROM `+table+` WHERE session_id = ?`, sessionID.String()).Scan(&seq)
	if err != nil {
		return 0, storeerr.StorageWrap("compute next sequence", err)
	}
	return seq.Int64 + 1, nil
}

func (b *Backend) AppendProgressEntry(_ context.Context, sessionID fidcommon.SessionID, entry fidmemory.ProgressEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireInitialized(sessionID); err != nil {
		return err
	}
	seq, err := b.nextSeq("progress_entries", sessionID)
	if err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := b.db.Exec(`INSERT INTO progress_entries (session_id, seq, run_id, summary, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID.String(), seq, entry.RunID, entry.Summary, entry.CreatedAt); err != nil {
		return storeerr.StorageWrap("insert progress row", err)
	}
	return b.touchSession(sessionID)
}

func (b *Backend) ReplaceFeatureList(_ context.Context, sessionID fidcommon.SessionID, features []fidmemory.FeatureRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireInitialized(sessionID); err != nil {
		return err
	}

	tx, err := b.db.Begin()
	if err != nil {
		return storeerr.StorageWrap("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM features WHERE session_id = ?`, sessionID.String()); err != nil {
		return storeerr.StorageWrap("clear feature list", err)
	}
	for _, f := range features {
		if err := insertFeature(tx, sessionID, f); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return storeerr.StorageWrap("commit replace feature list", err)
	}
	return nil
}

func (b *Backend) UpdateFeaturePass(_ context.Context, sessionID fidcommon.SessionID, featureID string, passes bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireInitialized(sessionID); err != nil {
		return err
	}
	res, err := b.db.Exec(`UPDATE features SET passes = ? WHERE session_id = ? AND feature_id = ?`, boolToInt(passes), sessionID.String(), featureID)
	if err != nil {
		return storeerr.StorageWrap("update feature pass", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeerr.StorageWrap("check rows affected", err)
	}
	if affected == 0 {
		return fidmemory.ErrFeatureNotFound(sessionID, featureID)
	}
	return b.touchSession(sessionID)
}

func (b *Backend) RecordRunCheckpoint(_ context.Context, sessionID fidcommon.SessionID, checkpoint fidmemory.RunCheckpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireInitialized(sessionID); err != nil {
		return err
	}
	seq, err := b.nextSeq("checkpoints", sessionID)
	if err != nil {
		return err
	}
	tx, err := b.db.Begin()
	if err != nil {
		return storeerr.StorageWrap("begin transaction", err)
	}
	defer tx.Rollback()
	if err := insertCheckpoint(tx, sessionID, checkpoint, seq); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeerr.StorageWrap("commit record checkpoint", err)
	}
	return b.touchSession(sessionID)
}

func (b *Backend) LoadTranscriptMessages(_ context.Context, sessionID fidcommon.SessionID) ([]fidprovider.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows, err := b.db.Query(`SELECT role, content, tool_call_id FROM messages WHERE session_id = ? ORDER BY seq`, sessionID.String())
	if err != nil {
		return nil, storeerr.StorageWrap("query messages", err)
	}
	defer rows.Close()

	var out []fidprovider.Message
	for rows.Next() {
		var m fidprovider.Message
		var toolCallID sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &toolCallID); err != nil {
			return nil, storeerr.StorageWrap("scan message row", err)
		}
		m.ToolCallID = toolCallID.String
		out = append(out, m)
	}
	return out, nil
}

func (b *Backend) AppendTranscriptMessages(_ context.Context, sessionID fidcommon.SessionID, messages []fidprovider.Message) error {
	if len(messages) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return storeerr.StorageWrap("begin transaction", err)
	}
	defer tx.Rollback()

	var seq sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(seq) FROM messages WHERE session_id = ?`, sessionID.String()).Scan(&seq); err != nil {
		return storeerr.StorageWrap("compute next message sequence", err)
	}
	next := seq.Int64 + 1

	stmt, err := tx.Prepare(`INSERT INTO messages (session_id, seq, role, content, tool_call_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return storeerr.StorageWrap("prepare message insert", err)
	}
	defer stmt.Close()

	for i, m := range messages {
		if _, err := stmt.Exec(sessionID.String(), next+int64(i), string(m.Role), m.Content, nullIfEmpty(m.ToolCallID)); err != nil {
			return storeerr.StorageWrap("insert message row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeerr.StorageWrap("commit append messages", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
