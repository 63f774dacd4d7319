// Package fidmemory defines the durable state a harness run persists between
// restarts — a per-session manifest, its tracked feature list, an
// append-only progress log and run-checkpoint history — and the
// MemoryBackend contract that storage implementations (in-memory,
// filesystem, SQLite, Postgres) satisfy.
package fidmemory

import (
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
)

// DefaultSchemaVersion is stamped onto every SessionManifest this package
// creates; a backend bumps it only when the on-disk/row shape changes in a
// way older readers can't tolerate.
const DefaultSchemaVersion = 1

// DefaultHarnessVersion identifies the harness build that produced a
// manifest, for diagnosing behavior drift across upgrades.
const DefaultHarnessVersion = "v0"

// FeatureRecord tracks one unit of work the harness drives a session
// towards completing. Passes transitions false→true monotonically via
// MemoryBackend.UpdateFeaturePass; it never reverts.
type FeatureRecord struct {
	ID          string
	Category    string
	Description string
	Steps       []string
	Passes      bool
}

// InitShell names the shell an InitShellScript step runs under.
type InitShell string

const (
	ShellBash InitShell = "bash"
	ShellSh   InitShell = "sh"
	ShellPwsh InitShell = "pwsh"
	ShellCmd  InitShell = "cmd"
)

// InitCommand is a single argv-form command an init step runs: program plus
// its arguments, kept separate so a backend never needs to re-tokenize a
// shell line.
type InitCommand struct {
	Program string
	Args    []string
}

// InitShellScript is a single shell-script-form command an init step runs.
type InitShellScript struct {
	Shell  InitShell
	Script string
}

// InitStep is one step of an InitPlan: exactly one of Command or Script is
// set.
type InitStep struct {
	Command *InitCommand
	Script  *InitShellScript
}

// NewCommandStep builds a command-form InitStep.
func NewCommandStep(program string, args ...string) InitStep {
	return InitStep{Command: &InitCommand{Program: program, Args: args}}
}

// NewShellStep builds a shell-script-form InitStep.
func NewShellStep(shell InitShell, script string) InitStep {
	return InitStep{Script: &InitShellScript{Shell: shell, Script: script}}
}

// InitPlan is the ordered sequence of steps a harness runs once, before the
// first task iteration, to bring a fresh session's workspace to a runnable
// state, and again (read-only, as a health check) before every later
// iteration.
type InitPlan struct {
	Steps []InitStep
}

// DefaultInitPlan is the two git diagnostic commands every harness build
// runs absent an explicit init plan.
func DefaultInitPlan() InitPlan {
	return InitPlan{Steps: []InitStep{
		NewCommandStep("git", "status", "--short", "--branch"),
		NewCommandStep("git", "log", "--oneline", "-20"),
	}}
}

// ProgressEntry is one append-only log line recorded against a session: the
// run that produced it and a free-form summary.
type ProgressEntry struct {
	RunID     string
	Summary   string
	CreatedAt time.Time
}

// NewProgressEntry stamps a ProgressEntry with the current time.
func NewProgressEntry(runID, summary string, now time.Time) ProgressEntry {
	return ProgressEntry{RunID: runID, Summary: summary, CreatedAt: now}
}

// RunStatus is the terminal or in-flight state of one recorded
// RunCheckpoint.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
)

// RunCheckpoint records one harness run attempt against a session: when it
// started, how (and whether) it ended.
type RunCheckpoint struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      RunStatus
	Note        *string
}

// StartedCheckpoint returns an in-progress checkpoint for runID, stamped
// with now.
func StartedCheckpoint(runID string, now time.Time) RunCheckpoint {
	return RunCheckpoint{RunID: runID, StartedAt: now, Status: RunInProgress}
}

// SessionManifest is the durable identity and configuration of one session:
// schema/harness versioning, branch and objective context, and the init
// plan that brought its workspace up. Created exactly once per session by
// the initializer; later initializer calls against the same session are
// no-ops.
type SessionManifest struct {
	SessionID           fidcommon.SessionID
	SchemaVersion       int
	HarnessVersion      string
	ActiveBranch        string
	CurrentObjective    string
	LastKnownGoodCommit *string
	InitPlan            *InitPlan
	Metadata            map[string]string
}

// NewSessionManifest returns a manifest for sessionID stamped with the
// current default versions.
func NewSessionManifest(sessionID fidcommon.SessionID, activeBranch, currentObjective string) SessionManifest {
	return SessionManifest{
		SessionID:        sessionID,
		SchemaVersion:    DefaultSchemaVersion,
		HarnessVersion:   DefaultHarnessVersion,
		ActiveBranch:     activeBranch,
		CurrentObjective: currentObjective,
	}
}

// WithSchemaVersion returns a copy of m with SchemaVersion overridden.
func (m SessionManifest) WithSchemaVersion(v int) SessionManifest {
	m.SchemaVersion = v
	return m
}

// WithHarnessVersion returns a copy of m with HarnessVersion overridden.
func (m SessionManifest) WithHarnessVersion(v string) SessionManifest {
	m.HarnessVersion = v
	return m
}

// BootstrapState is the total view a backend returns for a session: its
// manifest (nil if never initialized), tracked feature list, and recent
// progress/checkpoint history.
type BootstrapState struct {
	Manifest       *SessionManifest
	FeatureList    []FeatureRecord
	RecentProgress []ProgressEntry
	Checkpoints    []RunCheckpoint
}

// FeatureByID returns the feature tracked under id, if present.
func (b *BootstrapState) FeatureByID(id string) (FeatureRecord, bool) {
	for _, f := range b.FeatureList {
		if f.ID == id {
			return f, true
		}
	}
	return FeatureRecord{}, false
}

// AllFeaturesPassed reports whether every tracked feature has Passes=true.
// A backend with no tracked features is vacuously not considered complete.
func AllFeaturesPassed(features []FeatureRecord) bool {
	if len(features) == 0 {
		return false
	}
	for _, f := range features {
		if !f.Passes {
			return false
		}
	}
	return true
}
