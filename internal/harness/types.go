// Package harness drives a session through its two phases: a one-time
// initializer that scaffolds a session manifest and starter feature list,
// and a task-iteration controller that turns the chat engine against one
// pending feature per call and records the outcome in the memory backend.
package harness

import (
	"github.com/philo-groves/fiddlesticks/internal/fidchat"
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/harnesserr"
)

// Phase selects which controller a session's next call should run.
type Phase string

const (
	PhaseInitializer   Phase = "initializer"
	PhaseTaskIteration Phase = "task_iteration"
)

// InitializerRequest scaffolds a new session: a manifest, a starter feature
// list (when none is supplied), and the first progress entry + checkpoint.
type InitializerRequest struct {
	SessionID        fidcommon.SessionID
	RunID            string
	ActiveBranch     string
	CurrentObjective string
	InitPlan         *fidmemory.InitPlan
	FeatureList      []fidmemory.FeatureRecord
	ProgressSummary  string
}

// NewInitializerRequest returns a request with the reference defaults: a
// conventional active branch name and an auto-generated progress summary,
// both overridable before the call.
func NewInitializerRequest(sessionID fidcommon.SessionID, runID, currentObjective string) InitializerRequest {
	return InitializerRequest{
		SessionID:        sessionID,
		RunID:            runID,
		ActiveBranch:     "feature/initializer",
		CurrentObjective: currentObjective,
	}
}

// InitializerResult reports what the initializer did: whether it actually
// created the manifest (false on a replayed call against an already
// initialized session) and the resulting manifest metadata.
type InitializerResult struct {
	SessionID      fidcommon.SessionID
	Created        bool
	SchemaVersion  int
	HarnessVersion string
	FeatureCount   int
}

// TaskIterationRequest drives one or more turns of work against a session
// that has already been initialized.
type TaskIterationRequest struct {
	Session        fidchat.Session
	RunID          string
	Stream         bool
	PromptOverride *string
}

// NewTaskIterationRequest returns a non-streaming request against session.
func NewTaskIterationRequest(session fidchat.Session, runID string) TaskIterationRequest {
	return TaskIterationRequest{Session: session, RunID: runID}
}

// EnableStreaming returns a copy of req with streaming turns enabled.
func (req TaskIterationRequest) EnableStreaming() TaskIterationRequest {
	req.Stream = true
	return req
}

// WithPromptOverride returns a copy of req that uses prompt verbatim instead
// of the harness's generated feature prompt.
func (req TaskIterationRequest) WithPromptOverride(prompt string) TaskIterationRequest {
	req.PromptOverride = &prompt
	return req
}

// TaskIterationResult reports what happened during one task-iteration call:
// which features were attempted, which validated, and whether the session
// has any pending required features left.
type TaskIterationResult struct {
	SessionID             fidcommon.SessionID
	SelectedFeatureID     *string
	ProcessedFeatureIDs   []string
	ValidatedFeatureIDs   []string
	ProcessedFeatureCount int
	Validated             bool
	NoPendingFeatures     bool
	UsedStream            bool
	AssistantMessage      *string
}

// RuntimeRunRequest is the single entry point a caller that doesn't know
// (or care) which phase a session is in can use: Harness.Run inspects
// session state and dispatches to the initializer or the task-iteration
// controller as appropriate.
type RuntimeRunRequest struct {
	Session          fidchat.Session
	RunID            string
	CurrentObjective string
	Stream           bool
	PromptOverride   *string
	InitPlan         *fidmemory.InitPlan
	FeatureList      []fidmemory.FeatureRecord
	ActiveBranch     string
	ProgressSummary  *string
}

// NewRuntimeRunRequest returns a request with the conventional active
// branch default.
func NewRuntimeRunRequest(session fidchat.Session, runID, currentObjective string) RuntimeRunRequest {
	return RuntimeRunRequest{
		Session:          session,
		RunID:            runID,
		CurrentObjective: currentObjective,
		ActiveBranch:     "feature/initializer",
	}
}

// RuntimeRunOutcome is a tagged union over the two controllers' results:
// exactly one of Initializer or TaskIteration is set.
type RuntimeRunOutcome struct {
	Initializer   *InitializerResult
	TaskIteration *TaskIterationResult
}

// FailFastPolicy decides whether a failure during task iteration aborts the
// call immediately or is absorbed, letting the loop retry or move on.
type FailFastPolicy struct {
	OnHealthCheckError  bool
	OnChatError         bool
	OnValidationFailure bool
}

// DefaultFailFastPolicy matches the reference harness: health-check and
// validation failures abort the run; transient chat/provider errors are
// retried against the run policy's retry budget instead.
func DefaultFailFastPolicy() FailFastPolicy {
	return FailFastPolicy{OnHealthCheckError: true, OnChatError: false, OnValidationFailure: true}
}

// RunPolicyMode selects how many features one task-iteration call may
// advance before returning.
type RunPolicyMode string

const (
	// StrictIncremental processes exactly one feature per call. This is the
	// default: every run leaves a clean, reviewable handoff.
	StrictIncremental RunPolicyMode = "strict_incremental"
	// BoundedBatch processes up to RunPolicy.MaxFeaturesPerRun features
	// before returning.
	BoundedBatch RunPolicyMode = "bounded_batch"
	// UnlimitedBatch keeps processing features until none remain or a
	// turn/validation failure stops the loop.
	UnlimitedBatch RunPolicyMode = "unlimited_batch"
)

// RunPolicy bounds one task-iteration call: how many turns it may spend per
// feature, how many features it may advance, how many retries it gets after
// a recoverable failure, and which failure classes abort immediately.
type RunPolicy struct {
	Mode               RunPolicyMode
	MaxTurnsPerRun      int
	MaxFeaturesPerRun   int
	RetryBudget        int
	FailFast           FailFastPolicy
}

// DefaultRunPolicy is strict incremental: one feature, one turn, no
// retries, and fail-fast on anything but a transient chat error.
func DefaultRunPolicy() RunPolicy {
	return RunPolicy{
		Mode:              StrictIncremental,
		MaxTurnsPerRun:    1,
		MaxFeaturesPerRun: 1,
		RetryBudget:       0,
		FailFast:          DefaultFailFastPolicy(),
	}
}

// BoundedBatchPolicy returns a policy that advances up to maxFeaturesPerRun
// features per call, otherwise matching DefaultRunPolicy.
func BoundedBatchPolicy(maxFeaturesPerRun int) RunPolicy {
	p := DefaultRunPolicy()
	p.Mode = BoundedBatch
	p.MaxFeaturesPerRun = maxFeaturesPerRun
	return p
}

// UnlimitedBatchPolicy returns a policy with no cap on features processed
// per call, otherwise matching DefaultRunPolicy.
func UnlimitedBatchPolicy() RunPolicy {
	p := DefaultRunPolicy()
	p.Mode = UnlimitedBatch
	return p
}

// Validate checks the policy is internally consistent for its mode.
func (p RunPolicy) Validate() error {
	if p.MaxTurnsPerRun == 0 {
		return harnesserr.InvalidRequest("run policy requires max_turns_per_run >= 1")
	}
	switch p.Mode {
	case StrictIncremental:
		if p.MaxFeaturesPerRun != 1 {
			return harnesserr.InvalidRequest("run policy strict mode requires max_features_per_run = 1")
		}
	case BoundedBatch:
		if p.MaxFeaturesPerRun == 0 {
			return harnesserr.InvalidRequest("run policy bounded-batch mode requires max_features_per_run >= 1")
		}
	case UnlimitedBatch:
		// no constraint
	default:
		return harnesserr.InvalidRequest("run policy has unknown mode")
	}
	return nil
}

// MaxFeaturesPerRunLimit reports the effective feature cap for one call, or
// nil when the mode has no cap.
func (p RunPolicy) MaxFeaturesPerRunLimit() *int {
	switch p.Mode {
	case StrictIncremental:
		one := 1
		return &one
	case BoundedBatch:
		limit := p.MaxFeaturesPerRun
		return &limit
	default:
		return nil
	}
}
