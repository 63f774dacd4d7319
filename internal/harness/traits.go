package harness

import (
	"context"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidchat"
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
)

// HarnessHooks observes phase-level lifecycle of a harness run: which phase
// started, and how it finished. Distinct from EventObserver, which streams
// the finer-grained chat events of a single task-iteration turn.
type HarnessHooks interface {
	OnPhaseStart(phase Phase, sessionID fidcommon.SessionID)
	OnPhaseSuccess(phase Phase, sessionID fidcommon.SessionID, elapsed time.Duration)
	OnPhaseFailure(phase Phase, sessionID fidcommon.SessionID, elapsed time.Duration, err error)
}

// NoopHarnessHooks implements HarnessHooks with no-ops.
type NoopHarnessHooks struct{}

func (NoopHarnessHooks) OnPhaseStart(Phase, fidcommon.SessionID)                       {}
func (NoopHarnessHooks) OnPhaseSuccess(Phase, fidcommon.SessionID, time.Duration)      {}
func (NoopHarnessHooks) OnPhaseFailure(Phase, fidcommon.SessionID, time.Duration, error) {}

// HealthChecker runs a session's init plan before task iteration begins,
// giving a caller a chance to gate on workspace state (is the branch clean,
// does the baseline build pass) before spending a turn.
type HealthChecker interface {
	Run(ctx context.Context, sessionID fidcommon.SessionID, plan fidmemory.InitPlan) error
}

// NoopHealthChecker always succeeds; the default for harness configurations
// that don't wire a real health check.
type NoopHealthChecker struct{}

func (NoopHealthChecker) Run(context.Context, fidcommon.SessionID, fidmemory.InitPlan) error {
	return nil
}

// OutcomeValidator decides whether a completed turn actually satisfies the
// feature it was run for.
type OutcomeValidator interface {
	Validate(ctx context.Context, feature fidmemory.FeatureRecord, result fidchat.TurnResult) (bool, error)
}

// AcceptAllValidator treats every completed turn as validating its feature.
// The default; callers that need real verification (running tests,
// checking a diff) supply their own OutcomeValidator.
type AcceptAllValidator struct{}

func (AcceptAllValidator) Validate(context.Context, fidmemory.FeatureRecord, fidchat.TurnResult) (bool, error) {
	return true, nil
}

// FeatureSelector picks the next feature to work on from the current
// feature list.
type FeatureSelector interface {
	Select(features []fidmemory.FeatureRecord) (fidmemory.FeatureRecord, bool)
}

// FirstPendingFeatureSelector returns the first feature with passes=false,
// in list order. The default selector: a stable, deterministic choice that
// matches StrictIncremental's one-feature-at-a-time contract.
type FirstPendingFeatureSelector struct{}

func (FirstPendingFeatureSelector) Select(features []fidmemory.FeatureRecord) (fidmemory.FeatureRecord, bool) {
	for _, f := range features {
		if !f.Passes {
			return f, true
		}
	}
	return fidmemory.FeatureRecord{}, false
}
