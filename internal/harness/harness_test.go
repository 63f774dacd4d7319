package harness_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philo-groves/fiddlesticks/internal/fidchat"
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory/backend/inmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/harness"
)

// rejectingValidator never validates a feature, so callers can exercise
// fail-fast and retry-budget behavior deterministically.
type rejectingValidator struct{}

func (rejectingValidator) Validate(context.Context, fidmemory.FeatureRecord, fidchat.TurnResult) (bool, error) {
	return false, nil
}

type scriptedProvider struct {
	response fidprovider.ModelResponse
	calls    int
}

func (p *scriptedProvider) ID() fidprovider.ProviderID { return fidprovider.OpenAI }

func (p *scriptedProvider) Complete(_ context.Context, _ fidprovider.ModelRequest) (fidprovider.ModelResponse, error) {
	p.calls++
	return p.response, nil
}

func (p *scriptedProvider) Stream(context.Context, fidprovider.ModelRequest) (<-chan fidprovider.StreamEvent, error) {
	panic("not used in these tests")
}

func (p *scriptedProvider) ListModels(context.Context) ([]string, error) { return nil, nil }

func textResponse(text string) fidprovider.ModelResponse {
	return fidprovider.ModelResponse{
		Output:     []fidprovider.OutputItem{{Message: &fidprovider.Message{Role: fidprovider.RoleAssistant, Content: text}}},
		StopReason: fidprovider.StopEndTurn,
	}
}

func newTestHarness(t *testing.T, provider fidprovider.ModelProvider, policy *harness.RunPolicy) *harness.Harness {
	t.Helper()
	builder := harness.NewBuilder(inmemory.New(nil)).WithProvider(provider)
	if policy != nil {
		builder = builder.WithRunPolicy(*policy)
	}
	h, err := builder.Build()
	require.NoError(t, err)
	return h
}

func TestRunInitializerRejectsEmptyObjective(t *testing.T) {
	h := newTestHarness(t, &scriptedProvider{response: textResponse("x")}, nil)
	_, err := h.RunInitializer(context.Background(), harness.NewInitializerRequest(fidcommon.SessionID("s1"), "run-1", "   "))
	require.Error(t, err)
}

func TestRunInitializerSubstitutesStarterFeatureList(t *testing.T) {
	h := newTestHarness(t, &scriptedProvider{response: textResponse("x")}, nil)
	result, err := h.RunInitializer(context.Background(), harness.NewInitializerRequest(fidcommon.SessionID("s2"), "run-1", "ship the thing"))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 6, result.FeatureCount)
}

func TestRunInitializerIsIdempotentOnReplay(t *testing.T) {
	h := newTestHarness(t, &scriptedProvider{response: textResponse("x")}, nil)
	req := harness.NewInitializerRequest(fidcommon.SessionID("s3"), "run-1", "ship the thing")

	first, err := h.RunInitializer(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := h.RunInitializer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.FeatureCount, second.FeatureCount)
}

func TestRunTaskIterationValidatesFirstPendingFeature(t *testing.T) {
	h := newTestHarness(t, &scriptedProvider{response: textResponse("done")}, nil)
	sessionID := fidcommon.SessionID("s4")
	_, err := h.RunInitializer(context.Background(), harness.NewInitializerRequest(sessionID, "run-1", "ship the thing"))
	require.NoError(t, err)

	session := fidchat.Session{ID: sessionID, Model: "gpt-4o-mini"}
	result, err := h.RunTaskIteration(context.Background(), harness.NewTaskIterationRequest(session, "run-2"))
	require.NoError(t, err)
	assert.True(t, result.Validated)
	assert.False(t, result.NoPendingFeatures)
	require.NotNil(t, result.SelectedFeatureID)
	assert.Equal(t, "initializer.artifacts", *result.SelectedFeatureID)
	require.NotNil(t, result.AssistantMessage)
	assert.Equal(t, "done", *result.AssistantMessage)
}

func TestRunTaskIterationReportsNoPendingFeaturesOnceAllPass(t *testing.T) {
	h := newTestHarness(t, &scriptedProvider{response: textResponse("done")}, nil)
	sessionID := fidcommon.SessionID("s5")
	_, err := h.RunInitializer(context.Background(), harness.NewInitializerRequest(sessionID, "run-1", "ship the thing"))
	require.NoError(t, err)
	session := fidchat.Session{ID: sessionID, Model: "gpt-4o-mini"}

	for i := 0; i < 6; i++ {
		result, err := h.RunTaskIteration(context.Background(), harness.NewTaskIterationRequest(session, "run-n"))
		require.NoError(t, err)
		if result.NoPendingFeatures {
			assert.Equal(t, i, 5, "all six starter features should be consumed before completion is reported")
			return
		}
	}
	t.Fatal("expected NoPendingFeatures to be reported within six iterations")
}

func TestRunTaskIterationRequiresInitializedSession(t *testing.T) {
	h := newTestHarness(t, &scriptedProvider{response: textResponse("done")}, nil)
	session := fidchat.Session{ID: fidcommon.SessionID("s6"), Model: "gpt-4o-mini"}
	_, err := h.RunTaskIteration(context.Background(), harness.NewTaskIterationRequest(session, "run-1"))
	require.Error(t, err)
}

func TestRunTaskIterationUsesPromptOverride(t *testing.T) {
	provider := &scriptedProvider{response: textResponse("done")}
	h := newTestHarness(t, provider, nil)
	sessionID := fidcommon.SessionID("s7")
	_, err := h.RunInitializer(context.Background(), harness.NewInitializerRequest(sessionID, "run-1", "ship the thing"))
	require.NoError(t, err)

	session := fidchat.Session{ID: sessionID, Model: "gpt-4o-mini"}
	req := harness.NewTaskIterationRequest(session, "run-2").WithPromptOverride("custom prompt")
	_, err = h.RunTaskIteration(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestRunPolicyValidateRejectsInconsistentModes(t *testing.T) {
	strict := harness.DefaultRunPolicy()
	strict.MaxFeaturesPerRun = 2
	assert.Error(t, strict.Validate())

	bounded := harness.BoundedBatchPolicy(0)
	assert.Error(t, bounded.Validate())

	zeroTurns := harness.DefaultRunPolicy()
	zeroTurns.MaxTurnsPerRun = 0
	assert.Error(t, zeroTurns.Validate())

	unlimited := harness.UnlimitedBatchPolicy()
	assert.NoError(t, unlimited.Validate())
}

func TestRunPolicyMaxFeaturesPerRunLimit(t *testing.T) {
	strict := harness.DefaultRunPolicy()
	require.NotNil(t, strict.MaxFeaturesPerRunLimit())
	assert.Equal(t, 1, *strict.MaxFeaturesPerRunLimit())

	bounded := harness.BoundedBatchPolicy(3)
	require.NotNil(t, bounded.MaxFeaturesPerRunLimit())
	assert.Equal(t, 3, *bounded.MaxFeaturesPerRunLimit())

	unlimited := harness.UnlimitedBatchPolicy()
	assert.Nil(t, unlimited.MaxFeaturesPerRunLimit())
}

func TestBuildRequiresProvider(t *testing.T) {
	_, err := harness.NewBuilder(inmemory.New(nil)).Build()
	require.Error(t, err)
}

func TestSelectPhaseReflectsInitializationState(t *testing.T) {
	h := newTestHarness(t, &scriptedProvider{response: textResponse("done")}, nil)
	sessionID := fidcommon.SessionID("s8")

	phase, err := h.SelectPhase(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, harness.PhaseInitializer, phase)

	_, err = h.RunInitializer(context.Background(), harness.NewInitializerRequest(sessionID, "run-1", "ship the thing"))
	require.NoError(t, err)

	phase, err = h.SelectPhase(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, harness.PhaseTaskIteration, phase)
}

func TestRunTaskIterationFailsFastOnValidationFailure(t *testing.T) {
	provider := &scriptedProvider{response: textResponse("not quite done")}
	h, err := harness.NewBuilder(inmemory.New(nil)).
		WithProvider(provider).
		WithValidator(rejectingValidator{}).
		Build()
	require.NoError(t, err)

	sessionID := fidcommon.SessionID("s10")
	_, err = h.RunInitializer(context.Background(), harness.NewInitializerRequest(sessionID, "run-1", "ship the thing"))
	require.NoError(t, err)

	session := fidchat.Session{ID: sessionID, Model: "gpt-4o-mini"}
	result, err := h.RunTaskIteration(context.Background(), harness.NewTaskIterationRequest(session, "run-2"))
	require.NoError(t, err)
	assert.False(t, result.Validated)
	assert.Equal(t, 1, provider.calls, "fail-fast on validation failure should not retry")
}

func TestRunTaskIterationRetriesValidationFailureUpToBudget(t *testing.T) {
	provider := &scriptedProvider{response: textResponse("not quite done")}
	policy := harness.DefaultRunPolicy()
	policy.RetryBudget = 2
	policy.MaxTurnsPerRun = 3
	policy.FailFast.OnValidationFailure = false

	h, err := harness.NewBuilder(inmemory.New(nil)).
		WithProvider(provider).
		WithValidator(rejectingValidator{}).
		WithRunPolicy(policy).
		Build()
	require.NoError(t, err)

	sessionID := fidcommon.SessionID("s11")
	_, err = h.RunInitializer(context.Background(), harness.NewInitializerRequest(sessionID, "run-1", "ship the thing"))
	require.NoError(t, err)

	session := fidchat.Session{ID: sessionID, Model: "gpt-4o-mini"}
	result, err := h.RunTaskIteration(context.Background(), harness.NewTaskIterationRequest(session, "run-2"))
	require.NoError(t, err)
	assert.False(t, result.Validated)
	assert.Equal(t, 3, provider.calls, "should exhaust all max turns before giving up")
}

type recordingHarnessHooks struct {
	starts    []harness.Phase
	successes []harness.Phase
	failures  []harness.Phase
}

func (h *recordingHarnessHooks) OnPhaseStart(phase harness.Phase, _ fidcommon.SessionID) {
	h.starts = append(h.starts, phase)
}

func (h *recordingHarnessHooks) OnPhaseSuccess(phase harness.Phase, _ fidcommon.SessionID, _ time.Duration) {
	h.successes = append(h.successes, phase)
}

func (h *recordingHarnessHooks) OnPhaseFailure(phase harness.Phase, _ fidcommon.SessionID, _ time.Duration, _ error) {
	h.failures = append(h.failures, phase)
}

func TestRunFiresHarnessHooksAroundEachPhase(t *testing.T) {
	hooks := &recordingHarnessHooks{}
	h, err := harness.NewBuilder(inmemory.New(nil)).
		WithProvider(&scriptedProvider{response: textResponse("done")}).
		WithHarnessHooks(hooks).
		Build()
	require.NoError(t, err)

	sessionID := fidcommon.SessionID("s12")
	session := fidchat.Session{ID: sessionID, Model: "gpt-4o-mini"}

	_, err = h.Run(context.Background(), harness.NewRuntimeRunRequest(session, "run-1", "ship the thing"))
	require.NoError(t, err)
	_, err = h.Run(context.Background(), harness.NewRuntimeRunRequest(session, "run-2", "ship the thing"))
	require.NoError(t, err)

	assert.Equal(t, []harness.Phase{harness.PhaseInitializer, harness.PhaseTaskIteration}, hooks.starts)
	assert.Equal(t, []harness.Phase{harness.PhaseInitializer, harness.PhaseTaskIteration}, hooks.successes)
	assert.Empty(t, hooks.failures)
}

func TestRunDispatchesToInitializerThenTaskIteration(t *testing.T) {
	h := newTestHarness(t, &scriptedProvider{response: textResponse("done")}, nil)
	sessionID := fidcommon.SessionID("s9")
	session := fidchat.Session{ID: sessionID, Model: "gpt-4o-mini"}

	first, err := h.Run(context.Background(), harness.NewRuntimeRunRequest(session, "run-1", "ship the thing"))
	require.NoError(t, err)
	require.NotNil(t, first.Initializer)
	assert.Nil(t, first.TaskIteration)

	second, err := h.Run(context.Background(), harness.NewRuntimeRunRequest(session, "run-2", "ship the thing"))
	require.NoError(t, err)
	require.NotNil(t, second.TaskIteration)
	assert.Nil(t, second.Initializer)
}
