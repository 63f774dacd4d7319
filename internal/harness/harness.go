package harness

import (
	"context"
	"time"

	"github.com/philo-groves/fiddlesticks/internal/fidchat"
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/harnesserr"
	"github.com/philo-groves/fiddlesticks/internal/tooling"
)

// EventObserver receives every event a streamed task-iteration turn
// produces, in addition to the TurnComplete event the harness itself
// consumes to build the final result.
type EventObserver func(fidchat.Event)

// Builder assembles a Harness from a memory backend plus the optional
// collaborators (chat provider, tool runtime, health checker, validator,
// feature selector, run policy) a caller wants to override.
type Builder struct {
	memory         fidmemory.MemoryBackend
	provider       fidprovider.ModelProvider
	toolRuntime    tooling.Runtime
	chatPolicy     fidchat.Policy
	chatHooks      fidprovider.ProviderOperationHooks
	healthChecker  HealthChecker
	validator      OutcomeValidator
	featureSelect  FeatureSelector
	runPolicy      RunPolicy
	harnessHooks   HarnessHooks
	schemaVersion  int
	harnessVersion string
}

// NewBuilder starts a Builder over memory with the reference defaults: a
// no-op health checker, an accept-all validator, first-pending feature
// selection, strict-incremental run policy, and no-op harness hooks.
func NewBuilder(memory fidmemory.MemoryBackend) *Builder {
	return &Builder{
		memory:         memory,
		chatPolicy:     fidchat.DefaultPolicy(),
		healthChecker:  NoopHealthChecker{},
		validator:      AcceptAllValidator{},
		featureSelect:  FirstPendingFeatureSelector{},
		runPolicy:      DefaultRunPolicy(),
		harnessHooks:   NoopHarnessHooks{},
		schemaVersion:  fidmemory.DefaultSchemaVersion,
		harnessVersion: fidmemory.DefaultHarnessVersion,
	}
}

func (b *Builder) WithProvider(provider fidprovider.ModelProvider) *Builder {
	b.provider = provider
	return b
}

func (b *Builder) WithToolRuntime(toolRuntime tooling.Runtime) *Builder {
	b.toolRuntime = toolRuntime
	return b
}

func (b *Builder) WithChatPolicy(policy fidchat.Policy) *Builder {
	b.chatPolicy = policy
	return b
}

func (b *Builder) WithChatHooks(hooks fidprovider.ProviderOperationHooks) *Builder {
	b.chatHooks = hooks
	return b
}

func (b *Builder) WithHealthChecker(checker HealthChecker) *Builder {
	b.healthChecker = checker
	return b
}

func (b *Builder) WithValidator(validator OutcomeValidator) *Builder {
	b.validator = validator
	return b
}

func (b *Builder) WithFeatureSelector(selector FeatureSelector) *Builder {
	b.featureSelect = selector
	return b
}

func (b *Builder) WithRunPolicy(policy RunPolicy) *Builder {
	b.runPolicy = policy
	return b
}

func (b *Builder) WithHarnessHooks(hooks HarnessHooks) *Builder {
	b.harnessHooks = hooks
	return b
}

func (b *Builder) WithSchemaVersion(v int) *Builder {
	b.schemaVersion = v
	return b
}

func (b *Builder) WithHarnessVersion(v string) *Builder {
	b.harnessVersion = v
	return b
}

// Build validates the run policy and wires a fidchat.Service over memory via
// a fidmemory.ConversationStore, returning the assembled Harness.
func (b *Builder) Build() (*Harness, error) {
	if err := b.runPolicy.Validate(); err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, harnesserr.NotReady("provider is required to build chat runtime")
	}

	store := fidmemory.NewConversationStore(b.memory)
	chat := fidchat.New(store, b.provider, b.toolRuntime, b.chatPolicy, b.chatHooks)

	harnessHooks := b.harnessHooks
	if harnessHooks == nil {
		harnessHooks = NoopHarnessHooks{}
	}

	return &Harness{
		memory:         b.memory,
		chat:           chat,
		healthChecker:  b.healthChecker,
		validator:      b.validator,
		featureSelect:  b.featureSelect,
		runPolicy:      b.runPolicy,
		harnessHooks:   harnessHooks,
		schemaVersion:  b.schemaVersion,
		harnessVersion: b.harnessVersion,
	}, nil
}

// Harness drives a session through the initializer and task-iteration
// phases, persisting all state through a MemoryBackend.
type Harness struct {
	memory         fidmemory.MemoryBackend
	chat           *fidchat.Service
	healthChecker  HealthChecker
	validator      OutcomeValidator
	featureSelect  FeatureSelector
	runPolicy      RunPolicy
	harnessHooks   HarnessHooks
	schemaVersion  int
	harnessVersion string
}

// NewHarness builds a memory-only Harness with every collaborator at its
// default: no chat service is configured, so RunTaskIteration fails until a
// caller swaps in one built via Builder, or the struct is used only for its
// RunInitializer path.
func NewHarness(memory fidmemory.MemoryBackend) *Harness {
	return &Harness{
		memory:         memory,
		healthChecker:  NoopHealthChecker{},
		validator:      AcceptAllValidator{},
		featureSelect:  FirstPendingFeatureSelector{},
		runPolicy:      DefaultRunPolicy(),
		harnessHooks:   NoopHarnessHooks{},
		schemaVersion:  fidmemory.DefaultSchemaVersion,
		harnessVersion: fidmemory.DefaultHarnessVersion,
	}
}

// SelectPhase reports which controller should run next for sessionID.
func (h *Harness) SelectPhase(ctx context.Context, sessionID fidcommon.SessionID) (Phase, error) {
	initialized, err := h.memory.IsInitialized(ctx, sessionID)
	if err != nil {
		return "", harnesserr.FromMemoryError(asStoreError(err))
	}
	if initialized {
		return PhaseTaskIteration, nil
	}
	return PhaseInitializer, nil
}

// Run dispatches request to the initializer or task-iteration controller
// based on the session's current state.
func (h *Harness) Run(ctx context.Context, request RuntimeRunRequest) (RuntimeRunOutcome, error) {
	return h.RunWithObserver(ctx, request, nil)
}

// RunWithObserver is Run, additionally streaming every chat event to
// observer when the task-iteration controller runs a streaming turn.
func (h *Harness) RunWithObserver(ctx context.Context, request RuntimeRunRequest, observer EventObserver) (RuntimeRunOutcome, error) {
	phase, err := h.SelectPhase(ctx, request.Session.ID)
	if err != nil {
		return RuntimeRunOutcome{}, err
	}

	phaseStarted := time.Now()
	h.harnessHooks.OnPhaseStart(phase, request.Session.ID)

	switch phase {
	case PhaseInitializer:
		init := InitializerRequest{
			SessionID:        request.Session.ID,
			RunID:            request.RunID,
			ActiveBranch:     request.ActiveBranch,
			CurrentObjective: request.CurrentObjective,
			InitPlan:         request.InitPlan,
			FeatureList:      request.FeatureList,
		}
		if request.ProgressSummary != nil {
			init.ProgressSummary = *request.ProgressSummary
		}
		result, err := h.RunInitializer(ctx, init)
		if err != nil {
			h.harnessHooks.OnPhaseFailure(phase, request.Session.ID, time.Since(phaseStarted), err)
			return RuntimeRunOutcome{}, err
		}
		h.harnessHooks.OnPhaseSuccess(phase, request.Session.ID, time.Since(phaseStarted))
		return RuntimeRunOutcome{Initializer: &result}, nil

	default:
		task := TaskIterationRequest{Session: request.Session, RunID: request.RunID, Stream: request.Stream, PromptOverride: request.PromptOverride}
		result, err := h.RunTaskIterationWithObserver(ctx, task, observer)
		if err != nil {
			h.harnessHooks.OnPhaseFailure(phase, request.Session.ID, time.Since(phaseStarted), err)
			return RuntimeRunOutcome{}, err
		}
		h.harnessHooks.OnPhaseSuccess(phase, request.Session.ID, time.Since(phaseStarted))
		return RuntimeRunOutcome{TaskIteration: &result}, nil
	}
}

// RunInitializer scaffolds a session: substitutes the starter feature list
// and a default progress summary/init plan when the caller leaves them
// blank, validates the feature list, and initializes the session exactly
// once. A replayed call against an already-initialized session is a no-op
// that still returns the session's current state (Created=false).
func (h *Harness) RunInitializer(ctx context.Context, request InitializerRequest) (InitializerResult, error) {
	if isBlank(request.CurrentObjective) {
		return InitializerResult{}, harnesserr.InvalidRequest("current_objective must not be empty")
	}

	featureList := request.FeatureList
	if len(featureList) == 0 {
		featureList = starterFeatureList(request.CurrentObjective)
	}
	if err := validateFeatureList(featureList); err != nil {
		return InitializerResult{}, err
	}

	progressSummary := request.ProgressSummary
	if isBlank(progressSummary) {
		progressSummary = "Initializer scaffold created for objective: " + request.CurrentObjective
	}

	initPlan := request.InitPlan
	if initPlan == nil {
		plan := fidmemory.DefaultInitPlan()
		initPlan = &plan
	}

	manifest := fidmemory.NewSessionManifest(request.SessionID, request.ActiveBranch, request.CurrentObjective).
		WithSchemaVersion(h.schemaVersion).
		WithHarnessVersion(h.harnessVersion)
	manifest.InitPlan = initPlan

	now := time.Now()
	progress := fidmemory.NewProgressEntry(request.RunID, progressSummary, now)
	checkpoint := fidmemory.StartedCheckpoint(request.RunID, now)

	created, err := h.memory.InitializeSessionIfMissing(ctx, request.SessionID, manifest, featureList, &progress, &checkpoint)
	if err != nil {
		return InitializerResult{}, harnesserr.FromMemoryError(asStoreError(err))
	}

	bootstrap, err := h.memory.LoadBootstrapState(ctx, request.SessionID)
	if err != nil {
		return InitializerResult{}, harnesserr.FromMemoryError(asStoreError(err))
	}
	if bootstrap.Manifest == nil {
		return InitializerResult{}, harnesserr.Memory("manifest missing after initializer run")
	}

	return InitializerResult{
		SessionID:      bootstrap.Manifest.SessionID,
		Created:        created,
		SchemaVersion:  bootstrap.Manifest.SchemaVersion,
		HarnessVersion: bootstrap.Manifest.HarnessVersion,
		FeatureCount:   len(bootstrap.FeatureList),
	}, nil
}

// RunTaskIteration is RunTaskIterationWithObserver with no observer.
func (h *Harness) RunTaskIteration(ctx context.Context, request TaskIterationRequest) (TaskIterationResult, error) {
	return h.RunTaskIterationWithObserver(ctx, request, nil)
}

// RunTaskIterationWithObserver advances an initialized session's pending
// features by running chat turns, always recording a final checkpoint and
// progress entry — on success, validation failure, or error alike — so a
// session's history never has a run with no handoff.
func (h *Harness) RunTaskIterationWithObserver(ctx context.Context, request TaskIterationRequest, observer EventObserver) (TaskIterationResult, error) {
	if h.chat == nil {
		return TaskIterationResult{}, harnesserr.NotReady("chat service is not configured in harness")
	}

	startedAt := time.Now()
	started := fidmemory.StartedCheckpoint(request.RunID, startedAt)
	if err := h.memory.RecordRunCheckpoint(ctx, request.Session.ID, started); err != nil {
		return TaskIterationResult{}, harnesserr.FromMemoryError(asStoreError(err))
	}

	result, runErr := h.runTaskIterationInner(ctx, request, observer)

	var status fidmemory.RunStatus
	var note string
	if runErr != nil {
		status = fidmemory.RunFailed
		note = "Run failed: " + runErr.Error()
	} else if result.NoPendingFeatures {
		status = fidmemory.RunSucceeded
		note = "All required features pass=true in feature_list; completion gate satisfied"
	} else if result.Validated {
		status = fidmemory.RunSucceeded
		note = "Feature '" + featureIDOrUnknown(result.SelectedFeatureID) + "' validated and marked passing; remaining required features still pending"
	} else {
		status = fidmemory.RunFailed
		note = "Feature '" + featureIDOrUnknown(result.SelectedFeatureID) + "' was not validated; left failing for next run"
	}

	if err := h.recordFinalHandoff(ctx, request.Session.ID, request.RunID, startedAt, status, note); err != nil {
		if runErr == nil {
			return TaskIterationResult{}, err
		}
	}

	return result, runErr
}

func featureIDOrUnknown(id *string) string {
	if id == nil {
		return "unknown"
	}
	return *id
}

func (h *Harness) recordFinalHandoff(ctx context.Context, sessionID fidcommon.SessionID, runID string, startedAt time.Time, status fidmemory.RunStatus, note string) error {
	completed := time.Now()
	checkpoint := fidmemory.RunCheckpoint{
		RunID:       runID,
		StartedAt:   startedAt,
		CompletedAt: timePtr(completed),
		Status:      status,
		Note:        &note,
	}
	if err := h.memory.RecordRunCheckpoint(ctx, sessionID, checkpoint); err != nil {
		return harnesserr.FromMemoryError(asStoreError(err))
	}
	entry := fidmemory.NewProgressEntry(runID, note, completed)
	if err := h.memory.AppendProgressEntry(ctx, sessionID, entry); err != nil {
		return harnesserr.FromMemoryError(asStoreError(err))
	}
	return nil
}

func (h *Harness) runTaskIterationInner(ctx context.Context, request TaskIterationRequest, observer EventObserver) (TaskIterationResult, error) {
	bootstrap, err := h.memory.LoadBootstrapState(ctx, request.Session.ID)
	if err != nil {
		return TaskIterationResult{}, harnesserr.FromMemoryError(asStoreError(err))
	}
	if bootstrap.Manifest == nil {
		return TaskIterationResult{}, harnesserr.NotReady("session is not initialized; run initializer first")
	}

	initPlan := bootstrap.Manifest.InitPlan
	if initPlan == nil {
		plan := fidmemory.DefaultInitPlan()
		initPlan = &plan
	}
	if err := h.healthChecker.Run(ctx, request.Session.ID, *initPlan); err != nil {
		if h.runPolicy.FailFast.OnHealthCheckError {
			return TaskIterationResult{}, harnesserr.HealthCheck(err.Error())
		}
	}

	if fidmemory.AllFeaturesPassed(bootstrap.FeatureList) {
		return TaskIterationResult{
			SessionID:         request.Session.ID,
			Validated:         true,
			NoPendingFeatures: true,
			UsedStream:        request.Stream,
		}, nil
	}

	limit := h.runPolicy.MaxFeaturesPerRunLimit()
	features := bootstrap.FeatureList
	var processedIDs, validatedIDs []string
	var lastSelectedID *string
	var lastAssistantMessage *string
	lastValidated := false

	for limit == nil || len(processedIDs) < *limit {
		selected, ok := h.featureSelect.Select(features)
		if !ok {
			if len(processedIDs) == 0 {
				return TaskIterationResult{}, harnesserr.Validation("feature selector returned no work before required features reached passes=true")
			}
			break
		}
		id := selected.ID
		lastSelectedID = &id

		validated, assistantMessage, err := h.runFeatureTurns(ctx, request, selected, bootstrap.Manifest.CurrentObjective, observer)
		if err != nil {
			return TaskIterationResult{}, err
		}
		lastAssistantMessage = assistantMessage
		processedIDs = append(processedIDs, id)

		if !validated {
			lastValidated = false
			break
		}

		if err := h.memory.UpdateFeaturePass(ctx, request.Session.ID, id, true); err != nil {
			return TaskIterationResult{}, harnesserr.FromMemoryError(asStoreError(err))
		}
		validatedIDs = append(validatedIDs, id)
		lastValidated = true

		refreshed, err := h.memory.LoadBootstrapState(ctx, request.Session.ID)
		if err != nil {
			return TaskIterationResult{}, harnesserr.FromMemoryError(asStoreError(err))
		}
		features = refreshed.FeatureList
		if fidmemory.AllFeaturesPassed(features) {
			return TaskIterationResult{
				SessionID:             request.Session.ID,
				SelectedFeatureID:     lastSelectedID,
				ProcessedFeatureIDs:   processedIDs,
				ValidatedFeatureIDs:   validatedIDs,
				ProcessedFeatureCount: len(processedIDs),
				Validated:             true,
				NoPendingFeatures:     true,
				UsedStream:            request.Stream,
				AssistantMessage:      lastAssistantMessage,
			}, nil
		}
	}

	return TaskIterationResult{
		SessionID:             request.Session.ID,
		SelectedFeatureID:     lastSelectedID,
		ProcessedFeatureIDs:   processedIDs,
		ValidatedFeatureIDs:   validatedIDs,
		ProcessedFeatureCount: len(processedIDs),
		Validated:             lastValidated,
		NoPendingFeatures:     false,
		UsedStream:            request.Stream,
		AssistantMessage:      lastAssistantMessage,
	}, nil
}

// runFeatureTurns drives the turn loop for a single feature: up to
// MaxTurnsPerRun turns, retrying recoverable failures against RetryBudget,
// and returns whether the outcome validated.
func (h *Harness) runFeatureTurns(ctx context.Context, request TaskIterationRequest, feature fidmemory.FeatureRecord, objective string, observer EventObserver) (bool, *string, error) {
	turnsUsed := 0
	retriesRemaining := h.runPolicy.RetryBudget
	var lastMessage *string

	for turnsUsed < h.runPolicy.MaxTurnsPerRun {
		turnsUsed++

		prompt := buildFeaturePrompt(feature, objective)
		if request.PromptOverride != nil {
			prompt = *request.PromptOverride
		}

		turnRequest := fidchat.TurnRequest{
			Session:   request.Session,
			UserInput: prompt,
			Options:   fidchat.TurnOptions{Stream: request.Stream},
		}

		turnResult, err := h.executeTurn(ctx, turnRequest, observer)
		if err != nil {
			if h.runPolicy.FailFast.OnChatError || retriesRemaining == 0 || turnsUsed >= h.runPolicy.MaxTurnsPerRun {
				return false, nil, harnesserr.FromChatError(asChatError(err))
			}
			retriesRemaining--
			continue
		}

		message := turnResult.AssistantMessage
		lastMessage = &message

		validated, err := h.validator.Validate(ctx, feature, turnResult)
		if err != nil {
			return false, nil, harnesserr.Validation(err.Error())
		}

		if validated {
			return true, &message, nil
		}

		if h.runPolicy.FailFast.OnValidationFailure || retriesRemaining == 0 || turnsUsed >= h.runPolicy.MaxTurnsPerRun {
			return false, &message, nil
		}
		retriesRemaining--
	}

	return false, lastMessage, nil
}

// executeTurn runs one turn, streaming to observer when the request asks
// for streaming, and returns the terminal TurnResult either way.
func (h *Harness) executeTurn(ctx context.Context, request fidchat.TurnRequest, observer EventObserver) (fidchat.TurnResult, error) {
	if !request.Options.Stream {
		return h.chat.RunTurn(ctx, request)
	}

	events, err := h.chat.StreamTurn(ctx, request)
	if err != nil {
		return fidchat.TurnResult{}, err
	}

	var final *fidchat.TurnResult
	for event := range events {
		if observer != nil {
			observer(event)
		}
		if event.Err != nil {
			return fidchat.TurnResult{}, event.Err
		}
		if event.TurnComplete != nil {
			final = event.TurnComplete
		}
	}
	if final == nil {
		return fidchat.TurnResult{}, harnesserr.Chat("stream ended without TurnComplete event")
	}
	return *final, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
