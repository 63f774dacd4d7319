package inmemory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidmemory/backend/inmemory"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sampleFeatures() []fidmemory.FeatureRecord {
	return []fidmemory.FeatureRecord{
		{ID: "feature-a", Category: "functional", Description: "a", Steps: []string{"do a"}},
		{ID: "feature-b", Category: "functional", Description: "b", Steps: []string{"do b"}},
	}
}

func TestInitializeSessionIfMissingIsAtomicAgainstItself(t *testing.T) {
	backend := inmemory.New(fixedClock(time.Unix(0, 0)))
	ctx := context.Background()
	sessionID := fidcommon.SessionID("sess-1")
	manifest := fidmemory.NewSessionManifest(sessionID, "main", "ship feature x")

	did, err := backend.InitializeSessionIfMissing(ctx, sessionID, manifest, sampleFeatures(), nil, nil)
	require.NoError(t, err)
	assert.True(t, did)

	did, err = backend.InitializeSessionIfMissing(ctx, sessionID, manifest, []fidmemory.FeatureRecord{{ID: "feature-c", Description: "c", Steps: []string{"x"}}}, nil, nil)
	require.NoError(t, err)
	assert.False(t, did)

	bootstrap, err := backend.LoadBootstrapState(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, bootstrap.FeatureList, 2)
}

func TestUpdateFeaturePassRequiresInitialization(t *testing.T) {
	backend := inmemory.New(nil)
	err := backend.UpdateFeaturePass(context.Background(), fidcommon.SessionID("missing"), "feature-a", true)
	require.Error(t, err)
}

func TestUpdateFeaturePassRequiresKnownFeature(t *testing.T) {
	backend := inmemory.New(nil)
	ctx := context.Background()
	sessionID := fidcommon.SessionID("sess-2")
	manifest := fidmemory.NewSessionManifest(sessionID, "main", "objective")
	_, err := backend.InitializeSessionIfMissing(ctx, sessionID, manifest, sampleFeatures(), nil, nil)
	require.NoError(t, err)

	err = backend.UpdateFeaturePass(ctx, sessionID, "does-not-exist", true)
	require.Error(t, err)
}

func TestUpdateFeaturePassIsMonotonicAndVisibleInBootstrap(t *testing.T) {
	backend := inmemory.New(nil)
	ctx := context.Background()
	sessionID := fidcommon.SessionID("sess-3")
	manifest := fidmemory.NewSessionManifest(sessionID, "main", "objective")
	_, err := backend.InitializeSessionIfMissing(ctx, sessionID, manifest, sampleFeatures(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, backend.UpdateFeaturePass(ctx, sessionID, "feature-a", true))

	bootstrap, err := backend.LoadBootstrapState(ctx, sessionID)
	require.NoError(t, err)
	feature, ok := bootstrap.FeatureByID("feature-a")
	require.True(t, ok)
	assert.True(t, feature.Passes)
	assert.False(t, fidmemory.AllFeaturesPassed(bootstrap.FeatureList))
}

func TestAppendTranscriptMessagesRoundTrips(t *testing.T) {
	backend := inmemory.New(nil)
	store := fidmemory.NewConversationStore(backend)
	ctx := context.Background()
	sessionID := fidcommon.SessionID("sess-4")

	loaded, err := store.LoadMessages(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, store.AppendMessages(ctx, sessionID, []fidprovider.Message{{Role: fidprovider.RoleUser, Content: "hi"}}))
	loaded, err = store.LoadMessages(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "hi", loaded[0].Content)
}

func TestLoadBootstrapStateOfUnknownSessionIsEmptyNotError(t *testing.T) {
	backend := inmemory.New(nil)
	bootstrap, err := backend.LoadBootstrapState(context.Background(), fidcommon.SessionID("never-seen"))
	require.NoError(t, err)
	assert.Nil(t, bootstrap.Manifest)
	assert.Empty(t, bootstrap.FeatureList)
}
