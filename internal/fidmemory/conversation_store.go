package fidmemory

import (
	"context"

	"github.com/philo-groves/fiddlesticks/internal/chaterr"
	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
)

// ConversationStore adapts a MemoryBackend to the fidchat.ConversationStore
// contract, converting storeerr failures into the chat engine's own
// Storage-phase errors so callers never import storeerr directly.
type ConversationStore struct {
	backend MemoryBackend
}

// NewConversationStore wraps backend as a fidchat.ConversationStore.
func NewConversationStore(backend MemoryBackend) *ConversationStore {
	return &ConversationStore{backend: backend}
}

func (s *ConversationStore) LoadMessages(ctx context.Context, sessionID fidcommon.SessionID) ([]fidprovider.Message, error) {
	messages, err := s.backend.LoadTranscriptMessages(ctx, sessionID)
	if err != nil {
		return nil, chaterr.FromStoreError(asStoreError(err))
	}
	return messages, nil
}

func (s *ConversationStore) AppendMessages(ctx context.Context, sessionID fidcommon.SessionID, messages []fidprovider.Message) error {
	if err := s.backend.AppendTranscriptMessages(ctx, sessionID, messages); err != nil {
		return chaterr.FromStoreError(asStoreError(err))
	}
	return nil
}

func asStoreError(err error) *storeerr.Error {
	if serr, ok := err.(*storeerr.Error); ok {
		return serr
	}
	return storeerr.StorageWrap("memory backend failure", err)
}
