// Package fidchat implements the chat turn engine: the non-streaming and
// streaming turn loops that assemble provider requests from persisted
// history, drive the tool-call round-trip loop, and persist the resulting
// transcript delta.
package fidchat

import (
	"context"
	"sync"

	"github.com/philo-groves/fiddlesticks/internal/fidcommon"
	"github.com/philo-groves/fiddlesticks/internal/fidprovider"
)

// ConversationStore is the transcript read/append contract the chat engine
// persists through. A session with no history yet returns an empty slice,
// never an error.
type ConversationStore interface {
	LoadMessages(ctx context.Context, sessionID fidcommon.SessionID) ([]fidprovider.Message, error)
	AppendMessages(ctx context.Context, sessionID fidcommon.SessionID, messages []fidprovider.Message) error
}

// InMemoryConversationStore keeps transcripts in a process-local map. Useful
// for tests and for harness configurations that don't need durability
// across restarts.
type InMemoryConversationStore struct {
	mu       sync.Mutex
	sessions map[fidcommon.SessionID][]fidprovider.Message
}

func NewInMemoryConversationStore() *InMemoryConversationStore {
	return &InMemoryConversationStore{sessions: make(map[fidcommon.SessionID][]fidprovider.Message)}
}

func (s *InMemoryConversationStore) LoadMessages(_ context.Context, sessionID fidcommon.SessionID) ([]fidprovider.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.sessions[sessionID]
	out := make([]fidprovider.Message, len(messages))
	copy(out, messages)
	return out, nil
}

func (s *InMemoryConversationStore) AppendMessages(_ context.Context, sessionID fidcommon.SessionID, messages []fidprovider.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], messages...)
	return nil
}
