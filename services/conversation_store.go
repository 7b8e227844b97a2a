package services

import (
	"sync"

	"salesassistant/models"
)

// ConversationStore is the append-only transcript of one session.
type ConversationStore struct {
	mu       sync.RWMutex
	messages []models.Message
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{}
}

func (s *ConversationStore) Append(msgs ...models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msgs...)
}

// Snapshot returns the whole history in arrival order. The slice is a copy.
func (s *ConversationStore) Snapshot() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}
