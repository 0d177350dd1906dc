package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store with the same compare-and-set semantics as
// PostgresStore, used to exercise the engine and handlers without a database.
type memStore struct {
	mu       sync.Mutex
	messages map[string]*Message
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[string]*Message),
		clock:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) Insert(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.ConversationID == "" {
		m.ConversationID = ConversationID(m.SenderUsername, m.ReceiverUsername)
	}
	if m.ReadStatus == "" {
		m.ReadStatus = ReadStatusSent
	}
	if m.Offer == "" {
		m.Offer = OfferNone
	}
	s.clock = s.clock.Add(time.Second)
	m.CreatedAt = s.clock

	stored := *m
	s.messages[m.ID] = &stored
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *memStore) MarkMessageRead(_ context.Context, id string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.ReadStatus != ReadStatusRead {
		m.ReadStatus = ReadStatusRead
		now := s.clock
		m.ReadAt = &now
	}
	copied := *m
	return &copied, nil
}

func (s *memStore) MarkConversationRead(_ context.Context, conversationID, boundaryID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	boundary, ok := s.messages[boundaryID]
	if !ok {
		return 0, nil
	}

	var count int64
	for _, m := range s.messages {
		if m.ConversationID != conversationID || m.ReadStatus == ReadStatusRead {
			continue
		}
		if m.CreatedAt.After(boundary.CreatedAt) {
			continue
		}
		m.ReadStatus = ReadStatusRead
		now := s.clock
		m.ReadAt = &now
		count++
	}
	return count, nil
}

func (s *memStore) CompareAndSetOffer(_ context.Context, id string, from, to OfferStatus) (*Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.Offer != from {
		return nil, false, nil
	}
	m.Offer = to
	now := s.clock
	m.OfferUpdatedAt = &now
	copied := *m
	return &copied, true, nil
}

func (s *memStore) ListConversation(_ context.Context, conversationID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := []Message{}
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			messages = append(messages, *m)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}
