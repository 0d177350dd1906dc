package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func seedConversation(t *testing.T, store *memStore, sender, receiver string, n int) []*Message {
	t.Helper()
	messages := make([]*Message, 0, n)
	for i := 0; i < n; i++ {
		m := &Message{
			SenderUsername:   sender,
			ReceiverUsername: receiver,
			Body:             fmt.Sprintf("message %d", i),
		}
		if err := store.Insert(context.Background(), m); err != nil {
			t.Fatalf("seed insert %d: %v", i, err)
		}
		messages = append(messages, m)
	}
	return messages
}

func TestEngine_Create(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)

	m := &Message{SenderUsername: "alice", ReceiverUsername: "bob", Body: "hello"}
	if err := engine.Create(context.Background(), m, false); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if m.ID == "" {
		t.Error("expected generated message id")
	}
	if m.ReadStatus != ReadStatusSent {
		t.Errorf("expected readStatus SENT, got %s", m.ReadStatus)
	}
	if m.Offer != OfferNone {
		t.Errorf("expected offer NONE, got %s", m.Offer)
	}
	if m.ConversationID != ConversationID("alice", "bob") {
		t.Errorf("unexpected conversation id %s", m.ConversationID)
	}
}

func TestEngine_CreateWithOffer(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)

	m := &Message{SenderUsername: "alice", ReceiverUsername: "bob", Body: "job offer"}
	if err := engine.Create(context.Background(), m, true); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if m.Offer != OfferPending {
		t.Errorf("expected offer PENDING, got %s", m.Offer)
	}
}

func TestEngine_MarkMessageAsRead(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)
	msgs := seedConversation(t, store, "alice", "bob", 1)

	m, err := engine.MarkMessageAsRead(context.Background(), msgs[0].ID)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if m.ReadStatus != ReadStatusRead {
		t.Errorf("expected READ, got %s", m.ReadStatus)
	}
	if m.ReadAt == nil {
		t.Error("expected readAt timestamp")
	}
}

func TestEngine_MarkMessageAsRead_AlreadyReadIsNoop(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)
	msgs := seedConversation(t, store, "alice", "bob", 1)

	if _, err := engine.MarkMessageAsRead(context.Background(), msgs[0].ID); err != nil {
		t.Fatalf("first mark failed: %v", err)
	}
	m, err := engine.MarkMessageAsRead(context.Background(), msgs[0].ID)
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if m.ReadStatus != ReadStatusRead {
		t.Errorf("expected READ after no-op, got %s", m.ReadStatus)
	}
}

func TestEngine_MarkMessageAsRead_NotFound(t *testing.T) {
	engine := NewEngine(newMemStore())

	_, err := engine.MarkMessageAsRead(context.Background(), "missing-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEngine_MarkConversationAsRead_UpToBoundary(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)
	msgs := seedConversation(t, store, "alice", "bob", 5)

	// Boundary at the third message: the first three become READ, the last
	// two stay untouched.
	boundary, count, err := engine.MarkConversationAsRead(context.Background(), "bob", "alice", msgs[2].ID)
	if err != nil {
		t.Fatalf("batch mark failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 marked, got %d", count)
	}
	if boundary.ReadStatus != ReadStatusRead {
		t.Errorf("expected boundary READ, got %s", boundary.ReadStatus)
	}

	for i, m := range msgs {
		stored, err := store.Get(context.Background(), m.ID)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		wantRead := i <= 2
		if (stored.ReadStatus == ReadStatusRead) != wantRead {
			t.Errorf("message %d: expected read=%v, got %s", i, wantRead, stored.ReadStatus)
		}
	}
}

func TestEngine_MarkConversationAsRead_UnknownBoundary(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)
	seedConversation(t, store, "alice", "bob", 2)

	_, _, err := engine.MarkConversationAsRead(context.Background(), "bob", "alice", "missing-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEngine_MarkConversationAsRead_BoundaryFromOtherConversation(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)
	seedConversation(t, store, "alice", "bob", 3)
	other := seedConversation(t, store, "carol", "dave", 1)

	// A boundary id belonging to a different conversation must not drive the
	// cutoff for this one.
	_, _, err := engine.MarkConversationAsRead(context.Background(), "bob", "alice", other[0].ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	messages, err := engine.Conversation(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	for _, m := range messages {
		if m.ReadStatus != ReadStatusSent {
			t.Errorf("message %s: expected SENT after rejected batch, got %s", m.ID, m.ReadStatus)
		}
	}
}

func TestEngine_MarkConversationAsRead_ConcurrentWithSingleMarks(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)
	msgs := seedConversation(t, store, "alice", "bob", 20)
	boundary := msgs[len(msgs)-1]

	var wg sync.WaitGroup
	wg.Add(len(msgs) + 1)

	go func() {
		defer wg.Done()
		if _, _, err := engine.MarkConversationAsRead(context.Background(), "bob", "alice", boundary.ID); err != nil {
			t.Errorf("batch mark failed: %v", err)
		}
	}()
	for _, m := range msgs {
		go func(id string) {
			defer wg.Done()
			if _, err := engine.MarkMessageAsRead(context.Background(), id); err != nil {
				t.Errorf("single mark failed: %v", err)
			}
		}(m.ID)
	}
	wg.Wait()

	// No lost updates, no regression: every message ends READ.
	for i, m := range msgs {
		stored, err := store.Get(context.Background(), m.ID)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if stored.ReadStatus != ReadStatusRead {
			t.Errorf("message %d: expected READ, got %s", i, stored.ReadStatus)
		}
	}
}

func TestEngine_UpdateOffer_ValidTransition(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)

	m := &Message{SenderUsername: "alice", ReceiverUsername: "bob", Body: "offer"}
	if err := engine.Create(context.Background(), m, true); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := engine.UpdateOffer(context.Background(), m.ID, OfferAccepted)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Offer != OfferAccepted {
		t.Errorf("expected ACCEPTED, got %s", updated.Offer)
	}
	if updated.OfferUpdatedAt == nil {
		t.Error("expected offerUpdatedAt timestamp")
	}
}

func TestEngine_UpdateOffer_InvalidTransitionLeavesStoreUntouched(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)

	m := &Message{SenderUsername: "alice", ReceiverUsername: "bob", Body: "offer"}
	if err := engine.Create(context.Background(), m, true); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := engine.UpdateOffer(context.Background(), m.ID, OfferAccepted); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	// ACCEPTED is terminal: accepting again must fail.
	_, err := engine.UpdateOffer(context.Background(), m.ID, OfferAccepted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Read-after-failed-write: stored state unchanged.
	stored, err := store.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Offer != OfferAccepted {
		t.Errorf("expected stored offer ACCEPTED, got %s", stored.Offer)
	}
}

func TestEngine_UpdateOffer_ExtendedReopensNegotiation(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)

	m := &Message{SenderUsername: "alice", ReceiverUsername: "bob", Body: "offer"}
	if err := engine.Create(context.Background(), m, true); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := engine.UpdateOffer(context.Background(), m.ID, OfferExtended); err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	updated, err := engine.UpdateOffer(context.Background(), m.ID, OfferPending)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if updated.Offer != OfferPending {
		t.Errorf("expected PENDING after counter-offer, got %s", updated.Offer)
	}
}

func TestEngine_UpdateOffer_NotFound(t *testing.T) {
	engine := NewEngine(newMemStore())

	_, err := engine.UpdateOffer(context.Background(), "missing-id", OfferAccepted)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEngine_Conversation_Chronological(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store)
	msgs := seedConversation(t, store, "alice", "bob", 3)

	// Argument order must not matter.
	listed, err := engine.Conversation(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(listed))
	}
	for i := range listed {
		if listed[i].ID != msgs[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, msgs[i].ID, listed[i].ID)
		}
	}
}
