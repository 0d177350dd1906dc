package chat

import (
	"context"
	"fmt"
)

// offerCASAttempts bounds the re-read/validate/swap loop in UpdateOffer when
// a concurrent writer moves the offer state between our read and our swap.
const offerCASAttempts = 3

// Engine applies validated state transitions to persisted messages. It is the
// single mutation path for read-status and offer-status; callers are
// responsible for firing broker and push notifications after a transition has
// been durably applied (persist-then-notify).
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Create persists a new message with readStatus SENT. When hasOffer is set
// the message carries a fresh offer in PENDING.
func (e *Engine) Create(ctx context.Context, m *Message, hasOffer bool) error {
	m.ReadStatus = ReadStatusSent
	m.Offer = OfferNone
	if hasOffer {
		m.Offer = OfferPending
	}
	m.ConversationID = ConversationID(m.SenderUsername, m.ReceiverUsername)
	return e.store.Insert(ctx, m)
}

// MarkMessageAsRead transitions exactly one message to READ and returns the
// updated document. Already-READ messages are a no-op and returned as stored.
// Returns ErrNotFound if the id does not resolve.
func (e *Engine) MarkMessageAsRead(ctx context.Context, messageID string) (*Message, error) {
	return e.store.MarkMessageRead(ctx, messageID)
}

// MarkConversationAsRead transitions every unread message between the two
// participants created at or before the boundary message to READ, as one
// atomic batch. The returned message is the boundary document after the
// update; the count is the number of messages the batch touched. The boundary
// must belong to the participants' conversation; an id from another
// conversation resolves to ErrNotFound.
func (e *Engine) MarkConversationAsRead(ctx context.Context, receiverUsername, senderUsername, boundaryID string) (*Message, int64, error) {
	conversationID := ConversationID(receiverUsername, senderUsername)

	boundary, err := e.store.Get(ctx, boundaryID)
	if err != nil {
		return nil, 0, err
	}
	if boundary.ConversationID != conversationID {
		return nil, 0, ErrNotFound
	}

	count, err := e.store.MarkConversationRead(ctx, conversationID, boundaryID)
	if err != nil {
		return nil, 0, err
	}

	boundary, err = e.store.Get(ctx, boundaryID)
	if err != nil {
		return nil, 0, err
	}
	return boundary, count, nil
}

// UpdateOffer moves a message's offer state to target if the negotiation
// graph allows it from the stored current state. The swap is conditioned on
// the state we validated against, so a concurrent transition cannot be
// overwritten; on a lost race the current state is re-read and re-validated.
func (e *Engine) UpdateOffer(ctx context.Context, messageID string, target OfferStatus) (*Message, error) {
	for attempt := 0; attempt < offerCASAttempts; attempt++ {
		current, err := e.store.Get(ctx, messageID)
		if err != nil {
			return nil, err
		}

		if !current.Offer.CanTransitionTo(target) {
			return nil, fmt.Errorf("offer %s -> %s: %w", current.Offer, target, ErrInvalidTransition)
		}

		updated, swapped, err := e.store.CompareAndSetOffer(ctx, messageID, current.Offer, target)
		if err != nil {
			return nil, err
		}
		if swapped {
			return updated, nil
		}
	}
	return nil, fmt.Errorf("offer update for %s lost %d races: %w", messageID, offerCASAttempts, ErrInvalidTransition)
}

// Conversation returns the conversation's messages in chronological order.
func (e *Engine) Conversation(ctx context.Context, a, b string) ([]Message, error) {
	return e.store.ListConversation(ctx, ConversationID(a, b))
}
