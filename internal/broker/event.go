package broker

import (
	"time"

	"github.com/google/uuid"
)

// Exchange and routing-key constants for the chat service's direct exchanges.
// Routing keys select the consuming service's queue binding.
const (
	// ExchangeChatUpdate carries read-state changes toward other chat
	// consumers (the receiver's service instance, notification service).
	ExchangeChatUpdate        = "chat-update"
	RoutingChatReceiverUpdate = "chat-receiver-update"

	// ExchangeChatNotification carries offer-negotiation changes toward the
	// order service.
	ExchangeChatNotification = "jobber-chat-notification"
	RoutingOrderNotification = "order-notification"
)

// EventType tags the closed set of message-state-change events crossing the
// broker boundary, so consumers can switch on the kind exhaustively.
type EventType string

const (
	EventMessageCreated   EventType = "message.created"
	EventMessageRead      EventType = "message.read"
	EventConversationRead EventType = "conversation.read"
	EventOfferUpdated     EventType = "offer.updated"
)

// Event is the serialized payload published to an exchange. It is ephemeral:
// constructed per publish call, consumed by the broker client, and discarded
// after the publish attempt.
type Event struct {
	ID               string    `json:"id"`
	Type             EventType `json:"type"`
	MessageID        string    `json:"messageId,omitempty"`
	ConversationID   string    `json:"conversationId,omitempty"`
	SenderUsername   string    `json:"senderUsername,omitempty"`
	ReceiverUsername string    `json:"receiverUsername,omitempty"`
	ReadStatus       string    `json:"readStatus,omitempty"`
	Offer            string    `json:"offer,omitempty"`
	MarkedCount      int64     `json:"markedCount,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewEvent creates an Event of the given type with a generated id and the
// current timestamp. Callers fill in the variant's fields.
func NewEvent(t EventType, messageID, conversationID string) Event {
	return Event{
		ID:             uuid.New().String(),
		Type:           t,
		MessageID:      messageID,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	}
}

// Handler is a callback invoked for every event received on a subscription.
type Handler func(event Event)
