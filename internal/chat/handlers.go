package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/k0msak007/jobber-chat/internal/broker"
	"github.com/k0msak007/jobber-chat/internal/httputil"
)

// Push event names delivered to connected clients.
const (
	PushMessageReceived = "message received"
	PushMessageRead     = "message read"
	PushMessagesRead    = "messages read"
	PushOfferUpdated    = "offer updated"
)

// Pusher is the room-scoped broadcast side of the push gateway, satisfied by
// *ws.Hub.
type Pusher interface {
	Broadcast(room, event string, payload interface{})
}

// Handlers wires the chat HTTP surface. Every mutating handler persists the
// transition through the Engine first and only then fires the broker publish
// and the room broadcast; both notifications are best-effort and never change
// the HTTP response.
type Handlers struct {
	engine    *Engine
	publisher *broker.Publisher
	hub       Pusher
}

func NewHandlers(engine *Engine, publisher *broker.Publisher, hub Pusher) *Handlers {
	return &Handlers{engine: engine, publisher: publisher, hub: hub}
}

// RegisterRoutes wires the message endpoints onto the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/message", h.CreateMessage).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/message/offer", h.UpdateOffer).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/message/mark-as-read", h.MarkSingleMessage).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/message/mark-multiple-as-read", h.MarkMultipleMessages).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/message/conversation/{senderUsername}/{receiverUsername}", h.Conversation).Methods(http.MethodGet)
}

type createMessageRequest struct {
	SenderUsername   string `json:"senderUsername"`
	ReceiverUsername string `json:"receiverUsername"`
	Body             string `json:"body"`
	File             string `json:"file"`
	HasOffer         bool   `json:"hasOffer"`
}

// CreateMessage persists a new message and notifies the receiver.
func (h *Handlers) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SenderUsername == "" {
		h.writeDomainError(w, &ValidationError{Field: "senderUsername", Reason: "is required"})
		return
	}
	if req.ReceiverUsername == "" {
		h.writeDomainError(w, &ValidationError{Field: "receiverUsername", Reason: "is required"})
		return
	}
	if req.Body == "" && req.File == "" {
		h.writeDomainError(w, &ValidationError{Field: "body", Reason: "message body or file is required"})
		return
	}

	m := &Message{
		SenderUsername:   req.SenderUsername,
		ReceiverUsername: req.ReceiverUsername,
		Body:             req.Body,
		File:             req.File,
	}
	if err := h.engine.Create(r.Context(), m, req.HasOffer); err != nil {
		h.writeDomainError(w, err)
		return
	}

	event := broker.NewEvent(broker.EventMessageCreated, m.ID, m.ConversationID)
	event.SenderUsername = m.SenderUsername
	event.ReceiverUsername = m.ReceiverUsername
	event.ReadStatus = string(m.ReadStatus)
	event.Offer = string(m.Offer)
	go h.publisher.PublishDirect(broker.ExchangeChatUpdate, broker.RoutingChatReceiverUpdate, event,
		"message "+m.ID+" created, receiver notified")
	h.hub.Broadcast(m.ConversationID, PushMessageReceived, m)
	h.hub.Broadcast(m.ReceiverUsername, PushMessageReceived, m)

	httputil.WriteMessage(w, http.StatusOK, "Message created", map[string]interface{}{
		"conversationId": m.ConversationID,
		"singleMessage":  m,
	})
}

type updateOfferRequest struct {
	MessageID string `json:"messageId"`
	Type      string `json:"type"`
}

// UpdateOffer moves a message's offer state along the negotiation graph.
func (h *Handlers) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	var req updateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MessageID == "" {
		h.writeDomainError(w, &ValidationError{Field: "messageId", Reason: "is required"})
		return
	}

	target, err := ParseOfferStatus(req.Type)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	m, err := h.engine.UpdateOffer(r.Context(), req.MessageID, target)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	event := broker.NewEvent(broker.EventOfferUpdated, m.ID, m.ConversationID)
	event.SenderUsername = m.SenderUsername
	event.ReceiverUsername = m.ReceiverUsername
	event.Offer = string(m.Offer)
	go h.publisher.PublishDirect(broker.ExchangeChatNotification, broker.RoutingOrderNotification, event,
		"offer on message "+m.ID+" moved to "+string(m.Offer))
	h.hub.Broadcast(m.ConversationID, PushOfferUpdated, m)

	httputil.WriteMessage(w, http.StatusOK, "Message updated", map[string]interface{}{
		"singleMessage": m,
	})
}

type markSingleRequest struct {
	MessageID string `json:"messageId"`
}

// MarkSingleMessage transitions one message to READ.
func (h *Handlers) MarkSingleMessage(w http.ResponseWriter, r *http.Request) {
	var req markSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MessageID == "" {
		h.writeDomainError(w, &ValidationError{Field: "messageId", Reason: "is required"})
		return
	}

	m, err := h.engine.MarkMessageAsRead(r.Context(), req.MessageID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	event := broker.NewEvent(broker.EventMessageRead, m.ID, m.ConversationID)
	event.SenderUsername = m.SenderUsername
	event.ReceiverUsername = m.ReceiverUsername
	event.ReadStatus = string(m.ReadStatus)
	go h.publisher.PublishDirect(broker.ExchangeChatUpdate, broker.RoutingChatReceiverUpdate, event,
		"message "+m.ID+" marked as read")
	h.hub.Broadcast(m.ConversationID, PushMessageRead, m)

	httputil.WriteMessage(w, http.StatusOK, "Message marked as read", map[string]interface{}{
		"singleMessage": m,
	})
}

type markMultipleRequest struct {
	MessageID        string `json:"messageId"`
	SenderUsername   string `json:"senderUsername"`
	ReceiverUsername string `json:"receiverUsername"`
}

// MarkMultipleMessages transitions every unread message in the conversation
// up to and including the boundary message to READ, as one batch.
func (h *Handlers) MarkMultipleMessages(w http.ResponseWriter, r *http.Request) {
	var req markMultipleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MessageID == "" {
		h.writeDomainError(w, &ValidationError{Field: "messageId", Reason: "is required"})
		return
	}
	if req.SenderUsername == "" {
		h.writeDomainError(w, &ValidationError{Field: "senderUsername", Reason: "is required"})
		return
	}
	if req.ReceiverUsername == "" {
		h.writeDomainError(w, &ValidationError{Field: "receiverUsername", Reason: "is required"})
		return
	}

	boundary, count, err := h.engine.MarkConversationAsRead(r.Context(), req.ReceiverUsername, req.SenderUsername, req.MessageID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	event := broker.NewEvent(broker.EventConversationRead, boundary.ID, boundary.ConversationID)
	event.SenderUsername = req.SenderUsername
	event.ReceiverUsername = req.ReceiverUsername
	event.MarkedCount = count
	go h.publisher.PublishDirect(broker.ExchangeChatUpdate, broker.RoutingChatReceiverUpdate, event,
		"conversation "+boundary.ConversationID+" marked as read")
	h.hub.Broadcast(boundary.ConversationID, PushMessagesRead, boundary)

	httputil.WriteMessage(w, http.StatusOK, "Messages marked as read", nil)
}

// Conversation lists a conversation's messages in chronological order.
func (h *Handlers) Conversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sender := vars["senderUsername"]
	receiver := vars["receiverUsername"]

	messages, err := h.engine.Conversation(r.Context(), sender, receiver)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Chat messages", map[string]interface{}{
		"messages": messages,
	})
}

// writeDomainError maps the chat error taxonomy onto HTTP status codes.
// Persistence failures are the only 5xx: the caller must know the transition
// did not take effect.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		httputil.WriteError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, ErrInvalidTransition):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("chat: persistence error: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not complete the request")
	}
}
