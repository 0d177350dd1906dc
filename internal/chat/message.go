package chat

import (
	"fmt"
	"strings"
	"time"
)

// ReadStatus tracks delivery progress of a message. Transitions are strictly
// forward: SENT -> DELIVERED -> READ.
type ReadStatus string

const (
	ReadStatusSent      ReadStatus = "SENT"
	ReadStatusDelivered ReadStatus = "DELIVERED"
	ReadStatusRead      ReadStatus = "READ"
)

var readStatusRank = map[ReadStatus]int{
	ReadStatusSent:      0,
	ReadStatusDelivered: 1,
	ReadStatusRead:      2,
}

// CanTransitionTo reports whether moving from s to target is a forward
// transition. Equal states are not a transition.
func (s ReadStatus) CanTransitionTo(target ReadStatus) bool {
	from, ok := readStatusRank[s]
	if !ok {
		return false
	}
	to, ok := readStatusRank[target]
	if !ok {
		return false
	}
	return to > from
}

// OfferStatus is the job-offer negotiation sub-state carried by a message,
// independent of its read status.
type OfferStatus string

const (
	OfferNone      OfferStatus = "NONE"
	OfferPending   OfferStatus = "PENDING"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferExtended  OfferStatus = "EXTENDED"
	OfferCancelled OfferStatus = "CANCELLED"
)

// offerTransitions is the fixed negotiation graph:
// NONE -> PENDING -> {ACCEPTED, REJECTED, EXTENDED, CANCELLED};
// EXTENDED -> PENDING reopens negotiation after a counter-offer.
var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferNone:     {OfferPending},
	OfferPending:  {OfferAccepted, OfferRejected, OfferExtended, OfferCancelled},
	OfferExtended: {OfferPending},
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s OfferStatus) CanTransitionTo(target OfferStatus) bool {
	for _, next := range offerTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ParseOfferStatus validates a caller-supplied offer state name.
func ParseOfferStatus(raw string) (OfferStatus, error) {
	switch OfferStatus(strings.ToUpper(raw)) {
	case OfferNone, OfferPending, OfferAccepted, OfferRejected, OfferExtended, OfferCancelled:
		return OfferStatus(strings.ToUpper(raw)), nil
	default:
		return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown offer state %q", raw)}
	}
}

// Message is the persisted chat message document. The store owns it; the
// engine only reads and mutates it through Store operations.
type Message struct {
	ID               string      `json:"id"`
	ConversationID   string      `json:"conversationId"`
	SenderUsername   string      `json:"senderUsername"`
	ReceiverUsername string      `json:"receiverUsername"`
	Body             string      `json:"body"`
	File             string      `json:"file,omitempty"`
	ReadStatus       ReadStatus  `json:"readStatus"`
	Offer            OfferStatus `json:"offer"`
	CreatedAt        time.Time   `json:"createdAt"`
	DeliveredAt      *time.Time  `json:"deliveredAt,omitempty"`
	ReadAt           *time.Time  `json:"readAt,omitempty"`
	OfferUpdatedAt   *time.Time  `json:"offerUpdatedAt,omitempty"`
}

// ConversationID derives the canonical conversation identity for an unordered
// pair of usernames. The pair is normalized lexicographically so both
// participants resolve to the same id regardless of argument order.
func ConversationID(a, b string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
