package chat

import "testing"

func TestReadStatus_ForwardOnly(t *testing.T) {
	cases := []struct {
		from, to ReadStatus
		want     bool
	}{
		{ReadStatusSent, ReadStatusDelivered, true},
		{ReadStatusSent, ReadStatusRead, true},
		{ReadStatusDelivered, ReadStatusRead, true},
		{ReadStatusRead, ReadStatusSent, false},
		{ReadStatusRead, ReadStatusDelivered, false},
		{ReadStatusDelivered, ReadStatusSent, false},
		{ReadStatusRead, ReadStatusRead, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestOfferStatus_TransitionGraph(t *testing.T) {
	cases := []struct {
		from, to OfferStatus
		want     bool
	}{
		{OfferNone, OfferPending, true},
		{OfferPending, OfferAccepted, true},
		{OfferPending, OfferRejected, true},
		{OfferPending, OfferExtended, true},
		{OfferPending, OfferCancelled, true},
		{OfferExtended, OfferPending, true},

		{OfferNone, OfferAccepted, false},
		{OfferAccepted, OfferAccepted, false},
		{OfferAccepted, OfferPending, false},
		{OfferRejected, OfferPending, false},
		{OfferCancelled, OfferPending, false},
		{OfferExtended, OfferAccepted, false},
		{OfferPending, OfferNone, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestParseOfferStatus(t *testing.T) {
	if s, err := ParseOfferStatus("accepted"); err != nil || s != OfferAccepted {
		t.Errorf("expected ACCEPTED, got %s (%v)", s, err)
	}
	if _, err := ParseOfferStatus("bogus"); err == nil {
		t.Error("expected error for unknown offer state")
	}
}

func TestConversationID_OrderInsensitive(t *testing.T) {
	if a, b := ConversationID("alice", "bob"), ConversationID("bob", "alice"); a != b {
		t.Errorf("expected identical ids, got %s and %s", a, b)
	}
}

func TestConversationID_Normalizes(t *testing.T) {
	if a, b := ConversationID(" Alice ", "BOB"), ConversationID("alice", "bob"); a != b {
		t.Errorf("expected case/space-insensitive ids, got %s and %s", a, b)
	}
}
