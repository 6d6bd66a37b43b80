package domain

import "time"

const MaxMessageLen = 2000

// Visibility controls who may see a message. Filtering happens server-side;
// the client never receives messages it is not authorized to see.
type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityHost   Visibility = "host"
	VisibilitySubset Visibility = "subset"
)

// DeliveryState tags a message's position in the optimistic-send lifecycle.
type DeliveryState int

const (
	DeliveryPending DeliveryState = iota
	DeliveryConfirmed
	DeliveryFailed
)

func (d DeliveryState) String() string {
	switch d {
	case DeliveryPending:
		return "pending"
	case DeliveryConfirmed:
		return "confirmed"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is a chat entry. ID is the server id once confirmed; TempID is the
// client-generated correlation id that matches a pending entry to its
// confirmed counterpart. Never mutated except for the id/delivery transition.
type Message struct {
	ID         string          `json:"id"`
	TempID     string          `json:"temp_id,omitempty"`
	SenderID   ParticipantID   `json:"sender_id"`
	SenderName string          `json:"sender_name"`
	Body       string          `json:"body"`
	SentAt     time.Time       `json:"sent_at"`
	Visibility Visibility      `json:"visibility"`
	Recipients []ParticipantID `json:"recipients,omitempty"`
	Delivery   DeliveryState   `json:"-"`
}

// Before reports whether m sorts ahead of other in the canonical
// (sentAt, id) display order.
func (m Message) Before(other Message) bool {
	if !m.SentAt.Equal(other.SentAt) {
		return m.SentAt.Before(other.SentAt)
	}
	return m.ID < other.ID
}
