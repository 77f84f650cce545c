package models

import "time"

// DeliveryState advances monotonically: sent -> delivered -> read.
type DeliveryState string

const (
	DeliverySent      DeliveryState = "sent"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryRead      DeliveryState = "read"
)

// Rank orders delivery states for monotonicity checks.
func (s DeliveryState) Rank() int {
	switch s {
	case DeliverySent:
		return 0
	case DeliveryDelivered:
		return 1
	case DeliveryRead:
		return 2
	}
	return -1
}

// CanAdvance reports whether transitioning to next would move the state
// forward. Transitions never regress.
func (s DeliveryState) CanAdvance(next DeliveryState) bool {
	return next.Rank() > s.Rank()
}

// MessageStatus tracks per-recipient delivery state. A row exists for
// every (message, recipient) pair where recipient != sender.
type MessageStatus struct {
	MessageID string        `json:"message_id"`
	UserID    string        `json:"user_id"`
	State     DeliveryState `json:"state"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StatusUpdate pairs a transitioned message with its sender so the
// resulting notification can be routed to the sender's personal room.
type StatusUpdate struct {
	MessageID string
	SenderID  string
	CreatedAt time.Time
}
