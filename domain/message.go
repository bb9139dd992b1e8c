// Package domain contains core concepts of the presence engine.
// This file defines Message events and the delivery state machine.
// Messages are immutable except for their delivery lifecycle fields.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryState is the lifecycle stage of a message. Transitions are
// forward-only: sent -> delivered -> read, never regressed.
type DeliveryState string

const (
	StateSent      DeliveryState = "sent"
	StateDelivered DeliveryState = "delivered"
	StateRead      DeliveryState = "read"
)

func (s DeliveryState) rank() int {
	switch s {
	case StateSent:
		return 0
	case StateDelivered:
		return 1
	case StateRead:
		return 2
	default:
		return -1
	}
}

// CanAdvance reports whether a transition from s to target moves the
// state machine strictly forward.
func (s DeliveryState) CanAdvance(target DeliveryState) bool {
	return target.rank() > s.rank()
}

// Message represents a chat message and its delivery lifecycle.
// DeliveredAt is set exactly once, the first time delivery is
// established; ReadAt only by a reader other than the sender.
type Message struct {
	ID             uuid.UUID
	ConversationID string
	SenderID       string
	RecipientID    string
	Content        string
	State          DeliveryState
	CreatedAt      time.Time
	DeliveredAt    *time.Time
	ReadAt         *time.Time
}
