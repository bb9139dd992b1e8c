package domain

import (
	"strings"
	"time"
)

// Conversation is a two-party thread. The participant pair is unordered
// and unique: there is at most one conversation per pair of users.
type Conversation struct {
	ID           string
	ParticipantA string
	ParticipantB string
	CreatedAt    time.Time
}

func (c Conversation) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// CounterpartOf returns the other participant of the conversation.
// The empty string is returned if userID is not a participant.
func (c Conversation) CounterpartOf(userID string) string {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	default:
		return ""
	}
}

// PairKey normalizes an unordered participant pair into a stable key,
// used to enforce pair uniqueness at the storage layer.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}
