package domain

import "time"

// TypingState is an ephemeral, never-persisted signal that a user is
// composing a message. A user has at most one TypingState at a time: a
// new typing event replaces the prior one, even for another conversation.
type TypingState struct {
	UserID         string
	ConversationID string
	StartedAt      time.Time
}
