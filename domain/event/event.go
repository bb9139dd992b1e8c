// Package event defines the outbound events pushed to connected clients.
// Each type carries its wire event name so transports can frame an
// envelope without a parallel name table.
package event

import (
	"time"

	"chat-presence/domain"

	"github.com/google/uuid"
)

type Event interface {
	Name() string
}

type Authenticated struct {
	UserID string `json:"userId"`
}

func (Authenticated) Name() string { return "authenticated" }

type AuthenticationError struct {
	Reason string `json:"reason"`
}

func (AuthenticationError) Name() string { return "authentication_error" }

// UserStatusChanged is broadcast to every connected user on any
// reachability transition.
type UserStatusChanged struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

func (UserStatusChanged) Name() string { return "user_status_change" }

// MessageSummary is the best-known last message of a conversation,
// embedded in the reconnect snapshot.
type MessageSummary struct {
	ID        uuid.UUID            `json:"id"`
	SenderID  string               `json:"senderId"`
	Content   string               `json:"content"`
	State     domain.DeliveryState `json:"deliveryStatus"`
	CreatedAt time.Time            `json:"createdAt"`
}

type ConversationSummary struct {
	ConversationID      string          `json:"conversationId"`
	CounterpartID       string          `json:"counterpartId"`
	CounterpartName     string          `json:"counterpartName"`
	CounterpartOnline   bool            `json:"counterpartOnline"`
	CounterpartLastSeen time.Time       `json:"counterpartLastSeen"`
	LastMessage         *MessageSummary `json:"lastMessage,omitempty"`
}

// ConversationsUpdated repairs a reconnecting user's conversation-list
// view; it is delivered to that user only.
type ConversationsUpdated struct {
	UserID        string                `json:"userId"`
	Conversations []ConversationSummary `json:"conversations"`
}

func (ConversationsUpdated) Name() string { return "conversations_updated" }

type MessageNew struct {
	Message        domain.Message       `json:"message"`
	DeliveryStatus domain.DeliveryState `json:"deliveryStatus"`
}

func (MessageNew) Name() string { return "message:new" }

// MessageDelivered tells the original sender that a previously-sent
// message reached its recipient via replay.
type MessageDelivered struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID string    `json:"conversationId"`
}

func (MessageDelivered) Name() string { return "message:delivered" }

type MessageRead struct {
	ConversationID string      `json:"conversationId"`
	MessageIDs     []uuid.UUID `json:"messageIds"`
	ReadBy         string      `json:"readBy"`
}

func (MessageRead) Name() string { return "message:read" }

// ConversationRead is the conversation-level companion of MessageRead,
// broadcast to all parties so list views can clear unread counts.
type ConversationRead struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (ConversationRead) Name() string { return "conversation_read" }

type UserTyping struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

func (UserTyping) Name() string { return "user_typing_status" }

type ConversationOpened struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (ConversationOpened) Name() string { return "conversation_opened" }

// MessageSendFailed is the explicit failure signal returned to the
// sender when persistence fails; the client may retry.
type MessageSendFailed struct {
	ConversationID string `json:"conversationId"`
	Reason         string `json:"reason"`
}

func (MessageSendFailed) Name() string { return "message:send_failed" }
