//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chat-presence/domain"
	"chat-presence/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// ClientSession is a client's live connection: an EventSink that can be
// force-closed on eviction or supersession.
type ClientSession interface {
	EventSink
	Close() error
}

// IRegistry is the single source of truth for current reachability.
// Heartbeat timestamps live here too so that staleness detection and
// eviction act on the same entry atomically.
type IRegistry interface {
	Register(userID, connID string, session ClientSession, at time.Time) (evicted ClientSession)
	Touch(connID string, at time.Time) bool
	Unregister(connID string) (userID string, ok bool)
	IsReachable(userID string) bool
	ConnectionOf(userID string) (string, bool)
	SessionOf(userID string) (ClientSession, bool)
	Reachable() map[string]ClientSession
	Stale(now time.Time, timeout time.Duration) []string
}

// IOrchestrator is the engine's single entry point, consumed by the
// transport gateway and the heartbeat sweep worker.
type IOrchestrator interface {
	Connect(ctx context.Context, userID string, session ClientSession) (connID string, err error)
	Disconnect(ctx context.Context, connID string)
	Heartbeat(connID string)
	EvictStale(ctx context.Context, olderThan time.Duration) int
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) error
	MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error
	TypingStart(ctx context.Context, cmd domain.TypingStartCommand) error
	TypingStop(ctx context.Context, cmd domain.TypingStopCommand) error
	AppStateChange(ctx context.Context, userID string, state domain.AppState) error
	ConversationOpened(ctx context.Context, cmd domain.ConversationOpenedCommand) error
}

// Store is the durable collaborator contract. Calls are atomic at the
// record level but never composed transactionally across calls; the
// engine treats each call's success or failure independently.
type Store interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	SetUserOnline(ctx context.Context, userID string, online bool) error
	TouchLastSeen(ctx context.Context, userID string) error
	InsertMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error)
	// MarkDelivered advances a message to delivered. The bool reports
	// whether this call performed the transition; a message already at
	// delivered or read is returned unchanged with false.
	MarkDelivered(ctx context.Context, messageID uuid.UUID) (domain.Message, bool, error)
	MarkRead(ctx context.Context, conversationID, readerID string) ([]uuid.UUID, error)
	FindUndeliveredFor(ctx context.Context, userID string) ([]domain.Message, error)
	ConversationParticipants(ctx context.Context, conversationID string) (string, string, error)
	ConversationsOf(ctx context.Context, userID string) ([]domain.Conversation, error)
	LastMessage(ctx context.Context, conversationID string) (*domain.Message, error)
}
