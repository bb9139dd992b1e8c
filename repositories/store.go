// Package repositories implements the durable Store contract on top of
// BadgerDB. Records are JSON-encoded and addressed through key prefixes;
// message keys embed a zero-padded nanosecond timestamp so prefix scans
// come back in chronological order.
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"chat-presence/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type Store struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewStore(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log, now: time.Now}
}

func userKey(userID string) []byte {
	return []byte("user:" + userID)
}

func convKey(conversationID string) []byte {
	return []byte("conv:" + conversationID)
}

// convIdxKey indexes conversation membership per user so ConversationsOf
// is a single prefix scan.
func convIdxKey(userID, conversationID string) []byte {
	return []byte(fmt.Sprintf("convidx:%s:%s", userID, conversationID))
}

// pairKey enforces pair uniqueness: the unordered participant pair maps
// to at most one conversation id.
func pairKey(a, b string) []byte {
	return []byte("pair:" + domain.PairKey(a, b))
}

// msgKey is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding.
//  2. Prevent data loss by using the UUID as a collision disconnector if
//     two messages arrive at the same nanosecond.
func msgKey(conversationID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, at.UnixNano(), id))
}

func msgIdxKey(id uuid.UUID) []byte {
	return []byte("msgidx:" + id.String())
}

// undeliveredKey indexes sent-state messages per recipient so the replay
// pass on reconnect is a single prefix scan. Entries are removed the
// moment a message leaves the sent state.
func undeliveredKey(recipientID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("undelivered:%s:%019d:%s", recipientID, at.UnixNano(), id))
}
