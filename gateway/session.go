// Package gateway exposes the engine over a persistent WebSocket
// connection: one session per client, a JSON envelope per event, and a
// typed command union decoded by a single dispatcher.
package gateway

import (
	"context"
	"sync"
	"time"

	"chat-presence/domain/event"

	"github.com/gorilla/websocket"
)

// Envelope frames every wire message in both directions.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Session adapts a websocket connection to contract.ClientSession.
// Writes are serialized by a mutex and bounded by a write deadline so a
// stalled client cannot block the engine.
type Session struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func NewSession(conn *websocket.Conn, writeTimeout time.Duration) *Session {
	return &Session{conn: conn, writeTimeout: writeTimeout}
}

func (s *Session) Consume(ctx context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteJSON(Envelope{Event: e.Name(), Payload: e})
}

func (s *Session) Close() error {
	return s.conn.Close()
}
