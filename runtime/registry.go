// Package runtime contains the presence and delivery engine. It owns the
// ephemeral connection state and coordinates the durable Store without
// holding any business data itself.
package runtime

import (
	"sync"
	"time"

	"chat-presence/contract"
)

// connection is the ephemeral record behind a registered session.
// Destroyed on disconnect, eviction, or supersession; never persisted.
type connection struct {
	id              string
	userID          string
	session         contract.ClientSession
	lastHeartbeatAt time.Time
}

// Registry is the authoritative bidirectional mapping between users and
// their active connection. Every other component treats it as ground
// truth for current reachability; the Store's online flag is only the
// durable mirror for clients that are not connected.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*connection
	byUser map[string]string // userID -> connID
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*connection),
		byUser: make(map[string]string),
	}
}

// Register installs a connection for a user. At most one connection per
// user is live at any instant: an existing connection is removed in both
// directions and its session returned so the caller can force-close it.
func (r *Registry) Register(userID, connID string, session contract.ClientSession, at time.Time) contract.ClientSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted contract.ClientSession
	if oldConnID, ok := r.byUser[userID]; ok {
		if old, ok := r.byConn[oldConnID]; ok {
			evicted = old.session
			delete(r.byConn, oldConnID)
		}
	}

	r.byConn[connID] = &connection{
		id:              connID,
		userID:          userID,
		session:         session,
		lastHeartbeatAt: at,
	}
	r.byUser[userID] = connID
	return evicted
}

// Touch refreshes the heartbeat timestamp of a connection. Unknown
// connection ids are a silent no-op: the connection was already evicted.
func (r *Registry) Touch(connID string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byConn[connID]
	if !ok {
		return false
	}
	conn.lastHeartbeatAt = at
	return true
}

// Unregister removes the mapping in both directions and returns the
// owning user id so callers can mark them offline and flush typing state.
func (r *Registry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)

	// Only clear the reverse mapping if it still points at us; a newer
	// connection may have superseded this one already.
	if current, ok := r.byUser[conn.userID]; ok && current == connID {
		delete(r.byUser, conn.userID)
	}
	return conn.userID, true
}

func (r *Registry) IsReachable(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

func (r *Registry) ConnectionOf(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// SessionOf resolves the live session of a user. Callers must re-resolve
// immediately before every send instead of caching the result.
func (r *Registry) SessionOf(userID string) (contract.ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	conn, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	return conn.session, true
}

// Reachable returns a snapshot of all connected users and their sessions,
// used for global broadcasts.
func (r *Registry) Reachable() map[string]contract.ClientSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make(map[string]contract.ClientSession, len(r.byUser))
	for userID, connID := range r.byUser {
		if conn, ok := r.byConn[connID]; ok {
			sessions[userID] = conn.session
		}
	}
	return sessions
}

// Stale returns the connection ids whose last heartbeat is older than
// timeout. The caller evicts them through the regular disconnect path; a
// connection unregistered in between is simply skipped there.
func (r *Registry) Stale(now time.Time, timeout time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []string
	for connID, conn := range r.byConn {
		if now.Sub(conn.lastHeartbeatAt) > timeout {
			stale = append(stale, connID)
		}
	}
	return stale
}
