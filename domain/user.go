// Package domain contains core concepts of the presence engine.
// This file defines User entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// User is the durable identity of a chat participant. The Online flag is
// the Store's eventually-consistent mirror of reachability; the registry
// holds the authoritative bit for currently-connected users.
type User struct {
	ID       string
	Name     string
	Online   bool
	LastSeen time.Time
}
