package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
)

// TypingCoordinator owns the ephemeral typing-state map. A typing event
// fans out to every user sharing any conversation with the typer. There
// is no TTL: state is cleared only by an explicit stop or by the
// disconnect path calling Flush.
type TypingCoordinator struct {
	mu       sync.Mutex
	log      *slog.Logger
	registry contract.IRegistry
	store    contract.Store
	states   map[string]domain.TypingState // userID -> state, at most one per user
	now      func() time.Time
}

func NewTypingCoordinator(log *slog.Logger, registry contract.IRegistry, store contract.Store) *TypingCoordinator {
	return &TypingCoordinator{
		log:      log,
		registry: registry,
		store:    store,
		states:   make(map[string]domain.TypingState),
		now:      time.Now,
	}
}

// Start upserts the typing state for a user, replacing any prior entry
// even if it referenced a different conversation, then broadcasts
// isTyping=true to the user's conversation peers.
func (t *TypingCoordinator) Start(ctx context.Context, userID, conversationID string) error {
	if err := t.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	t.mu.Lock()
	t.states[userID] = domain.TypingState{
		UserID:         userID,
		ConversationID: conversationID,
		StartedAt:      t.now(),
	}
	t.mu.Unlock()

	t.fanout(ctx, userID, conversationID, true)
	return nil
}

// Stop removes the typing state and broadcasts isTyping=false.
func (t *TypingCoordinator) Stop(ctx context.Context, userID, conversationID string) error {
	if err := t.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}

	t.mu.Lock()
	delete(t.states, userID)
	t.mu.Unlock()

	t.fanout(ctx, userID, conversationID, false)
	return nil
}

// Flush clears any lingering typing state on disconnect or eviction so
// peers are never left believing a vanished user is still typing. It
// emits at most one stop event, and only if a state actually existed.
func (t *TypingCoordinator) Flush(ctx context.Context, userID string) {
	t.mu.Lock()
	state, ok := t.states[userID]
	if ok {
		delete(t.states, userID)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	t.fanout(ctx, userID, state.ConversationID, false)
}

// IsTyping reports the current typing state of a user.
func (t *TypingCoordinator) IsTyping(userID string) (domain.TypingState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[userID]
	return state, ok
}

func (t *TypingCoordinator) requireParticipant(ctx context.Context, conversationID, userID string) error {
	a, b, err := t.store.ConversationParticipants(ctx, conversationID)
	if err != nil {
		return err
	}
	if a != userID && b != userID {
		return errors.ErrAccessDenied
	}
	return nil
}

// fanout broadcasts a typing transition to every user sharing at least
// one conversation with the typer. Sessions are re-resolved per send and
// failures are isolated per peer.
func (t *TypingCoordinator) fanout(ctx context.Context, userID, conversationID string, isTyping bool) {
	userName := userID
	if user, err := t.store.GetUser(ctx, userID); err == nil {
		userName = user.Name
	}

	conversations, err := t.store.ConversationsOf(ctx, userID)
	if err != nil {
		t.log.Warn("Typing fan-out aborted, conversations unavailable", "userID", userID, "err", err)
		return
	}

	e := event.UserTyping{
		UserID:         userID,
		UserName:       userName,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	}

	notified := make(map[string]struct{}, len(conversations))
	for _, conv := range conversations {
		peer := conv.CounterpartOf(userID)
		if _, done := notified[peer]; done {
			continue
		}
		notified[peer] = struct{}{}

		session, ok := t.registry.SessionOf(peer)
		if !ok {
			continue
		}
		if err := session.Consume(ctx, e); err != nil {
			t.log.Warn("Typing event delivery failed", "peer", peer, "err", err)
		}
	}
}
