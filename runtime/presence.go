package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/domain/event"
)

// PresenceBroadcaster publishes reachability transitions to every
// connected user and rebuilds a reconnecting user's conversation-list
// snapshot. Presence is broadcast globally rather than scoped to
// conversation partners; simplicity over precision.
type PresenceBroadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
	store    contract.Store
}

func NewPresenceBroadcaster(log *slog.Logger, registry contract.IRegistry, store contract.Store) *PresenceBroadcaster {
	return &PresenceBroadcaster{log: log, registry: registry, store: store}
}

// BroadcastStatus pushes an online/offline transition to all connected
// users, the subject included.
func (b *PresenceBroadcaster) BroadcastStatus(ctx context.Context, userID string, online bool, lastSeen time.Time) {
	b.BroadcastAll(ctx, event.UserStatusChanged{
		UserID:   userID,
		IsOnline: online,
		LastSeen: lastSeen,
	})
}

// BroadcastAll delivers an event to every connected user. Failures are
// isolated per recipient: one dead session must not starve the rest.
func (b *PresenceBroadcaster) BroadcastAll(ctx context.Context, e event.Event) {
	for userID, session := range b.registry.Reachable() {
		if err := session.Consume(ctx, e); err != nil {
			b.log.Warn("Broadcast delivery failed", "event", e.Name(), "userID", userID, "err", err)
		}
	}
}

// SendSnapshot computes the full conversation snapshot for a user and
// delivers it privately. This repairs whatever the client missed while
// disconnected. A conversation whose enrichment fails is skipped, not
// fatal to the snapshot.
func (b *PresenceBroadcaster) SendSnapshot(ctx context.Context, userID string) {
	conversations, err := b.store.ConversationsOf(ctx, userID)
	if err != nil {
		b.log.Error("Snapshot aborted, conversations unavailable", "userID", userID, "err", err)
		return
	}

	summaries := make([]event.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary, err := b.summarize(ctx, conv, userID)
		if err != nil {
			b.log.Warn("Skipping conversation in snapshot", "conversationID", conv.ID, "err", err)
			continue
		}
		summaries = append(summaries, summary)
	}

	// Re-resolve the target right before sending; the user may have
	// vanished while the snapshot was being built.
	session, ok := b.registry.SessionOf(userID)
	if !ok {
		return
	}
	e := event.ConversationsUpdated{UserID: userID, Conversations: summaries}
	if err := session.Consume(ctx, e); err != nil {
		b.log.Warn("Snapshot delivery failed", "userID", userID, "err", err)
	}
}

func (b *PresenceBroadcaster) summarize(ctx context.Context, conv domain.Conversation, userID string) (event.ConversationSummary, error) {
	counterpartID := conv.CounterpartOf(userID)
	counterpart, err := b.store.GetUser(ctx, counterpartID)
	if err != nil {
		return event.ConversationSummary{}, err
	}

	summary := event.ConversationSummary{
		ConversationID:      conv.ID,
		CounterpartID:       counterpartID,
		CounterpartName:     counterpart.Name,
		CounterpartOnline:   b.registry.IsReachable(counterpartID),
		CounterpartLastSeen: counterpart.LastSeen,
	}

	last, err := b.store.LastMessage(ctx, conv.ID)
	if err != nil {
		return event.ConversationSummary{}, err
	}
	if last != nil {
		summary.LastMessage = &event.MessageSummary{
			ID:        last.ID,
			SenderID:  last.SenderID,
			Content:   last.Content,
			State:     last.State,
			CreatedAt: last.CreatedAt,
		}
	}
	return summary, nil
}
