package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"

	"github.com/google/uuid"
)

// Orchestrator is the engine's single entry point. Inbound connection
// events flow through it into the registry, which fans out to the
// presence broadcaster and triggers the delivery replay pass; message
// events flow into the delivery tracker. Voluntary disconnects and
// heartbeat evictions converge on the one Disconnect path.
type Orchestrator struct {
	log      *slog.Logger
	registry contract.IRegistry
	store    contract.Store
	presence *PresenceBroadcaster
	delivery *DeliveryTracker
	typing   *TypingCoordinator
	now      func() time.Time
}

func NewOrchestrator(
	log *slog.Logger,
	registry contract.IRegistry,
	store contract.Store,
	presence *PresenceBroadcaster,
	delivery *DeliveryTracker,
	typing *TypingCoordinator,
) *Orchestrator {
	return &Orchestrator{
		log:      log,
		registry: registry,
		store:    store,
		presence: presence,
		delivery: delivery,
		typing:   typing,
		now:      time.Now,
	}
}

// Connect registers an authenticated session for a user, superseding any
// previous connection, then broadcasts presence, replays the undelivered
// backlog, and repairs the user's conversation-list view.
func (o *Orchestrator) Connect(ctx context.Context, userID string, session contract.ClientSession) (string, error) {
	connID := uuid.NewString()

	if evicted := o.registry.Register(userID, connID, session, o.now()); evicted != nil {
		o.log.Info("Superseding previous connection", "userID", userID)
		if err := evicted.Close(); err != nil {
			o.log.Debug("Closing superseded session failed", "userID", userID, "err", err)
		}
	}

	// The durable mirror is best-effort; registry state already makes the
	// user reachable even if this write lags.
	if err := o.store.SetUserOnline(ctx, userID, true); err != nil {
		o.log.Warn("Online flag update failed", "userID", userID, "err", err)
	}
	if err := o.store.TouchLastSeen(ctx, userID); err != nil {
		o.log.Warn("Last-seen update failed", "userID", userID, "err", err)
	}

	o.presence.BroadcastStatus(ctx, userID, true, o.now())
	o.delivery.Replay(ctx, userID)
	o.presence.SendSnapshot(ctx, userID)

	o.log.Info("User connected", "userID", userID, "connID", connID)
	return connID, nil
}

// Disconnect is the single eviction path shared by voluntary disconnects
// and heartbeat timeouts. Unknown connection ids are a silent no-op: the
// connection was already evicted by a concurrent path.
func (o *Orchestrator) Disconnect(ctx context.Context, connID string) {
	userID, ok := o.registry.Unregister(connID)
	if !ok {
		return
	}

	o.typing.Flush(ctx, userID)

	if err := o.store.SetUserOnline(ctx, userID, false); err != nil {
		o.log.Warn("Offline flag update failed", "userID", userID, "err", err)
	}
	if err := o.store.TouchLastSeen(ctx, userID); err != nil {
		o.log.Warn("Last-seen update failed", "userID", userID, "err", err)
	}

	o.presence.BroadcastStatus(ctx, userID, false, o.now())
	o.log.Info("User disconnected", "userID", userID, "connID", connID)
}

// Heartbeat refreshes a connection's liveness timestamp. Heartbeats for
// already-evicted connections are ignored.
func (o *Orchestrator) Heartbeat(connID string) {
	o.registry.Touch(connID, o.now())
}

// EvictStale disconnects every connection whose heartbeat is older than
// olderThan, reusing the regular disconnect path. Returns the number of
// evicted connections.
func (o *Orchestrator) EvictStale(ctx context.Context, olderThan time.Duration) int {
	stale := o.registry.Stale(o.now(), olderThan)
	for _, connID := range stale {
		o.log.Info("Evicting stale connection", "connID", connID)
		o.Disconnect(ctx, connID)
	}
	return len(stale)
}

func (o *Orchestrator) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) error {
	return o.delivery.Send(ctx, cmd)
}

func (o *Orchestrator) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error {
	return o.delivery.MarkRead(ctx, cmd)
}

func (o *Orchestrator) TypingStart(ctx context.Context, cmd domain.TypingStartCommand) error {
	return o.typing.Start(ctx, cmd.UserID, cmd.ConversationID)
}

func (o *Orchestrator) TypingStop(ctx context.Context, cmd domain.TypingStopCommand) error {
	return o.typing.Stop(ctx, cmd.UserID, cmd.ConversationID)
}

// AppStateChange forces an online/offline transition without touching the
// registry mapping; the connection stays registered and usable.
func (o *Orchestrator) AppStateChange(ctx context.Context, userID string, state domain.AppState) error {
	online := state == domain.AppStateActive

	if err := o.store.SetUserOnline(ctx, userID, online); err != nil {
		return err
	}
	if err := o.store.TouchLastSeen(ctx, userID); err != nil {
		o.log.Warn("Last-seen update failed", "userID", userID, "err", err)
	}

	o.presence.BroadcastStatus(ctx, userID, online, o.now())
	return nil
}

// ConversationOpened re-broadcasts an informational open notice so other
// clients of the conversation can clear unread badges.
func (o *Orchestrator) ConversationOpened(ctx context.Context, cmd domain.ConversationOpenedCommand) error {
	a, b, err := o.store.ConversationParticipants(ctx, cmd.ConversationID)
	if err != nil {
		return err
	}
	if a != cmd.UserID && b != cmd.UserID {
		return errors.ErrAccessDenied
	}

	o.presence.BroadcastAll(ctx, event.ConversationOpened{
		ConversationID: cmd.ConversationID,
		UserID:         cmd.UserID,
	})
	return nil
}
