package runtime

import (
	"context"
	"log/slog"

	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
)

// DeliveryTracker drives the per-message delivery state machine
// (sent -> delivered -> read) from registry lookups and Store updates,
// and replays undelivered messages when a recipient reconnects.
//
// The registry is the sole authority for the delivery decision. The
// Store's online flag is informational for disconnected clients and is
// never consulted here.
type DeliveryTracker struct {
	log       *slog.Logger
	registry  contract.IRegistry
	store     contract.Store
	broadcast *PresenceBroadcaster
}

func NewDeliveryTracker(log *slog.Logger, registry contract.IRegistry, store contract.Store, broadcast *PresenceBroadcaster) *DeliveryTracker {
	return &DeliveryTracker{log: log, registry: registry, store: store, broadcast: broadcast}
}

// Send persists a message and resolves its initial delivery state.
// Notifications are emitted only after the Store confirms each write; on
// Store failure the sender gets an explicit failure signal and the
// message keeps its prior state.
func (d *DeliveryTracker) Send(ctx context.Context, cmd domain.SendMessageCommand) error {
	a, b, err := d.store.ConversationParticipants(ctx, cmd.ConversationID)
	if err != nil {
		d.failSend(ctx, cmd, "conversation lookup failed")
		return err
	}
	if a != cmd.SenderID && b != cmd.SenderID {
		return errors.ErrAccessDenied
	}

	msg, err := d.store.InsertMessage(ctx, cmd.ConversationID, cmd.SenderID, cmd.Content)
	if err != nil {
		d.failSend(ctx, cmd, "message could not be persisted")
		return err
	}

	// Reachability is re-checked here, at the moment of the transition,
	// not carried over from any earlier lookup.
	if d.registry.IsReachable(msg.RecipientID) {
		delivered, _, err := d.store.MarkDelivered(ctx, msg.ID)
		if err != nil {
			// Persisted but not marked delivered: the message stays in
			// sent state and replay will pick it up later.
			d.log.Warn("Delivery mark failed, message stays sent", "messageID", msg.ID, "err", err)
			d.notifyUser(ctx, cmd.SenderID, event.MessageNew{Message: msg, DeliveryStatus: msg.State})
			return nil
		}
		d.notifyUser(ctx, delivered.RecipientID, event.MessageNew{Message: delivered, DeliveryStatus: delivered.State})
		d.notifyUser(ctx, cmd.SenderID, event.MessageNew{Message: delivered, DeliveryStatus: delivered.State})
		return nil
	}

	d.notifyUser(ctx, cmd.SenderID, event.MessageNew{Message: msg, DeliveryStatus: msg.State})
	return nil
}

// MarkRead transitions every unread message in the conversation authored
// by someone other than the reader to read, in one batch. If any
// transitioned, the other participant learns which messages were read and
// everyone gets a conversation-level update for unread counters.
func (d *DeliveryTracker) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error {
	a, b, err := d.store.ConversationParticipants(ctx, cmd.ConversationID)
	if err != nil {
		return err
	}
	if a != cmd.UserID && b != cmd.UserID {
		return errors.ErrAccessDenied
	}

	ids, err := d.store.MarkRead(ctx, cmd.ConversationID, cmd.UserID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	other := a
	if other == cmd.UserID {
		other = b
	}
	d.notifyUser(ctx, other, event.MessageRead{
		ConversationID: cmd.ConversationID,
		MessageIDs:     ids,
		ReadBy:         cmd.UserID,
	})
	d.broadcast.BroadcastAll(ctx, event.ConversationRead{
		ConversationID: cmd.ConversationID,
		UserID:         cmd.UserID,
	})
	return nil
}

// Replay resolves the backlog of sent-state messages addressed to a user
// who just reconnected. Each message is marked delivered and, when the
// original sender is still reachable, the sender is told exactly once.
// Failures are isolated per message so one bad record cannot starve the
// rest of the backlog.
func (d *DeliveryTracker) Replay(ctx context.Context, userID string) {
	backlog, err := d.store.FindUndeliveredFor(ctx, userID)
	if err != nil {
		d.log.Error("Replay aborted, backlog unavailable", "userID", userID, "err", err)
		return
	}
	if len(backlog) == 0 {
		return
	}

	d.log.Info("Replaying undelivered messages", "userID", userID, "count", len(backlog))
	for _, msg := range backlog {
		delivered, transitioned, err := d.store.MarkDelivered(ctx, msg.ID)
		if err != nil {
			d.log.Warn("Replay item failed", "messageID", msg.ID, "err", err)
			continue
		}
		if !transitioned {
			// Another path already delivered it; notifying again would
			// break the exactly-once guarantee.
			continue
		}
		d.notifyUser(ctx, delivered.SenderID, event.MessageDelivered{
			MessageID:      delivered.ID,
			ConversationID: delivered.ConversationID,
		})
	}
}

// notifyUser resolves the target session immediately before sending.
// A vanished target is a no-op, not an error.
func (d *DeliveryTracker) notifyUser(ctx context.Context, userID string, e event.Event) {
	session, ok := d.registry.SessionOf(userID)
	if !ok {
		return
	}
	if err := session.Consume(ctx, e); err != nil {
		d.log.Warn("Notification delivery failed", "event", e.Name(), "userID", userID, "err", err)
	}
}

func (d *DeliveryTracker) failSend(ctx context.Context, cmd domain.SendMessageCommand, reason string) {
	d.notifyUser(ctx, cmd.SenderID, event.MessageSendFailed{
		ConversationID: cmd.ConversationID,
		Reason:         reason,
	})
}
