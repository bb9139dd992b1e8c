package runtime

import (
	"context"
	"testing"
	"time"

	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"

	"github.com/stretchr/testify/require"
)

func newDeliveryFixture() (*DeliveryTracker, *Registry, *memStore) {
	registry := NewRegistry()
	store := newMemStore()
	presence := NewPresenceBroadcaster(testLogger(), registry, store)
	tracker := NewDeliveryTracker(testLogger(), registry, store, presence)
	return tracker, registry, store
}

func TestDeliveryTracker_Send_Recipient_Offline(t *testing.T) {
	req := require.New(t)
	tracker, registry, store := newDeliveryFixture()
	ctx := context.Background()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addConversation("10", "1", "2")

	// Given only the sender is connected
	sender := &recSession{}
	registry.Register("1", "conn-a", sender, time.Unix(0, 0))

	// When the sender posts a message
	err := tracker.Send(ctx, domain.SendMessageCommand{ConversationID: "10", SenderID: "1", Content: "hi"})
	req.NoError(err)

	// Then the sender sees the message in sent state
	news := sender.named("message:new")
	req.Len(news, 1)
	got := news[0].(event.MessageNew)
	req.Equal(domain.StateSent, got.DeliveryStatus)
	req.Equal("hi", got.Message.Content)

	// And the message sits in the recipient's undelivered backlog
	backlog, err := store.FindUndeliveredFor(ctx, "2")
	req.NoError(err)
	req.Len(backlog, 1)
}

func TestDeliveryTracker_Send_Recipient_Online(t *testing.T) {
	req := require.New(t)
	tracker, registry, store := newDeliveryFixture()
	ctx := context.Background()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addConversation("10", "1", "2")

	sender := &recSession{}
	recipient := &recSession{}
	registry.Register("1", "conn-a", sender, time.Unix(0, 0))
	registry.Register("2", "conn-b", recipient, time.Unix(0, 0))

	// When the sender posts a message
	err := tracker.Send(ctx, domain.SendMessageCommand{ConversationID: "10", SenderID: "1", Content: "hi"})
	req.NoError(err)

	// Then both parties see it delivered, exactly once each
	senderNews := sender.named("message:new")
	recipientNews := recipient.named("message:new")
	req.Len(senderNews, 1)
	req.Len(recipientNews, 1)
	req.Equal(domain.StateDelivered, senderNews[0].(event.MessageNew).DeliveryStatus)
	req.Equal(domain.StateDelivered, recipientNews[0].(event.MessageNew).DeliveryStatus)

	// And DeliveredAt is stamped
	msg := recipientNews[0].(event.MessageNew).Message
	req.NotNil(msg.DeliveredAt)
	req.Equal(domain.StateDelivered, store.stateOf(msg.ID))

	// And no replay is needed afterwards
	backlog, err := store.FindUndeliveredFor(ctx, "2")
	req.NoError(err)
	req.Empty(backlog)
}

func TestDeliveryTracker_Send_Rejects_Non_Participant(t *testing.T) {
	req := require.New(t)
	tracker, registry, store := newDeliveryFixture()
	ctx := context.Background()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addUser("3", "mallory")
	store.addConversation("10", "1", "2")

	intruder := &recSession{}
	registry.Register("3", "conn-c", intruder, time.Unix(0, 0))

	// When a non-participant tries to post
	err := tracker.Send(ctx, domain.SendMessageCommand{ConversationID: "10", SenderID: "3", Content: "hi"})

	// Then the command is rejected before any mutation
	req.ErrorIs(err, errors.ErrAccessDenied)
	backlog, _ := store.FindUndeliveredFor(ctx, "1")
	req.Empty(backlog)
	backlog, _ = store.FindUndeliveredFor(ctx, "2")
	req.Empty(backlog)
}

func TestDeliveryTracker_Send_Store_Failure_Signals_Sender(t *testing.T) {
	req := require.New(t)
	tracker, registry, store := newDeliveryFixture()
	ctx := context.Background()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addConversation("10", "1", "2")
	store.insertErr = errors.ErrMessageNotFound // any store error will do

	sender := &recSession{}
	registry.Register("1", "conn-a", sender, time.Unix(0, 0))

	// When persistence fails
	err := tracker.Send(ctx, domain.SendMessageCommand{ConversationID: "10", SenderID: "1", Content: "hi"})

	// Then the sender gets an explicit, retryable failure signal
	req.Error(err)
	req.Len(sender.named("message:send_failed"), 1)
	req.Empty(sender.named("message:new"))
}

func TestDeliveryTracker_Send_Delivery_Mark_Failure_Keeps_Sent_State(t *testing.T) {
	req := require.New(t)
	tracker, registry, store := newDeliveryFixture()
	ctx := context.Background()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addConversation("10", "1", "2")
	store.markDeliveredErr = errors.ErrMessageNotFound

	sender := &recSession{}
	recipient := &recSession{}
	registry.Register("1", "conn-a", sender, time.Unix(0, 0))
	registry.Register("2", "conn-b", recipient, time.Unix(0, 0))

	// When marking delivered fails after a successful insert
	err := tracker.Send(ctx, domain.SendMessageCommand{ConversationID: "10", SenderID: "1", Content: "hi"})
	req.NoError(err)

	// Then the sender still learns about the message, in its prior state
	news := sender.named("message:new")
	req.Len(news, 1)
	req.Equal(domain.StateSent, news[0].(event.MessageNew).DeliveryStatus)

	// And the backlog keeps it for a later replay
	backlog, _ := store.FindUndeliveredFor(ctx, "2")
	req.Len(backlog, 1)
}

func TestDeliveryTracker_MarkRead_Batch(t *testing.T) {
	req := require.New(t)
	tracker, registry, store := newDeliveryFixture()
	ctx := context.Background()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addConversation("10", "1", "2")

	alice := &recSession{}
	bob := &recSession{}
	registry.Register("1", "conn-a", alice, time.Unix(0, 0))
	registry.Register("2", "conn-b", bob, time.Unix(0, 0))

	// Given three delivered messages from alice to bob
	for i := 0; i < 3; i++ {
		err := tracker.Send(ctx, domain.SendMessageCommand{ConversationID: "10", SenderID: "1", Content: "hi"})
		req.NoError(err)
	}

	// When bob marks the conversation read
	err := tracker.MarkRead(ctx, domain.MarkReadCommand{ConversationID: "10", UserID: "2"})
	req.NoError(err)

	// Then alice gets one batched read receipt with all three ids
	reads := alice.named("message:read")
	req.Len(reads, 1)
	receipt := reads[0].(event.MessageRead)
	req.Len(receipt.MessageIDs, 3)
	req.Equal("2", receipt.ReadBy)
	req.Equal("10", receipt.ConversationID)
	for _, id := range receipt.MessageIDs {
		req.Equal(domain.StateRead, store.stateOf(id))
	}

	// And everyone gets the conversation-level update
	req.Len(alice.named("conversation_read"), 1)
	req.Len(bob.named("conversation_read"), 1)

	// And a second read pass is silent
	err = tracker.MarkRead(ctx, domain.MarkReadCommand{ConversationID: "10", UserID: "2"})
	req.NoError(err)
	req.Len(alice.named("message:read"), 1)
}

func TestDeliveryTracker_MarkRead_Rejects_Non_Participant(t *testing.T) {
	req := require.New(t)
	tracker, _, store := newDeliveryFixture()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addConversation("10", "1", "2")

	err := tracker.MarkRead(context.Background(), domain.MarkReadCommand{ConversationID: "10", UserID: "3"})
	req.ErrorIs(err, errors.ErrAccessDenied)
}

func TestDeliveryTracker_Replay_Completeness(t *testing.T) {
	req := require.New(t)
	tracker, registry, store := newDeliveryFixture()
	ctx := context.Background()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addConversation("10", "1", "2")

	alice := &recSession{}
	registry.Register("1", "conn-a", alice, time.Unix(0, 0))

	// Given three messages sent while bob was unreachable
	for i := 0; i < 3; i++ {
		err := tracker.Send(ctx, domain.SendMessageCommand{ConversationID: "10", SenderID: "1", Content: "hi"})
		req.NoError(err)
	}

	// When bob's replay pass runs after reconnecting
	bob := &recSession{}
	registry.Register("2", "conn-b", bob, time.Unix(0, 0))
	tracker.Replay(ctx, "2")

	// Then every message is delivered and alice was told exactly once per
	// message
	backlog, _ := store.FindUndeliveredFor(ctx, "2")
	req.Empty(backlog)
	req.Len(alice.named("message:delivered"), 3)

	// And a second replay emits nothing more
	tracker.Replay(ctx, "2")
	req.Len(alice.named("message:delivered"), 3)
}

func TestDeliveryTracker_Replay_Skips_Unreachable_Sender(t *testing.T) {
	req := require.New(t)
	tracker, registry, store := newDeliveryFixture()
	ctx := context.Background()

	store.addUser("1", "alice")
	store.addUser("2", "bob")
	store.addConversation("10", "1", "2")

	// Given a message sent, then the sender disconnects
	alice := &recSession{}
	registry.Register("1", "conn-a", alice, time.Unix(0, 0))
	err := tracker.Send(ctx, domain.SendMessageCommand{ConversationID: "10", SenderID: "1", Content: "hi"})
	req.NoError(err)
	registry.Unregister("conn-a")

	// When the recipient's replay runs
	tracker.Replay(ctx, "2")

	// Then the message still becomes delivered; the notification is
	// simply dropped because the sender vanished
	backlog, _ := store.FindUndeliveredFor(ctx, "2")
	req.Empty(backlog)
	req.Empty(alice.named("message:delivered"))
}
