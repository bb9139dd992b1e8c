package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recSession records every event it consumes, standing in for a live
// client connection.
type recSession struct {
	mu         sync.Mutex
	events     []event.Event
	consumeErr error
	closed     bool
}

func (s *recSession) Consume(ctx context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumeErr != nil {
		return s.consumeErr
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recSession) named(name string) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

// memStore is an in-memory Store with per-call failure toggles, used to
// exercise the engine without BadgerDB.
type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	convs map[string]domain.Conversation
	msgs  map[uuid.UUID]*domain.Message
	order []uuid.UUID
	seq   int64

	insertErr        error
	markDeliveredErr error
	markReadErr      error
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*domain.User),
		convs: make(map[string]domain.Conversation),
		msgs:  make(map[uuid.UUID]*domain.Message),
	}
}

func (s *memStore) addUser(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &domain.User{ID: id, Name: name}
}

func (s *memStore) addConversation(id, a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[id] = domain.Conversation{ID: id, ParticipantA: a, ParticipantB: b}
}

func (s *memStore) tick() time.Time {
	s.seq++
	return time.Unix(0, s.seq)
}

func (s *memStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, errors.ErrUserNotFound
	}
	return *user, nil
}

func (s *memStore) SetUserOnline(ctx context.Context, userID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return errors.ErrUserNotFound
	}
	user.Online = online
	return nil
}

func (s *memStore) TouchLastSeen(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return errors.ErrUserNotFound
	}
	user.LastSeen = s.tick()
	return nil
}

func (s *memStore) InsertMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return domain.Message{}, s.insertErr
	}
	conv, ok := s.convs[conversationID]
	if !ok {
		return domain.Message{}, errors.ErrConversationNotFound
	}
	recipient := conv.CounterpartOf(senderID)
	if recipient == "" {
		return domain.Message{}, errors.ErrAccessDenied
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipient,
		Content:        content,
		State:          domain.StateSent,
		CreatedAt:      s.tick(),
	}
	s.msgs[msg.ID] = msg
	s.order = append(s.order, msg.ID)
	return *msg, nil
}

func (s *memStore) MarkDelivered(ctx context.Context, messageID uuid.UUID) (domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markDeliveredErr != nil {
		return domain.Message{}, false, s.markDeliveredErr
	}
	msg, ok := s.msgs[messageID]
	if !ok {
		return domain.Message{}, false, errors.ErrMessageNotFound
	}
	if msg.State != domain.StateSent {
		return *msg, false, nil
	}
	at := s.tick()
	msg.State = domain.StateDelivered
	msg.DeliveredAt = &at
	return *msg, true, nil
}

func (s *memStore) MarkRead(ctx context.Context, conversationID, readerID string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markReadErr != nil {
		return nil, s.markReadErr
	}
	at := s.tick()
	var ids []uuid.UUID
	for _, id := range s.order {
		msg := s.msgs[id]
		if msg.ConversationID != conversationID || msg.SenderID == readerID || msg.State == domain.StateRead {
			continue
		}
		if msg.DeliveredAt == nil {
			msg.DeliveredAt = &at
		}
		msg.State = domain.StateRead
		msg.ReadAt = &at
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memStore) FindUndeliveredFor(ctx context.Context, userID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var backlog []domain.Message
	for _, id := range s.order {
		msg := s.msgs[id]
		if msg.RecipientID == userID && msg.State == domain.StateSent {
			backlog = append(backlog, *msg)
		}
	}
	return backlog, nil
}

func (s *memStore) ConversationParticipants(ctx context.Context, conversationID string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return "", "", errors.ErrConversationNotFound
	}
	return conv.ParticipantA, conv.ParticipantB, nil
}

func (s *memStore) ConversationsOf(ctx context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Conversation
	for _, conv := range s.convs {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (s *memStore) LastMessage(ctx context.Context, conversationID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		msg := s.msgs[s.order[i]]
		if msg.ConversationID == conversationID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) stateOf(id uuid.UUID) domain.DeliveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.msgs[id]; ok {
		return msg.State
	}
	return domain.DeliveryState(fmt.Sprintf("missing %s", id))
}
