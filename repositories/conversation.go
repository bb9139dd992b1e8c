package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"chat-presence/domain"
	"chat-presence/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// CreateConversation provisions a two-party conversation, enforcing one
// conversation per unordered participant pair. Like CreateUser this is a
// seeding operation, not part of the engine's Store contract.
func (s *Store) CreateConversation(ctx context.Context, participantA, participantB string) (domain.Conversation, error) {
	conv := domain.Conversation{
		ID:           uuid.NewString(),
		ParticipantA: participantA,
		ParticipantB: participantB,
		CreatedAt:    s.now(),
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		pair := pairKey(participantA, participantB)
		if _, err := txn.Get(pair); err == nil {
			return errors.ErrConversationExists
		}
		if err := txn.Set(pair, []byte(conv.ID)); err != nil {
			return err
		}
		if err := txn.Set(convKey(conv.ID), data); err != nil {
			return err
		}
		if err := txn.Set(convIdxKey(participantA, conv.ID), []byte(conv.ID)); err != nil {
			return err
		}
		return txn.Set(convIdxKey(participantB, conv.ID), []byte(conv.ID))
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, convKey(conversationID), &conv)
	})
	if err != nil {
		return domain.Conversation{}, mapNotFound(err, errors.ErrConversationNotFound)
	}
	return conv, nil
}

func (s *Store) ConversationParticipants(ctx context.Context, conversationID string) (string, string, error) {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return "", "", err
	}
	return conv.ParticipantA, conv.ParticipantB, nil
}

// ConversationsOf lists every conversation a user participates in via a
// single prefix scan over the membership index.
func (s *Store) ConversationsOf(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("convidx:%s:", userID))
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.GetConversation(ctx, id)
		if err != nil {
			// Dangling index entries are skipped, not fatal.
			s.log.Warn("Conversation index entry without record", "conversationID", id, "err", err)
			continue
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}
