package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"chat-presence/domain"
	"chat-presence/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// InsertMessage persists a message in sent state and indexes it both by
// id and in the recipient's undelivered backlog. The recipient is the
// conversation's other participant, resolved at insert time.
func (s *Store) InsertMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error) {
	if content == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}

	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	recipientID := conv.CounterpartOf(senderID)
	if recipientID == "" {
		return domain.Message{}, errors.ErrAccessDenied
	}

	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		State:          domain.StateSent,
		CreatedAt:      s.now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal failed: %w", err)
	}

	primary := msgKey(conversationID, msg.CreatedAt, msg.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, data); err != nil {
			return err
		}
		if err := txn.Set(msgIdxKey(msg.ID), primary); err != nil {
			return err
		}
		return txn.Set(undeliveredKey(recipientID, msg.CreatedAt, msg.ID), primary)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// MarkDelivered advances a message from sent to delivered and stamps
// DeliveredAt. The transition happens at most once: a message already
// past sent is returned unchanged with transitioned=false, so callers
// can keep delivery notifications exactly-once.
func (s *Store) MarkDelivered(ctx context.Context, messageID uuid.UUID) (domain.Message, bool, error) {
	var msg domain.Message
	transitioned := false

	err := s.db.Update(func(txn *badger.Txn) error {
		primary, err := s.primaryKeyOf(txn, messageID)
		if err != nil {
			return err
		}
		if err := getJSON(txn, primary, &msg); err != nil {
			return err
		}
		if msg.State != domain.StateSent {
			return nil
		}

		msg.State = domain.StateDelivered
		msg.DeliveredAt = lo.ToPtr(s.now())
		transitioned = true

		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		if err := txn.Set(primary, data); err != nil {
			return err
		}
		return txn.Delete(undeliveredKey(msg.RecipientID, msg.CreatedAt, msg.ID))
	})
	if err != nil {
		return domain.Message{}, false, mapNotFound(err, errors.ErrMessageNotFound)
	}
	return msg, transitioned, nil
}

// MarkRead transitions every message in the conversation authored by
// someone other than the reader and still short of read, in one batch.
// A message read straight from sent state gets its DeliveredAt stamped
// with the same instant, keeping the exactly-once DeliveredAt invariant.
func (s *Store) MarkRead(ctx context.Context, conversationID, readerID string) ([]uuid.UUID, error) {
	at := s.now()
	var read []domain.Message

	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))
		var pending []domain.Message

		// Collect first, write after the iterator is closed.
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				it.Close()
				return err
			}
			if msg.SenderID == readerID || msg.State == domain.StateRead {
				continue
			}
			pending = append(pending, msg)
		}
		it.Close()

		for _, msg := range pending {
			wasSent := msg.State == domain.StateSent
			if msg.DeliveredAt == nil {
				msg.DeliveredAt = lo.ToPtr(at)
			}
			msg.State = domain.StateRead
			msg.ReadAt = lo.ToPtr(at)

			data, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("marshal failed: %w", err)
			}
			if err := txn.Set(msgKey(conversationID, msg.CreatedAt, msg.ID), data); err != nil {
				return err
			}
			if wasSent {
				if err := txn.Delete(undeliveredKey(msg.RecipientID, msg.CreatedAt, msg.ID)); err != nil {
					return err
				}
			}
			read = append(read, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(read, func(msg domain.Message, _ int) uuid.UUID {
		return msg.ID
	}), nil
}

// FindUndeliveredFor returns the sent-state backlog addressed to a user,
// oldest first, via a prefix scan over the undelivered index.
func (s *Store) FindUndeliveredFor(ctx context.Context, userID string) ([]domain.Message, error) {
	var backlog []domain.Message

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("undelivered:%s:", userID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var primary []byte
			err := it.Item().Value(func(val []byte) error {
				primary = append([]byte(nil), val...)
				return nil
			})
			if err != nil {
				return err
			}

			var msg domain.Message
			if err := getJSON(txn, primary, &msg); err != nil {
				s.log.Warn("Undelivered index entry without record", "key", string(primary), "err", err)
				continue
			}
			if msg.State != domain.StateSent {
				continue
			}
			backlog = append(backlog, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return backlog, nil
}

// LastMessage returns the newest message of a conversation, or nil when
// the conversation has none. Thanks to the padded timestamp in the key a
// reverse seek lands on the newest entry directly.
func (s *Store) LastMessage(ctx context.Context, conversationID string) (*domain.Message, error) {
	var msg *domain.Message

	err := s.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversationID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible timestamp, then step back.
		seekKey := append(prefix, []byte("9999999999999999999")...)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		var found domain.Message
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &found)
		})
		if err != nil {
			return err
		}
		msg = &found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) primaryKeyOf(txn *badger.Txn, messageID uuid.UUID) ([]byte, error) {
	item, err := txn.Get(msgIdxKey(messageID))
	if err != nil {
		return nil, err
	}
	var primary []byte
	err = item.Value(func(val []byte) error {
		primary = append([]byte(nil), val...)
		return nil
	})
	return primary, err
}
