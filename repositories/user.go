package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"chat-presence/domain"
	"chat-presence/errors"

	"github.com/dgraph-io/badger/v4"
)

// CreateUser provisions a user record. The engine never calls this; it
// exists for seeding and integration tests.
func (s *Store) CreateUser(ctx context.Context, userID, name string) (domain.User, error) {
	user := domain.User{ID: userID, Name: name}

	data, err := json.Marshal(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := userKey(userID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(userID), &user)
	})
	if err != nil {
		return domain.User{}, mapNotFound(err, errors.ErrUserNotFound)
	}
	return user, nil
}

// SetUserOnline flips the durable online mirror. LastSeen is untouched;
// callers pair this with TouchLastSeen when they want both.
func (s *Store) SetUserOnline(ctx context.Context, userID string, online bool) error {
	return s.updateUser(userID, func(u *domain.User) {
		u.Online = online
	})
}

func (s *Store) TouchLastSeen(ctx context.Context, userID string) error {
	at := s.now()
	return s.updateUser(userID, func(u *domain.User) {
		u.LastSeen = at
	})
}

func (s *Store) updateUser(userID string, mutate func(*domain.User)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var user domain.User
		if err := getJSON(txn, userKey(userID), &user); err != nil {
			return err
		}
		mutate(&user)
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(userKey(userID), data)
	})
	return mapNotFound(err, errors.ErrUserNotFound)
}

// getJSON loads and unmarshals a single record inside a transaction.
func getJSON(txn *badger.Txn, key []byte, target any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, target)
	})
}

// mapNotFound converts badger's key-not-found into the domain sentinel so
// callers never depend on the storage engine's error types.
func mapNotFound(err, sentinel error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return sentinel
	}
	return err
}
