package store

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// Settings is a small embedded key/value store for service state that
// should survive restarts: the last analyzed filename and similar
// bookkeeping the dashboard asks for.
type Settings struct {
	db *badger.DB
}

func OpenSettings(path string) (*Settings, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Settings{db: db}, nil
}

func (s *Settings) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Search returns the value for key, or "" when the key does not exist.
func (s *Settings) Search(key string) (string, error) {
	if s == nil || s.db == nil {
		return "", nil
	}
	var valCopy []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			valCopy = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	return string(valCopy), err
}

func (s *Settings) Update(key, value string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (s *Settings) Delete(key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}
