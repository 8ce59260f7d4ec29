// Package statecache is a key-value store for short-lived derived account
// snapshots, backed by Badger. Entries expire via Badger's native per-entry
// TTL; values are JSON. Concurrent writers to the same key race
// last-write-wins, which is acceptable because every cached value is
// recomputable from the exchange.
package statecache

import (
	"encoding/json"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// keyPrefix namespaces this service's entries inside the store.
const keyPrefix = "brokerage:"

type Store struct {
	db *badger.DB
}

// Open opens (or creates) an on-disk store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("statecache: path is required")
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrap(err, "statecache: open")
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store, used by tests.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrap(err, "statecache: open in-memory")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Set stores v under key with the given TTL.
func (s *Store) Set(key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "statecache: marshal")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+key), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	return errors.Wrap(err, "statecache: set")
}

// Get unmarshals the value under key into out and reports whether a live
// entry was found. Expired entries count as missing.
func (s *Store) Get(key string, out any) (bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return false, errors.Wrap(err, "statecache: get")
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, errors.Wrap(err, "statecache: unmarshal")
	}
	return true, nil
}

// GetMany reads all keys in one transaction. The result has one element per
// key, nil where the key is missing or expired.
func (s *Store) GetMany(keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get([]byte(keyPrefix + key))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[i] = data
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "statecache: get many")
	}
	return out, nil
}
