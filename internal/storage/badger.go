// internal/storage/badger.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const (
	blobPrefix  = "blob"
	statePrefix = "state"
	stateID     = "repository"
)

// Badger keeps blobs and state in one badger database. Every write is a
// single transaction, so a state save is atomic.
type Badger struct {
	db    *badger.DB
	owned bool
}

// OpenBadger opens a database at path. An empty path opens an in-memory
// database, which tests use.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable logging noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Badger{db: db, owned: true}, nil
}

// NewBadger wraps an already open database. Close leaves it open.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

func makeKey(prefix, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", prefix, id))
}

func (s *Badger) PutBlob(hash string, data []byte) error {
	key := makeKey(blobPrefix, hash)
	return s.db.Update(func(txn *badger.Txn) error {
		// Check if key already exists
		_, err := txn.Get(key)
		if err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return txn.Set(key, data)
	})
}

func (s *Badger) GetBlob(hash string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(blobPrefix, hash))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", hash, err)
	}
	return data, nil
}

func (s *Badger) HasBlob(hash string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeKey(blobPrefix, hash))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking blob %s: %w", hash, err)
	}
	return true, nil
}

func (s *Badger) LoadState() (*State, error) {
	var state State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(statePrefix, stateID))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	if err := checkVersion(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Badger) SaveState(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	key := makeKey(statePrefix, stateID)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (s *Badger) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
