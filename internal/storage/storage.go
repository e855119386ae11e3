// Package storage persists blobs and repository state.
package storage

import (
	"errors"
	"fmt"

	"twig/internal/branch"
	"twig/internal/commit"
)

var (
	// ErrNotFound is returned by GetBlob for an unknown hash.
	ErrNotFound = errors.New("not found")
	// ErrNoState is returned by LoadState before the first SaveState.
	ErrNoState = errors.New("no saved state")
)

// StateVersion is the current on-disk layout of State.
const StateVersion = 1

// State is the complete persisted repository: every branch, every commit
// and the allocation counter. It is always saved as one unit.
type State struct {
	Version  int              `json:"version"`
	ID       string           `json:"id"`
	NextID   commit.ID        `json:"next_id"`
	Current  string           `json:"current"`
	Branches []*branch.Branch `json:"branches"`
	Commits  []*commit.Commit `json:"commits"`
}

// BlobBackend is a key-value store of immutable content keyed by hash.
type BlobBackend interface {
	// PutBlob stores data under hash. Storing an existing hash is a no-op.
	PutBlob(hash string, data []byte) error
	GetBlob(hash string) ([]byte, error)
	HasBlob(hash string) (bool, error)
}

// StateBackend loads and atomically replaces the repository state.
type StateBackend interface {
	LoadState() (*State, error)
	SaveState(state *State) error
}

type Backend interface {
	BlobBackend
	StateBackend
	Close() error
}

// Open returns the backend named kind rooted at path.
func Open(kind, path string) (Backend, error) {
	switch kind {
	case "badger", "":
		return OpenBadger(path)
	case "dir":
		return OpenDir(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

func checkVersion(s *State) error {
	if s.Version != StateVersion {
		return fmt.Errorf("unsupported state version %d", s.Version)
	}
	return nil
}
