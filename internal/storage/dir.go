package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const stateFile = "state.json"

// Dir stores blobs as files sharded by hash prefix and the state as a single
// JSON document replaced by rename.
type Dir struct {
	root string
}

func OpenDir(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0755); err != nil {
		return nil, fmt.Errorf("creating objects directory: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) blobPath(hash string) string {
	if len(hash) < 3 {
		return filepath.Join(d.root, "objects", hash)
	}
	return filepath.Join(d.root, "objects", hash[:2], hash[2:])
}

func (d *Dir) PutBlob(hash string, data []byte) error {
	path := d.blobPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}
	if err := SafeWrite(path, data, 0644); err != nil {
		return fmt.Errorf("writing blob %s: %w", hash, err)
	}
	return nil
}

func (d *Dir) GetBlob(hash string) ([]byte, error) {
	data, err := os.ReadFile(d.blobPath(hash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", hash, err)
	}
	return data, nil
}

func (d *Dir) HasBlob(hash string) (bool, error) {
	_, err := os.Stat(d.blobPath(hash))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking blob %s: %w", hash, err)
	}
	return true, nil
}

func (d *Dir) LoadState() (*State, error) {
	data, err := os.ReadFile(filepath.Join(d.root, stateFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	if err := checkVersion(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (d *Dir) SaveState(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := SafeWrite(filepath.Join(d.root, stateFile), data, 0644); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (d *Dir) Close() error {
	return nil
}
