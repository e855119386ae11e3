// Package blob is the content-addressable store: bytes in, sha256 hash out.
package blob

import (
	stderrors "errors"
	"fmt"
	"slices"

	"twig/internal/errors"
	"twig/internal/storage"
	"twig/shared/utils"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Blob is immutable content identified by the hash of its bytes.
type Blob struct {
	Hash    string
	Content []byte
}

// Store deduplicates content in a BlobBackend and caches recent reads.
// It is safe for concurrent use.
type Store struct {
	backend storage.BlobBackend
	cache   *lru.Cache[string, []byte]
}

func New(backend storage.BlobBackend, cacheSize int) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("blob backend is required")
	}
	if cacheSize <= 0 {
		cacheSize = 1000
	}

	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &Store{backend: backend, cache: cache}, nil
}

// Hash returns the key content is stored under.
func Hash(content []byte) string {
	return utils.HashContent(content)
}

// Put stores content and returns its hash. Content that is already present
// causes no write.
func (s *Store) Put(content []byte) (string, error) {
	hash := Hash(content)
	if s.cache.Contains(hash) {
		return hash, nil
	}

	exists, err := s.backend.HasBlob(hash)
	if err != nil {
		return "", errors.IOFailure("put_blob", hash, err)
	}
	if !exists {
		if err := s.backend.PutBlob(hash, content); err != nil {
			return "", errors.IOFailure("put_blob", hash, err)
		}
	}

	s.cache.Add(hash, slices.Clone(content))
	return hash, nil
}

// Get returns the content stored under hash. A malformed hash can never
// have been stored, so it is reported as not found.
func (s *Store) Get(hash string) ([]byte, error) {
	if !utils.IsHash(hash) {
		return nil, errors.NotFound("get_blob", hash)
	}

	if content, ok := s.cache.Get(hash); ok {
		return slices.Clone(content), nil
	}

	content, err := s.backend.GetBlob(hash)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFound("get_blob", hash)
	}
	if err != nil {
		return nil, errors.IOFailure("get_blob", hash, err)
	}

	if Hash(content) != hash {
		return nil, errors.InvalidState("get_blob", hash, "content hash mismatch")
	}

	s.cache.Add(hash, slices.Clone(content))
	return content, nil
}

// Blob is Get returning the pair.
func (s *Store) Blob(hash string) (*Blob, error) {
	content, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	return &Blob{Hash: hash, Content: content}, nil
}

func (s *Store) Exists(hash string) (bool, error) {
	if !utils.IsHash(hash) {
		return false, nil
	}
	if s.cache.Contains(hash) {
		return true, nil
	}
	ok, err := s.backend.HasBlob(hash)
	if err != nil {
		return false, errors.IOFailure("has_blob", hash, err)
	}
	return ok, nil
}
