package blob

import (
	"fmt"
	"sync"
	"testing"

	"twig/internal/errors"
	"twig/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend wraps a real backend and counts writes.
type countingBackend struct {
	storage.BlobBackend
	mu     sync.Mutex
	writes int
	fail   error
}

func (c *countingBackend) PutBlob(hash string, data []byte) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.BlobBackend.PutBlob(hash, data)
}

func (c *countingBackend) HasBlob(hash string) (bool, error) {
	if c.fail != nil {
		return false, c.fail
	}
	return c.BlobBackend.HasBlob(hash)
}

func setupStore(t *testing.T, cacheSize int) (*Store, *countingBackend) {
	db, err := storage.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	backend := &countingBackend{BlobBackend: db}
	store, err := New(backend, cacheSize)
	require.NoError(t, err)
	return store, backend
}

func TestStore_PutIsIdempotent(t *testing.T) {
	// A cache of one forces the second put of "a" to consult the backend.
	store, backend := setupStore(t, 1)

	h1, err := store.Put([]byte("a"))
	require.NoError(t, err)
	_, err = store.Put([]byte("b"))
	require.NoError(t, err)
	h2, err := store.Put([]byte("a"))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 2, backend.writes)

	got, err := store.Get(h1)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)
}

func TestStore_DistinctContentDistinctHash(t *testing.T) {
	store, _ := setupStore(t, 10)

	seen := map[string]string{}
	for i := 0; i < 50; i++ {
		content := fmt.Sprintf("content-%d", i)
		hash, err := store.Put([]byte(content))
		require.NoError(t, err)
		_, dup := seen[hash]
		require.False(t, dup, "hash collision for %q", content)
		seen[hash] = content
	}

	empty, err := store.Put(nil)
	require.NoError(t, err)
	assert.Equal(t, Hash([]byte{}), empty)
	got, err := store.Get(empty)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Get(t *testing.T) {
	store, _ := setupStore(t, 10)

	_, err := store.Get(Hash([]byte("never stored")))
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = store.Get("not-a-hash")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	ok, err := store.Exists("not-a-hash")
	require.NoError(t, err)
	assert.False(t, ok)

	hash, err := store.Put([]byte("data"))
	require.NoError(t, err)

	// Callers own the returned slice.
	got, err := store.Get(hash)
	require.NoError(t, err)
	got[0] = 'X'
	again, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), again)

	b, err := store.Blob(hash)
	require.NoError(t, err)
	assert.Equal(t, hash, b.Hash)
}

func TestStore_DetectsCorruption(t *testing.T) {
	db, err := storage.OpenBadger("")
	require.NoError(t, err)
	defer db.Close()

	hash := Hash([]byte("original"))
	require.NoError(t, db.PutBlob(hash, []byte("tampered")))

	store, err := New(db, 10)
	require.NoError(t, err)
	_, err = store.Get(hash)
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestStore_PropagatesIOFailure(t *testing.T) {
	store, backend := setupStore(t, 10)
	backend.fail = fmt.Errorf("disk on fire")

	_, err := store.Put([]byte("x"))
	assert.ErrorIs(t, err, errors.ErrIOFailure)
	assert.ErrorContains(t, err, "disk on fire")

	_, err = store.Exists(Hash([]byte("y")))
	assert.ErrorIs(t, err, errors.ErrIOFailure)
}

func TestStore_Exists(t *testing.T) {
	store, _ := setupStore(t, 10)
	hash, err := store.Put([]byte("x"))
	require.NoError(t, err)

	ok, err := store.Exists(hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(Hash([]byte("nope")))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Exists("bogus")
	require.NoError(t, err)
	assert.False(t, ok)
}
