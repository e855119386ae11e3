package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"twig/internal/commit"
	"twig/internal/errors"
	"twig/internal/storage"
	"twig/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReopen(t *testing.T) {
	for _, kind := range []string{"badger", "dir"} {
		t.Run(kind, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "store")
			tree, err := workspace.NewDir(t.TempDir())
			require.NoError(t, err)

			backend, err := storage.Open(kind, path)
			require.NoError(t, err)
			repo, err := Open(Options{Backend: backend, WorkingSet: tree})
			require.NoError(t, err)
			id := repo.ID()

			require.NoError(t, tree.Write("a.txt", []byte("1")))
			_, err = repo.Commit("", "C1")
			require.NoError(t, err)
			_, err = repo.CreateBranch("feature", "")
			require.NoError(t, err)
			require.NoError(t, repo.SwitchBranch("feature"))
			require.NoError(t, tree.Write("a.txt", []byte("2")))
			_, err = repo.Commit("", "C2")
			require.NoError(t, err)
			require.NoError(t, repo.SwitchBranch("main"))
			result, err := repo.Merge(context.Background(), MergeOptions{Source: "feature"})
			require.NoError(t, err)
			require.NoError(t, backend.Close())

			backend, err = storage.Open(kind, path)
			require.NoError(t, err)
			defer backend.Close()
			reopened, err := Open(Options{Backend: backend, WorkingSet: tree})
			require.NoError(t, err)

			assert.Equal(t, id, reopened.ID())
			assert.Equal(t, "main", reopened.CurrentBranch())
			assert.Equal(t, map[string]commit.ID{"main": result.CommitID, "feature": 2}, reopened.ListBranches())

			history, err := reopened.History("main")
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, []commit.ID{1, 2}, history[0].Parents)

			content, err := reopened.ReadBlob(history[0].Snapshot["a.txt"])
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), content)

			// Ids keep counting from where the previous process stopped.
			c, err := reopened.Commit("", "after reopen")
			require.NoError(t, err)
			assert.Equal(t, result.CommitID+1, c.ID)
		})
	}
}

// failingState makes SaveState fail on demand.
type failingState struct {
	storage.Backend
	fail bool
}

func (f *failingState) SaveState(s *storage.State) error {
	if f.fail {
		return fmt.Errorf("disk full")
	}
	return f.Backend.SaveState(s)
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	inner, err := storage.OpenBadger("")
	require.NoError(t, err)
	defer inner.Close()

	backend := &failingState{Backend: inner}
	ws := workspace.NewMemory()
	repo, err := Open(Options{Backend: backend, WorkingSet: ws})
	require.NoError(t, err)

	require.NoError(t, ws.Write("a.txt", []byte("1")))
	_, err = repo.Commit("", "C1")
	require.NoError(t, err)

	backend.fail = true
	require.NoError(t, ws.Write("a.txt", []byte("2")))
	_, err = repo.Commit("", "C2")
	assert.ErrorIs(t, err, errors.ErrIOFailure)
	assert.ErrorContains(t, err, "disk full")

	_, err = repo.CreateBranch("feature", "")
	assert.ErrorIs(t, err, errors.ErrIOFailure)

	assert.Equal(t, map[string]commit.ID{"main": 1}, repo.ListBranches())
	_, err = repo.Get(2)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	backend.fail = false
	c, err := repo.Commit("", "C2")
	require.NoError(t, err)
	assert.Equal(t, commit.ID(2), c.ID)
}

func TestFailedSaveRestoresWorkingSet(t *testing.T) {
	open := func(t *testing.T) (*Repository, *failingState, *workspace.Memory) {
		t.Helper()
		inner, err := storage.OpenBadger("")
		require.NoError(t, err)
		t.Cleanup(func() { inner.Close() })

		backend := &failingState{Backend: inner}
		ws := workspace.NewMemory()
		repo, err := Open(Options{Backend: backend, WorkingSet: ws})
		require.NoError(t, err)

		require.NoError(t, ws.Write("a.txt", []byte("1")))
		_, err = repo.Commit("", "C1")
		require.NoError(t, err)
		_, err = repo.CreateBranch("feature", "")
		require.NoError(t, err)
		require.NoError(t, repo.SwitchBranch("feature"))
		require.NoError(t, ws.Write("a.txt", []byte("2")))
		require.NoError(t, ws.Write("b.txt", []byte("b")))
		_, err = repo.Commit("", "C2")
		require.NoError(t, err)
		return repo, backend, ws
	}

	t.Run("switch", func(t *testing.T) {
		repo, backend, ws := open(t)
		require.NoError(t, ws.Write("scratch.txt", []byte("uncommitted")))
		before := ws.Files()

		backend.fail = true
		err := repo.SwitchBranch("main")
		assert.ErrorIs(t, err, errors.ErrIOFailure)

		assert.Equal(t, "feature", repo.CurrentBranch())
		assert.Equal(t, before, ws.Files())

		status, err := repo.Status()
		require.NoError(t, err)
		require.Len(t, status, 1)
		assert.Equal(t, "scratch.txt", status[0].Path)

		backend.fail = false
		require.NoError(t, repo.SwitchBranch("main"))
		assert.Equal(t, map[string]string{"a.txt": "1"}, ws.Files())
	})

	t.Run("merge", func(t *testing.T) {
		repo, backend, ws := open(t)
		require.NoError(t, repo.SwitchBranch("main"))
		require.NoError(t, ws.Write("c.txt", []byte("c")))
		_, err := repo.Commit("", "C3")
		require.NoError(t, err)
		before := ws.Files()

		backend.fail = true
		_, err = repo.Merge(context.Background(), MergeOptions{Source: "feature"})
		assert.ErrorIs(t, err, errors.ErrIOFailure)

		assert.Equal(t, map[string]commit.ID{"main": 3, "feature": 2}, repo.ListBranches())
		assert.Equal(t, before, ws.Files())
		status, err := repo.Status()
		require.NoError(t, err)
		assert.Empty(t, status)

		backend.fail = false
		result, err := repo.Merge(context.Background(), MergeOptions{Source: "feature"})
		require.NoError(t, err)
		assert.Equal(t, commit.ID(4), result.CommitID)
		assert.Equal(t, map[string]string{"a.txt": "2", "b.txt": "b", "c.txt": "c"}, ws.Files())
	})
}

func TestOpen_RejectsInconsistentState(t *testing.T) {
	backend, err := storage.OpenBadger("")
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.SaveState(&storage.State{
		Version: storage.StateVersion,
		ID:      "broken",
		NextID:  2,
		Current: "main",
		Commits: []*commit.Commit{{ID: 1, Snapshot: map[string]string{}}},
	}))

	_, err = Open(Options{Backend: backend, WorkingSet: workspace.NewMemory()})
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}
