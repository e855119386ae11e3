package parcel

import (
	"os"
	"path/filepath"
	"testing"

	"twig/internal/config"
	"twig/internal/merge"
	"twig/internal/workspace"
	"twig/shared/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	for _, backend := range []string{config.BackendBadger, config.BackendDir} {
		t.Run(backend, func(t *testing.T) {
			root := t.TempDir()
			cfg := config.Default()
			cfg.Repository.Backend = backend

			assert.False(t, IsInitialized(root))
			p, err := Open(root, cfg, nil)
			require.NoError(t, err)
			assert.True(t, IsInitialized(root))

			require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("1"), 0644))
			c, err := p.Repo.Commit("", "first")
			require.NoError(t, err)
			// Metadata never ends up in a snapshot.
			assert.Equal(t, []string{"a.txt"}, utils.SortedKeys(c.Snapshot))
			require.NoError(t, p.Close())

			_, err = os.Stat(StorePath(root, backend))
			require.NoError(t, err)

			sub := filepath.Join(root, "nested", "dir")
			require.NoError(t, os.MkdirAll(sub, 0755))
			p, err = Find(sub, cfg, nil)
			require.NoError(t, err)
			defer p.Close()
			got, err := p.Repo.Get(c.ID)
			require.NoError(t, err)
			assert.Equal(t, "first", got.Message)
		})
	}
}

func TestFind_NotARepository(t *testing.T) {
	_, err := Find(t.TempDir(), config.Default(), nil)
	assert.ErrorContains(t, err, "not a twig repository")
}

func TestOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Merge.Policy = "source"
	ws := workspace.NewMemory()

	opts := Options(cfg, nil, ws, nil)
	assert.Equal(t, merge.PolicySource, opts.Policy)
	assert.Equal(t, "main", opts.DefaultBranch)
	assert.Nil(t, opts.Suggester)

	cfg.Merge.SuggestURL = "http://localhost:9999/suggest"
	assert.NotNil(t, Options(cfg, nil, ws, nil).Suggester)
}

