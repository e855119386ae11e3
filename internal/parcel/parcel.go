// Package parcel opens a working tree on disk together with its storage and
// repository, the way the CLI and the server both need it.
package parcel

import (
	"fmt"
	"os"
	"path/filepath"

	"twig/internal/config"
	"twig/internal/repository"
	"twig/internal/storage"
	"twig/internal/workspace"

	"go.uber.org/zap"
)

// Parcel is a working tree bound to its repository.
type Parcel struct {
	Root    string
	Tree    *workspace.Dir
	Backend storage.Backend
	Repo    *repository.Repository
	Logger  *zap.Logger
}

// Initialize creates the metadata directory under root.
func Initialize(root string) error {
	metaDir := filepath.Join(root, workspace.MetaDir)
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return fmt.Errorf("creating %s directory: %w", workspace.MetaDir, err)
	}
	return nil
}

// IsInitialized reports whether root already holds a metadata directory.
func IsInitialized(root string) bool {
	info, err := os.Stat(filepath.Join(root, workspace.MetaDir))
	return err == nil && info.IsDir()
}

// StorePath is where the backend of kind keeps its data for a tree at root.
func StorePath(root, kind string) string {
	if kind == "" {
		kind = config.BackendBadger
	}
	return filepath.Join(root, workspace.MetaDir, kind)
}

// Open binds the tree at root to its repository, creating the metadata
// directory on first use.
func Open(root string, cfg *config.Config, logger *zap.Logger) (*Parcel, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := Initialize(absPath); err != nil {
		return nil, fmt.Errorf("initializing directories: %w", err)
	}

	tree, err := workspace.NewDir(absPath)
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(cfg.Repository.Backend, StorePath(absPath, cfg.Repository.Backend))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	repo, err := repository.Open(Options(cfg, backend, tree, logger))
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	return &Parcel{
		Root:    absPath,
		Tree:    tree,
		Backend: backend,
		Repo:    repo,
		Logger:  logger,
	}, nil
}

// Find opens the tree enclosing dir.
func Find(dir string, cfg *config.Config, logger *zap.Logger) (*Parcel, error) {
	root, err := workspace.FindRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("not a twig repository (or any parent): %w", err)
	}
	return Open(root, cfg, logger)
}

func (p *Parcel) Close() error {
	return p.Backend.Close()
}
