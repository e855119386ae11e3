// Package workspace provides the caller-owned file tree the repository
// snapshots into commits and restores on branch switch.
package workspace

import (
	"errors"
	"os"
	"path/filepath"
)

// MetaDir is the directory holding repository metadata inside a working tree.
const MetaDir = ".twig"

// WorkingSet is the file tree a repository reads on commit and writes on
// switch. Names are slash separated and relative to the tree root.
type WorkingSet interface {
	List() ([]string, error)
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Delete(name string) error
}

// ErrNotFound is returned by Read for a name that is not in the set.
var ErrNotFound = errors.New("file not found")

// FindRoot searches upward from startDir for a directory containing MetaDir.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, MetaDir)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("workspace root not found")
}
