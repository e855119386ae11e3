package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// SafeWrite replaces path with data so readers see either the old or the
// new content, never a partial file. The staging file lives next to path
// because rename is only atomic within one filesystem.
func SafeWrite(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	staged, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	name := staged.Name()

	if err := fill(staged, data, perm); err != nil {
		os.Remove(name)
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return syncDir(dir)
}

// fill writes data, applies perm and flushes f to disk. f is always closed.
func fill(f *os.File, data []byte, perm os.FileMode) error {
	_, err := f.Write(data)
	if err == nil {
		err = f.Chmod(perm)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// syncDir makes the rename itself durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}
