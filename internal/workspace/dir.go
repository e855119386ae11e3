package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Dir is a WorkingSet backed by a directory on disk.
type Dir struct {
	Root       string
	ignoreDirs map[string]bool
}

// NewDir returns a working set rooted at root. The metadata directory and
// .git are never listed.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening working tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working tree %s is not a directory", abs)
	}

	return &Dir{
		Root: abs,
		ignoreDirs: map[string]bool{
			MetaDir: true,
			".git":  true,
		},
	}, nil
}

// ShouldIgnore reports whether a slash separated relative path lies in an
// ignored directory.
func (d *Dir) ShouldIgnore(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if d.ignoreDirs[part] {
			return true
		}
	}
	return false
}

// resolve maps a working-set name to an absolute path, refusing names that
// escape the root.
func (d *Dir) resolve(name string) (string, error) {
	clean := path.Clean(filepath.ToSlash(name))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("invalid path %q", name)
	}
	if d.ShouldIgnore(clean) {
		return "", fmt.Errorf("path %q is inside an ignored directory", name)
	}
	return filepath.Join(d.Root, filepath.FromSlash(clean)), nil
}

func (d *Dir) List() ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.Root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		if d.ShouldIgnore(rel) {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			names = append(names, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing working tree: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func (d *Dir) Read(name string) ([]byte, error) {
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return data, err
}

func (d *Dir) Write(name string, data []byte) error {
	p, err := d.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}
	return os.WriteFile(p, data, 0644)
}

// Delete removes the file and any directories it leaves empty.
func (d *Dir) Delete(name string) error {
	p, err := d.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	for dir := filepath.Dir(p); dir != d.Root && strings.HasPrefix(dir, d.Root); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break // not empty
		}
	}
	return nil
}
