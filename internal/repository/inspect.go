package repository

import (
	"io"
	"maps"

	"twig/internal/archive"
	"twig/internal/commit"
	"twig/internal/errors"
	"twig/shared/types"
	"twig/shared/utils"
)

// Status compares the working set to the head of the current branch.
func (r *Repository) Status() ([]shared.Change, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, head, err := r.head()
	if err != nil {
		return nil, err
	}
	working, _, err := r.hashWorkingSet()
	if err != nil {
		return nil, err
	}
	return compare(head, working), nil
}

// DiffWorking renders the uncommitted changes of the working set.
func (r *Repository) DiffWorking() ([]shared.FileDiff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, head, err := r.head()
	if err != nil {
		return nil, err
	}
	working, contents, err := r.hashWorkingSet()
	if err != nil {
		return nil, err
	}

	read := func(hash string) ([]byte, error) {
		if content, ok := contents[hash]; ok {
			return content, nil
		}
		return r.blobs.Get(hash)
	}
	return r.render(compare(head, working), read)
}

// DiffCommit renders what commit id changed relative to its first parent.
func (r *Repository) DiffCommit(id commit.ID) ([]shared.FileDiff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.graph.Get(id)
	if err != nil {
		return nil, err
	}
	parent, err := r.graph.Snapshot(c.FirstParent())
	if err != nil {
		return nil, errors.InvalidState("diff_commit", id.String(), "parent %s missing", c.FirstParent())
	}
	return r.render(compare(parent, c.Snapshot), r.blobs.Get)
}

// Archive writes the snapshot of commit id to w as a tar.zst stream.
func (r *Repository) Archive(w io.Writer, id commit.ID, prefix string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.graph.Get(id)
	if err != nil {
		return err
	}
	err = archive.Write(w, c.Snapshot, r.blobs.Get, archive.Options{
		Prefix:  prefix,
		ModTime: c.Timestamp,
	})
	if err != nil {
		return errors.IOFailure("archive", id.String(), err)
	}
	return nil
}

// hashWorkingSet hashes the working set without storing anything. It also
// returns the content by hash for rendering.
func (r *Repository) hashWorkingSet() (map[string]string, map[string][]byte, error) {
	names, err := r.ws.List()
	if err != nil {
		return nil, nil, errors.IOFailure("list_working_set", "", err)
	}
	snapshot := make(map[string]string, len(names))
	contents := make(map[string][]byte, len(names))
	for _, name := range names {
		content, err := r.ws.Read(name)
		if err != nil {
			return nil, nil, errors.IOFailure("read_working_set", name, err)
		}
		hash := utils.HashContent(content)
		snapshot[name] = hash
		contents[hash] = content
	}
	return snapshot, contents, nil
}

func (r *Repository) render(changes []shared.Change, read func(string) ([]byte, error)) ([]shared.FileDiff, error) {
	out := make([]shared.FileDiff, 0, len(changes))
	for _, c := range changes {
		var oldContent, newContent []byte
		var err error
		if c.OldHash != "" {
			if oldContent, err = read(c.OldHash); err != nil {
				return nil, err
			}
		}
		if c.NewHash != "" {
			if newContent, err = read(c.NewHash); err != nil {
				return nil, err
			}
		}
		out = append(out, shared.FileDiff{
			Change: c,
			Result: r.differ.Diff(oldContent, newContent),
		})
	}
	return out, nil
}

// compare lists the files that differ between two snapshots, by path.
func compare(old, new map[string]string) []shared.Change {
	names := make(map[string]string, len(old)+len(new))
	maps.Copy(names, old)
	maps.Copy(names, new)

	var changes []shared.Change
	for _, name := range utils.SortedKeys(names) {
		o, n := old[name], new[name]
		switch {
		case o == n:
			continue
		case o == "":
			changes = append(changes, shared.Change{Path: name, Type: shared.ChangeAdd, NewHash: n})
		case n == "":
			changes = append(changes, shared.Change{Path: name, Type: shared.ChangeDelete, OldHash: o})
		default:
			changes = append(changes, shared.Change{Path: name, Type: shared.ChangeModify, OldHash: o, NewHash: n})
		}
	}
	return changes
}
