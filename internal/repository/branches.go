package repository

import (
	"twig/internal/branch"
	"twig/internal/commit"
	"twig/internal/errors"

	"go.uber.org/zap"
)

// CreateBranch adds name pointing at the head and history of source, or
// of the current branch when source is empty.
func (r *Repository) CreateBranch(name, source string) (*branch.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg := r.branches.Clone()
	b, err := reg.Create(name, source)
	if err != nil {
		return nil, err
	}
	if err := r.persist(r.graph, reg); err != nil {
		return nil, err
	}

	r.logger.Info("branch created",
		zap.String("branch", name),
		zap.Stringer("head", b.Head),
	)
	return b, nil
}

// SwitchBranch makes name current and rewrites the working set to its head
// snapshot. Switching to the current branch changes nothing.
func (r *Repository) SwitchBranch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.branches.Get(name)
	if err != nil {
		return errors.NotFound("switch_branch", name)
	}
	if name == r.branches.Current() {
		return nil
	}

	snapshot, err := r.graph.Snapshot(b.Head)
	if err != nil {
		return errors.InvalidState("switch_branch", name, "head %s references a missing commit", b.Head)
	}
	reg := r.branches.Clone()
	if err := reg.SetCurrent(name); err != nil {
		return err
	}
	save := func() error { return r.persist(r.graph, reg) }
	if err := r.checkout(snapshot, save); err != nil {
		return err
	}

	r.logger.Info("switched branch",
		zap.String("branch", name),
		zap.Stringer("head", b.Head),
		zap.Int("files", len(snapshot)),
	)
	return nil
}

// ListBranches maps every branch name to its head; 0 for a branch with no
// commits.
func (r *Repository) ListBranches() map[string]commit.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.branches.List()
}

func (r *Repository) CurrentBranch() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.branches.Current()
}

func (r *Repository) Branch(name string) (*branch.Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.branches.Get(name)
}
