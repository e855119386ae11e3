package repository

import (
	"context"
	"fmt"

	"twig/internal/commit"
	"twig/internal/errors"
	"twig/internal/merge"
	"twig/internal/suggest"

	"go.uber.org/zap"
)

type MergeOptions struct {
	Source string
	// Target defaults to the current branch.
	Target string
	// Policy overrides the repository policy when set.
	Policy merge.Policy
	// Resolutions maps conflicting filenames to the blob hash to keep, or ""
	// to delete the file. They take precedence over the policy.
	Resolutions map[string]string
	// Advise asks the configured Suggester for a proposal per conflict.
	Advise bool
}

type MergeResult struct {
	// CommitID is 0 when conflicts were left unresolved and nothing was
	// committed.
	CommitID  commit.ID        `json:"commit_id"`
	Base      commit.ID        `json:"base"`
	Conflicts []merge.Conflict `json:"conflicts"`
	// Unresolved lists the conflicts that blocked the commit.
	Unresolved []merge.Conflict `json:"unresolved,omitempty"`
	// Suggestions maps filenames to merged text proposed by the Suggester.
	Suggestions map[string]string `json:"suggestions,omitempty"`
}

func (m *MergeResult) Committed() bool {
	return m.CommitID != 0
}

// Merge merges opts.Source into opts.Target. Conflicts are not errors: they
// are resolved by the resolutions and policy and reported in the result.
// The suggestion hook, if requested, runs after the lock is released.
func (r *Repository) Merge(ctx context.Context, opts MergeOptions) (*MergeResult, error) {
	if opts.Policy != "" {
		if _, err := merge.ParsePolicy(string(opts.Policy)); err != nil {
			return nil, errors.InvalidArgument("merge", string(opts.Policy), "%v", err)
		}
	}

	result, err := r.merge(opts)
	if err != nil {
		return nil, err
	}

	if opts.Advise && len(result.Conflicts) > 0 {
		result.Suggestions = r.advise(ctx, result.Conflicts)
	}
	return result, nil
}

func (r *Repository) merge(opts MergeOptions) (*MergeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := opts.Target
	if target == "" {
		target = r.branches.Current()
	}
	if opts.Source == target {
		return nil, errors.InvalidArgument("merge", target, "cannot merge a branch into itself")
	}
	src, err := r.branches.Get(opts.Source)
	if err != nil {
		return nil, errors.NotFound("merge", opts.Source)
	}
	dst, err := r.branches.Get(target)
	if err != nil {
		return nil, errors.NotFound("merge", target)
	}
	if src.Head == 0 && dst.Head == 0 {
		return nil, errors.InvalidState("merge", target, "neither branch has commits")
	}

	var base commit.ID
	if src.Head != 0 && dst.Head != 0 {
		id, ok, err := merge.Base(r.graph, dst.Head, src.Head)
		if err != nil {
			return nil, err
		}
		if ok {
			base = id
		}
	}

	snapshots := make([]map[string]string, 3)
	for i, id := range []commit.ID{base, src.Head, dst.Head} {
		snapshots[i], err = r.graph.Snapshot(id)
		if err != nil {
			return nil, errors.InvalidState("merge", id.String(), "commit missing from graph")
		}
	}

	for name, hash := range opts.Resolutions {
		if hash == "" {
			continue
		}
		ok, err := r.blobs.Exists(hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.NotFound("merge", fmt.Sprintf("%s@%s", name, hash))
		}
	}

	outcome, err := r.merger.Merge(merge.Input{
		Base:        snapshots[0],
		Source:      snapshots[1],
		Target:      snapshots[2],
		Resolutions: opts.Resolutions,
		Policy:      opts.Policy,
	})
	if err != nil {
		return nil, errors.InvalidArgument("merge", target, "%v", err)
	}

	result := &MergeResult{
		Base:       base,
		Conflicts:  outcome.Conflicts,
		Unresolved: outcome.Unresolved,
	}
	if len(outcome.Unresolved) > 0 {
		r.logger.Info("merge left unresolved",
			zap.String("source", opts.Source),
			zap.String("target", target),
			zap.Int("conflicts", len(outcome.Unresolved)),
		)
		return result, nil
	}

	var parents []commit.ID
	for _, id := range []commit.ID{dst.Head, src.Head} {
		if id != 0 {
			parents = append(parents, id)
		}
	}

	graph := r.graph.Clone()
	message := fmt.Sprintf("Merge branch '%s' into '%s'", opts.Source, target)
	c, err := graph.Create(parents, outcome.Snapshot, message, r.now())
	if err != nil {
		return nil, err
	}
	reg := r.branches.Clone()
	if err := reg.Advance(target, c.ID); err != nil {
		return nil, err
	}
	save := func() error { return r.persist(graph, reg) }
	if target == r.branches.Current() {
		err = r.checkout(c.Snapshot, save)
	} else {
		err = save()
	}
	if err != nil {
		return nil, err
	}

	result.CommitID = c.ID
	r.logger.Info("merge committed",
		zap.String("source", opts.Source),
		zap.String("target", target),
		zap.Stringer("commit_id", c.ID),
		zap.Stringer("base", base),
		zap.Int("conflicts", len(outcome.Conflicts)),
	)
	return result, nil
}

// advise collects suggestions for conflicts. Blobs are immutable so no lock
// is needed to read them.
func (r *Repository) advise(ctx context.Context, conflicts []merge.Conflict) map[string]string {
	if r.suggester == nil {
		return nil
	}

	out := make(map[string]string)
	for _, c := range conflicts {
		if ctx.Err() != nil {
			break
		}
		sourceText, err := r.text(c.SourceHash)
		if err != nil {
			r.logger.Warn("skipping suggestion", zap.String("file", c.Filename), zap.Error(err))
			continue
		}
		targetText, err := r.text(c.TargetHash)
		if err != nil {
			r.logger.Warn("skipping suggestion", zap.String("file", c.Filename), zap.Error(err))
			continue
		}
		if s, ok := suggest.Advise(ctx, r.suggester, r.timeout, sourceText, targetText); ok {
			out[c.Filename] = s
		} else {
			r.logger.Debug("no suggestion", zap.String("file", c.Filename))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r *Repository) text(hash string) (string, error) {
	if hash == "" {
		return "", nil
	}
	content, err := r.blobs.Get(hash)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
