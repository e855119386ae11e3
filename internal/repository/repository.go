// Package repository ties the blob store, commit graph, branch registry and
// merge engine into one versioned repository over a working set.
//
// Mutating operations hold the write lock for their full duration and build
// the next graph and registry on clones; the clones replace the live state
// only after the backend has saved them. Readers take the read lock and
// always see a consistent pair.
package repository

import (
	stderrors "errors"
	"slices"
	"sync"
	"time"

	"twig/internal/blob"
	"twig/internal/branch"
	"twig/internal/commit"
	"twig/internal/diff"
	"twig/internal/errors"
	"twig/internal/merge"
	"twig/internal/storage"
	"twig/internal/suggest"
	"twig/internal/workspace"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBranch         = "main"
	DefaultSuggestTimeout = 10 * time.Second
	DefaultContextLines   = 3
)

type Options struct {
	Backend    storage.Backend
	WorkingSet workspace.WorkingSet
	Logger     *zap.Logger

	// DefaultBranch names the branch a new repository starts on.
	DefaultBranch string
	BlobCacheSize int
	ContextLines  int

	// Policy resolves conflicts when a merge does not name one.
	Policy         merge.Policy
	Suggester      suggest.Suggester
	SuggestTimeout time.Duration

	// Now stamps commits. Defaults to time.Now.
	Now func() time.Time
}

type Repository struct {
	mu sync.RWMutex

	backend   storage.Backend
	ws        workspace.WorkingSet
	blobs     *blob.Store
	merger    *merge.Engine
	differ    *diff.Engine
	logger    *zap.Logger
	suggester suggest.Suggester
	timeout   time.Duration
	now       func() time.Time

	id       string
	graph    *commit.Graph
	branches *branch.Registry
}

// Open loads the repository saved in opts.Backend, initializing and saving
// an empty one if the backend holds no state yet.
func Open(opts Options) (*Repository, error) {
	if opts.Backend == nil {
		return nil, errors.InvalidArgument("open", "", "storage backend is required")
	}
	if opts.WorkingSet == nil {
		return nil, errors.InvalidArgument("open", "", "working set is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = DefaultBranch
	}
	if opts.ContextLines <= 0 {
		opts.ContextLines = DefaultContextLines
	}
	if opts.SuggestTimeout <= 0 {
		opts.SuggestTimeout = DefaultSuggestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	policy, err := merge.ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, errors.InvalidArgument("open", string(opts.Policy), "%v", err)
	}

	blobs, err := blob.New(opts.Backend, opts.BlobCacheSize)
	if err != nil {
		return nil, errors.IOFailure("open", "", err)
	}

	r := &Repository{
		backend:   opts.Backend,
		ws:        opts.WorkingSet,
		blobs:     blobs,
		merger:    merge.NewEngine(policy),
		differ:    diff.NewEngine(opts.ContextLines),
		logger:    opts.Logger,
		suggester: opts.Suggester,
		timeout:   opts.SuggestTimeout,
		now:       opts.Now,
	}

	state, err := opts.Backend.LoadState()
	switch {
	case stderrors.Is(err, storage.ErrNoState):
		if err := r.init(opts.DefaultBranch); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, errors.IOFailure("load_state", "", err)
	default:
		if err := r.restore(state); err != nil {
			return nil, err
		}
	}

	r.logger.Info("repository opened",
		zap.String("id", r.id),
		zap.String("branch", r.branches.Current()),
		zap.Int("commits", r.graph.Len()),
	)
	return r, nil
}

func (r *Repository) init(defaultBranch string) error {
	reg, err := branch.NewRegistry(defaultBranch)
	if err != nil {
		return err
	}
	r.id = uuid.New().String()
	if err := r.persist(commit.NewGraph(), reg); err != nil {
		return err
	}
	r.logger.Info("repository initialized", zap.String("id", r.id), zap.String("branch", defaultBranch))
	return nil
}

func (r *Repository) restore(state *storage.State) error {
	graph, err := commit.Restore(state.Commits, state.NextID)
	if err != nil {
		return err
	}
	reg, err := branch.Restore(state.Branches, state.Current, graph)
	if err != nil {
		return err
	}
	r.id = state.ID
	r.graph = graph
	r.branches = reg
	return nil
}

// persist saves graph and reg as one unit and, on success, makes them the
// live state. Callers hold the write lock.
func (r *Repository) persist(graph *commit.Graph, reg *branch.Registry) error {
	state := &storage.State{
		Version:  storage.StateVersion,
		ID:       r.id,
		NextID:   graph.Next(),
		Current:  reg.Current(),
		Branches: reg.Branches(),
		Commits:  graph.Commits(),
	}
	if err := r.backend.SaveState(state); err != nil {
		r.logger.Error("failed to save state", zap.Error(err))
		return errors.IOFailure("save_state", r.id, err)
	}
	r.graph = graph
	r.branches = reg
	return nil
}

// ID is the repository identifier assigned at initialization.
func (r *Repository) ID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}

// Commit snapshots every file in the working set onto branchName, or onto
// the current branch when branchName is empty.
func (r *Repository) Commit(branchName, message string) (*commit.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if branchName == "" {
		branchName = r.branches.Current()
	}
	b, err := r.branches.Get(branchName)
	if err != nil {
		return nil, errors.NotFound("commit", branchName)
	}

	snapshot, err := r.snapshotWorkingSet()
	if err != nil {
		return nil, err
	}

	var parents []commit.ID
	if b.Head != 0 {
		parents = []commit.ID{b.Head}
	}

	graph := r.graph.Clone()
	c, err := graph.Create(parents, snapshot, message, r.now())
	if err != nil {
		return nil, err
	}
	reg := r.branches.Clone()
	if err := reg.Advance(branchName, c.ID); err != nil {
		return nil, err
	}
	if err := r.persist(graph, reg); err != nil {
		return nil, err
	}

	r.logger.Info("commit created",
		zap.String("branch", branchName),
		zap.Stringer("commit_id", c.ID),
		zap.Int("files", len(c.Snapshot)),
	)
	return c, nil
}

// snapshotWorkingSet stores every working-set file and returns the
// resulting filename -> hash map.
func (r *Repository) snapshotWorkingSet() (map[string]string, error) {
	names, err := r.ws.List()
	if err != nil {
		return nil, errors.IOFailure("list_working_set", "", err)
	}
	snapshot := make(map[string]string, len(names))
	for _, name := range names {
		content, err := r.ws.Read(name)
		if err != nil {
			return nil, errors.IOFailure("read_working_set", name, err)
		}
		hash, err := r.blobs.Put(content)
		if err != nil {
			return nil, err
		}
		snapshot[name] = hash
	}
	return snapshot, nil
}

// checkout rewrites the working set to snapshot and then runs save. If
// either step fails the working set is put back the way it was, so it never
// runs ahead of the persisted state. Callers hold the write lock.
func (r *Repository) checkout(snapshot map[string]string, save func() error) error {
	prev, err := r.snapshotWorkingSet()
	if err != nil {
		return err
	}

	err = r.materialize(snapshot)
	if err == nil {
		err = save()
	}
	if err != nil {
		if rerr := r.materialize(prev); rerr != nil {
			r.logger.Error("failed to restore working set", zap.Error(rerr))
		}
		return err
	}
	return nil
}

// materialize makes the working set equal snapshot.
func (r *Repository) materialize(snapshot map[string]string) error {
	names, err := r.ws.List()
	if err != nil {
		return errors.IOFailure("list_working_set", "", err)
	}
	for _, name := range names {
		if _, keep := snapshot[name]; keep {
			continue
		}
		if err := r.ws.Delete(name); err != nil {
			return errors.IOFailure("delete_working_set", name, err)
		}
	}
	for name, hash := range snapshot {
		content, err := r.blobs.Get(hash)
		if err != nil {
			return err
		}
		if err := r.ws.Write(name, content); err != nil {
			return errors.IOFailure("write_working_set", name, err)
		}
	}
	return nil
}

// Get returns the commit with the given id.
func (r *Repository) Get(id commit.ID) (*commit.Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Get(id)
}

// History returns the commits of a branch, newest first. An empty name
// means the current branch.
func (r *Repository) History(branchName string) ([]*commit.Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if branchName == "" {
		branchName = r.branches.Current()
	}
	b, err := r.branches.Get(branchName)
	if err != nil {
		return nil, errors.NotFound("history", branchName)
	}
	commits, err := r.graph.Resolve(b.History)
	if err != nil {
		return nil, err
	}
	slices.Reverse(commits)
	return commits, nil
}

// ReadBlob returns the content stored under hash.
func (r *Repository) ReadBlob(hash string) ([]byte, error) {
	return r.blobs.Get(hash)
}

// PutBlob stores content, for callers preparing merge resolutions.
func (r *Repository) PutBlob(content []byte) (string, error) {
	return r.blobs.Put(content)
}

func (r *Repository) head() (commit.ID, map[string]string, error) {
	b, err := r.branches.Get(r.branches.Current())
	if err != nil {
		return 0, nil, errors.InvalidState("head", r.branches.Current(), "current branch missing")
	}
	snapshot, err := r.graph.Snapshot(b.Head)
	if err != nil {
		return 0, nil, errors.InvalidState("head", b.Name, "head %s references a missing commit", b.Head)
	}
	return b.Head, snapshot, nil
}
