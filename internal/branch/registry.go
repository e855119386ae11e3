package branch

import (
	"maps"
	"slices"
	"strings"
	"unicode"

	"twig/internal/commit"
	"twig/internal/errors"
)

// Branch is a named pointer into the commit graph. Head is 0 until the
// first commit lands on it.
type Branch struct {
	Name    string      `json:"name"`
	Head    commit.ID   `json:"head"`
	History []commit.ID `json:"history"`
}

func (b *Branch) Clone() *Branch {
	out := *b
	out.History = slices.Clone(b.History)
	return &out
}

// Registry tracks branches and the current-branch pointer. Like
// commit.Graph it is mutated only on clones owned by a single writer.
type Registry struct {
	branches map[string]*Branch
	current  string
}

// NewRegistry returns a registry holding one empty, current branch.
func NewRegistry(defaultBranch string) (*Registry, error) {
	if err := ValidateName(defaultBranch); err != nil {
		return nil, err
	}
	return &Registry{
		branches: map[string]*Branch{defaultBranch: {Name: defaultBranch}},
		current:  defaultBranch,
	}, nil
}

// Restore rebuilds a registry from persisted branches, checking that every
// head and history entry exists in the graph.
func Restore(branches []*Branch, current string, graph *commit.Graph) (*Registry, error) {
	r := &Registry{branches: make(map[string]*Branch, len(branches)), current: current}
	for _, b := range branches {
		if b == nil {
			continue
		}
		if _, dup := r.branches[b.Name]; dup {
			return nil, errors.InvalidState("restore_branches", b.Name, "duplicate branch")
		}
		if b.Head != 0 && !graph.Has(b.Head) {
			return nil, errors.InvalidState("restore_branches", b.Name, "head %s references a missing commit", b.Head)
		}
		for _, id := range b.History {
			if !graph.Has(id) {
				return nil, errors.InvalidState("restore_branches", b.Name, "history references missing commit %s", id)
			}
		}
		if n := len(b.History); (n == 0) != (b.Head == 0) || (n > 0 && b.History[n-1] != b.Head) {
			return nil, errors.InvalidState("restore_branches", b.Name, "head does not match history")
		}
		r.branches[b.Name] = b.Clone()
	}
	if _, ok := r.branches[current]; !ok {
		return nil, errors.InvalidState("restore_branches", current, "current branch missing")
	}
	return r, nil
}

// ValidateName rejects names that cannot be used as branch names.
func ValidateName(name string) error {
	if name == "" {
		return errors.InvalidArgument("create_branch", name, "branch name is required")
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return errors.InvalidArgument("create_branch", name, "invalid branch name")
	}
	if strings.IndexFunc(name, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return errors.InvalidArgument("create_branch", name, "branch name contains whitespace")
	}
	return nil
}

// Create adds a branch whose head and history equal source's. An empty
// source means the current branch.
func (r *Registry) Create(name, source string) (*Branch, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if source == "" {
		source = r.current
	}
	if _, ok := r.branches[name]; ok {
		return nil, errors.AlreadyExists("create_branch", name)
	}
	src, ok := r.branches[source]
	if !ok {
		return nil, errors.NotFound("create_branch", source)
	}

	b := &Branch{
		Name:    name,
		Head:    src.Head,
		History: slices.Clone(src.History),
	}
	r.branches[name] = b
	return b.Clone(), nil
}

func (r *Registry) Get(name string) (*Branch, error) {
	b, ok := r.branches[name]
	if !ok {
		return nil, errors.NotFound("get_branch", name)
	}
	return b.Clone(), nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.branches[name]
	return ok
}

func (r *Registry) Current() string {
	return r.current
}

func (r *Registry) SetCurrent(name string) error {
	if _, ok := r.branches[name]; !ok {
		return errors.NotFound("switch_branch", name)
	}
	r.current = name
	return nil
}

// Advance appends id to the branch history and moves its head.
func (r *Registry) Advance(name string, id commit.ID) error {
	b, ok := r.branches[name]
	if !ok {
		return errors.NotFound("advance_branch", name)
	}
	// Replace rather than mutate: clones share Branch values.
	next := b.Clone()
	next.History = append(next.History, id)
	next.Head = id
	r.branches[name] = next
	return nil
}

// List maps every branch name to its head.
func (r *Registry) List() map[string]commit.ID {
	out := make(map[string]commit.ID, len(r.branches))
	for name, b := range r.branches {
		out[name] = b.Head
	}
	return out
}

// Branches returns copies sorted by name, for persistence.
func (r *Registry) Branches() []*Branch {
	out := make([]*Branch, 0, len(r.branches))
	for _, name := range slices.Sorted(maps.Keys(r.branches)) {
		out = append(out, r.branches[name].Clone())
	}
	return out
}

func (r *Registry) Clone() *Registry {
	return &Registry{
		branches: maps.Clone(r.branches),
		current:  r.current,
	}
}
