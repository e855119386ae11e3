package commit

import (
	"maps"
	"slices"
	"time"

	"twig/internal/errors"
)

// Graph holds every commit of a repository. It is not safe for concurrent
// mutation; the repository serializes writers and swaps in clones.
type Graph struct {
	commits map[ID]*Commit
	next    ID
}

func NewGraph() *Graph {
	return &Graph{
		commits: make(map[ID]*Commit),
		next:    1,
	}
}

// Restore rebuilds a graph from persisted commits. Every parent must be
// present and every id must be below next.
func Restore(commits []*Commit, next ID) (*Graph, error) {
	g := NewGraph()
	for _, c := range commits {
		if c == nil || c.ID == 0 {
			return nil, errors.InvalidState("restore_commits", "", "commit with empty id")
		}
		if _, dup := g.commits[c.ID]; dup {
			return nil, errors.InvalidState("restore_commits", c.ID.String(), "duplicate commit id")
		}
		g.commits[c.ID] = c.Clone()
		if c.ID >= g.next {
			g.next = c.ID + 1
		}
	}
	if next > g.next {
		g.next = next
	}

	for _, c := range g.commits {
		for _, p := range c.Parents {
			if _, ok := g.commits[p]; !ok {
				return nil, errors.InvalidState("restore_commits", c.ID.String(), "parent %s missing", p)
			}
		}
	}
	return g, nil
}

// Create appends a new commit. Parents must already exist.
func (g *Graph) Create(parents []ID, snapshot map[string]string, message string, ts time.Time) (*Commit, error) {
	for _, p := range parents {
		if _, ok := g.commits[p]; !ok {
			return nil, errors.NotFound("create_commit", p.String())
		}
	}

	c := &Commit{
		ID:        g.next,
		Timestamp: ts,
		Message:   message,
		Snapshot:  maps.Clone(snapshot),
		Parents:   slices.Clone(parents),
	}
	if c.Snapshot == nil {
		c.Snapshot = map[string]string{}
	}
	g.commits[c.ID] = c
	g.next++

	return c.Clone(), nil
}

// Get returns a copy of the commit with the given id.
func (g *Graph) Get(id ID) (*Commit, error) {
	c, ok := g.commits[id]
	if !ok {
		return nil, errors.NotFound("get_commit", id.String())
	}
	return c.Clone(), nil
}

func (g *Graph) Has(id ID) bool {
	_, ok := g.commits[id]
	return ok
}

// Snapshot returns a copy of a commit's snapshot; id 0 yields an empty one.
func (g *Graph) Snapshot(id ID) (map[string]string, error) {
	if id == 0 {
		return map[string]string{}, nil
	}
	c, ok := g.commits[id]
	if !ok {
		return nil, errors.NotFound("get_commit", id.String())
	}
	return maps.Clone(c.Snapshot), nil
}

// Next is the id the next Create will assign.
func (g *Graph) Next() ID {
	return g.next
}

func (g *Graph) Len() int {
	return len(g.commits)
}

// Clone copies the index. Commits themselves are immutable and shared.
func (g *Graph) Clone() *Graph {
	return &Graph{
		commits: maps.Clone(g.commits),
		next:    g.next,
	}
}

// Commits returns copies of all commits ordered by id, for persistence.
func (g *Graph) Commits() []*Commit {
	out := make([]*Commit, 0, len(g.commits))
	for _, id := range slices.Sorted(maps.Keys(g.commits)) {
		out = append(out, g.commits[id].Clone())
	}
	return out
}

// Ancestors walks every parent edge breadth-first from id and returns the
// distance of each reachable commit, id itself at 0.
func (g *Graph) Ancestors(id ID) (map[ID]int, error) {
	if _, ok := g.commits[id]; !ok {
		return nil, errors.NotFound("ancestors", id.String())
	}

	dist := map[ID]int{id: 0}
	queue := []ID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, ok := g.commits[cur]
		if !ok {
			return nil, errors.InvalidState("ancestors", cur.String(), "commit missing from graph")
		}
		for _, p := range c.Parents {
			if _, seen := dist[p]; seen {
				continue
			}
			dist[p] = dist[cur] + 1
			queue = append(queue, p)
		}
	}
	return dist, nil
}

// Resolve maps ids to commit copies, newest last as given.
func (g *Graph) Resolve(ids []ID) ([]*Commit, error) {
	out := make([]*Commit, 0, len(ids))
	for _, id := range ids {
		c, ok := g.commits[id]
		if !ok {
			return nil, errors.InvalidState("resolve_commits", id.String(), "commit missing from graph")
		}
		out = append(out, c.Clone())
	}
	return out, nil
}
