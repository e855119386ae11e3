package commit

import (
	"maps"
	"slices"
	"strconv"
	"time"
)

// ID identifies a commit. IDs are assigned in increasing order starting at 1;
// the zero ID means "no commit".
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses the decimal form produced by String.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}

// Commit is an immutable snapshot of tracked files plus metadata.
type Commit struct {
	ID        ID                `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Snapshot  map[string]string `json:"snapshot"` // filename -> blob hash
	Parents   []ID              `json:"parents"`
}

// Clone returns a deep copy so callers can never reach graph-owned state.
func (c *Commit) Clone() *Commit {
	if c == nil {
		return nil
	}
	out := *c
	out.Snapshot = maps.Clone(c.Snapshot)
	if out.Snapshot == nil {
		out.Snapshot = map[string]string{}
	}
	out.Parents = slices.Clone(c.Parents)
	return &out
}

func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// FirstParent returns the first parent, or 0 for a root commit.
func (c *Commit) FirstParent() ID {
	if len(c.Parents) == 0 {
		return 0
	}
	return c.Parents[0]
}
