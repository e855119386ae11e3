// Package merge computes three-way merges of snapshots. It works purely on
// filename -> blob hash maps and never looks at file contents.
package merge

import (
	"fmt"
	"maps"

	"twig/internal/commit"
	"twig/shared/utils"
)

// Policy picks the winning side of a conflict.
type Policy string

const (
	// PolicyTarget keeps the target branch's version. This is the default.
	PolicyTarget Policy = "target"
	// PolicySource takes the incoming branch's version.
	PolicySource Policy = "source"
	// PolicyManual resolves nothing; conflicts without an explicit
	// resolution leave the merge uncommitted.
	PolicyManual Policy = "manual"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyTarget, PolicySource, PolicyManual:
		return p, nil
	case "":
		return PolicyTarget, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", s)
	}
}

// Conflict is a file changed on both sides in different ways. An empty hash
// means the file does not exist on that side.
type Conflict struct {
	Filename   string `json:"filename"`
	BaseHash   string `json:"base_hash"`
	SourceHash string `json:"source_hash"`
	TargetHash string `json:"target_hash"`
}

// Input is one three-way merge.
type Input struct {
	Base   map[string]string
	Source map[string]string
	Target map[string]string

	// Resolutions override the policy per conflicting file. An empty hash
	// deletes the file.
	Resolutions map[string]string

	// Policy overrides the engine default when set.
	Policy Policy
}

// Outcome is the merged snapshot plus every conflict encountered.
// Unresolved lists the conflicts absent from Snapshot.
type Outcome struct {
	Snapshot   map[string]string
	Conflicts  []Conflict
	Unresolved []Conflict
}

type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	if policy == "" {
		policy = PolicyTarget
	}
	return &Engine{policy: policy}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Merge classifies every file and applies conflict resolution.
func (e *Engine) Merge(in Input) (*Outcome, error) {
	policy := in.Policy
	if policy == "" {
		policy = e.policy
	}

	merged, conflicts := Classify(in.Base, in.Source, in.Target)
	out := &Outcome{Snapshot: merged, Conflicts: conflicts}

	conflicting := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		conflicting[c.Filename] = true
	}
	for name := range in.Resolutions {
		if !conflicting[name] {
			return nil, fmt.Errorf("resolution given for %q which is not in conflict", name)
		}
	}

	for _, c := range conflicts {
		hash, ok := in.Resolutions[c.Filename]
		if !ok {
			switch policy {
			case PolicyTarget:
				hash = c.TargetHash
			case PolicySource:
				hash = c.SourceHash
			default:
				out.Unresolved = append(out.Unresolved, c)
				continue
			}
		}
		if hash != "" {
			merged[c.Filename] = hash
		}
	}

	return out, nil
}

// Classify performs the per-file three-way comparison. Conflicting files are
// left out of the returned snapshot. Conflicts are ordered by filename.
func Classify(base, source, target map[string]string) (map[string]string, []Conflict) {
	names := maps.Clone(base)
	if names == nil {
		names = map[string]string{}
	}
	maps.Copy(names, source)
	maps.Copy(names, target)

	merged := make(map[string]string, len(names))
	var conflicts []Conflict

	for _, name := range utils.SortedKeys(names) {
		b, s, t := base[name], source[name], target[name]

		var hash string
		switch {
		case s == t:
			hash = s
		case s != b && t == b:
			hash = s
		case t != b && s == b:
			hash = t
		default:
			conflicts = append(conflicts, Conflict{
				Filename:   name,
				BaseHash:   b,
				SourceHash: s,
				TargetHash: t,
			})
			continue
		}
		if hash != "" {
			merged[name] = hash
		}
	}

	return merged, conflicts
}

// Ancestry is the part of commit.Graph the merge base search needs.
type Ancestry interface {
	Ancestors(id commit.ID) (map[commit.ID]int, error)
}

// Base returns the common ancestor of a and b closest to both heads: the
// smallest summed distance wins, ties go to the newer commit. ok is false
// when the histories are disjoint.
func Base(g Ancestry, a, b commit.ID) (base commit.ID, ok bool, err error) {
	da, err := g.Ancestors(a)
	if err != nil {
		return 0, false, err
	}
	db, err := g.Ancestors(b)
	if err != nil {
		return 0, false, err
	}

	best := -1
	for id, x := range da {
		y, common := db[id]
		if !common {
			continue
		}
		if d := x + y; best < 0 || d < best || (d == best && id > base) {
			best = d
			base = id
		}
	}
	return base, best >= 0, nil
}
