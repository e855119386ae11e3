// Status and diff records shared by the repository, the CLI and the API.
package shared

import "twig/internal/diff"

const (
	ChangeAdd    = "add"
	ChangeModify = "modify"
	ChangeDelete = "delete"
)

// Change describes one file that differs between two snapshots.
type Change struct {
	Path    string `json:"path"`
	Type    string `json:"type"`     // add, modify, delete
	OldHash string `json:"old_hash"` // empty for add
	NewHash string `json:"new_hash"` // empty for delete
}

// FileDiff pairs a Change with its rendered line diff.
type FileDiff struct {
	Change
	Result *diff.Result `json:"diff,omitempty"`
}
