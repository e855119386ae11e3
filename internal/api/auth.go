package api

// Operation names a mutating request awaiting approval.
type Operation struct {
	Name   string `json:"name"`
	Branch string `json:"branch,omitempty"`
}

const (
	OpCommit       = "commit"
	OpCreateBranch = "create_branch"
	OpSwitchBranch = "switch_branch"
	OpMerge        = "merge"
)

// AuthorizationPolicy decides whether a mutation may run. It is consulted
// before the repository is touched.
type AuthorizationPolicy interface {
	Approve(op Operation) bool
}

// PolicyFunc adapts a function to AuthorizationPolicy.
type PolicyFunc func(op Operation) bool

func (f PolicyFunc) Approve(op Operation) bool {
	return f(op)
}

// AllowAll approves everything.
type AllowAll struct{}

func (AllowAll) Approve(Operation) bool { return true }

// ReadOnly denies every mutation.
type ReadOnly struct{}

func (ReadOnly) Approve(Operation) bool { return false }
