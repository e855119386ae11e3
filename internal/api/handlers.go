package api

import (
	"context"
	"encoding/json"
	"net/http"

	"twig/internal/branch"
	"twig/internal/commit"
	"twig/internal/errors"
	"twig/internal/merge"
	"twig/internal/repository"
	"twig/shared/types"
)

// Repository is the part of *repository.Repository the handlers use.
type Repository interface {
	Commit(branchName, message string) (*commit.Commit, error)
	Get(id commit.ID) (*commit.Commit, error)
	History(branchName string) ([]*commit.Commit, error)
	CreateBranch(name, source string) (*branch.Branch, error)
	SwitchBranch(name string) error
	ListBranches() map[string]commit.ID
	CurrentBranch() string
	Merge(ctx context.Context, opts repository.MergeOptions) (*repository.MergeResult, error)
	Status() ([]shared.Change, error)
	DiffCommit(id commit.ID) ([]shared.FileDiff, error)
}

type Handler struct {
	repo   Repository
	policy AuthorizationPolicy
}

func NewHandler(repo Repository, policy AuthorizationPolicy) *Handler {
	if policy == nil {
		policy = AllowAll{}
	}
	return &Handler{repo: repo, policy: policy}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /api/branches", h.ListBranches)
	mux.HandleFunc("POST /api/branches", h.CreateBranch)
	mux.HandleFunc("POST /api/branches/{name}/switch", h.SwitchBranch)
	mux.HandleFunc("GET /api/branches/{name}/history", h.History)

	mux.HandleFunc("POST /api/commits", h.Commit)
	mux.HandleFunc("GET /api/commits/{id}", h.GetCommit)
	mux.HandleFunc("GET /api/commits/{id}/diff", h.DiffCommit)

	mux.HandleFunc("POST /api/merges", h.Merge)
	mux.HandleFunc("GET /api/status", h.Status)
}

type errorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if e, ok := errors.As(err); ok {
		writeJSON(w, e.Code(), errorResponse{Type: string(e.Kind), Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Type: string(errors.KindIOFailure), Message: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Type: string(errors.KindInvalidArgument), Message: msg})
}

func (h *Handler) approve(w http.ResponseWriter, op Operation) bool {
	if h.policy.Approve(op) {
		return true
	}
	writeJSON(w, http.StatusForbidden, errorResponse{Type: "FORBIDDEN", Message: op.Name + " not permitted"})
	return false
}

func parseID(w http.ResponseWriter, r *http.Request) (commit.ID, bool) {
	id, err := commit.ParseID(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid commit id")
		return 0, false
	}
	return id, true
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current":  h.repo.CurrentBranch(),
		"branches": h.repo.ListBranches(),
	})
}

func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		From string `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	if !h.approve(w, Operation{Name: OpCreateBranch, Branch: req.Name}) {
		return
	}

	b, err := h.repo.CreateBranch(req.Name, req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) SwitchBranch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.approve(w, Operation{Name: OpSwitchBranch, Branch: name}) {
		return
	}
	if err := h.repo.SwitchBranch(name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"current": name})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	commits, err := h.repo.History(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commits)
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Branch  string `json:"branch"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Message == "" {
		badRequest(w, "message is required")
		return
	}
	if !h.approve(w, Operation{Name: OpCommit, Branch: req.Branch}) {
		return
	}

	c, err := h.repo.Commit(req.Branch, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCommit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	c, err := h.repo.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DiffCommit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	diffs, err := h.repo.DiffCommit(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diffs)
}

func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source      string            `json:"source"`
		Target      string            `json:"target"`
		Policy      merge.Policy      `json:"policy"`
		Resolutions map[string]string `json:"resolutions"`
		Advise      bool              `json:"advise"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Source == "" {
		badRequest(w, "source is required")
		return
	}
	target := req.Target
	if target == "" {
		target = h.repo.CurrentBranch()
	}
	if !h.approve(w, Operation{Name: OpMerge, Branch: target}) {
		return
	}

	result, err := h.repo.Merge(r.Context(), repository.MergeOptions{
		Source:      req.Source,
		Target:      req.Target,
		Policy:      req.Policy,
		Resolutions: req.Resolutions,
		Advise:      req.Advise,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !result.Committed() {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	changes, err := h.repo.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	if changes == nil {
		changes = []shared.Change{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"branch":  h.repo.CurrentBranch(),
		"changes": changes,
	})
}
