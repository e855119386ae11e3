package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"twig/internal/branch"
	"twig/internal/commit"
	"twig/internal/repository"
	"twig/internal/storage"
	"twig/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	mux  *http.ServeMux
	repo *repository.Repository
	ws   *workspace.Memory
}

func setupServer(t *testing.T, policy AuthorizationPolicy) *testServer {
	t.Helper()
	backend, err := storage.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ws := workspace.NewMemory()
	repo, err := repository.Open(repository.Options{Backend: backend, WorkingSet: ws})
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(repo, policy).Register(mux)
	return &testServer{mux: mux, repo: repo, ws: ws}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	s := setupServer(t, nil)
	rec := s.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestCommitAndGet(t *testing.T) {
	s := setupServer(t, nil)
	require.NoError(t, s.ws.Write("a.txt", []byte("1")))

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{name: "valid commit", body: map[string]string{"message": "first"}, wantStatus: http.StatusCreated},
		{name: "missing message", body: map[string]string{}, wantStatus: http.StatusBadRequest},
		{name: "unknown branch", body: map[string]string{"message": "x", "branch": "nope"}, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, "POST", "/api/commits", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	rec := s.do(t, "GET", "/api/commits/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[commit.Commit](t, rec)
	assert.Equal(t, "first", c.Message)
	assert.Contains(t, c.Snapshot, "a.txt")

	rec = s.do(t, "GET", "/api/commits/7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, rec).Type)

	rec = s.do(t, "GET", "/api/commits/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "GET", "/api/commits/1/diff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	diffs := decode[[]map[string]any](t, rec)
	require.Len(t, diffs, 1)
	assert.Equal(t, "add", diffs[0]["type"])
}

func TestBranches(t *testing.T) {
	s := setupServer(t, nil)
	require.NoError(t, s.ws.Write("a.txt", []byte("1")))
	s.do(t, "POST", "/api/commits", map[string]string{"message": "base"})

	rec := s.do(t, "POST", "/api/branches", map[string]string{"name": "feature"})
	require.Equal(t, http.StatusCreated, rec.Code)
	b := decode[branch.Branch](t, rec)
	assert.Equal(t, commit.ID(1), b.Head)

	rec = s.do(t, "POST", "/api/branches", map[string]string{"name": "feature"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, "POST", "/api/branches", map[string]string{"name": "has space"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/branches/feature/switch", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "feature", s.repo.CurrentBranch())

	rec = s.do(t, "POST", "/api/branches/missing/switch", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "GET", "/api/branches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Current  string               `json:"current"`
		Branches map[string]commit.ID `json:"branches"`
	}](t, rec)
	assert.Equal(t, "feature", list.Current)
	assert.Equal(t, map[string]commit.ID{"main": 1, "feature": 1}, list.Branches)

	rec = s.do(t, "GET", "/api/branches/main/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]commit.Commit](t, rec), 1)
}

func TestMerge(t *testing.T) {
	s := setupServer(t, nil)
	require.NoError(t, s.ws.Write("a.txt", []byte("1")))
	s.do(t, "POST", "/api/commits", map[string]string{"message": "C1"})
	s.do(t, "POST", "/api/branches", map[string]string{"name": "feature"})
	s.do(t, "POST", "/api/branches/feature/switch", nil)
	require.NoError(t, s.ws.Write("a.txt", []byte("2")))
	s.do(t, "POST", "/api/commits", map[string]string{"message": "C2"})
	s.do(t, "POST", "/api/branches/main/switch", nil)
	require.NoError(t, s.ws.Write("a.txt", []byte("3")))
	s.do(t, "POST", "/api/commits", map[string]string{"message": "C3"})

	rec := s.do(t, "POST", "/api/merges", map[string]string{"source": "feature", "policy": "manual"})
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[repository.MergeResult](t, rec)
	assert.False(t, pending.Committed())
	assert.Len(t, pending.Unresolved, 1)

	rec = s.do(t, "POST", "/api/merges", map[string]string{"source": "feature"})
	require.Equal(t, http.StatusCreated, rec.Code)
	result := decode[repository.MergeResult](t, rec)
	assert.Equal(t, commit.ID(4), result.CommitID)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "a.txt", result.Conflicts[0].Filename)

	rec = s.do(t, "POST", "/api/merges", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/merges", map[string]string{"source": "feature", "policy": "coinflip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	s := setupServer(t, nil)

	rec := s.do(t, "GET", "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"branch":"main","changes":[]}`, rec.Body.String())

	require.NoError(t, s.ws.Write("new.txt", []byte("n")))
	rec = s.do(t, "GET", "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[struct {
		Changes []map[string]string `json:"changes"`
	}](t, rec)
	require.Len(t, status.Changes, 1)
	assert.Equal(t, "new.txt", status.Changes[0]["path"])
}

func TestAuthorizationPolicy(t *testing.T) {
	s := setupServer(t, ReadOnly{})
	require.NoError(t, s.ws.Write("a.txt", []byte("1")))

	for _, tc := range []struct {
		path string
		body any
	}{
		{"/api/commits", map[string]string{"message": "x"}},
		{"/api/branches", map[string]string{"name": "feature"}},
		{"/api/branches/main/switch", nil},
		{"/api/merges", map[string]string{"source": "other"}},
	} {
		rec := s.do(t, "POST", tc.path, tc.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, tc.path)
	}

	history, err := s.repo.History("")
	require.NoError(t, err)
	assert.Empty(t, history)

	// Reads stay available.
	rec := s.do(t, "GET", "/api/branches", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPolicyFunc_SeesOperation(t *testing.T) {
	var seen []Operation
	policy := PolicyFunc(func(op Operation) bool {
		seen = append(seen, op)
		return op.Branch != "protected"
	})
	s := setupServer(t, policy)

	rec := s.do(t, "POST", "/api/branches", map[string]string{"name": "protected"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, "POST", "/api/branches", map[string]string{"name": "open"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, []Operation{
		{Name: OpCreateBranch, Branch: "protected"},
		{Name: OpCreateBranch, Branch: "open"},
	}, seen)
}
