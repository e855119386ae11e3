// Package client talks to a twig server over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"twig/internal/branch"
	"twig/internal/commit"
	"twig/internal/errors"
	"twig/internal/repository"
	"twig/shared/types"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
	}
}

// Branches returns the current branch and every branch head.
func (c *Client) Branches(ctx context.Context) (string, map[string]commit.ID, error) {
	var result struct {
		Current  string               `json:"current"`
		Branches map[string]commit.ID `json:"branches"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/branches", nil, http.StatusOK, &result); err != nil {
		return "", nil, err
	}
	return result.Current, result.Branches, nil
}

func (c *Client) CreateBranch(ctx context.Context, name, from string) (*branch.Branch, error) {
	var b branch.Branch
	body := map[string]string{"name": name, "from": from}
	if err := c.do(ctx, http.MethodPost, "/api/branches", body, http.StatusCreated, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) SwitchBranch(ctx context.Context, name string) error {
	path := fmt.Sprintf("/api/branches/%s/switch", url.PathEscape(name))
	return c.do(ctx, http.MethodPost, path, nil, http.StatusOK, nil)
}

func (c *Client) History(ctx context.Context, name string) ([]*commit.Commit, error) {
	var commits []*commit.Commit
	path := fmt.Sprintf("/api/branches/%s/history", url.PathEscape(name))
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

func (c *Client) Commit(ctx context.Context, branchName, message string) (*commit.Commit, error) {
	var result commit.Commit
	body := map[string]string{"branch": branchName, "message": message}
	if err := c.do(ctx, http.MethodPost, "/api/commits", body, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Get(ctx context.Context, id commit.ID) (*commit.Commit, error) {
	var result commit.Commit
	if err := c.do(ctx, http.MethodGet, "/api/commits/"+id.String(), nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DiffCommit(ctx context.Context, id commit.ID) ([]shared.FileDiff, error) {
	var diffs []shared.FileDiff
	path := fmt.Sprintf("/api/commits/%s/diff", id)
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &diffs); err != nil {
		return nil, err
	}
	return diffs, nil
}

// Merge posts a merge request. Both a committed merge and one left
// unresolved are successful responses.
func (c *Client) Merge(ctx context.Context, opts repository.MergeOptions) (*repository.MergeResult, error) {
	body := map[string]any{
		"source":      opts.Source,
		"target":      opts.Target,
		"policy":      opts.Policy,
		"resolutions": opts.Resolutions,
		"advise":      opts.Advise,
	}
	var result repository.MergeResult
	if err := c.do(ctx, http.MethodPost, "/api/merges", body, 0, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Status(ctx context.Context) ([]shared.Change, error) {
	var result struct {
		Changes []shared.Change `json:"changes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return result.Changes, nil
}

// ErrForbidden is returned when the server's policy refuses a mutation.
var ErrForbidden = stderrors.New("operation not permitted")

// do sends body as JSON and decodes the response into out. want is the
// expected status; 0 accepts any 2xx. Error responses are turned back into
// *errors.Error so callers can match kinds.
func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == want
	if want == 0 {
		ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	}
	if !ok {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Type == "" {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w", body.Message, ErrForbidden)
	}
	return &errors.Error{
		Kind: errors.Kind(body.Type),
		Op:   "remote",
		Err:  stderrors.New(body.Message),
	}
}
