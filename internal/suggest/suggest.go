// Package suggest is the hook for an external merge assistant. A Suggester
// sees both sides of a conflicting file and may propose merged text. It is
// advisory only: nothing it returns changes a merge.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Suggester proposes a merged text for one conflict.
type Suggester interface {
	Suggest(ctx context.Context, sourceText, targetText string) (string, error)
}

// Func adapts a plain function to Suggester.
type Func func(ctx context.Context, sourceText, targetText string) (string, error)

func (f Func) Suggest(ctx context.Context, sourceText, targetText string) (string, error) {
	return f(ctx, sourceText, targetText)
}

// Advise calls s with a deadline of timeout. It reports false when s fails,
// returns an empty suggestion or misses the deadline.
func Advise(ctx context.Context, s Suggester, timeout time.Duration, sourceText, targetText string) (string, bool) {
	if s == nil {
		return "", false
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.Suggest(ctx, sourceText, targetText)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil || r.text == "" {
			return "", false
		}
		return r.text, true
	case <-ctx.Done():
		return "", false
	}
}

// HTTP posts both texts as JSON to a suggestion service and reads back
// {"suggestion": "..."}.
type HTTP struct {
	url        string
	httpClient *http.Client
}

type request struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type response struct {
	Suggestion string `json:"suggestion"`
}

func NewHTTP(url string) *HTTP {
	return &HTTP{
		url: url,
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
	}
}

func (h *HTTP) Suggest(ctx context.Context, sourceText, targetText string) (string, error) {
	data, err := json.Marshal(request{Source: sourceText, Target: targetText})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Suggestion, nil
}
