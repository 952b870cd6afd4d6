package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext drives the registry over HTTP and remembers the last response.
type TestContext struct {
	baseURL string
	client  *http.Client

	org  string
	user string

	lastStatus int
	lastBody   []byte
	lastHeader http.Header
}

// NewTestContext creates a context against a running registry.
func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.org, tc.user = "", ""
	tc.lastStatus, tc.lastBody, tc.lastHeader = 0, nil, nil
}

// ActAs sets the identity headers sent with subsequent requests.
func (tc *TestContext) ActAs(org, user string) {
	tc.org, tc.user = org, user
}

// Caller returns the current identity.
func (tc *TestContext) Caller() (org, user string) {
	return tc.org, tc.user
}

// Do sends a request as the current caller and records the response.
func (tc *TestContext) Do(ctx context.Context, method, path string) error {
	status, body, header, err := tc.Send(ctx, method, path, tc.org, tc.user)
	if err != nil {
		return err
	}
	tc.lastStatus, tc.lastBody, tc.lastHeader = status, body, header
	return nil
}

// Send performs a request without touching the recorded response. Safe for
// concurrent use.
func (tc *TestContext) Send(ctx context.Context, method, path, org, user string) (int, []byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+path, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	if org != "" {
		req.Header.Set("CVE-API-ORG", org)
		req.Header.Set("CVE-API-USER", user)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, resp.Header, nil
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.lastHeader == nil {
		return ""
	}
	return tc.lastHeader.Get(name)
}

// GetResponseField decodes the last body as an object and returns one field.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, tc.lastBody)
	}
	return v, nil
}
