/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package daytonaapi is the thin client over the Daytona Admin API that
// the autoscaler and preview proxy both depend on. Everything else about
// the API (sandbox/snapshot/volume/file/process CRUD) is out of scope per
// spec.md §1 — this package only covers the handful of endpoints the
// autoscaler and the proxy call.
package daytonaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/caredai/daytona/pkg/errkind"
)

// Runner mirrors the wire shape of a runner as reported by the Admin API.
type Runner struct {
	ID               string  `json:"id"`
	Domain           string  `json:"domain"`
	CPUCapacity      float64 `json:"cpuCapacity"`
	MemoryCapacity   float64 `json:"memoryCapacity"`
	AllocatedCPU     float64 `json:"allocatedCpu"`
	AllocatedMemory  float64 `json:"allocatedMemory"`
	AllocatedDisk    float64 `json:"allocatedDisk"`
	StartedSandboxes int     `json:"startedSandboxes"`
	SnapshotCount    int     `json:"snapshotCount"`
	Unschedulable    bool    `json:"unschedulable"`
}

// Client is the Admin API surface this repository depends on. It is an
// interface so the autoscaler and proxy can be tested against a fake.
type Client interface {
	// ListRunners returns every runner registered in regionId.
	// HTTPClient bounds the call to at most 10 seconds, per spec.md §4.1.
	ListRunners(ctx context.Context, regionID string) ([]Runner, error)

	// ValidateBearerForSandbox reports whether bearer authorizes access to
	// sandboxID.
	ValidateBearerForSandbox(ctx context.Context, sandboxID, bearer string) (bool, error)

	// ValidateAuthKeyForSandbox reports whether authKey authorizes access
	// to sandboxID.
	ValidateAuthKeyForSandbox(ctx context.Context, sandboxID, authKey string) (bool, error)

	// ExchangeSignedPreviewToken trades a signed preview URL token for the
	// sandbox id it was minted for.
	ExchangeSignedPreviewToken(ctx context.Context, token string, port int) (string, error)

	// GetAuthURL computes the upstream URL an unauthenticated client should
	// be redirected to for idOrToken.
	GetAuthURL(ctx context.Context, idOrToken string, requestHost string) (string, error)

	// ResolveSandboxUpstream locates the runner currently hosting
	// sandboxID and returns the base URL the proxy should forward an
	// authenticated request for port to. This is the scheduling lookup
	// spec.md §1 places outside the core's scope ("the Daytona API's
	// job"); the proxy only calls it after C7 has already authenticated
	// the request.
	ResolveSandboxUpstream(ctx context.Context, sandboxID string, port int) (*url.URL, error)
}

// HTTPClient is the production Client, a thin wrapper over net/http with
// the API key attached to every call (spec.md §6: "bearer added as
// Authorization: Bearer <key> on every outbound call").
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient builds an HTTPClient against baseURL, authenticating with
// apiKey. httpClient may be nil, in which case a client with a 15 second
// timeout is used.
func NewHTTPClient(baseURL, apiKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errkind.Wrap(errkind.TransientUpstream, fmt.Errorf("encoding request body: %w", err))
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errkind.Wrap(errkind.TransientUpstream, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errkind.Wrap(errkind.TransientUpstream, fmt.Errorf("calling %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errkind.Wrap(errkind.TransientUpstream,
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(payload)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errkind.Wrap(errkind.TransientUpstream, fmt.Errorf("decoding response from %s %s: %w", method, path, err))
	}
	return nil
}

func (c *HTTPClient) ListRunners(ctx context.Context, regionID string) ([]Runner, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out []Runner
	err := c.do(ctx, http.MethodGet, "/api/runners", url.Values{"regionId": {regionID}}, nil, &out)
	return out, err
}

func (c *HTTPClient) ValidateBearerForSandbox(ctx context.Context, sandboxID, bearer string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	err := c.do(ctx, http.MethodPost, "/api/preview/validate-bearer", nil, map[string]string{
		"sandboxId": sandboxID,
		"bearer":    bearer,
	}, &out)
	return out.Valid, err
}

func (c *HTTPClient) ValidateAuthKeyForSandbox(ctx context.Context, sandboxID, authKey string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	err := c.do(ctx, http.MethodPost, "/api/preview/validate-auth-key", nil, map[string]string{
		"sandboxId": sandboxID,
		"authKey":   authKey,
	}, &out)
	return out.Valid, err
}

func (c *HTTPClient) ExchangeSignedPreviewToken(ctx context.Context, token string, port int) (string, error) {
	var out struct {
		SandboxID string `json:"sandboxId"`
	}
	err := c.do(ctx, http.MethodPost, "/api/preview/exchange-token", nil, map[string]any{
		"token": token,
		"port":  port,
	}, &out)
	return out.SandboxID, err
}

func (c *HTTPClient) GetAuthURL(ctx context.Context, idOrToken, requestHost string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, http.MethodGet, "/api/preview/auth-url", url.Values{
		"idOrToken": {idOrToken},
		"host":      {requestHost},
	}, nil, &out)
	return out.URL, err
}

func (c *HTTPClient) ResolveSandboxUpstream(ctx context.Context, sandboxID string, port int) (*url.URL, error) {
	var out struct {
		BaseURL string `json:"baseUrl"`
	}
	err := c.do(ctx, http.MethodGet, "/api/sandboxes/"+sandboxID+"/upstream", url.Values{
		"port": {fmt.Sprintf("%d", port)},
	}, nil, &out)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(out.BaseURL)
	if err != nil {
		return nil, errkind.Wrap(errkind.TransientUpstream, fmt.Errorf("parsing upstream base url %q: %w", out.BaseURL, err))
	}
	return u, nil
}
