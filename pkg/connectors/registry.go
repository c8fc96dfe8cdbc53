package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const maxResponseBytes = 8 << 20

// Registry maps tool names to connector base URLs. It is the host-side
// client of the /exec contract.
type Registry struct {
	mu            sync.RWMutex
	routes        map[string]string // tool → base URL
	internalToken string
	apiKey        string
	httpClient    *http.Client
}

// NewRegistry creates a connector registry. internalToken, when set, is sent
// as X-Internal-Token on every call.
func NewRegistry(internalToken string) *Registry {
	return &Registry{
		routes:        make(map[string]string),
		internalToken: internalToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Register maps a tool name to a connector URL.
func (r *Registry) Register(tool, baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[tool] = strings.TrimRight(baseURL, "/")
}

// Exec routes the request to the correct connector and returns the result.
func (r *Registry) Exec(ctx context.Context, req ExecRequest) (*ExecResponse, error) {
	r.mu.RLock()
	baseURL, ok := r.routes[req.Tool]
	apiKey := r.apiKey
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no connector registered for tool %q", req.Tool)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("connector marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/exec", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("connector new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.internalToken != "" {
		httpReq.Header.Set("X-Internal-Token", r.internalToken)
	}
	if apiKey != "" {
		httpReq.Header.Set("X-API-Key", apiKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("connector request to %s: %w", req.Tool, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("connector read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("connector %s returned %d: %s", req.Tool, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var execResp ExecResponse
	if err := json.Unmarshal(respBody, &execResp); err != nil {
		return nil, fmt.Errorf("connector decode response: %w", err)
	}

	return &execResp, nil
}

// SetTimeout overrides the default HTTP client timeout for connector calls.
func (r *Registry) SetTimeout(d time.Duration) {
	r.httpClient.Timeout = d
}

// SetAPIKey sets the key presented to connectors that authenticate callers.
func (r *Registry) SetAPIKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiKey = key
}
