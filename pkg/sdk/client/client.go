// Package client is the host-side Go client for a running Monterosa
// connector: invocations, content-type options and credential checks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/connectors"
	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/types"
	"github.com/google/uuid"
)

const toolName = "monterosa"

type Client struct {
	baseURL       string
	apiKey        string
	internalToken string
	httpClient    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 45 * time.Second},
	}
}

// WithInternalToken sets the X-Internal-Token presented on /exec.
func (c *Client) WithInternalToken(token string) *Client {
	c.internalToken = token
	return c
}

// Exec runs one operation. A failed operation is a successful call whose
// response has Status "error".
func (c *Client) Exec(ctx context.Context, resource, operation string, params any, creds *controlapi.Credentials) (*connectors.ExecResponse, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("client.Exec marshal params: %w", err)
	}
	req := connectors.ExecRequest{
		EventID:     uuid.NewString(),
		Tool:        toolName,
		Resource:    resource,
		Action:      operation,
		Params:      raw,
		Credentials: creds,
	}
	var resp connectors.ExecResponse
	if err := c.post(ctx, "/exec", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ContentTypes lists the element content types of a project.
func (c *Client) ContentTypes(ctx context.Context, creds *controlapi.Credentials, projectID string) ([]controlapi.ContentTypeOption, error) {
	body := struct {
		Credentials *controlapi.Credentials `json:"credentials"`
		ProjectID   string                  `json:"project_id"`
	}{creds, projectID}
	var options []controlapi.ContentTypeOption
	if err := c.post(ctx, "/v1/options/content-types", body, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// TestCredentials returns nil when the token is accepted upstream.
func (c *Client) TestCredentials(ctx context.Context, creds *controlapi.Credentials) error {
	body := struct {
		Credentials *controlapi.Credentials `json:"credentials"`
	}{creds}
	var out struct {
		Status string `json:"status"`
	}
	return c.post(ctx, "/v1/credentials/test", body, &out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}
	if c.internalToken != "" {
		httpReq.Header.Set("X-Internal-Token", c.internalToken)
	}
	return c.doJSON(httpReq, out)
}

// doJSON decodes a 2xx body into out. Structured failures come back as
// *types.APIError with HTTPCode set.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr types.APIError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			apiErr.HTTPCode = resp.StatusCode
			return &apiErr
		}
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}
