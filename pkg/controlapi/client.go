// Package controlapi talks to the Monterosa Control API and its static CDN:
// host resolution, bearer-authenticated requests, error normalization and
// the content-type lookup used to populate element pickers.
package controlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxResponseBytes = 4 << 20
	defaultTimeout   = 30 * time.Second
	jsonAPIMediaType = "application/vnd.api+json"
	tracerName       = "github.com/bturcanu/monterosa-connector/pkg/controlapi"
)

// Target selects which host a Request is sent to.
type Target int

const (
	// TargetAPI is the authenticated Studio API.
	TargetAPI Target = iota
	// TargetCDN is the unauthenticated static document CDN.
	TargetCDN
)

func (t Target) String() string {
	if t == TargetCDN {
		return "cdn"
	}
	return "api"
}

// Request is a fully built upstream call. Body is marshalled as JSON when
// non-nil; a json.RawMessage is sent verbatim.
type Request struct {
	Method string
	Target Target
	Path   string
	Query  url.Values
	Body   any
}

// Config configures a Client. Empty base URLs are resolved from the
// credentials' environment.
type Config struct {
	Credentials Credentials
	APIBase     string
	CDNBase     string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client executes Requests against one environment with one token.
type Client struct {
	creds      Credentials
	apiBase    string
	cdnBase    string
	httpClient *http.Client
	log        *slog.Logger
	tracer     trace.Tracer
}

// NewClient validates the credentials and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		creds:      cfg.Credentials,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		cdnBase:    strings.TrimRight(cfg.CDNBase, "/"),
		httpClient: cfg.HTTPClient,
		log:        cfg.Logger,
		tracer:     otel.Tracer(tracerName),
	}
	if c.apiBase == "" {
		c.apiBase = ResolveAPIBase(cfg.Credentials.Environment)
	}
	if c.cdnBase == "" {
		c.cdnBase = ResolveCDNBase(cfg.Credentials.Environment)
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

// APIBase returns the resolved Studio API origin.
func (c *Client) APIBase() string { return c.apiBase }

// CDNBase returns the resolved CDN origin.
func (c *Client) CDNBase() string { return c.cdnBase }

// URL returns the absolute URL a Request would be sent to.
func (c *Client) URL(req Request) string {
	base := c.apiBase
	if req.Target == TargetCDN {
		base = c.cdnBase
	}
	u := base + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

// Do sends req and returns the raw response body. An empty body yields a nil
// message. Non-2xx replies are returned as *UpstreamError.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	return c.send(ctx, req.Method, c.URL(req), req.Target == TargetAPI, req.Body)
}

// GetJSON fetches an absolute URL and decodes it into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, authenticated bool, out any) error {
	raw, err := c.send(ctx, http.MethodGet, rawURL, authenticated, nil)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("controlapi.GetJSON %s: empty response", rawURL)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("controlapi.GetJSON decode %s: %w", rawURL, err)
	}
	return nil
}

// Me calls the token introspection endpoint; used to test credentials.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Target: TargetAPI, Path: "/api/v2/me"})
}

func (c *Client) send(ctx context.Context, method, rawURL string, authenticated bool, body any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "controlapi "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", rawURL),
	)

	var reqBody io.Reader
	if body != nil {
		payload, err := marshalBody(body)
		if err != nil {
			span.SetStatus(codes.Error, "marshal body")
			return nil, fmt.Errorf("controlapi marshal body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		span.SetStatus(codes.Error, "new request")
		return nil, fmt.Errorf("controlapi new request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", jsonAPIMediaType)
	}
	if authenticated {
		httpReq.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, fmt.Errorf("controlapi %s %s: %w", method, redactQuery(rawURL), err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.SetStatus(codes.Error, "read response")
		return nil, fmt.Errorf("controlapi read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := &UpstreamError{Status: resp.StatusCode, Body: respBody}
		span.SetStatus(codes.Error, upErr.Error())
		c.log.ErrorContext(ctx, "monterosa request failed",
			"method", method,
			"url", redactQuery(rawURL),
			"status", resp.StatusCode,
			"description", Normalize(upErr),
		)
		if body != nil {
			c.log.DebugContext(ctx, "monterosa failed request body", "body", body)
		}
		return nil, upErr
	}

	respBody = bytes.TrimSpace(respBody)
	if len(respBody) == 0 {
		return nil, nil
	}
	if !json.Valid(respBody) {
		span.SetStatus(codes.Error, "invalid json")
		return nil, fmt.Errorf("controlapi %s %s: response is not valid JSON", method, redactQuery(rawURL))
	}
	return json.RawMessage(respBody), nil
}

func marshalBody(body any) ([]byte, error) {
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(body)
}

// redactQuery drops the query string from logged URLs.
func redactQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
