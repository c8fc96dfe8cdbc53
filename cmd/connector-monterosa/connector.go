package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/audit"
	"github.com/bturcanu/monterosa-connector/pkg/auth"
	"github.com/bturcanu/monterosa-connector/pkg/connectors"
	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/dispatch"
	"github.com/bturcanu/monterosa-connector/pkg/requests"
	"github.com/google/uuid"
)

const toolName = "monterosa"

type invocationRecorder interface {
	Record(ctx context.Context, inv *audit.Invocation) error
}

// MonterosaConnector executes host invocations against the Control API.
// A client is built per call from the credentials the host supplies.
type MonterosaConnector struct {
	log        *slog.Logger
	dispatcher *dispatch.Dispatcher
	defaults   controlapi.Credentials
	apiBase    string
	cdnBase    string
	httpClient *http.Client
	recorder   invocationRecorder // nil when auditing is off
}

func (c *MonterosaConnector) client(creds *controlapi.Credentials) (*controlapi.Client, error) {
	var supplied controlapi.Credentials
	if creds != nil {
		supplied = *creds
	}
	return controlapi.NewClient(controlapi.Config{
		Credentials: supplied.WithDefaults(c.defaults),
		APIBase:     c.apiBase,
		CDNBase:     c.cdnBase,
		HTTPClient:  c.httpClient,
		Logger:      c.log,
	})
}

func (c *MonterosaConnector) Exec(ctx context.Context, req connectors.ExecRequest) connectors.ExecResponse {
	start := time.Now()
	records, err := c.exec(ctx, req)

	var resp connectors.ExecResponse
	if err != nil {
		resp = errorResponse(err)
	} else {
		resp = connectors.ExecResponse{Status: connectors.StatusSuccess, Items: records}
	}
	c.record(ctx, req, resp, dispatch.Classify(err), start)
	return resp
}

func (c *MonterosaConnector) exec(ctx context.Context, req connectors.ExecRequest) ([]json.RawMessage, error) {
	params, err := requests.ParseParams(req.Params)
	if err != nil {
		return nil, err
	}
	client, err := c.client(req.Credentials)
	if err != nil {
		return nil, err
	}
	return c.dispatcher.Dispatch(ctx, client, req.Resource, req.Action, params)
}

func errorResponse(err error) connectors.ExecResponse {
	var opErr *controlapi.OperationError
	if errors.As(err, &opErr) {
		return connectors.ExecResponse{
			Status:           connectors.StatusError,
			Error:            opErr.Message,
			ErrorDescription: opErr.Description,
		}
	}
	return connectors.ExecResponse{Status: connectors.StatusError, Error: err.Error()}
}

func (c *MonterosaConnector) record(ctx context.Context, req connectors.ExecRequest, resp connectors.ExecResponse, outcome string, start time.Time) {
	if c.recorder == nil {
		return
	}
	clientID := auth.ClientIDFromContext(ctx)
	if clientID == "" {
		clientID = auth.AnonymousClient
	}
	tool := req.Tool
	if tool == "" {
		tool = toolName
	}
	inv := &audit.Invocation{
		InvocationID: uuid.NewString(),
		EventID:      req.EventID,
		ClientID:     clientID,
		Tool:         tool,
		Resource:     req.Resource,
		Operation:    req.Action,
		Params:       req.Params,
		Status:       outcome,
		ErrorMsg:     resp.Error,
		ItemCount:    len(resp.Items),
		DurationMS:   time.Since(start).Milliseconds(),
		ReceivedAt:   start.UTC(),
	}
	// Record logs its own failures.
	_ = c.recorder.Record(context.WithoutCancel(ctx), inv)
}
