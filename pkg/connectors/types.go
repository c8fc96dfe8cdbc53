// Package connectors defines the wire contract between the workflow host
// and a connector service.
package connectors

import (
	"context"
	"encoding/json"

	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
)

// Status values of an ExecResponse.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Connector executes one host invocation.
type Connector interface {
	// Exec executes the given request and returns a result.
	Exec(ctx context.Context, req ExecRequest) ExecResponse
}

// ExecRequest is the payload the host sends for one input item.
type ExecRequest struct {
	EventID     string                  `json:"event_id"`
	Tool        string                  `json:"tool"`
	Resource    string                  `json:"resource"`
	Action      string                  `json:"action"` // operation selector
	Params      json.RawMessage         `json:"params"`
	Credentials *controlapi.Credentials `json:"credentials,omitempty"`
}

// ExecResponse carries zero or more output records, or one error.
type ExecResponse struct {
	Status           string            `json:"status"` // "success" | "error"
	Items            []json.RawMessage `json:"items,omitempty"`
	Error            string            `json:"error,omitempty"`
	ErrorDescription string            `json:"error_description,omitempty"`
}
