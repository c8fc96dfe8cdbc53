// Package dispatch routes a (resource, operation) pair to its request
// builder, executes the call and reshapes the answer into output records.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/requests"
	"github.com/bturcanu/monterosa-connector/pkg/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Resource selectors.
const (
	ResourceEvents         = "events"
	ResourceElements       = "elements"
	ResourceListings       = "listings"
	ResourceEventTemplates = "eventTemplates"
)

// Outcome labels recorded per invocation.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeUpstream  = "upstream_error"
	OutcomeUnmatched = "unmatched"
)

// Doer executes one built request. *controlapi.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req controlapi.Request) (json.RawMessage, error)
}

// Operation binds a builder to the message used when its call fails and
// to the shaping of its successful response.
type Operation struct {
	Resource string
	Name     string
	Failure  string
	Build    func(requests.Params) (controlapi.Request, error)
	// Respond shapes the upstream body. Nil means FromResponse.
	Respond func(p requests.Params, raw json.RawMessage) (Result, error)
}

type opKey struct{ resource, name string }

// Dispatcher holds the operation table. It keeps no per-call state.
type Dispatcher struct {
	log         *slog.Logger
	ops         map[opKey]Operation
	invocations metric.Int64Counter
	latency     metric.Float64Histogram
}

// New registers the standard operation table. A nil meter disables metrics.
func New(log *slog.Logger, meter metric.Meter) (*Dispatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("dispatch")
	}
	invocations, err := meter.Int64Counter("monterosa_invocations_total",
		metric.WithDescription("Connector invocations by resource, operation and outcome"))
	if err != nil {
		return nil, fmt.Errorf("dispatch.New counter: %w", err)
	}
	latency, err := meter.Float64Histogram("monterosa_invocation_duration_seconds",
		metric.WithDescription("Wall time of connector invocations including the upstream call"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("dispatch.New histogram: %w", err)
	}

	d := &Dispatcher{
		log:         log,
		ops:         make(map[opKey]Operation),
		invocations: invocations,
		latency:     latency,
	}
	for _, op := range standardOperations() {
		d.Register(op)
	}
	return d, nil
}

// Register adds or replaces an operation.
func (d *Dispatcher) Register(op Operation) {
	d.ops[opKey{op.Resource, op.Name}] = op
}

// Lookup returns the operation for a pair.
func (d *Dispatcher) Lookup(resource, name string) (Operation, bool) {
	op, ok := d.ops[opKey{resource, name}]
	return op, ok
}

// Operations lists registered pairs sorted by resource then name.
func (d *Dispatcher) Operations() []Operation {
	out := make([]Operation, 0, len(d.ops))
	for _, op := range d.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Dispatch runs one invocation. An unknown pair is not an error: it yields
// a single empty record. Validation and payload errors are returned before
// any network call; upstream failures come back as *controlapi.OperationError.
func (d *Dispatcher) Dispatch(ctx context.Context, client Doer, resource, name string, params requests.Params) ([]json.RawMessage, error) {
	start := time.Now()
	op, ok := d.Lookup(resource, name)
	if !ok {
		d.log.Debug("unmatched operation", "resource", resource, "operation", name)
		d.record(ctx, resource, name, OutcomeUnmatched, start)
		return Empty().Records(), nil
	}
	if params == nil {
		params = requests.Params{}
	}

	req, err := op.Build(params)
	if err != nil {
		d.record(ctx, resource, name, OutcomeInvalid, start)
		return nil, err
	}

	raw, err := client.Do(ctx, req)
	if err != nil {
		opErr := controlapi.NewOperationError(op.Failure, err)
		d.log.Error("operation failed",
			"resource", resource,
			"operation", name,
			"status", opErr.Status,
			"error", opErr.Description,
		)
		if req.Body != nil {
			d.log.Debug("failed request body", "resource", resource, "operation", name, "body", req.Body)
		}
		d.record(ctx, resource, name, OutcomeUpstream, start)
		return nil, opErr
	}

	respond := op.Respond
	if respond == nil {
		respond = func(_ requests.Params, raw json.RawMessage) (Result, error) { return FromResponse(raw) }
	}
	result, err := respond(params, raw)
	if err != nil {
		d.record(ctx, resource, name, OutcomeUpstream, start)
		return nil, controlapi.NewOperationError(op.Failure, err)
	}

	records := result.Records()
	d.record(ctx, resource, name, OutcomeSuccess, start)
	d.log.Info("operation completed",
		"resource", resource,
		"operation", name,
		"result", result.Kind.String(),
		"items", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

func (d *Dispatcher) record(ctx context.Context, resource, name, outcome string, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("operation", name),
		attribute.String("outcome", outcome),
	)
	d.invocations.Add(ctx, 1, attrs)
	d.latency.Record(ctx, time.Since(start).Seconds(), attrs)
}

// Classify maps a Dispatch error to its outcome label.
func Classify(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var ve *types.ValidationError
	var pe *types.PayloadError
	if errors.As(err, &ve) || errors.As(err, &pe) {
		return OutcomeInvalid
	}
	return OutcomeUpstream
}
