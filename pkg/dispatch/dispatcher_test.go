package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bturcanu/monterosa-connector/pkg/controlapi"
	"github.com/bturcanu/monterosa-connector/pkg/requests"
	"github.com/bturcanu/monterosa-connector/pkg/types"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// fakeDoer records requests and replies with a canned body or error.
type fakeDoer struct {
	calls []controlapi.Request
	body  json.RawMessage
	err   error
}

func (f *fakeDoer) Do(_ context.Context, req controlapi.Request) (json.RawMessage, error) {
	f.calls = append(f.calls, req)
	return f.body, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New(testLogger(), nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestFromResponse(t *testing.T) {
	tests := []struct {
		raw   string
		kind  Kind
		count int
	}{
		{``, KindEmpty, 1},
		{`null`, KindEmpty, 1},
		{`{"data":{"id":"e1"}}`, KindSingle, 1},
		{`[{"id":"a"},{"id":"b"},{"id":"c"}]`, KindMany, 3},
		{`[]`, KindMany, 0},
		{`"text"`, KindSingle, 1},
		{`false`, KindEmpty, 1},
		{`0`, KindEmpty, 1},
		{`""`, KindEmpty, 1},
		{`true`, KindSingle, 1},
		{`{}`, KindSingle, 1},
	}
	for _, tt := range tests {
		res, err := FromResponse(json.RawMessage(tt.raw))
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.raw, err)
		}
		if res.Kind != tt.kind {
			t.Errorf("%q: kind = %s, want %s", tt.raw, res.Kind, tt.kind)
		}
		if got := len(res.Records()); got != tt.count {
			t.Errorf("%q: %d records, want %d", tt.raw, got, tt.count)
		}
	}
}

func TestFalsyResponseBecomesEmptyRecord(t *testing.T) {
	d := newTestDispatcher(t)
	for _, body := range []string{`false`, `0`, `""`} {
		doer := &fakeDoer{body: json.RawMessage(body)}
		recs, err := d.Dispatch(context.Background(), doer, ResourceEventTemplates, "getEventTemplate", requests.Params{"eventTemplateId": "t1"})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", body, err)
		}
		if len(recs) != 1 || string(recs[0]) != `{}` {
			t.Errorf("%s: expected one empty record, got %s", body, recs)
		}
	}
}

func TestEmptyRecordsIsOneEmptyObject(t *testing.T) {
	recs := Empty().Records()
	if len(recs) != 1 || string(recs[0]) != `{}` {
		t.Errorf("unexpected records %s", recs)
	}
}

func TestDispatch_UnmatchedPairYieldsOneEmptyRecord(t *testing.T) {
	d := newTestDispatcher(t)
	doer := &fakeDoer{}

	for _, pair := range [][2]string{{"events", "explode"}, {"widgets", "getEvents"}, {"", ""}} {
		recs, err := d.Dispatch(context.Background(), doer, pair[0], pair[1], requests.Params{})
		if err != nil {
			t.Fatalf("%v: expected no error, got %v", pair, err)
		}
		if len(recs) != 1 || string(recs[0]) != `{}` {
			t.Errorf("%v: expected one empty record, got %s", pair, recs)
		}
	}
	if len(doer.calls) != 0 {
		t.Errorf("unmatched pairs must not call upstream, got %d calls", len(doer.calls))
	}
}

func TestDispatch_ArrayResponseBecomesManyRecords(t *testing.T) {
	d := newTestDispatcher(t)
	doer := &fakeDoer{body: json.RawMessage(`[{"id":"l1"},{"id":"l2"}]`)}

	recs, err := d.Dispatch(context.Background(), doer, ResourceListings, "getListings", requests.Params{"projectID": "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || string(recs[1]) != `{"id":"l2"}` {
		t.Errorf("unexpected records %s", recs)
	}
	if doer.calls[0].Target != controlapi.TargetCDN {
		t.Errorf("expected CDN target, got %s", doer.calls[0].Target)
	}
}

func TestDispatch_ValidationBeforeNetwork(t *testing.T) {
	d := newTestDispatcher(t)
	doer := &fakeDoer{}

	_, err := d.Dispatch(context.Background(), doer, ResourceElements, "deleteElement", requests.Params{"elementId": ""})
	var ve *types.ValidationError
	if !errors.As(err, &ve) || ve.Field != "elementId" {
		t.Fatalf("expected elementId validation error, got %v", err)
	}
	if len(doer.calls) != 0 {
		t.Error("validation failures must not reach the network")
	}
	if Classify(err) != OutcomeInvalid {
		t.Errorf("unexpected classification %s", Classify(err))
	}
}

func TestDispatch_UpstreamFailureIsOperationError(t *testing.T) {
	d := newTestDispatcher(t)
	doer := &fakeDoer{err: &controlapi.UpstreamError{
		Status: 422,
		Body:   []byte(`{"errors":[{"detail":"bad","source":{"pointer":"/data/attributes/name"}}]}`),
	}}

	_, err := d.Dispatch(context.Background(), doer, ResourceEvents, "createEvent",
		requests.Params{"eventName": "E", "projectID": "p1"})
	var oe *controlapi.OperationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *controlapi.OperationError, got %T (%v)", err, err)
	}
	if oe.Message != "Failed to create event" || oe.Description != "name: bad" || oe.Status != 422 {
		t.Errorf("unexpected error %+v", oe)
	}
	if Classify(err) != OutcomeUpstream {
		t.Errorf("unexpected classification %s", Classify(err))
	}
}

func TestDispatch_Confirmations(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		op       string
		params   requests.Params
		body     string
		want     map[string]any
	}{
		{
			name:     "delete",
			resource: ResourceElements, op: "deleteElement",
			params: requests.Params{"elementId": "el1"},
			want:   map[string]any{"id": "el1", "message": "Element deleted successfully"},
		},
		{
			name:     "update event",
			resource: ResourceEvents, op: "updateEvent",
			params: requests.Params{"eventId": "e1", "updateType": "action", "action": "stop"},
			body:   `{"data":{"id":"e1"}}`,
			want:   map[string]any{"id": "e1", "message": "Event updated successfully"},
		},
		{
			name:     "update element carries response",
			resource: ResourceElements, op: "updateElement",
			params: requests.Params{"elementId": "el1", "action": "publish"},
			body:   `{"data":{"id":"el1"}}`,
			want: map[string]any{
				"id": "el1", "message": "Element updated successfully",
				"response": map[string]any{"data": map[string]any{"id": "el1"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t)
			doer := &fakeDoer{}
			if tt.body != "" {
				doer.body = json.RawMessage(tt.body)
			}
			recs, err := d.Dispatch(context.Background(), doer, tt.resource, tt.op, tt.params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(recs) != 1 {
				t.Fatalf("expected one record, got %d", len(recs))
			}
			var got map[string]any
			if err := json.Unmarshal(recs[0], &got); err != nil {
				t.Fatalf("record is not JSON: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Errorf("unexpected record %v", got)
			}
			for k, v := range tt.want {
				gb, _ := json.Marshal(got[k])
				wb, _ := json.Marshal(v)
				if string(gb) != string(wb) {
					t.Errorf("%s = %s, want %s", k, gb, wb)
				}
			}
		})
	}
}

func TestDispatch_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	d, err := New(testLogger(), mp.Meter("test"))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	doer := &fakeDoer{body: json.RawMessage(`{"data":[]}`)}
	ctx := context.Background()
	_, _ = d.Dispatch(ctx, doer, ResourceElements, "getElements", requests.Params{"eventId": "e1"})
	_, _ = d.Dispatch(ctx, doer, "nope", "nope", nil)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "monterosa_invocations_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Errorf("expected 2 recorded invocations, got %d", total)
	}
}

func TestOperations_CoverEveryResource(t *testing.T) {
	d := newTestDispatcher(t)
	want := map[string]int{
		ResourceEvents:         4,
		ResourceElements:       4,
		ResourceListings:       1,
		ResourceEventTemplates: 2,
	}
	got := map[string]int{}
	for _, op := range d.Operations() {
		got[op.Resource]++
		if op.Failure == "" || op.Build == nil {
			t.Errorf("%s/%s is incomplete", op.Resource, op.Name)
		}
	}
	for r, n := range want {
		if got[r] != n {
			t.Errorf("%s: %d operations, want %d", r, got[r], n)
		}
	}
}
