package controlapi

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "pointer and detail",
			err:  &UpstreamError{Status: 422, Body: []byte(`{"errors":[{"detail":"bad","source":{"pointer":"/data/attributes/name"}}]}`)},
			want: "name: bad",
		},
		{
			name: "title used when detail missing",
			err:  &UpstreamError{Status: 422, Body: []byte(`{"errors":[{"title":"Invalid","source":{"pointer":"/data/attributes/duration"}}]}`)},
			want: "duration: Invalid",
		},
		{
			name: "several entries joined",
			err: &UpstreamError{Status: 422, Body: []byte(`{"errors":[
				{"detail":"can't be blank","source":{"pointer":"/data/attributes/name"}},
				{"detail":"Project not found"},
				{"source":{"pointer":"/data/relationships/project"}},
				{}
			]}`)},
			want: "name: can't be blank, Project not found, /data/relationships/project",
		},
		{
			name: "numeric detail",
			err:  &UpstreamError{Status: 400, Body: []byte(`{"errors":[{"detail":42}]}`)},
			want: "42",
		},
		{
			name: "single error field",
			err:  &UpstreamError{Status: 500, Body: []byte(`{"error":"boom"}`)},
			want: "boom",
		},
		{
			name: "message field",
			err:  &UpstreamError{Status: 404, Body: []byte(`{"message":"  Not found  "}`)},
			want: "Not found",
		},
		{
			name: "empty errors array falls through",
			err:  &UpstreamError{Status: 400, Body: []byte(`{"errors":[],"error":"fallback detail"}`)},
			want: "fallback detail",
		},
		{
			name: "non JSON body uses status message",
			err:  &UpstreamError{Status: 502, Body: []byte(`<html>bad gateway</html>`)},
			want: "request failed with status code 502",
		},
		{
			name: "wrapped upstream error",
			err:  fmt.Errorf("dispatch: %w", &UpstreamError{Status: 422, Body: []byte(`{"error":"boom"}`)}),
			want: "boom",
		},
		{
			name: "transport error",
			err:  errors.New("dial tcp: connection refused"),
			want: "dial tcp: connection refused",
		},
		{
			name: "blank error message",
			err:  errors.New("   "),
			want: DefaultErrorDescription,
		},
		{
			name: "nil",
			err:  nil,
			want: DefaultErrorDescription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.err); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewOperationError(t *testing.T) {
	up := &UpstreamError{Status: 422, Body: []byte(`{"errors":[{"detail":"bad","source":{"pointer":"/data/attributes/name"}}]}`)}
	err := NewOperationError("Failed to create event", up)

	if err.Status != 422 {
		t.Errorf("expected status 422, got %d", err.Status)
	}
	if got := err.Error(); got != "Failed to create event: name: bad" {
		t.Errorf("unexpected message %q", got)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Error("expected OperationError to unwrap to *UpstreamError")
	}
}

func TestPointerField(t *testing.T) {
	tests := map[string]string{
		"/data/attributes/name": "name",
		"name":                  "name",
		"/":                     "/",
		"/data/":                "/data/",
	}
	for in, want := range tests {
		if got := pointerField(in); got != want {
			t.Errorf("pointerField(%q) = %q, want %q", in, got, want)
		}
	}
}
