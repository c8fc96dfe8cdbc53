package controlapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bturcanu/monterosa-connector/pkg/types"
)

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Credentials: Credentials{Environment: "us", AccessToken: "tok-123"},
		APIBase:     srvURL,
		CDNBase:     srvURL + "/cdn",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClient_ResolvesHostsFromEnvironment(t *testing.T) {
	c, err := NewClient(Config{Credentials: Credentials{Environment: "eu", AccessToken: "t"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.APIBase() != "https://studio.monterosa.cloud" {
		t.Errorf("unexpected api base %q", c.APIBase())
	}
	if c.CDNBase() != "https://cdn-eu.monterosa.cloud" {
		t.Errorf("unexpected cdn base %q", c.CDNBase())
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	tests := []struct {
		creds Credentials
		field string
	}{
		{Credentials{AccessToken: "t"}, "credentials.environment"},
		{Credentials{Environment: "us"}, "credentials.accessToken"},
	}
	for _, tt := range tests {
		_, err := NewClient(Config{Credentials: tt.creds})
		var ve *types.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected *types.ValidationError, got %T (%v)", err, err)
		}
		if ve.Field != tt.field {
			t.Errorf("expected field %q, got %q", tt.field, ve.Field)
		}
	}
}

func TestDo_SendsBearerAndJSONAPIBody(t *testing.T) {
	var gotAuth, gotContentType, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"e1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	raw, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Target: TargetAPI,
		Path:   "/api/v2/events",
		Body:   map[string]any{"data": map[string]any{"type": "events"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotContentType != "application/vnd.api+json" {
		t.Errorf("expected JSON:API content type, got %q", gotContentType)
	}
	if gotPath != "/api/v2/events" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotBody["data"] == nil {
		t.Error("expected body to be forwarded")
	}
	if string(raw) != `{"data":{"id":"e1"}}` {
		t.Errorf("unexpected response %s", raw)
	}
}

func TestDo_CDNIsUnauthenticated(t *testing.T) {
	var gotAuth string
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[{"id":"l1"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Target: TargetCDN, Path: "/projects/ab/abc/listings.json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no Authorization header on CDN, got %q", gotAuth)
	}
	if gotPath != "/cdn/projects/ab/abc/listings.json" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestDo_EncodesQuery(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	q := url.Values{}
	q.Set("filter[state]", "future")
	q.Set("page[count]", "20")
	if _, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v2/projects/p1/events", Query: q}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery.Get("filter[state]") != "future" || gotQuery.Get("page[count]") != "20" {
		t.Errorf("unexpected query %v", gotQuery)
	}
}

func TestDo_EmptyBodyIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	raw, err := c.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/api/v2/elements/x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil body, got %s", raw)
	}
}

func TestDo_NonOKReturnsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":[{"detail":"bad","source":{"pointer":"/data/attributes/name"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/v2/events", Body: map[string]any{}})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UpstreamError, got %T (%v)", err, err)
	}
	if ue.Status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", ue.Status)
	}
	if got := Normalize(err); got != "name: bad" {
		t.Errorf("unexpected normalized message %q", got)
	}
}

func TestDo_InvalidJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestDo_RawMessageBodySentVerbatim(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	body := json.RawMessage(`{"data":{"type":"elements","attributes":{"x":1}}}`)
	if _, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/v2/elements", Body: body}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("expected verbatim body, got %s", got)
	}
}

func TestMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"u1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
