package otel

import (
	"context"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
)

func TestSetupExportsMetricsToRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	shutdown, err := Setup(context.Background(), Config{MetricsEnabled: true, Registerer: reg})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	counter, err := Meter("test").Int64Counter("monterosa_test_total")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "monterosa_test_total") {
			found = true
		}
	}
	if !found {
		t.Error("expected the counter to be exported")
	}
}

func TestSetupWithoutExporters(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
