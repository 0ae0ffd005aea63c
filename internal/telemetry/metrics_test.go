package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersAllCollectorsWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	if m.RequestsTotal == nil || m.PlacementsTotal == nil || m.StickyHits == nil {
		t.Fatal("expected collectors to be constructed")
	}

	m.RequestsTotal.WithLabelValues("mysql", "low").Inc()
	m.PlacementsTotal.WithLabelValues("aws", "us-east-1").Inc()
	m.StickyHits.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family after recording")
	}
}
