package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Dispatched.WithLabelValues("quotes").Inc()
	m.Dropped.WithLabelValues("quotes", "unknown_ticker").Add(2)
	m.TradesSubmitted.Inc()

	if got := testutil.ToFloat64(m.Dispatched.WithLabelValues("quotes")); got != 1 {
		t.Fatalf("dispatched got %v want 1", got)
	}
	if got := testutil.ToFloat64(m.Dropped.WithLabelValues("quotes", "unknown_ticker")); got != 2 {
		t.Fatalf("dropped got %v want 2", got)
	}
	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 3 {
		t.Fatalf("got %d series want 3", count)
	}
}

func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	m.Malformed.WithLabelValues("errors").Inc()
	if got := testutil.ToFloat64(m.Malformed.WithLabelValues("errors")); got != 1 {
		t.Fatalf("malformed got %v want 1", got)
	}
}
