package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.EventsAppended == nil || m.Deliveries == nil || m.Commands == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.StreamCreated("account")
	m.EventAppended("account", "account-opened")

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestDeliveryAccounting(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.DeliveryScheduled()
	m.DeliveryScheduled()
	m.DeliveryScheduled()
	m.DeliveryHandled("transfer_processor", time.Millisecond, nil)
	m.DeliveryHandled("transfer_processor", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.PendingDeliveries); got != 1 {
		t.Fatalf("expected 1 pending delivery, got %v", got)
	}
	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues("transfer_processor", "error")); got != 1 {
		t.Fatalf("expected 1 failed delivery, got %v", got)
	}

	m.DeliveryDropped(1)
	if got := testutil.ToFloat64(m.PendingDeliveries); got != 0 {
		t.Fatalf("expected no pending deliveries, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.StreamCreated("account")
	m.EventAppended("account", "account-opened")
	m.ConcurrencyConflict("account")
	m.DeliveryScheduled()
	m.DeliveryHandled("x", time.Second, nil)
	m.DeliveryDropped(2)
	m.RecordCommand("open_account", "ok")
}
