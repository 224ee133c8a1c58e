package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewOrderMetrics(t *testing.T) {
	metrics := NewOrderMetrics()

	if metrics == nil {
		t.Fatal("NewOrderMetrics should not return nil")
	}
	if metrics.ordersCreated == nil {
		t.Error("ordersCreated counter should not be nil")
	}
	if metrics.ordersUpdated == nil {
		t.Error("ordersUpdated counter should not be nil")
	}
	if metrics.ordersDeleted == nil {
		t.Error("ordersDeleted counter should not be nil")
	}
	if metrics.insufficientStock == nil {
		t.Error("insufficientStock counter should not be nil")
	}
	if metrics.conflictRetries == nil {
		t.Error("conflictRetries counter should not be nil")
	}
	if metrics.busyRejections == nil {
		t.Error("busyRejections counter should not be nil")
	}
	if metrics.mutationDuration == nil {
		t.Error("mutationDuration histogram vec should not be nil")
	}
	if metrics.timelineEvents == nil {
		t.Error("timelineEvents counter should not be nil")
	}
	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}
	if metrics.activeMutations == nil {
		t.Error("activeMutations gauge should not be nil")
	}
}

func TestNewOrderMetricsIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(reg)
	second := newOrderMetricsWithRegisterer(reg)

	first.RecordOrderCreated()
	second.RecordOrderCreated()

	metric := &dto.Metric{}
	if err := first.ordersCreated.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordOrderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newOrderMetricsWithRegisterer(reg)

	metrics.RecordOrderCreated()
	metrics.RecordOrderCreated()
	metrics.RecordOrderUpdated()
	metrics.RecordOrderDeleted()
	metrics.RecordInsufficientStock()
	metrics.RecordConflictRetry()
	metrics.RecordBusyRejection()

	checks := []struct {
		name    string
		counter prometheus.Counter
		want    float64
	}{
		{"ordersCreated", metrics.ordersCreated, 2.0},
		{"ordersUpdated", metrics.ordersUpdated, 1.0},
		{"ordersDeleted", metrics.ordersDeleted, 1.0},
		{"insufficientStock", metrics.insufficientStock, 1.0},
		{"conflictRetries", metrics.conflictRetries, 1.0},
		{"busyRejections", metrics.busyRejections, 1.0},
	}

	for _, check := range checks {
		metric := &dto.Metric{}
		if err := check.counter.Write(metric); err != nil {
			t.Fatalf("failed to write %s: %v", check.name, err)
		}
		if metric.Counter.GetValue() != check.want {
			t.Errorf("%s = %f, want %f", check.name, metric.Counter.GetValue(), check.want)
		}
	}
}

func TestRecordMutationLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newOrderMetricsWithRegisterer(reg)

	metrics.RecordMutationStarted()
	metrics.RecordMutationStarted()
	metrics.RecordMutationFinished()

	gaugeMetric := &dto.Metric{}
	if err := metrics.activeMutations.Write(gaugeMetric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if gaugeMetric.Gauge.GetValue() != 1.0 {
		t.Errorf("expected 1.0 active mutation, got %f", gaugeMetric.Gauge.GetValue())
	}
}

func TestRecordMutationDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newOrderMetricsWithRegisterer(reg)

	metrics.RecordMutationDuration("create", 100*time.Millisecond)
	metrics.RecordMutationDuration("create", 500*time.Millisecond)
	metrics.RecordMutationDuration("delete", 25*time.Millisecond)

	createMetric := &dto.Metric{}
	observer := metrics.mutationDuration.WithLabelValues("create")
	if err := observer.(prometheus.Histogram).Write(createMetric); err != nil {
		t.Fatalf("failed to write create histogram: %v", err)
	}

	if createMetric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples for create, got %d", createMetric.Histogram.GetSampleCount())
	}
	sum := createMetric.Histogram.GetSampleSum()
	if sum < 0.55 || sum > 0.65 {
		t.Errorf("expected sum around 0.6, got %f", sum)
	}
}

func TestRecordTimelineAndOutboxEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newOrderMetricsWithRegisterer(reg)

	metrics.RecordTimelineEvent()
	metrics.RecordTimelineEvent()
	metrics.RecordOutboxEvent()

	timelineMetric := &dto.Metric{}
	if err := metrics.timelineEvents.Write(timelineMetric); err != nil {
		t.Fatalf("failed to write timeline metric: %v", err)
	}
	if timelineMetric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2.0 timeline events, got %f", timelineMetric.Counter.GetValue())
	}

	outboxMetric := &dto.Metric{}
	if err := metrics.outboxEvents.Write(outboxMetric); err != nil {
		t.Fatalf("failed to write outbox metric: %v", err)
	}
	if outboxMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected 1.0 outbox events, got %f", outboxMetric.Counter.GetValue())
	}
}
