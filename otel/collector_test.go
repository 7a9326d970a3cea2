package otel

import (
	"context"
	"testing"
	"time"

	"github.com/agilira/gossamer"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// TestOTelMetricsCollector_Interface verifies OTelMetricsCollector implements
// gossamer.MetricsCollector.
func TestOTelMetricsCollector_Interface(t *testing.T) {
	var _ gossamer.MetricsCollector = (*OTelMetricsCollector)(nil)
}

// TestNewOTelMetricsCollector tests constructor with valid meter provider.
func TestNewOTelMetricsCollector(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Errorf("Failed to shutdown provider: %v", err)
		}
	}()

	collector, err := NewOTelMetricsCollector(provider)
	if err != nil {
		t.Fatalf("NewOTelMetricsCollector() error = %v", err)
	}
	if collector == nil {
		t.Fatal("NewOTelMetricsCollector() returned nil")
	}
}

// TestNewOTelMetricsCollector_NilProvider tests error handling with nil provider.
func TestNewOTelMetricsCollector_NilProvider(t *testing.T) {
	collector, err := NewOTelMetricsCollector(nil)
	if err == nil {
		t.Fatal("NewOTelMetricsCollector(nil) should return error")
	}
	if collector != nil {
		t.Fatal("NewOTelMetricsCollector(nil) should return nil collector")
	}
}

func newTestCollector(t *testing.T) (*OTelMetricsCollector, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	collector, err := NewOTelMetricsCollector(provider)
	if err != nil {
		t.Fatalf("NewOTelMetricsCollector() error = %v", err)
	}
	return collector, reader
}

func collect(t *testing.T, reader *metric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// TestOTelMetricsCollector_RecordRetire tests retirement counter recording,
// including the "kind" attribute distinguishing strong from weak.
func TestOTelMetricsCollector_RecordRetire(t *testing.T) {
	collector, reader := newTestCollector(t)

	collector.RecordRetire("strong")
	collector.RecordRetire("strong")
	collector.RecordRetire("weak")

	rm := collect(t, reader)
	m, ok := findMetric(rm, "gossamer_retirements_total")
	if !ok {
		t.Fatal("gossamer_retirements_total metric not found")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("Expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("Expected 3 retirements recorded, got %d", total)
	}
}

// TestOTelMetricsCollector_RecordBatch tests batch publication/size/reclaim
// recording.
func TestOTelMetricsCollector_RecordBatch(t *testing.T) {
	collector, reader := newTestCollector(t)

	collector.RecordBatchPublished(64)
	collector.RecordBatchPublished(128)
	collector.RecordBatchReclaimed(64)

	rm := collect(t, reader)

	published, ok := findMetric(rm, "gossamer_batch_published_total")
	if !ok {
		t.Fatal("gossamer_batch_published_total metric not found")
	}
	sum, ok := published.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 2 {
		t.Errorf("expected 2 batch publications, got %+v", published.Data)
	}

	size, ok := findMetric(rm, "gossamer_batch_size")
	if !ok {
		t.Fatal("gossamer_batch_size metric not found")
	}
	hist, ok := size.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatalf("Expected Histogram[int64], got %T", size.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("expected 2 batch_size observations, got %d", count)
	}

	reclaimed, ok := findMetric(rm, "gossamer_batch_reclaimed_total")
	if !ok {
		t.Fatal("gossamer_batch_reclaimed_total metric not found")
	}
	sum, ok = reclaimed.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("expected 1 batch reclaimed, got %+v", reclaimed.Data)
	}
}

// TestOTelMetricsCollector_RecordCriticalSection tests Enter/Leave recording.
func TestOTelMetricsCollector_RecordCriticalSection(t *testing.T) {
	collector, reader := newTestCollector(t)

	collector.RecordEnter()
	collector.RecordEnter()
	collector.RecordLeave(500)
	collector.RecordLeave(1500)

	rm := collect(t, reader)

	enters, ok := findMetric(rm, "gossamer_critical_section_enters_total")
	if !ok {
		t.Fatal("gossamer_critical_section_enters_total metric not found")
	}
	sum, ok := enters.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 2 {
		t.Errorf("expected 2 enters, got %+v", enters.Data)
	}

	duration, ok := findMetric(rm, "gossamer_critical_section_duration_ns")
	if !ok {
		t.Fatal("gossamer_critical_section_duration_ns metric not found")
	}
	hist, ok := duration.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatalf("Expected Histogram[int64], got %T", duration.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("expected 2 leave durations recorded, got %d", count)
	}
}

// TestOTelMetricsCollector_RecordSnapshot tests the snapshot counter.
func TestOTelMetricsCollector_RecordSnapshot(t *testing.T) {
	collector, reader := newTestCollector(t)

	collector.RecordSnapshot()
	collector.RecordSnapshot()
	collector.RecordSnapshot()

	rm := collect(t, reader)
	m, ok := findMetric(rm, "gossamer_snapshots_total")
	if !ok {
		t.Fatal("gossamer_snapshots_total metric not found")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 3 {
		t.Errorf("expected 3 snapshots, got %+v", m.Data)
	}
}

// TestOTelMetricsCollector_RecordUpgrade tests outcome-labeled upgrade counting.
func TestOTelMetricsCollector_RecordUpgrade(t *testing.T) {
	collector, reader := newTestCollector(t)

	collector.RecordUpgrade(true)
	collector.RecordUpgrade(true)
	collector.RecordUpgrade(false)

	rm := collect(t, reader)
	m, ok := findMetric(rm, "gossamer_upgrades_total")
	if !ok {
		t.Fatal("gossamer_upgrades_total metric not found")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("Expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("expected 3 upgrade attempts recorded, got %d", total)
	}
}

// TestOTelMetricsCollector_RecordPanicRecovered tests the recovered-panic counter.
func TestOTelMetricsCollector_RecordPanicRecovered(t *testing.T) {
	collector, reader := newTestCollector(t)

	collector.RecordPanicRecovered()

	rm := collect(t, reader)
	m, ok := findMetric(rm, "gossamer_panics_recovered_total")
	if !ok {
		t.Fatal("gossamer_panics_recovered_total metric not found")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("expected 1 panic recovered, got %+v", m.Data)
	}
}

// TestOTelMetricsCollector_Concurrent tests thread safety under the same
// workload shape a Reclaimer would actually generate.
func TestOTelMetricsCollector_Concurrent(t *testing.T) {
	collector, reader := newTestCollector(t)

	const numGoroutines = 10
	const opsPerGoroutine = 100
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < opsPerGoroutine; j++ {
				collector.RecordEnter()
				collector.RecordLeave(int64(100 + id))
				collector.RecordRetire("strong")
				collector.RecordSnapshot()
				collector.RecordUpgrade(j%2 == 0)
			}
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Test timeout - deadlock?")
		}
	}

	rm := collect(t, reader)
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("No metrics collected after concurrent operations")
	}
}

// TestOTelMetricsCollector_WithOptions tests constructor with a custom meter name.
func TestOTelMetricsCollector_WithOptions(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	collector, err := NewOTelMetricsCollector(
		provider,
		WithMeterName("custom_gossamer"),
	)
	if err != nil {
		t.Fatalf("NewOTelMetricsCollector() error = %v", err)
	}
	if collector == nil {
		t.Fatal("NewOTelMetricsCollector() returned nil")
	}

	collector.RecordEnter()

	rm := collect(t, reader)
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("No scope metrics")
	}
	if rm.ScopeMetrics[0].Scope.Name != "custom_gossamer" {
		t.Errorf("Expected scope name 'custom_gossamer', got '%s'", rm.ScopeMetrics[0].Scope.Name)
	}
}
