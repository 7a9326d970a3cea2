// Package otel provides OpenTelemetry integration for gossamer reclaimer
// metrics.
//
// # Overview
//
// This package implements the gossamer.MetricsCollector interface using
// OpenTelemetry, enabling observability of a Reclaimer's retirement, batch,
// and critical-section activity with multi-backend export support
// (Prometheus, Jaeger, DataDog, Grafana).
//
// The package is a separate module to keep the gossamer core lightweight.
// Applications that don't need metrics collection don't pay for the OTEL
// dependencies.
//
// # Features
//
//   - Counters for retirements (by kind), batch publication/reclamation,
//     protected-region entries, snapshots, upgrade attempts, and recovered
//     panics
//   - A histogram of critical-section durations and of published batch
//     sizes, so percentiles (p50, p95, p99) fall out of the OTEL SDK
//   - Thread-safe, lock-free implementation
//   - Low overhead: a handful of atomic instrument updates per call, no
//     locks, no per-call allocation once the collector is constructed
//   - Industry standard: uses OpenTelemetry (CNCF standard)
//
// # Installation
//
//	go get github.com/agilira/gossamer/otel
//
// # Quick Start
//
// Basic setup with a Prometheus exporter:
//
//	import (
//	    "github.com/agilira/gossamer"
//	    gossamerotel "github.com/agilira/gossamer/otel"
//	    "go.opentelemetry.io/otel/exporters/prometheus"
//	    "go.opentelemetry.io/otel/sdk/metric"
//	)
//
//	exporter, err := prometheus.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	provider := metric.NewMeterProvider(metric.WithReader(exporter))
//	defer provider.Shutdown(context.Background())
//
//	collector, err := gossamerotel.NewOTelMetricsCollector(provider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := gossamer.NewReclaimer(gossamer.Config{MetricsCollector: collector})
//
//	// Use r-backed cells normally - metrics are automatically collected.
//	cell := gossamer.NewAtomicStrong[int](r)
//	v := gossamer.NewStrong(r, 42)
//	cell.Store(v)
//	v.Release()
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":2112", nil))
//
// # Metrics Exposed
//
// Histograms (with automatic percentiles):
//   - gossamer_critical_section_duration_ns: protected-region duration
//   - gossamer_batch_size: retirements per published batch
//
// Counters:
//   - gossamer_retirements_total{kind}: blocks handed to the reclaimer, by "strong"/"weak"
//   - gossamer_batch_published_total: published retirement batches
//   - gossamer_batch_reclaimed_total: batches whose refcount reached zero
//   - gossamer_critical_section_enters_total: protected regions opened
//   - gossamer_snapshots_total: Snapshot protections registered
//   - gossamer_upgrades_total{outcome}: Weak.Upgrade attempts, by "success"/"failure"
//   - gossamer_panics_recovered_total: panics recovered from retired drops
//
// All metrics are thread-safe and use lock-free OTEL instruments.
//
// # Configuration
//
// Custom meter name (useful when several Reclaimer instances share a
// process):
//
//	collector, err := gossamerotel.NewOTelMetricsCollector(
//	    provider,
//	    gossamerotel.WithMeterName("myapp_node_pool"),
//	)
//
// Custom histogram buckets for better percentile accuracy on the
// critical-section duration histogram:
//
//	provider := metric.NewMeterProvider(
//	    metric.WithReader(exporter),
//	    metric.WithView(metric.NewView(
//	        metric.Instrument{Name: "gossamer_critical_section_duration_ns"},
//	        metric.Stream{
//	            Aggregation: metric.AggregationExplicitBucketHistogram{
//	                Boundaries: []float64{50, 100, 250, 500, 1000, 5000, 10000},
//	            },
//	        },
//	    )),
//	)
//
// # Prometheus Queries
//
// Calculate P99 protected-region duration (last 5 minutes):
//
//	histogram_quantile(0.99, rate(gossamer_critical_section_duration_ns_bucket[5m]))
//
// Calculate upgrade success ratio:
//
//	rate(gossamer_upgrades_total{outcome="success"}[5m]) /
//	(rate(gossamer_upgrades_total{outcome="success"}[5m]) + rate(gossamer_upgrades_total{outcome="failure"}[5m]))
//
// Calculate average batch size:
//
//	rate(gossamer_batch_size_sum[5m]) / rate(gossamer_batch_size_count[5m])
//
// # Architecture
//
// Separation of concerns:
//
//	┌─────────────────────────────────────┐
//	│    gossamer core (this module)      │
//	│  • No OTEL dependencies             │
//	│  • MetricsCollector interface       │
//	│  • NoOpMetricsCollector (default)   │
//	└──────────────┬──────────────────────┘
//	               │ implements
//	               ▼
//	┌─────────────────────────────────────┐
//	│   gossamer/otel (this package)      │
//	│  • OTelMetricsCollector             │
//	│  • OTEL SDK dependencies            │
//	│  • Histograms + Counters            │
//	└──────────────┬──────────────────────┘
//	               │ exports to
//	               ▼
//	┌─────────────────────────────────────┐
//	│      OTEL MeterProvider             │
//	└──────────────┬──────────────────────┘
//	     ┌─────────┴──────┬────────┐
//	     ▼                ▼        ▼
//	Prometheus        Jaeger   DataDog
//
// This architecture keeps the core lightweight while enabling an optional
// observability add-on.
//
// # Thread Safety
//
// All methods are thread-safe and use lock-free OTEL instruments, callable
// concurrently from any goroutine invoking a Reclaimer's Enter/Leave,
// retire, or Upgrade paths.
//
// # Compatibility
//
//   - Go: 1.25+
//   - OpenTelemetry: v1.31.0+
//
// # License
//
// Same as gossamer core (see LICENSE in main repository).
package otel
