// collector.go: OpenTelemetry-backed gossamer.MetricsCollector.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package otel

import (
	"context"
	"errors"

	"github.com/agilira/gossamer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetricsCollector implements gossamer.MetricsCollector using
// OpenTelemetry.
//
// Thread-safety: safe for concurrent use by multiple goroutines. The
// underlying OTEL instruments are thread-safe and lock-free.
//
// Performance: minimal overhead, allocation-free after initialization;
// never called from an atomic cell's hot path beyond the counter/histogram
// record itself (see gossamer.MetricsCollector's doc comment).
type OTelMetricsCollector struct {
	retirements      metric.Int64Counter
	batchPublished   metric.Int64Counter
	batchSize        metric.Int64Histogram
	batchReclaimed   metric.Int64Counter
	criticalEnters   metric.Int64Counter
	criticalDuration metric.Int64Histogram
	snapshots        metric.Int64Counter
	upgrades         metric.Int64Counter
	panicsRecovered  metric.Int64Counter
}

// Options for configuring OTelMetricsCollector.
type Options struct {
	// MeterName is the name of the OpenTelemetry meter.
	// Default: "github.com/agilira/gossamer"
	MeterName string
}

// Option is a functional option for configuring OTelMetricsCollector.
type Option func(*Options)

// WithMeterName sets a custom meter name, useful for distinguishing metrics
// from multiple Reclaimer instances sharing one process.
func WithMeterName(name string) Option {
	return func(o *Options) {
		o.MeterName = name
	}
}

// NewOTelMetricsCollector creates a new OpenTelemetry metrics collector
// bound to provider. The collector creates one Int64Counter/Int64Histogram
// per instrument listed in the package doc comment; all are thread-safe and
// lock-free once created.
func NewOTelMetricsCollector(provider metric.MeterProvider, opts ...Option) (*OTelMetricsCollector, error) {
	if provider == nil {
		return nil, errors.New("meter provider cannot be nil")
	}

	options := Options{MeterName: "github.com/agilira/gossamer"}
	for _, opt := range opts {
		opt(&options)
	}

	meter := provider.Meter(options.MeterName)
	c := &OTelMetricsCollector{}

	var err error
	c.retirements, err = meter.Int64Counter(
		"gossamer_retirements_total",
		metric.WithDescription("Total number of blocks handed to the reclaimer for deferred destruction"),
	)
	if err != nil {
		return nil, err
	}

	c.batchPublished, err = meter.Int64Counter(
		"gossamer_batch_published_total",
		metric.WithDescription("Total number of retirement batches published"),
	)
	if err != nil {
		return nil, err
	}

	c.batchSize, err = meter.Int64Histogram(
		"gossamer_batch_size",
		metric.WithDescription("Number of retirements per published batch"),
		metric.WithUnit("{retirement}"),
	)
	if err != nil {
		return nil, err
	}

	c.batchReclaimed, err = meter.Int64Counter(
		"gossamer_batch_reclaimed_total",
		metric.WithDescription("Total number of batches whose refcount reached zero and ran"),
	)
	if err != nil {
		return nil, err
	}

	c.criticalEnters, err = meter.Int64Counter(
		"gossamer_critical_section_enters_total",
		metric.WithDescription("Total number of protected regions opened"),
	)
	if err != nil {
		return nil, err
	}

	c.criticalDuration, err = meter.Int64Histogram(
		"gossamer_critical_section_duration_ns",
		metric.WithDescription("Duration of protected regions in nanoseconds"),
		metric.WithUnit("ns"),
	)
	if err != nil {
		return nil, err
	}

	c.snapshots, err = meter.Int64Counter(
		"gossamer_snapshots_total",
		metric.WithDescription("Total number of Snapshot protections registered"),
	)
	if err != nil {
		return nil, err
	}

	c.upgrades, err = meter.Int64Counter(
		"gossamer_upgrades_total",
		metric.WithDescription("Total number of Weak.Upgrade attempts, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	c.panicsRecovered, err = meter.Int64Counter(
		"gossamer_panics_recovered_total",
		metric.WithDescription("Total number of panics recovered from retired drop operations"),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// RecordRetire implements gossamer.MetricsCollector.
func (c *OTelMetricsCollector) RecordRetire(kind string) {
	c.retirements.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordBatchPublished implements gossamer.MetricsCollector.
func (c *OTelMetricsCollector) RecordBatchPublished(size int) {
	ctx := context.Background()
	c.batchPublished.Add(ctx, 1)
	c.batchSize.Record(ctx, int64(size))
}

// RecordBatchReclaimed implements gossamer.MetricsCollector.
func (c *OTelMetricsCollector) RecordBatchReclaimed(size int) {
	c.batchReclaimed.Add(context.Background(), 1)
}

// RecordEnter implements gossamer.MetricsCollector.
func (c *OTelMetricsCollector) RecordEnter() {
	c.criticalEnters.Add(context.Background(), 1)
}

// RecordLeave implements gossamer.MetricsCollector.
func (c *OTelMetricsCollector) RecordLeave(durationNs int64) {
	c.criticalDuration.Record(context.Background(), durationNs)
}

// RecordSnapshot implements gossamer.MetricsCollector.
func (c *OTelMetricsCollector) RecordSnapshot() {
	c.snapshots.Add(context.Background(), 1)
}

// RecordUpgrade implements gossamer.MetricsCollector.
func (c *OTelMetricsCollector) RecordUpgrade(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.upgrades.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPanicRecovered implements gossamer.MetricsCollector.
func (c *OTelMetricsCollector) RecordPanicRecovered() {
	c.panicsRecovered.Add(context.Background(), 1)
}

// Compile-time interface check.
var _ gossamer.MetricsCollector = (*OTelMetricsCollector)(nil)
