// metrics.go: the MetricsCollector interface for observing reclaimer activity.
//
// This interface has no teacher-supplied definition to copy (the retrieved
// reference copy of this library documents and implements it under otel/
// but the interface declaration itself lives here, same as the teacher's own
// layout). Its method set is grounded on the teacher's otel collector
// (otel/collector.go), adapted from cache hit/miss/eviction accounting to
// the reclaimer's retire/batch/critical-section accounting.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package gossamer

// MetricsCollector is used for collecting reclaimer operation metrics.
// Implementations must be safe for concurrent use and fast: RecordRetire is
// called on every retirement (every strong release that seals the count,
// every weak release).
type MetricsCollector interface {
	// RecordRetire is called each time a block is handed to the reclaimer
	// for deferred destruction. kind is "strong" or "weak".
	RecordRetire(kind string)

	// RecordBatchPublished is called when a locally accumulated batch of
	// retirements is published for cross-slot conflict checking.
	RecordBatchPublished(size int)

	// RecordBatchReclaimed is called when a published batch's refcount
	// reaches zero and its drop operations have all run.
	RecordBatchReclaimed(size int)

	// RecordEnter is called each time a protected region (critical
	// section) is opened.
	RecordEnter()

	// RecordLeave is called each time a protected region closes, with its
	// duration in nanoseconds.
	RecordLeave(durationNs int64)

	// RecordSnapshot is called each time a Snapshot is registered against
	// a live slot.
	RecordSnapshot()

	// RecordUpgrade is called after every Upgrade attempt.
	RecordUpgrade(success bool)

	// RecordPanicRecovered is called when safeDrop recovers from a panic
	// raised by a user Dropper.
	RecordPanicRecovered()
}

// NoOpMetricsCollector is a MetricsCollector that does nothing. Used as the
// default so call sites never need a nil check; the Go compiler typically
// inlines these methods away entirely.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordRetire(kind string)          {}
func (NoOpMetricsCollector) RecordBatchPublished(size int)     {}
func (NoOpMetricsCollector) RecordBatchReclaimed(size int)     {}
func (NoOpMetricsCollector) RecordEnter()                      {}
func (NoOpMetricsCollector) RecordLeave(durationNs int64)      {}
func (NoOpMetricsCollector) RecordSnapshot()                   {}
func (NoOpMetricsCollector) RecordUpgrade(success bool)        {}
func (NoOpMetricsCollector) RecordPanicRecovered()             {}
