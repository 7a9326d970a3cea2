// config.go: configuration for a gossamer Reclaimer
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gossamer

import (
	"github.com/agilira/go-timecache"
)

// Config tunes a Reclaimer's batching behavior and its ambient stack.
type Config struct {
	// BatchCapacityBase is the minimum number of retirements accumulated
	// locally before a batch is published. Must be > 0. Default:
	// DefaultBatchCapacityBase.
	BatchCapacityBase int

	// SlotCapacityFactor scales batch capacity by the number of slots
	// currently registered, so a busier process amortizes publication cost
	// over proportionally larger batches. Must be > 0. Default:
	// DefaultSlotCapacityFactor.
	SlotCapacityFactor int

	// Logger is used for diagnostics: panics recovered from user Dropper
	// implementations. HotConfig does not log. Never called on the hot path
	// of a cell load/store/swap/compare-exchange. If nil, NoOpLogger is
	// used. Default: NoOpLogger.
	Logger Logger

	// TimeProvider timestamps protected regions for the duration reported
	// to MetricsCollector.RecordLeave. Birth epochs come from a per-Reclaimer
	// counter, not from this provider. If nil, a default implementation is
	// used. Default: system time via go-timecache.
	TimeProvider TimeProvider

	// MetricsCollector observes retirement, batch, and reclaim activity.
	// If nil, NoOpMetricsCollector is used (zero overhead). Default:
	// NoOpMetricsCollector.
	MetricsCollector MetricsCollector
}

// Validate checks configuration parameters and applies sensible defaults.
// Returns nil; out-of-range numeric fields are normalized rather than
// rejected, matching this library's "normalize, don't fail" Validate
// contract. This method is called automatically by NewReclaimer.
func (c *Config) Validate() error {
	if c.BatchCapacityBase <= 0 {
		c.BatchCapacityBase = DefaultBatchCapacityBase
	}

	if c.SlotCapacityFactor <= 0 {
		c.SlotCapacityFactor = DefaultSlotCapacityFactor
	}

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}

	if c.TimeProvider == nil {
		c.TimeProvider = &systemTimeProvider{}
	}

	if c.MetricsCollector == nil {
		c.MetricsCollector = NoOpMetricsCollector{}
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchCapacityBase:  DefaultBatchCapacityBase,
		SlotCapacityFactor: DefaultSlotCapacityFactor,
		Logger:             NoOpLogger{},
		TimeProvider:       &systemTimeProvider{},
		MetricsCollector:   NoOpMetricsCollector{},
	}
}

// systemTimeProvider is the default time provider, backed by go-timecache.
// This gives cheap nanosecond timestamps for protected-region timing without
// the syscall cost of repeated time.Now() calls.
type systemTimeProvider struct{}

func (t *systemTimeProvider) Now() int64 {
	return timecache.CachedTimeNano()
}
