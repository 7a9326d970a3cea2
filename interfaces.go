// interfaces.go: public interfaces for gossamer
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gossamer

// Logger defines a minimal logging interface with zero overhead when unused.
// Implementations should use structured logging and be allocation-free.
// gossamer only ever logs off the hot path: a recovered panic from a
// retired Dropper.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keyvals ...interface{})

	// Info logs an info message with optional key-value pairs.
	Info(msg string, keyvals ...interface{})

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keyvals ...interface{})

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keyvals ...interface{})
}

// NoOpLogger is a logger that does nothing. Used as the default so call
// sites never need a nil check.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, keyvals ...interface{}) {}
func (NoOpLogger) Info(msg string, keyvals ...interface{})  {}
func (NoOpLogger) Warn(msg string, keyvals ...interface{})  {}
func (NoOpLogger) Error(msg string, keyvals ...interface{}) {}

// TimeProvider provides the current time with caching for performance. This
// interface allows injecting an optimized time implementation; the default
// is backed by go-timecache.
type TimeProvider interface {
	// Now returns the current time in nanoseconds since epoch. Must be
	// fast and allocation-free: it is called on every Reclaimer.Enter and
	// Guard.Leave.
	Now() int64
}
