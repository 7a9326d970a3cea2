// errors.go: structured error handling for gossamer operations.
//
// This file provides structured error types using the go-errors library,
// giving rich error context, categorization, and standardized error codes
// for allocation, reclamation, and atomic cell operations.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package gossamer

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for gossamer operations.
const (
	// Configuration errors (1xxx)
	ErrCodeInvalidBatchCapacity errors.ErrorCode = "GOSSAMER_INVALID_BATCH_CAPACITY"
	ErrCodeInvalidSlotFactor    errors.ErrorCode = "GOSSAMER_INVALID_SLOT_FACTOR"

	// Reclaimer errors (2xxx)
	ErrCodeMismatchedReclaimer errors.ErrorCode = "GOSSAMER_MISMATCHED_RECLAIMER"
	ErrCodeSlotExhausted       errors.ErrorCode = "GOSSAMER_SLOT_EXHAUSTED"
	ErrCodePanicRecovered      errors.ErrorCode = "GOSSAMER_PANIC_RECOVERED"

	// Handle errors (3xxx)
	ErrCodeUpgradeFailed        errors.ErrorCode = "GOSSAMER_UPGRADE_FAILED"
	ErrCodeCompareExchangeStale errors.ErrorCode = "GOSSAMER_COMPARE_EXCHANGE_STALE"
	ErrCodeNilHandle            errors.ErrorCode = "GOSSAMER_NIL_HANDLE"

	// Hot-reload errors (4xxx)
	ErrCodeHotReloadParse errors.ErrorCode = "GOSSAMER_HOT_RELOAD_PARSE"
)

// Common error messages.
const (
	msgInvalidBatchCapacity = "invalid batch capacity base: must be greater than 0"
	msgInvalidSlotFactor    = "invalid slot capacity factor: must be greater than 0"
	msgMismatchedReclaimer  = "handle belongs to a different reclaimer than the cell it was passed to"
	msgSlotExhausted        = "no reusable slot available and slot table append failed"
	msgPanicRecovered       = "panic recovered while running a retired drop operation"
	msgUpgradeFailed        = "weak handle could not be upgraded: strong count already sealed at zero"
	msgCompareExchangeStale = "compare_exchange failed: observed pointer no longer matches the cell"
	msgNilHandle            = "operation requires a non-nil handle"
	msgHotReloadParse       = "failed to parse hot-reloaded configuration"
)

// =============================================================================
// CONFIGURATION ERRORS
// =============================================================================

// NewErrInvalidBatchCapacity creates an error for an invalid batch capacity base.
func NewErrInvalidBatchCapacity(value int) error {
	return errors.NewWithContext(ErrCodeInvalidBatchCapacity, msgInvalidBatchCapacity, map[string]interface{}{
		"provided_value":   value,
		"minimum_required": 1,
	})
}

// NewErrInvalidSlotFactor creates an error for an invalid slot capacity factor.
func NewErrInvalidSlotFactor(value int) error {
	return errors.NewWithContext(ErrCodeInvalidSlotFactor, msgInvalidSlotFactor, map[string]interface{}{
		"provided_value":   value,
		"minimum_required": 1,
	})
}

// =============================================================================
// RECLAIMER ERRORS
// =============================================================================

// errMismatchedReclaimer reports that a handle was passed to a cell owned by
// a different Reclaimer. Retryable: the common cause is a test constructing
// a fresh isolated Reclaimer for isolation and mixing handles across it and
// the process default.
func errMismatchedReclaimer(cellReclaimerID, handleReclaimerID uint64) error {
	return errors.NewWithContext(ErrCodeMismatchedReclaimer, msgMismatchedReclaimer, map[string]interface{}{
		"cell_reclaimer_id":   cellReclaimerID,
		"handle_reclaimer_id": handleReclaimerID,
	}).AsRetryable()
}

// errSlotExhausted reports that the reclaimer could not obtain a slot. Not
// expected in practice since the slot table grows without bound; kept as a
// defensive structured error rather than a panic.
func errSlotExhausted() error {
	return errors.New(ErrCodeSlotExhausted, msgSlotExhausted).AsRetryable()
}

// NewErrPanicRecovered creates an error describing a panic recovered while
// running a retired drop operation (spec.md 4.4's panic-safety guarantee).
func NewErrPanicRecovered(panicValue interface{}) error {
	return errors.NewWithContext(ErrCodePanicRecovered, msgPanicRecovered, map[string]interface{}{
		"panic_value": panicValue,
	}).WithSeverity("critical")
}

// =============================================================================
// HANDLE ERRORS
// =============================================================================

// errUpgradeFailed reports that Upgrade observed a sealed strong counter.
// Not a program error: this is the expected outcome of racing a final
// Release. Exists for call sites that prefer an error return over a bool.
func errUpgradeFailed() error {
	return errors.New(ErrCodeUpgradeFailed, msgUpgradeFailed)
}

// errCompareExchangeStale reports a failed CompareExchange. Wrapped by
// CompareExchangeError/SnapshotCompareExchangeError/WeakCompareExchangeError
// (cell_strong.go, cell_weak.go), which attach the cell's pointer, as read
// right after the failed attempt, as a handle.
func errCompareExchangeStale() error {
	return errors.New(ErrCodeCompareExchangeStale, msgCompareExchangeStale).AsRetryable()
}

// errNilHandle reports that an operation was given a nil handle where one
// is required.
func errNilHandle() error {
	return errors.New(ErrCodeNilHandle, msgNilHandle)
}

// =============================================================================
// HOT-RELOAD ERRORS
// =============================================================================

func newErrHotReloadParse(reason string) error {
	return errors.NewWithField(ErrCodeHotReloadParse, msgHotReloadParse, "reason", reason)
}

// =============================================================================
// ERROR CHECKING HELPERS
// =============================================================================

// IsRetryable reports whether err can be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the error code from an error, if any.
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}
