// gossamer.go: library-wide constants.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package gossamer

const (
	// Version of the gossamer library.
	Version = "v0.1.0-dev"

	// DefaultBatchCapacityBase is the minimum number of retirements a
	// reclaimer accumulates locally before publishing a shared batch, before
	// scaling by the number of registered slots.
	DefaultBatchCapacityBase = 64

	// DefaultSlotCapacityFactor scales batch capacity by the number of
	// slots currently registered with the reclaimer, so a busier process
	// amortizes publication over a proportionally larger batch.
	DefaultSlotCapacityFactor = 2
)
