// block.go: allocation blocks and the sticky-zero strong counter.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package gossamer

import "sync/atomic"

// strongSealed is the high bit of a strongCounter's word. Once set, the
// counter is dead: no further tryIncrement can ever succeed again.
//
// Grounded on aarc-rs's StickyCounter (src/utils/sticky_counter.rs): a
// wait-free fetch-add/fetch-sub counter with a single "zero flag" bit,
// reimplemented here over sync/atomic.Uint32.
const strongSealed = uint32(1) << 31

// strongCounter is a wait-free "increment-if-not-zero" counter. It never
// blocks and the failure mode (sealed) is permanent and observable by all
// participants, which is what lets AtomicStrong.LoadStrong and
// AtomicWeak.Upgrade race a concurrent final Release safely.
type strongCounter struct {
	n atomic.Uint32
}

func newStrongCounter(initial uint32) strongCounter {
	var c strongCounter
	c.n.Store(initial)
	return c
}

// tryIncrement attempts to add one holder. It fails only once the counter
// has sealed at zero.
func (c *strongCounter) tryIncrement() bool {
	prev := c.n.Add(1) - 1
	if prev&strongSealed != 0 {
		c.n.Add(^uint32(0)) // restore: fetch_sub(1)
		return false
	}
	// prev == 0 here means a concurrent decrement observed 1->0 but has not
	// yet sealed the counter. We linearize our increment just before their
	// seal attempt, so their subsequent compare-and-swap(0, sealed) will
	// simply fail and decrement() will report that it did not reach zero.
	return true
}

// decrement removes one holder and reports whether this call is the one
// that sealed the counter at zero.
func (c *strongCounter) decrement() (sealed bool) {
	newV := c.n.Add(^uint32(0)) // fetch_sub(1)
	prev := newV + 1
	if prev != 1 {
		return false
	}
	if c.n.CompareAndSwap(0, strongSealed) {
		return true
	}
	// A concurrent tryIncrement raced in before we could seal the zero;
	// the counter did not reach zero after all.
	return false
}

// load reads the counter, masking out the seal bit. It helps seal a
// zero-but-unsealed counter it observes, matching the "helping" behavior
// described in spec.md 4.1.
func (c *strongCounter) load() uint32 {
	v := c.n.Load()
	if v == 0 {
		c.n.CompareAndSwap(0, strongSealed)
		return 0
	}
	return v &^ strongSealed
}

// Dropper is implemented by values that need to run cleanup exactly once,
// the moment their owning block's strong count seals at zero. Go has no
// user-defined destructors, so this interface is the idiomatic stand-in for
// spec.md's drop_value: if a cell's value type implements it, Drop is
// invoked from within the reclaimer's retirement closure, once the batch
// holding that retirement is released, and never more than once.
type Dropper interface {
	Drop()
}

// block is the allocation record backing one heap value: spec.md's
// "Allocation Block". It is never copied; all handles and cells reference
// it through a pointer, and its lifetime is governed entirely by the
// strong/weak counters plus the reclaimer's deferred retirements.
type block[T any] struct {
	value  T
	strong strongCounter
	weak   atomic.Uint32
	epoch  uint64 // birth epoch; diagnostic metadata only (spec.md 3)
	freed  atomic.Bool
}

func newBlock[T any](v T, epoch uint64) *block[T] {
	b := &block[T]{value: v, epoch: epoch}
	b.strong = newStrongCounter(1)
	b.weak.Store(1) // the +1 "strong holders collectively own one weak token"
	return b
}

// finalizeStrongDrop runs the value's Dropper (if any), clears the value,
// and releases the strong-aggregate's weak token. It must only run once a
// block's strong count has already sealed at zero (see StrongPtr.Release
// in cell_strong.go, which performs that decrement synchronously) and once
// the reclaimer has established that no protected region or Snapshot could
// still be dereferencing the value - so this function is always reached
// through a reclaimer retirement, never called directly.
func finalizeStrongDrop[T any](b *block[T]) {
	if d, ok := any(b.value).(Dropper); ok {
		d.Drop()
	}
	var zero T
	b.value = zero // aid the garbage collector and poison the dropped value
	weakRelease((*weakBlock[T])(b))
}

// weakBlock is block reinterpreted for the purposes of weak-count release;
// a distinct named type keeps weakRelease from needing to know about value
// drop semantics, mirroring spec.md's separation of the strong-drop and
// weak-drop closures (4.3.5).
type weakBlock[T any] block[T]

// weakRelease decrements b's weak count. Reaching zero means the block's
// memory is no longer needed by anything in this SMR domain; in a GC'd
// host language "freeing" means dropping the last reference so the
// collector reclaims it, which is why this function does nothing besides
// the decrement and, on reaching zero, setting the block's freed flag.
func weakRelease[T any](b *weakBlock[T]) {
	if b.weak.Add(^uint32(0)) == 0 {
		b.freed.Store(true)
	}
}
