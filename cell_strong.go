// cell_strong.go: strong handles, snapshots, and the AtomicStrong cell.
//
// Grounded on aarc-rs's Arc/Snapshot/AtomicArc (_examples/original_source/
// src/shared_ptrs.rs, src/atomics.rs): a strong handle's Release always
// routes through the reclaimer once its count seals at zero. Store releases
// the displaced pointer through that same Release; CompareExchangeStrong,
// CompareExchangeSnapshot and Drop apply the same decrement-then-retire gate
// inline; Swap hands the displaced pointer to the caller as an owned handle.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package gossamer

import (
	"sync/atomic"
	"unsafe"
)

// StrongPtr is an exclusively held strong reference to a value of type T.
// It is not safe for concurrent use by multiple goroutines without external
// synchronization; to share a value across goroutines, store it in an
// AtomicStrong cell and have each goroutine call LoadStrong or LoadSnapshot.
type StrongPtr[T any] struct {
	r *Reclaimer
	b *block[T]
}

// NewStrong allocates a new block holding v, returning a strong handle to it
// with a strong count of one.
func NewStrong[T any](r *Reclaimer, v T) *StrongPtr[T] {
	return &StrongPtr[T]{r: r, b: newBlock(v, r.nextEpoch())}
}

// Value returns a pointer to the held value. The pointer is valid for as
// long as s (or any clone of it, or any Snapshot/StrongPtr derived from the
// same block) has not been released.
func (s *StrongPtr[T]) Value() *T {
	return &s.b.value
}

// Clone returns a new independent strong handle to the same block, bumping
// the strong count. Safe unconditionally: s itself holding a reference
// means the count cannot have sealed.
func (s *StrongPtr[T]) Clone() *StrongPtr[T] {
	s.b.strong.n.Add(1)
	return &StrongPtr[T]{r: s.r, b: s.b}
}

// Downgrade returns a new weak handle to the same block, bumping the weak
// count. Safe unconditionally for the same reason as Clone.
func (s *StrongPtr[T]) Downgrade() *WeakPtr[T] {
	s.b.weak.Add(1)
	return &WeakPtr[T]{r: s.r, b: s.b}
}

// Release gives up this strong reference. If this is the last strong
// reference, the value's Dropper is run (if implemented) and the block's
// weak token is released, but only once the reclaimer has established that
// no protected region or Snapshot could still be reading the value. The
// block is handed to Reclaimer.Retire; if that retirement fills the local
// batch and no reader conflicts with it, the drop runs before this call
// returns.
func (s *StrongPtr[T]) Release() {
	if s == nil {
		return
	}
	if s.b.strong.decrement() {
		s.r.Retire(unsafe.Pointer(s.b), strongDropFor[T](), "strong")
	}
}

// Snapshot is a short-lived, read-only view of a value held by an
// AtomicStrong cell, obtained without bumping the strong counter (spec's
// fine-grained hazard-pointer-style protection, as opposed to a cloned
// StrongPtr's counted ownership). Cheaper to obtain than LoadStrong under
// contention, at the cost of being unable to outlive the reclaimer's
// protection window for more than the caller's intended use: release it
// promptly.
type Snapshot[T any] struct {
	r     *Reclaimer
	b     *block[T]
	guard *SnapshotGuard
}

// Value returns a pointer to the held value, valid until Release.
func (s *Snapshot[T]) Value() *T {
	return &s.b.value
}

// TryClone attempts to upgrade this snapshot into an owned strong handle,
// bumping the strong count. Fails only if the count has already sealed at
// zero - which this snapshot's own protection prevents the underlying
// memory from being reused for, but does not prevent the logical count
// from reaching zero concurrently.
func (s *Snapshot[T]) TryClone() (*StrongPtr[T], bool) {
	if s.b.strong.tryIncrement() {
		return &StrongPtr[T]{r: s.r, b: s.b}, true
	}
	return nil, false
}

// Release ends the snapshot's protection. After this call Value's pointer
// must no longer be dereferenced.
func (s *Snapshot[T]) Release() {
	if s == nil {
		return
	}
	s.guard.Release()
}

// CompareExchangeError reports a failed CompareExchangeStrong. Observed
// carries the cell's pointer as read right after the failed attempt (see
// CompareExchangeStrong), packaged as a strong handle (nil if the cell was
// then empty). The caller owns Observed and must eventually Release it.
type CompareExchangeError[T any] struct {
	cause    error
	Observed *StrongPtr[T]
}

func (e *CompareExchangeError[T]) Error() string { return e.cause.Error() }
func (e *CompareExchangeError[T]) Unwrap() error { return e.cause }

// SnapshotCompareExchangeError reports a failed CompareExchangeSnapshot.
// Observed carries the cell's pointer as read right after the failed
// attempt, packaged as a Snapshot (nil if the cell was then empty). The
// caller must eventually Release it.
type SnapshotCompareExchangeError[T any] struct {
	cause    error
	Observed *Snapshot[T]
}

func (e *SnapshotCompareExchangeError[T]) Error() string { return e.cause.Error() }
func (e *SnapshotCompareExchangeError[T]) Unwrap() error { return e.cause }

// AtomicStrong is an atomically updatable strong-reference cell: spec's
// core building block for sharing a mutable pointer to a value across
// goroutines without locks.
type AtomicStrong[T any] struct {
	r   *Reclaimer
	ptr unsafe.Pointer // *block[T], accessed only through sync/atomic
}

// NewAtomicStrong constructs an empty cell bound to r. All handles passed to
// its methods must have been constructed against the same Reclaimer.
func NewAtomicStrong[T any](r *Reclaimer) *AtomicStrong[T] {
	return &AtomicStrong[T]{r: r}
}

func (c *AtomicStrong[T]) checkHandle(r *Reclaimer) {
	if r != nil && r.identity() != c.r.identity() {
		panic(errMismatchedReclaimer(c.r.identity(), r.identity()))
	}
}

// LoadStrong returns a new owned strong handle to the cell's current value,
// or (nil, false) if the cell is empty. Bumps the strong count; safe to
// call concurrently with Store/Swap/CompareExchangeStrong on the same cell.
func (c *AtomicStrong[T]) LoadStrong() (*StrongPtr[T], bool) {
	g := c.r.Enter()
	defer g.Leave()
	for {
		p := atomic.LoadPointer(&c.ptr)
		if p == nil {
			return nil, false
		}
		b := (*block[T])(p)
		if b.strong.tryIncrement() {
			return &StrongPtr[T]{r: c.r, b: b}, true
		}
		// b sealed between our load and the increment attempt; the cell
		// may already hold a different pointer by now, or nil. Reload.
	}
}

// LoadSnapshot returns a fine-grained, read-only Snapshot of the cell's
// current value, or (nil, false) if the cell is empty. Cheaper than
// LoadStrong (no counter traffic) but must be released promptly.
func (c *AtomicStrong[T]) LoadSnapshot() (*Snapshot[T], bool) {
	for {
		p := atomic.LoadPointer(&c.ptr)
		if p == nil {
			return nil, false
		}
		g := c.r.registerSnapshot(p)
		if atomic.LoadPointer(&c.ptr) != p {
			// The cell moved on before our protection was visible; the
			// pointer we registered may already be retired elsewhere.
			g.Release()
			continue
		}
		return &Snapshot[T]{r: c.r, b: (*block[T])(p), guard: g}, true
	}
}

// Swap stores new into the cell and returns the previously stored value as
// an owned strong handle (nil if the cell was empty). new's strong count is
// incremented before it is published; new remains valid for the caller's own
// continued use afterward. The caller is responsible for eventually
// releasing both new (its own handle) and the returned displaced handle.
//
// Grounded on aarc-rs's AtomicArc::store/after_swap (_examples/
// original_source/src/atomics.rs:94-110): new is taken by reference and
// incremented, never consumed; only the displaced pointer is retired.
func (c *AtomicStrong[T]) Swap(new *StrongPtr[T]) *StrongPtr[T] {
	if new != nil {
		c.checkHandle(new.r)
	}
	var newPtr unsafe.Pointer
	if new != nil {
		new.b.strong.n.Add(1)
		newPtr = unsafe.Pointer(new.b)
	}
	old := atomic.SwapPointer(&c.ptr, newPtr)
	if old == nil {
		return nil
	}
	return &StrongPtr[T]{r: c.r, b: (*block[T])(old)}
}

// Store stores new into the cell, retiring whatever was previously stored.
// new's strong count is incremented; new remains valid for the caller's own
// continued use afterward.
func (c *AtomicStrong[T]) Store(new *StrongPtr[T]) {
	c.Swap(new).Release()
}

// CompareExchangeStrong compares the cell's current pointer against old's
// (by identity, not value equality) and, if they match, stores new in its
// place. old is only ever read for comparison and is never consumed. On
// success new's strong count is incremented (new remains valid for the
// caller's own continued use) and the cell's own reference to the displaced
// pointer is given up exactly like StrongPtr.Release: a synchronous
// decrement, handed to the reclaimer only if that decrement seals the count
// at zero. Storing the identical pointer back (new == old) is a pure no-op,
// with no count traffic either way.
//
// On failure the returned error carries the cell's pointer as read by a
// follow-up load taken right after the failed compare-and-swap, inside the
// same protected region, packaged as a strong handle (nil if that load found
// the cell empty). Go's sync/atomic.CompareAndSwap does not report the value
// it observed, so if another writer changes the cell between the failed
// attempt and that load, Observed holds the newer pointer rather than the
// one the attempt compared against.
//
// Grounded on aarc-rs's AtomicArc::compare_exchange, which returns
// Err(Option<Guard<T>>) on mismatch (_examples/original_source/
// src/atomics.rs:62-84).
func (c *AtomicStrong[T]) CompareExchangeStrong(old, new *StrongPtr[T]) error {
	var oldPtr unsafe.Pointer
	if old != nil {
		c.checkHandle(old.r)
		oldPtr = unsafe.Pointer(old.b)
	}
	var newPtr unsafe.Pointer
	if new != nil {
		c.checkHandle(new.r)
		newPtr = unsafe.Pointer(new.b)
	}

	g := c.r.Enter()
	defer g.Leave()

	if !atomic.CompareAndSwapPointer(&c.ptr, oldPtr, newPtr) {
		return &CompareExchangeError[T]{cause: errCompareExchangeStale(), Observed: c.observeStrong()}
	}
	if newPtr != oldPtr {
		if new != nil {
			new.b.strong.n.Add(1)
		}
		if oldPtr != nil {
			if (*block[T])(oldPtr).strong.decrement() {
				c.r.Retire(oldPtr, strongDropFor[T](), "strong")
			}
		}
	}
	return nil
}

// CompareExchangeSnapshot behaves exactly like CompareExchangeStrong, except
// that a failed attempt packages the observed pointer as a cheaper Snapshot
// rather than a fully counted StrongPtr, avoiding counter traffic for
// callers that only need to inspect (not keep) the value they raced against.
func (c *AtomicStrong[T]) CompareExchangeSnapshot(old, new *StrongPtr[T]) error {
	var oldPtr unsafe.Pointer
	if old != nil {
		c.checkHandle(old.r)
		oldPtr = unsafe.Pointer(old.b)
	}
	var newPtr unsafe.Pointer
	if new != nil {
		c.checkHandle(new.r)
		newPtr = unsafe.Pointer(new.b)
	}

	g := c.r.Enter()
	defer g.Leave()

	if !atomic.CompareAndSwapPointer(&c.ptr, oldPtr, newPtr) {
		return &SnapshotCompareExchangeError[T]{cause: errCompareExchangeStale(), Observed: c.observeSnapshot()}
	}
	if newPtr != oldPtr {
		if new != nil {
			new.b.strong.n.Add(1)
		}
		if oldPtr != nil {
			if (*block[T])(oldPtr).strong.decrement() {
				c.r.Retire(oldPtr, strongDropFor[T](), "strong")
			}
		}
	}
	return nil
}

// observeStrong loads the cell's current pointer and packages it as a
// strong handle, for a failed CompareExchangeStrong. Must be called from
// within an already-open protected region (see CompareExchangeStrong): the
// open region's conflict registration is what guarantees no concurrent
// retirement can free the block between this load and the increment
// attempt. If the loaded block has already sealed, the cell has moved on
// and the load is repeated, so nil means the cell was empty.
func (c *AtomicStrong[T]) observeStrong() *StrongPtr[T] {
	for {
		p := atomic.LoadPointer(&c.ptr)
		if p == nil {
			return nil
		}
		b := (*block[T])(p)
		if b.strong.tryIncrement() {
			return &StrongPtr[T]{r: c.r, b: b}
		}
	}
}

// observeSnapshot loads the cell's current pointer and packages it as a
// Snapshot, for a failed CompareExchangeSnapshot. Like LoadSnapshot, it
// re-reads the cell after registering the snapshot record and retries if
// the cell has moved on: a batch published before the record was stored
// does not see it, so the pointer is only protected once the cell is
// confirmed to still hold it.
func (c *AtomicStrong[T]) observeSnapshot() *Snapshot[T] {
	for {
		p := atomic.LoadPointer(&c.ptr)
		if p == nil {
			return nil
		}
		g := c.r.registerSnapshot(p)
		if atomic.LoadPointer(&c.ptr) != p {
			g.Release()
			continue
		}
		return &Snapshot[T]{r: c.r, b: (*block[T])(p), guard: g}
	}
}

// Clone returns a new cell bound to the same Reclaimer, holding an
// independent strong reference to whatever block c currently points to (or
// empty, if c is empty or the block's strong count has already sealed).
//
// Grounded on spec.md 4.3.4: protected region, atomic load, increment on
// non-null, construct a new cell sharing the pointer.
func (c *AtomicStrong[T]) Clone() *AtomicStrong[T] {
	g := c.r.Enter()
	defer g.Leave()
	clone := &AtomicStrong[T]{r: c.r}
	p := atomic.LoadPointer(&c.ptr)
	if p != nil && (*block[T])(p).strong.tryIncrement() {
		atomic.StorePointer(&clone.ptr, p)
	}
	return clone
}

// Drop retires whatever block c currently points to, if any, leaving c
// empty. The cell holding a pointer is itself one strong-count unit, so
// this mirrors StrongPtr.Release exactly: decrement synchronously, and only
// if that decrement seals the count at zero, hand the block to the
// reclaimer for deferred destruction. Never call this from within code that
// still expects to read through c afterward - it is the producer of a
// retirement, not something meant to run on a hot read path.
func (c *AtomicStrong[T]) Drop() {
	p := atomic.SwapPointer(&c.ptr, nil)
	if p == nil {
		return
	}
	b := (*block[T])(p)
	if b.strong.decrement() {
		c.r.Retire(p, strongDropFor[T](), "strong")
	}
}
