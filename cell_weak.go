// cell_weak.go: weak handles and the AtomicWeak cell.
//
// Grounded on aarc-rs's Weak/AtomicWeak (_examples/original_source/
// src/shared_ptrs.rs, src/atomics.rs): a weak handle never grants access to
// the value directly, only the chance to Upgrade into a strong handle while
// the value might still be alive.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package gossamer

import (
	"sync/atomic"
	"unsafe"
)

// WeakPtr is a weak reference: it keeps a block's bookkeeping alive without
// keeping its value alive, and can be Upgraded to a strong handle as long as
// some strong reference still exists somewhere.
type WeakPtr[T any] struct {
	r *Reclaimer
	b *block[T]
}

// Clone returns a new independent weak handle to the same block, bumping
// the weak count.
func (w *WeakPtr[T]) Clone() *WeakPtr[T] {
	w.b.weak.Add(1)
	return &WeakPtr[T]{r: w.r, b: w.b}
}

// Upgrade attempts to produce a new strong handle to the referenced value.
// Fails if the strong count has already sealed at zero, meaning every
// strong reference is gone and the value itself has been (or is about to
// be) dropped.
func (w *WeakPtr[T]) Upgrade() (*StrongPtr[T], bool) {
	ok := w.b.strong.tryIncrement()
	w.r.cfg.MetricsCollector.RecordUpgrade(ok)
	if !ok {
		return nil, false
	}
	return &StrongPtr[T]{r: w.r, b: w.b}, true
}

// Release gives up this weak reference. Routed through the reclaimer like
// every other release in this package, for a single uniform release path;
// Go's garbage collector (unlike a manual allocator) needs no help actually
// freeing the block once every strong and weak reference is gone, so this
// is a looser requirement here than in the original hand-managed-memory
// design it is grounded on, but it is kept for consistency and because the
// panic-safety guarantee (spec.md 4.4) should cover every drop path alike.
func (w *WeakPtr[T]) Release() {
	if w == nil {
		return
	}
	w.r.Retire(unsafe.Pointer(w.b), weakDropFor[T](), "weak")
}

// WeakCompareExchangeError reports a failed CompareExchangeWeak. Observed
// carries the cell's pointer as read right after the failed attempt (see
// CompareExchangeWeak), packaged as a weak handle (nil if the cell was then
// empty). The caller owns Observed and must eventually Release it.
type WeakCompareExchangeError[T any] struct {
	cause    error
	Observed *WeakPtr[T]
}

func (e *WeakCompareExchangeError[T]) Error() string { return e.cause.Error() }
func (e *WeakCompareExchangeError[T]) Unwrap() error { return e.cause }

// AtomicWeak is an atomically updatable weak-reference cell.
type AtomicWeak[T any] struct {
	r   *Reclaimer
	ptr unsafe.Pointer // *block[T], accessed only through sync/atomic
}

// NewAtomicWeak constructs an empty cell bound to r.
func NewAtomicWeak[T any](r *Reclaimer) *AtomicWeak[T] {
	return &AtomicWeak[T]{r: r}
}

func (c *AtomicWeak[T]) checkHandle(r *Reclaimer) {
	if r != nil && r.identity() != c.r.identity() {
		panic(errMismatchedReclaimer(c.r.identity(), r.identity()))
	}
}

// LoadWeak returns a new owned weak handle to the cell's current value, or
// (nil, false) if the cell is empty. Unlike LoadStrong this never races a
// sealing counter: weak has no seal bit, so the increment always succeeds
// once the protected region has established the pointer is still live.
func (c *AtomicWeak[T]) LoadWeak() (*WeakPtr[T], bool) {
	g := c.r.Enter()
	defer g.Leave()
	p := atomic.LoadPointer(&c.ptr)
	if p == nil {
		return nil, false
	}
	b := (*block[T])(p)
	b.weak.Add(1)
	return &WeakPtr[T]{r: c.r, b: b}, true
}

// Upgrade attempts to produce a new strong handle to the cell's current
// value, or (nil, false) if the cell is empty or the value's strong count
// has already sealed at zero.
func (c *AtomicWeak[T]) Upgrade() (*StrongPtr[T], bool) {
	g := c.r.Enter()
	defer g.Leave()
	p := atomic.LoadPointer(&c.ptr)
	if p == nil {
		return nil, false
	}
	b := (*block[T])(p)
	ok := b.strong.tryIncrement()
	c.r.cfg.MetricsCollector.RecordUpgrade(ok)
	if !ok {
		return nil, false
	}
	return &StrongPtr[T]{r: c.r, b: b}, true
}

// Swap stores new into the cell and returns the previously stored value as
// an owned weak handle (nil if the cell was empty). new's weak count is
// incremented before it is published; new remains valid for the caller's
// own continued use afterward.
//
// Grounded on aarc-rs's AtomicWeak::store/after_swap (_examples/
// original_source/src/atomics.rs:210-227): new is taken by reference and
// incremented, never consumed; only the displaced pointer is retired.
func (c *AtomicWeak[T]) Swap(new *WeakPtr[T]) *WeakPtr[T] {
	if new != nil {
		c.checkHandle(new.r)
	}
	var newPtr unsafe.Pointer
	if new != nil {
		new.b.weak.Add(1)
		newPtr = unsafe.Pointer(new.b)
	}
	old := atomic.SwapPointer(&c.ptr, newPtr)
	if old == nil {
		return nil
	}
	return &WeakPtr[T]{r: c.r, b: (*block[T])(old)}
}

// Store stores new into the cell, retiring whatever was previously stored.
// new's weak count is incremented; new remains valid for the caller's own
// continued use afterward.
func (c *AtomicWeak[T]) Store(new *WeakPtr[T]) {
	c.Swap(new).Release()
}

// CompareExchangeWeak compares the cell's current pointer against old's (by
// identity) and, if they match, stores new in its place. old is never
// consumed. On success new's weak count is incremented (new remains valid
// for the caller's own continued use) and the displaced pointer is retired;
// storing the identical pointer back (new == old) is a pure no-op.
//
// On failure the returned error carries the cell's pointer as read by a
// follow-up load taken before this method's protected region closes,
// packaged as a weak handle (nil if that load found the cell empty). As
// with CompareExchangeStrong, a writer that changes the cell between the
// failed attempt and that load makes Observed the newer pointer.
func (c *AtomicWeak[T]) CompareExchangeWeak(old, new *WeakPtr[T]) error {
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
		return &WeakCompareExchangeError[T]{cause: errCompareExchangeStale(), Observed: c.observeWeak()}
	}
	if newPtr != oldPtr {
		if new != nil {
			new.b.weak.Add(1)
		}
		if oldPtr != nil {
			c.r.Retire(oldPtr, weakDropFor[T](), "weak")
		}
	}
	return nil
}

// observeWeak loads the cell's current pointer and packages it as a weak
// handle, for a failed CompareExchangeWeak. Must be called from within an
// already-open protected region (see CompareExchangeWeak); weak has no
// sealed bit, so unlike observeStrong the increment here always succeeds
// once the pointer is known non-null.
func (c *AtomicWeak[T]) observeWeak() *WeakPtr[T] {
	p := atomic.LoadPointer(&c.ptr)
	if p == nil {
		return nil
	}
	b := (*block[T])(p)
	b.weak.Add(1)
	return &WeakPtr[T]{r: c.r, b: b}
}

// Clone returns a new cell bound to the same Reclaimer, holding an
// independent weak reference to whatever block c currently points to (or
// empty, if c is empty).
func (c *AtomicWeak[T]) Clone() *AtomicWeak[T] {
	g := c.r.Enter()
	defer g.Leave()
	clone := &AtomicWeak[T]{r: c.r}
	p := atomic.LoadPointer(&c.ptr)
	if p != nil {
		(*block[T])(p).weak.Add(1)
		atomic.StorePointer(&clone.ptr, p)
	}
	return clone
}

// Drop retires whatever block c currently points to, if any, leaving c
// empty.
func (c *AtomicWeak[T]) Drop() {
	p := atomic.SwapPointer(&c.ptr, nil)
	if p == nil {
		return
	}
	c.r.Retire(p, weakDropFor[T](), "weak")
}
