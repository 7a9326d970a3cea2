// reclaim.go: the hazard-plus-batch safe memory reclaimer (SMR).
//
// Grounded on aarc-rs's StandardReclaimer (_examples/original_source/
// src/smr/standard_reclaimer.rs): an append-only slot table, per-slot
// critical-section depth and snapshot pointer, batched retirements
// published as a refcounted Batch once the local accumulation threshold is
// reached, and conflict lists that keep a published batch alive until every
// slot that could have observed one of its pointers has released it.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package gossamer

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/agilira/gossamer/internal/slottable"
)

// slot is a per-registration record in the reclaimer's append-only table.
// Exactly one goroutine may hold a slot's claim at a time; which goroutine
// that is changes over the slot's lifetime (see the package doc comment on
// Reclaimer.acquireSlot for why this is the idiomatic Go substitute for
// OS thread-local storage).
type slot struct {
	claimed atomic.Bool

	// Critical-section side: activeDepth supports re-entrant Enter/Leave;
	// pendingConflicts holds batches that must outlive this slot's current
	// critical section.
	activeDepth      atomic.Int32
	pendingConflicts unsafe.Pointer // *batchRef, atomic

	// Snapshot side: a slot claimed to host one long-lived Snapshot records
	// the pointer it observed plus any batches retired while it was live.
	snapshotPtr       unsafe.Pointer
	snapshotConflicts unsafe.Pointer // *batchRef, atomic

	// localBatch accumulates retirements made while this slot is claimed,
	// persisting across different claimants (always safe: claim exclusivity
	// means only one goroutine ever touches it at a time).
	localBatch []retirement
}

// retirement is a single (pointer, drop operation) pair awaiting safe
// execution, per spec.md 9.
type retirement struct {
	ptr  unsafe.Pointer
	drop dropOp
}

// batchRef links a sharedBatch into a slot's pendingConflicts or
// snapshotConflicts list. Each node holds one reference-count unit on the
// batch it names.
type batchRef struct {
	batch *sharedBatch
	next  unsafe.Pointer // *batchRef, atomic
}

// sharedBatch is a group of retirements published together. It is kept
// alive by an internal atomic refcount distinct from the user-facing
// strong/weak counts (spec.md 6's "small atomically-refcounted shared
// record"): one unit for the publisher's own local handle, plus one per
// conflict-list entry pushed onto a slot that might still observe one of
// its pointers.
type sharedBatch struct {
	refs   atomic.Int64
	items  []retirement
	member map[unsafe.Pointer]struct{}
}

// Reclaimer is the process-lifetime (or test-isolated) SMR engine shared by
// every AtomicStrong/AtomicWeak cell constructed against it. spec.md 9
// permits a "fresh reclaimer" constructor for test isolation provided
// handles from different reclaimers never mix in the same cell; NewReclaimer
// is that constructor, and every cell/handle in this package carries a
// pointer to its owning Reclaimer so a mismatch is a runtime error (see
// errMismatchedReclaimer) rather than silent corruption.
type Reclaimer struct {
	id     uint64
	slots  *slottable.Table[*slot]
	pool   sync.Pool
	cfg    Config
	epoch  atomic.Uint64
}

var reclaimerIDs atomic.Uint64

// NewReclaimer constructs an isolated Reclaimer with its own slot table,
// suitable for test isolation or for running independent SMR domains within
// one process.
func NewReclaimer(cfg Config) *Reclaimer {
	if err := cfg.Validate(); err != nil {
		// Validate never actually fails today, but keep the contract
		// honest for future tightening.
		cfg = DefaultConfig()
	}
	r := &Reclaimer{
		id:    reclaimerIDs.Add(1),
		slots: slottable.New[*slot](),
		cfg:   cfg,
	}
	r.pool.New = func() any { return nil }
	return r
}

var defaultReclaimer = NewReclaimer(DefaultConfig())

// Default returns the process-wide shared Reclaimer used when callers don't
// need test isolation.
func Default() *Reclaimer { return defaultReclaimer }

// nextEpoch stamps a monotonically increasing birth epoch for a new
// allocation block (spec.md 3's optional metadata).
func (r *Reclaimer) nextEpoch() uint64 { return r.epoch.Add(1) }

// identity returns the Reclaimer's instance identifier, used to detect handles
// crossing between independently constructed reclaimers.
func (r *Reclaimer) identity() uint64 { return r.id }

func (r *Reclaimer) batchCapacity() int {
	n := r.slots.Count()
	cap := r.cfg.BatchCapacityBase + n*r.cfg.SlotCapacityFactor
	if cap < r.cfg.BatchCapacityBase {
		cap = r.cfg.BatchCapacityBase
	}
	return cap
}

// acquireSlot claims a slot for the duration of one critical section or one
// Snapshot's lifetime.
//
// Go has no per-OS-thread storage with an exit destructor (goroutines are
// not OS threads). The idiomatic substitute used here: a sync.Pool caches
// recently-released, already-unclaimed slots for fast reuse (approximating
// thread-local affinity without requiring it), falling back to the slot
// table's find-or-append-under-a-predicate operation — scanning for any
// slot whose claimed flag CASes false->true, appending a freshly claimed
// one otherwise. This is spec.md 6's documented no-op-safe branch: a
// goroutine that never releases its slot simply stalls that one slot's
// contribution to reclamation, never memory safety.
func (r *Reclaimer) acquireSlot() *slot {
	if v := r.pool.Get(); v != nil {
		s := v.(*slot)
		if s.claimed.CompareAndSwap(false, true) {
			return s
		}
		// Lost a race with another acquirer that also pulled this slot out
		// of the pool concurrently; fall through to the table scan.
	}
	return r.slots.FindOrAppend(
		func(s *slot) bool { return s.claimed.CompareAndSwap(false, true) },
		func() *slot {
			s := &slot{}
			s.claimed.Store(true)
			return s
		},
	)
}

func (r *Reclaimer) releaseSlot(s *slot) {
	s.claimed.Store(false)
	r.pool.Put(s)
}

// Guard represents an open protected region (spec.md's "critical section").
// Retirements published while a Guard is open on some slot cannot complete
// until every such Guard has been released.
type Guard struct {
	r         *Reclaimer
	s         *slot
	enteredAt int64
}

// Enter opens a protected region on a freshly claimed (or reused) slot.
// Re-entrant: nested Enter/Leave pairs on logically the same call stack are
// supported via activeDepth, though in practice each Enter call claims its
// own slot rather than sharing one across nested calls.
func (r *Reclaimer) Enter() *Guard {
	s := r.acquireSlot()
	s.activeDepth.Add(1)
	r.cfg.MetricsCollector.RecordEnter()
	return &Guard{r: r, s: s, enteredAt: r.cfg.TimeProvider.Now()}
}

// Leave closes the protected region. If this was the last nested Enter on
// s, any batches that accumulated pending conflicts against s while it was
// active become eligible to drop.
func (g *Guard) Leave() {
	if g == nil {
		return
	}
	if g.s.activeDepth.Add(-1) == 0 {
		g.r.drainPending(&g.s.pendingConflicts)
	}
	g.r.cfg.MetricsCollector.RecordLeave(g.r.cfg.TimeProvider.Now() - g.enteredAt)
	g.r.releaseSlot(g.s)
}

// SnapshotGuard backs one Snapshot's protection: a dedicated claimed slot
// recording the single pointer it observed.
type SnapshotGuard struct {
	r *Reclaimer
	s *slot
}

// registerSnapshot claims a slot and atomically records ptr as observed.
// A batch published before the record is stored does not see it, so the
// caller must re-read the source of ptr after registering and release the
// guard if it has moved on, as AtomicStrong.LoadSnapshot does.
func (r *Reclaimer) registerSnapshot(ptr unsafe.Pointer) *SnapshotGuard {
	s := r.acquireSlot()
	atomic.StorePointer(&s.snapshotPtr, ptr)
	r.cfg.MetricsCollector.RecordSnapshot()
	return &SnapshotGuard{r: r, s: s}
}

// Release ends the snapshot's protection.
func (g *SnapshotGuard) Release() {
	if g == nil {
		return
	}
	atomic.StorePointer(&g.s.snapshotPtr, nil)
	g.r.drainPending(&g.s.snapshotConflicts)
	g.r.releaseSlot(g.s)
}

// drainPending atomically detaches the conflict list rooted at head and
// releases every batch reference found in it. Called both when a critical
// section/snapshot ends and, defensively, from publish when a push raced
// with the owning slot's own drain (see publish's comment).
func (r *Reclaimer) drainPending(head *unsafe.Pointer) {
	p := atomic.SwapPointer(head, nil)
	for p != nil {
		ref := (*batchRef)(p)
		r.releaseBatchRef(ref.batch)
		p = ref.next
	}
}

func pushConflict(head *unsafe.Pointer, b *sharedBatch) {
	ref := &batchRef{batch: b}
	for {
		cur := atomic.LoadPointer(head)
		ref.next = cur
		if atomic.CompareAndSwapPointer(head, cur, unsafe.Pointer(ref)) {
			return
		}
	}
}

// retire hands a (ptr, drop) pair to the reclaimer for deferred execution,
// batching it locally on s until the dynamic capacity threshold is reached.
func (r *Reclaimer) retire(s *slot, ptr unsafe.Pointer, drop dropOp, kind string) {
	r.cfg.MetricsCollector.RecordRetire(kind)
	s.localBatch = append(s.localBatch, retirement{ptr: ptr, drop: drop})
	if len(s.localBatch) < r.batchCapacity() {
		return
	}
	r.publish(s)
}

// publish wraps s's accumulated retirements into a sharedBatch and, for
// every registered slot, either registers the batch as a pending conflict
// (if that slot is mid critical-section) or checks its live snapshot
// pointer for membership (if it is idle), per spec.md 4.2.3.
func (r *Reclaimer) publish(s *slot) {
	items := s.localBatch
	s.localBatch = nil
	if len(items) == 0 {
		return
	}
	member := make(map[unsafe.Pointer]struct{}, len(items))
	for _, it := range items {
		member[it.ptr] = struct{}{}
	}
	b := &sharedBatch{items: items, member: member}
	b.refs.Store(1) // the publisher's own handle, dropped at the end of this func

	r.slots.Range(func(other *slot) bool {
		if other.activeDepth.Load() > 0 {
			b.refs.Add(1)
			pushConflict(&other.pendingConflicts, b)
			// The target slot may have left its critical section between
			// our load above and this push; drain defensively so a
			// just-missed Leave never strands the reference.
			if other.activeDepth.Load() == 0 {
				r.drainPending(&other.pendingConflicts)
			}
			return true
		}
		p := atomic.LoadPointer(&other.snapshotPtr)
		if p == nil {
			return true
		}
		if _, ok := b.member[p]; ok {
			b.refs.Add(1)
			pushConflict(&other.snapshotConflicts, b)
			if atomic.LoadPointer(&other.snapshotPtr) != p {
				r.drainPending(&other.snapshotConflicts)
			}
		}
		return true
	})

	r.releaseBatchRef(b)
	r.cfg.MetricsCollector.RecordBatchPublished(len(items))
}

// releaseBatchRef drops one refcount unit on b, running every retirement's
// drop operation exactly once when the count reaches zero.
func (r *Reclaimer) releaseBatchRef(b *sharedBatch) {
	if b.refs.Add(-1) != 0 {
		return
	}
	for _, it := range b.items {
		r.safeDrop(it)
	}
	r.cfg.MetricsCollector.RecordBatchReclaimed(len(b.items))
}

// Retire hands a single (ptr, drop) pair to the reclaimer for deferred,
// safe execution. Called by StrongPtr.Release (including through Store) and
// by AtomicStrong's CompareExchange/Drop when a strong decrement seals the
// count at zero, and by WeakPtr.Release and AtomicWeak's
// CompareExchangeWeak/Drop on every weak release - there is exactly one
// release path in this package, never a direct synchronous drop, because any other
// goroutine could be holding a Snapshot against this exact allocation via
// an unrelated cell with no count of its own to protect it.
func (r *Reclaimer) Retire(ptr unsafe.Pointer, drop dropOp, kind string) {
	s := r.acquireSlot()
	r.retire(s, ptr, drop, kind)
	r.releaseSlot(s)
}

// safeDrop invokes a retirement's drop operation, recovering from and
// logging any panic so one failing user Dropper never prevents the rest of
// the batch from running, per spec.md 4.4.
func (r *Reclaimer) safeDrop(it retirement) {
	defer func() {
		if rec := recover(); rec != nil {
			r.cfg.MetricsCollector.RecordPanicRecovered()
			r.cfg.Logger.Error("gossamer: panic recovered in retirement drop", "panic", rec, "error", NewErrPanicRecovered(rec))
		}
	}()
	it.drop(it.ptr)
}
