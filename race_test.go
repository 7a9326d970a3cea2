// race_test.go: concurrency scenarios for gossamer's atomic cells and
// reclaimer, covering S1-S6 of the shared-pointer/SMR design: a counted
// stack, sorted concurrent insertion, a doubly-linked list traversed through
// weak back-edges, a sticky-counter upgrade race, reclaim-after-leave
// ordering, and a cycle broken by a weak edge.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gossamer

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"
)

// dropCounter is embedded into scenario node types so tests can assert that
// every allocated block is eventually dropped exactly once, with no
// double-drop.
type dropCounter struct {
	drops *atomic.Int64
}

func (d dropCounter) Drop() {
	d.drops.Add(1)
}

// flushAll forces every slot's locally accumulated retirements to publish
// immediately, regardless of whether they reached the reclaimer's batch
// capacity. Calling it once every test goroutine has joined and every Guard
// or Snapshot has been released means no slot can have a live conflict left
// to register, so each flushed batch's refcount drops to zero and its
// drops run synchronously within this call - there is no background
// reclaim goroutine to wait for.
func flushAll(r *Reclaimer) {
	r.slots.Range(func(s *slot) bool {
		r.publish(s)
		return true
	})
}

// -----------------------------------------------------------------------
// S1: counted stack - concurrent pushers, then a single-threaded drain; no
// lost or duplicated values, no double free.
// -----------------------------------------------------------------------

type stackNode struct {
	dropCounter
	val  int
	next *StrongPtr[stackNode]
}

func TestScenario_CountedStack(t *testing.T) {
	r := NewReclaimer(DefaultConfig())
	top := NewAtomicStrong[stackNode](r)
	drops := &atomic.Int64{}
	created := &atomic.Int64{}

	const pushers = 5
	const perPusher = 10

	var wg sync.WaitGroup
	wg.Add(pushers)
	for p := 0; p < pushers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perPusher; i++ {
				for {
					cur, _ := top.LoadSnapshot()
					var next *StrongPtr[stackNode]
					if cur != nil {
						clone, ok := cur.TryClone()
						cur.Release()
						if !ok {
							continue
						}
						next = clone
					}
					created.Add(1)
					node := NewStrong(r, stackNode{dropCounter: dropCounter{drops: drops}, val: base*perPusher + i, next: next})
					err := top.CompareExchangeStrong(next, node)
					// CompareExchangeStrong never consumes node: on success
					// the cell takes its own reference, so the local node
					// handle is released either way. next is embedded in
					// node's own next field: on success that field keeps
					// it; on failure node is discarded, so next and the
					// Observed handle packaged in the error are released.
					node.Release()
					if err == nil {
						break
					}
					if next != nil {
						next.Release()
					}
					if ceErr, ok := err.(*CompareExchangeError[stackNode]); ok {
						ceErr.Observed.Release()
					}
				}
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]int)
	count := 0
	for {
		h, ok := top.LoadStrong()
		if !ok {
			break
		}
		seen[h.Value().val]++
		count++
		// h.Value().next is the reference embedded in h's own struct field
		// when this node was pushed; Store now increments whatever it is
		// given rather than consuming it, so the cell's freshly incremented
		// copy and this field's original copy are two distinct units -
		// release the latter explicitly once the former is safely in place,
		// since h's own drop can never cascade into releasing it.
		next := h.Value().next
		top.Store(next)
		if next != nil {
			next.Release()
		}
		h.Release()
	}

	if count != pushers*perPusher {
		t.Fatalf("popped %d values, want %d", count, pushers*perPusher)
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("value %d observed %d times, want 1", v, n)
		}
	}

	// Every block this test ever allocated - whether it won its CAS and was
	// later popped, or lost and was released immediately - must be dropped
	// exactly once. Lost-race nodes inflate the total above
	// pushers*perPusher, so compare against what was actually created.
	flushAll(r)
	if drops.Load() != created.Load() {
		t.Fatalf("drops=%d, want %d (created)", drops.Load(), created.Load())
	}
}

// -----------------------------------------------------------------------
// S2: sorted insertion - concurrent goroutines each insert into a singly
// linked list rooted at a strong cell, producing a fully-linked, sorted
// list of every inserted value once all goroutines join.
// -----------------------------------------------------------------------

type sortedNode struct {
	dropCounter
	val  int
	next *StrongPtr[sortedNode]
}

// TestScenario_SortedInsertion exercises concurrent handle construction and
// release (NewStrong, Clone, Release) from multiple goroutines inserting
// into a shared sorted list. The list's own linkage is guarded by a mutex:
// the scenario's invariant under test is that concurrent holders of strong
// handles into the same reclaimer never corrupt or double-free a block, not
// that the list itself is a lock-free data structure.
func TestScenario_SortedInsertion(t *testing.T) {
	r := NewReclaimer(DefaultConfig())
	head := NewAtomicStrong[sortedNode](r)
	drops := &atomic.Int64{}
	var mu sync.Mutex

	const writers = 5
	const perWriter = 10

	insert := func(v int) {
		mu.Lock()
		defer mu.Unlock()

		cur, hasCur := head.LoadStrong()
		if !hasCur || cur.Value().val >= v {
			node := NewStrong(r, sortedNode{dropCounter: dropCounter{drops: drops}, val: v, next: cur})
			head.Store(node)
			node.Release()
			return
		}

		prev := cur
		for {
			// next is the reference prev's own struct field already owns.
			// On insertion that ownership moves into node.next as prev's
			// field is overwritten; when advancing, prev's field keeps it,
			// so next is cloned before prev is released.
			next := prev.Value().next
			if next == nil || next.Value().val >= v {
				node := NewStrong(r, sortedNode{dropCounter: dropCounter{drops: drops}, val: v, next: next})
				prev.Value().next = node
				prev.Release()
				return
			}
			nextOwned := next.Clone()
			prev.Release()
			prev = nextOwned
		}
	}

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				insert(id*perWriter + i)
			}
		}(w)
	}
	wg.Wait()

	var vals []int
	node, _ := head.LoadStrong()
	for node != nil {
		vals = append(vals, node.Value().val)
		nxt := node.Value().next
		var nextNode *StrongPtr[sortedNode]
		if nxt != nil {
			nextNode = nxt.Clone()
		}
		node.Release()
		node = nextNode
	}

	if len(vals) != writers*perWriter {
		t.Fatalf("list has %d nodes, want %d", len(vals), writers*perWriter)
	}
	if !sort.IntsAreSorted(vals) {
		t.Errorf("list is not sorted: %v", vals)
	}
}

// -----------------------------------------------------------------------
// S3: doubly-linked list with a weak prev edge - reverse traversal via
// Upgrade visits nodes in non-increasing order and never observes freed
// memory.
// -----------------------------------------------------------------------

type dllNode struct {
	dropCounter
	val  int
	next *StrongPtr[dllNode]
	prev *WeakPtr[dllNode]
}

func TestScenario_DoublyLinkedListWeakPrev(t *testing.T) {
	r := NewReclaimer(DefaultConfig())
	drops := &atomic.Int64{}

	const n = 20
	var nodes []*StrongPtr[dllNode]
	var prevWeak *WeakPtr[dllNode]
	for i := 0; i < n; i++ {
		node := NewStrong(r, dllNode{dropCounter: dropCounter{drops: drops}, val: i, prev: prevWeak})
		nodes = append(nodes, node)
		prevWeak = node.Downgrade()
	}
	tail := nodes[n-1].Clone()

	var got []int
	cur := tail
	for cur != nil {
		got = append(got, cur.Value().val)
		prevW := cur.Value().prev
		cur.Release()
		if prevW == nil {
			break
		}
		up, ok := prevW.Upgrade()
		if !ok {
			t.Fatal("upgrade of a live predecessor unexpectedly failed")
		}
		cur = up
	}

	if len(got) != n {
		t.Fatalf("reverse traversal visited %d nodes, want %d", len(got), n)
	}
	for i := 1; i < len(got); i++ {
		if got[i] > got[i-1] {
			t.Fatalf("reverse traversal not non-increasing at index %d: %v", i, got)
		}
	}

	for _, node := range nodes {
		node.Release()
	}
	prevWeak.Release()

	flushAll(r)
	if drops.Load() != n {
		t.Fatalf("drops=%d, want %d", drops.Load(), n)
	}
}

// -----------------------------------------------------------------------
// S4: sticky counter race - a weak Upgrade racing the last strong Release
// must never observe a torn outcome where the upgrade succeeds but the
// value is dropped while the resulting strong handle is still held.
// -----------------------------------------------------------------------

type stickyVal struct {
	dropCounter
	tag int
}

func TestScenario_StickyCounterUpgradeRace(t *testing.T) {
	drops := &atomic.Int64{}
	const iterations = 500

	for i := 0; i < iterations; i++ {
		r := NewReclaimer(DefaultConfig())
		strong := NewStrong(r, stickyVal{dropCounter: dropCounter{drops: drops}, tag: i})
		weak := strong.Downgrade()

		var wg sync.WaitGroup
		wg.Add(2)

		var upgraded *StrongPtr[stickyVal]
		var upgradedOK bool
		go func() {
			defer wg.Done()
			upgraded, upgradedOK = weak.Upgrade()
		}()
		go func() {
			defer wg.Done()
			strong.Release()
		}()
		wg.Wait()

		if upgradedOK {
			// The value must still be intact: a successful Upgrade holds its
			// own strong reference, so the drop (gated by the sticky-zero
			// seal) cannot have run yet.
			if upgraded.Value().tag != i {
				t.Fatalf("iteration %d: upgraded value corrupted: got tag %d", i, upgraded.Value().tag)
			}
			upgraded.Release()
		}
		weak.Release()
		flushAll(r)
	}

	if drops.Load() != int64(iterations) {
		t.Fatalf("drops=%d, want %d", drops.Load(), iterations)
	}
}

// -----------------------------------------------------------------------
// S5: reclaim-after-leave - a retirement published while a reader holds an
// open protected region must not run its drop until that reader leaves.
// -----------------------------------------------------------------------

type guardedVal struct {
	dropCounter
	n int
}

// TestScenario_ReclaimAfterLeave drives the reclaimer directly (this file is
// an in-package test, so the unexported acquireSlot/retire/releaseSlot are
// reachable) rather than through repeated cell displacement: that keeps the
// batch-publish trigger deterministic instead of depending on whether the
// Go runtime happens to reuse the same pooled slot across separate calls.
func TestScenario_ReclaimAfterLeave(t *testing.T) {
	r := NewReclaimer(Config{BatchCapacityBase: 1, SlotCapacityFactor: 1})
	drops := &atomic.Int64{}

	target := NewStrong(r, guardedVal{dropCounter: dropCounter{drops: drops}, n: 1})
	targetPtr := unsafe.Pointer(target.b)

	// Protect target's block as a live snapshot before anything retires it.
	// This claims the reclaimer's first slot; acquireSlot below claims its
	// second, so batchCapacity stabilizes at
	// BatchCapacityBase + 2*SlotCapacityFactor = 3 for the rest of this test.
	snapGuard := r.registerSnapshot(targetPtr)

	filler1 := NewStrong(r, guardedVal{dropCounter: dropCounter{drops: drops}, n: 2})
	filler2 := NewStrong(r, guardedVal{dropCounter: dropCounter{drops: drops}, n: 3})

	s := r.acquireSlot()
	r.retire(s, targetPtr, strongDropFor[guardedVal](), "strong")
	r.retire(s, unsafe.Pointer(filler1.b), strongDropFor[guardedVal](), "strong")
	// The third retirement on this same local batch crosses the capacity
	// threshold and forces an immediate publish, which is when the conflict
	// against snapGuard's slot is registered.
	r.retire(s, unsafe.Pointer(filler2.b), strongDropFor[guardedVal](), "strong")
	r.releaseSlot(s)

	// The batch must not drop while snapGuard is still open: publish
	// registered a pending conflict against the exact pointer snapGuard
	// protects, so releaseBatchRef could not have reached zero above.
	if drops.Load() != 0 {
		t.Fatalf("drop ran before the snapshot reader left its protected region: drops=%d", drops.Load())
	}

	snapGuard.Release()

	// Releasing snapGuard's conflict reference brings the shared batch's
	// refcount to zero, running all three retirements' drops synchronously.
	if drops.Load() != 3 {
		t.Fatalf("drops=%d, want 3 after the snapshot reader left", drops.Load())
	}
}

// -----------------------------------------------------------------------
// S6: cycle of weak edges - two nodes referencing each other through
// AtomicWeak cells both drop once every external strong reference is
// released; weak edges alone never keep a value alive.
// -----------------------------------------------------------------------

type cycleNode struct {
	dropCounter
	name string
	to   *AtomicWeak[cycleNode]
}

func TestScenario_CycleWithWeakBackEdge(t *testing.T) {
	r := NewReclaimer(DefaultConfig())
	drops := &atomic.Int64{}

	a := NewStrong(r, cycleNode{dropCounter: dropCounter{drops: drops}, name: "a", to: NewAtomicWeak[cycleNode](r)})
	b := NewStrong(r, cycleNode{dropCounter: dropCounter{drops: drops}, name: "b", to: NewAtomicWeak[cycleNode](r)})

	aWeak := a.Downgrade()
	bWeak := b.Downgrade()
	a.Value().to.Store(bWeak)
	bWeak.Release()
	b.Value().to.Store(aWeak)
	aWeak.Release()

	a.Release()
	b.Release()

	flushAll(r)
	if drops.Load() != 2 {
		t.Fatalf("drops=%d, want 2", drops.Load())
	}
}
