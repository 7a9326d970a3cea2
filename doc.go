// Package gossamer provides atomic, lock-free, strongly- and weakly-
// referenced shared pointers backed by deferred safe memory reclamation
// (SMR).
//
// # Overview
//
// gossamer is designed for concurrent data structures that need to publish
// and swap shared pointers without locks:
//
//   - Lock-Free Cells: AtomicStrong[T] and AtomicWeak[T] support
//     load/store/swap/compare-exchange with no mutex
//   - Sticky-Zero Counting: a strong count that, once it reaches zero,
//     can never be incremented again - races between a final Release and a
//     concurrent Upgrade always resolve safely
//   - Safe Memory Reclamation: a hazard-pointer-plus-batch reclaimer defers
//     destroying a value until no protected region or Snapshot could still
//     be reading it
//   - Type-Safe Generics: StrongPtr[T], WeakPtr[T], Snapshot[T]
//   - Structured Errors: rich error context with error codes (go-errors)
//   - Metrics Collection: MetricsCollector interface for observability
//   - Hot-Reloadable Tuning: batch sizing knobs reloadable at runtime (argus)
//
// # Quick Start
//
//	import "github.com/agilira/gossamer"
//
//	type Node struct {
//	    Value int
//	    Next  gossamer.AtomicStrong[Node]
//	}
//
//	func main() {
//	    r := gossamer.NewReclaimer(gossamer.DefaultConfig())
//
//	    cell := gossamer.NewAtomicStrong[string](r)
//	    h := gossamer.NewStrong(r, "hello")
//	    cell.Store(h)
//	    h.Release()
//
//	    if v, ok := cell.LoadStrong(); ok {
//	        defer v.Release()
//	        fmt.Println(*v.Value())
//	    }
//	}
//
// # Strong Handles, Weak Handles, and Snapshots
//
// A StrongPtr[T] keeps a value alive and readable. A WeakPtr[T] keeps only
// the block's bookkeeping alive, and can attempt to Upgrade into a
// StrongPtr as long as some strong reference still exists elsewhere.
// A Snapshot[T], obtained from AtomicStrong.LoadSnapshot, is a third,
// cheaper option: fine-grained hazard-pointer-style protection without
// touching the strong counter at all, at the cost of a narrower intended
// lifetime - release it promptly rather than holding it across a stall.
//
// # Safe Memory Reclamation
//
// Every strong release that seals the count at zero, and every weak
// release, is handed to a Reclaimer rather than dropped directly. The
// reclaimer tracks, per
// registered slot, either an open protected region (a critical section
// opened with Reclaimer.Enter) or a single live Snapshot pointer. Retired
// values are grouped into batches; a batch's drop closures only run once
// every slot that could have observed one of its pointers has moved past
// it. This is why cell displacement (Store, CompareExchangeStrong, Drop)
// and an explicit handle's Release share exactly one code path: both hand
// the displaced pointer to the same Reclaimer.Retire call. Swap instead
// returns the displaced value to the caller as an owned handle.
//
// # Concurrency Model
//
// gossamer assumes a multi-goroutine, non-blocking-progress environment.
// No gossamer operation holds an OS-level lock; goroutines can stall inside
// a protected region (forgetting to call Guard.Leave) without corrupting
// any cell, but doing so indefinitely will prevent that slot's batches from
// ever draining - a liveness cost, never a safety one.
//
// # Error Handling
//
// gossamer uses github.com/agilira/go-errors for structured, contextual
// errors with standardized codes (see errors.go). Programmer errors, such
// as passing a handle from a different Reclaimer to a cell, panic rather
// than returning an error, matching the "this can only be a bug" severity
// idiom used across the rest of this codebase.
package gossamer
