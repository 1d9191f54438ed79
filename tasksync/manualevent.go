// Package tasksync provides fiber-aware synchronization primitives: none of
// them ever block an OS thread for long — they park on sync.Cond waits or
// channels, so the
// goroutine backing a fiber yields to the Go scheduler instead of pinning
// a thread, the same property the teacher's FastState/ChunkedIngress pair
// achieves for the event loop's own internal coordination.
package tasksync

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-aio/aioerr"
)

// ManualEvent is a level-triggered, emit-counted event: Wait returns once
// Emit has been called at least once since the last Wait that observed it,
// distinguishing it from a condition variable (no associated predicate,
// no lock to hold while waiting). Emit bumps an atomic counter and
// broadcasts to every waiter; each waiter compares the counter against the
// value it recorded and keeps waiting until it has advanced.
type ManualEvent struct {
	mu      sync.Mutex
	cond    *sync.Cond
	count   atomic.Uint64
	nothrow bool
}

// NewManualEvent constructs a ManualEvent. nothrow selects the "nothrow"
// flavor, whose WaitInterruptible ignores the interrupt check and waits
// like Wait, vs. the throwing flavor, whose WaitInterruptible returns
// aioerr.Interrupted once its interrupted callback reports true.
func NewManualEvent(nothrow bool) *ManualEvent {
	e := &ManualEvent{nothrow: nothrow}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Emit increments the event's emit count and wakes every waiter.
func (e *ManualEvent) Emit() {
	e.mu.Lock()
	e.count.Add(1)
	e.mu.Unlock()
	e.cond.Broadcast()
}

// EmitCount returns the current emit count, usable by a Cond-style caller
// to detect whether an emit happened between two observations.
func (e *ManualEvent) EmitCount() uint64 { return e.count.Load() }

// Wait blocks until EmitCount advances past since.
func (e *ManualEvent) Wait(since uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.count.Load() <= since {
		e.cond.Wait()
	}
}

// WaitInterruptible is the throwing flavor's wait: it returns
// aioerr.Interrupted if interrupted reports true while waiting. Because
// sync.Cond has no native cancellation, the check is polled on each
// spurious or real wakeup, exactly as every Cond.Wait caller must already
// re-check its predicate in a loop — callers delivering an interrupt must
// also call Emit so a blocked waiter actually wakes up to observe it.
func (e *ManualEvent) WaitInterruptible(since uint64, interrupted func() bool) error {
	if e.nothrow {
		e.Wait(since)
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.count.Load() <= since {
		if interrupted() {
			return aioerr.New(aioerr.Interrupted, "tasksync: manual event wait interrupted")
		}
		e.cond.Wait()
	}
	return nil
}
