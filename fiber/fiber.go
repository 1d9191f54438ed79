// Package fiber implements go-aio's task layer: spawned, joinable units of
// work backed one-to-one by a goroutine, following spec.md §9's own
// guidance to translate the original's stackful fibers onto Go's native
// concurrency primitive rather than hand-rolling a coroutine runtime.
//
// What the teacher's chunkPool (eventloop's pooled-chunk ingress) recycles
// at the level of queue chunks, fiber.Pool recycles at the level of Fiber
// metadata structs: goroutines themselves are cheap in Go and are not
// pooled, but the bookkeeping struct around each one (TLS arena, joiner
// list, exit error, interrupt flag) is, to avoid an allocation storm
// under high fiber churn.
package fiber

import (
	"sync"
	"sync/atomic"
)

// Handle identifies a spawned Fiber. Equality must use Equal, not ==,
// because a recycled Fiber pointer can be reused for an unrelated task;
// the generation counter distinguishes a stale Handle from a live one.
type Handle struct {
	fiber      *Fiber
	generation uint64
}

// Equal reports whether h and other refer to the same fiber generation.
func (h Handle) Equal(other Handle) bool {
	return h.fiber == other.fiber && h.generation == other.generation
}

// Valid reports whether h still refers to the live generation of its
// fiber (false once the fiber has completed and been recycled).
func (h Handle) Valid() bool {
	return h.fiber != nil && h.fiber.generation.Load() == h.generation
}

// IsDone reports whether the referenced fiber has finished running. A
// stale (recycled) Handle always reports done.
func (h Handle) IsDone() bool {
	if !h.Valid() {
		return true
	}
	return h.fiber.done.Load()
}

// Fiber is the runtime state of one spawned task: a goroutine, its
// task-local storage arena, its pending joiners, and the error it exited
// with (if any).
type Fiber struct {
	generation atomic.Uint64

	done   atomic.Bool
	doneCh chan struct{}

	mu      sync.Mutex
	err     error
	joiners []chan error

	tls tlsArena

	interrupted atomic.Bool
}

// newFiber allocates a fresh Fiber, used by Pool when its free list is
// empty.
func newFiber() *Fiber {
	f := &Fiber{doneCh: make(chan struct{})}
	f.generation.Store(1)
	return f
}

// reset clears a Fiber for reuse, bumping its generation so that Handles
// captured against the prior occupant become stale (Handle.Valid reports
// false), mirroring the teacher's registry's id/weak-pointer staleness
// model but via a cheap counter instead of weak.Pointer, since Fiber
// structs here are pool-owned rather than GC-scavenged.
func (f *Fiber) reset() {
	f.tls.runDestructors()
	f.generation.Add(1)
	f.done.Store(false)
	f.doneCh = make(chan struct{})
	f.err = nil
	f.joiners = nil
	f.interrupted.Store(false)
}

// finish marks the fiber complete with err, waking every joiner.
func (f *Fiber) finish(err error) {
	f.mu.Lock()
	f.err = err
	joiners := f.joiners
	f.joiners = nil
	f.done.Store(true)
	f.mu.Unlock()

	close(f.doneCh)
	for _, ch := range joiners {
		ch <- err
		close(ch)
	}
}

// addJoiner registers ch to receive the fiber's exit error. If the fiber
// has already finished, ch is signalled immediately (by the caller, via
// the returned done=true).
func (f *Fiber) addJoiner(ch chan error) (done bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done.Load() {
		return true
	}
	f.joiners = append(f.joiners, ch)
	return false
}

// Interrupted reports whether Interrupt was called against this fiber's
// current generation; checked by long-running operations at their
// suspension points to unwind cooperatively.
func (f *Fiber) Interrupted() bool { return f.interrupted.Load() }
