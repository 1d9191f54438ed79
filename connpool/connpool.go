// Package connpool implements go-aio's connection pool: N permitted
// concurrent connections and lock-counted checkout handles, shared by
// however many tasks the owning driver.Loop is running — the teacher's
// isLoopThread/getGoroutineID single-thread assertion (loop.go) does not
// carry over directly here, since go-aio's tasks are real goroutines
// rather than callbacks cooperatively serialized on one OS thread; see
// DESIGN.md for the reconciliation.
package connpool

import (
	"sync"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/joeycumines/go-aio/aioerr"
	"github.com/joeycumines/go-aio/tasksync"
)

// Factory creates a new pooled connection of type T.
type Factory[T any] func() (T, error)

// Pool is a connection pool with at-most-N concurrently checked-out
// connections. Many task goroutines on the owning thread share one Pool
// concurrently (spec.md §4.6), so the idle-connection slice and the
// factory-mint path are guarded by an internal mutex rather than the
// single-caller-goroutine assertion the teacher uses for its event loop,
// which assumes every caller is serialized onto one thread already.
type Pool[T any] struct {
	mu      sync.Mutex
	factory Factory[T]
	sem     *tasksync.Semaphore

	// limiter optionally rate-limits how often the factory is invoked to
	// mint brand-new connections (as opposed to reusing an idle one),
	// guarding against connection storms — wired against
	// github.com/joeycumines/go-catrate, the pack's own category rate
	// limiter, rather than hand-rolling a token bucket.
	limiter *catrate.Limiter

	idle []T
}

// New constructs a Pool with concurrency permits and an optional rate
// limiter (nil disables rate limiting of factory calls).
func New[T any](concurrency int, factory Factory[T], limiter *catrate.Limiter) *Pool[T] {
	return &Pool[T]{
		factory: factory,
		sem:     tasksync.NewSemaphore(concurrency),
		limiter: limiter,
	}
}

// Handle is a checked-out connection, tagged with the refcount of
// concurrent Lock calls against it (spec.md §4.6's lock_connection
// semantics: acquire a permit, hand out the connection, track how many
// callers currently hold it locked, release the permit only once the
// refcount returns to zero and the handle is Returned).
type Handle[T any] struct {
	pool  *Pool[T]
	Conn  T
	locks int
}

// Lock increments the handle's lock refcount, for callers that need to
// mark a connection as in-use across an async boundary without giving it
// up.
func (h *Handle[T]) Lock() { h.locks++ }

// Unlock decrements the refcount; it is a programmer error to Unlock more
// times than Lock was called.
func (h *Handle[T]) Unlock() {
	if h.locks == 0 {
		panic("connpool: Unlock without matching Lock")
	}
	h.locks--
}

// Checkout acquires a permit and returns a connection: an idle one if
// available, otherwise a freshly minted one via the factory (rate-limited
// if a limiter was configured). Safe to call concurrently from any
// number of task goroutines sharing this Pool.
func (p *Pool[T]) Checkout() (*Handle[T], error) {
	p.sem.Lock(0)

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return &Handle[T]{pool: p, Conn: conn}, nil
	}
	p.mu.Unlock()

	if p.limiter != nil {
		if _, ok := p.limiter.Allow("connpool.dial"); !ok {
			p.sem.Unlock()
			return nil, aioerr.New(aioerr.LimitExceeded, "connpool: dial rate limit exceeded")
		}
	}

	conn, err := p.factory()
	if err != nil {
		p.sem.Unlock()
		return nil, aioerr.Wrap(aioerr.IO, "connpool: factory failed", err)
	}
	return &Handle[T]{pool: p, Conn: conn}, nil
}

// Return releases h back to the pool: if it is still locked (refcount >
// 0) this panics, since a caller returning a connection still in use by
// another async operation is the exact foreign-reference bug the refcount
// exists to catch. There is no eviction policy — connections are assumed
// healthy until the caller's own liveness check says otherwise; spec.md's
// connpool explicitly has no idle-reaper. Safe to call concurrently from
// any number of task goroutines sharing this Pool.
func (p *Pool[T]) Return(h *Handle[T]) {
	if h.locks != 0 {
		panic("connpool: returned a connection still locked")
	}
	p.mu.Lock()
	p.idle = append(p.idle, h.Conn)
	p.mu.Unlock()
	p.sem.Unlock()
}

// Available reports the current free-permit count.
func (p *Pool[T]) Available() int { return p.sem.Available() }
