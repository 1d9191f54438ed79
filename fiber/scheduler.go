package fiber

import (
	"context"
	"runtime"
	"time"

	"github.com/joeycumines/go-aio/aioerr"
	"github.com/joeycumines/go-aio/rtlog"
)

// Scheduler is the per-Loop task scheduler: it spawns fibers (goroutines),
// tracks them for Join/Interrupt, and owns the WorkerPool used for
// SpawnWorker/SpawnWorkerDistribute.
type Scheduler struct {
	log     *rtlog.Std
	pool    *Pool
	workers *WorkerPool
}

// NewScheduler constructs a Scheduler backed by pool (created fresh if
// nil) and the given WorkerPool (may be nil if SpawnWorker* is unused).
func NewScheduler(log *rtlog.Std, pool *Pool, workers *WorkerPool) *Scheduler {
	if pool == nil {
		pool = NewPool()
	}
	return &Scheduler{log: rtlog.Or(log), pool: pool, workers: workers}
}

// Spawn starts fn as a new fiber, running on its own goroutine, and
// returns a Handle to it. fn receives the Fiber so it can access TLS,
// check Interrupted, or pass itself to nested scheduler calls.
func (s *Scheduler) Spawn(fn func(f *Fiber) error) Handle {
	f, h := s.pool.Acquire()
	go func() {
		err := s.runGuarded(f, fn)
		f.finish(err)
		s.pool.Release(f)
	}()
	return h
}

// SpawnWorker submits fn to run on the Scheduler's WorkerPool instead of a
// dedicated goroutine, for CPU-bound work that should be bounded by
// GOMAXPROCS-sized concurrency rather than spawned unbounded.
func (s *Scheduler) SpawnWorker(fn func(f *Fiber) error) Handle {
	f, h := s.pool.Acquire()
	s.workers.submit(jobUndirected, func() {
		err := s.runGuarded(f, fn)
		f.finish(err)
		s.pool.Release(f)
	})
	return h
}

// SpawnWorkerDistribute submits one copy of fn per worker thread in the
// Scheduler's WorkerPool, directed so each copy lands on a distinct
// worker's own queue — e.g. a per-shard cache flush that every worker
// must run exactly once, rather than one worker running it N times.
// Returns one Handle per worker, in worker-index order.
func (s *Scheduler) SpawnWorkerDistribute(fn func(f *Fiber) error) []Handle {
	n := s.workers.Size()
	handles := make([]Handle, n)
	for worker := 0; worker < n; worker++ {
		f, h := s.pool.Acquire()
		handles[worker] = h
		s.workers.submitTo(worker, func() {
			err := s.runGuarded(f, fn)
			f.finish(err)
			s.pool.Release(f)
		})
	}
	return handles
}

func (s *Scheduler) runGuarded(f *Fiber, fn func(f *Fiber) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Err().Any("panic", r).Log("fiber: recovered panic in task")
			err = aioerr.New(aioerr.InvariantViolation, "fiber: task panicked")
		}
	}()
	return fn(f)
}

// Yield cooperatively yields the calling fiber's goroutine, giving other
// runnable goroutines a chance to run. Go's scheduler already preempts
// goroutines, so unlike the original's cooperative-stackful model this is
// advisory, not required for forward progress — it exists so code ported
// from the spec's yield-point style still compiles and behaves sanely.
func Yield() {
	runtime.Gosched()
}

// Sleep suspends the calling goroutine for d, returning early with an
// Interrupted error if f.Interrupted() becomes true first.
func Sleep(f *Fiber, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-t.C:
			return nil
		case <-tick.C:
			if f.Interrupted() {
				return aioerr.New(aioerr.Interrupted, "fiber: sleep interrupted")
			}
		}
	}
}

// Interrupt flags h's fiber as interrupted. Sleep observes the flag and
// unwinds with an Interrupted error at its next check; Join and mailbox
// receives do not observe it. Other code can poll Fiber.Interrupted.
func Interrupt(h Handle) {
	if h.Valid() {
		h.fiber.interrupted.Store(true)
	}
}

// Join blocks until h's fiber completes, returning the error it exited
// with (nil on success), or ctx.Err() if ctx is cancelled first.
func Join(ctx context.Context, h Handle) error {
	if !h.Valid() {
		return aioerr.New(aioerr.InvariantViolation, "fiber: join on stale handle")
	}
	ch := make(chan error, 1)
	if done := h.fiber.addJoiner(ch); done {
		h.fiber.mu.Lock()
		err := h.fiber.err
		h.fiber.mu.Unlock()
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
