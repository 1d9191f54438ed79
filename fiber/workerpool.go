package fiber

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/go-aio/rtlog"
)

// jobUndirected routes a submitted job to whichever worker picks it up
// first; submitTo instead pins a job to one specific worker's queue.
const jobUndirected = -1

// WorkerPool is a lazily-started, fixed-size pool of goroutines draining a
// shared job queue plus one queue per worker for directed dispatch,
// coordinated at shutdown by golang.org/x/sync/errgroup (wired here
// because the pack's errgroup usage is exactly this fan-out/drain shape).
type WorkerPool struct {
	log *rtlog.Std

	size int

	mu      sync.Mutex
	started bool

	shared    chan func()
	directed  []chan func()
	terminate chan struct{}

	g       *errgroup.Group
	gctx    context.Context
	cancelG context.CancelFunc
}

// NewWorkerPool constructs a WorkerPool of size workers (runtime.NumCPU()
// if size <= 0). Workers are not started until Start is called.
func NewWorkerPool(log *rtlog.Std, size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	directed := make([]chan func(), size)
	for i := range directed {
		directed[i] = make(chan func(), 16)
	}
	return &WorkerPool{
		log:       rtlog.Or(log),
		size:      size,
		shared:    make(chan func(), 256),
		directed:  directed,
		terminate: make(chan struct{}),
	}
}

// Start launches the pool's worker goroutines, each draining both its
// directed queue and the shared queue until Close's terminate signal.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started {
		return
	}
	wp.started = true

	g, gctx := errgroup.WithContext(ctx)
	wp.g, wp.gctx = g, gctx

	for i := 0; i < wp.size; i++ {
		i := i
		g.Go(func() error {
			wp.runWorker(i)
			return nil
		})
	}
}

func (wp *WorkerPool) runWorker(i int) {
	directed := wp.directed[i]
	for {
		select {
		case <-wp.terminate:
			wp.drainOnce(directed)
			return
		case job := <-directed:
			job()
		case job := <-wp.shared:
			job()
		}
	}
}

// drainOnce runs any remaining jobs already queued (non-blocking), so a
// Close doesn't silently drop work submitted just before shutdown.
func (wp *WorkerPool) drainOnce(directed chan func()) {
	for {
		select {
		case job := <-directed:
			job()
		case job := <-wp.shared:
			job()
		default:
			return
		}
	}
}

func (wp *WorkerPool) submit(worker int, job func()) {
	if worker == jobUndirected {
		wp.shared <- job
		return
	}
	wp.submitTo(worker, job)
}

func (wp *WorkerPool) submitTo(worker int, job func()) {
	wp.directed[worker%wp.size] <- job
}

// Close signals every worker to drain and exit, then blocks until all have
// returned (errgroup.Wait), the Go-native analogue of spec.md §5's "main
// thread waits for every non-daemon worker to drain".
func (wp *WorkerPool) Close() error {
	wp.mu.Lock()
	started := wp.started
	wp.mu.Unlock()
	if !started {
		return nil
	}
	close(wp.terminate)
	return wp.g.Wait()
}

// Size reports the number of workers in the pool.
func (wp *WorkerPool) Size() int { return wp.size }
