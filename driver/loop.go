package driver

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-aio/aioerr"
	"github.com/joeycumines/go-aio/rtlog"
)

// Loop is one event-driven reactor, meant to be driven from exactly one
// goroutine (its "driver goroutine") for its whole lifetime — the Go
// analogue of one OS thread in the teacher's model, since Go multiplexes
// goroutines onto threads for us and a Loop never needs its own thread.
//
// A Loop owns: a poller (epoll/kqueue), a timerQueue, and a cross-thread
// wakeup channel pair. External-goroutine callers only ever call Submit,
// ExitLoop and the Create*/resolve/connect/listen/open helpers; everything
// else happens only on the driver goroutine.
type Loop struct {
	log *rtlog.Std

	state *atomicState

	poller poller

	wakeReadFD, wakeWriteFD int
	wakePending             atomic.Bool // CAS dedup, adapted from the teacher's wakeUpSignalPending

	mu       sync.Mutex // guards ready and timers below
	ready    []func()   // work submitted from external goroutines, drained each tick
	timers   timerQueue
	fdEvents map[int]*fdEventHandle

	tickBudget int // 0 means unlimited; see SetTickBudget
	onOverload func(remaining int)
	tickCount  atomic.Uint64

	done chan struct{}
}

// Stats is a point-in-time snapshot of Loop activity, trimmed down from
// the teacher's much larger metrics.go/psquare.go percentile-tracking
// machinery (out of scope here — see DESIGN.md) to the handful of
// counters useful for a minimal health check: how many ticks have run,
// and how much work is currently queued.
type Stats struct {
	TickCount  uint64
	ReadyDepth int
	TimerDepth int
	FDDepth    int
}

// Stats returns a snapshot of the Loop's current activity counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		TickCount:  l.tickCount.Load(),
		ReadyDepth: len(l.ready),
		TimerDepth: len(l.timers.h),
		FDDepth:    len(l.fdEvents),
	}
}

// SetTickBudget bounds how many externally-submitted callbacks drainReady
// runs per tick before yielding back to the poll, 0 (the default) meaning
// unbounded. Pairs with SetOnOverload to report backpressure, adapted
// from the teacher's OnOverload/ErrLoopOverloaded signal — a natural
// extension of the mailbox/pipe/pool/semaphore backpressure story to the
// Loop's own ready queue.
func (l *Loop) SetTickBudget(n int) { l.tickBudget = n }

// SetOnOverload registers cb to be invoked, once per tick, with the
// number of ready callbacks still queued after the tick budget is spent.
// A nil cb (the default) disables overload reporting.
func (l *Loop) SetOnOverload(cb func(remaining int)) { l.onOverload = cb }

type fdEventHandle struct {
	fd     int
	events IOEvents
	cb     func(IOEvents)
}

func (h *fdEventHandle) IsPending() bool { return h.fd >= 0 }
func (h *fdEventHandle) Stop()           { h.fd = -1 }

// New constructs a Loop and initializes its poller and wakeup fds. The
// returned Loop is not yet running; call RunLoop (or RunLoopOnce/ProcessEvents
// in a hand-driven pump) from the goroutine that will own it.
func New(log *rtlog.Std) (*Loop, error) {
	l := &Loop{
		log:      rtlog.Or(log),
		state:    newAtomicState(),
		poller:   newPoller(),
		fdEvents: make(map[int]*fdEventHandle),
		done:     make(chan struct{}),
	}

	if err := l.poller.init(); err != nil {
		return nil, err
	}

	readFD, writeFD, err := createWakeFD()
	if err != nil {
		_ = l.poller.close()
		return nil, aioerr.Wrap(aioerr.IO, "create wakeup fd", err)
	}
	l.wakeReadFD, l.wakeWriteFD = readFD, writeFD

	if err := l.poller.registerFD(readFD, EventRead, func(IOEvents) {
		drainWake(readFD)
		l.wakePending.Store(false)
	}); err != nil {
		_ = l.poller.close()
		_ = closeWakeFD(readFD, writeFD)
		return nil, aioerr.Wrap(aioerr.IO, "register wakeup fd", err)
	}

	return l, nil
}

// Close releases the poller and wakeup fds. The Loop must not be running.
func (l *Loop) Close() error {
	l.state.Store(Stopped)
	_ = closeWakeFD(l.wakeReadFD, l.wakeWriteFD)
	return l.poller.close()
}

// Submit queues fn to run on the driver goroutine at its next opportunity,
// waking the poll if the Loop is currently sleeping. Safe from any
// goroutine, following the teacher's Submit/doWakeup CAS-dedup pattern:
// at most one pending wakeup write is ever outstanding regardless of how
// many goroutines call Submit concurrently.
func (l *Loop) Submit(fn func()) error {
	if !l.state.CanAcceptWork() {
		return aioerr.New(aioerr.InvariantViolation, "driver: loop not accepting work")
	}
	l.mu.Lock()
	l.ready = append(l.ready, fn)
	l.mu.Unlock()

	if l.wakePending.CompareAndSwap(false, true) {
		if err := writeWake(l.wakeWriteFD); err != nil {
			l.wakePending.Store(false)
			return aioerr.Wrap(aioerr.IO, "driver: wakeup write", err)
		}
	}
	return nil
}

// ExitLoop requests termination: sets the exit flag and interrupts any
// blocking poll, per spec's run_loop/exit_loop contract.
func (l *Loop) ExitLoop() {
	for {
		cur := l.state.Load()
		if cur == Stopping || cur == Stopped {
			return
		}
		if l.state.TryTransition(cur, Stopping) {
			_ = writeWake(l.wakeWriteFD)
			return
		}
	}
}

// RunLoop blocks processing events until ExitLoop is called; it does not
// return on its own when no work, armed timers or fd registrations remain
// (it keeps blocking in the poll instead), mirroring
// the teacher's Run/run loop but driven by fiber-resumable callbacks
// instead of a JS task/microtask queue.
func (l *Loop) RunLoop() error {
	if !l.state.TryTransition(Awake, Running) {
		return aioerr.New(aioerr.InvariantViolation, "driver: loop already running or terminated")
	}
	defer close(l.done)

	for {
		if l.state.Load() == Stopping {
			l.drainReady()
			l.state.Store(Stopped)
			return nil
		}
		if err := l.tick(-1); err != nil {
			return err
		}
	}
}

// RunLoopOnce blocks until at least one event (ready work, fired timer, or
// fd readiness) is processed, then returns.
func (l *Loop) RunLoopOnce() error {
	return l.tick(-1)
}

// ProcessEvents polls non-blockingly and processes whatever is
// immediately available.
func (l *Loop) ProcessEvents() error {
	return l.tick(0)
}

// tick runs one iteration: drain ready callbacks, fire due timers, and
// poll the fd multiplexer for at most timeoutMs (blocking semantics per
// the poller contract: negative means block until an event, 0 means
// non-blocking).
func (l *Loop) tick(timeoutMs int) error {
	l.tickCount.Add(1)
	l.drainReady()
	l.fireDueTimers()

	effective := timeoutMs
	l.mu.Lock()
	if when, ok := l.timers.nextDeadline(); ok && timeoutMs < 0 {
		if d := time.Until(when); d > 0 {
			effective = int(d / time.Millisecond)
		} else {
			effective = 0
		}
	}
	l.mu.Unlock()

	l.state.TryTransition(Running, Sleeping)
	_, err := l.poller.pollIO(effective)
	l.state.TryTransition(Sleeping, Running)
	if err != nil {
		return err
	}

	l.drainReady()
	l.fireDueTimers()
	return nil
}

func (l *Loop) drainReady() {
	l.mu.Lock()
	batch := l.ready
	budget := l.tickBudget
	if budget > 0 && len(batch) > budget {
		l.ready = batch[budget:]
		batch = batch[:budget]
	} else {
		l.ready = nil
	}
	remaining := len(l.ready)
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	if remaining > 0 && l.onOverload != nil {
		l.onOverload(remaining)
	}
}

func (l *Loop) fireDueTimers() {
	l.mu.Lock()
	due := l.timers.popExpired(time.Now())
	l.mu.Unlock()
	for _, t := range due {
		t.cb()
	}
}

// CreateTimer arms cb to run after d, once (periodic=false) or repeatedly
// every d (periodic=true), returning a handle supporting is_pending/rearm/
// stop per spec.md §4.1. cb runs on the driver goroutine.
func (l *Loop) CreateTimer(d time.Duration, periodic bool, cb func()) TimerEvent {
	e := &timerEntry{when: time.Now().Add(d), cb: cb}
	if periodic {
		e.period = d
	}
	l.mu.Lock()
	l.timers.add(e)
	l.mu.Unlock()
	return e
}

// CreateManualEvent returns a driver-level event a caller can Signal from
// any goroutine (including a signal handler) to wake this Loop, distinct
// from tasksync.ManualEvent (an independent fiber-blocking synchronization
// primitive that does not use this one).
func (l *Loop) CreateManualEvent(cb func()) ManualEvent {
	return &loopManualEvent{loop: l, cb: cb, pending: true}
}

type loopManualEvent struct {
	loop    *Loop
	cb      func()
	pending bool
}

func (e *loopManualEvent) IsPending() bool { return e.pending }
func (e *loopManualEvent) Stop()           { e.pending = false }
func (e *loopManualEvent) Signal() {
	if !e.pending {
		return
	}
	_ = e.loop.Submit(e.cb)
}

// CreateFDEvent registers fd for the given triggers, invoking cb on the
// driver goroutine whenever the poller reports readiness.
func (l *Loop) CreateFDEvent(fd int, triggers IOEvents, cb func(IOEvents)) (FDEvent, error) {
	h := &fdEventHandle{fd: fd, events: triggers, cb: cb}
	if err := l.poller.registerFD(fd, triggers, cb); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.fdEvents[fd] = h
	l.mu.Unlock()
	return h, nil
}

// ResolveHost resolves name to its IP addresses. When useDNS is false only
// literal IP addresses are accepted — no resolver round-trip is made, so
// callers get a synchronous, non-suspending result instead of the
// suspend-until-DNS-reply semantics spec.md §4.1 describes for the
// general case.
func (l *Loop) ResolveHost(name string, useDNS bool) ([]net.IP, error) {
	if ip := net.ParseIP(name); ip != nil {
		return []net.IP{ip}, nil
	}
	if !useDNS {
		return nil, aioerr.New(aioerr.Protocol, "driver: not a literal IP and DNS resolution disabled")
	}
	ips, err := net.LookupIP(name)
	if err != nil {
		return nil, aioerr.Wrap(aioerr.IO, "driver: resolve host "+name, err)
	}
	return ips, nil
}

// ConnectTCP dials addr, optionally from bindAddr.
func (l *Loop) ConnectTCP(addr, bindAddr string) (*net.TCPConn, error) {
	dialer := net.Dialer{}
	if bindAddr != "" {
		local, err := net.ResolveTCPAddr("tcp", bindAddr)
		if err != nil {
			return nil, aioerr.Wrap(aioerr.Protocol, "driver: resolve bind addr", err)
		}
		dialer.LocalAddr = local
	}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, aioerr.Wrap(aioerr.IO, "driver: connect_tcp "+addr, err)
	}
	return conn.(*net.TCPConn), nil
}

// ListenTCP listens on port (optionally bound to bindAddr), invoking cb for
// every accepted connection. Returns the listener so callers can close it
// to stop accepting.
func (l *Loop) ListenTCP(port int, bindAddr string, cb func(*net.TCPConn)) (*net.TCPListener, error) {
	addr := &net.TCPAddr{Port: port}
	if bindAddr != "" {
		addr.IP = net.ParseIP(bindAddr)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, aioerr.Wrap(aioerr.IO, "driver: listen_tcp", err)
	}
	go func() {
		for {
			conn, err := ln.AcceptTCP()
			if err != nil {
				return
			}
			cb(conn)
		}
	}()
	return ln, nil
}

// ListenUDP opens a UDP socket bound to port/bindAddr.
func (l *Loop) ListenUDP(port int, bindAddr string) (*net.UDPConn, error) {
	addr := &net.UDPAddr{Port: port}
	if bindAddr != "" {
		addr.IP = net.ParseIP(bindAddr)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, aioerr.Wrap(aioerr.IO, "driver: listen_udp", err)
	}
	return conn, nil
}

// OpenFile opens path with the given os.OpenFile flags/perm.
func (l *Loop) OpenFile(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, aioerr.Wrap(aioerr.IO, "driver: open_file "+path, err)
	}
	return f, nil
}
