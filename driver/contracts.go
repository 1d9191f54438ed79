// Package driver is the event-driven core of go-aio: one Loop per OS
// thread, multiplexing timers and readiness events (epoll on Linux, kqueue
// on Darwin/BSD) behind a single poll call, with a thread-safe wakeup path
// for cross-thread submission. It is the Go-goroutine-native analogue of
// the teacher's single-threaded reactor (eventloop.Loop): where the
// teacher drives a JS-style microtask/macrotask queue, a driver.Loop drives
// fiber resumption (see package fiber).
package driver

import (
	"io"
	"time"
)

// Input is a readable byte source that may report how many bytes remain
// available without blocking.
type Input interface {
	io.Reader
	// LeastSize reports a lower bound on bytes immediately readable, 0 if
	// unknown or empty.
	LeastSize() int
}

// Output is a writable byte sink.
type Output interface {
	io.Writer
}

// Stream is a duplex Input/Output, e.g. a pipe or socket.
type Stream interface {
	Input
	Output
}

// Connection is a Stream with explicit half-close and liveness semantics,
// e.g. a TCP socket.
type Connection interface {
	Stream
	io.Closer
	// Connected reports whether the connection is still usable.
	Connected() bool
	// CloseWrite half-closes the write side, signalling EOF to the peer
	// without releasing the read side.
	CloseWrite() error
	// WaitForData blocks until data is available to read or timeout
	// elapses, reporting whether data arrived before the deadline.
	WaitForData(timeout time.Duration) bool
}

// RandomAccess is a Stream that also supports seeking, e.g. a regular file.
type RandomAccess interface {
	Stream
	io.Closer
	io.Seeker
	// Size reports the total size of the underlying random-access medium.
	Size() (int64, error)
	// Readable reports whether the medium was opened for reading.
	Readable() bool
	// Writable reports whether the medium was opened for writing.
	Writable() bool
	// Tell reports the current offset, equivalent to Seek(0, io.SeekCurrent)
	// without side effects beyond that read.
	Tell() (int64, error)
}

// EventHandle is an opaque, driver-owned handle to a registered primitive
// (a timer, a manual event, or an FD registration). The zero value is not
// a valid handle.
type EventHandle uint64

// Event is implemented by every driver-managed primitive.
type Event interface {
	// IsPending reports whether the event is still armed/outstanding.
	IsPending() bool
	// Stop disarms the event; a subsequent trigger is a no-op.
	Stop()
}

// TimerEvent is a one-shot or periodic timer armed against the Loop's own
// monotonic clock.
type TimerEvent interface {
	Event
	// Rearm reschedules the timer to fire after d, from now.
	Rearm(d time.Duration)
}

// ManualEvent is a driver-level cross-thread wakeup source: distinct from
// tasksync.ManualEvent, which is an independent fiber-level synchronization
// primitive that does not use this one.
type ManualEvent interface {
	Event
	// Signal queues the event's callback on the Loop (via Submit) and wakes
	// it. Safe from any goroutine; it takes the Loop's queue lock and appends
	// to its ready queue.
	Signal()
}

// FDEvent reports readiness events for a registered file descriptor.
type FDEvent interface {
	Event
}

// IOEvents is a bitmask of readiness conditions, mirroring the teacher's
// IOEvents (EventRead/EventWrite/EventError/EventHangup). It is passed to
// CreateFDEvent as the trigger set and to its callback as the readiness
// that was reported.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)
