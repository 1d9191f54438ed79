// Package mailbox implements a bounded, two-lane inbox that tasks create
// and share explicitly (fibers do not own one): a priority lane and a
// normal lane, each a flat slice grown by append rather than the teacher's
// chunked linked list (ChunkedIngress) — a mailbox's bound is a small,
// fixed policy knob rather than an unbounded ingress queue, so a flat
// growable slice is the simpler fit, but the
// mutex-guarded push/pop-with-condvar shape is carried over directly.
package mailbox

import (
	"sync"
	"time"

	"github.com/joeycumines/go-aio/aioerr"
)

// OverflowPolicy selects what Send does when both lanes are at capacity.
type OverflowPolicy int

const (
	// Block waits for room, the default.
	Block OverflowPolicy = iota
	// Drop silently discards the new message.
	Drop
	// Throw returns a LimitExceeded error immediately.
	Throw
)

// Mailbox is a bounded, priority+normal dual-lane FIFO.
type Mailbox struct {
	mu   sync.Mutex
	cond *sync.Cond

	bound  int
	policy OverflowPolicy

	priority []any
	normal   []any

	closed bool
}

// New constructs a Mailbox with the given total capacity (shared across
// both lanes) and overflow policy.
func New(bound int, policy OverflowPolicy) *Mailbox {
	m := &Mailbox{bound: bound, policy: policy}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Mailbox) lenLocked() int { return len(m.priority) + len(m.normal) }

// Send enqueues val onto the priority or normal lane, applying the
// mailbox's OverflowPolicy when full.
func (m *Mailbox) Send(val any, highPriority bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return aioerr.New(aioerr.InvariantViolation, "mailbox: send on closed mailbox")
	}

	for m.lenLocked() >= m.bound {
		switch m.policy {
		case Drop:
			return nil
		case Throw:
			return aioerr.New(aioerr.LimitExceeded, "mailbox: full")
		default: // Block
			m.cond.Wait()
			if m.closed {
				return aioerr.New(aioerr.InvariantViolation, "mailbox: closed while blocked on send")
			}
			// re-check fullness after waking: another sender may have
			// raced in and refilled the space we were woken for
		}
	}

	if highPriority {
		m.priority = append(m.priority, val)
	} else {
		m.normal = append(m.normal, val)
	}
	m.cond.Broadcast()
	return nil
}

// Receive is vibe.d's message box operation, selective receive: it scans
// the priority lane then the normal lane, front-to-back, for the first
// message where filter(msg) is true, removes just that message (every
// message it skips over stays queued, in place, for a later Receive), and
// invokes handler with the mailbox lock already released. A nil filter
// matches every message, i.e. plain FIFO-with-priority receive. Receive
// blocks until a matching message arrives or the mailbox is closed.
func (m *Mailbox) Receive(filter func(any) bool, handler func(any)) error {
	m.mu.Lock()
	for {
		if msg, ok := m.scanLocked(filter); ok {
			m.mu.Unlock()
			handler(msg)
			return nil
		}
		if m.closed {
			m.mu.Unlock()
			return aioerr.New(aioerr.InvariantViolation, "mailbox: receive on closed empty mailbox")
		}
		m.cond.Wait()
	}
}

// ReceiveTimeout is Receive bounded by a deadline d from now: if no
// matching message arrives and the mailbox isn't closed before the
// deadline, it returns a TimedOut error instead of blocking forever.
func (m *Mailbox) ReceiveTimeout(d time.Duration, filter func(any) bool, handler func(any)) error {
	deadline := time.Now().Add(d)

	// sync.Cond has no deadline-aware Wait, so a timer broadcasts once d
	// elapses to unblock every waiter for a deadline recheck, the same
	// "wake and recheck the real condition" shape Send/Receive already use
	// for spurious wakeups.
	timer := time.AfterFunc(d, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer timer.Stop()

	m.mu.Lock()
	for {
		if msg, ok := m.scanLocked(filter); ok {
			m.mu.Unlock()
			handler(msg)
			return nil
		}
		if m.closed {
			m.mu.Unlock()
			return aioerr.New(aioerr.InvariantViolation, "mailbox: receive on closed empty mailbox")
		}
		if !time.Now().Before(deadline) {
			m.mu.Unlock()
			return aioerr.New(aioerr.TimedOut, "mailbox: receive timed out")
		}
		m.cond.Wait()
	}
}

// scanLocked implements the scan described on Receive: priority lane
// first, then normal, front-to-back within each, removing and returning
// the first message filter accepts. Must be called with m.mu held.
func (m *Mailbox) scanLocked(filter func(any) bool) (any, bool) {
	if msg, ok := removeFirstMatch(&m.priority, filter); ok {
		m.cond.Broadcast() // wakes blocked senders now that there's room
		return msg, true
	}
	if msg, ok := removeFirstMatch(&m.normal, filter); ok {
		m.cond.Broadcast()
		return msg, true
	}
	return nil, false
}

// removeFirstMatch scans lane front-to-back for the first element filter
// accepts (or, if filter is nil, the first element unconditionally),
// removing and returning it while leaving every other element's relative
// order intact.
func removeFirstMatch(lane *[]any, filter func(any) bool) (any, bool) {
	for i, msg := range *lane {
		if filter != nil && !filter(msg) {
			continue
		}
		*lane = append((*lane)[:i:i], (*lane)[i+1:]...)
		return msg, true
	}
	return nil, false
}

// Clear discards every queued message without delivering it.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	m.priority = nil
	m.normal = nil
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Grow raises the mailbox's bound by 1.5x, used when a caller wants to
// relieve backpressure rather than block or drop.
func (m *Mailbox) Grow() {
	m.mu.Lock()
	m.bound = m.bound + m.bound/2 + 1
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Close marks the mailbox closed, waking every blocked sender/receiver so
// they observe the closed state instead of hanging forever.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Len reports the total queued message count across both lanes.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lenLocked()
}
