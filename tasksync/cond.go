package tasksync

// Cond is a fiber-aware condition variable built on ManualEvent: Wait
// records the current emit count, unlocks the associated Mutex, waits for
// the next Emit, then relocks before returning — the same
// record-unlock-wait-relock shape as sync.Cond, but layered over
// ManualEvent's counted-emit semantics instead of a runtime-internal
// notify list, so it composes with the rest of this package's primitives.
type Cond struct {
	L     *Mutex
	event *ManualEvent
}

// NewCond constructs a Cond guarded by l.
func NewCond(l *Mutex) *Cond {
	return &Cond{L: l, event: NewManualEvent(true)}
}

// Wait unlocks L (on behalf of owner), blocks until Notify/NotifyAll, then
// relocks L for owner before returning. Callers must still re-check their
// predicate in a loop, as with sync.Cond.
func (c *Cond) Wait(owner any) {
	since := c.event.EmitCount()
	c.L.Unlock(owner)
	c.event.Wait(since)
	c.L.Lock(owner)
}

// Notify wakes at least one waiter. ManualEvent has no single-waiter
// wakeup primitive, so Notify and NotifyAll are equivalent here; this
// mirrors the teacher's own preference for broadcast-based wakeup over
// fine-grained single-waiter signalling, trading a few spurious wakeups
// for a much simpler implementation.
func (c *Cond) Notify() { c.event.Emit() }

// NotifyAll wakes every waiter.
func (c *Cond) NotifyAll() { c.event.Emit() }
