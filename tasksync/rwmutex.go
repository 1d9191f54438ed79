package tasksync

import "sync"

// RWPolicy selects which side RWMutex favors when both readers and a
// writer are waiting.
type RWPolicy int

const (
	// ReaderPrefer lets new readers proceed even with a writer waiting,
	// as long as the mutex isn't currently write-locked.
	ReaderPrefer RWPolicy = iota
	// WriterPrefer blocks new readers once any writer is waiting, so a
	// steady stream of readers can't starve a writer indefinitely.
	WriterPrefer
)

// RWMutex is a fiber-aware reader/writer lock with a selectable
// starvation policy, tracked via two counters and two ManualEvents
// (readersDone, writerDone) rather than channels, following the same
// counted-emit wakeup shape as Cond in this package.
type RWMutex struct {
	policy RWPolicy

	mu            sync.Mutex
	readers       int
	writerActive  bool
	writersWaiting int

	readersDone *ManualEvent
	writerDone  *ManualEvent
}

// NewRWMutex constructs an RWMutex with the given starvation policy.
func NewRWMutex(policy RWPolicy) *RWMutex {
	return &RWMutex{
		policy:      policy,
		readersDone: NewManualEvent(true),
		writerDone:  NewManualEvent(true),
	}
}

// RLock acquires a read lock, blocking while a writer holds the lock (or,
// under WriterPrefer, while any writer is waiting).
func (m *RWMutex) RLock() {
	m.mu.Lock()
	for m.writerActive || (m.policy == WriterPrefer && m.writersWaiting > 0) {
		since := m.writerDone.EmitCount()
		m.mu.Unlock()
		m.writerDone.Wait(since)
		m.mu.Lock()
	}
	m.readers++
	m.mu.Unlock()
}

// RUnlock releases a read lock, waking a waiting writer if this was the
// last active reader.
func (m *RWMutex) RUnlock() {
	m.mu.Lock()
	m.readers--
	last := m.readers == 0
	m.mu.Unlock()
	if last {
		m.readersDone.Emit()
	}
}

// Lock acquires the write lock exclusively, waiting for all readers and
// any other writer to finish first.
func (m *RWMutex) Lock() {
	m.mu.Lock()
	m.writersWaiting++
	for m.writerActive || m.readers > 0 {
		// Which event to wait on, and its emit count, are read here, still
		// holding m.mu: RUnlock/Unlock only mutate readers/writerActive
		// under m.mu and Emit after releasing it, so any such change made
		// after this point is followed by an Emit that advances the count
		// past the snapshot, and Wait cannot miss it.
		waitForReaders := m.readers > 0
		since := m.readersDone.EmitCount()
		wsince := m.writerDone.EmitCount()
		m.mu.Unlock()
		if waitForReaders {
			m.readersDone.Wait(since)
		} else {
			m.writerDone.Wait(wsince)
		}
		m.mu.Lock()
	}
	m.writersWaiting--
	m.writerActive = true
	m.mu.Unlock()
}

// Unlock releases the write lock, waking readers and writers alike.
func (m *RWMutex) Unlock() {
	m.mu.Lock()
	m.writerActive = false
	m.mu.Unlock()
	m.writerDone.Emit()
}
