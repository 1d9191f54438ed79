package fiber

import "sync"

// TLSKey identifies one task-local variable slot, obtained once (per
// variable) from RegisterTLS and reused across every fiber.
type TLSKey struct {
	id int
}

var (
	tlsMu       sync.Mutex
	tlsNextID   int
	tlsDestruct []func(any)
)

// RegisterTLS allocates a new task-local-storage key. destructor, if
// non-nil, runs against the slot's last-set value when the Fiber struct
// holding it is recycled (Pool.Acquire resetting it for a new task), not
// when the fiber exits, mirroring the teacher's destructor-registry idiom for resource cleanup
// (e.g. closing a per-task buffer). RegisterTLS is normally called from a
// package init(), lazily growing a process-wide key space — there is no
// manual offset/alignment bookkeeping to do, since Go values don't need
// the fixed-footprint placement the original's arena did.
func RegisterTLS(destructor func(value any)) TLSKey {
	tlsMu.Lock()
	defer tlsMu.Unlock()
	id := tlsNextID
	tlsNextID++
	tlsDestruct = append(tlsDestruct, destructor)
	return TLSKey{id: id}
}

// tlsArena is the per-fiber backing store: a slice indexed by TLSKey.id,
// growing lazily the first time a key beyond its current length is set,
// matching the teacher's describe-then-grow approach to per-fiber storage.
type tlsArena struct {
	values []any
	set    []bool
}

func (a *tlsArena) growTo(n int) {
	if n <= len(a.values) {
		return
	}
	values := make([]any, n)
	copy(values, a.values)
	set := make([]bool, n)
	copy(set, a.set)
	a.values, a.set = values, set
}

// Get returns the value last stored at key, and whether it was ever set
// (a slot that was never set has no destructor obligation).
func (a *tlsArena) get(key TLSKey) (any, bool) {
	if key.id >= len(a.values) {
		return nil, false
	}
	return a.values[key.id], a.set[key.id]
}

// Set stores val at key, growing the arena if needed.
func (a *tlsArena) set_(key TLSKey, val any) {
	a.growTo(key.id + 1)
	a.values[key.id] = val
	a.set[key.id] = true
}

// runDestructors invokes every registered destructor whose slot is set in
// this arena, then clears it, called when a fiber is recycled.
func (a *tlsArena) runDestructors() {
	tlsMu.Lock()
	destructors := tlsDestruct
	tlsMu.Unlock()

	for id := range a.values {
		if !a.set[id] {
			continue
		}
		if id < len(destructors) && destructors[id] != nil {
			destructors[id](a.values[id])
		}
		a.values[id] = nil
		a.set[id] = false
	}
}

// Get reads the caller fiber's value for key. It must be called from
// within a fiber's own goroutine, passing the Fiber its task function
// received.
func Get(f *Fiber, key TLSKey) (any, bool) {
	return f.tls.get(key)
}

// Set stores val as the caller fiber's value for key.
func Set(f *Fiber, key TLSKey, val any) {
	f.tls.set_(key, val)
}
