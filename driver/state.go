package driver

import "sync/atomic"

// State is the run state of a Loop.
//
// State machine:
//
//	Awake -> Running           [RunLoop()]
//	Running -> Sleeping        [poll, no ready work]
//	Sleeping -> Running        [poll wakes]
//	Awake/Running/Sleeping -> Stopping [ExitLoop()]
//	Stopping -> Stopped        [drain complete]
//
// Use TryTransition (CAS) for the reversible Running/Sleeping states; use
// Store only for the one-way transition into Stopped.
type State uint32

const (
	Awake State = iota
	Running
	Sleeping
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Awake:
		return "awake"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// atomicState is a lock-free state machine, grounded on the teacher's
// FastState: a bare atomic.Uint32 with CAS transitions and no validation of
// transition legality (callers are trusted to call TryTransition with a
// sane (from, to) pair).
type atomicState struct {
	v atomic.Uint32
}

func newAtomicState() *atomicState {
	s := &atomicState{}
	s.v.Store(uint32(Awake))
	return s
}

func (s *atomicState) Load() State { return State(s.v.Load()) }

func (s *atomicState) Store(state State) { s.v.Store(uint32(state)) }

func (s *atomicState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *atomicState) CanAcceptWork() bool {
	switch s.Load() {
	case Awake, Running, Sleeping:
		return true
	default:
		return false
	}
}
