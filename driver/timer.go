package driver

import (
	"container/heap"
	"time"
)

// timerEntry is one scheduled callback, min-heap-ordered by deadline,
// adapted from the teacher's timerHeap in loop.go.
type timerEntry struct {
	when    time.Time
	period  time.Duration // 0 for one-shot
	cb      func()
	index   int // heap.Interface bookkeeping, for O(log n) cancellation
	pending bool
}

func (e *timerEntry) IsPending() bool { return e.pending }

func (e *timerEntry) Stop() { e.pending = false }

func (e *timerEntry) Rearm(d time.Duration) {
	e.when = time.Now().Add(d)
	e.pending = true
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)         { e := x.(*timerEntry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerQueue owns the min-heap of armed timers for a Loop. It is not
// goroutine-safe on its own; a Loop only touches it while holding its mu,
// since CreateTimer may be called from any goroutine.
type timerQueue struct {
	h timerHeap
}

func (q *timerQueue) add(e *timerEntry) {
	e.pending = true
	heap.Push(&q.h, e)
}

func (q *timerQueue) remove(e *timerEntry) {
	if e.index < 0 || e.index >= len(q.h) || q.h[e.index] != e {
		return
	}
	heap.Remove(&q.h, e.index)
	e.pending = false
}

// nextDeadline reports the soonest armed deadline, or ok=false if empty.
func (q *timerQueue) nextDeadline() (when time.Time, ok bool) {
	for len(q.h) > 0 && !q.h[0].pending {
		heap.Pop(&q.h)
	}
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].when, true
}

// popExpired removes and returns every timer due at or before now,
// re-arming periodic timers in place rather than returning them expired.
func (q *timerQueue) popExpired(now time.Time) []*timerEntry {
	var due []*timerEntry
	for len(q.h) > 0 {
		top := q.h[0]
		if !top.pending {
			heap.Pop(&q.h)
			continue
		}
		if top.when.After(now) {
			break
		}
		heap.Pop(&q.h)
		due = append(due, top)
		if top.period > 0 {
			top.when = now.Add(top.period)
			heap.Push(&q.h, top)
		} else {
			top.pending = false
		}
	}
	return due
}
