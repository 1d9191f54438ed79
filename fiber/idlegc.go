package fiber

import (
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// IdleGC arms a one-shot idle-time GC hook: after period with no activity
// reported via Touch, it runs a single GC cycle plus FreeOSMemory, then
// disarms until the next idle window is observed. If the immediately
// prior idle cycle was the one that triggered a GC, the next is skipped —
// back-to-back empty cycles would otherwise thrash the allocator for no
// benefit.
type IdleGC struct {
	period      time.Duration
	lastWasIdle atomic.Bool
	timer       *time.Timer
	stopCh      chan struct{}
}

// NewIdleGC constructs a disabled IdleGC; call Start to arm it. A zero
// period disables the hook entirely (Start becomes a no-op), per
// config.Config.IdleGCPeriod / DisableIdleGC.
func NewIdleGC(period time.Duration) *IdleGC {
	return &IdleGC{period: period, stopCh: make(chan struct{})}
}

// Start runs the idle-detection loop until Stop is called. onIdle, if
// given, is invoked immediately after each GC cycle (for logging/metrics);
// it may be nil.
func (g *IdleGC) Start(touch <-chan struct{}, onIdle func()) {
	if g.period <= 0 {
		return
	}
	go func() {
		timer := time.NewTimer(g.period)
		defer timer.Stop()
		for {
			select {
			case <-g.stopCh:
				return
			case <-touch:
				g.lastWasIdle.Store(false)
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(g.period)
			case <-timer.C:
				if !g.lastWasIdle.Load() {
					runtime.GC()
					debug.FreeOSMemory()
					g.lastWasIdle.Store(true)
					if onIdle != nil {
						onIdle()
					}
				}
				timer.Reset(g.period)
			}
		}
	}()
}

// Stop halts the idle-detection loop.
func (g *IdleGC) Stop() { close(g.stopCh) }
