package driver

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLoop_SubmitRunsOnDriverGoroutine(t *testing.T) {
	l := newTestLoop(t)
	var ran atomic.Bool

	go func() {
		require.NoError(t, l.Submit(func() {
			ran.Store(true)
			l.ExitLoop()
		}))
	}()

	require.NoError(t, l.RunLoop())
	assert.True(t, ran.Load())
}

func TestLoop_ExitLoopBeforeRunLoopIsInvariantViolation(t *testing.T) {
	l := newTestLoop(t)
	l.ExitLoop()
	err := l.RunLoop()
	require.Error(t, err)
}

func TestLoop_CreateTimerFiresAndExits(t *testing.T) {
	l := newTestLoop(t)
	var fired atomic.Bool
	l.CreateTimer(10*time.Millisecond, false, func() {
		fired.Store(true)
		l.ExitLoop()
	})
	require.NoError(t, l.RunLoop())
	assert.True(t, fired.Load())
}

func TestLoop_CreateTimerPeriodicFiresMultipleTimes(t *testing.T) {
	l := newTestLoop(t)
	var n atomic.Int32
	var timer TimerEvent
	timer = l.CreateTimer(5*time.Millisecond, true, func() {
		if n.Add(1) >= 3 {
			timer.Stop()
			l.ExitLoop()
		}
	})
	require.NoError(t, l.RunLoop())
	assert.GreaterOrEqual(t, n.Load(), int32(3))
}

func TestLoop_StatsReportsReadyDepthBeforeDrain(t *testing.T) {
	l := newTestLoop(t)
	l.mu.Lock()
	l.ready = append(l.ready, func() {}, func() {})
	l.mu.Unlock()

	stats := l.Stats()
	assert.Equal(t, 2, stats.ReadyDepth)
	assert.Equal(t, uint64(0), stats.TickCount)
}

func TestLoop_TickBudgetReportsOverload(t *testing.T) {
	l := newTestLoop(t)
	l.SetTickBudget(1)

	var overloadCalls atomic.Int32
	var lastRemaining atomic.Int32
	l.SetOnOverload(func(remaining int) {
		overloadCalls.Add(1)
		lastRemaining.Store(int32(remaining))
	})

	var n atomic.Int32
	require.NoError(t, l.Submit(func() { n.Add(1) }))
	require.NoError(t, l.Submit(func() { n.Add(1) }))
	require.NoError(t, l.Submit(func() {
		n.Add(1)
		l.ExitLoop()
	}))

	require.NoError(t, l.RunLoop())
	assert.Equal(t, int32(3), n.Load())
	assert.Greater(t, overloadCalls.Load(), int32(0))
	_ = lastRemaining.Load()
}

func TestLoop_ResolveHost_LiteralIPWithoutDNS(t *testing.T) {
	l := newTestLoop(t)
	ips, err := l.ResolveHost("127.0.0.1", false)
	require.NoError(t, err)
	require.Len(t, ips, 1)
	assert.Equal(t, "127.0.0.1", ips[0].String())
}

func TestLoop_ResolveHost_NonLiteralWithoutDNSErrors(t *testing.T) {
	l := newTestLoop(t)
	_, err := l.ResolveHost("example.invalid.", false)
	require.Error(t, err)
}

func TestLoop_ConnectAndListenTCP(t *testing.T) {
	l := newTestLoop(t)

	accepted := make(chan struct{})
	ln, err := l.ListenTCP(0, "127.0.0.1", func(conn *net.TCPConn) {
		_ = conn.Close()
		close(accepted)
	})
	require.NoError(t, err)
	defer ln.Close()

	conn, err := l.ConnectTCP(ln.Addr().String(), "")
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted the connection")
	}
}
