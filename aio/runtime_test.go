package aio

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-aio/config"
	"github.com/joeycumines/go-aio/fiber"
)

func TestNew_ConstructsRuntime(t *testing.T) {
	cfg := config.Default()
	cfg.WorkerCount = 2
	rt, err := New(cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.Loop)
	assert.NotNil(t, rt.Scheduler)
	assert.NotNil(t, rt.Workers)
}

func TestRun_SetupAndExitLoop(t *testing.T) {
	cfg := config.Default()
	cfg.WorkerCount = 1
	cfg.DisableIdleGC = true
	rt, err := New(cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	ranSetup := false
	done := make(chan error, 1)
	go func() {
		done <- rt.Run(context.Background(), func(r *Runtime) error {
			ranSetup = true
			// deferred so RunLoop has already transitioned Awake->Running
			// by the time ExitLoop fires, avoiding a race against Run's
			// own setup-then-RunLoop ordering
			go func() {
				time.Sleep(20 * time.Millisecond)
				r.Loop.ExitLoop()
			}()
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned after ExitLoop")
	}
	assert.True(t, ranSetup)
}

// TestEchoServer_HelloRoundTripsAndClosesGracefully is spec.md's S1
// scenario: listen on a loopback port, spawn one fiber per accepted
// connection piping the connection to itself, connect a client that
// sends "hello", expect to receive "hello" back and observe graceful
// close on both sides.
func TestEchoServer_HelloRoundTripsAndClosesGracefully(t *testing.T) {
	cfg := config.Default()
	cfg.WorkerCount = 1
	cfg.DisableIdleGC = true
	rt, err := New(cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	addrCh := make(chan string, 1)
	runDone := make(chan error, 1)

	go func() {
		runDone <- rt.Run(context.Background(), func(r *Runtime) error {
			ln, err := r.Loop.ListenTCP(0, "127.0.0.1", func(conn *net.TCPConn) {
				r.Scheduler.Spawn(func(f *fiber.Fiber) error {
					defer conn.Close()
					_, err := io.Copy(conn, conn)
					return err
				})
			})
			if err != nil {
				return err
			}
			addrCh <- ln.Addr().String()
			return nil
		})
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never reported an address")
	}

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
	require.NoError(t, conn.Close())

	rt.Loop.ExitLoop()
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned after ExitLoop")
	}
}

func TestDropPrivileges_EmptyConfigIsNoop(t *testing.T) {
	require.NoError(t, DropPrivileges(config.Default()))
}

func TestDropPrivileges_InvalidUIDErrors(t *testing.T) {
	cfg := config.Default()
	cfg.DropToUID = "not-a-number"
	assert.Error(t, DropPrivileges(cfg))
}
