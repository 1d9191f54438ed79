// Package aio is go-aio's top-level façade: it bundles a driver.Loop with
// a fiber.Scheduler and fiber.WorkerPool into one per-OS-thread Runtime,
// wires POSIX signal handling (SIGINT/SIGTERM request graceful shutdown,
// SIGPIPE is ignored so a broken pipe surfaces as a write error instead of
// killing the process) and optional privilege drop, mirroring the
// teacher's loop.Run/Shutdown lifecycle (eventloop/examples/04_shutdown)
// adapted from a promise-draining JS loop onto go-aio's fiber/driver pair.
package aio

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-aio/aioerr"
	"github.com/joeycumines/go-aio/config"
	"github.com/joeycumines/go-aio/driver"
	"github.com/joeycumines/go-aio/fiber"
	"github.com/joeycumines/go-aio/rtlog"
)

// Runtime bundles one driver.Loop with one fiber.Scheduler, the Go-native
// equivalent of the teacher's one-loop-per-OS-thread model: the Loop is
// meant to be driven from exactly one goroutine (its "driver goroutine"),
// while Scheduler.Spawn/SpawnWorker may be called from any fiber running
// on that loop.
type Runtime struct {
	Log       *rtlog.Std
	Loop      *driver.Loop
	Scheduler *fiber.Scheduler
	Workers   *fiber.WorkerPool
	IdleGC    *fiber.IdleGC

	cfg config.Config

	sigCh   chan os.Signal
	stopSig context.CancelFunc
	sigDone chan struct{}
	touchCh chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// New constructs a Runtime from cfg, creating its own driver.Loop,
// fiber.Pool and fiber.WorkerPool. SIGPIPE is ignored immediately (per
// spec, before any socket work can begin); SIGINT/SIGTERM are captured so
// Run can translate them into a graceful ExitLoop instead of the default
// terminate-the-process behavior.
func New(cfg config.Config, log *rtlog.Std) (*Runtime, error) {
	log = rtlog.Or(log)

	ignoreSIGPIPE()

	loop, err := driver.New(log)
	if err != nil {
		return nil, err
	}

	workers := fiber.NewWorkerPool(log, cfg.WorkerCount)
	sched := fiber.NewScheduler(log, fiber.NewPool(), workers)

	r := &Runtime{
		Log:       log,
		Loop:      loop,
		Scheduler: sched,
		Workers:   workers,
		cfg:       cfg,
		sigCh:     make(chan os.Signal, 4),
		sigDone:   make(chan struct{}),
		touchCh:   make(chan struct{}, 1),
	}

	if !cfg.DisableIdleGC && cfg.IdleGCPeriod > 0 {
		r.IdleGC = fiber.NewIdleGC(cfg.IdleGCPeriod)
	}

	return r, nil
}

// DropPrivileges sets the process gid then uid to cfg.DropToGID/DropToUID
// (if non-empty), in that order — gid before uid, because once uid is
// dropped the process generally no longer has permission to change gid.
// This is a raw syscall operation: golang.org/x/sys/unix is the only
// dependency in the retrieval pack that touches setuid/setgid at all, and
// no pack repo wraps it in a higher-level privilege-drop helper, so this
// stays a thin function over unix.Setgid/unix.Setuid rather than
// introducing an unwired abstraction layer.
func DropPrivileges(cfg config.Config) error {
	if cfg.DropToGID != "" {
		gid, err := strconv.Atoi(cfg.DropToGID)
		if err != nil {
			return aioerr.Wrap(aioerr.InvariantViolation, "aio: invalid drop-gid", err)
		}
		if err := unix.Setgid(gid); err != nil {
			return aioerr.Wrap(aioerr.IO, "aio: setgid", err)
		}
	}
	if cfg.DropToUID != "" {
		uid, err := strconv.Atoi(cfg.DropToUID)
		if err != nil {
			return aioerr.Wrap(aioerr.InvariantViolation, "aio: invalid drop-uid", err)
		}
		if err := unix.Setuid(uid); err != nil {
			return aioerr.Wrap(aioerr.IO, "aio: setuid", err)
		}
	}
	return nil
}

// Run arms signal handling, starts the WorkerPool and idle-GC hook (if
// configured), then blocks in the driver loop until ExitLoop is called
// (directly, or indirectly via a captured SIGINT/SIGTERM). Privilege drop
// must have already happened by the time setup (the closure) returns,
// per spec's "drop privileges after driver setup, before business logic"
// ordering — setup is the caller's hook to open listening sockets (which
// typically need the original privileges) before downgrading.
func (r *Runtime) Run(ctx context.Context, setup func(rt *Runtime) error) error {
	signal.Notify(r.sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(r.sigCh)

	sigCtx, cancel := context.WithCancel(ctx)
	r.stopSig = cancel
	go r.watchSignals(sigCtx)
	defer func() {
		cancel()
		<-r.sigDone
	}()

	r.Workers.Start(ctx)

	if r.IdleGC != nil {
		r.IdleGC.Start(r.touchCh, func() {
			r.Log.Info().Log("aio: idle gc cycle")
		})
		defer r.IdleGC.Stop()
	}

	if setup != nil {
		if err := setup(r); err != nil {
			return aioerr.Wrap(aioerr.IO, "aio: runtime setup failed", err)
		}
	}

	return r.Loop.RunLoop()
}

func (r *Runtime) watchSignals(ctx context.Context) {
	defer close(r.sigDone)
	select {
	case sig := <-r.sigCh:
		r.Log.Info().Any("signal", sig).Log("aio: received shutdown signal")
		r.Loop.ExitLoop()
	case <-ctx.Done():
	}
}

// Touch records activity for the idle-GC hook, resetting its idle timer;
// callers invoke this on every unit of dispatched work.
func (r *Runtime) Touch() {
	select {
	case r.touchCh <- struct{}{}:
	default:
	}
}

// Close shuts down the WorkerPool and the driver.Loop. Safe to call
// multiple times.
func (r *Runtime) Close() error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if r.stopSig != nil {
		r.stopSig()
	}
	_ = r.Workers.Close()
	return r.Loop.Close()
}

// ignoreSIGPIPE sets SIGPIPE to be ignored process-wide, the Go runtime
// equivalent of the teacher's "opt out of SIGPIPE before any socket work"
// requirement — Go already ignores SIGPIPE on fd>1 writes by default for
// net.Conn, but this makes the policy explicit and extends it to raw
// syscall.Write callers (e.g. a File opened via driver.OpenFile).
func ignoreSIGPIPE() {
	signal.Ignore(syscall.SIGPIPE)
}
