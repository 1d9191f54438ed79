//go:build linux

package driver

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-aio/aioerr"
)

// maxFDs bounds direct-indexed fd lookup, matching the teacher's
// poller_linux.go sizing; beyond it registerFD falls back to growing the
// slice (see kqueue poller for the pattern this borrows).
const maxFDs = 65536

type fdInfo struct {
	callback func(IOEvents)
	events   IOEvents
	active   bool
}

// epollPoller adapts the teacher's FastPoller (poller_linux.go) to the
// driver.poller contract: direct fd-indexed array, RWMutex-guarded
// registration, version-checked post-syscall consistency so a poll that
// raced with a registry mutation discards its stale result instead of
// dispatching into freed state.
type epollPoller struct {
	epfd     int32
	version  atomic.Uint64
	eventBuf [256]unix.EpollEvent
	fds      []fdInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func newPoller() poller { return &epollPoller{} }

func (p *epollPoller) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return aioerr.Wrap(aioerr.IO, "epoll_create1", err)
	}
	p.epfd = int32(epfd)
	p.fds = make([]fdInfo, maxFDs)
	return nil
}

func (p *epollPoller) close() error {
	p.closed.Store(true)
	return unix.Close(int(p.epfd))
}

func (p *epollPoller) registerFD(fd int, events IOEvents, cb func(IOEvents)) error {
	if p.closed.Load() {
		return aioerr.New(aioerr.InvariantViolation, "epoll: poller closed")
	}
	p.fdMu.Lock()
	p.growLocked(fd)
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return aioerr.New(aioerr.InvariantViolation, "epoll: fd already registered")
	}
	p.fds[fd] = fdInfo{callback: cb, events: events, active: true}
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = fdInfo{}
		p.fdMu.Unlock()
		return aioerr.Wrap(aioerr.IO, "epoll_ctl add", err)
	}
	return nil
}

func (p *epollPoller) unregisterFD(fd int) error {
	p.fdMu.Lock()
	if fd < 0 || fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return aioerr.New(aioerr.InvariantViolation, "epoll: fd not registered")
	}
	p.fds[fd] = fdInfo{}
	p.version.Add(1)
	p.fdMu.Unlock()
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return aioerr.Wrap(aioerr.IO, "epoll_ctl del", err)
	}
	return nil
}

func (p *epollPoller) modifyFD(fd int, events IOEvents) error {
	p.fdMu.Lock()
	if fd < 0 || fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return aioerr.New(aioerr.InvariantViolation, "epoll: fd not registered")
	}
	p.fds[fd].events = events
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return aioerr.Wrap(aioerr.IO, "epoll_ctl mod", err)
	}
	return nil
}

func (p *epollPoller) pollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, aioerr.New(aioerr.InvariantViolation, "epoll: poller closed")
	}
	v := p.version.Load()
	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, aioerr.Wrap(aioerr.IO, "epoll_wait", err)
	}
	if p.version.Load() != v {
		// registry mutated mid-poll; results may reference freed callbacks
		return 0, nil
	}
	p.dispatch(n)
	return n, nil
}

func (p *epollPoller) growLocked(fd int) {
	if fd < len(p.fds) {
		return
	}
	grown := make([]fdInfo, fd*2+1)
	copy(grown, p.fds)
	p.fds = grown
}

func (p *epollPoller) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		p.fdMu.RLock()
		var info fdInfo
		if fd >= 0 && fd < len(p.fds) {
			info = p.fds[fd]
		}
		p.fdMu.RUnlock()
		if info.active && info.callback != nil {
			info.callback(epollToEvents(p.eventBuf[i].Events))
		}
	}
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
