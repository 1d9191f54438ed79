//go:build darwin

package driver

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-aio/aioerr"
)

const maxFDs = 65536

type fdInfo struct {
	callback func(IOEvents)
	events   IOEvents
	active   bool
}

// kqueuePoller adapts the teacher's FastPoller (poller_darwin.go): a
// dynamically grown fd-indexed slice, level-triggered kqueue filters added
// and removed incrementally on modifyFD (rather than replacing the whole
// registration), and callback dispatch that copies fdInfo under RLock
// before calling out, matching the teacher's documented callback-lifetime
// contract (a callback may still run briefly after unregisterFD returns;
// callers must not free state a callback touches until they know it has
// quiesced).
type kqueuePoller struct {
	kq       int32
	eventBuf [256]unix.Kevent_t
	fds      []fdInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func newPoller() poller { return &kqueuePoller{} }

func (p *kqueuePoller) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return aioerr.Wrap(aioerr.IO, "kqueue", err)
	}
	unix.CloseOnExec(kq)
	p.kq = int32(kq)
	p.fds = make([]fdInfo, maxFDs)
	return nil
}

func (p *kqueuePoller) close() error {
	p.closed.Store(true)
	return unix.Close(int(p.kq))
}

func (p *kqueuePoller) registerFD(fd int, events IOEvents, cb func(IOEvents)) error {
	if p.closed.Load() {
		return aioerr.New(aioerr.InvariantViolation, "kqueue: poller closed")
	}
	p.fdMu.Lock()
	p.growLocked(fd)
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return aioerr.New(aioerr.InvariantViolation, "kqueue: fd already registered")
	}
	p.fds[fd] = fdInfo{callback: cb, events: events, active: true}
	p.fdMu.Unlock()

	if kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE); len(kevents) > 0 {
		if _, err := unix.Kevent(int(p.kq), kevents, nil, nil); err != nil {
			p.fdMu.Lock()
			p.fds[fd] = fdInfo{}
			p.fdMu.Unlock()
			return aioerr.Wrap(aioerr.IO, "kevent add", err)
		}
	}
	return nil
}

func (p *kqueuePoller) unregisterFD(fd int) error {
	p.fdMu.Lock()
	if fd < 0 || fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return aioerr.New(aioerr.InvariantViolation, "kqueue: fd not registered")
	}
	events := p.fds[fd].events
	p.fds[fd] = fdInfo{}
	p.fdMu.Unlock()

	if kevents := eventsToKevents(fd, events, unix.EV_DELETE); len(kevents) > 0 {
		_, _ = unix.Kevent(int(p.kq), kevents, nil, nil)
	}
	return nil
}

func (p *kqueuePoller) modifyFD(fd int, events IOEvents) error {
	p.fdMu.Lock()
	if fd < 0 || fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return aioerr.New(aioerr.InvariantViolation, "kqueue: fd not registered")
	}
	old := p.fds[fd].events
	p.fds[fd].events = events
	p.fdMu.Unlock()

	if removed := old &^ events; removed != 0 {
		if kevents := eventsToKevents(fd, removed, unix.EV_DELETE); len(kevents) > 0 {
			_, _ = unix.Kevent(int(p.kq), kevents, nil, nil)
		}
	}
	if added := events &^ old; added != 0 {
		if kevents := eventsToKevents(fd, added, unix.EV_ADD|unix.EV_ENABLE); len(kevents) > 0 {
			if _, err := unix.Kevent(int(p.kq), kevents, nil, nil); err != nil {
				return aioerr.Wrap(aioerr.IO, "kevent add", err)
			}
		}
	}
	return nil
}

func (p *kqueuePoller) pollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, aioerr.New(aioerr.InvariantViolation, "kqueue: poller closed")
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, aioerr.Wrap(aioerr.IO, "kevent wait", err)
	}
	p.dispatch(n)
	return n, nil
}

func (p *kqueuePoller) growLocked(fd int) {
	if fd < len(p.fds) {
		return
	}
	grown := make([]fdInfo, fd*2+1)
	copy(grown, p.fds)
	p.fds = grown
}

func (p *kqueuePoller) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		if fd < 0 {
			continue
		}
		p.fdMu.RLock()
		var info fdInfo
		if fd < len(p.fds) {
			info = p.fds[fd]
		}
		p.fdMu.RUnlock()
		if info.active && info.callback != nil {
			info.callback(keventToEvents(&p.eventBuf[i]))
		}
	}
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
