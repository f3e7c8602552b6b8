//go:build linux

package event

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"
)

const maxFDs = 1 << 20

type fdInfo struct {
	cb      Handler
	events  IOEvents
	oneshot bool
	active  bool
}

// epollDispatcher implements Dispatcher with epoll_wait, following
// FastPoller's direct-array-indexing-plus-version-check shape: Pump never
// holds the fds lock during the blocking syscall, and a version counter
// detects whether registrations changed underneath it.
type epollDispatcher struct {
	epfd     int
	mu       sync.RWMutex
	fds      [maxFDs]fdInfo
	version  uint64
	eventBuf []unix.EpollEvent
	closed   bool

	wakeR, wakeW int // self-pipe, woken by WakeUp to interrupt a blocked Pump
}

func newEpollDispatcher(maxEvents int) (Dispatcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	d := &epollDispatcher{epfd: epfd, eventBuf: make([]unix.EpollEvent, maxEvents)}

	r, w, err := selfPipe()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	d.wakeR, d.wakeW = r, w
	if err := d.registerLocked(r, Read, false, func(IOEvents) { d.drainWake() }); err != nil {
		unix.Close(epfd)
		unix.Close(r)
		unix.Close(w)
		return nil, err
	}
	return d, nil
}

func (d *epollDispatcher) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(d.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// WakeUp interrupts a blocked Pump call from another goroutine, used by
// internal/runtime.Runtime.Post when posting to the primary runtime
// (spec.md §4.5: "if the target is the primary, notify the event loop via
// a self-pipe").
func (d *epollDispatcher) WakeUp() {
	unix.Write(d.wakeW, []byte{0})
}

func (d *epollDispatcher) Register(fd int, events IOEvents, oneshot bool, cb Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.registerLocked(fd, events, oneshot, cb)
}

func (d *epollDispatcher) registerLocked(fd int, events IOEvents, oneshot bool, cb Handler) error {
	if fd < 0 || fd >= maxFDs {
		return ErrNotRegistered
	}
	d.fds[fd] = fdInfo{cb: cb, events: events, oneshot: oneshot, active: true}
	d.version++
	ev := unix.EpollEvent{Events: toEpoll(events, oneshot), Fd: int32(fd)}
	if err := unix.EpollCtl(d.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		d.fds[fd] = fdInfo{}
		return err
	}
	return nil
}

func (d *epollDispatcher) Modify(fd int, events IOEvents, oneshot bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if fd < 0 || fd >= maxFDs || !d.fds[fd].active {
		return ErrNotRegistered
	}
	cb := d.fds[fd].cb
	d.fds[fd] = fdInfo{cb: cb, events: events, oneshot: oneshot, active: true}
	d.version++
	ev := unix.EpollEvent{Events: toEpoll(events, oneshot), Fd: int32(fd)}
	return unix.EpollCtl(d.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (d *epollDispatcher) Unregister(fd int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fd < 0 || fd >= maxFDs || !d.fds[fd].active {
		return ErrNotRegistered
	}
	d.fds[fd] = fdInfo{}
	d.version++
	return unix.EpollCtl(d.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (d *epollDispatcher) Pump(ctx context.Context) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	d.mu.RUnlock()

	timeoutMs := -1
	if deadline, ok := ctx.Deadline(); ok {
		remaining := timeUntilMs(deadline)
		if remaining < 0 {
			remaining = 0
		}
		timeoutMs = remaining
	}

	v := d.loadVersion()
	n, err := unix.EpollWait(d.epfd, d.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	if d.loadVersion() != v {
		return nil // registrations changed mid-wait; let the caller retry
	}
	d.dispatch(n)
	return nil
}

func (d *epollDispatcher) loadVersion() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

func (d *epollDispatcher) dispatch(n int) {
	for i := 0; i < n; i++ {
		fd := int(d.eventBuf[i].Fd)
		if fd < 0 || fd >= maxFDs {
			continue
		}
		d.mu.Lock()
		info := d.fds[fd]
		if info.active && info.oneshot {
			d.fds[fd] = fdInfo{}
			d.version++
			unix.EpollCtl(d.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		}
		d.mu.Unlock()
		if info.active && info.cb != nil {
			info.cb(fromEpoll(d.eventBuf[i].Events))
		}
	}
}

func (d *epollDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	unix.Close(d.wakeR)
	unix.Close(d.wakeW)
	return unix.Close(d.epfd)
}

func toEpoll(events IOEvents, oneshot bool) uint32 {
	var e uint32
	if events&Read != 0 {
		e |= unix.EPOLLIN
	}
	if events&Write != 0 {
		e |= unix.EPOLLOUT
	}
	if oneshot {
		e |= unix.EPOLLONESHOT
	}
	return e
}

func fromEpoll(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= Read
	}
	if e&unix.EPOLLOUT != 0 {
		events |= Write
	}
	if e&unix.EPOLLERR != 0 {
		events |= Error
	}
	if e&unix.EPOLLHUP != 0 {
		events |= Hangup
	}
	return events
}

func selfPipe() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}
